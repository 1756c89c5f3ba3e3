package types

type ContentItemType string

const (
	ContentItemVideo      ContentItemType = "video"
	ContentItemText       ContentItemType = "text"
	ContentItemQuiz       ContentItemType = "quiz"
	ContentItemAttachment ContentItemType = "attachment"
	ContentItemLessonPlan ContentItemType = "lesson_plan"
)

// ContentItem is one unit of lesson content as modeled by the remote service.
// It is carried through download and offline reconstruction as a first-class
// value instead of an opaque payload, so nothing downstream has to re-parse
// the remote response.
type ContentItem struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Type        ContentItemType `json:"content_type"`
	ContentPath string          `json:"content_path,omitempty"`
	Content     string          `json:"content,omitempty"`
	SortOrder   int             `json:"order"`
	Quiz        []QuizQuestion  `json:"quiz,omitempty"`
}

type QuizQuestion struct {
	ID           string       `json:"id"`
	Question     string       `json:"question"`
	QuestionType string       `json:"question_type"`
	Points       int          `json:"points,omitempty"`
	Options      []QuizOption `json:"options,omitempty"`
}

type QuizOption struct {
	ID         string `json:"id"`
	OptionText string `json:"option_text"`
	IsCorrect  bool   `json:"is_correct"`
}
