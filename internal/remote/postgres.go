package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/dil-lms/offline-engine/internal/platform/apperr"
	"github.com/dil-lms/offline-engine/internal/platform/logger"
	"github.com/dil-lms/offline-engine/internal/types"
)

// PostgresAPI serves the course catalog from the backend Postgres database.
type PostgresAPI struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresAPI(dsn string, baseLog *logger.Logger) (*PostgresAPI, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open catalog database: %w", err)
	}
	return &PostgresAPI{db: db, log: baseLog.With("service", "remote.catalog")}, nil
}

// NewPostgresAPIFromDB wraps an already-open connection, used by tests.
func NewPostgresAPIFromDB(db *gorm.DB, baseLog *logger.Logger) *PostgresAPI {
	return &PostgresAPI{db: db, log: baseLog.With("service", "remote.catalog")}
}

type courseRow struct {
	ID                string
	Title             string
	Subtitle          string
	Description       string
	ImageURL          string `gorm:"column:image_url"`
	InstructorName    string
	EstimatedDuration int
	DifficultyLevel   string
	Category          string
	UpdatedAt         time.Time
}

func (courseRow) TableName() string { return "courses" }

type sectionRow struct {
	ID          string
	CourseID    string
	Title       string
	Description string
	SortOrder   int
}

func (sectionRow) TableName() string { return "course_sections" }

type lessonRow struct {
	ID          string
	SectionID   string
	Title       string
	Description string
	Content     string
	SortOrder   int
	Duration    int
}

func (lessonRow) TableName() string { return "course_lessons" }

type contentItemRow struct {
	ID          string
	LessonID    string
	Title       string
	Type        string
	ContentPath string
	Content     string
	SortOrder   int
}

func (contentItemRow) TableName() string { return "course_lesson_content" }

type quizQuestionRow struct {
	ID            string
	ContentItemID string
	Question      string
	QuestionType  string
	Points        int
}

func (quizQuestionRow) TableName() string { return "quiz_questions" }

type questionOptionRow struct {
	ID         string
	QuestionID string
	OptionText string
	IsCorrect  bool
}

func (questionOptionRow) TableName() string { return "question_options" }

type progressRow struct {
	UserID           string `gorm:"primaryKey"`
	ContentItemID    string `gorm:"primaryKey"`
	CourseID         string
	LessonID         string
	Completed        bool
	Progress         float64
	TimeSpentSeconds int
	LastAccessed     time.Time
	CompletedAt      *time.Time
}

func (progressRow) TableName() string { return "user_content_item_progress" }

// FetchCourseGraph assembles the full nested course in four queries instead
// of one query per lesson.
func (a *PostgresAPI) FetchCourseGraph(ctx context.Context, courseID string) (*types.CourseGraph, error) {
	db := a.db.WithContext(ctx)

	var course courseRow
	if err := db.First(&course, "id = ?", courseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("course %s: %w", courseID, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("fetch course %s: %w", courseID, err)
	}

	var sections []sectionRow
	if err := db.Where("course_id = ?", courseID).Order("sort_order").Find(&sections).Error; err != nil {
		return nil, fmt.Errorf("fetch sections for %s: %w", courseID, err)
	}

	sectionIDs := make([]string, 0, len(sections))
	for _, s := range sections {
		sectionIDs = append(sectionIDs, s.ID)
	}

	var lessons []lessonRow
	if len(sectionIDs) > 0 {
		if err := db.Where("section_id IN ?", sectionIDs).Order("sort_order").Find(&lessons).Error; err != nil {
			return nil, fmt.Errorf("fetch lessons for %s: %w", courseID, err)
		}
	}

	lessonIDs := make([]string, 0, len(lessons))
	for _, l := range lessons {
		lessonIDs = append(lessonIDs, l.ID)
	}

	var items []contentItemRow
	if len(lessonIDs) > 0 {
		if err := db.Where("lesson_id IN ?", lessonIDs).Order("sort_order").Find(&items).Error; err != nil {
			return nil, fmt.Errorf("fetch content items for %s: %w", courseID, err)
		}
	}

	quizzes, err := a.fetchQuizzes(ctx, items)
	if err != nil {
		return nil, err
	}

	itemsByLesson := make(map[string][]types.ContentItem, len(lessons))
	for _, item := range items {
		ci := types.ContentItem{
			ID:          item.ID,
			Title:       item.Title,
			Type:        types.ContentItemType(item.Type),
			ContentPath: item.ContentPath,
			Content:     item.Content,
			SortOrder:   item.SortOrder,
			Quiz:        quizzes[item.ID],
		}
		itemsByLesson[item.LessonID] = append(itemsByLesson[item.LessonID], ci)
	}

	lessonsBySection := make(map[string][]types.GraphLesson, len(sections))
	for _, l := range lessons {
		lessonsBySection[l.SectionID] = append(lessonsBySection[l.SectionID], types.GraphLesson{
			ID:           l.ID,
			Title:        l.Title,
			Description:  l.Description,
			Content:      l.Content,
			SortOrder:    l.SortOrder,
			Duration:     l.Duration,
			ContentItems: itemsByLesson[l.ID],
		})
	}

	graph := &types.CourseGraph{
		ID:                course.ID,
		Title:             course.Title,
		Subtitle:          course.Subtitle,
		Description:       course.Description,
		ImageURL:          course.ImageURL,
		InstructorName:    course.InstructorName,
		EstimatedDuration: course.EstimatedDuration,
		DifficultyLevel:   course.DifficultyLevel,
		Category:          course.Category,
		UpdatedAt:         course.UpdatedAt,
		Sections:          make([]types.Section, 0, len(sections)),
	}
	for _, s := range sections {
		graph.Sections = append(graph.Sections, types.Section{
			ID:          s.ID,
			Title:       s.Title,
			Description: s.Description,
			SortOrder:   s.SortOrder,
			Lessons:     lessonsBySection[s.ID],
		})
	}

	a.log.Debug("Fetched course graph", "course_id", courseID, "sections", len(sections), "lessons", len(lessons))
	return graph, nil
}

func (a *PostgresAPI) fetchQuizzes(ctx context.Context, items []contentItemRow) (map[string][]types.QuizQuestion, error) {
	quizItemIDs := make([]string, 0)
	for _, item := range items {
		if types.ContentItemType(item.Type) == types.ContentItemQuiz {
			quizItemIDs = append(quizItemIDs, item.ID)
		}
	}
	if len(quizItemIDs) == 0 {
		return nil, nil
	}

	db := a.db.WithContext(ctx)
	var questions []quizQuestionRow
	if err := db.Where("content_item_id IN ?", quizItemIDs).Find(&questions).Error; err != nil {
		return nil, fmt.Errorf("fetch quiz questions: %w", err)
	}

	questionIDs := make([]string, 0, len(questions))
	for _, q := range questions {
		questionIDs = append(questionIDs, q.ID)
	}
	var options []questionOptionRow
	if len(questionIDs) > 0 {
		if err := db.Where("question_id IN ?", questionIDs).Find(&options).Error; err != nil {
			return nil, fmt.Errorf("fetch question options: %w", err)
		}
	}

	optionsByQuestion := make(map[string][]types.QuizOption)
	for _, o := range options {
		optionsByQuestion[o.QuestionID] = append(optionsByQuestion[o.QuestionID], types.QuizOption{
			ID:         o.ID,
			OptionText: o.OptionText,
			IsCorrect:  o.IsCorrect,
		})
	}

	out := make(map[string][]types.QuizQuestion)
	for _, q := range questions {
		out[q.ContentItemID] = append(out[q.ContentItemID], types.QuizQuestion{
			ID:           q.ID,
			Question:     q.Question,
			QuestionType: q.QuestionType,
			Points:       q.Points,
			Options:      optionsByQuestion[q.ID],
		})
	}
	return out, nil
}

// UpsertProgress writes a user's progress row keyed by user and content item.
func (a *PostgresAPI) UpsertProgress(ctx context.Context, update *types.ProgressUpdate) error {
	row := progressRow{
		UserID:           update.UserID,
		ContentItemID:    update.ContentItemID,
		CourseID:         update.CourseID,
		LessonID:         update.LessonID,
		Completed:        update.Completed,
		Progress:         update.Progress,
		TimeSpentSeconds: update.TimeSpentSeconds,
		LastAccessed:     update.LastAccessed,
		CompletedAt:      update.CompletedAt,
	}
	if row.LastAccessed.IsZero() {
		row.LastAccessed = time.Now()
	}
	err := a.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "content_item_id"}},
			UpdateAll: true,
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert progress for user %s item %s: %w", update.UserID, update.ContentItemID, err)
	}
	return nil
}

// ListProgress reduces a user's per-item rows to one record per lesson. A
// lesson counts as completed once any of its items is completed; time spent
// sums across items.
func (a *PostgresAPI) ListProgress(ctx context.Context, courseID, userID string) ([]*types.Progress, error) {
	var rows []progressRow
	err := a.db.WithContext(ctx).
		Where("course_id = ? AND user_id = ?", courseID, userID).
		Order("last_accessed").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list progress for user %s course %s: %w", userID, courseID, err)
	}

	byLesson := make(map[string]*types.Progress)
	order := make([]string, 0)
	for _, r := range rows {
		p, ok := byLesson[r.LessonID]
		if !ok {
			p = &types.Progress{
				ID:       courseID + "-" + r.LessonID,
				CourseID: courseID,
				LessonID: r.LessonID,
				UserID:   userID,
			}
			byLesson[r.LessonID] = p
			order = append(order, r.LessonID)
		}
		p.TimeSpentSeconds += r.TimeSpentSeconds
		if r.Progress > p.Progress {
			p.Progress = r.Progress
		}
		if r.LastAccessed.After(p.LastAccessed) {
			p.LastAccessed = r.LastAccessed
		}
		if r.Completed {
			p.Completed = true
			if r.CompletedAt != nil {
				p.CompletedAt = r.CompletedAt
			}
		}
	}

	out := make([]*types.Progress, 0, len(order))
	for _, lessonID := range order {
		out = append(out, byLesson[lessonID])
	}
	return out, nil
}
