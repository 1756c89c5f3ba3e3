package types

import "time"

// CourseGraph is the full nested course structure as returned by the remote
// service in a single query: course -> sections -> lessons -> content items,
// quiz questions and options included.
type CourseGraph struct {
	ID                string    `json:"id"`
	Title             string    `json:"title"`
	Subtitle          string    `json:"subtitle,omitempty"`
	Description       string    `json:"description,omitempty"`
	ImageURL          string    `json:"image_url,omitempty"`
	InstructorName    string    `json:"instructor_name,omitempty"`
	EstimatedDuration int       `json:"estimated_duration,omitempty"`
	DifficultyLevel   string    `json:"difficulty_level,omitempty"`
	Category          string    `json:"category,omitempty"`
	UpdatedAt         time.Time `json:"updated_at"`
	Sections          []Section `json:"sections"`
}

type Section struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	SortOrder   int           `json:"order"`
	Lessons     []GraphLesson `json:"lessons"`
}

type GraphLesson struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Description  string        `json:"description,omitempty"`
	Content      string        `json:"content,omitempty"`
	SortOrder    int           `json:"order"`
	Duration     int           `json:"duration,omitempty"`
	ContentItems []ContentItem `json:"contentItems"`
}

func (g *CourseGraph) TotalLessons() int {
	total := 0
	for _, s := range g.Sections {
		total += len(s.Lessons)
	}
	return total
}
