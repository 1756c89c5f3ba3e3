package types

import (
	"time"

	"gorm.io/datatypes"
)

// Progress tracks one user's progress on one lesson. ID is the composite
// key "<courseID>-<lessonID>".
type Progress struct {
	ID               string         `gorm:"primaryKey" json:"id"`
	CourseID         string         `gorm:"column:course_id;index;not null" json:"course_id"`
	LessonID         string         `gorm:"column:lesson_id;index;not null" json:"lesson_id"`
	UserID           string         `gorm:"column:user_id;index" json:"user_id"`
	Completed        bool           `gorm:"column:completed;index" json:"completed"`
	Progress         float64        `gorm:"column:progress;not null;default:0" json:"progress"`
	TimeSpentSeconds int            `gorm:"column:time_spent_seconds;not null;default:0" json:"time_spent_seconds"`
	LastAccessed     time.Time      `gorm:"column:last_accessed;index" json:"last_accessed"`
	CompletedAt      *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
	Notes            string         `gorm:"column:notes" json:"notes,omitempty"`
	Metadata         datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
}

func (Progress) TableName() string { return "progress" }

// ProgressUpdate is the write shape the data layer accepts from callers; it
// is fanned out to the remote service and the local store.
type ProgressUpdate struct {
	CourseID         string     `json:"course_id"`
	LessonID         string     `json:"lesson_id"`
	UserID           string     `json:"user_id"`
	ContentItemID    string     `json:"content_item_id,omitempty"`
	Completed        bool       `json:"completed"`
	Progress         float64    `json:"progress"`
	TimeSpentSeconds int        `json:"time_spent_seconds"`
	LastAccessed     time.Time  `json:"last_accessed"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}
