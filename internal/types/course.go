package types

import (
	"time"

	"gorm.io/datatypes"
)

type DownloadStatus string

const (
	DownloadStatusDownloading DownloadStatus = "downloading"
	DownloadStatusCompleted   DownloadStatus = "completed"
	DownloadStatusError       DownloadStatus = "error"
	DownloadStatusPaused      DownloadStatus = "paused"
)

// Course is the root record of an offline copy. Lessons, videos, assets and
// progress rows are owned by it and cascade-deleted with it.
type Course struct {
	ID                string         `gorm:"primaryKey" json:"id"`
	Title             string         `gorm:"column:title;not null" json:"title"`
	Subtitle          string         `gorm:"column:subtitle" json:"subtitle,omitempty"`
	Description       string         `gorm:"column:description" json:"description,omitempty"`
	ImageURL          string         `gorm:"column:image_url" json:"image_url,omitempty"`
	InstructorName    string         `gorm:"column:instructor_name" json:"instructor_name,omitempty"`
	TotalLessons      int            `gorm:"column:total_lessons;not null;default:0" json:"total_lessons"`
	EstimatedDuration int            `gorm:"column:estimated_duration" json:"estimated_duration,omitempty"`
	DifficultyLevel   string         `gorm:"column:difficulty_level" json:"difficulty_level,omitempty"`
	Category          string         `gorm:"column:category" json:"category,omitempty"`
	DownloadDate      time.Time      `gorm:"column:download_date;index" json:"download_date"`
	LastAccessed      time.Time      `gorm:"column:last_accessed;index" json:"last_accessed"`
	Version           string         `gorm:"column:version" json:"version"`
	TotalSize         int64          `gorm:"column:total_size;not null;default:0" json:"total_size"`
	DownloadStatus    DownloadStatus `gorm:"column:download_status;index" json:"download_status"`
	DownloadProgress  float64        `gorm:"column:download_progress;not null;default:0" json:"download_progress"`
	Metadata          datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
}

func (Course) TableName() string { return "courses" }
