package types

import (
	"time"

	"gorm.io/datatypes"
)

// Video holds the downloaded media for one video content item. Its ID is the
// originating content item id, never a generated one.
type Video struct {
	ID               string         `gorm:"primaryKey" json:"id"`
	LessonID         string         `gorm:"column:lesson_id;index;not null" json:"lesson_id"`
	CourseID         string         `gorm:"column:course_id;index;not null" json:"course_id"`
	OriginalURL      string         `gorm:"column:original_url" json:"original_url"`
	Blob             []byte         `gorm:"column:blob" json:"-"`
	Duration         int            `gorm:"column:duration" json:"duration"`
	Size             int64          `gorm:"column:size;index" json:"size"`
	Quality          string         `gorm:"column:quality" json:"quality"`
	Format           string         `gorm:"column:format" json:"format"`
	Compressed       bool           `gorm:"column:compressed" json:"compressed"`
	CompressionRatio float64        `gorm:"column:compression_ratio" json:"compression_ratio,omitempty"`
	DownloadDate     time.Time      `gorm:"column:download_date" json:"download_date"`
	Metadata         datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
}

func (Video) TableName() string { return "videos" }
