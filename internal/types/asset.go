package types

import (
	"time"

	"gorm.io/datatypes"
)

type AssetType string

const (
	AssetTypeImage    AssetType = "image"
	AssetTypeDocument AssetType = "document"
	AssetTypeAudio    AssetType = "audio"
	AssetTypeOther    AssetType = "other"
)

// Asset is a downloaded attachment or course-wide file. ID is the content
// item id when one exists; otherwise a generated id, in which case the
// metadata bag keeps the originating content item id for fallback lookup.
type Asset struct {
	ID           string         `gorm:"primaryKey" json:"id"`
	CourseID     string         `gorm:"column:course_id;index;not null" json:"course_id"`
	LessonID     string         `gorm:"column:lesson_id;index" json:"lesson_id,omitempty"`
	OriginalURL  string         `gorm:"column:original_url" json:"original_url"`
	Blob         []byte         `gorm:"column:blob" json:"-"`
	Type         AssetType      `gorm:"column:type;index" json:"type"`
	MimeType     string         `gorm:"column:mime_type" json:"mime_type"`
	Size         int64          `gorm:"column:size" json:"size"`
	Filename     string         `gorm:"column:filename" json:"filename"`
	DownloadDate time.Time      `gorm:"column:download_date" json:"download_date"`
	Metadata     datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
}

func (Asset) TableName() string { return "assets" }
