package datalayer

import (
	"time"

	"github.com/dil-lms/offline-engine/internal/types"
)

type DataSource string

const (
	SourceOnline  DataSource = "online"
	SourceOffline DataSource = "offline"
	SourceHybrid  DataSource = "hybrid"
)

// CourseData is the unified course view served to consumers regardless of
// which source produced it.
type CourseData struct {
	ID                 string               `json:"id"`
	Title              string               `json:"title"`
	Subtitle           string               `json:"subtitle,omitempty"`
	Description        string               `json:"description,omitempty"`
	ImageURL           string               `json:"image_url,omitempty"`
	InstructorName     string               `json:"instructor_name,omitempty"`
	TotalLessons       int                  `json:"total_lessons"`
	EstimatedDuration  int                  `json:"estimated_duration,omitempty"`
	DifficultyLevel    string               `json:"difficulty_level,omitempty"`
	Category           string               `json:"category,omitempty"`
	IsOfflineAvailable bool                 `json:"isOfflineAvailable"`
	DownloadStatus     types.DownloadStatus `json:"downloadStatus,omitempty"`
	DownloadProgress   float64              `json:"downloadProgress,omitempty"`
	LastAccessed       time.Time            `json:"lastAccessed,omitempty"`
	Sections           []SectionData        `json:"sections"`
}

type SectionData struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	SortOrder   int          `json:"order"`
	Lessons     []LessonData `json:"lessons"`
}

type LessonData struct {
	ID           string            `json:"id"`
	Title        string            `json:"title"`
	Description  string            `json:"description,omitempty"`
	Content      string            `json:"content,omitempty"`
	SortOrder    int               `json:"order"`
	Duration     int               `json:"duration,omitempty"`
	Completed    bool              `json:"completed"`
	Progress     float64           `json:"progress"`
	LastAccessed time.Time         `json:"lastAccessed,omitempty"`
	ContentItems []ContentItemData `json:"contentItems"`
}

// ContentItemData carries the resolved URL for media: a signed URL when
// served online, a blob URL when served from the local store.
type ContentItemData struct {
	ID               string                `json:"id"`
	Title            string                `json:"title"`
	Type             types.ContentItemType `json:"content_type"`
	ContentPath      string                `json:"content_path,omitempty"`
	URL              string                `json:"signedUrl,omitempty"`
	MimeType         string                `json:"mimeType,omitempty"`
	Content          string                `json:"content,omitempty"`
	SortOrder        int                   `json:"order"`
	Quiz             []types.QuizQuestion  `json:"quiz,omitempty"`
	AvailableOffline bool                  `json:"isAvailableOffline"`
}

// SourceInfo describes which data source a course would be served from.
type SourceInfo struct {
	Source             DataSource `json:"source"`
	IsOnline           bool       `json:"isOnline"`
	IsOfflineAvailable bool       `json:"isOfflineAvailable"`
	PreferOffline      bool       `json:"preferOffline"`
	CanSwitchSource    bool       `json:"canSwitchSource"`
}
