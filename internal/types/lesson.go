package types

import (
	"encoding/json"

	"gorm.io/datatypes"
)

type LessonType string

const (
	LessonTypeVideo      LessonType = "video"
	LessonTypeText       LessonType = "text"
	LessonTypeQuiz       LessonType = "quiz"
	LessonTypeAssignment LessonType = "assignment"
)

// Lesson is a flattened lesson row. VideoID, when set, equals the id of the
// lesson's first video content item; videos are stored under that same id,
// and other components rely on the equivalence.
type Lesson struct {
	ID           string         `gorm:"primaryKey" json:"id"`
	CourseID     string         `gorm:"column:course_id;index;not null" json:"course_id"`
	Title        string         `gorm:"column:title;not null" json:"title"`
	Description  string         `gorm:"column:description" json:"description,omitempty"`
	Content      string         `gorm:"column:content" json:"content,omitempty"`
	SortOrder    int            `gorm:"column:sort_order;index" json:"order"`
	Duration     int            `gorm:"column:duration" json:"duration,omitempty"`
	Type         LessonType     `gorm:"column:type;index" json:"type"`
	VideoID      string         `gorm:"column:video_id" json:"video_id,omitempty"`
	AssetIDs     datatypes.JSON `gorm:"column:asset_ids" json:"asset_ids,omitempty"`
	ContentItems datatypes.JSON `gorm:"column:content_items" json:"content_items,omitempty"`
	Metadata     datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
}

func (Lesson) TableName() string { return "lessons" }

func (l *Lesson) Items() ([]ContentItem, error) {
	if len(l.ContentItems) == 0 {
		return nil, nil
	}
	var items []ContentItem
	if err := json.Unmarshal(l.ContentItems, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (l *Lesson) SetItems(items []ContentItem) error {
	raw, err := json.Marshal(items)
	if err != nil {
		return err
	}
	l.ContentItems = raw
	return nil
}

func (l *Lesson) AssetIDList() []string {
	if len(l.AssetIDs) == 0 {
		return nil
	}
	var ids []string
	if err := json.Unmarshal(l.AssetIDs, &ids); err != nil {
		return nil
	}
	return ids
}

func (l *Lesson) SetAssetIDs(ids []string) error {
	raw, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	l.AssetIDs = raw
	return nil
}
