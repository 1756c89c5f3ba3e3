package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dil-lms/offline-engine/internal/types"
)

func (s *Store) StoreLesson(ctx context.Context, lesson *types.Lesson) error {
	db, err := s.handle(ctx)
	if err != nil {
		return err
	}
	if err := db.Clauses(clause.OnConflict{UpdateAll: true}).Create(lesson).Error; err != nil {
		return fmt.Errorf("store lesson %s: %w", lesson.ID, err)
	}
	return nil
}

func (s *Store) GetLesson(ctx context.Context, lessonID string) (*types.Lesson, error) {
	db, err := s.handle(ctx)
	if err != nil {
		return nil, err
	}
	var lesson types.Lesson
	if err := db.First(&lesson, "id = ?", lessonID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get lesson %s: %w", lessonID, err)
	}
	return &lesson, nil
}

// GetLessonsByCourse returns the course's lessons ordered by sort key.
func (s *Store) GetLessonsByCourse(ctx context.Context, courseID string) ([]*types.Lesson, error) {
	db, err := s.handle(ctx)
	if err != nil {
		return nil, err
	}
	var lessons []*types.Lesson
	if err := db.
		Where("course_id = ?", courseID).
		Order("sort_order").
		Find(&lessons).Error; err != nil {
		return nil, fmt.Errorf("list lessons for course %s: %w", courseID, err)
	}
	return lessons, nil
}
