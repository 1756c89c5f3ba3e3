package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dil-lms/offline-engine/internal/types"
)

func (s *Store) StoreProgress(ctx context.Context, progress *types.Progress) error {
	db, err := s.handle(ctx)
	if err != nil {
		return err
	}
	if err := db.Clauses(clause.OnConflict{UpdateAll: true}).Create(progress).Error; err != nil {
		return fmt.Errorf("store progress %s: %w", progress.ID, err)
	}
	return nil
}

func (s *Store) GetProgress(ctx context.Context, progressID string) (*types.Progress, error) {
	db, err := s.handle(ctx)
	if err != nil {
		return nil, err
	}
	var progress types.Progress
	if err := db.First(&progress, "id = ?", progressID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get progress %s: %w", progressID, err)
	}
	return &progress, nil
}

func (s *Store) GetProgressByCourse(ctx context.Context, courseID string) ([]*types.Progress, error) {
	db, err := s.handle(ctx)
	if err != nil {
		return nil, err
	}
	var rows []*types.Progress
	if err := db.Where("course_id = ?", courseID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list progress for course %s: %w", courseID, err)
	}
	return rows, nil
}
