package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dil-lms/offline-engine/internal/types"
)

func (s *Store) StoreAsset(ctx context.Context, asset *types.Asset) error {
	db, err := s.handle(ctx)
	if err != nil {
		return err
	}
	if err := db.Clauses(clause.OnConflict{UpdateAll: true}).Create(asset).Error; err != nil {
		return fmt.Errorf("store asset %s: %w", asset.ID, err)
	}
	return nil
}

func (s *Store) GetAsset(ctx context.Context, assetID string) (*types.Asset, error) {
	db, err := s.handle(ctx)
	if err != nil {
		return nil, err
	}
	var asset types.Asset
	if err := db.First(&asset, "id = ?", assetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get asset %s: %w", assetID, err)
	}
	return &asset, nil
}

func (s *Store) GetAllAssets(ctx context.Context) ([]*types.Asset, error) {
	db, err := s.handle(ctx)
	if err != nil {
		return nil, err
	}
	var assets []*types.Asset
	if err := db.Find(&assets).Error; err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	return assets, nil
}

func (s *Store) GetAssetsByCourse(ctx context.Context, courseID string) ([]*types.Asset, error) {
	db, err := s.handle(ctx)
	if err != nil {
		return nil, err
	}
	var assets []*types.Asset
	if err := db.Where("course_id = ?", courseID).Find(&assets).Error; err != nil {
		return nil, fmt.Errorf("list assets for course %s: %w", courseID, err)
	}
	return assets, nil
}

func (s *Store) GetAssetsByLesson(ctx context.Context, lessonID string) ([]*types.Asset, error) {
	db, err := s.handle(ctx)
	if err != nil {
		return nil, err
	}
	var assets []*types.Asset
	if err := db.Where("lesson_id = ?", lessonID).Find(&assets).Error; err != nil {
		return nil, fmt.Errorf("list assets for lesson %s: %w", lessonID, err)
	}
	return assets, nil
}
