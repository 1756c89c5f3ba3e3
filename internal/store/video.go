package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dil-lms/offline-engine/internal/types"
)

func (s *Store) StoreVideo(ctx context.Context, video *types.Video) error {
	db, err := s.handle(ctx)
	if err != nil {
		return err
	}
	if err := db.Clauses(clause.OnConflict{UpdateAll: true}).Create(video).Error; err != nil {
		return fmt.Errorf("store video %s: %w", video.ID, err)
	}
	s.log.Debug("Video stored", "video_id", video.ID, "size", video.Size)
	return nil
}

func (s *Store) GetVideo(ctx context.Context, videoID string) (*types.Video, error) {
	db, err := s.handle(ctx)
	if err != nil {
		return nil, err
	}
	var video types.Video
	if err := db.First(&video, "id = ?", videoID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get video %s: %w", videoID, err)
	}
	return &video, nil
}

func (s *Store) GetVideosByLesson(ctx context.Context, lessonID string) ([]*types.Video, error) {
	db, err := s.handle(ctx)
	if err != nil {
		return nil, err
	}
	var videos []*types.Video
	if err := db.Where("lesson_id = ?", lessonID).Find(&videos).Error; err != nil {
		return nil, fmt.Errorf("list videos for lesson %s: %w", lessonID, err)
	}
	return videos, nil
}

func (s *Store) GetVideosByCourse(ctx context.Context, courseID string) ([]*types.Video, error) {
	db, err := s.handle(ctx)
	if err != nil {
		return nil, err
	}
	var videos []*types.Video
	if err := db.Where("course_id = ?", courseID).Find(&videos).Error; err != nil {
		return nil, fmt.Errorf("list videos for course %s: %w", courseID, err)
	}
	return videos, nil
}

func (s *Store) DeleteVideo(ctx context.Context, videoID string) error {
	db, err := s.handle(ctx)
	if err != nil {
		return err
	}
	if err := db.Delete(&types.Video{}, "id = ?", videoID).Error; err != nil {
		return fmt.Errorf("delete video %s: %w", videoID, err)
	}
	return nil
}
