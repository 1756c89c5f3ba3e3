package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dil-lms/offline-engine/internal/platform/apperr"
	"github.com/dil-lms/offline-engine/internal/types"
)

// StoreCourse upserts a course by primary key. The write fully replaces any
// existing row; nothing is merged.
func (s *Store) StoreCourse(ctx context.Context, course *types.Course) error {
	db, err := s.handle(ctx)
	if err != nil {
		return err
	}
	if err := db.Clauses(clause.OnConflict{UpdateAll: true}).Create(course).Error; err != nil {
		return fmt.Errorf("store course %s: %w", course.ID, err)
	}
	s.log.Debug("Course stored", "course_id", course.ID, "title", course.Title)
	return nil
}

// GetCourse returns nil without error when the course does not exist.
func (s *Store) GetCourse(ctx context.Context, courseID string) (*types.Course, error) {
	db, err := s.handle(ctx)
	if err != nil {
		return nil, err
	}
	var course types.Course
	if err := db.First(&course, "id = ?", courseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get course %s: %w", courseID, err)
	}
	return &course, nil
}

func (s *Store) GetAllCourses(ctx context.Context) ([]*types.Course, error) {
	db, err := s.handle(ctx)
	if err != nil {
		return nil, err
	}
	var courses []*types.Course
	if err := db.Find(&courses).Error; err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

// UpdateCourseProgress sets the download progress and, optionally, the
// status. Transitioning to completed forces progress to 100 so the
// status/progress invariant holds.
func (s *Store) UpdateCourseProgress(ctx context.Context, courseID string, progress float64, status types.DownloadStatus) error {
	course, err := s.GetCourse(ctx, courseID)
	if err != nil {
		return err
	}
	if course == nil {
		return fmt.Errorf("course %s: %w", courseID, apperr.ErrNotFound)
	}

	course.DownloadProgress = progress
	if status != "" {
		course.DownloadStatus = status
	}
	if status == types.DownloadStatusCompleted {
		course.DownloadProgress = 100
	}
	return s.StoreCourse(ctx, course)
}

// UpdateCourseAccess bumps lastAccessed to now. Missing course is a no-op.
func (s *Store) UpdateCourseAccess(ctx context.Context, courseID string) error {
	course, err := s.GetCourse(ctx, courseID)
	if err != nil {
		return err
	}
	if course == nil {
		return nil
	}
	course.LastAccessed = time.Now()
	return s.StoreCourse(ctx, course)
}

// DeleteCourse removes the course and every lesson, video, asset and
// progress row owned by it, in one transaction. Either everything goes or
// nothing does.
func (s *Store) DeleteCourse(ctx context.Context, courseID string) error {
	db, err := s.handle(ctx)
	if err != nil {
		return err
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&types.Course{}, "id = ?", courseID).Error; err != nil {
			return err
		}
		if err := tx.Delete(&types.Lesson{}, "course_id = ?", courseID).Error; err != nil {
			return err
		}
		if err := tx.Delete(&types.Video{}, "course_id = ?", courseID).Error; err != nil {
			return err
		}
		if err := tx.Delete(&types.Asset{}, "course_id = ?", courseID).Error; err != nil {
			return err
		}
		if err := tx.Delete(&types.Progress{}, "course_id = ?", courseID).Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete course %s: %w", courseID, err)
	}
	s.log.Debug("Course deleted", "course_id", courseID)
	return nil
}
