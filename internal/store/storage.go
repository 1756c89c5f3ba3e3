package store

import (
	"context"
	"fmt"
	"os"
	"time"
)

type StorageUsage struct {
	Used      int64 `json:"used"`
	Available int64 `json:"available"`
	Quota     int64 `json:"quota"`
}

// GetStorageUsage reports used/available/quota bytes. It prefers the actual
// database file size; for non-file databases it falls back to summing course
// totalSize, which undercounts but never blocks.
func (s *Store) GetStorageUsage(ctx context.Context) (StorageUsage, error) {
	if info, err := os.Stat(s.path); err == nil {
		used := info.Size()
		return StorageUsage{
			Used:      used,
			Available: MaxTotalSize - used,
			Quota:     MaxTotalSize,
		}, nil
	}

	courses, err := s.GetAllCourses(ctx)
	if err != nil {
		return StorageUsage{}, fmt.Errorf("estimate storage usage: %w", err)
	}
	var used int64
	for _, c := range courses {
		used += c.TotalSize
	}
	return StorageUsage{
		Used:      used,
		Available: MaxTotalSize - used,
		Quota:     MaxTotalSize,
	}, nil
}

// HasSpaceForDownload reports whether sizeBytes fits in the remaining quota.
func (s *Store) HasSpaceForDownload(ctx context.Context, sizeBytes int64) (bool, error) {
	usage, err := s.GetStorageUsage(ctx)
	if err != nil {
		return false, err
	}
	return usage.Available >= sizeBytes, nil
}

// CleanupOldCourses cascade-deletes every course not accessed in the last
// daysOld days and returns the removed course ids.
func (s *Store) CleanupOldCourses(ctx context.Context, daysOld int) ([]string, error) {
	if daysOld <= 0 {
		daysOld = AutoCleanupDays
	}
	cutoff := time.Now().Add(-time.Duration(daysOld) * 24 * time.Hour)

	courses, err := s.GetAllCourses(ctx)
	if err != nil {
		return nil, err
	}

	deleted := []string{}
	for _, course := range courses {
		if course.LastAccessed.Before(cutoff) {
			if err := s.DeleteCourse(ctx, course.ID); err != nil {
				return deleted, err
			}
			deleted = append(deleted, course.ID)
		}
	}
	if len(deleted) > 0 {
		s.log.Info("Cleaned up old courses", "count", len(deleted), "days_old", daysOld)
	}
	return deleted, nil
}
