// Package remote is the online side of the course pipeline: the backend
// catalog the downloader and data layer read from, and the object storage
// that serves media.
package remote

import (
	"context"
	"strings"

	"github.com/dil-lms/offline-engine/internal/types"
)

// CourseAPI reads and writes the remote course catalog.
type CourseAPI interface {
	// FetchCourseGraph loads a course with its sections, lessons and
	// content items fully nested, ordered by sort order.
	FetchCourseGraph(ctx context.Context, courseID string) (*types.CourseGraph, error)

	// UpsertProgress records a per-lesson progress update for a user.
	UpsertProgress(ctx context.Context, update *types.ProgressUpdate) error

	// ListProgress returns a user's progress rows for one course.
	ListProgress(ctx context.Context, courseID, userID string) ([]*types.Progress, error)
}

// ObjectStorage resolves a storage object path to a fetchable URL.
type ObjectStorage interface {
	CreateSignedURL(ctx context.Context, objectPath string) (string, error)
}

// SignedOrDirectURL signs bare object paths and passes through values that
// are already fetchable (absolute http(s) URLs and in-memory blob URLs).
func SignedOrDirectURL(ctx context.Context, storage ObjectStorage, path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") || strings.HasPrefix(path, "blob:") {
		return path, nil
	}
	return storage.CreateSignedURL(ctx, path)
}
