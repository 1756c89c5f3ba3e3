package download

import (
	"context"

	"github.com/dil-lms/offline-engine/internal/store"
	"github.com/dil-lms/offline-engine/internal/types"
)

const (
	estimateBaseSize     = 1 << 20       // course metadata and lessons
	estimatePerMinute    = 1 << 20       // compressed video, per minute
	estimatePerAsset     = 2 << 20       // average attachment
	estimateFallbackSize = 500 << 20     // when the remote is unreachable
	defaultLessonMinutes = 10
	defaultCourseMinutes = 60
)

// EstimateDownloadSize predicts the on-disk size of a course before
// downloading it, clamped to the per-course limit. Estimation is best
// effort: if the catalog cannot be reached it returns a conservative
// fallback rather than an error.
func (s *Service) EstimateDownloadSize(ctx context.Context, courseID string) int64 {
	graph, err := s.api.FetchCourseGraph(ctx, courseID)
	if err != nil {
		s.log.Warn("Size estimate falling back to default", "course_id", courseID, "error", err)
		return estimateFallbackSize
	}

	minutes := 0
	assets := 0
	for _, section := range graph.Sections {
		for _, lesson := range section.Lessons {
			if lesson.Duration > 0 {
				minutes += lesson.Duration
			} else {
				minutes += defaultLessonMinutes
			}
			for _, item := range lesson.ContentItems {
				if item.Type == types.ContentItemAttachment {
					assets++
				}
			}
		}
	}
	if minutes == 0 {
		minutes = defaultCourseMinutes
	}
	if graph.ImageURL != "" {
		assets++
	}

	estimate := int64(estimateBaseSize) +
		int64(minutes)*estimatePerMinute +
		int64(assets)*estimatePerAsset
	if estimate > store.MaxCourseSize {
		estimate = store.MaxCourseSize
	}
	return estimate
}
