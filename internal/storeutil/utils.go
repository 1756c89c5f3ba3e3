// Package storeutil layers reporting, health and maintenance helpers on top
// of the offline store without adding any state of its own.
package storeutil

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dil-lms/offline-engine/internal/platform/logger"
	"github.com/dil-lms/offline-engine/internal/store"
	"github.com/dil-lms/offline-engine/internal/types"
)

type Utils struct {
	store *store.Store
	log   *logger.Logger
}

func New(s *store.Store, baseLog *logger.Logger) *Utils {
	return &Utils{
		store: s,
		log:   baseLog.With("component", "storeutil"),
	}
}

// CourseSummary is a storage-oriented view of one downloaded course.
type CourseSummary struct {
	ID             string               `json:"id"`
	Title          string               `json:"title"`
	Size           int64                `json:"size"`
	SizeFormatted  string               `json:"sizeFormatted"`
	DownloadDate   time.Time            `json:"downloadDate"`
	LastAccessed   time.Time            `json:"lastAccessed"`
	DownloadStatus types.DownloadStatus `json:"downloadStatus"`
	Progress       float64              `json:"progress"`
}

// StorageInfo aggregates per-course sizes and overall quota usage.
type StorageInfo struct {
	Courses            []CourseSummary    `json:"courses"`
	TotalUsed          int64              `json:"totalUsed"`
	TotalUsedFormatted string             `json:"totalUsedFormatted"`
	Usage              store.StorageUsage `json:"usage"`
	UsagePercent       float64            `json:"usagePercent"`
}

// GetStorageInfo lists all stored courses, most recently accessed first,
// together with quota usage.
func (u *Utils) GetStorageInfo(ctx context.Context) (*StorageInfo, error) {
	courses, err := u.store.GetAllCourses(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage info: %w", err)
	}
	usage, err := u.store.GetStorageUsage(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage info: %w", err)
	}

	summaries := make([]CourseSummary, 0, len(courses))
	var total int64
	for _, c := range courses {
		total += c.TotalSize
		summaries = append(summaries, CourseSummary{
			ID:             c.ID,
			Title:          c.Title,
			Size:           c.TotalSize,
			SizeFormatted:  FormatBytes(c.TotalSize, 2),
			DownloadDate:   c.DownloadDate,
			LastAccessed:   c.LastAccessed,
			DownloadStatus: c.DownloadStatus,
			Progress:       c.DownloadProgress,
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].LastAccessed.After(summaries[j].LastAccessed)
	})

	var percent float64
	if usage.Quota > 0 {
		percent = float64(usage.Used) / float64(usage.Quota) * 100
	}
	return &StorageInfo{
		Courses:            summaries,
		TotalUsed:          total,
		TotalUsedFormatted: FormatBytes(total, 2),
		Usage:              usage,
		UsagePercent:       percent,
	}, nil
}

// CourseStats aggregates every stored course by download status. A course
// counts under its status alone; offline availability (missing blobs) does
// not demote a completed course here.
type CourseStats struct {
	TotalCourses       int    `json:"totalCourses"`
	CompletedCourses   int    `json:"completedCourses"`
	InProgressCourses  int    `json:"inProgressCourses"`
	FailedCourses      int    `json:"failedCourses"`
	TotalSize          int64  `json:"totalSize"`
	TotalSizeFormatted string `json:"totalSizeFormatted"`
}

func (u *Utils) GetCourseStats(ctx context.Context) (*CourseStats, error) {
	courses, err := u.store.GetAllCourses(ctx)
	if err != nil {
		return nil, fmt.Errorf("course stats: %w", err)
	}

	stats := &CourseStats{TotalCourses: len(courses)}
	for _, c := range courses {
		stats.TotalSize += c.TotalSize
		switch c.DownloadStatus {
		case types.DownloadStatusCompleted:
			stats.CompletedCourses++
		case types.DownloadStatusDownloading, types.DownloadStatusPaused:
			stats.InProgressCourses++
		case types.DownloadStatusError:
			stats.FailedCourses++
		}
	}
	stats.TotalSizeFormatted = FormatBytes(stats.TotalSize, 2)
	return stats, nil
}

// CourseBreakdown counts the stored records belonging to one course.
type CourseBreakdown struct {
	CourseID       string  `json:"courseId"`
	LessonCount    int     `json:"lessonCount"`
	VideoCount     int     `json:"videoCount"`
	AssetCount     int     `json:"assetCount"`
	ProgressCount  int     `json:"progressCount"`
	TotalVideoSize int64   `json:"totalVideoSize"`
	TotalAssetSize int64   `json:"totalAssetSize"`
	CompletedCount int     `json:"completedCount"`
	CompletionRate float64 `json:"completionRate"`
}

func (u *Utils) GetCourseBreakdown(ctx context.Context, courseID string) (*CourseBreakdown, error) {
	lessons, err := u.store.GetLessonsByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	videos, err := u.store.GetVideosByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	assets, err := u.store.GetAssetsByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	progress, err := u.store.GetProgressByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}

	stats := &CourseBreakdown{
		CourseID:      courseID,
		LessonCount:   len(lessons),
		VideoCount:    len(videos),
		AssetCount:    len(assets),
		ProgressCount: len(progress),
	}
	for _, v := range videos {
		stats.TotalVideoSize += v.Size
	}
	for _, a := range assets {
		stats.TotalAssetSize += a.Size
	}
	for _, p := range progress {
		if p.Completed {
			stats.CompletedCount++
		}
	}
	if len(lessons) > 0 {
		stats.CompletionRate = float64(stats.CompletedCount) / float64(len(lessons)) * 100
	}
	return stats, nil
}

// IsCourseAvailableOffline reports whether a course can be served with no
// network at all: the download completed, at least one lesson is stored, and
// every video lesson has its video blob present.
func (u *Utils) IsCourseAvailableOffline(ctx context.Context, courseID string) (bool, error) {
	course, err := u.store.GetCourse(ctx, courseID)
	if err != nil {
		return false, err
	}
	if course == nil || course.DownloadStatus != types.DownloadStatusCompleted {
		return false, nil
	}

	lessons, err := u.store.GetLessonsByCourse(ctx, courseID)
	if err != nil {
		return false, err
	}
	if len(lessons) == 0 {
		return false, nil
	}

	for _, lesson := range lessons {
		if lesson.Type != types.LessonTypeVideo || lesson.VideoID == "" {
			continue
		}
		video, err := u.store.GetVideo(ctx, lesson.VideoID)
		if err != nil {
			return false, err
		}
		if video == nil {
			u.log.Warn("Course missing video blob", "course_id", courseID, "lesson_id", lesson.ID, "video_id", lesson.VideoID)
			return false, nil
		}
	}
	return true, nil
}

// GetCourseDownloadProgress returns the persisted progress percentage, or 0
// for unknown courses.
func (u *Utils) GetCourseDownloadProgress(ctx context.Context, courseID string) (float64, error) {
	course, err := u.store.GetCourse(ctx, courseID)
	if err != nil {
		return 0, err
	}
	if course == nil {
		return 0, nil
	}
	return course.DownloadProgress, nil
}

// HealthReport summarizes store condition for a diagnostics surface.
type HealthReport struct {
	Healthy      bool     `json:"healthy"`
	UsagePercent float64  `json:"usagePercent"`
	CourseCount  int      `json:"courseCount"`
	Issues       []string `json:"issues"`
	Advisories   []string `json:"advisories"`
}

// CheckDatabaseHealth flags quota pressure, failed downloads and stale
// courses. Only hard conditions mark the store unhealthy; stale courses are
// advisory.
func (u *Utils) CheckDatabaseHealth(ctx context.Context) (*HealthReport, error) {
	usage, err := u.store.GetStorageUsage(ctx)
	if err != nil {
		return nil, fmt.Errorf("health check: %w", err)
	}
	courses, err := u.store.GetAllCourses(ctx)
	if err != nil {
		return nil, fmt.Errorf("health check: %w", err)
	}

	report := &HealthReport{
		Healthy:     true,
		CourseCount: len(courses),
		Issues:      []string{},
		Advisories:  []string{},
	}
	if usage.Quota > 0 {
		report.UsagePercent = float64(usage.Used) / float64(usage.Quota) * 100
	}

	if float64(usage.Used) > float64(usage.Quota)*store.CleanupThreshold {
		report.Healthy = false
		report.Issues = append(report.Issues, fmt.Sprintf("storage usage above %.0f%% (%s of %s)",
			store.CleanupThreshold*100, FormatBytes(usage.Used, 2), FormatBytes(usage.Quota, 2)))
	}

	staleCutoff := time.Now().Add(-time.Duration(store.AutoCleanupDays) * 24 * time.Hour)
	for _, c := range courses {
		if c.DownloadStatus == types.DownloadStatusError {
			report.Healthy = false
			report.Issues = append(report.Issues, fmt.Sprintf("course %s has a failed download", c.ID))
		}
		if c.LastAccessed.Before(staleCutoff) {
			report.Advisories = append(report.Advisories, fmt.Sprintf("course %s not accessed in %d days", c.ID, store.AutoCleanupDays))
		}
	}
	return report, nil
}

// MaintenanceResult reports what a maintenance pass accomplished.
type MaintenanceResult struct {
	DeletedCourses []string `json:"deletedCourses"`
	ReclaimedBytes int64    `json:"reclaimedBytes"`
	Errors         []string `json:"errors"`
}

// PerformMaintenance removes stale courses and reports reclaimed space. Each
// step is best effort; failures are collected rather than aborting the pass.
func (u *Utils) PerformMaintenance(ctx context.Context) (*MaintenanceResult, error) {
	result := &MaintenanceResult{DeletedCourses: []string{}, Errors: []string{}}

	before, err := u.store.GetStorageUsage(ctx)
	if err != nil {
		return nil, fmt.Errorf("maintenance: %w", err)
	}

	deleted, err := u.store.CleanupOldCourses(ctx, store.AutoCleanupDays)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
	}
	result.DeletedCourses = append(result.DeletedCourses, deleted...)

	after, err := u.store.GetStorageUsage(ctx)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
	} else if before.Used > after.Used {
		result.ReclaimedBytes = before.Used - after.Used
	}

	u.log.Info("Maintenance pass finished",
		"deleted", len(result.DeletedCourses),
		"reclaimed", FormatBytes(result.ReclaimedBytes, 2),
		"errors", len(result.Errors))
	return result, nil
}

// AttentionReason explains why a course appears in GetCoursesNeedingAttention.
type AttentionReason string

const (
	AttentionFailed     AttentionReason = "failed"
	AttentionStale      AttentionReason = "stale"
	AttentionIncomplete AttentionReason = "incomplete"
)

type CourseAttention struct {
	Course *types.Course   `json:"course"`
	Reason AttentionReason `json:"reason"`
}

// GetCoursesNeedingAttention returns courses a caller should surface to the
// user: failed downloads, stale entries and interrupted downloads.
func (u *Utils) GetCoursesNeedingAttention(ctx context.Context) ([]CourseAttention, error) {
	courses, err := u.store.GetAllCourses(ctx)
	if err != nil {
		return nil, err
	}

	staleCutoff := time.Now().Add(-time.Duration(store.AutoCleanupDays) * 24 * time.Hour)
	flagged := []CourseAttention{}
	for _, c := range courses {
		switch {
		case c.DownloadStatus == types.DownloadStatusError:
			flagged = append(flagged, CourseAttention{Course: c, Reason: AttentionFailed})
		case c.LastAccessed.Before(staleCutoff):
			flagged = append(flagged, CourseAttention{Course: c, Reason: AttentionStale})
		case c.DownloadStatus == types.DownloadStatusPaused || c.DownloadStatus == types.DownloadStatusDownloading:
			flagged = append(flagged, CourseAttention{Course: c, Reason: AttentionIncomplete})
		}
	}
	return flagged, nil
}

// CourseExport is the blob-free metadata snapshot of a stored course.
type CourseExport struct {
	Course     *types.Course     `json:"course"`
	Lessons    []*types.Lesson   `json:"lessons"`
	Progress   []*types.Progress `json:"progress"`
	Stats      *CourseBreakdown  `json:"stats"`
	ExportedAt time.Time         `json:"exportedAt"`
}

// ExportCourseMetadata collects everything about a course except media blobs,
// suitable for diagnostics or transfer to another device.
func (u *Utils) ExportCourseMetadata(ctx context.Context, courseID string) (*CourseExport, error) {
	course, err := u.store.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if course == nil {
		return nil, fmt.Errorf("export course %s: not found", courseID)
	}
	lessons, err := u.store.GetLessonsByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	progress, err := u.store.GetProgressByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	stats, err := u.GetCourseBreakdown(ctx, courseID)
	if err != nil {
		return nil, err
	}
	return &CourseExport{
		Course:     course,
		Lessons:    lessons,
		Progress:   progress,
		Stats:      stats,
		ExportedAt: time.Now(),
	}, nil
}
