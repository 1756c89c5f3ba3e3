package storeutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/dil-lms/offline-engine/internal/platform/logger"
	"github.com/dil-lms/offline-engine/internal/store"
	"github.com/dil-lms/offline-engine/internal/types"
)

func newTestUtils(t *testing.T) (*Utils, *store.Store) {
	t.Helper()
	s := store.New(filepath.Join(t.TempDir(), "offline.db"), logger.NewNop())
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return New(s, logger.NewNop()), s
}

func storeCompletedCourse(t *testing.T, s *store.Store, id string, withVideo bool) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()
	course := &types.Course{
		ID:             id,
		Title:          "Course " + id,
		TotalLessons:   1,
		DownloadDate:   now,
		LastAccessed:   now,
		TotalSize:      1024,
		DownloadStatus: types.DownloadStatusCompleted,
	}
	if err := s.StoreCourse(ctx, course); err != nil {
		t.Fatalf("StoreCourse failed: %v", err)
	}
	lesson := &types.Lesson{
		ID:       id + "-l1",
		CourseID: id,
		Title:    "Lesson 1",
		Type:     types.LessonTypeVideo,
		VideoID:  id + "-v1",
	}
	if err := s.StoreLesson(ctx, lesson); err != nil {
		t.Fatalf("StoreLesson failed: %v", err)
	}
	if withVideo {
		video := &types.Video{
			ID:       id + "-v1",
			LessonID: lesson.ID,
			CourseID: id,
			Blob:     []byte("video-bytes"),
			Size:     11,
		}
		if err := s.StoreVideo(ctx, video); err != nil {
			t.Fatalf("StoreVideo failed: %v", err)
		}
	}
}

func TestIsCourseAvailableOffline(t *testing.T) {
	u, s := newTestUtils(t)
	ctx := context.Background()

	if ok, _ := u.IsCourseAvailableOffline(ctx, "missing"); ok {
		t.Fatal("missing course reported available")
	}

	storeCompletedCourse(t, s, "complete", true)
	if ok, err := u.IsCourseAvailableOffline(ctx, "complete"); err != nil || !ok {
		t.Fatalf("complete course: ok=%v err=%v", ok, err)
	}

	// A completed course missing its video blob is not truly available.
	storeCompletedCourse(t, s, "gappy", false)
	if ok, _ := u.IsCourseAvailableOffline(ctx, "gappy"); ok {
		t.Fatal("course with missing video blob reported available")
	}

	// Paused download is never available.
	paused := &types.Course{ID: "paused", Title: "P", DownloadStatus: types.DownloadStatusPaused, DownloadDate: time.Now(), LastAccessed: time.Now()}
	if err := s.StoreCourse(ctx, paused); err != nil {
		t.Fatalf("StoreCourse failed: %v", err)
	}
	if ok, _ := u.IsCourseAvailableOffline(ctx, "paused"); ok {
		t.Fatal("paused course reported available")
	}
}

func TestGetStorageInfoSortsByAccess(t *testing.T) {
	u, s := newTestUtils(t)
	ctx := context.Background()

	older := &types.Course{ID: "older", Title: "A", TotalSize: 100, LastAccessed: time.Now().Add(-time.Hour), DownloadDate: time.Now(), DownloadStatus: types.DownloadStatusCompleted}
	newer := &types.Course{ID: "newer", Title: "B", TotalSize: 200, LastAccessed: time.Now(), DownloadDate: time.Now(), DownloadStatus: types.DownloadStatusCompleted}
	if err := s.StoreCourse(ctx, older); err != nil {
		t.Fatalf("StoreCourse failed: %v", err)
	}
	if err := s.StoreCourse(ctx, newer); err != nil {
		t.Fatalf("StoreCourse failed: %v", err)
	}

	info, err := u.GetStorageInfo(ctx)
	if err != nil {
		t.Fatalf("GetStorageInfo failed: %v", err)
	}
	if len(info.Courses) != 2 {
		t.Fatalf("expected 2 courses, got %d", len(info.Courses))
	}
	if info.Courses[0].ID != "newer" {
		t.Fatalf("most recently accessed course must come first, got %s", info.Courses[0].ID)
	}
	if info.TotalUsed != 300 {
		t.Fatalf("TotalUsed = %d, want 300", info.TotalUsed)
	}
	if info.Courses[1].SizeFormatted != "100 Bytes" {
		t.Fatalf("SizeFormatted = %q", info.Courses[1].SizeFormatted)
	}
}

func TestGetCourseStatsCountsByStatus(t *testing.T) {
	u, s := newTestUtils(t)
	ctx := context.Background()
	now := time.Now()

	storeCompletedCourse(t, s, "done", true)
	// Completed but missing its video blob: unavailable offline, yet the
	// status aggregate still counts it as completed.
	storeCompletedCourse(t, s, "gappy", false)
	others := []*types.Course{
		{ID: "active", Title: "A", DownloadStatus: types.DownloadStatusDownloading, DownloadDate: now, LastAccessed: now, TotalSize: 10},
		{ID: "paused", Title: "P", DownloadStatus: types.DownloadStatusPaused, DownloadDate: now, LastAccessed: now, TotalSize: 20},
		{ID: "broken", Title: "B", DownloadStatus: types.DownloadStatusError, DownloadDate: now, LastAccessed: now},
	}
	for _, c := range others {
		if err := s.StoreCourse(ctx, c); err != nil {
			t.Fatalf("StoreCourse failed: %v", err)
		}
	}

	stats, err := u.GetCourseStats(ctx)
	if err != nil {
		t.Fatalf("GetCourseStats failed: %v", err)
	}
	if stats.TotalCourses != 5 {
		t.Fatalf("TotalCourses = %d", stats.TotalCourses)
	}
	if stats.CompletedCourses != 2 {
		t.Fatalf("CompletedCourses = %d, want 2 (missing blobs must not demote a completed course)", stats.CompletedCourses)
	}
	if stats.InProgressCourses != 2 || stats.FailedCourses != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.TotalSize != 1024+1024+10+20 {
		t.Fatalf("TotalSize = %d", stats.TotalSize)
	}
}

func TestGetCourseBreakdown(t *testing.T) {
	u, s := newTestUtils(t)
	ctx := context.Background()

	storeCompletedCourse(t, s, "c1", true)
	if err := s.StoreProgress(ctx, &types.Progress{ID: "c1-c1-l1", CourseID: "c1", LessonID: "c1-l1", UserID: "u1", Completed: true}); err != nil {
		t.Fatalf("StoreProgress failed: %v", err)
	}

	breakdown, err := u.GetCourseBreakdown(ctx, "c1")
	if err != nil {
		t.Fatalf("GetCourseBreakdown failed: %v", err)
	}
	if breakdown.LessonCount != 1 || breakdown.VideoCount != 1 || breakdown.ProgressCount != 1 {
		t.Fatalf("breakdown = %+v", breakdown)
	}
	if breakdown.TotalVideoSize != 11 {
		t.Fatalf("TotalVideoSize = %d", breakdown.TotalVideoSize)
	}
	if breakdown.CompletionRate != 100 {
		t.Fatalf("CompletionRate = %v", breakdown.CompletionRate)
	}
}

func TestGetCoursesNeedingAttention(t *testing.T) {
	u, s := newTestUtils(t)
	ctx := context.Background()
	now := time.Now()

	courses := []*types.Course{
		{ID: "failed", Title: "F", DownloadStatus: types.DownloadStatusError, LastAccessed: now, DownloadDate: now},
		{ID: "stale", Title: "S", DownloadStatus: types.DownloadStatusCompleted, LastAccessed: now.Add(-45 * 24 * time.Hour), DownloadDate: now},
		{ID: "paused", Title: "P", DownloadStatus: types.DownloadStatusPaused, LastAccessed: now, DownloadDate: now},
		{ID: "healthy", Title: "H", DownloadStatus: types.DownloadStatusCompleted, LastAccessed: now, DownloadDate: now},
	}
	for _, c := range courses {
		if err := s.StoreCourse(ctx, c); err != nil {
			t.Fatalf("StoreCourse failed: %v", err)
		}
	}

	flagged, err := u.GetCoursesNeedingAttention(ctx)
	if err != nil {
		t.Fatalf("GetCoursesNeedingAttention failed: %v", err)
	}
	reasons := make(map[string]AttentionReason)
	for _, f := range flagged {
		reasons[f.Course.ID] = f.Reason
	}
	if reasons["failed"] != AttentionFailed {
		t.Fatalf("failed course reason = %v", reasons["failed"])
	}
	if reasons["stale"] != AttentionStale {
		t.Fatalf("stale course reason = %v", reasons["stale"])
	}
	if reasons["paused"] != AttentionIncomplete {
		t.Fatalf("paused course reason = %v", reasons["paused"])
	}
	if _, ok := reasons["healthy"]; ok {
		t.Fatal("healthy course flagged")
	}
}

func TestCheckDatabaseHealth(t *testing.T) {
	u, s := newTestUtils(t)
	ctx := context.Background()

	report, err := u.CheckDatabaseHealth(ctx)
	if err != nil {
		t.Fatalf("CheckDatabaseHealth failed: %v", err)
	}
	if !report.Healthy {
		t.Fatalf("empty store should be healthy: %+v", report)
	}

	bad := &types.Course{ID: "bad", Title: "B", DownloadStatus: types.DownloadStatusError, LastAccessed: time.Now(), DownloadDate: time.Now()}
	if err := s.StoreCourse(ctx, bad); err != nil {
		t.Fatalf("StoreCourse failed: %v", err)
	}
	report, err = u.CheckDatabaseHealth(ctx)
	if err != nil {
		t.Fatalf("CheckDatabaseHealth failed: %v", err)
	}
	if report.Healthy || len(report.Issues) == 0 {
		t.Fatalf("failed download must mark store unhealthy: %+v", report)
	}
}

func TestPerformMaintenanceRemovesStaleCourses(t *testing.T) {
	u, s := newTestUtils(t)
	ctx := context.Background()

	stale := &types.Course{ID: "stale", Title: "S", DownloadStatus: types.DownloadStatusCompleted, LastAccessed: time.Now().Add(-60 * 24 * time.Hour), DownloadDate: time.Now(), TotalSize: 500}
	if err := s.StoreCourse(ctx, stale); err != nil {
		t.Fatalf("StoreCourse failed: %v", err)
	}

	result, err := u.PerformMaintenance(ctx)
	if err != nil {
		t.Fatalf("PerformMaintenance failed: %v", err)
	}
	if len(result.DeletedCourses) != 1 || result.DeletedCourses[0] != "stale" {
		t.Fatalf("DeletedCourses = %v", result.DeletedCourses)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if c, _ := s.GetCourse(ctx, "stale"); c != nil {
		t.Fatal("stale course survived maintenance")
	}
}

func TestExportCourseMetadata(t *testing.T) {
	u, s := newTestUtils(t)
	ctx := context.Background()

	storeCompletedCourse(t, s, "c1", true)
	export, err := u.ExportCourseMetadata(ctx, "c1")
	if err != nil {
		t.Fatalf("ExportCourseMetadata failed: %v", err)
	}
	if export.Course.ID != "c1" || len(export.Lessons) != 1 {
		t.Fatalf("export = %+v", export)
	}
	if export.Stats == nil || export.Stats.VideoCount != 1 {
		t.Fatalf("export stats = %+v", export.Stats)
	}

	if _, err := u.ExportCourseMetadata(ctx, "missing"); err == nil {
		t.Fatal("expected error for missing course")
	}
}
