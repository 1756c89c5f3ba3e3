package download

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dil-lms/offline-engine/internal/platform/apperr"
	"github.com/dil-lms/offline-engine/internal/platform/logger"
	"github.com/dil-lms/offline-engine/internal/store"
	"github.com/dil-lms/offline-engine/internal/types"
)

type fakeCatalog struct {
	graph *types.CourseGraph
	err   error
}

func (f *fakeCatalog) FetchCourseGraph(_ context.Context, _ string) (*types.CourseGraph, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.graph, nil
}

func (f *fakeCatalog) UpsertProgress(_ context.Context, _ *types.ProgressUpdate) error {
	return nil
}

func (f *fakeCatalog) ListProgress(_ context.Context, _, _ string) ([]*types.Progress, error) {
	return nil, nil
}

// fakeObjects turns storage paths into URLs on the test media server.
type fakeObjects struct {
	base string
}

func (f *fakeObjects) CreateSignedURL(_ context.Context, objectPath string) (string, error) {
	return f.base + "/" + objectPath, nil
}

func testGraph() *types.CourseGraph {
	return &types.CourseGraph{
		ID:                "course-1",
		Title:             "Intro to Signals",
		EstimatedDuration: 90,
		UpdatedAt:         time.Now(),
		Sections: []types.Section{
			{
				ID:        "sec-1",
				Title:     "Basics",
				SortOrder: 1,
				Lessons: []types.GraphLesson{
					{
						ID:        "lesson-1",
						Title:     "Waves",
						SortOrder: 1,
						Duration:  12,
						ContentItems: []types.ContentItem{
							{ID: "item-v1", Title: "Waves video", Type: types.ContentItemVideo, ContentPath: "videos/v1.mp4", SortOrder: 1},
						},
					},
					{
						ID:        "lesson-2",
						Title:     "Reading",
						SortOrder: 2,
						Duration:  5,
						ContentItems: []types.ContentItem{
							{ID: "item-t1", Title: "Notes", Type: types.ContentItemText, Content: "read this", SortOrder: 1},
							{ID: "item-a1", Title: "worksheet.pdf", Type: types.ContentItemAttachment, ContentPath: "docs/a1.pdf", SortOrder: 2},
						},
					},
				},
			},
		},
	}
}

type mediaServer struct {
	*httptest.Server
	videoHits atomic.Int64
	failVideo atomic.Bool
	videoGate chan struct{} // when set, video requests block until closed
}

func newMediaServer(t *testing.T) *mediaServer {
	t.Helper()
	ms := &mediaServer{}
	ms.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/videos/v1.mp4":
			ms.videoHits.Add(1)
			if ms.failVideo.Load() {
				http.Error(w, "broken object", http.StatusInternalServerError)
				return
			}
			if ms.videoGate != nil {
				select {
				case <-ms.videoGate:
				case <-r.Context().Done():
					return
				}
			}
			w.Header().Set("Content-Type", "video/mp4")
			w.Write([]byte("fake-video-bytes"))
		case "/docs/a1.pdf":
			w.Header().Set("Content-Type", "application/pdf")
			w.Write([]byte("fake-pdf"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(ms.Server.Close)
	return ms
}

func newTestService(t *testing.T, catalog *fakeCatalog, base string) (*Service, *store.Store) {
	t.Helper()
	st := store.New(filepath.Join(t.TempDir(), "offline.db"), logger.NewNop())
	t.Cleanup(func() { st.Close() })
	svc := New(st, catalog, &fakeObjects{base: base}, logger.NewNop())
	return svc, st
}

func TestDownloadCourseHappyPath(t *testing.T) {
	ms := newMediaServer(t)
	svc, st := newTestService(t, &fakeCatalog{graph: testGraph()}, ms.URL)
	ctx := context.Background()

	var mu sync.Mutex
	var ticks []ProgressUpdate
	opts := DefaultOptions()
	opts.OnProgress = func(u ProgressUpdate) {
		mu.Lock()
		ticks = append(ticks, u)
		mu.Unlock()
	}

	result, err := svc.DownloadCourse(ctx, "course-1", opts)
	if err != nil {
		t.Fatalf("DownloadCourse failed: %v", err)
	}
	if !result.Success || result.Canceled {
		t.Fatalf("result = %+v", result)
	}
	if !result.Details.Metadata || result.Details.Lessons != 2 || result.Details.Videos != 1 || result.Details.Assets != 1 {
		t.Fatalf("details = %+v", result.Details)
	}
	// Total size covers the media blobs plus the serialized course and
	// lesson rows.
	blobSize := int64(len("fake-video-bytes") + len("fake-pdf"))
	if result.TotalSize <= blobSize {
		t.Fatalf("TotalSize = %d, want > %d (metadata not counted)", result.TotalSize, blobSize)
	}

	course, err := st.GetCourse(ctx, "course-1")
	if err != nil || course == nil {
		t.Fatalf("GetCourse: %v %v", course, err)
	}
	if course.DownloadStatus != types.DownloadStatusCompleted || course.DownloadProgress != 100 {
		t.Fatalf("course status=%s progress=%v", course.DownloadStatus, course.DownloadProgress)
	}
	if course.TotalSize != result.TotalSize || course.TotalLessons != 2 {
		t.Fatalf("course totalSize=%d totalLessons=%d", course.TotalSize, course.TotalLessons)
	}

	lesson, _ := st.GetLesson(ctx, "lesson-1")
	if lesson == nil || lesson.Type != types.LessonTypeVideo || lesson.VideoID != "item-v1" {
		t.Fatalf("lesson-1 = %+v", lesson)
	}
	video, _ := st.GetVideo(ctx, "item-v1")
	if video == nil || string(video.Blob) != "fake-video-bytes" || video.Format != "mp4" {
		t.Fatalf("video = %+v", video)
	}
	asset, _ := st.GetAsset(ctx, "item-a1")
	if asset == nil || asset.Type != types.AssetTypeDocument || asset.Filename != "worksheet.pdf" {
		t.Fatalf("asset = %+v", asset)
	}

	// Progress ticks never regress and end at 100.
	mu.Lock()
	defer mu.Unlock()
	if len(ticks) == 0 {
		t.Fatal("no progress reported")
	}
	last := -1.0
	phases := make(map[Phase]bool)
	for _, tick := range ticks {
		if tick.Progress < last {
			t.Fatalf("progress regressed: %v after %v", tick.Progress, last)
		}
		last = tick.Progress
		phases[tick.Phase] = true
	}
	if last != 100 {
		t.Fatalf("final progress = %v", last)
	}
	for _, phase := range []Phase{PhaseMetadata, PhaseLessons, PhaseVideos, PhaseAssets, PhaseFinalizing} {
		if !phases[phase] {
			t.Fatalf("phase %s never reported", phase)
		}
	}
}

func TestTextOnlyCourseReportsStoredSize(t *testing.T) {
	graph := &types.CourseGraph{
		ID:        "course-2",
		Title:     "Reading List",
		UpdatedAt: time.Now(),
		Sections: []types.Section{
			{
				ID:        "sec-1",
				Title:     "Texts",
				SortOrder: 1,
				Lessons: []types.GraphLesson{
					{
						ID:        "lesson-1",
						Title:     "Essay",
						SortOrder: 1,
						ContentItems: []types.ContentItem{
							{ID: "item-t1", Title: "Essay", Type: types.ContentItemText, Content: "long text", SortOrder: 1},
						},
					},
				},
			},
		},
	}
	svc, st := newTestService(t, &fakeCatalog{graph: graph}, "http://unused")
	ctx := context.Background()

	result, err := svc.DownloadCourse(ctx, "course-2", DefaultOptions())
	if err != nil {
		t.Fatalf("DownloadCourse failed: %v", err)
	}
	if !result.Success {
		t.Fatalf("result = %+v", result)
	}
	if result.TotalSize <= 0 {
		t.Fatalf("TotalSize = %d, want > 0 for a course with no media", result.TotalSize)
	}

	course, _ := st.GetCourse(ctx, "course-2")
	if course.DownloadStatus != types.DownloadStatusCompleted || course.TotalSize != result.TotalSize {
		t.Fatalf("course status=%s totalSize=%d", course.DownloadStatus, course.TotalSize)
	}
}

func TestDownloadCourseAlreadyInProgress(t *testing.T) {
	ms := newMediaServer(t)
	svc, st := newTestService(t, &fakeCatalog{graph: testGraph()}, ms.URL)
	ctx := context.Background()

	existing := &types.Course{
		ID:             "course-1",
		Title:          "Intro to Signals",
		DownloadDate:   time.Now(),
		LastAccessed:   time.Now(),
		DownloadStatus: types.DownloadStatusDownloading,
	}
	if err := st.StoreCourse(ctx, existing); err != nil {
		t.Fatalf("StoreCourse failed: %v", err)
	}

	_, err := svc.DownloadCourse(ctx, "course-1", DefaultOptions())
	if !errors.Is(err, apperr.ErrAlreadyInProgress) {
		t.Fatalf("expected ErrAlreadyInProgress, got %v", err)
	}
}

func TestMetadataFailureCleansUpPartialDownload(t *testing.T) {
	svc, st := newTestService(t, &fakeCatalog{err: errors.New("catalog unreachable")}, "http://unused")
	ctx := context.Background()

	result, err := svc.DownloadCourse(ctx, "course-1", DefaultOptions())
	if err != nil {
		t.Fatalf("DownloadCourse returned transport error: %v", err)
	}
	if result.Success || result.Canceled || result.Error == "" {
		t.Fatalf("result = %+v", result)
	}

	if course, _ := st.GetCourse(ctx, "course-1"); course != nil {
		t.Fatalf("partial course record survived: %+v", course)
	}
}

func TestVideoFailureSkipsItem(t *testing.T) {
	ms := newMediaServer(t)
	ms.failVideo.Store(true)
	svc, st := newTestService(t, &fakeCatalog{graph: testGraph()}, ms.URL)
	ctx := context.Background()

	result, err := svc.DownloadCourse(ctx, "course-1", DefaultOptions())
	if err != nil {
		t.Fatalf("DownloadCourse failed: %v", err)
	}
	if !result.Success {
		t.Fatalf("a broken video must not sink the download: %+v", result)
	}
	if result.Details.Videos != 0 || result.Details.Skipped == 0 {
		t.Fatalf("details = %+v", result.Details)
	}

	course, _ := st.GetCourse(ctx, "course-1")
	if course.DownloadStatus != types.DownloadStatusCompleted {
		t.Fatalf("status = %s", course.DownloadStatus)
	}
}

func TestCancelDownloadMarksPaused(t *testing.T) {
	ms := newMediaServer(t)
	ms.videoGate = make(chan struct{})
	defer close(ms.videoGate)

	svc, st := newTestService(t, &fakeCatalog{graph: testGraph()}, ms.URL)

	results := make(chan *Result, 1)
	go func() {
		result, _ := svc.DownloadCourse(context.Background(), "course-1", DefaultOptions())
		results <- result
	}()

	// Wait until the video fetch is in flight.
	deadline := time.After(5 * time.Second)
	for ms.videoHits.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("video fetch never started")
		case <-time.After(10 * time.Millisecond):
		}
	}

	if err := svc.CancelDownload("course-1"); err != nil {
		t.Fatalf("CancelDownload failed: %v", err)
	}

	var result *Result
	select {
	case result = <-results:
	case <-time.After(5 * time.Second):
		t.Fatal("download did not stop after cancel")
	}
	if !result.Canceled || result.Success {
		t.Fatalf("result = %+v", result)
	}

	course, err := st.GetCourse(context.Background(), "course-1")
	if err != nil || course == nil {
		t.Fatalf("GetCourse: %v %v", course, err)
	}
	if course.DownloadStatus != types.DownloadStatusPaused {
		t.Fatalf("status = %s, want paused", course.DownloadStatus)
	}
	if course.DownloadProgress < 40 || course.DownloadProgress >= 80 {
		t.Fatalf("paused mid-video phase, progress = %v", course.DownloadProgress)
	}

	if err := svc.CancelDownload("course-1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("cancel with no active download: %v", err)
	}
}

func TestResumeSkipsStoredMedia(t *testing.T) {
	ms := newMediaServer(t)
	svc, st := newTestService(t, &fakeCatalog{graph: testGraph()}, ms.URL)
	ctx := context.Background()

	paused := &types.Course{
		ID:               "course-1",
		Title:            "Intro to Signals",
		DownloadDate:     time.Now(),
		LastAccessed:     time.Now(),
		DownloadStatus:   types.DownloadStatusPaused,
		DownloadProgress: 40,
	}
	if err := st.StoreCourse(ctx, paused); err != nil {
		t.Fatalf("StoreCourse failed: %v", err)
	}
	// The video already made it down before the pause.
	video := &types.Video{ID: "item-v1", LessonID: "lesson-1", CourseID: "course-1", Blob: []byte("old-bytes"), Size: 9}
	if err := st.StoreVideo(ctx, video); err != nil {
		t.Fatalf("StoreVideo failed: %v", err)
	}

	result, err := svc.ResumeDownload(ctx, "course-1", DefaultOptions())
	if err != nil {
		t.Fatalf("ResumeDownload failed: %v", err)
	}
	if !result.Success {
		t.Fatalf("result = %+v", result)
	}
	if ms.videoHits.Load() != 0 {
		t.Fatalf("stored video was re-fetched %d times", ms.videoHits.Load())
	}
	if result.Details.Skipped == 0 {
		t.Fatalf("expected skipped media, details = %+v", result.Details)
	}

	course, _ := st.GetCourse(ctx, "course-1")
	if course.DownloadStatus != types.DownloadStatusCompleted || course.DownloadProgress != 100 {
		t.Fatalf("course after resume: status=%s progress=%v", course.DownloadStatus, course.DownloadProgress)
	}
	got, _ := st.GetVideo(ctx, "item-v1")
	if string(got.Blob) != "old-bytes" {
		t.Fatal("resume overwrote the stored video")
	}
}

func TestResumeRequiresPausedCourse(t *testing.T) {
	ms := newMediaServer(t)
	svc, st := newTestService(t, &fakeCatalog{graph: testGraph()}, ms.URL)
	ctx := context.Background()

	if _, err := svc.ResumeDownload(ctx, "course-1", DefaultOptions()); !errors.Is(err, apperr.ErrNoPausedDownload) {
		t.Fatalf("resume of unknown course: %v", err)
	}

	done := &types.Course{ID: "course-1", Title: "T", DownloadDate: time.Now(), LastAccessed: time.Now(), DownloadStatus: types.DownloadStatusCompleted}
	if err := st.StoreCourse(ctx, done); err != nil {
		t.Fatalf("StoreCourse failed: %v", err)
	}
	if _, err := svc.ResumeDownload(ctx, "course-1", DefaultOptions()); !errors.Is(err, apperr.ErrNoPausedDownload) {
		t.Fatalf("resume of completed course: %v", err)
	}
}

func TestEstimateDownloadSize(t *testing.T) {
	ms := newMediaServer(t)
	svc, _ := newTestService(t, &fakeCatalog{graph: testGraph()}, ms.URL)
	ctx := context.Background()

	// 17 minutes of video, one attachment.
	want := int64(estimateBaseSize) + 17*int64(estimatePerMinute) + int64(estimatePerAsset)
	if got := svc.EstimateDownloadSize(ctx, "course-1"); got != want {
		t.Fatalf("estimate = %d, want %d", got, want)
	}
}

func TestEstimateFallsBackWhenCatalogUnavailable(t *testing.T) {
	svc, _ := newTestService(t, &fakeCatalog{err: errors.New("offline")}, "http://unused")
	if got := svc.EstimateDownloadSize(context.Background(), "course-1"); got != estimateFallbackSize {
		t.Fatalf("estimate = %d, want fallback %d", got, estimateFallbackSize)
	}
}

func TestDownloadProgressForUnknownCourse(t *testing.T) {
	ms := newMediaServer(t)
	svc, _ := newTestService(t, &fakeCatalog{graph: testGraph()}, ms.URL)

	progress, status, err := svc.GetDownloadProgress(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetDownloadProgress failed: %v", err)
	}
	if progress != 0 || status != "" {
		t.Fatalf("progress=%v status=%q", progress, status)
	}
}
