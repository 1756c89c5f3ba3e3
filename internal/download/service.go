// Package download orchestrates pulling a complete course from the remote
// service into the local store: metadata, lessons, video blobs and assets,
// with cancel/resume and phase-weighted progress reporting.
package download

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/dil-lms/offline-engine/internal/platform/apperr"
	"github.com/dil-lms/offline-engine/internal/platform/logger"
	"github.com/dil-lms/offline-engine/internal/remote"
	"github.com/dil-lms/offline-engine/internal/store"
	"github.com/dil-lms/offline-engine/internal/types"
)

type Phase string

const (
	PhaseMetadata   Phase = "metadata"
	PhaseLessons    Phase = "lessons"
	PhaseVideos     Phase = "videos"
	PhaseAssets     Phase = "assets"
	PhaseFinalizing Phase = "finalizing"
)

// Progress weighting per phase. Video progress scales into its window as
// 40 + fraction*40; assets as 80 + fraction*15.
const (
	progressMetadataDone = 20.0
	progressLessonsDone  = 40.0
	progressVideosDone   = 80.0
	progressAssetsDone   = 95.0
	progressComplete     = 100.0
)

const DefaultFetchTimeout = 2 * time.Minute

// ProgressUpdate is one callback tick during a download.
type ProgressUpdate struct {
	CourseID       string  `json:"courseId"`
	Phase          Phase   `json:"phase"`
	Progress       float64 `json:"progress"`
	CurrentItem    string  `json:"currentItem,omitempty"`
	TotalItems     int     `json:"totalItems,omitempty"`
	CompletedItems int     `json:"completedItems,omitempty"`
}

type ProgressFunc func(ProgressUpdate)

// Options tune one download run. The zero value is not useful; start from
// DefaultOptions.
type Options struct {
	VideoQuality  string
	IncludeAssets bool
	Transform     BlobTransform
	FetchTimeout  time.Duration
	OnProgress    ProgressFunc
}

func DefaultOptions() Options {
	return Options{
		VideoQuality:  "720p",
		IncludeAssets: true,
		Transform:     IdentityTransform{},
		FetchTimeout:  DefaultFetchTimeout,
	}
}

// Result reports the outcome of a download or resume run.
type Result struct {
	Success      bool          `json:"success"`
	Canceled     bool          `json:"canceled"`
	CourseID     string        `json:"courseId"`
	TotalSize    int64         `json:"totalSize"`
	DownloadTime time.Duration `json:"downloadTime"`
	Error        string        `json:"error,omitempty"`
	Details      Details       `json:"details"`
}

type Details struct {
	Metadata bool `json:"metadata"`
	Lessons  int  `json:"lessons"`
	Videos   int  `json:"videos"`
	Assets   int  `json:"assets"`
	Skipped  int  `json:"skipped,omitempty"`
}

type Service struct {
	store   *store.Store
	api     remote.CourseAPI
	objects remote.ObjectStorage
	client  *http.Client
	log     *logger.Logger

	mu     sync.Mutex
	active map[string]context.CancelFunc
}

func New(s *store.Store, api remote.CourseAPI, objects remote.ObjectStorage, baseLog *logger.Logger) *Service {
	return &Service{
		store:   s,
		api:     api,
		objects: objects,
		client:  &http.Client{},
		log:     baseLog.With("service", "download"),
		active:  make(map[string]context.CancelFunc),
	}
}

// DownloadCourse runs the full pipeline for one course. A second call for
// the same course while one is running fails with ErrAlreadyInProgress.
// Cancellation marks the course paused and returns a canceled result, not an
// error; any other failure marks the course errored and cleans up partial
// data.
func (s *Service) DownloadCourse(ctx context.Context, courseID string, opts Options) (*Result, error) {
	if opts.Transform == nil {
		opts.Transform = IdentityTransform{}
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}

	existing, err := s.store.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.DownloadStatus == types.DownloadStatusDownloading {
		return nil, fmt.Errorf("course %s: %w", courseID, apperr.ErrAlreadyInProgress)
	}

	estimate := s.EstimateDownloadSize(ctx, courseID)
	ok, err := s.store.HasSpaceForDownload(ctx, estimate)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("course %s needs ~%d bytes: %w", courseID, estimate, apperr.ErrInsufficientStorage)
	}

	runCtx, err := s.register(ctx, courseID)
	if err != nil {
		return nil, err
	}
	defer s.unregister(courseID)

	return s.run(runCtx, courseID, opts, false)
}

// ResumeDownload restarts a paused download. Lessons are refreshed from the
// remote service; videos and assets already stored are skipped.
func (s *Service) ResumeDownload(ctx context.Context, courseID string, opts Options) (*Result, error) {
	if opts.Transform == nil {
		opts.Transform = IdentityTransform{}
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}

	course, err := s.store.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if course == nil || course.DownloadStatus != types.DownloadStatusPaused {
		return nil, fmt.Errorf("course %s: %w", courseID, apperr.ErrNoPausedDownload)
	}

	runCtx, err := s.register(ctx, courseID)
	if err != nil {
		return nil, err
	}
	defer s.unregister(courseID)

	s.log.Info("Resuming download", "course_id", courseID, "progress", course.DownloadProgress)
	return s.run(runCtx, courseID, opts, true)
}

// CancelDownload stops an active download. The pipeline persists the paused
// status with the progress it reached.
func (s *Service) CancelDownload(courseID string) error {
	s.mu.Lock()
	cancel, ok := s.active[courseID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("course %s has no active download: %w", courseID, apperr.ErrNotFound)
	}
	cancel()
	s.log.Info("Cancel requested", "course_id", courseID)
	return nil
}

// GetDownloadProgress returns the persisted progress and status. Unknown
// courses report zero progress and empty status.
func (s *Service) GetDownloadProgress(ctx context.Context, courseID string) (float64, types.DownloadStatus, error) {
	course, err := s.store.GetCourse(ctx, courseID)
	if err != nil {
		return 0, "", err
	}
	if course == nil {
		return 0, "", nil
	}
	return course.DownloadProgress, course.DownloadStatus, nil
}

// ActiveDownloads lists course ids with a download currently running.
func (s *Service) ActiveDownloads() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.active))
	for id := range s.active {
		ids = append(ids, id)
	}
	return ids
}

func (s *Service) register(ctx context.Context, courseID string) (context.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.active[courseID]; ok {
		return nil, fmt.Errorf("course %s: %w", courseID, apperr.ErrAlreadyInProgress)
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.active[courseID] = cancel
	return runCtx, nil
}

func (s *Service) unregister(courseID string) {
	s.mu.Lock()
	if cancel, ok := s.active[courseID]; ok {
		cancel()
		delete(s.active, courseID)
	}
	s.mu.Unlock()
}

// run executes the five phases. It always returns a Result; the error return
// is reserved for failures before the pipeline could take ownership of the
// course record.
func (s *Service) run(ctx context.Context, courseID string, opts Options, resume bool) (*Result, error) {
	started := time.Now()
	result := &Result{CourseID: courseID}

	err := s.pipeline(ctx, courseID, opts, resume, result)
	result.DownloadTime = time.Since(started)

	switch {
	case err == nil:
		result.Success = true
		s.log.Info("Download completed",
			"course_id", courseID,
			"total_size", result.TotalSize,
			"duration_ms", result.DownloadTime.Milliseconds())
	case errors.Is(err, context.Canceled):
		result.Canceled = true
		result.Error = "download canceled"
		s.pause(courseID)
		s.log.Info("Download paused", "course_id", courseID)
	default:
		result.Error = err.Error()
		s.log.Error("Download failed", "course_id", courseID, "error", err)
		s.failAndCleanup(courseID)
	}
	return result, nil
}

// pause persists the paused status, keeping whatever progress the pipeline
// last wrote. Uses a fresh context: the run context is already canceled.
func (s *Service) pause(courseID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	course, err := s.store.GetCourse(ctx, courseID)
	if err != nil || course == nil {
		return
	}
	if err := s.store.UpdateCourseProgress(ctx, courseID, course.DownloadProgress, types.DownloadStatusPaused); err != nil {
		s.log.Error("Failed to mark course paused", "course_id", courseID, "error", err)
	}
}

// failAndCleanup marks the course errored, then removes the partial
// download so it cannot be mistaken for usable offline content.
func (s *Service) failAndCleanup(courseID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.store.UpdateCourseProgress(ctx, courseID, 0, types.DownloadStatusError); err != nil && !errors.Is(err, apperr.ErrNotFound) {
		s.log.Error("Failed to mark course errored", "course_id", courseID, "error", err)
	}
	if err := s.store.DeleteCourse(ctx, courseID); err != nil {
		s.log.Error("Failed to clean up partial download", "course_id", courseID, "error", err)
	}
}
