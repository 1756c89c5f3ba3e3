package download

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/dil-lms/offline-engine/internal/remote"
	"github.com/dil-lms/offline-engine/internal/types"
)

// pipeline runs metadata -> lessons -> videos -> assets -> finalize. Phase
// boundaries and per-video completions persist progress so a cancel lands on
// a resumable record. Media failures skip the item; metadata and lesson
// failures abort the run.
func (s *Service) pipeline(ctx context.Context, courseID string, opts Options, resume bool, result *Result) error {
	if err := s.store.Init(ctx); err != nil {
		return err
	}

	report := func(u ProgressUpdate) {
		if opts.OnProgress != nil {
			u.CourseID = courseID
			opts.OnProgress(u)
		}
	}

	// Phase 1: metadata.
	report(ProgressUpdate{Phase: PhaseMetadata, Progress: 0, CurrentItem: "Course information"})
	graph, err := s.api.FetchCourseGraph(ctx, courseID)
	if err != nil {
		return fmt.Errorf("fetch course metadata: %w", err)
	}
	if err := s.storeCourseRecord(ctx, graph, resume); err != nil {
		return err
	}
	result.Details.Metadata = true
	if err := s.persistProgress(ctx, courseID, progressMetadataDone); err != nil {
		return err
	}
	report(ProgressUpdate{Phase: PhaseMetadata, Progress: progressMetadataDone, CurrentItem: "Course structure"})

	// Phase 2: lessons.
	report(ProgressUpdate{Phase: PhaseLessons, Progress: progressMetadataDone, CurrentItem: "Lesson content"})
	lessons, err := s.storeLessons(ctx, graph)
	if err != nil {
		return err
	}
	result.Details.Lessons = len(lessons)
	if err := s.persistProgress(ctx, courseID, progressLessonsDone); err != nil {
		return err
	}
	report(ProgressUpdate{
		Phase:          PhaseLessons,
		Progress:       progressLessonsDone,
		TotalItems:     len(lessons),
		CompletedItems: len(lessons),
	})

	// Phase 3: videos.
	videoJobs := collectVideoJobs(lessons)
	report(ProgressUpdate{Phase: PhaseVideos, Progress: progressLessonsDone, TotalItems: len(videoJobs)})
	stored, skipped, err := s.downloadVideos(ctx, courseID, videoJobs, opts, resume, report)
	if err != nil {
		return err
	}
	result.Details.Videos = stored
	result.Details.Skipped += skipped

	// Phase 4: assets.
	if opts.IncludeAssets {
		report(ProgressUpdate{Phase: PhaseAssets, Progress: progressVideosDone, CurrentItem: "Course assets"})
		storedAssets, skippedAssets, err := s.downloadAssets(ctx, graph, lessons, opts, resume, report)
		if err != nil {
			return err
		}
		result.Details.Assets = storedAssets
		result.Details.Skipped += skippedAssets
	}
	if err := s.persistProgress(ctx, courseID, progressAssetsDone); err != nil {
		return err
	}

	// Phase 5: finalize.
	report(ProgressUpdate{Phase: PhaseFinalizing, Progress: progressAssetsDone, CurrentItem: "Finalizing download"})
	totalSize, err := s.finalize(ctx, courseID)
	if err != nil {
		return err
	}
	result.TotalSize = totalSize
	report(ProgressUpdate{Phase: PhaseFinalizing, Progress: progressComplete, CurrentItem: "Download completed"})
	return nil
}

func (s *Service) persistProgress(ctx context.Context, courseID string, progress float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.store.UpdateCourseProgress(ctx, courseID, progress, types.DownloadStatusDownloading)
}

// storeCourseRecord writes the course row in downloading state. On resume
// the original download date survives.
func (s *Service) storeCourseRecord(ctx context.Context, graph *types.CourseGraph, resume bool) error {
	now := time.Now()
	course := &types.Course{
		ID:                graph.ID,
		Title:             graph.Title,
		Subtitle:          graph.Subtitle,
		Description:       graph.Description,
		ImageURL:          graph.ImageURL,
		InstructorName:    graph.InstructorName,
		TotalLessons:      graph.TotalLessons(),
		EstimatedDuration: graph.EstimatedDuration,
		DifficultyLevel:   graph.DifficultyLevel,
		Category:          graph.Category,
		DownloadDate:      now,
		LastAccessed:      now,
		Version:           courseVersion(graph),
		DownloadStatus:    types.DownloadStatusDownloading,
	}
	if resume {
		if prev, err := s.store.GetCourse(ctx, graph.ID); err == nil && prev != nil {
			course.DownloadDate = prev.DownloadDate
			course.DownloadProgress = prev.DownloadProgress
			course.TotalSize = prev.TotalSize
		}
	}
	if err := s.store.StoreCourse(ctx, course); err != nil {
		return fmt.Errorf("store course metadata: %w", err)
	}
	return nil
}

func courseVersion(graph *types.CourseGraph) string {
	base := graph.UpdatedAt
	if base.IsZero() {
		base = time.Now()
	}
	return fmt.Sprintf("v%d-%d", time.Now().UnixMilli(), base.UnixMilli())
}

// storeLessons flattens sections into lesson rows, deriving type, video id
// and asset ids from the content items.
func (s *Service) storeLessons(ctx context.Context, graph *types.CourseGraph) ([]*types.Lesson, error) {
	lessons := make([]*types.Lesson, 0, graph.TotalLessons())
	for _, section := range graph.Sections {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, gl := range section.Lessons {
			lesson := &types.Lesson{
				ID:          gl.ID,
				CourseID:    graph.ID,
				Title:       gl.Title,
				Description: gl.Description,
				Content:     gl.Content,
				SortOrder:   section.SortOrder*1000 + gl.SortOrder,
				Duration:    gl.Duration,
				Type:        deriveLessonType(gl.ContentItems),
				VideoID:     firstVideoItemID(gl.ContentItems),
			}
			if err := lesson.SetItems(gl.ContentItems); err != nil {
				return nil, fmt.Errorf("encode content items for lesson %s: %w", gl.ID, err)
			}
			if err := lesson.SetAssetIDs(attachmentItemIDs(gl.ContentItems)); err != nil {
				return nil, fmt.Errorf("encode asset ids for lesson %s: %w", gl.ID, err)
			}
			// Section placement survives flattening so the offline view can
			// rebuild the section tree.
			meta, err := json.Marshal(map[string]any{
				"sectionId":    section.ID,
				"sectionTitle": section.Title,
				"sectionOrder": section.SortOrder,
			})
			if err != nil {
				return nil, fmt.Errorf("encode metadata for lesson %s: %w", gl.ID, err)
			}
			lesson.Metadata = meta
			if err := s.store.StoreLesson(ctx, lesson); err != nil {
				return nil, err
			}
			lessons = append(lessons, lesson)
		}
	}
	return lessons, nil
}

func deriveLessonType(items []types.ContentItem) types.LessonType {
	hasQuiz := false
	for _, item := range items {
		switch item.Type {
		case types.ContentItemVideo:
			return types.LessonTypeVideo
		case types.ContentItemQuiz:
			hasQuiz = true
		}
	}
	if hasQuiz {
		return types.LessonTypeQuiz
	}
	return types.LessonTypeText
}

func firstVideoItemID(items []types.ContentItem) string {
	for _, item := range items {
		if item.Type == types.ContentItemVideo {
			return item.ID
		}
	}
	return ""
}

func attachmentItemIDs(items []types.ContentItem) []string {
	ids := []string{}
	for _, item := range items {
		if item.Type == types.ContentItemAttachment {
			ids = append(ids, item.ID)
		}
	}
	return ids
}

type videoJob struct {
	lesson *types.Lesson
	item   types.ContentItem
}

func collectVideoJobs(lessons []*types.Lesson) []videoJob {
	jobs := []videoJob{}
	for _, lesson := range lessons {
		items, err := lesson.Items()
		if err != nil {
			continue
		}
		for _, item := range items {
			if item.Type == types.ContentItemVideo && item.ContentPath != "" {
				jobs = append(jobs, videoJob{lesson: lesson, item: item})
			}
		}
	}
	return jobs
}

// downloadVideos fetches and stores each video blob. Failures are logged and
// skipped so one broken object does not sink the whole course; progress is
// persisted after every stored video.
func (s *Service) downloadVideos(ctx context.Context, courseID string, jobs []videoJob, opts Options, resume bool, report func(ProgressUpdate)) (stored, skipped int, err error) {
	total := len(jobs)
	done := 0
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return stored, skipped, err
		}

		if resume {
			if existing, err := s.store.GetVideo(ctx, job.item.ID); err == nil && existing != nil {
				done++
				skipped++
				continue
			}
		}

		url, err := remote.SignedOrDirectURL(ctx, s.objects, job.item.ContentPath)
		if err != nil || url == "" {
			s.log.Warn("Skipping video with unresolvable URL",
				"lesson_id", job.lesson.ID, "item_id", job.item.ID, "error", err)
			skipped++
			done++
			continue
		}

		blob, mimeType, err := s.fetchBlob(ctx, url, opts.FetchTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return stored, skipped, ctx.Err()
			}
			s.log.Warn("Failed to download video, skipping",
				"lesson_id", job.lesson.ID, "item_id", job.item.ID, "error", err)
			skipped++
			done++
			continue
		}

		originalLen := len(blob)
		blob, ratio, err := opts.Transform.Transform(ctx, blob, mimeType)
		if err != nil {
			s.log.Warn("Video transform failed, storing original",
				"item_id", job.item.ID, "error", err)
			ratio = 1
		}

		video := &types.Video{
			ID:               job.item.ID,
			LessonID:         job.lesson.ID,
			CourseID:         courseID,
			OriginalURL:      job.item.ContentPath,
			Blob:             blob,
			Duration:         job.lesson.Duration,
			Size:             int64(len(blob)),
			Quality:          opts.VideoQuality,
			Format:           formatFromMIME(mimeType),
			Compressed:       len(blob) != originalLen,
			CompressionRatio: ratio,
			DownloadDate:     time.Now(),
		}
		if err := s.store.StoreVideo(ctx, video); err != nil {
			return stored, skipped, err
		}
		stored++
		done++

		progress := progressLessonsDone + (progressVideosDone-progressLessonsDone)*float64(done)/float64(total)
		if err := s.persistProgress(ctx, courseID, progress); err != nil {
			return stored, skipped, err
		}
		report(ProgressUpdate{
			Phase:          PhaseVideos,
			Progress:       progress,
			CurrentItem:    job.lesson.Title,
			TotalItems:     total,
			CompletedItems: done,
		})
	}
	return stored, skipped, nil
}

type assetJob struct {
	id            string
	url           string
	path          string
	filename      string
	lessonID      string
	source        string
	contentItemID string
}

// collectAssetJobs gathers the course image plus every lesson attachment.
// Asset ids reuse the content item id so lookups and resume de-duplication
// need no extra mapping; the course image gets a synthetic id.
func (s *Service) collectAssetJobs(ctx context.Context, graph *types.CourseGraph, lessons []*types.Lesson) []assetJob {
	jobs := []assetJob{}

	if graph.ImageURL != "" {
		if url, err := remote.SignedOrDirectURL(ctx, s.objects, graph.ImageURL); err == nil && url != "" {
			jobs = append(jobs, assetJob{
				id:       "course-image-" + graph.ID,
				url:      url,
				path:     graph.ImageURL,
				filename: "course-image." + fileExtension(graph.ImageURL),
				source:   "course",
			})
		} else {
			s.log.Warn("Skipping course image with unresolvable URL", "course_id", graph.ID, "error", err)
		}
	}

	for _, lesson := range lessons {
		items, err := lesson.Items()
		if err != nil {
			continue
		}
		for _, item := range items {
			if item.Type != types.ContentItemAttachment || item.ContentPath == "" {
				continue
			}
			url, err := remote.SignedOrDirectURL(ctx, s.objects, item.ContentPath)
			if err != nil || url == "" {
				s.log.Warn("Skipping attachment with unresolvable URL",
					"lesson_id", lesson.ID, "item_id", item.ID, "error", err)
				continue
			}
			filename := item.Title
			if filename == "" {
				filename = "asset-" + item.ID
			}
			jobs = append(jobs, assetJob{
				id:            item.ID,
				url:           url,
				path:          item.ContentPath,
				filename:      filename,
				lessonID:      lesson.ID,
				source:        "lesson",
				contentItemID: item.ID,
			})
		}
	}
	return jobs
}

func (s *Service) downloadAssets(ctx context.Context, graph *types.CourseGraph, lessons []*types.Lesson, opts Options, resume bool, report func(ProgressUpdate)) (stored, skipped int, err error) {
	jobs := s.collectAssetJobs(ctx, graph, lessons)
	total := len(jobs)
	done := 0
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return stored, skipped, err
		}

		if resume {
			if existing, err := s.store.GetAsset(ctx, job.id); err == nil && existing != nil {
				done++
				skipped++
				continue
			}
		}

		blob, mimeType, err := s.fetchBlob(ctx, job.url, opts.FetchTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return stored, skipped, ctx.Err()
			}
			s.log.Warn("Failed to download asset, skipping", "asset", job.filename, "error", err)
			skipped++
			done++
			continue
		}

		metadata, _ := assetMetadata(job)
		asset := &types.Asset{
			ID:           job.id,
			CourseID:     graph.ID,
			LessonID:     job.lessonID,
			OriginalURL:  job.path,
			Blob:         blob,
			Type:         classifyAsset(mimeType),
			MimeType:     mimeType,
			Size:         int64(len(blob)),
			Filename:     job.filename,
			DownloadDate: time.Now(),
			Metadata:     metadata,
		}
		if err := s.store.StoreAsset(ctx, asset); err != nil {
			return stored, skipped, err
		}
		stored++
		done++

		progress := progressVideosDone + (progressAssetsDone-progressVideosDone)*float64(done)/float64(total)
		report(ProgressUpdate{
			Phase:          PhaseAssets,
			Progress:       progress,
			CurrentItem:    job.filename,
			TotalItems:     total,
			CompletedItems: done,
		})
	}
	return stored, skipped, nil
}

func assetMetadata(job assetJob) (datatypes.JSON, error) {
	raw := fmt.Sprintf(`{"source":%q,"contentItemId":%q}`, job.source, job.contentItemID)
	return datatypes.JSON(raw), nil
}

// finalize computes the real stored size and flips the course to completed.
// The size counts the media blobs plus the serialized course and lesson
// rows, so even a text-only course reports what it occupies.
func (s *Service) finalize(ctx context.Context, courseID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	course, err := s.store.GetCourse(ctx, courseID)
	if err != nil {
		return 0, err
	}
	if course == nil {
		return 0, fmt.Errorf("course %s vanished during finalize", courseID)
	}

	var total int64
	if raw, err := json.Marshal(course); err == nil {
		total += int64(len(raw))
	}
	lessons, err := s.store.GetLessonsByCourse(ctx, courseID)
	if err != nil {
		return 0, err
	}
	for _, lesson := range lessons {
		if raw, err := json.Marshal(lesson); err == nil {
			total += int64(len(raw))
		}
	}

	videos, err := s.store.GetVideosByCourse(ctx, courseID)
	if err != nil {
		return 0, err
	}
	for _, v := range videos {
		total += v.Size
	}
	assets, err := s.store.GetAssetsByCourse(ctx, courseID)
	if err != nil {
		return 0, err
	}
	for _, a := range assets {
		total += a.Size
	}

	course.TotalSize = total
	course.DownloadStatus = types.DownloadStatusCompleted
	course.DownloadProgress = progressComplete
	if err := s.store.StoreCourse(ctx, course); err != nil {
		return 0, err
	}
	return total, nil
}
