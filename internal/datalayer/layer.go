// Package datalayer serves course content from whichever source can best
// satisfy the request: the remote service when online, the local store when
// offline or when the caller prefers it. Consumers see one CourseData shape
// either way.
package datalayer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dil-lms/offline-engine/internal/bloburl"
	"github.com/dil-lms/offline-engine/internal/connectivity"
	"github.com/dil-lms/offline-engine/internal/platform/apperr"
	"github.com/dil-lms/offline-engine/internal/platform/logger"
	"github.com/dil-lms/offline-engine/internal/remote"
	"github.com/dil-lms/offline-engine/internal/store"
	"github.com/dil-lms/offline-engine/internal/storeutil"
	"github.com/dil-lms/offline-engine/internal/types"
)

type Layer struct {
	store   *store.Store
	utils   *storeutil.Utils
	api     remote.CourseAPI
	objects remote.ObjectStorage
	blobs   *bloburl.Registry
	monitor *connectivity.Monitor
	log     *logger.Logger

	preferOffline atomic.Bool

	mu       sync.Mutex
	urlCache map[string]blobRef
}

// blobRef is one issued blob URL with the MIME type it was resolved with.
type blobRef struct {
	url  string
	mime string
}

func New(
	s *store.Store,
	utils *storeutil.Utils,
	api remote.CourseAPI,
	objects remote.ObjectStorage,
	blobs *bloburl.Registry,
	monitor *connectivity.Monitor,
	baseLog *logger.Logger,
) *Layer {
	return &Layer{
		store:    s,
		utils:    utils,
		api:      api,
		objects:  objects,
		blobs:    blobs,
		monitor:  monitor,
		log:      baseLog.With("service", "datalayer"),
		urlCache: make(map[string]blobRef),
	}
}

// GetCourseData returns the unified course view. Offline data wins when the
// device is offline or the caller prefers it; online fetch failures fall
// back to a complete offline copy when one exists.
func (l *Layer) GetCourseData(ctx context.Context, courseID, userID string) (*CourseData, error) {
	offlineAvailable, err := l.utils.IsCourseAvailableOffline(ctx, courseID)
	if err != nil {
		l.log.Warn("Offline availability check failed", "course_id", courseID, "error", err)
		offlineAvailable = false
	}
	online := l.monitor.Online()
	l.log.Debug("Resolving course data source",
		"course_id", courseID, "online", online, "offline_available", offlineAvailable)

	if offlineAvailable && (!online || l.preferOffline.Load()) {
		return l.getCourseDataOffline(ctx, courseID, userID)
	}
	if online {
		data, err := l.getCourseDataOnline(ctx, courseID, userID)
		if err != nil && offlineAvailable {
			l.log.Warn("Online fetch failed, serving offline copy", "course_id", courseID, "error", err)
			return l.getCourseDataOffline(ctx, courseID, userID)
		}
		return data, err
	}
	return nil, fmt.Errorf("course %s: %w", courseID, apperr.ErrNotAvailableOffline)
}

func (l *Layer) getCourseDataOnline(ctx context.Context, courseID, userID string) (*CourseData, error) {
	graph, err := l.api.FetchCourseGraph(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("fetch course %s online: %w", courseID, err)
	}

	var progress []*types.Progress
	if userID != "" {
		progress, err = l.api.ListProgress(ctx, courseID, userID)
		if err != nil {
			l.log.Warn("Failed to load remote progress", "course_id", courseID, "user_id", userID, "error", err)
			progress = nil
		}
	}

	data := &CourseData{
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
		Sections:          make([]SectionData, 0, len(graph.Sections)),
	}
	byLesson := progressByLesson(progress)

	for _, section := range graph.Sections {
		sec := SectionData{
			ID:          section.ID,
			Title:       section.Title,
			Description: section.Description,
			SortOrder:   section.SortOrder,
			Lessons:     make([]LessonData, 0, len(section.Lessons)),
		}
		for _, gl := range section.Lessons {
			lesson := LessonData{
				ID:           gl.ID,
				Title:        gl.Title,
				Description:  gl.Description,
				Content:      gl.Content,
				SortOrder:    gl.SortOrder,
				Duration:     gl.Duration,
				ContentItems: make([]ContentItemData, 0, len(gl.ContentItems)),
			}
			if p := byLesson[gl.ID]; p != nil {
				lesson.Completed = p.Completed
				lesson.Progress = p.Progress
				lesson.LastAccessed = p.LastAccessed
			}
			for _, item := range gl.ContentItems {
				lesson.ContentItems = append(lesson.ContentItems, l.onlineContentItem(ctx, item))
			}
			sec.Lessons = append(sec.Lessons, lesson)
		}
		data.Sections = append(data.Sections, sec)
	}
	return data, nil
}

// onlineContentItem attaches a signed URL to media items. Signing failures
// degrade the item to metadata-only instead of failing the whole course.
func (l *Layer) onlineContentItem(ctx context.Context, item types.ContentItem) ContentItemData {
	out := ContentItemData{
		ID:          item.ID,
		Title:       item.Title,
		Type:        item.Type,
		ContentPath: item.ContentPath,
		Content:     item.Content,
		SortOrder:   item.SortOrder,
		Quiz:        item.Quiz,
	}
	switch item.Type {
	case types.ContentItemVideo, types.ContentItemAttachment, types.ContentItemLessonPlan:
		if item.ContentPath == "" {
			break
		}
		url, err := remote.SignedOrDirectURL(ctx, l.objects, item.ContentPath)
		if err != nil {
			l.log.Warn("Failed to sign content URL", "item_id", item.ID, "error", err)
			break
		}
		out.URL = url
	}
	return out
}

func (l *Layer) getCourseDataOffline(ctx context.Context, courseID, userID string) (*CourseData, error) {
	course, err := l.store.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if course == nil {
		return nil, fmt.Errorf("course %s: %w", courseID, apperr.ErrNotFound)
	}
	lessons, err := l.store.GetLessonsByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}

	var progress []*types.Progress
	if userID != "" {
		rows, err := l.store.GetProgressByCourse(ctx, courseID)
		if err != nil {
			l.log.Warn("Failed to load local progress", "course_id", courseID, "error", err)
		} else {
			for _, p := range rows {
				if p.UserID == userID {
					progress = append(progress, p)
				}
			}
		}
	}
	byLesson := progressByLesson(progress)

	data := &CourseData{
		ID:                 course.ID,
		Title:              course.Title,
		Subtitle:           course.Subtitle,
		Description:        course.Description,
		ImageURL:           course.ImageURL,
		InstructorName:     course.InstructorName,
		TotalLessons:       course.TotalLessons,
		EstimatedDuration:  course.EstimatedDuration,
		DifficultyLevel:    course.DifficultyLevel,
		Category:           course.Category,
		IsOfflineAvailable: true,
		DownloadStatus:     course.DownloadStatus,
		DownloadProgress:   course.DownloadProgress,
		LastAccessed:       course.LastAccessed,
	}
	data.Sections = l.rebuildSections(ctx, lessons, byLesson)

	if err := l.store.UpdateCourseAccess(ctx, courseID); err != nil {
		l.log.Warn("Failed to bump course access time", "course_id", courseID, "error", err)
	}
	return data, nil
}

type lessonSectionMeta struct {
	SectionID    string `json:"sectionId"`
	SectionTitle string `json:"sectionTitle"`
	SectionOrder int    `json:"sectionOrder"`
}

// rebuildSections regroups the flattened lesson rows into their original
// sections using the placement metadata saved at download time. Lessons
// without placement fall into a default section.
func (l *Layer) rebuildSections(ctx context.Context, lessons []*types.Lesson, byLesson map[string]*types.Progress) []SectionData {
	type bucket struct {
		meta    lessonSectionMeta
		lessons []LessonData
	}
	buckets := make(map[string]*bucket)
	order := []string{}

	for _, lesson := range lessons {
		meta := lessonSectionMeta{SectionID: "default", SectionTitle: "Course Content"}
		if len(lesson.Metadata) > 0 {
			var parsed lessonSectionMeta
			if err := json.Unmarshal(lesson.Metadata, &parsed); err == nil && parsed.SectionID != "" {
				meta = parsed
			}
		}
		b, ok := buckets[meta.SectionID]
		if !ok {
			b = &bucket{meta: meta}
			buckets[meta.SectionID] = b
			order = append(order, meta.SectionID)
		}
		b.lessons = append(b.lessons, l.offlineLesson(ctx, lesson, byLesson[lesson.ID]))
	}

	sort.SliceStable(order, func(i, j int) bool {
		return buckets[order[i]].meta.SectionOrder < buckets[order[j]].meta.SectionOrder
	})

	sections := make([]SectionData, 0, len(order))
	for _, id := range order {
		b := buckets[id]
		sort.SliceStable(b.lessons, func(i, j int) bool {
			return b.lessons[i].SortOrder < b.lessons[j].SortOrder
		})
		sections = append(sections, SectionData{
			ID:        b.meta.SectionID,
			Title:     b.meta.SectionTitle,
			SortOrder: b.meta.SectionOrder,
			Lessons:   b.lessons,
		})
	}
	return sections
}

func (l *Layer) offlineLesson(ctx context.Context, lesson *types.Lesson, progress *types.Progress) LessonData {
	out := LessonData{
		ID:          lesson.ID,
		Title:       lesson.Title,
		Description: lesson.Description,
		Content:     lesson.Content,
		SortOrder:   lesson.SortOrder,
		Duration:    lesson.Duration,
	}
	if progress != nil {
		out.Completed = progress.Completed
		out.Progress = progress.Progress
		out.LastAccessed = progress.LastAccessed
	}

	items, err := lesson.Items()
	if err != nil {
		l.log.Warn("Failed to decode content items", "lesson_id", lesson.ID, "error", err)
		return out
	}
	out.ContentItems = make([]ContentItemData, 0, len(items))
	for _, item := range items {
		out.ContentItems = append(out.ContentItems, l.offlineContentItem(ctx, lesson, item))
	}
	return out
}

// offlineContentItem resolves media items to local blob URLs.
func (l *Layer) offlineContentItem(ctx context.Context, lesson *types.Lesson, item types.ContentItem) ContentItemData {
	out := ContentItemData{
		ID:               item.ID,
		Title:            item.Title,
		Type:             item.Type,
		ContentPath:      item.ContentPath,
		Content:          item.Content,
		SortOrder:        item.SortOrder,
		Quiz:             item.Quiz,
		AvailableOffline: true,
	}
	switch item.Type {
	case types.ContentItemVideo:
		url, mimeType := l.videoBlobURL(ctx, item.ID, lesson)
		if url == "" {
			l.log.Warn("No offline video found for content item",
				"item_id", item.ID, "lesson_id", lesson.ID, "lesson_video_id", lesson.VideoID)
			out.AvailableOffline = false
			break
		}
		out.URL = url
		out.MimeType = mimeType
	case types.ContentItemAttachment:
		url := l.assetBlobURL(ctx, item.ID, lesson.ID)
		if url == "" {
			out.AvailableOffline = false
			break
		}
		out.URL = url
	}
	return out
}

// UpdateProgress writes the update to the remote service (when online) and
// to the local store. Both writes are attempted regardless of the other's
// outcome.
func (l *Layer) UpdateProgress(ctx context.Context, update *types.ProgressUpdate) error {
	var remoteErr error
	if l.monitor.Online() {
		if err := l.api.UpsertProgress(ctx, update); err != nil {
			remoteErr = fmt.Errorf("remote progress update: %w", err)
		}
	}

	lastAccessed := update.LastAccessed
	if lastAccessed.IsZero() {
		lastAccessed = time.Now()
	}
	local := &types.Progress{
		ID:               storeutil.ProgressID(update.CourseID, update.LessonID),
		CourseID:         update.CourseID,
		LessonID:         update.LessonID,
		UserID:           update.UserID,
		Completed:        update.Completed,
		Progress:         update.Progress,
		TimeSpentSeconds: update.TimeSpentSeconds,
		LastAccessed:     lastAccessed,
		CompletedAt:      update.CompletedAt,
	}
	var localErr error
	if err := l.store.StoreProgress(ctx, local); err != nil {
		localErr = fmt.Errorf("local progress update: %w", err)
	}

	if remoteErr == nil && localErr == nil {
		l.log.Debug("Progress updated", "course_id", update.CourseID, "lesson_id", update.LessonID)
	}
	return errors.Join(remoteErr, localErr)
}

// IsCourseAvailableOffline reports full offline availability.
func (l *Layer) IsCourseAvailableOffline(ctx context.Context, courseID string) (bool, error) {
	return l.utils.IsCourseAvailableOffline(ctx, courseID)
}

// GetDataSourceInfo reports which source a course would be served from and
// whether the caller could switch.
func (l *Layer) GetDataSourceInfo(ctx context.Context, courseID string) (*SourceInfo, error) {
	online := l.monitor.Online()
	offlineAvailable, err := l.utils.IsCourseAvailableOffline(ctx, courseID)
	if err != nil {
		return nil, err
	}

	var source DataSource
	switch {
	case offlineAvailable && online:
		source = SourceHybrid
	case offlineAvailable:
		source = SourceOffline
	default:
		source = SourceOnline
	}
	return &SourceInfo{
		Source:             source,
		IsOnline:           online,
		IsOfflineAvailable: offlineAvailable,
		PreferOffline:      l.preferOffline.Load(),
		CanSwitchSource:    offlineAvailable && online,
	}, nil
}

// SetOfflinePreference makes the layer serve offline data even while online,
// for courses that are fully available locally.
func (l *Layer) SetOfflinePreference(prefer bool) {
	l.preferOffline.Store(prefer)
	l.log.Info("Offline preference changed", "prefer_offline", prefer)
}

func progressByLesson(progress []*types.Progress) map[string]*types.Progress {
	if len(progress) == 0 {
		return nil
	}
	out := make(map[string]*types.Progress, len(progress))
	for _, p := range progress {
		out[p.LessonID] = p
	}
	return out
}
