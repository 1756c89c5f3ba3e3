package datalayer

import (
	"context"
	"strings"

	"github.com/dil-lms/offline-engine/internal/remote"
	"github.com/dil-lms/offline-engine/internal/types"
)

// GetVideoURL resolves a playable URL for a video content item: the local
// blob when the video is stored (and the device is offline or prefers it),
// otherwise a freshly signed remote URL. Returns "" when no source can
// serve the video.
func (l *Layer) GetVideoURL(ctx context.Context, videoID, lessonID string) string {
	video, err := l.store.GetVideo(ctx, videoID)
	if err != nil {
		l.log.Warn("Video lookup failed", "video_id", videoID, "error", err)
	}
	storedOffline := video != nil
	online := l.monitor.Online()

	if storedOffline && (!online || l.preferOffline.Load()) {
		url, _ := l.videoBlobURL(ctx, videoID, &types.Lesson{ID: lessonID})
		return url
	}
	if online {
		if url := l.videoSignedURL(ctx, videoID, lessonID); url != "" {
			return url
		}
	}
	if storedOffline {
		url, _ := l.videoBlobURL(ctx, videoID, &types.Lesson{ID: lessonID})
		return url
	}
	l.log.Warn("Video not available from any source", "video_id", videoID, "lesson_id", lessonID)
	return ""
}

// GetAssetURL resolves a URL for an attachment, preferring the same source
// order as GetVideoURL.
func (l *Layer) GetAssetURL(ctx context.Context, assetID string) string {
	asset := l.findAsset(ctx, assetID, "")
	online := l.monitor.Online()

	if asset != nil && (!online || l.preferOffline.Load()) {
		return l.assetBlobURL(ctx, assetID, asset.LessonID)
	}
	if online && asset != nil && asset.OriginalURL != "" {
		url, err := remote.SignedOrDirectURL(ctx, l.objects, asset.OriginalURL)
		if err == nil && url != "" {
			return url
		}
		l.log.Warn("Failed to sign asset URL", "asset_id", assetID, "error", err)
	}
	if asset != nil {
		return l.assetBlobURL(ctx, assetID, asset.LessonID)
	}
	l.log.Warn("Asset not available from any source", "asset_id", assetID)
	return ""
}

// CleanupBlobURLs revokes every blob URL the layer has issued and clears the
// cache. Outstanding URLs stop resolving immediately.
func (l *Layer) CleanupBlobURLs() {
	l.mu.Lock()
	count := len(l.urlCache)
	l.urlCache = make(map[string]blobRef)
	l.mu.Unlock()
	l.blobs.RevokeAll()
	l.log.Info("Cleaned up blob URLs", "count", count)
}

func (l *Layer) cachedURL(key string) (blobRef, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ref, ok := l.urlCache[key]
	return ref, ok
}

func (l *Layer) cacheURL(key, url, mime string) {
	l.mu.Lock()
	l.urlCache[key] = blobRef{url: url, mime: mime}
	l.mu.Unlock()
}

// videoBlobURL finds the stored video for a content item and returns a blob
// URL plus detected MIME type. Lookup tries the item id first, then the
// lesson's designated video id, then the first video stored for the lesson.
func (l *Layer) videoBlobURL(ctx context.Context, videoID string, lesson *types.Lesson) (string, string) {
	cacheKey := "video-" + videoID
	if ref, ok := l.cachedURL(cacheKey); ok {
		return ref.url, ref.mime
	}

	video, err := l.store.GetVideo(ctx, videoID)
	if err != nil {
		l.log.Warn("Video lookup failed", "video_id", videoID, "error", err)
		return "", ""
	}
	if video == nil && lesson.VideoID != "" && lesson.VideoID != videoID {
		video, _ = l.store.GetVideo(ctx, lesson.VideoID)
	}
	if video == nil && lesson.ID != "" {
		videos, err := l.store.GetVideosByLesson(ctx, lesson.ID)
		if err == nil && len(videos) > 0 {
			video = videos[0]
			l.log.Debug("Resolved video by lesson lookup", "lesson_id", lesson.ID, "video_id", video.ID)
		}
	}
	if video == nil {
		return "", ""
	}

	url := l.blobs.Create(video.Blob)
	mime := detectVideoMIME(video.Format, video.OriginalURL)
	l.cacheURL(cacheKey, url, mime)
	return url, mime
}

// assetBlobURL finds the stored asset for a content item and returns a blob
// URL. Falls back from the item id to a metadata match, then to the first
// asset stored for the lesson.
func (l *Layer) assetBlobURL(ctx context.Context, assetID, lessonID string) string {
	cacheKey := "asset-" + assetID
	if ref, ok := l.cachedURL(cacheKey); ok {
		return ref.url
	}

	asset := l.findAsset(ctx, assetID, lessonID)
	if asset == nil {
		return ""
	}
	url := l.blobs.Create(asset.Blob)
	l.cacheURL(cacheKey, url, asset.MimeType)
	return url
}

func (l *Layer) findAsset(ctx context.Context, assetID, lessonID string) *types.Asset {
	asset, err := l.store.GetAsset(ctx, assetID)
	if err != nil {
		l.log.Warn("Asset lookup failed", "asset_id", assetID, "error", err)
		return nil
	}
	if asset != nil {
		return asset
	}

	// Older downloads stored assets under generated ids with the content
	// item id tucked into metadata.
	all, err := l.store.GetAllAssets(ctx)
	if err == nil {
		for _, a := range all {
			if strings.Contains(string(a.Metadata), `"contentItemId":"`+assetID+`"`) {
				return a
			}
		}
	}

	if lessonID != "" {
		byLesson, err := l.store.GetAssetsByLesson(ctx, lessonID)
		if err == nil && len(byLesson) > 0 {
			return byLesson[0]
		}
	}
	return nil
}

// videoSignedURL signs the content path recorded in the locally stored
// lesson. Without a local lesson record there is nothing to sign.
func (l *Layer) videoSignedURL(ctx context.Context, videoID, lessonID string) string {
	if lessonID == "" {
		return ""
	}
	lesson, err := l.store.GetLesson(ctx, lessonID)
	if err != nil || lesson == nil {
		return ""
	}
	items, err := lesson.Items()
	if err != nil {
		return ""
	}
	for _, item := range items {
		if item.ID == videoID && item.ContentPath != "" {
			url, err := remote.SignedOrDirectURL(ctx, l.objects, item.ContentPath)
			if err != nil {
				l.log.Warn("Failed to sign video URL", "video_id", videoID, "error", err)
				return ""
			}
			return url
		}
	}
	return ""
}

var videoFormatMIME = map[string]string{
	"mp4":       "video/mp4",
	"mpeg4":     "video/mp4",
	"webm":      "video/webm",
	"ogg":       "video/ogg",
	"ogv":       "video/ogg",
	"avi":       "video/x-msvideo",
	"mov":       "video/quicktime",
	"quicktime": "video/quicktime",
	"wmv":       "video/x-ms-wmv",
	"flv":       "video/x-flv",
	"3gp":       "video/3gpp",
	"mkv":       "video/x-matroska",
}

// detectVideoMIME infers the MIME type from the recorded format, then the
// original URL's extension, defaulting to mp4.
func detectVideoMIME(format, originalURL string) string {
	if mime, ok := videoFormatMIME[strings.ToLower(format)]; ok {
		return mime
	}
	lower := strings.ToLower(originalURL)
	for ext, mime := range videoFormatMIME {
		if strings.Contains(lower, "."+ext) {
			return mime
		}
	}
	return "video/mp4"
}
