package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dil-lms/offline-engine/internal/download"
	"github.com/dil-lms/offline-engine/internal/platform/logger"
	"github.com/dil-lms/offline-engine/internal/storeutil"
	"github.com/dil-lms/offline-engine/internal/types"
)

type DownloadHandler struct {
	log       *logger.Logger
	downloads *download.Service
}

func NewDownloadHandler(log *logger.Logger, downloads *download.Service) *DownloadHandler {
	return &DownloadHandler{
		log:       log.With("handler", "DownloadHandler"),
		downloads: downloads,
	}
}

type downloadRequest struct {
	Quality       string `json:"quality"`
	IncludeAssets *bool  `json:"includeAssets"`
}

func (r downloadRequest) options() download.Options {
	opts := download.DefaultOptions()
	if r.Quality != "" {
		opts.VideoQuality = r.Quality
	}
	if r.IncludeAssets != nil {
		opts.IncludeAssets = *r.IncludeAssets
	}
	return opts
}

// Start kicks off a download and returns immediately; clients poll Progress.
// Guard failures (already downloading, not enough space) surface here.
func (h *DownloadHandler) Start(c *gin.Context) {
	courseID := c.Param("id")
	var req downloadRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	_, status, err := h.downloads.GetDownloadProgress(c.Request.Context(), courseID)
	if err != nil {
		RespondAppError(c, "download_check_failed", err)
		return
	}
	if status == types.DownloadStatusDownloading {
		RespondError(c, http.StatusConflict, "download_in_progress", nil)
		return
	}

	go func() {
		result, err := h.downloads.DownloadCourse(context.Background(), courseID, req.options())
		if err != nil {
			h.log.Error("Download failed to start", "course_id", courseID, "error", err)
			return
		}
		if !result.Success && !result.Canceled {
			h.log.Error("Download finished with error", "course_id", courseID, "error", result.Error)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"courseId": courseID, "status": types.DownloadStatusDownloading})
}

func (h *DownloadHandler) Cancel(c *gin.Context) {
	courseID := c.Param("id")
	if err := h.downloads.CancelDownload(courseID); err != nil {
		RespondAppError(c, "cancel_failed", err)
		return
	}
	RespondOK(c, gin.H{"courseId": courseID, "status": types.DownloadStatusPaused})
}

func (h *DownloadHandler) Resume(c *gin.Context) {
	courseID := c.Param("id")
	var req downloadRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	_, status, err := h.downloads.GetDownloadProgress(c.Request.Context(), courseID)
	if err != nil {
		RespondAppError(c, "download_check_failed", err)
		return
	}
	if status != types.DownloadStatusPaused {
		RespondError(c, http.StatusConflict, "no_paused_download", nil)
		return
	}

	go func() {
		result, err := h.downloads.ResumeDownload(context.Background(), courseID, req.options())
		if err != nil {
			h.log.Error("Resume failed to start", "course_id", courseID, "error", err)
			return
		}
		if !result.Success && !result.Canceled {
			h.log.Error("Resume finished with error", "course_id", courseID, "error", result.Error)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"courseId": courseID, "status": types.DownloadStatusDownloading})
}

func (h *DownloadHandler) Progress(c *gin.Context) {
	courseID := c.Param("id")
	progress, status, err := h.downloads.GetDownloadProgress(c.Request.Context(), courseID)
	if err != nil {
		RespondAppError(c, "progress_failed", err)
		return
	}
	RespondOK(c, gin.H{
		"courseId": courseID,
		"progress": progress,
		"status":   status,
	})
}

func (h *DownloadHandler) Estimate(c *gin.Context) {
	courseID := c.Param("id")
	size := h.downloads.EstimateDownloadSize(c.Request.Context(), courseID)
	RespondOK(c, gin.H{
		"courseId":      courseID,
		"estimatedSize": size,
		"sizeFormatted": storeutil.FormatBytes(size, 2),
	})
}
