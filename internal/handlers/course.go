package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dil-lms/offline-engine/internal/datalayer"
	"github.com/dil-lms/offline-engine/internal/platform/logger"
	"github.com/dil-lms/offline-engine/internal/types"
)

type CourseHandler struct {
	log  *logger.Logger
	data *datalayer.Layer
}

func NewCourseHandler(log *logger.Logger, data *datalayer.Layer) *CourseHandler {
	return &CourseHandler{
		log:  log.With("handler", "CourseHandler"),
		data: data,
	}
}

func (h *CourseHandler) GetCourse(c *gin.Context) {
	courseID := c.Param("id")
	userID := c.Query("user_id")

	course, err := h.data.GetCourseData(c.Request.Context(), courseID, userID)
	if err != nil {
		h.log.Error("GetCourse failed", "course_id", courseID, "error", err)
		RespondAppError(c, "load_course_failed", err)
		return
	}
	RespondOK(c, course)
}

func (h *CourseHandler) GetSourceInfo(c *gin.Context) {
	courseID := c.Param("id")
	info, err := h.data.GetDataSourceInfo(c.Request.Context(), courseID)
	if err != nil {
		RespondAppError(c, "source_info_failed", err)
		return
	}
	RespondOK(c, info)
}

func (h *CourseHandler) GetVideoURL(c *gin.Context) {
	videoID := c.Param("id")
	lessonID := c.Query("lesson_id")

	url := h.data.GetVideoURL(c.Request.Context(), videoID, lessonID)
	if url == "" {
		RespondError(c, http.StatusNotFound, "video_unavailable", nil)
		return
	}
	RespondOK(c, gin.H{"videoId": videoID, "url": url})
}

func (h *CourseHandler) GetAssetURL(c *gin.Context) {
	assetID := c.Param("id")

	url := h.data.GetAssetURL(c.Request.Context(), assetID)
	if url == "" {
		RespondError(c, http.StatusNotFound, "asset_unavailable", nil)
		return
	}
	RespondOK(c, gin.H{"assetId": assetID, "url": url})
}

type progressRequest struct {
	CourseID         string     `json:"courseId" binding:"required"`
	LessonID         string     `json:"lessonId" binding:"required"`
	UserID           string     `json:"userId"`
	ContentItemID    string     `json:"contentItemId"`
	Completed        bool       `json:"completed"`
	Progress         float64    `json:"progress"`
	TimeSpentSeconds int        `json:"timeSpentSeconds"`
	CompletedAt      *time.Time `json:"completedAt"`
}

func (h *CourseHandler) UpdateProgress(c *gin.Context) {
	var req progressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	update := &types.ProgressUpdate{
		CourseID:         req.CourseID,
		LessonID:         req.LessonID,
		UserID:           req.UserID,
		ContentItemID:    req.ContentItemID,
		Completed:        req.Completed,
		Progress:         req.Progress,
		TimeSpentSeconds: req.TimeSpentSeconds,
		LastAccessed:     time.Now(),
		CompletedAt:      req.CompletedAt,
	}
	if err := h.data.UpdateProgress(c.Request.Context(), update); err != nil {
		h.log.Error("UpdateProgress failed", "course_id", req.CourseID, "lesson_id", req.LessonID, "error", err)
		RespondAppError(c, "progress_update_failed", err)
		return
	}
	RespondOK(c, gin.H{"updated": true})
}
