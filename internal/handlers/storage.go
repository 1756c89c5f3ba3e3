package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dil-lms/offline-engine/internal/platform/logger"
	"github.com/dil-lms/offline-engine/internal/store"
	"github.com/dil-lms/offline-engine/internal/storeutil"
)

type StorageHandler struct {
	log   *logger.Logger
	store *store.Store
	utils *storeutil.Utils
}

func NewStorageHandler(log *logger.Logger, s *store.Store, utils *storeutil.Utils) *StorageHandler {
	return &StorageHandler{
		log:   log.With("handler", "StorageHandler"),
		store: s,
		utils: utils,
	}
}

func (h *StorageHandler) GetStorageInfo(c *gin.Context) {
	info, err := h.utils.GetStorageInfo(c.Request.Context())
	if err != nil {
		h.log.Error("GetStorageInfo failed", "error", err)
		RespondAppError(c, "storage_info_failed", err)
		return
	}
	RespondOK(c, info)
}

func (h *StorageHandler) GetCourseStats(c *gin.Context) {
	stats, err := h.utils.GetCourseStats(c.Request.Context())
	if err != nil {
		RespondAppError(c, "course_stats_failed", err)
		return
	}
	RespondOK(c, stats)
}

func (h *StorageHandler) GetCourseBreakdown(c *gin.Context) {
	breakdown, err := h.utils.GetCourseBreakdown(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondAppError(c, "course_breakdown_failed", err)
		return
	}
	RespondOK(c, breakdown)
}

func (h *StorageHandler) GetAvailability(c *gin.Context) {
	courseID := c.Param("id")
	available, err := h.utils.IsCourseAvailableOffline(c.Request.Context(), courseID)
	if err != nil {
		RespondAppError(c, "availability_check_failed", err)
		return
	}
	RespondOK(c, gin.H{"courseId": courseID, "isOfflineAvailable": available})
}

func (h *StorageHandler) GetHealth(c *gin.Context) {
	report, err := h.utils.CheckDatabaseHealth(c.Request.Context())
	if err != nil {
		RespondAppError(c, "health_check_failed", err)
		return
	}
	RespondOK(c, report)
}

func (h *StorageHandler) RunMaintenance(c *gin.Context) {
	result, err := h.utils.PerformMaintenance(c.Request.Context())
	if err != nil {
		h.log.Error("Maintenance failed", "error", err)
		RespondAppError(c, "maintenance_failed", err)
		return
	}
	RespondOK(c, result)
}

func (h *StorageHandler) GetCoursesNeedingAttention(c *gin.Context) {
	flagged, err := h.utils.GetCoursesNeedingAttention(c.Request.Context())
	if err != nil {
		RespondAppError(c, "attention_check_failed", err)
		return
	}
	RespondOK(c, gin.H{"courses": flagged})
}

func (h *StorageHandler) ExportCourse(c *gin.Context) {
	export, err := h.utils.ExportCourseMetadata(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondAppError(c, "export_failed", err)
		return
	}
	RespondOK(c, export)
}

func (h *StorageHandler) DeleteCourse(c *gin.Context) {
	courseID := c.Param("id")
	if err := h.store.DeleteCourse(c.Request.Context(), courseID); err != nil {
		h.log.Error("DeleteCourse failed", "course_id", courseID, "error", err)
		RespondAppError(c, "delete_course_failed", err)
		return
	}
	RespondOK(c, gin.H{"courseId": courseID, "deleted": true})
}

func (h *StorageHandler) CleanupOldCourses(c *gin.Context) {
	days := store.AutoCleanupDays
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			RespondError(c, http.StatusBadRequest, "invalid_days", err)
			return
		}
		days = parsed
	}
	deleted, err := h.store.CleanupOldCourses(c.Request.Context(), days)
	if err != nil {
		RespondAppError(c, "cleanup_failed", err)
		return
	}
	RespondOK(c, gin.H{"deletedCourses": deleted, "daysOld": days})
}
