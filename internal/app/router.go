package app

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func wireRouter(cfg Config, h Handlers) *gin.Engine {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", h.System.Healthz)

	api := router.Group("/api")
	{
		// Course data
		api.GET("/courses", h.Storage.GetStorageInfo)
		api.GET("/courses/attention", h.Storage.GetCoursesNeedingAttention)
		api.GET("/courses/:id", h.Course.GetCourse)
		api.GET("/courses/:id/source", h.Course.GetSourceInfo)
		api.GET("/courses/:id/stats", h.Storage.GetCourseBreakdown)
		api.GET("/courses/:id/availability", h.Storage.GetAvailability)
		api.GET("/courses/:id/export", h.Storage.ExportCourse)
		api.DELETE("/courses/:id", h.Storage.DeleteCourse)

		// Downloads
		api.POST("/courses/:id/download", h.Download.Start)
		api.POST("/courses/:id/download/cancel", h.Download.Cancel)
		api.POST("/courses/:id/download/resume", h.Download.Resume)
		api.GET("/courses/:id/download/progress", h.Download.Progress)
		api.GET("/courses/:id/download/estimate", h.Download.Estimate)

		// Media
		api.GET("/videos/:id/url", h.Course.GetVideoURL)
		api.GET("/assets/:id/url", h.Course.GetAssetURL)
		api.GET("/blob", h.System.ServeBlob)
		api.DELETE("/blob-urls", h.System.CleanupBlobURLs)

		// Progress
		api.POST("/progress", h.Course.UpdateProgress)

		// Storage management
		api.GET("/storage/stats", h.Storage.GetCourseStats)
		api.GET("/storage/health", h.Storage.GetHealth)
		api.POST("/storage/maintenance", h.Storage.RunMaintenance)
		api.POST("/storage/cleanup", h.Storage.CleanupOldCourses)

		// Engine state
		api.PUT("/connectivity", h.System.SetConnectivity)
		api.PUT("/preferences/offline", h.System.SetOfflinePreference)
	}

	return router
}
