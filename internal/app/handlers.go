package app

import (
	"github.com/dil-lms/offline-engine/internal/handlers"
	"github.com/dil-lms/offline-engine/internal/platform/logger"
)

type Handlers struct {
	Download *handlers.DownloadHandler
	Course   *handlers.CourseHandler
	Storage  *handlers.StorageHandler
	System   *handlers.SystemHandler
}

func wireHandlers(log *logger.Logger, services Services) Handlers {
	return Handlers{
		Download: handlers.NewDownloadHandler(log, services.Downloads),
		Course:   handlers.NewCourseHandler(log, services.Data),
		Storage:  handlers.NewStorageHandler(log, services.Store, services.Utils),
		System:   handlers.NewSystemHandler(log, services.Monitor, services.Blobs, services.Data),
	}
}
