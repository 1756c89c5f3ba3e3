package app

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/dil-lms/offline-engine/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	Cfg      Config
	Services Services
	Router   *gin.Engine
}

func New(ctx context.Context) (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	services, err := wireServices(ctx, cfg, log)
	if err != nil {
		log.Sync()
		return nil, err
	}

	handlerset := wireHandlers(log, services)
	router := wireRouter(cfg, handlerset)

	return &App{
		Log:      log,
		Cfg:      cfg,
		Services: services,
		Router:   router,
	}, nil
}

func (a *App) Run() error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	a.Log.Info("Starting offline engine", "addr", a.Cfg.Addr, "store_path", a.Cfg.StorePath)
	return a.Router.Run(a.Cfg.Addr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	a.Services.Data.CleanupBlobURLs()
	if err := a.Services.Store.Close(); err != nil {
		a.Log.Error("Failed to close offline store", "error", err)
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
