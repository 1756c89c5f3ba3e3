package app

import (
	"context"
	"fmt"

	"github.com/dil-lms/offline-engine/internal/bloburl"
	"github.com/dil-lms/offline-engine/internal/connectivity"
	"github.com/dil-lms/offline-engine/internal/datalayer"
	"github.com/dil-lms/offline-engine/internal/download"
	"github.com/dil-lms/offline-engine/internal/platform/logger"
	"github.com/dil-lms/offline-engine/internal/remote"
	"github.com/dil-lms/offline-engine/internal/store"
	"github.com/dil-lms/offline-engine/internal/storeutil"
)

type Services struct {
	Store     *store.Store
	Utils     *storeutil.Utils
	Catalog   remote.CourseAPI
	Objects   remote.ObjectStorage
	Blobs     *bloburl.Registry
	Monitor   *connectivity.Monitor
	Downloads *download.Service
	Data      *datalayer.Layer
}

func wireServices(ctx context.Context, cfg Config, log *logger.Logger) (Services, error) {
	st := store.New(cfg.StorePath, log)
	if err := st.Init(ctx); err != nil {
		return Services{}, fmt.Errorf("init offline store: %w", err)
	}
	utils := storeutil.New(st, log)

	if cfg.CatalogDSN == "" {
		return Services{}, fmt.Errorf("CATALOG_DSN not configured")
	}
	catalog, err := remote.NewPostgresAPI(cfg.CatalogDSN, log)
	if err != nil {
		return Services{}, err
	}
	objects, err := remote.NewGCSStorage(ctx, cfg.StorageBucket, cfg.SignedURLTTL, log)
	if err != nil {
		return Services{}, err
	}

	blobs := bloburl.NewRegistry()
	monitor := connectivity.NewMonitor()
	downloads := download.New(st, catalog, objects, log)
	data := datalayer.New(st, utils, catalog, objects, blobs, monitor, log)

	return Services{
		Store:     st,
		Utils:     utils,
		Catalog:   catalog,
		Objects:   objects,
		Blobs:     blobs,
		Monitor:   monitor,
		Downloads: downloads,
		Data:      data,
	}, nil
}
