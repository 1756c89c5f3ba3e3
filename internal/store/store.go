// Package store implements the durable local course store: five indexed
// collections (courses, lessons, videos, assets, progress) on an embedded
// sqlite database, with transactional cascade delete and storage accounting.
package store

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/dil-lms/offline-engine/internal/platform/apperr"
	"github.com/dil-lms/offline-engine/internal/platform/logger"
	"github.com/dil-lms/offline-engine/internal/types"
)

const SchemaVersion = 1

// Storage limits and maintenance thresholds.
const (
	MaxCourseSize    int64 = 2 * 1024 * 1024 * 1024  // 2GB per course
	MaxTotalSize     int64 = 10 * 1024 * 1024 * 1024 // 10GB total
	CleanupThreshold       = 0.9
	AutoCleanupDays        = 30
)

// Collections returns the five collection names in schema order.
func Collections() []string {
	return []string{"courses", "lessons", "videos", "assets", "progress"}
}

type Store struct {
	path string
	log  *logger.Logger

	mu sync.RWMutex
	db *gorm.DB
	sf singleflight.Group
}

// New prepares a store at path. The database is not opened until Init (or
// the first operation) runs.
func New(path string, baseLog *logger.Logger) *Store {
	return &Store{
		path: path,
		log:  baseLog.With("component", "Store"),
	}
}

// Init opens (creating if necessary) the database and migrates the schema.
// It is idempotent, and concurrent callers share a single in-flight open.
func (s *Store) Init(ctx context.Context) error {
	s.mu.RLock()
	opened := s.db != nil
	s.mu.RUnlock()
	if opened {
		return nil
	}

	_, err, _ := s.sf.Do("init", func() (interface{}, error) {
		s.mu.RLock()
		if s.db != nil {
			s.mu.RUnlock()
			return nil, nil
		}
		s.mu.RUnlock()

		db, err := gorm.Open(sqlite.Open(s.path), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		if err != nil {
			return nil, fmt.Errorf("open database %q: %w: %v", s.path, apperr.ErrStorageUnavailable, err)
		}
		if err := db.WithContext(ctx).AutoMigrate(
			&types.Course{},
			&types.Lesson{},
			&types.Video{},
			&types.Asset{},
			&types.Progress{},
		); err != nil {
			return nil, fmt.Errorf("migrate schema: %w: %v", apperr.ErrStorageUnavailable, err)
		}

		s.mu.Lock()
		s.db = db
		s.mu.Unlock()
		s.log.Info("Store opened", "path", s.path, "schema_version", SchemaVersion)
		return nil, nil
	})
	return err
}

// handle returns a context-bound DB handle, initializing lazily.
func (s *Store) handle(ctx context.Context) (*gorm.DB, error) {
	if err := s.Init(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	db := s.db
	s.mu.RUnlock()
	if db == nil {
		return nil, apperr.ErrStorageUnavailable
	}
	return db.WithContext(ctx), nil
}

// Close releases the underlying connection. A later operation reopens the
// database transparently.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("unwrap sql db: %w", err)
	}
	s.db = nil
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	s.log.Info("Store closed", "path", s.path)
	return nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }
