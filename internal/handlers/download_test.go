package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dil-lms/offline-engine/internal/bloburl"
	"github.com/dil-lms/offline-engine/internal/connectivity"
	"github.com/dil-lms/offline-engine/internal/datalayer"
	"github.com/dil-lms/offline-engine/internal/download"
	"github.com/dil-lms/offline-engine/internal/platform/logger"
	"github.com/dil-lms/offline-engine/internal/store"
	"github.com/dil-lms/offline-engine/internal/storeutil"
	"github.com/dil-lms/offline-engine/internal/types"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubCatalog always fails, which is enough for handler-level tests: the
// estimate endpoint falls back and the guards run before any fetch.
type stubCatalog struct{}

func (stubCatalog) FetchCourseGraph(_ context.Context, _ string) (*types.CourseGraph, error) {
	return nil, errors.New("catalog unavailable")
}

func (stubCatalog) UpsertProgress(_ context.Context, _ *types.ProgressUpdate) error { return nil }

func (stubCatalog) ListProgress(_ context.Context, _, _ string) ([]*types.Progress, error) {
	return nil, nil
}

type stubObjects struct{}

func (stubObjects) CreateSignedURL(_ context.Context, objectPath string) (string, error) {
	return "https://signed.example/" + objectPath, nil
}

type handlerFixture struct {
	router *gin.Engine
	store  *store.Store
	blobs  *bloburl.Registry
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	log := logger.NewNop()
	s := store.New(filepath.Join(t.TempDir(), "offline.db"), log)
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	utils := storeutil.New(s, log)
	blobs := bloburl.NewRegistry()
	monitor := connectivity.NewMonitor()
	downloads := download.New(s, stubCatalog{}, stubObjects{}, log)
	data := datalayer.New(s, utils, stubCatalog{}, stubObjects{}, blobs, monitor, log)

	dh := NewDownloadHandler(log, downloads)
	sh := NewSystemHandler(log, monitor, blobs, data)

	router := gin.New()
	router.POST("/courses/:id/download", dh.Start)
	router.POST("/courses/:id/download/cancel", dh.Cancel)
	router.GET("/courses/:id/download/progress", dh.Progress)
	router.GET("/courses/:id/download/estimate", dh.Estimate)
	router.GET("/healthcheck", sh.Healthz)
	router.PUT("/connectivity", sh.SetConnectivity)
	router.GET("/blob", sh.ServeBlob)
	return &handlerFixture{router: router, store: s, blobs: blobs}
}

func (f *handlerFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestProgressEndpoint(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()

	course := &types.Course{
		ID:               "c1",
		Title:            "T",
		DownloadDate:     time.Now(),
		LastAccessed:     time.Now(),
		DownloadStatus:   types.DownloadStatusDownloading,
		DownloadProgress: 42.5,
	}
	if err := f.store.StoreCourse(ctx, course); err != nil {
		t.Fatalf("StoreCourse failed: %v", err)
	}

	rec := f.do(t, http.MethodGet, "/courses/c1/download/progress", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Progress float64 `json:"progress"`
		Status   string  `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Progress != 42.5 || resp.Status != "downloading" {
		t.Fatalf("resp = %+v", resp)
	}

	// Unknown course reports empty status instead of an error.
	rec = f.do(t, http.MethodGet, "/courses/unknown/download/progress", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestStartRejectsActiveDownload(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()

	course := &types.Course{
		ID:             "c1",
		Title:          "T",
		DownloadDate:   time.Now(),
		LastAccessed:   time.Now(),
		DownloadStatus: types.DownloadStatusDownloading,
	}
	if err := f.store.StoreCourse(ctx, course); err != nil {
		t.Fatalf("StoreCourse failed: %v", err)
	}

	rec := f.do(t, http.MethodPost, "/courses/c1/download", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "download_in_progress") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestCancelWithoutActiveDownload(t *testing.T) {
	f := newHandlerFixture(t)
	rec := f.do(t, http.MethodPost, "/courses/c1/download/cancel", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestEstimateFallsBack(t *testing.T) {
	f := newHandlerFixture(t)
	rec := f.do(t, http.MethodGet, "/courses/c1/download/estimate", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		EstimatedSize int64  `json:"estimatedSize"`
		SizeFormatted string `json:"sizeFormatted"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.EstimatedSize != 500<<20 || resp.SizeFormatted != "500 MB" {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestSetConnectivityValidation(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodPut, "/connectivity", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing field: status = %d", rec.Code)
	}

	rec = f.do(t, http.MethodPut, "/connectivity", `{"online":false}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodGet, "/healthcheck", "")
	if !strings.Contains(rec.Body.String(), `"online":false`) {
		t.Fatalf("healthcheck body = %s", rec.Body.String())
	}
}

func TestServeBlob(t *testing.T) {
	f := newHandlerFixture(t)
	url := f.blobs.Create([]byte("blob-bytes"))

	rec := f.do(t, http.MethodGet, "/blob?url="+url, "")
	if rec.Code != http.StatusOK || rec.Body.String() != "blob-bytes" {
		t.Fatalf("status = %d, body = %q", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodGet, "/blob?url=blob:mem/unknown", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}
