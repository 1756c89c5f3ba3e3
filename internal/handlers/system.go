package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dil-lms/offline-engine/internal/bloburl"
	"github.com/dil-lms/offline-engine/internal/connectivity"
	"github.com/dil-lms/offline-engine/internal/datalayer"
	"github.com/dil-lms/offline-engine/internal/platform/logger"
)

type SystemHandler struct {
	log     *logger.Logger
	monitor *connectivity.Monitor
	blobs   *bloburl.Registry
	data    *datalayer.Layer
}

func NewSystemHandler(log *logger.Logger, monitor *connectivity.Monitor, blobs *bloburl.Registry, data *datalayer.Layer) *SystemHandler {
	return &SystemHandler{
		log:     log.With("handler", "SystemHandler"),
		monitor: monitor,
		blobs:   blobs,
		data:    data,
	}
}

func (h *SystemHandler) Healthz(c *gin.Context) {
	RespondOK(c, gin.H{"status": "ok", "online": h.monitor.Online()})
}

type connectivityRequest struct {
	Online *bool `json:"online" binding:"required"`
}

// SetConnectivity flips the engine between online and offline operation,
// driven by the host application's network probes.
func (h *SystemHandler) SetConnectivity(c *gin.Context) {
	var req connectivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	h.monitor.SetOnline(*req.Online)
	h.log.Info("Connectivity changed", "online", *req.Online)
	RespondOK(c, gin.H{"online": h.monitor.Online()})
}

type preferenceRequest struct {
	PreferOffline *bool `json:"preferOffline" binding:"required"`
}

func (h *SystemHandler) SetOfflinePreference(c *gin.Context) {
	var req preferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	h.data.SetOfflinePreference(*req.PreferOffline)
	RespondOK(c, gin.H{"preferOffline": *req.PreferOffline})
}

func (h *SystemHandler) CleanupBlobURLs(c *gin.Context) {
	h.data.CleanupBlobURLs()
	RespondOK(c, gin.H{"cleaned": true})
}

// ServeBlob streams the bytes behind an issued blob URL, so media players
// can consume offline content over plain HTTP.
func (h *SystemHandler) ServeBlob(c *gin.Context) {
	url := c.Query("url")
	blob, ok := h.blobs.Resolve(url)
	if !ok {
		RespondError(c, http.StatusNotFound, "blob_not_found", nil)
		return
	}
	c.Data(http.StatusOK, "application/octet-stream", blob)
}
