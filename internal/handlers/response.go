package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dil-lms/offline-engine/internal/platform/apperr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// RespondAppError maps domain sentinel errors to HTTP statuses.
func RespondAppError(c *gin.Context, code string, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		RespondError(c, http.StatusNotFound, code, err)
	case errors.Is(err, apperr.ErrAlreadyInProgress), errors.Is(err, apperr.ErrNoPausedDownload):
		RespondError(c, http.StatusConflict, code, err)
	case errors.Is(err, apperr.ErrInsufficientStorage):
		RespondError(c, http.StatusInsufficientStorage, code, err)
	case errors.Is(err, apperr.ErrNotAvailableOffline):
		RespondError(c, http.StatusPreconditionFailed, code, err)
	case errors.Is(err, apperr.ErrStorageUnavailable):
		RespondError(c, http.StatusServiceUnavailable, code, err)
	default:
		RespondError(c, http.StatusInternalServerError, code, err)
	}
}
