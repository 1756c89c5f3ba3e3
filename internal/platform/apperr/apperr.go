package apperr

import (
	"errors"
	"fmt"
)

// Sentinel errors for the offline engine. Components wrap these with
// fmt.Errorf("...: %w", ...) so callers can branch with errors.Is.
var (
	ErrNotFound            = errors.New("not found")
	ErrAlreadyInProgress   = errors.New("download already in progress")
	ErrNotAvailableOffline = errors.New("not available offline; download the course while online")
	ErrStorageUnavailable  = errors.New("local storage unavailable")
	ErrInsufficientStorage = errors.New("not enough local storage for this download")
	ErrNoPausedDownload    = errors.New("no paused download for this course")
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}
