package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrDocumentUnreadable = errors.New("document unreadable")
	ErrDuplicateDocument  = errors.New("duplicate document id")
	ErrSnapshotNotFound   = errors.New("snapshot not found")
	ErrSnapshotCorrupt    = errors.New("snapshot corrupt")
	// ErrIndexCorrupt signals a posting whose line has no stored content.
	ErrIndexCorrupt      = errors.New("index corrupt")
	ErrIndexNotReady     = errors.New("index not ready")
	ErrRebuildInProgress = errors.New("rebuild already in progress")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInternal          = errors.New("internal error")
	ErrTimeout           = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrSnapshotNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrRebuildInProgress), errors.Is(err, ErrDuplicateDocument):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrIndexNotReady), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
