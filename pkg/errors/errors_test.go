package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"app error wins", New(ErrIndexCorrupt, http.StatusTeapot, "x"), http.StatusTeapot},
		{"wrapped app error", fmt.Errorf("query: %w", New(ErrIndexCorrupt, http.StatusInternalServerError, "x")), http.StatusInternalServerError},
		{"not found", ErrSnapshotNotFound, http.StatusNotFound},
		{"rebuild conflict", fmt.Errorf("rebuild: %w", ErrRebuildInProgress), http.StatusConflict},
		{"invalid input", ErrInvalidInput, http.StatusBadRequest},
		{"not ready", ErrIndexNotReady, http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatusCode(tt.err); got != tt.want {
				t.Errorf("HTTPStatusCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	err := Newf(ErrIndexCorrupt, http.StatusInternalServerError, "posting %s/%d has no content", "doc1", 3)
	if !errors.Is(err, ErrIndexCorrupt) {
		t.Fatal("expected errors.Is to match the sentinel")
	}
	want := "index corrupt: posting doc1/3 has no content"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
