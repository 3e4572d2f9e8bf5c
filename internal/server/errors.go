package server

import (
	"errors"
	"net/http"

	"github.com/jonathan/retention-insights/internal/pipeline"
	"github.com/jonathan/retention-insights/internal/store"
)

// ErrNoRunRecords is returned by run-record endpoints when the store keeps no run records
var ErrNoRunRecords = errors.New("store does not keep run records")

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var validationErr *pipeline.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrNoRunRecords):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}
