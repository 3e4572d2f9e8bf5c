package server

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/retention-insights/internal/pipeline"
	"github.com/jonathan/retention-insights/internal/store"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &pipeline.ValidationError{Field: "VideoPath", Message: "is required"}, http.StatusBadRequest},
		{"wrapped validation", &pipeline.StageError{Stage: "validating", Cause: &pipeline.ValidationError{Message: "x"}}, http.StatusBadRequest},
		{"not found", fmt.Errorf("failed to update: %w", store.ErrNotFound), http.StatusNotFound},
		{"no run records", ErrNoRunRecords, http.StatusNotImplemented},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}
