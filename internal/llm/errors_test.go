package llm

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAPICallError(t *testing.T) {
	cause := errors.New("quota exceeded")
	err := &APICallError{Message: "failed to generate content", Cause: cause}

	assert.Equal(t, "API call failed: failed to generate content: quota exceeded", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsExternal(fmt.Errorf("stage: %w", err)))
}

func TestParseError(t *testing.T) {
	err := &ParseError{Message: "no samples"}
	assert.Equal(t, "parse error: no samples", err.Error())
	assert.True(t, IsExternal(err))
	assert.False(t, IsExternal(errors.New("plain")))
}
