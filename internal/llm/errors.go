package llm

import (
	"errors"
	"fmt"
)

// APICallError represents a failed or unusable call to an external AI capability
type APICallError struct {
	Message string
	Cause   error
}

func (e *APICallError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("API call failed: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("API call failed: %s", e.Message)
}

func (e *APICallError) Unwrap() error {
	return e.Cause
}

// ParseError represents model output that is not the expected JSON
type ParseError struct {
	Message string
	Cause   error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("parse error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("parse error: %s", e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// IsExternal reports whether err is an AI capability or model output failure
func IsExternal(err error) bool {
	var apiErr *APICallError
	var parseErr *ParseError
	return errors.As(err, &apiErr) || errors.As(err, &parseErr)
}
