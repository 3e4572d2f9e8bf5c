package pipeline

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/retention-insights/internal/types"
)

// ValidationError reports a missing or invalid run input. It is never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid request: %s", e.Message)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// StageError wraps the error that aborted a run with the stage it happened in
type StageError struct {
	Stage string
	Cause error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Cause)
}

func (e *StageError) Unwrap() error {
	return e.Cause
}

// IsValidationError reports whether err is, or wraps, a ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ValidateRequest checks req and returns a *ValidationError naming the first bad field
func ValidateRequest(req *types.AnalyzeRequest) error {
	if err := req.Validate(); err != nil {
		return fromValidator(err)
	}
	return nil
}

// fromValidator converts the first failed struct tag into a ValidationError
func fromValidator(err error) *ValidationError {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		msg := fmt.Sprintf("failed %q check", fe.Tag())
		switch fe.Tag() {
		case "required":
			msg = "is required"
		case "file":
			msg = fmt.Sprintf("file %q does not exist", fe.Value())
		case "gte":
			msg = "must be >= " + fe.Param()
		case "lte":
			msg = "must be <= " + fe.Param()
		}
		return &ValidationError{Field: fe.Field(), Message: msg}
	}
	return &ValidationError{Message: err.Error()}
}
