package schemas

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedSchemas_Compile(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			_, err := load(name)
			require.NoError(t, err)
		})
	}
}

func TestValidate_UnknownSchema(t *testing.T) {
	err := Validate("nope", []byte(`{}`))
	require.Error(t, err)

	var loadErr *SchemaLoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Contains(t, err.Error(), "nope.schema.json")
}

func TestValidate_RetentionCurve(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantError bool
	}{
		{
			name:  "valid curve",
			input: `{"samples": [{"timestamp": 0, "retention_pct": 100, "dropout_pct": 0}], "step_seconds": 0.5, "total_duration": 10}`,
		},
		{
			name:  "dropout optional",
			input: `{"samples": [{"timestamp": 0, "retention_pct": 99.5}]}`,
		},
		{
			name:  "empty samples allowed",
			input: `{"samples": []}`,
		},
		{
			name:      "missing samples",
			input:     `{"step_seconds": 0.5}`,
			wantError: true,
		},
		{
			name:      "retention as string",
			input:     `{"samples": [{"timestamp": 0, "retention_pct": "100"}]}`,
			wantError: true,
		},
		{
			name:      "negative timestamp",
			input:     `{"samples": [{"timestamp": -1, "retention_pct": 100}]}`,
			wantError: true,
		},
		{
			name:      "array instead of object",
			input:     `[{"timestamp": 0, "retention_pct": 100}]`,
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(RetentionCurve, []byte(tt.input))
			if !tt.wantError {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var validationErr *ValidationError
			require.True(t, errors.As(err, &validationErr))
			assert.Equal(t, RetentionCurve, validationErr.Schema)
			assert.NotEmpty(t, validationErr.Errors)
		})
	}
}

func TestValidate_ContentBlocks(t *testing.T) {
	assert.NoError(t, Validate(ContentBlocks, []byte(`[{"name": "Hook", "start_time": 0, "end_time": 2, "content": "hi"}]`)))

	err := Validate(ContentBlocks, []byte(`[{"name": "Hook", "start_time": 0}]`))
	require.Error(t, err)
	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Contains(t, validationErr.Summary(), "end_time")
}

func TestValidate_Transcript(t *testing.T) {
	assert.NoError(t, Validate(Transcript, []byte(`[]`)))
	assert.NoError(t, Validate(Transcript, []byte(`[{"start": 0, "end": 1.2, "text": "hello"}]`)))
	assert.Error(t, Validate(Transcript, []byte(`[{"start": 0, "text": "hello"}]`)))
}

func TestValidate_MalformedJSON(t *testing.T) {
	err := Validate(Transcript, []byte(`[{"start": 0,`))
	require.Error(t, err)

	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, "(root)", validationErr.Errors[0].Field)
}

func TestValidateJSONString_Valid(t *testing.T) {
	schemaContent := `{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"type": "object",
		"required": ["name"],
		"properties": {
			"name": {"type": "string"}
		}
	}`
	jsonContent := `{"name": "test"}`

	err := ValidateJSONString(schemaContent, jsonContent)
	assert.NoError(t, err)
}

func TestValidateJSONString_Invalid(t *testing.T) {
	schemaContent := `{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"type": "object",
		"required": ["name"],
		"properties": {
			"name": {"type": "string"}
		}
	}`
	jsonContent := `{"age": 30}`

	err := ValidateJSONString(schemaContent, jsonContent)
	require.Error(t, err)

	validationErr, ok := err.(*ValidationError)
	require.True(t, ok)
	assert.Greater(t, len(validationErr.Errors), 0)
}

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{
		Errors: []FieldError{
			{Field: "name", Message: "is required"},
			{Field: "age", Message: "must be a number"},
		},
	}

	errorMsg := err.Error()
	assert.Contains(t, errorMsg, "validation failed")
	assert.Contains(t, errorMsg, "name")
	assert.Contains(t, errorMsg, "age")
	assert.Equal(t, "name: is required (and 1 more)", err.Summary())
}
