// Package schemas provides JSON Schema validation of model output before it is decoded.
// The schemas are embedded at compile time and compiled once on first use.
package schemas

import (
	"embed"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// Schema names
const (
	RetentionCurve = "retention_curve"
	ContentBlocks  = "content_blocks"
	Transcript     = "transcript"
)

//go:embed *.schema.json
var schemaFiles embed.FS

var (
	compiled   = make(map[string]*gojsonschema.Schema)
	compiledMu sync.Mutex
)

// ValidationError represents a schema validation error with field paths
type ValidationError struct {
	Schema string
	Errors []FieldError
}

// FieldError represents a single validation error at a specific field
type FieldError struct {
	Field   string
	Message string
}

// SchemaLoadError represents errors loading or parsing the schema itself
type SchemaLoadError struct {
	Path    string
	Message string
	Cause   error
}

func (e *SchemaLoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to load schema %s: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to load schema %s: %s", e.Path, e.Message)
}

func (e *SchemaLoadError) Unwrap() error {
	return e.Cause
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	if ve.Schema != "" {
		sb.WriteString(fmt.Sprintf("validation failed against %s:\n", ve.Schema))
	} else {
		sb.WriteString("validation failed:\n")
	}
	for i, err := range ve.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	return sb.String()
}

// Summary returns the first field error on one line, for log messages
func (ve *ValidationError) Summary() string {
	if len(ve.Errors) == 0 {
		return "validation failed"
	}
	first := ve.Errors[0]
	if len(ve.Errors) == 1 {
		return fmt.Sprintf("%s: %s", first.Field, first.Message)
	}
	return fmt.Sprintf("%s: %s (and %d more)", first.Field, first.Message, len(ve.Errors)-1)
}

// Names lists the embedded schema names
func Names() []string {
	return []string{RetentionCurve, ContentBlocks, Transcript}
}

// load compiles and caches an embedded schema by name
func load(name string) (*gojsonschema.Schema, error) {
	compiledMu.Lock()
	defer compiledMu.Unlock()

	if schema, ok := compiled[name]; ok {
		return schema, nil
	}

	path := name + ".schema.json"
	data, err := schemaFiles.ReadFile(path)
	if err != nil {
		return nil, &SchemaLoadError{Path: path, Message: "unknown schema", Cause: err}
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, &SchemaLoadError{Path: path, Message: "schema does not compile", Cause: err}
	}
	compiled[name] = schema
	return schema, nil
}

// Validate validates raw JSON against the named embedded schema.
// Malformed JSON is reported as a ValidationError on the document root.
func Validate(name string, data []byte) error {
	schema, err := load(name)
	if err != nil {
		return err
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return &ValidationError{
			Schema: name,
			Errors: []FieldError{{Field: "(root)", Message: err.Error()}},
		}
	}
	return toValidationError(name, result)
}

// ValidateJSONString validates JSON string content against schema string content
func ValidateJSONString(schemaContent, jsonContent string) error {
	schemaLoader := gojsonschema.NewStringLoader(schemaContent)
	documentLoader := gojsonschema.NewStringLoader(jsonContent)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return &SchemaLoadError{
			Path:    "(string schema)",
			Message: "schema validation failed during load",
			Cause:   err,
		}
	}
	return toValidationError("", result)
}

func toValidationError(name string, result *gojsonschema.Result) error {
	if result.Valid() {
		return nil
	}

	validationErr := &ValidationError{
		Schema: name,
		Errors: make([]FieldError, 0, len(result.Errors())),
	}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		validationErr.Errors = append(validationErr.Errors, FieldError{
			Field:   field,
			Message: desc.Description(),
		})
	}
	return validationErr
}
