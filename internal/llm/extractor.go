// Package llm - extractor.go provides generic LLM-based structured extraction prompts.
package llm

import (
	"fmt"
	"strings"
)

// ExtractionSchema defines the structure for LLM-based content extraction.
// It provides a reusable way to describe what to extract from text or an image.
type ExtractionSchema struct {
	Name        string        // Schema name (e.g., "RetentionCurve", "ContentBlocks")
	Description string        // System prompt preamble describing the extraction task
	Array       bool          // Output is a JSON array of objects with Fields
	Fields      []SchemaField // Expected output fields
	Rules       []string      // Extra task-specific rules appended to the instructions
}

// SchemaField defines a single field in the extraction output.
type SchemaField struct {
	Name        string // JSON field name
	Type        string // Type hint: "number", "string", "[{...}]"
	Description string // Description for the LLM
	Required    bool   // Whether this field is required
}

// BuildExtractionPrompt constructs the LLM prompt from schema and input text.
// An empty inputText omits the input section (the input is attached as media).
func BuildExtractionPrompt(schema ExtractionSchema, inputText string) string {
	var sb strings.Builder

	sb.WriteString(schema.Description)
	sb.WriteString("\n\n")

	if schema.Array {
		sb.WriteString("Return ONLY a valid JSON array where every element matches this exact structure:\n{\n")
	} else {
		sb.WriteString("Return ONLY valid JSON matching this exact structure:\n{\n")
	}
	for i, field := range schema.Fields {
		typeHint := field.Type
		if typeHint == "" {
			typeHint = "string"
		}
		requiredHint := ""
		if field.Required {
			requiredHint = " (required)"
		}
		sb.WriteString(fmt.Sprintf("  \"%s\": %s%s", field.Name, typeHint, requiredHint))
		if field.Description != "" {
			sb.WriteString(fmt.Sprintf(" // %s", field.Description))
		}
		if i < len(schema.Fields)-1 {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("}\n\n")

	sb.WriteString("IMPORTANT:\n")
	for _, rule := range schema.Rules {
		sb.WriteString("- ")
		sb.WriteString(rule)
		sb.WriteString("\n")
	}
	sb.WriteString("- Return ONLY the JSON, no markdown, no explanation, no code blocks.\n")

	if inputText != "" {
		sb.WriteString("\nInput:\n\"\"\"\n")
		sb.WriteString(inputText)
		sb.WriteString("\n\"\"\"\n")
	}

	return sb.String()
}

// --- Predefined Schemas ---

// RetentionCurveSchema returns the extraction schema for a retention-curve chart image.
func RetentionCurveSchema(description string, stepSeconds, knownDuration float64) ExtractionSchema {
	rules := []string{
		fmt.Sprintf("Sample the curve densely: one point every %.2f seconds from 0 to the end of the x-axis.", stepSeconds),
		"retention_pct is the y-value in percent (0-100); dropout_pct is 100 minus retention_pct.",
		"The first sample must be at timestamp 0.",
		"Read values from the plotted line itself, not from gridlines or labels.",
	}
	if knownDuration > 0 {
		rules = append(rules, fmt.Sprintf("The video is %.2f seconds long; total_duration must equal it.", knownDuration))
	}
	return ExtractionSchema{
		Name:        "RetentionCurve",
		Description: description,
		Fields: []SchemaField{
			{
				Name:        "samples",
				Type:        `[{"timestamp": number, "retention_pct": number, "dropout_pct": number}]`,
				Description: "Points along the curve ordered by timestamp (seconds)",
				Required:    true,
			},
			{
				Name:        "step_seconds",
				Type:        "number",
				Description: "Spacing between samples in seconds",
			},
			{
				Name:        "total_duration",
				Type:        "number",
				Description: "Length of the x-axis in seconds",
			},
		},
		Rules: rules,
	}
}

// ContentBlocksSchema returns the extraction schema for grouping observations into content blocks.
func ContentBlocksSchema(description string, totalDuration float64) ExtractionSchema {
	return ExtractionSchema{
		Name:        "ContentBlocks",
		Description: description,
		Array:       true,
		Fields: []SchemaField{
			{Name: "name", Type: `"string"`, Description: "Short descriptive block name", Required: true},
			{Name: "start_time", Type: "number", Description: "Block start in seconds", Required: true},
			{Name: "end_time", Type: "number", Description: "Block end in seconds", Required: true},
			{Name: "content", Type: `"string"`, Description: "What is said/shown in the block, verbatim where possible", Required: true},
			{Name: "purpose", Type: `"string"`, Description: "The block's role (hook, setup, payoff, call to action...)"},
		},
		Rules: []string{
			fmt.Sprintf("Blocks must cover the timeline from 0 to %.2f seconds in order without overlapping.", totalDuration),
			"The first three blocks must be short (1-3 seconds each) so early drop-off can be attributed precisely.",
			"Later blocks may be longer and should follow natural topic or scene changes.",
		},
	}
}
