package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanJSONBlock(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "fenced curve table",
			input:    "```json\n{\"samples\": [{\"timestamp\": 0, \"retention_pct\": 100}, {\"timestamp\": 0.5, \"retention_pct\": 93.2}]}\n```",
			expected: `{"samples": [{"timestamp": 0, "retention_pct": 100}, {"timestamp": 0.5, "retention_pct": 93.2}]}`,
		},
		{
			name:     "fence without language",
			input:    "```\n{\"step_seconds\": 0.5}\n```",
			expected: `{"step_seconds": 0.5}`,
		},
		{
			name:     "fence with other language tag",
			input:    "```javascript\n{\"total_duration\": 42}\n```",
			expected: `{"total_duration": 42}`,
		},
		{
			name:     "plain object",
			input:    `{"samples": []}`,
			expected: `{"samples": []}`,
		},
		{
			name:     "preamble before curve",
			input:    "I read the chart carefully. Here is the data:\n\n{\"samples\": [{\"timestamp\": 0, \"retention_pct\": 98}]}",
			expected: `{"samples": [{"timestamp": 0, "retention_pct": 98}]}`,
		},
		{
			name:     "preamble before block list",
			input:    "The video has three segments:\n[{\"name\": \"Hook\", \"start_time\": 0, \"end_time\": 3.5}]",
			expected: `[{"name": "Hook", "start_time": 0, "end_time": 3.5}]`,
		},
		{
			name:     "trailing commentary",
			input:    "[{\"start\": 0, \"end\": 2.4, \"text\": \"hey everyone\"}]\n\nLet me know if you need word-level timing.",
			expected: `[{"start": 0, "end": 2.4, "text": "hey everyone"}]`,
		},
		{
			name:     "on-screen text with braces and quotes",
			input:    "Result: {\"purpose\": \"shows {price} as \\\"50% off\\\"\"}",
			expected: `{"purpose": "shows {price} as \"50% off\""}`,
		},
		{
			name:     "truncated block list",
			input:    "```json\n[{\"name\": \"Hook\", \"start_time\": 0",
			expected: `[{"name": "Hook", "start_time": 0`,
		},
		{
			name:     "no JSON at all",
			input:    "  no text visible  ",
			expected: "no text visible",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanJSONBlock(tt.input))
		})
	}
}

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "curve object", input: `{"samples": [{"timestamp": 1}]}`, expected: `{"samples": [{"timestamp": 1}]}`},
		{name: "trailing text", input: `{"step_seconds": 1} that is all`, expected: `{"step_seconds": 1}`},
		{name: "braces inside string", input: `{"content": "tap {link} below"}`, expected: `{"content": "tap {link} below"}`},
		{name: "unterminated", input: `{"samples": [`, expected: ""},
		{name: "empty", input: "", expected: ""},
		{name: "not an object", input: "samples", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractJSONObject(tt.input))
		})
	}
}

func TestExtractJSONArray(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "transcript segments", input: `[{"start": 0, "end": 1.5}, {"start": 1.5, "end": 3}]`, expected: `[{"start": 0, "end": 1.5}, {"start": 1.5, "end": 3}]`},
		{name: "nested", input: `[[0, 100], [1, 91.5]]`, expected: `[[0, 100], [1, 91.5]]`},
		{name: "brackets inside string", input: `["[music]", "outro"] done`, expected: `["[music]", "outro"]`},
		{name: "empty", input: "", expected: ""},
		{name: "not an array", input: "blocks", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractJSONArray(tt.input))
		})
	}
}
