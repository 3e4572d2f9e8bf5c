package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildExtractionPrompt_ImageInput(t *testing.T) {
	prompt := BuildExtractionPrompt(RetentionCurveSchema("Digitize the chart.", 0.5, 42), "")

	assert.Contains(t, prompt, "Digitize the chart.")
	assert.Contains(t, prompt, `"samples": [{"timestamp": number`)
	assert.Contains(t, prompt, "(required)")
	assert.Contains(t, prompt, "one point every 0.50 seconds")
	assert.Contains(t, prompt, "total_duration must equal it")
	assert.NotContains(t, prompt, "Input:")
}

func TestBuildExtractionPrompt_TextInput(t *testing.T) {
	prompt := BuildExtractionPrompt(ContentBlocksSchema("Group the transcript.", 30), "[0.00] hello")

	assert.Contains(t, prompt, "JSON array")
	assert.Contains(t, prompt, "from 0 to 30.00 seconds")
	assert.Contains(t, prompt, "1-3 seconds")
	assert.Contains(t, prompt, "Input:\n\"\"\"\n[0.00] hello\n\"\"\"")
}

func TestRetentionCurveSchema_UnknownDuration(t *testing.T) {
	schema := RetentionCurveSchema("x", 1, 0)
	for _, rule := range schema.Rules {
		assert.NotContains(t, rule, "total_duration must equal")
	}
}
