package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Client is an abstraction over LLM providers
type Client interface {
	// GenerateContent generates text content using the specified model tier
	GenerateContent(ctx context.Context, prompt string, tier ModelTier) (string, error)
	// GenerateJSON generates JSON content using the specified model tier
	GenerateJSON(ctx context.Context, prompt string, tier ModelTier) (string, error)
	// GenerateWithImage sends a prompt together with an image (vision-language capability)
	GenerateWithImage(ctx context.Context, prompt string, image []byte, format string, tier ModelTier) (string, error)
	// GenerateWithAudio sends a prompt together with an audio file (speech-to-text capability)
	GenerateWithAudio(ctx context.Context, prompt string, audio []byte, mimeType string, tier ModelTier) (string, error)
	// GetModel returns the underlying provider model for a tier (for direct access if needed)
	GetModel(tier ModelTier) string
	// Close releases any resources held by the client
	Close() error
}

// NewClient creates a new LLM client based on configuration
func NewClient(ctx context.Context, config *Config, apiKey string) (Client, error) {
	if config == nil {
		config = DefaultConfig()
	}

	switch config.Provider {
	case ProviderGemini:
		return NewGeminiClient(ctx, config, apiKey)
	default:
		return NewGeminiClient(ctx, config, apiKey)
	}
}

// GeminiClient implements Client for Google Gemini
type GeminiClient struct {
	client *genai.Client
	config *Config
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(ctx context.Context, config *Config, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client: client,
		config: config,
	}, nil
}

// model returns a configured generative model for the tier
func (c *GeminiClient) model(tier ModelTier, jsonOutput bool) (*genai.GenerativeModel, error) {
	modelName := c.config.GetModel(tier)
	if modelName == "" {
		return nil, fmt.Errorf("no model configured for tier %s", tier)
	}

	model := c.client.GenerativeModel(modelName)
	model.SetTemperature(c.config.Temperature)
	if jsonOutput {
		model.ResponseMIMEType = "application/json"
	}
	return model, nil
}

// generate runs one request and extracts the text of the first candidate
func (c *GeminiClient) generate(ctx context.Context, tier ModelTier, jsonOutput bool, parts ...genai.Part) (string, error) {
	model, err := c.model(tier, jsonOutput)
	if err != nil {
		return "", err
	}

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", &APICallError{Message: "failed to generate content", Cause: err}
	}

	text, err := extractTextFromResponse(resp)
	if err != nil {
		return "", &APICallError{Message: "empty model response", Cause: err}
	}
	if jsonOutput {
		return CleanJSONBlock(text), nil
	}
	return text, nil
}

// GenerateContent generates text content using the specified model tier
func (c *GeminiClient) GenerateContent(ctx context.Context, prompt string, tier ModelTier) (string, error) {
	return c.generate(ctx, tier, false, genai.Text(prompt))
}

// GenerateJSON generates JSON content using the specified model tier
func (c *GeminiClient) GenerateJSON(ctx context.Context, prompt string, tier ModelTier) (string, error) {
	return c.generate(ctx, tier, true, genai.Text(prompt))
}

// GenerateWithImage sends the prompt and an image. format is the image subtype ("jpeg", "png").
func (c *GeminiClient) GenerateWithImage(ctx context.Context, prompt string, image []byte, format string, tier ModelTier) (string, error) {
	if len(image) == 0 {
		return "", fmt.Errorf("image data is empty")
	}
	return c.generate(ctx, tier, false, genai.ImageData(format, image), genai.Text(prompt))
}

// GenerateWithAudio sends the prompt and an inline audio blob
func (c *GeminiClient) GenerateWithAudio(ctx context.Context, prompt string, audio []byte, mimeType string, tier ModelTier) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("audio data is empty")
	}
	return c.generate(ctx, tier, false, genai.Blob{MIMEType: mimeType, Data: audio}, genai.Text(prompt))
}

// GetModel returns the model name for a tier
func (c *GeminiClient) GetModel(tier ModelTier) string {
	return c.config.GetModel(tier)
}

// Close releases resources held by the client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// extractTextFromResponse extracts text from Gemini API response
func extractTextFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("no text parts in response")
	}

	return strings.Join(parts, ""), nil
}
