package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// ErrEmptyResponse is returned when Gemini answers without text
var ErrEmptyResponse = errors.New("empty response from Gemini")

// GeminiClient is a text generator backed by Google Gemini
type GeminiClient struct {
	client    *genai.Client
	model     *genai.GenerativeModel
	modelName string
	logger    *zap.Logger
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(
	ctx context.Context,
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	logger *zap.Logger,
) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(temperature)
	model.SetTopP(topP)
	if maxTokens > 0 {
		model.SetMaxOutputTokens(int32(maxTokens))
	}
	model.ResponseMIMEType = "application/json"

	return &GeminiClient{
		client:    client,
		model:     model,
		modelName: modelName,
		logger:    logger,
	}, nil
}

// Close closes the Gemini client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// Generate sends one prompt and returns the concatenated text parts of the
// first candidate
func (c *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content with Gemini: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return "", ErrEmptyResponse
	}

	c.logger.Debug("Gemini content received", zap.String("model", c.modelName), zap.Int("length", sb.Len()))
	return sb.String(), nil
}
