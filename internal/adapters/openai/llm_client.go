package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const systemPrompt = "You are an email analysis assistant. Respond only with JSON."

// ErrEmptyResponse is returned when the API answers without any choice
var ErrEmptyResponse = errors.New("empty response from OpenAI")

// chatCompleter is the part of the go-openai client used here
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIClient is a text generator backed by the OpenAI chat completions API
// or any compatible endpoint (Groq, local gateways)
type OpenAIClient struct {
	client      chatCompleter
	modelName   string
	maxTokens   int
	temperature float32
	topP        float32
	logger      *zap.Logger
}

// NewOpenAIClient creates a new OpenAI client. An empty baseURL uses the
// public OpenAI endpoint.
func NewOpenAIClient(
	apiKey string,
	baseURL string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	logger *zap.Logger,
) *OpenAIClient {
	clientCfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientCfg.BaseURL = baseURL
	}

	return newOpenAIClient(openai.NewClientWithConfig(clientCfg), modelName, maxTokens, temperature, topP, logger)
}

func newOpenAIClient(
	client chatCompleter,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	logger *zap.Logger,
) *OpenAIClient {
	return &OpenAIClient{
		client:      client,
		modelName:   modelName,
		maxTokens:   maxTokens,
		temperature: temperature,
		topP:        topP,
		logger:      logger,
	}
}

// Generate sends one prompt and returns the reply text
func (c *OpenAIClient) Generate(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.modelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		TopP:        c.topP,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion with %s: %w", c.modelName, err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	c.logger.Debug("Chat completion received",
		zap.String("model", c.modelName),
		zap.String("id", resp.ID),
		zap.Int("total_tokens", resp.Usage.TotalTokens))

	return resp.Choices[0].Message.Content, nil
}
