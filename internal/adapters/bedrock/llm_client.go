package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"go.uber.org/zap"
)

const anthropicVersion = "bedrock-2023-05-31"

// ErrEmptyResponse is returned when the model produced no text
var ErrEmptyResponse = errors.New("empty response from Bedrock model")

// modelInvoker is the part of the bedrockruntime client used here
type modelInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockClient is a text generator backed by Amazon Bedrock
type BedrockClient struct {
	client      modelInvoker
	modelID     string
	maxTokens   int
	temperature float32
	topP        float32
	logger      *zap.Logger
}

// NewBedrockClient creates a new Bedrock client
func NewBedrockClient(
	client *bedrockruntime.Client,
	modelID string,
	maxTokens int,
	temperature float32,
	topP float32,
	logger *zap.Logger,
) *BedrockClient {
	return newBedrockClient(client, modelID, maxTokens, temperature, topP, logger)
}

func newBedrockClient(
	client modelInvoker,
	modelID string,
	maxTokens int,
	temperature float32,
	topP float32,
	logger *zap.Logger,
) *BedrockClient {
	return &BedrockClient{
		client:      client,
		modelID:     modelID,
		maxTokens:   maxTokens,
		temperature: temperature,
		topP:        topP,
		logger:      logger,
	}
}

// Generate sends one prompt in the request format of the configured model
// family and returns the reply text
func (c *BedrockClient) Generate(ctx context.Context, prompt string) (string, error) {
	payload, err := c.requestBody(prompt)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request payload: %w", err)
	}

	resp, err := c.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.modelID),
		Body:        payload,
		Accept:      aws.String("application/json"),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to invoke Bedrock model %s: %w", c.modelID, err)
	}

	text, err := c.responseText(resp.Body)
	if err != nil {
		return "", err
	}

	c.logger.Debug("Bedrock response received", zap.String("model", c.modelID), zap.Int("length", len(text)))
	return text, nil
}

func (c *BedrockClient) requestBody(prompt string) ([]byte, error) {
	switch {
	case c.isAnthropicModel():
		return json.Marshal(map[string]interface{}{
			"anthropic_version": anthropicVersion,
			"max_tokens":        c.maxTokens,
			"temperature":       c.temperature,
			"top_p":             c.topP,
			"messages": []map[string]interface{}{
				{
					"role": "user",
					"content": []map[string]string{
						{"type": "text", "text": prompt},
					},
				},
			},
		})
	case c.isAmazonTitanModel():
		return json.Marshal(map[string]interface{}{
			"inputText": prompt,
			"textGenerationConfig": map[string]interface{}{
				"maxTokenCount": c.maxTokens,
				"temperature":   c.temperature,
				"topP":          c.topP,
			},
		})
	default:
		return json.Marshal(map[string]interface{}{
			"prompt":      prompt,
			"max_tokens":  c.maxTokens,
			"temperature": c.temperature,
			"top_p":       c.topP,
		})
	}
}

func (c *BedrockClient) responseText(body []byte) (string, error) {
	switch {
	case c.isAnthropicModel():
		var claudeResp struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		}
		if err := json.Unmarshal(body, &claudeResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Claude response: %w", err)
		}
		var sb strings.Builder
		for _, block := range claudeResp.Content {
			if block.Type == "text" {
				sb.WriteString(block.Text)
			}
		}
		if sb.Len() == 0 {
			return "", ErrEmptyResponse
		}
		return sb.String(), nil

	case c.isAmazonTitanModel():
		var titanResp struct {
			Results []struct {
				OutputText string `json:"outputText"`
			} `json:"results"`
		}
		if err := json.Unmarshal(body, &titanResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Titan response: %w", err)
		}
		if len(titanResp.Results) == 0 {
			return "", ErrEmptyResponse
		}
		return titanResp.Results[0].OutputText, nil

	default:
		var genericResp struct {
			Output     string `json:"output"`
			Text       string `json:"text"`
			Response   string `json:"response"`
			Generation string `json:"generation"`
		}
		if err := json.Unmarshal(body, &genericResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal generic response: %w", err)
		}
		for _, s := range []string{genericResp.Output, genericResp.Text, genericResp.Response, genericResp.Generation} {
			if s != "" {
				return s, nil
			}
		}
		// Just use the raw response as a string
		return string(body), nil
	}
}

// isAnthropicModel checks if the model is an Anthropic Claude model,
// including cross-region inference profiles such as us.anthropic.claude-*
func (c *BedrockClient) isAnthropicModel() bool {
	return strings.Contains(c.modelID, "anthropic.claude")
}

// isAmazonTitanModel checks if the model is an Amazon Titan model
func (c *BedrockClient) isAmazonTitanModel() bool {
	return strings.HasPrefix(c.modelID, "amazon.titan")
}
