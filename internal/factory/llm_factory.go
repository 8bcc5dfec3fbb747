package factory

import (
	"context"
	"fmt"
	"io"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/mikey/email-intel/internal/adapters/bedrock"
	"github.com/mikey/email-intel/internal/adapters/gemini"
	"github.com/mikey/email-intel/internal/adapters/openai"
	"github.com/mikey/email-intel/internal/config"
	"github.com/mikey/email-intel/internal/core"
	"go.uber.org/zap"
)

// Supported LLM providers
const (
	ProviderOpenAI  = "openai"
	ProviderGroq    = "groq"
	ProviderGemini  = "gemini"
	ProviderBedrock = "bedrock"
)

// LLMFactory creates text generators for the configured provider
type LLMFactory struct {
	cfg     *config.Config
	logger  *zap.Logger
	closers []io.Closer
}

// NewLLMFactory creates a new LLM factory
func NewLLMFactory(cfg *config.Config, logger *zap.Logger) *LLMFactory {
	return &LLMFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateClassifierGenerator creates the generator used by the four
// classification stages, at the provider's configured temperature
func (f *LLMFactory) CreateClassifierGenerator(ctx context.Context) (core.TextGenerator, error) {
	return f.create(ctx, nil)
}

// CreatePlannerGenerator creates the generator used by the action planner,
// at llm.planner_temperature
func (f *LLMFactory) CreatePlannerGenerator(ctx context.Context) (core.TextGenerator, error) {
	temperature := f.cfg.GetLLM().PlannerTemperature
	return f.create(ctx, &temperature)
}

// Close releases provider clients that hold connections
func (f *LLMFactory) Close() error {
	var firstErr error
	for _, c := range f.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	f.closers = nil
	return firstErr
}

func (f *LLMFactory) create(ctx context.Context, temperature *float32) (core.TextGenerator, error) {
	provider := f.cfg.GetLLM().Provider

	f.logger.Debug("Creating text generator", zap.String("provider", provider))

	switch provider {
	case ProviderOpenAI, ProviderGroq:
		return f.createOpenAI(provider, temperature)
	case ProviderGemini:
		return f.createGemini(ctx, temperature)
	case ProviderBedrock:
		return f.createBedrock(ctx, temperature)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", provider)
	}
}

// createOpenAI serves both OpenAI and Groq; section names the config block
func (f *LLMFactory) createOpenAI(section string, temperature *float32) (core.TextGenerator, error) {
	openaiCfg := f.cfg.GetOpenAI(section)
	if openaiCfg.APIKey == "" {
		return nil, fmt.Errorf("%s API key is required", section)
	}

	return openai.NewOpenAIClient(
		openaiCfg.APIKey,
		openaiCfg.BaseURL,
		openaiCfg.ModelName,
		openaiCfg.MaxTokens,
		pick(temperature, openaiCfg.Temperature),
		openaiCfg.TopP,
		f.logger,
	), nil
}

func (f *LLMFactory) createGemini(ctx context.Context, temperature *float32) (core.TextGenerator, error) {
	geminiCfg := f.cfg.GetGemini()
	if geminiCfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := gemini.NewGeminiClient(
		ctx,
		geminiCfg.APIKey,
		geminiCfg.ModelName,
		geminiCfg.MaxTokens,
		pick(temperature, geminiCfg.Temperature),
		geminiCfg.TopP,
		f.logger,
	)
	if err != nil {
		return nil, err
	}

	f.closers = append(f.closers, client)
	return client, nil
}

func (f *LLMFactory) createBedrock(ctx context.Context, temperature *float32) (core.TextGenerator, error) {
	bedrockCfg := f.cfg.GetBedrock()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(bedrockCfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	return bedrock.NewBedrockClient(
		bedrockruntime.NewFromConfig(awsCfg),
		bedrockCfg.ModelID,
		bedrockCfg.MaxTokens,
		pick(temperature, bedrockCfg.Temperature),
		bedrockCfg.TopP,
		f.logger,
	), nil
}

func pick(override *float32, fallback float32) float32 {
	if override != nil {
		return *override
	}
	return fallback
}
