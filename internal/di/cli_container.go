package di

import (
	"flag"
	"os"
	"strings"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/email-intel/internal/adapters/filter"
	"github.com/mikey/email-intel/internal/config"
	"github.com/mikey/email-intel/internal/core"
	"github.com/mikey/email-intel/internal/factory"
	"github.com/mikey/email-intel/internal/logging"
	"github.com/mikey/email-intel/internal/memory"
	"github.com/mikey/email-intel/internal/ports"
)

// CLIFlags contains all command line flags for the CLI application
type CLIFlags struct {
	// LLM provider flags
	Provider    string
	Model       string
	APIKey      string
	MaxTokens   int
	MaxBodySize int

	// Sender memory flags
	MemoryFile string

	// Input flags
	InputFile  string
	History    bool
	Demo       bool
	Verbose    bool
	JSONLog    bool
	ConfigFile string
}

// ParseFlags parses command line flags and returns a CLIFlags struct
func ParseFlags() *CLIFlags {
	return parseFlags(flag.CommandLine, os.Args[1:])
}

func parseFlags(fs *flag.FlagSet, args []string) *CLIFlags {
	flags := &CLIFlags{}

	// LLM provider flags
	fs.StringVar(&flags.Provider, "provider", "groq", "LLM provider (openai, groq, gemini, bedrock)")
	fs.StringVar(&flags.Model, "model", "", "Model name or Bedrock model ID (provider default if empty)")
	fs.StringVar(&flags.APIKey, "api-key", "", "API key for OpenAI, Groq or Gemini")
	fs.IntVar(&flags.MaxTokens, "max-tokens", 1000, "Maximum tokens for LLM response")
	fs.IntVar(&flags.MaxBodySize, "max-body-size", 4000, "Maximum email body size to send to LLM")

	// Sender memory flags
	fs.StringVar(&flags.MemoryFile, "memory-file", "sender_memory.json", "Sender memory JSON file")

	// Input flags
	fs.StringVar(&flags.InputFile, "file", "", "Input email file (use stdin if not specified)")
	fs.BoolVar(&flags.History, "history", false, "Print the sender memory and exit")
	fs.BoolVar(&flags.Demo, "demo", false, "Analyse the bundled sample emails")
	fs.BoolVar(&flags.Verbose, "verbose", false, "Enable verbose logging")
	fs.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")
	fs.StringVar(&flags.ConfigFile, "config", "", "Path to config file (overrides command line flags)")

	// flag.CommandLine exits on error; test flag sets continue with defaults
	_ = fs.Parse(args)
	return flags
}

// BuildCLIContainer creates and configures a dependency injection container for the CLI application
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		if flags.ConfigFile != "" {
			cfg, err := config.NewFromFile(flags.ConfigFile)
			if err != nil {
				return nil, err
			}
			cfg.GetViper().Set("server.filter_type", "cli")
			cfg.GetViper().Set("cli.verbose", flags.Verbose)
			logger.Info("Loaded configuration from file", zap.String("file", cfg.GetViper().ConfigFileUsed()))
			return cfg, nil
		}

		// Create config from command line flags
		return createConfigFromFlags(flags), nil
	}); err != nil {
		return nil, err
	}

	if err := providePipeline(container); err != nil {
		return nil, err
	}

	// Register pipeline
	if err := container.Provide(func(
		classifier *core.Classifier,
		planner *core.Planner,
		store *memory.Store,
		logger *zap.Logger,
	) *core.Pipeline {
		return core.NewPipeline(classifier, planner, store, logger)
	}); err != nil {
		return nil, err
	}

	// No metrics for one-shot runs
	if err := container.Provide(func() filter.EmailRecorder { return nil }); err != nil {
		return nil, err
	}

	if err := container.Provide(factory.NewFilterFactory); err != nil {
		return nil, err
	}

	// Register email filter
	if err := container.Provide(func(f *factory.FilterFactory) (ports.EmailFilter, error) {
		return f.CreateEmailFilter()
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// createConfigFromFlags creates a configuration from command line flags
func createConfigFromFlags(flags *CLIFlags) *config.Config {
	v := config.NewEmptyViper()

	// Set some cli specific settings
	v.Set("server.filter_type", "cli")
	v.Set("cli.verbose", flags.Verbose)

	// Set LLM provider
	v.Set("llm.provider", flags.Provider)

	// Set provider-specific configuration
	switch flags.Provider {
	case factory.ProviderBedrock:
		if flags.Model != "" {
			v.Set("bedrock.model_id", flags.Model)
		}
		v.Set("bedrock.max_tokens", flags.MaxTokens)
	case factory.ProviderGemini, factory.ProviderOpenAI, factory.ProviderGroq:
		if flags.Model != "" {
			v.Set(flags.Provider+".model_name", flags.Model)
		}
		if flags.APIKey != "" {
			v.Set(flags.Provider+".api_key", flags.APIKey)
		}
		v.Set(flags.Provider+".max_tokens", flags.MaxTokens)
	}

	// Set pipeline and sender memory
	v.Set("pipeline.max_body_size", flags.MaxBodySize)
	v.Set("memory.type", "file")
	v.Set("memory.file_path", flags.MemoryFile)

	// Environment variables still supply API keys
	v.AutomaticEnv()
	v.SetEnvPrefix("EMAIL_AGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return config.NewFromViper(v)
}
