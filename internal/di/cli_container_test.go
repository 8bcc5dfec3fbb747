package di

import (
	"flag"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikey/email-intel/internal/config"
	"github.com/mikey/email-intel/internal/core"
	"github.com/mikey/email-intel/internal/memory"
	"github.com/mikey/email-intel/internal/ports"
)

func TestParseFlags(t *testing.T) {
	fs := flag.NewFlagSet("email-agent", flag.ContinueOnError)
	flags := parseFlags(fs, []string{"-provider", "gemini", "-model", "gemini-1.5-pro", "-file", "mail.eml", "-history"})

	assert.Equal(t, "gemini", flags.Provider)
	assert.Equal(t, "gemini-1.5-pro", flags.Model)
	assert.Equal(t, "mail.eml", flags.InputFile)
	assert.True(t, flags.History)
	assert.False(t, flags.Demo)
	assert.Equal(t, "sender_memory.json", flags.MemoryFile)
	assert.Equal(t, 4000, flags.MaxBodySize)
}

func TestCreateConfigFromFlags(t *testing.T) {
	cfg := createConfigFromFlags(&CLIFlags{
		Provider:    "groq",
		Model:       "llama-3.1-8b-instant",
		APIKey:      "gsk-test",
		MaxTokens:   500,
		MaxBodySize: 2000,
		MemoryFile:  "/tmp/senders.json",
		Verbose:     true,
	})

	assert.Equal(t, "cli", cfg.GetServer().FilterType)
	assert.True(t, cfg.GetBool("cli.verbose"))
	assert.Equal(t, "groq", cfg.GetLLM().Provider)

	groq := cfg.GetOpenAI("groq")
	assert.Equal(t, "gsk-test", groq.APIKey)
	assert.Equal(t, "llama-3.1-8b-instant", groq.ModelName)
	assert.Equal(t, 500, groq.MaxTokens)
	assert.Equal(t, "https://api.groq.com/openai/v1", groq.BaseURL)

	assert.Equal(t, 2000, cfg.GetPipeline().MaxBodySize)
	assert.Equal(t, "file", cfg.GetMemory().Type)
	assert.Equal(t, "/tmp/senders.json", cfg.GetMemory().FilePath)
}

func TestBuildCLIContainer(t *testing.T) {
	flags := &CLIFlags{
		Provider:    "openai",
		APIKey:      "sk-test",
		MaxTokens:   100,
		MaxBodySize: 4000,
		MemoryFile:  filepath.Join(t.TempDir(), "senders.json"),
	}

	container, err := BuildCLIContainer(flags)
	require.NoError(t, err)

	err = container.Invoke(func(
		cfg *config.Config,
		store *memory.Store,
		pipeline *core.Pipeline,
		emailFilter ports.EmailFilter,
	) {
		assert.Equal(t, "openai", cfg.GetLLM().Provider)
		assert.Empty(t, store.Senders())
		assert.Len(t, pipeline.StageNames(), 7)
		assert.NotNil(t, emailFilter)
	})
	require.NoError(t, err)
}

func TestBuildCLIContainerUnknownProvider(t *testing.T) {
	container, err := BuildCLIContainer(&CLIFlags{
		Provider:   "watson",
		MemoryFile: filepath.Join(t.TempDir(), "senders.json"),
	})
	require.NoError(t, err)

	// history needs no provider
	require.NoError(t, container.Invoke(func(store *memory.Store) {}))

	err = container.Invoke(func(p *core.Pipeline) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported LLM provider: watson")
}
