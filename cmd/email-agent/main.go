package main

import (
	"context"
	"embed"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"

	"github.com/mikey/email-intel/internal/adapters/filter"
	"github.com/mikey/email-intel/internal/core"
	"github.com/mikey/email-intel/internal/di"
	"github.com/mikey/email-intel/internal/factory"
	"github.com/mikey/email-intel/internal/memory"
	"github.com/mikey/email-intel/internal/ports"
	"go.uber.org/zap"
)

//go:embed samples/*.eml
var samples embed.FS

func main() {
	// Parse command line flags
	flags := di.ParseFlags()

	// Build the dependency injection container
	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	if flags.History {
		err = container.Invoke(printHistory)
	} else {
		err = container.Invoke(run)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Application error: %v\n", err)
		os.Exit(1)
	}
}

// printHistory lists the sender memory without touching the LLM provider
func printHistory(store *memory.Store, repo core.SenderRepository, logger *zap.Logger) error {
	defer logger.Sync()
	defer closeRepository(repo, logger)

	return filter.WriteHistory(os.Stdout, store.Senders(), store.Get)
}

// run is the main application function that gets all dependencies injected
func run(
	flags *di.CLIFlags,
	logger *zap.Logger,
	emailFilter ports.EmailFilter,
	llmFactory *factory.LLMFactory,
	repo core.SenderRepository,
) error {
	defer logger.Sync()
	defer closeRepository(repo, logger)
	defer func() {
		if err := llmFactory.Close(); err != nil {
			logger.Error("Failed to close LLM client", zap.Error(err))
		}
	}()

	if flags.Demo {
		return runDemo(emailFilter, logger)
	}

	// Read email from file or stdin
	var emailReader io.Reader
	if flags.InputFile != "" {
		file, err := os.Open(flags.InputFile)
		if err != nil {
			logger.Error("Failed to open input file", zap.Error(err), zap.String("file", flags.InputFile))
			return err
		}
		defer file.Close()
		emailReader = file
		logger.Info("Reading email from file", zap.String("file", flags.InputFile))
	} else {
		emailReader = os.Stdin
		logger.Info("Reading email from stdin")
	}

	raw, err := io.ReadAll(emailReader)
	if err != nil {
		logger.Error("Failed to read email", zap.Error(err))
		return err
	}

	_, err = emailFilter.ProcessEmail(context.Background(), string(raw))
	return err
}

// runDemo analyses every bundled sample, then the first one again so the
// sender memory visibly grows
func runDemo(emailFilter ports.EmailFilter, logger *zap.Logger) error {
	names, err := fs.Glob(samples, "samples/*.eml")
	if err != nil {
		return err
	}
	sort.Strings(names)
	if len(names) == 0 {
		return fmt.Errorf("no bundled samples")
	}
	names = append(names, names[0])

	for i, name := range names {
		raw, err := samples.ReadFile(name)
		if err != nil {
			return err
		}
		if i == len(names)-1 {
			fmt.Printf("\nRE-RUNNING FIRST EMAIL, SENDER COUNT SHOULD INCREASE\n")
		} else {
			fmt.Printf("\n--- EMAIL #%d ---\n", i+1)
		}

		logger.Debug("Analysing sample", zap.String("sample", name))
		if _, err := emailFilter.ProcessEmail(context.Background(), string(raw)); err != nil {
			return err
		}
	}
	return nil
}

func closeRepository(repo core.SenderRepository, logger *zap.Logger) {
	if closer, ok := repo.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close sender memory", zap.Error(err))
		}
	}
}
