package di

import (
	"context"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/email-intel/internal/config"
	"github.com/mikey/email-intel/internal/core"
	"github.com/mikey/email-intel/internal/factory"
	"github.com/mikey/email-intel/internal/memory"
	"github.com/mikey/email-intel/internal/noreply"
	"github.com/mikey/email-intel/internal/utils"
)

// Generators carries the two text generators the pipeline needs. The
// planner runs warmer than the classification stages.
type Generators struct {
	dig.Out

	Classifier core.TextGenerator `name:"classifier"`
	Planner    core.TextGenerator `name:"planner"`
}

type classifierParams struct {
	dig.In

	Generator     core.TextGenerator `name:"classifier"`
	TextProcessor *utils.TextProcessor
	Config        *config.Config
	Logger        *zap.Logger
}

type plannerParams struct {
	dig.In

	Generator core.TextGenerator `name:"planner"`
	Detector  *noreply.Detector
	Config    *config.Config
	Logger    *zap.Logger
}

// providePipeline registers everything between the configuration and the
// pipeline. The caller supplies *config.Config and *zap.Logger.
func providePipeline(container *dig.Container) error {
	// Register factories
	if err := container.Provide(factory.NewLLMFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewStorageFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewTextProcessorFactory); err != nil {
		return err
	}

	// Register text generators
	if err := container.Provide(func(f *factory.LLMFactory) (Generators, error) {
		ctx := context.Background()
		classifier, err := f.CreateClassifierGenerator(ctx)
		if err != nil {
			return Generators{}, err
		}
		planner, err := f.CreatePlannerGenerator(ctx)
		if err != nil {
			return Generators{}, err
		}
		return Generators{Classifier: classifier, Planner: planner}, nil
	}); err != nil {
		return err
	}

	// Register text processor
	if err := container.Provide(func(f *factory.TextProcessorFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return err
	}

	// Register sender memory backend
	if err := container.Provide(func(f *factory.StorageFactory) (core.SenderRepository, error) {
		return f.CreateSenderRepository()
	}); err != nil {
		return err
	}

	// Register sender memory, loaded once at startup
	if err := container.Provide(func(repo core.SenderRepository, cfg *config.Config, logger *zap.Logger) *memory.Store {
		store := memory.NewStore(repo, logger)
		ctx, cancel := context.WithTimeout(context.Background(), cfg.GetMemory().Timeout)
		defer cancel()
		store.Load(ctx)
		return store
	}); err != nil {
		return err
	}

	// Register no-reply detector
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) *noreply.Detector {
		markers := cfg.GetPipeline().NoReplyMarkers
		logger.Debug("Loaded no-reply markers", zap.Strings("markers", markers))
		return noreply.NewDetector(markers, logger)
	}); err != nil {
		return err
	}

	// Register stages
	if err := container.Provide(func(p classifierParams) *core.Classifier {
		return core.NewClassifier(p.Generator, p.TextProcessor, p.Config.GetPipeline().MaxBodySize, p.Logger)
	}); err != nil {
		return err
	}
	if err := container.Provide(func(p plannerParams) *core.Planner {
		pipelineCfg := p.Config.GetPipeline()
		return core.NewPlanner(p.Generator, p.Detector, pipelineCfg.PlannerMaxAttempts, pipelineCfg.MaxActionSteps, p.Logger)
	}); err != nil {
		return err
	}

	return nil
}
