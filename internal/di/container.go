package di

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/email-intel/internal/adapters/filter"
	"github.com/mikey/email-intel/internal/config"
	"github.com/mikey/email-intel/internal/core"
	"github.com/mikey/email-intel/internal/factory"
	"github.com/mikey/email-intel/internal/logging"
	"github.com/mikey/email-intel/internal/memory"
	"github.com/mikey/email-intel/internal/metrics"
	"github.com/mikey/email-intel/internal/ports"
)

// BuildContainer creates and configures a dependency injection container
// for the SMTP daemon
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register metrics registry and recorder
	if err := container.Provide(func() *prometheus.Registry {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		return reg
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(reg *prometheus.Registry) *metrics.Recorder {
		return metrics.NewRecorder(reg)
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(r *metrics.Recorder) filter.EmailRecorder {
		return r
	}); err != nil {
		return nil, err
	}

	if err := providePipeline(container); err != nil {
		return nil, err
	}

	// Register pipeline, observed by the metrics recorder
	if err := container.Provide(func(
		classifier *core.Classifier,
		planner *core.Planner,
		store *memory.Store,
		recorder *metrics.Recorder,
		logger *zap.Logger,
	) *core.Pipeline {
		p := core.NewPipeline(classifier, planner, store, logger)
		p.SetObserver(recorder)
		return p
	}); err != nil {
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
