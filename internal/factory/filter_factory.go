package factory

import (
	"fmt"
	"os"

	"github.com/mikey/email-intel/internal/adapters/filter"
	"github.com/mikey/email-intel/internal/config"
	"github.com/mikey/email-intel/internal/core"
	"github.com/mikey/email-intel/internal/ports"
	"go.uber.org/zap"
)

// FilterFactory creates email filters based on configuration
type FilterFactory struct {
	cfg      *config.Config
	logger   *zap.Logger
	pipeline *core.Pipeline
	recorder filter.EmailRecorder
}

// NewFilterFactory creates a new filter factory. recorder may be nil.
func NewFilterFactory(cfg *config.Config, logger *zap.Logger, pipeline *core.Pipeline, recorder filter.EmailRecorder) *FilterFactory {
	return &FilterFactory{
		cfg:      cfg,
		logger:   logger,
		pipeline: pipeline,
		recorder: recorder,
	}
}

// CreateEmailFilter creates an email filter based on the configuration
func (f *FilterFactory) CreateEmailFilter() (ports.EmailFilter, error) {
	serverCfg := f.cfg.GetServer()

	switch serverCfg.FilterType {
	case "smtp":
		return filter.NewSMTPFilter(
			f.pipeline,
			f.recorder,
			f.logger,
			serverCfg.ListenAddress,
			serverCfg.Domain,
			filter.HeaderNames{
				Priority:    serverCfg.PriorityHeader,
				Urgency:     serverCfg.UrgencyHeader,
				Risk:        serverCfg.RiskHeader,
				SenderCount: serverCfg.SenderCountHeader,
			},
			serverCfg.AnalysisTimeout,
			serverCfg.RelayAddress,
			serverCfg.RelayPort,
			serverCfg.RelayEnabled,
		), nil
	case "cli":
		return filter.NewCliFilter(
			f.pipeline,
			os.Stdout,
			f.logger,
			f.cfg.GetBool("cli.verbose"),
		), nil
	default:
		return nil, fmt.Errorf("unsupported filter type: %s", serverCfg.FilterType)
	}
}
