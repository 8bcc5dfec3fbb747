package filter

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/mikey/email-intel/internal/core"
	"go.uber.org/zap"
)

// CliFilter runs the pipeline on one message and prints the report
type CliFilter struct {
	pipeline *core.Pipeline
	out      io.Writer
	logger   *zap.Logger
	verbose  bool
}

// NewCliFilter creates a new CLI filter writing its report to out
func NewCliFilter(pipeline *core.Pipeline, out io.Writer, logger *zap.Logger, verbose bool) *CliFilter {
	return &CliFilter{
		pipeline: pipeline,
		out:      out,
		logger:   logger,
		verbose:  verbose,
	}
}

// ProcessEmail analyses an email and displays the report
func (f *CliFilter) ProcessEmail(ctx context.Context, rawEmail string) (*core.PipelineState, error) {
	f.logger.Debug("Processing email", zap.Int("size", len(rawEmail)))

	startTime := time.Now()
	st, err := f.pipeline.Run(ctx, rawEmail)
	if err != nil {
		f.logger.Error("Failed to analyse email", zap.Error(err))
		return st, err
	}
	duration := time.Since(startTime)

	if err := WriteReport(f.out, st); err != nil {
		return st, fmt.Errorf("failed to write report: %w", err)
	}

	if f.verbose {
		fmt.Fprintf(f.out, "Stages: %v\n", st.ExecutionLog)
		fmt.Fprintf(f.out, "Processing time: %v\n", duration.Round(time.Millisecond))
	}

	return st, nil
}

// Start is a no-op for the CLI filter
func (f *CliFilter) Start() error {
	return nil
}

// Stop is a no-op for the CLI filter
func (f *CliFilter) Stop() error {
	return nil
}
