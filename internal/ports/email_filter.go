package ports

import (
	"context"

	"github.com/mikey/email-intel/internal/core"
)

// EmailFilter defines the interface for the process entries that feed raw
// messages into the analysis pipeline
type EmailFilter interface {
	// ProcessEmail analyses one raw message and returns the terminal state
	ProcessEmail(ctx context.Context, rawEmail string) (*core.PipelineState, error)

	// Start starts the email filter service
	Start() error

	// Stop stops the email filter service
	Stop() error
}
