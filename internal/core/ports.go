package core

import (
	"context"
	"errors"
	"time"
)

// ErrNoSenderData is returned by a SenderRepository that has never been written
var ErrNoSenderData = errors.New("no stored sender data")

// TextGenerator defines the interface for interacting with LLM services
type TextGenerator interface {
	// Generate sends a single prompt and returns the raw model reply
	Generate(ctx context.Context, prompt string) (string, error)
}

// SenderRepository defines the durable storage for the sender memory mapping
type SenderRepository interface {
	// Load reads the entire mapping
	Load(ctx context.Context) (map[string]SenderRecord, error)

	// Save overwrites the stored mapping with the given one
	Save(ctx context.Context, records map[string]SenderRecord) error
}

// SenderMemory is the per-sender aggregation used by the memory stage
type SenderMemory interface {
	// Update records one completed run for the sender and returns the new record
	Update(ctx context.Context, sender string, urgencyScore, riskScore float64, riskLevel RiskLevel) SenderRecord

	// Get returns the record for a sender, or the zero record if unseen
	Get(sender string) SenderRecord
}

// NoReplyDetector decides whether a sender address is non-interactive
type NoReplyDetector interface {
	IsNoReply(address string) bool
}

// StageObserver receives per-stage timings and fallbacks
type StageObserver interface {
	ObserveStage(stage string, duration time.Duration)
	ObserveFallback(stage string)
}
