package storage

import (
	"context"
	"sync"

	"github.com/mikey/email-intel/internal/core"
	"go.uber.org/zap"
)

// MemoryRepository is a process-local SenderRepository. Nothing survives a
// restart; it backs tests and dry runs.
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[string]core.SenderRecord
	saves   int
	logger  *zap.Logger
}

// NewMemoryRepository creates a new in-memory repository
func NewMemoryRepository(logger *zap.Logger) *MemoryRepository {
	return &MemoryRepository{logger: logger}
}

// Load returns a copy of the last saved mapping
func (r *MemoryRepository) Load(ctx context.Context) (map[string]core.SenderRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.records == nil {
		return nil, core.ErrNoSenderData
	}
	return copyRecords(r.records), nil
}

// Save replaces the stored mapping with a copy of records
func (r *MemoryRepository) Save(ctx context.Context, records map[string]core.SenderRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = copyRecords(records)
	r.saves++
	r.logger.Debug("Sender memory saved in memory", zap.Int("senders", len(records)))
	return nil
}

// Saves returns how many times Save succeeded
func (r *MemoryRepository) Saves() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.saves
}

func copyRecords(in map[string]core.SenderRecord) map[string]core.SenderRecord {
	out := make(map[string]core.SenderRecord, len(in))
	for k, v := range in {
		out[k] = v.Clone()
	}
	return out
}
