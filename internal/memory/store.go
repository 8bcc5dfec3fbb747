// Package memory keeps the running per-sender statistics and writes them
// through to a SenderRepository after every update.
package memory

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mikey/email-intel/internal/core"
	"go.uber.org/zap"
)

// Store is the sender memory. It is the only writer of the mapping.
type Store struct {
	mu      sync.Mutex
	repo    core.SenderRepository
	records map[string]core.SenderRecord
	now     func() time.Time
	logger  *zap.Logger
}

// NewStore creates an empty store backed by repo. Call Load to read the
// persisted mapping.
func NewStore(repo core.SenderRepository, logger *zap.Logger) *Store {
	return &Store{
		repo:    repo,
		records: make(map[string]core.SenderRecord),
		now:     time.Now,
		logger:  logger,
	}
}

// SetClock replaces the time source used for first/last seen timestamps
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Load replaces the in-memory mapping with the persisted one. Missing or
// unreadable storage leaves the store empty; it never fails.
func (s *Store) Load(ctx context.Context) {
	records, err := s.repo.Load(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]core.SenderRecord, len(records))

	switch {
	case errors.Is(err, core.ErrNoSenderData):
		s.logger.Info("No sender memory found, starting empty")
		return
	case err != nil:
		s.logger.Warn("Failed to load sender memory, starting empty", zap.Error(err))
		return
	}

	// keys differing only by case are merged, so the result does not
	// depend on map iteration order
	for sender, rec := range records {
		key := normalize(sender)
		if prev, ok := s.records[key]; ok {
			s.logger.Debug("Merging sender records", zap.String("sender", key))
			s.records[key] = merge(prev, rec)
			continue
		}
		s.records[key] = rec.Clone()
	}
	s.logger.Debug("Sender memory loaded", zap.Int("senders", len(s.records)))
}

// Update records one completed run for sender and persists the whole
// mapping before returning. A failed save is logged and the in-memory
// update is kept.
func (s *Store) Update(ctx context.Context, sender string, urgencyScore, riskScore float64, riskLevel core.RiskLevel) core.SenderRecord {
	key := normalize(sender)

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.records[key]
	now := s.now().UTC()

	rec.Count++
	if urgencyScore > 0 {
		rec.TotalUrgency += urgencyScore
	}
	if riskScore > 0 {
		rec.TotalRisk += riskScore
	}
	if riskLevel.IsHigh() {
		rec.HighRiskCount++
	}
	rec.Patterns = appendPattern(rec.Patterns, core.SenderPattern{
		Timestamp: now,
		Urgency:   urgencyScore,
		Risk:      riskScore,
	})
	if rec.FirstSeen == nil {
		first := now
		rec.FirstSeen = &first
	}
	rec.LastSeen = &now
	recomputeAverages(&rec)

	s.records[key] = rec

	if err := s.repo.Save(ctx, s.snapshot()); err != nil {
		s.logger.Error("Failed to persist sender memory",
			zap.String("sender", key),
			zap.Error(err))
	}

	return rec.Clone()
}

// Get returns the record for sender, or the zero record if it was never seen
func (s *Store) Get(sender string) core.SenderRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[normalize(sender)].Clone()
}

// Senders returns every known sender address in sorted order
func (s *Store) Senders() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	senders := make([]string, 0, len(s.records))
	for sender := range s.records {
		senders = append(senders, sender)
	}
	sort.Strings(senders)
	return senders
}

// snapshot copies the mapping so a backend never aliases live records.
// Callers hold s.mu.
func (s *Store) snapshot() map[string]core.SenderRecord {
	out := make(map[string]core.SenderRecord, len(s.records))
	for k, v := range s.records {
		out[k] = v.Clone()
	}
	return out
}

// merge folds two records for the same sender into one. It is symmetric.
func merge(a, b core.SenderRecord) core.SenderRecord {
	out := core.SenderRecord{
		Count:         a.Count + b.Count,
		TotalUrgency:  a.TotalUrgency + b.TotalUrgency,
		TotalRisk:     a.TotalRisk + b.TotalRisk,
		HighRiskCount: a.HighRiskCount + b.HighRiskCount,
		FirstSeen:     earliest(a.FirstSeen, b.FirstSeen),
		LastSeen:      latest(a.LastSeen, b.LastSeen),
	}

	patterns := make([]core.SenderPattern, 0, len(a.Patterns)+len(b.Patterns))
	patterns = append(patterns, a.Patterns...)
	patterns = append(patterns, b.Patterns...)
	sort.Slice(patterns, func(i, j int) bool {
		pi, pj := patterns[i], patterns[j]
		if !pi.Timestamp.Equal(pj.Timestamp) {
			return pi.Timestamp.Before(pj.Timestamp)
		}
		if pi.Urgency != pj.Urgency {
			return pi.Urgency < pj.Urgency
		}
		return pi.Risk < pj.Risk
	})
	if len(patterns) > core.MaxSenderPatterns {
		patterns = patterns[len(patterns)-core.MaxSenderPatterns:]
	}
	if len(patterns) > 0 {
		out.Patterns = patterns
	}

	recomputeAverages(&out)
	return out.Clone()
}

func recomputeAverages(rec *core.SenderRecord) {
	if rec.Count == 0 {
		rec.AvgUrgency, rec.AvgRisk = 0, 0
		return
	}
	rec.AvgUrgency = round2(rec.TotalUrgency / float64(rec.Count))
	rec.AvgRisk = round2(rec.TotalRisk / float64(rec.Count))
}

// appendPattern adds p and keeps only the most recent MaxSenderPatterns.
// The result never aliases the input slice.
func appendPattern(patterns []core.SenderPattern, p core.SenderPattern) []core.SenderPattern {
	out := make([]core.SenderPattern, 0, len(patterns)+1)
	out = append(out, patterns...)
	out = append(out, p)
	if len(out) > core.MaxSenderPatterns {
		out = out[len(out)-core.MaxSenderPatterns:]
	}
	return out
}

func earliest(a, b *time.Time) *time.Time {
	switch {
	case a == nil:
		return b
	case b == nil || a.Before(*b):
		return a
	default:
		return b
	}
}

func latest(a, b *time.Time) *time.Time {
	switch {
	case a == nil:
		return b
	case b == nil || a.After(*b):
		return a
	default:
		return b
	}
}

func normalize(sender string) string {
	return strings.ToLower(strings.TrimSpace(sender))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
