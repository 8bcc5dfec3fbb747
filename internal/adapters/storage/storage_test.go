package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mikey/email-intel/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func sampleRecords() map[string]core.SenderRecord {
	first := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	last := time.Date(2024, 3, 4, 17, 5, 12, 123456789, time.UTC)
	return map[string]core.SenderRecord{
		"jane@example.com": {
			Count:         3,
			TotalUrgency:  7.5,
			AvgUrgency:    2.5,
			TotalRisk:     14,
			AvgRisk:       4.67,
			HighRiskCount: 1,
			Patterns: []core.SenderPattern{
				{Timestamp: first, Urgency: 3, Risk: 8},
				{Timestamp: last, Urgency: 2.5, Risk: 1.5},
			},
			FirstSeen: &first,
			LastSeen:  &last,
		},
		"no-reply@bank.example": {
			Count:        1,
			TotalUrgency: 4,
			AvgUrgency:   4,
		},
	}
}

func assertRecordsEqual(t *testing.T, want, got map[string]core.SenderRecord) {
	t.Helper()
	require.Len(t, got, len(want))
	for sender, w := range want {
		g, ok := got[sender]
		require.True(t, ok, "missing sender %s", sender)
		assert.Equal(t, w.Count, g.Count)
		assert.InDelta(t, w.TotalUrgency, g.TotalUrgency, 1e-9)
		assert.InDelta(t, w.AvgUrgency, g.AvgUrgency, 1e-9)
		assert.InDelta(t, w.TotalRisk, g.TotalRisk, 1e-9)
		assert.InDelta(t, w.AvgRisk, g.AvgRisk, 1e-9)
		assert.Equal(t, w.HighRiskCount, g.HighRiskCount)
		require.Len(t, g.Patterns, len(w.Patterns))
		for i := range w.Patterns {
			assert.True(t, w.Patterns[i].Timestamp.Equal(g.Patterns[i].Timestamp))
			assert.Equal(t, w.Patterns[i].Urgency, g.Patterns[i].Urgency)
			assert.Equal(t, w.Patterns[i].Risk, g.Patterns[i].Risk)
		}
		assertSameTime(t, w.FirstSeen, g.FirstSeen)
		assertSameTime(t, w.LastSeen, g.LastSeen)
	}
}

func assertSameTime(t *testing.T, want, got *time.Time) {
	t.Helper()
	if want == nil {
		assert.Nil(t, got)
		return
	}
	require.NotNil(t, got)
	assert.True(t, want.Equal(*got), "want %s, got %s", want, got)
}

func TestFileRepository(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "sender_memory.json")
	repo := NewFileRepository(path, zap.NewNop())

	t.Run("missing file", func(t *testing.T) {
		_, err := repo.Load(ctx)
		assert.ErrorIs(t, err, core.ErrNoSenderData)
	})

	t.Run("round trip", func(t *testing.T) {
		want := sampleRecords()
		require.NoError(t, repo.Save(ctx, want))

		got, err := repo.Load(ctx)
		require.NoError(t, err)
		assertRecordsEqual(t, want, got)
	})

	t.Run("indented json without leftovers", func(t *testing.T) {
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "\n  \"jane@example.com\": {")
		assert.Contains(t, string(data), `"avg_urgency": 2.5`)
		assert.Contains(t, string(data), `"avg_risk": 4.67`)

		entries, err := os.ReadDir(filepath.Dir(path))
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("overwrite", func(t *testing.T) {
		require.NoError(t, repo.Save(ctx, map[string]core.SenderRecord{}))
		got, err := repo.Load(ctx)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("corrupt file", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))
		_, err := repo.Load(ctx)
		require.Error(t, err)
		assert.NotErrorIs(t, err, core.ErrNoSenderData)
	})
}

func TestMemoryRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository(zap.NewNop())

	_, err := repo.Load(ctx)
	assert.ErrorIs(t, err, core.ErrNoSenderData)

	want := sampleRecords()
	require.NoError(t, repo.Save(ctx, want))
	assert.Equal(t, 1, repo.Saves())

	// mutating the caller's map must not leak into the repository
	*want["jane@example.com"].FirstSeen = time.Time{}
	delete(want, "no-reply@bank.example")

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.False(t, got["jane@example.com"].FirstSeen.IsZero())
}

func TestMemoryRepositoryCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	repo := NewMemoryRepository(zap.NewNop())
	assert.ErrorIs(t, repo.Save(ctx, sampleRecords()), context.Canceled)
	assert.Equal(t, 0, repo.Saves())
}

func TestSQLiteRepository(t *testing.T) {
	ctx := context.Background()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "memory.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	_, err = repo.Load(ctx)
	assert.ErrorIs(t, err, core.ErrNoSenderData)

	want := sampleRecords()
	require.NoError(t, repo.Save(ctx, want))

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	assertRecordsEqual(t, want, got)

	// a second save replaces rows instead of accumulating them
	delete(want, "jane@example.com")
	require.NoError(t, repo.Save(ctx, want))

	got, err = repo.Load(ctx)
	require.NoError(t, err)
	assertRecordsEqual(t, want, got)
}

func TestPatternsColumnEncoding(t *testing.T) {
	encoded, err := formatPatterns(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", encoded)

	patterns, err := parsePatterns("")
	require.NoError(t, err)
	assert.Nil(t, patterns)

	_, err = parsePatterns("{broken")
	assert.Error(t, err)
}
