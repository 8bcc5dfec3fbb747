package core_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mikey/email-intel/internal/core"
	"github.com/mikey/email-intel/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newClassifier(gen core.TextGenerator) *core.Classifier {
	return core.NewClassifier(gen, utils.NewTextProcessor(zap.NewNop()), 4000, zap.NewNop())
}

var sampleState = core.PipelineState{
	Sender:  "jane@example.com",
	Subject: "Invoice overdue",
	Body:    "Please pay by Friday.",
}

func TestUrgency(t *testing.T) {
	tests := []struct {
		name         string
		reply        string
		wantLevel    core.UrgencyLevel
		wantScore    float64
		wantTriggers []string
		wantFallback bool
	}{
		{
			name:         "plain json",
			reply:        `{"urgency_level": "high", "urgency_score": 3, "triggers": ["by Friday"]}`,
			wantLevel:    core.UrgencyHigh,
			wantScore:    3,
			wantTriggers: []string{"by Friday"},
		},
		{
			name:         "fenced with casing and string score",
			reply:        "```json\n{\"urgency_level\": \"  CRITICAL \", \"urgency_score\": \"3.5\"}\n```",
			wantLevel:    core.UrgencyCritical,
			wantScore:    3.5,
			wantTriggers: []string{},
		},
		{
			name:         "score clamped",
			reply:        `{"urgency_level": "low", "urgency_score": 9}`,
			wantLevel:    core.UrgencyLow,
			wantScore:    4,
			wantTriggers: []string{},
		},
		{
			name:         "prose around object",
			reply:        `Sure! {"urgency_level": "medium", "urgency_score": 1.5} Hope this helps.`,
			wantLevel:    core.UrgencyMedium,
			wantScore:    1.5,
			wantTriggers: []string{},
		},
		{
			name:         "unparseable",
			reply:        "I think this is pretty urgent",
			wantLevel:    "medium",
			wantScore:    2.0,
			wantTriggers: []string{},
			wantFallback: true,
		},
		{
			name:         "missing score",
			reply:        `{"urgency_level": "high"}`,
			wantLevel:    "medium",
			wantScore:    2.0,
			wantTriggers: []string{},
			wantFallback: true,
		},
		{
			name:         "unknown level",
			reply:        `{"urgency_level": "extreme", "urgency_score": 4}`,
			wantLevel:    "medium",
			wantScore:    2.0,
			wantTriggers: []string{},
			wantFallback: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := newScriptedGenerator().on("urgency", tt.reply)
			got := newClassifier(gen).Urgency(context.Background(), sampleState)

			assert.Equal(t, tt.wantLevel, got.Level)
			assert.Equal(t, tt.wantScore, got.Score)
			assert.Equal(t, tt.wantTriggers, got.Triggers)
			assert.Equal(t, tt.wantFallback, got.Fallback)
			assert.Equal(t, 1, gen.callCount("urgency"))
		})
	}
}

func TestUrgencyGeneratorError(t *testing.T) {
	obsCore, logs := observer.New(zapcore.WarnLevel)
	gen := newScriptedGenerator().fail("urgency", errors.New("connection reset"))
	c := core.NewClassifier(gen, utils.NewTextProcessor(nil), 4000, zap.New(obsCore))

	got := c.Urgency(context.Background(), sampleState)

	assert.Equal(t, core.DefaultUrgencyLevel, got.Level)
	assert.Equal(t, core.DefaultUrgencyScore, got.Score)
	assert.True(t, got.Fallback)
	require.Equal(t, 1, logs.FilterMessage("Using stage default").Len())
	assert.Equal(t, "urgency", logs.All()[0].ContextMap()["stage"])
}

func TestBodyIsTruncated(t *testing.T) {
	gen := newScriptedGenerator().on("urgency", `{"urgency_level": "low", "urgency_score": 0}`)
	c := core.NewClassifier(gen, utils.NewTextProcessor(nil), 100, zap.NewNop())

	st := sampleState
	st.Body = strings.Repeat("x", 5000)
	c.Urgency(context.Background(), st)

	require.Len(t, gen.prompts, 1)
	assert.NotContains(t, gen.prompts[0], strings.Repeat("x", 101))
	assert.Contains(t, gen.prompts[0], "Content truncated")
}

func TestExpectations(t *testing.T) {
	t.Run("normalised list", func(t *testing.T) {
		gen := newScriptedGenerator().on("expectations", `{
			"expectations": [
				{"description": "Pay the invoice", "type": "Payment", "deadline": "Friday", "severity": "HIGH"},
				{"description": "  ", "type": "reply", "severity": "low"},
				{"description": "Confirm receipt", "severity": "urgent"}
			],
			"expectation_score": "7"
		}`)
		got := newClassifier(gen).Expectations(context.Background(), sampleState)

		assert.False(t, got.Fallback)
		assert.Equal(t, 7.0, got.Score)
		assert.Equal(t, []core.Expectation{
			{Description: "Pay the invoice", Type: "payment", Deadline: "Friday", Severity: core.SeverityHigh},
			{Description: "Confirm receipt", Type: "other", Severity: core.SeverityMedium},
		}, got.Expectations)
	})

	t.Run("empty list is not a fallback", func(t *testing.T) {
		gen := newScriptedGenerator().on("expectations", `{"expectations": [], "expectation_score": 0}`)
		got := newClassifier(gen).Expectations(context.Background(), sampleState)

		assert.False(t, got.Fallback)
		assert.Empty(t, got.Expectations)
	})

	t.Run("missing key", func(t *testing.T) {
		gen := newScriptedGenerator().on("expectations", `{"expectation_score": 3}`)
		got := newClassifier(gen).Expectations(context.Background(), sampleState)

		assert.True(t, got.Fallback)
		assert.Equal(t, []core.Expectation{}, got.Expectations)
		assert.Equal(t, 0.0, got.Score)
	})
}

func TestRisk(t *testing.T) {
	t.Run("mixed flag shapes", func(t *testing.T) {
		gen := newScriptedGenerator().on("risk", `{
			"risk_flags": ["Mismatched sender domain", {"type": "link", "description": "Shortened URL"}],
			"risk_score": 8.5,
			"risk_level": "high"
		}`)
		got := newClassifier(gen).Risk(context.Background(), sampleState)

		assert.False(t, got.Fallback)
		assert.Equal(t, core.RiskHigh, got.Level)
		assert.Equal(t, 8.5, got.Score)
		assert.Equal(t, []core.RiskFlag{
			{Type: "other", Description: "Mismatched sender domain"},
			{Type: "link", Description: "Shortened URL"},
		}, got.Flags)
	})

	t.Run("fallback", func(t *testing.T) {
		gen := newScriptedGenerator().on("risk", `{"risk_flags": [], "risk_score": 2}`)
		got := newClassifier(gen).Risk(context.Background(), sampleState)

		assert.True(t, got.Fallback)
		assert.Equal(t, core.RiskLevel("LOW"), got.Level)
		assert.Equal(t, []core.RiskFlag{}, got.Flags)
	})

	t.Run("sender reaches the prompt", func(t *testing.T) {
		gen := newScriptedGenerator().on("risk", `{"risk_level": "LOW"}`)
		newClassifier(gen).Risk(context.Background(), sampleState)

		require.Len(t, gen.prompts, 1)
		assert.Contains(t, gen.prompts[0], "From: jane@example.com")
	})
}

func TestPriority(t *testing.T) {
	tests := []struct {
		name         string
		reply        string
		want         core.Priority
		wantScore    float64
		wantFallback bool
	}{
		{"verify", `{"priority": "verify", "priority_score": 9}`, core.PriorityVerify, 9, false},
		{"score optional", `{"priority": "LOW"}`, core.PriorityLow, core.DefaultPriorityScore, false},
		{"unknown value", `{"priority": "ASAP", "priority_score": 9}`, "MEDIUM", 5.0, true},
		{"null priority", `{"priority": null}`, "MEDIUM", 5.0, true},
		{"empty reply", ``, "MEDIUM", 5.0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := newScriptedGenerator().on("priority", tt.reply)
			st := sampleState
			st.UrgencyLevel = core.UrgencyHigh
			st.RiskLevel = core.RiskMedium

			got := newClassifier(gen).Priority(context.Background(), st)

			assert.Equal(t, tt.want, got.Priority)
			assert.Equal(t, tt.wantScore, got.Score)
			assert.Equal(t, tt.wantFallback, got.Fallback)
		})
	}
}
