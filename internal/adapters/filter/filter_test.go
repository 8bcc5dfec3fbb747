package filter

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mikey/email-intel/internal/adapters/storage"
	"github.com/mikey/email-intel/internal/core"
	"github.com/mikey/email-intel/internal/memory"
	"github.com/mikey/email-intel/internal/noreply"
	"github.com/mikey/email-intel/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// cannedGenerator answers every stage with a fixed reply picked by the JSON
// keys the prompt asks for
type cannedGenerator struct{}

func (cannedGenerator) Generate(_ context.Context, prompt string) (string, error) {
	switch {
	case strings.Contains(prompt, "action_steps"):
		return `{"action_steps": ["Go directly to the official site", "Do not click links in the email"], "response_template": "Thanks for the heads-up."}`, nil
	case strings.Contains(prompt, "priority_score"):
		return `{"priority": "VERIFY", "priority_score": 8}`, nil
	case strings.Contains(prompt, "risk_level"):
		return `{"risk_flags": [{"type": "link", "description": "Login link"}], "risk_score": 7, "risk_level": "HIGH"}`, nil
	case strings.Contains(prompt, "expectation_score"):
		return `{"expectations": [{"description": "Review the sign-in", "type": "action", "deadline": null, "severity": "high"}], "expectation_score": 6}`, nil
	case strings.Contains(prompt, "urgency_level"):
		return "```json\n{\"urgency_level\": \"HIGH\", \"urgency_score\": 3}\n```", nil
	}
	return "", nil
}

type countingRecorder struct {
	statuses   []string
	priorities []string
}

func (r *countingRecorder) RecordEmail(status, priority string) {
	r.statuses = append(r.statuses, status)
	r.priorities = append(r.priorities, priority)
}

func newTestPipeline(t *testing.T) (*core.Pipeline, *memory.Store) {
	t.Helper()
	logger := zap.NewNop()
	store := memory.NewStore(storage.NewMemoryRepository(logger), logger)
	store.Load(context.Background())

	gen := cannedGenerator{}
	classifier := core.NewClassifier(gen, utils.NewTextProcessor(logger), 4000, logger)
	planner := core.NewPlanner(gen, noreply.NewDetector(nil, logger), 3, 4, logger)
	return core.NewPipeline(classifier, planner, store, logger), store
}

const securityAlert = "From: Google <no-reply@accounts.google.com>\r\n" +
	"Subject: Security alert\r\n" +
	"X-Email-Priority: LOW\r\n" +
	"X-Email-Risk: LOW\r\n" +
	"\tforged continuation\r\n" +
	"\r\n" +
	"A new sign-in on Android.\r\n"

func TestWriteReport(t *testing.T) {
	seen := time.Date(2025, 11, 20, 14, 35, 0, 0, time.UTC)
	st := &core.PipelineState{
		Sender:        "jane@example.com",
		Subject:       "Invoice overdue",
		Priority:      core.PriorityHigh,
		UrgencyLevel:  core.UrgencyHigh,
		UrgencyScore:  3,
		RiskLevel:     core.RiskLow,
		PriorityScore: 7,
		Expectations: []core.Expectation{
			{Description: "Pay invoice", Type: "payment", Deadline: "Friday", Severity: core.SeverityHigh},
		},
		ActionPlan:       []string{"Pay the invoice", "Reply to confirm"},
		ResponseTemplate: "Paid today, thanks.",
		SenderHistory: core.SenderRecord{
			Count:         2,
			AvgUrgency:    2.5,
			HighRiskCount: 1,
			FirstSeen:     &seen,
			LastSeen:      &seen,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, st))
	out := buf.String()

	assert.Contains(t, out, "EMAIL INTELLIGENCE REPORT")
	assert.Contains(t, out, "From     : jane@example.com")
	assert.Contains(t, out, "Priority : HIGH | Urgency: HIGH | Risk: LOW")
	assert.Contains(t, out, "  - Pay invoice (payment, high severity, due Friday)")
	assert.Contains(t, out, "  1. Pay the invoice\n  2. Reply to confirm")
	assert.Contains(t, out, "Suggested Reply:\nPaid today, thanks.")
	assert.NotContains(t, out, "No reply needed")
	assert.Contains(t, out, "Emails from this sender : 2")
	assert.Contains(t, out, "Average urgency         : 2.50")
	assert.Contains(t, out, "Average risk            : 6.25")
	assert.Contains(t, out, "High-risk emails        : 1")
	assert.Contains(t, out, "First seen              : 2025-11-20")
}

func TestWriteReportWithoutReply(t *testing.T) {
	st := &core.PipelineState{
		Sender:     "no-reply@accounts.google.com",
		ActionPlan: core.FallbackSteps,
		Fallbacks:  []string{core.StageActionPlan},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, st))
	out := buf.String()

	assert.Contains(t, out, "No reply needed")
	assert.Contains(t, out, "(none detected)")
	assert.Contains(t, out, "First seen              : -")
	assert.Contains(t, out, "Degraded stages: action_plan")
}

func TestWriteHistory(t *testing.T) {
	seen := time.Date(2025, 11, 19, 0, 0, 0, 0, time.UTC)
	records := map[string]core.SenderRecord{
		"a@example.com": {Count: 3, AvgUrgency: 1.33, AvgRisk: 7.5, FirstSeen: &seen, LastSeen: &seen},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteHistory(&buf, []string{"a@example.com"}, func(s string) core.SenderRecord { return records[s] }))
	assert.Contains(t, buf.String(), "SENDER")
	assert.Contains(t, buf.String(), "a@example.com")
	assert.Contains(t, buf.String(), "1.33")
	assert.Contains(t, buf.String(), "AVG RISK")
	assert.Contains(t, buf.String(), "7.50")

	buf.Reset()
	require.NoError(t, WriteHistory(&buf, nil, nil))
	assert.Equal(t, "No senders recorded yet\n", buf.String())
}

func TestCliFilter(t *testing.T) {
	p, store := newTestPipeline(t)
	var out bytes.Buffer
	f := NewCliFilter(p, &out, zap.NewNop(), true)

	require.NoError(t, f.Start())
	st, err := f.ProcessEmail(context.Background(), securityAlert)
	require.NoError(t, err)
	require.NoError(t, f.Stop())

	assert.Equal(t, "no-reply@accounts.google.com", st.Sender)
	assert.Equal(t, core.PriorityVerify, st.Priority)
	assert.False(t, st.HasReply())
	hist := store.Get("no-reply@accounts.google.com")
	assert.Equal(t, 1, hist.HighRiskCount)
	assert.Equal(t, 7.0, hist.AvgRisk)
	require.Len(t, hist.Patterns, 1)
	assert.Equal(t, 7.0, hist.Patterns[0].Risk)

	report := out.String()
	assert.Contains(t, report, "Priority : VERIFY | Urgency: HIGH | Risk: HIGH")
	assert.Contains(t, report, "No reply needed")
	assert.Contains(t, report, "Stages: [extract urgency expectations risk priority action_plan memory]")
}

func TestAnnotate(t *testing.T) {
	p, _ := newTestPipeline(t)
	rec := &countingRecorder{}
	f := NewSMTPFilter(p, rec, zap.NewNop(), "127.0.0.1:0", "", HeaderNames{
		Priority:    "X-Email-Priority",
		Urgency:     "X-Email-Urgency",
		Risk:        "X-Email-Risk",
		SenderCount: "X-Email-Sender-Count",
	}, time.Minute, "127.0.0.1", 10026, false)

	out, st := f.annotate(context.Background(), []byte(securityAlert))
	msg := string(out)

	assert.Equal(t, core.PriorityVerify, st.Priority)
	assert.True(t, strings.HasPrefix(msg, "X-Email-Priority: VERIFY\r\n"))
	assert.Contains(t, msg, "X-Email-Urgency: high\r\n")
	assert.Contains(t, msg, "X-Email-Risk: HIGH\r\n")
	assert.Contains(t, msg, "X-Email-Sender-Count: 1\r\n")
	assert.NotContains(t, msg, "X-Email-Priority: LOW")
	assert.NotContains(t, msg, "X-Email-Risk: LOW")
	assert.NotContains(t, msg, "forged continuation")
	assert.Contains(t, msg, "Subject: Security alert\r\n\r\nA new sign-in on Android.\r\n")

	assert.Equal(t, []string{"success"}, rec.statuses)
	assert.Equal(t, []string{"VERIFY"}, rec.priorities)
}

func TestAnnotateCancelled(t *testing.T) {
	p, _ := newTestPipeline(t)
	rec := &countingRecorder{}
	f := NewSMTPFilter(p, rec, zap.NewNop(), "127.0.0.1:0", "", HeaderNames{Priority: "X-Email-Priority"},
		time.Minute, "127.0.0.1", 10026, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, _ := f.annotate(ctx, []byte(securityAlert))
	msg := string(out)

	assert.True(t, strings.HasPrefix(msg, AnalysisErrorHeader+": context canceled\r\n"))
	assert.NotContains(t, msg, "X-Email-Priority")
	assert.Contains(t, msg, "A new sign-in on Android.")
	assert.Equal(t, []string{"failed"}, rec.statuses)
}

func TestStripHeaders(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "lf message",
			raw:  "From: a@b.c\nX-Test: 1\n  folded\nSubject: hi\n\nX-Test: body line\n",
			want: "From: a@b.c\nSubject: hi\n\nX-Test: body line\n",
		},
		{
			name: "case insensitive",
			raw:  "x-test: 1\r\nFrom: a@b.c\r\n\r\nbody",
			want: "From: a@b.c\r\n\r\nbody",
		},
		{
			name: "no header block",
			raw:  "X-Test: 1",
			want: "X-Test: 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(stripHeaders([]byte(tt.raw), []string{"X-Test"})))
		})
	}
}
