package filter

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mikey/email-intel/internal/core"
)

const (
	ruleWidth  = 80
	dateLayout = "2006-01-02"
)

// WriteReport renders the human-readable intelligence report for a
// terminal pipeline state
func WriteReport(w io.Writer, st *core.PipelineState) error {
	rule := strings.Repeat("=", ruleWidth)
	rw := &reportWriter{w: w}

	rw.printf("\n%s\n", rule)
	rw.printf("EMAIL INTELLIGENCE REPORT\n")
	rw.printf("%s\n", rule)
	rw.printf("From     : %s\n", st.Sender)
	rw.printf("Subject  : %s\n", st.Subject)
	rw.printf("Priority : %s | Urgency: %s | Risk: %s\n",
		st.Priority, strings.ToUpper(string(st.UrgencyLevel)), st.RiskLevel)
	rw.printf("Scores   : urgency %.1f/4 | risk %.1f/10 | priority %.1f/10\n",
		st.UrgencyScore, st.RiskScore, st.PriorityScore)

	if len(st.RiskFlags) > 0 {
		rw.printf("\nRisk Flags:\n")
		for _, f := range st.RiskFlags {
			rw.printf("  - [%s] %s\n", f.Type, f.Description)
		}
	}

	rw.printf("\nHidden Expectations:\n")
	if len(st.Expectations) == 0 {
		rw.printf("  (none detected)\n")
	}
	for _, e := range st.Expectations {
		line := fmt.Sprintf("  - %s (%s, %s severity", e.Description, e.Type, e.Severity)
		if e.Deadline != "" {
			line += ", due " + e.Deadline
		}
		rw.printf("%s)\n", line)
	}

	rw.printf("\nAction Plan:\n")
	for i, step := range st.ActionPlan {
		rw.printf("  %d. %s\n", i+1, step)
	}

	if st.HasReply() {
		rw.printf("\nSuggested Reply:\n%s\n", st.ResponseTemplate)
	} else {
		rw.printf("\nNo reply needed\n")
	}

	h := st.SenderHistory
	rw.printf("\nSender History:\n")
	rw.printf("  Emails from this sender : %d\n", h.Count)
	rw.printf("  Average urgency         : %.2f\n", h.AvgUrgency)
	rw.printf("  Average risk            : %.2f\n", h.AvgRisk)
	rw.printf("  High-risk emails        : %d\n", h.HighRiskCount)
	rw.printf("  First seen              : %s\n", formatDate(h.FirstSeen))
	rw.printf("  Last seen               : %s\n", formatDate(h.LastSeen))

	if len(st.Fallbacks) > 0 {
		rw.printf("\nDegraded stages: %s\n", strings.Join(st.Fallbacks, ", "))
	}
	rw.printf("%s\n", rule)

	return rw.err
}

// WriteHistory renders one line per known sender
func WriteHistory(w io.Writer, senders []string, get func(string) core.SenderRecord) error {
	rw := &reportWriter{w: w}
	if len(senders) == 0 {
		rw.printf("No senders recorded yet\n")
		return rw.err
	}

	rw.printf("%-40s %6s %8s %8s %9s %-10s %-10s\n", "SENDER", "EMAILS", "AVG URG", "AVG RISK", "HIGH RISK", "FIRST", "LAST")
	for _, s := range senders {
		rec := get(s)
		rw.printf("%-40s %6d %8.2f %8.2f %9d %-10s %-10s\n",
			s, rec.Count, rec.AvgUrgency, rec.AvgRisk, rec.HighRiskCount, formatDate(rec.FirstSeen), formatDate(rec.LastSeen))
	}
	return rw.err
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(dateLayout)
}

// reportWriter keeps the first write error so the report code stays linear
type reportWriter struct {
	w   io.Writer
	err error
}

func (rw *reportWriter) printf(format string, args ...interface{}) {
	if rw.err != nil {
		return
	}
	_, rw.err = fmt.Fprintf(rw.w, format, args...)
}
