package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mikey/email-intel/internal/utils"
	"go.uber.org/zap"
)

// Stage defaults used whenever a model reply cannot be used
const (
	DefaultUrgencyLevel  = UrgencyMedium
	DefaultUrgencyScore  = 2.0
	DefaultRiskLevel     = RiskLow
	DefaultPriority      = PriorityMedium
	DefaultPriorityScore = 5.0

	maxUrgencyScore = 4.0
	maxScore        = 10.0
)

var errMissingField = errors.New("required field missing from response")

// Classifier runs the four labelling stages. Each stage makes one
// generator call and never returns an error: unusable replies degrade to
// the stage default.
type Classifier struct {
	generator     TextGenerator
	textProcessor *utils.TextProcessor
	maxBodySize   int
	logger        *zap.Logger
}

// NewClassifier creates a new classifier
func NewClassifier(
	generator TextGenerator,
	textProcessor *utils.TextProcessor,
	maxBodySize int,
	logger *zap.Logger,
) *Classifier {
	return &Classifier{
		generator:     generator,
		textProcessor: textProcessor,
		maxBodySize:   maxBodySize,
		logger:        logger,
	}
}

type urgencyResponse struct {
	Level    *string    `json:"urgency_level"`
	Score    looseFloat `json:"urgency_score"`
	Triggers []string   `json:"triggers"`
}

// Urgency labels how quickly the email needs attention
func (c *Classifier) Urgency(ctx context.Context, st PipelineState) UrgencyResult {
	var resp urgencyResponse
	err := c.ask(ctx, StageUrgency, urgencyPrompt(st.Subject, c.body(st)), &resp)
	if err == nil && (resp.Level == nil || !resp.Score.set) {
		err = errMissingField
	}

	var level UrgencyLevel
	if err == nil {
		level = UrgencyLevel(strings.ToLower(strings.TrimSpace(*resp.Level)))
		if !level.Valid() {
			err = fmt.Errorf("unknown urgency level %q", *resp.Level)
		}
	}

	if err != nil {
		c.fallback(StageUrgency, err)
		return UrgencyResult{
			Level:    DefaultUrgencyLevel,
			Score:    DefaultUrgencyScore,
			Triggers: []string{},
			Fallback: true,
		}
	}

	return UrgencyResult{
		Level:    level,
		Score:    clamp(resp.Score.value, 0, maxUrgencyScore),
		Triggers: cleanStrings(resp.Triggers),
	}
}

type expectationItem struct {
	Description string  `json:"description"`
	Type        string  `json:"type"`
	Deadline    *string `json:"deadline"`
	Severity    string  `json:"severity"`
}

type expectationsResponse struct {
	Expectations *[]expectationItem `json:"expectations"`
	Score        looseFloat         `json:"expectation_score"`
}

// Expectations lists what the sender implicitly expects from the recipient
func (c *Classifier) Expectations(ctx context.Context, st PipelineState) ExpectationsResult {
	var resp expectationsResponse
	err := c.ask(ctx, StageExpectations, expectationsPrompt(st.Subject, c.body(st)), &resp)
	if err == nil && resp.Expectations == nil {
		err = errMissingField
	}

	if err != nil {
		c.fallback(StageExpectations, err)
		return ExpectationsResult{
			Expectations: []Expectation{},
			Score:        0,
			Fallback:     true,
		}
	}

	expectations := make([]Expectation, 0, len(*resp.Expectations))
	for _, item := range *resp.Expectations {
		description := strings.TrimSpace(item.Description)
		if description == "" {
			continue
		}
		e := Expectation{
			Description: description,
			Type:        strings.ToLower(strings.TrimSpace(item.Type)),
			Severity:    normalizeSeverity(item.Severity),
		}
		if e.Type == "" {
			e.Type = "other"
		}
		if item.Deadline != nil {
			e.Deadline = strings.TrimSpace(*item.Deadline)
		}
		expectations = append(expectations, e)
	}

	return ExpectationsResult{
		Expectations: expectations,
		Score:        clamp(resp.Score.value, 0, maxScore),
	}
}

type riskResponse struct {
	Flags []riskFlagItem `json:"risk_flags"`
	Score looseFloat     `json:"risk_score"`
	Level *string        `json:"risk_level"`
}

// riskFlagItem accepts either a plain string or a {type, description} object
type riskFlagItem RiskFlag

func (r *riskFlagItem) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*r = riskFlagItem{Type: "other", Description: s}
		return nil
	}
	var flag RiskFlag
	if err := json.Unmarshal(b, &flag); err != nil {
		return err
	}
	*r = riskFlagItem(flag)
	return nil
}

// Risk assesses whether acting on the email is dangerous
func (c *Classifier) Risk(ctx context.Context, st PipelineState) RiskResult {
	var resp riskResponse
	err := c.ask(ctx, StageRisk, riskPrompt(st.Sender, st.Subject, c.body(st)), &resp)
	if err == nil && resp.Level == nil {
		err = errMissingField
	}

	var level RiskLevel
	if err == nil {
		level = RiskLevel(strings.ToUpper(strings.TrimSpace(*resp.Level)))
		if !level.Valid() {
			err = fmt.Errorf("unknown risk level %q", *resp.Level)
		}
	}

	if err != nil {
		c.fallback(StageRisk, err)
		return RiskResult{
			Level:    DefaultRiskLevel,
			Flags:    []RiskFlag{},
			Score:    0,
			Fallback: true,
		}
	}

	flags := make([]RiskFlag, 0, len(resp.Flags))
	for _, f := range resp.Flags {
		if strings.TrimSpace(f.Description) == "" && strings.TrimSpace(f.Type) == "" {
			continue
		}
		flags = append(flags, RiskFlag{
			Type:        strings.TrimSpace(f.Type),
			Description: strings.TrimSpace(f.Description),
		})
	}

	return RiskResult{
		Level: level,
		Flags: flags,
		Score: clamp(resp.Score.value, 0, maxScore),
	}
}

type priorityResponse struct {
	Priority *string    `json:"priority"`
	Score    looseFloat `json:"priority_score"`
}

// Priority combines the earlier labels into the final triage priority
func (c *Classifier) Priority(ctx context.Context, st PipelineState) PriorityResult {
	var resp priorityResponse
	err := c.ask(ctx, StagePriority, priorityPrompt(st), &resp)
	if err == nil && resp.Priority == nil {
		err = errMissingField
	}

	var priority Priority
	if err == nil {
		priority = Priority(strings.ToUpper(strings.TrimSpace(*resp.Priority)))
		if !priority.Valid() {
			err = fmt.Errorf("unknown priority %q", *resp.Priority)
		}
	}

	if err != nil {
		c.fallback(StagePriority, err)
		return PriorityResult{
			Priority: DefaultPriority,
			Score:    DefaultPriorityScore,
			Fallback: true,
		}
	}

	score := DefaultPriorityScore
	if resp.Score.set {
		score = clamp(resp.Score.value, 0, maxScore)
	}
	return PriorityResult{Priority: priority, Score: score}
}

// ask makes the single generator call of a stage and decodes the reply
func (c *Classifier) ask(ctx context.Context, stage, prompt string, v any) error {
	reply, err := c.generator.Generate(ctx, prompt)
	if err != nil {
		return fmt.Errorf("%s generation failed: %w", stage, err)
	}
	c.logger.Debug("Model reply received", zap.String("stage", stage), zap.Int("length", len(reply)))
	return utils.DecodeModelJSON(reply, v)
}

func (c *Classifier) fallback(stage string, err error) {
	c.logger.Warn("Using stage default",
		zap.String("stage", stage),
		zap.Error(err))
}

// body returns the bounded body prefix sent to the model
func (c *Classifier) body(st PipelineState) string {
	return c.textProcessor.ProcessText(st.Body, c.maxBodySize)
}

// looseFloat accepts a JSON number or a numeric string and remembers
// whether the field was present
type looseFloat struct {
	value float64
	set   bool
}

func (f *looseFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	s := strings.TrimSpace(strings.Trim(string(b), `"`))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %s: %w", b, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("invalid number %s", b)
	}
	f.value, f.set = v, true
	return nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func normalizeSeverity(s string) Severity {
	switch sev := Severity(strings.ToLower(strings.TrimSpace(s))); sev {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return sev
	default:
		return SeverityMedium
	}
}

func cleanStrings(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
