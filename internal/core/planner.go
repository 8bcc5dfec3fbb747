package core

import (
	"context"
	"errors"
	"strings"

	"github.com/mikey/email-intel/internal/noreply"
	"github.com/mikey/email-intel/internal/utils"
	"go.uber.org/zap"
)

const (
	// DefaultPlannerAttempts bounds the generator calls made by the planner
	DefaultPlannerAttempts = 3
	// DefaultMaxActionSteps caps the length of an action plan
	DefaultMaxActionSteps = 4
)

// FallbackSteps is the conservative plan used once every attempt failed
var FallbackSteps = []string{
	"Manually verify this email through official channels",
	"Do not click any links or reply immediately",
	"Treat with extreme caution",
}

var errEmptyPlan = errors.New("action plan has no steps")

// Planner asks the model for a short action list and an optional reply
type Planner struct {
	generator   TextGenerator
	noReply     NoReplyDetector
	maxAttempts int
	maxSteps    int
	logger      *zap.Logger
}

// NewPlanner creates a new planner. Non-positive limits use the defaults and
// a nil detector falls back to the default no-reply markers.
func NewPlanner(
	generator TextGenerator,
	noReply NoReplyDetector,
	maxAttempts int,
	maxSteps int,
	logger *zap.Logger,
) *Planner {
	if maxAttempts <= 0 {
		maxAttempts = DefaultPlannerAttempts
	}
	if maxSteps <= 0 {
		maxSteps = DefaultMaxActionSteps
	}
	if noReply == nil {
		noReply = noreply.NewDetector(nil, logger)
	}
	return &Planner{
		generator:   generator,
		noReply:     noReply,
		maxAttempts: maxAttempts,
		maxSteps:    maxSteps,
		logger:      logger,
	}
}

type planResponse struct {
	ActionSteps      []string `json:"action_steps"`
	ResponseTemplate *string  `json:"response_template"`
}

// Plan produces the action plan for the accumulated state. Generator
// errors, unparseable replies and empty step lists each consume one
// attempt; after the last one the fallback plan is returned.
func (p *Planner) Plan(ctx context.Context, st PipelineState) ActionPlan {
	prompt := planPrompt(st, p.maxSteps)

	attempts := 0
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		attempts = attempt
		plan, err := p.attempt(ctx, prompt)
		if err == nil {
			plan.Attempts = attempt
			if p.noReply.IsNoReply(st.Sender) {
				plan.ResponseTemplate = ""
			}
			return plan
		}

		p.logger.Warn("Action plan attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", p.maxAttempts),
			zap.Error(err))

		if ctx.Err() != nil {
			break
		}
	}

	p.logger.Warn("Action planner exhausted, using fallback plan", zap.String("sender", st.Sender))
	return ActionPlan{
		Steps:    append([]string(nil), FallbackSteps...),
		Attempts: attempts,
		Fallback: true,
	}
}

func (p *Planner) attempt(ctx context.Context, prompt string) (ActionPlan, error) {
	reply, err := p.generator.Generate(ctx, prompt)
	if err != nil {
		return ActionPlan{}, err
	}

	var resp planResponse
	if err := utils.DecodeModelJSON(reply, &resp); err != nil {
		return ActionPlan{}, err
	}

	steps := cleanStrings(resp.ActionSteps)
	if len(steps) == 0 {
		return ActionPlan{}, errEmptyPlan
	}
	if len(steps) > p.maxSteps {
		steps = steps[:p.maxSteps]
	}

	return ActionPlan{
		Steps:            steps,
		ResponseTemplate: cleanTemplate(resp.ResponseTemplate),
	}, nil
}

// cleanTemplate maps the various "no reply" spellings to the empty string
func cleanTemplate(t *string) string {
	if t == nil {
		return ""
	}
	s := strings.TrimSpace(*t)
	switch strings.ToLower(s) {
	case "", "null", "none":
		return ""
	}
	return s
}
