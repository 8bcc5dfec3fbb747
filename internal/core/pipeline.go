package core

import (
	"context"
	"time"

	"github.com/mikey/email-intel/internal/extract"
	"go.uber.org/zap"
)

// Stage names, in execution order
const (
	StageExtract      = "extract"
	StageUrgency      = "urgency"
	StageExpectations = "expectations"
	StageRisk         = "risk"
	StagePriority     = "priority"
	StageActionPlan   = "action_plan"
	StageMemory       = "memory"
)

// stage is one node of the fixed pipeline. run reads the accumulated state
// and writes only the fields the stage owns; it reports whether the stage
// degraded to its default.
type stage struct {
	name string
	run  func(ctx context.Context, st *PipelineState) bool
}

// Pipeline is the email analysis orchestrator:
// extract → urgency → expectations → risk → priority → action plan → memory
type Pipeline struct {
	classifier *Classifier
	planner    *Planner
	memory     SenderMemory
	observer   StageObserver
	logger     *zap.Logger
	stages     []stage
}

// NewPipeline creates a new pipeline
func NewPipeline(
	classifier *Classifier,
	planner *Planner,
	memory SenderMemory,
	logger *zap.Logger,
) *Pipeline {
	p := &Pipeline{
		classifier: classifier,
		planner:    planner,
		memory:     memory,
		logger:     logger,
	}
	p.stages = []stage{
		{name: StageExtract, run: p.extract},
		{name: StageUrgency, run: p.urgency},
		{name: StageExpectations, run: p.expectations},
		{name: StageRisk, run: p.risk},
		{name: StagePriority, run: p.priority},
		{name: StageActionPlan, run: p.actionPlan},
		{name: StageMemory, run: p.updateMemory},
	}
	return p
}

// SetObserver attaches a stage observer, typically a metrics recorder
func (p *Pipeline) SetObserver(observer StageObserver) {
	p.observer = observer
}

// StageNames returns the stage names in execution order
func (p *Pipeline) StageNames() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.name
	}
	return names
}

// Run analyses one raw email and returns the terminal state. Stage
// failures never abort the run; the only error is the context's, when the
// caller cancels between stages.
func (p *Pipeline) Run(ctx context.Context, rawEmail string) (*PipelineState, error) {
	st := &PipelineState{RawEmail: rawEmail}

	for _, s := range p.stages {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("Pipeline cancelled",
				zap.String("next_stage", s.name),
				zap.Strings("completed", st.ExecutionLog))
			return st, err
		}

		start := time.Now()
		fallback := s.run(ctx, st)
		duration := time.Since(start)

		st.ExecutionLog = append(st.ExecutionLog, s.name)
		if fallback {
			st.Fallbacks = append(st.Fallbacks, s.name)
		}

		if p.observer != nil {
			p.observer.ObserveStage(s.name, duration)
			if fallback {
				p.observer.ObserveFallback(s.name)
			}
		}

		p.logger.Info("Stage completed",
			zap.String("stage", s.name),
			zap.Duration("duration", duration),
			zap.Bool("fallback", fallback))
	}

	p.logger.Info("Email analysed",
		zap.String("sender", st.Sender),
		zap.String("priority", string(st.Priority)),
		zap.String("urgency", string(st.UrgencyLevel)),
		zap.String("risk", string(st.RiskLevel)),
		zap.Int("sender_count", st.SenderHistory.Count))

	return st, nil
}

func (p *Pipeline) extract(_ context.Context, st *PipelineState) bool {
	email := extract.Parse(st.RawEmail)
	st.Sender = email.Sender
	st.Subject = email.Subject
	st.Body = email.Body
	return st.Sender == extract.UnknownSender
}

func (p *Pipeline) urgency(ctx context.Context, st *PipelineState) bool {
	r := p.classifier.Urgency(ctx, *st)
	st.UrgencyLevel = r.Level
	st.UrgencyScore = r.Score
	st.UrgencyTriggers = r.Triggers
	return r.Fallback
}

func (p *Pipeline) expectations(ctx context.Context, st *PipelineState) bool {
	r := p.classifier.Expectations(ctx, *st)
	st.Expectations = r.Expectations
	st.ExpectationScore = r.Score
	return r.Fallback
}

func (p *Pipeline) risk(ctx context.Context, st *PipelineState) bool {
	r := p.classifier.Risk(ctx, *st)
	st.RiskLevel = r.Level
	st.RiskFlags = r.Flags
	st.RiskScore = r.Score
	return r.Fallback
}

func (p *Pipeline) priority(ctx context.Context, st *PipelineState) bool {
	r := p.classifier.Priority(ctx, *st)
	st.Priority = r.Priority
	st.PriorityScore = r.Score
	return r.Fallback
}

func (p *Pipeline) actionPlan(ctx context.Context, st *PipelineState) bool {
	plan := p.planner.Plan(ctx, *st)
	st.ActionPlan = plan.Steps
	st.ResponseTemplate = plan.ResponseTemplate
	return plan.Fallback
}

func (p *Pipeline) updateMemory(ctx context.Context, st *PipelineState) bool {
	st.SenderHistory = p.memory.Update(ctx, st.Sender, st.UrgencyScore, st.RiskScore, st.RiskLevel)
	return false
}
