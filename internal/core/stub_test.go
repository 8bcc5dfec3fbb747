package core_test

import (
	"context"
	"strings"
	"sync"
)

type stubReply struct {
	text string
	err  error
}

// scriptedGenerator answers each stage from its own queue of replies. The
// last reply of a queue repeats once the queue is drained.
type scriptedGenerator struct {
	mu      sync.Mutex
	replies map[string][]stubReply
	calls   map[string]int
	prompts []string
}

func newScriptedGenerator() *scriptedGenerator {
	return &scriptedGenerator{
		replies: make(map[string][]stubReply),
		calls:   make(map[string]int),
	}
}

func (g *scriptedGenerator) on(stage string, replies ...string) *scriptedGenerator {
	for _, r := range replies {
		g.replies[stage] = append(g.replies[stage], stubReply{text: r})
	}
	return g
}

func (g *scriptedGenerator) fail(stage string, err error) *scriptedGenerator {
	g.replies[stage] = append(g.replies[stage], stubReply{err: err})
	return g
}

func (g *scriptedGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	stage := stageOf(prompt)
	g.prompts = append(g.prompts, prompt)
	n := g.calls[stage]
	g.calls[stage]++

	queue := g.replies[stage]
	if len(queue) == 0 {
		return "", nil
	}
	if n >= len(queue) {
		n = len(queue) - 1
	}
	return queue[n].text, queue[n].err
}

func (g *scriptedGenerator) callCount(stage string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[stage]
}

// stageOf identifies the stage from the JSON keys its prompt asks for
func stageOf(prompt string) string {
	switch {
	case strings.Contains(prompt, "action_steps"):
		return "action_plan"
	case strings.Contains(prompt, "priority_score"):
		return "priority"
	case strings.Contains(prompt, "risk_level"):
		return "risk"
	case strings.Contains(prompt, "expectation_score"):
		return "expectations"
	case strings.Contains(prompt, "urgency_level"):
		return "urgency"
	}
	return "unknown"
}

type fixedNoReply struct{}

func (fixedNoReply) IsNoReply(address string) bool {
	a := strings.ToLower(address)
	return strings.Contains(a, "noreply") || strings.Contains(a, "no-reply")
}
