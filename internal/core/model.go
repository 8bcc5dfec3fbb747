package core

import (
	"time"
)

// UrgencyLevel is the lower-case urgency label produced by the urgency stage
type UrgencyLevel string

const (
	UrgencyCritical UrgencyLevel = "critical"
	UrgencyHigh     UrgencyLevel = "high"
	UrgencyMedium   UrgencyLevel = "medium"
	UrgencyLow      UrgencyLevel = "low"
)

// Valid reports whether the level is one of the known urgency labels
func (l UrgencyLevel) Valid() bool {
	switch l {
	case UrgencyCritical, UrgencyHigh, UrgencyMedium, UrgencyLow:
		return true
	}
	return false
}

// RiskLevel is the upper-case risk label produced by the risk stage
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// Valid reports whether the level is one of the known risk labels
func (l RiskLevel) Valid() bool {
	switch l {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return true
	}
	return false
}

// IsHigh reports whether the level counts towards a sender's high-risk tally
func (l RiskLevel) IsHigh() bool {
	return l == RiskHigh || l == RiskCritical
}

// Priority is the final triage label
type Priority string

const (
	PriorityVerify Priority = "VERIFY"
	PriorityUrgent Priority = "URGENT"
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// Valid reports whether the priority is one of the known labels
func (p Priority) Valid() bool {
	switch p {
	case PriorityVerify, PriorityUrgent, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Severity grades a hidden expectation
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Expectation is something the sender implicitly expects from the recipient
type Expectation struct {
	Description string   `json:"description"`
	Type        string   `json:"type"`
	Deadline    string   `json:"deadline,omitempty"`
	Severity    Severity `json:"severity"`
}

// RiskFlag is a single risk indicator raised by the risk stage
type RiskFlag struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// MaxSenderPatterns bounds the per-sender pattern log; older entries are dropped
const MaxSenderPatterns = 20

// SenderPattern is one analysed email in a sender's history
type SenderPattern struct {
	Timestamp time.Time `json:"timestamp"`
	Urgency   float64   `json:"urgency"`
	Risk      float64   `json:"risk"`
}

// SenderRecord holds the running statistics for one sender address
type SenderRecord struct {
	Count         int             `json:"count"`
	TotalUrgency  float64         `json:"total_urgency"`
	AvgUrgency    float64         `json:"avg_urgency"`
	TotalRisk     float64         `json:"total_risk"`
	AvgRisk       float64         `json:"avg_risk"`
	HighRiskCount int             `json:"high_risk_count"`
	Patterns      []SenderPattern `json:"patterns,omitempty"`
	FirstSeen     *time.Time      `json:"first_seen,omitempty"`
	LastSeen      *time.Time      `json:"last_seen,omitempty"`
}

// Clone returns a deep copy so callers never share timestamps with the store
func (r SenderRecord) Clone() SenderRecord {
	out := r
	if r.Patterns != nil {
		out.Patterns = append([]SenderPattern(nil), r.Patterns...)
	}
	if r.FirstSeen != nil {
		t := *r.FirstSeen
		out.FirstSeen = &t
	}
	if r.LastSeen != nil {
		t := *r.LastSeen
		out.LastSeen = &t
	}
	return out
}

// PipelineState is the record threaded through every pipeline stage.
// Each group of fields is written by exactly one stage.
type PipelineState struct {
	RawEmail string

	// extract
	Sender  string
	Subject string
	Body    string

	// urgency
	UrgencyLevel    UrgencyLevel
	UrgencyScore    float64
	UrgencyTriggers []string

	// expectations
	Expectations     []Expectation
	ExpectationScore float64

	// risk
	RiskLevel RiskLevel
	RiskFlags []RiskFlag
	RiskScore float64

	// priority
	Priority      Priority
	PriorityScore float64

	// action plan
	ActionPlan       []string
	ResponseTemplate string

	// memory
	SenderHistory SenderRecord

	ExecutionLog []string
	Fallbacks    []string
}

// HasReply reports whether a suggested reply was produced
func (s *PipelineState) HasReply() bool {
	return s.ResponseTemplate != ""
}

// UrgencyResult is the output of the urgency stage
type UrgencyResult struct {
	Level    UrgencyLevel
	Score    float64
	Triggers []string
	Fallback bool
}

// ExpectationsResult is the output of the expectations stage
type ExpectationsResult struct {
	Expectations []Expectation
	Score        float64
	Fallback     bool
}

// RiskResult is the output of the risk stage
type RiskResult struct {
	Level    RiskLevel
	Flags    []RiskFlag
	Score    float64
	Fallback bool
}

// PriorityResult is the output of the priority stage
type PriorityResult struct {
	Priority Priority
	Score    float64
	Fallback bool
}

// ActionPlan is the output of the action planner
type ActionPlan struct {
	Steps            []string
	ResponseTemplate string
	Attempts         int
	Fallback         bool
}
