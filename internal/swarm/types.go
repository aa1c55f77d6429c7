package swarm

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies one of the fixed responder specializations.
type Role string

const (
	RoleMaster     Role = "master"
	RoleSearch     Role = "search"
	RoleInnovation Role = "innovation"
	RoleAnalysis   Role = "analysis"
)

// AllRoles returns every role in priority order, Master first.
func AllRoles() []Role {
	return []Role{RoleMaster, RoleSearch, RoleInnovation, RoleAnalysis}
}

// Complexity is the ordinal difficulty of a query.
type Complexity int

const (
	ComplexityBasic Complexity = iota
	ComplexityIntermediate
	ComplexityAdvanced
	ComplexityResearch
)

func (c Complexity) String() string {
	switch c {
	case ComplexityBasic:
		return "basic"
	case ComplexityIntermediate:
		return "intermediate"
	case ComplexityAdvanced:
		return "advanced"
	case ComplexityResearch:
		return "research"
	}
	return "unknown"
}

// ParseComplexity maps a string to a Complexity, defaulting to intermediate.
func ParseComplexity(s string) Complexity {
	switch s {
	case "basic":
		return ComplexityBasic
	case "advanced":
		return ComplexityAdvanced
	case "research":
		return ComplexityResearch
	default:
		return ComplexityIntermediate
	}
}

// Confidence is the ordinal confidence of a result.
type Confidence int

const (
	ConfidenceLow Confidence = iota
	ConfidenceMedium
	ConfidenceHigh
)

func (c Confidence) String() string {
	switch c {
	case ConfidenceHigh:
		return "high"
	case ConfidenceMedium:
		return "medium"
	}
	return "low"
}

func ParseConfidence(s string) Confidence {
	switch s {
	case "high":
		return ConfidenceHigh
	case "medium":
		return ConfidenceMedium
	}
	return ConfidenceLow
}

// Strategy selects the execution topology for a query.
type Strategy string

const (
	StrategySequential        Strategy = "sequential"
	StrategyParallel          Strategy = "parallel"
	StrategyHierarchical      Strategy = "hierarchical"
	StrategyFullOrchestration Strategy = "full_orchestration"
)

// Status tracks a query through its lifecycle.
type Status string

const (
	StatusQueued       Status = "queued"
	StatusPlanning     Status = "planning"
	StatusDistributing Status = "distributing"
	StatusExecuting    Status = "executing"
	StatusSynthesizing Status = "synthesizing"
	StatusValidating   Status = "validating"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
	StatusCancelled    Status = "cancelled"
)

// Terminal reports whether a status ends the query lifecycle.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Query is an immutable question submitted to the swarm.
type Query struct {
	ID                 string        `json:"id"`
	Question           string        `json:"question"`
	Context            string        `json:"context,omitempty"`
	Complexity         Complexity    `json:"complexity"`
	RequiredConfidence Confidence    `json:"required_confidence"`
	TimeLimit          time.Duration `json:"time_limit"`
	Timestamp          time.Time     `json:"timestamp"`
}

// NewQuery builds a Query with a fresh id and sane defaults.
func NewQuery(question, context string, complexity Complexity) Query {
	return Query{
		ID:                 uuid.New().String(),
		Question:           question,
		Context:            context,
		Complexity:         complexity,
		RequiredConfidence: ConfidenceMedium,
		TimeLimit:          3 * time.Minute,
		Timestamp:          time.Now().UTC(),
	}
}

// SourceRecord is one piece of supporting evidence. URL is the unique key
// within a result set.
type SourceRecord struct {
	URL         string  `json:"url"`
	Title       string  `json:"title"`
	Kind        string  `json:"kind"`
	Credibility float64 `json:"credibility"`
	Relevance   float64 `json:"relevance"`
}

// Clamp returns a copy with both scores forced into [0,1].
func (s SourceRecord) Clamp() SourceRecord {
	s.Credibility = clamp01(s.Credibility)
	s.Relevance = clamp01(s.Relevance)
	return s
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// AgentResult is the structured output of one role for one query. It is
// created once during execution and never mutated.
type AgentResult struct {
	Role            Role              `json:"role"`
	Content         string            `json:"content"`
	Confidence      Confidence        `json:"confidence"`
	Sources         []SourceRecord    `json:"sources,omitempty"`
	Reasoning       string            `json:"reasoning,omitempty"`
	QuestionsRaised []string          `json:"questions_raised,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	Duration        time.Duration     `json:"duration"`
	Timestamp       time.Time         `json:"timestamp"`
}

// SuccessCriteria is the planner's bar for a satisfactory answer.
type SuccessCriteria struct {
	MinSources           int        `json:"min_sources"`
	MinConfidence        Confidence `json:"min_confidence"`
	RequiredPerspectives int        `json:"required_perspectives"`
}

// ExecutionPlan is the planner's decision about required roles and topology.
type ExecutionPlan struct {
	QueryType         string          `json:"query_type"`
	ComplexityFactors []string        `json:"complexity_factors,omitempty"`
	Roles             []Role          `json:"roles"`
	Strategy          Strategy        `json:"strategy"`
	Criteria          SuccessCriteria `json:"criteria"`
}

// HasRole reports whether the plan requires the given role.
func (p *ExecutionPlan) HasRole(r Role) bool {
	for _, role := range p.Roles {
		if role == r {
			return true
		}
	}
	return false
}

// Task is an immutable per-role work descriptor.
type Task struct {
	Role     Role              `json:"role"`
	Priority int               `json:"priority"`
	Hints    map[string]string `json:"hints,omitempty"`
}

// Contribution summarizes one role's share of a synthesis.
type Contribution struct {
	ContentLength int           `json:"content_length"`
	SourceCount   int           `json:"source_count"`
	Confidence    Confidence    `json:"confidence"`
	Duration      time.Duration `json:"duration"`
}

// Synthesis is the merged cross-role analysis.
type Synthesis struct {
	UnifiedSources []SourceRecord        `json:"unified_sources,omitempty"`
	KeyInsights    map[Role][]string     `json:"key_insights,omitempty"`
	Contradictions []string              `json:"contradictions,omitempty"`
	Gaps           []string              `json:"gaps,omitempty"`
	Contributions  map[Role]Contribution `json:"contributions,omitempty"`
}

// SwarmResult is the terminal, immutable artifact of one query's lifecycle.
type SwarmResult struct {
	Query      Query                `json:"query"`
	Master     AgentResult          `json:"master"`
	Results    map[Role]AgentResult `json:"results,omitempty"`
	Synthesis  *Synthesis           `json:"synthesis,omitempty"`
	Confidence Confidence           `json:"confidence"`
	Duration   time.Duration        `json:"duration"`
	Timestamp  time.Time            `json:"timestamp"`
	Status     Status               `json:"status"`
}
