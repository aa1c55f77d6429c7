package swarm

import "strings"

// Planner classifies a query and decides which roles must answer it and
// under which concurrency strategy.
type Planner struct{}

func NewPlanner() *Planner {
	return &Planner{}
}

// queryTypeRules is evaluated in order; the first rule whose keyword matches
// wins. The ordering is the tie-break, so an ambiguous question like
// "explain how X works" classifies as explanation, not mechanism.
var queryTypeRules = []struct {
	name     string
	keywords []string
}{
	{"explanation", []string{"what is", "define", "explain"}},
	{"mechanism", []string{"how", "mechanism", "process"}},
	{"causation", []string{"why", "reason", "cause"}},
	{"calculation", []string{"calculate", "solve", "find", "compute"}},
	{"hypothesis_generation", []string{"hypothesis", "theory", "propose", "novel"}},
	{"research", []string{"research", "latest", "current", "recent"}},
}

const defaultQueryType = "general_inquiry"

var complexityFactorRules = []struct {
	name     string
	keywords []string
}{
	{"advanced_domain", []string{"quantum", "relativistic", "field theory"}},
	{"interdisciplinary", []string{"interdisciplinary", "multiple", "complex"}},
	{"innovative_thinking", []string{"novel", "breakthrough", "innovative"}},
}

var (
	searchTriggers     = []string{"research", "latest", "current", "study", "evidence"}
	innovationTriggers = []string{"novel", "innovative", "breakthrough", "first principles"}
)

// Plan produces an ExecutionPlan for a query. The only error is a
// PlanningError for a structurally invalid query.
func (p *Planner) Plan(q Query) (*ExecutionPlan, error) {
	if strings.TrimSpace(q.Question) == "" {
		return nil, &PlanningError{Reason: "empty question"}
	}

	lower := strings.ToLower(q.Question)

	plan := &ExecutionPlan{
		QueryType: classifyQueryType(lower),
		Strategy:  strategyFor(q.Complexity),
		Criteria:  criteriaFor(q.Complexity),
	}

	for _, rule := range complexityFactorRules {
		if containsAny(lower, rule.keywords) {
			plan.ComplexityFactors = append(plan.ComplexityFactors, rule.name)
		}
	}

	// Master is mandatory in every plan.
	plan.Roles = []Role{RoleMaster}
	if containsAny(lower, searchTriggers) {
		plan.Roles = append(plan.Roles, RoleSearch)
	}
	if containsAny(lower, innovationTriggers) {
		plan.Roles = append(plan.Roles, RoleInnovation)
	}
	if q.Complexity >= ComplexityAdvanced {
		plan.Roles = append(plan.Roles, RoleAnalysis)
	}

	// No optional role triggered: include all of them rather than running
	// Master alone.
	if len(plan.Roles) == 1 {
		plan.Roles = append(plan.Roles, RoleSearch, RoleInnovation, RoleAnalysis)
	}

	return plan, nil
}

func classifyQueryType(lower string) string {
	for _, rule := range queryTypeRules {
		if containsAny(lower, rule.keywords) {
			return rule.name
		}
	}
	return defaultQueryType
}

func strategyFor(c Complexity) Strategy {
	switch c {
	case ComplexityBasic:
		return StrategySequential
	case ComplexityIntermediate:
		return StrategyParallel
	case ComplexityAdvanced:
		return StrategyHierarchical
	default:
		return StrategyFullOrchestration
	}
}

func criteriaFor(c Complexity) SuccessCriteria {
	criteria := SuccessCriteria{
		MinSources:           3,
		MinConfidence:        ConfidenceMedium,
		RequiredPerspectives: 2,
	}
	if c == ComplexityResearch {
		criteria.MinSources = 5
		criteria.RequiredPerspectives = 3
	}
	return criteria
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
