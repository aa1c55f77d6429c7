package swarm

// Validation weights. Source quality and role agreement dominate; gaps erode
// the coverage term and each contradiction costs a flat penalty.
const (
	weightSourceQuality = 0.3
	weightAgreement     = 0.3
	weightCoverage      = 0.2
	weightContradiction = 0.1
	gapPenalty          = 0.2
)

// Validate computes the authoritative overall confidence for a query from
// the per-role results and their synthesis. The returned ordinal is
// independent of any single role's own reported confidence.
func Validate(results map[Role]AgentResult, syn *Synthesis) Confidence {
	score := ValidationScore(results, syn)

	switch {
	case score >= 0.8:
		return ConfidenceHigh
	case score >= 0.6:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// ValidationScore returns the raw scalar behind Validate.
func ValidationScore(results map[Role]AgentResult, syn *Synthesis) float64 {
	var sourceScore float64
	if len(syn.UnifiedSources) > 0 {
		var sum float64
		for _, src := range syn.UnifiedSources {
			sum += src.Credibility
		}
		sourceScore = sum / float64(len(syn.UnifiedSources))
	}

	var agreement float64
	if len(results) > 0 {
		confident := 0
		for _, res := range results {
			if res.Confidence >= ConfidenceMedium {
				confident++
			}
		}
		agreement = float64(confident) / float64(len(results))
	}

	coverage := 1.0 - gapPenalty*float64(len(syn.Gaps))
	if coverage < 0 {
		coverage = 0
	}

	return weightSourceQuality*sourceScore +
		weightAgreement*agreement +
		weightCoverage*coverage -
		weightContradiction*float64(len(syn.Contradictions))
}

// MeetsCriteria reports whether a synthesis satisfies the plan's success
// criteria. Advisory only: it annotates the result, it does not fail the
// query.
func MeetsCriteria(syn *Synthesis, results map[Role]AgentResult, criteria SuccessCriteria, overall Confidence) bool {
	if len(syn.UnifiedSources) < criteria.MinSources {
		return false
	}
	if overall < criteria.MinConfidence {
		return false
	}
	return len(results) >= criteria.RequiredPerspectives
}
