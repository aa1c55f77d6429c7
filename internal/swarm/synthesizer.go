package swarm

import (
	"fmt"
	"sort"
	"strings"
)

// insightKeywords filters each role's sentences down to the ones that carry
// its characteristic signal.
var insightKeywords = map[Role][]string{
	RoleInnovation: {"novel", "innovative", "breakthrough", "paradigm", "revolutionary"},
	RoleSearch:     {"research", "study", "findings", "evidence", "data"},
	RoleAnalysis:   {"question", "analysis", "implication", "consequence", "deeper"},
}

const maxInsightsPerRole = 5

// contradictionPairs is the fixed antonym table scanned across the whole
// combined corpus. A co-occurring pair yields one contradiction entry even
// when the two terms came from the same role.
var contradictionPairs = [][2]string{
	{"true", "false"},
	{"correct", "incorrect"},
	{"possible", "impossible"},
	{"proven", "unproven"},
}

// gapAspects maps interrogative words in the question to the aspect the
// combined answer is expected to cover.
var gapAspects = []struct {
	interrogative string
	aspect        string
}{
	{"how", "mechanism"},
	{"why", "causation"},
	{"what", "definition"},
}

// Synthesize merges per-role results into one Synthesis. It is a pure
// function: identical inputs always produce identical output.
func Synthesize(q Query, results map[Role]AgentResult) (*Synthesis, error) {
	if len(results) == 0 {
		return nil, &SynthesisError{Reason: "empty result map"}
	}

	syn := &Synthesis{
		KeyInsights:   make(map[Role][]string),
		Contributions: make(map[Role]Contribution, len(results)),
	}

	var allSources []SourceRecord
	var corpus strings.Builder
	for _, role := range AllRoles() {
		res, ok := results[role]
		if !ok {
			continue
		}
		allSources = append(allSources, res.Sources...)
		corpus.WriteString(strings.ToLower(res.Content))
		corpus.WriteString(" ")

		syn.Contributions[role] = Contribution{
			ContentLength: len(res.Content),
			SourceCount:   len(res.Sources),
			Confidence:    res.Confidence,
			Duration:      res.Duration,
		}

		if keywords, ok := insightKeywords[role]; ok {
			if insights := extractInsights(res.Content, keywords); len(insights) > 0 {
				syn.KeyInsights[role] = insights
			}
		}
	}

	syn.UnifiedSources = unifySources(allSources)

	combined := corpus.String()
	for _, pair := range contradictionPairs {
		if strings.Contains(combined, pair[0]) && strings.Contains(combined, pair[1]) {
			syn.Contradictions = append(syn.Contradictions,
				fmt.Sprintf("potential contradiction regarding %s/%s", pair[0], pair[1]))
		}
	}

	question := strings.ToLower(q.Question)
	for _, ga := range gapAspects {
		if strings.Contains(question, ga.interrogative) && !strings.Contains(combined, ga.aspect) {
			syn.Gaps = append(syn.Gaps, fmt.Sprintf("missing %s explanation", ga.aspect))
		}
	}

	return syn, nil
}

// unifySources deduplicates by URL keeping the record with the highest
// credibility, then orders by descending credibility (URL as tie-break so
// output stays deterministic).
func unifySources(sources []SourceRecord) []SourceRecord {
	byURL := make(map[string]SourceRecord, len(sources))
	for _, src := range sources {
		src = src.Clamp()
		if existing, ok := byURL[src.URL]; !ok || src.Credibility > existing.Credibility {
			byURL[src.URL] = src
		}
	}

	unified := make([]SourceRecord, 0, len(byURL))
	for _, src := range byURL {
		unified = append(unified, src)
	}
	sort.Slice(unified, func(i, j int) bool {
		if unified[i].Credibility != unified[j].Credibility {
			return unified[i].Credibility > unified[j].Credibility
		}
		return unified[i].URL < unified[j].URL
	})
	if len(unified) == 0 {
		return nil
	}
	return unified
}

func extractInsights(content string, keywords []string) []string {
	var insights []string
	for _, sentence := range strings.Split(content, ".") {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		if containsAny(strings.ToLower(sentence), keywords) {
			insights = append(insights, sentence)
			if len(insights) == maxInsightsPerRole {
				break
			}
		}
	}
	return insights
}
