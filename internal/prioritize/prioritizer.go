// Package prioritize ranks patch candidates by fusing suspiciousness,
// contextual similarity and historical mutation frequency.
package prioritize

import (
	"sort"

	"aprbot/internal/logging"
	"aprbot/internal/model"
	"aprbot/internal/mutation"
)

// Prioritizer orders candidates for validation.
type Prioritizer struct {
	logger *logging.Logger
}

// NewPrioritizer creates a prioritizer.
func NewPrioritizer(logger *logging.Logger) *Prioritizer {
	return &Prioritizer{logger: logger.WithComponent("prioritizer")}
}

// Prioritize computes priority = suspiciousness × similarity × frequency for
// every candidate, drops the zero-priority ones, and returns the rest sorted
// by descending priority. Ties order by ascending start line, then patch id.
func (p *Prioritizer) Prioritize(candidates []model.PatchCandidate, hist model.HistoricalFreqs) []model.PatchCandidate {
	ranked := make([]model.PatchCandidate, 0, len(candidates))
	for _, c := range candidates {
		freq := mutation.LookupFreq(hist, c.MutationType)
		c.PriorityScore = c.SuspiciousnessScore * c.SimilarityScore * freq
		if c.PriorityScore == 0 {
			continue
		}
		ranked = append(ranked, c)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.PriorityScore != b.PriorityScore {
			return a.PriorityScore > b.PriorityScore
		}
		if a.StartLine != b.StartLine {
			return a.StartLine < b.StartLine
		}
		return a.PatchID < b.PatchID
	})

	p.logger.Info("Prioritization completed", map[string]interface{}{
		"input":  len(candidates),
		"ranked": len(ranked),
	})

	return ranked
}
