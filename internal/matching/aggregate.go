package matching

import (
	"sort"

	"nightlife-matching-service/internal/models"
)

// Aggregate computes the weighted hybrid score, clamped to [0,1].
func Aggregate(s models.SignalScores, w Weights) float64 {
	return clamp01(w.Collaborative*clamp01(s.Collaborative) +
		w.Content*clamp01(s.Content) +
		w.Temporal*clamp01(s.Temporal) +
		w.Contextual*clamp01(s.Contextual) +
		w.Social*clamp01(s.Social))
}

// Rank sorts results by score, highest first. Equal scores keep their
// input order.
func Rank(results []models.MatchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}
