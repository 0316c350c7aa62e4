package matching

import (
	"math"

	"nightlife-matching-service/internal/models"
)

// TrendTable maps an entity id to its recent and baseline engagement.
type TrendTable map[string]models.TrendStat

// TrendConfig tunes trend detection.
type TrendConfig struct {
	// Threshold is the recent/baseline ratio at which an entity trends.
	Threshold float64
	// MinRecent is the recent engagement an entity without a baseline needs.
	MinRecent float64
}

// DefaultTrendConfig returns the stock thresholds.
func DefaultTrendConfig() TrendConfig {
	return TrendConfig{Threshold: 1.5, MinRecent: 10}
}

// IsTrending applies cfg to one trend entry.
func IsTrending(stat models.TrendStat, cfg TrendConfig) bool {
	if stat.Recent <= 0 {
		return false
	}
	if stat.Baseline <= 0 {
		return stat.Recent >= cfg.MinRecent
	}
	return stat.Recent/stat.Baseline >= cfg.Threshold
}

// AnnotateTrends sets Trending on every result whose entity trends.
// Entities missing from the table do not trend.
func AnnotateTrends(results []models.MatchResult, table TrendTable, cfg TrendConfig) {
	for i := range results {
		stat, ok := table[results[i].EntityID]
		results[i].Trending = ok && IsTrending(stat, cfg)
	}
}

// FilterAnomalies flags and drops results scoring above mean + k·stddev of
// the other scores in the batch. It is a heuristic guard against popularity
// spikes and bot traffic, tuned through k. Flagged entries are marked
// Anomalous in the input slice; the returned slice holds only the rest, in
// input order. Each score is compared against at least minBatch others;
// smaller batches are returned unchanged.
func FilterAnomalies(results []models.MatchResult, k float64, minBatch int) []models.MatchResult {
	if minBatch < 2 {
		minBatch = 2
	}
	if len(results)-1 < minBatch {
		return results
	}
	n := float64(len(results))
	mean, m2 := scoreStats(results)

	kept := make([]models.MatchResult, 0, len(results))
	for i := range results {
		x := results[i].Score
		restMean, restStd := withoutScore(n, mean, m2, x)
		if restStd > 0 && x > restMean+k*restStd {
			results[i].Anomalous = true
			continue
		}
		kept = append(kept, results[i])
	}
	return kept
}

// scoreStats returns the mean of scores and the sum of squared deviations
// from it.
func scoreStats(results []models.MatchResult) (mean, m2 float64) {
	n := float64(len(results))
	if n == 0 {
		return 0, 0
	}
	for _, r := range results {
		mean += r.Score
	}
	mean /= n
	for _, r := range results {
		d := r.Score - mean
		m2 += d * d
	}
	return mean, m2
}

// withoutScore removes x from a batch of n scores summarised by mean and m2
// and returns the mean and population stddev of what is left.
func withoutScore(n, mean, m2, x float64) (restMean, restStd float64) {
	rest := n - 1
	restMean = (n*mean - x) / rest
	restM2 := m2 - (x-mean)*(x-restMean)
	if restM2 <= 1e-18*rest {
		return restMean, 0
	}
	return restMean, math.Sqrt(restM2 / rest)
}
