package matching

import (
	"math"

	"nightlife-matching-service/internal/models"
)

// Weights is a convex combination over the five signals.
type Weights struct {
	Collaborative float64 `json:"collaborative"`
	Content       float64 `json:"content"`
	Temporal      float64 `json:"temporal"`
	Contextual    float64 `json:"contextual"`
	Social        float64 `json:"social"`
}

// UniformWeights is the prior: every signal counts the same.
func UniformWeights() Weights {
	return Weights{Collaborative: 0.2, Content: 0.2, Temporal: 0.2, Contextual: 0.2, Social: 0.2}
}

// Sum returns the total weight.
func (w Weights) Sum() float64 {
	return w.Collaborative + w.Content + w.Temporal + w.Contextual + w.Social
}

// Normalize rescales w to sum to 1. Negative or non-finite components are
// treated as 0; an all-zero vector becomes uniform.
func (w Weights) Normalize() Weights {
	fix := func(x float64) float64 {
		if math.IsNaN(x) || math.IsInf(x, 0) || x < 0 {
			return 0
		}
		return x
	}
	w = Weights{fix(w.Collaborative), fix(w.Content), fix(w.Temporal), fix(w.Contextual), fix(w.Social)}
	sum := w.Sum()
	if sum == 0 {
		return UniformWeights()
	}
	return Weights{
		Collaborative: w.Collaborative / sum,
		Content:       w.Content / sum,
		Temporal:      w.Temporal / sum,
		Contextual:    w.Contextual / sum,
		Social:        w.Social / sum,
	}
}

// SignalDensity summarises how much data backs each signal for a subject.
type SignalDensity struct {
	HistorySize     int
	SocialGraphSize int
	HasSchedule     bool
}

const (
	historyHalf = 10.0
	graphHalf   = 5.0
)

// densityFactor maps a data count to a multiplier in [0.25, 1.75): sparse
// data pulls a signal below the prior, dense data pushes it above.
func densityFactor(n int, half float64) float64 {
	if n < 0 {
		n = 0
	}
	x := float64(n)
	return 0.25 + 1.5*x/(x+half)
}

// SelectWeights adjusts the uniform prior to the data available for the
// subject and the request, then renormalises. It is deterministic.
func SelectWeights(d SignalDensity, rc models.RequestContext) Weights {
	w := UniformWeights()
	w.Collaborative *= densityFactor(d.HistorySize, historyHalf)
	w.Social *= densityFactor(d.SocialGraphSize, graphHalf)
	if !d.HasSchedule {
		w.Temporal *= 0.5
	}

	present := 0
	if rc.Location != nil {
		present++
	}
	if rc.Weather != "" {
		present++
	}
	if rc.Mood != "" {
		present++
	}
	if rc.GroupSize > 0 {
		present++
	}
	w.Contextual *= 0.5 + 0.25*float64(present)

	return w.Normalize()
}
