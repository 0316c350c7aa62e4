package matching

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
)

// ContentModel scores a pair of feature vectors. Implementations must be
// deterministic and safe for concurrent use.
type ContentModel interface {
	Score(subject, entity FeatureVector) float64
}

// LinearContentModel is a logistic model over the element-wise product of
// the two vectors.
type LinearContentModel struct {
	Weights []float64
	Bias    float64
}

// LoadLinearContentModel decodes a model of the form
// {"weights": [...], "bias": 0.5}. The weight vector must have FeatureDim
// entries.
func LoadLinearContentModel(r io.Reader) (*LinearContentModel, error) {
	var raw struct {
		Weights []float64 `json:"weights"`
		Bias    float64   `json:"bias"`
	}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode content model: %w", err)
	}
	if len(raw.Weights) != FeatureDim {
		return nil, fmt.Errorf("content model has %d weights, want %d", len(raw.Weights), FeatureDim)
	}
	return &LinearContentModel{Weights: raw.Weights, Bias: raw.Bias}, nil
}

// Score implements ContentModel. A weight vector of the wrong length scores 0.
func (m *LinearContentModel) Score(subject, entity FeatureVector) float64 {
	if len(m.Weights) != len(subject) || len(subject) != len(entity) {
		return 0
	}
	z := m.Bias
	for i := range subject {
		z += m.Weights[i] * subject[i] * entity[i]
	}
	return clamp01(1 / (1 + math.Exp(-z)))
}

// ContentScore rates how well an entity's content matches the subject's
// taste. Without a model it falls back to Jaccard overlap of the tag sets.
func ContentScore(model ContentModel, subjectVec, entityVec FeatureVector, subjectTags, entityTags TagSet) float64 {
	if model != nil {
		return clamp01(model.Score(subjectVec, entityVec))
	}
	return Jaccard(subjectTags, entityTags)
}
