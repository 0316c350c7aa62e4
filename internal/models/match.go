package models

import "time"

// Weather conditions understood by the contextual scorer.
const (
	WeatherClear  = "clear"
	WeatherCloudy = "cloudy"
	WeatherRain   = "rain"
	WeatherSnow   = "snow"
	WeatherStorm  = "storm"
)

// RequestContext describes the situation a match request is made in.
// Zero values of the optional fields mean "not provided".
type RequestContext struct {
	Now       time.Time `json:"now"`
	Location  *GeoPoint `json:"location,omitempty" validate:"omitempty"`
	Weather   string    `json:"weather,omitempty" validate:"omitempty,oneof=clear cloudy rain snow storm"`
	Mood      string    `json:"mood,omitempty" validate:"omitempty,max=32"`
	GroupSize int       `json:"group_size,omitempty" validate:"min=0,max=500"`
}

// SignalScores holds the five per-signal scores of one entity.
type SignalScores struct {
	Collaborative float64 `json:"collaborative"`
	Content       float64 `json:"content"`
	Temporal      float64 `json:"temporal"`
	Contextual    float64 `json:"contextual"`
	Social        float64 `json:"social"`
}

// MatchResult is one ranked entity.
type MatchResult struct {
	Entity    Entity       `json:"-"`
	EntityID  string       `json:"entity_id"`
	Kind      EntityKind   `json:"kind"`
	Name      string       `json:"name"`
	Score     float64      `json:"score"`
	Signals   SignalScores `json:"signals"`
	Trending  bool         `json:"trending"`
	Anomalous bool         `json:"-"`
}

// MatchResponse wraps a ranked list for API callers.
type MatchResponse struct {
	RequestID   string        `json:"request_id"`
	SubjectID   string        `json:"subject_id"`
	Matches     []MatchResult `json:"matches"`
	GeneratedAt string        `json:"generated_at"`
}

// CandidatePool selects the entities a request is ranked over: either an
// explicit list of ids or a catalog listing filtered by kind.
type CandidatePool struct {
	IDs   []string   `json:"candidate_ids,omitempty" validate:"omitempty,max=500,dive,required"`
	Kind  EntityKind `json:"kind,omitempty" validate:"omitempty,oneof=venue dj event"`
	Limit int        `json:"limit,omitempty" validate:"min=0,max=500"`
}

// MatchSnapshot stores a computed match.
type MatchSnapshot struct {
	UserID      string    `json:"user_id"`
	EntityID    string    `json:"entity_id"`
	Score       float64   `json:"score"`
	Trending    bool      `json:"trending"`
	GeneratedAt time.Time `json:"generated_at"`
}
