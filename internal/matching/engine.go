// Package matching scores and ranks nightlife entities (venues, DJs,
// events) against a user profile or against another entity.
//
// Every scorer is a pure function over plain data. The Engine wires them
// together: it fans the per-candidate work out over a bounded errgroup,
// aggregates the five signals with dynamically selected weights, sorts
// stably and post-processes the batch (anomaly filtering, trend flags).
// All I/O happens before the Engine is called.
package matching

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"golang.org/x/sync/errgroup"

	"nightlife-matching-service/internal/metrics"
	"nightlife-matching-service/internal/models"
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidID reports whether id is a well-formed user or entity id.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// EngineConfig tunes the ranking pipeline.
type EngineConfig struct {
	// AnomalyK is the number of standard deviations above the batch mean
	// past which a score is treated as an outlier.
	AnomalyK float64
	// MinAnomalyBatch is the smallest batch anomaly filtering runs on.
	MinAnomalyBatch int
	Trend           TrendConfig
	// Concurrency bounds the per-candidate fan-out.
	Concurrency int
	// ContentModel replaces the tag-overlap content heuristic when set.
	ContentModel ContentModel
}

// DefaultEngineConfig returns the stock tuning.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		AnomalyK:        2,
		MinAnomalyBatch: 3,
		Trend:           DefaultTrendConfig(),
		Concurrency:     8,
	}
}

// Engine ranks candidate entities. It holds no mutable state and is safe
// for concurrent use.
type Engine struct {
	cfg    EngineConfig
	logger *slog.Logger
}

// NewEngine creates an Engine. A nil logger uses slog.Default().
func NewEngine(cfg EngineConfig, logger *slog.Logger) *Engine {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.AnomalyK <= 0 {
		cfg.AnomalyK = DefaultEngineConfig().AnomalyK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{cfg: cfg, logger: logger}
}

// UserInputs is everything fetched for a user-centred request.
type UserInputs struct {
	UserID       string
	Preferences  models.UserPreferences
	Interactions InteractionMatrix
	Connections  []string
	Engagement   Engagement
	Trends       TrendTable
}

// EntityInputs is everything fetched for an entity-centred request.
type EntityInputs struct {
	Anchor       models.Entity
	Interactions InteractionMatrix
	Engagement   Engagement
	Trends       TrendTable
}

// scoreFunc computes the signals of one candidate.
type scoreFunc func(candidate models.Entity, features FeatureVector) models.SignalScores

// RankForUser ranks candidates for a user.
func (e *Engine) RankForUser(ctx context.Context, in UserInputs, rc models.RequestContext, candidates []models.Entity) ([]models.MatchResult, error) {
	if !ValidID(in.UserID) {
		return nil, fmt.Errorf("%w: malformed user id %q", ErrInvalidInput, in.UserID)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: empty candidate pool", ErrInvalidInput)
	}

	prefs := in.Preferences
	userVec := ExtractUserFeatures(prefs)
	userTags := UserTags(prefs)
	hours := MaskOf(prefs.Schedule.Windows...)
	group := GroupRange{Min: prefs.Social.GroupSizeMin, Max: prefs.Social.GroupSizeMax}
	ix := NewCollaborativeIndex(in.Interactions)
	userEmb := ix.UserEmbedding(in.UserID)

	weights := SelectWeights(SignalDensity{
		HistorySize:     in.Interactions.HistorySize(in.UserID),
		SocialGraphSize: len(in.Connections),
		HasSchedule:     hours != 0,
	}, rc)

	score := func(c models.Entity, vec FeatureVector) models.SignalScores {
		id := c.EntityID()
		return models.SignalScores{
			Collaborative: CollaborativeScore(userEmb, ix.EntityEmbedding(id)),
			Content:       ContentScore(e.cfg.ContentModel, userVec, vec, userTags, EntityTags(c)),
			Temporal:      TemporalScore(hours, ActiveHours(c), prefs.Schedule.Availability, rc.Now),
			Contextual:    ContextualScore(rc, ContextOf(c), group),
			Social:        SocialScore(in.Connections, in.Engagement[id]),
		}
	}

	results, err := e.scoreBatch(ctx, candidates, weights, score)
	if err != nil {
		return nil, err
	}
	return e.postProcess(results, in.Trends), nil
}

// RankForEntity ranks candidates by how well they match an anchor entity.
// The anchor itself is never part of the result.
func (e *Engine) RankForEntity(ctx context.Context, in EntityInputs, rc models.RequestContext, candidates []models.Entity) ([]models.MatchResult, error) {
	anchorVec, err := ExtractEntityFeatures(in.Anchor)
	if err != nil {
		return nil, fmt.Errorf("anchor: %w", err)
	}
	anchorID := in.Anchor.EntityID()
	if !ValidID(anchorID) {
		return nil, fmt.Errorf("%w: malformed entity id %q", ErrInvalidInput, anchorID)
	}

	pool := make([]models.Entity, 0, len(candidates))
	for _, c := range candidates {
		if c != nil && c.EntityID() == anchorID {
			continue
		}
		pool = append(pool, c)
	}
	if len(pool) == 0 {
		return nil, fmt.Errorf("%w: empty candidate pool", ErrInvalidInput)
	}

	anchorTags := EntityTags(in.Anchor)
	anchorHours := ActiveHours(in.Anchor)
	ix := NewCollaborativeIndex(in.Interactions)
	audience := in.Engagement[anchorID]

	weights := SelectWeights(SignalDensity{
		HistorySize:     ix.Engagements(anchorID),
		SocialGraphSize: len(audience),
		HasSchedule:     anchorHours != 0,
	}, rc)

	score := func(c models.Entity, vec FeatureVector) models.SignalScores {
		id := c.EntityID()
		return models.SignalScores{
			Collaborative: ix.EntitySimilarity(anchorID, id),
			Content:       ContentScore(e.cfg.ContentModel, anchorVec, vec, anchorTags, EntityTags(c)),
			Temporal:      TemporalScore(anchorHours, ActiveHours(c), nil, rc.Now),
			Contextual:    ContextualScore(rc, ContextOf(c), GroupRange{}),
			Social:        CoEngagementScore(audience, in.Engagement[id]),
		}
	}

	results, err := e.scoreBatch(ctx, pool, weights, score)
	if err != nil {
		return nil, err
	}
	return e.postProcess(results, in.Trends), nil
}

// scoreBatch scores every candidate concurrently. Candidates whose features
// cannot be extracted are dropped. Output order matches input order.
func (e *Engine) scoreBatch(ctx context.Context, candidates []models.Entity, weights Weights, score scoreFunc) ([]models.MatchResult, error) {
	slots := make([]*models.MatchResult, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)
	for i, c := range candidates {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			vec, err := ExtractEntityFeatures(c)
			if err != nil {
				e.logger.Warn("excluding candidate", "index", i, "type", fmt.Sprintf("%T", c), "error", err)
				metrics.CandidatesExcluded.Inc()
				return nil
			}
			signals := score(c, vec)
			slots[i] = &models.MatchResult{
				Entity:   c,
				EntityID: c.EntityID(),
				Kind:     c.EntityKind(),
				Name:     models.EntityName(c),
				Score:    Aggregate(signals, weights),
				Signals:  signals,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("score candidates: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("score candidates: %w", err)
	}

	results := make([]models.MatchResult, 0, len(candidates))
	for _, r := range slots {
		if r != nil {
			results = append(results, *r)
		}
	}
	return results, nil
}

func (e *Engine) postProcess(results []models.MatchResult, trends TrendTable) []models.MatchResult {
	Rank(results)
	before := len(results)
	results = FilterAnomalies(results, e.cfg.AnomalyK, e.cfg.MinAnomalyBatch)
	if dropped := before - len(results); dropped > 0 {
		e.logger.Debug("dropped anomalous matches", "count", dropped, "batch", before)
		metrics.AnomaliesDropped.Add(float64(dropped))
	}
	AnnotateTrends(results, trends, e.cfg.Trend)
	return results
}
