package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/sync/errgroup"

	"nightlife-matching-service/internal/config"
	"nightlife-matching-service/internal/matching"
	"nightlife-matching-service/internal/metrics"
	"nightlife-matching-service/internal/models"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
	snapshotTimeout     = 5 * time.Second
)

type MatchingService struct {
	prefs        PreferenceStore
	catalog      CatalogStore
	interactions InteractionStore
	social       SocialStore
	snapshots    SnapshotStore
	redis        *redis.Client
	engine       *matching.Engine
	breaker      *gobreaker.CircuitBreaker[any]
	cfg          config.MatchingConfig
	now          func() time.Time

	bg sync.WaitGroup
}

// NewMatchingService wires the stores, the optional Redis cache and the
// ranking engine together. rdb may be nil.
func NewMatchingService(stores Stores, rdb *redis.Client, engine *matching.Engine, cfg config.MatchingConfig) *MatchingService {
	return &MatchingService{
		prefs:        stores.Preferences,
		catalog:      stores.Catalog,
		interactions: stores.Interactions,
		social:       stores.Social,
		snapshots:    stores.Snapshots,
		redis:        rdb,
		engine:       engine,
		breaker:      newStoreBreaker(),
		cfg:          cfg,
		now:          time.Now,
	}
}

// Close waits for pending snapshot writes.
func (s *MatchingService) Close() {
	s.bg.Wait()
}

// GetMatches ranks a candidate pool for a user.
func (s *MatchingService) GetMatches(ctx context.Context, userID string, rc models.RequestContext, pool models.CandidatePool) (*models.MatchResponse, error) {
	start := time.Now()
	resp, err := s.getMatches(ctx, userID, rc, pool)
	observe("user", start, resp, err)
	return resp, err
}

func (s *MatchingService) getMatches(ctx context.Context, userID string, rc models.RequestContext, pool models.CandidatePool) (*models.MatchResponse, error) {
	if !matching.ValidID(userID) {
		return nil, fmt.Errorf("%w: malformed user id %q", matching.ErrInvalidInput, userID)
	}
	rc, err := s.requestContext(rc)
	if err != nil {
		return nil, err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	candidates, err := s.resolveCandidates(fetchCtx, pool, "")
	if err != nil {
		return nil, s.fetchError(ctx, err)
	}
	ids := entityIDs(candidates)

	in := matching.UserInputs{UserID: userID}
	g, gctx := errgroup.WithContext(fetchCtx)
	g.Go(func() error {
		p, err := s.loadPreferences(gctx, userID)
		if err != nil {
			return matching.Upstream("preferences", err)
		}
		in.Preferences = *p
		return nil
	})
	g.Go(func() error {
		m, err := guarded(s, func() (map[string]map[string]float64, error) {
			return s.interactions.InteractionMatrix(gctx, userID, ids)
		})
		in.Interactions = m
		return matching.Upstream("interactions", err)
	})
	g.Go(func() error {
		c, err := guarded(s, func() ([]string, error) {
			return s.social.GetConnections(gctx, userID)
		})
		in.Connections = c
		return matching.Upstream("connections", err)
	})
	g.Go(func() error {
		e, err := guarded(s, func() (map[string][]string, error) {
			return s.interactions.Engagement(gctx, ids)
		})
		in.Engagement = e
		return matching.Upstream("engagement", err)
	})
	g.Go(func() error {
		t, err := s.trendTable(gctx, ids)
		in.Trends = t
		return matching.Upstream("trends", err)
	})
	if err := g.Wait(); err != nil {
		return nil, s.fetchError(ctx, err)
	}

	results, err := s.engine.RankForUser(ctx, in, rc, candidates)
	if err != nil {
		return nil, err
	}
	results = truncate(results, pool.Limit)
	s.persistSnapshots(userID, results)

	slog.Info("matches computed", "user_id", userID, "candidates", len(candidates), "returned", len(results))
	return s.response(userID, results), nil
}

// GetEntityMatches ranks a candidate pool against an anchor entity.
func (s *MatchingService) GetEntityMatches(ctx context.Context, entityID string, rc models.RequestContext, pool models.CandidatePool) (*models.MatchResponse, error) {
	start := time.Now()
	resp, err := s.getEntityMatches(ctx, entityID, rc, pool)
	observe("entity", start, resp, err)
	return resp, err
}

func (s *MatchingService) getEntityMatches(ctx context.Context, entityID string, rc models.RequestContext, pool models.CandidatePool) (*models.MatchResponse, error) {
	if !matching.ValidID(entityID) {
		return nil, fmt.Errorf("%w: malformed entity id %q", matching.ErrInvalidInput, entityID)
	}
	rc, err := s.requestContext(rc)
	if err != nil {
		return nil, err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	anchor, err := guarded(s, func() (models.Entity, error) {
		return s.catalog.GetEntity(fetchCtx, entityID)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: entity %q", matching.ErrMissingData, entityID)
	}
	if err != nil {
		return nil, s.fetchError(ctx, matching.Upstream("catalog", err))
	}

	candidates, err := s.resolveCandidates(fetchCtx, pool, entityID)
	if err != nil {
		return nil, s.fetchError(ctx, err)
	}
	ids := entityIDs(candidates)
	withAnchor := append(ids[:len(ids):len(ids)], entityID)

	in := matching.EntityInputs{Anchor: anchor}
	g, gctx := errgroup.WithContext(fetchCtx)
	g.Go(func() error {
		m, err := guarded(s, func() (map[string]map[string]float64, error) {
			return s.interactions.InteractionMatrix(gctx, "", withAnchor)
		})
		in.Interactions = m
		return matching.Upstream("interactions", err)
	})
	g.Go(func() error {
		e, err := guarded(s, func() (map[string][]string, error) {
			return s.interactions.Engagement(gctx, withAnchor)
		})
		in.Engagement = e
		return matching.Upstream("engagement", err)
	})
	g.Go(func() error {
		t, err := s.trendTable(gctx, ids)
		in.Trends = t
		return matching.Upstream("trends", err)
	})
	if err := g.Wait(); err != nil {
		return nil, s.fetchError(ctx, err)
	}

	results, err := s.engine.RankForEntity(ctx, in, rc, candidates)
	if err != nil {
		return nil, err
	}
	results = truncate(results, pool.Limit)

	slog.Info("entity matches computed", "entity_id", entityID, "candidates", len(candidates), "returned", len(results))
	return s.response(entityID, results), nil
}

// UpdatePreferences applies a partial update to a user's profile. Users
// without a stored profile start from the defaults.
func (s *MatchingService) UpdatePreferences(ctx context.Context, userID string, update models.PreferenceUpdate) (*models.UserPreferences, error) {
	if !matching.ValidID(userID) {
		return nil, fmt.Errorf("%w: malformed user id %q", matching.ErrInvalidInput, userID)
	}
	if update.Empty() {
		return nil, fmt.Errorf("%w: empty preference update", matching.ErrInvalidInput)
	}

	current, err := s.prefs.GetPreferences(ctx, userID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		d := models.DefaultPreferences(userID)
		current = &d
	case err != nil:
		return nil, matching.Upstream("preferences", err)
	}

	merged := current.Merge(update)
	merged.UserID = userID
	if err := checkPreferences(merged); err != nil {
		return nil, err
	}

	stored, err := s.prefs.UpsertPreferences(ctx, merged)
	if err != nil {
		return nil, err
	}
	s.delCache(ctx, prefKey(userID))

	slog.Info("preferences updated", "user_id", userID)
	return stored, nil
}

// GetPreferences returns a user's profile, or the defaults when none is stored.
func (s *MatchingService) GetPreferences(ctx context.Context, userID string) (*models.UserPreferences, error) {
	if !matching.ValidID(userID) {
		return nil, fmt.Errorf("%w: malformed user id %q", matching.ErrInvalidInput, userID)
	}
	p, err := s.loadPreferences(ctx, userID)
	if err != nil {
		return nil, matching.Upstream("preferences", err)
	}
	return p, nil
}

// RecordInteraction stores a user's interaction with a catalog entity.
func (s *MatchingService) RecordInteraction(ctx context.Context, userID string, req models.CreateInteractionRequest) (*models.UserInteraction, error) {
	if !matching.ValidID(userID) || !matching.ValidID(req.EntityID) {
		return nil, fmt.Errorf("%w: malformed id", matching.ErrInvalidInput)
	}
	weight, ok := models.InteractionWeights[req.InteractionType]
	if !ok {
		return nil, fmt.Errorf("%w: unknown interaction type %q", matching.ErrInvalidInput, req.InteractionType)
	}

	if _, err := s.catalog.GetEntity(ctx, req.EntityID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: entity %q", matching.ErrMissingData, req.EntityID)
		}
		return nil, matching.Upstream("catalog", err)
	}

	inter, err := s.interactions.CreateInteraction(ctx, userID, req.EntityID, req.InteractionType, weight)
	if err != nil {
		return nil, err
	}
	s.delCache(ctx, trendKey(req.EntityID))
	return inter, nil
}

// AddConnection links two users in the social graph.
func (s *MatchingService) AddConnection(ctx context.Context, userID string, req models.CreateConnectionRequest) (*models.Connection, error) {
	if !matching.ValidID(userID) || !matching.ValidID(req.FriendID) {
		return nil, fmt.Errorf("%w: malformed id", matching.ErrInvalidInput)
	}
	if userID == req.FriendID {
		return nil, fmt.Errorf("%w: cannot connect a user to themselves", matching.ErrInvalidInput)
	}
	return s.social.AddConnection(ctx, userID, req.FriendID)
}

// MatchHistory returns the last stored matches of a user.
func (s *MatchingService) MatchHistory(ctx context.Context, userID string, limit int) ([]models.MatchSnapshot, error) {
	if !matching.ValidID(userID) {
		return nil, fmt.Errorf("%w: malformed user id %q", matching.ErrInvalidInput, userID)
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return s.snapshots.GetSnapshots(ctx, userID, limit)
}

// ListEntities lists the catalog, optionally filtered by kind.
func (s *MatchingService) ListEntities(ctx context.Context, kind models.EntityKind, limit int) ([]models.Entity, error) {
	if kind != "" && !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown entity kind %q", matching.ErrInvalidInput, kind)
	}
	if limit <= 0 || limit > s.cfg.CandidateLimit {
		limit = s.cfg.CandidateLimit
	}
	return s.catalog.ListEntities(ctx, kind, limit)
}

// UpsertEntity decodes and stores a catalog entity.
func (s *MatchingService) UpsertEntity(ctx context.Context, rec models.EntityRecord) (models.Entity, error) {
	e, err := rec.Decode()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", matching.ErrInvalidInput, err)
	}
	if !matching.ValidID(e.EntityID()) {
		return nil, fmt.Errorf("%w: malformed entity id %q", matching.ErrInvalidInput, e.EntityID())
	}
	if err := s.catalog.UpsertEntity(ctx, e); err != nil {
		return nil, err
	}
	s.delCache(ctx, trendKey(e.EntityID()))
	return e, nil
}

func (s *MatchingService) requestContext(rc models.RequestContext) (models.RequestContext, error) {
	if rc.GroupSize < 0 {
		return rc, fmt.Errorf("%w: negative group size", matching.ErrInvalidInput)
	}
	switch rc.Weather {
	case "", models.WeatherClear, models.WeatherCloudy, models.WeatherRain, models.WeatherSnow, models.WeatherStorm:
	default:
		return rc, fmt.Errorf("%w: unknown weather %q", matching.ErrInvalidInput, rc.Weather)
	}
	if l := rc.Location; l != nil && (l.Lat < -90 || l.Lat > 90 || l.Lng < -180 || l.Lng > 180) {
		return rc, fmt.Errorf("%w: location out of range", matching.ErrInvalidInput)
	}
	if rc.Now.IsZero() {
		rc.Now = s.now()
	}
	return rc, nil
}

// resolveCandidates turns a pool into entities. Unknown ids are dropped;
// a pool that resolves to nothing is invalid.
func (s *MatchingService) resolveCandidates(ctx context.Context, pool models.CandidatePool, exclude string) ([]models.Entity, error) {
	if pool.Kind != "" && !pool.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown entity kind %q", matching.ErrInvalidInput, pool.Kind)
	}

	var (
		candidates []models.Entity
		err        error
	)
	if len(pool.IDs) > 0 {
		ids, verr := dedupeIDs(pool.IDs)
		if verr != nil {
			return nil, verr
		}
		candidates, err = guarded(s, func() ([]models.Entity, error) {
			return s.catalog.GetEntities(ctx, ids)
		})
	} else {
		limit := s.cfg.CandidateLimit
		if exclude != "" {
			limit++
		}
		candidates, err = guarded(s, func() ([]models.Entity, error) {
			return s.catalog.ListEntities(ctx, pool.Kind, limit)
		})
	}
	if err != nil {
		return nil, matching.Upstream("catalog", err)
	}

	out := candidates[:0:0]
	for _, c := range candidates {
		if c == nil || c.EntityID() == exclude {
			continue
		}
		if pool.Kind != "" && c.EntityKind() != pool.Kind {
			continue
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no candidates resolved", matching.ErrInvalidInput)
	}
	return out, nil
}

func (s *MatchingService) loadPreferences(ctx context.Context, userID string) (*models.UserPreferences, error) {
	key := prefKey(userID)
	if cached, err := s.getFromCache(ctx, key); err == nil {
		var p models.UserPreferences
		if json.Unmarshal([]byte(cached), &p) == nil {
			metrics.CacheRequests.WithLabelValues("preferences", "hit").Inc()
			return &p, nil
		}
	}
	metrics.CacheRequests.WithLabelValues("preferences", "miss").Inc()

	p, err := guarded(s, func() (*models.UserPreferences, error) {
		return s.prefs.GetPreferences(ctx, userID)
	})
	if errors.Is(err, sql.ErrNoRows) {
		slog.Debug("no stored preferences, using defaults", "user_id", userID)
		d := models.DefaultPreferences(userID)
		return &d, nil
	}
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(p); err == nil {
		s.setCache(ctx, key, data, s.cfg.PrefCacheTTL)
	}
	return p, nil
}

func (s *MatchingService) trendTable(ctx context.Context, ids []string) (matching.TrendTable, error) {
	table, missing := s.cachedTrends(ctx, ids)
	if len(missing) == 0 {
		return table, nil
	}
	fresh, err := guarded(s, func() (map[string]models.TrendStat, error) {
		return s.interactions.TrendStats(ctx, missing, s.cfg.TrendWindow)
	})
	if err != nil {
		return nil, err
	}
	for id, stat := range fresh {
		table[id] = stat
	}
	s.storeTrends(ctx, missing, fresh)
	return table, nil
}

// fetchError reports cancellation of the caller's context as such, and
// everything else as the upstream failure it is.
func (s *MatchingService) fetchError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("fetch inputs: %w", ctxErr)
	}
	return err
}

func (s *MatchingService) persistSnapshots(userID string, results []models.MatchResult) {
	if len(results) == 0 {
		return
	}
	matches := make([]models.MatchResult, len(results))
	copy(matches, results)

	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
		defer cancel()
		if err := s.snapshots.ReplaceSnapshots(ctx, userID, matches); err != nil {
			slog.Error("failed to persist match snapshots", "user_id", userID, "error", err)
		}
	}()
}

func (s *MatchingService) response(subjectID string, results []models.MatchResult) *models.MatchResponse {
	if results == nil {
		results = []models.MatchResult{}
	}
	return &models.MatchResponse{
		RequestID:   uuid.NewString(),
		SubjectID:   subjectID,
		Matches:     results,
		GeneratedAt: s.now().UTC().Format(time.RFC3339),
	}
}

func observe(mode string, start time.Time, resp *models.MatchResponse, err error) {
	metrics.MatchDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	metrics.MatchRequests.WithLabelValues(mode, outcome(err)).Inc()
	if resp == nil {
		return
	}
	for _, m := range resp.Matches {
		if m.Trending {
			metrics.TrendingFlagged.Inc()
		}
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, matching.ErrInvalidInput):
		return "invalid"
	case errors.Is(err, matching.ErrMissingData):
		return "missing"
	case errors.Is(err, matching.ErrUpstreamFetch):
		return "upstream"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	}
	return "error"
}

func checkPreferences(p models.UserPreferences) error {
	invalid := func(msg string) error {
		return fmt.Errorf("%w: %s", matching.ErrInvalidInput, msg)
	}
	if p.Music.TempoMax > 0 && p.Music.TempoMin > p.Music.TempoMax {
		return invalid("tempo_min exceeds tempo_max")
	}
	if p.Social.GroupSizeMax > 0 && p.Social.GroupSizeMin > p.Social.GroupSizeMax {
		return invalid("group_size_min exceeds group_size_max")
	}
	if p.Food.PriceMax > 0 && p.Food.PriceMin > p.Food.PriceMax {
		return invalid("price_min exceeds price_max")
	}
	for _, w := range p.Schedule.Windows {
		if w.StartHour < 0 || w.StartHour > 24 || w.EndHour < 0 || w.EndHour > 24 {
			return invalid("schedule window hours must be within 0-24")
		}
	}
	return nil
}

func dedupeIDs(ids []string) ([]string, error) {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !matching.ValidID(id) {
			return nil, fmt.Errorf("%w: malformed candidate id %q", matching.ErrInvalidInput, id)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

func entityIDs(entities []models.Entity) []string {
	ids := make([]string, len(entities))
	for i, e := range entities {
		ids[i] = e.EntityID()
	}
	return ids
}

func truncate(results []models.MatchResult, limit int) []models.MatchResult {
	if limit > 0 && len(results) > limit {
		return results[:limit]
	}
	return results
}
