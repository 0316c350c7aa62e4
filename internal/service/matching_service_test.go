package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nightlife-matching-service/internal/config"
	"nightlife-matching-service/internal/matching"
	"nightlife-matching-service/internal/models"
)

// memStore implements every store interface in memory.
type memStore struct {
	mu          sync.Mutex
	prefs       map[string]models.UserPreferences
	entities    map[string]models.Entity
	order       []string
	matrix      map[string]map[string]float64
	engagement  map[string][]string
	trends      map[string]models.TrendStat
	connections map[string][]string
	snapshots   map[string][]models.MatchResult
	recorded    []models.UserInteraction

	catalogErr error
	trendCalls int
}

func newMemStore(entities ...models.Entity) *memStore {
	m := &memStore{
		prefs:       map[string]models.UserPreferences{},
		entities:    map[string]models.Entity{},
		matrix:      map[string]map[string]float64{},
		engagement:  map[string][]string{},
		trends:      map[string]models.TrendStat{},
		connections: map[string][]string{},
		snapshots:   map[string][]models.MatchResult{},
	}
	for _, e := range entities {
		m.entities[e.EntityID()] = e
		m.order = append(m.order, e.EntityID())
	}
	return m
}

func (m *memStore) GetPreferences(_ context.Context, userID string) (*models.UserPreferences, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prefs[userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &p, nil
}

func (m *memStore) UpsertPreferences(_ context.Context, pref models.UserPreferences) (*models.UserPreferences, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pref.UpdatedAt = time.Now()
	m.prefs[pref.UserID] = pref
	return &pref, nil
}

func (m *memStore) GetEntity(_ context.Context, id string) (models.Entity, error) {
	if m.catalogErr != nil {
		return nil, m.catalogErr
	}
	e, ok := m.entities[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return e, nil
}

func (m *memStore) GetEntities(_ context.Context, ids []string) ([]models.Entity, error) {
	if m.catalogErr != nil {
		return nil, m.catalogErr
	}
	var out []models.Entity
	for _, id := range ids {
		if e, ok := m.entities[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) ListEntities(_ context.Context, kind models.EntityKind, limit int) ([]models.Entity, error) {
	if m.catalogErr != nil {
		return nil, m.catalogErr
	}
	var out []models.Entity
	for _, id := range m.order {
		e := m.entities[id]
		if kind != "" && e.EntityKind() != kind {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *memStore) UpsertEntity(_ context.Context, e models.Entity) error {
	if _, ok := m.entities[e.EntityID()]; !ok {
		m.order = append(m.order, e.EntityID())
	}
	m.entities[e.EntityID()] = e
	return nil
}

func (m *memStore) CreateInteraction(_ context.Context, userID, entityID, interactionType string, weight float64) (*models.UserInteraction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inter := models.UserInteraction{
		ID:              len(m.recorded) + 1,
		UserID:          userID,
		EntityID:        entityID,
		InteractionType: interactionType,
		Weight:          weight,
	}
	m.recorded = append(m.recorded, inter)
	return &inter, nil
}

func (m *memStore) InteractionMatrix(context.Context, string, []string) (map[string]map[string]float64, error) {
	return m.matrix, nil
}

func (m *memStore) Engagement(context.Context, []string) (map[string][]string, error) {
	return m.engagement, nil
}

func (m *memStore) TrendStats(_ context.Context, ids []string, _ time.Duration) (map[string]models.TrendStat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trendCalls++
	out := map[string]models.TrendStat{}
	for _, id := range ids {
		if t, ok := m.trends[id]; ok {
			out[id] = t
		}
	}
	return out, nil
}

func (m *memStore) GetConnections(_ context.Context, userID string) ([]string, error) {
	return m.connections[userID], nil
}

func (m *memStore) AddConnection(_ context.Context, userID, friendID string) (*models.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connections[userID] = append(m.connections[userID], friendID)
	m.connections[friendID] = append(m.connections[friendID], userID)
	return &models.Connection{UserID: userID, FriendID: friendID}, nil
}

func (m *memStore) ReplaceSnapshots(_ context.Context, userID string, matches []models.MatchResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[userID] = matches
	return nil
}

func (m *memStore) GetSnapshots(_ context.Context, userID string, limit int) ([]models.MatchSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.MatchSnapshot
	for _, r := range m.snapshots[userID] {
		if len(out) == limit {
			break
		}
		out = append(out, models.MatchSnapshot{UserID: userID, EntityID: r.EntityID, Score: r.Score, Trending: r.Trending})
	}
	return out, nil
}

var fixedNow = time.Date(2026, 5, 1, 23, 0, 0, 0, time.UTC)

func newTestService(store *memStore) *MatchingService {
	cfg := config.MatchingConfig{
		FetchTimeout:   time.Second,
		CandidateLimit: 50,
		TrendWindow:    24 * time.Hour,
	}
	stores := Stores{
		Preferences:  store,
		Catalog:      store,
		Interactions: store,
		Social:       store,
		Snapshots:    store,
	}
	svc := NewMatchingService(stores, nil, matching.NewEngine(matching.DefaultEngineConfig(), nil), cfg)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func venue(id string, genres ...string) *models.Venue {
	return &models.Venue{ID: id, Name: id, Type: "club", Genres: genres, Capacity: 300, Indoor: true}
}

func matchIDs(resp *models.MatchResponse) []string {
	out := make([]string, len(resp.Matches))
	for i, m := range resp.Matches {
		out[i] = m.EntityID
	}
	return out
}

func TestGetMatches_ColdStartUser(t *testing.T) {
	store := newMemStore(venue("house-club", "house"), venue("jazz-bar", "jazz"))
	svc := newTestService(store)

	resp, err := svc.GetMatches(context.Background(), "new-user", models.RequestContext{}, models.CandidatePool{})
	require.NoError(t, err)
	svc.Close()

	assert.Len(t, resp.Matches, 2)
	assert.NotEmpty(t, resp.RequestID)
	assert.Equal(t, "new-user", resp.SubjectID)
	assert.Equal(t, fixedNow.Format(time.RFC3339), resp.GeneratedAt)
	for _, m := range resp.Matches {
		assert.GreaterOrEqual(t, m.Score, 0.0)
		assert.LessOrEqual(t, m.Score, 1.0)
	}
	assert.Len(t, store.snapshots["new-user"], 2)
}

func TestGetMatches_PreferencesDriveRanking(t *testing.T) {
	store := newMemStore(venue("jazz-bar", "jazz"), venue("house-club", "house"))
	store.prefs["u1"] = models.UserPreferences{UserID: "u1", Music: models.MusicPreferences{Genres: []string{"house"}}}
	svc := newTestService(store)

	resp, err := svc.GetMatches(context.Background(), "u1", models.RequestContext{}, models.CandidatePool{})
	require.NoError(t, err)
	svc.Close()

	assert.Equal(t, []string{"house-club", "jazz-bar"}, matchIDs(resp))
}

func TestGetMatches_ExplicitPoolDropsUnknownAndDuplicates(t *testing.T) {
	store := newMemStore(venue("a", "house"), venue("b", "techno"))
	svc := newTestService(store)

	pool := models.CandidatePool{IDs: []string{"a", "ghost", "a"}}
	resp, err := svc.GetMatches(context.Background(), "u1", models.RequestContext{}, pool)
	require.NoError(t, err)
	svc.Close()

	assert.Equal(t, []string{"a"}, matchIDs(resp))
}

func TestGetMatches_LimitTruncates(t *testing.T) {
	store := newMemStore(venue("a", "house"), venue("b", "techno"), venue("c", "jazz"))
	svc := newTestService(store)

	resp, err := svc.GetMatches(context.Background(), "u1", models.RequestContext{}, models.CandidatePool{Limit: 1})
	require.NoError(t, err)
	svc.Close()

	assert.Len(t, resp.Matches, 1)
}

func TestGetMatches_InvalidInput(t *testing.T) {
	store := newMemStore(venue("a", "house"))
	svc := newTestService(store)
	ctx := context.Background()

	cases := map[string]struct {
		userID string
		rc     models.RequestContext
		pool   models.CandidatePool
	}{
		"malformed user id":   {userID: "bad id!", pool: models.CandidatePool{}},
		"malformed candidate": {userID: "u1", pool: models.CandidatePool{IDs: []string{"a", "../etc"}}},
		"empty kind pool":     {userID: "u1", pool: models.CandidatePool{Kind: models.KindDJ}},
		"unknown kind":        {userID: "u1", pool: models.CandidatePool{Kind: "bar"}},
		"unknown ids only":    {userID: "u1", pool: models.CandidatePool{IDs: []string{"ghost"}}},
		"negative group":      {userID: "u1", rc: models.RequestContext{GroupSize: -1}},
		"unknown weather":     {userID: "u1", rc: models.RequestContext{Weather: "hail"}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.GetMatches(ctx, tc.userID, tc.rc, tc.pool)
			assert.ErrorIs(t, err, matching.ErrInvalidInput)
		})
	}
}

func TestGetMatches_UpstreamFailure(t *testing.T) {
	store := newMemStore(venue("a", "house"))
	store.catalogErr = errors.New("connection refused")
	svc := newTestService(store)

	_, err := svc.GetMatches(context.Background(), "u1", models.RequestContext{}, models.CandidatePool{})
	require.Error(t, err)
	assert.ErrorIs(t, err, matching.ErrUpstreamFetch)

	var upstream *matching.UpstreamFetchError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, "catalog", upstream.Source)
}

func TestGetMatches_CancelledContext(t *testing.T) {
	store := newMemStore(venue("a", "house"), venue("b", "techno"))
	svc := newTestService(store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp, err := svc.GetMatches(ctx, "u1", models.RequestContext{}, models.CandidatePool{})
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, matching.ErrUpstreamFetch)
}

func TestGetMatches_TrendingFlag(t *testing.T) {
	store := newMemStore(venue("a", "house"), venue("b", "techno"))
	store.trends["a"] = models.TrendStat{Recent: 30, Baseline: 10}
	svc := newTestService(store)

	resp, err := svc.GetMatches(context.Background(), "u1", models.RequestContext{}, models.CandidatePool{})
	require.NoError(t, err)
	svc.Close()

	trending := map[string]bool{}
	for _, m := range resp.Matches {
		trending[m.EntityID] = m.Trending
	}
	assert.True(t, trending["a"])
	assert.False(t, trending["b"])
	assert.Equal(t, 1, store.trendCalls)
}

func TestGetEntityMatches(t *testing.T) {
	store := newMemStore(
		venue("anchor", "house", "techno"),
		venue("twin", "house", "techno"),
		venue("other", "jazz"),
	)
	svc := newTestService(store)

	resp, err := svc.GetEntityMatches(context.Background(), "anchor", models.RequestContext{}, models.CandidatePool{})
	require.NoError(t, err)

	ids := matchIDs(resp)
	assert.NotContains(t, ids, "anchor")
	require.NotEmpty(t, ids)
	assert.Equal(t, "twin", ids[0])
}

func TestGetEntityMatches_MissingAnchor(t *testing.T) {
	svc := newTestService(newMemStore(venue("a", "house")))

	_, err := svc.GetEntityMatches(context.Background(), "ghost", models.RequestContext{}, models.CandidatePool{})
	assert.ErrorIs(t, err, matching.ErrMissingData)
}

func TestUpdatePreferences_MergesSections(t *testing.T) {
	store := newMemStore()
	store.prefs["u1"] = models.UserPreferences{
		UserID: "u1",
		Music:  models.MusicPreferences{Genres: []string{"house"}},
	}
	svc := newTestService(store)
	ctx := context.Background()

	update := models.PreferenceUpdate{Venue: &models.VenuePreferences{Types: []string{"club"}, MaxPrice: 3}}
	got, err := svc.UpdatePreferences(ctx, "u1", update)
	require.NoError(t, err)
	assert.Equal(t, []string{"house"}, got.Music.Genres)
	assert.Equal(t, []string{"club"}, got.Venue.Types)

	stored, err := svc.GetPreferences(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, stored.Venue.MaxPrice)
}

func TestUpdatePreferences_NewUserStartsFromDefaults(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	update := models.PreferenceUpdate{Music: &models.MusicPreferences{Genres: []string{"disco"}}}
	got, err := svc.UpdatePreferences(context.Background(), "fresh", update)
	require.NoError(t, err)
	assert.Equal(t, "fresh", got.UserID)
	assert.Equal(t, []string{"disco"}, got.Music.Genres)
}

func TestUpdatePreferences_Rejects(t *testing.T) {
	svc := newTestService(newMemStore())
	ctx := context.Background()

	_, err := svc.UpdatePreferences(ctx, "u1", models.PreferenceUpdate{})
	assert.ErrorIs(t, err, matching.ErrInvalidInput)

	_, err = svc.UpdatePreferences(ctx, "u1", models.PreferenceUpdate{
		Music: &models.MusicPreferences{TempoMin: 140, TempoMax: 120},
	})
	assert.ErrorIs(t, err, matching.ErrInvalidInput)

	_, err = svc.UpdatePreferences(ctx, "no/slash", models.PreferenceUpdate{Food: &models.FoodPreferences{}})
	assert.ErrorIs(t, err, matching.ErrInvalidInput)
}

func TestGetPreferences_DefaultsForUnknownUser(t *testing.T) {
	svc := newTestService(newMemStore())

	got, err := svc.GetPreferences(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultPreferences("nobody"), *got)
}

func TestRecordInteraction(t *testing.T) {
	store := newMemStore(venue("a", "house"))
	svc := newTestService(store)
	ctx := context.Background()

	inter, err := svc.RecordInteraction(ctx, "u1", models.CreateInteractionRequest{EntityID: "a", InteractionType: "like"})
	require.NoError(t, err)
	assert.Equal(t, 3.0, inter.Weight)

	_, err = svc.RecordInteraction(ctx, "u1", models.CreateInteractionRequest{EntityID: "a", InteractionType: "poke"})
	assert.ErrorIs(t, err, matching.ErrInvalidInput)

	_, err = svc.RecordInteraction(ctx, "u1", models.CreateInteractionRequest{EntityID: "ghost", InteractionType: "view"})
	assert.ErrorIs(t, err, matching.ErrMissingData)
}

func TestAddConnection(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	ctx := context.Background()

	_, err := svc.AddConnection(ctx, "u1", models.CreateConnectionRequest{FriendID: "u1"})
	assert.ErrorIs(t, err, matching.ErrInvalidInput)

	conn, err := svc.AddConnection(ctx, "u1", models.CreateConnectionRequest{FriendID: "u2"})
	require.NoError(t, err)
	assert.Equal(t, "u2", conn.FriendID)
	assert.Equal(t, []string{"u1"}, store.connections["u2"])
}

func TestMatchHistory(t *testing.T) {
	store := newMemStore(venue("a", "house"), venue("b", "techno"))
	svc := newTestService(store)
	ctx := context.Background()

	_, err := svc.GetMatches(ctx, "u1", models.RequestContext{}, models.CandidatePool{})
	require.NoError(t, err)
	svc.Close()

	history, err := svc.MatchHistory(ctx, "u1", 1)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestUpsertAndListEntities(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	ctx := context.Background()

	rec, err := models.NewEntityRecord(&models.DJ{ID: "dj-1", Name: "Nova", Genres: []string{"techno"}})
	require.NoError(t, err)
	e, err := svc.UpsertEntity(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, models.KindDJ, e.EntityKind())

	_, err = svc.UpsertEntity(ctx, models.EntityRecord{Kind: "bar", Payload: []byte(`{"id":"x"}`)})
	assert.ErrorIs(t, err, matching.ErrInvalidInput)

	list, err := svc.ListEntities(ctx, models.KindDJ, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "dj-1", list[0].EntityID())

	_, err = svc.ListEntities(ctx, "bar", 0)
	assert.ErrorIs(t, err, matching.ErrInvalidInput)
}

func TestGetMatches_BreakerOpensOnRepeatedFailures(t *testing.T) {
	store := newMemStore(venue("a", "house"))
	store.catalogErr = errors.New("connection refused")
	svc := newTestService(store)
	ctx := context.Background()

	for range 10 {
		_, err := svc.GetMatches(ctx, "u1", models.RequestContext{}, models.CandidatePool{})
		require.ErrorIs(t, err, matching.ErrUpstreamFetch)
	}

	_, err := svc.GetMatches(ctx, "u1", models.RequestContext{}, models.CandidatePool{})
	assert.ErrorIs(t, err, matching.ErrUpstreamFetch)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}
