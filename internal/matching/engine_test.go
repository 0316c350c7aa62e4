package matching

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nightlife-matching-service/internal/models"
)

var saturdayNight = time.Date(2026, 5, 2, 23, 0, 0, 0, time.UTC)

func venue(id string, genres ...string) *models.Venue {
	return &models.Venue{
		ID:          id,
		Name:        "Venue " + id,
		Type:        "club",
		Genres:      genres,
		Atmosphere:  []string{"energetic"},
		Capacity:    300,
		Occupancy:   100,
		Indoor:      true,
		Location:    &models.GeoPoint{Lat: 40.7, Lng: -74.0},
		OpeningTime: models.TimeWindow{StartHour: 22, EndHour: 4},
	}
}

func newTestEngine() *Engine {
	return NewEngine(DefaultEngineConfig(), nil)
}

func TestRankForUser_ColdStart(t *testing.T) {
	in := UserInputs{UserID: "cold-user", Preferences: models.DefaultPreferences("cold-user")}
	candidates := []models.Entity{venue("a", "house"), venue("b", "jazz")}

	got, err := newTestEngine().RankForUser(context.Background(), in, models.RequestContext{Now: saturdayNight}, candidates)

	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, r := range got {
		assert.GreaterOrEqual(t, r.Score, 0.0)
		assert.LessOrEqual(t, r.Score, 1.0)
		assert.Zero(t, r.Signals.Collaborative)
		assert.Zero(t, r.Signals.Social)
	}
}

func TestRankForUser_HouseVenueFirst(t *testing.T) {
	prefs := models.UserPreferences{UserID: "u1", Music: models.MusicPreferences{Genres: []string{"House"}}}
	in := UserInputs{UserID: "u1", Preferences: prefs}
	candidates := []models.Entity{venue("jazz", "Jazz"), venue("house", "House")}

	got, err := newTestEngine().RankForUser(context.Background(), in, models.RequestContext{Now: saturdayNight}, candidates)

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "house", got[0].EntityID)
	assert.Greater(t, got[0].Signals.Content, got[1].Signals.Content)
	assert.Greater(t, got[0].Score, got[1].Score)
}

func TestRankForUser_Deterministic(t *testing.T) {
	in := UserInputs{
		UserID: "u1",
		Preferences: models.UserPreferences{
			Music:    models.MusicPreferences{Genres: []string{"techno"}},
			Schedule: models.SchedulePreferences{Windows: []models.TimeWindow{{StartHour: 21, EndHour: 3}}},
		},
		Interactions: InteractionMatrix{"u1": {"a": 3}, "u2": {"a": 3, "c": 4}},
		Connections:  []string{"u2"},
		Engagement:   Engagement{"c": {"u2"}},
	}
	rc := models.RequestContext{Now: saturdayNight, Mood: "energetic", GroupSize: 2}
	var candidates []models.Entity
	for i := 0; i < 12; i++ {
		candidates = append(candidates, venue(fmt.Sprintf("v%d", i), "techno"))
	}
	candidates = append(candidates, venue("c", "house"))

	e := newTestEngine()
	first, err := e.RankForUser(context.Background(), in, rc, candidates)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := e.RankForUser(context.Background(), in, rc, candidates)
		require.NoError(t, err)
		assert.Equal(t, ids(first), ids(again))
		for j := range first {
			assert.Equal(t, first[j].Score, again[j].Score)
		}
	}
}

func TestRankForUser_TiesKeepInputOrder(t *testing.T) {
	in := UserInputs{UserID: "u1"}
	candidates := []models.Entity{venue("first"), venue("second"), venue("third")}

	got, err := newTestEngine().RankForUser(context.Background(), in, models.RequestContext{Now: saturdayNight}, candidates)

	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, ids(got))
}

func TestRankForUser_InvalidInput(t *testing.T) {
	e := newTestEngine()

	_, err := e.RankForUser(context.Background(), UserInputs{UserID: "bad id!"}, models.RequestContext{}, []models.Entity{venue("a")})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = e.RankForUser(context.Background(), UserInputs{UserID: "u1"}, models.RequestContext{}, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRankForUser_DropsUnscorableCandidates(t *testing.T) {
	var broken *models.Venue
	candidates := []models.Entity{venue("a"), nil, broken, venue("b")}

	got, err := newTestEngine().RankForUser(context.Background(), UserInputs{UserID: "u1"}, models.RequestContext{}, candidates)

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(got))
}

func TestRankForUser_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := newTestEngine().RankForUser(ctx, UserInputs{UserID: "u1"}, models.RequestContext{}, []models.Entity{venue("a"), venue("b")})

	assert.Empty(t, got)
	assert.True(t, errors.Is(err, context.Canceled))
}

// cancellingModel cancels the request the first time it scores.
type cancellingModel struct {
	cancel context.CancelFunc
	calls  atomic.Int32
}

func (m *cancellingModel) Score(_, _ FeatureVector) float64 {
	m.calls.Add(1)
	m.cancel()
	return 0.5
}

func TestRankForUser_CancelledMidBatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	model := &cancellingModel{cancel: cancel}
	cfg := DefaultEngineConfig()
	cfg.Concurrency = 2
	cfg.ContentModel = model

	candidates := make([]models.Entity, 20)
	for i := range candidates {
		candidates[i] = venue(fmt.Sprintf("v%d", i), "house")
	}

	got, err := NewEngine(cfg, nil).RankForUser(ctx, UserInputs{UserID: "u1"}, models.RequestContext{}, candidates)

	assert.Nil(t, got)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, int(model.calls.Load()), len(candidates), "scoring stops once cancelled")
}

func TestRankForUser_TrendingFlag(t *testing.T) {
	in := UserInputs{UserID: "u1", Trends: TrendTable{"b": {Recent: 40, Baseline: 10}}}

	got, err := newTestEngine().RankForUser(context.Background(), in, models.RequestContext{}, []models.Entity{venue("a"), venue("b")})

	require.NoError(t, err)
	byID := map[string]models.MatchResult{}
	for _, r := range got {
		byID[r.EntityID] = r
	}
	assert.False(t, byID["a"].Trending)
	assert.True(t, byID["b"].Trending)
}

func TestRankForEntity(t *testing.T) {
	anchor := venue("anchor", "house", "techno")
	in := EntityInputs{
		Anchor:       anchor,
		Interactions: InteractionMatrix{"u1": {"anchor": 1, "twin": 1}, "u2": {"anchor": 1, "twin": 1}},
		Engagement:   Engagement{"anchor": {"u1", "u2"}, "twin": {"u1", "u2"}},
	}
	candidates := []models.Entity{anchor, venue("other", "jazz"), venue("twin", "house", "techno")}

	got, err := newTestEngine().RankForEntity(context.Background(), in, models.RequestContext{Now: saturdayNight}, candidates)

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "twin", got[0].EntityID)
	assert.InDelta(t, 1.0, got[0].Signals.Collaborative, 1e-12)
	assert.InDelta(t, 1.0, got[0].Signals.Social, 1e-12)
	assert.NotContains(t, ids(got), "anchor")
}

func TestRankForEntity_DropsUnscorableCandidates(t *testing.T) {
	var broken *models.Venue
	candidates := []models.Entity{venue("a"), nil, broken, venue("b")}

	got, err := newTestEngine().RankForEntity(context.Background(), EntityInputs{Anchor: venue("anchor")}, models.RequestContext{}, candidates)

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(got))
}

func TestRankForEntity_OnlyAnchorInPool(t *testing.T) {
	anchor := venue("anchor")

	_, err := newTestEngine().RankForEntity(context.Background(), EntityInputs{Anchor: anchor}, models.RequestContext{}, []models.Entity{anchor})

	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRankForEntity_NilAnchor(t *testing.T) {
	_, err := newTestEngine().RankForEntity(context.Background(), EntityInputs{}, models.RequestContext{}, []models.Entity{venue("a")})

	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestValidID(t *testing.T) {
	assert.True(t, ValidID("user_42-abc"))
	assert.False(t, ValidID(""))
	assert.False(t, ValidID("has space"))
	assert.False(t, ValidID("../etc"))
}
