package matching

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nightlife-matching-service/internal/models"
)

func TestExtractUserFeatures_Deterministic(t *testing.T) {
	prefs := models.UserPreferences{
		UserID: "u1",
		Music:  models.MusicPreferences{Genres: []string{"House", "Techno"}, Vibes: []string{"energetic"}, TempoMin: 120, TempoMax: 130},
		Venue:  models.VenuePreferences{Types: []string{"club"}, Atmosphere: []string{"underground"}, MaxPrice: 3, Size: "large"},
	}

	a := ExtractUserFeatures(prefs)
	b := ExtractUserFeatures(prefs)

	require.Len(t, a, FeatureDim)
	assert.Equal(t, a, b)
	assert.Equal(t, 1.0, a[genreOffset+genreIndex["house"]])
	assert.Equal(t, 1.0, a[genreOffset+genreIndex["techno"]])
	assert.Equal(t, 1.0, a[atmosphereOffset+atmosphereIndex["energetic"]])
	assert.Equal(t, 1.0, a[venueTypeOffset+venueTypeIndex["club"]])
	assert.Equal(t, 0.75, a[priceOffset])
	assert.Equal(t, 1.0, a[sizeOffset+sizeIndex["large"]])
	assert.InDelta(t, (125.0-minTempo)/(maxTempo-minTempo), a[tempoOffset], 1e-12)
}

func TestExtractUserFeatures_EmptyProfileIsZero(t *testing.T) {
	vec := ExtractUserFeatures(models.DefaultPreferences("cold"))

	require.Len(t, vec, FeatureDim)
	for i, x := range vec {
		assert.Zerof(t, x, "component %d", i)
	}
}

func TestExtractEntityFeatures_Variants(t *testing.T) {
	tests := []struct {
		name   string
		entity models.Entity
		hot    []int
	}{
		{
			name:   "venue",
			entity: &models.Venue{ID: "v1", Type: "Club", Genres: []string{"house"}, Capacity: 600},
			hot:    []int{genreOffset + genreIndex["house"], venueTypeOffset + venueTypeIndex["club"], sizeOffset + sizeIndex["large"]},
		},
		{
			name:   "dj",
			entity: &models.DJ{ID: "d1", Genres: []string{"Drum-and-Bass"}, Vibes: []string{"dark"}},
			hot:    []int{genreOffset + genreIndex["drum and bass"], atmosphereOffset + atmosphereIndex["dark"]},
		},
		{
			name:   "event",
			entity: &models.Event{ID: "e1", Theme: []string{"rooftop"}, Capacity: 100},
			hot:    []int{atmosphereOffset + atmosphereIndex["rooftop"], sizeOffset + sizeIndex["small"]},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vec, err := ExtractEntityFeatures(tt.entity)
			require.NoError(t, err)
			require.Len(t, vec, FeatureDim)
			for _, i := range tt.hot {
				assert.Equalf(t, 1.0, vec[i], "component %d", i)
			}
		})
	}
}

func TestExtractEntityFeatures_MissingOptionalFields(t *testing.T) {
	vec, err := ExtractEntityFeatures(&models.Event{ID: "bare"})
	require.NoError(t, err)
	for i, x := range vec {
		assert.Zerof(t, x, "component %d", i)
	}
}

func TestExtractEntityFeatures_RejectsNil(t *testing.T) {
	_, err := ExtractEntityFeatures(nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	var v *models.Venue
	_, err = ExtractEntityFeatures(v)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestEntityTags_Normalised(t *testing.T) {
	tags := EntityTags(&models.DJ{ID: "d1", Name: "Solar Flare", Genres: []string{" Tech_House "}})

	assert.Contains(t, tags, "solar flare")
	assert.Contains(t, tags, "tech house")
}

func TestActiveHours_Event(t *testing.T) {
	start := time.Date(2026, 5, 1, 22, 0, 0, 0, time.UTC)
	ev := &models.Event{ID: "e1", StartsAt: start, EndsAt: start.Add(5*time.Hour + 30*time.Minute)}

	mask := ActiveHours(ev)

	for _, h := range []int{22, 23, 0, 1, 2, 3} {
		assert.Truef(t, mask.Has(h), "hour %d", h)
	}
	assert.False(t, mask.Has(4))
	assert.Equal(t, 6, mask.Count())
}
