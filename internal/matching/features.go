package matching

import (
	"fmt"
	"strings"

	"nightlife-matching-service/internal/models"
)

// Vocabularies of the categorical feature blocks. Order fixes the vector layout.
var (
	genreVocab = []string{
		"house", "techno", "deep house", "tech house", "trance", "drum and bass",
		"dubstep", "hip hop", "r&b", "pop", "rock", "jazz", "latin", "reggaeton",
		"afrobeats", "disco", "funk", "soul", "indie", "edm",
	}
	atmosphereVocab = []string{
		"energetic", "chill", "romantic", "upscale", "casual", "underground",
		"intimate", "lively", "relaxed", "party", "sophisticated", "quirky",
		"outdoor", "rooftop", "dark", "dancey",
	}
	venueTypeVocab = []string{
		"club", "bar", "lounge", "rooftop", "live music", "restaurant", "pub", "warehouse",
	}
	sizeVocab = []string{"small", "medium", "large"}
)

const (
	maxPriceLevel = 4
	minTempo      = 60
	maxTempo      = 200
)

var (
	genreOffset      = 0
	atmosphereOffset = genreOffset + len(genreVocab)
	venueTypeOffset  = atmosphereOffset + len(atmosphereVocab)
	priceOffset      = venueTypeOffset + len(venueTypeVocab)
	tempoOffset      = priceOffset + 1
	sizeOffset       = tempoOffset + 1

	// FeatureDim is the length of every feature vector.
	FeatureDim = sizeOffset + len(sizeVocab)

	genreIndex      = vocabIndex(genreVocab)
	atmosphereIndex = vocabIndex(atmosphereVocab)
	venueTypeIndex  = vocabIndex(venueTypeVocab)
	sizeIndex       = vocabIndex(sizeVocab)
)

// FeatureVector is a fixed-length numeric encoding of a user or an entity.
type FeatureVector []float64

func vocabIndex(vocab []string) map[string]int {
	idx := make(map[string]int, len(vocab))
	for i, v := range vocab {
		idx[v] = i
	}
	return idx
}

func normalizeTag(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	tag = strings.ReplaceAll(tag, "_", " ")
	tag = strings.ReplaceAll(tag, "-", " ")
	return tag
}

func setHot(vec FeatureVector, offset int, index map[string]int, tags []string) {
	for _, t := range tags {
		if i, ok := index[normalizeTag(t)]; ok {
			vec[offset+i] = 1
		}
	}
}

func priceFeature(level int) float64 {
	return clamp01(float64(level) / maxPriceLevel)
}

func tempoFeature(lo, hi int) float64 {
	if lo <= 0 && hi <= 0 {
		return 0
	}
	if hi <= 0 {
		hi = lo
	}
	if lo <= 0 {
		lo = hi
	}
	mid := float64(lo+hi) / 2
	return clamp01((mid - minTempo) / (maxTempo - minTempo))
}

// sizeClass derives small/medium/large from a capacity when no explicit
// size is given.
func sizeClass(explicit string, capacity int) string {
	if s := normalizeTag(explicit); s != "" {
		return s
	}
	switch {
	case capacity <= 0:
		return ""
	case capacity < 150:
		return "small"
	case capacity < 500:
		return "medium"
	default:
		return "large"
	}
}

// ExtractUserFeatures encodes a preference profile.
func ExtractUserFeatures(prefs models.UserPreferences) FeatureVector {
	vec := make(FeatureVector, FeatureDim)
	setHot(vec, genreOffset, genreIndex, prefs.Music.Genres)
	setHot(vec, atmosphereOffset, atmosphereIndex, prefs.Venue.Atmosphere)
	setHot(vec, atmosphereOffset, atmosphereIndex, prefs.Music.Vibes)
	setHot(vec, venueTypeOffset, venueTypeIndex, prefs.Venue.Types)
	vec[priceOffset] = priceFeature(prefs.Venue.MaxPrice)
	vec[tempoOffset] = tempoFeature(prefs.Music.TempoMin, prefs.Music.TempoMax)
	if s := sizeClass(prefs.Venue.Size, 0); s != "" {
		setHot(vec, sizeOffset, sizeIndex, []string{s})
	}
	return vec
}

// ExtractEntityFeatures encodes an entity. It fails only for a nil or
// unknown variant.
func ExtractEntityFeatures(e models.Entity) (FeatureVector, error) {
	vec := make(FeatureVector, FeatureDim)
	switch v := e.(type) {
	case *models.Venue:
		if v == nil {
			return nil, fmt.Errorf("%w: nil venue", ErrInvalidInput)
		}
		setHot(vec, genreOffset, genreIndex, v.Genres)
		setHot(vec, atmosphereOffset, atmosphereIndex, v.Atmosphere)
		setHot(vec, venueTypeOffset, venueTypeIndex, []string{v.Type})
		vec[priceOffset] = priceFeature(v.PriceLevel)
		if s := sizeClass(v.Size, v.Capacity); s != "" {
			setHot(vec, sizeOffset, sizeIndex, []string{s})
		}
	case *models.DJ:
		if v == nil {
			return nil, fmt.Errorf("%w: nil dj", ErrInvalidInput)
		}
		setHot(vec, genreOffset, genreIndex, v.Genres)
		setHot(vec, atmosphereOffset, atmosphereIndex, v.Vibes)
		vec[tempoOffset] = tempoFeature(v.TempoMin, v.TempoMax)
	case *models.Event:
		if v == nil {
			return nil, fmt.Errorf("%w: nil event", ErrInvalidInput)
		}
		setHot(vec, genreOffset, genreIndex, v.Genres)
		setHot(vec, atmosphereOffset, atmosphereIndex, v.Atmosphere)
		setHot(vec, atmosphereOffset, atmosphereIndex, v.Theme)
		vec[priceOffset] = priceFeature(v.PriceLevel)
		if s := sizeClass("", v.Capacity); s != "" {
			setHot(vec, sizeOffset, sizeIndex, []string{s})
		}
	default:
		return nil, fmt.Errorf("%w: unsupported entity %T", ErrInvalidInput, e)
	}
	return vec, nil
}

// TagSet is a set of normalised tags.
type TagSet map[string]struct{}

func (s TagSet) add(tags ...string) {
	for _, t := range tags {
		if n := normalizeTag(t); n != "" {
			s[n] = struct{}{}
		}
	}
}

// UserTags collects every taste tag of a profile.
func UserTags(prefs models.UserPreferences) TagSet {
	s := TagSet{}
	s.add(prefs.Music.Genres...)
	s.add(prefs.Music.Artists...)
	s.add(prefs.Music.Vibes...)
	s.add(prefs.Venue.Types...)
	s.add(prefs.Venue.Atmosphere...)
	s.add(prefs.Food.Cuisines...)
	s.add(prefs.Social.Interests...)
	return s
}

// EntityTags collects the descriptive tags of an entity. Unknown variants
// yield an empty set.
func EntityTags(e models.Entity) TagSet {
	s := TagSet{}
	switch v := e.(type) {
	case *models.Venue:
		if v != nil {
			s.add(v.Type)
			s.add(v.Genres...)
			s.add(v.Atmosphere...)
			s.add(v.Cuisines...)
		}
	case *models.DJ:
		if v != nil {
			s.add(v.Name)
			s.add(v.Genres...)
			s.add(v.Vibes...)
		}
	case *models.Event:
		if v != nil {
			s.add(v.Genres...)
			s.add(v.Theme...)
			s.add(v.Atmosphere...)
		}
	}
	return s
}
