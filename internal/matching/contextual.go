package matching

import (
	"strings"

	"nightlife-matching-service/internal/models"
)

// Component weights of the contextual score. They sum to 1.
const (
	ctxTimeWeight      = 0.20
	ctxProximityWeight = 0.30
	ctxWeatherWeight   = 0.20
	ctxMoodWeight      = 0.15
	ctxGroupWeight     = 0.15
)

// moodTags maps a mood to the entity tags that suit it.
var moodTags = map[string][]string{
	"energetic":   {"energetic", "party", "lively", "dancey", "techno", "house", "edm", "drum and bass"},
	"chill":       {"chill", "relaxed", "lounge", "jazz", "soul", "intimate"},
	"romantic":    {"romantic", "intimate", "upscale", "sophisticated", "rooftop", "jazz"},
	"social":      {"lively", "casual", "pub", "bar", "party"},
	"adventurous": {"underground", "quirky", "warehouse", "dark", "techno"},
}

// EntityContext is the part of an entity the contextual scorer looks at.
type EntityContext struct {
	Hours     HourMask
	Location  *models.GeoPoint
	Indoor    *bool
	Capacity  int
	Occupancy int
	Tags      TagSet
}

// ContextOf extracts the contextual features of an entity.
func ContextOf(e models.Entity) EntityContext {
	ec := EntityContext{Hours: ActiveHours(e), Tags: EntityTags(e)}
	switch v := e.(type) {
	case *models.Venue:
		if v != nil {
			indoor := v.Indoor
			ec.Location, ec.Indoor = v.Location, &indoor
			ec.Capacity, ec.Occupancy = v.Capacity, v.Occupancy
		}
	case *models.DJ:
		if v != nil {
			ec.Location = v.Location
		}
	case *models.Event:
		if v != nil {
			indoor := v.Indoor
			ec.Location, ec.Indoor = v.Location, &indoor
			ec.Capacity, ec.Occupancy = v.Capacity, v.Attendees
		}
	}
	return ec
}

// GroupRange is a subject's preferred group size range. Zero bounds are open.
type GroupRange struct {
	Min, Max int
}

func (g GroupRange) contains(n int) bool {
	if g.Min > 0 && n < g.Min {
		return false
	}
	if g.Max > 0 && n > g.Max {
		return false
	}
	return true
}

// ContextualScore blends the request context with the entity's contextual
// features. Optional context fields that are absent contribute 0.
func ContextualScore(rc models.RequestContext, ec EntityContext, group GroupRange) float64 {
	var score float64
	if !rc.Now.IsZero() && ec.Hours.Has(rc.Now.Hour()) {
		score += ctxTimeWeight
	}
	score += ctxProximityWeight * proximityFit(rc.Location, ec.Location)
	score += ctxWeatherWeight * weatherFit(rc.Weather, ec.Indoor)
	score += ctxMoodWeight * moodFit(rc.Mood, ec.Tags)
	score += ctxGroupWeight * groupFit(rc.GroupSize, ec, group)
	return clamp01(score)
}

// proximityFit decays with distance: 1 at 0 km, 0.5 at 1 km.
func proximityFit(from, to *models.GeoPoint) float64 {
	if from == nil || to == nil {
		return 0
	}
	km := haversineKm(from.Lat, from.Lng, to.Lat, to.Lng)
	return clamp01(1 / (1 + km))
}

func weatherFit(weather string, indoor *bool) float64 {
	if indoor == nil {
		return 0
	}
	switch strings.ToLower(weather) {
	case models.WeatherRain, models.WeatherSnow, models.WeatherStorm:
		if *indoor {
			return 1
		}
		return 0.2
	case models.WeatherClear:
		if *indoor {
			return 0.8
		}
		return 1
	case models.WeatherCloudy:
		return 0.9
	}
	return 0
}

func moodFit(mood string, tags TagSet) float64 {
	wanted, ok := moodTags[strings.ToLower(strings.TrimSpace(mood))]
	if !ok || len(tags) == 0 {
		return 0
	}
	matches := 0
	for _, t := range wanted {
		if _, ok := tags[t]; ok {
			matches++
		}
	}
	return clamp01(float64(matches) / 2)
}

// groupFit is the share of the group that still fits in the entity, halved
// when the group is outside the subject's preferred range.
func groupFit(size int, ec EntityContext, pref GroupRange) float64 {
	if size <= 0 || ec.Capacity <= 0 {
		return 0
	}
	free := ec.Capacity - ec.Occupancy
	if free <= 0 {
		return 0
	}
	fit := 1.0
	if size > free {
		fit = float64(free) / float64(size)
	}
	if !pref.contains(size) {
		fit *= 0.5
	}
	return clamp01(fit)
}
