package matching

import (
	"strings"
	"time"

	"nightlife-matching-service/internal/models"
)

// HourMask is a set of hours of the day, bit h for hour h.
type HourMask uint32

const fullDay HourMask = 1<<24 - 1

// MaskOf returns the hours covered by the given windows.
func MaskOf(windows ...models.TimeWindow) HourMask {
	var m HourMask
	for _, w := range windows {
		for _, h := range w.Hours() {
			m |= 1 << uint(h)
		}
	}
	return m
}

// Has reports whether hour h is in the mask.
func (m HourMask) Has(h int) bool {
	return h >= 0 && h < 24 && m&(1<<uint(h)) != 0
}

// Count returns the number of hours in the mask.
func (m HourMask) Count() int {
	n := 0
	for v := m; v != 0; v &= v - 1 {
		n++
	}
	return n
}

// ActiveHours returns the hours an entity is open, playing or running.
func ActiveHours(e models.Entity) HourMask {
	switch v := e.(type) {
	case *models.Venue:
		if v != nil {
			return MaskOf(v.OpeningTime)
		}
	case *models.DJ:
		if v != nil {
			return MaskOf(v.SetTimes...)
		}
	case *models.Event:
		if v != nil {
			return eventHours(v)
		}
	}
	return 0
}

func eventHours(e *models.Event) HourMask {
	if e.StartsAt.IsZero() || !e.EndsAt.After(e.StartsAt) {
		return 0
	}
	if e.EndsAt.Sub(e.StartsAt) >= 24*time.Hour {
		return fullDay
	}
	end := e.EndsAt.Hour()
	if e.EndsAt.Minute() > 0 || e.EndsAt.Second() > 0 {
		end++
	}
	w := models.TimeWindow{StartHour: e.StartsAt.Hour(), EndHour: end % 24}
	if w.StartHour == w.EndHour {
		return fullDay
	}
	return MaskOf(w)
}

// TemporalScore rates the overlap of the subject's preferred hours with the
// entity's active hours at time now: 0.75 for the share of active hours the
// subject prefers, plus 0.25 when now falls in the overlap. A subject that is
// unavailable on now's weekday gets half the score. Disjoint or missing
// windows score 0; a zero now skips the time-of-request terms.
func TemporalScore(subject, entity HourMask, availability []string, now time.Time) float64 {
	overlap := subject & entity
	if overlap == 0 || entity == 0 {
		return 0
	}
	score := 0.75 * float64(overlap.Count()) / float64(entity.Count())
	if now.IsZero() {
		return clamp01(score)
	}
	if overlap.Has(now.Hour()) {
		score += 0.25
	}
	if len(availability) > 0 && !availableOn(availability, now.Weekday()) {
		score *= 0.5
	}
	return clamp01(score)
}

func availableOn(days []string, day time.Weekday) bool {
	name := strings.ToLower(day.String())
	for _, d := range days {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == name || (len(d) == 3 && strings.HasPrefix(name, d)) {
			return true
		}
	}
	return false
}
