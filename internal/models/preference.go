package models

import "time"

// TimeWindow is a daily window of hours [StartHour, EndHour).
// A window whose end is not after its start wraps past midnight.
type TimeWindow struct {
	StartHour int `json:"start_hour" validate:"min=0,max=24"`
	EndHour   int `json:"end_hour" validate:"min=0,max=24"`
}

// Hours returns the hours of the day covered by the window.
func (w TimeWindow) Hours() []int {
	start, end := w.StartHour%24, w.EndHour%24
	if start < 0 || end < 0 {
		return nil
	}
	if start == end {
		if w.StartHour == w.EndHour {
			return nil
		}
		// 0→24 covers the full day.
		hours := make([]int, 24)
		for i := range hours {
			hours[i] = i
		}
		return hours
	}

	var hours []int
	for h := start; h != end; h = (h + 1) % 24 {
		hours = append(hours, h)
	}
	return hours
}

// MusicPreferences describes what a user likes to hear.
type MusicPreferences struct {
	Genres   []string `json:"genres"`
	Artists  []string `json:"artists"`
	Vibes    []string `json:"vibes"`
	TempoMin int      `json:"tempo_min" validate:"min=0,max=300"`
	TempoMax int      `json:"tempo_max" validate:"min=0,max=300"`
}

// VenuePreferences describes the places a user prefers.
type VenuePreferences struct {
	Types      []string `json:"types"`
	Size       string   `json:"size" validate:"omitempty,oneof=small medium large"`
	Atmosphere []string `json:"atmosphere"`
	MaxPrice   int      `json:"max_price" validate:"min=0,max=4"`
}

// FoodPreferences describes a user's food taste.
type FoodPreferences struct {
	Cuisines       []string `json:"cuisines"`
	Dietary        []string `json:"dietary"`
	PriceMin       int      `json:"price_min" validate:"min=0,max=4"`
	PriceMax       int      `json:"price_max" validate:"min=0,max=4"`
	SpiceTolerance int      `json:"spice_tolerance" validate:"min=0,max=5"`
}

// SocialPreferences describes how a user likes to go out.
type SocialPreferences struct {
	GroupSizeMin     int      `json:"group_size_min" validate:"min=0"`
	GroupSizeMax     int      `json:"group_size_max" validate:"min=0"`
	Interests        []string `json:"interests"`
	ActivityLevel    string   `json:"activity_level"`
	InteractionStyle string   `json:"interaction_style"`
}

// SchedulePreferences describes when a user goes out.
type SchedulePreferences struct {
	Windows      []TimeWindow `json:"windows" validate:"dive"`
	Availability []string     `json:"availability"`
	Frequency    string       `json:"frequency"`
}

// UserPreferences is the stored preference profile of a user.
type UserPreferences struct {
	UserID    string              `json:"user_id"`
	Music     MusicPreferences    `json:"music"`
	Venue     VenuePreferences    `json:"venue"`
	Food      FoodPreferences     `json:"food"`
	Social    SocialPreferences   `json:"social"`
	Schedule  SchedulePreferences `json:"schedule"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// PreferenceUpdate is a partial preference profile. Every non-nil section
// replaces the stored section.
type PreferenceUpdate struct {
	Music    *MusicPreferences    `json:"music,omitempty" validate:"omitempty"`
	Venue    *VenuePreferences    `json:"venue,omitempty" validate:"omitempty"`
	Food     *FoodPreferences     `json:"food,omitempty" validate:"omitempty"`
	Social   *SocialPreferences   `json:"social,omitempty" validate:"omitempty"`
	Schedule *SchedulePreferences `json:"schedule,omitempty" validate:"omitempty"`
}

// Empty reports whether the update carries no section at all.
func (u PreferenceUpdate) Empty() bool {
	return u.Music == nil && u.Venue == nil && u.Food == nil && u.Social == nil && u.Schedule == nil
}

// Merge returns a copy of p with the sections present in u applied.
func (p UserPreferences) Merge(u PreferenceUpdate) UserPreferences {
	if u.Music != nil {
		p.Music = *u.Music
	}
	if u.Venue != nil {
		p.Venue = *u.Venue
	}
	if u.Food != nil {
		p.Food = *u.Food
	}
	if u.Social != nil {
		p.Social = *u.Social
	}
	if u.Schedule != nil {
		p.Schedule = *u.Schedule
	}
	return p
}

// DefaultPreferences is the profile of a user who has not set anything yet.
func DefaultPreferences(userID string) UserPreferences {
	return UserPreferences{UserID: userID}
}
