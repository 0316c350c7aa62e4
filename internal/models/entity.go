package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// EntityKind tags the variant of an Entity.
type EntityKind string

const (
	KindVenue EntityKind = "venue"
	KindDJ    EntityKind = "dj"
	KindEvent EntityKind = "event"
)

// Valid reports whether k names a known variant.
func (k EntityKind) Valid() bool {
	switch k {
	case KindVenue, KindDJ, KindEvent:
		return true
	}
	return false
}

// GeoPoint is a WGS84 coordinate.
type GeoPoint struct {
	Lat float64 `json:"lat" validate:"min=-90,max=90"`
	Lng float64 `json:"lng" validate:"min=-180,max=180"`
}

// Entity is one of *Venue, *DJ or *Event.
type Entity interface {
	EntityID() string
	EntityKind() EntityKind
	entity()
}

// Venue is a club, bar, lounge or similar place.
type Venue struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Type        string     `json:"type"`
	Size        string     `json:"size,omitempty"`
	Genres      []string   `json:"genres"`
	Atmosphere  []string   `json:"atmosphere"`
	Cuisines    []string   `json:"cuisines,omitempty"`
	PriceLevel  int        `json:"price_level"`
	Capacity    int        `json:"capacity"`
	Occupancy   int        `json:"occupancy"`
	Rating      float64    `json:"rating"`
	Popularity  float64    `json:"popularity"`
	Location    *GeoPoint  `json:"location,omitempty"`
	Indoor      bool       `json:"indoor"`
	OpeningTime TimeWindow `json:"opening_time"`
}

func (v *Venue) EntityID() string {
	if v == nil {
		return ""
	}
	return v.ID
}

func (v *Venue) EntityKind() EntityKind { return KindVenue }
func (*Venue) entity()                  {}

// DJ is a performing artist.
type DJ struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Genres     []string     `json:"genres"`
	Vibes      []string     `json:"vibes"`
	TempoMin   int          `json:"tempo_min"`
	TempoMax   int          `json:"tempo_max"`
	Rating     float64      `json:"rating"`
	Followers  int          `json:"followers"`
	Popularity float64      `json:"popularity"`
	Location   *GeoPoint    `json:"location,omitempty"`
	SetTimes   []TimeWindow `json:"set_times"`
}

func (d *DJ) EntityID() string {
	if d == nil {
		return ""
	}
	return d.ID
}

func (d *DJ) EntityKind() EntityKind { return KindDJ }
func (*DJ) entity()                  {}

// Event is a scheduled happening, usually at a venue.
type Event struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	VenueID    string    `json:"venue_id,omitempty"`
	Theme      []string  `json:"theme"`
	Genres     []string  `json:"genres"`
	Atmosphere []string  `json:"atmosphere"`
	PriceLevel int       `json:"price_level"`
	Capacity   int       `json:"capacity"`
	Attendees  int       `json:"attendees"`
	Rating     float64   `json:"rating"`
	Popularity float64   `json:"popularity"`
	Location   *GeoPoint `json:"location,omitempty"`
	Indoor     bool      `json:"indoor"`
	StartsAt   time.Time `json:"starts_at"`
	EndsAt     time.Time `json:"ends_at"`
}

func (e *Event) EntityID() string {
	if e == nil {
		return ""
	}
	return e.ID
}

func (e *Event) EntityKind() EntityKind { return KindEvent }
func (*Event) entity()                  {}

// EntityRecord is the wire and storage envelope of an Entity.
type EntityRecord struct {
	Kind    EntityKind      `json:"kind" validate:"required,oneof=venue dj event"`
	Payload json.RawMessage `json:"payload" validate:"required"`
}

// NewEntityRecord wraps an entity for storage or transport.
func NewEntityRecord(e Entity) (EntityRecord, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return EntityRecord{}, fmt.Errorf("marshal %s: %w", e.EntityKind(), err)
	}
	return EntityRecord{Kind: e.EntityKind(), Payload: payload}, nil
}

// Decode unpacks the payload into the variant named by Kind.
func (r EntityRecord) Decode() (Entity, error) {
	var e Entity
	switch r.Kind {
	case KindVenue:
		e = &Venue{}
	case KindDJ:
		e = &DJ{}
	case KindEvent:
		e = &Event{}
	default:
		return nil, fmt.Errorf("unknown entity kind %q", r.Kind)
	}
	if err := json.Unmarshal(r.Payload, e); err != nil {
		return nil, fmt.Errorf("decode %s: %w", r.Kind, err)
	}
	if e.EntityID() == "" {
		return nil, fmt.Errorf("decode %s: missing id", r.Kind)
	}
	return e, nil
}

// EntityName returns the display name of any variant.
func EntityName(e Entity) string {
	switch v := e.(type) {
	case *Venue:
		return v.Name
	case *DJ:
		return v.Name
	case *Event:
		return v.Name
	}
	return ""
}
