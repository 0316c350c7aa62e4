package models

import "time"

// UserInteraction records user activity with an entity.
type UserInteraction struct {
	ID              int       `json:"id"`
	UserID          string    `json:"user_id"`
	EntityID        string    `json:"entity_id"`
	InteractionType string    `json:"interaction_type"`
	Weight          float64   `json:"weight"`
	CreatedAt       time.Time `json:"created_at"`
}

// CreateInteractionRequest is the request body for recording an interaction.
type CreateInteractionRequest struct {
	EntityID        string `json:"entity_id" validate:"required,max=64"`
	InteractionType string `json:"interaction_type" validate:"required"`
}

// InteractionWeights maps the valid interaction types to their strength.
// Dislikes are recorded but carry no positive signal.
var InteractionWeights = map[string]float64{
	"view":    1,
	"like":    3,
	"checkin": 4,
	"booking": 5,
	"dislike": 0,
}

// Connection is an edge of the social graph.
type Connection struct {
	UserID    string    `json:"user_id"`
	FriendID  string    `json:"friend_id"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateConnectionRequest is the request body for adding a connection.
type CreateConnectionRequest struct {
	FriendID string `json:"friend_id" validate:"required,max=64"`
}

// TrendStat is the recent and baseline engagement of one entity.
type TrendStat struct {
	Recent   float64 `json:"recent"`
	Baseline float64 `json:"baseline"`
}
