package service

import (
	"context"
	"time"

	"nightlife-matching-service/internal/models"
)

// Stores that report a missing record return sql.ErrNoRows.

type PreferenceStore interface {
	GetPreferences(ctx context.Context, userID string) (*models.UserPreferences, error)
	UpsertPreferences(ctx context.Context, pref models.UserPreferences) (*models.UserPreferences, error)
}

type CatalogStore interface {
	GetEntity(ctx context.Context, id string) (models.Entity, error)
	GetEntities(ctx context.Context, ids []string) ([]models.Entity, error)
	ListEntities(ctx context.Context, kind models.EntityKind, limit int) ([]models.Entity, error)
	UpsertEntity(ctx context.Context, e models.Entity) error
}

type InteractionStore interface {
	CreateInteraction(ctx context.Context, userID, entityID, interactionType string, weight float64) (*models.UserInteraction, error)
	InteractionMatrix(ctx context.Context, userID string, entityIDs []string) (map[string]map[string]float64, error)
	Engagement(ctx context.Context, entityIDs []string) (map[string][]string, error)
	TrendStats(ctx context.Context, entityIDs []string, window time.Duration) (map[string]models.TrendStat, error)
}

type SocialStore interface {
	GetConnections(ctx context.Context, userID string) ([]string, error)
	AddConnection(ctx context.Context, userID, friendID string) (*models.Connection, error)
}

type SnapshotStore interface {
	ReplaceSnapshots(ctx context.Context, userID string, matches []models.MatchResult) error
	GetSnapshots(ctx context.Context, userID string, limit int) ([]models.MatchSnapshot, error)
}

// Stores bundles the data collaborators of MatchingService.
type Stores struct {
	Preferences  PreferenceStore
	Catalog      CatalogStore
	Interactions InteractionStore
	Social       SocialStore
	Snapshots    SnapshotStore
}
