package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"nightlife-matching-service/internal/models"
)

type PreferenceRepository struct {
	db *sql.DB
}

func NewPreferenceRepository(db *sql.DB) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

// GetPreferences returns the stored profile of a user, or sql.ErrNoRows.
func (r *PreferenceRepository) GetPreferences(ctx context.Context, userID string) (*models.UserPreferences, error) {
	var (
		raw  []byte
		pref models.UserPreferences
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT profile, updated_at FROM user_preferences WHERE user_id = $1
	`, userID).Scan(&raw, &pref.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &pref); err != nil {
		return nil, fmt.Errorf("decode preferences: %w", err)
	}
	pref.UserID = userID
	return &pref, nil
}

// UpsertPreferences creates or replaces a user's profile.
func (r *PreferenceRepository) UpsertPreferences(ctx context.Context, pref models.UserPreferences) (*models.UserPreferences, error) {
	raw, err := json.Marshal(pref)
	if err != nil {
		return nil, fmt.Errorf("encode preferences: %w", err)
	}

	err = r.db.QueryRowContext(ctx, `
		INSERT INTO user_preferences (user_id, profile, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			profile = EXCLUDED.profile,
			updated_at = NOW()
		RETURNING updated_at
	`, pref.UserID, raw).Scan(&pref.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert preferences: %w", err)
	}
	return &pref, nil
}
