package repository

import (
	"context"
	"database/sql"
	"fmt"

	"nightlife-matching-service/internal/models"
)

type SnapshotRepository struct {
	db *sql.DB
}

func NewSnapshotRepository(db *sql.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// ReplaceSnapshots swaps a user's stored matches for a fresh set.
func (r *SnapshotRepository) ReplaceSnapshots(ctx context.Context, userID string, matches []models.MatchResult) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM match_snapshots WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear snapshots: %w", err)
	}
	for _, m := range matches {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO match_snapshots (user_id, entity_id, score, trending, generated_at)
			VALUES ($1, $2, $3, $4, NOW())
			ON CONFLICT (user_id, entity_id)
			DO UPDATE SET score = EXCLUDED.score, trending = EXCLUDED.trending, generated_at = NOW()
		`, userID, m.EntityID, m.Score, m.Trending)
		if err != nil {
			return fmt.Errorf("upsert snapshot: %w", err)
		}
	}
	return tx.Commit()
}

// GetSnapshots retrieves the top N stored matches for a user.
func (r *SnapshotRepository) GetSnapshots(ctx context.Context, userID string, limit int) ([]models.MatchSnapshot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, entity_id, score, trending, generated_at
		FROM match_snapshots
		WHERE user_id = $1
		ORDER BY score DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []models.MatchSnapshot
	for rows.Next() {
		var s models.MatchSnapshot
		if err := rows.Scan(&s.UserID, &s.EntityID, &s.Score, &s.Trending, &s.GeneratedAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}
