package repository

import (
	"context"
	"database/sql"
	"fmt"

	"nightlife-matching-service/internal/models"
)

type SocialRepository struct {
	db *sql.DB
}

func NewSocialRepository(db *sql.DB) *SocialRepository {
	return &SocialRepository{db: db}
}

// GetConnections returns the ids of a user's connections.
func (r *SocialRepository) GetConnections(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT friend_id FROM user_connections WHERE user_id = $1 ORDER BY friend_id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query connections: %w", err)
	}
	defer rows.Close()

	var friends []string
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, fmt.Errorf("scan connection: %w", err)
		}
		friends = append(friends, f)
	}
	return friends, rows.Err()
}

// AddConnection links two users in both directions.
func (r *SocialRepository) AddConnection(ctx context.Context, userID, friendID string) (*models.Connection, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	conn := models.Connection{UserID: userID, FriendID: friendID}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO user_connections (user_id, friend_id) VALUES ($1, $2)
		ON CONFLICT (user_id, friend_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING created_at
	`, userID, friendID).Scan(&conn.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert connection: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO user_connections (user_id, friend_id) VALUES ($1, $2)
		ON CONFLICT (user_id, friend_id) DO NOTHING
	`, friendID, userID); err != nil {
		return nil, fmt.Errorf("insert reverse connection: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &conn, nil
}
