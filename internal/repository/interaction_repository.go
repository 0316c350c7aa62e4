package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"nightlife-matching-service/internal/models"
)

// maxNeighbours caps how many users the interaction matrix is built from.
const maxNeighbours = 2000

type InteractionRepository struct {
	db *sql.DB
}

func NewInteractionRepository(db *sql.DB) *InteractionRepository {
	return &InteractionRepository{db: db}
}

// CreateInteraction records a user interaction.
func (r *InteractionRepository) CreateInteraction(ctx context.Context, userID, entityID, interactionType string, weight float64) (*models.UserInteraction, error) {
	var inter models.UserInteraction
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO user_interactions (user_id, entity_id, interaction_type, weight)
		VALUES ($1, $2, $3, $4)
		RETURNING id, user_id, entity_id, interaction_type, weight, created_at
	`, userID, entityID, interactionType, weight).Scan(
		&inter.ID, &inter.UserID, &inter.EntityID, &inter.InteractionType, &inter.Weight, &inter.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create interaction: %w", err)
	}
	return &inter, nil
}

// InteractionMatrix returns the summed positive interaction weights of the
// user, of every user who shares an entity with them and of every user who
// engaged with one of the candidates. The user always comes first among the
// neighbours kept, the rest are picked by id so the result is stable.
func (r *InteractionRepository) InteractionMatrix(ctx context.Context, userID string, entityIDs []string) (map[string]map[string]float64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, entity_id, SUM(weight)
		FROM user_interactions
		WHERE user_id IN (
			SELECT user_id FROM user_interactions
			WHERE user_id = $1
			   OR entity_id = ANY($2)
			   OR entity_id IN (SELECT entity_id FROM user_interactions WHERE user_id = $1)
			GROUP BY user_id
			ORDER BY (user_id = $1) DESC, user_id
			LIMIT $3
		)
		GROUP BY user_id, entity_id
		HAVING SUM(weight) > 0
	`, userID, pq.Array(entityIDs), maxNeighbours)
	if err != nil {
		return nil, fmt.Errorf("query interaction matrix: %w", err)
	}
	defer rows.Close()

	matrix := make(map[string]map[string]float64)
	for rows.Next() {
		var (
			user, entity string
			weight       float64
		)
		if err := rows.Scan(&user, &entity, &weight); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		if matrix[user] == nil {
			matrix[user] = make(map[string]float64)
		}
		matrix[user][entity] = weight
	}
	return matrix, rows.Err()
}

// Engagement returns, per entity, the users with positive interactions.
func (r *InteractionRepository) Engagement(ctx context.Context, entityIDs []string) (map[string][]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT entity_id, user_id
		FROM user_interactions
		WHERE entity_id = ANY($1)
		GROUP BY entity_id, user_id
		HAVING SUM(weight) > 0
		ORDER BY entity_id, user_id
	`, pq.Array(entityIDs))
	if err != nil {
		return nil, fmt.Errorf("query engagement: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var entity, user string
		if err := rows.Scan(&entity, &user); err != nil {
			return nil, fmt.Errorf("scan engagement: %w", err)
		}
		out[entity] = append(out[entity], user)
	}
	return out, rows.Err()
}

// TrendStats compares each entity's interaction count in the last window
// with its average over the seven windows before.
func (r *InteractionRepository) TrendStats(ctx context.Context, entityIDs []string, window time.Duration) (map[string]models.TrendStat, error) {
	secs := window.Seconds()
	rows, err := r.db.QueryContext(ctx, `
		SELECT entity_id,
			COUNT(*) FILTER (WHERE created_at >= NOW() - make_interval(secs => $2)),
			COUNT(*) FILTER (WHERE created_at < NOW() - make_interval(secs => $2)) / 7.0
		FROM user_interactions
		WHERE entity_id = ANY($1)
		  AND created_at >= NOW() - make_interval(secs => $2 * 8)
		GROUP BY entity_id
	`, pq.Array(entityIDs), secs)
	if err != nil {
		return nil, fmt.Errorf("query trend stats: %w", err)
	}
	defer rows.Close()

	out := make(map[string]models.TrendStat)
	for rows.Next() {
		var (
			entity string
			stat   models.TrendStat
		)
		if err := rows.Scan(&entity, &stat.Recent, &stat.Baseline); err != nil {
			return nil, fmt.Errorf("scan trend stat: %w", err)
		}
		out[entity] = stat
	}
	return out, rows.Err()
}
