package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"nightlife-matching-service/internal/models"
)

type EntityRepository struct {
	db *sql.DB
}

func NewEntityRepository(db *sql.DB) *EntityRepository {
	return &EntityRepository{db: db}
}

// GetEntity returns one entity, or sql.ErrNoRows.
func (r *EntityRepository) GetEntity(ctx context.Context, id string) (models.Entity, error) {
	var rec models.EntityRecord
	err := r.db.QueryRowContext(ctx, `
		SELECT kind, payload FROM entities WHERE id = $1
	`, id).Scan(&rec.Kind, &rec.Payload)
	if err != nil {
		return nil, err
	}
	return rec.Decode()
}

// GetEntities returns the entities with the given ids in request order.
// Unknown ids and undecodable rows are skipped.
func (r *EntityRepository) GetEntities(ctx context.Context, ids []string) ([]models.Entity, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, kind, payload FROM entities WHERE id = ANY($1)
	`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("query entities: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]models.Entity, len(ids))
	for rows.Next() {
		var (
			id  string
			rec models.EntityRecord
		)
		if err := rows.Scan(&id, &rec.Kind, &rec.Payload); err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		e, err := rec.Decode()
		if err != nil {
			slog.Warn("skipping undecodable entity", "entity_id", id, "error", err)
			continue
		}
		byID[id] = e
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entities: %w", err)
	}

	out := make([]models.Entity, 0, len(byID))
	for _, id := range ids {
		if e, ok := byID[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// ListEntities returns up to limit entities, optionally of one kind,
// ordered by id.
func (r *EntityRepository) ListEntities(ctx context.Context, kind models.EntityKind, limit int) ([]models.Entity, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, kind, payload FROM entities
		WHERE ($1 = '' OR kind = $1)
		ORDER BY id
		LIMIT $2
	`, string(kind), limit)
	if err != nil {
		return nil, fmt.Errorf("query entities: %w", err)
	}
	defer rows.Close()

	var out []models.Entity
	for rows.Next() {
		var (
			id  string
			rec models.EntityRecord
		)
		if err := rows.Scan(&id, &rec.Kind, &rec.Payload); err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		e, err := rec.Decode()
		if err != nil {
			slog.Warn("skipping undecodable entity", "entity_id", id, "error", err)
			continue
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpsertEntity stores an entity in the catalog.
func (r *EntityRepository) UpsertEntity(ctx context.Context, e models.Entity) error {
	rec, err := models.NewEntityRecord(e)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO entities (id, kind, name, payload, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (id) DO UPDATE SET
			kind = EXCLUDED.kind,
			name = EXCLUDED.name,
			payload = EXCLUDED.payload,
			updated_at = NOW()
	`, e.EntityID(), string(rec.Kind), models.EntityName(e), []byte(rec.Payload))
	if err != nil {
		return fmt.Errorf("upsert entity: %w", err)
	}
	return nil
}
