package database

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"

	"nightlife-matching-service/internal/config"
)

func NewPostgres(cfg config.DBConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)

	slog.Info("connected to PostgreSQL", "db", cfg.DBName)

	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

func runMigrations(db *sql.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS user_preferences (
			user_id VARCHAR(64) PRIMARY KEY,
			profile JSONB NOT NULL DEFAULT '{}'::jsonb,
			updated_at TIMESTAMP DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS entities (
			id VARCHAR(64) PRIMARY KEY,
			kind VARCHAR(16) NOT NULL CHECK (kind IN ('venue', 'dj', 'event')),
			name VARCHAR(255) NOT NULL DEFAULT '',
			payload JSONB NOT NULL,
			updated_at TIMESTAMP DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entities_kind ON entities(kind)`,
		`CREATE TABLE IF NOT EXISTS user_interactions (
			id SERIAL PRIMARY KEY,
			user_id VARCHAR(64) NOT NULL,
			entity_id VARCHAR(64) NOT NULL,
			interaction_type VARCHAR(20) NOT NULL,
			weight DOUBLE PRECISION NOT NULL DEFAULT 1.0,
			created_at TIMESTAMP DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_interactions_user_id ON user_interactions(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_interactions_entity_created ON user_interactions(entity_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS user_connections (
			user_id VARCHAR(64) NOT NULL,
			friend_id VARCHAR(64) NOT NULL,
			created_at TIMESTAMP DEFAULT NOW(),
			PRIMARY KEY (user_id, friend_id)
		)`,
		`CREATE TABLE IF NOT EXISTS match_snapshots (
			user_id VARCHAR(64) NOT NULL,
			entity_id VARCHAR(64) NOT NULL,
			score DOUBLE PRECISION NOT NULL,
			trending BOOLEAN NOT NULL DEFAULT FALSE,
			generated_at TIMESTAMP DEFAULT NOW(),
			PRIMARY KEY (user_id, entity_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_match_snapshots_score ON match_snapshots(user_id, score DESC)`,
		// Seed catalog
		`INSERT INTO entities (id, kind, name, payload)
		 SELECT 'venue-warehouse-9', 'venue', 'Warehouse 9',
		 '{"id":"venue-warehouse-9","name":"Warehouse 9","type":"warehouse","genres":["techno","house"],"atmosphere":["underground","dark","energetic"],"price_level":2,"capacity":800,"indoor":true,"opening_time":{"start_hour":23,"end_hour":6}}'
		 WHERE NOT EXISTS (SELECT 1 FROM entities WHERE id = 'venue-warehouse-9')`,
		`INSERT INTO entities (id, kind, name, payload)
		 SELECT 'venue-blue-note', 'venue', 'Blue Note Lounge',
		 '{"id":"venue-blue-note","name":"Blue Note Lounge","type":"lounge","genres":["jazz","soul"],"atmosphere":["intimate","sophisticated","chill"],"price_level":3,"capacity":120,"indoor":true,"opening_time":{"start_hour":19,"end_hour":2}}'
		 WHERE NOT EXISTS (SELECT 1 FROM entities WHERE id = 'venue-blue-note')`,
		`INSERT INTO entities (id, kind, name, payload)
		 SELECT 'dj-solar-flare', 'dj', 'Solar Flare',
		 '{"id":"dj-solar-flare","name":"Solar Flare","genres":["deep house","disco"],"vibes":["dancey","energetic"],"tempo_min":118,"tempo_max":124,"set_times":[{"start_hour":0,"end_hour":3}]}'
		 WHERE NOT EXISTS (SELECT 1 FROM entities WHERE id = 'dj-solar-flare')`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}

	slog.Info("database migrations completed")
	return nil
}
