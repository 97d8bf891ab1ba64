package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSlot stores values in a Postgres table.
type PostgresSlot struct {
	pool *pgxpool.Pool
}

// NewPool connects to databaseURL and verifies the connection.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// NewPostgresSlot ensures the slots table exists.
func NewPostgresSlot(ctx context.Context, pool *pgxpool.Pool) (*PostgresSlot, error) {
	_, err := pool.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS session_slots (
            key        TEXT PRIMARY KEY,
            data       BYTEA NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )
    `)
	if err != nil {
		return nil, fmt.Errorf("create session_slots table: %w", err)
	}
	return &PostgresSlot{pool: pool}, nil
}

func (s *PostgresSlot) Load(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM session_slots WHERE key = $1`, key).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load slot %q: %w", key, err)
	}
	return data, nil
}

func (s *PostgresSlot) Save(ctx context.Context, key string, data []byte) error {
	_, err := s.pool.Exec(ctx, `
        INSERT INTO session_slots (key, data, updated_at) VALUES ($1, $2, now())
        ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at
    `, key, data)
	if err != nil {
		return fmt.Errorf("save slot %q: %w", key, err)
	}
	return nil
}
