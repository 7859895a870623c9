package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists one row per stage in a deployments table.
// A single-row upsert is atomic, which satisfies the commit contract.
type PostgresStore struct {
	pool *pgxpool.Pool
	ctx  context.Context
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS stratus_deployments (
    stage      TEXT PRIMARY KEY,
    record     JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// NewPostgresStore connects to the database and ensures the
// deployments table exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating deployments table: %w", err)
	}
	return &PostgresStore{pool: pool, ctx: ctx}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Load reads the record row for a stage. No row yields an empty record.
func (s *PostgresStore) Load(stage string) (*Record, error) {
	var data []byte
	err := s.pool.QueryRow(s.ctx,
		`SELECT record FROM stratus_deployments WHERE stage = $1`, stage).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return NewRecord(), nil
		}
		return nil, &StoreError{Stage: stage, Op: "load", Err: err}
	}
	rec, err := decodeRecord(data)
	if err != nil {
		return nil, &StoreError{Stage: stage, Op: "load", Err: err}
	}
	return rec, nil
}

// Commit upserts the record row for a stage.
func (s *PostgresStore) Commit(stage string, record *Record) error {
	sortResources(record.Resources)
	data, err := json.Marshal(record)
	if err != nil {
		return &StoreError{Stage: stage, Op: "commit", Err: err}
	}
	_, err = s.pool.Exec(s.ctx, `
		INSERT INTO stratus_deployments (stage, record, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (stage) DO UPDATE SET record = $2, updated_at = now()`,
		stage, data)
	if err != nil {
		return &StoreError{Stage: stage, Op: "commit", Err: err}
	}
	return nil
}
