package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"nightloom/internal/domain"
)

// PgSessionStore persiste cada sesión como una fila jsonb.
//
// Esquema esperado:
//
//	CREATE TABLE sessions (
//	    id         TEXT PRIMARY KEY,
//	    data       JSONB NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL
//	);
type PgSessionStore struct {
	pool *pgxpool.Pool
}

func NewPgSessionStore(pool *pgxpool.Pool) *PgSessionStore {
	return &PgSessionStore{pool: pool}
}

func (s *PgSessionStore) Create(ctx context.Context, session *domain.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	const query = `
		INSERT INTO sessions (id, data, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING
	`
	tag, err := s.pool.Exec(ctx, query, session.ID, data, session.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionExists
	}
	return nil
}

func (s *PgSessionStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	const query = `SELECT data FROM sessions WHERE id = $1`

	var data []byte
	err := s.pool.QueryRow(ctx, query, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select session: %w", err)
	}

	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &session, nil
}

func (s *PgSessionStore) Update(ctx context.Context, session *domain.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	const query = `UPDATE sessions SET data = $2, updated_at = $3 WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, session.ID, data, session.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}
