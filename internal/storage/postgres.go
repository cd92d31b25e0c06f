package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists sessions in PostgreSQL as JSONB documents.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// CreateSession stores the provided session in PostgreSQL.
func (s *PostgresStore) CreateSession(ctx context.Context, input Session) (Session, error) {
	data, err := json.Marshal(input)
	if err != nil {
		return Session{}, fmt.Errorf("encode session: %w", err)
	}

	if _, err := s.pool.Exec(ctx,
		`INSERT INTO visualization_sessions (id, state, data, concept_count, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		input.ID(), string(input.Conversation.State), data, len(input.Concepts), input.Conversation.CreatedAt, input.Conversation.UpdatedAt); err != nil {
		return Session{}, fmt.Errorf("insert session: %w", err)
	}

	return input, nil
}

// GetSession loads one session.
func (s *PostgresStore) GetSession(ctx context.Context, id string) (Session, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM visualization_sessions WHERE id = $1`, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("query session: %w", err)
	}
	return decodeSession(data)
}

// UpdateSession locks the row for the duration of fn.
func (s *PostgresStore) UpdateSession(ctx context.Context, id string, fn UpdateFunc) (Session, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Session{}, fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var data []byte
	err = tx.QueryRow(ctx, `SELECT data FROM visualization_sessions WHERE id = $1 FOR UPDATE`, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("lock session: %w", err)
	}

	current, err := decodeSession(data)
	if err != nil {
		return Session{}, err
	}
	next, err := fn(current)
	if err != nil {
		return Session{}, err
	}
	next.Conversation.ID = id

	encoded, err := json.Marshal(next)
	if err != nil {
		return Session{}, fmt.Errorf("encode session: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE visualization_sessions SET state = $2, data = $3, concept_count = $4, updated_at = $5 WHERE id = $1`,
		id, string(next.Conversation.State), encoded, len(next.Concepts), next.Conversation.UpdatedAt); err != nil {
		return Session{}, fmt.Errorf("update session: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Session{}, fmt.Errorf("commit update: %w", err)
	}
	return next, nil
}

// DeleteSession removes a session by ID.
func (s *PostgresStore) DeleteSession(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM visualization_sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Close releases database resources.
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func decodeSession(data []byte) (Session, error) {
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}
	return sess, nil
}
