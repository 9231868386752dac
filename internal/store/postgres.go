package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ashureev/cosmic-guide/internal/domain"
)

// PostgresStore implements Repository on a pgx connection pool.
type PostgresStore struct {
	db *pgxpool.Pool
}

var _ Repository = (*PostgresStore)(nil)

// NewPostgres connects to databaseURL and ensures the schema exists.
func NewPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	if databaseURL == "" {
		return nil, errors.New("DATABASE_URL is required for the postgres session store")
	}
	db, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := NewPostgresWithPool(db)
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresWithPool wraps an existing pool. The schema is not created.
func NewPostgresWithPool(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS chat_sessions (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			state      JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_chat_sessions_updated ON chat_sessions(updated_at);
	`)
	if err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// GetSession implements Repository.
func (s *PostgresStore) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	var state []byte
	err := s.db.QueryRow(ctx, `SELECT state FROM chat_sessions WHERE id = $1`, id).Scan(&state)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return decodeSession(string(state))
}

// SaveSession implements Repository.
func (s *PostgresStore) SaveSession(ctx context.Context, session *domain.Session) error {
	state, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	created, updated := sessionTimes(session)
	_, err = s.db.Exec(ctx,
		`INSERT INTO chat_sessions (id, user_id, state, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at`,
		session.ID, session.UserID, state, created, updated,
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// DeleteSession implements Repository.
func (s *PostgresStore) DeleteSession(ctx context.Context, id string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM chat_sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// ExpiredSessions implements Repository.
func (s *PostgresStore) ExpiredSessions(ctx context.Context, ttl time.Duration) ([]string, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id FROM chat_sessions WHERE updated_at < $1 ORDER BY id`,
		time.Now().Add(-ttl),
	)
	if err != nil {
		return nil, fmt.Errorf("query expired sessions: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect expired sessions: %w", err)
	}
	return ids, nil
}

// Ping implements Repository.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close implements Repository.
func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}
