// Package store provides session persistence interfaces and implementations.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ashureev/cosmic-guide/internal/domain"
)

// Repository persists conversation sessions keyed by session ID.
type Repository interface {
	// GetSession returns the session, or nil and no error when it does not exist.
	GetSession(ctx context.Context, id string) (*domain.Session, error)

	// SaveSession creates or replaces a session.
	SaveSession(ctx context.Context, session *domain.Session) error

	// DeleteSession removes a session. Deleting a missing session is not an error.
	DeleteSession(ctx context.Context, id string) error

	// ExpiredSessions returns IDs of sessions not updated within ttl.
	ExpiredSessions(ctx context.Context, ttl time.Duration) ([]string, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Options configures Open.
type Options struct {
	Backend     string
	DBPath      string
	DatabaseURL string
}

// Open returns the repository for the configured backend.
func Open(ctx context.Context, opts Options) (Repository, error) {
	switch strings.ToLower(opts.Backend) {
	case "", BackendMemory:
		return NewMemory(), nil
	case BackendSQLite:
		s, err := NewSQLite(opts.DBPath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendPostgres:
		s, err := NewPostgres(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown session store %q", opts.Backend)
	}
}
