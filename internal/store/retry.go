package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// IsSQLiteBusyError checks if the error is a SQLITE_BUSY error.
func IsSQLiteBusyError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "SQLITE_BUSY")
}

// IsSQLiteLockedError checks if the error is a "database is locked" error.
func IsSQLiteLockedError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "database is locked")
}

// IsSQLiteConflictError reports SQLite concurrency errors that warrant a retry.
func IsSQLiteConflictError(err error) bool {
	return IsSQLiteBusyError(err) || IsSQLiteLockedError(err)
}

// RetryPolicy controls withRetry.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

var defaultRetry = RetryPolicy{MaxRetries: 3, BaseDelay: 50 * time.Millisecond}

// withRetry runs op with exponential backoff while it fails with a SQLite
// conflict. Other errors are returned immediately.
func withRetry(ctx context.Context, p RetryPolicy, name string, op func() error) error {
	if p.MaxRetries <= 0 {
		p.MaxRetries = 1
	}
	var err error
	for i := 0; i < p.MaxRetries; i++ {
		if err = op(); err == nil {
			return nil
		}
		if !IsSQLiteConflictError(err) || i == p.MaxRetries-1 {
			break
		}
		delay := p.BaseDelay * time.Duration(1<<i)
		slog.Debug("Database locked, retrying", "op", name, "attempt", i+1, "delay", delay)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", name, ctx.Err())
		}
	}
	return fmt.Errorf("%s: %w", name, err)
}
