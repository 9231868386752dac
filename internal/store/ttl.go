package store

import (
	"context"
	"log/slog"
	"time"
)

// DefaultTTLInterval is how often the TTL worker sweeps.
const DefaultTTLInterval = 5 * time.Minute

// CleanupCallback is called for each session removed by the TTL worker,
// before it is deleted from the repository.
type CleanupCallback func(sessionID string)

// StartTTLWorker runs a background goroutine that periodically discards
// sessions idle for longer than ttl. It stops when ctx is cancelled; the
// returned channel is closed once the goroutine has exited.
func StartTTLWorker(ctx context.Context, repo Repository, ttl, interval time.Duration, onCleanup CleanupCallback) <-chan struct{} {
	if interval <= 0 {
		interval = DefaultTTLInterval
	}
	done := make(chan struct{})
	ticker := time.NewTicker(interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		slog.Info("TTL worker started", "interval", interval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				CleanupExpiredSessions(ctx, repo, ttl, onCleanup)
			case <-ctx.Done():
				slog.Info("TTL worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
	return done
}

// CleanupExpiredSessions runs one sweep and returns how many sessions were removed.
func CleanupExpiredSessions(ctx context.Context, repo Repository, ttl time.Duration, onCleanup CleanupCallback) int {
	expired, err := repo.ExpiredSessions(ctx, ttl)
	if err != nil {
		slog.Error("TTL worker failed to get expired sessions", "error", err)
		return 0
	}
	if len(expired) == 0 {
		return 0
	}

	slog.Info("TTL worker found expired sessions", "count", len(expired))

	removed := 0
	for _, id := range expired {
		if onCleanup != nil {
			onCleanup(id)
		}
		if err := repo.DeleteSession(ctx, id); err != nil {
			slog.Warn("TTL worker failed to delete session", "error", err, "session_id", id)
			continue
		}
		removed++
	}

	slog.Info("TTL worker cleanup completed", "cleaned", removed)
	return removed
}
