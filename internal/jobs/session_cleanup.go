// Package jobs contains background maintenance tasks that run alongside
// the HTTP server.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/sommetlabs/sommet/internal/service"
)

// DefaultCleanupInterval is how often expired sessions are purged.
const DefaultCleanupInterval = 1 * time.Hour

// SessionCleanup periodically deletes expired sessions so the sessions
// table does not grow without bound.
type SessionCleanup struct {
	userService service.UserService
	interval    time.Duration
	logger      *slog.Logger
}

// NewSessionCleanup creates a session cleanup job. If interval is zero,
// DefaultCleanupInterval is used.
func NewSessionCleanup(userService service.UserService, interval time.Duration, logger *slog.Logger) *SessionCleanup {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	return &SessionCleanup{
		userService: userService,
		interval:    interval,
		logger:      logger,
	}
}

// Run blocks until ctx is canceled, purging expired sessions on each tick.
// An immediate pass runs at startup to clear anything left over from the
// previous process.
func (j *SessionCleanup) Run(ctx context.Context) {
	j.sweep(ctx)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *SessionCleanup) sweep(ctx context.Context) {
	if err := j.userService.DeleteExpiredSessions(ctx); err != nil {
		j.logger.Error("Session cleanup failed", "error", err)
	}
}
