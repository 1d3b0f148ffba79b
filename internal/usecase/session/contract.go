package session

import (
	"context"
	"time"

	domsession "github.com/kailas-cloud/tablefinder/internal/domain/session"
	sessionrepo "github.com/kailas-cloud/tablefinder/internal/repository/session"
)

// Store is the session store surface needed for administration.
type Store interface {
	Get(ctx context.Context, userID string) (*domsession.State, bool)
	Delete(ctx context.Context, userID string) bool
	ExpireSweep(ctx context.Context, now time.Time, ttl time.Duration) int
	Stats(ctx context.Context) sessionrepo.Stats
}
