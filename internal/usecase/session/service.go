// Package session exposes read-only views and lifecycle operations on
// conversation sessions. Conversation turns are written by the chat usecase only.
package session

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/tablefinder/internal/domain"
	"github.com/kailas-cloud/tablefinder/internal/domain/criteria"
	"github.com/kailas-cloud/tablefinder/internal/domain/location"
	domsession "github.com/kailas-cloud/tablefinder/internal/domain/session"
	"github.com/kailas-cloud/tablefinder/internal/metrics"
	sessionrepo "github.com/kailas-cloud/tablefinder/internal/repository/session"
)

// Status summarizes one session.
type Status struct {
	SessionID    string              `json:"session_id"`
	UserID       string              `json:"user_id"`
	Version      int64               `json:"version"`
	Turns        int                 `json:"turns"`
	Criteria     criteria.Criteria   `json:"criteria"`
	Location     location.Descriptor `json:"location"`
	CreatedAt    time.Time           `json:"created_at"`
	LastActiveAt time.Time           `json:"last_active_at"`
	ExpiresAt    time.Time           `json:"expires_at"`
}

// Service handles session administration.
type Service struct {
	store  Store
	ttl    time.Duration
	logger *zap.Logger
}

// New creates a session administration service.
func New(store Store, ttl time.Duration, logger *zap.Logger) *Service {
	return &Service{store: store, ttl: ttl, logger: logger}
}

// Status returns the session summary for a user.
func (s *Service) Status(ctx context.Context, userID string) (Status, error) {
	st, ok := s.store.Get(ctx, userID)
	if !ok {
		return Status{}, fmt.Errorf("session %q: %w", userID, domain.ErrNotFound)
	}
	return Status{
		SessionID:    st.ID.String(),
		UserID:       st.UserID,
		Version:      st.Version,
		Turns:        st.History.Len(),
		Criteria:     st.Criteria,
		Location:     st.Location,
		CreatedAt:    st.CreatedAt,
		LastActiveAt: st.LastActiveAt,
		ExpiresAt:    st.LastActiveAt.Add(s.ttl),
	}, nil
}

// History returns the stored turns, oldest first.
func (s *Service) History(ctx context.Context, userID string) ([]domsession.Turn, error) {
	st, ok := s.store.Get(ctx, userID)
	if !ok {
		return nil, fmt.Errorf("session %q: %w", userID, domain.ErrNotFound)
	}
	return st.History.Turns(), nil
}

// Delete removes a session. Deleting an unknown user is a no-op that returns false.
func (s *Service) Delete(ctx context.Context, userID string) bool {
	deleted := s.store.Delete(ctx, userID)
	if deleted {
		s.logger.Info("Session deleted", zap.String("user_id", userID))
		metrics.SessionsActive.Set(float64(s.store.Stats(ctx).Sessions))
	}
	return deleted
}

// Stats returns store-wide counters.
func (s *Service) Stats(ctx context.Context) sessionrepo.Stats {
	st := s.store.Stats(ctx)
	metrics.SessionsActive.Set(float64(st.Sessions))
	return st
}
