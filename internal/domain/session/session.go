package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/kailas-cloud/tablefinder/internal/domain/criteria"
	"github.com/kailas-cloud/tablefinder/internal/domain/location"
)

// State is the per-user conversation state. A committed State is owned by the
// store; callers always work on clones.
type State struct {
	ID           uuid.UUID           `json:"session_id"`
	UserID       string              `json:"user_id"`
	History      History             `json:"history"`
	Criteria     criteria.Criteria   `json:"criteria"`
	Location     location.Descriptor `json:"location"`
	CreatedAt    time.Time           `json:"created_at"`
	LastActiveAt time.Time           `json:"last_active_at"`
	Version      int64               `json:"version"`
}

// New creates a fresh session at version 0.
func New(userID string, historyTurns int, now time.Time) *State {
	return &State{
		ID:           uuid.New(),
		UserID:       userID,
		History:      NewHistory(historyTurns),
		Location:     location.Unresolved(0),
		CreatedAt:    now,
		LastActiveAt: now,
	}
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	cp := *s
	cp.History = s.History.Clone()
	cp.Criteria = s.Criteria.Clone()
	return &cp
}

// Expired reports whether the session has been idle longer than ttl.
func (s *State) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.LastActiveAt) > ttl
}
