// Package session is the in-memory conversation store with optimistic versioning.
package session

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/kailas-cloud/tablefinder/internal/domain"
	"github.com/kailas-cloud/tablefinder/internal/domain/session"
)

const shardCount = 32

type shard struct {
	mu       sync.RWMutex
	sessions map[string]*session.State
}

// Store keeps sessions in memory. Users are spread over independent shards,
// so operations on different users never wait on the same lock.
type Store struct {
	shards       [shardCount]*shard
	historyTurns int
	now          func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an empty store. historyTurns bounds each session's history.
func New(historyTurns int, opts ...Option) *Store {
	s := &Store{historyTurns: historyTurns, now: time.Now}
	for i := range s.shards {
		s.shards[i] = &shard{sessions: make(map[string]*session.State)}
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) shardFor(userID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return s.shards[h.Sum32()%shardCount]
}

// GetOrCreate returns a snapshot of the user's session, creating it at version 0 if absent.
func (s *Store) GetOrCreate(_ context.Context, userID string) *session.State {
	sh := s.shardFor(userID)

	sh.mu.RLock()
	st, ok := sh.sessions[userID]
	if ok {
		snap := st.Clone()
		sh.mu.RUnlock()
		return snap
	}
	sh.mu.RUnlock()

	sh.mu.Lock()
	defer sh.mu.Unlock()
	if st, ok := sh.sessions[userID]; ok {
		return st.Clone()
	}
	st = session.New(userID, s.historyTurns, s.now())
	sh.sessions[userID] = st
	return st.Clone()
}

// Get returns a snapshot of an existing session.
func (s *Store) Get(_ context.Context, userID string) (*session.State, bool) {
	sh := s.shardFor(userID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	st, ok := sh.sessions[userID]
	if !ok {
		return nil, false
	}
	return st.Clone(), true
}

// Mutation is a private working copy of a session. Dropping it is the rollback.
type Mutation struct {
	store    *Store
	state    *session.State
	expected int64
}

// Begin starts a mutation on the user's session (creating it if needed).
func (s *Store) Begin(ctx context.Context, userID string) *Mutation {
	snap := s.GetOrCreate(ctx, userID)
	return &Mutation{store: s, state: snap, expected: snap.Version}
}

// State returns the working copy. Changes are invisible until Commit.
func (m *Mutation) State() *session.State { return m.state }

// ExpectedVersion returns the version the working copy was taken from.
func (m *Mutation) ExpectedVersion() int64 { return m.expected }

// Commit publishes the working copy.
func (m *Mutation) Commit(ctx context.Context) (*session.State, error) {
	return m.store.Commit(ctx, m.state.UserID, m.state, m.expected)
}

// Commit atomically replaces the user's session with mutated if the stored
// version still equals expected. On success the stored version is expected+1.
// A session removed since the snapshot was taken counts as version 0.
func (s *Store) Commit(_ context.Context, userID string, mutated *session.State, expected int64) (*session.State, error) {
	sh := s.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	var current int64
	cur, ok := sh.sessions[userID]
	if ok {
		current = cur.Version
	}
	if current != expected {
		return nil, domain.NewStaleVersion(current)
	}

	stored := mutated.Clone()
	stored.UserID = userID
	stored.Version = expected + 1
	stored.LastActiveAt = s.now()
	if !ok && stored.CreatedAt.IsZero() {
		stored.CreatedAt = stored.LastActiveAt
	}
	sh.sessions[userID] = stored
	return stored.Clone(), nil
}

// ExpireSweep removes sessions idle for longer than ttl and returns how many were removed.
func (s *Store) ExpireSweep(_ context.Context, now time.Time, ttl time.Duration) int {
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for id, st := range sh.sessions {
			if st.Expired(now, ttl) {
				delete(sh.sessions, id)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// Delete removes a session. It reports whether one existed.
func (s *Store) Delete(_ context.Context, userID string) bool {
	sh := s.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, ok := sh.sessions[userID]; !ok {
		return false
	}
	delete(sh.sessions, userID)
	return true
}

// Stats is a point-in-time summary of the store.
type Stats struct {
	Sessions int `json:"sessions"`
	Turns    int `json:"turns"`
}

// Stats counts sessions and stored turns.
func (s *Store) Stats(_ context.Context) Stats {
	var st Stats
	for _, sh := range s.shards {
		sh.mu.RLock()
		st.Sessions += len(sh.sessions)
		for _, sess := range sh.sessions {
			st.Turns += sess.History.Len()
		}
		sh.mu.RUnlock()
	}
	return st
}
