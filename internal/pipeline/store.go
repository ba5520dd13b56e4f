package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/moodlist/internal/shared"
)

// DefaultSessionTTL is how long an idle session survives before the
// sweeper reclaims it.
const DefaultSessionTTL = 30 * time.Minute

// SessionStore holds active sessions in memory, keyed by session ID.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*UserSession
	ttl      time.Duration
	logger   *log.Logger
}

// NewSessionStore creates a store. A non-positive ttl selects
// [DefaultSessionTTL].
func NewSessionStore(ttl time.Duration, logger *log.Logger) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionStore{
		sessions: make(map[string]*UserSession),
		ttl:      ttl,
		logger:   logger,
	}
}

// Create registers a new session for a principal.
func (st *SessionStore) Create(principalID string) *UserSession {
	session := newSession(shared.GenerateID(), principalID)

	st.mu.Lock()
	st.sessions[session.ID] = session
	st.mu.Unlock()

	st.logger.Debug("session created", "session", session.ID, "principal", principalID)
	return session
}

// Get returns the session for an ID.
func (st *SessionStore) Get(sessionID string) (*UserSession, error) {
	st.mu.RLock()
	session, ok := st.sessions[sessionID]
	st.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrSessionNotFound, sessionID)
	}
	session.touch()
	return session, nil
}

// Delete removes a session. Idempotent.
func (st *SessionStore) Delete(sessionID string) {
	st.mu.Lock()
	delete(st.sessions, sessionID)
	st.mu.Unlock()
}

// Len returns the number of live sessions.
func (st *SessionStore) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Sweep removes sessions idle past the TTL and returns how many were
// reclaimed.
func (st *SessionStore) Sweep() int {
	cutoff := time.Now().Add(-st.ttl)

	st.mu.Lock()
	defer st.mu.Unlock()

	var reclaimed int
	for id, session := range st.sessions {
		if session.idleSince(cutoff) {
			delete(st.sessions, id)
			reclaimed++
		}
	}
	if reclaimed > 0 {
		st.logger.Debug("swept idle sessions", "count", reclaimed)
	}
	return reclaimed
}

// StartSweeper runs Sweep on an interval until the context is done.
func (st *SessionStore) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				st.Sweep()
			}
		}
	}()
}
