package middleware

import (
	"context"
	"sync"
	"time"
)

// MemorySessionStore keeps sessions in process memory. Sessions are lost on restart.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	now      func() time.Time
}

var _ SessionStore = (*MemorySessionStore)(nil)

// NewMemorySessionStore creates an empty in-memory store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]Session), now: time.Now}
}

// Create stores a new session and returns its token.
// POST: sess.CreatedAt is set when zero
func (ms *MemorySessionStore) Create(_ context.Context, sess Session) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = ms.now()
	}
	ms.mu.Lock()
	ms.sessions[token] = sess
	ms.mu.Unlock()
	return token, nil
}

// Get returns the session for token if it exists and has not expired.
// Expired sessions are removed.
func (ms *MemorySessionStore) Get(_ context.Context, token string) (Session, bool) {
	ms.mu.RLock()
	sess, ok := ms.sessions[token]
	ms.mu.RUnlock()
	if !ok {
		return Session{}, false
	}
	if sess.Expired(ms.now()) {
		ms.mu.Lock()
		delete(ms.sessions, token)
		ms.mu.Unlock()
		return Session{}, false
	}
	return sess, true
}

func (ms *MemorySessionStore) Delete(_ context.Context, token string) {
	ms.mu.Lock()
	delete(ms.sessions, token)
	ms.mu.Unlock()
}

// Update replaces the session for an existing token.
// INVARIANT: CreatedAt is preserved so updates never extend a session
func (ms *MemorySessionStore) Update(_ context.Context, token string, sess Session) bool {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	old, ok := ms.sessions[token]
	if !ok {
		return false
	}
	sess.CreatedAt = old.CreatedAt
	ms.sessions[token] = sess
	return true
}
