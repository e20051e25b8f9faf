package state

import (
	"context"
	"sync"
)

// Memory is an in-process Store. Sessions are lost on restart.
type Memory[S any] struct {
	mu       sync.RWMutex
	sessions map[int64]S
}

// NewMemory constructs an empty in-memory store.
func NewMemory[S any]() *Memory[S] {
	return &Memory[S]{sessions: make(map[int64]S)}
}

// Load returns the stored session or ErrNotFound.
func (m *Memory[S]) Load(_ context.Context, userID int64) (S, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[userID]
	if !ok {
		var zero S
		return zero, ErrNotFound
	}
	return s, nil
}

// Save replaces the session for userID.
func (m *Memory[S]) Save(_ context.Context, userID int64, session S) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[userID] = session
	return nil
}

// Delete removes the session; deleting a missing session is not an error.
func (m *Memory[S]) Delete(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
	return nil
}

// Count returns the number of stored sessions.
func (m *Memory[S]) Count(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions), nil
}
