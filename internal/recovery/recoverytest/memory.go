// Package recoverytest provides an in-memory recovery.SessionStore.
package recoverytest

import (
	"context"
	"sync"
	"time"

	"StudentPortal/internal/autherr"
	"StudentPortal/internal/recovery"
)

type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]recovery.Context

	Err error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: map[string]recovery.Context{}}
}

func (m *MemoryStore) Get(_ context.Context, sid string, now time.Time) (*recovery.Context, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, autherr.Upstream("recovery_sessions.find", m.Err)
	}
	rc, ok := m.sessions[sid]
	if !ok || !now.Before(rc.ExpiresAt) {
		return nil, nil
	}
	return &rc, nil
}

func (m *MemoryStore) Save(_ context.Context, rc *recovery.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return autherr.Upstream("recovery_sessions.save", m.Err)
	}
	m.sessions[rc.ID] = *rc
	return nil
}

func (m *MemoryStore) Advance(_ context.Context, rc *recovery.Context, from recovery.Stage, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return autherr.Upstream("recovery_sessions.advance", m.Err)
	}
	cur, ok := m.sessions[rc.ID]
	if !ok || cur.Stage != from || cur.Email != rc.Email || !now.Before(cur.ExpiresAt) {
		return autherr.ErrInvalidFlowState
	}
	cur.Stage = rc.Stage
	cur.Role = rc.Role
	cur.ExpiresAt = rc.ExpiresAt
	cur.UpdatedAt = rc.UpdatedAt
	m.sessions[rc.ID] = cur
	return nil
}

func (m *MemoryStore) Take(_ context.Context, sid string, stage recovery.Stage, now time.Time) (*recovery.Context, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, autherr.Upstream("recovery_sessions.take", m.Err)
	}
	rc, ok := m.sessions[sid]
	if !ok || rc.Stage != stage || !now.Before(rc.ExpiresAt) {
		return nil, nil
	}
	delete(m.sessions, sid)
	return &rc, nil
}

func (m *MemoryStore) Delete(_ context.Context, sid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return autherr.Upstream("recovery_sessions.delete", m.Err)
	}
	delete(m.sessions, sid)
	return nil
}

// Len reports how many contexts are stored, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
