// Package otptest provides an in-memory otp.Repository for tests.
package otptest

import (
	"context"
	"sync"
	"time"

	"StudentPortal/internal/autherr"
	"StudentPortal/internal/otp"
)

// MemoryRepository is a mutex-guarded otp.Repository. Set Err to make every
// call fail as an unavailable store would.
type MemoryRepository struct {
	mu    sync.Mutex
	codes []otp.Code

	Err error
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (m *MemoryRepository) Replace(_ context.Context, c *otp.Code) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return autherr.Upstream("otps.insert", m.Err)
	}
	kept := m.codes[:0]
	for _, existing := range m.codes {
		if existing.Email != c.Email {
			kept = append(kept, existing)
		}
	}
	m.codes = append(kept, *c)
	return nil
}

func (m *MemoryRepository) Consume(_ context.Context, email, code string, now time.Time) (*otp.Code, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, autherr.Upstream("otps.consume", m.Err)
	}
	for i, c := range m.codes {
		if c.Email == email && c.Code == code && c.Live(now) {
			m.codes = append(m.codes[:i], m.codes[i+1:]...)
			return &c, nil
		}
	}
	return nil, nil
}

func (m *MemoryRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, autherr.Upstream("otps.sweep", m.Err)
	}
	kept := m.codes[:0]
	var n int64
	for _, c := range m.codes {
		if c.ExpiresAt.Before(now) {
			n++
			continue
		}
		kept = append(kept, c)
	}
	m.codes = kept
	return n, nil
}

func (m *MemoryRepository) CountLive(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, autherr.Upstream("otps.count", m.Err)
	}
	var n int64
	for _, c := range m.codes {
		if c.Live(now) {
			n++
		}
	}
	return n, nil
}

// Codes returns a copy of every stored record, live or not.
func (m *MemoryRepository) Codes() []otp.Code {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]otp.Code(nil), m.codes...)
}
