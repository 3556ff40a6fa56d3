// Package authtest provides an in-memory auth.Repository for tests.
package authtest

import (
	"context"
	"sort"
	"sync"
	"time"

	"StudentPortal/internal/auth"
	"StudentPortal/internal/autherr"
)

// MemoryRepository keeps users in a slice and enforces the same unique keys
// as the Mongo indexes. Set Err to make every call fail as an unavailable
// store would.
type MemoryRepository struct {
	mu    sync.Mutex
	users []auth.User

	Err error
}

func NewMemoryRepository(seed ...auth.User) *MemoryRepository {
	return &MemoryRepository{users: append([]auth.User(nil), seed...)}
}

func (m *MemoryRepository) find(match func(u *auth.User) bool) (*auth.User, error) {
	for i := range m.users {
		if match(&m.users[i]) {
			u := m.users[i]
			u.Role = auth.NormalizeRole(u.Role)
			return &u, nil
		}
	}
	return nil, autherr.ErrNotFound
}

func (m *MemoryRepository) lock(op string) (func(), error) {
	m.mu.Lock()
	if m.Err != nil {
		m.mu.Unlock()
		return nil, autherr.Upstream(op, m.Err)
	}
	return m.mu.Unlock, nil
}

func (m *MemoryRepository) FindByID(_ context.Context, id string) (*auth.User, error) {
	unlock, err := m.lock("users.find_by_id")
	if err != nil {
		return nil, err
	}
	defer unlock()
	return m.find(func(u *auth.User) bool { return u.ID == id })
}

func (m *MemoryRepository) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	unlock, err := m.lock("users.find_by_email")
	if err != nil {
		return nil, err
	}
	defer unlock()
	return m.find(func(u *auth.User) bool { return u.Email == email })
}

func (m *MemoryRepository) FindByLogin(_ context.Context, login string) (*auth.User, error) {
	unlock, err := m.lock("users.find_by_login")
	if err != nil {
		return nil, err
	}
	defer unlock()
	email := auth.NormalizeEmail(login)
	return m.find(func(u *auth.User) bool { return u.Username == login || u.Email == email })
}

func (m *MemoryRepository) FindConflict(_ context.Context, username, email, excludeID string) (*auth.User, error) {
	unlock, err := m.lock("users.find_conflict")
	if err != nil {
		return nil, err
	}
	defer unlock()
	return m.find(func(u *auth.User) bool {
		return u.ID != excludeID && (u.Username == username || u.Email == email)
	})
}

func (m *MemoryRepository) FindAnyAdmin(_ context.Context) (*auth.User, error) {
	unlock, err := m.lock("users.find_admin")
	if err != nil {
		return nil, err
	}
	defer unlock()
	return m.find(func(u *auth.User) bool { return u.Role == auth.RoleAdmin })
}

func (m *MemoryRepository) Create(_ context.Context, user *auth.User) error {
	unlock, err := m.lock("users.insert")
	if err != nil {
		return err
	}
	defer unlock()
	if _, err := m.find(func(u *auth.User) bool {
		return u.ID == user.ID || u.Username == user.Username || u.Email == user.Email
	}); err == nil {
		return autherr.ErrDuplicateIdentity
	}
	m.users = append(m.users, *user)
	return nil
}

func (m *MemoryRepository) Update(_ context.Context, id string, patch auth.UserPatch, at time.Time) error {
	unlock, err := m.lock("users.update")
	if err != nil {
		return err
	}
	defer unlock()
	for i := range m.users {
		u := &m.users[i]
		if u.ID != id {
			continue
		}
		if patch.FullName != nil {
			u.FullName = *patch.FullName
		}
		if patch.Username != nil {
			u.Username = *patch.Username
		}
		if patch.Email != nil {
			u.Email = *patch.Email
		}
		if patch.Course != nil {
			u.Course = *patch.Course
		}
		if patch.Absences != nil {
			u.Absences = *patch.Absences
		}
		if patch.Password != nil {
			u.Password = *patch.Password
		}
		u.UpdatedAt = at
		return nil
	}
	return autherr.ErrNotFound
}

func (m *MemoryRepository) SetPassword(_ context.Context, email, hash string, at time.Time) error {
	unlock, err := m.lock("users.set_password")
	if err != nil {
		return err
	}
	defer unlock()
	for i := range m.users {
		if m.users[i].Email == email {
			m.users[i].Password = hash
			m.users[i].UpdatedAt = at
			return nil
		}
	}
	return autherr.ErrNotFound
}

func (m *MemoryRepository) Delete(_ context.Context, id string) error {
	unlock, err := m.lock("users.delete")
	if err != nil {
		return err
	}
	defer unlock()
	for i := range m.users {
		if m.users[i].ID == id {
			m.users = append(m.users[:i], m.users[i+1:]...)
			return nil
		}
	}
	return autherr.ErrNotFound
}

func (m *MemoryRepository) DeleteAll(context.Context) (int64, error) {
	unlock, err := m.lock("users.delete_all")
	if err != nil {
		return 0, err
	}
	defer unlock()
	n := int64(len(m.users))
	m.users = nil
	return n, nil
}

func (m *MemoryRepository) ListByRole(_ context.Context, role auth.Role, course string) ([]*auth.User, error) {
	unlock, err := m.lock("users.list")
	if err != nil {
		return nil, err
	}
	defer unlock()
	out := []*auth.User{}
	for _, u := range m.users {
		u.Role = auth.NormalizeRole(u.Role)
		if u.Role != role || (course != "" && u.Course != course) {
			continue
		}
		u := u
		out = append(out, &u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

func (m *MemoryRepository) CountByRole(_ context.Context, role auth.Role) (int64, error) {
	unlock, err := m.lock("users.count")
	if err != nil {
		return 0, err
	}
	defer unlock()
	var n int64
	for _, u := range m.users {
		if auth.NormalizeRole(u.Role) == role {
			n++
		}
	}
	return n, nil
}

func (m *MemoryRepository) Count(_ context.Context) (int64, error) {
	unlock, err := m.lock("users.count")
	if err != nil {
		return 0, err
	}
	defer unlock()
	return int64(len(m.users)), nil
}

// User returns the stored record for id without role normalization.
func (m *MemoryRepository) User(id string) (auth.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			return u, true
		}
	}
	return auth.User{}, false
}
