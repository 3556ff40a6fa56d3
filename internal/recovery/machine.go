// Package recovery drives the forgot-password flow: request a code, prove
// control of the email with it, then choose a new password. Progress is
// stored per browser session, never in process memory.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"StudentPortal/internal/auth"
	"StudentPortal/internal/autherr"
	"StudentPortal/internal/metrics"
	"StudentPortal/internal/notification"
	"StudentPortal/internal/otp"

	"go.uber.org/zap"
)

// DefaultSessionTTL bounds how long a recovery context stays usable.
const DefaultSessionTTL = 15 * time.Minute

const resetSubject = "Password Reset OTP"

type Accounts interface {
	FindByEmail(ctx context.Context, email string) (*auth.User, error)
	SetPassword(ctx context.Context, email, password string) error
}

type Ledger interface {
	Issue(ctx context.Context, email, role string) (string, error)
	Verify(ctx context.Context, email, code string) (*otp.Code, error)
	TTL() time.Duration
}

type Machine struct {
	accounts Accounts
	ledger   Ledger
	notifier notification.Notifier
	sessions SessionStore
	ttl      time.Duration
	now      func() time.Time
	log      *zap.Logger
}

type Option func(*Machine)

// WithClock injects the time source (useful for tests).
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMachine builds a Machine. A non-positive ttl falls back to
// DefaultSessionTTL.
func NewMachine(accounts Accounts, ledger Ledger, notifier notification.Notifier, sessions SessionStore, ttl time.Duration, log *zap.Logger, opts ...Option) *Machine {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	m := &Machine{
		accounts: accounts,
		ledger:   ledger,
		notifier: notifier,
		sessions: sessions,
		ttl:      ttl,
		now:      time.Now,
		log:      log.Named("recovery"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Stage reports where sid stands. Sessions with no live context are idle.
func (m *Machine) Stage(ctx context.Context, sid string) (Stage, error) {
	rc, err := m.load(ctx, sid)
	if err != nil {
		return "", err
	}
	if rc == nil {
		return StageIdle, nil
	}
	return rc.Stage, nil
}

// RequestReset starts, or restarts, recovery for email. An unknown email
// yields autherr.ErrNotFound and leaves both the ledger and the session
// untouched. Any code issued earlier for the email stops working.
func (m *Machine) RequestReset(ctx context.Context, sid, email string) error {
	if sid == "" {
		return autherr.ErrInvalidFlowState
	}
	email = auth.NormalizeEmail(email)
	user, err := m.accounts.FindByEmail(ctx, email)
	if err != nil {
		return err
	}

	code, err := m.ledger.Issue(ctx, user.Email, string(user.Role))
	if err != nil {
		return err
	}
	body := fmt.Sprintf("Your OTP code is: %s\nIt expires in %d minutes.", code, int(m.ledger.TTL()/time.Minute))
	if err := m.notifier.Send(ctx, user.Email, resetSubject, body); err != nil {
		return err
	}

	now := m.now()
	if err := m.sessions.Save(ctx, &Context{
		ID:        sid,
		Stage:     StageAwaitingCode,
		Email:     user.Email,
		ExpiresAt: now.Add(m.ttl),
		UpdatedAt: now,
	}); err != nil {
		return err
	}
	m.log.Info("password reset requested", zap.String("user_id", user.ID))
	return nil
}

// SubmitCode checks code against the email bound to sid. A miss leaves the
// session waiting for a code.
func (m *Machine) SubmitCode(ctx context.Context, sid, email, code string) error {
	rc, err := m.require(ctx, sid, email, StageAwaitingCode)
	if err != nil {
		return err
	}
	rec, err := m.ledger.Verify(ctx, rc.Email, code)
	if err != nil {
		return err
	}
	if rec == nil {
		return autherr.ErrInvalidOrExpiredCode
	}

	// The code is spent at this point. A session abandoned since the load
	// stays gone and the caller has to start over.
	now := m.now()
	rc.Stage = StageAwaitingReset
	rc.Role = rec.Role
	rc.ExpiresAt = now.Add(m.ttl)
	rc.UpdatedAt = now
	return m.sessions.Advance(ctx, rc, StageAwaitingCode, now)
}

// SubmitNewPassword stores password for the verified email and ends the
// flow. The context is claimed atomically so one verification allows one
// reset.
func (m *Machine) SubmitNewPassword(ctx context.Context, sid, email, password, confirm string) error {
	rc, err := m.require(ctx, sid, email, StageAwaitingReset)
	if err != nil {
		return err
	}
	if password != confirm {
		return autherr.ErrPasswordMismatch
	}

	claimed, err := m.sessions.Take(ctx, sid, StageAwaitingReset, m.now())
	if err != nil {
		return err
	}
	if claimed == nil || claimed.Email != rc.Email {
		return autherr.ErrInvalidFlowState
	}
	if err := m.accounts.SetPassword(ctx, claimed.Email, password); err != nil {
		if errors.Is(err, autherr.ErrNotFound) {
			// The account was deleted mid-flow.
			return autherr.ErrInvalidFlowState
		}
		return err
	}
	metrics.PasswordResets.Inc()
	m.log.Info("password reset completed", zap.String("role", claimed.Role))
	return nil
}

// Abandon returns sid to idle.
func (m *Machine) Abandon(ctx context.Context, sid string) error {
	if sid == "" {
		return nil
	}
	return m.sessions.Delete(ctx, sid)
}

func (m *Machine) load(ctx context.Context, sid string) (*Context, error) {
	if sid == "" {
		return nil, nil
	}
	return m.sessions.Get(ctx, sid, m.now())
}

// require loads the context for sid and checks it is at stage. A non-empty
// email must match the one the session is bound to.
func (m *Machine) require(ctx context.Context, sid, email string, stage Stage) (*Context, error) {
	rc, err := m.load(ctx, sid)
	if err != nil {
		return nil, err
	}
	if rc == nil || rc.Stage != stage {
		return nil, autherr.ErrInvalidFlowState
	}
	if email != "" && auth.NormalizeEmail(email) != rc.Email {
		return nil, autherr.ErrInvalidFlowState
	}
	return rc, nil
}
