// Package otp keeps the ledger of one-time codes used to prove control of
// an email address before a password reset.
package otp

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"time"

	"StudentPortal/internal/metrics"

	"go.uber.org/zap"
)

const (
	// DefaultTTL is how long an issued code stays usable.
	DefaultTTL = 5 * time.Minute

	codeDigits = 6
)

var codeSpace = big.NewInt(1_000_000)

// Ledger issues, checks and expires one-time codes.
type Ledger struct {
	repo   Repository
	ttl    time.Duration
	now    func() time.Time
	random io.Reader
	log    *zap.Logger
}

// Option customizes a Ledger.
type Option func(*Ledger)

// WithClock injects the time source (useful for tests).
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// WithRandom replaces crypto/rand as the code source.
func WithRandom(r io.Reader) Option {
	return func(l *Ledger) {
		if r != nil {
			l.random = r
		}
	}
}

// NewLedger builds a Ledger. A non-positive ttl falls back to DefaultTTL.
func NewLedger(repo Repository, ttl time.Duration, log *zap.Logger, opts ...Option) *Ledger {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	l := &Ledger{
		repo:   repo,
		ttl:    ttl,
		now:    time.Now,
		random: rand.Reader,
		log:    log.Named("otp"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// TTL returns the configured code lifetime.
func (l *Ledger) TTL() time.Duration { return l.ttl }

// Issue stores a fresh code for email and returns it for delivery. Any
// code previously issued for the same email stops working.
func (l *Ledger) Issue(ctx context.Context, email, role string) (string, error) {
	code, err := l.generate()
	if err != nil {
		return "", err
	}
	now := l.now()
	rec := &Code{
		Email:     email,
		Code:      code,
		Role:      role,
		ExpiresAt: now.Add(l.ttl),
		CreatedAt: now,
	}
	if err := l.repo.Replace(ctx, rec); err != nil {
		return "", err
	}
	metrics.OTPIssued.Inc()
	l.log.Debug("code issued", zap.String("email", email), zap.Time("expires_at", rec.ExpiresAt))
	return code, nil
}

// Verify consumes the live code matching email and code. A wrong code, an
// expired code and a missing record all return nil with no error. At most
// one caller ever receives a given record.
func (l *Ledger) Verify(ctx context.Context, email, code string) (*Code, error) {
	if email == "" || code == "" {
		metrics.OTPVerifications.WithLabelValues("rejected").Inc()
		return nil, nil
	}
	rec, err := l.repo.Consume(ctx, email, code, l.now())
	if err != nil {
		return nil, err
	}
	if rec == nil {
		metrics.OTPVerifications.WithLabelValues("rejected").Inc()
		l.log.Debug("code rejected", zap.String("email", email))
		return nil, nil
	}
	metrics.OTPVerifications.WithLabelValues("accepted").Inc()
	return rec, nil
}

// SweepExpired removes codes past their expiry. Expiry is already enforced
// by Verify, so this only bounds the ledger's size.
func (l *Ledger) SweepExpired(ctx context.Context) (int64, error) {
	n, err := l.repo.DeleteExpired(ctx, l.now())
	if err != nil {
		return 0, err
	}
	metrics.OTPSwept.Add(float64(n))
	return n, nil
}

// CountLive reports how many unexpired codes are stored.
func (l *Ledger) CountLive(ctx context.Context) (int64, error) {
	return l.repo.CountLive(ctx, l.now())
}

func (l *Ledger) generate() (string, error) {
	n, err := rand.Int(l.random, codeSpace)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()), nil
}
