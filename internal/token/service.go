// Package token issues and verifies the signed session tokens held by
// clients in the session cookie.
package token

import (
	"errors"
	"fmt"
	"time"

	"StudentPortal/internal/autherr"

	"github.com/golang-jwt/jwt/v5"
)

// Validity is the lifetime of a session token.
const Validity = 24 * time.Hour

// Subject is what a token is minted for.
type Subject struct {
	ID       string
	Username string
	Email    string
	Role     string
}

// Claims is the decoded token payload.
type Claims struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Subject returns the identity carried by the claims.
func (c *Claims) Subject() Subject {
	return Subject{ID: c.ID, Username: c.Username, Email: c.Email, Role: c.Role}
}

// Service signs tokens with a server-held HMAC key.
type Service struct {
	key []byte
	now func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithClock injects the time source (useful for tests).
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService refuses an empty secret; there is no default key.
func NewService(secret string, opts ...Option) (*Service, error) {
	if secret == "" {
		return nil, errors.New("token: signing secret is not configured")
	}
	s := &Service{key: []byte(secret), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue mints an HS256 token valid for 24 hours from now.
func (s *Service) Issue(sub Subject) (string, error) {
	now := s.now()
	claims := &Claims{
		ID:       sub.ID,
		Username: sub.Username,
		Email:    sub.Email,
		Role:     sub.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(Validity)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signing method, signature and expiry. Every failure is
// reported as autherr.ErrInvalidToken.
func (s *Service) Verify(raw string) (*Claims, error) {
	if raw == "" {
		return nil, autherr.ErrInvalidToken
	}
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", autherr.ErrInvalidToken, err)
	}
	if !tok.Valid || claims.ID == "" || claims.Role == "" {
		return nil, autherr.ErrInvalidToken
	}
	return claims, nil
}
