// Package autherr holds the error taxonomy shared by the credential
// lifecycle packages and the mapping used at the HTTP boundary.
package autherr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrInvalidToken         = errors.New("invalid token")
	ErrInvalidOrExpiredCode = errors.New("invalid or expired code")
	ErrInvalidFlowState     = errors.New("invalid password recovery state")
	ErrPasswordMismatch     = errors.New("passwords do not match")
	ErrDuplicateIdentity    = errors.New("username or email already taken")
	ErrNotFound             = errors.New("not found")
	ErrUpstreamUnavailable  = errors.New("upstream unavailable")
	ErrForbidden            = errors.New("forbidden")
)

// UpstreamError reports a failed call to the store or the notifier.
// It matches ErrUpstreamUnavailable and unwraps to the driver error.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrUpstreamUnavailable, e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) Is(target error) bool { return target == ErrUpstreamUnavailable }

// Upstream wraps err as an UpstreamError. A nil err stays nil.
func Upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return err
	}
	return &UpstreamError{Op: op, Err: err}
}

// HTTPStatus maps an error from the core to a response status.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicateIdentity), errors.Is(err, ErrInvalidFlowState):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidOrExpiredCode), errors.Is(err, ErrPasswordMismatch):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the text shown to the client. Upstream and unknown
// errors never leak their cause.
func PublicMessage(err error) string {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid credentials"
	case errors.Is(err, ErrInvalidToken):
		return "Session expired, please log in again"
	case errors.Is(err, ErrInvalidOrExpiredCode):
		return "Invalid or expired OTP."
	case errors.Is(err, ErrInvalidFlowState):
		return "Password recovery session is not at this step. Please start again."
	case errors.Is(err, ErrPasswordMismatch):
		return "Passwords do not match"
	case errors.Is(err, ErrDuplicateIdentity):
		return "Username or email already taken"
	case errors.Is(err, ErrNotFound):
		return "Not found"
	case errors.Is(err, ErrForbidden):
		return "Access Denied"
	default:
		return "Server error"
	}
}
