package middleware

import (
	"net/http"
	"strings"
	"time"

	"StudentPortal/internal/autherr"
	"StudentPortal/internal/token"

	"github.com/labstack/echo/v4"
)

const (
	// TokenCookie holds the signed session token.
	TokenCookie = "token"
	// ClaimsKey is the echo context key the gate stores verified claims under.
	ClaimsKey = "user"

	LoginPath       = "/login"
	AdminHomePath   = "/admin/dashboard"
	StudentHomePath = "/student/profile"

	adminRole    = "admin"
	bearerPrefix = "Bearer "
)

type TokenVerifier interface {
	Verify(raw string) (*token.Claims, error)
}

// Gate guards routes with the session token carried in the token cookie or
// an Authorization: Bearer header.
type Gate struct {
	tokens TokenVerifier
	secure bool
}

func NewGate(tokens TokenVerifier, secureCookie bool) *Gate {
	return &Gate{tokens: tokens, secure: secureCookie}
}

// HomeFor returns the landing page for a role.
func HomeFor(role string) string {
	if role == adminRole {
		return AdminHomePath
	}
	return StudentHomePath
}

func rawToken(c echo.Context) string {
	if cookie, err := c.Cookie(TokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if strings.HasPrefix(header, bearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
	}
	return ""
}

// RequireAuthentication verifies the presented token and stores its claims
// under ClaimsKey. Clients without a token are sent to the login page; an
// invalid token is cleared first so the client cannot loop on it.
func (g *Gate) RequireAuthentication(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw := rawToken(c)
		if raw == "" {
			return c.Redirect(http.StatusSeeOther, LoginPath)
		}
		claims, err := g.tokens.Verify(raw)
		if err != nil {
			g.ClearCookie(c)
			return c.Redirect(http.StatusSeeOther, LoginPath)
		}
		c.Set(ClaimsKey, claims)
		return next(c)
	}
}

// RedirectIfAuthenticated sends a client holding a valid token to its role
// home. Invalid tokens are cleared and the request continues.
func (g *Gate) RedirectIfAuthenticated(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw := rawToken(c)
		if raw == "" {
			return next(c)
		}
		claims, err := g.tokens.Verify(raw)
		if err != nil {
			g.ClearCookie(c)
			return next(c)
		}
		return c.Redirect(http.StatusSeeOther, HomeFor(claims.Role))
	}
}

// RequireRole must run after RequireAuthentication.
func RequireRole(role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, ok := ClaimsFrom(c)
			if !ok {
				return autherr.ErrInvalidToken
			}
			if claims.Role != role {
				return autherr.ErrForbidden
			}
			return next(c)
		}
	}
}

// ClaimsFrom returns the claims stored by RequireAuthentication.
func ClaimsFrom(c echo.Context) (*token.Claims, bool) {
	claims, ok := c.Get(ClaimsKey).(*token.Claims)
	return claims, ok && claims != nil
}

func (g *Gate) SetCookie(c echo.Context, signed string) {
	c.SetCookie(&http.Cookie{
		Name:     TokenCookie,
		Value:    signed,
		Path:     "/",
		MaxAge:   int(token.Validity / time.Second),
		HttpOnly: true,
		Secure:   g.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (g *Gate) ClearCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     TokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   g.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
