package auth

import (
	"context"
	"net/http"

	"StudentPortal/internal/autherr"
	"StudentPortal/pkg/middleware"

	"github.com/labstack/echo/v4"
)

type liveCodeCounter interface {
	CountLive(ctx context.Context) (int64, error)
}

type AuthHandler struct {
	service *UserService
	gate    *middleware.Gate
	otps    liveCodeCounter
}

func NewAuthHandler(service *UserService, gate *middleware.Gate, otps liveCodeCounter) *AuthHandler {
	return &AuthHandler{service: service, gate: gate, otps: otps}
}

func errInvalidRequest() error {
	return echo.NewHTTPError(http.StatusBadRequest, "Invalid request")
}

func (h *AuthHandler) LoginPage(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"message": "Please log in"})
}

func (h *AuthHandler) Login(c echo.Context) error {
	var cred Credential
	if err := c.Bind(&cred); err != nil {
		return errInvalidRequest()
	}
	if err := cred.Validate(); err != nil {
		return err
	}

	signed, user, err := h.service.Login(c.Request().Context(), cred.Username, cred.Password)
	if err != nil {
		return err
	}
	h.gate.SetCookie(c, signed)
	return c.Redirect(http.StatusSeeOther, middleware.HomeFor(string(user.Role)))
}

func (h *AuthHandler) Logout(c echo.Context) error {
	h.gate.ClearCookie(c)
	return c.Redirect(http.StatusFound, middleware.LoginPath)
}

// Home sends an authenticated client to its role home.
func (h *AuthHandler) Home(c echo.Context) error {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		return c.Redirect(http.StatusFound, middleware.LoginPath)
	}
	return c.Redirect(http.StatusFound, middleware.HomeFor(claims.Role))
}

func (h *AuthHandler) Profile(c echo.Context) error {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		return autherr.ErrInvalidToken
	}
	user, err := h.service.FindByID(c.Request().Context(), claims.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

func (h *AuthHandler) Dashboard(c echo.Context) error {
	ctx := c.Request().Context()
	students, err := h.service.ListStudents(ctx, "")
	if err != nil {
		return err
	}
	stats, err := h.stats(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"students": students,
		"courses":  CourseList,
		"stats":    stats,
	})
}

func (h *AuthHandler) Stats(c echo.Context) error {
	stats, err := h.stats(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *AuthHandler) stats(ctx context.Context) (Stats, error) {
	stats, err := h.service.Stats(ctx)
	if err != nil {
		return Stats{}, err
	}
	if stats.ActiveOTPs, err = h.otps.CountLive(ctx); err != nil {
		return Stats{}, err
	}
	return stats, nil
}

func (h *AuthHandler) CreateStudent(c echo.Context) error {
	var req CreateStudentRequest
	if err := c.Bind(&req); err != nil {
		return errInvalidRequest()
	}
	if err := req.Validate(); err != nil {
		return err
	}
	user, err := h.service.CreateStudent(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, user)
}

func (h *AuthHandler) GetStudent(c echo.Context) error {
	user, err := h.service.GetStudent(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

func (h *AuthHandler) UpdateStudent(c echo.Context) error {
	var req UpdateStudentRequest
	if err := c.Bind(&req); err != nil {
		return errInvalidRequest()
	}
	if err := req.Validate(); err != nil {
		return err
	}
	user, err := h.service.UpdateStudent(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

func (h *AuthHandler) DeleteStudent(c echo.Context) error {
	if err := h.service.DeleteStudent(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Student deleted"})
}

func (h *AuthHandler) CourseStudents(c echo.Context) error {
	course := c.Param("course")
	if !isCourse(course) {
		return autherr.ErrNotFound
	}
	students, err := h.service.ListStudents(c.Request().Context(), course)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"course":   course,
		"students": students,
	})
}

func isCourse(name string) bool {
	for _, c := range CourseList {
		if c == name {
			return true
		}
	}
	return false
}
