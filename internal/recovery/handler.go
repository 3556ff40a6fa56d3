package recovery

import (
	"errors"
	"net/http"
	"regexp"
	"time"

	"StudentPortal/internal/autherr"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// SessionCookie carries the recovery session id.
const SessionCookie = "recovery_session"

var codePattern = regexp.MustCompile(`^\d{6}$`)

type ForgotPasswordRequest struct {
	Email string `json:"email" form:"email"`
}

func (r ForgotPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

type VerifyCodeRequest struct {
	Email string `json:"email" form:"email"`
	Code  string `json:"code" form:"code"`
}

func (r VerifyCodeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, is.Email),
		validation.Field(&r.Code, validation.Required, validation.Match(codePattern).Error("must be 6 digits")),
	)
}

type ResetPasswordRequest struct {
	Email           string `json:"email" form:"email"`
	Password        string `json:"password" form:"password"`
	ConfirmPassword string `json:"confirmPassword" form:"confirmPassword"`
}

func (r ResetPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 128)),
		validation.Field(&r.ConfirmPassword, validation.Required),
	)
}

type Handler struct {
	machine *Machine
	ttl     time.Duration
	secure  bool
	log     *zap.Logger
}

func NewHandler(machine *Machine, secureCookie bool, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{machine: machine, ttl: machine.ttl, secure: secureCookie, log: log.Named("recovery")}
}

type stepResponse struct {
	Message string `json:"message"`
	Stage   Stage  `json:"stage"`
	Next    string `json:"next,omitempty"`
}

func (h *Handler) ForgotPassword(c echo.Context) error {
	var req ForgotPasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request")
	}
	if err := req.Validate(); err != nil {
		return err
	}

	// A new session id per request; the previous session is discarded.
	ctx := c.Request().Context()
	sid := uuid.NewString()
	if err := h.machine.RequestReset(ctx, sid, req.Email); err != nil {
		if errors.Is(err, autherr.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "No account found with that email")
		}
		return err
	}
	if old := h.sessionID(c); old != "" {
		if err := h.machine.Abandon(ctx, old); err != nil {
			// The old context expires on its own; the new flow is already live.
			h.log.Warn("discard previous recovery session", zap.Error(err))
		}
	}
	h.setCookie(c, sid)
	return c.JSON(http.StatusOK, stepResponse{
		Message: "OTP sent to your email",
		Stage:   StageAwaitingCode,
		Next:    "/verify-otp",
	})
}

func (h *Handler) VerifyCode(c echo.Context) error {
	var req VerifyCodeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request")
	}
	if err := req.Validate(); err != nil {
		return err
	}
	if err := h.machine.SubmitCode(c.Request().Context(), h.sessionID(c), req.Email, req.Code); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stepResponse{
		Message: "OTP verified",
		Stage:   StageAwaitingReset,
		Next:    "/reset-password",
	})
}

func (h *Handler) ResetPassword(c echo.Context) error {
	var req ResetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request")
	}
	if err := req.Validate(); err != nil {
		return err
	}
	err := h.machine.SubmitNewPassword(c.Request().Context(), h.sessionID(c), req.Email, req.Password, req.ConfirmPassword)
	if err != nil {
		return err
	}
	h.clearCookie(c)
	return c.JSON(http.StatusOK, stepResponse{
		Message: "Password reset successful. Please log in.",
		Stage:   StageIdle,
		Next:    "/login",
	})
}

func (h *Handler) Cancel(c echo.Context) error {
	if err := h.machine.Abandon(c.Request().Context(), h.sessionID(c)); err != nil {
		return err
	}
	h.clearCookie(c)
	return c.JSON(http.StatusOK, stepResponse{Message: "Password recovery cancelled", Stage: StageIdle, Next: "/login"})
}

func (h *Handler) Status(c echo.Context) error {
	stage, err := h.machine.Stage(c.Request().Context(), h.sessionID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]Stage{"stage": stage})
}

func (h *Handler) sessionID(c echo.Context) string {
	cookie, err := c.Cookie(SessionCookie)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func (h *Handler) setCookie(c echo.Context, sid string) {
	c.SetCookie(&http.Cookie{
		Name:     SessionCookie,
		Value:    sid,
		Path:     "/",
		MaxAge:   int(h.ttl / time.Second),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) clearCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteStrictMode,
	})
}
