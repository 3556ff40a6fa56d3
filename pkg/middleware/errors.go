package middleware

import (
	"errors"
	"net/http"

	"StudentPortal/internal/autherr"
	"StudentPortal/internal/metrics"
	"StudentPortal/internal/observability"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ErrorHandler renders every error returned by a handler or middleware as
// {"error": message}. Validation failures add a per-field map. Upstream
// failures are logged with their cause, counted and reported, but the client
// only sees a generic message.
func ErrorHandler(log *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		body := map[string]interface{}{}

		var (
			he *echo.HTTPError
			ve validation.Errors
			ue *autherr.UpstreamError
		)
		switch {
		case errors.As(err, &ve):
			status = http.StatusBadRequest
			body["error"] = "Invalid request"
			body["fields"] = ve
		case errors.As(err, &he):
			status = he.Code
			if msg, ok := he.Message.(string); ok {
				body["error"] = msg
			} else {
				body["error"] = http.StatusText(status)
			}
		default:
			status = autherr.HTTPStatus(err)
			body["error"] = autherr.PublicMessage(err)
		}

		switch {
		case errors.As(err, &ue):
			metrics.UpstreamErrors.WithLabelValues(ue.Op).Inc()
			observability.CaptureErr(err, requestTags(c))
			log.Error("upstream failure",
				zap.String("op", ue.Op),
				zap.String("path", c.Path()),
				zap.Error(err))
		case status >= http.StatusInternalServerError:
			observability.CaptureErr(err, requestTags(c))
			log.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			log.Warn("write error response", zap.Error(err))
		}
	}
}

func requestTags(c echo.Context) map[string]string {
	return map[string]string{
		"method": c.Request().Method,
		"path":   c.Path(),
	}
}
