package notification

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

type Handler struct {
	repo Repository
}

func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

// ListDeliveries returns recent outbound mail for the admin audit view.
func (h *Handler) ListDeliveries(c echo.Context) error {
	limit := int64(defaultListLimit)
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = min(n, maxListLimit)
	}
	deliveries, err := h.repo.Recent(c.Request().Context(), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, deliveries)
}
