package scheduler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/meditrack/meditrack/internal/domain/medicine"
	"github.com/meditrack/meditrack/internal/platform/auth"
)

// Handler exposes the active reminder set over HTTP.
type Handler struct {
	set *ActiveSet
}

func NewHandler(set *ActiveSet) *Handler {
	return &Handler{set: set}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/reminders", h.ListDue)
	api.POST("/reminders/:id/dismiss", h.Dismiss)
}

// ListDue returns the caller's currently due doses.
func (h *Handler) ListDue(c echo.Context) error {
	ownerID := auth.UserIDFromContext(c.Request().Context())

	due := h.set.Due(ownerID)
	if due == nil {
		due = []*medicine.Dose{}
	}
	return c.JSON(http.StatusOK, due)
}

// Dismiss silences a reminder without recording an outcome. Dismissing a
// reminder that is not ringing is not an error.
func (h *Handler) Dismiss(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid reminder id")
	}

	h.set.Evict(id)
	return c.NoContent(http.StatusNoContent)
}
