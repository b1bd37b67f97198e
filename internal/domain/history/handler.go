package history

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/meditrack/meditrack/internal/platform/auth"
	"github.com/meditrack/meditrack/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/history", h.List)
	api.GET("/history/export", h.ExportCSV)
}

func (h *Handler) List(c echo.Context) error {
	ownerID := auth.UserIDFromContext(c.Request().Context())
	days, _ := strconv.Atoi(c.QueryParam("days"))
	p := pagination.FromContext(c)

	entries, total, err := h.svc.ListByUser(c.Request().Context(), ownerID, days, p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list history")
	}
	if entries == nil {
		entries = []*Entry{}
	}

	return c.JSON(http.StatusOK, pagination.NewResponse(entries, total, p.Limit, p.Offset))
}

func (h *Handler) ExportCSV(c echo.Context) error {
	ownerID := auth.UserIDFromContext(c.Request().Context())

	data, err := h.svc.ExportCSV(c.Request().Context(), ownerID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to export history")
	}

	filename := "medication-history-" + time.Now().Format("2006-01-02") + ".csv"
	c.Response().Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	return c.Blob(http.StatusOK, "text/csv", data)
}
