package medicine

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/meditrack/meditrack/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/medicines", h.Create)
	api.GET("/medicines", h.List)
	api.GET("/medicines/low-stock", h.ListLowStock)
	api.GET("/medicines/missed", h.ListMissed)
	api.GET("/medicines/:id", h.Get)
	api.PUT("/medicines/:id", h.Update)
	api.DELETE("/medicines/:id", h.Delete)
	api.POST("/medicines/:id/taken", h.MarkTaken)
	api.POST("/medicines/:id/reschedule", h.Reschedule)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, ErrNotFound.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
}

func doseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid medicine id")
	}
	return id, nil
}

func (h *Handler) Create(c echo.Context) error {
	ownerID := auth.UserIDFromContext(c.Request().Context())

	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ids, err := h.svc.Create(c.Request().Context(), ownerID, in)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{"ids": ids})
}

func (h *Handler) List(c echo.Context) error {
	ownerID := auth.UserIDFromContext(c.Request().Context())

	doses, err := h.svc.List(c.Request().Context(), ownerID)
	if err != nil {
		return httpError(err)
	}
	if doses == nil {
		doses = []*Dose{}
	}
	return c.JSON(http.StatusOK, doses)
}

func (h *Handler) Get(c echo.Context) error {
	ownerID := auth.UserIDFromContext(c.Request().Context())
	id, err := doseID(c)
	if err != nil {
		return err
	}

	d, err := h.svc.Get(c.Request().Context(), ownerID, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) Update(c echo.Context) error {
	ownerID := auth.UserIDFromContext(c.Request().Context())
	id, err := doseID(c)
	if err != nil {
		return err
	}

	var in UpdateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	d, err := h.svc.Update(c.Request().Context(), ownerID, id, in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) Delete(c echo.Context) error {
	ownerID := auth.UserIDFromContext(c.Request().Context())
	id, err := doseID(c)
	if err != nil {
		return err
	}

	if err := h.svc.Delete(c.Request().Context(), ownerID, id, c.QueryParam("scope")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) MarkTaken(c echo.Context) error {
	ownerID := auth.UserIDFromContext(c.Request().Context())
	id, err := doseID(c)
	if err != nil {
		return err
	}

	var body struct {
		Notes string `json:"notes"`
	}
	// Body is optional for this endpoint.
	_ = c.Bind(&body)

	stock, already, err := h.svc.MarkTaken(c.Request().Context(), ownerID, id, body.Notes)
	if err != nil {
		return httpError(err)
	}

	message := "medicine marked as taken"
	if already {
		message = "medicine already taken"
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"stock":   stock,
		"message": message,
	})
}

func (h *Handler) Reschedule(c echo.Context) error {
	ownerID := auth.UserIDFromContext(c.Request().Context())
	id, err := doseID(c)
	if err != nil {
		return err
	}

	var body struct {
		Minutes int `json:"minutes"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if body.Minutes == 0 {
		if m, convErr := strconv.Atoi(c.QueryParam("minutes")); convErr == nil {
			body.Minutes = m
		}
	}

	newTime, err := h.svc.Reschedule(c.Request().Context(), ownerID, id, body.Minutes)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"scheduled_time": newTime.String()})
}

func (h *Handler) ListLowStock(c echo.Context) error {
	ownerID := auth.UserIDFromContext(c.Request().Context())

	doses, err := h.svc.ListLowStock(c.Request().Context(), ownerID)
	if err != nil {
		return httpError(err)
	}
	if doses == nil {
		doses = []*Dose{}
	}
	return c.JSON(http.StatusOK, doses)
}

func (h *Handler) ListMissed(c echo.Context) error {
	ownerID := auth.UserIDFromContext(c.Request().Context())

	doses, err := h.svc.ListMissed(c.Request().Context(), ownerID)
	if err != nil {
		return httpError(err)
	}
	if doses == nil {
		doses = []*Dose{}
	}
	return c.JSON(http.StatusOK, doses)
}
