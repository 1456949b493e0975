package intent

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/mediloop/mediloop/internal/domain/identity"
)

type Handler struct {
	engine *Engine
}

func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/intent/route", h.Route)
	g.GET("/intent/history/:id", h.History)
	g.GET("/intent/recent", h.Recent)
}

type routeRequest struct {
	PatientID uuid.UUID `json:"patient_id"`
	Message   string    `json:"message"`
	Source    string    `json:"source"`
}

func (h *Handler) Route(c echo.Context) error {
	var req routeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.PatientID == uuid.Nil || req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_id and message are required")
	}

	result, err := h.engine.Route(c.Request().Context(), req.PatientID, req.Message, req.Source)
	if errors.Is(err, identity.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) History(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	decisions, err := h.engine.History(c.Request().Context(), patientID, 50)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, decisions)
}

func (h *Handler) Recent(c echo.Context) error {
	limit := 20
	if raw := c.QueryParam("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			limit = v
		}
	}
	decisions, err := h.engine.Recent(c.Request().Context(), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, decisions)
}
