package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/kohanai/kohana/internal/memory"
)

// MemoryHandler exposes per-user conversation history over the admin API.
type MemoryHandler struct {
	service *memory.Service
	logger  *slog.Logger
}

// NewMemoryHandler creates a memory handler.
func NewMemoryHandler(log *slog.Logger, service *memory.Service) *MemoryHandler {
	return &MemoryHandler{
		service: service,
		logger:  log.With(slog.String("handler", "memory")),
	}
}

// Register mounts the memory routes on the Echo instance.
func (h *MemoryHandler) Register(e *echo.Echo) {
	e.GET("/api/memory/:user_id", h.History)
	e.DELETE("/api/memory/:user_id", h.Clear)
}

func (h *MemoryHandler) History(c echo.Context) error {
	userID := strings.TrimSpace(c.Param("user_id"))
	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user id is required")
	}
	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = value
	}
	turns, err := h.service.History(c.Request().Context(), userID, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, turns)
}

func (h *MemoryHandler) Clear(c echo.Context) error {
	userID := strings.TrimSpace(c.Param("user_id"))
	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user id is required")
	}
	if err := h.service.Clear(c.Request().Context(), userID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
