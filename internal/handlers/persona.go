package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/kohanai/kohana/internal/persona"
)

// PersonaHandler exposes persona settings per context over the admin API.
type PersonaHandler struct {
	service *persona.Service
	logger  *slog.Logger
}

// NewPersonaHandler creates a persona handler.
func NewPersonaHandler(log *slog.Logger, service *persona.Service) *PersonaHandler {
	return &PersonaHandler{
		service: service,
		logger:  log.With(slog.String("handler", "persona")),
	}
}

// Register mounts the persona routes on the Echo instance.
func (h *PersonaHandler) Register(e *echo.Echo) {
	group := e.Group("/api/personas/:context_id")
	group.GET("", h.Get)
	group.PATCH("", h.Update)
	group.DELETE("", h.Reset)
	group.POST("/channels/:channel_id", h.AddChannel)
	group.DELETE("/channels/:channel_id", h.RemoveChannel)
	group.POST("/toggles/image-generation", h.ToggleImageGeneration)
	group.POST("/toggles/web-search", h.ToggleWebSearch)
}

func (h *PersonaHandler) Get(c echo.Context) error {
	contextID, err := contextID(c)
	if err != nil {
		return err
	}
	p, err := h.service.Get(c.Request().Context(), contextID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}

func (h *PersonaHandler) Update(c echo.Context) error {
	contextID, err := contextID(c)
	if err != nil {
		return err
	}
	var req persona.UpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.service.Update(c.Request().Context(), contextID, req)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}

func (h *PersonaHandler) Reset(c echo.Context) error {
	contextID, err := contextID(c)
	if err != nil {
		return err
	}
	if err := h.service.Reset(c.Request().Context(), contextID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *PersonaHandler) AddChannel(c echo.Context) error {
	contextID, channelID, err := contextAndChannel(c)
	if err != nil {
		return err
	}
	if err := h.service.AddChannel(c.Request().Context(), contextID, channelID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *PersonaHandler) RemoveChannel(c echo.Context) error {
	contextID, channelID, err := contextAndChannel(c)
	if err != nil {
		return err
	}
	if err := h.service.RemoveChannel(c.Request().Context(), contextID, channelID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *PersonaHandler) ToggleImageGeneration(c echo.Context) error {
	contextID, err := contextID(c)
	if err != nil {
		return err
	}
	enabled, err := h.service.ToggleImageGeneration(c.Request().Context(), contextID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]bool{"image_generation": enabled})
}

func (h *PersonaHandler) ToggleWebSearch(c echo.Context) error {
	contextID, err := contextID(c)
	if err != nil {
		return err
	}
	enabled, err := h.service.ToggleWebSearch(c.Request().Context(), contextID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]bool{"web_search": enabled})
}

func contextID(c echo.Context) (string, error) {
	id := strings.TrimSpace(c.Param("context_id"))
	if id == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, "context id is required")
	}
	return id, nil
}

func contextAndChannel(c echo.Context) (string, string, error) {
	id, err := contextID(c)
	if err != nil {
		return "", "", err
	}
	channelID := strings.TrimSpace(c.Param("channel_id"))
	if channelID == "" {
		return "", "", echo.NewHTTPError(http.StatusBadRequest, "channel id is required")
	}
	return id, channelID, nil
}
