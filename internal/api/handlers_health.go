// handlers_health.go - Health and collection info handlers
package api

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

// HealthHandlerImpl implements the HealthHandler interface
type HealthHandlerImpl struct {
	backend BackendService
	logger  *slog.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(b BackendService, logger *slog.Logger) HealthHandler {
	return &HealthHandlerImpl{
		backend: b,
		logger:  logger,
	}
}

// HandleHealth returns the backend health payload unchanged.
func (h *HealthHandlerImpl) HandleHealth(c echo.Context) error {
	res := h.backend.Health(c.Request().Context())
	if !res.IsOk() {
		h.logger.Warn("backend health check failed", "status", res.Err.HTTPStatus, "error", res.Err.Message)
		return NewBackendError(ErrHealth, res.Err).withStatus(http.StatusInternalServerError)
	}
	return respond(c, http.StatusOK, res.Value)
}

// HandleInfo returns the backend collection info unchanged.
func (h *HealthHandlerImpl) HandleInfo(c echo.Context) error {
	res := h.backend.Info(c.Request().Context())
	if !res.IsOk() {
		h.logger.Warn("backend info failed", "status", res.Err.HTTPStatus, "error", res.Err.Message)
		return NewBackendError(ErrInfo, res.Err).withStatus(http.StatusInternalServerError)
	}
	return respond(c, http.StatusOK, res.Value)
}
