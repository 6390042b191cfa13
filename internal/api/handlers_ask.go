// handlers_ask.go - Question answering handler
package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/semisearch/gateway/internal/models"
)

// AskHandlerImpl implements the AskHandler interface
type AskHandlerImpl struct {
	backend BackendService
	logger  *slog.Logger
}

// NewAskHandler creates a new ask handler
func NewAskHandler(b BackendService, logger *slog.Logger) AskHandler {
	return &AskHandlerImpl{
		backend: b,
		logger:  logger,
	}
}

// askRequest distinguishes an absent n_results from an explicit value.
type askRequest struct {
	Question string `json:"question"`
	NResults *int   `json:"n_results"`
}

func (r *askRequest) validate() error {
	if strings.TrimSpace(r.Question) == "" {
		return NewBadRequestError(MsgQuestionRequired)
	}
	if r.NResults != nil && *r.NResults < 1 {
		return NewBadRequestError(MsgResultCount)
	}
	return nil
}

func (r *askRequest) toModel() models.AskRequest {
	n := models.DefaultResultCount
	if r.NResults != nil {
		n = *r.NResults
	}
	return models.AskRequest{Question: r.Question, ResultCount: n}
}

// HandleAsk validates the question and forwards it to the backend.
func (h *AskHandlerImpl) HandleAsk(c echo.Context) error {
	var req askRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError(MsgQuestionRequired)
	}

	if err := req.validate(); err != nil {
		return err
	}

	res := h.backend.Ask(c.Request().Context(), req.toModel())
	if !res.IsOk() {
		h.logger.Warn("ask failed", "status", res.Err.HTTPStatus, "error", res.Err.Message)
		return NewBackendError(ErrAsk, res.Err)
	}

	if res.Value.Context == nil {
		res.Value.Context = []string{}
	}
	return respond(c, http.StatusOK, res.Value)
}
