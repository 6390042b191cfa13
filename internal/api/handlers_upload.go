// handlers_upload.go - Spreadsheet upload handler
package api

import (
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/semisearch/gateway/internal/upload"
)

// UploadHandlerImpl implements the UploadHandler interface
type UploadHandlerImpl struct {
	relay  UploadForwarder
	logger *slog.Logger
}

// NewUploadHandler creates a new upload handler instance
func NewUploadHandler(relay UploadForwarder, logger *slog.Logger) UploadHandler {
	return &UploadHandlerImpl{
		relay:  relay,
		logger: logger,
	}
}

// HandleUpload streams the "file" part of a multipart request through the relay.
// The body is read part by part; nothing is buffered in memory beyond the reader.
func (h *UploadHandlerImpl) HandleUpload(c echo.Context) error {
	var mr *multipart.Reader
	if r, err := c.Request().MultipartReader(); err == nil {
		mr = r
	}

	res := h.relay.Forward(c.Request().Context(), mr)
	if !res.IsOk() {
		if res.Err.HTTPStatus == http.StatusBadRequest {
			switch res.Err.Message {
			case upload.MsgNoFile, upload.MsgInvalidType:
				return NewBadRequestError(res.Err.Message)
			}
		}
		return NewBackendError(ErrUpload, res.Err)
	}

	return respond(c, http.StatusOK, res.Value)
}
