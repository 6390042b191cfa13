// errors.go - Structured error handling for API responses
package api

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/semisearch/gateway/internal/backend"
)

// Route-level error summaries returned in the "error" field.
const (
	ErrHealth = "Backend connection failed"
	ErrInfo   = "Failed to get collection info"
	ErrUpload = "Upload failed"
	ErrAsk    = "Failed to get answer"

	MsgQuestionRequired = "Question is required"
	MsgResultCount      = "n_results must be a positive integer"
)

// APIError is the wire error envelope: {"error": summary, "message": detail}.
type APIError struct {
	Status  int    `json:"-"`
	Summary string `json:"error"`
	Message string `json:"message,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Message == "" {
		return e.Summary
	}
	return fmt.Sprintf("%s: %s", e.Summary, e.Message)
}

// NewBadRequestError creates a 400 whose summary is the validation message itself.
func NewBadRequestError(message string) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Summary: message,
	}
}

// NewBackendError wraps a backend failure under a route summary, keeping the
// backend's status and message.
func NewBackendError(summary string, info *backend.ErrorInfo) *APIError {
	if info == nil {
		return NewInternalError(summary, nil)
	}
	status := info.HTTPStatus
	if status < 400 || status > 599 {
		status = http.StatusInternalServerError
	}
	return &APIError{
		Status:  status,
		Summary: summary,
		Message: info.Message,
	}
}

// withStatus overrides the HTTP status, keeping summary and message.
func (e *APIError) withStatus(status int) *APIError {
	e.Status = status
	return e
}

// NewInternalError creates a 500 Internal Server Error
func NewInternalError(summary string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusInternalServerError,
		Summary: summary,
	}
	if cause != nil {
		err.Message = cause.Error()
	}
	return err
}

// ErrorHandler renders every error as the JSON envelope.
// Usage: e.HTTPErrorHandler = api.ErrorHandler
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var apiErr *APIError

	switch e := err.(type) {
	case *APIError:
		apiErr = e
	case *backend.ErrorInfo:
		apiErr = NewBackendError(http.StatusText(e.HTTPStatus), e)
	case *echo.HTTPError:
		apiErr = &APIError{
			Status:  e.Code,
			Summary: http.StatusText(e.Code),
			Message: fmt.Sprintf("%v", e.Message),
		}
		if apiErr.Summary == "" {
			apiErr.Summary = "Request failed"
		}
	default:
		apiErr = NewInternalError("An unexpected error occurred", err)
	}

	if c.Request().Method == http.MethodHead {
		c.NoContent(apiErr.Status)
		return
	}
	respond(c, apiErr.Status, apiErr)
}
