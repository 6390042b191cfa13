// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"
	"mime/multipart"

	"github.com/labstack/echo/v4"

	"github.com/semisearch/gateway/internal/backend"
	"github.com/semisearch/gateway/internal/models"
)

// HealthHandler proxies the backend's health and collection info.
type HealthHandler interface {
	HandleHealth(c echo.Context) error
	HandleInfo(c echo.Context) error
}

// UploadHandler relays spreadsheet uploads.
type UploadHandler interface {
	HandleUpload(c echo.Context) error
}

// AskHandler forwards questions.
type AskHandler interface {
	HandleAsk(c echo.Context) error
}

// BackendService is the subset of the backend client the handlers call directly.
// This allows mocking in tests
type BackendService interface {
	Health(ctx context.Context) backend.Result[models.HealthStatus]
	Info(ctx context.Context) backend.Result[models.CollectionInfo]
	Ask(ctx context.Context, req models.AskRequest) backend.Result[models.AskResponse]
}

// UploadForwarder stages and forwards a multipart upload.
type UploadForwarder interface {
	Forward(ctx context.Context, mr *multipart.Reader) backend.Result[models.UploadResult]
	MaxSize() int64
}
