package frontend

import (
	"context"
	"strings"

	"github.com/semisearch/gateway/internal/backend"
	"github.com/semisearch/gateway/internal/models"
)

// Gateway is the HTTP surface the controller drives.
type Gateway interface {
	Health(ctx context.Context) backend.Result[models.HealthStatus]
	Info(ctx context.Context) backend.Result[models.CollectionInfo]
	Upload(ctx context.Context, req models.UploadRequest) backend.Result[models.UploadResult]
	Ask(ctx context.Context, req models.AskRequest) backend.Result[models.AskResponse]
}

var _ Gateway = (*backend.Client)(nil)

// NewHTTPGateway returns a Gateway for the gateway server at baseURL. The /api
// routes mirror the backend's paths and their error envelope ("message", then
// "error") is read the same way, so the backend client serves both.
func NewHTTPGateway(baseURL string, opts backend.Options) *backend.Client {
	return backend.NewClient(strings.TrimSuffix(baseURL, "/")+"/api", opts)
}
