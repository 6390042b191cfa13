// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// multipartOverhead is the allowance on top of the file limit for multipart framing.
const multipartOverhead = 1 << 20

// Dependencies holds all handler dependencies
type Dependencies struct {
	Backend BackendService
	Relay   UploadForwarder
	Logger  *slog.Logger
}

// Handlers holds all handler instances
type Handlers struct {
	Health HealthHandler
	Upload UploadHandler
	Ask    AskHandler

	uploadLimit int64
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		Health:      NewHealthHandler(deps.Backend, logger),
		Upload:      NewUploadHandler(deps.Relay, logger),
		Ask:         NewAskHandler(deps.Backend, logger),
		uploadLimit: deps.Relay.MaxSize() + multipartOverhead,
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	g := e.Group("/api")
	g.GET("/health", handlers.Health.HandleHealth)
	g.GET("/info", handlers.Health.HandleInfo)
	g.POST("/ask", handlers.Ask.HandleAsk)

	limit := middleware.BodyLimit(bodyLimitString(handlers.uploadLimit))
	g.POST("/upload", handlers.Upload.HandleUpload, limit)
}

// bodyLimitString renders n bytes in the unit syntax echo's BodyLimit parses.
func bodyLimitString(n int64) string {
	if n%1024 == 0 {
		return fmt.Sprintf("%dK", n/1024)
	}
	return fmt.Sprintf("%dB", n)
}

// MiddlewareConfig selects the optional middleware.
type MiddlewareConfig struct {
	RequestLogging bool
	EnableCORS     bool
	AllowOrigins   []string
	Logger         *slog.Logger
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, cfg MiddlewareConfig) {
	// Use custom error handler
	e.HTTPErrorHandler = ErrorHandler

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			if cfg.Logger != nil {
				cfg.Logger.Error("handler panic", "path", c.Path(), "error", err)
			}
			return err
		},
	}))

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string { return uuid.New().String() },
	}))

	if cfg.RequestLogging {
		e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
			Skipper: func(c echo.Context) bool {
				return strings.HasSuffix(c.Path(), "/health")
			},
			Format: "${time_rfc3339} ${id} ${method} ${uri} ${status} ${latency_human}\n",
		}))
	}

	if cfg.EnableCORS {
		origins := cfg.AllowOrigins
		if len(origins) == 0 {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
		}))
	}

	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/api/upload"
		},
	}))
}
