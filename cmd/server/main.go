package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/labstack/echo/v4"

	"github.com/semisearch/gateway/internal/api"
	"github.com/semisearch/gateway/internal/backend"
	"github.com/semisearch/gateway/internal/config"
	"github.com/semisearch/gateway/internal/logging"
	"github.com/semisearch/gateway/internal/storage"
	"github.com/semisearch/gateway/internal/upload"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const (
	// sweepInterval is how often orphaned staged files are looked for.
	sweepInterval = 10 * time.Minute
	// shutdownGrace bounds in-flight requests on shutdown.
	shutdownGrace = 15 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	configPath := config.ConfigPath()
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.Setup(cfg.Logging)
	slog.SetDefault(logger)

	store, err := storage.NewLocalStore(cfg.Upload.StagingDir)
	if err != nil {
		return fmt.Errorf("initializing staging: %w", err)
	}
	// Anything left from a previous run is an orphan.
	if n, err := store.Sweep(0); err != nil {
		logger.Warn("staging sweep failed", "error", err)
	} else if n > 0 {
		logger.Info("removed orphaned staged files", "count", n)
	}
	go sweepLoop(ctx, store, logger)

	client := backend.NewClient(cfg.Backend.URL, backend.Options{
		Timeout:      cfg.Backend.Timeout.Std(),
		MaxRetries:   cfg.Backend.MaxRetries,
		RetryBackoff: cfg.Backend.RetryBackoff.Std(),
		Logger:       logger.With("component", "backend"),
	})

	relay := upload.NewRelay(store, client, upload.Config{
		MaxSize:          cfg.Upload.MaxSize,
		AllowedMimeTypes: cfg.Upload.AllowedMimeTypes,
	}, logger.With("component", "upload"))

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	api.SetupMiddleware(e, api.MiddlewareConfig{
		RequestLogging: cfg.Server.RequestLogging,
		EnableCORS:     cfg.Server.EnableCORS,
		AllowOrigins:   cfg.GetAllowOrigins(),
		Logger:         logger,
	})
	api.RegisterRoutes(e, api.NewHandlers(&api.Dependencies{
		Backend: client,
		Relay:   relay,
		Logger:  logger.With("component", "api"),
	}))

	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
		IdleTimeout:  cfg.Server.IdleTimeout.Std(),
	}

	printBanner(configPath, cfg)

	errCh := make(chan error, 1)
	go func() {
		if err := e.StartServer(s); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	logger.Info("gateway started", "addr", s.Addr, "backend", client.BaseURL())

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func sweepLoop(ctx context.Context, store *storage.LocalStore, logger *slog.Logger) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := store.Sweep(sweepInterval); err != nil {
				logger.Warn("staging sweep failed", "error", err)
			} else if n > 0 {
				logger.Info("removed orphaned staged files", "count", n)
			}
		}
	}
}

func printBanner(configPath string, cfg *config.AppConfig) {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)

	fmt.Println()
	bold.Println("  Semiconductor Search Gateway")
	gray.Printf("  version %s (built %s)\n", Version, BuildTime)
	fmt.Println()

	row := func(label, value string) {
		green.Print("    ▶ ")
		fmt.Printf("%-9s", label)
		cyan.Println(value)
	}
	row("Listen:", "http://"+cfg.GetServerAddr())
	row("Backend:", cfg.Backend.URL)
	row("Config:", configPath)
	row("Staging:", cfg.Upload.StagingDir)
	fmt.Println()
}
