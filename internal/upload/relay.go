// Package upload relays inbound spreadsheet uploads to the backend through transient staging.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/semisearch/gateway/internal/backend"
	"github.com/semisearch/gateway/internal/models"
	"github.com/semisearch/gateway/internal/storage"
)

// FileField is the multipart form field that carries the upload.
const FileField = "file"

// Client-facing validation messages.
const (
	MsgNoFile      = "No file provided"
	MsgInvalidType = "Invalid file type. Please upload Excel files (.xlsx or .xls)"
)

// Uploader is the part of the backend client the relay needs.
type Uploader interface {
	Upload(ctx context.Context, req models.UploadRequest) backend.Result[models.UploadResult]
}

// Config controls what the relay accepts.
type Config struct {
	MaxSize          int64
	AllowedMimeTypes []string
}

// DefaultConfig accepts xlsx and legacy xls files up to 10 MiB.
func DefaultConfig() Config {
	return Config{
		MaxSize:          models.MaxUploadSize,
		AllowedMimeTypes: []string{models.MimeXLSX, models.MimeXLS},
	}
}

// Relay validates, stages and forwards uploads.
type Relay struct {
	store   storage.Store
	backend Uploader
	maxSize int64
	allowed map[string]bool
	logger  *slog.Logger
}

// NewRelay creates an upload relay.
func NewRelay(store storage.Store, up Uploader, cfg Config, logger *slog.Logger) *Relay {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = models.MaxUploadSize
	}
	if len(cfg.AllowedMimeTypes) == 0 {
		cfg.AllowedMimeTypes = DefaultConfig().AllowedMimeTypes
	}
	if logger == nil {
		logger = slog.Default()
	}

	allowed := make(map[string]bool, len(cfg.AllowedMimeTypes))
	for _, m := range cfg.AllowedMimeTypes {
		allowed[strings.ToLower(strings.TrimSpace(m))] = true
	}

	return &Relay{
		store:   store,
		backend: up,
		maxSize: cfg.MaxSize,
		allowed: allowed,
		logger:  logger,
	}
}

// MaxSize returns the per-file byte limit.
func (r *Relay) MaxSize() int64 {
	return r.maxSize
}

// Allowed reports whether mimeType is on the allow-list. Parameters are ignored.
func (r *Relay) Allowed(mimeType string) bool {
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return false
	}
	return r.allowed[mt]
}

// Forward reads the "file" part from mr, stages it and streams it to the backend.
// The staged copy is removed before Forward returns, whatever the outcome.
// A nil reader means the request carried no multipart body.
func (r *Relay) Forward(ctx context.Context, mr *multipart.Reader) backend.Result[models.UploadResult] {
	if mr == nil {
		return backend.Fail[models.UploadResult](http.StatusBadRequest, MsgNoFile)
	}

	part, err := nextFilePart(mr)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return backend.Fail[models.UploadResult](http.StatusBadRequest, MsgNoFile)
		}
		return backend.Fail[models.UploadResult](http.StatusBadRequest, fmt.Sprintf("malformed multipart body: %v", err))
	}
	defer part.Close()

	mimeType := part.Header.Get("Content-Type")
	if !r.Allowed(mimeType) {
		r.logger.Info("upload rejected", "file", part.FileName(), "mime", mimeType)
		return backend.Fail[models.UploadResult](http.StatusBadRequest, MsgInvalidType)
	}

	return r.stageAndForward(ctx, part.FileName(), mimeType, part)
}

// ForwardFile runs the same validate/stage/forward sequence for content that did not
// arrive as multipart (e.g. a caller that already has the bytes).
func (r *Relay) ForwardFile(ctx context.Context, name, mimeType string, content io.Reader) backend.Result[models.UploadResult] {
	if name == "" || content == nil {
		return backend.Fail[models.UploadResult](http.StatusBadRequest, MsgNoFile)
	}
	if !r.Allowed(mimeType) {
		return backend.Fail[models.UploadResult](http.StatusBadRequest, MsgInvalidType)
	}
	return r.stageAndForward(ctx, name, mimeType, content)
}

func (r *Relay) stageAndForward(ctx context.Context, name, mimeType string, content io.Reader) backend.Result[models.UploadResult] {
	h, err := r.store.Stage(name, mimeType, content, r.maxSize)
	if errors.Is(err, storage.ErrTooLarge) {
		return backend.Fail[models.UploadResult](http.StatusBadRequest,
			fmt.Sprintf("File too large. Maximum size is %s", humanSize(r.maxSize)))
	}
	if err != nil {
		r.logger.Error("staging upload failed", "file", name, "error", err)
		return backend.Fail[models.UploadResult](http.StatusInternalServerError, fmt.Sprintf("failed to stage upload: %v", err))
	}
	defer func() {
		if err := h.Release(); err != nil {
			r.logger.Error("releasing staged upload failed", "id", h.Info.ID, "error", err)
		}
	}()

	log := r.logger.With("id", h.Info.ID[:8], "file", name)
	log.Debug("upload staged", "size", h.Info.Size)

	f, err := h.Open()
	if err != nil {
		return backend.Fail[models.UploadResult](http.StatusInternalServerError, fmt.Sprintf("failed to open staged upload: %v", err))
	}
	defer f.Close()

	res := r.backend.Upload(ctx, models.UploadRequest{
		FileName:  name,
		MimeType:  mimeType,
		SizeBytes: h.Info.Size,
		Content:   f,
	})
	if res.IsOk() {
		log.Info("upload forwarded", "chunks", res.Value.ChunksProcessed)
	} else {
		log.Warn("upload rejected by backend", "status", res.Err.HTTPStatus, "message", res.Err.Message)
	}
	return res
}

// nextFilePart returns the first part named FileField that carries a filename.
func nextFilePart(mr *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := mr.NextPart()
		if err != nil {
			return nil, err
		}
		if part.FormName() == FileField && part.FileName() != "" {
			return part, nil
		}
		part.Close()
	}
}

func humanSize(n int64) string {
	switch {
	case n >= 1<<20 && n%(1<<20) == 0:
		return fmt.Sprintf("%d MB", n>>20)
	case n >= 1<<10 && n%(1<<10) == 0:
		return fmt.Sprintf("%d KB", n>>10)
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}
