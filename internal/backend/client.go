// Package backend wraps the remote document service (ingest and question answering).
//
// Every call returns a Result; transport failures, non-2xx answers and malformed
// payloads are all folded into ErrorInfo so callers only ever pattern-match.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/semisearch/gateway/internal/models"
)

const (
	// DefaultTimeout bounds a single backend call.
	DefaultTimeout = 30 * time.Second

	// maxResponseBytes caps how much of a backend response is read.
	maxResponseBytes = 8 << 20
)

// Options tunes a Client. Zero values fall back to defaults.
type Options struct {
	Timeout      time.Duration
	MaxRetries   int // idempotent GETs only
	RetryBackoff time.Duration
	HTTPClient   *http.Client
	Logger       *slog.Logger
}

// Client talks to the backend over HTTP.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	timeout      time.Duration
	maxRetries   int
	retryBackoff time.Duration
	logger       *slog.Logger
}

// NewClient creates a backend client rooted at baseURL.
func NewClient(baseURL string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 200 * time.Millisecond
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		httpClient:   opts.HTTPClient,
		timeout:      opts.Timeout,
		maxRetries:   opts.MaxRetries,
		retryBackoff: opts.RetryBackoff,
		logger:       opts.Logger,
	}
}

// BaseURL returns the backend root this client targets.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Health probes the backend health endpoint.
func (c *Client) Health(ctx context.Context) Result[models.HealthStatus] {
	return getJSON[models.HealthStatus](ctx, c, "/health")
}

// Info fetches collection information.
func (c *Client) Info(ctx context.Context) Result[models.CollectionInfo] {
	return getJSON[models.CollectionInfo](ctx, c, "/info")
}

// Ask submits a question. It is never retried.
func (c *Client) Ask(ctx context.Context, req models.AskRequest) Result[models.AskResponse] {
	if strings.TrimSpace(req.Question) == "" {
		return Fail[models.AskResponse](http.StatusBadRequest, "question is required")
	}
	if req.ResultCount <= 0 {
		req.ResultCount = models.DefaultResultCount
	}

	body, err := json.Marshal(req)
	if err != nil {
		return Fail[models.AskResponse](http.StatusInternalServerError, fmt.Sprintf("encoding ask request: %v", err))
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ask", bytes.NewReader(body))
	if err != nil {
		return Fail[models.AskResponse](http.StatusInternalServerError, err.Error())
	}
	httpReq.Header.Set("Content-Type", "application/json")

	return send[models.AskResponse](c, httpReq)
}

// Upload streams a file to the backend as multipart field "file". It is never retried
// and does not touch req.Content after it returns.
func (c *Client) Upload(ctx context.Context, req models.UploadRequest) Result[models.UploadResult] {
	if req.FileName == "" {
		return Fail[models.UploadResult](http.StatusBadRequest, "file name is required")
	}
	if req.Content == nil {
		return Fail[models.UploadResult](http.StatusBadRequest, "file content is required")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	done := make(chan struct{})

	go func() {
		defer close(done)
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(req.FileName)))
		if req.MimeType != "" {
			h.Set("Content-Type", req.MimeType)
		} else {
			h.Set("Content-Type", "application/octet-stream")
		}
		part, err := mw.CreatePart(h)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, req.Content); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", pr)
	if err != nil {
		pr.Close()
		<-done
		return Fail[models.UploadResult](http.StatusInternalServerError, err.Error())
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	res := send[models.UploadResult](c, httpReq)

	// The writer goroutine must stop reading req.Content before we hand it back.
	pr.Close()
	<-done

	return res
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// getJSON performs a GET with the configured retry budget for transport failures.
func getJSON[T any](ctx context.Context, c *Client, path string) Result[T] {
	var res Result[T]
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := time.Duration(attempt) * c.retryBackoff
			c.logger.DebugContext(ctx, "retrying backend request", "path", path, "attempt", attempt, "wait", wait)
			select {
			case <-ctx.Done():
				return transportFailure[T](c, ctx.Err())
			case <-time.After(wait):
			}
		}

		res = getOnce[T](ctx, c, path)
		if res.IsOk() || !isTransportFailure(res.Err) {
			return res
		}
	}
	return res
}

func getOnce[T any](ctx context.Context, c *Client, path string) Result[T] {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return Fail[T](http.StatusInternalServerError, err.Error())
	}
	req.Header.Set("Accept", "application/json")
	return send[T](c, req)
}

// send executes req and folds every outcome into a Result.
func send[T any](c *Client, req *http.Request) Result[T] {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("backend request failed", "method", req.Method, "path", req.URL.Path, "error", err)
		return transportFailure[T](c, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return transportFailure[T](c, err)
	}

	c.logger.Debug("backend response",
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Fail[T](resp.StatusCode, errorMessage(data, resp.StatusCode))
	}

	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return Fail[T](http.StatusInternalServerError, fmt.Sprintf("invalid backend response: %v", err))
	}
	return Ok(out)
}

const transportMarker = "backend unreachable"

func transportFailure[T any](c *Client, err error) Result[T] {
	msg := fmt.Sprintf("%s: %v", transportMarker, err)
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		msg = fmt.Sprintf("%s: request timed out after %s", transportMarker, c.timeout)
	}
	res := Fail[T](http.StatusInternalServerError, msg)
	res.Err.Transport = true
	return res
}

func isTransportFailure(e *ErrorInfo) bool {
	return e != nil && e.Transport
}

// errorMessage extracts the backend's structured error text. FastAPI-style services
// put it under "detail"; anything else falls back to a generic status message.
func errorMessage(data []byte, status int) string {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(data, &payload); err == nil {
		for _, key := range []string{"detail", "message", "error"} {
			raw, ok := payload[key]
			if !ok {
				continue
			}
			var s string
			if err := json.Unmarshal(raw, &s); err == nil {
				if s != "" {
					return s
				}
				continue
			}
			return string(raw)
		}
	}
	return fmt.Sprintf("Request failed with status code %d", status)
}
