package backend

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/semisearch/gateway/internal/models"
	"github.com/semisearch/gateway/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietOptions() Options {
	return Options{Timeout: 2 * time.Second, Logger: testutil.DiscardLogger()}
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient("http://localhost:8001/", Options{})

	assert.Equal(t, "http://localhost:8001", c.BaseURL())
	assert.Equal(t, DefaultTimeout, c.timeout)
	assert.Equal(t, 0, c.maxRetries)
	assert.NotNil(t, c.logger)
}

func TestClient_HealthAndInfo(t *testing.T) {
	fb := testutil.NewFakeBackend()
	defer fb.Close()
	c := NewClient(fb.URL(), quietOptions())

	health := c.Health(context.Background())
	require.True(t, health.IsOk())
	assert.Equal(t, "healthy", health.Value["status"])

	info := c.Info(context.Background())
	require.True(t, info.IsOk())
	assert.Equal(t, "semiconductor_components", info.Value.CollectionName)
	assert.Equal(t, 0, info.Value.DocumentCount)
}

func TestClient_InfoIsStableWithoutUploads(t *testing.T) {
	fb := testutil.NewFakeBackend()
	defer fb.Close()
	c := NewClient(fb.URL(), quietOptions())

	first := c.Info(context.Background())
	second := c.Info(context.Background())
	require.True(t, first.IsOk())
	require.True(t, second.IsOk())
	assert.Equal(t, first.Value.DocumentCount, second.Value.DocumentCount)
}

func TestClient_InfoKeepsRawPayload(t *testing.T) {
	fb := testutil.NewFakeBackend()
	defer fb.Close()
	fb.RawInfoBody = `{"error":"chroma down"}`
	c := NewClient(fb.URL(), quietOptions())

	res := c.Info(context.Background())

	require.True(t, res.IsOk())
	assert.Equal(t, "chroma down", res.Value.Error)
	assert.Equal(t, 0, res.Value.DocumentCount)
	assert.JSONEq(t, `{"error":"chroma down"}`, string(res.Value.RawJSON()))
}

func TestClient_BackendErrorPassesThrough(t *testing.T) {
	fb := testutil.NewFakeBackend()
	defer fb.Close()
	fb.AskStatus = http.StatusServiceUnavailable
	fb.ErrorDetail = "Error processing question: model not loaded"
	c := NewClient(fb.URL(), quietOptions())

	res := c.Ask(context.Background(), models.AskRequest{Question: "What is part X0042?"})

	require.False(t, res.IsOk())
	assert.Equal(t, http.StatusServiceUnavailable, res.Err.HTTPStatus)
	assert.Equal(t, "Error processing question: model not loaded", res.Err.Message)
	assert.False(t, res.Err.Transport)
}

func TestClient_ErrorMessageFallbacks(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "detail string", body: `{"detail":"bad file"}`, want: "bad file"},
		{name: "detail list", body: `{"detail":[{"loc":["body"],"msg":"field required"}]}`, want: `[{"loc":["body"],"msg":"field required"}]`},
		{name: "message field", body: `{"message":"nope"}`, want: "nope"},
		{name: "plain text", body: `Internal Server Error`, want: "Request failed with status code 502"},
		{name: "empty detail", body: `{"detail":""}`, want: "Request failed with status code 502"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errorMessage([]byte(tt.body), http.StatusBadGateway))
		})
	}
}

func TestClient_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(url, quietOptions())
	res := c.Health(context.Background())

	require.False(t, res.IsOk())
	assert.Equal(t, http.StatusInternalServerError, res.Err.HTTPStatus)
	assert.True(t, strings.HasPrefix(res.Err.Message, "backend unreachable"))
	assert.True(t, res.Err.Transport)
}

func TestClient_MalformedResponse(t *testing.T) {
	fb := testutil.NewFakeBackend()
	defer fb.Close()
	fb.RawAskBody = `{"answer": `
	c := NewClient(fb.URL(), quietOptions())

	res := c.Ask(context.Background(), models.AskRequest{Question: "q"})

	require.False(t, res.IsOk())
	assert.Equal(t, http.StatusInternalServerError, res.Err.HTTPStatus)
	assert.Contains(t, res.Err.Message, "invalid backend response")
}

func TestClient_TimeoutResolvesToFailure(t *testing.T) {
	fb := testutil.NewFakeBackend()
	defer fb.Close()
	fb.AskDelay = time.Second
	c := NewClient(fb.URL(), Options{Timeout: 50 * time.Millisecond, Logger: testutil.DiscardLogger()})

	start := time.Now()
	res := c.Ask(context.Background(), models.AskRequest{Question: "slow?"})

	require.False(t, res.IsOk())
	assert.Equal(t, http.StatusInternalServerError, res.Err.HTTPStatus)
	assert.Contains(t, res.Err.Message, "timed out")
	assert.Less(t, time.Since(start), 900*time.Millisecond)
}

func TestClient_AskValidation(t *testing.T) {
	fb := testutil.NewFakeBackend()
	defer fb.Close()
	c := NewClient(fb.URL(), quietOptions())

	for _, q := range []string{"", "   ", "\n\t"} {
		res := c.Ask(context.Background(), models.AskRequest{Question: q})
		require.False(t, res.IsOk())
		assert.Equal(t, http.StatusBadRequest, res.Err.HTTPStatus)
	}
	assert.Equal(t, 0, fb.TotalCalls())
}

func TestClient_AskDefaultsResultCount(t *testing.T) {
	fb := testutil.NewFakeBackend()
	defer fb.Close()
	c := NewClient(fb.URL(), quietOptions())

	res := c.Ask(context.Background(), models.AskRequest{Question: "What is part X0042?"})

	require.True(t, res.IsOk())
	assert.Equal(t, "What is part X0042?", res.Value.Query)
	assert.EqualValues(t, 5, fb.LastAsk()["n_results"])
}

func TestClient_UploadStreamsMultipart(t *testing.T) {
	fb := testutil.NewFakeBackend()
	defer fb.Close()
	c := NewClient(fb.URL(), quietOptions())

	res := c.Upload(context.Background(), models.UploadRequest{
		FileName: `parts "v2".xlsx`,
		MimeType: models.MimeXLSX,
		Content:  strings.NewReader("PK\x03\x04 spreadsheet bytes"),
	})

	require.True(t, res.IsOk(), "unexpected failure: %+v", res.Err)
	assert.Equal(t, 42, res.Value.ChunksProcessed)

	uploads := fb.Uploads()
	require.Len(t, uploads, 1)
	assert.Equal(t, `parts "v2".xlsx`, uploads[0].FileName)
	assert.Equal(t, models.MimeXLSX, uploads[0].ContentType)
	assert.Equal(t, "PK\x03\x04 spreadsheet bytes", string(uploads[0].Data))
}

func TestClient_UploadValidation(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", quietOptions())

	res := c.Upload(context.Background(), models.UploadRequest{Content: strings.NewReader("x")})
	assert.Equal(t, http.StatusBadRequest, res.Err.HTTPStatus)

	res = c.Upload(context.Background(), models.UploadRequest{FileName: "a.xlsx"})
	assert.Equal(t, http.StatusBadRequest, res.Err.HTTPStatus)
}

// trackingReader reports whether it is read after the owner has finished with it.
type trackingReader struct {
	r      io.Reader
	closed atomic.Bool
	late   atomic.Bool
}

func (t *trackingReader) Read(p []byte) (int, error) {
	if t.closed.Load() {
		t.late.Store(true)
	}
	return t.r.Read(p)
}

func TestClient_UploadStopsReadingOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"detail":"Error processing file: bad sheet"}`)
	}))
	defer srv.Close()
	c := NewClient(srv.URL, quietOptions())

	tr := &trackingReader{r: strings.NewReader(strings.Repeat("x", 4096))}
	res := c.Upload(context.Background(), models.UploadRequest{FileName: "a.xlsx", Content: tr})
	tr.closed.Store(true)

	require.False(t, res.IsOk())
	assert.Equal(t, http.StatusInternalServerError, res.Err.HTTPStatus)
	assert.Equal(t, "Error processing file: bad sheet", res.Err.Message)

	time.Sleep(20 * time.Millisecond)
	assert.False(t, tr.late.Load(), "content was read after Upload returned")
}

func TestClient_GetRetriesTransportFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			// Drop the connection on the first attempt.
			conn, _, err := w.(http.Hijacker).Hijack()
			if err == nil {
				conn.Close()
			}
			return
		}
		io.WriteString(w, `{"status":"healthy"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, Options{
		Timeout:      time.Second,
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
		Logger:       testutil.DiscardLogger(),
	})

	res := c.Health(context.Background())
	require.True(t, res.IsOk(), "unexpected failure: %+v", res.Err)
	assert.EqualValues(t, 2, hits.Load())
}

func TestClient_GetDoesNotRetryBackendErrors(t *testing.T) {
	fb := testutil.NewFakeBackend()
	defer fb.Close()
	fb.InfoStatus = http.StatusInternalServerError
	c := NewClient(fb.URL(), Options{MaxRetries: 3, RetryBackoff: time.Millisecond, Logger: testutil.DiscardLogger()})

	res := c.Info(context.Background())

	require.False(t, res.IsOk())
	assert.Equal(t, 1, fb.Calls("/info"))
}

func TestResult(t *testing.T) {
	ok := Ok(3)
	v, err := ok.Unwrap()
	assert.True(t, ok.IsOk())
	assert.Equal(t, 3, v)
	assert.Nil(t, err)

	failed := Fail[int](0, "boom")
	assert.False(t, failed.IsOk())
	assert.Equal(t, http.StatusInternalServerError, failed.Err.HTTPStatus)
	assert.EqualError(t, failed.Err, "backend error 500: boom")
}
