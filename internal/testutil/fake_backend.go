// fake_backend.go - In-process stand-in for the document service used in tests
package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// ReceivedUpload records one file received by the fake backend.
type ReceivedUpload struct {
	FileName    string
	ContentType string
	Data        []byte
}

// FakeBackend serves /health, /info, /upload and /ask with canned responses
// and counts every call it receives.
type FakeBackend struct {
	Server *httptest.Server

	mu            sync.Mutex
	calls         map[string]int
	uploads       []ReceivedUpload
	lastAsk       map[string]interface{}
	documentCount int

	// Overrides; a zero status means "behave normally".
	HealthStatus    int
	InfoStatus      int
	UploadStatus    int
	AskStatus       int
	ErrorDetail     string
	ChunksPerUpload int
	AskAnswer       string
	AskContext      []string
	AskDelay        time.Duration
	RawAskBody      string
	RawInfoBody     string
	UploadExtra     map[string]interface{}
}

// NewFakeBackend starts a fake backend. Call Close when done.
func NewFakeBackend() *FakeBackend {
	f := &FakeBackend{
		calls:           make(map[string]int),
		ChunksPerUpload: 42,
		AskAnswer:       "Answer: part X0042 is a voltage regulator.",
		AskContext:      []string{"X0042 | LDO regulator | 3.3V"},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", f.handleHealth)
	mux.HandleFunc("/info", f.handleInfo)
	mux.HandleFunc("/upload", f.handleUpload)
	mux.HandleFunc("/ask", f.handleAsk)
	f.Server = httptest.NewServer(mux)
	return f
}

// URL returns the fake backend's base URL.
func (f *FakeBackend) URL() string {
	return f.Server.URL
}

// Close shuts the server down.
func (f *FakeBackend) Close() {
	f.Server.Close()
}

// Calls returns how many times path was hit.
func (f *FakeBackend) Calls(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

// TotalCalls returns the number of requests received on any path.
func (f *FakeBackend) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

// Uploads returns a copy of the received uploads.
func (f *FakeBackend) Uploads() []ReceivedUpload {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ReceivedUpload, len(f.uploads))
	copy(out, f.uploads)
	return out
}

// LastAsk returns the JSON body of the most recent ask call.
func (f *FakeBackend) LastAsk() map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastAsk
}

// DocumentCount returns the current number of stored chunks.
func (f *FakeBackend) DocumentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.documentCount
}

func (f *FakeBackend) hit(path string) {
	f.mu.Lock()
	f.calls[path]++
	f.mu.Unlock()
}

func (f *FakeBackend) fail(w http.ResponseWriter, status int) {
	detail := f.ErrorDetail
	if detail == "" {
		detail = "backend failure"
	}
	writeJSON(w, status, map[string]string{"detail": detail})
}

func (f *FakeBackend) handleHealth(w http.ResponseWriter, r *http.Request) {
	f.hit("/health")
	if f.HealthStatus != 0 {
		f.fail(w, f.HealthStatus)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "semiconductor-search-api"})
}

func (f *FakeBackend) handleInfo(w http.ResponseWriter, r *http.Request) {
	f.hit("/info")
	if f.InfoStatus != 0 {
		f.fail(w, f.InfoStatus)
		return
	}
	if f.RawInfoBody != "" {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, f.RawInfoBody)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"collection_name": "semiconductor_components",
		"document_count":  f.DocumentCount(),
		"status":          "active",
	})
}

func (f *FakeBackend) handleUpload(w http.ResponseWriter, r *http.Request) {
	f.hit("/upload")
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "file field missing"})
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		f.fail(w, http.StatusInternalServerError)
		return
	}

	if f.UploadStatus != 0 {
		f.fail(w, f.UploadStatus)
		return
	}

	f.mu.Lock()
	f.uploads = append(f.uploads, ReceivedUpload{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	f.documentCount += f.ChunksPerUpload
	f.mu.Unlock()

	body := map[string]interface{}{
		"message":          "File uploaded and processed successfully",
		"filename":         header.Filename,
		"chunks_processed": f.ChunksPerUpload,
		"status":           "ready_for_queries",
	}
	for k, v := range f.UploadExtra {
		body[k] = v
	}
	writeJSON(w, http.StatusOK, body)
}

func (f *FakeBackend) handleAsk(w http.ResponseWriter, r *http.Request) {
	f.hit("/ask")
	var body map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "invalid body"})
		return
	}
	f.mu.Lock()
	f.lastAsk = body
	f.mu.Unlock()

	if f.AskDelay > 0 {
		select {
		case <-time.After(f.AskDelay):
		case <-r.Context().Done():
			return
		}
	}

	if f.AskStatus != 0 {
		f.fail(w, f.AskStatus)
		return
	}
	if f.RawAskBody != "" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, f.RawAskBody)
		return
	}

	question, _ := body["question"].(string)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"answer":  f.AskAnswer,
		"context": f.AskContext,
		"query":   question,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
