package frontend

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/semisearch/gateway/internal/backend"
	"github.com/semisearch/gateway/internal/models"
)

// fakeClock runs timers synchronously from Advance.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	when    time.Time
	fn      func()
	fired   bool
	stopped bool
	clock   *fakeClock
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{when: c.now.Add(d), fn: f, clock: c}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.fired && !t.stopped
	t.stopped = true
	return active
}

// Advance moves time forward, firing due timers in order, including timers
// scheduled by the callbacks themselves.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var next *fakeTimer
		for _, t := range c.timers {
			if t.fired || t.stopped || t.when.After(target) {
				continue
			}
			if next == nil || t.when.Before(next.when) {
				next = t
			}
		}
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		next.fired = true
		c.now = next.when
		c.mu.Unlock()

		next.fn()
	}
}

// stubGateway returns canned results and can hold calls open.
type stubGateway struct {
	mu    sync.Mutex
	calls map[string]int

	health backend.Result[models.HealthStatus]
	info   backend.Result[models.CollectionInfo]
	upload backend.Result[models.UploadResult]
	ask    backend.Result[models.AskResponse]

	lastAsk    models.AskRequest
	lastUpload models.UploadRequest

	// onUpload and onAsk run inside the call, before it returns.
	onUpload func()
	onAsk    func()
	// infoCalled is closed on the first Info call.
	infoCalled chan struct{}
	healthWait time.Duration
	sawInfo    bool
}

func newStubGateway() *stubGateway {
	return &stubGateway{
		calls:  make(map[string]int),
		health: backend.Ok(models.HealthStatus{"status": "healthy"}),
		info: backend.Ok(models.CollectionInfo{
			DocumentCount:  12,
			CollectionName: "semiconductor_components",
			Status:         "active",
		}),
		upload: backend.Ok(models.UploadResult{
			Message:         "File uploaded and processed successfully",
			ChunksProcessed: 42,
		}),
		ask: backend.Ok(models.AskResponse{
			Answer:  "Part: X0042\nIt is a 3.3V regulator.",
			Context: []string{"X0042 | LDO regulator | 3.3V"},
		}),
		infoCalled: make(chan struct{}),
	}
}

func (g *stubGateway) count(name string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[name]
}

func (g *stubGateway) hit(name string) {
	g.mu.Lock()
	g.calls[name]++
	g.mu.Unlock()
}

func (g *stubGateway) Health(ctx context.Context) backend.Result[models.HealthStatus] {
	g.hit("health")
	if g.healthWait > 0 {
		select {
		case <-g.infoCalled:
			g.mu.Lock()
			g.sawInfo = true
			g.mu.Unlock()
		case <-time.After(g.healthWait):
		}
	}
	return g.health
}

func (g *stubGateway) Info(ctx context.Context) backend.Result[models.CollectionInfo] {
	g.mu.Lock()
	g.calls["info"]++
	first := g.calls["info"] == 1
	res := g.info
	g.mu.Unlock()
	if first {
		close(g.infoCalled)
	}
	return res
}

func (g *stubGateway) Upload(ctx context.Context, req models.UploadRequest) backend.Result[models.UploadResult] {
	g.hit("upload")
	if req.Content != nil {
		io.Copy(io.Discard, req.Content)
	}
	g.mu.Lock()
	g.lastUpload = req
	g.mu.Unlock()
	if g.onUpload != nil {
		g.onUpload()
	}
	return g.upload
}

func (g *stubGateway) Ask(ctx context.Context, req models.AskRequest) backend.Result[models.AskResponse] {
	g.hit("ask")
	g.mu.Lock()
	g.lastAsk = req
	g.mu.Unlock()
	if g.onAsk != nil {
		g.onAsk()
	}
	return g.ask
}

func transportErr[T any]() backend.Result[T] {
	res := backend.Fail[T](http.StatusInternalServerError, "backend unreachable: connection refused")
	res.Err.Transport = true
	return res
}

func messages(s UIState) []string {
	var out []string
	for _, n := range s.Notifications {
		out = append(out, n.Message)
	}
	return out
}
