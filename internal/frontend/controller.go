package frontend

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/semisearch/gateway/internal/models"
)

// Rejected transitions. The matching notification has already been enqueued.
var (
	ErrInvalidFileType = errors.New("file is not an Excel workbook")
	ErrEmptyQuestion   = errors.New("question is empty")
	ErrUploadInFlight  = errors.New("an upload is already in progress")
	ErrAskInFlight     = errors.New("a question is already being answered")
	ErrNoAnswer        = errors.New("no answer to copy")
)

// Notification texts.
const (
	MsgDisconnected    = "Cannot connect to backend. Please check if the backend is running."
	MsgBadExtension    = "Please upload an Excel file (.xlsx or .xls)"
	MsgUploaded        = "File uploaded successfully!"
	MsgUploadFailed    = "Upload failed. Please try again."
	MsgUploadNoConn    = "Upload failed. Please check your connection."
	MsgUploadBusy      = "An upload is already in progress"
	MsgEmptyQuestion   = "Please enter a question"
	MsgAnswered        = "Answer retrieved successfully!"
	MsgAskFailed       = "Failed to get answer. Please try again."
	MsgAskNoConn       = "Connection error. Please check your connection."
	MsgAskBusy         = "Still answering the previous question"
	MsgCopied          = "Answer copied to clipboard!"
	defaultUploadedMsg = "File uploaded successfully"
)

const (
	// InfoRefreshDelay is the pause between a successful upload and the info reload.
	InfoRefreshDelay = 2 * time.Second
	// CopyConfirmDelay is how long the copy button shows its confirmation.
	CopyConfirmDelay = 2 * time.Second
)

var excelName = regexp.MustCompile(`(?i)\.(xlsx|xls)$`)

// File is a file handed over by drop or the file picker.
type File struct {
	Name    string
	Content io.Reader
}

// Controller owns the UIState. All changes go through its methods; network
// calls are made without holding the state lock.
type Controller struct {
	gw     Gateway
	clock  Clock
	logger *slog.Logger
	notes  *Notifications

	subMu       sync.Mutex
	subscribers []func(UIState)

	mu             sync.Mutex
	state          UIState
	uploadInFlight bool
	askInFlight    bool
	uploadGen      int
	copyGen        int
}

// NewController creates a controller over gw. A nil clock means wall time.
func NewController(gw Gateway, clock Clock, logger *slog.Logger) *Controller {
	if clock == nil {
		clock = SystemClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{gw: gw, clock: clock, logger: logger}
	c.notes = NewNotifications(clock, c.publish)
	return c
}

// State returns a snapshot of the current state.
func (c *Controller) State() UIState {
	c.mu.Lock()
	s := c.state.clone()
	c.mu.Unlock()
	s.Notifications = c.notes.List()
	return s
}

// View renders the current state.
func (c *Controller) View() View {
	return Render(c.State())
}

// Subscribe registers fn to receive a snapshot after every change.
func (c *Controller) Subscribe(fn func(UIState)) {
	c.subMu.Lock()
	c.subscribers = append(c.subscribers, fn)
	c.subMu.Unlock()
}

func (c *Controller) publish() {
	c.subMu.Lock()
	subs := append([]func(UIState){}, c.subscribers...)
	c.subMu.Unlock()
	if len(subs) == 0 {
		return
	}
	s := c.State()
	for _, fn := range subs {
		fn(s)
	}
}

// mutate applies fn to the state under the lock, then notifies subscribers.
func (c *Controller) mutate(fn func(s *UIState)) {
	c.mu.Lock()
	fn(&c.state)
	c.mu.Unlock()
	c.publish()
}

func (c *Controller) notify(message string, severity Severity) {
	c.notes.Push(message, severity)
}

// Start probes health and loads collection info concurrently.
func (c *Controller) Start(ctx context.Context) {
	var g errgroup.Group
	g.Go(func() error {
		c.CheckHealth(ctx)
		return nil
	})
	g.Go(func() error {
		c.RefreshInfo(ctx)
		return nil
	})
	g.Wait()
}

// CheckHealth updates connectivity from a health probe.
func (c *Controller) CheckHealth(ctx context.Context) Connectivity {
	res := c.gw.Health(ctx)
	conn := Connected
	if !res.IsOk() {
		conn = Disconnected
		c.logger.Warn("gateway health check failed", "status", res.Err.HTTPStatus, "error", res.Err.Message)
	}
	c.mutate(func(s *UIState) { s.Connectivity = conn })
	if conn == Disconnected {
		c.notify(MsgDisconnected, SeverityError)
	}
	return conn
}

// RefreshInfo reloads the collection info. Failures keep the previous values.
func (c *Controller) RefreshInfo(ctx context.Context) error {
	res := c.gw.Info(ctx)
	if !res.IsOk() {
		c.logger.Error("failed to load collection info", "error", res.Err.Message)
		return res.Err
	}
	c.mutate(func(s *UIState) {
		s.Info = res.Value
		s.InfoLoaded = true
	})
	return nil
}

// DragEnter marks the upload area as a drop target.
func (c *Controller) DragEnter() {
	c.mutate(func(s *UIState) { s.DragActive = true })
}

// DragLeave clears the drop target highlight.
func (c *Controller) DragLeave() {
	c.mutate(func(s *UIState) { s.DragActive = false })
}

// Drop uploads the first dropped file. Extra files are ignored.
func (c *Controller) Drop(ctx context.Context, files []File) error {
	c.DragLeave()
	if len(files) == 0 {
		return nil
	}
	return c.Upload(ctx, files[0])
}

// Upload sends f to the gateway. It is the single entry point for dropped and
// picked files.
func (c *Controller) Upload(ctx context.Context, f File) error {
	if !excelName.MatchString(f.Name) {
		c.notify(MsgBadExtension, SeverityError)
		return ErrInvalidFileType
	}

	c.mu.Lock()
	if c.uploadInFlight {
		c.mu.Unlock()
		c.notify(MsgUploadBusy, SeverityInfo)
		return ErrUploadInFlight
	}
	c.uploadInFlight = true
	c.uploadGen++
	gen := c.uploadGen
	c.state.UploadPhase = Uploading
	c.state.ProgressVisible = true
	c.state.Progress = ProgressDispatched
	c.state.UploadStatus = "Uploading..."
	c.state.UploadResult = nil
	c.mu.Unlock()
	c.publish()

	// Runs on every exit path, including a panicking gateway.
	defer c.mutate(func(s *UIState) {
		c.uploadInFlight = false
		if s.UploadPhase == Uploading {
			s.UploadPhase = UploadFailed
			s.ProgressVisible = false
		}
	})

	res := c.gw.Upload(ctx, models.UploadRequest{
		FileName: f.Name,
		MimeType: mimeForName(f.Name),
		Content:  f.Content,
	})

	if !res.IsOk() {
		c.mutate(func(s *UIState) {
			s.Progress = ProgressComplete
			s.UploadPhase = UploadFailed
			s.UploadStatus = "Upload failed"
			s.UploadResult = &UploadOutcome{Message: res.Err.Message}
			s.ProgressVisible = false
		})
		if res.Err.Transport {
			c.notify(MsgUploadNoConn, SeverityError)
		} else {
			c.notify(MsgUploadFailed, SeverityError)
		}
		return res.Err
	}

	msg := res.Value.Message
	if msg == "" {
		msg = defaultUploadedMsg
	}
	c.mutate(func(s *UIState) {
		s.Progress = ProgressComplete
		s.UploadPhase = UploadSucceeded
		s.UploadStatus = "Upload complete!"
		s.UploadResult = &UploadOutcome{Success: true, Message: msg, Chunks: res.Value.ChunksProcessed}
	})
	c.notify(MsgUploaded, SeveritySuccess)

	c.clock.AfterFunc(InfoRefreshDelay, func() {
		c.RefreshInfo(context.Background())
		c.mutate(func(s *UIState) {
			if c.uploadGen == gen {
				s.ProgressVisible = false
			}
		})
	})
	return nil
}

// SetQuestion updates the question input.
func (c *Controller) SetQuestion(q string) {
	c.mutate(func(s *UIState) { s.Question = q })
}

// Submit asks the current question, as the Ask button or Enter key does.
func (c *Controller) Submit(ctx context.Context) error {
	c.mu.Lock()
	q := c.state.Question
	c.mu.Unlock()
	return c.ask(ctx, q, false)
}

// Ask fills the question input and submits it. While another question is
// being answered the input is left untouched.
func (c *Controller) Ask(ctx context.Context, question string) error {
	return c.ask(ctx, question, true)
}

// QuickAsk is a shortcut button: it pre-fills question and submits immediately.
func (c *Controller) QuickAsk(ctx context.Context, question string) error {
	return c.Ask(ctx, question)
}

// ask claims the in-flight slot and, when fill is set, writes raw into the
// question input in the same critical section.
func (c *Controller) ask(ctx context.Context, raw string, fill bool) error {
	question := strings.TrimSpace(raw)
	n := models.DefaultResultCount

	c.mu.Lock()
	if c.askInFlight {
		c.mu.Unlock()
		c.notify(MsgAskBusy, SeverityInfo)
		return ErrAskInFlight
	}
	if fill {
		c.state.Question = raw
	}
	if question == "" {
		c.mu.Unlock()
		c.publish()
		c.notify(MsgEmptyQuestion, SeverityError)
		return ErrEmptyQuestion
	}
	c.askInFlight = true
	c.state.ResultCount = n
	c.state.AskPhase = Asking
	c.state.AskDisabled = true
	c.state.Loading = true
	c.state.AnswerVisible = false
	c.mu.Unlock()
	c.publish()

	// Runs on every exit path, including a panicking gateway.
	defer c.mutate(func(s *UIState) {
		c.askInFlight = false
		s.AskDisabled = false
		s.Loading = false
		if s.AskPhase == Asking {
			s.AskPhase = AskFailed
		}
	})

	res := c.gw.Ask(ctx, models.AskRequest{Question: question, ResultCount: n})

	if !res.IsOk() {
		c.mutate(func(s *UIState) {
			s.AskPhase = AskFailed
			s.AskError = "Error: " + res.Err.Message
			s.Answer = ""
			s.Context = nil
			s.AnswerVisible = true
		})
		if res.Err.Transport {
			c.notify(MsgAskNoConn, SeverityError)
		} else {
			c.notify(MsgAskFailed, SeverityError)
		}
		return res.Err
	}

	c.mutate(func(s *UIState) {
		s.AskPhase = Answered
		s.AskError = ""
		s.Answer = res.Value.Answer
		snippets := res.Value.Context
		if len(snippets) > n {
			snippets = snippets[:n]
		}
		s.Context = append([]string(nil), snippets...)
		s.AnswerVisible = true
	})
	c.notify(MsgAnswered, SeveritySuccess)
	return nil
}

// CopyAnswer returns the plain text of the rendered answer for the clipboard.
func (c *Controller) CopyAnswer() (string, error) {
	c.mu.Lock()
	if c.state.AskPhase != Answered || !c.state.AnswerVisible {
		c.mu.Unlock()
		return "", ErrNoAnswer
	}
	text := PlainAnswer(c.state.Answer)
	c.copyGen++
	gen := c.copyGen
	c.state.CopyConfirmed = true
	c.mu.Unlock()
	c.publish()

	c.notify(MsgCopied, SeveritySuccess)
	c.clock.AfterFunc(CopyConfirmDelay, func() {
		c.mutate(func(s *UIState) {
			if c.copyGen == gen {
				s.CopyConfirmed = false
			}
		})
	})
	return text, nil
}

func mimeForName(name string) string {
	if strings.HasSuffix(strings.ToLower(name), ".xls") {
		return models.MimeXLS
	}
	return models.MimeXLSX
}
