// Package frontend holds the client interaction controller: an explicit UIState
// changed only through Controller transitions, and a pure projection of that
// state into what the page shows.
package frontend

import (
	"github.com/semisearch/gateway/internal/models"
)

// Connectivity is the result of the last health probe.
type Connectivity int

const (
	Disconnected Connectivity = iota
	Connected
)

func (c Connectivity) String() string {
	if c == Connected {
		return "Connected"
	}
	return "Disconnected"
}

// UploadPhase tracks the most recent upload.
type UploadPhase int

const (
	UploadIdle UploadPhase = iota
	Uploading
	UploadSucceeded
	UploadFailed
)

func (p UploadPhase) String() string {
	switch p {
	case Uploading:
		return "Uploading"
	case UploadSucceeded:
		return "Succeeded"
	case UploadFailed:
		return "Failed"
	default:
		return "Idle"
	}
}

// AskPhase tracks the most recent question.
type AskPhase int

const (
	AskIdle AskPhase = iota
	Asking
	Answered
	AskFailed
)

func (p AskPhase) String() string {
	switch p {
	case Asking:
		return "Asking"
	case Answered:
		return "Answered"
	case AskFailed:
		return "Failed"
	default:
		return "Idle"
	}
}

// Progress values for the two-step upload indicator. The transport exposes no
// byte-level progress.
const (
	ProgressDispatched = 30
	ProgressComplete   = 100
)

// UploadOutcome is the inline result shown under the upload area.
type UploadOutcome struct {
	Success bool
	Message string
	Chunks  int
}

// UIState is everything the page renders. Values returned by Controller.State
// are copies and safe to keep.
type UIState struct {
	Connectivity Connectivity
	UploadPhase  UploadPhase
	AskPhase     AskPhase

	DragActive      bool
	ProgressVisible bool
	Progress        int
	UploadStatus    string
	UploadResult    *UploadOutcome

	Question      string
	AskDisabled   bool
	Loading       bool
	AnswerVisible bool
	Answer        string
	Context       []string
	ResultCount   int
	AskError      string
	CopyConfirmed bool

	InfoLoaded bool
	Info       models.CollectionInfo

	Notifications []Notification
}

func (s UIState) clone() UIState {
	out := s
	if s.Context != nil {
		out.Context = append([]string(nil), s.Context...)
	}
	if s.UploadResult != nil {
		r := *s.UploadResult
		out.UploadResult = &r
	}
	if s.Notifications != nil {
		out.Notifications = append([]Notification(nil), s.Notifications...)
	}
	return out
}
