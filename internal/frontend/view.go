package frontend

import (
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"

	"github.com/semisearch/gateway/internal/models"
)

// MaxContextChars is how much of each context snippet is shown.
const MaxContextChars = 500

// NoContext is rendered when the answer came back without context snippets.
const NoContext = "No context retrieved."

var headingLine = regexp.MustCompile(`^[A-Z][a-z]+:`)

// View is the rendered page. Every HTML field is already escaped.
type View struct {
	StatusText      string
	StatusConnected bool

	UploadAreaClass   string
	ProgressVisible   bool
	ProgressWidth     string
	UploadStatus      string
	UploadResultClass string
	UploadResultHTML  string

	QuestionValue     string
	AskButtonDisabled bool
	AskButtonLabel    string
	LoadingVisible    bool
	AnswerVisible     bool
	AnswerHTML        string
	ContextHTML       string
	CopyLabel         string

	DocCount         string
	CollectionName   string
	CollectionStatus string

	Toasts []ToastView
}

// ToastView is one rendered notification.
type ToastView struct {
	ID    string
	Class string
	Icon  string
	Text  string
}

// Render projects state into a View. It has no side effects.
func Render(s UIState) View {
	v := View{
		StatusText:      s.Connectivity.String(),
		StatusConnected: s.Connectivity == Connected,
		UploadAreaClass: "upload-area",
		ProgressVisible: s.ProgressVisible,
		ProgressWidth:   strconv.Itoa(s.Progress) + "%",
		UploadStatus:    s.UploadStatus,

		QuestionValue:     s.Question,
		AskButtonDisabled: s.AskDisabled,
		AskButtonLabel:    "Ask",
		LoadingVisible:    s.Loading,
		AnswerVisible:     s.AnswerVisible,
		CopyLabel:         "Copy",

		DocCount:         "-",
		CollectionName:   "-",
		CollectionStatus: "-",
	}

	if s.DragActive {
		v.UploadAreaClass += " dragover"
	}
	if s.AskDisabled {
		v.AskButtonLabel = "Asking..."
	}
	if s.CopyConfirmed {
		v.CopyLabel = "Copied"
	}

	if r := s.UploadResult; r != nil {
		v.UploadResultClass, v.UploadResultHTML = RenderUploadResult(*r)
	}

	if s.AnswerVisible {
		if s.AskError != "" {
			v.AnswerHTML = `<p class="error">` + html.EscapeString(s.AskError) + `</p>`
		} else {
			v.AnswerHTML = FormatAnswer(s.Answer)
			v.ContextHTML = RenderContext(s.Context, s.ResultCount)
		}
	}

	if s.InfoLoaded {
		v.DocCount = strconv.Itoa(s.Info.DocumentCount)
		v.CollectionName = orDefault(s.Info.CollectionName, "N/A")
		v.CollectionStatus = orDefault(s.Info.Status, "Unknown")
	}

	for _, n := range s.Notifications {
		class := "toast " + string(n.Severity)
		if n.Leaving {
			class += " leaving"
		}
		v.Toasts = append(v.Toasts, ToastView{
			ID:    n.ID,
			Class: class,
			Icon:  toastIcon(n.Severity),
			Text:  html.EscapeString(n.Message),
		})
	}
	return v
}

// FormatAnswer renders each non-empty line as an escaped paragraph. Lines that
// start with "**" or a capitalized "Word:" label are emphasized.
func FormatAnswer(answer string) string {
	var b strings.Builder
	for _, line := range answerLines(answer) {
		if IsHeading(line) {
			b.WriteString("<p><strong>" + html.EscapeString(line) + "</strong></p>")
			continue
		}
		b.WriteString("<p>" + html.EscapeString(line) + "</p>")
	}
	return b.String()
}

// IsHeading reports whether an answer line is rendered emphasized.
func IsHeading(line string) bool {
	return strings.HasPrefix(line, "**") || headingLine.MatchString(line)
}

// PlainAnswer is the visible text of FormatAnswer's output, one line per paragraph.
func PlainAnswer(answer string) string {
	return strings.Join(answerLines(answer), "\n")
}

func answerLines(answer string) []string {
	var lines []string
	for _, line := range strings.Split(answer, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// RenderContext renders at most limit context snippets, each truncated and
// escaped. A limit <= 0 means the default result count.
func RenderContext(snippets []string, limit int) string {
	if limit <= 0 {
		limit = models.DefaultResultCount
	}
	if len(snippets) > limit {
		snippets = snippets[:limit]
	}
	if len(snippets) == 0 {
		return `<p class="context-item">` + NoContext + `</p>`
	}
	var b strings.Builder
	for i, snippet := range snippets {
		fmt.Fprintf(&b, `<div class="context-item"><strong>Context %d:</strong><p>%s</p></div>`,
			i+1, html.EscapeString(TruncateSnippet(snippet)))
	}
	return b.String()
}

// TruncateSnippet keeps the first MaxContextChars characters, adding "..." only
// when something was cut.
func TruncateSnippet(s string) string {
	runes := []rune(s)
	if len(runes) <= MaxContextChars {
		return s
	}
	return string(runes[:MaxContextChars]) + "..."
}

// RenderUploadResult returns the CSS class and body of the inline upload result.
func RenderUploadResult(r UploadOutcome) (string, string) {
	if r.Success {
		return "upload-result success", fmt.Sprintf(
			`<i class="fas fa-check-circle"></i><strong>Success!</strong> %s<br><small>Processed %d chunks</small>`,
			html.EscapeString(r.Message), r.Chunks)
	}
	return "upload-result error",
		`<i class="fas fa-exclamation-circle"></i><strong>Error:</strong> ` + html.EscapeString(r.Message)
}

func toastIcon(s Severity) string {
	switch s {
	case SeveritySuccess:
		return "check-circle"
	case SeverityError:
		return "exclamation-circle"
	default:
		return "info-circle"
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
