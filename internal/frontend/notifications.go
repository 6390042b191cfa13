package frontend

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Severity selects the notification style.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

const (
	// NotificationDisplay is how long a notification stays fully visible.
	NotificationDisplay = 3 * time.Second
	// NotificationExit is the length of the exit animation before removal.
	NotificationExit = 300 * time.Millisecond
)

// Notification is one transient message.
type Notification struct {
	ID        string
	Message   string
	Severity  Severity
	CreatedAt time.Time
	Leaving   bool
}

// Notifications is a FIFO queue whose entries each expire on their own timers.
type Notifications struct {
	clock    Clock
	onChange func()

	mu    sync.Mutex
	items []Notification
}

// NewNotifications creates an empty queue. onChange may be nil.
func NewNotifications(clock Clock, onChange func()) *Notifications {
	if clock == nil {
		clock = SystemClock()
	}
	return &Notifications{clock: clock, onChange: onChange}
}

// Push enqueues a notification and schedules its removal. It never blocks on
// other entries.
func (n *Notifications) Push(message string, severity Severity) string {
	id := uuid.New().String()

	n.mu.Lock()
	n.items = append(n.items, Notification{
		ID:        id,
		Message:   message,
		Severity:  severity,
		CreatedAt: n.clock.Now(),
	})
	n.mu.Unlock()
	n.changed()

	n.clock.AfterFunc(NotificationDisplay, func() {
		if !n.update(id, func(i int) { n.items[i].Leaving = true }) {
			return
		}
		n.clock.AfterFunc(NotificationExit, func() {
			n.update(id, func(i int) {
				n.items = append(n.items[:i], n.items[i+1:]...)
			})
		})
	})
	return id
}

// List returns the queued notifications, oldest first.
func (n *Notifications) List() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification(nil), n.items...)
}

// update applies fn to the entry with id, if it is still queued.
func (n *Notifications) update(id string, fn func(i int)) bool {
	n.mu.Lock()
	found := false
	for i := range n.items {
		if n.items[i].ID == id {
			fn(i)
			found = true
			break
		}
	}
	n.mu.Unlock()
	if found {
		n.changed()
	}
	return found
}

func (n *Notifications) changed() {
	if n.onChange != nil {
		n.onChange()
	}
}
