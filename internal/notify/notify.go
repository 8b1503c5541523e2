// ABOUTME: User-facing notifications (toasts) for client actions.
// ABOUTME: Console notifier for the CLI plus an in-memory recorder for tests.

package notify

import (
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog/log"
)

// Notifier presents the outcome of a user action.
type Notifier interface {
	Success(title, message string)
	Error(title, message string)
}

// Common titles.
const (
	TitleSuccess = "Success"
	TitleError   = "Error"
)

// Console prints notifications to a writer and mirrors them to the logger.
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

func (c *Console) Success(title, message string) {
	log.Debug().Str("title", title).Msg(message)
	c.print("✓", title, message)
}

func (c *Console) Error(title, message string) {
	log.Warn().Str("title", title).Msg(message)
	c.print("✗", title, message)
}

func (c *Console) print(mark, title, message string) {
	if c.out == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if message == "" {
		fmt.Fprintf(c.out, "%s %s\n", mark, title)
		return
	}
	fmt.Fprintf(c.out, "%s %s: %s\n", mark, title, message)
}

// Kind distinguishes recorded notifications.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Notification is one recorded toast.
type Notification struct {
	Kind    Kind
	Title   string
	Message string
}

// Recorder keeps every notification in memory.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

func (r *Recorder) Success(title, message string) {
	r.add(Notification{Kind: KindSuccess, Title: title, Message: message})
}

func (r *Recorder) Error(title, message string) {
	r.add(Notification{Kind: KindError, Title: title, Message: message})
}

func (r *Recorder) add(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

// All returns a copy of the recorded notifications.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.items...)
}

// Count returns how many notifications of the given kind were recorded.
func (r *Recorder) Count(kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, item := range r.items {
		if item.Kind == kind {
			n++
		}
	}
	return n
}
