// Package notify delivers short user-facing notices such as sync results and
// connectivity changes.
package notify

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Kind classifies a notice.
type Kind string

const (
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
	KindWarning Kind = "warning"
	KindError   Kind = "error"
)

// Notice is a one-time message for the user.
type Notice struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// Notifier receives notices.
type Notifier interface {
	Notify(n Notice)
}

// Func adapts a function to Notifier.
type Func func(Notice)

// Notify calls f.
func (f Func) Notify(n Notice) { f(n) }

// Discard drops every notice.
var Discard Notifier = Func(func(Notice) {})

// Writer prints notices as lines and mirrors them to a logger.
type Writer struct {
	mu     sync.Mutex
	out    io.Writer
	logger *slog.Logger
}

// NewWriter constructs a Writer. Either argument may be nil.
func NewWriter(out io.Writer, logger *slog.Logger) *Writer {
	return &Writer{out: out, logger: logger}
}

// Notify implements Notifier.
func (w *Writer) Notify(n Notice) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.out != nil {
		fmt.Fprintf(w.out, "[%s] %s\n", n.Kind, n.Message)
	}
	if w.logger != nil {
		w.logger.Info("notice", slog.String("kind", string(n.Kind)), slog.String("message", n.Message))
	}
}

// Recorder keeps every notice in memory.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

// Notify implements Notifier.
func (r *Recorder) Notify(n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

// Notices returns a copy of the recorded notices.
func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notice, len(r.notices))
	copy(out, r.notices)
	return out
}

// Count returns how many recorded notices carry message.
func (r *Recorder) Count(message string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, notice := range r.notices {
		if notice.Message == message {
			n++
		}
	}
	return n
}
