// Package notify carries user-facing notices out of the flows. How a notice
// is shown (terminal, toast, log) is up to the implementation.
package notify

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
)

type Level string

const (
	Info    Level = "info"
	Success Level = "success"
	Warning Level = "warning"
	Error   Level = "error"
)

type Notifier interface {
	Notify(level Level, title, message string)
}

// Log writes notices to a slog logger.
type Log struct {
	Logger *slog.Logger
}

func (n Log) Notify(level Level, title, message string) {
	l := n.Logger
	if l == nil {
		l = slog.Default()
	}
	attrs := []any{"title", title, "notice", message}
	switch level {
	case Error:
		l.Error("notify", attrs...)
	case Warning:
		l.Warn("notify", attrs...)
	default:
		l.Info("notify", attrs...)
	}
}

// Writer prints one line per notice, for terminals.
type Writer struct {
	mu sync.Mutex
	W  io.Writer
}

var prefixes = map[Level]string{
	Info:    "[i]",
	Success: "[✓]",
	Warning: "[!]",
	Error:   "[x]",
}

func (n *Writer) Notify(level Level, title, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	p, ok := prefixes[level]
	if !ok {
		p = "[i]"
	}
	if title == "" {
		fmt.Fprintf(n.W, "%s %s\n", p, message)
		return
	}
	fmt.Fprintf(n.W, "%s %s: %s\n", p, title, message)
}

// Multi fans a notice out to several notifiers.
type Multi []Notifier

func (m Multi) Notify(level Level, title, message string) {
	for _, n := range m {
		if n != nil {
			n.Notify(level, title, message)
		}
	}
}

type Notice struct {
	Level   Level
	Title   string
	Message string
}

// Recorder keeps every notice in memory.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *Recorder) Notify(level Level, title, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, Notice{Level: level, Title: title, Message: message})
}

func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notice, len(r.notices))
	copy(out, r.notices)
	return out
}

// Last returns the most recent notice, or a zero Notice.
func (r *Recorder) Last() Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notices) == 0 {
		return Notice{}
	}
	return r.notices[len(r.notices)-1]
}
