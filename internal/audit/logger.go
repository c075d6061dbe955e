// Package audit appends account events to a JSON-lines file.
package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Event is the shape of one audit line.
type Event struct {
	At      string `json:"at"`
	Actor   string `json:"actor"`
	Action  string `json:"action"`
	Outcome string `json:"outcome"`
	Detail  string `json:"detail,omitempty"`
}

// Logger is safe for concurrent use. A nil Logger or one without a path
// discards events. The file is opened on the first event and kept until Close.
type Logger struct {
	path    string
	nowFunc func() time.Time

	mu   sync.Mutex
	file *os.File
	w    *trackingWriter
	zl   zerolog.Logger
}

func NewLogger(path string) *Logger {
	return &Logger{path: strings.TrimSpace(path), nowFunc: time.Now}
}

func (l *Logger) Log(actor, action, outcome, detail string) error {
	if l == nil || l.path == "" {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.openLocked(); err != nil {
		return err
	}

	e := l.zl.Log().
		Str("at", l.nowFunc().UTC().Format(time.RFC3339)).
		Str("actor", actor).
		Str("action", action).
		Str("outcome", outcome)
	if d := strings.TrimSpace(detail); d != "" {
		e = e.Str("detail", d)
	}
	e.Send()

	if err := l.w.take(); err != nil {
		return fmt.Errorf("write audit log entry: %w", err)
	}
	return nil
}

func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func (l *Logger) openLocked() error {
	if l.file != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("mkdir audit log dir: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log file: %w", err)
	}
	l.file = f
	l.w = &trackingWriter{f: f}
	l.zl = zerolog.New(l.w)
	return nil
}

// trackingWriter keeps the last write error, which zerolog does not return.
type trackingWriter struct {
	f   *os.File
	err error
}

func (w *trackingWriter) Write(p []byte) (int, error) {
	n, err := w.f.Write(p)
	if err != nil {
		w.err = err
	}
	return n, err
}

func (w *trackingWriter) take() error {
	err := w.err
	w.err = nil
	return err
}
