package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"pinvault/internal/pv"
)

// LogFileName is the log file written under the configured log directory.
const LogFileName = "pv.log"

// pvHandler is a custom slog.Handler that formats log records as:
//
//	<timestamp>\t<level>\t<sessionID>\t<message>\t<key=value ...>
//
// Each record is written with a single Write; handlers derived with
// WithAttrs share the lock.
type pvHandler struct {
	mu        *sync.Mutex
	w         io.Writer
	level     slog.Level
	sessionID string
	attrs     []slog.Attr
}

func (h *pvHandler) Enabled(_ context.Context, level slog.Level) bool { return level >= h.level }

func (h *pvHandler) Handle(_ context.Context, r slog.Record) error {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s\t%s\t%s\t%s", r.Time.UTC().Format("2006-01-02T15:04:05Z"), r.Level, h.sessionID, r.Message)
	for _, a := range h.attrs {
		fmt.Fprintf(&buf, "\t%s=%v", a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&buf, "\t%s=%v", a.Key, a.Value)
		return true
	})
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

func (h *pvHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &pvHandler{
		mu:        h.mu,
		w:         h.w,
		level:     h.level,
		sessionID: h.sessionID,
		attrs:     append(append([]slog.Attr{}, h.attrs...), attrs...),
	}
}

func (h *pvHandler) WithGroup(string) slog.Handler { return h }

// newLogger creates a structured logger appending to logDir/pv.log. With
// verbose set, records are mirrored to stderr as well. The returned file
// must be closed by the caller.
func newLogger(logDir, sessionID string, verbose bool) (*slog.Logger, *os.File, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}

	logPath := filepath.Join(logDir, LogFileName)
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	var w io.Writer = f
	if verbose {
		w = io.MultiWriter(f, os.Stderr)
	}
	return slog.New(&pvHandler{mu: &sync.Mutex{}, w: w, level: slog.LevelDebug, sessionID: sessionID}), f, nil
}

// slogAdapter wraps *slog.Logger to satisfy the pv.Logger interface.
type slogAdapter struct {
	l *slog.Logger
}

var _ pv.Logger = (*slogAdapter)(nil)

func (a *slogAdapter) Debug(msg string, args ...any) { a.l.Debug(msg, args...) }
func (a *slogAdapter) Info(msg string, args ...any)  { a.l.Info(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.l.Warn(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.l.Error(msg, args...) }
func (a *slogAdapter) With(args ...any) pv.Logger    { return &slogAdapter{l: a.l.With(args...)} }
