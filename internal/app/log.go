package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"databox/internal/databox"
)

const logFileName = "databox.log"

// lineHandler writes one tab separated line per record:
//
//	<timestamp> <level> <operation id> <message> <key=value>...
//
// Each line goes out in a single Write so concurrent commands appending to
// the same file do not interleave.
type lineHandler struct {
	w     io.Writer
	opID  string
	level slog.Leveler
	attrs []slog.Attr
}

func (h *lineHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.level == nil || level >= h.level.Level()
}

func (h *lineHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(r.Time.UTC().Format("2006-01-02T15:04:05Z"))
	for _, field := range []string{r.Level.String(), h.opID, r.Message} {
		b.WriteByte('\t')
		b.WriteString(field)
	}
	writeAttr := func(a slog.Attr) bool {
		fmt.Fprintf(&b, "\t%s=%v", a.Key, a.Value)
		return true
	}
	for _, a := range h.attrs {
		writeAttr(a)
	}
	r.Attrs(writeAttr)
	b.WriteByte('\n')

	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *lineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append(make([]slog.Attr, 0, len(h.attrs)+len(attrs)), h.attrs...), attrs...)
	return &next
}

// Groups are flattened.
func (h *lineHandler) WithGroup(string) slog.Handler { return h }

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// parseLevel maps log_level from the config file. Unknown values mean info.
func parseLevel(s string) slog.Level {
	if l, ok := logLevels[strings.ToLower(s)]; ok {
		return l
	}
	return slog.LevelInfo
}

// newLogger opens logDir/databox.log for appending and returns a logger
// tagged with opID. With verbose set, lines are mirrored to stderr. The
// caller closes the returned file.
func newLogger(logDir, opID string, level slog.Level, verbose bool) (*slog.Logger, *os.File, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(logDir, logFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	out := io.Writer(f)
	if verbose {
		out = io.MultiWriter(f, os.Stderr)
	}
	return slog.New(&lineHandler{w: out, opID: opID, level: level}), f, nil
}

// slogAdapter lets the workspace log through the operation's slog.Logger.
type slogAdapter struct {
	l *slog.Logger
}

var _ databox.Logger = (*slogAdapter)(nil)

func (a *slogAdapter) Debug(msg string, args ...any) { a.l.Debug(msg, args...) }
func (a *slogAdapter) Info(msg string, args ...any)  { a.l.Info(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.l.Warn(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.l.Error(msg, args...) }
