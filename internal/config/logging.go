package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/ncruces/go-strftime"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logging describes where and how to log.
type Logging struct {
	Level  slog.Level
	Format string // auto, text or json
	File   string // strftime pattern; empty logs to Stdout only
	Stdout io.Writer
	Now    func() time.Time
}

// NewLogger builds the process logger. Auto format means text on a
// terminal and JSON otherwise. When a file is set, output also goes to a
// rotating log whose name is the pattern expanded at start-up. The returned
// close func flushes and closes the file.
func NewLogger(l Logging) (*slog.Logger, func() error, error) {
	out := l.Stdout
	if out == nil {
		out = os.Stdout
	}
	now := time.Now
	if l.Now != nil {
		now = l.Now
	}

	closer := func() error { return nil }
	w := out
	toFile := l.File != ""
	if toFile {
		name := strftime.Format(l.File, now())
		if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		rot := &lumberjack.Logger{
			Filename:   name,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     14, // days
			Compress:   true,
		}
		w = io.MultiWriter(out, rot)
		closer = rot.Close
	}

	opts := &slog.HandlerOptions{Level: l.Level}
	var h slog.Handler
	switch l.Format {
	case "json":
		h = slog.NewJSONHandler(w, opts)
	case "text":
		h = slog.NewTextHandler(w, opts)
	default:
		if !toFile && isTerminal(out) {
			h = slog.NewTextHandler(w, opts)
		} else {
			h = slog.NewJSONHandler(w, opts)
		}
	}
	return slog.New(h), closer, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
