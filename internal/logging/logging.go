// Package logging sets up the process logger: JSON lines in a dedicated log
// directory, optionally mirrored as text to stderr.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// FileName is the log file created inside the log directory.
const FileName = "ui4t.log"

// Options configure Setup.
type Options struct {
	// Dir is created if it does not exist.
	Dir   string
	Level slog.Level
	// Verbose mirrors every record as text to Stderr.
	Verbose bool
	Stderr  io.Writer
}

// Setup creates the log directory and returns a logger writing JSON lines
// to Dir/ui4t.log. The returned function closes the log file.
func Setup(fs afero.Fs, opts Options) (*slog.Logger, func() error, error) {
	if opts.Dir == "" {
		return nil, nil, fmt.Errorf("log directory not specified")
	}
	if err := fs.MkdirAll(opts.Dir, 0o750); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory %s: %w", opts.Dir, err)
	}
	path := filepath.Join(opts.Dir, FileName)
	f, err := fs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	handlers := fanout{slog.NewJSONHandler(f, &slog.HandlerOptions{Level: opts.Level})}
	if opts.Verbose {
		stderr := opts.Stderr
		if stderr == nil {
			stderr = os.Stderr
		}
		handlers = append(handlers, slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(handlers), f.Close, nil
}

// fanout sends every record to each handler that accepts its level.
type fanout []slog.Handler

func (h fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, hh := range h {
		if hh.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h fanout) Handle(ctx context.Context, r slog.Record) error {
	var first error
	for _, hh := range h {
		if !hh.Enabled(ctx, r.Level) {
			continue
		}
		if err := hh.Handle(ctx, r.Clone()); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (h fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(h))
	for i, hh := range h {
		out[i] = hh.WithAttrs(attrs)
	}
	return out
}

func (h fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(h))
	for i, hh := range h {
		out[i] = hh.WithGroup(name)
	}
	return out
}
