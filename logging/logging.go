// Package logging wires up the structured logger the dispatcher and CLI
// use, mirroring core/entrypoint.go's Start: a tint console handler fanned
// out via slog-multi to an optional file handler.
package logging

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/encodeous/tint"
	slogmulti "github.com/samber/slog-multi"
)

// New builds a *slog.Logger that writes human-readable output to stderr at
// level, optionally duplicating plain text lines to logPath. prefix is
// shown ahead of every line (e.g. a node's short address), matching the
// teacher's CustomPrefix use for the node id.
func New(level slog.Level, logPath, prefix string) (*slog.Logger, error) {
	handlers := []slog.Handler{
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:        level,
			AddSource:    false,
			CustomPrefix: prefix,
		}),
	}

	if logPath != "" {
		if err := os.MkdirAll(filepath.Dir(logPath), 0700); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(logPath, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0600)
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}))
	}

	return slog.New(slogmulti.Fanout(handlers...)), nil
}
