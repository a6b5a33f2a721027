// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package runlog provides the optional structured run log: JSON lines to
// a rotating file. Status output for humans stays on the console; this
// log exists so batch runs over large export trees leave a record.
package runlog

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"github.com/pdiddy/chatmd/pkg/types"
)

// Open builds a logger from config. An empty file path yields a logger
// that discards everything, so call sites never nil-check. The returned
// closer flushes and closes the underlying file.
func Open(cfg types.LogConfig) (*slog.Logger, io.Closer, error) {
	if cfg.File == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), nopCloser{}, nil
	}

	if dir := filepath.Dir(cfg.File); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("creating log directory %s: %w", dir, err)
		}
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    defaultInt(cfg.MaxSizeMB, 10),
		MaxBackups: defaultInt(cfg.MaxBackups, 3),
		MaxAge:     defaultInt(cfg.MaxAgeDays, 28),
		Compress:   true,
	}

	handler := slog.NewJSONHandler(rotator, &slog.HandlerOptions{Level: slog.LevelInfo})
	return slog.New(handler), rotator, nil
}

func defaultInt(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
