package config

import (
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// SlogLevel maps the configured level name to a slog level
func (c *LoggingConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the application logger. With a base path, records are
// written as JSON to a rotating file; otherwise as text to console.
func (c *LoggingConfig) NewLogger(console io.Writer, debug bool) *slog.Logger {
	level := c.SlogLevel()
	if debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler

	// If base path is set, use file logging with rotation
	if c.BasePath != "" {
		logPath := filepath.Join(c.BasePath, c.Filename)
		writer := &lumberjack.Logger{
			Filename:   logPath,
			MaxSize:    c.MaxSizeMB,
			MaxBackups: c.MaxBackups,
			Compress:   c.Compress,
		}
		handler = slog.NewJSONHandler(writer, opts)
	} else {
		handler = slog.NewTextHandler(console, opts)
	}

	return slog.New(handler)
}
