// Package logging configures the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Setup installs a text logger writing to console and a rotated log file.
// An empty filename logs to console only.
func Setup(level, filename string, console io.Writer) error {
	w := console
	if filename != "" {
		if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
			return err
		}
		logWriter := &lumberjack.Logger{
			Filename:   filename,
			MaxSize:    25,
			MaxBackups: 10,
			MaxAge:     14,
			Compress:   true,
		}
		w = io.MultiWriter(console, logWriter)
	}

	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})
	slog.SetDefault(slog.New(h))
	return nil
}

func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
