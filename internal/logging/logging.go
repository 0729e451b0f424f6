package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Init installs the default logger. Output goes to stderr, or to the file
// named by LOG_FILE so the terminal UI stays clean.
func Init() {
	var w io.Writer = os.Stderr
	if path, ok := os.LookupEnv("LOG_FILE"); ok && path != "" {
		if f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			w = f
		}
	}

	logger := slog.New(
		slog.NewTextHandler(w, &slog.HandlerOptions{
			Level: Level(os.Getenv("LOG_LEVEL")),
		}),
	)
	slog.SetDefault(logger)
}

// Level maps LOG_LEVEL values to a slog level. Production only shows errors.
func Level(name string) slog.Level {
	switch strings.ToLower(name) {
	case "dev", "development", "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
