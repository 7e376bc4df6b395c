package logger

import (
	"io"
	"log/slog"
	"os"
)

// New returns JSON logger on stdout. LOG_LEVEL overrides level; unknown values fall back to info.
func New(level string) *slog.Logger {
	return NewWithWriter(os.Stdout, level)
}

// NewWithWriter is New with a custom destination.
func NewWithWriter(w io.Writer, level string) *slog.Logger {
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		level = env
	}
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})
	return slog.New(h)
}

// ParseLevel parses debug/info/warn/error.
func ParseLevel(s string) slog.Level {
	var parsed slog.Level
	if err := parsed.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return parsed
}
