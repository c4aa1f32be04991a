package logger

import (
	"log/slog"
	"os"
)

// Format selects the handler used for process-wide logging.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

func Initialize(level slog.Level, format Format) {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch format {
	case FormatText:
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}

func Named(name string) *slog.Logger {
	logger := slog.Default()
	if logger == nil {
		return nil
	}

	return logger.With("name", name)
}
