package app

import (
	"io"
	"log/slog"
	"strings"

	"github.com/flemzord/tgcourier/internal/config"
	"github.com/flemzord/tgcourier/internal/security"
)

// NewLogger builds the process logger from the log section. Every record
// passes through the redactor before it is written.
func NewLogger(cfg config.LogConfig, w io.Writer, redactor *security.Redactor) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var inner slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		inner = slog.NewJSONHandler(w, opts)
	} else {
		inner = slog.NewTextHandler(w, opts)
	}
	return slog.New(security.NewRedactingHandler(inner, redactor))
}

// parseLevel maps a validated level name to a slog.Level. Unknown names
// fall back to info.
func parseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
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
