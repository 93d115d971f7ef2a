// Package obs contains observability utilities such as logging.
package obs

import (
	"log/slog"
	"os"
	"strings"
)

// Logger is the global structured logger used by the service.
//
// It defaults to slog's default logger so packages can log before InitLogger runs,
// which is what unit tests rely on.
var Logger = slog.Default()

// InitLogger replaces Logger with a JSON handler on stdout at the given level.
// Unknown levels fall back to info.
func InitLogger(level string) {
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: ParseLevel(level)})
	Logger = slog.New(h)
}

// ParseLevel maps debug, info, warn and error (case-insensitive) to slog levels.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
