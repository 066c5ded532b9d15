package book

import (
	"log/slog"
	"os"
)

var logger = slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("component", "limitbook")

// SetLogger replaces the package logger. The component attribute is reapplied
// so records stay attributable when the caller shares one logger process-wide.
func SetLogger(l *slog.Logger) {
	logger = l.With("component", "limitbook")
}

// marketLogger returns a logger scoped to one market's book. Book loops hold
// on to it so every record they emit carries the market id.
func marketLogger(marketID string) *slog.Logger {
	return logger.With("market_id", marketID)
}
