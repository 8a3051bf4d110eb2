package vnslog

import (
	"context"
	"log/slog"
)

// SlogAdapter writes broker events to a *slog.Logger. Useful for
// development when you want protocol-level events inline with the rest
// of an application's console logging.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a SlogAdapter that writes to logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger at Debug level, or Warn if Err is set.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("category", event.Category.String()),
	}
	if event.Property != 0 {
		attrs = append(attrs, slog.Int64("property", int64(event.Property)))
	}
	for k, v := range event.Fields {
		attrs = append(attrs, slog.Any(k, v))
	}

	level := slog.LevelDebug
	if event.Err != nil {
		level = slog.LevelWarn
		attrs = append(attrs, slog.String("error", event.Err.Error()))
	}
	a.logger.LogAttrs(context.Background(), level, event.Message, attrs...)
}

var _ Logger = (*SlogAdapter)(nil)
