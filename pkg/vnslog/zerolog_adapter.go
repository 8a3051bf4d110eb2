package vnslog

import "github.com/rs/zerolog"

// ZerologAdapter writes broker events through a zerolog.Logger. This is
// the adapter cmd/vnsd wires up by default, matching the structured
// console/JSON logging style the rest of the retrieved example pack
// reaches for in broker-shaped services.
type ZerologAdapter struct {
	logger zerolog.Logger
}

// NewZerologAdapter creates a ZerologAdapter writing through logger.
func NewZerologAdapter(logger zerolog.Logger) *ZerologAdapter {
	return &ZerologAdapter{logger: logger}
}

// Log writes the event at Debug level, or Warn if Err is set.
func (a *ZerologAdapter) Log(event Event) {
	var e *zerolog.Event
	if event.Err != nil {
		e = a.logger.Warn().Err(event.Err)
	} else {
		e = a.logger.Debug()
	}

	e = e.Str("category", event.Category.String())
	if event.Property != 0 {
		e = e.Int64("property", int64(event.Property))
	}
	for k, v := range event.Fields {
		e = e.Interface(k, v)
	}
	e.Msg(event.Message)
}

var _ Logger = (*ZerologAdapter)(nil)
