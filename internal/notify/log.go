package notify

import (
	"context"

	"medibook/internal/events"

	"github.com/rs/zerolog"
)

// LogNotifier writes notifications to the log. Used when no delivery channel
// is configured and in tests.
type LogNotifier struct {
	logger *zerolog.Logger
}

func NewLogNotifier(logger *zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, event string, payload events.BookingEventPayload) error {
	n.logger.Info().
		Str("event", event).
		Int64("booking_id", payload.BookingID).
		Int64("slot_id", payload.SlotID).
		Str("name", payload.Name).
		Time("slot_start", payload.SlotStart).
		Msg("booking notification")
	return nil
}
