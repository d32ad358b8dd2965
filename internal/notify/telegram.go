package notify

import (
	"context"
	"fmt"
	"time"

	"medibook/internal/events"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramNotifier posts booking transitions to the operator channel.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	return &TelegramNotifier{bot: bot, chatID: chatID}, nil
}

func (n *TelegramNotifier) Notify(ctx context.Context, event string, payload events.BookingEventPayload) error {
	msg := tgbotapi.NewMessage(n.chatID, formatMessage(event, payload))
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

func formatMessage(event string, p events.BookingEventPayload) string {
	when := ""
	if !p.SlotStart.IsZero() {
		when = p.SlotStart.Format("Mon 2 Jan 15:04") + "–" + p.SlotEnd.Format(time.TimeOnly)[:5]
	}

	switch event {
	case events.EventBookingClaimed:
		return fmt.Sprintf("🕐 New hold: %s (%s), %s", p.Name, p.Email, when)
	case events.EventBookingConfirmed:
		return fmt.Sprintf("✅ Confirmed: %s (%s), %s", p.Name, p.Email, when)
	case events.EventBookingCancelled:
		return fmt.Sprintf("❌ Cancelled: %s, %s", p.Name, when)
	case events.EventBookingRescheduled:
		return fmt.Sprintf("🔁 Rescheduled: %s now at %s", p.Name, when)
	case events.EventBookingExpired:
		return fmt.Sprintf("⌛ Hold expired: %s, slot reopened", p.Name)
	default:
		return fmt.Sprintf("Booking %d: %s", p.BookingID, event)
	}
}
