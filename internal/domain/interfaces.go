package domain

import (
	"context"
	"time"

	"medibook/internal/events"
	"medibook/internal/models"
)

// SlotStore is the slot adapter contract. UpdateSlotStatus is the only
// concurrency-control primitive in the system: a conditional write that
// reports whether a row actually changed.
type SlotStore interface {
	CreateSlots(ctx context.Context, slots []*models.Slot) (int, error)
	GetSlot(ctx context.Context, id int64) (*models.Slot, error)
	UpdateSlotStatus(ctx context.Context, id int64, expectedStatus, newStatus string) (bool, error)
	ListSlotsByServiceDay(ctx context.Context, serviceDayID int64) ([]*models.Slot, error)
	ListOpenSlotsByServiceDay(ctx context.Context, serviceDayID int64) ([]*models.Slot, error)
	DeleteSlot(ctx context.Context, id int64) error
	DeleteSlotsForServiceDay(ctx context.Context, serviceDayID int64, statuses ...string) error
	CountSlotsWithBookingStatus(ctx context.Context, serviceDayID int64, statuses ...string) (int, error)
}

type BookingStore interface {
	CreateBooking(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	UpdateBookingStatusIf(ctx context.Context, id int64, newStatus string, fromStatuses ...string) (bool, error)
	UpdateBookingStatusSlotIf(ctx context.Context, id int64, newStatus string, slotID int64, fromStatuses ...string) (bool, error)
	UpdateBookingSlotIf(ctx context.Context, id, fromSlotID, newSlotID int64, fromStatus string) (bool, error)
	ListPendingHoldsBefore(ctx context.Context, instant time.Time) ([]*models.Booking, error)
	ListBookingsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Booking, error)
	DeleteBooking(ctx context.Context, id int64) error
	CancelPendingBookingsForServiceDay(ctx context.Context, serviceDayID int64) (int64, error)
	PurgeTerminalBookingsForServiceDay(ctx context.Context, serviceDayID int64) error
}

type ScheduleStore interface {
	CreateServiceDay(ctx context.Context, day *models.ServiceDay) error
	GetServiceDay(ctx context.Context, id int64) (*models.ServiceDay, error)
	UpdateServiceDay(ctx context.Context, day *models.ServiceDay) error
	DeleteServiceDay(ctx context.Context, id int64) error
	ListServiceDaysByLocation(ctx context.Context, locationID int64) ([]*models.ServiceDay, error)

	CreateLocation(ctx context.Context, location *models.Location) error
	GetLocation(ctx context.Context, id int64) (*models.Location, error)
	ListLocations(ctx context.Context) ([]*models.Location, error)
	UpdateLocation(ctx context.Context, location *models.Location) error
	DeleteLocation(ctx context.Context, id int64) error
}

// Store is the full persistence surface; *database.DB satisfies it.
type Store interface {
	SlotStore
	BookingStore
	ScheduleStore
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// NotifyQueue accepts transition notifications for asynchronous, best-effort
// delivery. Enqueue errors are logged by callers and never propagated to the
// reservation result.
type NotifyQueue interface {
	Enqueue(ctx context.Context, event string, payload events.BookingEventPayload) error
}

// Notifier delivers one notification. Implementations: Telegram operator
// channel, log-only.
type Notifier interface {
	Notify(ctx context.Context, event string, payload events.BookingEventPayload) error
}
