package service

import (
	"context"
	"fmt"
	"time"

	"medibook/internal/database"
	"medibook/internal/domain"
	"medibook/internal/events"
	"medibook/internal/metrics"
	"medibook/internal/models"

	"github.com/rs/zerolog"
)

// ScheduleService owns locations, service days and slot generation.
type ScheduleService struct {
	store    domain.Store
	eventBus domain.EventPublisher
	tz       *time.Location
	logger   *zerolog.Logger
}

func NewScheduleService(store domain.Store, eventBus domain.EventPublisher, tz *time.Location, logger *zerolog.Logger) *ScheduleService {
	if tz == nil {
		tz = time.UTC
	}
	return &ScheduleService{
		store:    store,
		eventBus: eventBus,
		tz:       tz,
		logger:   logger,
	}
}

// buildSlots expands a service day window into contiguous full-length
// intervals. A trailing partial interval is dropped. Window times are
// wall-clock in the deployment timezone; slot instants come out in UTC.
func (s *ScheduleService) buildSlots(day *models.ServiceDay) ([]*models.Slot, error) {
	start, err := combineDateAndClock(day.Date, day.WindowStart, s.tz)
	if err != nil {
		return nil, fmt.Errorf("%w: bad window start %q", database.ErrInvalidWindow, day.WindowStart)
	}
	end, err := combineDateAndClock(day.Date, day.WindowEnd, s.tz)
	if err != nil {
		return nil, fmt.Errorf("%w: bad window end %q", database.ErrInvalidWindow, day.WindowEnd)
	}

	if !end.After(start) {
		return nil, fmt.Errorf("%w: end %s not after start %s", database.ErrInvalidWindow, day.WindowEnd, day.WindowStart)
	}
	if day.SlotMinutes <= 0 {
		return nil, fmt.Errorf("%w: slot length %d", database.ErrInvalidWindow, day.SlotMinutes)
	}
	length := time.Duration(day.SlotMinutes) * time.Minute
	if length > end.Sub(start) {
		return nil, fmt.Errorf("%w: slot length %d exceeds window", database.ErrInvalidWindow, day.SlotMinutes)
	}

	var slots []*models.Slot
	for cur := start; !cur.Add(length).After(end); cur = cur.Add(length) {
		slots = append(slots, &models.Slot{
			ServiceDayID: day.ID,
			LocationID:   day.LocationID,
			StartAt:      cur.UTC(),
			EndAt:        cur.Add(length).UTC(),
			Status:       models.SlotOpen,
		})
	}
	return slots, nil
}

func combineDateAndClock(date time.Time, clock string, tz *time.Location) (time.Time, error) {
	t, err := time.Parse(models.TimeOfDayLayout, clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, tz), nil
}

// GenerateSlots materializes the day's slot set. Idempotent: re-running
// inserts nothing new because the store ignores duplicate intervals.
func (s *ScheduleService) GenerateSlots(ctx context.Context, serviceDayID int64) (int, error) {
	day, err := s.store.GetServiceDay(ctx, serviceDayID)
	if err != nil {
		return 0, err
	}

	slots, err := s.buildSlots(day)
	if err != nil {
		return 0, err
	}

	inserted, err := s.store.CreateSlots(ctx, slots)
	if err != nil {
		return inserted, err
	}

	metrics.AddSlotsGenerated(inserted)
	s.logger.Info().
		Int64("service_day_id", serviceDayID).
		Int("candidates", len(slots)).
		Int("inserted", inserted).
		Msg("slots generated")

	if err := s.eventBus.PublishJSON(events.EventSlotsGenerated, map[string]interface{}{
		"service_day_id": serviceDayID,
		"inserted":       inserted,
	}); err != nil {
		s.logger.Error().Err(err).Msg("publish slots generated event")
	}

	return inserted, nil
}

// RegenerateSlots replaces the day's slot set after an edit. Destructive:
// blocked entirely when any confirmed booking sits under the day. Pending
// holds are cancelled (a hold is not a guaranteed seat), terminal bookings
// purged, then open/blocked slots deleted and the set rebuilt.
func (s *ScheduleService) RegenerateSlots(ctx context.Context, serviceDayID int64) (int, error) {
	confirmed, err := s.store.CountSlotsWithBookingStatus(ctx, serviceDayID, models.StatusConfirmed)
	if err != nil {
		return 0, err
	}
	if confirmed > 0 {
		return 0, fmt.Errorf("%w: %d confirmed bookings under service day %d", database.ErrConflict, confirmed, serviceDayID)
	}

	cancelled, err := s.store.CancelPendingBookingsForServiceDay(ctx, serviceDayID)
	if err != nil {
		return 0, err
	}
	if cancelled > 0 {
		s.logger.Warn().Int64("cancelled", cancelled).Int64("service_day_id", serviceDayID).Msg("pending holds cancelled by regeneration")
	}

	if err := s.store.PurgeTerminalBookingsForServiceDay(ctx, serviceDayID); err != nil {
		return 0, err
	}
	if err := s.store.DeleteSlotsForServiceDay(ctx, serviceDayID, models.SlotOpen, models.SlotBlocked); err != nil {
		return 0, err
	}

	return s.GenerateSlots(ctx, serviceDayID)
}

func (s *ScheduleService) CreateServiceDay(ctx context.Context, day *models.ServiceDay) error {
	if _, err := s.buildSlots(day); err != nil {
		return err
	}
	if _, err := s.store.GetLocation(ctx, day.LocationID); err != nil {
		return err
	}
	return s.store.CreateServiceDay(ctx, day)
}

// UpdateServiceDay persists edits. Window or slot-length changes while
// confirmed bookings exist are rejected; callers regenerate afterwards to
// realign the slot set.
func (s *ScheduleService) UpdateServiceDay(ctx context.Context, day *models.ServiceDay) error {
	if _, err := s.buildSlots(day); err != nil {
		return err
	}

	current, err := s.store.GetServiceDay(ctx, day.ID)
	if err != nil {
		return err
	}

	windowChanged := current.WindowStart != day.WindowStart ||
		current.WindowEnd != day.WindowEnd ||
		current.SlotMinutes != day.SlotMinutes ||
		!current.Date.Equal(day.Date)
	if windowChanged {
		confirmed, err := s.store.CountSlotsWithBookingStatus(ctx, day.ID, models.StatusConfirmed)
		if err != nil {
			return err
		}
		if confirmed > 0 {
			return fmt.Errorf("%w: window change blocked by %d confirmed bookings", database.ErrConflict, confirmed)
		}
	}

	day.LocationID = current.LocationID
	return s.store.UpdateServiceDay(ctx, day)
}

// DeleteServiceDay removes the day and everything under it, unless an active
// booking is present.
func (s *ScheduleService) DeleteServiceDay(ctx context.Context, serviceDayID int64) error {
	if _, err := s.store.GetServiceDay(ctx, serviceDayID); err != nil {
		return err
	}

	active, err := s.store.CountSlotsWithBookingStatus(ctx, serviceDayID, models.StatusPending, models.StatusConfirmed)
	if err != nil {
		return err
	}
	if active > 0 {
		return fmt.Errorf("%w: %d active bookings under service day %d", database.ErrConflict, active, serviceDayID)
	}

	// Referential order: bookings, then slots, then the day itself.
	if err := s.store.PurgeTerminalBookingsForServiceDay(ctx, serviceDayID); err != nil {
		return err
	}
	if err := s.store.DeleteSlotsForServiceDay(ctx, serviceDayID); err != nil {
		return err
	}
	return s.store.DeleteServiceDay(ctx, serviceDayID)
}

func (s *ScheduleService) CreateLocation(ctx context.Context, location *models.Location) error {
	return s.store.CreateLocation(ctx, location)
}

func (s *ScheduleService) UpdateLocation(ctx context.Context, location *models.Location) error {
	return s.store.UpdateLocation(ctx, location)
}

func (s *ScheduleService) GetLocation(ctx context.Context, id int64) (*models.Location, error) {
	return s.store.GetLocation(ctx, id)
}

func (s *ScheduleService) ListLocations(ctx context.Context) ([]*models.Location, error) {
	return s.store.ListLocations(ctx)
}

func (s *ScheduleService) GetServiceDay(ctx context.Context, id int64) (*models.ServiceDay, error) {
	return s.store.GetServiceDay(ctx, id)
}

func (s *ScheduleService) ListServiceDays(ctx context.Context, locationID int64) ([]*models.ServiceDay, error) {
	return s.store.ListServiceDaysByLocation(ctx, locationID)
}

func (s *ScheduleService) ListSlots(ctx context.Context, serviceDayID int64, openOnly bool) ([]*models.Slot, error) {
	if openOnly {
		return s.store.ListOpenSlotsByServiceDay(ctx, serviceDayID)
	}
	return s.store.ListSlotsByServiceDay(ctx, serviceDayID)
}

// DeleteLocation removes a location once no service day under it carries an
// active booking. Guards run before any row is touched so a conflict leaves
// the location fully intact.
func (s *ScheduleService) DeleteLocation(ctx context.Context, locationID int64) error {
	if _, err := s.store.GetLocation(ctx, locationID); err != nil {
		return err
	}

	days, err := s.store.ListServiceDaysByLocation(ctx, locationID)
	if err != nil {
		return err
	}

	for _, day := range days {
		active, err := s.store.CountSlotsWithBookingStatus(ctx, day.ID, models.StatusPending, models.StatusConfirmed)
		if err != nil {
			return err
		}
		if active > 0 {
			return fmt.Errorf("%w: %d active bookings under service day %d", database.ErrConflict, active, day.ID)
		}
	}

	for _, day := range days {
		if err := s.store.PurgeTerminalBookingsForServiceDay(ctx, day.ID); err != nil {
			return err
		}
		if err := s.store.DeleteSlotsForServiceDay(ctx, day.ID); err != nil {
			return err
		}
		if err := s.store.DeleteServiceDay(ctx, day.ID); err != nil {
			return err
		}
	}

	return s.store.DeleteLocation(ctx, locationID)
}
