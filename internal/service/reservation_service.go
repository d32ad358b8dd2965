package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"medibook/internal/database"
	"medibook/internal/domain"
	"medibook/internal/events"
	"medibook/internal/metrics"
	"medibook/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ReservationService claims slots and drives the booking lifecycle. All
// mutual exclusion runs through conditional writes on the slot status; when
// a conditional write succeeds and a dependent step fails, the service issues
// a compensating write before surfacing the error.
type ReservationService struct {
	store      domain.Store
	eventBus   domain.EventPublisher
	notify     domain.NotifyQueue
	holdWindow time.Duration
	validate   *validator.Validate
	logger     *zerolog.Logger
	now        func() time.Time
}

func NewReservationService(store domain.Store, eventBus domain.EventPublisher, notify domain.NotifyQueue, holdWindow time.Duration, logger *zerolog.Logger) *ReservationService {
	if holdWindow <= 0 {
		holdWindow = models.DefaultHoldWindowMinutes * time.Minute
	}
	return &ReservationService{
		store:      store,
		eventBus:   eventBus,
		notify:     notify,
		holdWindow: holdWindow,
		validate:   validator.New(),
		logger:     logger,
		now:        time.Now,
	}
}

// ClaimSlot reserves an open slot for the given contact. The self-serve flow
// creates a PENDING booking holding the slot (BLOCKED) until the hold window
// lapses; the operator flow (confirmNow) goes straight to CONFIRMED/BOOKED.
func (s *ReservationService) ClaimSlot(ctx context.Context, slotID int64, details models.BookingDetails, confirmNow bool) (*models.Booking, error) {
	if details.Attendees == 0 {
		details.Attendees = 1
	}
	if err := s.validate.Struct(details); err != nil {
		return nil, fmt.Errorf("invalid booking details: %w", err)
	}

	status := models.StatusPending
	slotTarget := models.SlotBlocked
	if confirmNow {
		status = models.StatusConfirmed
		slotTarget = models.SlotBooked
	}

	// The claim itself: one conditional write, no read-then-write window.
	swapped, err := s.store.UpdateSlotStatus(ctx, slotID, models.SlotOpen, slotTarget)
	if err != nil {
		metrics.IncReservation("claim", "error")
		return nil, err
	}
	if !swapped {
		metrics.IncReservation("claim", "unavailable")
		if _, getErr := s.store.GetSlot(ctx, slotID); getErr != nil {
			return nil, getErr
		}
		return nil, database.ErrSlotUnavailable
	}

	booking := &models.Booking{
		SlotID:       slotID,
		Name:         details.Name,
		Email:        details.Email,
		Phone:        details.Phone,
		Organization: details.Organization,
		Attendees:    details.Attendees,
		Status:       status,
		ConfirmToken: uuid.NewString(),
	}
	if !confirmNow {
		expires := s.now().Add(s.holdWindow)
		booking.HoldExpiresAt = &expires
	}

	if err := s.store.CreateBooking(ctx, booking); err != nil {
		// A held slot without a booking violates the core invariant;
		// put the slot back before reporting the failure.
		s.compensateSlot(ctx, slotID, slotTarget, models.SlotOpen)
		metrics.IncReservation("claim", "error")
		return nil, err
	}

	metrics.IncReservation("claim", "ok")
	event := events.EventBookingClaimed
	if confirmNow {
		event = events.EventBookingConfirmed
	}
	s.afterTransition(ctx, event, booking, 0)

	return booking, nil
}

// ConfirmBooking promotes a pending hold to a confirmed booking. The hold
// window is re-checked here; correctness never depends on the sweeper having
// run.
func (s *ReservationService) ConfirmBooking(ctx context.Context, bookingID int64) error {
	// The booking row is the contended resource here (confirm vs sweep vs
	// reschedule). The conditional update is pinned to the slot reference so
	// the slot effect below always hits the slot the booking held when the
	// status flipped; a pin miss means a reschedule repointed the booking,
	// and we re-read and try again against the current slot.
	for attempt := 0; attempt < lifecycleRetries; attempt++ {
		booking, err := s.store.GetBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if !canTransition(booking.Status, models.StatusConfirmed) {
			metrics.IncReservation("confirm", "invalid")
			return fmt.Errorf("%w: %s -> confirmed", database.ErrInvalidTransition, booking.Status)
		}
		if booking.HoldExpiresAt != nil && s.now().After(*booking.HoldExpiresAt) {
			metrics.IncReservation("confirm", "expired")
			return fmt.Errorf("%w: hold expired at %s", database.ErrInvalidTransition, booking.HoldExpiresAt.Format(time.RFC3339))
		}

		ok, err := s.store.UpdateBookingStatusSlotIf(ctx, bookingID, models.StatusConfirmed, booking.SlotID, models.StatusPending)
		if err != nil {
			metrics.IncReservation("confirm", "error")
			return err
		}
		if !ok {
			continue
		}

		moved, err := s.moveSlot(ctx, booking.SlotID, models.SlotBooked, models.SlotBlocked, models.SlotOpen)
		if err != nil || !moved {
			// Slot was not in a claimable state; undo the booking promotion.
			if ok, cerr := s.store.UpdateBookingStatusIf(ctx, bookingID, models.StatusPending, models.StatusConfirmed); cerr != nil || !ok {
				s.logger.Error().Int64("booking_id", bookingID).AnErr("cause", err).
					Msg("CRITICAL: failed to revert booking after slot update failure, manual reconciliation required")
			}
			metrics.IncReservation("confirm", "error")
			if err != nil {
				return err
			}
			return fmt.Errorf("%w: slot %d not in a held state", database.ErrInvalidTransition, booking.SlotID)
		}

		booking.Status = models.StatusConfirmed
		metrics.IncReservation("confirm", "ok")
		s.afterTransition(ctx, events.EventBookingConfirmed, booking, 0)
		return nil
	}

	metrics.IncReservation("confirm", "invalid")
	return fmt.Errorf("%w: booking changed concurrently", database.ErrInvalidTransition)
}

// CancelBooking cancels a pending or confirmed booking and releases its slot.
func (s *ReservationService) CancelBooking(ctx context.Context, bookingID int64) error {
	// Same slot-pinned discipline as ConfirmBooking: the release below must
	// target the slot the booking held when it went terminal, not a slot
	// reference read before a concurrent reschedule.
	for attempt := 0; attempt < lifecycleRetries; attempt++ {
		booking, err := s.store.GetBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if !canTransition(booking.Status, models.StatusCancelled) {
			metrics.IncReservation("cancel", "invalid")
			return fmt.Errorf("%w: %s -> cancelled", database.ErrInvalidTransition, booking.Status)
		}

		ok, err := s.store.UpdateBookingStatusSlotIf(ctx, bookingID, models.StatusCancelled, booking.SlotID, models.StatusPending, models.StatusConfirmed)
		if err != nil {
			metrics.IncReservation("cancel", "error")
			return err
		}
		if !ok {
			continue
		}

		// Release is best-effort: a lingering held slot is a lesser anomaly
		// and self-heals through regeneration or cleanup.
		if moved, err := s.moveSlot(ctx, booking.SlotID, models.SlotOpen, models.SlotBlocked, models.SlotBooked); err != nil || !moved {
			s.logger.Warn().Int64("slot_id", booking.SlotID).AnErr("cause", err).Msg("slot release after cancel did not apply")
		}

		booking.Status = models.StatusCancelled
		metrics.IncReservation("cancel", "ok")
		s.afterTransition(ctx, events.EventBookingCancelled, booking, 0)
		return nil
	}

	metrics.IncReservation("cancel", "invalid")
	return fmt.Errorf("%w: booking changed concurrently", database.ErrInvalidTransition)
}

// RescheduleBooking moves an active booking to a new open slot. Ordering:
// claim the new slot first, then repoint the booking, then release the old
// slot. A failed repoint compensates the new slot's claim; a failed release
// is logged and left for cleanup.
func (s *ReservationService) RescheduleBooking(ctx context.Context, bookingID, newSlotID int64) error {
	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return err
	}
	if !booking.Active() {
		metrics.IncReservation("reschedule", "invalid")
		return fmt.Errorf("%w: cannot reschedule %s booking", database.ErrInvalidTransition, booking.Status)
	}
	if booking.SlotID == newSlotID {
		return nil
	}

	target := heldSlotStatus(booking.Status)

	swapped, err := s.store.UpdateSlotStatus(ctx, newSlotID, models.SlotOpen, target)
	if err != nil {
		metrics.IncReservation("reschedule", "error")
		return err
	}
	if !swapped {
		metrics.IncReservation("reschedule", "unavailable")
		if _, getErr := s.store.GetSlot(ctx, newSlotID); getErr != nil {
			return getErr
		}
		return database.ErrSlotUnavailable
	}

	oldSlotID := booking.SlotID
	ok, err := s.store.UpdateBookingSlotIf(ctx, bookingID, oldSlotID, newSlotID, booking.Status)
	if err != nil || !ok {
		// The new slot is held but the booking still points at the old one;
		// undo the claim so the original pairing stays intact.
		s.compensateSlot(ctx, newSlotID, target, models.SlotOpen)
		metrics.IncReservation("reschedule", "error")
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: booking changed concurrently", database.ErrInvalidTransition)
	}

	if moved, err := s.moveSlot(ctx, oldSlotID, models.SlotOpen, target, otherHeld(target)); err != nil || !moved {
		s.logger.Warn().Int64("slot_id", oldSlotID).AnErr("cause", err).Msg("old slot release after reschedule did not apply")
	}

	booking.SlotID = newSlotID
	metrics.IncReservation("reschedule", "ok")
	s.afterTransition(ctx, events.EventBookingRescheduled, booking, oldSlotID)
	return nil
}

// SweepExpiredHolds expires pending bookings whose hold lapsed and reopens
// their slots. Safe to run concurrently with itself and with confirm: both
// sides race on the same conditional booking update, so exactly one wins.
func (s *ReservationService) SweepExpiredHolds(ctx context.Context) (int, error) {
	stale, err := s.store.ListPendingHoldsBefore(ctx, s.now())
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, booking := range stale {
		// Pinned to the slot reference like confirm and cancel; a pin miss
		// with the booking still pending means it was rescheduled after the
		// scan, so retry against its current slot (the hold clock is
		// unchanged by a reschedule).
		won := false
		for attempt := 0; attempt < lifecycleRetries; attempt++ {
			ok, err := s.store.UpdateBookingStatusSlotIf(ctx, booking.ID, models.StatusExpired, booking.SlotID, models.StatusPending)
			if err != nil {
				return expired, err
			}
			if ok {
				won = true
				break
			}
			fresh, err := s.store.GetBooking(ctx, booking.ID)
			if err != nil {
				if errors.Is(err, database.ErrNotFound) {
					break
				}
				return expired, err
			}
			if fresh.Status != models.StatusPending {
				// Confirmed (or cancelled) between the scan and the update.
				break
			}
			booking = fresh
		}
		if !won {
			continue
		}

		if moved, err := s.moveSlot(ctx, booking.SlotID, models.SlotOpen, models.SlotBlocked); err != nil || !moved {
			s.logger.Warn().Int64("slot_id", booking.SlotID).AnErr("cause", err).Msg("slot reopen after expiry did not apply")
		}

		expired++
		metrics.IncHoldsExpired()
		booking.Status = models.StatusExpired
		s.publishEvent(ctx, events.EventBookingExpired, booking, 0)
	}

	if expired > 0 {
		s.logger.Info().Int("expired", expired).Msg("expired stale holds")
	}
	return expired, nil
}

func (s *ReservationService) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	return s.store.GetBooking(ctx, id)
}

func (s *ReservationService) ListBookings(ctx context.Context, start, end time.Time) ([]*models.Booking, error) {
	return s.store.ListBookingsByDateRange(ctx, start, end)
}

// moveSlot tries the conditional slot update from each expected status in
// order, returning true on the first that applies.
func (s *ReservationService) moveSlot(ctx context.Context, slotID int64, newStatus string, expected ...string) (bool, error) {
	for _, from := range expected {
		ok, err := s.store.UpdateSlotStatus(ctx, slotID, from, newStatus)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// compensateSlot restores a slot's prior status after a dependent step
// failed. A failure here is the one genuinely unrecoverable case.
func (s *ReservationService) compensateSlot(ctx context.Context, slotID int64, from, to string) {
	ok, err := s.store.UpdateSlotStatus(ctx, slotID, from, to)
	if err != nil || !ok {
		s.logger.Error().Int64("slot_id", slotID).Str("from", from).Str("to", to).AnErr("cause", err).
			Msg("CRITICAL: slot compensation failed, manual reconciliation required")
	}
}

func otherHeld(target string) string {
	if target == models.SlotBlocked {
		return models.SlotBooked
	}
	return models.SlotBlocked
}

func (s *ReservationService) afterTransition(ctx context.Context, event string, booking *models.Booking, oldSlotID int64) {
	s.publishEvent(ctx, event, booking, oldSlotID)
	s.enqueueNotify(ctx, event, booking, oldSlotID)
}

func (s *ReservationService) buildPayload(ctx context.Context, booking *models.Booking, oldSlotID int64) events.BookingEventPayload {
	payload := events.BookingEventPayload{
		BookingID: booking.ID,
		SlotID:    booking.SlotID,
		OldSlotID: oldSlotID,
		Name:      booking.Name,
		Email:     booking.Email,
		Status:    booking.Status,
	}
	if slot, err := s.store.GetSlot(ctx, booking.SlotID); err == nil {
		payload.LocationID = slot.LocationID
		payload.SlotStart = slot.StartAt
		payload.SlotEnd = slot.EndAt
	}
	return payload
}

func (s *ReservationService) publishEvent(ctx context.Context, eventType string, booking *models.Booking, oldSlotID int64) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.PublishJSON(eventType, s.buildPayload(ctx, booking, oldSlotID)); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", booking.ID).Msg("publish event error")
	}
}

func (s *ReservationService) enqueueNotify(ctx context.Context, eventType string, booking *models.Booking, oldSlotID int64) {
	if s.notify == nil {
		return
	}
	if err := s.notify.Enqueue(ctx, eventType, s.buildPayload(ctx, booking, oldSlotID)); err != nil {
		s.logger.Error().Err(err).Int64("booking_id", booking.ID).Str("event", eventType).Msg("notify enqueue error")
	}
}
