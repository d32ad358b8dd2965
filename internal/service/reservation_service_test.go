package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"medibook/internal/database"
	"medibook/internal/domain"
	"medibook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDetails() models.BookingDetails {
	return models.BookingDetails{
		Name:      "Jane Roe",
		Email:     "jane@example.com",
		Phone:     "+44123456",
		Attendees: 1,
	}
}

// openSlots generates the day's slots and returns them, oldest first.
func openSlots(t *testing.T, schedule *ScheduleService, day *models.ServiceDay) []*models.Slot {
	t.Helper()
	ctx := context.Background()
	_, err := schedule.GenerateSlots(ctx, day.ID)
	require.NoError(t, err)
	slots, err := schedule.ListSlots(ctx, day.ID, true)
	require.NoError(t, err)
	require.NotEmpty(t, slots)
	return slots
}

func TestClaimSlotSelfServe(t *testing.T) {
	db, schedule, reservations := newTestEnv(t)
	ctx := context.Background()

	day := newDay(t, schedule, "09:00", "10:00", 30)
	slots := openSlots(t, schedule, day)

	booking, err := reservations.ClaimSlot(ctx, slots[0].ID, validDetails(), false)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, booking.Status)
	assert.NotEmpty(t, booking.ConfirmToken)
	require.NotNil(t, booking.HoldExpiresAt)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), *booking.HoldExpiresAt, time.Minute)

	slot, err := db.GetSlot(ctx, slots[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.SlotBlocked, slot.Status)
}

func TestClaimSlotOperatorConfirmNow(t *testing.T) {
	db, schedule, reservations := newTestEnv(t)
	ctx := context.Background()

	day := newDay(t, schedule, "09:00", "10:00", 30)
	slots := openSlots(t, schedule, day)

	booking, err := reservations.ClaimSlot(ctx, slots[0].ID, validDetails(), true)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, booking.Status)
	assert.Nil(t, booking.HoldExpiresAt)

	slot, err := db.GetSlot(ctx, slots[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.SlotBooked, slot.Status)
}

func TestClaimSlotContention(t *testing.T) {
	_, schedule, reservations := newTestEnv(t)
	ctx := context.Background()

	day := newDay(t, schedule, "09:00", "10:00", 30)
	slots := openSlots(t, schedule, day)

	_, err := reservations.ClaimSlot(ctx, slots[0].ID, validDetails(), false)
	require.NoError(t, err)

	_, err = reservations.ClaimSlot(ctx, slots[0].ID, validDetails(), false)
	assert.ErrorIs(t, err, database.ErrSlotUnavailable)

	_, err = reservations.ClaimSlot(ctx, 9999, validDetails(), false)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestClaimSlotValidation(t *testing.T) {
	_, schedule, reservations := newTestEnv(t)
	ctx := context.Background()

	day := newDay(t, schedule, "09:00", "10:00", 30)
	slots := openSlots(t, schedule, day)

	details := validDetails()
	details.Email = "not-an-email"
	_, err := reservations.ClaimSlot(ctx, slots[0].ID, details, false)
	require.Error(t, err)

	// The failed claim never touched the slot.
	open, err := schedule.ListSlots(ctx, day.ID, true)
	require.NoError(t, err)
	assert.Len(t, open, 2)
}

// failingStore passes everything through except booking creation.
type failingStore struct {
	domain.Store
	createBookingErr error
}

func (f *failingStore) CreateBooking(ctx context.Context, b *models.Booking) error {
	if f.createBookingErr != nil {
		return f.createBookingErr
	}
	return f.Store.CreateBooking(ctx, b)
}

func TestClaimSlotCompensatesOnBookingFailure(t *testing.T) {
	db, schedule, reservations := newTestEnv(t)
	ctx := context.Background()

	day := newDay(t, schedule, "09:00", "10:00", 30)
	slots := openSlots(t, schedule, day)

	broken := &failingStore{Store: db, createBookingErr: errors.New("disk full")}
	reservations.store = broken

	_, err := reservations.ClaimSlot(ctx, slots[0].ID, validDetails(), false)
	require.Error(t, err)

	// Compensation put the slot back to open.
	slot, err := db.GetSlot(ctx, slots[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.SlotOpen, slot.Status)
}

func TestConfirmBooking(t *testing.T) {
	db, schedule, reservations := newTestEnv(t)
	ctx := context.Background()

	day := newDay(t, schedule, "09:00", "10:00", 30)
	slots := openSlots(t, schedule, day)

	booking, err := reservations.ClaimSlot(ctx, slots[0].ID, validDetails(), false)
	require.NoError(t, err)

	require.NoError(t, reservations.ConfirmBooking(ctx, booking.ID))

	got, err := db.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, got.Status)

	slot, err := db.GetSlot(ctx, slots[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.SlotBooked, slot.Status)

	// Confirming again is an invalid transition.
	err = reservations.ConfirmBooking(ctx, booking.ID)
	assert.ErrorIs(t, err, database.ErrInvalidTransition)
}

func TestConfirmExpiredHold(t *testing.T) {
	_, schedule, reservations := newTestEnv(t)
	ctx := context.Background()

	day := newDay(t, schedule, "09:00", "10:00", 30)
	slots := openSlots(t, schedule, day)

	base := time.Now()
	reservations.now = func() time.Time { return base }

	booking, err := reservations.ClaimSlot(ctx, slots[0].ID, validDetails(), false)
	require.NoError(t, err)

	// Clock jumps past the hold window before anyone confirms.
	reservations.now = func() time.Time { return base.Add(11 * time.Minute) }

	err = reservations.ConfirmBooking(ctx, booking.ID)
	assert.ErrorIs(t, err, database.ErrInvalidTransition)
}

func TestCancelBooking(t *testing.T) {
	db, schedule, reservations := newTestEnv(t)
	ctx := context.Background()

	day := newDay(t, schedule, "09:00", "10:00", 30)
	slots := openSlots(t, schedule, day)

	booking, err := reservations.ClaimSlot(ctx, slots[0].ID, validDetails(), true)
	require.NoError(t, err)

	require.NoError(t, reservations.CancelBooking(ctx, booking.ID))

	got, err := db.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, got.Status)

	slot, err := db.GetSlot(ctx, slots[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.SlotOpen, slot.Status)

	// Terminal bookings cannot be cancelled again.
	err = reservations.CancelBooking(ctx, booking.ID)
	assert.ErrorIs(t, err, database.ErrInvalidTransition)
}

func TestRescheduleBooking(t *testing.T) {
	db, schedule, reservations := newTestEnv(t)
	ctx := context.Background()

	day := newDay(t, schedule, "09:00", "10:30", 30)
	slots := openSlots(t, schedule, day)
	require.Len(t, slots, 3)

	booking, err := reservations.ClaimSlot(ctx, slots[0].ID, validDetails(), false)
	require.NoError(t, err)

	require.NoError(t, reservations.RescheduleBooking(ctx, booking.ID, slots[1].ID))

	got, err := db.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, slots[1].ID, got.SlotID)
	assert.Equal(t, models.StatusPending, got.Status)

	oldSlot, err := db.GetSlot(ctx, slots[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.SlotOpen, oldSlot.Status)

	newSlot, err := db.GetSlot(ctx, slots[1].ID)
	require.NoError(t, err)
	assert.Equal(t, models.SlotBlocked, newSlot.Status)
}

func TestRescheduleToOccupiedSlot(t *testing.T) {
	db, schedule, reservations := newTestEnv(t)
	ctx := context.Background()

	day := newDay(t, schedule, "09:00", "10:00", 30)
	slots := openSlots(t, schedule, day)
	require.Len(t, slots, 2)

	first, err := reservations.ClaimSlot(ctx, slots[0].ID, validDetails(), false)
	require.NoError(t, err)
	_, err = reservations.ClaimSlot(ctx, slots[1].ID, validDetails(), false)
	require.NoError(t, err)

	err = reservations.RescheduleBooking(ctx, first.ID, slots[1].ID)
	assert.ErrorIs(t, err, database.ErrSlotUnavailable)

	// Original pairing untouched.
	got, err := db.GetBooking(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, slots[0].ID, got.SlotID)

	slot, err := db.GetSlot(ctx, slots[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.SlotBlocked, slot.Status)
}

func TestRescheduleTerminalBooking(t *testing.T) {
	_, schedule, reservations := newTestEnv(t)
	ctx := context.Background()

	day := newDay(t, schedule, "09:00", "10:00", 30)
	slots := openSlots(t, schedule, day)

	booking, err := reservations.ClaimSlot(ctx, slots[0].ID, validDetails(), false)
	require.NoError(t, err)
	require.NoError(t, reservations.CancelBooking(ctx, booking.ID))

	err = reservations.RescheduleBooking(ctx, booking.ID, slots[1].ID)
	assert.ErrorIs(t, err, database.ErrInvalidTransition)
}

// interleavingStore runs hook once, just before the first conditional booking
// transition, to model another actor slipping in between the booking read and
// the status update.
type interleavingStore struct {
	domain.Store
	hook func()
	once sync.Once
}

func (s *interleavingStore) UpdateBookingStatusSlotIf(ctx context.Context, id int64, newStatus string, slotID int64, fromStatuses ...string) (bool, error) {
	s.once.Do(s.hook)
	return s.Store.UpdateBookingStatusSlotIf(ctx, id, newStatus, slotID, fromStatuses...)
}

func TestConfirmAfterConcurrentReschedule(t *testing.T) {
	db, schedule, reservations := newTestEnv(t)
	ctx := context.Background()

	day := newDay(t, schedule, "09:00", "10:00", 30)
	slots := openSlots(t, schedule, day)
	require.Len(t, slots, 2)

	booking, err := reservations.ClaimSlot(ctx, slots[0].ID, validDetails(), false)
	require.NoError(t, err)

	// A reschedule lands after confirm read the booking but before its
	// conditional update. Confirm must book the slot the booking actually
	// holds, not the one it read.
	wrapped := &interleavingStore{Store: db, hook: func() {
		require.NoError(t, reservations.RescheduleBooking(ctx, booking.ID, slots[1].ID))
	}}
	reservations.store = wrapped

	require.NoError(t, reservations.ConfirmBooking(ctx, booking.ID))

	got, err := db.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, got.Status)
	assert.Equal(t, slots[1].ID, got.SlotID)

	newSlot, err := db.GetSlot(ctx, slots[1].ID)
	require.NoError(t, err)
	assert.Equal(t, models.SlotBooked, newSlot.Status)

	oldSlot, err := db.GetSlot(ctx, slots[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.SlotOpen, oldSlot.Status)
}

func TestCancelAfterConcurrentReschedule(t *testing.T) {
	db, schedule, reservations := newTestEnv(t)
	ctx := context.Background()

	day := newDay(t, schedule, "09:00", "10:00", 30)
	slots := openSlots(t, schedule, day)
	require.Len(t, slots, 2)

	booking, err := reservations.ClaimSlot(ctx, slots[0].ID, validDetails(), false)
	require.NoError(t, err)

	wrapped := &interleavingStore{Store: db, hook: func() {
		require.NoError(t, reservations.RescheduleBooking(ctx, booking.ID, slots[1].ID))
	}}
	reservations.store = wrapped

	require.NoError(t, reservations.CancelBooking(ctx, booking.ID))

	got, err := db.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, got.Status)

	// Cancel released the rescheduled slot; both slots end up open.
	for _, slot := range slots {
		released, err := db.GetSlot(ctx, slot.ID)
		require.NoError(t, err)
		assert.Equal(t, models.SlotOpen, released.Status)
	}
}

func TestSweepAfterConcurrentReschedule(t *testing.T) {
	db, schedule, reservations := newTestEnv(t)
	ctx := context.Background()

	day := newDay(t, schedule, "09:00", "10:00", 30)
	slots := openSlots(t, schedule, day)
	require.Len(t, slots, 2)

	base := time.Now()
	reservations.now = func() time.Time { return base }

	booking, err := reservations.ClaimSlot(ctx, slots[0].ID, validDetails(), false)
	require.NoError(t, err)

	reservations.now = func() time.Time { return base.Add(11 * time.Minute) }

	// The hold moves to a new slot between the sweeper's scan and its
	// conditional update. The hold clock is unchanged by a reschedule, so
	// the sweep must still expire it and reopen the slot it now holds.
	wrapped := &interleavingStore{Store: db, hook: func() {
		require.NoError(t, reservations.RescheduleBooking(ctx, booking.ID, slots[1].ID))
	}}
	reservations.store = wrapped

	expired, err := reservations.SweepExpiredHolds(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	got, err := db.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusExpired, got.Status)

	for _, slot := range slots {
		released, err := db.GetSlot(ctx, slot.ID)
		require.NoError(t, err)
		assert.Equal(t, models.SlotOpen, released.Status)
	}
}

func TestSweepExpiredHolds(t *testing.T) {
	db, schedule, reservations := newTestEnv(t)
	ctx := context.Background()

	day := newDay(t, schedule, "09:00", "10:30", 30)
	slots := openSlots(t, schedule, day)
	require.Len(t, slots, 3)

	base := time.Now()
	reservations.now = func() time.Time { return base }

	stale, err := reservations.ClaimSlot(ctx, slots[0].ID, validDetails(), false)
	require.NoError(t, err)

	// Second hold claimed later, still inside its window at sweep time.
	reservations.now = func() time.Time { return base.Add(5 * time.Minute) }
	fresh, err := reservations.ClaimSlot(ctx, slots[1].ID, validDetails(), false)
	require.NoError(t, err)

	reservations.now = func() time.Time { return base.Add(11 * time.Minute) }
	expired, err := reservations.SweepExpiredHolds(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	got, err := db.GetBooking(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusExpired, got.Status)

	reopened, err := db.GetSlot(ctx, slots[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.SlotOpen, reopened.Status)

	got, err = db.GetBooking(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)

	// Idempotent: a second sweep finds nothing.
	expired, err = reservations.SweepExpiredHolds(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, expired)
}

func TestConfirmLosesRaceAgainstSweep(t *testing.T) {
	_, schedule, reservations := newTestEnv(t)
	ctx := context.Background()

	day := newDay(t, schedule, "09:00", "10:00", 30)
	slots := openSlots(t, schedule, day)

	base := time.Now()
	reservations.now = func() time.Time { return base }

	booking, err := reservations.ClaimSlot(ctx, slots[0].ID, validDetails(), false)
	require.NoError(t, err)

	reservations.now = func() time.Time { return base.Add(11 * time.Minute) }
	_, err = reservations.SweepExpiredHolds(ctx)
	require.NoError(t, err)

	err = reservations.ConfirmBooking(ctx, booking.ID)
	assert.ErrorIs(t, err, database.ErrInvalidTransition)
}

func TestLifecycleTransitions(t *testing.T) {
	assert.True(t, canTransition(models.StatusPending, models.StatusConfirmed))
	assert.True(t, canTransition(models.StatusPending, models.StatusCancelled))
	assert.True(t, canTransition(models.StatusPending, models.StatusExpired))
	assert.True(t, canTransition(models.StatusConfirmed, models.StatusCancelled))

	assert.False(t, canTransition(models.StatusConfirmed, models.StatusExpired))
	assert.False(t, canTransition(models.StatusCancelled, models.StatusConfirmed))
	assert.False(t, canTransition(models.StatusExpired, models.StatusPending))

	assert.Equal(t, models.SlotBooked, heldSlotStatus(models.StatusConfirmed))
	assert.Equal(t, models.SlotBlocked, heldSlotStatus(models.StatusPending))
}
