package database

import (
	"context"
	"testing"
	"time"

	"medibook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSlotsIgnoresDuplicates(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	location := seedLocation(t, db)
	day := seedServiceDay(t, db, location.ID)

	start := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	slots := []*models.Slot{
		{ServiceDayID: day.ID, LocationID: location.ID, StartAt: start, EndAt: start.Add(30 * time.Minute), Status: models.SlotOpen},
		{ServiceDayID: day.ID, LocationID: location.ID, StartAt: start.Add(30 * time.Minute), EndAt: start.Add(time.Hour), Status: models.SlotOpen},
	}

	inserted, err := db.CreateSlots(ctx, slots)
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)

	// Same intervals again: nothing new.
	inserted, err = db.CreateSlots(ctx, []*models.Slot{
		{ServiceDayID: day.ID, LocationID: location.ID, StartAt: start, EndAt: start.Add(30 * time.Minute), Status: models.SlotOpen},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, inserted)

	stored, err := db.ListSlotsByServiceDay(ctx, day.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestUpdateSlotStatusConditional(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	location := seedLocation(t, db)
	day := seedServiceDay(t, db, location.ID)
	slot := seedSlot(t, db, day, time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC), models.SlotOpen)

	// open -> blocked applies.
	ok, err := db.UpdateSlotStatus(ctx, slot.ID, models.SlotOpen, models.SlotBlocked)
	require.NoError(t, err)
	assert.True(t, ok)

	// Second claim from open misses: the row is no longer open.
	ok, err = db.UpdateSlotStatus(ctx, slot.ID, models.SlotOpen, models.SlotBlocked)
	require.NoError(t, err)
	assert.False(t, ok)

	// Unknown slot just reports no match.
	ok, err = db.UpdateSlotStatus(ctx, 9999, models.SlotOpen, models.SlotBlocked)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := db.GetSlot(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SlotBlocked, got.Status)
}

func TestListOpenSlots(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	location := seedLocation(t, db)
	day := seedServiceDay(t, db, location.ID)
	base := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)

	seedSlot(t, db, day, base, models.SlotOpen)
	seedSlot(t, db, day, base.Add(30*time.Minute), models.SlotBooked)
	seedSlot(t, db, day, base.Add(time.Hour), models.SlotOpen)

	open, err := db.ListOpenSlotsByServiceDay(ctx, day.ID)
	require.NoError(t, err)
	assert.Len(t, open, 2)
	for _, s := range open {
		assert.Equal(t, models.SlotOpen, s.Status)
	}
}

func TestDeleteSlotsForServiceDayFiltered(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	location := seedLocation(t, db)
	day := seedServiceDay(t, db, location.ID)
	base := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)

	seedSlot(t, db, day, base, models.SlotOpen)
	seedSlot(t, db, day, base.Add(30*time.Minute), models.SlotBlocked)
	booked := seedSlot(t, db, day, base.Add(time.Hour), models.SlotBooked)

	require.NoError(t, db.DeleteSlotsForServiceDay(ctx, day.ID, models.SlotOpen, models.SlotBlocked))

	remaining, err := db.ListSlotsByServiceDay(ctx, day.ID)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, booked.ID, remaining[0].ID)

	// No status filter removes everything.
	require.NoError(t, db.DeleteSlotsForServiceDay(ctx, day.ID))
	remaining, err = db.ListSlotsByServiceDay(ctx, day.ID)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestCountSlotsWithBookingStatus(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	location := seedLocation(t, db)
	day := seedServiceDay(t, db, location.ID)
	base := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)

	s1 := seedSlot(t, db, day, base, models.SlotBooked)
	s2 := seedSlot(t, db, day, base.Add(30*time.Minute), models.SlotBlocked)
	seedSlot(t, db, day, base.Add(time.Hour), models.SlotOpen)

	require.NoError(t, db.CreateBooking(ctx, &models.Booking{
		SlotID: s1.ID, Name: "Ann Lee", Email: "ann@example.com", Phone: "+441234", Attendees: 1, Status: models.StatusConfirmed,
	}))
	require.NoError(t, db.CreateBooking(ctx, &models.Booking{
		SlotID: s2.ID, Name: "Bob Roy", Email: "bob@example.com", Phone: "+441235", Attendees: 1, Status: models.StatusPending,
	}))

	confirmed, err := db.CountSlotsWithBookingStatus(ctx, day.ID, models.StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, 1, confirmed)

	active, err := db.CountSlotsWithBookingStatus(ctx, day.ID, models.StatusPending, models.StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, 2, active)

	terminal, err := db.CountSlotsWithBookingStatus(ctx, day.ID, models.StatusExpired)
	require.NoError(t, err)
	assert.Equal(t, 0, terminal)
}

func TestGetSlotNotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.GetSlot(context.Background(), 42)
	require.ErrorIs(t, err, ErrNotFound)
}
