package export

import (
	"context"
	"testing"
	"time"

	"medibook/internal/database"
	"medibook/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestBookingsToFile(t *testing.T) {
	logger := zerolog.Nop()
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()

	location := &models.Location{Name: "Central Clinic"}
	require.NoError(t, db.CreateLocation(ctx, location))

	day := &models.ServiceDay{
		LocationID:  location.ID,
		Date:        time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		WindowStart: "09:00",
		WindowEnd:   "10:00",
		SlotMinutes: 30,
	}
	require.NoError(t, db.CreateServiceDay(ctx, day))

	start := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	slot := &models.Slot{
		ServiceDayID: day.ID,
		LocationID:   location.ID,
		StartAt:      start,
		EndAt:        start.Add(30 * time.Minute),
		Status:       models.SlotBooked,
	}
	_, err = db.CreateSlots(ctx, []*models.Slot{slot})
	require.NoError(t, err)

	require.NoError(t, db.CreateBooking(ctx, &models.Booking{
		SlotID:    slot.ID,
		Name:      "Jane Roe",
		Email:     "jane@example.com",
		Phone:     "+44123456",
		Attendees: 2,
		Status:    models.StatusConfirmed,
	}))

	exporter := NewExporter(db, t.TempDir(), &logger)

	filePath, err := exporter.BookingsToFile(ctx, start.AddDate(0, 0, -1), start.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.FileExists(t, filePath)

	f, err := excelize.OpenFile(filePath)
	require.NoError(t, err)
	defer f.Close()

	name, err := f.GetCellValue("Bookings", "D3")
	require.NoError(t, err)
	assert.Equal(t, "Jane Roe", name)

	status, err := f.GetCellValue("Bookings", "H3")
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, status)
}

func TestBookingsToFileEmptyRange(t *testing.T) {
	logger := zerolog.Nop()
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	exporter := NewExporter(db, t.TempDir(), &logger)

	filePath, err := exporter.BookingsToFile(context.Background(),
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.FileExists(t, filePath)
}
