package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"medibook/internal/models"
)

const slotColumns = `id, service_day_id, location_id, start_at, end_at, status, created_at, updated_at`

func scanSlot(row interface{ Scan(...interface{}) error }) (*models.Slot, error) {
	var s models.Slot
	err := row.Scan(
		&s.ID, &s.ServiceDayID, &s.LocationID, &s.StartAt, &s.EndAt, &s.Status, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateSlots bulk-inserts candidate slots. Duplicate (service_day_id,
// start_at, end_at) triples are ignored, which makes generation idempotent.
// Returns the number of rows actually inserted.
func (db *DB) CreateSlots(ctx context.Context, slots []*models.Slot) (int, error) {
	query := `INSERT OR IGNORE INTO slots (service_day_id, location_id, start_at, end_at, status, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	inserted := 0
	for _, slot := range slots {
		result, err := db.ExecContext(ctx, query,
			slot.ServiceDayID,
			slot.LocationID,
			slot.StartAt.UTC(),
			slot.EndAt.UTC(),
			slot.Status,
			now,
			now,
		)
		if err != nil {
			return inserted, fmt.Errorf("failed to insert slot: %w", err)
		}
		rows, _ := result.RowsAffected()
		if rows > 0 {
			inserted++
			if id, err := result.LastInsertId(); err == nil {
				slot.ID = id
			}
			slot.CreatedAt = now
			slot.UpdatedAt = now
		}
	}
	return inserted, nil
}

func (db *DB) GetSlot(ctx context.Context, id int64) (*models.Slot, error) {
	query := `SELECT ` + slotColumns + ` FROM slots WHERE id = ?`
	slot, err := scanSlot(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get slot: %w", err)
	}
	return slot, nil
}

// UpdateSlotStatus is the compare-and-swap at the center of the engine:
// the slot moves to newStatus only if it currently holds expectedStatus.
// Returns true iff a row matched and changed.
func (db *DB) UpdateSlotStatus(ctx context.Context, id int64, expectedStatus, newStatus string) (bool, error) {
	query := `UPDATE slots SET status = ?, updated_at = ? WHERE id = ? AND status = ?`
	result, err := db.ExecContext(ctx, query, newStatus, time.Now(), id, expectedStatus)
	if err != nil {
		return false, fmt.Errorf("failed to update slot status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return rows == 1, nil
}

func (db *DB) ListSlotsByServiceDay(ctx context.Context, serviceDayID int64) ([]*models.Slot, error) {
	query := `SELECT ` + slotColumns + ` FROM slots WHERE service_day_id = ? ORDER BY start_at ASC`
	return db.listSlots(ctx, query, serviceDayID)
}

func (db *DB) ListOpenSlotsByServiceDay(ctx context.Context, serviceDayID int64) ([]*models.Slot, error) {
	query := `SELECT ` + slotColumns + ` FROM slots WHERE service_day_id = ? AND status = ? ORDER BY start_at ASC`
	return db.listSlots(ctx, query, serviceDayID, models.SlotOpen)
}

func (db *DB) listSlots(ctx context.Context, query string, args ...interface{}) ([]*models.Slot, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list slots: %w", err)
	}
	defer rows.Close()

	var slots []*models.Slot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan slot: %w", err)
		}
		slots = append(slots, slot)
	}
	return slots, rows.Err()
}

func (db *DB) DeleteSlot(ctx context.Context, id int64) error {
	_, err := db.ExecContext(ctx, `DELETE FROM slots WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete slot: %w", err)
	}
	return nil
}

// DeleteSlotsForServiceDay removes the day's slots, optionally restricted to
// the given statuses. Callers are expected to have run the booking guards and
// purged referencing bookings first.
func (db *DB) DeleteSlotsForServiceDay(ctx context.Context, serviceDayID int64, statuses ...string) error {
	query := `DELETE FROM slots WHERE service_day_id = ?`
	args := []interface{}{serviceDayID}
	if len(statuses) > 0 {
		query += ` AND status IN (?` + strings.Repeat(", ?", len(statuses)-1) + `)`
		for _, s := range statuses {
			args = append(args, s)
		}
	}
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete slots: %w", err)
	}
	return nil
}

// CountSlotsWithBookingStatus counts the day's slots carrying a booking in
// any of the given statuses. Used by the regeneration and deletion guards.
func (db *DB) CountSlotsWithBookingStatus(ctx context.Context, serviceDayID int64, statuses ...string) (int, error) {
	query := `SELECT COUNT(DISTINCT s.id)
              FROM slots s JOIN bookings b ON b.slot_id = s.id
              WHERE s.service_day_id = ? AND b.status IN (?` + strings.Repeat(", ?", len(statuses)-1) + `)`
	args := []interface{}{serviceDayID}
	for _, s := range statuses {
		args = append(args, s)
	}
	var count int
	if err := db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count guarded slots: %w", err)
	}
	return count, nil
}
