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

const bookingColumns = `id, slot_id, name, email, phone, organization, attendees, status,
                 hold_expires_at, confirm_token, created_at, updated_at`

func scanBooking(row interface{ Scan(...interface{}) error }) (*models.Booking, error) {
	var b models.Booking
	var org, token sql.NullString
	err := row.Scan(
		&b.ID, &b.SlotID, &b.Name, &b.Email, &b.Phone, &org, &b.Attendees, &b.Status,
		&b.HoldExpiresAt, &token, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.Organization = org.String
	b.ConfirmToken = token.String
	return &b, nil
}

func (db *DB) CreateBooking(ctx context.Context, booking *models.Booking) error {
	query := `INSERT INTO bookings (slot_id, name, email, phone, organization, attendees,
                status, hold_expires_at, confirm_token, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		booking.SlotID,
		booking.Name,
		booking.Email,
		booking.Phone,
		booking.Organization,
		booking.Attendees,
		booking.Status,
		booking.HoldExpiresAt,
		booking.ConfirmToken,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	booking.ID = id
	booking.CreatedAt = now
	booking.UpdatedAt = now

	return nil
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	booking, err := scanBooking(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return booking, nil
}

// UpdateBookingStatusIf transitions the booking to newStatus only if it is
// currently in one of fromStatuses. Returns true iff a row changed; false
// means another actor won the race or the booking is in a terminal state.
func (db *DB) UpdateBookingStatusIf(ctx context.Context, id int64, newStatus string, fromStatuses ...string) (bool, error) {
	query := `UPDATE bookings SET status = ?, updated_at = ?
              WHERE id = ? AND status IN (?` + strings.Repeat(", ?", len(fromStatuses)-1) + `)`
	args := []interface{}{newStatus, time.Now(), id}
	for _, s := range fromStatuses {
		args = append(args, s)
	}
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update booking status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return rows == 1, nil
}

// UpdateBookingStatusSlotIf is UpdateBookingStatusIf additionally guarded on
// the current slot reference. Callers that act on the slot after the status
// transition use this form so a concurrent reschedule cannot leave them
// holding a stale slot id.
func (db *DB) UpdateBookingStatusSlotIf(ctx context.Context, id int64, newStatus string, slotID int64, fromStatuses ...string) (bool, error) {
	query := `UPDATE bookings SET status = ?, updated_at = ?
              WHERE id = ? AND slot_id = ? AND status IN (?` + strings.Repeat(", ?", len(fromStatuses)-1) + `)`
	args := []interface{}{newStatus, time.Now(), id, slotID}
	for _, s := range fromStatuses {
		args = append(args, s)
	}
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update booking status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return rows == 1, nil
}

// UpdateBookingSlotIf repoints the booking at a new slot, guarded on both the
// current slot reference and the current status so a concurrent transition
// cannot interleave.
func (db *DB) UpdateBookingSlotIf(ctx context.Context, id, fromSlotID, newSlotID int64, fromStatus string) (bool, error) {
	query := `UPDATE bookings SET slot_id = ?, updated_at = ?
              WHERE id = ? AND slot_id = ? AND status = ?`
	result, err := db.ExecContext(ctx, query, newSlotID, time.Now(), id, fromSlotID, fromStatus)
	if err != nil {
		return false, fmt.Errorf("failed to update booking slot: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return rows == 1, nil
}

// ListPendingHoldsBefore returns PENDING bookings whose hold expired before
// the given instant. Consumed by the hold-expiry sweeper.
func (db *DB) ListPendingHoldsBefore(ctx context.Context, instant time.Time) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
              WHERE status = ? AND hold_expires_at IS NOT NULL AND hold_expires_at < ?
              ORDER BY hold_expires_at ASC`
	return db.listBookings(ctx, query, models.StatusPending, instant)
}

func (db *DB) ListBookingsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Booking, error) {
	query := `SELECT b.id, b.slot_id, b.name, b.email, b.phone, b.organization, b.attendees, b.status,
                 b.hold_expires_at, b.confirm_token, b.created_at, b.updated_at
              FROM bookings b JOIN slots s ON s.id = b.slot_id
              WHERE s.start_at >= ? AND s.start_at < ?
              ORDER BY s.start_at ASC`
	return db.listBookings(ctx, query, start.UTC(), end.UTC())
}

func (db *DB) listBookings(ctx context.Context, query string, args ...interface{}) ([]*models.Booking, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// DeleteBooking removes a terminal booking row. Active bookings are never
// physically deleted, only transitioned.
func (db *DB) DeleteBooking(ctx context.Context, id int64) error {
	query := `DELETE FROM bookings WHERE id = ? AND status IN (?, ?)`
	result, err := db.ExecContext(ctx, query, id, models.StatusCancelled, models.StatusExpired)
	if err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConflict
	}
	return nil
}

// CancelPendingBookingsForServiceDay moves the day's pending holds to
// cancelled. Used by regeneration, where a hold is not a guaranteed seat.
func (db *DB) CancelPendingBookingsForServiceDay(ctx context.Context, serviceDayID int64) (int64, error) {
	query := `UPDATE bookings SET status = ?, updated_at = ?
              WHERE status = ? AND slot_id IN (SELECT id FROM slots WHERE service_day_id = ?)`
	result, err := db.ExecContext(ctx, query, models.StatusCancelled, time.Now(), models.StatusPending, serviceDayID)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel pending bookings: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows, nil
}

// PurgeTerminalBookingsForServiceDay deletes cancelled/expired bookings under
// the day's slots so the slots themselves can be deleted.
func (db *DB) PurgeTerminalBookingsForServiceDay(ctx context.Context, serviceDayID int64) error {
	query := `DELETE FROM bookings
              WHERE status IN (?, ?) AND slot_id IN (SELECT id FROM slots WHERE service_day_id = ?)`
	if _, err := db.ExecContext(ctx, query, models.StatusCancelled, models.StatusExpired, serviceDayID); err != nil {
		return fmt.Errorf("failed to purge terminal bookings: %w", err)
	}
	return nil
}
