package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"medibook/internal/models"
)

const serviceDayColumns = `id, location_id, date, window_start, window_end, slot_minutes, notes, created_at, updated_at`

func scanServiceDay(row interface{ Scan(...interface{}) error }) (*models.ServiceDay, error) {
	var d models.ServiceDay
	var notes sql.NullString
	err := row.Scan(
		&d.ID, &d.LocationID, &d.Date, &d.WindowStart, &d.WindowEnd, &d.SlotMinutes, &notes, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.Notes = notes.String
	return &d, nil
}

func (db *DB) CreateServiceDay(ctx context.Context, day *models.ServiceDay) error {
	query := `INSERT INTO service_days (location_id, date, window_start, window_end, slot_minutes, notes, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		day.LocationID,
		day.Date.UTC(),
		day.WindowStart,
		day.WindowEnd,
		day.SlotMinutes,
		day.Notes,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create service day: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	day.ID = id
	day.CreatedAt = now
	day.UpdatedAt = now

	return nil
}

func (db *DB) GetServiceDay(ctx context.Context, id int64) (*models.ServiceDay, error) {
	query := `SELECT ` + serviceDayColumns + ` FROM service_days WHERE id = ?`
	day, err := scanServiceDay(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get service day: %w", err)
	}
	return day, nil
}

func (db *DB) UpdateServiceDay(ctx context.Context, day *models.ServiceDay) error {
	query := `UPDATE service_days SET date = ?, window_start = ?, window_end = ?, slot_minutes = ?, notes = ?, updated_at = ?
              WHERE id = ?`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		day.Date.UTC(), day.WindowStart, day.WindowEnd, day.SlotMinutes, day.Notes, now, day.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update service day: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	day.UpdatedAt = now
	return nil
}

func (db *DB) DeleteServiceDay(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM service_days WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete service day: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *DB) ListServiceDaysByLocation(ctx context.Context, locationID int64) ([]*models.ServiceDay, error) {
	query := `SELECT ` + serviceDayColumns + ` FROM service_days WHERE location_id = ? ORDER BY date ASC`
	rows, err := db.QueryContext(ctx, query, locationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list service days: %w", err)
	}
	defer rows.Close()

	var days []*models.ServiceDay
	for rows.Next() {
		day, err := scanServiceDay(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan service day: %w", err)
		}
		days = append(days, day)
	}
	return days, rows.Err()
}
