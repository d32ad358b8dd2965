package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"medibook/internal/models"
)

const locationColumns = `id, name, address, postcode, latitude, longitude, created_at, updated_at`

func scanLocation(row interface{ Scan(...interface{}) error }) (*models.Location, error) {
	var l models.Location
	var address, postcode sql.NullString
	err := row.Scan(
		&l.ID, &l.Name, &address, &postcode, &l.Latitude, &l.Longitude, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	l.Address = address.String
	l.Postcode = postcode.String
	return &l, nil
}

func (db *DB) CreateLocation(ctx context.Context, location *models.Location) error {
	query := `INSERT INTO locations (name, address, postcode, latitude, longitude, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		location.Name,
		location.Address,
		location.Postcode,
		location.Latitude,
		location.Longitude,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create location: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	location.ID = id
	location.CreatedAt = now
	location.UpdatedAt = now

	return nil
}

func (db *DB) GetLocation(ctx context.Context, id int64) (*models.Location, error) {
	query := `SELECT ` + locationColumns + ` FROM locations WHERE id = ?`
	location, err := scanLocation(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get location: %w", err)
	}
	return location, nil
}

func (db *DB) ListLocations(ctx context.Context) ([]*models.Location, error) {
	query := `SELECT ` + locationColumns + ` FROM locations ORDER BY name, id`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	defer rows.Close()

	var locations []*models.Location
	for rows.Next() {
		location, err := scanLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		locations = append(locations, location)
	}
	return locations, rows.Err()
}

func (db *DB) UpdateLocation(ctx context.Context, location *models.Location) error {
	query := `UPDATE locations SET name = ?, address = ?, postcode = ?, latitude = ?, longitude = ?, updated_at = ?
              WHERE id = ?`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		location.Name, location.Address, location.Postcode, location.Latitude, location.Longitude, now, location.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update location: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	location.UpdatedAt = now
	return nil
}

func (db *DB) DeleteLocation(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM locations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete location: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
