package models

import "time"

// ServiceDay is one location's availability window on one calendar date.
// WindowStart and WindowEnd are wall-clock times in "15:04" form.
type ServiceDay struct {
	ID          int64     `json:"id"`
	LocationID  int64     `json:"location_id"`
	Date        time.Time `json:"date"`
	WindowStart string    `json:"window_start"`
	WindowEnd   string    `json:"window_end"`
	SlotMinutes int       `json:"slot_minutes"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
