package models

import "time"

// Slot is one bookable interval. Status is the single source of truth for
// mutual exclusion: every claim is a conditional update on it.
type Slot struct {
	ID           int64     `json:"id"`
	ServiceDayID int64     `json:"service_day_id"`
	// LocationID is denormalized from the service day at creation time and
	// never independently mutated.
	LocationID int64     `json:"location_id"`
	StartAt    time.Time `json:"start_at"`
	EndAt      time.Time `json:"end_at"`
	Status     string    `json:"status"` // open, blocked, booked
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
