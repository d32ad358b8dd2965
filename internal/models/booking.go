package models

import "time"

type Booking struct {
	ID            int64      `json:"id"`
	SlotID        int64      `json:"slot_id"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	Phone         string     `json:"phone"`
	Organization  string     `json:"organization,omitempty"`
	Attendees     int        `json:"attendees"`
	Status        string     `json:"status"` // pending, confirmed, cancelled, expired
	HoldExpiresAt *time.Time `json:"hold_expires_at,omitempty"`
	ConfirmToken  string     `json:"confirm_token,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Active reports whether the booking still occupies its slot.
func (b *Booking) Active() bool {
	return b.Status == StatusPending || b.Status == StatusConfirmed
}

// BookingDetails carries the contact fields supplied when claiming a slot.
type BookingDetails struct {
	Name         string `json:"name" validate:"required,min=2,max=120"`
	Email        string `json:"email" validate:"required,email"`
	Phone        string `json:"phone" validate:"required,min=5,max=32"`
	Organization string `json:"organization" validate:"max=160"`
	Attendees    int    `json:"attendees" validate:"min=1,max=500"`
}
