package database

import "errors"

var (
	// ErrNotFound means an unknown slot, booking, service day or location.
	ErrNotFound = errors.New("not found")

	// ErrSlotUnavailable means the conditional claim matched zero rows: the
	// slot was not in the expected status (race lost or already taken).
	ErrSlotUnavailable = errors.New("slot unavailable")

	// ErrInvalidTransition means a lifecycle guard rejected the status change.
	ErrInvalidTransition = errors.New("invalid booking transition")

	// ErrConflict means deletion or regeneration is blocked by active bookings.
	ErrConflict = errors.New("operation blocked by active bookings")

	// ErrInvalidWindow means the service day window or slot length is malformed.
	ErrInvalidWindow = errors.New("invalid service day window")
)
