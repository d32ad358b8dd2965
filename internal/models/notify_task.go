package models

import "time"

// NotifyTask is one queued outbound notification. Rows live in the
// notify_queue table so a crashed worker can resume from storage.
type NotifyTask struct {
	ID          int64      `json:"id"`
	Event       string     `json:"event"`
	BookingID   int64      `json:"booking_id"`
	Payload     string     `json:"payload"`
	Status      string     `json:"status"` // pending, retry, completed, failed
	RetryCount  int        `json:"retry_count"`
	LastError   *string    `json:"last_error"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at"`
	NextRetryAt *time.Time `json:"next_retry_at"`
}
