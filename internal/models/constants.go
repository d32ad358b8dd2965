package models

// Slot statuses.
const (
	SlotOpen    = "open"
	SlotBlocked = "blocked"
	SlotBooked  = "booked"
)

// Booking statuses.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusExpired   = "expired"
)

const (
	// DefaultHoldWindowMinutes is how long a pending booking keeps its slot
	// before the sweeper reclaims it.
	DefaultHoldWindowMinutes = 10

	// DefaultSweepIntervalSeconds between background sweeper runs.
	DefaultSweepIntervalSeconds = 60

	// WorkerQueueSize is the in-memory notification queue capacity.
	WorkerQueueSize = 128

	// DefaultExportRangeDays of bookings included in an export when the
	// caller gives no explicit range.
	DefaultExportRangeDays = 31
)

// TimeOfDayLayout is the wall-clock format for service day windows.
const TimeOfDayLayout = "15:04"

// DateLayout is the calendar date format used in storage and the API.
const DateLayout = "2006-01-02"
