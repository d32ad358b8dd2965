package service

import "medibook/internal/models"

// lifecycleRetries bounds the re-read loop around slot-pinned booking
// transitions. Each retry only fires when a reschedule repointed the booking
// between the read and the conditional update.
const lifecycleRetries = 3

// allowedTransitions is the booking lifecycle: PENDING may confirm, cancel or
// expire; CONFIRMED may only cancel. CANCELLED and EXPIRED are terminal.
// Reschedule keeps the current status and is guarded separately on the slot
// references.
var allowedTransitions = map[string][]string{
	models.StatusPending:   {models.StatusConfirmed, models.StatusCancelled, models.StatusExpired},
	models.StatusConfirmed: {models.StatusCancelled},
}

func canTransition(from, to string) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// heldSlotStatus is the slot status an active booking in the given state is
// expected to hold.
func heldSlotStatus(bookingStatus string) string {
	if bookingStatus == models.StatusConfirmed {
		return models.SlotBooked
	}
	return models.SlotBlocked
}
