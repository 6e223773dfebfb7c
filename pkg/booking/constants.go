package booking

import "time"

const (
	operationCheckAvailability = "check_availability"
	operationCreateBooking     = "create_booking"
	operationUpdateBooking     = "update_booking"
	operationCancelBooking     = "cancel_booking"
	operationAdvanceStatus     = "advance_status"

	operationStatusOK    = "ok"
	operationStatusError = "error"

	// Stable error codes attached to escalations so staff tooling and the
	// health monitor can classify failures without parsing messages.
	ErrorCodeSystemTimeout    = "SYSTEM_TIMEOUT"
	ErrorCodeSafetyTrigger    = "SAFETY_TRIGGER"
	ErrorCodeLargeParty       = "LARGE_PARTY"
	ErrorCodeCapacityConflict = "CAPACITY_CONFLICT"
	ErrorCodeValidationFailed = "VALIDATION_FAILED"

	maxAlternativeSlots         = 3
	maxConfirmationCodeAttempts = 5
	reservationOverlapWindow    = 2 * time.Hour

	defaultBookingSource = "voice_agent"
)
