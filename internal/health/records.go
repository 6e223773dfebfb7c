package health

import (
	"context"
	"time"

	"github.com/oakandember/tablebook/pkg/booking"
)

// CallStatus classifies how a voice call ended.
type CallStatus string

const (
	CallStatusCompleted CallStatus = "completed"
	CallStatusFailed    CallStatus = "failed"
	CallStatusAbandoned CallStatus = "abandoned"
)

// CallRecord is one finished call, reported by the voice layer. Booking flags
// let the monitor compute success rates without joining reservation rows.
type CallRecord struct {
	RestaurantID     booking.RestaurantID
	Status           CallStatus
	BookingAttempted bool
	BookingSucceeded bool
	EndedAt          time.Time
}

// CallRecorder persists finished-call reports for the rolling window.
type CallRecorder interface {
	InsertCallRecord(ctx context.Context, record CallRecord) error
}
