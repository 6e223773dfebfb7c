// Package oplog bridges booking operation callbacks onto a zap logger.
package oplog

import (
	"context"

	"go.uber.org/zap"

	"github.com/oakandember/tablebook/pkg/booking"
)

// Logger implements booking.OperationLogger on top of zap.
type Logger struct {
	logger *zap.Logger
}

// New returns a Logger writing to the given zap logger.
func New(logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{logger: logger}
}

// LogOperation writes one structured line per domain operation.
func (adapter *Logger) LogOperation(_ context.Context, entry booking.OperationLog) {
	fields := make([]zap.Field, 0, 8)
	fields = append(fields, zap.String("operation", entry.Operation))
	if entry.RestaurantID.String() != "" {
		fields = append(fields, zap.String("restaurant_id", entry.RestaurantID.String()))
	}
	if entry.ReservationID.String() != "" {
		fields = append(fields, zap.String("reservation_id", entry.ReservationID.String()))
	}
	if entry.RequestID.String() != "" {
		fields = append(fields, zap.String("request_id", entry.RequestID.String()))
	}
	if !entry.Phone.IsZero() {
		fields = append(fields, zap.String("phone", entry.Phone.String()))
	}
	if entry.PartySize.Int() > 0 {
		fields = append(fields, zap.Int("party_size", entry.PartySize.Int()))
	}
	fields = append(fields, zap.String("outcome", entry.Outcome), zap.String("status", entry.Status))
	if entry.Error != nil {
		fields = append(fields, zap.Error(entry.Error))
		adapter.logger.Warn("booking operation", fields...)
		return
	}
	adapter.logger.Info("booking operation", fields...)
}
