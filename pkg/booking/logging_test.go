package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type recordingLogger struct {
	mu      sync.Mutex
	entries []OperationLog
}

func (logger *recordingLogger) LogOperation(ctx context.Context, entry OperationLog) {
	logger.mu.Lock()
	defer logger.mu.Unlock()
	logger.entries = append(logger.entries, entry)
}

func (logger *recordingLogger) last(test *testing.T) OperationLog {
	test.Helper()
	logger.mu.Lock()
	defer logger.mu.Unlock()
	if len(logger.entries) == 0 {
		test.Fatal("no operations logged")
	}
	return logger.entries[len(logger.entries)-1]
}

func TestOperationLoggingOnSuccess(test *testing.T) {
	test.Parallel()
	store := newMemStore(test)
	logger := &recordingLogger{}
	service := mustNewService(test, store, WithOperationLogger(logger))

	result, err := service.CreateBooking(context.Background(), validBookingRequest(test, "req-logged"))
	if err != nil {
		test.Fatalf("create: %v", err)
	}
	entry := logger.last(test)
	if entry.Operation != operationCreateBooking {
		test.Fatalf("expected create_booking, got %s", entry.Operation)
	}
	if entry.Outcome != "booked" {
		test.Fatalf("expected booked outcome, got %s", entry.Outcome)
	}
	if entry.Status != operationStatusOK {
		test.Fatalf("expected ok status, got %s", entry.Status)
	}
	if entry.ReservationID != result.ReservationID {
		test.Fatalf("expected reservation %s, got %s", result.ReservationID, entry.ReservationID)
	}
	if entry.Error != nil {
		test.Fatalf("success entry must not carry an error, got %v", entry.Error)
	}
}

func TestOperationLoggingOnStoreFault(test *testing.T) {
	test.Parallel()
	store := newMemStore(test)
	store.failWith = errors.New("connection reset by peer")
	logger := &recordingLogger{}
	service := mustNewService(test, store, WithOperationLogger(logger))

	if _, err := service.CreateBooking(context.Background(), validBookingRequest(test, "req-fault")); err != nil {
		test.Fatalf("store fault should degrade, not error: %v", err)
	}
	entry := logger.last(test)
	if entry.Outcome != string(FailureSystemUnavailable) {
		test.Fatalf("expected system_unavailable outcome, got %s", entry.Outcome)
	}
	if entry.Status != operationStatusError {
		test.Fatalf("expected error status, got %s", entry.Status)
	}
	if !errors.Is(entry.Error, ErrStoreUnavailable) {
		test.Fatalf("expected ErrStoreUnavailable, got %v", entry.Error)
	}
}

func TestOperationLoggingOnCancel(test *testing.T) {
	test.Parallel()
	store := newMemStore(test)
	logger := &recordingLogger{}
	service := mustNewService(test, store, WithOperationLogger(logger))

	created, err := service.CreateBooking(context.Background(), validBookingRequest(test, "req-cancel-log"))
	if err != nil {
		test.Fatalf("create: %v", err)
	}
	if _, err := service.CancelBooking(context.Background(), created.ReservationID, "plans changed"); err != nil {
		test.Fatalf("cancel: %v", err)
	}
	entry := logger.last(test)
	if entry.Operation != operationCancelBooking {
		test.Fatalf("expected cancel_booking, got %s", entry.Operation)
	}
	if entry.Outcome != "cancelled" {
		test.Fatalf("expected cancelled outcome, got %s", entry.Outcome)
	}
}
