package booking

import (
	"errors"
	"testing"
)

func TestWrapError(test *testing.T) {
	test.Parallel()
	wrapped := WrapError("store", "reservation", "insert", ErrCapacityConflict)
	if wrapped.Error() != "store.reservation.insert: slot capacity conflict" {
		test.Fatalf("unexpected message %q", wrapped.Error())
	}
	if !errors.Is(wrapped, ErrCapacityConflict) {
		test.Fatal("wrapped error must unwrap to its cause")
	}
	var operationError OperationError
	if !errors.As(wrapped, &operationError) {
		test.Fatal("expected an OperationError")
	}
	if operationError.Operation() != "store" || operationError.Subject() != "reservation" || operationError.Code() != "insert" {
		test.Fatalf("unexpected segments %q %q %q", operationError.Operation(), operationError.Subject(), operationError.Code())
	}
	if WrapError("store", "reservation", "insert", nil) != nil {
		test.Fatal("wrapping nil must stay nil")
	}
}

func TestClassifyStoreError(test *testing.T) {
	test.Parallel()
	cases := []struct {
		name     string
		err      error
		expected error
	}{
		{name: "nil stays nil", err: nil, expected: nil},
		{name: "domain outcome passes through", err: ErrCapacityConflict, expected: ErrCapacityConflict},
		{name: "wrapped domain outcome passes through", err: WrapError("store", "slot", "claim", ErrSlotNotFound), expected: ErrSlotNotFound},
		{name: "validation passes through", err: ErrInvalidBookingTime, expected: ErrInvalidBookingTime},
		{name: "already classified passes through", err: ErrStoreUnavailable, expected: ErrStoreUnavailable},
		{name: "transport fault folds", err: errors.New("dial tcp: connection refused"), expected: ErrStoreUnavailable},
	}
	for _, testCase := range cases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			classified := classifyStoreError(testCase.err)
			if testCase.expected == nil {
				if classified != nil {
					test.Fatalf("expected nil, got %v", classified)
				}
				return
			}
			if !errors.Is(classified, testCase.expected) {
				test.Fatalf("expected %v, got %v", testCase.expected, classified)
			}
		})
	}
}

func TestClassifyStoreErrorDoesNotDoubleWrap(test *testing.T) {
	test.Parallel()
	folded := classifyStoreError(errors.New("i/o timeout"))
	if classifyStoreError(folded) != folded {
		test.Fatal("a classified error must not be wrapped again")
	}
}
