package booking

import (
	"errors"
	"fmt"
)

// Domain-level error values returned by the booking core.
var (
	ErrUnknownRestaurant     = errors.New("unknown restaurant")
	ErrUnknownReservation    = errors.New("unknown reservation")
	ErrSlotNotFound          = errors.New("slot not found")
	ErrCapacityConflict      = errors.New("slot capacity conflict")
	ErrConfirmationCodeTaken = errors.New("confirmation code taken")
	ErrDuplicateRequest      = errors.New("duplicate request id")
	ErrDuplicateBooking      = errors.New("duplicate booking")
	ErrStatusConflict        = errors.New("reservation status conflict")
	ErrLargePartyTransfer    = errors.New("large party requires transfer")
	ErrSafetyTransfer        = errors.New("safety trigger requires transfer")
	ErrStoreUnavailable      = errors.New("store unavailable")

	ErrInvalidRestaurantID      = errors.New("invalid restaurant id")
	ErrInvalidReservationID     = errors.New("invalid reservation id")
	ErrInvalidRequestID         = errors.New("invalid request id")
	ErrInvalidPhoneNumber       = errors.New("invalid phone number")
	ErrInvalidCustomerName      = errors.New("invalid customer name")
	ErrInvalidPartySize         = errors.New("invalid party size")
	ErrInvalidSeatingType       = errors.New("invalid seating type")
	ErrInvalidReservationStatus = errors.New("invalid reservation status")
	ErrInvalidBlockType         = errors.New("invalid block type")
	ErrInvalidClock             = errors.New("invalid clock value")
	ErrInvalidBookingTime       = errors.New("invalid booking time")
	ErrInvalidConfirmationCode  = errors.New("invalid confirmation code")
	ErrInvalidSettings          = errors.New("invalid restaurant settings")
	ErrInvalidServiceConfig     = errors.New("invalid service config")
)

// OperationError wraps a failure with a stable operation code.
type OperationError struct {
	operation string
	subject   string
	code      string
	err       error
}

// Error returns the formatted error message.
func (operationError OperationError) Error() string {
	return fmt.Sprintf("%s.%s.%s: %v", operationError.operation, operationError.subject, operationError.code, operationError.err)
}

// Unwrap returns the underlying error.
func (operationError OperationError) Unwrap() error {
	return operationError.err
}

// Operation returns the operation segment.
func (operationError OperationError) Operation() string {
	return operationError.operation
}

// Subject returns the subject segment.
func (operationError OperationError) Subject() string {
	return operationError.subject
}

// Code returns the stable error code segment.
func (operationError OperationError) Code() string {
	return operationError.code
}

// WrapError wraps an error with operation, subject, and code metadata.
func WrapError(operation string, subject string, code string, err error) error {
	if err == nil {
		return nil
	}
	return OperationError{
		operation: operation,
		subject:   subject,
		code:      code,
		err:       err,
	}
}

var domainErrors = []error{
	ErrUnknownRestaurant,
	ErrUnknownReservation,
	ErrSlotNotFound,
	ErrCapacityConflict,
	ErrConfirmationCodeTaken,
	ErrDuplicateRequest,
	ErrDuplicateBooking,
	ErrStatusConflict,
	ErrLargePartyTransfer,
	ErrSafetyTransfer,
	ErrInvalidRestaurantID,
	ErrInvalidReservationID,
	ErrInvalidRequestID,
	ErrInvalidPhoneNumber,
	ErrInvalidCustomerName,
	ErrInvalidPartySize,
	ErrInvalidSeatingType,
	ErrInvalidReservationStatus,
	ErrInvalidBlockType,
	ErrInvalidClock,
	ErrInvalidBookingTime,
	ErrInvalidConfirmationCode,
	ErrInvalidSettings,
	ErrInvalidServiceConfig,
}

// classifyStoreError keeps domain outcomes intact and folds everything else
// into ErrStoreUnavailable so a transport fault is never mistaken for a
// business answer such as "no availability".
func classifyStoreError(err error) error {
	if err == nil {
		return nil
	}
	for _, domainError := range domainErrors {
		if errors.Is(err, domainError) {
			return err
		}
	}
	if errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
