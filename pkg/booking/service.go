package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BookingFailureReason classifies a non-success booking outcome.
type BookingFailureReason string

const (
	FailureCapacityConflict  BookingFailureReason = "capacity_conflict"
	FailureDuplicateBooking  BookingFailureReason = "duplicate_booking"
	FailureTransferRequired  BookingFailureReason = "transfer_required"
	FailureSystemUnavailable BookingFailureReason = "system_unavailable"
	FailureUnavailable       BookingFailureReason = "unavailable"
)

// ReasonSystemUnavailable marks an availability answer degraded by a store
// fault; it is never conflated with "no availability".
const ReasonSystemUnavailable AvailabilityReason = "system_unavailable"

// BookingRequest carries a validated booking attempt, normally following an
// availability offer.
type BookingRequest struct {
	RestaurantID    RestaurantID
	RequestID       RequestID
	CustomerName    CustomerName
	Phone           PhoneNumber
	Email           string
	At              time.Time
	PartySize       PartySize
	Seating         SeatingPreference
	SpecialRequests string
	SMSConsent      bool
	Source          string
}

// BookingResult is the outcome of a create or update attempt.
type BookingResult struct {
	Success          bool
	Replayed         bool
	TransferRequired bool
	ReservationID    ReservationID
	ConfirmationCode ConfirmationCode
	Message          string
	FailureReason    BookingFailureReason
	Alternatives     []SlotOption
}

// CancelResult is the outcome of a cancellation.
type CancelResult struct {
	Success          bool
	LateCancellation bool
	Message          string
}

// UpdateRequest mutates an existing reservation. Nil fields are unchanged.
type UpdateRequest struct {
	ReservationID   ReservationID
	RequestID       RequestID
	PartySize       *PartySize
	At              *time.Time
	Seating         *SeatingType
	SpecialRequests *string
}

// Service is the booking coordinator. It owns all slot catalog writes and
// commits reservations atomically against concurrent competing requests.
type Service struct {
	store     Store
	nowFn     func() time.Time
	resolver  *Resolver
	logger    OperationLogger
	publisher EventPublisher
	escalator EscalationSink
}

// NewService wires a Service.
func NewService(store Store, now func() time.Time, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	resolver, err := NewResolver(store, now)
	if err != nil {
		return nil, err
	}
	service := &Service{store: store, nowFn: now, resolver: resolver}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// Resolver exposes the availability resolver sharing this service's store.
func (service *Service) Resolver() *Resolver {
	return service.resolver
}

// CheckAvailability answers an availability question, escalating store faults
// to the callback queue instead of reporting a false negative.
func (service *Service) CheckAvailability(ctx context.Context, request AvailabilityRequest) (Availability, error) {
	availability, err := service.resolver.CheckAvailability(ctx, request)
	if errors.Is(err, ErrStoreUnavailable) {
		service.escalate(ctx, EscalationRequest{
			RestaurantID:  request.RestaurantID,
			Phone:         request.Phone,
			RequestedTime: request.At,
			PartySize:     request.PartySize.Int(),
			FailureReason: "availability check failed against the store",
			ErrorCode:     ErrorCodeSystemTimeout,
		})
		service.logOperation(ctx, OperationLog{
			Operation:    operationCheckAvailability,
			RestaurantID: request.RestaurantID,
			Phone:        request.Phone,
			PartySize:    request.PartySize,
			Outcome:      string(FailureSystemUnavailable),
			Error:        err,
		})
		return Availability{
			Reason:  ReasonSystemUnavailable,
			Message: "We couldn't check availability right now; someone will call you back shortly.",
		}, nil
	}
	service.logOperation(ctx, OperationLog{
		Operation:    operationCheckAvailability,
		RestaurantID: request.RestaurantID,
		Phone:        request.Phone,
		PartySize:    request.PartySize,
		Outcome:      availabilityOutcome(availability),
		Error:        err,
	})
	return availability, err
}

// CreateBooking commits a reservation. Under concurrent claims against a slot
// with C remaining units, exactly C succeed; the rest receive a capacity
// conflict with fresh alternatives. Redelivered requests replay the original
// outcome instead of double-claiming.
func (service *Service) CreateBooking(ctx context.Context, request BookingRequest) (BookingResult, error) {
	if err := validateBookingRequest(&request); err != nil {
		return BookingResult{}, err
	}
	if detectSafetyTrigger(request.SpecialRequests) {
		service.escalate(ctx, EscalationRequest{
			RestaurantID:  request.RestaurantID,
			CustomerName:  request.CustomerName.String(),
			Phone:         request.Phone,
			RequestedTime: request.At,
			PartySize:     request.PartySize.Int(),
			FailureReason: "safety keyword detected in special requests",
			ErrorCode:     ErrorCodeSafetyTrigger,
		})
		result := BookingResult{
			TransferRequired: true,
			FailureReason:    FailureTransferRequired,
			Message:          "This request needs a team member; transferring you now.",
		}
		service.logBooking(ctx, request, ReservationID{}, "safety_transfer", nil)
		return result, nil
	}

	var (
		committed Reservation
		replayed  bool
	)
	transactionError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		restaurant, err := transactionStore.GetRestaurant(ctx, request.RestaurantID)
		if err != nil {
			return err
		}
		if err := restaurant.Settings.Validate(); err != nil {
			return err
		}
		if request.PartySize.Int() > restaurant.Settings.LargePartyThreshold {
			return ErrLargePartyTransfer
		}
		if request.PartySize.Int() > restaurant.Settings.MaxPartySize {
			return fmt.Errorf("%w: party size %d exceeds maximum %d",
				ErrInvalidPartySize, request.PartySize.Int(), restaurant.Settings.MaxPartySize)
		}
		if reason, err := checkBookingWindow(service.nowFn(), request.At, restaurant.Settings); err != nil {
			return err
		} else if reason != "" {
			return fmt.Errorf("%w: %s", ErrInvalidBookingTime, reason)
		}
		existing, err := transactionStore.FindReservationByRequestID(ctx, request.RestaurantID, request.RequestID)
		if err != nil {
			return err
		}
		if existing != nil {
			committed = *existing
			replayed = true
			return nil
		}
		overlapping, err := transactionStore.FindOverlappingReservation(ctx, request.RestaurantID, request.Phone, request.At, reservationOverlapWindow)
		if err != nil {
			return err
		}
		if overlapping != nil {
			return ErrDuplicateBooking
		}
		seating, err := claimPreferredSeating(ctx, transactionStore, request)
		if err != nil {
			return err
		}
		reservation, err := service.insertWithFreshCode(ctx, transactionStore, request, seating)
		if err != nil {
			if errors.Is(err, ErrDuplicateRequest) {
				// A concurrent redelivery won the insert; surface its outcome.
				winner, lookupErr := transactionStore.FindReservationByRequestID(ctx, request.RestaurantID, request.RequestID)
				if lookupErr == nil && winner != nil {
					committed = *winner
					replayed = true
					return nil
				}
			}
			return err
		}
		committed = reservation
		return nil
	})

	switch {
	case transactionError == nil:
		if !replayed {
			service.publish(ctx, SlotBookedEvent{
				RestaurantID:     request.RestaurantID.String(),
				ReservationID:    committed.ID.String(),
				ConfirmationCode: committed.ConfirmationCode.String(),
				SlotTime:         committed.At,
				Seating:          committed.Seating.String(),
				PartySize:        committed.PartySize.Int(),
				SMSConsent:       committed.SMSConsent,
				OccurredAt:       service.nowFn(),
			})
		}
		outcome := "booked"
		if replayed {
			outcome = "replayed"
		}
		service.logBooking(ctx, request, committed.ID, outcome, nil)
		return BookingResult{
			Success:          true,
			Replayed:         replayed,
			ReservationID:    committed.ID,
			ConfirmationCode: committed.ConfirmationCode,
			Message:          fmt.Sprintf("You're booked. Your confirmation code is %s.", committed.ConfirmationCode),
		}, nil

	case errors.Is(transactionError, ErrLargePartyTransfer):
		service.logBooking(ctx, request, ReservationID{}, "transfer_required", nil)
		return BookingResult{
			TransferRequired: true,
			FailureReason:    FailureTransferRequired,
			Message:          "Large parties are handled by our events team; transferring you now.",
		}, nil

	case errors.Is(transactionError, ErrDuplicateBooking):
		service.logBooking(ctx, request, ReservationID{}, "duplicate", transactionError)
		return BookingResult{
			FailureReason: FailureDuplicateBooking,
			Message:       "This phone number already holds a reservation around that time.",
		}, nil

	case errors.Is(transactionError, ErrCapacityConflict), errors.Is(transactionError, ErrSlotNotFound):
		alternatives, _ := service.resolver.FreshAlternatives(ctx, AvailabilityRequest{
			RestaurantID: request.RestaurantID,
			At:           request.At,
			PartySize:    request.PartySize,
			Seating:      request.Seating,
		})
		failure := FailureCapacityConflict
		if errors.Is(transactionError, ErrSlotNotFound) {
			failure = FailureUnavailable
		}
		service.logBooking(ctx, request, ReservationID{}, string(failure), transactionError)
		return BookingResult{
			FailureReason: failure,
			Message:       "That time was just taken.",
			Alternatives:  alternatives,
		}, nil

	default:
		classified := classifyStoreError(transactionError)
		if errors.Is(classified, ErrStoreUnavailable) {
			service.escalate(ctx, EscalationRequest{
				RestaurantID:  request.RestaurantID,
				CustomerName:  request.CustomerName.String(),
				Phone:         request.Phone,
				RequestedTime: request.At,
				PartySize:     request.PartySize.Int(),
				FailureReason: "booking commit failed against the store",
				ErrorCode:     ErrorCodeSystemTimeout,
			})
			service.logBooking(ctx, request, ReservationID{}, string(FailureSystemUnavailable), classified)
			return BookingResult{
				FailureReason: FailureSystemUnavailable,
				Message:       "We couldn't finish your booking; someone will call you back shortly.",
			}, nil
		}
		service.logBooking(ctx, request, ReservationID{}, "error", classified)
		return BookingResult{}, classified
	}
}

// CancelBooking cancels a reservation and frees its capacity unit in the same
// transaction. Cancelling an already-cancelled reservation is an idempotent
// no-op that never double-increments capacity.
func (service *Service) CancelBooking(ctx context.Context, reservationID ReservationID, reason string) (CancelResult, error) {
	var (
		reservation Reservation
		late        bool
		alreadyDone bool
	)
	transactionError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		loaded, err := transactionStore.GetReservation(ctx, reservationID)
		if err != nil {
			return err
		}
		reservation = loaded
		if loaded.Status == ReservationStatusCancelled {
			alreadyDone = true
			return nil
		}
		if !loaded.Status.CanAdvanceTo(ReservationStatusCancelled) {
			return fmt.Errorf("%w: cannot cancel a %s reservation", ErrStatusConflict, loaded.Status)
		}
		restaurant, err := transactionStore.GetRestaurant(ctx, loaded.RestaurantID)
		if err != nil {
			return err
		}
		if err := restaurant.Settings.Validate(); err != nil {
			return err
		}
		now := service.nowFn()
		late = loaded.At.Sub(now) < time.Duration(restaurant.Settings.CancellationNoticeHours)*time.Hour
		if err := transactionStore.UpdateReservationStatus(ctx, reservationID, loaded.Status, ReservationStatusCancelled); err != nil {
			return err
		}
		if err := transactionStore.SetReservationCancellation(ctx, reservationID, reason, now); err != nil {
			return err
		}
		return transactionStore.ReleaseSlotCapacity(ctx, loaded.RestaurantID, loaded.At, loaded.Seating)
	})
	if transactionError != nil {
		classified := classifyStoreError(transactionError)
		service.logOperation(ctx, OperationLog{
			Operation:     operationCancelBooking,
			ReservationID: reservationID,
			Outcome:       "error",
			Error:         classified,
		})
		return CancelResult{}, classified
	}
	if !alreadyDone {
		service.publish(ctx, SlotReleasedEvent{
			RestaurantID:  reservation.RestaurantID.String(),
			ReservationID: reservationID.String(),
			SlotTime:      reservation.At,
			Seating:       reservation.Seating.String(),
			Reason:        reason,
			OccurredAt:    service.nowFn(),
		})
	}
	service.logOperation(ctx, OperationLog{
		Operation:     operationCancelBooking,
		RestaurantID:  reservation.RestaurantID,
		ReservationID: reservationID,
		Outcome:       "cancelled",
	})
	message := "Your reservation is cancelled."
	if late {
		message = "Your reservation is cancelled. Note this was inside our cancellation notice window."
	}
	return CancelResult{Success: true, LateCancellation: late, Message: message}, nil
}

// UpdateBooking changes party size, time, seating, or special requests on a
// live reservation. Moving to a different slot claims the new capacity unit
// before releasing the old one, all inside one transaction.
func (service *Service) UpdateBooking(ctx context.Context, request UpdateRequest) (BookingResult, error) {
	var (
		updated Reservation
		moved   bool
		oldAt   time.Time
		oldSeat SeatingType
	)
	transactionError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		reservation, err := transactionStore.GetReservation(ctx, request.ReservationID)
		if err != nil {
			return err
		}
		if reservation.Status != ReservationStatusPending && reservation.Status != ReservationStatusConfirmed {
			return fmt.Errorf("%w: cannot update a %s reservation", ErrStatusConflict, reservation.Status)
		}
		restaurant, err := transactionStore.GetRestaurant(ctx, reservation.RestaurantID)
		if err != nil {
			return err
		}
		if err := restaurant.Settings.Validate(); err != nil {
			return err
		}
		if request.PartySize != nil {
			if request.PartySize.Int() > restaurant.Settings.LargePartyThreshold {
				return ErrLargePartyTransfer
			}
			if request.PartySize.Int() > restaurant.Settings.MaxPartySize {
				return fmt.Errorf("%w: party size %d exceeds maximum %d",
					ErrInvalidPartySize, request.PartySize.Int(), restaurant.Settings.MaxPartySize)
			}
			reservation.PartySize = *request.PartySize
		}
		newAt := reservation.At
		if request.At != nil {
			newAt = *request.At
		}
		newSeating := reservation.Seating
		if request.Seating != nil {
			newSeating = *request.Seating
		}
		if !newAt.Equal(reservation.At) || newSeating != reservation.Seating {
			if reason, err := checkBookingWindow(service.nowFn(), newAt, restaurant.Settings); err != nil {
				return err
			} else if reason != "" {
				return fmt.Errorf("%w: %s", ErrInvalidBookingTime, reason)
			}
			if err := transactionStore.ClaimSlotCapacity(ctx, reservation.RestaurantID, newAt, newSeating); err != nil {
				return err
			}
			if err := transactionStore.ReleaseSlotCapacity(ctx, reservation.RestaurantID, reservation.At, reservation.Seating); err != nil {
				return err
			}
			moved = true
			oldAt = reservation.At
			oldSeat = reservation.Seating
			reservation.At = newAt
			reservation.Seating = newSeating
		}
		if request.SpecialRequests != nil {
			reservation.SpecialRequests = *request.SpecialRequests
		}
		if err := transactionStore.UpdateReservationDetails(ctx, reservation); err != nil {
			return err
		}
		updated = reservation
		return nil
	})

	switch {
	case transactionError == nil:
		if moved {
			service.publish(ctx, SlotReleasedEvent{
				RestaurantID:  updated.RestaurantID.String(),
				ReservationID: updated.ID.String(),
				SlotTime:      oldAt,
				Seating:       oldSeat.String(),
				Reason:        "rebooked",
				OccurredAt:    service.nowFn(),
			})
			service.publish(ctx, SlotBookedEvent{
				RestaurantID:     updated.RestaurantID.String(),
				ReservationID:    updated.ID.String(),
				ConfirmationCode: updated.ConfirmationCode.String(),
				SlotTime:         updated.At,
				Seating:          updated.Seating.String(),
				PartySize:        updated.PartySize.Int(),
				SMSConsent:       updated.SMSConsent,
				OccurredAt:       service.nowFn(),
			})
		}
		service.logOperation(ctx, OperationLog{
			Operation:     operationUpdateBooking,
			RestaurantID:  updated.RestaurantID,
			ReservationID: updated.ID,
			RequestID:     request.RequestID,
			Outcome:       "updated",
		})
		return BookingResult{
			Success:          true,
			ReservationID:    updated.ID,
			ConfirmationCode: updated.ConfirmationCode,
			Message:          "Your reservation is updated.",
		}, nil

	case errors.Is(transactionError, ErrLargePartyTransfer):
		return BookingResult{
			TransferRequired: true,
			FailureReason:    FailureTransferRequired,
			Message:          "That party size is handled by our events team.",
		}, nil

	case errors.Is(transactionError, ErrCapacityConflict), errors.Is(transactionError, ErrSlotNotFound):
		return BookingResult{
			FailureReason: FailureCapacityConflict,
			Message:       "The new time is not available.",
		}, nil

	default:
		classified := classifyStoreError(transactionError)
		service.logOperation(ctx, OperationLog{
			Operation:     operationUpdateBooking,
			ReservationID: request.ReservationID,
			RequestID:     request.RequestID,
			Outcome:       "error",
			Error:         classified,
		})
		return BookingResult{}, classified
	}
}

// MarkSeated advances a reservation to seated.
func (service *Service) MarkSeated(ctx context.Context, reservationID ReservationID) error {
	return service.advanceStatus(ctx, reservationID, ReservationStatusSeated)
}

// MarkCompleted advances a seated reservation to completed.
func (service *Service) MarkCompleted(ctx context.Context, reservationID ReservationID) error {
	return service.advanceStatus(ctx, reservationID, ReservationStatusCompleted)
}

// MarkNoShow marks a pre-seating reservation as a no-show and frees its slot.
func (service *Service) MarkNoShow(ctx context.Context, reservationID ReservationID) error {
	transactionError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		reservation, err := transactionStore.GetReservation(ctx, reservationID)
		if err != nil {
			return err
		}
		if !reservation.Status.CanAdvanceTo(ReservationStatusNoShow) {
			return fmt.Errorf("%w: cannot mark a %s reservation as no-show", ErrStatusConflict, reservation.Status)
		}
		if err := transactionStore.UpdateReservationStatus(ctx, reservationID, reservation.Status, ReservationStatusNoShow); err != nil {
			return err
		}
		return transactionStore.ReleaseSlotCapacity(ctx, reservation.RestaurantID, reservation.At, reservation.Seating)
	})
	classified := classifyStoreError(transactionError)
	service.logOperation(ctx, OperationLog{
		Operation:     operationAdvanceStatus,
		ReservationID: reservationID,
		Outcome:       ReservationStatusNoShow.String(),
		Error:         classified,
	})
	return classified
}

func (service *Service) advanceStatus(ctx context.Context, reservationID ReservationID, target ReservationStatus) error {
	transactionError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		reservation, err := transactionStore.GetReservation(ctx, reservationID)
		if err != nil {
			return err
		}
		if !reservation.Status.CanAdvanceTo(target) {
			return fmt.Errorf("%w: cannot move a %s reservation to %s", ErrStatusConflict, reservation.Status, target)
		}
		return transactionStore.UpdateReservationStatus(ctx, reservationID, reservation.Status, target)
	})
	classified := classifyStoreError(transactionError)
	service.logOperation(ctx, OperationLog{
		Operation:     operationAdvanceStatus,
		ReservationID: reservationID,
		Outcome:       target.String(),
		Error:         classified,
	})
	return classified
}

func (service *Service) insertWithFreshCode(ctx context.Context, transactionStore Store, request BookingRequest, seating SeatingType) (Reservation, error) {
	source := request.Source
	if source == "" {
		source = defaultBookingSource
	}
	for attempt := 0; attempt < maxConfirmationCodeAttempts; attempt++ {
		code, err := newConfirmationCode()
		if err != nil {
			return Reservation{}, err
		}
		reservation := Reservation{
			ID:               ReservationID{value: uuid.NewString()},
			RestaurantID:     request.RestaurantID,
			CustomerName:     request.CustomerName,
			Phone:            request.Phone,
			Email:            request.Email,
			At:               request.At,
			PartySize:        request.PartySize,
			Seating:          seating,
			Status:           ReservationStatusConfirmed,
			ConfirmationCode: code,
			Source:           source,
			SpecialRequests:  request.SpecialRequests,
			SMSConsent:       request.SMSConsent,
			RequestID:        request.RequestID,
			CreatedAt:        service.nowFn(),
		}
		err = transactionStore.InsertReservation(ctx, reservation)
		if err == nil {
			return reservation, nil
		}
		if errors.Is(err, ErrConfirmationCodeTaken) {
			continue
		}
		return Reservation{}, err
	}
	return Reservation{}, WrapError("coordinator", "confirmation_code", "exhausted", ErrConfirmationCodeTaken)
}

// claimPreferredSeating attempts the conditional capacity claim against each
// pool the preference allows, in a fixed order. A conflict anywhere with no
// successful claim is a capacity conflict; a missing slot everywhere means the
// time is not bookable at all.
func claimPreferredSeating(ctx context.Context, transactionStore Store, request BookingRequest) (SeatingType, error) {
	sawConflict := false
	for _, seating := range seatingPools(request.Seating) {
		err := transactionStore.ClaimSlotCapacity(ctx, request.RestaurantID, request.At, seating)
		if err == nil {
			return seating, nil
		}
		if errors.Is(err, ErrCapacityConflict) {
			sawConflict = true
			continue
		}
		if errors.Is(err, ErrSlotNotFound) {
			continue
		}
		return "", err
	}
	if sawConflict {
		return "", ErrCapacityConflict
	}
	return "", ErrSlotNotFound
}

func seatingPools(preference SeatingPreference) []SeatingType {
	if preference == SeatingAny || preference == "" {
		return []SeatingType{SeatingIndoor, SeatingOutdoor, SeatingBar}
	}
	return []SeatingType{SeatingType(preference)}
}

func validateBookingRequest(request *BookingRequest) error {
	if request.RestaurantID.String() == "" {
		return fmt.Errorf("%w: empty value", ErrInvalidRestaurantID)
	}
	if request.RequestID.String() == "" {
		return fmt.Errorf("%w: empty value", ErrInvalidRequestID)
	}
	if request.CustomerName.String() == "" {
		return fmt.Errorf("%w: empty value", ErrInvalidCustomerName)
	}
	if request.Phone.IsZero() {
		return fmt.Errorf("%w: empty value", ErrInvalidPhoneNumber)
	}
	if request.PartySize.Int() <= 0 {
		return fmt.Errorf("%w: must be greater than zero", ErrInvalidPartySize)
	}
	if request.At.IsZero() {
		return fmt.Errorf("%w: missing requested time", ErrInvalidBookingTime)
	}
	if request.Seating == "" {
		request.Seating = SeatingAny
	}
	return nil
}

var safetyKeywords = []string{"allergy", "allergic", "anaphylaxis", "epipen", "epi-pen"}

// detectSafetyTrigger flags free-text that mandates a human handoff.
func detectSafetyTrigger(text string) bool {
	lowered := strings.ToLower(text)
	for _, keyword := range safetyKeywords {
		if strings.Contains(lowered, keyword) {
			return true
		}
	}
	return false
}

func availabilityOutcome(availability Availability) string {
	if availability.Available {
		return "available"
	}
	if availability.Reason != "" {
		return string(availability.Reason)
	}
	return "unavailable"
}

func (service *Service) logBooking(ctx context.Context, request BookingRequest, reservationID ReservationID, outcome string, err error) {
	service.logOperation(ctx, OperationLog{
		Operation:     operationCreateBooking,
		RestaurantID:  request.RestaurantID,
		ReservationID: reservationID,
		RequestID:     request.RequestID,
		Phone:         request.Phone,
		PartySize:     request.PartySize,
		Outcome:       outcome,
		Error:         err,
	})
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if service.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	service.logger.LogOperation(ctx, entry)
}

func (service *Service) publish(ctx context.Context, event Event) {
	if service.publisher == nil {
		return
	}
	// Best effort; a publish failure never affects the committed booking.
	_ = service.publisher.Publish(ctx, event)
}

func (service *Service) escalate(ctx context.Context, request EscalationRequest) {
	if service.escalator == nil {
		return
	}
	service.escalator.Escalate(ctx, request)
}
