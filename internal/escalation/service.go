package escalation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oakandember/tablebook/pkg/booking"
)

const (
	defaultMaxContactAttempts = 3
	defaultPendingQueueLimit  = 50

	attemptsExhaustedNote = "maximum contact attempts exceeded"
)

// EnqueueRequest describes a failure needing human follow-up. When Priority
// is empty it is derived from the error code.
type EnqueueRequest struct {
	RestaurantID  booking.RestaurantID
	CustomerName  string
	Phone         booking.PhoneNumber
	RequestedTime time.Time
	PartySize     int
	FailureReason string
	ErrorCode     string
	Priority      Priority
}

// Service runs the callback escalation workflow.
type Service struct {
	store       Store
	nowFn       func() time.Time
	logger      *zap.Logger
	publisher   booking.EventPublisher
	maxAttempts int
}

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// WithLogger wires a zap logger for queue activity.
func WithLogger(logger *zap.Logger) ServiceOption {
	return func(service *Service) {
		service.logger = logger
	}
}

// WithEventPublisher wires a publisher for callback lifecycle events.
func WithEventPublisher(publisher booking.EventPublisher) ServiceOption {
	return func(service *Service) {
		service.publisher = publisher
	}
}

// WithMaxContactAttempts overrides the auto-fail attempt ceiling.
func WithMaxContactAttempts(maxAttempts int) ServiceOption {
	return func(service *Service) {
		service.maxAttempts = maxAttempts
	}
}

// NewService wires a Service.
func NewService(store Store, now func() time.Time, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{
		store:       store,
		nowFn:       now,
		logger:      zap.NewNop(),
		maxAttempts: defaultMaxContactAttempts,
	}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	if service.maxAttempts <= 0 {
		return nil, fmt.Errorf("%w: max contact attempts must be positive", ErrInvalidServiceConfig)
	}
	return service, nil
}

// ClassifyPriority derives a queue priority from a failure's error code.
// Safety triggers are urgent and demand an immediate transfer; store faults
// rank high so staff reach the customer before the context goes stale.
func ClassifyPriority(errorCode string) Priority {
	switch errorCode {
	case booking.ErrorCodeSafetyTrigger:
		return PriorityUrgent
	case booking.ErrorCodeSystemTimeout:
		return PriorityHigh
	default:
		return PriorityNormal
	}
}

// Enqueue creates a pending callback. Urgent safety escalations are flagged
// for immediate transfer and logged loudly; they sort ahead of the regular
// contact workflow rather than waiting in it.
func (service *Service) Enqueue(ctx context.Context, request EnqueueRequest) (Callback, error) {
	priority := request.Priority
	if priority == "" {
		priority = ClassifyPriority(request.ErrorCode)
	}
	callback := Callback{
		ID:                CallbackID{value: uuid.NewString()},
		RestaurantID:      request.RestaurantID,
		CustomerName:      request.CustomerName,
		Phone:             request.Phone,
		RequestedTime:     request.RequestedTime,
		PartySize:         request.PartySize,
		FailureReason:     request.FailureReason,
		ErrorCode:         request.ErrorCode,
		Priority:          priority,
		Status:            StatusPending,
		ImmediateTransfer: priority == PriorityUrgent && request.ErrorCode == booking.ErrorCodeSafetyTrigger,
		CreatedAt:         service.nowFn(),
	}
	if err := service.store.CreateCallback(ctx, callback); err != nil {
		return Callback{}, err
	}
	if callback.ImmediateTransfer {
		service.logger.Warn("immediate transfer required",
			zap.String("callback_id", callback.ID.String()),
			zap.String("restaurant_id", callback.RestaurantID.String()),
			zap.String("error_code", callback.ErrorCode),
			zap.String("failure_reason", callback.FailureReason),
		)
	} else {
		service.logger.Info("callback enqueued",
			zap.String("callback_id", callback.ID.String()),
			zap.String("restaurant_id", callback.RestaurantID.String()),
			zap.String("priority", callback.Priority.String()),
			zap.String("error_code", callback.ErrorCode),
		)
	}
	service.publish(ctx, booking.CallbackCreatedEvent{
		RestaurantID: callback.RestaurantID.String(),
		CallbackID:   callback.ID.String(),
		Priority:     callback.Priority.String(),
		ErrorCode:    callback.ErrorCode,
		OccurredAt:   callback.CreatedAt,
	})
	return callback, nil
}

// Escalate implements booking.EscalationSink. Failures to enqueue are logged
// rather than propagated; the caller is already on a degraded path.
func (service *Service) Escalate(ctx context.Context, request booking.EscalationRequest) {
	_, err := service.Enqueue(ctx, EnqueueRequest{
		RestaurantID:  request.RestaurantID,
		CustomerName:  request.CustomerName,
		Phone:         request.Phone,
		RequestedTime: request.RequestedTime,
		PartySize:     request.PartySize,
		FailureReason: request.FailureReason,
		ErrorCode:     request.ErrorCode,
	})
	if err != nil {
		service.logger.Error("escalation enqueue failed",
			zap.String("restaurant_id", request.RestaurantID.String()),
			zap.String("error_code", request.ErrorCode),
			zap.Error(err),
		)
	}
}

// Start claims a pending callback for staff and records a contact attempt.
// Exhausting the attempt ceiling fails the callback automatically with a
// resolution note, without further staff action.
func (service *Service) Start(ctx context.Context, callbackID CallbackID) (Callback, error) {
	var claimed Callback
	transactionError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		callback, err := transactionStore.GetCallback(ctx, callbackID)
		if err != nil {
			return err
		}
		if !callback.Status.CanAdvanceTo(StatusInProgress) {
			return fmt.Errorf("%w: cannot start a %s callback", ErrStatusConflict, callback.Status)
		}
		if err := transactionStore.UpdateCallbackStatus(ctx, callbackID, callback.Status, StatusInProgress); err != nil {
			return err
		}
		now := service.nowFn()
		attempts, err := transactionStore.RecordAttempt(ctx, callbackID, now)
		if err != nil {
			return err
		}
		callback.Status = StatusInProgress
		callback.AttemptCount = attempts
		callback.LastAttemptAt = &now
		if attempts > service.maxAttempts {
			if err := transactionStore.UpdateCallbackStatus(ctx, callbackID, StatusInProgress, StatusFailed); err != nil {
				return err
			}
			if err := transactionStore.SetResolution(ctx, callbackID, OutcomeNoAnswer, attemptsExhaustedNote); err != nil {
				return err
			}
			callback.Status = StatusFailed
			callback.ResolutionOutcome = OutcomeNoAnswer
			callback.ResolutionNotes = attemptsExhaustedNote
		}
		claimed = callback
		return nil
	})
	if transactionError != nil {
		return Callback{}, transactionError
	}
	if claimed.Status == StatusFailed {
		service.publishResolved(ctx, claimed)
	}
	return claimed, nil
}

// Complete closes an in-progress callback with a mandatory outcome.
func (service *Service) Complete(ctx context.Context, callbackID CallbackID, outcome Outcome, notes string) (Callback, error) {
	if outcome == "" {
		return Callback{}, fmt.Errorf("%w: completion needs an outcome", ErrResolutionRequired)
	}
	if _, err := ParseOutcome(outcome.String()); err != nil {
		return Callback{}, err
	}
	return service.closeOut(ctx, callbackID, StatusCompleted, outcome, notes)
}

// Fail closes a non-terminal callback as failed.
func (service *Service) Fail(ctx context.Context, callbackID CallbackID, reason string) (Callback, error) {
	return service.closeOut(ctx, callbackID, StatusFailed, OutcomeOther, reason)
}

// Cancel closes a non-terminal callback with an optional reason.
func (service *Service) Cancel(ctx context.Context, callbackID CallbackID, reason string) (Callback, error) {
	return service.closeOut(ctx, callbackID, StatusCancelled, "", reason)
}

// PendingQueue lists open callbacks in staff work order: priority descending,
// oldest first within a band.
func (service *Service) PendingQueue(ctx context.Context, restaurantID booking.RestaurantID) ([]Callback, error) {
	return service.store.ListPending(ctx, restaurantID, defaultPendingQueueLimit)
}

func (service *Service) closeOut(ctx context.Context, callbackID CallbackID, target Status, outcome Outcome, notes string) (Callback, error) {
	var closed Callback
	transactionError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		callback, err := transactionStore.GetCallback(ctx, callbackID)
		if err != nil {
			return err
		}
		if !callback.Status.CanAdvanceTo(target) {
			return fmt.Errorf("%w: cannot move a %s callback to %s", ErrStatusConflict, callback.Status, target)
		}
		if err := transactionStore.UpdateCallbackStatus(ctx, callbackID, callback.Status, target); err != nil {
			return err
		}
		if outcome != "" || notes != "" {
			if err := transactionStore.SetResolution(ctx, callbackID, outcome, notes); err != nil {
				return err
			}
		}
		callback.Status = target
		callback.ResolutionOutcome = outcome
		callback.ResolutionNotes = notes
		closed = callback
		return nil
	})
	if transactionError != nil {
		return Callback{}, transactionError
	}
	service.publishResolved(ctx, closed)
	return closed, nil
}

func (service *Service) publishResolved(ctx context.Context, callback Callback) {
	service.publish(ctx, booking.CallbackResolvedEvent{
		RestaurantID: callback.RestaurantID.String(),
		CallbackID:   callback.ID.String(),
		Status:       callback.Status.String(),
		Outcome:      callback.ResolutionOutcome.String(),
		OccurredAt:   service.nowFn(),
	})
}

func (service *Service) publish(ctx context.Context, event booking.Event) {
	if service.publisher == nil {
		return
	}
	_ = service.publisher.Publish(ctx, event)
}
