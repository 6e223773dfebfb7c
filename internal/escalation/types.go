package escalation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oakandember/tablebook/pkg/booking"
)

// CallbackID identifies a callback task.
type CallbackID struct {
	value string
}

// NewCallbackID validates and normalizes a callback id.
func NewCallbackID(raw string) (CallbackID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return CallbackID{}, fmt.Errorf("%w: empty value", ErrInvalidCallbackID)
	}
	return CallbackID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id CallbackID) String() string {
	return id.value
}

// Priority orders callbacks for staff; urgent ranks highest.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// ParsePriority validates a priority value.
func ParsePriority(raw string) (Priority, error) {
	switch Priority(raw) {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return Priority(raw), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPriority, raw)
	}
}

// String returns the priority value.
func (priority Priority) String() string {
	return string(priority)
}

// Rank returns the numeric ordering of the priority, higher first in queues.
func (priority Priority) Rank() int {
	switch priority {
	case PriorityUrgent:
		return 3
	case PriorityHigh:
		return 2
	case PriorityNormal:
		return 1
	default:
		return 0
	}
}

// Status defines the callback workflow lifecycle.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// ParseStatus validates a callback status value.
func ParseStatus(raw string) (Status, error) {
	switch Status(raw) {
	case StatusPending, StatusInProgress, StatusCompleted, StatusFailed, StatusCancelled:
		return Status(raw), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
}

// String returns the status value.
func (status Status) String() string {
	return string(status)
}

// IsTerminal reports whether the workflow has ended.
func (status Status) IsTerminal() bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// CanAdvanceTo reports whether a transition is legal. Completion requires
// passing through in_progress; failure and cancellation close any
// non-terminal state.
func (status Status) CanAdvanceTo(next Status) bool {
	switch next {
	case StatusInProgress:
		return status == StatusPending
	case StatusCompleted:
		return status == StatusInProgress
	case StatusFailed, StatusCancelled:
		return !status.IsTerminal()
	default:
		return false
	}
}

// Outcome records how a handled callback ended.
type Outcome string

const (
	OutcomeBooked   Outcome = "booked"
	OutcomeNoAnswer Outcome = "no_answer"
	OutcomeDeclined Outcome = "declined"
	OutcomeResolved Outcome = "resolved"
	OutcomeInvalid  Outcome = "invalid"
	OutcomeOther    Outcome = "other"
)

// ParseOutcome validates a resolution outcome value.
func ParseOutcome(raw string) (Outcome, error) {
	switch Outcome(raw) {
	case OutcomeBooked, OutcomeNoAnswer, OutcomeDeclined, OutcomeResolved, OutcomeInvalid, OutcomeOther:
		return Outcome(raw), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidOutcome, raw)
	}
}

// String returns the outcome value.
func (outcome Outcome) String() string {
	return string(outcome)
}

// Callback is a prioritized human follow-up task.
type Callback struct {
	ID                CallbackID
	RestaurantID      booking.RestaurantID
	CustomerName      string
	Phone             booking.PhoneNumber
	RequestedTime     time.Time
	PartySize         int
	FailureReason     string
	ErrorCode         string
	Priority          Priority
	Status            Status
	ImmediateTransfer bool
	AttemptCount      int
	LastAttemptAt     *time.Time
	ResolutionOutcome Outcome
	ResolutionNotes   string
	CreatedAt         time.Time
}

// Store is the persistence contract for the callback queue. Once a callback
// exists, only this package mutates it.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
	CreateCallback(ctx context.Context, callback Callback) error
	GetCallback(ctx context.Context, callbackID CallbackID) (Callback, error)
	UpdateCallbackStatus(ctx context.Context, callbackID CallbackID, from Status, to Status) error
	RecordAttempt(ctx context.Context, callbackID CallbackID, at time.Time) (int, error)
	SetResolution(ctx context.Context, callbackID CallbackID, outcome Outcome, notes string) error
	ListPending(ctx context.Context, restaurantID booking.RestaurantID, limit int) ([]Callback, error)
}
