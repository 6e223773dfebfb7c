package booking

import (
	"context"
	"time"
)

// EventType identifies a domain event payload.
type EventType string

const (
	EventTypeSlotBooked       EventType = "slot.booked"
	EventTypeSlotReleased     EventType = "slot.released"
	EventTypeCallbackCreated  EventType = "callback.created"
	EventTypeCallbackResolved EventType = "callback.resolved"
)

// Event is a typed domain event emitted after a committed state change.
type Event interface {
	Kind() EventType
}

// SlotBookedEvent is published when a reservation commits against a slot.
type SlotBookedEvent struct {
	RestaurantID     string    `json:"restaurant_id"`
	ReservationID    string    `json:"reservation_id"`
	ConfirmationCode string    `json:"confirmation_code"`
	SlotTime         time.Time `json:"slot_time"`
	Seating          string    `json:"seating"`
	PartySize        int       `json:"party_size"`
	SMSConsent       bool      `json:"sms_consent"`
	OccurredAt       time.Time `json:"occurred_at"`
}

// Kind returns the event type.
func (SlotBookedEvent) Kind() EventType { return EventTypeSlotBooked }

// SlotReleasedEvent is published when a cancellation or move frees capacity.
type SlotReleasedEvent struct {
	RestaurantID  string    `json:"restaurant_id"`
	ReservationID string    `json:"reservation_id"`
	SlotTime      time.Time `json:"slot_time"`
	Seating       string    `json:"seating"`
	Reason        string    `json:"reason,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Kind returns the event type.
func (SlotReleasedEvent) Kind() EventType { return EventTypeSlotReleased }

// CallbackCreatedEvent is published when a failure is escalated to staff.
type CallbackCreatedEvent struct {
	RestaurantID string    `json:"restaurant_id"`
	CallbackID   string    `json:"callback_id"`
	Priority     string    `json:"priority"`
	ErrorCode    string    `json:"error_code"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Kind returns the event type.
func (CallbackCreatedEvent) Kind() EventType { return EventTypeCallbackCreated }

// CallbackResolvedEvent is published when staff close out an escalation.
type CallbackResolvedEvent struct {
	RestaurantID string    `json:"restaurant_id"`
	CallbackID   string    `json:"callback_id"`
	Status       string    `json:"status"`
	Outcome      string    `json:"outcome,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Kind returns the event type.
func (CallbackResolvedEvent) Kind() EventType { return EventTypeCallbackResolved }

// EventPublisher delivers events to downstream observers (metrics, cache
// invalidation, dashboard refresh). Delivery is best effort; a publish
// failure never rolls back the state change that produced the event.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// EscalationRequest carries the context a human needs to follow up on a
// failed automated flow.
type EscalationRequest struct {
	RestaurantID  RestaurantID
	CustomerName  string
	Phone         PhoneNumber
	RequestedTime time.Time
	PartySize     int
	FailureReason string
	ErrorCode     string
}

// EscalationSink accepts failures that require human follow-up. The booking
// core calls it on system faults and safety triggers; the callback queue
// implements it.
type EscalationSink interface {
	Escalate(ctx context.Context, request EscalationRequest)
}
