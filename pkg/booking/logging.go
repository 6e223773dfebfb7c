package booking

import "context"

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// OperationLogger records domain-level events emitted by Service operations.
type OperationLogger interface {
	LogOperation(ctx context.Context, entry OperationLog)
}

// OperationLog describes a state-changing booking operation.
type OperationLog struct {
	Operation     string
	RestaurantID  RestaurantID
	ReservationID ReservationID
	RequestID     RequestID
	Phone         PhoneNumber
	PartySize     PartySize
	Outcome       string
	Status        string
	Error         error
}

// WithOperationLogger wires a logger that receives callbacks for every operation.
func WithOperationLogger(logger OperationLogger) ServiceOption {
	return func(service *Service) {
		service.logger = logger
	}
}

// WithEventPublisher wires a publisher that receives typed events after commits.
func WithEventPublisher(publisher EventPublisher) ServiceOption {
	return func(service *Service) {
		service.publisher = publisher
	}
}

// WithEscalationSink wires the human follow-up queue for failure paths.
func WithEscalationSink(sink EscalationSink) ServiceOption {
	return func(service *Service) {
		service.escalator = sink
	}
}
