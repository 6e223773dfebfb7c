// Package notify publishes booking domain events to RabbitMQ. Publish errors
// are logged and returned so callers can ignore them without interrupting the
// request flow.
package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/oakandember/tablebook/pkg/booking"
)

const eventQueueName = "tablebook.events"

// Publisher implements booking.EventPublisher over a durable AMQP queue.
// Messages are persistent JSON; the connection is re-established lazily after
// broker failures.
type Publisher struct {
	url    string
	logger *zap.Logger

	mutex   sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewPublisher returns a Publisher for the given broker URL. The connection
// is opened on first publish.
func NewPublisher(url string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{url: url, logger: logger}
}

type envelope struct {
	Kind       string         `json:"kind"`
	OccurredAt time.Time      `json:"occurred_at"`
	Payload    map[string]any `json:"payload"`
}

// Publish sends one event to the durable queue.
func (publisher *Publisher) Publish(ctx context.Context, event booking.Event) error {
	payload, err := toPayload(event)
	if err != nil {
		publisher.logger.Warn("event marshal failed", zap.Error(err))
		return err
	}
	body, err := json.Marshal(envelope{
		Kind:       string(event.Kind()),
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	})
	if err != nil {
		publisher.logger.Warn("event marshal failed", zap.Error(err))
		return err
	}

	publisher.mutex.Lock()
	defer publisher.mutex.Unlock()
	channel, err := publisher.ensureChannel()
	if err != nil {
		publisher.logger.Warn("broker unavailable", zap.Error(err))
		return err
	}
	err = channel.PublishWithContext(ctx,
		"",             // default exchange
		eventQueueName, // routing key = queue name
		false,          // mandatory
		false,          // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		})
	if err != nil {
		publisher.reset()
		publisher.logger.Warn("event publish failed",
			zap.String("kind", string(event.Kind())),
			zap.Error(err))
		return err
	}
	return nil
}

// Close releases the broker connection.
func (publisher *Publisher) Close() error {
	publisher.mutex.Lock()
	defer publisher.mutex.Unlock()
	if publisher.channel != nil {
		_ = publisher.channel.Close()
		publisher.channel = nil
	}
	if publisher.conn != nil {
		err := publisher.conn.Close()
		publisher.conn = nil
		return err
	}
	return nil
}

func (publisher *Publisher) ensureChannel() (*amqp.Channel, error) {
	if publisher.channel != nil && !publisher.conn.IsClosed() {
		return publisher.channel, nil
	}
	publisher.reset()
	conn, err := amqp.Dial(publisher.url)
	if err != nil {
		return nil, err
	}
	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	// Durable so messages survive broker restarts.
	if _, err := channel.QueueDeclare(eventQueueName, true, false, false, false, nil); err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return nil, err
	}
	publisher.conn = conn
	publisher.channel = channel
	return channel, nil
}

func (publisher *Publisher) reset() {
	if publisher.channel != nil {
		_ = publisher.channel.Close()
		publisher.channel = nil
	}
	if publisher.conn != nil {
		_ = publisher.conn.Close()
		publisher.conn = nil
	}
}

func toPayload(event booking.Event) (map[string]any, error) {
	raw, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}
