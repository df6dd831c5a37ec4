package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/yoozak/yoozak-backend/pkg/logger"
)

// EventPublisher is implemented by Publisher and by test doubles
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// Publisher publishes domain events to one exchange, using the event type
// as routing key
type Publisher struct {
	rmq      *RabbitMQ
	exchange string
	source   string
	logger   *logger.Logger
}

// NewPublisher declares the exchange and returns a publisher for it
func NewPublisher(rmq *RabbitMQ, exchange, source string, log *logger.Logger) (*Publisher, error) {
	if err := rmq.DeclareExchange(exchange); err != nil {
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	return &Publisher{
		rmq:      rmq,
		exchange: exchange,
		source:   source,
		logger:   log,
	}, nil
}

// Publish wraps data in an Event and waits for the broker to confirm it
func (p *Publisher) Publish(ctx context.Context, eventType string, data interface{}) error {
	event, err := NewEvent(eventType, p.source, CorrelationID(ctx), data)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.rmq.publish(ctx, p.exchange, eventType, event, body, nil); err != nil {
		return err
	}

	p.logger.Debug().
		Str("event_type", eventType).
		Str("event_id", event.ID).
		Str("correlation_id", event.CorrelationID).
		Msg("event published")

	return nil
}

// publish sends body and blocks until the broker acks or nacks it
func (r *RabbitMQ) publish(ctx context.Context, exchange, routingKey string, event *Event, body []byte, headers amqp.Table) error {
	r.pubMu.Lock()
	defer r.pubMu.Unlock()

	confirm, err := r.pub.PublishWithDeferredConfirmWithContext(ctx,
		exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp.Persistent,
			MessageId:     event.ID,
			Type:          event.Type,
			AppId:         event.Source,
			Timestamp:     event.Timestamp,
			CorrelationId: event.CorrelationID,
			Headers:       headers,
			Body:          body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("waiting for publish confirm: %w", err)
	}
	if !acked {
		return fmt.Errorf("broker refused event %s", event.ID)
	}
	return nil
}

type contextKey string

const correlationIDKey contextKey = "correlation_id"

// WithCorrelationID adds a correlation ID to the context
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationIDKey, correlationID)
}

// CorrelationID returns the correlation ID carried by ctx, if any
func CorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey).(string); ok {
		return id
	}
	return ""
}
