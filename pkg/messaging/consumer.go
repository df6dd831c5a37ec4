package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/yoozak/yoozak-backend/pkg/logger"
)

// MaxAttempts is how many times a failing event is delivered before it is
// dead-lettered
const MaxAttempts = 3

const attemptHeader = "x-yoozak-attempt"

// MessageHandler is a function that handles a message
type MessageHandler func(ctx context.Context, event *Event) error

// Consumer routes events from one queue to handlers keyed by event type
type Consumer struct {
	rmq       *RabbitMQ
	queueName string
	handlers  map[string]MessageHandler
	logger    *logger.Logger
}

// NewDispatcher creates a consumer that is not bound to a broker.
// Only Dispatch and RegisterHandler are usable on it.
func NewDispatcher(log *logger.Logger) *Consumer {
	return &Consumer{handlers: make(map[string]MessageHandler), logger: log}
}

// NewConsumer declares queueName and returns a consumer for it
func NewConsumer(rmq *RabbitMQ, queueName string, log *logger.Logger) (*Consumer, error) {
	if _, err := rmq.DeclareQueue(queueName); err != nil {
		return nil, fmt.Errorf("failed to declare queue %s: %w", queueName, err)
	}

	return &Consumer{
		rmq:       rmq,
		queueName: queueName,
		handlers:  make(map[string]MessageHandler),
		logger:    log.WithComponent("consumer." + queueName),
	}, nil
}

// Subscribe binds the queue to exchange for routing keys matching pattern
func (c *Consumer) Subscribe(exchange, routingKeyPattern string) error {
	if err := c.rmq.DeclareExchange(exchange); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}
	if err := c.rmq.BindQueue(c.queueName, exchange, routingKeyPattern); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	c.logger.Info().
		Str("exchange", exchange).
		Str("routing_key", routingKeyPattern).
		Msg("subscribed to exchange")
	return nil
}

// RegisterHandler registers a handler for a specific event type
func (c *Consumer) RegisterHandler(eventType string, handler MessageHandler) {
	c.handlers[eventType] = handler
}

// Start consumes the queue on a dedicated channel until ctx is cancelled
func (c *Consumer) Start(ctx context.Context) error {
	ch, err := c.rmq.openConsumerChannel()
	if err != nil {
		return err
	}

	msgs, err := ch.Consume(c.queueName, "", false, false, false, false, nil)
	if err != nil {
		ch.Close()
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info().Msg("consumer started")

	go func() {
		defer ch.Close()
		for {
			select {
			case <-ctx.Done():
				c.logger.Info().Msg("consumer stopped")
				return
			case msg, ok := <-msgs:
				if !ok {
					c.logger.Warn().Msg("message channel closed")
					return
				}
				c.handleMessage(ctx, msg)
			}
		}
	}()

	return nil
}

func (c *Consumer) handleMessage(ctx context.Context, msg amqp.Delivery) {
	var event Event
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		c.logger.Error().Err(err).Msg("malformed event, dead-lettering")
		_ = msg.Reject(false)
		return
	}

	ctx = WithCorrelationID(ctx, event.CorrelationID)

	err := c.Dispatch(ctx, &event)
	if err == nil {
		_ = msg.Ack(false)
		return
	}

	attempt := attemptOf(msg) + 1
	log := c.logger.Error().
		Err(err).
		Str("event_type", event.Type).
		Str("event_id", event.ID).
		Int("attempt", attempt)

	if attempt >= MaxAttempts {
		log.Msg("event failed on last attempt, dead-lettering")
		_ = msg.Reject(false)
		return
	}

	// Requeue a copy carrying the attempt count; a plain nack would loop
	// without ever reaching the dead letter queue.
	if perr := c.rmq.publish(ctx, "", c.queueName, &event, msg.Body, amqp.Table{attemptHeader: int32(attempt)}); perr != nil {
		log.Msg("event failed, requeueing original")
		_ = msg.Nack(false, true)
		return
	}
	log.Msg("event failed, scheduled for retry")
	_ = msg.Ack(false)
}

// Dispatch routes an event to its registered handler.
// Events without a handler are ignored.
func (c *Consumer) Dispatch(ctx context.Context, event *Event) error {
	handler, ok := c.handlers[event.Type]
	if !ok {
		c.logger.Debug().Str("event_type", event.Type).Msg("no handler registered for event type")
		return nil
	}

	c.logger.Debug().
		Str("event_type", event.Type).
		Str("event_id", event.ID).
		Str("correlation_id", event.CorrelationID).
		Msg("processing event")

	return handler(ctx, event)
}

// attemptOf returns how many times the delivery already failed
func attemptOf(msg amqp.Delivery) int {
	switch v := msg.Headers[attemptHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}
