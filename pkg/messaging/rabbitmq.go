package messaging

import (
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/yoozak/yoozak-backend/pkg/config"
	"github.com/yoozak/yoozak-backend/pkg/logger"
)

// DeadLetterExchange receives messages rejected after their last attempt
const DeadLetterExchange = "yoozak.dlx"

// RabbitMQ owns the broker connection. Publishing goes through a single
// confirm-mode channel guarded by pubMu; each consumer opens its own channel.
type RabbitMQ struct {
	conn   *amqp.Connection
	admin  *amqp.Channel
	pub    *amqp.Channel
	pubMu  sync.Mutex
	config *config.RabbitMQConfig
	logger *logger.Logger
	mu     sync.RWMutex
	closed bool
}

// New dials the broker, retrying up to MaxRetries times
func New(cfg *config.RabbitMQConfig, log *logger.Logger) (*RabbitMQ, error) {
	r := &RabbitMQ{config: cfg, logger: log}

	attempts := cfg.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 1; i <= attempts; i++ {
		if err = r.connect(); err == nil {
			return r, nil
		}
		if i < attempts {
			log.Warn().Err(err).Int("attempt", i).Dur("retry_in", cfg.ReconnectDelay).Msg("RabbitMQ not reachable")
			time.Sleep(cfg.ReconnectDelay)
		}
	}
	return nil, err
}

func (r *RabbitMQ) connect() error {
	conn, err := amqp.Dial(r.config.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	admin, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	pub, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open publish channel: %w", err)
	}
	if err := pub.Confirm(false); err != nil {
		conn.Close()
		return fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	r.conn, r.admin, r.pub = conn, admin, pub
	r.logger.Info().Msg("connected to RabbitMQ")
	return nil
}

// openConsumerChannel opens a channel with the configured prefetch
func (r *RabbitMQ) openConsumerChannel() (*amqp.Channel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ch, err := r.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open consumer channel: %w", err)
	}
	if r.config.PrefetchCount > 0 {
		if err := ch.Qos(r.config.PrefetchCount, 0, false); err != nil {
			ch.Close()
			return nil, fmt.Errorf("failed to set QoS: %w", err)
		}
	}
	return ch, nil
}

// Close closes the RabbitMQ connection and its channels
func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	if r.conn != nil {
		if err := r.conn.Close(); err != nil {
			return fmt.Errorf("failed to close connection: %w", err)
		}
	}

	r.logger.Info().Msg("RabbitMQ connection closed")
	return nil
}

// Health returns the health status of RabbitMQ
func (r *RabbitMQ) Health() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.conn == nil || r.conn.IsClosed() {
		return map[string]string{"status": "down", "error": "connection closed"}
	}
	if r.pub == nil || r.pub.IsClosed() {
		return map[string]string{"status": "degraded", "error": "publish channel closed"}
	}
	return map[string]string{"status": "up"}
}

// DeclareExchange declares a durable topic exchange
func (r *RabbitMQ) DeclareExchange(name string) error {
	return r.admin.ExchangeDeclare(name, amqp.ExchangeTopic, true, false, false, false, nil)
}

// DeclareQueue declares a durable queue dead-lettering into DeadLetterExchange
func (r *RabbitMQ) DeclareQueue(name string) (amqp.Queue, error) {
	return r.admin.QueueDeclare(name, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange": DeadLetterExchange,
	})
}

// DeclareDeadLetterQueue declares the dead letter exchange and a catch-all
// queue named dlq.<serviceName>
func (r *RabbitMQ) DeclareDeadLetterQueue(serviceName string) error {
	if err := r.DeclareExchange(DeadLetterExchange); err != nil {
		return fmt.Errorf("failed to declare DLX exchange: %w", err)
	}

	queueName := "dlq." + serviceName
	if _, err := r.admin.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare DLQ queue: %w", err)
	}

	if err := r.admin.QueueBind(queueName, "#", DeadLetterExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind DLQ: %w", err)
	}
	return nil
}

// BindQueue binds a queue to an exchange with a routing key pattern
func (r *RabbitMQ) BindQueue(queueName, exchange, routingKey string) error {
	return r.admin.QueueBind(queueName, routingKey, exchange, false, nil)
}
