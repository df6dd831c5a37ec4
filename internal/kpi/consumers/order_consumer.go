package consumers

import (
	"context"
	"fmt"
	"time"

	"github.com/yoozak/yoozak-backend/internal/kpi/domain"
	"github.com/yoozak/yoozak-backend/pkg/logger"
	"github.com/yoozak/yoozak-backend/pkg/messaging"
)

// QueueName is the durable queue the KPI counters are fed from
const QueueName = "yoozak.kpi.order-events"

// CounterStore folds increments into daily counters once per event
type CounterStore interface {
	ApplyEvent(ctx context.Context, eventID string, day time.Time, increments map[string]int64) (bool, error)
}

// OrderEventHandler turns order events into daily counter increments
// (testable without RabbitMQ)
type OrderEventHandler struct {
	store  CounterStore
	logger *logger.Logger
}

// NewOrderEventHandler creates a new handler
func NewOrderEventHandler(store CounterStore, log *logger.Logger) *OrderEventHandler {
	return &OrderEventHandler{store: store, logger: log}
}

// Register binds the handler's event types on a consumer or dispatcher
func (h *OrderEventHandler) Register(c *messaging.Consumer) {
	c.RegisterHandler(messaging.EventOrderCreated, h.handleOrderCreated)
	c.RegisterHandler(messaging.EventOrderStatusChanged, h.handleStatusChanged)
}

func (h *OrderEventHandler) handleOrderCreated(ctx context.Context, event *messaging.Event) error {
	var data messaging.OrderCreatedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return fmt.Errorf("failed to unmarshal order created event: %w", err)
	}

	return h.apply(ctx, event, map[string]int64{
		domain.MetricOrdersCreated:      1,
		domain.MetricOrdersCreatedValue: data.Total,
	})
}

func (h *OrderEventHandler) handleStatusChanged(ctx context.Context, event *messaging.Event) error {
	var data messaging.OrderStatusChangedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return fmt.Errorf("failed to unmarshal order status event: %w", err)
	}

	increments := map[string]int64{domain.StatusMetric(data.ToStatus): 1}
	if data.ToStatus == "delivered" {
		increments[domain.MetricRevenueDelivered] = data.Total
	}
	return h.apply(ctx, event, increments)
}

func (h *OrderEventHandler) apply(ctx context.Context, event *messaging.Event, increments map[string]int64) error {
	day := event.Timestamp.UTC()
	if event.Timestamp.IsZero() {
		day = time.Now().UTC()
	}

	applied, err := h.store.ApplyEvent(ctx, event.ID, day, increments)
	if err != nil {
		return err
	}
	if !applied {
		h.logger.Debug().Str("event_id", event.ID).Msg("event already counted")
	}
	return nil
}

// OrderEventConsumer consumes order events to maintain the daily KPI counters
type OrderEventConsumer struct {
	consumer *messaging.Consumer
	logger   *logger.Logger
}

// NewOrderEventConsumer subscribes the KPI queue to the order exchange
func NewOrderEventConsumer(rmq *messaging.RabbitMQ, store CounterStore, log *logger.Logger) (*OrderEventConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, QueueName, log)
	if err != nil {
		return nil, err
	}

	if err := consumer.Subscribe(messaging.ExchangeOrderEvents, "order.#"); err != nil {
		return nil, err
	}

	NewOrderEventHandler(store, log).Register(consumer)

	return &OrderEventConsumer{consumer: consumer, logger: log}, nil
}

// Start starts consuming messages
func (c *OrderEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}
