package events

import (
	"context"

	"github.com/yoozak/yoozak-backend/internal/orders/domain"
	"github.com/yoozak/yoozak-backend/pkg/logger"
	"github.com/yoozak/yoozak-backend/pkg/messaging"
)

// OrderEventPublisher publishes order-related events
type OrderEventPublisher struct {
	publisher messaging.EventPublisher
	logger    *logger.Logger
}

// NewOrderEventPublisher creates a publisher on the order exchange
func NewOrderEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*OrderEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeOrderEvents, "orders", log)
	if err != nil {
		return nil, err
	}
	return NewOrderEventPublisherWith(publisher, log), nil
}

// NewOrderEventPublisherWith wraps an existing publisher
func NewOrderEventPublisherWith(pub messaging.EventPublisher, log *logger.Logger) *OrderEventPublisher {
	return &OrderEventPublisher{publisher: pub, logger: log}
}

// PublishCreated publishes an order created event
func (p *OrderEventPublisher) PublishCreated(ctx context.Context, o *domain.Order) {
	if p == nil {
		return
	}
	data := messaging.OrderCreatedEvent{
		OrderID:   o.ID,
		Number:    o.Number,
		Total:     int64(o.Total),
		ItemCount: o.ItemCount(),
		Source:    string(o.Source),
	}
	if o.ExternalRef != nil {
		data.ExternalRef = *o.ExternalRef
	}
	if err := p.publisher.Publish(ctx, messaging.EventOrderCreated, data); err != nil {
		p.logger.Error().Err(err).Str("order_id", o.ID).Msg("failed to publish order created event")
	}
}

// PublishStatusChanged publishes an order status change
func (p *OrderEventPublisher) PublishStatusChanged(ctx context.Context, o *domain.Order, change *domain.StatusChange) {
	if p == nil {
		return
	}
	data := messaging.OrderStatusChangedEvent{
		OrderID:    o.ID,
		Number:     o.Number,
		FromStatus: string(change.From),
		ToStatus:   string(change.To),
		OperatorID: change.OperatorID,
		Total:      int64(o.Total),
	}
	if err := p.publisher.Publish(ctx, messaging.EventOrderStatusChanged, data); err != nil {
		p.logger.Error().Err(err).Str("order_id", o.ID).Msg("failed to publish order status event")
	}
}

// PublishAssigned publishes an assignment batch
func (p *OrderEventPublisher) PublishAssigned(ctx context.Context, orderIDs []string, operatorID string) {
	if p == nil || len(orderIDs) == 0 {
		return
	}
	data := messaging.OrderAssignedEvent{OrderIDs: orderIDs, OperatorID: operatorID}
	if err := p.publisher.Publish(ctx, messaging.EventOrderAssigned, data); err != nil {
		p.logger.Error().Err(err).Str("operator_id", operatorID).Msg("failed to publish order assigned event")
	}
}
