package events

import (
	"context"

	"github.com/yoozak/yoozak-backend/internal/stock/domain"
	"github.com/yoozak/yoozak-backend/pkg/logger"
	"github.com/yoozak/yoozak-backend/pkg/messaging"
)

// StockEventPublisher publishes stock-related events
type StockEventPublisher struct {
	publisher messaging.EventPublisher
	logger    *logger.Logger
}

// NewStockEventPublisher creates a publisher on the stock exchange
func NewStockEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*StockEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeStockEvents, "stock", log)
	if err != nil {
		return nil, err
	}
	return NewStockEventPublisherWith(publisher, log), nil
}

// NewStockEventPublisherWith wraps an existing publisher
func NewStockEventPublisherWith(pub messaging.EventPublisher, log *logger.Logger) *StockEventPublisher {
	return &StockEventPublisher{publisher: pub, logger: log}
}

// PublishMovementCreated publishes one event covering every line of a committed movement
func (p *StockEventPublisher) PublishMovementCreated(ctx context.Context, movements []domain.Movement) {
	if p == nil || len(movements) == 0 {
		return
	}

	first := movements[0]
	data := messaging.StockMovementCreatedEvent{
		MovementIDs: make([]string, 0, len(movements)),
		Type:        string(first.Type),
		Reason:      first.Reason,
		OrderID:     first.OrderID,
		PerformedBy: first.OperatorID,
		Lines:       make([]messaging.StockMovementLine, 0, len(movements)),
	}
	for _, m := range movements {
		data.MovementIDs = append(data.MovementIDs, m.ID)
		data.Lines = append(data.Lines, messaging.StockMovementLine{
			VariantID:   m.VariantID,
			ArticleID:   m.ArticleID,
			Delta:       m.Delta(),
			NewQuantity: m.QuantityAfter,
		})
	}

	if err := p.publisher.Publish(ctx, messaging.EventStockMovementCreated, data); err != nil {
		p.logger.Error().Err(err).Str("movement_id", first.ID).Msg("failed to publish stock movement event")
	}
}

// PublishAlert publishes a low-stock or out-of-stock alert
func (p *StockEventPublisher) PublishAlert(ctx context.Context, alert *domain.Alert) {
	if p == nil {
		return
	}

	eventType := messaging.EventStockLow
	if alert.AlertType == domain.AlertOutOfStock {
		eventType = messaging.EventStockOut
	}

	data := messaging.StockAlertEvent{
		AlertID:    alert.ID,
		ArticleID:  alert.ArticleID,
		Reference:  alert.Reference,
		TotalStock: alert.CurrentStock,
		Threshold:  alert.Threshold,
		Severity:   alert.Severity,
	}
	if err := p.publisher.Publish(ctx, eventType, data); err != nil {
		p.logger.Error().Err(err).Str("alert_id", alert.ID).Msg("failed to publish stock alert event")
	}
}
