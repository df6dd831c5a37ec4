package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yoozak/yoozak-backend/internal/stock/domain"
	"github.com/yoozak/yoozak-backend/pkg/logger"
	"github.com/yoozak/yoozak-backend/pkg/messaging"
	"github.com/yoozak/yoozak-backend/pkg/testutil"
)

func TestPublishMovementCreated_GroupsLines(t *testing.T) {
	pub := testutil.NewMockPublisher()
	p := NewStockEventPublisherWith(pub, logger.Nop())

	orderID := "o1"
	p.PublishMovementCreated(context.Background(), []domain.Movement{
		{ID: "m1", ArticleID: "a1", VariantID: "v1", Type: domain.MovementOut, QuantityBefore: 5, QuantityAfter: 3, OrderID: &orderID, OperatorID: "op"},
		{ID: "m2", ArticleID: "a1", VariantID: "v2", Type: domain.MovementOut, QuantityBefore: 1, QuantityAfter: 0, OrderID: &orderID, OperatorID: "op"},
	})

	events := pub.EventsOfType(messaging.EventStockMovementCreated)
	require.Len(t, events, 1)
	data := events[0].(messaging.StockMovementCreatedEvent)
	assert.Equal(t, []string{"m1", "m2"}, data.MovementIDs)
	assert.Equal(t, "out", data.Type)
	assert.Equal(t, -2, data.Lines[0].Delta)
	assert.Equal(t, 0, data.Lines[1].NewQuantity)
	assert.Equal(t, &orderID, data.OrderID)
}

func TestPublishAlert_RoutesByType(t *testing.T) {
	pub := testutil.NewMockPublisher()
	p := NewStockEventPublisherWith(pub, logger.Nop())

	p.PublishAlert(context.Background(), &domain.Alert{ID: "al1", AlertType: domain.AlertLowStock})
	p.PublishAlert(context.Background(), &domain.Alert{ID: "al2", AlertType: domain.AlertOutOfStock})

	assert.Len(t, pub.EventsOfType(messaging.EventStockLow), 1)
	assert.Len(t, pub.EventsOfType(messaging.EventStockOut), 1)
}

func TestPublisher_NilAndFailingAreSafe(t *testing.T) {
	var p *StockEventPublisher
	assert.NotPanics(t, func() {
		p.PublishMovementCreated(context.Background(), []domain.Movement{{ID: "m"}})
		p.PublishAlert(context.Background(), &domain.Alert{})
	})

	pub := testutil.NewMockPublisher()
	pub.Err = errors.New("broker down")
	p = NewStockEventPublisherWith(pub, logger.Nop())
	assert.NotPanics(t, func() {
		p.PublishMovementCreated(context.Background(), []domain.Movement{{ID: "m"}})
	})
}
