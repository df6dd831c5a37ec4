package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yoozak/yoozak-backend/internal/orders/domain"
	"github.com/yoozak/yoozak-backend/pkg/logger"
	"github.com/yoozak/yoozak-backend/pkg/messaging"
	"github.com/yoozak/yoozak-backend/pkg/testutil"
)

func sampleOrder() *domain.Order {
	ref := "SHOP-42"
	return &domain.Order{
		ID:          "o1",
		Number:      "YZ000042",
		ExternalRef: &ref,
		Source:      domain.SourceImport,
		Total:       33400,
		Lines: []domain.Line{
			{VariantID: "v1", Quantity: 2},
			{VariantID: "v2", Quantity: 1},
		},
	}
}

func TestPublishCreated(t *testing.T) {
	pub := testutil.NewMockPublisher()
	p := NewOrderEventPublisherWith(pub, logger.Nop())

	p.PublishCreated(context.Background(), sampleOrder())

	events := pub.EventsOfType(messaging.EventOrderCreated)
	require.Len(t, events, 1)
	data := events[0].(messaging.OrderCreatedEvent)
	assert.Equal(t, "YZ000042", data.Number)
	assert.Equal(t, "SHOP-42", data.ExternalRef)
	assert.Equal(t, int64(33400), data.Total)
	assert.Equal(t, 3, data.ItemCount)
	assert.Equal(t, "import", data.Source)
}

func TestPublishStatusChanged(t *testing.T) {
	pub := testutil.NewMockPublisher()
	p := NewOrderEventPublisherWith(pub, logger.Nop())

	p.PublishStatusChanged(context.Background(), sampleOrder(), &domain.StatusChange{
		From: domain.StatusShipped, To: domain.StatusDelivered, OperatorID: "op1",
	})

	events := pub.EventsOfType(messaging.EventOrderStatusChanged)
	require.Len(t, events, 1)
	data := events[0].(messaging.OrderStatusChangedEvent)
	assert.Equal(t, "shipped", data.FromStatus)
	assert.Equal(t, "delivered", data.ToStatus)
	assert.Equal(t, "op1", data.OperatorID)
}

func TestPublishAssigned_SkipsEmptyBatch(t *testing.T) {
	pub := testutil.NewMockPublisher()
	p := NewOrderEventPublisherWith(pub, logger.Nop())

	p.PublishAssigned(context.Background(), nil, "op1")
	pub.AssertNoEventsPublished(t)

	p.PublishAssigned(context.Background(), []string{"o1", "o2"}, "op1")
	pub.AssertEventPublished(t, messaging.EventOrderAssigned)
}

func TestPublisher_NilAndFailingAreSafe(t *testing.T) {
	var p *OrderEventPublisher
	assert.NotPanics(t, func() {
		p.PublishCreated(context.Background(), sampleOrder())
		p.PublishAssigned(context.Background(), []string{"o1"}, "op")
	})

	pub := testutil.NewMockPublisher()
	pub.Err = errors.New("broker down")
	p = NewOrderEventPublisherWith(pub, logger.Nop())
	assert.NotPanics(t, func() {
		p.PublishStatusChanged(context.Background(), sampleOrder(), &domain.StatusChange{})
	})
}
