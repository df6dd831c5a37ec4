package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yoozak/yoozak-backend/internal/catalog/domain"
	"github.com/yoozak/yoozak-backend/pkg/logger"
	"github.com/yoozak/yoozak-backend/pkg/messaging"
	"github.com/yoozak/yoozak-backend/pkg/testutil"
)

func TestPublishPriceChanges(t *testing.T) {
	mock := testutil.NewMockPublisher()
	p := NewCatalogEventPublisherWith(mock, logger.Nop())

	promoID := "p1"
	p.PublishPriceChanges(context.Background(), []PriceChange{
		{ArticleID: "a1", OldPrice: 29900, NewPrice: 23920, PromotionID: &promoID},
		{ArticleID: "a2", OldPrice: 10000, NewPrice: 12000},
	})

	require.Len(t, mock.PublishedEvents, 2)
	mock.AssertEventPublished(t, messaging.EventPriceChanged)
	ev := mock.PublishedEvents[0].Payload.(messaging.PriceChangedEvent)
	assert.Equal(t, int64(23920), ev.NewPrice)
	assert.Equal(t, "p1", *ev.PromotionID)
}

func TestNilPublisherIsSafe(t *testing.T) {
	var p *CatalogEventPublisher
	assert.NotPanics(t, func() {
		p.PublishArticleCreated(context.Background(), &domain.Article{ID: "a1"})
		p.PublishPriceChanges(context.Background(), []PriceChange{{ArticleID: "a1"}})
		p.PublishPromotionChanged(context.Background(), &domain.Promotion{ID: "p1"}, "created")
	})
}
