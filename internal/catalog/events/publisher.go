package events

import (
	"context"

	"github.com/yoozak/yoozak-backend/internal/catalog/domain"
	"github.com/yoozak/yoozak-backend/pkg/logger"
	"github.com/yoozak/yoozak-backend/pkg/messaging"
	"github.com/yoozak/yoozak-backend/pkg/money"
)

// PriceChange records one article whose current price was rewritten
type PriceChange struct {
	ArticleID   string
	Reference   string
	OldPrice    money.Money
	NewPrice    money.Money
	PromotionID *string
}

// CatalogEventPublisher publishes catalog-related events
type CatalogEventPublisher struct {
	publisher messaging.EventPublisher
	logger    *logger.Logger
}

// NewCatalogEventPublisher creates a publisher on the catalog exchange
func NewCatalogEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*CatalogEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeCatalogEvents, "catalog", log)
	if err != nil {
		return nil, err
	}
	return NewCatalogEventPublisherWith(publisher, log), nil
}

// NewCatalogEventPublisherWith wraps an existing publisher
func NewCatalogEventPublisherWith(pub messaging.EventPublisher, log *logger.Logger) *CatalogEventPublisher {
	return &CatalogEventPublisher{publisher: pub, logger: log}
}

// PublishArticleCreated publishes an article created event
func (p *CatalogEventPublisher) PublishArticleCreated(ctx context.Context, a *domain.Article) {
	if p == nil {
		return
	}
	data := messaging.ArticleCreatedEvent{ArticleID: a.ID, Reference: a.Reference, Name: a.Name}
	if err := p.publisher.Publish(ctx, messaging.EventArticleCreated, data); err != nil {
		p.logger.Error().Err(err).Str("article_id", a.ID).Msg("failed to publish article created event")
	}
}

// PublishPriceChanges publishes one event per recomputed price
func (p *CatalogEventPublisher) PublishPriceChanges(ctx context.Context, changes []PriceChange) {
	if p == nil {
		return
	}
	for _, c := range changes {
		data := messaging.PriceChangedEvent{
			ArticleID:   c.ArticleID,
			Reference:   c.Reference,
			OldPrice:    int64(c.OldPrice),
			NewPrice:    int64(c.NewPrice),
			PromotionID: c.PromotionID,
		}
		if err := p.publisher.Publish(ctx, messaging.EventPriceChanged, data); err != nil {
			p.logger.Error().Err(err).Str("article_id", c.ArticleID).Msg("failed to publish price changed event")
		}
	}
}

// PublishPromotionChanged publishes a promotion lifecycle event
func (p *CatalogEventPublisher) PublishPromotionChanged(ctx context.Context, promo *domain.Promotion, action string) {
	if p == nil {
		return
	}
	data := messaging.PromotionChangedEvent{PromotionID: promo.ID, Action: action, IsActive: promo.IsActive}
	if err := p.publisher.Publish(ctx, messaging.EventPromotionChanged, data); err != nil {
		p.logger.Error().Err(err).Str("promotion_id", promo.ID).Msg("failed to publish promotion event")
	}
}

// PromotionChanged publishes a promotion lifecycle event followed by the
// price changes it caused
func (p *CatalogEventPublisher) PromotionChanged(ctx context.Context, promo *domain.Promotion, action string, changes []PriceChange) {
	p.PublishPromotionChanged(ctx, promo, action)
	p.PublishPriceChanges(ctx, changes)
}
