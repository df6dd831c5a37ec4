package service

import (
	"context"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/yoozak/yoozak-backend/internal/catalog/domain"
	"github.com/yoozak/yoozak-backend/internal/catalog/events"
	"github.com/yoozak/yoozak-backend/pkg/database"
)

// RecomputePrices locks the given articles, resolves their effective price
// from the promotions attached to them and writes the prices that changed.
func (s *CatalogService) RecomputePrices(ctx context.Context, articleIDs ...string) ([]events.PriceChange, error) {
	if len(articleIDs) == 0 {
		return nil, nil
	}

	var changes []events.PriceChange
	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		var err error
		changes, err = s.recomputeInTx(ctx, tx, articleIDs)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publisher.PublishPriceChanges(ctx, changes)
	return changes, nil
}

// RecomputeAll recomputes every article that is or was under promotion.
// Run periodically so promotions that start or end between mutations take effect.
func (s *CatalogService) RecomputeAll(ctx context.Context) ([]events.PriceChange, error) {
	ids, err := s.articleRepo.ListPricedIDs(ctx)
	if err != nil {
		return nil, err
	}
	return s.RecomputePrices(ctx, ids...)
}

// NextPriceBoundary returns when the next pending promotion starts or ends,
// or the zero time when nothing is scheduled.
func (s *CatalogService) NextPriceBoundary(ctx context.Context) (time.Time, error) {
	now := s.now()
	promos, err := s.promotionRepo.Pending(ctx, now)
	if err != nil {
		return time.Time{}, err
	}
	return domain.NextBoundary(promos, now), nil
}

func (s *CatalogService) recomputeInTx(ctx context.Context, tx database.Queryer, articleIDs []string) ([]events.PriceChange, error) {
	ids := uniqueSorted(articleIDs)
	locked, err := s.articleRepo.LockForUpdate(ctx, tx, ids)
	if err != nil {
		return nil, err
	}
	return s.recomputeLocked(ctx, tx, locked)
}

// recomputeLocked expects the articles to be locked by the caller.
func (s *CatalogService) recomputeLocked(ctx context.Context, tx database.Queryer, articles []domain.Article) ([]events.PriceChange, error) {
	if len(articles) == 0 {
		return nil, nil
	}

	ids := make([]string, len(articles))
	for i := range articles {
		ids[i] = articles[i].ID
	}

	promos, err := s.promotionRepo.ForArticles(ctx, tx, ids)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var changes []events.PriceChange
	for i := range articles {
		a := &articles[i]
		res := domain.Resolve(a, promos[a.ID], now)
		if res.Price == a.CurrentPrice {
			continue
		}

		if err := s.articleRepo.UpdateCurrentPrice(ctx, tx, a.ID, res.Price); err != nil {
			return nil, err
		}

		change := events.PriceChange{
			ArticleID: a.ID,
			Reference: a.Reference,
			OldPrice:  a.CurrentPrice,
			NewPrice:  res.Price,
		}
		if res.Promotion != nil {
			id := res.Promotion.ID
			change.PromotionID = &id
		}
		changes = append(changes, change)
		a.CurrentPrice = res.Price

		s.logger.Debug().
			Str("article_id", a.ID).
			Int64("old_price", int64(change.OldPrice)).
			Int64("new_price", int64(change.NewPrice)).
			Msg("price recomputed")
	}

	return changes, nil
}

func uniqueSorted(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
