package service

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/yoozak/yoozak-backend/internal/catalog/domain"
	"github.com/yoozak/yoozak-backend/internal/catalog/events"
	"github.com/yoozak/yoozak-backend/pkg/errors"
)

// PromotionInput carries the editable fields of a promotion
type PromotionInput struct {
	Name            string    `json:"name" validate:"required,max=255"`
	Description     string    `json:"description"`
	DiscountPercent float64   `json:"discount_percent" validate:"gt=0,lt=100"`
	StartsAt        time.Time `json:"starts_at" validate:"required"`
	EndsAt          time.Time `json:"ends_at" validate:"required,gtfield=StartsAt"`
	IsActive        *bool     `json:"is_active,omitempty"`
	ArticleIDs      []string  `json:"article_ids" validate:"dive,uuid"`
}

func (in *PromotionInput) apply(p *domain.Promotion) error {
	if !in.EndsAt.After(in.StartsAt) {
		return errors.Validation(map[string]string{"ends_at": "must be after starts_at"})
	}
	if in.DiscountPercent <= 0 || in.DiscountPercent >= 100 {
		return errors.Validation(map[string]string{"discount_percent": "must be between 0 and 100 (exclusive)"})
	}
	p.Name = strings.TrimSpace(in.Name)
	p.Description = in.Description
	p.DiscountPercent = in.DiscountPercent
	p.StartsAt = in.StartsAt
	p.EndsAt = in.EndsAt
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
	return nil
}

// CreatePromotion creates a promotion, attaches its articles and reprices them
func (s *CatalogService) CreatePromotion(ctx context.Context, in *PromotionInput) (*domain.Promotion, error) {
	p := &domain.Promotion{IsActive: true}
	if err := in.apply(p); err != nil {
		return nil, err
	}
	p.ArticleIDs = uniqueSorted(in.ArticleIDs)

	var changes []events.PriceChange
	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		if err := s.promotionRepo.Create(ctx, tx, p); err != nil {
			return err
		}
		if err := s.promotionRepo.AttachArticles(ctx, tx, p.ID, p.ArticleIDs); err != nil {
			return err
		}
		var err error
		changes, err = s.recomputeInTx(ctx, tx, p.ArticleIDs)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("promotion_id", p.ID).Float64("discount", p.DiscountPercent).Msg("promotion created")
	s.publisher.PromotionChanged(ctx, p, "created", changes)
	return p, nil
}

// GetPromotion returns a promotion with its article IDs
func (s *CatalogService) GetPromotion(ctx context.Context, id string) (*domain.Promotion, error) {
	return s.promotionRepo.GetByID(ctx, s.db, id)
}

// ListPromotions lists promotions
func (s *CatalogService) ListPromotions(ctx context.Context, f domain.PromotionFilter) ([]domain.Promotion, int64, error) {
	return s.promotionRepo.List(ctx, f)
}

// UpdatePromotion rewrites a promotion. When ArticleIDs is non-nil the
// attached set is replaced. Every article affected before or after is repriced.
func (s *CatalogService) UpdatePromotion(ctx context.Context, id string, in *PromotionInput) (*domain.Promotion, error) {
	var p *domain.Promotion
	var changes []events.PriceChange

	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		var err error
		p, err = s.promotionRepo.GetByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := in.apply(p); err != nil {
			return err
		}
		if err := s.promotionRepo.Update(ctx, tx, p); err != nil {
			return err
		}

		affected := append([]string{}, p.ArticleIDs...)
		if in.ArticleIDs != nil {
			next := uniqueSorted(in.ArticleIDs)
			if err := s.promotionRepo.DetachArticles(ctx, tx, p.ID, difference(p.ArticleIDs, next)); err != nil {
				return err
			}
			if err := s.promotionRepo.AttachArticles(ctx, tx, p.ID, difference(next, p.ArticleIDs)); err != nil {
				return err
			}
			affected = append(affected, next...)
			p.ArticleIDs = next
		}

		changes, err = s.recomputeInTx(ctx, tx, affected)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publisher.PromotionChanged(ctx, p, "updated", changes)
	return p, nil
}

// ActivatePromotion turns a promotion on and reprices its articles
func (s *CatalogService) ActivatePromotion(ctx context.Context, id string) (*domain.Promotion, error) {
	return s.setActive(ctx, id, true)
}

// DeactivatePromotion turns a promotion off and reprices its articles
func (s *CatalogService) DeactivatePromotion(ctx context.Context, id string) (*domain.Promotion, error) {
	return s.setActive(ctx, id, false)
}

func (s *CatalogService) setActive(ctx context.Context, id string, active bool) (*domain.Promotion, error) {
	var p *domain.Promotion
	var changes []events.PriceChange

	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		var err error
		if err = s.promotionRepo.SetActive(ctx, tx, id, active); err != nil {
			return err
		}
		p, err = s.promotionRepo.GetByID(ctx, tx, id)
		if err != nil {
			return err
		}
		changes, err = s.recomputeInTx(ctx, tx, p.ArticleIDs)
		return err
	})
	if err != nil {
		return nil, err
	}

	action := "deactivated"
	if active {
		action = "activated"
	}
	s.publisher.PromotionChanged(ctx, p, action, changes)
	return p, nil
}

// DeletePromotion removes a promotion and restores its articles' prices in
// the same transaction.
func (s *CatalogService) DeletePromotion(ctx context.Context, id string) error {
	var p *domain.Promotion
	var changes []events.PriceChange

	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		var err error
		p, err = s.promotionRepo.GetByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := s.promotionRepo.Delete(ctx, tx, id); err != nil {
			return err
		}
		changes, err = s.recomputeInTx(ctx, tx, p.ArticleIDs)
		return err
	})
	if err != nil {
		return err
	}

	p.IsActive = false
	s.publisher.PromotionChanged(ctx, p, "deleted", changes)
	return nil
}

// AttachArticles adds articles to a promotion and reprices them
func (s *CatalogService) AttachArticles(ctx context.Context, id string, articleIDs []string) (*domain.Promotion, error) {
	return s.changeArticles(ctx, id, articleIDs, true)
}

// DetachArticles removes articles from a promotion and reprices them
func (s *CatalogService) DetachArticles(ctx context.Context, id string, articleIDs []string) (*domain.Promotion, error) {
	return s.changeArticles(ctx, id, articleIDs, false)
}

func (s *CatalogService) changeArticles(ctx context.Context, id string, articleIDs []string, attach bool) (*domain.Promotion, error) {
	ids := uniqueSorted(articleIDs)
	if len(ids) == 0 {
		return nil, errors.Validation(map[string]string{"article_ids": "at least one article is required"})
	}

	var p *domain.Promotion
	var changes []events.PriceChange

	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		var err error
		if _, err = s.promotionRepo.GetByID(ctx, tx, id); err != nil {
			return err
		}
		if attach {
			err = s.promotionRepo.AttachArticles(ctx, tx, id, ids)
		} else {
			err = s.promotionRepo.DetachArticles(ctx, tx, id, ids)
		}
		if err != nil {
			return err
		}
		if changes, err = s.recomputeInTx(ctx, tx, ids); err != nil {
			return err
		}
		p, err = s.promotionRepo.GetByID(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publisher.PromotionChanged(ctx, p, "articles_changed", changes)
	return p, nil
}

// difference returns the elements of a not in b
func difference(a, b []string) []string {
	in := make(map[string]struct{}, len(b))
	for _, x := range b {
		in[x] = struct{}{}
	}
	var out []string
	for _, x := range a {
		if _, ok := in[x]; !ok {
			out = append(out, x)
		}
	}
	return out
}
