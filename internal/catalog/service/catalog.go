package service

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/yoozak/yoozak-backend/internal/catalog/domain"
	"github.com/yoozak/yoozak-backend/internal/catalog/events"
	"github.com/yoozak/yoozak-backend/internal/catalog/repository"
	"github.com/yoozak/yoozak-backend/pkg/database"
	"github.com/yoozak/yoozak-backend/pkg/errors"
	"github.com/yoozak/yoozak-backend/pkg/logger"
	"github.com/yoozak/yoozak-backend/pkg/money"
)

// CatalogService handles articles, variants and promotions, and keeps
// current prices in line with the promotions in force.
type CatalogService struct {
	db               *database.DB
	articleRepo      *repository.ArticleRepository
	variantRepo      *repository.VariantRepository
	promotionRepo    *repository.PromotionRepository
	publisher        *events.CatalogEventPublisher
	defaultThreshold int
	now              func() time.Time
	logger           *logger.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(
	db *database.DB,
	articleRepo *repository.ArticleRepository,
	variantRepo *repository.VariantRepository,
	promotionRepo *repository.PromotionRepository,
	publisher *events.CatalogEventPublisher,
	defaultThreshold int,
	log *logger.Logger,
) *CatalogService {
	return &CatalogService{
		db:               db,
		articleRepo:      articleRepo,
		variantRepo:      variantRepo,
		promotionRepo:    promotionRepo,
		publisher:        publisher,
		defaultThreshold: defaultThreshold,
		now:              time.Now,
		logger:           log,
	}
}

// SetClock overrides the time source used for promotion windows
func (s *CatalogService) SetClock(now func() time.Time) {
	s.now = now
}

// ArticleInput carries the editable fields of an article
type ArticleInput struct {
	Reference         string       `json:"reference" validate:"required,max=64"`
	Name              string       `json:"name" validate:"required,max=255"`
	Description       string       `json:"description"`
	Category          string       `json:"category" validate:"max=64"`
	Gender            string       `json:"gender" validate:"omitempty,oneof=men women unisex kids"`
	Color             string       `json:"color" validate:"max=64"`
	Phase             domain.Phase `json:"phase" validate:"omitempty,oneof=active liquidation test"`
	BasePrice         money.Money  `json:"base_price" validate:"gt=0"`
	PurchasePrice     money.Money  `json:"purchase_price" validate:"gte=0"`
	IsUpsell          bool         `json:"is_upsell"`
	UpsellPrice2      *money.Money `json:"upsell_price_2,omitempty" validate:"omitempty,gt=0"`
	UpsellPrice3      *money.Money `json:"upsell_price_3,omitempty" validate:"omitempty,gt=0"`
	UpsellPrice4      *money.Money `json:"upsell_price_4,omitempty" validate:"omitempty,gt=0"`
	UpsellPrice5      *money.Money `json:"upsell_price_5,omitempty" validate:"omitempty,gt=0"`
	LowStockThreshold *int         `json:"low_stock_threshold,omitempty" validate:"omitempty,gte=0"`
	IsActive          *bool        `json:"is_active,omitempty"`
}

func (in *ArticleInput) apply(a *domain.Article, defaultThreshold int) {
	a.Reference = strings.TrimSpace(in.Reference)
	a.Name = strings.TrimSpace(in.Name)
	a.Description = in.Description
	a.Category = in.Category
	a.Gender = in.Gender
	if a.Gender == "" {
		a.Gender = "unisex"
	}
	a.Color = in.Color
	a.Phase = in.Phase
	if a.Phase == "" {
		a.Phase = domain.PhaseActive
	}
	a.BasePrice = in.BasePrice
	a.PurchasePrice = in.PurchasePrice
	a.IsUpsell = in.IsUpsell
	a.UpsellPrice2, a.UpsellPrice3, a.UpsellPrice4, a.UpsellPrice5 = in.UpsellPrice2, in.UpsellPrice3, in.UpsellPrice4, in.UpsellPrice5
	if in.LowStockThreshold != nil {
		a.LowStockThreshold = *in.LowStockThreshold
	} else if a.LowStockThreshold == 0 {
		a.LowStockThreshold = defaultThreshold
	}
	if in.IsActive != nil {
		a.IsActive = *in.IsActive
	}
}

// CreateArticle creates an article priced at its base price
func (s *CatalogService) CreateArticle(ctx context.Context, in *ArticleInput) (*domain.Article, error) {
	a := &domain.Article{IsActive: true}
	in.apply(a, s.defaultThreshold)
	if !a.Phase.Valid() {
		return nil, errors.Validation(map[string]string{"phase": "must be one of active, liquidation, test"})
	}
	a.CurrentPrice = a.BasePrice

	if err := s.articleRepo.Create(ctx, s.db, a); err != nil {
		return nil, err
	}

	s.logger.Info().Str("article_id", a.ID).Str("reference", a.Reference).Msg("article created")
	s.publisher.PublishArticleCreated(ctx, a)
	return a, nil
}

// GetArticle returns an article with its variants
func (s *CatalogService) GetArticle(ctx context.Context, id string) (*domain.Article, error) {
	a, err := s.articleRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	variants, err := s.variantRepo.ListByArticle(ctx, id)
	if err != nil {
		return nil, err
	}
	a.Variants = variants
	return a, nil
}

// ListArticles lists articles
func (s *CatalogService) ListArticles(ctx context.Context, f domain.ArticleFilter) ([]domain.Article, int64, error) {
	return s.articleRepo.List(ctx, f)
}

// UpdateArticle rewrites an article. A base price or phase change recomputes
// the current price in the same transaction.
func (s *CatalogService) UpdateArticle(ctx context.Context, id string, in *ArticleInput) (*domain.Article, error) {
	var updated *domain.Article
	var changes []events.PriceChange

	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		locked, err := s.articleRepo.LockForUpdate(ctx, tx, []string{id})
		if err != nil {
			return err
		}
		if len(locked) == 0 {
			return errors.NotFound("article")
		}

		a := &locked[0]
		reference := a.Reference
		in.apply(a, s.defaultThreshold)
		if !a.Phase.Valid() {
			return errors.Validation(map[string]string{"phase": "must be one of active, liquidation, test"})
		}
		// The reference identifies the article in imports and is immutable
		a.Reference = reference

		if err := s.articleRepo.Update(ctx, tx, a); err != nil {
			return err
		}

		changes, err = s.recomputeLocked(ctx, tx, locked)
		if err != nil {
			return err
		}
		updated = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publisher.PublishPriceChanges(ctx, changes)
	return updated, nil
}

// DeleteArticle deactivates an article
func (s *CatalogService) DeleteArticle(ctx context.Context, id string) error {
	return s.articleRepo.SoftDelete(ctx, id)
}

// VariantInput carries a new variant
type VariantInput struct {
	Size    string  `json:"size" validate:"required,max=16"`
	Color   string  `json:"color" validate:"max=64"`
	Barcode *string `json:"barcode,omitempty" validate:"omitempty,max=64"`
}

// CreateVariant adds a size/color variant to an article
func (s *CatalogService) CreateVariant(ctx context.Context, articleID string, in *VariantInput) (*domain.Variant, error) {
	a, err := s.articleRepo.GetByID(ctx, articleID)
	if err != nil {
		return nil, err
	}

	v := &domain.Variant{
		ArticleID: a.ID,
		Size:      strings.TrimSpace(in.Size),
		Color:     strings.TrimSpace(in.Color),
		Barcode:   in.Barcode,
	}
	if v.Color == "" {
		v.Color = a.Color
	}
	if err := s.variantRepo.Create(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// ListVariants lists the variants of an article
func (s *CatalogService) ListVariants(ctx context.Context, articleID string) ([]domain.Variant, error) {
	if _, err := s.articleRepo.GetByID(ctx, articleID); err != nil {
		return nil, err
	}
	return s.variantRepo.ListByArticle(ctx, articleID)
}

// DeleteVariant removes an empty variant
func (s *CatalogService) DeleteVariant(ctx context.Context, id string) error {
	return s.variantRepo.Delete(ctx, id)
}

// LookupVariant finds a variant by barcode, or by article reference + size + color
func (s *CatalogService) LookupVariant(ctx context.Context, barcode, reference, size, color string) (*domain.Variant, error) {
	if barcode != "" {
		return s.variantRepo.FindByBarcode(ctx, barcode)
	}
	if reference == "" || size == "" {
		return nil, errors.BadRequest("barcode or reference and size are required")
	}
	return s.variantRepo.FindByAttributes(ctx, reference, size, color)
}
