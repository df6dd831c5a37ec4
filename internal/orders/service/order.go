package service

import (
	"context"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	catalogdomain "github.com/yoozak/yoozak-backend/internal/catalog/domain"
	"github.com/yoozak/yoozak-backend/internal/orders/domain"
	"github.com/yoozak/yoozak-backend/internal/orders/events"
	"github.com/yoozak/yoozak-backend/internal/orders/repository"
	stockdomain "github.com/yoozak/yoozak-backend/internal/stock/domain"
	stockservice "github.com/yoozak/yoozak-backend/internal/stock/service"
	"github.com/yoozak/yoozak-backend/pkg/actor"
	"github.com/yoozak/yoozak-backend/pkg/database"
	"github.com/yoozak/yoozak-backend/pkg/errors"
	"github.com/yoozak/yoozak-backend/pkg/logger"
	"github.com/yoozak/yoozak-backend/pkg/money"
)

// StockApplier applies stock movements inside an order's transaction and
// reads back the movements recorded against an order
type StockApplier interface {
	ApplyInTx(ctx context.Context, tx database.Queryer, req *stockdomain.MovementRequest) (*stockservice.Applied, error)
	Notify(ctx context.Context, applied *stockservice.Applied)
	MovementsForOrder(ctx context.Context, orderID string) ([]stockdomain.Movement, error)
}

// CatalogReader resolves the articles and variants an order refers to
type CatalogReader interface {
	GetByIDs(ctx context.Context, q database.Queryer, ids []string) (map[string]*catalogdomain.Article, error)
}

// VariantReader resolves variants by ID or by their catalog attributes
type VariantReader interface {
	GetByIDs(ctx context.Context, q database.Queryer, ids []string) (map[string]*catalogdomain.Variant, error)
	FindByBarcode(ctx context.Context, barcode string) (*catalogdomain.Variant, error)
	FindByAttributes(ctx context.Context, reference, size, color string) (*catalogdomain.Variant, error)
}

// OrderService runs the order workflow from intake to delivery
type OrderService struct {
	db            *database.DB
	orderRepo     *repository.OrderRepository
	articles      CatalogReader
	variants      VariantReader
	stock         StockApplier
	publisher     *events.OrderEventPublisher
	maxImportRows int
	logger        *logger.Logger
}

// NewOrderService creates a new order service
func NewOrderService(
	db *database.DB,
	orderRepo *repository.OrderRepository,
	articles CatalogReader,
	variants VariantReader,
	stock StockApplier,
	publisher *events.OrderEventPublisher,
	maxImportRows int,
	log *logger.Logger,
) *OrderService {
	return &OrderService{
		db:            db,
		orderRepo:     orderRepo,
		articles:      articles,
		variants:      variants,
		stock:         stock,
		publisher:     publisher,
		maxImportRows: maxImportRows,
		logger:        log,
	}
}

// LineInput orders Quantity pieces of a variant
type LineInput struct {
	VariantID string `json:"variant_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
}

// OrderInput carries a new order
type OrderInput struct {
	ExternalRef  *string     `json:"external_ref,omitempty" validate:"omitempty,max=64"`
	CustomerName string      `json:"customer_name" validate:"required,max=255"`
	Phone        string      `json:"phone" validate:"required,phone,max=32"`
	City         string      `json:"city" validate:"required,max=100"`
	Address      string      `json:"address"`
	ShippingFee  money.Money `json:"shipping_fee" validate:"gte=0"`
	Notes        string      `json:"notes"`
	Lines        []LineInput `json:"lines" validate:"required,min=1,dive"`

	source domain.Source
}

// mergedLines sums repeated variants so each variant appears once per order
func (in *OrderInput) mergedLines() []LineInput {
	qty := make(map[string]int, len(in.Lines))
	for _, l := range in.Lines {
		qty[l.VariantID] += l.Quantity
	}

	out := make([]LineInput, 0, len(qty))
	for id, q := range qty {
		out = append(out, LineInput{VariantID: id, Quantity: q})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VariantID < out[j].VariantID })
	return out
}

// CreateOrder prices the lines at the articles' current prices and records
// the order as unassigned.
func (s *OrderService) CreateOrder(ctx context.Context, in *OrderInput) (*domain.Order, error) {
	lines := in.mergedLines()
	if len(lines) == 0 {
		return nil, errors.Validation(map[string]string{"lines": "at least one line is required"})
	}

	source := in.source
	if source == "" {
		source = domain.SourceManual
	}

	o := &domain.Order{
		ExternalRef:  in.ExternalRef,
		Source:       source,
		CustomerName: strings.TrimSpace(in.CustomerName),
		Phone:        strings.TrimSpace(in.Phone),
		City:         strings.TrimSpace(in.City),
		Address:      strings.TrimSpace(in.Address),
		Status:       domain.StatusUnassigned,
		ShippingFee:  in.ShippingFee,
		Notes:        in.Notes,
	}

	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		priced, err := s.priceLines(ctx, tx, lines)
		if err != nil {
			return err
		}
		o.Lines = priced

		o.Total = o.ShippingFee
		for _, l := range o.Lines {
			o.Total += l.LineTotal
		}

		if o.Number, err = s.orderRepo.NextNumber(ctx, tx); err != nil {
			return err
		}
		return s.orderRepo.Create(ctx, tx, o)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("order_id", o.ID).
		Str("number", o.Number).
		Str("source", string(o.Source)).
		Int64("total", int64(o.Total)).
		Msg("order created")

	s.publisher.PublishCreated(ctx, o)
	return o, nil
}

func (s *OrderService) priceLines(ctx context.Context, q database.Queryer, lines []LineInput) ([]domain.Line, error) {
	variantIDs := make([]string, len(lines))
	for i, l := range lines {
		variantIDs[i] = l.VariantID
	}

	variants, err := s.variants.GetByIDs(ctx, q, variantIDs)
	if err != nil {
		return nil, err
	}

	articleIDs := make([]string, 0, len(variants))
	for _, v := range variants {
		articleIDs = append(articleIDs, v.ArticleID)
	}
	articles, err := s.articles.GetByIDs(ctx, q, articleIDs)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Line, 0, len(lines))
	for _, l := range lines {
		v, ok := variants[l.VariantID]
		if !ok {
			return nil, errors.NotFound("variant").WithDetails(map[string]string{"variant_id": l.VariantID})
		}
		a, ok := articles[v.ArticleID]
		if !ok || !a.IsActive {
			return nil, errors.BadRequest("article " + v.ArticleID + " is not available for sale")
		}

		unit := a.UnitPrice(l.Quantity)
		out = append(out, domain.Line{
			ArticleID: a.ID,
			VariantID: v.ID,
			Quantity:  l.Quantity,
			UnitPrice: unit,
			LineTotal: unit.Mul(l.Quantity),
			Reference: a.Reference,
			Name:      a.Name,
			Size:      v.Size,
			Color:     v.Color,
		})
	}
	return out, nil
}

// GetOrder gets an order with its lines and the transitions the caller may apply
func (s *OrderService) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	o, err := s.orderRepo.GetByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	o.AllowedTransitions = allowedTransitions(actor.FromContextOrSystem(ctx), o)
	return o, nil
}

// ListOrders returns a page of orders
func (s *OrderService) ListOrders(ctx context.Context, f domain.Filter) ([]domain.Order, int64, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, errors.Validation(map[string]string{"status": "unknown order status"})
	}
	return s.orderRepo.List(ctx, f)
}

// Movements returns the stock movements the order's workflow produced
func (s *OrderService) Movements(ctx context.Context, id string) ([]stockdomain.Movement, error) {
	if _, err := s.orderRepo.GetByID(ctx, s.db, id); err != nil {
		return nil, err
	}
	return s.stock.MovementsForOrder(ctx, id)
}

// History returns an order's status changes
func (s *OrderService) History(ctx context.Context, id string) ([]domain.StatusChange, error) {
	if _, err := s.orderRepo.GetByID(ctx, s.db, id); err != nil {
		return nil, err
	}
	return s.orderRepo.History(ctx, id)
}
