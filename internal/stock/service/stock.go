package service

import (
	"context"
	"strconv"

	"github.com/jmoiron/sqlx"
	"github.com/yoozak/yoozak-backend/internal/stock/domain"
	"github.com/yoozak/yoozak-backend/internal/stock/events"
	"github.com/yoozak/yoozak-backend/internal/stock/repository"
	"github.com/yoozak/yoozak-backend/pkg/actor"
	"github.com/yoozak/yoozak-backend/pkg/database"
	"github.com/yoozak/yoozak-backend/pkg/logger"
	"github.com/yoozak/yoozak-backend/pkg/tabular"
)

// StockService applies stock movements and reports stock levels and alerts
type StockService struct {
	db           *database.DB
	movementRepo *repository.MovementRepository
	alertRepo    *repository.AlertRepository
	levelRepo    *repository.LevelRepository
	publisher    *events.StockEventPublisher
	logger       *logger.Logger
}

// NewStockService creates a new stock service
func NewStockService(
	db *database.DB,
	movementRepo *repository.MovementRepository,
	alertRepo *repository.AlertRepository,
	levelRepo *repository.LevelRepository,
	publisher *events.StockEventPublisher,
	log *logger.Logger,
) *StockService {
	return &StockService{
		db:           db,
		movementRepo: movementRepo,
		alertRepo:    alertRepo,
		levelRepo:    levelRepo,
		publisher:    publisher,
		logger:       log,
	}
}

// Applied is the outcome of a movement applied inside a transaction.
// Pass it to Notify once the transaction has committed.
type Applied struct {
	Movements []domain.Movement
	Stocks    []domain.ArticleStock
}

// CreateMovement applies a multi-variant movement atomically: either every
// line is written or none is.
func (s *StockService) CreateMovement(ctx context.Context, req *domain.MovementRequest) ([]domain.Movement, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var applied *Applied
	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		var err error
		applied, err = s.ApplyInTx(ctx, tx, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Notify(ctx, applied)
	return applied.Movements, nil
}

// ApplyInTx runs a movement inside the caller's transaction. Variant rows
// are locked in ascending ID order, every line is checked against the
// locked quantity, then variants, movement rows and article totals are
// written. The actor in ctx is recorded as the operator.
func (s *StockService) ApplyInTx(ctx context.Context, tx database.Queryer, req *domain.MovementRequest) (*Applied, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	locked, err := s.movementRepo.LockVariants(ctx, tx, req.VariantIDs())
	if err != nil {
		return nil, err
	}

	who := actor.FromContextOrSystem(ctx)
	movements, err := domain.Plan(req, locked, who.ID, who.FullName())
	if err != nil {
		return nil, err
	}

	stocks, err := s.movementRepo.Apply(ctx, tx, movements)
	if err != nil {
		return nil, err
	}

	return &Applied{Movements: movements, Stocks: stocks}, nil
}

// Notify publishes the movement and raises alerts for articles that fell
// under their threshold. Failures are logged; the movement stands.
func (s *StockService) Notify(ctx context.Context, applied *Applied) {
	if applied == nil || len(applied.Movements) == 0 {
		return
	}

	s.logger.Info().
		Str("type", string(applied.Movements[0].Type)).
		Int("lines", len(applied.Movements)).
		Str("operator_id", applied.Movements[0].OperatorID).
		Msg("stock movement applied")

	s.publisher.PublishMovementCreated(ctx, applied.Movements)

	for _, st := range applied.Stocks {
		alert, ok := st.CrossedThreshold()
		if !ok {
			continue
		}
		if err := s.alertRepo.Create(ctx, alert); err != nil {
			s.logger.Error().Err(err).Str("article_id", st.ArticleID).Msg("failed to create stock alert")
			continue
		}
		s.publisher.PublishAlert(ctx, alert)
	}
}

// ListMovements returns a page of movements
func (s *StockService) ListMovements(ctx context.Context, f domain.MovementFilter) ([]domain.Movement, int64, error) {
	return s.movementRepo.List(ctx, f)
}

// MovementsForOrder returns the movements recorded against an order
func (s *StockService) MovementsForOrder(ctx context.Context, orderID string) ([]domain.Movement, error) {
	return s.movementRepo.ListByOrder(ctx, orderID)
}

// StockLevels returns articles with their variant quantities
func (s *StockService) StockLevels(ctx context.Context, f domain.LevelFilter) ([]domain.ArticleLevel, int64, error) {
	return s.levelRepo.List(ctx, f)
}

// ListAlerts returns a page of alerts
func (s *StockService) ListAlerts(ctx context.Context, f domain.AlertFilter) ([]domain.Alert, int64, error) {
	return s.alertRepo.List(ctx, f)
}

// AcknowledgeAlert marks an alert as handled by the actor in ctx
func (s *StockService) AcknowledgeAlert(ctx context.Context, id string) (*domain.Alert, error) {
	who := actor.FromContextOrSystem(ctx)
	if err := s.alertRepo.Acknowledge(ctx, id, who.ID); err != nil {
		return nil, err
	}
	return s.alertRepo.GetByID(ctx, id)
}

// LevelsTable builds the stock level export, one row per variant
func (s *StockService) LevelsTable(ctx context.Context, f domain.LevelFilter) (*tabular.Table, error) {
	f.Limit, f.Offset = 0, 0
	levels, _, err := s.levelRepo.List(ctx, f)
	if err != nil {
		return nil, err
	}

	t := &tabular.Table{
		Sheet: "Stock",
		Headers: []string{
			"Reference", "Article", "Category", "Size", "Color", "Barcode",
			"Quantity", "Article Total", "Threshold", "Low Stock",
		},
	}
	for _, a := range levels {
		low := "no"
		if a.LowStock {
			low = "yes"
		}
		for _, v := range a.Variants {
			barcode := ""
			if v.Barcode != nil {
				barcode = *v.Barcode
			}
			t.Rows = append(t.Rows, []string{
				a.Reference, a.Name, a.Category, v.Size, v.Color, barcode,
				strconv.Itoa(v.Quantity), strconv.Itoa(a.TotalStock), strconv.Itoa(a.Threshold), low,
			})
		}
	}
	return t, nil
}
