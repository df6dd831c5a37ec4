package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/yoozak/yoozak-backend/internal/stock/domain"
	"github.com/yoozak/yoozak-backend/pkg/database"
)

// MovementRepository persists stock movements and the variant quantities
// they change.
type MovementRepository struct {
	db *database.DB
}

// NewMovementRepository creates a new movement repository
func NewMovementRepository(db *database.DB) *MovementRepository {
	return &MovementRepository{db: db}
}

// LockVariants locks the variant rows with SELECT ... FOR UPDATE in
// ascending ID order. Concurrent movements over overlapping variants take
// their locks in the same order and cannot deadlock each other.
// Must run inside a transaction.
func (r *MovementRepository) LockVariants(ctx context.Context, tx database.Queryer, ids []string) (map[string]domain.LockedVariant, error) {
	var rows []domain.LockedVariant
	query := `SELECT id, article_id, quantity FROM variants WHERE id = ANY($1) ORDER BY id FOR UPDATE`
	if err := tx.SelectContext(ctx, &rows, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("failed to lock variants: %w", err)
	}

	locked := make(map[string]domain.LockedVariant, len(rows))
	for _, v := range rows {
		locked[v.ID] = v
	}
	return locked, nil
}

// Apply writes the planned quantities, appends one movement row per line and
// refreshes the total stock of every touched article. The variants must
// already be locked by the caller.
func (r *MovementRepository) Apply(ctx context.Context, tx database.Queryer, movements []domain.Movement) ([]domain.ArticleStock, error) {
	for i := range movements {
		m := &movements[i]
		if m.ID == "" {
			m.ID = uuid.New().String()
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE variants SET quantity = $2, updated_at = NOW() WHERE id = $1`,
			m.VariantID, m.QuantityAfter,
		); err != nil {
			return nil, database.Translate(err)
		}

		query := `
			INSERT INTO stock_movements (
				id, article_id, variant_id, movement_type, quantity, quantity_before,
				quantity_after, reason, order_id, operator_id, operator_name
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING created_at
		`
		if err := tx.QueryRowxContext(ctx, query,
			m.ID, m.ArticleID, m.VariantID, m.Type, m.Quantity, m.QuantityBefore,
			m.QuantityAfter, m.Reason, m.OrderID, m.OperatorID, m.OperatorName,
		).Scan(&m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to insert movement: %w", err)
		}
	}

	return r.refreshTotals(ctx, tx, articleIDs(movements))
}

// refreshTotals locks the articles in ascending ID order and recomputes
// total_stock as the sum of their variants.
func (r *MovementRepository) refreshTotals(ctx context.Context, tx database.Queryer, ids []string) ([]domain.ArticleStock, error) {
	var stocks []domain.ArticleStock
	lock := `
		SELECT id, reference, name, low_stock_threshold, total_stock AS total_before, total_stock AS total_after
		FROM articles WHERE id = ANY($1) ORDER BY id FOR UPDATE
	`
	if err := tx.SelectContext(ctx, &stocks, lock, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("failed to lock articles: %w", err)
	}

	var totals []struct {
		ID    string `db:"id"`
		Total int    `db:"total_stock"`
	}
	update := `
		UPDATE articles a SET
			total_stock = COALESCE((SELECT SUM(v.quantity) FROM variants v WHERE v.article_id = a.id), 0),
			updated_at = NOW()
		WHERE a.id = ANY($1)
		RETURNING a.id, a.total_stock
	`
	if err := tx.SelectContext(ctx, &totals, update, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("failed to refresh article totals: %w", err)
	}

	byID := make(map[string]int, len(totals))
	for _, t := range totals {
		byID[t.ID] = t.Total
	}
	for i := range stocks {
		stocks[i].TotalAfter = byID[stocks[i].ArticleID]
	}
	return stocks, nil
}

func articleIDs(movements []domain.Movement) []string {
	seen := make(map[string]struct{}, len(movements))
	var ids []string
	for _, m := range movements {
		if _, ok := seen[m.ArticleID]; ok {
			continue
		}
		seen[m.ArticleID] = struct{}{}
		ids = append(ids, m.ArticleID)
	}
	return ids
}

const movementSelect = `
	SELECT m.id, m.article_id, m.variant_id, m.movement_type, m.quantity, m.quantity_before,
		m.quantity_after, m.reason, m.order_id, m.operator_id, m.operator_name, m.created_at,
		a.reference, v.size, v.color
	FROM stock_movements m
	JOIN articles a ON a.id = m.article_id
	JOIN variants v ON v.id = m.variant_id
`

// List returns a page of movements, newest first, and the matching count
func (r *MovementRepository) List(ctx context.Context, f domain.MovementFilter) ([]domain.Movement, int64, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	argNum := 1

	add := func(clause string, v interface{}) {
		where = append(where, fmt.Sprintf(clause, argNum))
		args = append(args, v)
		argNum++
	}

	if f.ArticleID != "" {
		add("m.article_id = $%d", f.ArticleID)
	}
	if f.VariantID != "" {
		add("m.variant_id = $%d", f.VariantID)
	}
	if f.Type != "" {
		add("m.movement_type = $%d", f.Type)
	}
	if f.OrderID != "" {
		add("m.order_id = $%d", f.OrderID)
	}
	if f.From != nil {
		add("m.created_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("m.created_at < $%d", *f.To)
	}

	whereClause := strings.Join(where, " AND ")

	var total int64
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM stock_movements m WHERE "+whereClause, args...); err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	query := fmt.Sprintf("%s WHERE %s ORDER BY m.created_at DESC, m.id LIMIT $%d OFFSET $%d",
		movementSelect, whereClause, argNum, argNum+1)
	args = append(args, limit, f.Offset)

	var movements []domain.Movement
	if err := r.db.SelectContext(ctx, &movements, query, args...); err != nil {
		return nil, 0, err
	}
	return movements, total, nil
}

// ListByOrder returns the movements recorded against an order, oldest first
func (r *MovementRepository) ListByOrder(ctx context.Context, orderID string) ([]domain.Movement, error) {
	var movements []domain.Movement
	query := movementSelect + ` WHERE m.order_id = $1 ORDER BY m.created_at, m.id`
	if err := r.db.SelectContext(ctx, &movements, query, orderID); err != nil {
		return nil, err
	}
	return movements, nil
}
