package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/yoozak/yoozak-backend/internal/orders/domain"
	"github.com/yoozak/yoozak-backend/pkg/database"
	"github.com/yoozak/yoozak-backend/pkg/errors"
)

const orderColumns = `id, number, external_ref, source, customer_name, phone, city, address, status,
	shipping_fee, total, confirmation_operator_id, preparation_operator_id, carrier, tracking_number,
	notes, created_at, updated_at`

// OrderRepository handles order persistence
type OrderRepository struct {
	db *database.DB
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *database.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// NextNumber draws the next human-readable order number
func (r *OrderRepository) NextNumber(ctx context.Context, q database.Queryer) (string, error) {
	var n int64
	if err := q.GetContext(ctx, &n, `SELECT nextval('order_number_seq')`); err != nil {
		return "", fmt.Errorf("failed to draw order number: %w", err)
	}
	return fmt.Sprintf("YZ%06d", n), nil
}

// Create inserts an order and its lines
func (r *OrderRepository) Create(ctx context.Context, tx database.Queryer, o *domain.Order) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}

	query := `
		INSERT INTO orders (
			id, number, external_ref, source, customer_name, phone, city, address, status,
			shipping_fee, total, confirmation_operator_id, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at
	`
	if err := tx.QueryRowxContext(ctx, query,
		o.ID, o.Number, o.ExternalRef, o.Source, o.CustomerName, o.Phone, o.City, o.Address, o.Status,
		o.ShippingFee, o.Total, o.ConfirmationOperatorID, o.Notes,
	).Scan(&o.CreatedAt, &o.UpdatedAt); err != nil {
		return database.Translate(err)
	}

	for i := range o.Lines {
		l := &o.Lines[i]
		if l.ID == "" {
			l.ID = uuid.New().String()
		}
		l.OrderID = o.ID

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO order_lines (id, order_id, article_id, variant_id, quantity, unit_price, line_total)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, l.ID, l.OrderID, l.ArticleID, l.VariantID, l.Quantity, l.UnitPrice, l.LineTotal); err != nil {
			return database.Translate(err)
		}
	}
	return nil
}

// GetByID gets an order with its lines
func (r *OrderRepository) GetByID(ctx context.Context, q database.Queryer, id string) (*domain.Order, error) {
	var o domain.Order
	if err := q.GetContext(ctx, &o, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("order")
		}
		return nil, database.Translate(err)
	}

	lines, err := r.lines(ctx, q, id)
	if err != nil {
		return nil, err
	}
	o.Lines = lines
	return &o, nil
}

// LockByID locks an order row for a status change and loads its lines.
// Must run inside a transaction.
func (r *OrderRepository) LockByID(ctx context.Context, tx database.Queryer, id string) (*domain.Order, error) {
	var o domain.Order
	if err := tx.GetContext(ctx, &o, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("order")
		}
		return nil, database.Translate(err)
	}

	lines, err := r.lines(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	o.Lines = lines
	return &o, nil
}

// LockMany locks several orders in ascending ID order
func (r *OrderRepository) LockMany(ctx context.Context, tx database.Queryer, ids []string) ([]domain.Order, error) {
	var orders []domain.Order
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = ANY($1) ORDER BY id FOR UPDATE`
	if err := tx.SelectContext(ctx, &orders, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("failed to lock orders: %w", err)
	}
	return orders, nil
}

func (r *OrderRepository) lines(ctx context.Context, q database.Queryer, orderID string) ([]domain.Line, error) {
	var lines []domain.Line
	query := `
		SELECT l.id, l.order_id, l.article_id, l.variant_id, l.quantity, l.unit_price, l.line_total,
			a.reference, a.name, v.size, v.color
		FROM order_lines l
		JOIN articles a ON a.id = l.article_id
		JOIN variants v ON v.id = l.variant_id
		WHERE l.order_id = $1
		ORDER BY a.reference, v.size, v.color
	`
	if err := q.SelectContext(ctx, &lines, query, orderID); err != nil {
		return nil, err
	}
	return lines, nil
}

// List returns a page of orders, newest first, and the matching count
func (r *OrderRepository) List(ctx context.Context, f domain.Filter) ([]domain.Order, int64, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	argNum := 1

	if f.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", argNum))
		args = append(args, f.Status)
		argNum++
	}
	if f.OperatorID != "" {
		where = append(where, fmt.Sprintf("(confirmation_operator_id = $%d OR preparation_operator_id = $%d)", argNum, argNum))
		args = append(args, f.OperatorID)
		argNum++
	}
	if f.City != "" {
		where = append(where, fmt.Sprintf("city ILIKE $%d", argNum))
		args = append(args, f.City)
		argNum++
	}
	if f.Search != "" {
		where = append(where, fmt.Sprintf(
			"(number ILIKE $%d OR customer_name ILIKE $%d OR phone ILIKE $%d OR external_ref ILIKE $%d)",
			argNum, argNum, argNum, argNum))
		args = append(args, "%"+f.Search+"%")
		argNum++
	}
	if f.From != nil {
		where = append(where, fmt.Sprintf("created_at >= $%d", argNum))
		args = append(args, *f.From)
		argNum++
	}
	if f.To != nil {
		where = append(where, fmt.Sprintf("created_at < $%d", argNum))
		args = append(args, *f.To)
		argNum++
	}

	whereClause := strings.Join(where, " AND ")

	var total int64
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM orders WHERE "+whereClause, args...); err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE %s ORDER BY created_at DESC, number DESC LIMIT $%d OFFSET $%d`,
		orderColumns, whereClause, argNum, argNum+1)
	args = append(args, limit, f.Offset)

	var orders []domain.Order
	if err := r.db.SelectContext(ctx, &orders, query, args...); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// UpdateWorkflow writes the status and the workflow fields that follow it
func (r *OrderRepository) UpdateWorkflow(ctx context.Context, tx database.Queryer, o *domain.Order) error {
	query := `
		UPDATE orders SET
			status = $2, confirmation_operator_id = $3, preparation_operator_id = $4,
			carrier = $5, tracking_number = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := tx.QueryRowxContext(ctx, query,
		o.ID, o.Status, o.ConfirmationOperatorID, o.PreparationOperatorID, o.Carrier, o.TrackingNumber,
	).Scan(&o.UpdatedAt)
	if err == sql.ErrNoRows {
		return errors.NotFound("order")
	}
	return database.Translate(err)
}

// Assignee locks the operator an order is handed to and returns its role
// and whether the account is active.
func (r *OrderRepository) Assignee(ctx context.Context, tx database.Queryer, operatorID string) (string, bool, error) {
	var row struct {
		Role     string `db:"role"`
		IsActive bool   `db:"is_active"`
	}
	err := tx.GetContext(ctx, &row, `SELECT role, is_active FROM operators WHERE id = $1 FOR SHARE`, operatorID)
	if err == sql.ErrNoRows {
		return "", false, errors.NotFound("operator")
	}
	if err != nil {
		return "", false, database.Translate(err)
	}
	return row.Role, row.IsActive, nil
}

// InsertHistory appends a status change
func (r *OrderRepository) InsertHistory(ctx context.Context, q database.Queryer, c *domain.StatusChange) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	query := `
		INSERT INTO order_status_history (id, order_id, from_status, to_status, operator_id, operator_name, comment)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`
	return q.QueryRowxContext(ctx, query,
		c.ID, c.OrderID, c.From, c.To, c.OperatorID, c.OperatorName, c.Comment,
	).Scan(&c.CreatedAt)
}

// History returns an order's status changes, oldest first
func (r *OrderRepository) History(ctx context.Context, orderID string) ([]domain.StatusChange, error) {
	var changes []domain.StatusChange
	query := `
		SELECT id, order_id, from_status, to_status, operator_id, operator_name, comment, created_at
		FROM order_status_history WHERE order_id = $1 ORDER BY created_at, id
	`
	if err := r.db.SelectContext(ctx, &changes, query, orderID); err != nil {
		return nil, err
	}
	return changes, nil
}

// ExistingExternalRefs returns which of refs are already recorded
func (r *OrderRepository) ExistingExternalRefs(ctx context.Context, refs []string) (map[string]bool, error) {
	var found []string
	if err := r.db.SelectContext(ctx, &found,
		`SELECT external_ref FROM orders WHERE external_ref = ANY($1)`, pq.Array(refs)); err != nil {
		return nil, err
	}

	out := make(map[string]bool, len(found))
	for _, ref := range found {
		out[ref] = true
	}
	return out, nil
}
