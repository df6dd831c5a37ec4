package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/yoozak/yoozak-backend/internal/stock/domain"
	"github.com/yoozak/yoozak-backend/pkg/database"
	"github.com/yoozak/yoozak-backend/pkg/errors"
)

// AlertRepository handles stock alert persistence
type AlertRepository struct {
	db *database.DB
}

// NewAlertRepository creates a new alert repository
func NewAlertRepository(db *database.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// Create creates a new alert
func (r *AlertRepository) Create(ctx context.Context, alert *domain.Alert) error {
	if alert.ID == "" {
		alert.ID = uuid.New().String()
	}

	query := `
		INSERT INTO stock_alerts (id, article_id, alert_type, severity, message, current_stock, threshold)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`
	return r.db.QueryRowxContext(ctx, query,
		alert.ID, alert.ArticleID, alert.AlertType, alert.Severity, alert.Message,
		alert.CurrentStock, alert.Threshold,
	).Scan(&alert.CreatedAt)
}

const alertSelect = `
	SELECT al.id, al.article_id, a.reference, a.name AS article_name, al.alert_type, al.severity,
		al.message, al.current_stock, al.threshold, al.is_acknowledged, al.acknowledged_by,
		al.acknowledged_at, al.created_at
	FROM stock_alerts al
	JOIN articles a ON a.id = al.article_id
`

// GetByID gets an alert by ID
func (r *AlertRepository) GetByID(ctx context.Context, id string) (*domain.Alert, error) {
	var alert domain.Alert
	if err := r.db.GetContext(ctx, &alert, alertSelect+` WHERE al.id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("alert")
		}
		return nil, database.Translate(err)
	}
	return &alert, nil
}

// List lists alerts with filtering, newest first
func (r *AlertRepository) List(ctx context.Context, f domain.AlertFilter) ([]domain.Alert, int64, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	argNum := 1

	if f.Acknowledged != nil {
		where = append(where, fmt.Sprintf("al.is_acknowledged = $%d", argNum))
		args = append(args, *f.Acknowledged)
		argNum++
	}
	if f.AlertType != "" {
		where = append(where, fmt.Sprintf("al.alert_type = $%d", argNum))
		args = append(args, f.AlertType)
		argNum++
	}
	if f.ArticleID != "" {
		where = append(where, fmt.Sprintf("al.article_id = $%d", argNum))
		args = append(args, f.ArticleID)
		argNum++
	}

	whereClause := strings.Join(where, " AND ")

	var total int64
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM stock_alerts al WHERE "+whereClause, args...); err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	query := fmt.Sprintf("%s WHERE %s ORDER BY al.created_at DESC LIMIT $%d OFFSET $%d",
		alertSelect, whereClause, argNum, argNum+1)
	args = append(args, limit, f.Offset)

	var alerts []domain.Alert
	if err := r.db.SelectContext(ctx, &alerts, query, args...); err != nil {
		return nil, 0, err
	}
	return alerts, total, nil
}

// Acknowledge marks an alert as seen by an operator
func (r *AlertRepository) Acknowledge(ctx context.Context, id, operatorID string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE stock_alerts SET is_acknowledged = TRUE, acknowledged_by = $2, acknowledged_at = NOW()
		WHERE id = $1 AND NOT is_acknowledged
	`, id, operatorID)
	if err != nil {
		return database.Translate(err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return errors.NotFound("alert")
	}
	return nil
}

// CountUnacknowledged returns the number of open alerts
func (r *AlertRepository) CountUnacknowledged(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM stock_alerts WHERE NOT is_acknowledged`)
	return count, err
}
