package repository

import (
	"context"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/yoozak/yoozak-backend/internal/kpi/domain"
	"github.com/yoozak/yoozak-backend/pkg/database"
)

// KPIRepository runs the reporting queries
type KPIRepository struct {
	db *database.DB
}

// NewKPIRepository creates a new KPI repository
func NewKPIRepository(db *database.DB) *KPIRepository {
	return &KPIRepository{db: db}
}

// StatusCounts counts orders created in the range per status
func (r *KPIRepository) StatusCounts(ctx context.Context, rng domain.Range) ([]domain.StatusCount, error) {
	query := `
		SELECT status, COUNT(*) AS count
		FROM orders
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY status
		ORDER BY status
	`
	counts := []domain.StatusCount{}
	if err := r.db.SelectContext(ctx, &counts, query, rng.From, rng.To); err != nil {
		return nil, err
	}
	return counts, nil
}

// DeliveredRevenue sums delivered orders created in the range
func (r *KPIRepository) DeliveredRevenue(ctx context.Context, rng domain.Range) (domain.Revenue, error) {
	query := `
		SELECT COUNT(*) AS orders, COALESCE(SUM(total), 0) AS total
		FROM orders
		WHERE status = 'delivered' AND created_at >= $1 AND created_at < $2
	`
	var rev domain.Revenue
	err := r.db.GetContext(ctx, &rev, query, rng.From, rng.To)
	return rev, err
}

// TopArticles ranks articles by quantity delivered in the range
func (r *KPIRepository) TopArticles(ctx context.Context, rng domain.Range, limit int) ([]domain.TopArticle, error) {
	query := `
		SELECT l.article_id, a.reference, a.name,
		       SUM(l.quantity) AS quantity, SUM(l.line_total) AS revenue
		FROM order_lines l
		JOIN orders o ON o.id = l.order_id
		JOIN articles a ON a.id = l.article_id
		WHERE o.status = 'delivered' AND o.created_at >= $1 AND o.created_at < $2
		GROUP BY l.article_id, a.reference, a.name
		ORDER BY quantity DESC, a.reference
		LIMIT $3
	`
	top := []domain.TopArticle{}
	if err := r.db.SelectContext(ctx, &top, query, rng.From, rng.To, limit); err != nil {
		return nil, err
	}
	return top, nil
}

// StockSummary counts low-stock variants and values the stock at purchase price
func (r *KPIRepository) StockSummary(ctx context.Context) (domain.StockSummary, error) {
	query := `
		SELECT COUNT(*) FILTER (WHERE v.quantity <= a.low_stock_threshold) AS low_stock_variants,
		       COALESCE(SUM(v.quantity), 0) AS pieces,
		       COALESCE(SUM(v.quantity::BIGINT * a.purchase_price), 0) AS valuation
		FROM variants v
		JOIN articles a ON a.id = v.article_id
	`
	var s domain.StockSummary
	err := r.db.GetContext(ctx, &s, query)
	return s, err
}

// OperatorPerformance aggregates orders per confirmation operator. Every
// confirmation operator is listed, along with any other operator holding
// orders in the range.
func (r *KPIRepository) OperatorPerformance(ctx context.Context, rng domain.Range) ([]domain.OperatorPerformance, error) {
	query := `
		SELECT op.id AS operator_id,
		       TRIM(op.first_name || ' ' || op.last_name) AS name,
		       COUNT(o.id) AS assigned,
		       COUNT(o.id) FILTER (WHERE o.status = ANY($3)) AS confirmed,
		       COUNT(o.id) FILTER (WHERE o.status = 'cancelled') AS cancelled,
		       COUNT(o.id) FILTER (WHERE o.status IN ('assigned', 'postponed', 'unreachable')) AS pending
		FROM operators op
		LEFT JOIN orders o
		       ON o.confirmation_operator_id = op.id AND o.created_at >= $1 AND o.created_at < $2
		WHERE op.role = 'confirmation' OR o.id IS NOT NULL
		GROUP BY op.id, op.first_name, op.last_name
		ORDER BY confirmed DESC, name, op.id
	`
	perf := []domain.OperatorPerformance{}
	if err := r.db.SelectContext(ctx, &perf, query, rng.From, rng.To, pq.Array(domain.ConfirmedOrLater)); err != nil {
		return nil, err
	}
	for i := range perf {
		p := &perf[i]
		p.ConfirmationRate = domain.Rate(p.Confirmed, p.Confirmed+p.Cancelled)
	}
	return perf, nil
}

// Daily returns the daily counters of the range
func (r *KPIRepository) Daily(ctx context.Context, rng domain.Range) ([]domain.DailyMetric, error) {
	query := `
		SELECT day, metric, value
		FROM kpi_daily
		WHERE day >= $1::date AND day < $2::date
		ORDER BY day, metric
	`
	metrics := []domain.DailyMetric{}
	if err := r.db.SelectContext(ctx, &metrics, query, utcDay(rng.From), utcDay(rng.To)); err != nil {
		return nil, err
	}
	return metrics, nil
}

// utcDay formats the UTC calendar day of t so the cast to date does not
// depend on the session time zone.
func utcDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// ApplyEvent adds increments to the day's counters once per event ID.
// It reports false when the event had already been applied.
func (r *KPIRepository) ApplyEvent(ctx context.Context, eventID string, day time.Time, increments map[string]int64) (bool, error) {
	metrics := make([]string, 0, len(increments))
	for m := range increments {
		metrics = append(metrics, m)
	}
	sort.Strings(metrics)

	applied := false
	err := r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO kpi_processed_events (event_id) VALUES ($1) ON CONFLICT DO NOTHING`, eventID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}

		for _, m := range metrics {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO kpi_daily (day, metric, value) VALUES ($1::date, $2, $3)
				ON CONFLICT (day, metric) DO UPDATE SET value = kpi_daily.value + EXCLUDED.value
			`, utcDay(day), m, increments[m]); err != nil {
				return err
			}
		}
		applied = true
		return nil
	})
	return applied, err
}
