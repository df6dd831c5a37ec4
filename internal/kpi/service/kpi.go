package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/yoozak/yoozak-backend/internal/kpi/domain"
	"github.com/yoozak/yoozak-backend/internal/kpi/repository"
	"github.com/yoozak/yoozak-backend/pkg/errors"
	"github.com/yoozak/yoozak-backend/pkg/logger"
	"github.com/yoozak/yoozak-backend/pkg/tabular"
	"golang.org/x/sync/errgroup"
)

// TopArticlesLimit is the length of the best-seller ranking
const TopArticlesLimit = 10

// Reports that can be exported
const (
	ReportDashboard = "dashboard"
	ReportOperators = "operators"
	ReportDaily     = "daily"
)

// KPIService computes reporting figures
type KPIService struct {
	repo   *repository.KPIRepository
	logger *logger.Logger
}

// NewKPIService creates a new KPI service
func NewKPIService(repo *repository.KPIRepository, log *logger.Logger) *KPIService {
	return &KPIService{repo: repo, logger: log}
}

// Dashboard runs the dashboard aggregates concurrently
func (s *KPIService) Dashboard(ctx context.Context, rng domain.Range) (*domain.Dashboard, error) {
	var (
		counts  []domain.StatusCount
		revenue domain.Revenue
		top     []domain.TopArticle
		stock   domain.StockSummary
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		counts, err = s.repo.StatusCounts(gctx, rng)
		return err
	})
	g.Go(func() (err error) {
		revenue, err = s.repo.DeliveredRevenue(gctx, rng)
		return err
	})
	g.Go(func() (err error) {
		top, err = s.repo.TopArticles(gctx, rng, TopArticlesLimit)
		return err
	})
	g.Go(func() (err error) {
		stock, err = s.repo.StockSummary(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Error().Err(err).Msg("failed to compute dashboard")
		return nil, err
	}

	d := &domain.Dashboard{Range: rng, TopArticles: top, Stock: stock}
	d.ApplyStatusCounts(counts)
	d.ApplyRevenue(revenue)
	return d, nil
}

// OperatorPerformance returns per-operator confirmation figures
func (s *KPIService) OperatorPerformance(ctx context.Context, rng domain.Range) ([]domain.OperatorPerformance, error) {
	return s.repo.OperatorPerformance(ctx, rng)
}

// Daily returns the daily counters maintained from order events
func (s *KPIService) Daily(ctx context.Context, rng domain.Range) ([]domain.DailyMetric, error) {
	return s.repo.Daily(ctx, rng)
}

// Export renders a report as a table
func (s *KPIService) Export(ctx context.Context, report string, rng domain.Range) (*tabular.Table, error) {
	switch report {
	case "", ReportDashboard:
		d, err := s.Dashboard(ctx, rng)
		if err != nil {
			return nil, err
		}
		return DashboardTable(d), nil
	case ReportOperators:
		perf, err := s.OperatorPerformance(ctx, rng)
		if err != nil {
			return nil, err
		}
		return OperatorsTable(perf), nil
	case ReportDaily:
		metrics, err := s.Daily(ctx, rng)
		if err != nil {
			return nil, err
		}
		return DailyTable(metrics), nil
	default:
		return nil, errors.Validation(map[string]string{"report": "must be dashboard, operators or daily"})
	}
}

// DashboardTable flattens the dashboard into metric/value rows followed by
// the best-seller ranking.
func DashboardTable(d *domain.Dashboard) *tabular.Table {
	t := &tabular.Table{Sheet: "Dashboard", Headers: []string{"Metric", "Value"}}
	add := func(name, value string) {
		t.Rows = append(t.Rows, []string{name, value})
	}

	add("From", d.Range.From.Format("2006-01-02"))
	add("To (exclusive)", d.Range.To.Format("2006-01-02"))
	add("Total orders", strconv.FormatInt(d.TotalOrders, 10))
	for _, status := range []string{
		"unassigned", "assigned", "postponed", "unreachable", "confirmed", "cancelled",
		"preparing", "prepared", "shipped", "delivered", "returned",
	} {
		add("Orders "+status, strconv.FormatInt(d.OrdersByStatus[status], 10))
	}
	add("Confirmation rate", formatRate(d.ConfirmationRate))
	add("Delivery rate", formatRate(d.DeliveryRate))
	add("Delivered revenue (MAD)", d.DeliveredRevenue.String())
	add("Average basket (MAD)", d.AverageBasket.String())
	add("Low-stock variants", strconv.FormatInt(d.Stock.LowStockVariants, 10))
	add("Pieces in stock", strconv.FormatInt(d.Stock.Pieces, 10))
	add("Stock valuation (MAD)", d.Stock.Valuation.String())

	for i, a := range d.TopArticles {
		add(fmt.Sprintf("Top %d", i+1), fmt.Sprintf("%s %s (%d pcs, %s MAD)", a.Reference, a.Name, a.Quantity, a.Revenue))
	}
	return t
}

// OperatorsTable renders operator performance
func OperatorsTable(perf []domain.OperatorPerformance) *tabular.Table {
	t := &tabular.Table{
		Sheet:   "Operators",
		Headers: []string{"Operator", "Assigned", "Confirmed", "Cancelled", "Pending", "Confirmation rate"},
	}
	for _, p := range perf {
		t.Rows = append(t.Rows, []string{
			p.Name,
			strconv.FormatInt(p.Assigned, 10),
			strconv.FormatInt(p.Confirmed, 10),
			strconv.FormatInt(p.Cancelled, 10),
			strconv.FormatInt(p.Pending, 10),
			formatRate(p.ConfirmationRate),
		})
	}
	return t
}

// DailyTable renders daily counters
func DailyTable(metrics []domain.DailyMetric) *tabular.Table {
	t := &tabular.Table{Sheet: "Daily", Headers: []string{"Day", "Metric", "Value"}}
	for _, m := range metrics {
		t.Rows = append(t.Rows, []string{m.Day.Format("2006-01-02"), m.Metric, strconv.FormatInt(m.Value, 10)})
	}
	return t
}

func formatRate(r float64) string {
	return strconv.FormatFloat(r*100, 'f', 2, 64) + "%"
}
