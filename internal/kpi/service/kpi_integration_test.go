package service_test

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yoozak/yoozak-backend/internal/kpi/consumers"
	"github.com/yoozak/yoozak-backend/internal/kpi/domain"
	"github.com/yoozak/yoozak-backend/internal/kpi/repository"
	"github.com/yoozak/yoozak-backend/internal/kpi/service"
	"github.com/yoozak/yoozak-backend/pkg/logger"
	"github.com/yoozak/yoozak-backend/pkg/messaging"
	"github.com/yoozak/yoozak-backend/pkg/money"
	"github.com/yoozak/yoozak-backend/pkg/permissions"
	"github.com/yoozak/yoozak-backend/pkg/testutil"
)

var suite *testutil.IntegrationSuite

func TestMain(m *testing.M) {
	if testutil.ShortMode() {
		os.Exit(m.Run())
	}

	ctx := context.Background()
	var err error
	suite, err = testutil.NewIntegrationSuite(ctx)
	if err != nil {
		log.Fatalf("failed to create integration suite: %v", err)
	}

	code := m.Run()
	testutil.TerminateContainer(ctx)
	os.Exit(code)
}

func lastWeek() domain.Range {
	now := time.Now()
	return domain.Range{From: now.AddDate(0, 0, -7), To: now.Add(time.Hour)}
}

type seeded struct {
	busy, idle string
	articleX   string
}

// seed writes six orders in the last week plus one older delivered order
func seed(t *testing.T) seeded {
	t.Helper()
	testutil.SkipIfShort(t)
	suite.Reset(t)
	ctx := context.Background()

	busy := suite.SeedOperator(t, ctx, testutil.WithRole(permissions.RoleConfirmation))
	idle := suite.SeedOperator(t, ctx, testutil.WithRole(permissions.RoleConfirmation))

	x, xv := suite.SeedArticle(t, ctx, []func(*testutil.ArticleFixture){testutil.WithReference("YZ-X")}, 3, 10)
	y, yv := suite.SeedArticle(t, ctx, []func(*testutil.ArticleFixture){testutil.WithReference("YZ-Y")}, 20)

	yesterday := time.Now().AddDate(0, 0, -1)
	at := testutil.CreatedAt(yesterday)
	mine := testutil.AssignedTo(busy.ID)

	suite.SeedOrder(t, ctx, at, mine, testutil.WithStatus("delivered"), testutil.WithLine(x.ID, xv[0].ID, 2, 29900))
	suite.SeedOrder(t, ctx, at, mine, testutil.WithStatus("delivered"), testutil.WithLine(y.ID, yv[0].ID, 1, 19900))
	suite.SeedOrder(t, ctx, at, mine, testutil.WithStatus("returned"), testutil.WithLine(x.ID, xv[1].ID, 1, 29900))
	suite.SeedOrder(t, ctx, at, mine, testutil.WithStatus("cancelled"), testutil.WithLine(x.ID, xv[1].ID, 1, 29900))
	suite.SeedOrder(t, ctx, at, mine, testutil.WithStatus("confirmed"), testutil.WithLine(y.ID, yv[0].ID, 1, 19900))
	suite.SeedOrder(t, ctx, at, testutil.WithLine(y.ID, yv[0].ID, 1, 19900))
	suite.SeedOrder(t, ctx, testutil.CreatedAt(time.Now().AddDate(0, -2, 0)), mine,
		testutil.WithStatus("delivered"), testutil.WithLine(y.ID, yv[0].ID, 5, 19900))

	return seeded{busy: busy.ID, idle: idle.ID, articleX: x.ID}
}

func newService() *service.KPIService {
	return service.NewKPIService(repository.NewKPIRepository(suite.DB), logger.Nop())
}

func TestDashboard(t *testing.T) {
	s := seed(t)

	d, err := newService().Dashboard(context.Background(), lastWeek())
	require.NoError(t, err)

	assert.Equal(t, int64(6), d.TotalOrders)
	assert.Equal(t, int64(2), d.OrdersByStatus["delivered"])
	assert.Equal(t, 0.8, d.ConfirmationRate)
	assert.Equal(t, 0.6667, d.DeliveryRate)
	assert.Equal(t, money.Money(79700), d.DeliveredRevenue)
	assert.Equal(t, money.Money(39850), d.AverageBasket)

	require.Len(t, d.TopArticles, 2)
	assert.Equal(t, s.articleX, d.TopArticles[0].ArticleID)
	assert.Equal(t, int64(2), d.TopArticles[0].Quantity)
	assert.Equal(t, money.Money(59800), d.TopArticles[0].Revenue)

	// Stock figures ignore the range: 3 + 10 + 20 pieces at 120.00 MAD
	assert.Equal(t, int64(1), d.Stock.LowStockVariants)
	assert.Equal(t, int64(33), d.Stock.Pieces)
	assert.Equal(t, money.Money(396000), d.Stock.Valuation)
}

func TestOperatorPerformance(t *testing.T) {
	s := seed(t)

	perf, err := newService().OperatorPerformance(context.Background(), lastWeek())
	require.NoError(t, err)
	require.Len(t, perf, 2)

	assert.Equal(t, s.busy, perf[0].OperatorID)
	assert.Equal(t, int64(5), perf[0].Assigned)
	assert.Equal(t, int64(4), perf[0].Confirmed)
	assert.Equal(t, int64(1), perf[0].Cancelled)
	assert.Equal(t, 0.8, perf[0].ConfirmationRate)

	assert.Equal(t, s.idle, perf[1].OperatorID)
	assert.Zero(t, perf[1].Assigned)
}

func TestDailyCountersFromEvents(t *testing.T) {
	testutil.SkipIfShort(t)
	suite.Reset(t)
	ctx := context.Background()

	repo := repository.NewKPIRepository(suite.DB)
	d := messaging.NewDispatcher(logger.Nop())
	consumers.NewOrderEventHandler(repo, logger.Nop()).Register(d)

	created, err := messaging.NewEvent(messaging.EventOrderCreated, "orders", "", messaging.OrderCreatedEvent{Total: 30000})
	require.NoError(t, err)
	delivered, err := messaging.NewEvent(messaging.EventOrderStatusChanged, "orders", "", messaging.OrderStatusChangedEvent{
		ToStatus: "delivered", Total: 30000,
	})
	require.NoError(t, err)

	for _, e := range []*messaging.Event{created, delivered, delivered} {
		require.NoError(t, d.Dispatch(ctx, e))
	}

	svc := newService()
	metrics, err := svc.Daily(ctx, lastWeek())
	require.NoError(t, err)

	values := map[string]int64{}
	for _, m := range metrics {
		values[m.Metric] = m.Value
	}
	assert.Equal(t, map[string]int64{
		"orders_created":       1,
		"orders_created_value": 30000,
		"orders_delivered":     1,
		"revenue_delivered":    30000,
	}, values)

	table, err := svc.Export(ctx, service.ReportDaily, lastWeek())
	require.NoError(t, err)
	assert.Len(t, table.Rows, 4)
}

func TestExport(t *testing.T) {
	seed(t)
	svc := newService()

	table, err := svc.Export(context.Background(), service.ReportDashboard, lastWeek())
	require.NoError(t, err)
	assert.Equal(t, []string{"Metric", "Value"}, table.Headers)
	assert.Contains(t, table.Rows, []string{"Delivered revenue (MAD)", "797.00"})

	table, err = svc.Export(context.Background(), service.ReportOperators, lastWeek())
	require.NoError(t, err)
	assert.Len(t, table.Rows, 2)
	assert.Equal(t, "80.00%", table.Rows[0][5])

	_, err = svc.Export(context.Background(), "weekly", lastWeek())
	assert.Error(t, err)
}
