package service_test

import (
	"context"
	"log"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yoozak/yoozak-backend/internal/stock/domain"
	"github.com/yoozak/yoozak-backend/internal/stock/events"
	"github.com/yoozak/yoozak-backend/internal/stock/repository"
	"github.com/yoozak/yoozak-backend/internal/stock/service"
	"github.com/yoozak/yoozak-backend/pkg/actor"
	"github.com/yoozak/yoozak-backend/pkg/errors"
	"github.com/yoozak/yoozak-backend/pkg/logger"
	"github.com/yoozak/yoozak-backend/pkg/messaging"
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

func newService(t *testing.T) (*service.StockService, *testutil.MockPublisher) {
	t.Helper()
	testutil.SkipIfShort(t)
	suite.Reset(t)

	pub := testutil.NewMockPublisher()
	svc := service.NewStockService(
		suite.DB,
		repository.NewMovementRepository(suite.DB),
		repository.NewAlertRepository(suite.DB),
		repository.NewLevelRepository(suite.DB),
		events.NewStockEventPublisherWith(pub, logger.Nop()),
		logger.Nop(),
	)
	return svc, pub
}

func operatorCtx(t *testing.T) context.Context {
	o := suite.SeedOperator(t, context.Background(), testutil.WithRole("stock"))
	return actor.WithActor(context.Background(), &actor.Actor{ID: o.ID, FirstName: o.FirstName, LastName: o.LastName, Role: o.Role})
}

func quantity(t *testing.T, variantID string) int {
	t.Helper()
	var q int
	require.NoError(t, suite.RawDB.Get(&q, `SELECT quantity FROM variants WHERE id = $1`, variantID))
	return q
}

func totalStock(t *testing.T, articleID string) int {
	t.Helper()
	var q int
	require.NoError(t, suite.RawDB.Get(&q, `SELECT total_stock FROM articles WHERE id = $1`, articleID))
	return q
}

func TestCreateMovement_MultiVariantIn(t *testing.T) {
	svc, pub := newService(t)
	ctx := operatorCtx(t)

	a, vs := suite.SeedArticle(t, ctx, nil, 0, 2)

	moves, err := svc.CreateMovement(ctx, &domain.MovementRequest{
		Type:   domain.MovementIn,
		Reason: "reception fournisseur",
		Lines: []domain.MovementLine{
			{VariantID: vs[0].ID, Quantity: 5},
			{VariantID: vs[1].ID, Quantity: 3},
		},
	})
	require.NoError(t, err)
	require.Len(t, moves, 2)

	assert.Equal(t, 5, quantity(t, vs[0].ID))
	assert.Equal(t, 5, quantity(t, vs[1].ID))
	assert.Equal(t, 10, totalStock(t, a.ID))
	assert.Equal(t, 2, moves[1].QuantityBefore)
	assert.NotEmpty(t, moves[0].OperatorName)
	pub.AssertEventPublished(t, messaging.EventStockMovementCreated)
}

func TestCreateMovement_InsufficientStockLeavesNoPartialUpdate(t *testing.T) {
	svc, pub := newService(t)
	ctx := operatorCtx(t)

	a, vs := suite.SeedArticle(t, ctx, nil, 4, 1)

	_, err := svc.CreateMovement(ctx, &domain.MovementRequest{
		Type: domain.MovementOut,
		Lines: []domain.MovementLine{
			{VariantID: vs[0].ID, Quantity: 2},
			{VariantID: vs[1].ID, Quantity: 3},
		},
	})
	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "INSUFFICIENT_STOCK", appErr.Code)
	assert.Equal(t, vs[1].ID, appErr.Details["variant"])

	assert.Equal(t, 4, quantity(t, vs[0].ID))
	assert.Equal(t, 1, quantity(t, vs[1].ID))
	assert.Equal(t, 5, totalStock(t, a.ID))

	var count int
	require.NoError(t, suite.RawDB.Get(&count, `SELECT COUNT(*) FROM stock_movements`))
	assert.Zero(t, count)
	pub.AssertNoEventsPublished(t)
}

func TestCreateMovement_InventoryCountSetsAbsolute(t *testing.T) {
	svc, _ := newService(t)
	ctx := operatorCtx(t)

	a, vs := suite.SeedArticle(t, ctx, nil, 7)

	moves, err := svc.CreateMovement(ctx, &domain.MovementRequest{
		Type:  domain.MovementInventoryCount,
		Lines: []domain.MovementLine{{VariantID: vs[0].ID, Quantity: 3}},
	})
	require.NoError(t, err)
	assert.Equal(t, -4, moves[0].Delta())
	assert.Equal(t, 3, totalStock(t, a.ID))
}

func TestCreateMovement_RaisesAlertWhenCrossingThreshold(t *testing.T) {
	svc, pub := newService(t)
	ctx := operatorCtx(t)

	a, vs := suite.SeedArticle(t, ctx, []func(*testutil.ArticleFixture){testutil.WithThreshold(4)}, 6)

	_, err := svc.CreateMovement(ctx, &domain.MovementRequest{
		Type:  domain.MovementOut,
		Lines: []domain.MovementLine{{VariantID: vs[0].ID, Quantity: 3}},
	})
	require.NoError(t, err)
	pub.AssertEventPublished(t, messaging.EventStockLow)

	alerts, total, err := svc.ListAlerts(ctx, domain.AlertFilter{ArticleID: a.ID})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	assert.Equal(t, domain.AlertLowStock, alerts[0].AlertType)
	assert.Equal(t, a.Reference, alerts[0].Reference)

	acked, err := svc.AcknowledgeAlert(ctx, alerts[0].ID)
	require.NoError(t, err)
	assert.True(t, acked.IsAcknowledged)

	_, err = svc.AcknowledgeAlert(ctx, alerts[0].ID)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestCreateMovement_ConcurrentOppositeOrderNeverOversells(t *testing.T) {
	svc, _ := newService(t)
	ctx := operatorCtx(t)

	a, vs := suite.SeedArticle(t, ctx, nil, 10, 10)

	const workers = 12
	var wg sync.WaitGroup
	var mu sync.Mutex
	var succeeded, refused int

	for i := 0; i < workers; i++ {
		lines := []domain.MovementLine{
			{VariantID: vs[0].ID, Quantity: 1},
			{VariantID: vs[1].ID, Quantity: 1},
		}
		if i%2 == 1 {
			lines[0], lines[1] = lines[1], lines[0]
		}

		wg.Add(1)
		go func(lines []domain.MovementLine) {
			defer wg.Done()
			_, err := svc.CreateMovement(ctx, &domain.MovementRequest{Type: domain.MovementOut, Lines: lines})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else if errors.Is(err, errors.ErrInsufficientStock) {
				refused++
			} else {
				t.Errorf("unexpected error: %v", err)
			}
		}(lines)
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	assert.Equal(t, 2, refused)
	assert.Equal(t, 0, quantity(t, vs[0].ID))
	assert.Equal(t, 0, quantity(t, vs[1].ID))
	assert.Equal(t, 0, totalStock(t, a.ID))
}

func TestStockLevelsAndExport(t *testing.T) {
	svc, _ := newService(t)
	ctx := operatorCtx(t)

	suite.SeedArticle(t, ctx, []func(*testutil.ArticleFixture){testutil.WithThreshold(3)}, 1, 1)
	suite.SeedArticle(t, ctx, nil, 20)

	low, total, err := svc.StockLevels(ctx, domain.LevelFilter{LowStockOnly: true})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, low, 1)
	assert.Len(t, low[0].Variants, 2)
	assert.True(t, low[0].LowStock)

	table, err := svc.LevelsTable(ctx, domain.LevelFilter{})
	require.NoError(t, err)
	assert.Len(t, table.Rows, 3)
	assert.Equal(t, "Quantity", table.Headers[6])
}
