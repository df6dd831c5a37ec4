package handler_test

import (
	"bytes"
	"context"
	"log"
	"net/http"
	"os"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"github.com/yoozak/yoozak-backend/internal/kpi/handler"
	"github.com/yoozak/yoozak-backend/internal/kpi/repository"
	"github.com/yoozak/yoozak-backend/internal/kpi/service"
	"github.com/yoozak/yoozak-backend/pkg/logger"
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

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	testutil.SkipIfShort(t)
	suite.Reset(t)

	h := handler.NewKPIHandler(service.NewKPIService(repository.NewKPIRepository(suite.DB), logger.Nop()), logger.Nop())
	r := chi.NewRouter()
	r.Get("/kpi/dashboard", h.Dashboard)
	r.Get("/kpi/operators", h.Operators)
	r.Get("/kpi/daily", h.Daily)
	r.Get("/kpi/export", h.Export)
	return r
}

func TestDashboardEndpoint(t *testing.T) {
	router := newRouter(t)
	ctx := context.Background()
	a, vs := suite.SeedArticle(t, ctx, nil, 8)
	suite.SeedOrder(t, ctx, testutil.WithStatus("delivered"), testutil.WithLine(a.ID, vs[0].ID, 1, 25000))

	rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodGet, "/kpi/dashboard", nil))
	testutil.AssertStatus(t, rr, http.StatusOK)

	var body struct {
		Data struct {
			TotalOrders      int64 `json:"total_orders"`
			DeliveredRevenue int64 `json:"delivered_revenue"`
		} `json:"data"`
	}
	testutil.ParseJSONBody(t, rr, &body)
	assert.Equal(t, int64(1), body.Data.TotalOrders)
	assert.Equal(t, int64(25000), body.Data.DeliveredRevenue)

	rr = testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodGet, "/kpi/dashboard?from=2026-13-01", nil))
	testutil.AssertStatus(t, rr, http.StatusBadRequest)
}

func TestExportEndpoint(t *testing.T) {
	router := newRouter(t)
	suite.SeedOperator(t, context.Background(), testutil.WithRole("confirmation"))

	rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodGet, "/kpi/export?report=operators&format=xlsx", nil))
	testutil.AssertStatus(t, rr, http.StatusOK)

	f, err := excelize.OpenReader(bytes.NewReader(rr.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Operators")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Operator", rows[0][0])

	rr = testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodGet, "/kpi/export?report=weekly", nil))
	testutil.AssertStatus(t, rr, http.StatusBadRequest)
}
