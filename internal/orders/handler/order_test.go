package handler_test

import (
	"bytes"
	"context"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	catalogrepo "github.com/yoozak/yoozak-backend/internal/catalog/repository"
	"github.com/yoozak/yoozak-backend/internal/orders/domain"
	"github.com/yoozak/yoozak-backend/internal/orders/handler"
	"github.com/yoozak/yoozak-backend/internal/orders/repository"
	"github.com/yoozak/yoozak-backend/internal/orders/service"
	stockdomain "github.com/yoozak/yoozak-backend/internal/stock/domain"
	stockrepo "github.com/yoozak/yoozak-backend/internal/stock/repository"
	stockservice "github.com/yoozak/yoozak-backend/internal/stock/service"
	"github.com/yoozak/yoozak-backend/pkg/actor"
	"github.com/yoozak/yoozak-backend/pkg/logger"
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

func newRouter(t *testing.T) (http.Handler, *actor.Actor) {
	t.Helper()
	testutil.SkipIfShort(t)
	suite.Reset(t)

	stock := stockservice.NewStockService(
		suite.DB,
		stockrepo.NewMovementRepository(suite.DB),
		stockrepo.NewAlertRepository(suite.DB),
		stockrepo.NewLevelRepository(suite.DB),
		nil,
		logger.Nop(),
	)
	svc := service.NewOrderService(
		suite.DB,
		repository.NewOrderRepository(suite.DB),
		catalogrepo.NewArticleRepository(suite.DB),
		catalogrepo.NewVariantRepository(suite.DB),
		stock,
		nil,
		50,
		logger.Nop(),
	)
	h := handler.NewOrderHandler(svc, logger.Nop())

	r := chi.NewRouter()
	r.Get("/orders", h.List)
	r.Post("/orders", h.Create)
	r.Post("/orders/assign", h.Assign)
	r.Post("/orders/import", h.Import)
	r.Get("/orders/import/template", h.ImportTemplate)
	r.Get("/orders/{id}", h.Get)
	r.Get("/orders/{id}/history", h.History)
	r.Get("/orders/{id}/movements", h.Movements)
	r.Post("/orders/{id}/transition", h.Transition)

	admin := suite.SeedOperator(t, context.Background(), testutil.WithRole(permissions.RoleAdmin))
	return r, testutil.ActorWithRole(admin.ID, permissions.RoleAdmin)
}

type orderBody struct {
	Data domain.Order `json:"data"`
}

func createOrder(t *testing.T, router http.Handler, who *actor.Actor, variantID string, qty int) domain.Order {
	t.Helper()
	req := testutil.WithActor(testutil.NewHTTPRequest(http.MethodPost, "/orders", service.OrderInput{
		CustomerName: "Salma",
		Phone:        "0611111111",
		City:         "Marrakech",
		Lines:        []service.LineInput{{VariantID: variantID, Quantity: qty}},
	}), who)
	rr := testutil.ExecuteRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusCreated)

	var body orderBody
	testutil.ParseJSONBody(t, rr, &body)
	return body.Data
}

func TestCreateAndGetOrder(t *testing.T) {
	router, admin := newRouter(t)
	_, vs := suite.SeedArticle(t, context.Background(), nil, 3)

	o := createOrder(t, router, admin, vs[0].ID, 2)
	assert.Equal(t, domain.StatusUnassigned, o.Status)

	rr := testutil.ExecuteRequest(router, testutil.WithActor(testutil.NewHTTPRequest(http.MethodGet, "/orders/"+o.ID, nil), admin))
	testutil.AssertStatus(t, rr, http.StatusOK)
	var got orderBody
	testutil.ParseJSONBody(t, rr, &got)
	require.Len(t, got.Data.Lines, 1)
	assert.Equal(t, 2, got.Data.Lines[0].Quantity)

	t.Run("validation", func(t *testing.T) {
		req := testutil.WithActor(testutil.NewHTTPRequest(http.MethodPost, "/orders", map[string]interface{}{
			"customer_name": "Salma",
		}), admin)
		rr := testutil.ExecuteRequest(router, req)
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
		assert.Equal(t, "VALIDATION_ERROR", testutil.ErrorCode(t, rr))
	})

	t.Run("unknown order", func(t *testing.T) {
		rr := testutil.ExecuteRequest(router, testutil.WithActor(
			testutil.NewHTTPRequest(http.MethodGet, "/orders/7f1c1c2e-3d4b-4a4b-9d7e-000000000000", nil), admin))
		testutil.AssertStatus(t, rr, http.StatusNotFound)
	})

	t.Run("malformed id", func(t *testing.T) {
		rr := testutil.ExecuteRequest(router, testutil.WithActor(
			testutil.NewHTTPRequest(http.MethodGet, "/orders/abc", nil), admin))
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
		assert.Equal(t, "BAD_REQUEST", testutil.ErrorCode(t, rr))
	})
}

func TestGetOrder_AllowedTransitionsFollowRole(t *testing.T) {
	router, admin := newRouter(t)
	_, vs := suite.SeedArticle(t, context.Background(), nil, 3)
	o := createOrder(t, router, admin, vs[0].ID, 1)

	get := func(who *actor.Actor) domain.Order {
		rr := testutil.ExecuteRequest(router, testutil.WithActor(testutil.NewHTTPRequest(http.MethodGet, "/orders/"+o.ID, nil), who))
		testutil.AssertStatus(t, rr, http.StatusOK)
		var body orderBody
		testutil.ParseJSONBody(t, rr, &body)
		return body.Data
	}

	assert.Equal(t, []domain.Status{domain.StatusAssigned}, get(admin).AllowedTransitions)

	logistics := suite.SeedOperator(t, context.Background(), testutil.WithRole(permissions.RoleLogistics))
	assert.Empty(t, get(testutil.ActorWithRole(logistics.ID, permissions.RoleLogistics)).AllowedTransitions)
}

func TestOrderMovementsEndpoint(t *testing.T) {
	router, admin := newRouter(t)
	_, vs := suite.SeedArticle(t, context.Background(), nil, 4)
	o := createOrder(t, router, admin, vs[0].ID, 2)

	for _, to := range []domain.Status{domain.StatusAssigned, domain.StatusConfirmed} {
		rr := testutil.ExecuteRequest(router, testutil.WithActor(testutil.NewHTTPRequest(http.MethodPost,
			"/orders/"+o.ID+"/transition", domain.TransitionRequest{To: to}), admin))
		testutil.AssertStatus(t, rr, http.StatusOK)
	}

	rr := testutil.ExecuteRequest(router, testutil.WithActor(testutil.NewHTTPRequest(http.MethodGet,
		"/orders/"+o.ID+"/movements", nil), admin))
	testutil.AssertStatus(t, rr, http.StatusOK)
	var body struct {
		Data []stockdomain.Movement `json:"data"`
	}
	testutil.ParseJSONBody(t, rr, &body)
	require.Len(t, body.Data, 1)
	assert.Equal(t, stockdomain.MovementOut, body.Data[0].Type)
	assert.Equal(t, 2, body.Data[0].Quantity)
	assert.Equal(t, 4, body.Data[0].QuantityBefore)
}

func TestTransitionEndpoint(t *testing.T) {
	router, admin := newRouter(t)
	_, vs := suite.SeedArticle(t, context.Background(), nil, 1)

	o := createOrder(t, router, admin, vs[0].ID, 2)

	rr := testutil.ExecuteRequest(router, testutil.WithActor(testutil.NewHTTPRequest(http.MethodPost,
		"/orders/"+o.ID+"/transition", domain.TransitionRequest{To: domain.StatusAssigned}), admin))
	testutil.AssertStatus(t, rr, http.StatusOK)

	rr = testutil.ExecuteRequest(router, testutil.WithActor(testutil.NewHTTPRequest(http.MethodPost,
		"/orders/"+o.ID+"/transition", domain.TransitionRequest{To: domain.StatusConfirmed}), admin))
	testutil.AssertStatus(t, rr, http.StatusConflict)
	assert.Equal(t, "INSUFFICIENT_STOCK", testutil.ErrorCode(t, rr))

	rr = testutil.ExecuteRequest(router, testutil.WithActor(testutil.NewHTTPRequest(http.MethodPost,
		"/orders/"+o.ID+"/transition", domain.TransitionRequest{To: domain.StatusDelivered}), admin))
	testutil.AssertStatus(t, rr, http.StatusConflict)

	rr = testutil.ExecuteRequest(router, testutil.WithActor(testutil.NewHTTPRequest(http.MethodGet,
		"/orders/"+o.ID+"/history", nil), admin))
	testutil.AssertStatus(t, rr, http.StatusOK)
	var history struct {
		Data []domain.StatusChange `json:"data"`
	}
	testutil.ParseJSONBody(t, rr, &history)
	require.Len(t, history.Data, 1)
	assert.Equal(t, domain.StatusAssigned, history.Data[0].To)
}

func TestAssignEndpoint_RequiresPermission(t *testing.T) {
	router, admin := newRouter(t)
	_, vs := suite.SeedArticle(t, context.Background(), nil, 5)
	o := createOrder(t, router, admin, vs[0].ID, 1)

	confirmer := suite.SeedOperator(t, context.Background(), testutil.WithRole(permissions.RoleConfirmation))
	body := service.AssignRequest{OrderIDs: []string{o.ID}, OperatorID: confirmer.ID}

	rr := testutil.ExecuteRequest(router, testutil.WithActor(
		testutil.NewHTTPRequest(http.MethodPost, "/orders/assign", body),
		testutil.ActorWithRole(confirmer.ID, permissions.RoleConfirmation)))
	testutil.AssertStatus(t, rr, http.StatusForbidden)

	rr = testutil.ExecuteRequest(router, testutil.WithActor(
		testutil.NewHTTPRequest(http.MethodPost, "/orders/assign", body), admin))
	testutil.AssertStatus(t, rr, http.StatusOK)

	rr = testutil.ExecuteRequest(router, testutil.WithActor(
		testutil.NewHTTPRequest(http.MethodGet, "/orders?status=assigned&operator_id="+confirmer.ID, nil), admin))
	testutil.AssertStatus(t, rr, http.StatusOK)
	testutil.AssertBodyContains(t, rr, o.Number)
}

func TestImportEndpoint_Multipart(t *testing.T) {
	router, admin := newRouter(t)
	a, _ := suite.SeedArticle(t, context.Background(), []func(*testutil.ArticleFixture){testutil.WithReference("YZ-MP")}, 4)
	var size string
	require.NoError(t, suite.RawDB.Get(&size, `SELECT size FROM variants WHERE article_id = $1`, a.ID))

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "orders.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte("external_ref,customer_name,phone,city,reference,size,quantity\nWEB-1,Hind,0622,Agadir,YZ-MP," + size + ",1\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/orders/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := testutil.ExecuteRequest(router, testutil.WithActor(req, admin))
	testutil.AssertStatus(t, rr, http.StatusOK)

	var report struct {
		Data service.ImportReport `json:"data"`
	}
	testutil.ParseJSONBody(t, rr, &report)
	assert.Equal(t, 1, report.Data.Created)
	assert.Empty(t, report.Data.Errors)
}

func TestImportEndpoint_RawBodyAndTemplate(t *testing.T) {
	router, admin := newRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/orders/import?format=pdf", strings.NewReader("x"))
	rr := testutil.ExecuteRequest(router, testutil.WithActor(req, admin))
	testutil.AssertStatus(t, rr, http.StatusBadRequest)

	rr = testutil.ExecuteRequest(router, testutil.WithActor(
		testutil.NewHTTPRequest(http.MethodGet, "/orders/import/template", nil), admin))
	testutil.AssertStatus(t, rr, http.StatusOK)
	assert.Contains(t, rr.Body.String(), "external_ref,customer_name")
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "orders-import.csv")
}
