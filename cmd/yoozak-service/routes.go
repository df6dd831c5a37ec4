package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/yoozak/yoozak-backend/internal/auth"
	"github.com/yoozak/yoozak-backend/internal/auth/jwt"
	cataloghandler "github.com/yoozak/yoozak-backend/internal/catalog/handler"
	catalogservice "github.com/yoozak/yoozak-backend/internal/catalog/service"
	kpihandler "github.com/yoozak/yoozak-backend/internal/kpi/handler"
	kpiservice "github.com/yoozak/yoozak-backend/internal/kpi/service"
	operatorhandler "github.com/yoozak/yoozak-backend/internal/operator/handler"
	operatorservice "github.com/yoozak/yoozak-backend/internal/operator/service"
	orderhandler "github.com/yoozak/yoozak-backend/internal/orders/handler"
	orderservice "github.com/yoozak/yoozak-backend/internal/orders/service"
	stockhandler "github.com/yoozak/yoozak-backend/internal/stock/handler"
	stockservice "github.com/yoozak/yoozak-backend/internal/stock/service"
	"github.com/yoozak/yoozak-backend/pkg/httputil"
	"github.com/yoozak/yoozak-backend/pkg/logger"
	"github.com/yoozak/yoozak-backend/pkg/messaging"
	"github.com/yoozak/yoozak-backend/pkg/permissions"
)

type handlers struct {
	catalog   *catalogservice.CatalogService
	stock     *stockservice.StockService
	orders    *orderservice.OrderService
	kpi       *kpiservice.KPIService
	operators *operatorservice.OperatorService
}

// mountAPI registers the /api/v1 routes. Order transitions and assignment
// check their own permissions in the order service since they depend on the
// target status.
func mountAPI(r chi.Router, jwtManager *jwt.Manager, svc handlers, log *logger.Logger) {
	articleHandler := cataloghandler.NewArticleHandler(svc.catalog, log)
	promotionHandler := cataloghandler.NewPromotionHandler(svc.catalog, log)
	stockHandler := stockhandler.NewStockHandler(svc.stock, log)
	orderHandler := orderhandler.NewOrderHandler(svc.orders, log)
	kpiHandler := kpihandler.NewKPIHandler(svc.kpi, log)
	operatorHandler := operatorhandler.NewOperatorHandler(svc.operators, log)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", operatorHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate(jwtManager))
			r.Use(auth.RequireActive(svc.operators))

			r.Get("/auth/me", operatorHandler.Me)

			r.Route("/operators", func(r chi.Router) {
				r.Use(auth.RequirePermission(permissions.OperatorsManage))
				r.Get("/", operatorHandler.List)
				r.Post("/", operatorHandler.Create)
				r.Get("/{id}", operatorHandler.Get)
				r.Patch("/{id}", operatorHandler.Update)
				r.Delete("/{id}", operatorHandler.Delete)
			})

			r.Route("/articles", func(r chi.Router) {
				r.With(auth.RequirePermission(permissions.CatalogRead)).Get("/", articleHandler.List)
				r.With(auth.RequirePermission(permissions.CatalogRead)).Get("/{id}", articleHandler.Get)
				r.With(auth.RequirePermission(permissions.CatalogRead)).Get("/{id}/variants", articleHandler.ListVariants)

				r.Group(func(r chi.Router) {
					r.Use(auth.RequirePermission(permissions.CatalogWrite))
					r.Post("/", articleHandler.Create)
					r.Put("/{id}", articleHandler.Update)
					r.Delete("/{id}", articleHandler.Delete)
					r.Post("/{id}/variants", articleHandler.CreateVariant)
				})
			})

			r.Route("/variants", func(r chi.Router) {
				r.With(auth.RequirePermission(permissions.CatalogRead)).Get("/lookup", articleHandler.LookupVariant)
				r.With(auth.RequirePermission(permissions.CatalogWrite)).Delete("/{id}", articleHandler.DeleteVariant)
			})

			r.Route("/promotions", func(r chi.Router) {
				r.With(auth.RequirePermission(permissions.CatalogRead)).Get("/", promotionHandler.List)
				r.With(auth.RequirePermission(permissions.CatalogRead)).Get("/{id}", promotionHandler.Get)

				r.Group(func(r chi.Router) {
					r.Use(auth.RequirePermission(permissions.PromotionsWrite))
					r.Post("/", promotionHandler.Create)
					r.Put("/{id}", promotionHandler.Update)
					r.Delete("/{id}", promotionHandler.Delete)
					r.Post("/{id}/activate", promotionHandler.Activate)
					r.Post("/{id}/deactivate", promotionHandler.Deactivate)
					r.Post("/{id}/articles", promotionHandler.AttachArticles)
					r.Delete("/{id}/articles", promotionHandler.DetachArticles)
				})
			})

			r.Route("/stock", func(r chi.Router) {
				r.Group(func(r chi.Router) {
					r.Use(auth.RequirePermission(permissions.StockRead))
					r.Get("/movements", stockHandler.ListMovements)
					r.Get("/levels", stockHandler.Levels)
					r.Get("/export", stockHandler.Export)
					r.Get("/alerts", stockHandler.ListAlerts)
				})

				r.Group(func(r chi.Router) {
					r.Use(auth.RequirePermission(permissions.StockWrite))
					r.Post("/movements", stockHandler.CreateMovement)
					r.Post("/alerts/{id}/acknowledge", stockHandler.AcknowledgeAlert)
				})
			})

			r.Route("/orders", func(r chi.Router) {
				r.With(auth.RequirePermission(permissions.OrdersRead)).Get("/", orderHandler.List)
				r.With(auth.RequirePermission(permissions.OrdersCreate)).Post("/", orderHandler.Create)
				r.Post("/assign", orderHandler.Assign)

				r.Group(func(r chi.Router) {
					r.Use(auth.RequirePermission(permissions.OrdersImport))
					r.Post("/import", orderHandler.Import)
					r.Get("/import/template", orderHandler.ImportTemplate)
				})

				r.Group(func(r chi.Router) {
					r.Use(auth.RequirePermission(permissions.OrdersRead))
					r.Get("/{id}", orderHandler.Get)
					r.Get("/{id}/history", orderHandler.History)
					r.Get("/{id}/movements", orderHandler.Movements)
					r.Post("/{id}/transition", orderHandler.Transition)
				})
			})

			r.Route("/kpi", func(r chi.Router) {
				r.Use(auth.RequirePermission(permissions.KPIRead))
				r.Get("/dashboard", kpiHandler.Dashboard)
				r.Get("/operators", kpiHandler.Operators)
				r.Get("/daily", kpiHandler.Daily)
				r.Get("/export", kpiHandler.Export)
			})
		})
	})
}

// correlate tags events published while serving a request with its request ID
func correlate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := messaging.WithCorrelationID(r.Context(), httputil.GetRequestID(r.Context()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
