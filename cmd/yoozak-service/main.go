package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/yoozak/yoozak-backend/internal/auth/jwt"
	catalogevents "github.com/yoozak/yoozak-backend/internal/catalog/events"
	catalogrepo "github.com/yoozak/yoozak-backend/internal/catalog/repository"
	catalogservice "github.com/yoozak/yoozak-backend/internal/catalog/service"
	kpiconsumers "github.com/yoozak/yoozak-backend/internal/kpi/consumers"
	kpirepo "github.com/yoozak/yoozak-backend/internal/kpi/repository"
	kpiservice "github.com/yoozak/yoozak-backend/internal/kpi/service"
	operatorrepo "github.com/yoozak/yoozak-backend/internal/operator/repository"
	operatorservice "github.com/yoozak/yoozak-backend/internal/operator/service"
	orderevents "github.com/yoozak/yoozak-backend/internal/orders/events"
	orderrepo "github.com/yoozak/yoozak-backend/internal/orders/repository"
	orderservice "github.com/yoozak/yoozak-backend/internal/orders/service"
	stockevents "github.com/yoozak/yoozak-backend/internal/stock/events"
	stockrepo "github.com/yoozak/yoozak-backend/internal/stock/repository"
	stockservice "github.com/yoozak/yoozak-backend/internal/stock/service"
	"github.com/yoozak/yoozak-backend/pkg/config"
	"github.com/yoozak/yoozak-backend/pkg/database"
	"github.com/yoozak/yoozak-backend/pkg/httputil"
	"github.com/yoozak/yoozak-backend/pkg/i18n"
	"github.com/yoozak/yoozak-backend/pkg/logger"
	"github.com/yoozak/yoozak-backend/pkg/messaging"
)

const serviceName = "yoozak-service"

// publishers groups the event publishers; all nil when no broker is reachable
type publishers struct {
	catalog *catalogevents.CatalogEventPublisher
	stock   *stockevents.StockEventPublisher
	orders  *orderevents.OrderEventPublisher
}

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(serviceName, cfg.Server.Environment)
	log.Info().Msg("starting Yoozak service")

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := db.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to apply migrations")
	}

	// The broker is optional in development; events are then dropped
	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		if cfg.Server.Environment != config.EnvDevelopment {
			log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
		}
		log.Warn().Err(err).Msg("RabbitMQ unavailable, running without events")
		rmq = nil
	}
	if rmq != nil {
		defer rmq.Close()
	}

	pubs := newPublishers(rmq, log)

	// Repositories
	articleRepo := catalogrepo.NewArticleRepository(db)
	variantRepo := catalogrepo.NewVariantRepository(db)
	promotionRepo := catalogrepo.NewPromotionRepository(db)
	kpiRepo := kpirepo.NewKPIRepository(db)

	// Services
	catalogService := catalogservice.NewCatalogService(db, articleRepo, variantRepo, promotionRepo,
		pubs.catalog, cfg.Stock.DefaultLowStockThreshold, log)
	stockService := stockservice.NewStockService(db,
		stockrepo.NewMovementRepository(db),
		stockrepo.NewAlertRepository(db),
		stockrepo.NewLevelRepository(db),
		pubs.stock, log)
	orderService := orderservice.NewOrderService(db, orderrepo.NewOrderRepository(db),
		articleRepo, variantRepo, stockService, pubs.orders, cfg.Import.MaxRows, log)
	kpiService := kpiservice.NewKPIService(kpiRepo, log)
	jwtManager := jwt.NewManager(&cfg.JWT)
	operatorService := operatorservice.NewOperatorService(operatorrepo.NewOperatorRepository(db), jwtManager, log)

	// Background work
	scheduler := catalogservice.NewPriceScheduler(catalogService, cfg.Promotions.RecomputeInterval, log)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	if rmq != nil {
		kpiConsumer, err := kpiconsumers.NewOrderEventConsumer(rmq, kpiRepo, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create KPI consumer")
		}
		if err := kpiConsumer.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to start KPI consumer")
		}
	}

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(correlate)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Language", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Content-Disposition", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(i18n.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		broker := map[string]string{"status": "disabled"}
		if rmq != nil {
			broker = rmq.Health()
		}
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  serviceName,
			"database": db.Health(r.Context()),
			"rabbitmq": broker,
		})
	})

	mountAPI(r, jwtManager, handlers{
		catalog:   catalogService,
		stock:     stockService,
		orders:    orderService,
		kpi:       kpiService,
		operators: operatorService,
	}, log)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Cancel context to stop the consumer and the scheduler
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func newPublishers(rmq *messaging.RabbitMQ, log *logger.Logger) publishers {
	if rmq == nil {
		return publishers{}
	}
	if err := rmq.DeclareDeadLetterQueue(serviceName); err != nil {
		log.Fatal().Err(err).Msg("failed to declare dead letter queue")
	}

	catalog, err := catalogevents.NewCatalogEventPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create catalog event publisher")
	}
	stock, err := stockevents.NewStockEventPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create stock event publisher")
	}
	orders, err := orderevents.NewOrderEventPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create order event publisher")
	}
	return publishers{catalog: catalog, stock: stock, orders: orders}
}
