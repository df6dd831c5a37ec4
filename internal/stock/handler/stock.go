package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/yoozak/yoozak-backend/internal/stock/domain"
	"github.com/yoozak/yoozak-backend/internal/stock/service"
	"github.com/yoozak/yoozak-backend/pkg/errors"
	"github.com/yoozak/yoozak-backend/pkg/httputil"
	"github.com/yoozak/yoozak-backend/pkg/logger"
	"github.com/yoozak/yoozak-backend/pkg/tabular"
)

// StockHandler handles stock movement, level and alert endpoints
type StockHandler struct {
	service *service.StockService
	logger  *logger.Logger
}

// NewStockHandler creates a new stock handler
func NewStockHandler(svc *service.StockService, log *logger.Logger) *StockHandler {
	return &StockHandler{
		service: svc,
		logger:  log,
	}
}

// CreateMovement applies a multi-variant movement
func (h *StockHandler) CreateMovement(w http.ResponseWriter, r *http.Request) {
	var req domain.MovementRequest
	if err := httputil.DecodeJSONLocalized(r, &req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	movements, err := h.service.CreateMovement(r.Context(), &req)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.Created(w, movements)
}

// ListMovements lists movements
func (h *StockHandler) ListMovements(w http.ResponseWriter, r *http.Request) {
	page := httputil.ParsePage(r)
	q := r.URL.Query()

	f := domain.MovementFilter{
		ArticleID: q.Get("article_id"),
		VariantID: q.Get("variant_id"),
		Type:      domain.MovementType(q.Get("type")),
		OrderID:   q.Get("order_id"),
		Limit:     page.PerPage,
		Offset:    page.Offset(),
	}
	if q.Get("from") != "" || q.Get("to") != "" {
		from, to, err := httputil.ParseDateRange(r, time.Now())
		if err != nil {
			httputil.ErrorLocalized(w, r, err)
			return
		}
		f.From, f.To = &from, &to
	}

	movements, total, err := h.service.ListMovements(r.Context(), f)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, movements, page.Meta(total))
}

// Levels lists stock per article and variant
func (h *StockHandler) Levels(w http.ResponseWriter, r *http.Request) {
	page := httputil.ParsePage(r)
	f := levelFilter(r)
	f.Limit, f.Offset = page.PerPage, page.Offset()

	levels, total, err := h.service.StockLevels(r.Context(), f)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, levels, page.Meta(total))
}

// Export downloads stock levels as CSV or XLSX
func (h *StockHandler) Export(w http.ResponseWriter, r *http.Request) {
	format, err := tabular.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		httputil.ErrorLocalized(w, r, errors.BadRequest(err.Error()))
		return
	}

	table, err := h.service.LevelsTable(r.Context(), levelFilter(r))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	basename := "stock-" + time.Now().Format("2006-01-02")
	if err := tabular.Serve(w, basename, format, table); err != nil {
		h.logger.Error().Err(err).Msg("failed to write stock export")
	}
}

// ListAlerts lists stock alerts
func (h *StockHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	page := httputil.ParsePage(r)
	q := r.URL.Query()

	var acknowledged *bool
	if ack := q.Get("acknowledged"); ack != "" {
		a := ack == "true"
		acknowledged = &a
	}

	alerts, total, err := h.service.ListAlerts(r.Context(), domain.AlertFilter{
		Acknowledged: acknowledged,
		AlertType:    q.Get("type"),
		ArticleID:    q.Get("article_id"),
		Limit:        page.PerPage,
		Offset:       page.Offset(),
	})
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, alerts, page.Meta(total))
}

// AcknowledgeAlert acknowledges an alert
func (h *StockHandler) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	alert, err := h.service.AcknowledgeAlert(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, alert)
}

func levelFilter(r *http.Request) domain.LevelFilter {
	q := r.URL.Query()
	return domain.LevelFilter{
		Search:       q.Get("search"),
		Category:     q.Get("category"),
		LowStockOnly: q.Get("low_stock") == "true",
	}
}
