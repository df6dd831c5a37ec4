package handler

import (
	"net/http"
	"time"

	"github.com/yoozak/yoozak-backend/internal/kpi/domain"
	"github.com/yoozak/yoozak-backend/internal/kpi/service"
	"github.com/yoozak/yoozak-backend/pkg/errors"
	"github.com/yoozak/yoozak-backend/pkg/httputil"
	"github.com/yoozak/yoozak-backend/pkg/logger"
	"github.com/yoozak/yoozak-backend/pkg/tabular"
)

// KPIHandler serves the reporting endpoints
type KPIHandler struct {
	service *service.KPIService
	logger  *logger.Logger
	now     func() time.Time
}

// NewKPIHandler creates a new KPI handler
func NewKPIHandler(svc *service.KPIService, log *logger.Logger) *KPIHandler {
	return &KPIHandler{service: svc, logger: log, now: time.Now}
}

func (h *KPIHandler) parseRange(w http.ResponseWriter, r *http.Request) (domain.Range, bool) {
	from, to, err := httputil.ParseDateRange(r, h.now())
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return domain.Range{}, false
	}
	return domain.Range{From: from, To: to}, true
}

// Dashboard returns the headline figures
func (h *KPIHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	rng, ok := h.parseRange(w, r)
	if !ok {
		return
	}

	d, err := h.service.Dashboard(r.Context(), rng)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, d)
}

// Operators returns confirmation operator performance
func (h *KPIHandler) Operators(w http.ResponseWriter, r *http.Request) {
	rng, ok := h.parseRange(w, r)
	if !ok {
		return
	}

	perf, err := h.service.OperatorPerformance(r.Context(), rng)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, perf)
}

// Daily returns the daily counters
func (h *KPIHandler) Daily(w http.ResponseWriter, r *http.Request) {
	rng, ok := h.parseRange(w, r)
	if !ok {
		return
	}

	metrics, err := h.service.Daily(r.Context(), rng)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, metrics)
}

// Export downloads a report (?report=dashboard|operators|daily) as CSV or XLSX
func (h *KPIHandler) Export(w http.ResponseWriter, r *http.Request) {
	format, err := tabular.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		httputil.ErrorLocalized(w, r, errors.BadRequest(err.Error()))
		return
	}
	rng, ok := h.parseRange(w, r)
	if !ok {
		return
	}

	report := r.URL.Query().Get("report")
	table, err := h.service.Export(r.Context(), report, rng)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	if report == "" {
		report = service.ReportDashboard
	}
	basename := "kpi-" + report + "-" + rng.From.Format("20060102")
	if err := tabular.Serve(w, basename, format, table); err != nil {
		h.logger.Error().Err(err).Msg("failed to write kpi export")
	}
}
