package handler

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/yoozak/yoozak-backend/internal/orders/domain"
	"github.com/yoozak/yoozak-backend/internal/orders/service"
	"github.com/yoozak/yoozak-backend/pkg/errors"
	"github.com/yoozak/yoozak-backend/pkg/httputil"
	"github.com/yoozak/yoozak-backend/pkg/logger"
	"github.com/yoozak/yoozak-backend/pkg/tabular"
)

// maxUploadSize bounds import uploads held in memory
const maxUploadSize = 10 << 20

// OrderHandler handles order endpoints
type OrderHandler struct {
	service *service.OrderService
	logger  *logger.Logger
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(svc *service.OrderService, log *logger.Logger) *OrderHandler {
	return &OrderHandler{
		service: svc,
		logger:  log,
	}
}

// List lists orders
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	page := httputil.ParsePage(r)
	q := r.URL.Query()

	f := domain.Filter{
		Status:     domain.Status(q.Get("status")),
		OperatorID: q.Get("operator_id"),
		City:       q.Get("city"),
		Search:     q.Get("search"),
		Limit:      page.PerPage,
		Offset:     page.Offset(),
	}
	if q.Get("from") != "" || q.Get("to") != "" {
		from, to, err := httputil.ParseDateRange(r, time.Now())
		if err != nil {
			httputil.ErrorLocalized(w, r, err)
			return
		}
		f.From, f.To = &from, &to
	}

	orders, total, err := h.service.ListOrders(r.Context(), f)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, orders, page.Meta(total))
}

// Create creates a manual order
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in service.OrderInput
	if !decode(w, r, &in) {
		return
	}

	o, err := h.service.CreateOrder(r.Context(), &in)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.Created(w, o)
}

// Get returns an order with its lines
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	o, err := h.service.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, o)
}

// Movements returns the stock movements recorded against an order
func (h *OrderHandler) Movements(w http.ResponseWriter, r *http.Request) {
	movements, err := h.service.Movements(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, movements)
}

// History returns an order's status changes
func (h *OrderHandler) History(w http.ResponseWriter, r *http.Request) {
	history, err := h.service.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, history)
}

// Transition moves an order to another status
func (h *OrderHandler) Transition(w http.ResponseWriter, r *http.Request) {
	var req domain.TransitionRequest
	if !decode(w, r, &req) {
		return
	}

	o, err := h.service.Transition(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, o)
}

// Assign hands a batch of orders to a confirmation operator
func (h *OrderHandler) Assign(w http.ResponseWriter, r *http.Request) {
	var req service.AssignRequest
	if !decode(w, r, &req) {
		return
	}

	orders, err := h.service.AssignOrders(r.Context(), &req)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, orders)
}

// Import creates orders from an uploaded CSV or XLSX file. The file is read
// from the multipart field "file", or from the raw body with ?format=.
func (h *OrderHandler) Import(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	var (
		body   io.Reader
		format string
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, header, err := r.FormFile("file")
		if err != nil {
			httputil.ErrorLocalized(w, r, errors.BadRequest("multipart field \"file\" is required"))
			return
		}
		defer file.Close()
		body, format = file, tabular.FormatFromFilename(header.Filename)
	} else {
		f, err := tabular.ParseFormat(r.URL.Query().Get("format"))
		if err != nil {
			httputil.ErrorLocalized(w, r, errors.BadRequest(err.Error()))
			return
		}
		body, format = r.Body, f
	}

	report, err := h.service.ImportOrders(r.Context(), body, format)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, report)
}

// ImportTemplate downloads an empty import sheet
func (h *OrderHandler) ImportTemplate(w http.ResponseWriter, r *http.Request) {
	format, err := tabular.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		httputil.ErrorLocalized(w, r, errors.BadRequest(err.Error()))
		return
	}
	if err := tabular.Serve(w, "orders-import", format, service.ImportTemplate()); err != nil {
		h.logger.Error().Err(err).Msg("failed to write import template")
	}
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := httputil.DecodeJSONLocalized(r, v); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return false
	}
	if err := httputil.Validate(v); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return false
	}
	return true
}
