package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/yoozak/yoozak-backend/internal/operator/domain"
	"github.com/yoozak/yoozak-backend/internal/operator/service"
	"github.com/yoozak/yoozak-backend/pkg/httputil"
	"github.com/yoozak/yoozak-backend/pkg/logger"
)

// OperatorHandler handles sign-in and operator administration
type OperatorHandler struct {
	service *service.OperatorService
	logger  *logger.Logger
}

// NewOperatorHandler creates a new operator handler
func NewOperatorHandler(svc *service.OperatorService, log *logger.Logger) *OperatorHandler {
	return &OperatorHandler{
		service: svc,
		logger:  log,
	}
}

// Login handles operator login
func (h *OperatorHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req service.LoginRequest
	if !decode(w, r, &req) {
		return
	}

	response, err := h.service.Login(r.Context(), &req)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, response)
}

// Me returns the authenticated operator
func (h *OperatorHandler) Me(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Me(r.Context())
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, p)
}

// List lists operators
func (h *OperatorHandler) List(w http.ResponseWriter, r *http.Request) {
	page := httputil.ParsePage(r)
	q := r.URL.Query()

	f := domain.Filter{
		Role:   q.Get("role"),
		Search: q.Get("search"),
		Limit:  page.PerPage,
		Offset: page.Offset(),
	}
	if v := q.Get("active"); v != "" {
		active := v == "true"
		f.Active = &active
	}

	operators, total, err := h.service.List(r.Context(), f)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, operators, page.Meta(total))
}

// Create creates an operator
func (h *OperatorHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CreateRequest
	if !decode(w, r, &req) {
		return
	}

	o, err := h.service.Create(r.Context(), &req)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.Created(w, o)
}

// Get gets an operator
func (h *OperatorHandler) Get(w http.ResponseWriter, r *http.Request) {
	o, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, o)
}

// Update updates an operator
func (h *OperatorHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateRequest
	if !decode(w, r, &req) {
		return
	}

	o, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, o)
}

// Delete deactivates an operator
func (h *OperatorHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Deactivate(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.NoContent(w)
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
