package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/yoozak/yoozak-backend/internal/catalog/domain"
	"github.com/yoozak/yoozak-backend/internal/catalog/service"
	"github.com/yoozak/yoozak-backend/pkg/httputil"
	"github.com/yoozak/yoozak-backend/pkg/logger"
)

// PromotionHandler handles promotion endpoints
type PromotionHandler struct {
	service *service.CatalogService
	logger  *logger.Logger
}

// NewPromotionHandler creates a new promotion handler
func NewPromotionHandler(svc *service.CatalogService, log *logger.Logger) *PromotionHandler {
	return &PromotionHandler{
		service: svc,
		logger:  log,
	}
}

// ArticleIDsRequest names the articles to attach to or detach from a promotion
type ArticleIDsRequest struct {
	ArticleIDs []string `json:"article_ids" validate:"required,min=1,dive,uuid"`
}

// List lists promotions
func (h *PromotionHandler) List(w http.ResponseWriter, r *http.Request) {
	page := httputil.ParsePage(r)
	q := r.URL.Query()

	promos, total, err := h.service.ListPromotions(r.Context(), domain.PromotionFilter{
		ActiveOnly: q.Get("active") == "true",
		ArticleID:  q.Get("article_id"),
		Limit:      page.PerPage,
		Offset:     page.Offset(),
	})
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, promos, page.Meta(total))
}

// Create creates a promotion
func (h *PromotionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in service.PromotionInput
	if !decode(w, r, &in) {
		return
	}

	promo, err := h.service.CreatePromotion(r.Context(), &in)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.Created(w, promo)
}

// Get gets a promotion
func (h *PromotionHandler) Get(w http.ResponseWriter, r *http.Request) {
	promo, err := h.service.GetPromotion(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, promo)
}

// Update updates a promotion
func (h *PromotionHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in service.PromotionInput
	if !decode(w, r, &in) {
		return
	}

	promo, err := h.service.UpdatePromotion(r.Context(), chi.URLParam(r, "id"), &in)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, promo)
}

// Delete deletes a promotion and restores its articles' prices
func (h *PromotionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeletePromotion(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.NoContent(w)
}

// Activate activates a promotion
func (h *PromotionHandler) Activate(w http.ResponseWriter, r *http.Request) {
	promo, err := h.service.ActivatePromotion(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, promo)
}

// Deactivate deactivates a promotion
func (h *PromotionHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	promo, err := h.service.DeactivatePromotion(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, promo)
}

// AttachArticles adds articles to a promotion
func (h *PromotionHandler) AttachArticles(w http.ResponseWriter, r *http.Request) {
	var req ArticleIDsRequest
	if !decode(w, r, &req) {
		return
	}

	promo, err := h.service.AttachArticles(r.Context(), chi.URLParam(r, "id"), req.ArticleIDs)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, promo)
}

// DetachArticles removes articles from a promotion
func (h *PromotionHandler) DetachArticles(w http.ResponseWriter, r *http.Request) {
	var req ArticleIDsRequest
	if !decode(w, r, &req) {
		return
	}

	promo, err := h.service.DetachArticles(r.Context(), chi.URLParam(r, "id"), req.ArticleIDs)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, promo)
}
