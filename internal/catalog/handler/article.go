package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/yoozak/yoozak-backend/internal/catalog/domain"
	"github.com/yoozak/yoozak-backend/internal/catalog/service"
	"github.com/yoozak/yoozak-backend/pkg/httputil"
	"github.com/yoozak/yoozak-backend/pkg/logger"
)

// ArticleHandler handles article and variant endpoints
type ArticleHandler struct {
	service *service.CatalogService
	logger  *logger.Logger
}

// NewArticleHandler creates a new article handler
func NewArticleHandler(svc *service.CatalogService, log *logger.Logger) *ArticleHandler {
	return &ArticleHandler{
		service: svc,
		logger:  log,
	}
}

// List lists articles
func (h *ArticleHandler) List(w http.ResponseWriter, r *http.Request) {
	page := httputil.ParsePage(r)
	q := r.URL.Query()

	articles, total, err := h.service.ListArticles(r.Context(), domain.ArticleFilter{
		Search:          q.Get("search"),
		Category:        q.Get("category"),
		Phase:           domain.Phase(q.Get("phase")),
		LowStockOnly:    q.Get("low_stock") == "true",
		IncludeInactive: q.Get("include_inactive") == "true",
		Limit:           page.PerPage,
		Offset:          page.Offset(),
	})
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, articles, page.Meta(total))
}

// Create creates an article
func (h *ArticleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in service.ArticleInput
	if !decode(w, r, &in) {
		return
	}

	article, err := h.service.CreateArticle(r.Context(), &in)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.Created(w, article)
}

// Get gets an article with its variants
func (h *ArticleHandler) Get(w http.ResponseWriter, r *http.Request) {
	article, err := h.service.GetArticle(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, article)
}

// Update updates an article and reprices it
func (h *ArticleHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in service.ArticleInput
	if !decode(w, r, &in) {
		return
	}

	article, err := h.service.UpdateArticle(r.Context(), chi.URLParam(r, "id"), &in)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, article)
}

// Delete deactivates an article
func (h *ArticleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteArticle(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.NoContent(w)
}

// ListVariants lists the variants of an article
func (h *ArticleHandler) ListVariants(w http.ResponseWriter, r *http.Request) {
	variants, err := h.service.ListVariants(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, variants)
}

// CreateVariant adds a variant to an article
func (h *ArticleHandler) CreateVariant(w http.ResponseWriter, r *http.Request) {
	var in service.VariantInput
	if !decode(w, r, &in) {
		return
	}

	variant, err := h.service.CreateVariant(r.Context(), chi.URLParam(r, "id"), &in)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.Created(w, variant)
}

// LookupVariant finds a variant by barcode or by reference/size/color
func (h *ArticleHandler) LookupVariant(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	variant, err := h.service.LookupVariant(r.Context(), q.Get("barcode"), q.Get("reference"), q.Get("size"), q.Get("color"))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, variant)
}

// DeleteVariant deletes an empty variant
func (h *ArticleHandler) DeleteVariant(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteVariant(r.Context(), chi.URLParam(r, "id")); err != nil {
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
