package handlers

import (
	"net/http"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/diewo77/go-billdesk/httpx"
	"github.com/diewo77/go-billdesk/internal/services"
)

type ProductHandler struct {
	catalog *services.CatalogService
	logger  *zap.Logger
}

func NewProductHandler(catalog *services.CatalogService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{catalog: catalog, logger: logger}
}

// Create adds a product or merges it into the existing (name, variant) record.
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in services.ProductFields
	if err := httpx.Decode(r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	p, created, err := h.catalog.UpsertProduct(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	httpx.JSON(w, status, p)
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.ListProducts(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, products)
}

func (h *ProductHandler) Search(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.SearchProducts(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, products)
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.GetProduct(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in services.ProductUpdate
	if err := httpx.Decode(r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	p, err := h.catalog.UpdateProduct(r.Context(), r.PathValue("id"), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.DeleteProduct(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProductHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, services.ErrDuplicateKey) {
		httpx.JSONError(w, http.StatusConflict, "product_already_exists", nil)
		return
	}
	writeError(w, r, h.logger, err)
}
