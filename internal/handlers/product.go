package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/diewo77/nexusbilling/httpx"
	"github.com/diewo77/nexusbilling/internal/metrics"
	"github.com/diewo77/nexusbilling/internal/models"
	"github.com/diewo77/nexusbilling/internal/services"
	"github.com/diewo77/nexusbilling/internal/view"
	"github.com/diewo77/nexusbilling/validation"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProductHandler serves the catalog pages and API.
type ProductHandler struct {
	catalog *services.CatalogService
	view    *view.Renderer
	metrics *metrics.Metrics
	log     *zap.Logger
}

func NewProductHandler(catalog *services.CatalogService, v *view.Renderer, m *metrics.Metrics, log *zap.Logger) *ProductHandler {
	return &ProductHandler{catalog: catalog, view: v, metrics: m, log: log}
}

// List: GET /products – HTML or JSON
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.ListAll(r.Context())
	if err != nil {
		if httpx.WantsJSON(r) {
			jsonFail(w, h.log, err)
			return
		}
		htmlFail(w, r, h.log, err, "/")
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{"items": products, "total": len(products)})
		return
	}
	var editing *models.Product
	if raw := r.URL.Query().Get("edit"); raw != "" {
		id, _ := strconv.ParseUint(raw, 10, 64)
		for i := range products {
			if uint64(products[i].ID) == id {
				editing = &products[i]
			}
		}
	}
	h.render(w, r, http.StatusOK, products, editing, nil)
}

func (h *ProductHandler) render(w http.ResponseWriter, r *http.Request, status int, products []models.Product, editing *models.Product, errs validation.Violations) {
	data := map[string]any{
		"Products": products,
		"Editing":  editing,
		"Flash":    popFlash(w, r),
	}
	if !errs.Empty() {
		data["Errors"] = errs
	}
	if err := h.view.Render(w, status, "products.html", data); err != nil {
		h.log.Error("render products", zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// Save: POST /products – JSON or form. Creates, or updates when an id is given.
func (h *ProductHandler) Save(w http.ResponseWriter, r *http.Request) {
	wantJSON := httpx.IsJSONBody(r) || httpx.WantsJSON(r)
	var in services.ProductInput
	if httpx.IsJSONBody(r) {
		if err := httpx.DecodeJSON(r, &in); err != nil {
			httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
			return
		}
	} else {
		var bad validation.Violations
		in, bad = productFromForm(r)
		if !bad.Empty() {
			h.rejectForm(w, r, in, bad)
			return
		}
	}

	p, err := h.catalog.Save(r.Context(), in)
	if err != nil {
		if wantJSON {
			jsonFail(w, h.log, err)
			return
		}
		if ve, ok := services.IsValidation(err); ok {
			h.rejectForm(w, r, in, ve.Violations)
			return
		}
		htmlFail(w, r, h.log, err, "/products")
		return
	}

	op, status := "create", http.StatusCreated
	if in.ID != nil {
		op, status = "update", http.StatusOK
	}
	h.metrics.ProductsSaved.WithLabelValues(op).Inc()
	if wantJSON {
		httpx.JSON(w, status, p)
		return
	}
	redirectWithFlash(w, r, "/products", "Product \""+p.Name+"\" saved")
}

func (h *ProductHandler) rejectForm(w http.ResponseWriter, r *http.Request, in services.ProductInput, errs validation.Violations) {
	if httpx.WantsJSON(r) {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", errs)
		return
	}
	products, err := h.catalog.ListAll(r.Context())
	if err != nil {
		htmlFail(w, r, h.log, err, "/")
		return
	}
	editing := &models.Product{Name: in.Name, UnitPrice: in.UnitPrice, SKU: in.SKU, Category: in.Category}
	if in.ID != nil {
		editing.ID = *in.ID
	}
	h.render(w, r, http.StatusBadRequest, products, editing, errs)
}

func productFromForm(r *http.Request) (services.ProductInput, validation.Violations) {
	v := validation.Violations{}
	if err := r.ParseForm(); err != nil {
		v.Add("_", "invalid_form")
		return services.ProductInput{}, v
	}
	in := services.ProductInput{
		Name:     r.PostForm.Get("name"),
		SKU:      r.PostForm.Get("sku"),
		Category: r.PostForm.Get("category"),
	}
	if raw := strings.TrimSpace(r.PostForm.Get("id")); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || id == 0 {
			v.Add("id", "invalid")
		} else {
			u := uint(id)
			in.ID = &u
		}
	}
	price, err := decimal.NewFromString(strings.TrimSpace(r.PostForm.Get("unit_price")))
	if err != nil {
		v.Add("unit_price", "invalid_number")
	}
	in.UnitPrice = price
	return in, v
}

// Delete: POST /products/{id}/delete or DELETE /products/{id}
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	if err := h.catalog.Remove(r.Context(), id); err != nil {
		if httpx.WantsJSON(r) {
			jsonFail(w, h.log, err)
			return
		}
		htmlFail(w, r, h.log, err, "/products")
		return
	}
	h.metrics.ProductsRemoved.Inc()
	if httpx.WantsJSON(r) || r.Method == http.MethodDelete {
		httpx.JSON(w, http.StatusOK, map[string]any{"id": id, "status": "deleted"})
		return
	}
	redirectWithFlash(w, r, "/products", "Product deleted")
}
