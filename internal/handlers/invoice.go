package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/diewo77/nexusbilling/httpx"
	"github.com/diewo77/nexusbilling/internal/metrics"
	"github.com/diewo77/nexusbilling/internal/models"
	"github.com/diewo77/nexusbilling/internal/pdf"
	"github.com/diewo77/nexusbilling/internal/services"
	"github.com/diewo77/nexusbilling/internal/view"
	"github.com/diewo77/nexusbilling/validation"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// InvoiceHandler mirrors the dual-format pattern of ProductHandler.
type InvoiceHandler struct {
	invoices *services.InvoiceService
	catalog  *services.CatalogService
	view     *view.Renderer
	metrics  *metrics.Metrics
	log      *zap.Logger
}

func NewInvoiceHandler(invoices *services.InvoiceService, catalog *services.CatalogService, v *view.Renderer, m *metrics.Metrics, log *zap.Logger) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices, catalog: catalog, view: v, metrics: m, log: log}
}

// List: GET / and GET /invoices – filtered invoices plus dashboard stats.
func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	// unknown values, including "All", do not filter
	status, _ := models.ParseInvoiceStatus(r.URL.Query().Get("status"))

	invs, err := h.invoices.Search(r.Context(), services.Filter{Query: query, Status: status})
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	stats, err := h.invoices.Stats(r.Context())
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{"items": invs, "stats": stats, "query": query, "status": status})
		return
	}
	h.render(w, http.StatusOK, "dashboard.html", map[string]any{
		"Invoices": invs,
		"Stats":    stats,
		"Query":    query,
		"Status":   status,
		"Statuses": models.InvoiceStatuses,
		"Flash":    popFlash(w, r),
	})
}

// New: GET /invoices/new – the composition form, dated today.
func (h *InvoiceHandler) New(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, http.StatusOK, services.InvoiceInput{IssueDate: models.Today().String()}, "0", nil)
}

func (h *InvoiceHandler) renderForm(w http.ResponseWriter, r *http.Request, status int, in services.InvoiceInput, taxRate string, errs validation.Violations) {
	products, err := h.catalog.ListAll(r.Context())
	if err != nil {
		htmlFail(w, r, h.log, err, "/")
		return
	}
	data := map[string]any{
		"Form":     in,
		"TaxRate":  taxRate,
		"Products": products,
		"Flash":    popFlash(w, r),
	}
	if !errs.Empty() {
		data["Errors"] = errs
	}
	h.render(w, status, "invoice_new.html", data)
}

// Create: POST /invoices – JSON or form.
func (h *InvoiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	wantJSON := httpx.IsJSONBody(r) || httpx.WantsJSON(r)
	var (
		in      services.InvoiceInput
		taxRate string
	)
	if httpx.IsJSONBody(r) {
		var req invoiceRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
			return
		}
		var bad validation.Violations
		in, bad = req.input()
		if !bad.Empty() {
			httpx.JSONError(w, http.StatusBadRequest, "validation_failed", bad)
			return
		}
	} else {
		var bad validation.Violations
		in, bad = invoiceFromForm(r)
		taxRate = r.PostForm.Get("tax_rate")
		if !bad.Empty() {
			if wantJSON {
				httpx.JSONError(w, http.StatusBadRequest, "validation_failed", bad)
				return
			}
			h.renderForm(w, r, http.StatusBadRequest, in, taxRate, bad)
			return
		}
	}

	inv, err := h.invoices.Create(r.Context(), in)
	if err != nil {
		if ve, ok := services.IsValidation(err); ok && !wantJSON {
			h.renderForm(w, r, http.StatusBadRequest, in, taxRate, ve.Violations)
			return
		}
		h.fail(w, r, err, "/invoices/new")
		return
	}
	h.metrics.InvoicesCreated.Inc()
	if wantJSON {
		httpx.JSON(w, http.StatusCreated, map[string]any{
			"id":           inv.ID,
			"status":       inv.Status,
			"subtotal":     inv.Subtotal.StringFixed(2),
			"tax_amount":   inv.TaxAmount.StringFixed(2),
			"total_amount": inv.TotalAmount.StringFixed(2),
		})
		return
	}
	redirectWithFlash(w, r, fmt.Sprintf("/invoices/%d", inv.ID), fmt.Sprintf("Invoice #%d created", inv.ID))
}

// invoiceRequest is the JSON body of POST /invoices. Amounts computed by
// the client are accepted and ignored; the total is cross-checked by the
// service.
type invoiceRequest struct {
	services.InvoiceInput
	Items     []lineRequest    `json:"items"`
	Subtotal  *decimal.Decimal `json:"subtotal,omitempty"`
	TaxAmount *decimal.Decimal `json:"tax_amount,omitempty"`
}

type lineRequest struct {
	services.LineInput
	Quantity json.Number      `json:"quantity"`
	Subtotal *decimal.Decimal `json:"subtotal,omitempty"`
}

// input converts the body, reporting a fractional quantity as a field
// error instead of a decode failure.
func (req invoiceRequest) input() (services.InvoiceInput, validation.Violations) {
	v := validation.Violations{}
	in := req.InvoiceInput
	in.Items = make([]services.LineInput, 0, len(req.Items))
	for i, l := range req.Items {
		line := l.LineInput
		if raw := l.Quantity.String(); raw != "" {
			qty, err := strconv.Atoi(raw)
			if err != nil {
				v.Add(fmt.Sprintf("items[%d].quantity", i), "must_be_integer")
			}
			line.Quantity = qty
		}
		in.Items = append(in.Items, line)
	}
	return in, v
}

// invoiceFromForm reads the header fields and the parallel item_* lists.
// Lines with neither a product nor a description are ignored.
func invoiceFromForm(r *http.Request) (services.InvoiceInput, validation.Violations) {
	v := validation.Violations{}
	if err := r.ParseForm(); err != nil {
		v.Add("_", "invalid_form")
		return services.InvoiceInput{}, v
	}
	f := r.PostForm
	in := services.InvoiceInput{
		CustomerName:  f.Get("customer_name"),
		CustomerEmail: f.Get("customer_email"),
		IssueDate:     f.Get("issue_date"),
		DueDate:       f.Get("due_date"),
	}
	if raw := strings.TrimSpace(f.Get("tax_rate")); raw != "" {
		rate, err := decimal.NewFromString(raw)
		if err != nil {
			v.Add("tax_rate", "invalid_number")
		}
		in.TaxRate = rate
	}
	if raw := strings.TrimSpace(f.Get("total_amount")); raw != "" {
		if claimed, err := decimal.NewFromString(raw); err == nil {
			in.ClaimedTotal = &claimed
		}
	}

	products := f["item_product_id"]
	descriptions := f["item_description"]
	quantities := f["item_quantity"]
	prices := f["item_unit_price"]
	at := func(list []string, i int) string {
		if i < len(list) {
			return strings.TrimSpace(list[i])
		}
		return ""
	}
	rows := max(len(products), len(descriptions), len(quantities), len(prices))
	for i := 0; i < rows; i++ {
		pid, desc := at(products, i), at(descriptions, i)
		if pid == "" && desc == "" {
			continue
		}
		prefix := fmt.Sprintf("items[%d].", len(in.Items))
		line := services.LineInput{Description: desc}
		if pid != "" {
			n, err := strconv.ParseUint(pid, 10, 64)
			if err != nil {
				v.Add(prefix+"product_id", "invalid")
			} else {
				id := uint(n)
				line.ProductID = &id
			}
		}
		qty, err := strconv.Atoi(at(quantities, i))
		if err != nil {
			v.Add(prefix+"quantity", "must_be_integer")
		}
		line.Quantity = qty
		price, err := decimal.NewFromString(at(prices, i))
		if err != nil {
			v.Add(prefix+"unit_price", "invalid_number")
		}
		line.UnitPrice = price
		in.Items = append(in.Items, line)
	}
	return in, v
}

// Show: GET /invoices/{id} – printable detail page or JSON.
func (h *InvoiceHandler) Show(w http.ResponseWriter, r *http.Request) {
	inv, ok := h.load(w, r)
	if !ok {
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, inv)
		return
	}
	h.render(w, http.StatusOK, "invoice_view.html", map[string]any{
		"Invoice":  inv,
		"Statuses": models.InvoiceStatuses,
		"Flash":    popFlash(w, r),
	})
}

// PDF: GET /invoices/{id}/pdf
func (h *InvoiceHandler) PDF(w http.ResponseWriter, r *http.Request) {
	inv, ok := h.load(w, r)
	if !ok {
		return
	}
	data, err := pdf.InvoicePDF(pdf.FromInvoice(inv, h.view.Company()))
	if err != nil {
		h.log.Error("pdf generation failed", zap.Uint("id", inv.ID), zap.Error(err))
		httpx.JSONError(w, http.StatusInternalServerError, "pdf_generation_failed", nil)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"invoice-%d.pdf\"", inv.ID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *InvoiceHandler) load(w http.ResponseWriter, r *http.Request) (*models.Invoice, bool) {
	id, ok := idParam(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return nil, false
	}
	inv, err := h.invoices.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "/")
		return nil, false
	}
	return inv, true
}

// SetStatus: POST /invoices/{id}/status – form field or JSON {"status": "..."}.
func (h *InvoiceHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	var raw string
	if httpx.IsJSONBody(r) {
		var body struct {
			Status string `json:"status"`
		}
		if err := httpx.DecodeJSON(r, &body); err != nil {
			httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
			return
		}
		raw = body.Status
	} else {
		raw = r.FormValue("status")
	}
	status, ok := models.ParseInvoiceStatus(raw)
	if !ok {
		status = models.InvoiceStatus(raw)
	}

	if err := h.invoices.SetStatus(r.Context(), id, status); err != nil {
		h.fail(w, r, err, "/")
		return
	}
	h.metrics.StatusTransitions.WithLabelValues(string(status)).Inc()
	if httpx.IsJSONBody(r) || httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{"id": id, "status": status})
		return
	}
	redirectWithFlash(w, r, fmt.Sprintf("/invoices/%d", id), fmt.Sprintf("Invoice #%d marked %s", id, status))
}

// Delete: POST /invoices/{id}/delete or DELETE /invoices/{id}
func (h *InvoiceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	if err := h.invoices.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err, "/")
		return
	}
	h.metrics.InvoicesDeleted.Inc()
	if httpx.WantsJSON(r) || r.Method == http.MethodDelete {
		httpx.JSON(w, http.StatusOK, map[string]any{"id": id, "status": "deleted"})
		return
	}
	redirectWithFlash(w, r, "/", fmt.Sprintf("Invoice #%d deleted", id))
}

func (h *InvoiceHandler) fail(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	if httpx.IsJSONBody(r) || httpx.WantsJSON(r) || fallback == "" {
		jsonFail(w, h.log, err)
		return
	}
	htmlFail(w, r, h.log, err, fallback)
}

func (h *InvoiceHandler) render(w http.ResponseWriter, status int, page string, data map[string]any) {
	if err := h.view.Render(w, status, page, data); err != nil {
		h.log.Error("render", zap.String("page", page), zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
