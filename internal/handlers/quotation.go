package handlers

import (
	"net/http"

	"github.com/diewo77/go-billing/httpx"
	"github.com/diewo77/go-billing/internal/services"
)

type QuotationHandler struct {
	svc  *services.Services
	docs *Documents
}

func NewQuotationHandler(svc *services.Services, docs *Documents) *QuotationHandler {
	return &QuotationHandler{svc: svc, docs: docs}
}

// List: GET /quotations
func (h *QuotationHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant(w, r)
	if !ok {
		return
	}
	page, err := h.svc.Quotations.List(r.Context(), tenantID, listFilter(r))
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

// Create: POST /quotations
func (h *QuotationHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant(w, r)
	if !ok {
		return
	}
	var in services.QuotationInput
	if !httpx.Decode(w, r, &in) {
		return
	}
	q, err := h.svc.Quotations.Create(r.Context(), tenantID, in)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, q)
}

// Get: GET /quotations/{id}
func (h *QuotationHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, id, ok := scope(w, r)
	if !ok {
		return
	}
	q, err := h.svc.Quotations.Get(r.Context(), tenantID, id)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

// Update: PUT /quotations/{id}
func (h *QuotationHandler) Update(w http.ResponseWriter, r *http.Request) {
	tenantID, id, ok := scope(w, r)
	if !ok {
		return
	}
	var in services.QuotationInput
	if !httpx.Decode(w, r, &in) {
		return
	}
	q, err := h.svc.Quotations.Update(r.Context(), tenantID, id, in)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

// Delete: DELETE /quotations/{id}
func (h *QuotationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tenantID, id, ok := scope(w, r)
	if !ok {
		return
	}
	if err := h.svc.Quotations.Delete(r.Context(), tenantID, id); err != nil {
		httpx.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Send: POST /quotations/{id}/send
func (h *QuotationHandler) Send(w http.ResponseWriter, r *http.Request) {
	tenantID, id, ok := scope(w, r)
	if !ok {
		return
	}
	q, err := h.svc.Quotations.MarkSent(r.Context(), tenantID, id)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

// Reject: POST /quotations/{id}/reject
func (h *QuotationHandler) Reject(w http.ResponseWriter, r *http.Request) {
	tenantID, id, ok := scope(w, r)
	if !ok {
		return
	}
	q, err := h.svc.Quotations.Reject(r.Context(), tenantID, id)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

// Cancel: POST /quotations/{id}/cancel with an optional {"reason"}.
func (h *QuotationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	tenantID, id, ok := scope(w, r)
	if !ok {
		return
	}
	reason, ok := decodeReason(w, r)
	if !ok {
		return
	}
	q, err := h.svc.Quotations.Cancel(r.Context(), tenantID, id, reason)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

// Convert: POST /quotations/{id}/convert. 201 when the invoice was created by
// this call, 200 when the quotation had already been converted.
func (h *QuotationHandler) Convert(w http.ResponseWriter, r *http.Request) {
	tenantID, id, ok := scope(w, r)
	if !ok {
		return
	}
	res, err := h.svc.Conversions.Convert(r.Context(), tenantID, id)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	httpx.JSON(w, status, res)
}

// Prefill: GET /quotations/{id}/prefill
func (h *QuotationHandler) Prefill(w http.ResponseWriter, r *http.Request) {
	tenantID, id, ok := scope(w, r)
	if !ok {
		return
	}
	p, err := h.svc.Conversions.Prefill(r.Context(), tenantID, id)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

// PDF: GET /quotations/{id}/pdf
func (h *QuotationHandler) PDF(w http.ResponseWriter, r *http.Request) {
	tenantID, id, ok := scope(w, r)
	if !ok {
		return
	}
	q, err := h.svc.Quotations.Get(r.Context(), tenantID, id)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	org, err := h.docs.organization(r.Context(), tenantID)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	doc, err := h.docs.renderer.Quotation(org, q)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	writePDF(w, doc)
}
