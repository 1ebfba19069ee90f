package handlers

import (
	"net/http"

	"github.com/diewo77/go-billing/httpx"
	"github.com/diewo77/go-billing/internal/services"
)

type InvoiceHandler struct {
	svc  *services.Services
	docs *Documents
}

func NewInvoiceHandler(svc *services.Services, docs *Documents) *InvoiceHandler {
	return &InvoiceHandler{svc: svc, docs: docs}
}

// List: GET /invoices?status=&pay_status=&q=&page=&limit=
func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant(w, r)
	if !ok {
		return
	}
	page, err := h.svc.Invoices.List(r.Context(), tenantID, listFilter(r))
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

// Create: POST /invoices
func (h *InvoiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant(w, r)
	if !ok {
		return
	}
	var in services.InvoiceInput
	if !httpx.Decode(w, r, &in) {
		return
	}
	inv, err := h.svc.Invoices.Create(r.Context(), tenantID, in)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

// Get: GET /invoices/{id}
func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, id, ok := scope(w, r)
	if !ok {
		return
	}
	inv, err := h.svc.Invoices.Get(r.Context(), tenantID, id)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

// Update: PUT /invoices/{id}
func (h *InvoiceHandler) Update(w http.ResponseWriter, r *http.Request) {
	tenantID, id, ok := scope(w, r)
	if !ok {
		return
	}
	var in services.InvoiceInput
	if !httpx.Decode(w, r, &in) {
		return
	}
	inv, err := h.svc.Invoices.Update(r.Context(), tenantID, id, in)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

// Delete: DELETE /invoices/{id}
func (h *InvoiceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tenantID, id, ok := scope(w, r)
	if !ok {
		return
	}
	if err := h.svc.Invoices.Delete(r.Context(), tenantID, id); err != nil {
		httpx.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Send: POST /invoices/{id}/send
func (h *InvoiceHandler) Send(w http.ResponseWriter, r *http.Request) {
	tenantID, id, ok := scope(w, r)
	if !ok {
		return
	}
	inv, err := h.svc.Invoices.MarkSent(r.Context(), tenantID, id)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

// Draft: POST /invoices/{id}/draft
func (h *InvoiceHandler) Draft(w http.ResponseWriter, r *http.Request) {
	tenantID, id, ok := scope(w, r)
	if !ok {
		return
	}
	inv, err := h.svc.Invoices.MarkDraft(r.Context(), tenantID, id)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

// Cancel: POST /invoices/{id}/cancel. The response reports the cascade to a
// linked quotation; a failed cascade does not fail the request.
func (h *InvoiceHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	tenantID, id, ok := scope(w, r)
	if !ok {
		return
	}
	reason, ok := decodeReason(w, r)
	if !ok {
		return
	}
	res, err := h.svc.Invoices.Cancel(r.Context(), tenantID, id, reason)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

// PDF: GET /invoices/{id}/pdf
func (h *InvoiceHandler) PDF(w http.ResponseWriter, r *http.Request) {
	tenantID, id, ok := scope(w, r)
	if !ok {
		return
	}
	inv, err := h.svc.Invoices.Get(r.Context(), tenantID, id)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	org, err := h.docs.organization(r.Context(), tenantID)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	doc, err := h.docs.renderer.Invoice(org, &inv.Invoice)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	writePDF(w, doc)
}
