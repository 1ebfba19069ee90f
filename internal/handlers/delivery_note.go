package handlers

import (
	"net/http"

	"github.com/diewo77/go-billing/httpx"
	"github.com/diewo77/go-billing/internal/services"
)

type DeliveryNoteHandler struct {
	svc  *services.DeliveryNoteService
	docs *Documents
}

func NewDeliveryNoteHandler(svc *services.DeliveryNoteService, docs *Documents) *DeliveryNoteHandler {
	return &DeliveryNoteHandler{svc: svc, docs: docs}
}

// Create: POST /invoices/{id}/delivery-note. Returns the existing note with
// 200, or the new one with 201.
func (h *DeliveryNoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID, invoiceID, ok := scope(w, r)
	if !ok {
		return
	}
	note, created, err := h.svc.GetOrCreate(r.Context(), tenantID, invoiceID)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	httpx.JSON(w, status, note)
}

// Get: GET /delivery-notes/{id}
func (h *DeliveryNoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, id, ok := scope(w, r)
	if !ok {
		return
	}
	note, err := h.svc.Get(r.Context(), tenantID, id)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, note)
}

// PDF: GET /delivery-notes/{id}/pdf
func (h *DeliveryNoteHandler) PDF(w http.ResponseWriter, r *http.Request) {
	tenantID, id, ok := scope(w, r)
	if !ok {
		return
	}
	note, err := h.svc.Get(r.Context(), tenantID, id)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	org, err := h.docs.organization(r.Context(), tenantID)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	doc, err := h.docs.renderer.DeliveryNote(org, note)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	writePDF(w, doc)
}
