package handlers

import (
	"net/http"

	"github.com/diewo77/go-billing/httpx"
	"github.com/diewo77/go-billing/internal/ledger"
	"github.com/diewo77/go-billing/internal/models"
)

type PaymentHandler struct {
	ledger *ledger.Ledger
}

func NewPaymentHandler(l *ledger.Ledger) *PaymentHandler {
	return &PaymentHandler{ledger: l}
}

// List: GET /invoices/{id}/payments
func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, invoiceID, ok := scope(w, r)
	if !ok {
		return
	}
	payments, err := h.ledger.List(r.Context(), tenantID, invoiceID)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	if payments == nil {
		payments = []models.Payment{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": payments})
}

// Record: POST /invoices/{id}/payments
func (h *PaymentHandler) Record(w http.ResponseWriter, r *http.Request) {
	tenantID, invoiceID, ok := scope(w, r)
	if !ok {
		return
	}
	var in ledger.PaymentInput
	if !httpx.Decode(w, r, &in) {
		return
	}
	res, err := h.ledger.Record(r.Context(), tenantID, invoiceID, in)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, res)
}

// Update: PUT /payments/{id}
func (h *PaymentHandler) Update(w http.ResponseWriter, r *http.Request) {
	tenantID, id, ok := scope(w, r)
	if !ok {
		return
	}
	var in ledger.PaymentInput
	if !httpx.Decode(w, r, &in) {
		return
	}
	res, err := h.ledger.Update(r.Context(), tenantID, id, in)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

// Delete: DELETE /payments/{id}. Responds with the reconciled invoice.
func (h *PaymentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tenantID, id, ok := scope(w, r)
	if !ok {
		return
	}
	res, err := h.ledger.Delete(r.Context(), tenantID, id)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}
