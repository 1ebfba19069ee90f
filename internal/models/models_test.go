package models

import (
	"testing"

	"github.com/diewo77/go-billing/internal/calc"
	"github.com/shopspring/decimal"
)

func TestCustomer_FullAddress(t *testing.T) {
	tests := []struct {
		name     string
		customer Customer
		want     string
	}{
		{
			name: "full address",
			customer: Customer{
				Address:    "123 Main St",
				PostalCode: "75001",
				City:       "Paris",
				Country:    "France",
			},
			want: "123 Main St\n75001 Paris\nFrance",
		},
		{
			name:     "only city",
			customer: Customer{City: "Paris"},
			want:     "Paris",
		},
		{
			name:     "address and city",
			customer: Customer{Address: "123 Main St", City: "Paris"},
			want:     "123 Main St\nParis",
		},
		{
			name:     "empty",
			customer: Customer{},
			want:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.customer.FullAddress(); got != tt.want {
				t.Errorf("FullAddress() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCustomer_Snapshot(t *testing.T) {
	c := Customer{Name: "Acme", Phone: "0102", Address: "1 rue", City: "Lyon"}
	got := c.Snapshot()
	want := CustomerSnapshot{Name: "Acme", Phone: "0102", Address: "1 rue\nLyon"}
	if got != want {
		t.Errorf("Snapshot() = %#v, want %#v", got, want)
	}
}

func TestOrganization_FullAddress(t *testing.T) {
	o := Organization{Address: " 5 Av ", Country: "FR"}
	if got := o.FullAddress(); got != "5 Av\nFR" {
		t.Errorf("FullAddress() = %q", got)
	}
	if o.HasBankDetails() {
		t.Errorf("HasBankDetails() = true, want false")
	}
	o.BankAccountNumber = "123"
	if !o.HasBankDetails() {
		t.Errorf("HasBankDetails() = false, want true")
	}
}

func TestInvoice_ComputeTotals(t *testing.T) {
	inv := &Invoice{
		DiscountType:  calc.DiscountPercent,
		DiscountValue: decimal.NewFromInt(10),
		TaxPercent:    decimal.NewFromInt(11),
		Items: []InvoiceItem{
			{Quantity: 2, UnitPrice: 50000},
			{Quantity: 1, UnitPrice: 100000},
		},
	}
	inv.ApplyTotals(inv.ComputeTotals())
	if inv.Subtotal != 200000 || inv.DiscountAmount != 20000 || inv.TaxAmount != 19800 || inv.Total != 199800 {
		t.Errorf("unexpected totals: %d %d %d %d", inv.Subtotal, inv.DiscountAmount, inv.TaxAmount, inv.Total)
	}
}

func TestQuotation_ComputeTotals(t *testing.T) {
	q := &Quotation{
		DiscountType:  calc.DiscountAmount,
		DiscountValue: decimal.NewFromInt(500),
		Items:         []QuotationItem{{Quantity: 3, UnitPrice: 100}},
	}
	q.ApplyTotals(q.ComputeTotals())
	if q.Subtotal != 300 || q.DiscountAmount != 300 || q.Total != 0 {
		t.Errorf("unexpected totals: %d %d %d", q.Subtotal, q.DiscountAmount, q.Total)
	}
}

func TestInvoice_Blockers(t *testing.T) {
	qid := uint(7)
	tests := []struct {
		name       string
		inv        Invoice
		canEdit    bool
		canDelete  bool
		canCancel  bool
		canSend    bool
		canPayment bool
	}{
		{"draft", Invoice{Status: InvoiceStatusDraft}, true, true, true, true, true},
		{"sent", Invoice{Status: InvoiceStatusSent}, true, true, true, false, true},
		{"sent with payments", Invoice{Status: InvoiceStatusSent, AmountPaid: 10}, true, true, false, false, true},
		{"paid", Invoice{Status: InvoiceStatusPaid, AmountPaid: 10}, false, false, false, false, true},
		{"cancelled", Invoice{Status: InvoiceStatusCancelled}, false, true, false, false, false},
		{"linked draft", Invoice{Status: InvoiceStatusDraft, QuotationID: &qid}, true, false, true, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.inv.CanEdit(); got != tt.canEdit {
				t.Errorf("CanEdit() = %v, want %v", got, tt.canEdit)
			}
			if got := tt.inv.DeleteBlocker() == ""; got != tt.canDelete {
				t.Errorf("delete allowed = %v, want %v", got, tt.canDelete)
			}
			if got := tt.inv.TransitionBlocker(InvoiceStatusCancelled) == ""; got != tt.canCancel {
				t.Errorf("cancel allowed = %v, want %v", got, tt.canCancel)
			}
			if got := tt.inv.TransitionBlocker(InvoiceStatusSent) == ""; got != tt.canSend {
				t.Errorf("send allowed = %v, want %v", got, tt.canSend)
			}
			if got := tt.inv.PaymentBlocker() == ""; got != tt.canPayment {
				t.Errorf("payment allowed = %v, want %v", got, tt.canPayment)
			}
			if tt.inv.TransitionBlocker(InvoiceStatusPaid) == "" {
				t.Errorf("direct transition to paid must be blocked")
			}
		})
	}
}

func TestQuotation_Blockers(t *testing.T) {
	inv := uint(3)
	tests := []struct {
		name      string
		q         Quotation
		canEdit   bool
		canSend   bool
		canReject bool
		canCancel bool
		canAccept bool
	}{
		{"draft", Quotation{Status: QuotationStatusDraft}, true, true, false, true, true},
		{"sent", Quotation{Status: QuotationStatusSent}, true, false, true, true, true},
		{"rejected", Quotation{Status: QuotationStatusRejected}, false, false, false, true, false},
		{"cancelled", Quotation{Status: QuotationStatusCancelled}, false, false, false, false, false},
		{"accepted", Quotation{Status: QuotationStatusAccepted, IsLocked: true, InvoiceID: &inv}, false, false, false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.q.CanEdit(); got != tt.canEdit {
				t.Errorf("CanEdit() = %v, want %v", got, tt.canEdit)
			}
			checks := map[QuotationStatus]bool{
				QuotationStatusSent:      tt.canSend,
				QuotationStatusRejected:  tt.canReject,
				QuotationStatusCancelled: tt.canCancel,
				QuotationStatusAccepted:  tt.canAccept,
			}
			for to, want := range checks {
				if got := tt.q.TransitionBlocker(to) == ""; got != want {
					t.Errorf("transition to %s allowed = %v, want %v", to, got, want)
				}
			}
		})
	}
}

func TestStatusValid(t *testing.T) {
	if !InvoiceStatusPaid.Valid() || InvoiceStatus("final").Valid() {
		t.Errorf("InvoiceStatus.Valid mismatch")
	}
	if !QuotationStatusRejected.Valid() || QuotationStatus("converted").Valid() {
		t.Errorf("QuotationStatus.Valid mismatch")
	}
	if !PayStatusPartial.Valid() || PayStatus("paid").Valid() {
		t.Errorf("PayStatus.Valid mismatch")
	}
}
