package models

import (
	"time"

	"github.com/diewo77/go-billing/internal/calc"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// QuotationStatus is the workflow status of a quotation.
type QuotationStatus string

const (
	QuotationStatusDraft     QuotationStatus = "draft"
	QuotationStatusSent      QuotationStatus = "sent"
	QuotationStatusAccepted  QuotationStatus = "accepted"
	QuotationStatusRejected  QuotationStatus = "rejected"
	QuotationStatusCancelled QuotationStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s QuotationStatus) Valid() bool {
	switch s {
	case QuotationStatusDraft, QuotationStatusSent, QuotationStatusAccepted, QuotationStatusRejected, QuotationStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no user-driven transition leaves s.
func (s QuotationStatus) Terminal() bool {
	return s == QuotationStatusAccepted || s == QuotationStatusRejected || s == QuotationStatusCancelled
}

// Quotation is a non-binding price offer. Once converted it is locked and
// points at the invoice it produced.
type Quotation struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	TenantID uint   `gorm:"not null;uniqueIndex:idx_quotations_tenant_number,priority:1" json:"tenant_id"`
	Number   string `gorm:"size:50;not null;uniqueIndex:idx_quotations_tenant_number,priority:2" json:"number"`

	Date       time.Time  `gorm:"not null" json:"date"`
	ValidUntil *time.Time `json:"valid_until,omitempty"`

	CustomerID *uint            `gorm:"index" json:"customer_id,omitempty"`
	BillTo     CustomerSnapshot `gorm:"embedded;embeddedPrefix:customer_" json:"customer"`

	DiscountType  calc.DiscountType `gorm:"size:20" json:"discount_type,omitempty"`
	DiscountValue decimal.Decimal   `gorm:"type:numeric(14,2);not null;default:0" json:"discount_value"`
	TaxPercent    decimal.Decimal   `gorm:"type:numeric(7,2);not null;default:0" json:"tax_percent"`

	// Mirror of calc.Compute over Items; never written by hand.
	Subtotal       int64 `gorm:"not null;default:0" json:"subtotal"`
	DiscountAmount int64 `gorm:"not null;default:0" json:"discount_amount"`
	TaxAmount      int64 `gorm:"not null;default:0" json:"tax_amount"`
	Total          int64 `gorm:"not null;default:0" json:"total"`

	Status       QuotationStatus `gorm:"size:20;not null;default:'draft';index" json:"status"`
	IsLocked     bool            `gorm:"not null;default:false" json:"is_locked"`
	InvoiceID    *uint           `gorm:"index" json:"invoice_id,omitempty"`
	CancelReason string          `gorm:"size:500" json:"cancel_reason,omitempty"`
	Notes        string          `gorm:"type:text" json:"notes,omitempty"`

	Items []QuotationItem `gorm:"foreignKey:QuotationID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

// QuotationItem is a line of a quotation.
type QuotationItem struct {
	ID          uint  `gorm:"primaryKey" json:"id"`
	QuotationID uint  `gorm:"index;not null" json:"-"`
	ProductID   *uint `gorm:"index" json:"product_id,omitempty"`

	Name      string `gorm:"size:255;not null" json:"name"`
	Quantity  int64  `gorm:"not null" json:"quantity"`
	UnitPrice int64  `gorm:"not null" json:"unit_price"`
	SortOrder int    `gorm:"not null;default:0" json:"sort_order"`
}

// Line returns the calculator view of the item.
func (i QuotationItem) Line() calc.Line {
	return calc.Line{Quantity: i.Quantity, UnitPrice: i.UnitPrice}
}

// Discount returns the discount configuration.
func (q *Quotation) Discount() calc.Discount {
	return calc.Discount{Type: q.DiscountType, Value: q.DiscountValue}
}

// Lines returns the calculator input for the quotation's items.
func (q *Quotation) Lines() []calc.Line {
	lines := make([]calc.Line, len(q.Items))
	for i, it := range q.Items {
		lines[i] = it.Line()
	}
	return lines
}

// ComputeTotals runs the calculator over the loaded items without touching the cached columns.
func (q *Quotation) ComputeTotals() calc.Totals {
	return calc.Compute(q.Lines(), q.Discount(), q.TaxPercent)
}

// ApplyTotals copies t into the cached total columns.
func (q *Quotation) ApplyTotals(t calc.Totals) {
	q.Subtotal = t.Subtotal
	q.DiscountAmount = t.Discount
	q.TaxAmount = t.Tax
	q.Total = t.Total
}

// IsLinked reports whether the quotation already produced an invoice.
func (q *Quotation) IsLinked() bool { return q.InvoiceID != nil }

// CanEdit returns true if header and items may still change.
func (q *Quotation) CanEdit() bool { return q.EditBlocker() == "" }

// EditBlocker returns why the quotation cannot be edited, or "".
func (q *Quotation) EditBlocker() string {
	switch {
	case q.IsLocked || q.IsLinked():
		return "quotation is locked: it has already been converted to an invoice"
	case q.Status.Terminal():
		return "quotation is " + string(q.Status) + " and can no longer be edited"
	}
	return ""
}

// DeleteBlocker returns why the quotation cannot be deleted, or "".
func (q *Quotation) DeleteBlocker() string {
	if q.IsLocked || q.IsLinked() {
		return "quotation is locked: it has already been converted to an invoice"
	}
	return ""
}

// TransitionBlocker returns why the quotation cannot move to status to, or "".
func (q *Quotation) TransitionBlocker(to QuotationStatus) string {
	if q.Status == to {
		return "quotation is already " + string(to)
	}
	switch to {
	case QuotationStatusSent:
		if q.Status != QuotationStatusDraft {
			return "only a draft quotation can be sent"
		}
	case QuotationStatusRejected:
		if q.Status != QuotationStatusSent {
			return "only a sent quotation can be rejected"
		}
	case QuotationStatusCancelled:
		if q.IsLocked || q.IsLinked() {
			return "quotation is locked: cancel the invoice it produced instead"
		}
		if q.Status != QuotationStatusDraft && q.Status != QuotationStatusSent && q.Status != QuotationStatusRejected {
			return "quotation is " + string(q.Status) + " and cannot be cancelled"
		}
	case QuotationStatusAccepted:
		if q.IsLocked || q.IsLinked() {
			return "quotation has already been converted"
		}
		if q.Status != QuotationStatusDraft && q.Status != QuotationStatusSent {
			return "quotation is " + string(q.Status) + " and cannot be converted"
		}
	default:
		return "unsupported quotation status " + string(to)
	}
	return ""
}
