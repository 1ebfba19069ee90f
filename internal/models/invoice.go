package models

import (
	"time"

	"github.com/diewo77/go-billing/internal/calc"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InvoiceStatus represents the workflow status of an invoice.
// Payment coverage is tracked separately, see PayStatus.
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusSent      InvoiceStatus = "sent"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusPaid, InvoiceStatusCancelled:
		return true
	}
	return false
}

// Open reports whether the invoice is still in draft or sent.
func (s InvoiceStatus) Open() bool {
	return s == InvoiceStatusDraft || s == InvoiceStatusSent
}

// PayStatus is derived from the ledger; it is never the source of truth.
type PayStatus string

const (
	PayStatusUnpaid  PayStatus = "UNPAID"
	PayStatusPartial PayStatus = "PARTIAL"
	PayStatusPaid    PayStatus = "PAID"
)

// Valid reports whether s is a known pay status.
func (s PayStatus) Valid() bool {
	return s == PayStatusUnpaid || s == PayStatusPartial || s == PayStatusPaid
}

// Invoice represents a billing invoice.
type Invoice struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	TenantID uint   `gorm:"not null;uniqueIndex:idx_invoices_tenant_number,priority:1" json:"tenant_id"`
	Number   string `gorm:"size:50;not null;uniqueIndex:idx_invoices_tenant_number,priority:2" json:"number"`

	IssueDate time.Time  `gorm:"not null" json:"issue_date"`
	DueDate   *time.Time `json:"due_date,omitempty"`

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

	// Sum of live payments, written only by ledger reconciliation.
	AmountPaid int64 `gorm:"not null;default:0" json:"amount_paid"`

	Status InvoiceStatus `gorm:"size:20;not null;default:'draft';index" json:"status"`

	// Originating quotation. Unique so a quotation can never produce two invoices.
	QuotationID     *uint  `gorm:"uniqueIndex" json:"quotation_id,omitempty"`
	QuotationNumber string `gorm:"size:50" json:"quotation_number,omitempty"`

	CancelReason string     `gorm:"size:500" json:"cancel_reason,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	PaidAt       *time.Time `json:"paid_at,omitempty"`
	Notes        string     `gorm:"type:text" json:"notes,omitempty"`

	Items    []InvoiceItem `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	Payments []Payment     `gorm:"foreignKey:InvoiceID" json:"payments,omitempty"`
}

// InvoiceItem represents a line item on an invoice.
type InvoiceItem struct {
	ID        uint  `gorm:"primaryKey" json:"id"`
	InvoiceID uint  `gorm:"index;not null" json:"-"`
	ProductID *uint `gorm:"index" json:"product_id,omitempty"`

	Name      string `gorm:"size:255;not null" json:"name"`
	Quantity  int64  `gorm:"not null" json:"quantity"`
	UnitPrice int64  `gorm:"not null" json:"unit_price"`
	SortOrder int    `gorm:"not null;default:0" json:"sort_order"`
}

// Line returns the calculator view of the item.
func (i InvoiceItem) Line() calc.Line {
	return calc.Line{Quantity: i.Quantity, UnitPrice: i.UnitPrice}
}

// Discount returns the discount configuration.
func (i *Invoice) Discount() calc.Discount {
	return calc.Discount{Type: i.DiscountType, Value: i.DiscountValue}
}

// Lines returns the calculator input for the invoice's items.
func (i *Invoice) Lines() []calc.Line {
	lines := make([]calc.Line, len(i.Items))
	for k, it := range i.Items {
		lines[k] = it.Line()
	}
	return lines
}

// ComputeTotals runs the calculator over the loaded items.
func (i *Invoice) ComputeTotals() calc.Totals {
	return calc.Compute(i.Lines(), i.Discount(), i.TaxPercent)
}

// ApplyTotals copies t into the cached total columns.
func (i *Invoice) ApplyTotals(t calc.Totals) {
	i.Subtotal = t.Subtotal
	i.DiscountAmount = t.Discount
	i.TaxAmount = t.Tax
	i.Total = t.Total
}

// IsDraft returns true if the invoice is in draft status.
func (i *Invoice) IsDraft() bool { return i.Status == InvoiceStatusDraft }

// CanEdit returns true if the header and items may still change.
func (i *Invoice) CanEdit() bool { return i.EditBlocker() == "" }

// EditBlocker returns why the invoice cannot be edited, or "".
func (i *Invoice) EditBlocker() string {
	switch i.Status {
	case InvoiceStatusPaid:
		return "invoice is paid and can no longer be modified"
	case InvoiceStatusCancelled:
		return "invoice is cancelled and can no longer be modified"
	}
	return ""
}

// DeleteBlocker returns why the invoice cannot be deleted, or "".
func (i *Invoice) DeleteBlocker() string {
	if i.Status == InvoiceStatusPaid {
		return "invoice is paid and cannot be deleted"
	}
	if i.QuotationID != nil {
		return "invoice was converted from quotation " + i.QuotationNumber + "; cancel it instead of deleting it"
	}
	return ""
}

// PaymentBlocker returns why a payment cannot be recorded, or "".
func (i *Invoice) PaymentBlocker() string {
	if i.Status == InvoiceStatusCancelled {
		return "cannot record a payment on a cancelled invoice"
	}
	return ""
}

// TransitionBlocker returns why the invoice cannot move to status to by a user action, or "".
func (i *Invoice) TransitionBlocker(to InvoiceStatus) string {
	if i.Status == to {
		return "invoice is already " + string(to)
	}
	switch to {
	case InvoiceStatusDraft, InvoiceStatusSent:
		if !i.Status.Open() {
			return "invoice is " + string(i.Status) + " and its status can no longer change"
		}
	case InvoiceStatusCancelled:
		if !i.Status.Open() {
			return "invoice is " + string(i.Status) + " and cannot be cancelled"
		}
		if i.AmountPaid != 0 {
			return "invoice has recorded payments; remove them before cancelling"
		}
	case InvoiceStatusPaid:
		return "an invoice becomes paid only when payments cover its total"
	default:
		return "unsupported invoice status " + string(to)
	}
	return ""
}
