package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/diewo77/go-billing/internal/apperror"
	"github.com/diewo77/go-billing/internal/calc"
	"github.com/diewo77/go-billing/internal/models"
	"github.com/diewo77/go-billing/validation"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ItemInput is one line of a document as submitted.
type ItemInput struct {
	ProductID *uint  `json:"product_id,omitempty"`
	Name      string `json:"name" validate:"required,max=255"`
	Quantity  int64  `json:"quantity" validate:"gte=0,max=1000000000"`
	UnitPrice int64  `json:"unit_price" validate:"gte=0,max=1000000000000000"`
}

// DocumentInput is the part shared by quotations and invoices. When
// CustomerID is set the snapshot is copied from that customer and Customer is ignored.
type DocumentInput struct {
	CustomerID    *uint                   `json:"customer_id,omitempty"`
	Customer      models.CustomerSnapshot `json:"customer"`
	DiscountType  calc.DiscountType       `json:"discount_type,omitempty" validate:"omitempty,oneof=percent amount"`
	DiscountValue decimal.Decimal         `json:"discount_value"`
	TaxPercent    decimal.Decimal         `json:"tax_percent"`
	Notes         string                  `json:"notes,omitempty" validate:"max=5000"`
	Items         []ItemInput             `json:"items" validate:"min=1,dive"`
}

// QuotationInput creates or replaces a quotation. A zero Date means today.
type QuotationInput struct {
	DocumentInput
	Date       time.Time  `json:"date"`
	ValidUntil *time.Time `json:"valid_until,omitempty"`
}

// InvoiceInput creates or replaces an invoice. A zero IssueDate means today.
// QuotationID is honoured on creation only and routes through conversion.
type InvoiceInput struct {
	DocumentInput
	IssueDate   time.Time  `json:"issue_date"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	QuotationID *uint      `json:"quotation_id,omitempty"`
}

func (in *DocumentInput) violations() validation.Violations {
	v := validation.Struct(in)
	if in.CustomerID == nil {
		validation.Required("customer.name", in.Customer.Name, v)
	}
	lines := make([]calc.Line, len(in.Items))
	for i, it := range in.Items {
		validation.Required(fmt.Sprintf("items[%d].name", i), it.Name, v)
		lines[i] = calc.Line{Quantity: it.Quantity, UnitPrice: it.UnitPrice}
	}
	if i := calc.Exceeds(lines); i >= 0 {
		v[fmt.Sprintf("items[%d]", i)] = "amount_too_large"
	}
	switch in.DiscountType {
	case calc.DiscountPercent:
		validation.PercentRange("discount_value", in.DiscountValue, v)
	case calc.DiscountAmount:
		if in.DiscountValue.IsNegative() {
			v["discount_value"] = "must_not_be_negative"
		}
	}
	validation.PercentRange("tax_percent", in.TaxPercent, v)
	return v
}

func (in *QuotationInput) validate(op string) error {
	v := in.violations()
	if in.ValidUntil != nil && !in.Date.IsZero() && in.ValidUntil.Before(in.Date) {
		v["valid_until"] = "before_date"
	}
	if !v.Empty() {
		return apperror.Validation(op, v)
	}
	return nil
}

func (in *InvoiceInput) validate(op string) error {
	v := in.violations()
	if in.DueDate != nil && !in.IssueDate.IsZero() && in.DueDate.Before(in.IssueDate) {
		v["due_date"] = "before_issue_date"
	}
	if !v.Empty() {
		return apperror.Validation(op, v)
	}
	return nil
}

// resolve returns the customer snapshot for in and checks that every product
// back-reference belongs to the tenant. It reads through tx.
func (in *DocumentInput) resolve(tx *gorm.DB, tenantID uint, op string) (models.CustomerSnapshot, error) {
	snap := in.Customer
	if in.CustomerID != nil {
		var c models.Customer
		err := tx.Where("tenant_id = ? AND id = ?", tenantID, *in.CustomerID).First(&c).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return snap, apperror.Invalid(op, "customer_id", "unknown")
			}
			return snap, err
		}
		snap = c.Snapshot()
	}

	ids := make([]uint, 0, len(in.Items))
	for _, it := range in.Items {
		if it.ProductID != nil {
			ids = append(ids, *it.ProductID)
		}
	}
	if len(ids) == 0 {
		return snap, nil
	}
	var known []uint
	// Archived products still count: the reference is for lookup only.
	if err := tx.Unscoped().Model(&models.Product{}).Where("tenant_id = ? AND id IN ?", tenantID, ids).Pluck("id", &known).Error; err != nil {
		return snap, err
	}
	found := make(map[uint]bool, len(known))
	for _, id := range known {
		found[id] = true
	}
	v := validation.Violations{}
	for i, it := range in.Items {
		if it.ProductID != nil && !found[*it.ProductID] {
			v[fmt.Sprintf("items[%d].product_id", i)] = "unknown"
		}
	}
	if !v.Empty() {
		return snap, apperror.Validation(op, v)
	}
	return snap, nil
}

func (in *DocumentInput) quotationItems() []models.QuotationItem {
	items := make([]models.QuotationItem, len(in.Items))
	for i, it := range in.Items {
		items[i] = models.QuotationItem{ProductID: it.ProductID, Name: it.Name, Quantity: it.Quantity, UnitPrice: it.UnitPrice, SortOrder: i}
	}
	return items
}

func (in *DocumentInput) invoiceItems() []models.InvoiceItem {
	items := make([]models.InvoiceItem, len(in.Items))
	for i, it := range in.Items {
		items[i] = models.InvoiceItem{ProductID: it.ProductID, Name: it.Name, Quantity: it.Quantity, UnitPrice: it.UnitPrice, SortOrder: i}
	}
	return items
}

func dateOr(d time.Time, now func() time.Time) time.Time {
	if d.IsZero() {
		return now()
	}
	return d
}
