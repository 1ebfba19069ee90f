// Package ledger records payments against invoices and keeps the cached
// amount_paid and totals in step with the live payment events.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/diewo77/go-billing/internal/apperror"
	"github.com/diewo77/go-billing/internal/audit"
	"github.com/diewo77/go-billing/internal/calc"
	"github.com/diewo77/go-billing/internal/db"
	"github.com/diewo77/go-billing/internal/logger"
	"github.com/diewo77/go-billing/internal/models"
	"github.com/diewo77/go-billing/validation"
	"gorm.io/gorm"
)

// Remaining returns what is still owed, never below zero.
func Remaining(total, paid int64) int64 {
	if r := total - paid; r > 0 {
		return r
	}
	return 0
}

// DerivePayStatus computes the pay status from a total and the sum of live
// payments. A non-positive total is always UNPAID.
func DerivePayStatus(total, paid int64) models.PayStatus {
	switch {
	case total <= 0:
		return models.PayStatusUnpaid
	case total-paid <= 0:
		return models.PayStatusPaid
	case paid > 0:
		return models.PayStatusPartial
	}
	return models.PayStatusUnpaid
}

// Summary is the payment view of an invoice.
type Summary struct {
	Total      int64            `json:"total"`
	AmountPaid int64            `json:"amount_paid"`
	Remaining  int64            `json:"remaining"`
	PayStatus  models.PayStatus `json:"pay_status"`
}

// Summarize builds the Summary from the cached columns of inv.
func Summarize(inv *models.Invoice) Summary {
	return Summary{
		Total:      inv.Total,
		AmountPaid: inv.AmountPaid,
		Remaining:  Remaining(inv.Total, inv.AmountPaid),
		PayStatus:  DerivePayStatus(inv.Total, inv.AmountPaid),
	}
}

// PaymentInput is the user-supplied part of a payment. A zero Date means today.
type PaymentInput struct {
	Date   time.Time `json:"date"`
	Amount int64     `json:"amount" validate:"gt=0"`
	Method string    `json:"method" validate:"max=50"`
	Note   string    `json:"note" validate:"max=500"`
}

func (in PaymentInput) validate(op string) error {
	v := validation.Struct(in)
	if in.Amount > calc.MaxAmount {
		v["amount"] = "out_of_range"
	}
	if !v.Empty() {
		return apperror.Validation(op, v)
	}
	return nil
}

// Result is returned by every ledger mutation.
type Result struct {
	Payment models.Payment `json:"payment"`
	Invoice models.Invoice `json:"invoice"`
	Summary Summary        `json:"summary"`
}

// Ledger mutates payment events. Every mutation runs in one transaction and
// ends with Reconcile.
type Ledger struct {
	db  *gorm.DB
	now func() time.Time
}

// New returns a ledger on conn.
func New(conn *gorm.DB) *Ledger {
	return &Ledger{db: conn, now: time.Now}
}

// WithClock replaces the time source. Used by tests.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// Record appends a payment to an invoice.
func (l *Ledger) Record(ctx context.Context, tenantID, invoiceID uint, in PaymentInput) (*Result, error) {
	const op = "payment.record"
	if err := in.validate(op); err != nil {
		return nil, err
	}
	var res Result
	err := db.RunTx(ctx, l.db, func(tx *gorm.DB) error {
		inv, err := lockInvoice(tx, tenantID, invoiceID, op)
		if err != nil {
			return err
		}
		if reason := inv.PaymentBlocker(); reason != "" {
			return apperror.Conflict(op, reason)
		}
		p := models.Payment{
			TenantID:  tenantID,
			InvoiceID: inv.ID,
			Date:      l.dateOr(in.Date),
			Amount:    in.Amount,
			Method:    in.Method,
			Note:      in.Note,
		}
		if err := tx.Create(&p).Error; err != nil {
			return err
		}
		if err := Reconcile(tx, inv, l.now()); err != nil {
			return err
		}
		res = Result{Payment: p, Invoice: *inv, Summary: Summarize(inv)}
		return audit.Record(ctx, tx, audit.Entry{
			TenantID:   tenantID,
			EntityType: audit.EntityPayment,
			EntityID:   p.ID,
			Action:     "record",
			Details:    map[string]any{"invoice_id": inv.ID, "amount": p.Amount, "amount_paid": inv.AmountPaid},
		})
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Update changes an existing payment.
func (l *Ledger) Update(ctx context.Context, tenantID, paymentID uint, in PaymentInput) (*Result, error) {
	const op = "payment.update"
	if err := in.validate(op); err != nil {
		return nil, err
	}
	var res Result
	err := db.RunTx(ctx, l.db, func(tx *gorm.DB) error {
		p, inv, err := l.loadPayment(tx, tenantID, paymentID, op)
		if err != nil {
			return err
		}
		if inv.Status == models.InvoiceStatusCancelled {
			return apperror.Conflict(op, "invoice is cancelled; its payments can no longer change")
		}
		if inv.Status == models.InvoiceStatusPaid {
			if reason := underCovered(inv, inv.AmountPaid-p.Amount+in.Amount); reason != "" {
				return apperror.Conflict(op, reason)
			}
		}
		before := p.Amount
		p.Date = l.dateOr(in.Date)
		p.Amount = in.Amount
		p.Method = in.Method
		p.Note = in.Note
		if err := tx.Model(p).Select("date", "amount", "method", "note").Updates(p).Error; err != nil {
			return err
		}
		if err := Reconcile(tx, inv, l.now()); err != nil {
			return err
		}
		res = Result{Payment: *p, Invoice: *inv, Summary: Summarize(inv)}
		return audit.Record(ctx, tx, audit.Entry{
			TenantID:   tenantID,
			EntityType: audit.EntityPayment,
			EntityID:   p.ID,
			Action:     "update",
			Details:    map[string]any{"invoice_id": inv.ID, "amount_before": before, "amount": p.Amount},
		})
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Delete soft-deletes a payment.
func (l *Ledger) Delete(ctx context.Context, tenantID, paymentID uint) (*Result, error) {
	const op = "payment.delete"
	var res Result
	err := db.RunTx(ctx, l.db, func(tx *gorm.DB) error {
		p, inv, err := l.loadPayment(tx, tenantID, paymentID, op)
		if err != nil {
			return err
		}
		if inv.Status == models.InvoiceStatusCancelled {
			return apperror.Conflict(op, "invoice is cancelled; its payments can no longer change")
		}
		if inv.Status == models.InvoiceStatusPaid {
			if reason := underCovered(inv, inv.AmountPaid-p.Amount); reason != "" {
				return apperror.Conflict(op, reason)
			}
		}
		if err := tx.Delete(p).Error; err != nil {
			return err
		}
		if err := Reconcile(tx, inv, l.now()); err != nil {
			return err
		}
		res = Result{Payment: *p, Invoice: *inv, Summary: Summarize(inv)}
		return audit.Record(ctx, tx, audit.Entry{
			TenantID:   tenantID,
			EntityType: audit.EntityPayment,
			EntityID:   p.ID,
			Action:     "delete",
			Details:    map[string]any{"invoice_id": inv.ID, "amount": p.Amount},
		})
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// List returns the live payments of an invoice, oldest first.
func (l *Ledger) List(ctx context.Context, tenantID, invoiceID uint) ([]models.Payment, error) {
	const op = "payment.list"
	conn := l.db.WithContext(ctx)
	var n int64
	if err := conn.Model(&models.Invoice{}).Where("tenant_id = ? AND id = ?", tenantID, invoiceID).Count(&n).Error; err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, apperror.NotFound(op, "invoice")
	}
	var payments []models.Payment
	err := conn.Where("tenant_id = ? AND invoice_id = ?", tenantID, invoiceID).
		Order("date ASC, id ASC").
		Find(&payments).Error
	return payments, err
}

// Reconcile recomputes the totals of inv from its stored items, sums its live
// payments and writes both back. An open invoice whose payments cover its
// total moves to paid. inv is updated in place.
func Reconcile(tx *gorm.DB, inv *models.Invoice, now time.Time) error {
	var items []models.InvoiceItem
	if err := tx.Where("invoice_id = ?", inv.ID).Order("sort_order ASC, id ASC").Find(&items).Error; err != nil {
		return err
	}
	inv.Items = items
	inv.ApplyTotals(inv.ComputeTotals())

	var paid int64
	if err := tx.Model(&models.Payment{}).
		Where("tenant_id = ? AND invoice_id = ?", inv.TenantID, inv.ID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&paid).Error; err != nil {
		return err
	}
	inv.AmountPaid = paid

	updates := map[string]any{
		"subtotal":        inv.Subtotal,
		"discount_amount": inv.DiscountAmount,
		"tax_amount":      inv.TaxAmount,
		"total":           inv.Total,
		"amount_paid":     inv.AmountPaid,
	}
	if inv.Status.Open() && DerivePayStatus(inv.Total, inv.AmountPaid) == models.PayStatusPaid {
		inv.Status = models.InvoiceStatusPaid
		inv.PaidAt = &now
		updates["status"] = inv.Status
		updates["paid_at"] = now
		logger.Ctx(tx.Statement.Context).Info().
			Uint("tenant_id", inv.TenantID).
			Str("invoice", inv.Number).
			Int64("total", inv.Total).
			Int64("amount_paid", inv.AmountPaid).
			Msg("invoice fully paid")
	}
	return tx.Model(&models.Invoice{}).Where("id = ?", inv.ID).UpdateColumns(updates).Error
}

// underCovered returns why a paid invoice cannot drop to paid, or "".
func underCovered(inv *models.Invoice, paid int64) string {
	if DerivePayStatus(inv.Total, paid) == models.PayStatusPaid {
		return ""
	}
	return "invoice is paid; this change would leave it under-covered"
}

func lockInvoice(tx *gorm.DB, tenantID, invoiceID uint, op string) (*models.Invoice, error) {
	var inv models.Invoice
	err := db.ForUpdate(tx).Where("tenant_id = ? AND id = ?", tenantID, invoiceID).First(&inv).Error
	if err != nil {
		return nil, apperror.FromDB(op, "invoice", err)
	}
	return &inv, nil
}

func (l *Ledger) loadPayment(tx *gorm.DB, tenantID, paymentID uint, op string) (*models.Payment, *models.Invoice, error) {
	var p models.Payment
	if err := tx.Where("tenant_id = ? AND id = ?", tenantID, paymentID).First(&p).Error; err != nil {
		return nil, nil, apperror.FromDB(op, "payment", err)
	}
	inv, err := lockInvoice(tx, tenantID, p.InvoiceID, op)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, nil, apperror.NotFound(op, "payment")
		}
		return nil, nil, err
	}
	return &p, inv, nil
}

func (l *Ledger) dateOr(d time.Time) time.Time {
	if d.IsZero() {
		return l.now()
	}
	return d
}
