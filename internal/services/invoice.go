package services

import (
	"context"
	"errors"

	"github.com/diewo77/go-billing/internal/apperror"
	"github.com/diewo77/go-billing/internal/audit"
	"github.com/diewo77/go-billing/internal/db"
	"github.com/diewo77/go-billing/internal/ledger"
	"github.com/diewo77/go-billing/internal/logger"
	"github.com/diewo77/go-billing/internal/models"
	"github.com/diewo77/go-billing/internal/sequence"
	"gorm.io/gorm"
)

type InvoiceService struct {
	db   *gorm.DB
	opts Options
}

func NewInvoiceService(conn *gorm.DB, opts Options) *InvoiceService {
	return &InvoiceService{db: conn, opts: opts.withDefaults()}
}

// InvoiceRow is an invoice as listed, with its derived pay status.
type InvoiceRow struct {
	models.Invoice
	PayStatus models.PayStatus `json:"pay_status"`
	Remaining int64            `json:"remaining"`
}

// InvoiceDetail is the full read view of an invoice.
type InvoiceDetail struct {
	models.Invoice
	PayStatus      models.PayStatus `json:"pay_status"`
	Remaining      int64            `json:"remaining"`
	DeliveryNoteID *uint            `json:"delivery_note_id,omitempty"`
}

// CascadeResult reports what happened to the quotation linked to a cancelled invoice.
type CascadeResult struct {
	QuotationID uint   `json:"quotation_id"`
	OK          bool   `json:"ok"`
	Error       string `json:"error,omitempty"`
}

// CancelResult is returned by Cancel. Cascade is nil when no quotation is linked.
type CancelResult struct {
	Invoice models.Invoice `json:"invoice"`
	Cascade *CascadeResult `json:"cascade,omitempty"`
}

// Create stores a new draft invoice. An input carrying a QuotationID is
// created through the conversion protocol so the quotation ends up locked.
func (s *InvoiceService) Create(ctx context.Context, tenantID uint, in InvoiceInput) (*models.Invoice, error) {
	const op = "invoice.create"
	if err := in.validate(op); err != nil {
		return nil, err
	}
	if in.QuotationID != nil {
		res, err := s.conversion().convert(ctx, tenantID, *in.QuotationID, &in)
		if err != nil {
			return nil, err
		}
		return &res.Invoice, nil
	}
	var inv *models.Invoice
	err := runNumbered(ctx, s.db, s.opts, op, func(tx *gorm.DB) error {
		var err error
		inv, err = s.insert(ctx, tx, tenantID, in, nil, op)
		return err
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *InvoiceService) conversion() *ConversionService {
	return &ConversionService{db: s.db, opts: s.opts, invoices: s}
}

// insert numbers and stores an invoice inside tx. from is the originating
// quotation, if any.
func (s *InvoiceService) insert(ctx context.Context, tx *gorm.DB, tenantID uint, in InvoiceInput, from *models.Quotation, op string) (*models.Invoice, error) {
	snap, err := in.resolve(tx, tenantID, op)
	if err != nil {
		return nil, err
	}
	number, err := s.opts.Numbers.Next(ctx, tx, tenantID, sequence.KindInvoice, s.opts.Now())
	if err != nil {
		return nil, err
	}
	inv := models.Invoice{
		TenantID:      tenantID,
		Number:        number,
		IssueDate:     dateOr(in.IssueDate, s.opts.Now),
		DueDate:       in.DueDate,
		CustomerID:    in.CustomerID,
		BillTo:        snap,
		DiscountType:  in.DiscountType,
		DiscountValue: in.DiscountValue,
		TaxPercent:    in.TaxPercent,
		Status:        models.InvoiceStatusDraft,
		Notes:         in.Notes,
		Items:         in.invoiceItems(),
	}
	if from != nil {
		inv.QuotationID = &from.ID
		inv.QuotationNumber = from.Number
		if inv.CustomerID == nil {
			inv.CustomerID = from.CustomerID
		}
	}
	inv.ApplyTotals(inv.ComputeTotals())
	if err := tx.Create(&inv).Error; err != nil {
		return nil, err
	}
	details := map[string]any{"number": inv.Number, "total": inv.Total}
	if from != nil {
		details["quotation_id"] = from.ID
		details["quotation_number"] = from.Number
	}
	err = audit.Record(ctx, tx, audit.Entry{
		TenantID:   tenantID,
		EntityType: audit.EntityInvoice,
		EntityID:   inv.ID,
		Action:     "create",
		Details:    details,
	})
	return &inv, err
}

// Update replaces the header and items of a draft or sent invoice, then
// reconciles the ledger against the new total.
func (s *InvoiceService) Update(ctx context.Context, tenantID, id uint, in InvoiceInput) (*models.Invoice, error) {
	const op = "invoice.update"
	if err := in.validate(op); err != nil {
		return nil, err
	}
	var inv *models.Invoice
	err := db.RunTx(ctx, s.db, func(tx *gorm.DB) error {
		var err error
		if inv, err = lockInvoice(tx, tenantID, id, op); err != nil {
			return err
		}
		if reason := inv.EditBlocker(); reason != "" {
			return apperror.Conflict(op, reason)
		}
		snap, err := in.resolve(tx, tenantID, op)
		if err != nil {
			return err
		}
		before := inv.Total

		if !in.IssueDate.IsZero() {
			inv.IssueDate = in.IssueDate
		}
		inv.DueDate = in.DueDate
		inv.CustomerID = in.CustomerID
		inv.BillTo = snap
		inv.DiscountType = in.DiscountType
		inv.DiscountValue = in.DiscountValue
		inv.TaxPercent = in.TaxPercent
		inv.Notes = in.Notes

		if err := tx.Where("invoice_id = ?", inv.ID).Delete(&models.InvoiceItem{}).Error; err != nil {
			return err
		}
		items := in.invoiceItems()
		for i := range items {
			items[i].InvoiceID = inv.ID
		}
		if err := tx.Create(&items).Error; err != nil {
			return err
		}
		err = tx.Model(&models.Invoice{}).Where("id = ?", inv.ID).UpdateColumns(map[string]any{
			"issue_date":       inv.IssueDate,
			"due_date":         inv.DueDate,
			"customer_id":      inv.CustomerID,
			"customer_name":    inv.BillTo.Name,
			"customer_phone":   inv.BillTo.Phone,
			"customer_address": inv.BillTo.Address,
			"discount_type":    inv.DiscountType,
			"discount_value":   inv.DiscountValue,
			"tax_percent":      inv.TaxPercent,
			"notes":            inv.Notes,
			"updated_at":       s.opts.Now(),
		}).Error
		if err != nil {
			return err
		}
		// Totals and amount_paid are only ever written here.
		if err := ledger.Reconcile(tx, inv, s.opts.Now()); err != nil {
			return err
		}
		return audit.Record(ctx, tx, audit.Entry{
			TenantID:   tenantID,
			EntityType: audit.EntityInvoice,
			EntityID:   inv.ID,
			Action:     "update",
			Details:    map[string]any{"total_before": before, "total": inv.Total, "status": string(inv.Status)},
		})
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// MarkSent moves a draft invoice to sent.
func (s *InvoiceService) MarkSent(ctx context.Context, tenantID, id uint) (*models.Invoice, error) {
	return s.transition(ctx, tenantID, id, models.InvoiceStatusSent, "invoice.send", "send")
}

// MarkDraft moves a sent invoice back to draft.
func (s *InvoiceService) MarkDraft(ctx context.Context, tenantID, id uint) (*models.Invoice, error) {
	return s.transition(ctx, tenantID, id, models.InvoiceStatusDraft, "invoice.draft", "draft")
}

func (s *InvoiceService) transition(ctx context.Context, tenantID, id uint, to models.InvoiceStatus, op, action string) (*models.Invoice, error) {
	var inv *models.Invoice
	err := db.RunTx(ctx, s.db, func(tx *gorm.DB) error {
		var err error
		if inv, err = lockInvoice(tx, tenantID, id, op); err != nil {
			return err
		}
		if reason := inv.TransitionBlocker(to); reason != "" {
			return apperror.Conflict(op, reason)
		}
		from := inv.Status
		inv.Status = to
		err = tx.Model(&models.Invoice{}).Where("id = ?", inv.ID).
			UpdateColumns(map[string]any{"status": to, "updated_at": s.opts.Now()}).Error
		if err != nil {
			return err
		}
		return audit.Record(ctx, tx, audit.Entry{
			TenantID:   tenantID,
			EntityType: audit.EntityInvoice,
			EntityID:   inv.ID,
			Action:     action,
			Details:    map[string]any{"from": string(from), "to": string(to)},
		})
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// Cancel cancels an unpaid draft or sent invoice. A linked quotation is
// cancelled afterwards in its own transaction; the outcome of that cascade is
// reported in the result and in the audit log but never fails the call.
func (s *InvoiceService) Cancel(ctx context.Context, tenantID, id uint, reason string) (*CancelResult, error) {
	const op = "invoice.cancel"
	var inv *models.Invoice
	err := db.RunTx(ctx, s.db, func(tx *gorm.DB) error {
		var err error
		if inv, err = lockInvoice(tx, tenantID, id, op); err != nil {
			return err
		}
		if blocker := inv.TransitionBlocker(models.InvoiceStatusCancelled); blocker != "" {
			return apperror.Conflict(op, blocker)
		}
		now := s.opts.Now()
		inv.Status = models.InvoiceStatusCancelled
		inv.CancelReason = reason
		inv.CancelledAt = &now
		err = tx.Model(&models.Invoice{}).Where("id = ?", inv.ID).UpdateColumns(map[string]any{
			"status":        inv.Status,
			"cancel_reason": reason,
			"cancelled_at":  now,
			"updated_at":    now,
		}).Error
		if err != nil {
			return err
		}
		return audit.Record(ctx, tx, audit.Entry{
			TenantID:   tenantID,
			EntityType: audit.EntityInvoice,
			EntityID:   inv.ID,
			Action:     "cancel",
			Details:    map[string]any{"reason": reason},
		})
	})
	if err != nil {
		return nil, err
	}

	res := &CancelResult{Invoice: *inv}
	if inv.QuotationID != nil {
		res.Cascade = s.cascadeCancel(ctx, inv, reason)
	}
	return res, nil
}

// cascadeCancel cancels the quotation that produced inv. The quotation is
// locked, so its own transition rules do not apply here.
func (s *InvoiceService) cascadeCancel(ctx context.Context, inv *models.Invoice, reason string) *CascadeResult {
	qid := *inv.QuotationID
	out := &CascadeResult{QuotationID: qid}
	l := logger.Ctx(ctx).With().
		Uint("tenant_id", inv.TenantID).
		Str("invoice", inv.Number).
		Uint("quotation_id", qid).
		Logger()

	err := db.RunTx(ctx, s.db, func(tx *gorm.DB) error {
		var q models.Quotation
		if err := db.ForUpdate(tx).Where("tenant_id = ? AND id = ?", inv.TenantID, qid).First(&q).Error; err != nil {
			return err
		}
		if q.Status != models.QuotationStatusCancelled {
			err := tx.Model(&models.Quotation{}).Where("id = ?", q.ID).UpdateColumns(map[string]any{
				"status":        models.QuotationStatusCancelled,
				"cancel_reason": "invoice " + inv.Number + " cancelled",
				"updated_at":    s.opts.Now(),
			}).Error
			if err != nil {
				return err
			}
		}
		return audit.Record(ctx, tx, audit.Entry{
			TenantID:   inv.TenantID,
			EntityType: audit.EntityInvoice,
			EntityID:   inv.ID,
			Action:     "cascade_cancel",
			Details:    map[string]any{"quotation_id": qid, "ok": true, "reason": reason},
		})
	})
	if err == nil {
		out.OK = true
		l.Info().Msg("linked quotation cancelled")
		return out
	}

	out.Error = err.Error()
	l.Error().Err(err).Msg("cascade cancel of linked quotation failed")
	// Best effort: leave a trace of the failure even though the cascade rolled back.
	auditErr := audit.Record(ctx, s.db, audit.Entry{
		TenantID:   inv.TenantID,
		EntityType: audit.EntityInvoice,
		EntityID:   inv.ID,
		Action:     "cascade_cancel",
		Details:    map[string]any{"quotation_id": qid, "ok": false, "error": out.Error},
	})
	if auditErr != nil {
		l.Error().Err(auditErr).Msg("recording failed cascade")
	}
	return out
}

// Delete soft-deletes an invoice and its payments. Paid and quotation-linked
// invoices cannot be deleted.
func (s *InvoiceService) Delete(ctx context.Context, tenantID, id uint) error {
	const op = "invoice.delete"
	return db.RunTx(ctx, s.db, func(tx *gorm.DB) error {
		inv, err := lockInvoice(tx, tenantID, id, op)
		if err != nil {
			return err
		}
		if reason := inv.DeleteBlocker(); reason != "" {
			return apperror.Conflict(op, reason)
		}
		if err := tx.Where("tenant_id = ? AND invoice_id = ?", tenantID, inv.ID).Delete(&models.Payment{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(inv).Error; err != nil {
			return err
		}
		return audit.Record(ctx, tx, audit.Entry{
			TenantID:   tenantID,
			EntityType: audit.EntityInvoice,
			EntityID:   inv.ID,
			Action:     "delete",
			Details:    map[string]any{"number": inv.Number},
		})
	})
}

// Get returns the detail view of an invoice: items, live payments, derived pay
// status and the delivery note, if one was issued.
func (s *InvoiceService) Get(ctx context.Context, tenantID, id uint) (*InvoiceDetail, error) {
	conn := s.db.WithContext(ctx)
	var inv models.Invoice
	err := conn.
		Preload("Items", itemsByOrder).
		Preload("Payments", func(q *gorm.DB) *gorm.DB { return q.Order("date ASC, id ASC") }).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&inv).Error
	if err != nil {
		return nil, apperror.FromDB("invoice.get", "invoice", err)
	}
	inv.ApplyTotals(inv.ComputeTotals())

	detail := &InvoiceDetail{
		Invoice:   inv,
		PayStatus: ledger.DerivePayStatus(inv.Total, inv.AmountPaid),
		Remaining: ledger.Remaining(inv.Total, inv.AmountPaid),
	}
	var note models.DeliveryNote
	err = conn.Select("id").Where("tenant_id = ? AND invoice_id = ?", tenantID, inv.ID).First(&note).Error
	switch {
	case err == nil:
		detail.DeliveryNoteID = &note.ID
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}
	return detail, nil
}

// List returns invoices newest first with their pay status.
func (s *InvoiceService) List(ctx context.Context, tenantID uint, f ListFilter) (*Page[InvoiceRow], error) {
	const op = "invoice.list"
	f = f.normalize()
	q := s.db.WithContext(ctx).Model(&models.Invoice{}).Where("tenant_id = ?", tenantID)
	if f.Status != "" {
		if !models.InvoiceStatus(f.Status).Valid() {
			return nil, apperror.Invalid(op, "status", "unsupported_value")
		}
		q = q.Where("status = ?", f.Status)
	}
	if f.PayStatus != "" {
		// Same rules as ledger.DerivePayStatus, expressed in SQL.
		switch models.PayStatus(f.PayStatus) {
		case models.PayStatusPaid:
			q = q.Where("total > 0 AND amount_paid >= total")
		case models.PayStatusPartial:
			q = q.Where("total > 0 AND amount_paid > 0 AND amount_paid < total")
		case models.PayStatusUnpaid:
			q = q.Where("total <= 0 OR amount_paid <= 0")
		default:
			return nil, apperror.Invalid(op, "pay_status", "unsupported_value")
		}
	}
	q = searchDocuments(q, f.Search).Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, err
	}
	var invoices []models.Invoice
	if err := q.Order("issue_date DESC, id DESC").Limit(f.Limit).Offset(f.offset()).Find(&invoices).Error; err != nil {
		return nil, err
	}
	page := &Page[InvoiceRow]{Items: make([]InvoiceRow, len(invoices)), Total: total, Page: f.Page, Limit: f.Limit}
	for i, inv := range invoices {
		page.Items[i] = InvoiceRow{
			Invoice:   inv,
			PayStatus: ledger.DerivePayStatus(inv.Total, inv.AmountPaid),
			Remaining: ledger.Remaining(inv.Total, inv.AmountPaid),
		}
	}
	return page, nil
}

func lockInvoice(tx *gorm.DB, tenantID, id uint, op string) (*models.Invoice, error) {
	var inv models.Invoice
	err := db.ForUpdate(tx).Where("tenant_id = ? AND id = ?", tenantID, id).First(&inv).Error
	if err != nil {
		return nil, apperror.FromDB(op, "invoice", err)
	}
	return &inv, nil
}
