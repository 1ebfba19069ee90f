package services

import (
	"context"

	"github.com/diewo77/go-billing/internal/apperror"
	"github.com/diewo77/go-billing/internal/audit"
	"github.com/diewo77/go-billing/internal/db"
	"github.com/diewo77/go-billing/internal/models"
	"github.com/diewo77/go-billing/internal/sequence"
	"gorm.io/gorm"
)

type QuotationService struct {
	db   *gorm.DB
	opts Options
}

func NewQuotationService(conn *gorm.DB, opts Options) *QuotationService {
	return &QuotationService{db: conn, opts: opts.withDefaults()}
}

// Create stores a new draft quotation with the next QUO number.
func (s *QuotationService) Create(ctx context.Context, tenantID uint, in QuotationInput) (*models.Quotation, error) {
	const op = "quotation.create"
	if err := in.validate(op); err != nil {
		return nil, err
	}
	var q models.Quotation
	err := runNumbered(ctx, s.db, s.opts, op, func(tx *gorm.DB) error {
		snap, err := in.resolve(tx, tenantID, op)
		if err != nil {
			return err
		}
		number, err := s.opts.Numbers.Next(ctx, tx, tenantID, sequence.KindQuotation, s.opts.Now())
		if err != nil {
			return err
		}
		q = models.Quotation{
			TenantID:      tenantID,
			Number:        number,
			Date:          dateOr(in.Date, s.opts.Now),
			ValidUntil:    in.ValidUntil,
			CustomerID:    in.CustomerID,
			BillTo:        snap,
			DiscountType:  in.DiscountType,
			DiscountValue: in.DiscountValue,
			TaxPercent:    in.TaxPercent,
			Status:        models.QuotationStatusDraft,
			Notes:         in.Notes,
			Items:         in.quotationItems(),
		}
		q.ApplyTotals(q.ComputeTotals())
		if err := tx.Create(&q).Error; err != nil {
			return err
		}
		return audit.Record(ctx, tx, audit.Entry{
			TenantID:   tenantID,
			EntityType: audit.EntityQuotation,
			EntityID:   q.ID,
			Action:     "create",
			Details:    map[string]any{"number": q.Number, "total": q.Total},
		})
	})
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// Update replaces the header and items of an unlocked draft or sent quotation.
func (s *QuotationService) Update(ctx context.Context, tenantID, id uint, in QuotationInput) (*models.Quotation, error) {
	const op = "quotation.update"
	if err := in.validate(op); err != nil {
		return nil, err
	}
	var q *models.Quotation
	err := db.RunTx(ctx, s.db, func(tx *gorm.DB) error {
		var err error
		if q, err = lockQuotation(tx, tenantID, id, op); err != nil {
			return err
		}
		if reason := q.EditBlocker(); reason != "" {
			return apperror.Conflict(op, reason)
		}
		snap, err := in.resolve(tx, tenantID, op)
		if err != nil {
			return err
		}
		before := q.Total

		if !in.Date.IsZero() {
			q.Date = in.Date
		}
		q.ValidUntil = in.ValidUntil
		q.CustomerID = in.CustomerID
		q.BillTo = snap
		q.DiscountType = in.DiscountType
		q.DiscountValue = in.DiscountValue
		q.TaxPercent = in.TaxPercent
		q.Notes = in.Notes
		q.Items = in.quotationItems()
		q.ApplyTotals(q.ComputeTotals())

		if err := tx.Where("quotation_id = ?", q.ID).Delete(&models.QuotationItem{}).Error; err != nil {
			return err
		}
		for i := range q.Items {
			q.Items[i].QuotationID = q.ID
		}
		if err := tx.Create(&q.Items).Error; err != nil {
			return err
		}
		err = tx.Model(&models.Quotation{}).Where("id = ?", q.ID).UpdateColumns(map[string]any{
			"date":             q.Date,
			"valid_until":      q.ValidUntil,
			"customer_id":      q.CustomerID,
			"customer_name":    q.BillTo.Name,
			"customer_phone":   q.BillTo.Phone,
			"customer_address": q.BillTo.Address,
			"discount_type":    q.DiscountType,
			"discount_value":   q.DiscountValue,
			"tax_percent":      q.TaxPercent,
			"subtotal":         q.Subtotal,
			"discount_amount":  q.DiscountAmount,
			"tax_amount":       q.TaxAmount,
			"total":            q.Total,
			"notes":            q.Notes,
			"updated_at":       s.opts.Now(),
		}).Error
		if err != nil {
			return err
		}
		return audit.Record(ctx, tx, audit.Entry{
			TenantID:   tenantID,
			EntityType: audit.EntityQuotation,
			EntityID:   q.ID,
			Action:     "update",
			Details:    map[string]any{"total_before": before, "total": q.Total},
		})
	})
	if err != nil {
		return nil, err
	}
	return q, nil
}

// MarkSent moves a draft quotation to sent.
func (s *QuotationService) MarkSent(ctx context.Context, tenantID, id uint) (*models.Quotation, error) {
	return s.transition(ctx, tenantID, id, models.QuotationStatusSent, "quotation.send", "send", "")
}

// Reject moves a sent quotation to rejected.
func (s *QuotationService) Reject(ctx context.Context, tenantID, id uint) (*models.Quotation, error) {
	return s.transition(ctx, tenantID, id, models.QuotationStatusRejected, "quotation.reject", "reject", "")
}

// Cancel moves a draft, sent or rejected quotation to cancelled.
func (s *QuotationService) Cancel(ctx context.Context, tenantID, id uint, reason string) (*models.Quotation, error) {
	return s.transition(ctx, tenantID, id, models.QuotationStatusCancelled, "quotation.cancel", "cancel", reason)
}

func (s *QuotationService) transition(ctx context.Context, tenantID, id uint, to models.QuotationStatus, op, action, reason string) (*models.Quotation, error) {
	var q *models.Quotation
	err := db.RunTx(ctx, s.db, func(tx *gorm.DB) error {
		var err error
		if q, err = lockQuotation(tx, tenantID, id, op); err != nil {
			return err
		}
		if blocker := q.TransitionBlocker(to); blocker != "" {
			return apperror.Conflict(op, blocker)
		}
		from := q.Status
		q.Status = to
		updates := map[string]any{"status": to, "updated_at": s.opts.Now()}
		if to == models.QuotationStatusCancelled {
			q.CancelReason = reason
			updates["cancel_reason"] = reason
		}
		if err := tx.Model(&models.Quotation{}).Where("id = ?", q.ID).UpdateColumns(updates).Error; err != nil {
			return err
		}
		details := map[string]any{"from": string(from), "to": string(to)}
		if reason != "" {
			details["reason"] = reason
		}
		return audit.Record(ctx, tx, audit.Entry{
			TenantID:   tenantID,
			EntityType: audit.EntityQuotation,
			EntityID:   q.ID,
			Action:     action,
			Details:    details,
		})
	})
	if err != nil {
		return nil, err
	}
	return q, nil
}

// Delete soft-deletes a quotation that never produced an invoice. Its number stays reserved.
func (s *QuotationService) Delete(ctx context.Context, tenantID, id uint) error {
	const op = "quotation.delete"
	return db.RunTx(ctx, s.db, func(tx *gorm.DB) error {
		q, err := lockQuotation(tx, tenantID, id, op)
		if err != nil {
			return err
		}
		if reason := q.DeleteBlocker(); reason != "" {
			return apperror.Conflict(op, reason)
		}
		if err := tx.Delete(q).Error; err != nil {
			return err
		}
		return audit.Record(ctx, tx, audit.Entry{
			TenantID:   tenantID,
			EntityType: audit.EntityQuotation,
			EntityID:   q.ID,
			Action:     "delete",
			Details:    map[string]any{"number": q.Number},
		})
	})
}

// Get returns a quotation with its items. Totals are recomputed from the items.
func (s *QuotationService) Get(ctx context.Context, tenantID, id uint) (*models.Quotation, error) {
	var q models.Quotation
	err := s.db.WithContext(ctx).
		Preload("Items", itemsByOrder).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&q).Error
	if err != nil {
		return nil, apperror.FromDB("quotation.get", "quotation", err)
	}
	q.ApplyTotals(q.ComputeTotals())
	return &q, nil
}

// List returns quotations newest first, without items.
func (s *QuotationService) List(ctx context.Context, tenantID uint, f ListFilter) (*Page[models.Quotation], error) {
	f = f.normalize()
	if f.Status != "" && !models.QuotationStatus(f.Status).Valid() {
		return nil, apperror.Invalid("quotation.list", "status", "unsupported_value")
	}
	q := s.db.WithContext(ctx).Model(&models.Quotation{}).Where("tenant_id = ?", tenantID)
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	q = searchDocuments(q, f.Search).Session(&gorm.Session{})

	page := &Page[models.Quotation]{Items: []models.Quotation{}, Page: f.Page, Limit: f.Limit}
	if err := q.Count(&page.Total).Error; err != nil {
		return nil, err
	}
	if err := q.Order("date DESC, id DESC").Limit(f.Limit).Offset(f.offset()).Find(&page.Items).Error; err != nil {
		return nil, err
	}
	return page, nil
}

func lockQuotation(tx *gorm.DB, tenantID, id uint, op string) (*models.Quotation, error) {
	var q models.Quotation
	err := db.ForUpdate(tx).Where("tenant_id = ? AND id = ?", tenantID, id).First(&q).Error
	if err != nil {
		return nil, apperror.FromDB(op, "quotation", err)
	}
	return &q, nil
}
