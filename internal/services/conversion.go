package services

import (
	"context"
	"errors"

	"github.com/diewo77/go-billing/internal/apperror"
	"github.com/diewo77/go-billing/internal/audit"
	"github.com/diewo77/go-billing/internal/db"
	"github.com/diewo77/go-billing/internal/logger"
	"github.com/diewo77/go-billing/internal/models"
	"gorm.io/gorm"
)

// errLinkedElsewhere aborts a conversion transaction whose quotation was
// linked by a concurrent request between the read and the link write.
var errLinkedElsewhere = errors.New("quotation linked by a concurrent conversion")

// ConversionService turns quotations into invoices. The conversion is
// one-way and idempotent: a quotation produces at most one invoice.
type ConversionService struct {
	db       *gorm.DB
	opts     Options
	invoices *InvoiceService
}

func NewConversionService(conn *gorm.DB, opts Options) *ConversionService {
	opts = opts.withDefaults()
	return &ConversionService{db: conn, opts: opts, invoices: NewInvoiceService(conn, opts)}
}

// Prefill is the invoice input derived from a quotation. InvoiceID is set
// when the quotation was already converted.
type Prefill struct {
	Input           InvoiceInput `json:"input"`
	QuotationNumber string       `json:"quotation_number"`
	InvoiceID       *uint        `json:"invoice_id,omitempty"`
}

// ConversionResult carries the invoice a quotation produced. Created is false
// when the quotation had already been converted.
type ConversionResult struct {
	Invoice models.Invoice `json:"invoice"`
	Created bool           `json:"created"`
}

// Prefill returns the invoice input a conversion of the quotation would use.
func (s *ConversionService) Prefill(ctx context.Context, tenantID, quotationID uint) (*Prefill, error) {
	q, err := s.loadQuotation(s.db.WithContext(ctx), tenantID, quotationID, "quotation.prefill")
	if err != nil {
		return nil, err
	}
	return &Prefill{Input: prefillFrom(q), QuotationNumber: q.Number, InvoiceID: q.InvoiceID}, nil
}

// Convert creates the invoice for a quotation, or returns the one it already produced.
func (s *ConversionService) Convert(ctx context.Context, tenantID, quotationID uint) (*ConversionResult, error) {
	return s.convert(ctx, tenantID, quotationID, nil)
}

// convert creates the invoice from override when given, from the quotation's
// prefill otherwise. The invoice insert and the quotation link commit together.
func (s *ConversionService) convert(ctx context.Context, tenantID, quotationID uint, override *InvoiceInput) (*ConversionResult, error) {
	const op = "quotation.convert"
	q, err := s.loadQuotation(s.db.WithContext(ctx), tenantID, quotationID, op)
	if err != nil {
		return nil, err
	}
	if q.InvoiceID != nil {
		return s.existing(ctx, tenantID, *q.InvoiceID, op)
	}
	if reason := q.TransitionBlocker(models.QuotationStatusAccepted); reason != "" {
		return nil, apperror.Conflict(op, reason)
	}

	in := prefillFrom(q)
	if override != nil {
		in = *override
	}
	in.QuotationID = &q.ID
	if err := in.validate(op); err != nil {
		return nil, err
	}

	var (
		inv      *models.Invoice
		linkedTo *uint
	)
	err = runNumbered(ctx, s.db, s.opts, op, func(tx *gorm.DB) error {
		linkedTo = nil
		var cur models.Quotation
		if err := db.ForUpdate(tx).Where("tenant_id = ? AND id = ?", tenantID, quotationID).First(&cur).Error; err != nil {
			return apperror.FromDB(op, "quotation", err)
		}
		if cur.InvoiceID != nil {
			linkedTo = cur.InvoiceID
			return nil
		}
		if reason := cur.TransitionBlocker(models.QuotationStatusAccepted); reason != "" {
			return apperror.Conflict(op, reason)
		}

		created, err := s.invoices.insert(ctx, tx, tenantID, in, &cur, op)
		if err != nil {
			return err
		}
		res := tx.Model(&models.Quotation{}).
			Where("tenant_id = ? AND id = ? AND invoice_id IS NULL", tenantID, cur.ID).
			UpdateColumns(map[string]any{
				"invoice_id": created.ID,
				"is_locked":  true,
				"status":     models.QuotationStatusAccepted,
				"updated_at": s.opts.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errLinkedElsewhere
		}
		inv = created
		return audit.Record(ctx, tx, audit.Entry{
			TenantID:   tenantID,
			EntityType: audit.EntityQuotation,
			EntityID:   cur.ID,
			Action:     "convert",
			Details:    map[string]any{"invoice_id": created.ID, "invoice_number": created.Number},
		})
	})

	switch {
	case errors.Is(err, errLinkedElsewhere):
		// The winner has committed by now; read its link outside our rolled-back tx.
		q, err = s.loadQuotation(s.db.WithContext(ctx), tenantID, quotationID, op)
		if err != nil {
			return nil, err
		}
		if q.InvoiceID == nil {
			return nil, apperror.Conflict(op, "quotation conversion is in progress, retry")
		}
		return s.existing(ctx, tenantID, *q.InvoiceID, op)
	case err != nil:
		return nil, err
	case linkedTo != nil:
		return s.existing(ctx, tenantID, *linkedTo, op)
	}

	logger.Ctx(ctx).Info().
		Uint("tenant_id", tenantID).
		Str("quotation", q.Number).
		Str("invoice", inv.Number).
		Msg("quotation converted")
	return &ConversionResult{Invoice: *inv, Created: true}, nil
}

func (s *ConversionService) existing(ctx context.Context, tenantID, invoiceID uint, op string) (*ConversionResult, error) {
	var inv models.Invoice
	err := s.db.WithContext(ctx).
		Preload("Items", itemsByOrder).
		Where("tenant_id = ? AND id = ?", tenantID, invoiceID).
		First(&inv).Error
	if err != nil {
		return nil, apperror.FromDB(op, "invoice", err)
	}
	return &ConversionResult{Invoice: inv}, nil
}

func (s *ConversionService) loadQuotation(conn *gorm.DB, tenantID, id uint, op string) (*models.Quotation, error) {
	var q models.Quotation
	err := conn.Preload("Items", itemsByOrder).Where("tenant_id = ? AND id = ?", tenantID, id).First(&q).Error
	if err != nil {
		return nil, apperror.FromDB(op, "quotation", err)
	}
	return &q, nil
}

// prefillFrom copies the snapshot, pricing configuration and items of q. The
// quotation's snapshot is used as is rather than re-read from the customer.
func prefillFrom(q *models.Quotation) InvoiceInput {
	in := InvoiceInput{
		DocumentInput: DocumentInput{
			Customer:      q.BillTo,
			DiscountType:  q.DiscountType,
			DiscountValue: q.DiscountValue,
			TaxPercent:    q.TaxPercent,
			Notes:         q.Notes,
			Items:         make([]ItemInput, len(q.Items)),
		},
		QuotationID: &q.ID,
	}
	for i, it := range q.Items {
		in.Items[i] = ItemInput{ProductID: it.ProductID, Name: it.Name, Quantity: it.Quantity, UnitPrice: it.UnitPrice}
	}
	return in
}
