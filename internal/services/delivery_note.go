package services

import (
	"context"
	"errors"

	"github.com/diewo77/go-billing/internal/apperror"
	"github.com/diewo77/go-billing/internal/audit"
	"github.com/diewo77/go-billing/internal/models"
	"github.com/diewo77/go-billing/internal/sequence"
	"gorm.io/gorm"
)

type DeliveryNoteService struct {
	db   *gorm.DB
	opts Options
}

func NewDeliveryNoteService(conn *gorm.DB, opts Options) *DeliveryNoteService {
	return &DeliveryNoteService{db: conn, opts: opts.withDefaults()}
}

// GetOrCreate returns the delivery note of an invoice, creating it on first
// use. created reports whether this call issued it.
func (s *DeliveryNoteService) GetOrCreate(ctx context.Context, tenantID, invoiceID uint) (note *models.DeliveryNote, created bool, err error) {
	const op = "delivery_note.create"
	err = runNumbered(ctx, s.db, s.opts, op, func(tx *gorm.DB) error {
		created = false
		inv, err := lockInvoice(tx, tenantID, invoiceID, op)
		if err != nil {
			return err
		}
		if existing, err := findNote(tx, tenantID, inv.ID); err != nil || existing != nil {
			note = existing
			return err
		}
		if inv.Status == models.InvoiceStatusCancelled {
			return apperror.Conflict(op, "invoice is cancelled; no delivery note can be issued")
		}

		var items []models.InvoiceItem
		if err := itemsByOrder(tx.Where("invoice_id = ?", inv.ID)).Find(&items).Error; err != nil {
			return err
		}
		number, err := s.opts.Numbers.Next(ctx, tx, tenantID, sequence.KindDeliveryNote, s.opts.Now())
		if err != nil {
			return err
		}
		n := models.DeliveryNote{
			TenantID:      tenantID,
			InvoiceID:     inv.ID,
			Number:        number,
			InvoiceNumber: inv.Number,
			Date:          s.opts.Now(),
			ShipTo:        inv.BillTo,
			Items:         make([]models.DeliveryNoteItem, len(items)),
		}
		for i, it := range items {
			n.Items[i] = models.DeliveryNoteItem{Name: it.Name, Quantity: it.Quantity, SortOrder: i}
		}
		// A concurrent request for the same invoice fails here on the
		// (tenant, invoice) index; the retry then finds its note.
		if err := tx.Create(&n).Error; err != nil {
			return err
		}
		note, created = &n, true
		return audit.Record(ctx, tx, audit.Entry{
			TenantID:   tenantID,
			EntityType: audit.EntityDeliveryNote,
			EntityID:   n.ID,
			Action:     "create",
			Details:    map[string]any{"number": n.Number, "invoice_id": inv.ID},
		})
	})
	if err != nil {
		return nil, false, err
	}
	return note, created, nil
}

// Get returns a delivery note with its items.
func (s *DeliveryNoteService) Get(ctx context.Context, tenantID, id uint) (*models.DeliveryNote, error) {
	var n models.DeliveryNote
	err := s.db.WithContext(ctx).
		Preload("Items", itemsByOrder).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&n).Error
	if err != nil {
		return nil, apperror.FromDB("delivery_note.get", "delivery note", err)
	}
	return &n, nil
}

func findNote(tx *gorm.DB, tenantID, invoiceID uint) (*models.DeliveryNote, error) {
	var n models.DeliveryNote
	err := tx.Preload("Items", itemsByOrder).
		Where("tenant_id = ? AND invoice_id = ?", tenantID, invoiceID).
		First(&n).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}
