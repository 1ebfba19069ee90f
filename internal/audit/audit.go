// Package audit appends audit log rows inside the caller's transaction.
package audit

import (
	"context"
	"fmt"

	"github.com/diewo77/go-billing/internal/logger"
	"github.com/diewo77/go-billing/internal/models"
	"gorm.io/gorm"
)

// Entity types.
const (
	EntityQuotation    = "quotation"
	EntityInvoice      = "invoice"
	EntityPayment      = "payment"
	EntityDeliveryNote = "delivery_note"
)

// Entry is a single audited action.
type Entry struct {
	TenantID   uint
	EntityType string
	EntityID   uint
	Action     string
	Details    map[string]any
}

// Record writes e using tx. The request id carried by ctx is stamped on the row.
func Record(ctx context.Context, tx *gorm.DB, e Entry) error {
	row := models.AuditLog{
		TenantID:   e.TenantID,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Action:     e.Action,
		Details:    e.Details,
		RequestID:  logger.RequestID(ctx),
	}
	if err := tx.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("audit: record %s %s: %w", e.EntityType, e.Action, err)
	}
	return nil
}

// List returns the audit rows for one entity, oldest first.
func List(ctx context.Context, conn *gorm.DB, tenantID uint, entityType string, entityID uint) ([]models.AuditLog, error) {
	var rows []models.AuditLog
	err := conn.WithContext(ctx).
		Where("tenant_id = ? AND entity_type = ? AND entity_id = ?", tenantID, entityType, entityID).
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}
