package models

import (
	"time"

	"gorm.io/datatypes"
)

// AuditLog records who did what to which document.
type AuditLog struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	CreatedAt  time.Time         `gorm:"index" json:"created_at"`
	TenantID   uint              `gorm:"index:idx_audit_logs_entity,priority:1;not null" json:"tenant_id"`
	EntityType string            `gorm:"size:50;index:idx_audit_logs_entity,priority:2;not null" json:"entity_type"` // quotation, invoice, payment, delivery_note
	EntityID   uint              `gorm:"index:idx_audit_logs_entity,priority:3;not null" json:"entity_id"`
	Action     string            `gorm:"size:50;not null" json:"action"`
	Details    datatypes.JSONMap `json:"details,omitempty"`
	RequestID  string            `gorm:"size:64" json:"request_id,omitempty"`
}
