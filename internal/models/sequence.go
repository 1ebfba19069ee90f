package models

import "time"

// DocumentSequence is the per-tenant, per-kind, per-month counter behind document numbers.
type DocumentSequence struct {
	ID        uint      `gorm:"primaryKey"`
	UpdatedAt time.Time

	TenantID  uint   `gorm:"not null;uniqueIndex:idx_document_sequences_key,priority:1"`
	Kind      string `gorm:"size:30;not null;uniqueIndex:idx_document_sequences_key,priority:2"`
	Period    string `gorm:"size:6;not null;uniqueIndex:idx_document_sequences_key,priority:3"` // YYYYMM
	LastValue int64  `gorm:"not null;default:0"`
}
