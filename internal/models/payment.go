package models

import (
	"time"

	"gorm.io/gorm"
)

// Payment is one entry of an invoice's ledger. Deleting it is a soft delete,
// so only live entries count towards Invoice.AmountPaid.
type Payment struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	TenantID  uint `gorm:"index;not null" json:"tenant_id"`
	InvoiceID uint `gorm:"index;not null" json:"invoice_id"`

	Date   time.Time `gorm:"not null" json:"date"`
	Amount int64     `gorm:"not null" json:"amount"`
	Method string    `gorm:"size:50" json:"method,omitempty"` // transfer, card, cash...
	Note   string    `gorm:"size:500" json:"note,omitempty"`
}
