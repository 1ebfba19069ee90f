package models

import "time"

// DeliveryNote is the shipment record of an invoice. There is at most one per invoice.
type DeliveryNote struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	TenantID  uint `gorm:"not null;uniqueIndex:idx_delivery_notes_tenant_invoice,priority:1;uniqueIndex:idx_delivery_notes_tenant_number,priority:1" json:"tenant_id"`
	InvoiceID uint `gorm:"not null;uniqueIndex:idx_delivery_notes_tenant_invoice,priority:2" json:"invoice_id"`

	Number        string           `gorm:"size:50;not null;uniqueIndex:idx_delivery_notes_tenant_number,priority:2" json:"number"`
	InvoiceNumber string           `gorm:"size:50;not null" json:"invoice_number"`
	Date          time.Time        `gorm:"not null" json:"date"`
	ShipTo        CustomerSnapshot `gorm:"embedded;embeddedPrefix:customer_" json:"customer"`

	Items []DeliveryNoteItem `gorm:"foreignKey:DeliveryNoteID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

// DeliveryNoteItem carries names and quantities only. Prices stay on the invoice.
type DeliveryNoteItem struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	DeliveryNoteID uint   `gorm:"index;not null" json:"-"`
	Name           string `gorm:"size:255;not null" json:"name"`
	Quantity       int64  `gorm:"not null" json:"quantity"`
	SortOrder      int    `gorm:"not null;default:0" json:"sort_order"`
}
