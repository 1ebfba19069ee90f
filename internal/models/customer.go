package models

import (
	"time"

	"gorm.io/gorm"
)

// Customer is a tenant-scoped address book entry. Documents never reference it
// live; they copy a CustomerSnapshot at creation time.
type Customer struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	TenantID uint `gorm:"index;not null" json:"tenant_id"`

	Name       string `gorm:"size:255;not null" json:"name"`
	Email      string `gorm:"size:255" json:"email,omitempty"`
	Phone      string `gorm:"size:50" json:"phone,omitempty"`
	Address    string `gorm:"size:500" json:"address,omitempty"`
	City       string `gorm:"size:100" json:"city,omitempty"`
	PostalCode string `gorm:"size:20" json:"postal_code,omitempty"`
	Country    string `gorm:"size:100" json:"country,omitempty"`
}

// FullAddress returns the formatted full address.
func (c *Customer) FullAddress() string {
	addr := c.Address
	if c.PostalCode != "" || c.City != "" {
		if addr != "" {
			addr += "\n"
		}
		addr += c.PostalCode
		if c.PostalCode != "" && c.City != "" {
			addr += " "
		}
		addr += c.City
	}
	if c.Country != "" {
		if addr != "" {
			addr += "\n"
		}
		addr += c.Country
	}
	return addr
}

// Snapshot copies the fields printed on a document.
func (c *Customer) Snapshot() CustomerSnapshot {
	return CustomerSnapshot{Name: c.Name, Phone: c.Phone, Address: c.FullAddress()}
}

// CustomerSnapshot is the customer as it was when the document was created.
type CustomerSnapshot struct {
	Name    string `gorm:"size:255;not null" json:"name"`
	Phone   string `gorm:"size:50" json:"phone,omitempty"`
	Address string `gorm:"size:500" json:"address,omitempty"`
}

// Product is a catalog entry. Line items may point at one for lookup only.
type Product struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	TenantID uint `gorm:"not null;uniqueIndex:idx_products_tenant_code,priority:1" json:"tenant_id"`

	Code      string `gorm:"size:50;not null;uniqueIndex:idx_products_tenant_code,priority:2" json:"code"`
	Name      string `gorm:"size:255;not null" json:"name"`
	UnitPrice int64  `gorm:"not null;default:0" json:"unit_price"`
	Unit      string `gorm:"size:50;default:'unit'" json:"unit"`
}
