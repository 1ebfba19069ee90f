package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Organization is the tenant. Every document, ledger entry and counter is scoped to one.
type Organization struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Display profile
	Name    string `gorm:"size:255;not null" json:"name"`
	Email   string `gorm:"size:255" json:"email,omitempty"`
	Phone   string `gorm:"size:50" json:"phone,omitempty"`
	Address string `gorm:"size:500" json:"address,omitempty"`
	City    string `gorm:"size:100" json:"city,omitempty"`
	Country string `gorm:"size:100" json:"country,omitempty"`

	TaxNumber     string `gorm:"size:50" json:"tax_number,omitempty"`
	LogoURL       string `gorm:"size:500" json:"logo_url,omitempty"`
	SignatoryName string `gorm:"size:255" json:"signatory_name,omitempty"`

	// Bank details printed on invoices
	BankName          string `gorm:"size:255" json:"bank_name,omitempty"`
	BankAccountName   string `gorm:"size:255" json:"bank_account_name,omitempty"`
	BankAccountNumber string `gorm:"size:100" json:"bank_account_number,omitempty"`

	// bcrypt hash of the key exchanged for a session; empty disables API login.
	APIKeyHash string `gorm:"size:100" json:"-"`
}

// FullAddress joins the non-empty address parts, one per line.
func (o *Organization) FullAddress() string {
	return joinLines(o.Address, o.City, o.Country)
}

// HasBankDetails reports whether a payment block can be printed.
func (o *Organization) HasBankDetails() bool {
	return o.BankName != "" || o.BankAccountNumber != ""
}

func joinLines(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n")
}
