// Package models holds the persisted billing entities and the lifecycle
// predicates that guard their transitions.
package models

// All lists every model in dependency order, for AutoMigrate.
func All() []any {
	return []any{
		&Organization{},
		&Customer{},
		&Product{},
		&DocumentSequence{},
		&Quotation{},
		&QuotationItem{},
		&Invoice{},
		&InvoiceItem{},
		&Payment{},
		&DeliveryNote{},
		&DeliveryNoteItem{},
		&AuditLog{},
	}
}
