package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/diewo77/go-billing/internal/calc"
	"github.com/diewo77/go-billing/internal/db"
	"github.com/diewo77/go-billing/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, time.July, 14, 10, 0, 0, 0, time.UTC)

const (
	tenantA uint = 1
	tenantB uint = 2
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), db.GormConfig(false))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))
	return conn
}

// oneConnection queues concurrent transactions on a single connection. Shared-cache
// SQLite reports table locks to concurrent writers where postgres would block on the row.
func oneConnection(t *testing.T, conn *gorm.DB) {
	t.Helper()
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
}

func newTestServices(t *testing.T) (*Services, *gorm.DB) {
	t.Helper()
	conn := setupTestDB(t)
	return New(conn, Options{Now: func() time.Time { return testNow }}), conn
}

// sampleDocument is the reference scenario: subtotal 200000, 10% off, 11% tax, total 199800.
func sampleDocument() DocumentInput {
	return DocumentInput{
		Customer:      models.CustomerSnapshot{Name: "Acme Ltd", Phone: "555-0101", Address: "1 Main St"},
		DiscountType:  calc.DiscountPercent,
		DiscountValue: decimal.NewFromInt(10),
		TaxPercent:    decimal.NewFromInt(11),
		Items: []ItemInput{
			{Name: "Consulting", Quantity: 2, UnitPrice: 50000},
			{Name: "Setup", Quantity: 1, UnitPrice: 100000},
		},
	}
}

func sampleQuotation() QuotationInput { return QuotationInput{DocumentInput: sampleDocument()} }

func sampleInvoice() InvoiceInput { return InvoiceInput{DocumentInput: sampleDocument()} }

func auditActions(t *testing.T, conn *gorm.DB, entityType string, id uint) []string {
	t.Helper()
	var rows []models.AuditLog
	require.NoError(t, conn.Where("entity_type = ? AND entity_id = ?", entityType, id).Order("id").Find(&rows).Error)
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Action
	}
	return out
}
