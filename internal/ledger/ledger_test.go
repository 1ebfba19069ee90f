package ledger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/diewo77/go-billing/internal/apperror"
	"github.com/diewo77/go-billing/internal/calc"
	"github.com/diewo77/go-billing/internal/db"
	"github.com/diewo77/go-billing/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var fixedNow = time.Date(2026, time.June, 10, 9, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), db.GormConfig(false))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))
	return conn
}

// createInvoice stores an invoice of the given total as a single line.
func createInvoice(t *testing.T, conn *gorm.DB, tenantID uint, number string, total int64, status models.InvoiceStatus) *models.Invoice {
	t.Helper()
	inv := models.Invoice{
		TenantID:   tenantID,
		Number:     number,
		IssueDate:  fixedNow,
		BillTo:     models.CustomerSnapshot{Name: "Acme"},
		TaxPercent: decimal.Zero,
		Status:     status,
		Items:      []models.InvoiceItem{{Name: "Service", Quantity: 1, UnitPrice: total}},
	}
	inv.ApplyTotals(inv.ComputeTotals())
	require.NoError(t, conn.Create(&inv).Error)
	return &inv
}

func reload(t *testing.T, conn *gorm.DB, id uint) models.Invoice {
	t.Helper()
	var inv models.Invoice
	require.NoError(t, conn.First(&inv, id).Error)
	return inv
}

func TestDerivePayStatus(t *testing.T) {
	tests := []struct {
		total, paid int64
		want        models.PayStatus
	}{
		{0, 0, models.PayStatusUnpaid},
		{0, 500, models.PayStatusUnpaid},
		{-10, 0, models.PayStatusUnpaid},
		{1000, 0, models.PayStatusUnpaid},
		{1000, 1, models.PayStatusPartial},
		{1000, 999, models.PayStatusPartial},
		{1000, 1000, models.PayStatusPaid},
		{1000, 1500, models.PayStatusPaid},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DerivePayStatus(tt.total, tt.paid), "total=%d paid=%d", tt.total, tt.paid)
	}
	assert.Equal(t, int64(0), Remaining(100, 150))
	assert.Equal(t, int64(40), Remaining(100, 60))
}

func TestPartialThenFullPayment(t *testing.T) {
	conn := setupTestDB(t)
	l := New(conn).WithClock(func() time.Time { return fixedNow })
	inv := createInvoice(t, conn, 1, "INV-202606-0001", 199800, models.InvoiceStatusSent)
	ctx := context.Background()

	res, err := l.Record(ctx, 1, inv.ID, PaymentInput{Amount: 100000, Method: "transfer"})
	require.NoError(t, err)
	assert.Equal(t, models.PayStatusPartial, res.Summary.PayStatus)
	assert.Equal(t, int64(99800), res.Summary.Remaining)
	assert.Equal(t, models.InvoiceStatusSent, res.Invoice.Status)
	assert.Equal(t, fixedNow, res.Payment.Date.UTC())

	res, err = l.Record(ctx, 1, inv.ID, PaymentInput{Amount: 99800})
	require.NoError(t, err)
	assert.Equal(t, models.PayStatusPaid, res.Summary.PayStatus)
	assert.Zero(t, res.Summary.Remaining)

	got := reload(t, conn, inv.ID)
	assert.Equal(t, models.InvoiceStatusPaid, got.Status)
	assert.Equal(t, int64(199800), got.AmountPaid)
	require.NotNil(t, got.PaidAt)

	var audits int64
	conn.Model(&models.AuditLog{}).Where("entity_type = ? AND action = ?", "payment", "record").Count(&audits)
	assert.Equal(t, int64(2), audits)
}

func TestRecordRejections(t *testing.T) {
	conn := setupTestDB(t)
	l := New(conn)
	ctx := context.Background()
	inv := createInvoice(t, conn, 1, "INV-202606-0001", 1000, models.InvoiceStatusDraft)
	cancelled := createInvoice(t, conn, 1, "INV-202606-0002", 1000, models.InvoiceStatusCancelled)

	for _, amount := range []int64{0, -5} {
		_, err := l.Record(ctx, 1, inv.ID, PaymentInput{Amount: amount})
		assert.ErrorIs(t, err, apperror.ErrValidation)
		assert.Equal(t, "must_be_positive", apperror.FieldsOf(err)["amount"])
	}

	_, err := l.Record(ctx, 1, inv.ID, PaymentInput{Amount: calc.MaxAmount + 1})
	assert.ErrorIs(t, err, apperror.ErrValidation)
	assert.Equal(t, "out_of_range", apperror.FieldsOf(err)["amount"])

	_, err = l.Record(ctx, 1, cancelled.ID, PaymentInput{Amount: 10})
	assert.ErrorIs(t, err, apperror.ErrConflict)

	_, err = l.Record(ctx, 2, inv.ID, PaymentInput{Amount: 10})
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	var n int64
	conn.Model(&models.Payment{}).Count(&n)
	assert.Zero(t, n)
}

func TestDeleteRevertsAmountPaid(t *testing.T) {
	conn := setupTestDB(t)
	l := New(conn)
	ctx := context.Background()
	inv := createInvoice(t, conn, 1, "INV-202606-0001", 1000, models.InvoiceStatusSent)

	first, err := l.Record(ctx, 1, inv.ID, PaymentInput{Amount: 300})
	require.NoError(t, err)
	_, err = l.Record(ctx, 1, inv.ID, PaymentInput{Amount: 200})
	require.NoError(t, err)

	res, err := l.Delete(ctx, 1, first.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(200), res.Invoice.AmountPaid)
	assert.Equal(t, models.PayStatusPartial, res.Summary.PayStatus)

	payments, err := l.List(ctx, 1, inv.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, int64(200), payments[0].Amount)

	_, err = l.Delete(ctx, 1, first.Payment.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestUpdateOnPaidInvoice(t *testing.T) {
	conn := setupTestDB(t)
	l := New(conn)
	ctx := context.Background()
	inv := createInvoice(t, conn, 1, "INV-202606-0001", 1000, models.InvoiceStatusSent)

	res, err := l.Record(ctx, 1, inv.ID, PaymentInput{Amount: 1000})
	require.NoError(t, err)
	require.Equal(t, models.InvoiceStatusPaid, res.Invoice.Status)
	pid := res.Payment.ID

	_, err = l.Update(ctx, 1, pid, PaymentInput{Amount: 900})
	assert.ErrorIs(t, err, apperror.ErrConflict)
	_, err = l.Delete(ctx, 1, pid)
	assert.ErrorIs(t, err, apperror.ErrConflict)

	res, err = l.Update(ctx, 1, pid, PaymentInput{Amount: 1200, Note: "rounded up"})
	require.NoError(t, err)
	assert.Equal(t, int64(1200), res.Invoice.AmountPaid)
	assert.Equal(t, models.InvoiceStatusPaid, res.Invoice.Status)
	assert.Equal(t, "rounded up", res.Payment.Note)

	// Over-payment on a paid invoice is still recorded.
	res, err = l.Record(ctx, 1, inv.ID, PaymentInput{Amount: 50})
	require.NoError(t, err)
	assert.Equal(t, int64(1250), res.Invoice.AmountPaid)
}

func TestZeroTotalInvoiceStaysUnpaid(t *testing.T) {
	conn := setupTestDB(t)
	l := New(conn)
	inv := createInvoice(t, conn, 1, "INV-202606-0001", 0, models.InvoiceStatusSent)

	res, err := l.Record(context.Background(), 1, inv.ID, PaymentInput{Amount: 10})
	require.NoError(t, err)
	assert.Equal(t, models.PayStatusUnpaid, res.Summary.PayStatus)
	assert.Equal(t, models.InvoiceStatusSent, reload(t, conn, inv.ID).Status)
}

func TestReconcileRecomputesStaleTotals(t *testing.T) {
	conn := setupTestDB(t)
	inv := createInvoice(t, conn, 1, "INV-202606-0001", 1000, models.InvoiceStatusDraft)
	require.NoError(t, conn.Model(&models.Invoice{}).Where("id = ?", inv.ID).
		UpdateColumns(map[string]any{"total": 1, "subtotal": 1, "amount_paid": 77}).Error)

	stale := reload(t, conn, inv.ID)
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		return Reconcile(tx, &stale, fixedNow)
	}))

	got := reload(t, conn, inv.ID)
	assert.Equal(t, int64(1000), got.Total)
	assert.Equal(t, int64(1000), got.Subtotal)
	assert.Zero(t, got.AmountPaid)
	assert.Equal(t, models.InvoiceStatusDraft, got.Status)
}
