package services

import (
	"context"
	"testing"

	"github.com/diewo77/go-billing/internal/apperror"
	"github.com/diewo77/go-billing/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateQuotation(t *testing.T) {
	svc, conn := newTestServices(t)
	ctx := context.Background()

	q, err := svc.Quotations.Create(ctx, tenantA, sampleQuotation())
	require.NoError(t, err)
	assert.Equal(t, "QUO-202607-0001", q.Number)
	assert.Equal(t, models.QuotationStatusDraft, q.Status)
	assert.Equal(t, int64(200000), q.Subtotal)
	assert.Equal(t, int64(20000), q.DiscountAmount)
	assert.Equal(t, int64(19800), q.TaxAmount)
	assert.Equal(t, int64(199800), q.Total)
	assert.Equal(t, testNow, q.Date)
	assert.Equal(t, []string{"create"}, auditActions(t, conn, "quotation", q.ID))

	got, err := svc.Quotations.Get(ctx, tenantA, q.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "Consulting", got.Items[0].Name)
	assert.Equal(t, "Setup", got.Items[1].Name)
	assert.Equal(t, "Acme Ltd", got.BillTo.Name)

	second, err := svc.Quotations.Create(ctx, tenantA, sampleQuotation())
	require.NoError(t, err)
	assert.Equal(t, "QUO-202607-0002", second.Number)

	other, err := svc.Quotations.Create(ctx, tenantB, sampleQuotation())
	require.NoError(t, err)
	assert.Equal(t, "QUO-202607-0001", other.Number)
}

func TestCreateQuotationValidation(t *testing.T) {
	svc, _ := newTestServices(t)
	ctx := context.Background()

	in := sampleQuotation()
	in.Customer.Name = ""
	in.Items[1].Name = "  "
	in.Items[0].Quantity = -1
	_, err := svc.Quotations.Create(ctx, tenantA, in)
	require.ErrorIs(t, err, apperror.ErrValidation)
	fields := apperror.FieldsOf(err)
	assert.Equal(t, "required", fields["customer.name"])
	assert.Equal(t, "required", fields["items[1].name"])
	assert.Equal(t, "must_not_be_negative", fields["items[0].quantity"])

	empty := sampleQuotation()
	empty.Items = nil
	_, err = svc.Quotations.Create(ctx, tenantA, empty)
	require.ErrorIs(t, err, apperror.ErrValidation)
	assert.Equal(t, "too_short", apperror.FieldsOf(err)["items"])

	var n int64
	svc.Quotations.db.Model(&models.Quotation{}).Count(&n)
	assert.Zero(t, n)
}

func TestCreateQuotationFromCustomer(t *testing.T) {
	svc, conn := newTestServices(t)
	ctx := context.Background()
	mine := models.Customer{TenantID: tenantA, Name: "Globex", Phone: "555-0199", Address: "9 Side St", City: "Springfield"}
	theirs := models.Customer{TenantID: tenantB, Name: "Initech"}
	require.NoError(t, conn.Create(&mine).Error)
	require.NoError(t, conn.Create(&theirs).Error)

	in := sampleQuotation()
	in.Customer = models.CustomerSnapshot{}
	in.CustomerID = &mine.ID
	q, err := svc.Quotations.Create(ctx, tenantA, in)
	require.NoError(t, err)
	assert.Equal(t, "Globex", q.BillTo.Name)
	assert.Equal(t, "9 Side St\nSpringfield", q.BillTo.Address)

	// The snapshot does not follow later edits of the customer.
	require.NoError(t, conn.Model(&mine).Update("name", "Globex Corp").Error)
	got, err := svc.Quotations.Get(ctx, tenantA, q.ID)
	require.NoError(t, err)
	assert.Equal(t, "Globex", got.BillTo.Name)

	in.CustomerID = &theirs.ID
	_, err = svc.Quotations.Create(ctx, tenantA, in)
	require.ErrorIs(t, err, apperror.ErrValidation)
	assert.Equal(t, "unknown", apperror.FieldsOf(err)["customer_id"])
}

func TestCreateQuotationRejectsForeignProduct(t *testing.T) {
	svc, conn := newTestServices(t)
	foreign := models.Product{TenantID: tenantB, Code: "P-1", Name: "Widget", UnitPrice: 100}
	require.NoError(t, conn.Create(&foreign).Error)

	in := sampleQuotation()
	in.Items[1].ProductID = &foreign.ID
	_, err := svc.Quotations.Create(context.Background(), tenantA, in)
	require.ErrorIs(t, err, apperror.ErrValidation)
	assert.Equal(t, "unknown", apperror.FieldsOf(err)["items[1].product_id"])
}

func TestQuotationTransitions(t *testing.T) {
	svc, conn := newTestServices(t)
	ctx := context.Background()
	q, err := svc.Quotations.Create(ctx, tenantA, sampleQuotation())
	require.NoError(t, err)

	_, err = svc.Quotations.Reject(ctx, tenantA, q.ID)
	assert.ErrorIs(t, err, apperror.ErrConflict, "draft cannot be rejected")

	sent, err := svc.Quotations.MarkSent(ctx, tenantA, q.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QuotationStatusSent, sent.Status)

	_, err = svc.Quotations.MarkSent(ctx, tenantA, q.ID)
	assert.ErrorIs(t, err, apperror.ErrConflict)

	// Sent quotations can still be edited.
	edit := sampleQuotation()
	edit.Items = edit.Items[:1]
	updated, err := svc.Quotations.Update(ctx, tenantA, q.ID, edit)
	require.NoError(t, err)
	assert.Equal(t, int64(99900), updated.Total)

	rejected, err := svc.Quotations.Reject(ctx, tenantA, q.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QuotationStatusRejected, rejected.Status)

	_, err = svc.Quotations.Update(ctx, tenantA, q.ID, sampleQuotation())
	assert.ErrorIs(t, err, apperror.ErrConflict)

	cancelled, err := svc.Quotations.Cancel(ctx, tenantA, q.ID, "customer went elsewhere")
	require.NoError(t, err)
	assert.Equal(t, models.QuotationStatusCancelled, cancelled.Status)

	_, err = svc.Quotations.Cancel(ctx, tenantA, q.ID, "")
	assert.ErrorIs(t, err, apperror.ErrConflict)

	got, err := svc.Quotations.Get(ctx, tenantA, q.ID)
	require.NoError(t, err)
	assert.Equal(t, "customer went elsewhere", got.CancelReason)
	require.Len(t, got.Items, 1)
	assert.Equal(t, []string{"create", "send", "update", "reject", "cancel"}, auditActions(t, conn, "quotation", q.ID))
}

func TestQuotationTenantIsolation(t *testing.T) {
	svc, _ := newTestServices(t)
	ctx := context.Background()
	q, err := svc.Quotations.Create(ctx, tenantA, sampleQuotation())
	require.NoError(t, err)

	_, err = svc.Quotations.Get(ctx, tenantB, q.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	_, err = svc.Quotations.MarkSent(ctx, tenantB, q.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	_, err = svc.Quotations.Update(ctx, tenantB, q.ID, sampleQuotation())
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.ErrorIs(t, svc.Quotations.Delete(ctx, tenantB, q.ID), apperror.ErrNotFound)

	page, err := svc.Quotations.List(ctx, tenantB, ListFilter{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
	assert.Empty(t, page.Items)
}

func TestDeleteQuotationKeepsNumberReserved(t *testing.T) {
	svc, _ := newTestServices(t)
	ctx := context.Background()
	q, err := svc.Quotations.Create(ctx, tenantA, sampleQuotation())
	require.NoError(t, err)

	require.NoError(t, svc.Quotations.Delete(ctx, tenantA, q.ID))
	_, err = svc.Quotations.Get(ctx, tenantA, q.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	next, err := svc.Quotations.Create(ctx, tenantA, sampleQuotation())
	require.NoError(t, err)
	assert.Equal(t, "QUO-202607-0002", next.Number)
}

func TestListQuotations(t *testing.T) {
	svc, _ := newTestServices(t)
	ctx := context.Background()
	for _, name := range []string{"Acme Ltd", "Globex", "Acme Holdings"} {
		in := sampleQuotation()
		in.Customer.Name = name
		_, err := svc.Quotations.Create(ctx, tenantA, in)
		require.NoError(t, err)
	}
	_, err := svc.Quotations.MarkSent(ctx, tenantA, 2)
	require.NoError(t, err)

	page, err := svc.Quotations.List(ctx, tenantA, ListFilter{Search: "acme"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)

	page, err = svc.Quotations.List(ctx, tenantA, ListFilter{Status: "sent"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Globex", page.Items[0].BillTo.Name)

	page, err = svc.Quotations.List(ctx, tenantA, ListFilter{Limit: 2, Page: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "QUO-202607-0001", page.Items[0].Number)

	_, err = svc.Quotations.List(ctx, tenantA, ListFilter{Status: "bogus"})
	assert.ErrorIs(t, err, apperror.ErrValidation)
}
