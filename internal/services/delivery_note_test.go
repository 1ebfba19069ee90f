package services

import (
	"context"
	"testing"

	"github.com/diewo77/go-billing/internal/apperror"
	"github.com/diewo77/go-billing/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeliveryNoteGetOrCreate(t *testing.T) {
	svc, conn := newTestServices(t)
	ctx := context.Background()
	inv, err := svc.Invoices.Create(ctx, tenantA, sampleInvoice())
	require.NoError(t, err)

	note, created, err := svc.DeliveryNotes.GetOrCreate(ctx, tenantA, inv.ID)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "DN-202607-0001", note.Number)
	assert.Equal(t, inv.Number, note.InvoiceNumber)
	assert.Equal(t, "Acme Ltd", note.ShipTo.Name)
	require.Len(t, note.Items, 2)
	assert.Equal(t, "Consulting", note.Items[0].Name)
	assert.Equal(t, int64(2), note.Items[0].Quantity)

	again, created, err := svc.DeliveryNotes.GetOrCreate(ctx, tenantA, inv.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, note.ID, again.ID)
	assert.Len(t, again.Items, 2)

	var n int64
	conn.Model(&models.DeliveryNote{}).Count(&n)
	assert.Equal(t, int64(1), n)

	detail, err := svc.Invoices.Get(ctx, tenantA, inv.ID)
	require.NoError(t, err)
	require.NotNil(t, detail.DeliveryNoteID)
	assert.Equal(t, note.ID, *detail.DeliveryNoteID)

	got, err := svc.DeliveryNotes.Get(ctx, tenantA, note.ID)
	require.NoError(t, err)
	assert.Equal(t, note.Number, got.Number)
	_, err = svc.DeliveryNotes.Get(ctx, tenantB, note.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestDeliveryNoteRejections(t *testing.T) {
	svc, _ := newTestServices(t)
	ctx := context.Background()
	inv, err := svc.Invoices.Create(ctx, tenantA, sampleInvoice())
	require.NoError(t, err)

	_, _, err = svc.DeliveryNotes.GetOrCreate(ctx, tenantB, inv.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = svc.Invoices.Cancel(ctx, tenantA, inv.ID, "")
	require.NoError(t, err)
	_, _, err = svc.DeliveryNotes.GetOrCreate(ctx, tenantA, inv.ID)
	assert.ErrorIs(t, err, apperror.ErrConflict)
}
