package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/diewo77/go-billing/internal/db"
	"github.com/diewo77/go-billing/internal/models"
	"github.com/diewo77/go-billing/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestPaginateCommand(t *testing.T) {
	out, err := run(t, "paginate", "--count", "41")
	require.NoError(t, err)
	var layout []pageLayout
	require.NoError(t, json.Unmarshal([]byte(out), &layout))
	require.Len(t, layout, 4)
	assert.Equal(t, []int{10, 18, 1, 12}, []int{layout[0].Items, layout[1].Items, layout[2].Items, layout[3].Items})
	assert.True(t, layout[0].First)
	assert.True(t, layout[3].Last)
	assert.Equal(t, 30, layout[3].From)
	assert.Equal(t, 41, layout[3].To)

	out, err = run(t, "paginate", "--count", "5", "--first", "2", "--middle", "1", "--last", "2")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &layout))
	assert.Len(t, layout, 3)

	_, err = run(t, "paginate", "--count", "5", "--middle", "0")
	assert.Error(t, err)
}

func TestRenderCommand(t *testing.T) {
	dsn := "file:billingctl_" + t.Name() + "?mode=memory&cache=shared"
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_SQLITE_PATH", dsn)
	t.Setenv("LOG_LEVEL", "error")

	// Keeps the shared in-memory database alive between commands.
	conn, err := gorm.Open(sqlite.Open(dsn), db.GormConfig(false))
	require.NoError(t, err)

	_, err = run(t, "migrate")
	require.NoError(t, err)
	out, err := run(t, "seed")
	require.NoError(t, err)
	assert.Contains(t, out, "Demo Company")

	var org models.Organization
	require.NoError(t, conn.First(&org).Error)
	svc := services.New(conn, services.Options{})
	inv, err := svc.Invoices.Create(context.Background(), org.ID, services.InvoiceInput{
		DocumentInput: services.DocumentInput{
			Customer: models.CustomerSnapshot{Name: "Acme Ltd"},
			Items:    []services.ItemInput{{Name: "Consulting", Quantity: 2, UnitPrice: 50000}},
		},
	})
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "invoice.pdf")
	out, err = run(t, "render", "invoice", "--tenant", "1", "--id", "1", "--out", dest)
	require.NoError(t, err)
	assert.Contains(t, out, "(1 pages)")
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
	assert.Equal(t, uint(1), inv.ID)

	_, err = run(t, "render", "invoice", "--tenant", "1", "--id", "99", "--out", dest)
	assert.Error(t, err)
	_, err = run(t, "render", "receipt", "--tenant", "1", "--id", "1")
	assert.Error(t, err)

	out, err = run(t, "apikey", "--tenant", "1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "bk_"))
	require.NoError(t, conn.First(&org, 1).Error)
	assert.NotEmpty(t, org.APIKeyHash)
}
