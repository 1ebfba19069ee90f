package sequence

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/diewo77/go-billing/internal/db"
	"github.com/diewo77/go-billing/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), db.GormConfig(false))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))
	return conn
}

func next(t *testing.T, conn *gorm.DB, g *Generator, tenant uint, kind Kind, at time.Time) string {
	t.Helper()
	var out string
	err := db.RunTx(context.Background(), conn, func(tx *gorm.DB) error {
		n, err := g.Next(context.Background(), tx, tenant, kind, at)
		out = n
		return err
	})
	require.NoError(t, err)
	return out
}

func TestNextIsMonotonicPerTenantKindMonth(t *testing.T) {
	conn := setupTestDB(t)
	g := New(nil)
	jan := time.Date(2026, time.January, 15, 10, 0, 0, 0, time.UTC)
	feb := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "INV-202601-0001", next(t, conn, g, 1, KindInvoice, jan))
	assert.Equal(t, "INV-202601-0002", next(t, conn, g, 1, KindInvoice, jan))
	assert.Equal(t, "QUO-202601-0001", next(t, conn, g, 1, KindQuotation, jan))
	assert.Equal(t, "INV-202601-0001", next(t, conn, g, 2, KindInvoice, jan))
	assert.Equal(t, "INV-202602-0001", next(t, conn, g, 1, KindInvoice, feb))
	assert.Equal(t, "INV-202601-0003", next(t, conn, g, 1, KindInvoice, jan))
	assert.Equal(t, "DN-202602-0001", next(t, conn, g, 1, KindDeliveryNote, feb))
}

func TestConcurrentNextHandsOutDistinctNumbers(t *testing.T) {
	conn := setupTestDB(t)
	// Shared-cache SQLite reports table locks instead of waiting, so queue the
	// transactions on one connection.
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	g := New(nil)
	at := time.Date(2026, time.July, 20, 0, 0, 0, 0, time.UTC)
	const perTenant = 6

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		got  = map[uint][]string{}
		errs []error
	)
	for i := 0; i < 2*perTenant; i++ {
		tenant := uint(i%2 + 1)
		wg.Add(1)
		go func() {
			defer wg.Done()
			var number string
			err := db.RunTx(context.Background(), conn, func(tx *gorm.DB) error {
				n, err := g.Next(context.Background(), tx, tenant, KindInvoice, at)
				number = n
				return err
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			got[tenant] = append(got[tenant], number)
		}()
	}
	wg.Wait()

	require.Empty(t, errs)
	want := make([]string, perTenant)
	for i := range want {
		want[i] = Format("INV", at, int64(i+1))
	}
	for _, tenant := range []uint{1, 2} {
		sort.Strings(got[tenant])
		assert.Equal(t, want, got[tenant], "tenant %d", tenant)
	}
}

func TestNextStartsAfterExistingNumbers(t *testing.T) {
	conn := setupTestDB(t)
	at := time.Date(2026, time.March, 3, 0, 0, 0, 0, time.UTC)
	for _, n := range []string{"INV-202603-0009", "INV-202603-0041", "INV-202602-0100"} {
		inv := models.Invoice{TenantID: 1, Number: n, IssueDate: at, BillTo: models.CustomerSnapshot{Name: "x"}}
		require.NoError(t, conn.Create(&inv).Error)
	}
	// A soft-deleted document still reserves its number.
	gone := models.Invoice{TenantID: 1, Number: "INV-202603-0050", IssueDate: at, BillTo: models.CustomerSnapshot{Name: "x"}}
	require.NoError(t, conn.Create(&gone).Error)
	require.NoError(t, conn.Delete(&gone).Error)

	g := New(nil)
	assert.Equal(t, "INV-202603-0051", next(t, conn, g, 1, KindInvoice, at))
	assert.Equal(t, "INV-202603-0052", next(t, conn, g, 1, KindInvoice, at))
}

func TestNextRollbackLeavesCounterUntouched(t *testing.T) {
	conn := setupTestDB(t)
	g := New(nil)
	at := time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "QUO-202604-0001", next(t, conn, g, 1, KindQuotation, at))

	err := db.RunTx(context.Background(), conn, func(tx *gorm.DB) error {
		if _, err := g.Next(context.Background(), tx, 1, KindQuotation, at); err != nil {
			return err
		}
		return fmt.Errorf("abort")
	})
	require.Error(t, err)
	assert.Equal(t, "QUO-202604-0002", next(t, conn, g, 1, KindQuotation, at))
}

func TestCustomPrefixesAndUnknownKind(t *testing.T) {
	conn := setupTestDB(t)
	g := New(map[Kind]string{KindInvoice: "FAC"})
	at := time.Date(2026, time.May, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "FAC-202605-0001", next(t, conn, g, 1, KindInvoice, at))
	assert.Equal(t, "QUO", g.Prefix(KindQuotation))

	err := db.RunTx(context.Background(), conn, func(tx *gorm.DB) error {
		_, err := g.Next(context.Background(), tx, 1, Kind("receipt"), at)
		return err
	})
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestFormatAndParse(t *testing.T) {
	at := time.Date(2026, time.December, 31, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "INV-202612-0007", Format("INV", at, 7))
	assert.Equal(t, "INV-202612-12345", Format("INV", at, 12345))

	prefix, period, n, ok := Parse("MY-CO-202612-0042")
	require.True(t, ok)
	assert.Equal(t, "MY-CO", prefix)
	assert.Equal(t, "202612", period)
	assert.Equal(t, int64(42), n)

	for _, bad := range []string{"", "INV", "INV-0001", "INV-2026-0001", "INV-202613-0001", "INV-202601-abc", "INV-202601-0000"} {
		_, _, _, ok := Parse(bad)
		assert.False(t, ok, bad)
	}
}
