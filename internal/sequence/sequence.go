// Package sequence allocates human-readable document numbers of the form
// PREFIX-YYYYMM-NNNN, per tenant, per document kind and per calendar month.
//
// Each (tenant, kind, month) has a counter row in document_sequences that is
// bumped with a single atomic UPDATE inside the caller's transaction, so two
// concurrent creations can never read the same value.
package sequence

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/diewo77/go-billing/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Kind is a numbered document kind.
type Kind string

const (
	KindQuotation    Kind = "quotation"
	KindInvoice      Kind = "invoice"
	KindDeliveryNote Kind = "delivery_note"
)

// table returns where documents of kind k keep their numbers.
func (k Kind) table() string {
	switch k {
	case KindQuotation:
		return "quotations"
	case KindInvoice:
		return "invoices"
	case KindDeliveryNote:
		return "delivery_notes"
	}
	return ""
}

// PeriodLayout formats the month component of a number.
const PeriodLayout = "200601"

// ErrUnknownKind is returned for a kind without a configured prefix.
var ErrUnknownKind = errors.New("sequence: unknown document kind")

// errContended is returned when the counter row could not be claimed.
var errContended = errors.New("sequence: counter row contended")

const claimAttempts = 3

// Generator hands out document numbers.
type Generator struct {
	prefixes map[Kind]string
}

// DefaultPrefixes are the prefixes used when none are configured.
func DefaultPrefixes() map[Kind]string {
	return map[Kind]string{
		KindQuotation:    "QUO",
		KindInvoice:      "INV",
		KindDeliveryNote: "DN",
	}
}

// New returns a generator using prefixes. Missing kinds fall back to DefaultPrefixes.
func New(prefixes map[Kind]string) *Generator {
	merged := DefaultPrefixes()
	for k, p := range prefixes {
		if p != "" {
			merged[k] = p
		}
	}
	return &Generator{prefixes: merged}
}

// Prefix returns the configured prefix for kind.
func (g *Generator) Prefix(kind Kind) string { return g.prefixes[kind] }

// Next allocates the next number for tenant and kind in the month of at.
// It must run inside the transaction that inserts the document so that a
// rollback releases nothing but a gap.
func (g *Generator) Next(ctx context.Context, tx *gorm.DB, tenantID uint, kind Kind, at time.Time) (string, error) {
	prefix, ok := g.prefixes[kind]
	if !ok || kind.table() == "" {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	period := at.Format(PeriodLayout)
	tx = tx.WithContext(ctx)

	for attempt := 0; attempt < claimAttempts; attempt++ {
		res := tx.Model(&models.DocumentSequence{}).
			Where("tenant_id = ? AND kind = ? AND period = ?", tenantID, string(kind), period).
			UpdateColumns(map[string]any{
				"last_value": gorm.Expr("last_value + 1"),
				"updated_at": time.Now(),
			})
		if res.Error != nil {
			return "", fmt.Errorf("sequence: increment: %w", res.Error)
		}
		if res.RowsAffected == 1 {
			var row models.DocumentSequence
			if err := tx.Where("tenant_id = ? AND kind = ? AND period = ?", tenantID, string(kind), period).
				First(&row).Error; err != nil {
				return "", fmt.Errorf("sequence: read counter: %w", err)
			}
			return Format(prefix, at, row.LastValue), nil
		}

		// First number of the month: start past anything already issued,
		// which covers rows imported before the counter existed.
		start, err := g.highestIssued(tx, tenantID, kind, prefix, period)
		if err != nil {
			return "", err
		}
		start++
		ins := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.DocumentSequence{
			TenantID:  tenantID,
			Kind:      string(kind),
			Period:    period,
			LastValue: start,
		})
		if ins.Error != nil {
			return "", fmt.Errorf("sequence: create counter: %w", ins.Error)
		}
		if ins.RowsAffected == 1 {
			return Format(prefix, at, start), nil
		}
		// Another transaction created the row first; bump it instead.
	}
	return "", errContended
}

// highestIssued scans existing documents, soft-deleted ones included, for
// the largest sequence already used in period.
func (g *Generator) highestIssued(tx *gorm.DB, tenantID uint, kind Kind, prefix, period string) (int64, error) {
	var numbers []string
	err := tx.Table(kind.table()).
		Where("tenant_id = ? AND number LIKE ?", tenantID, prefix+"-"+period+"-%").
		Order("LENGTH(number) DESC, number DESC").
		Limit(1).
		Pluck("number", &numbers).Error
	if err != nil {
		return 0, fmt.Errorf("sequence: scan issued numbers: %w", err)
	}
	if len(numbers) == 0 {
		return 0, nil
	}
	_, _, n, ok := Parse(numbers[0])
	if !ok {
		return 0, nil
	}
	return n, nil
}

// Format renders a number. The sequence is zero-padded to four digits and widens past 9999.
func Format(prefix string, at time.Time, n int64) string {
	return fmt.Sprintf("%s-%s-%04d", prefix, at.Format(PeriodLayout), n)
}

// Parse splits a number produced by Format.
func Parse(number string) (prefix, period string, n int64, ok bool) {
	i := strings.LastIndexByte(number, '-')
	if i <= 0 {
		return "", "", 0, false
	}
	j := strings.LastIndexByte(number[:i], '-')
	if j <= 0 {
		return "", "", 0, false
	}
	prefix, period = number[:j], number[j+1:i]
	if len(period) != len(PeriodLayout) {
		return "", "", 0, false
	}
	if _, err := time.Parse(PeriodLayout, period); err != nil {
		return "", "", 0, false
	}
	n, err := strconv.ParseInt(number[i+1:], 10, 64)
	if err != nil || n < 1 {
		return "", "", 0, false
	}
	return prefix, period, n, true
}
