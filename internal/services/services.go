// Package services implements the document lifecycle: quotations, invoices,
// conversion between them and delivery notes. Every operation takes the
// tenant id explicitly and scopes every query with it.
package services

import (
	"context"
	"strings"
	"time"

	"github.com/diewo77/go-billing/internal/apperror"
	"github.com/diewo77/go-billing/internal/config"
	"github.com/diewo77/go-billing/internal/db"
	"github.com/diewo77/go-billing/internal/ledger"
	"github.com/diewo77/go-billing/internal/logger"
	"github.com/diewo77/go-billing/internal/sequence"
	"gorm.io/gorm"
)

// Options are shared by all services.
type Options struct {
	Numbers       *sequence.Generator
	NumberRetries int
	Now           func() time.Time
}

// OptionsFrom builds Options from the billing configuration.
func OptionsFrom(cfg config.BillingConfig) Options {
	return Options{
		Numbers: sequence.New(map[sequence.Kind]string{
			sequence.KindQuotation:    cfg.QuotationPrefix,
			sequence.KindInvoice:      cfg.InvoicePrefix,
			sequence.KindDeliveryNote: cfg.DeliveryNotePrefix,
		}),
		NumberRetries: cfg.NumberRetries,
	}
}

func (o Options) withDefaults() Options {
	if o.Numbers == nil {
		o.Numbers = sequence.New(nil)
	}
	if o.NumberRetries < 1 {
		o.NumberRetries = 3
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// runNumbered runs fn in a transaction and starts over when the transaction
// fails on a unique violation, which is how a document number taken by a
// concurrent request shows up. fn must be safe to run more than once.
func runNumbered(ctx context.Context, conn *gorm.DB, o Options, op string, fn func(tx *gorm.DB) error) error {
	var err error
	for attempt := 1; attempt <= o.NumberRetries; attempt++ {
		err = db.RunTx(ctx, conn, fn)
		if err == nil || !db.IsDuplicate(err) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Ctx(ctx).Warn().Err(err).Str("op", op).Int("attempt", attempt).Msg("unique violation, retrying")
	}
	return apperror.Numbering(op, err)
}

// ListFilter narrows a listing. Zero values mean no filter.
type ListFilter struct {
	Status    string
	PayStatus string // invoices only
	Search    string
	Page      int
	Limit     int
}

const (
	defaultLimit = 20
	maxLimit     = 100
)

func (f ListFilter) normalize() ListFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = defaultLimit
	}
	if f.Limit > maxLimit {
		f.Limit = maxLimit
	}
	f.Search = strings.TrimSpace(f.Search)
	return f
}

func (f ListFilter) offset() int { return (f.Page - 1) * f.Limit }

// Page is one page of a listing.
type Page[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
}

// searchDocuments matches the number or the customer name, case-insensitively on every dialect.
func searchDocuments(q *gorm.DB, term string) *gorm.DB {
	if term == "" {
		return q
	}
	like := "%" + strings.ToLower(term) + "%"
	return q.Where("(LOWER(number) LIKE ? OR LOWER(customer_name) LIKE ?)", like, like)
}

func itemsByOrder(q *gorm.DB) *gorm.DB {
	return q.Order("sort_order ASC, id ASC")
}

// Services bundles the document services and the payment ledger over one connection.
type Services struct {
	Quotations    *QuotationService
	Invoices      *InvoiceService
	Conversions   *ConversionService
	DeliveryNotes *DeliveryNoteService
	Ledger        *ledger.Ledger
}

// New builds every service with the same options.
func New(conn *gorm.DB, opts Options) *Services {
	opts = opts.withDefaults()
	invoices := NewInvoiceService(conn, opts)
	return &Services{
		Quotations:    NewQuotationService(conn, opts),
		Invoices:      invoices,
		Conversions:   invoices.conversion(),
		DeliveryNotes: NewDeliveryNoteService(conn, opts),
		Ledger:        ledger.New(conn).WithClock(opts.Now),
	}
}
