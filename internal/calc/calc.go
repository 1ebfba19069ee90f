// Package calc derives document totals from line items, a discount and a tax rate.
//
// All amounts are int64 in the smallest currency unit. Every intermediate
// result is floored; there is no half rounding anywhere.
package calc

import (
	"math"

	"github.com/shopspring/decimal"
)

// DiscountType selects how Discount.Value is interpreted.
type DiscountType string

const (
	DiscountPercent DiscountType = "percent"
	DiscountAmount  DiscountType = "amount"
)

// Valid reports whether t is a known discount type. The empty type is valid and means no discount.
func (t DiscountType) Valid() bool {
	return t == "" || t == DiscountPercent || t == DiscountAmount
}

var hundred = decimal.NewFromInt(100)

// MaxAmount bounds line amounts and subtotals. Tax is at most 100% of the
// subtotal, so a total derived from a subtotal within the bound fits in int64.
const MaxAmount int64 = math.MaxInt64 / 2

// Line is a quantity and unit price pair.
type Line struct {
	Quantity  int64
	UnitPrice int64
}

// Total returns quantity × unit price.
func (l Line) Total() int64 { return l.Quantity * l.UnitPrice }

// Exceeds returns the index of the first line whose amount, or whose addition
// to the running subtotal, goes past MaxAmount. It returns -1 when every line fits.
// Lines with a negative quantity or unit price are not checked.
func Exceeds(lines []Line) int {
	var sum int64
	for i, l := range lines {
		if l.Quantity < 0 || l.UnitPrice < 0 {
			continue
		}
		if l.Quantity != 0 && l.UnitPrice > MaxAmount/l.Quantity {
			return i
		}
		total := l.Total()
		if sum > MaxAmount-total {
			return i
		}
		sum += total
	}
	return -1
}

// Discount describes a document-level discount.
type Discount struct {
	Type  DiscountType
	Value decimal.Decimal
}

// Totals is the output of Compute.
type Totals struct {
	Subtotal int64 `json:"subtotal"`
	Discount int64 `json:"discount_amount"`
	Tax      int64 `json:"tax_amount"`
	Total    int64 `json:"total"`
}

// AfterDiscount returns subtotal minus discount.
func (t Totals) AfterDiscount() int64 { return t.Subtotal - t.Discount }

// Compute turns lines plus discount and tax configuration into totals.
// It has no side effects. Callers reject lines for which Exceeds reports an
// index; Compute does not check for overflow itself.
func Compute(lines []Line, d Discount, taxPercent decimal.Decimal) Totals {
	var t Totals
	for _, l := range lines {
		t.Subtotal += l.Total()
	}

	switch d.Type {
	case DiscountPercent:
		t.Discount = Percentage(t.Subtotal, d.Value)
	case DiscountAmount:
		t.Discount = clamp(d.Value.Floor().IntPart(), 0, t.Subtotal)
	}

	after := t.Subtotal - t.Discount
	t.Tax = Percentage(after, taxPercent)
	t.Total = after + t.Tax
	return t
}

// Percentage returns floor(base × pct / 100) with pct clamped to [0, 100].
func Percentage(base int64, pct decimal.Decimal) int64 {
	pct = ClampPercent(pct)
	if base <= 0 || pct.IsZero() {
		return 0
	}
	return decimal.NewFromInt(base).Mul(pct).Div(hundred).Floor().IntPart()
}

// ClampPercent bounds pct to [0, 100].
func ClampPercent(pct decimal.Decimal) decimal.Decimal {
	if pct.IsNegative() {
		return decimal.Zero
	}
	if pct.GreaterThan(hundred) {
		return hundred
	}
	return pct
}

func clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
