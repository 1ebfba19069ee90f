// Package paginate lays out a document's line items across pages with
// distinct capacities for the first, middle and last page.
//
// Only the first page carries the header panels and only the last page
// carries the totals and signature block, so the last page is never filled
// beyond Capacities.Last.
package paginate

import "fmt"

// Capacities is the number of items each kind of page can hold.
type Capacities struct {
	First  int `json:"first"`
	Middle int `json:"middle"`
	Last   int `json:"last"`
}

// DefaultCapacities matches the stock A4 invoice layout.
var DefaultCapacities = Capacities{First: 10, Middle: 18, Last: 12}

// Validate rejects capacities that cannot hold at least one item.
func (c Capacities) Validate() error {
	if c.First < 1 || c.Middle < 1 || c.Last < 1 {
		return fmt.Errorf("paginate: capacities must be >= 1, got first=%d middle=%d last=%d", c.First, c.Middle, c.Last)
	}
	return nil
}

// Page is one rendered page worth of items.
type Page[T any] struct {
	Number int  // 1-based
	First  bool // carries the header panels
	Last   bool // carries totals and signature
	Items  []T
}

// Split distributes items over pages. An empty input yields one empty page
// that is both first and last.
func Split[T any](items []T, c Capacities) ([]Page[T], error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	count := len(items)
	if count <= c.First {
		return []Page[T]{{Number: 1, First: true, Last: true, Items: items[:count:count]}}, nil
	}

	pages := []Page[T]{{Number: 1, First: true, Items: items[:c.First:c.First]}}
	rest := items[c.First:]

	if len(rest) > c.Last {
		tailStart := len(rest) - c.Last
		middle := rest[:tailStart]
		for start := 0; start < len(middle); start += c.Middle {
			end := min(start+c.Middle, len(middle))
			pages = append(pages, Page[T]{Number: len(pages) + 1, Items: middle[start:end:end]})
		}
		rest = rest[tailStart:]
	}

	pages = append(pages, Page[T]{Number: len(pages) + 1, Last: true, Items: rest})
	return pages, nil
}

// Count returns how many pages Split would produce for n items.
func Count(n int, c Capacities) (int, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}
	if n <= c.First {
		return 1, nil
	}
	rest := n - c.First
	if rest <= c.Last {
		return 2, nil
	}
	middle := rest - c.Last
	return 2 + (middle+c.Middle-1)/c.Middle, nil
}
