// Package render produces PDF versions of quotations, invoices and delivery
// notes. Pages are laid out by the paginate package: header panels on the
// first page, totals and signature on the last.
package render

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/diewo77/go-billing/internal/calc"
	"github.com/diewo77/go-billing/internal/ledger"
	"github.com/diewo77/go-billing/internal/models"
	"github.com/diewo77/go-billing/internal/paginate"
	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
)

const (
	margin    = 15.0
	rowHeight = 7.0
	dateFmt   = "02 Jan 2006"
)

// Document is a rendered PDF.
type Document struct {
	Filename string
	Pages    int
	Data     []byte
}

// Renderer draws documents with fixed page capacities.
type Renderer struct {
	pages paginate.Capacities
}

// New returns a Renderer. Zero capacities fall back to paginate.DefaultCapacities.
func New(pages paginate.Capacities) *Renderer {
	if pages == (paginate.Capacities{}) {
		pages = paginate.DefaultCapacities
	}
	return &Renderer{pages: pages}
}

// Money formats an amount in the smallest currency unit with thousands separators.
func Money(v int64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	s := strconv.FormatInt(v, 10)
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	lead := len(s) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(s[:lead])
	for i := lead; i < len(s); i += 3 {
		b.WriteByte(',')
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

func percent(p decimal.Decimal) string {
	return p.String() + "%"
}

type column struct {
	title string
	width float64 // share of the content width
	align string
}

// sheet is the document-independent description of what goes on paper.
type sheet struct {
	title      string
	number     string
	meta       [][2]string
	partyLabel string
	party      models.CustomerSnapshot
	columns    []column
	rows       [][]string
	totals     [][2]string
	notes      string
	bank       bool
	signature  string
	filename   string
}

var itemColumns = []column{
	{"#", 0.07, "C"},
	{"Description", 0.48, "L"},
	{"Qty", 0.10, "R"},
	{"Unit price", 0.17, "R"},
	{"Amount", 0.18, "R"},
}

func priceRows[T interface{ line() (string, int64, int64) }](items []T) [][]string {
	rows := make([][]string, len(items))
	for i, it := range items {
		name, qty, price := it.line()
		rows[i] = []string{strconv.Itoa(i + 1), name, strconv.FormatInt(qty, 10), Money(price), Money(qty * price)}
	}
	return rows
}

type quotationLine models.QuotationItem

func (l quotationLine) line() (string, int64, int64) { return l.Name, l.Quantity, l.UnitPrice }

type invoiceLine models.InvoiceItem

func (l invoiceLine) line() (string, int64, int64) { return l.Name, l.Quantity, l.UnitPrice }

func totalsBlock(t calc.Totals, d calc.Discount, tax decimal.Decimal) [][2]string {
	rows := [][2]string{{"Subtotal", Money(t.Subtotal)}}
	if t.Discount > 0 {
		label := "Discount"
		if d.Type == calc.DiscountPercent {
			label += " (" + percent(d.Value) + ")"
		}
		rows = append(rows, [2]string{label, "-" + Money(t.Discount)})
	}
	if t.Tax > 0 || !tax.IsZero() {
		rows = append(rows, [2]string{"Tax (" + percent(tax) + ")", Money(t.Tax)})
	}
	return append(rows, [2]string{"Total", Money(t.Total)})
}

// Quotation renders q. Totals are recomputed from the items.
func (r *Renderer) Quotation(org *models.Organization, q *models.Quotation) (*Document, error) {
	items := make([]quotationLine, len(q.Items))
	for i, it := range q.Items {
		items[i] = quotationLine(it)
	}
	meta := [][2]string{{"Date", q.Date.Format(dateFmt)}}
	if q.ValidUntil != nil {
		meta = append(meta, [2]string{"Valid until", q.ValidUntil.Format(dateFmt)})
	}
	meta = append(meta, [2]string{"Status", strings.ToUpper(string(q.Status))})
	return r.draw(org, sheet{
		title:      "QUOTATION",
		number:     q.Number,
		meta:       meta,
		partyLabel: "Prepared for",
		party:      q.BillTo,
		columns:    itemColumns,
		rows:       priceRows(items),
		totals:     totalsBlock(q.ComputeTotals(), q.Discount(), q.TaxPercent),
		notes:      q.Notes,
		signature:  org.SignatoryName,
		filename:   q.Number + ".pdf",
	})
}

// Invoice renders inv with its payment summary.
func (r *Renderer) Invoice(org *models.Organization, inv *models.Invoice) (*Document, error) {
	items := make([]invoiceLine, len(inv.Items))
	for i, it := range inv.Items {
		items[i] = invoiceLine(it)
	}
	meta := [][2]string{{"Issue date", inv.IssueDate.Format(dateFmt)}}
	if inv.DueDate != nil {
		meta = append(meta, [2]string{"Due date", inv.DueDate.Format(dateFmt)})
	}
	if inv.QuotationNumber != "" {
		meta = append(meta, [2]string{"Quotation", inv.QuotationNumber})
	}

	sum := ledger.Summarize(inv)
	meta = append(meta, [2]string{"Payment", string(sum.PayStatus)})
	totals := totalsBlock(inv.ComputeTotals(), inv.Discount(), inv.TaxPercent)
	if sum.AmountPaid > 0 {
		totals = append(totals,
			[2]string{"Paid", Money(sum.AmountPaid)},
			[2]string{"Balance due", Money(sum.Remaining)},
		)
	}
	title := "INVOICE"
	if inv.Status == models.InvoiceStatusCancelled {
		title = "INVOICE (CANCELLED)"
	}
	return r.draw(org, sheet{
		title:      title,
		number:     inv.Number,
		meta:       meta,
		partyLabel: "Bill to",
		party:      inv.BillTo,
		columns:    itemColumns,
		rows:       priceRows(items),
		totals:     totals,
		notes:      inv.Notes,
		bank:       org.HasBankDetails(),
		signature:  org.SignatoryName,
		filename:   inv.Number + ".pdf",
	})
}

// DeliveryNote renders n. It carries quantities only.
func (r *Renderer) DeliveryNote(org *models.Organization, n *models.DeliveryNote) (*Document, error) {
	rows := make([][]string, len(n.Items))
	for i, it := range n.Items {
		rows[i] = []string{strconv.Itoa(i + 1), it.Name, strconv.FormatInt(it.Quantity, 10)}
	}
	return r.draw(org, sheet{
		title:  "DELIVERY NOTE",
		number: n.Number,
		meta: [][2]string{
			{"Date", n.Date.Format(dateFmt)},
			{"Invoice", n.InvoiceNumber},
		},
		partyLabel: "Ship to",
		party:      n.ShipTo,
		columns: []column{
			{"#", 0.08, "C"},
			{"Description", 0.72, "L"},
			{"Qty", 0.20, "R"},
		},
		rows:      rows,
		signature: "Received by",
		filename:  n.Number + ".pdf",
	})
}

func (r *Renderer) draw(org *models.Organization, s sheet) (*Document, error) {
	pages, err := paginate.Split(s.rows, r.pages)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle(s.title+" "+s.number, true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, pageH := pdf.GetPageSize()
	contentW := pageW - 2*margin
	total := len(pages)

	pdf.SetFooterFunc(func() {
		pdf.SetY(pageH - margin)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(contentW/2, 5, tr(org.Name+" - "+s.number), "", 0, "L", false, 0, "")
		pdf.CellFormat(contentW/2, 5, fmt.Sprintf("Page %d / %d", pdf.PageNo(), total), "", 0, "R", false, 0, "")
	})

	for _, p := range pages {
		pdf.AddPage()
		if p.First {
			drawHeader(pdf, tr, contentW, org, s)
		} else {
			pdf.SetFont("Helvetica", "B", 10)
			pdf.CellFormat(contentW, 6, tr(s.title+" "+s.number+" (continued)"), "", 1, "L", false, 0, "")
			pdf.Ln(2)
		}
		drawTable(pdf, tr, contentW, s.columns, p.Items)
		if p.Last {
			drawClosing(pdf, tr, contentW, org, s)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render: write pdf: %w", err)
	}
	return &Document{Filename: s.filename, Pages: total, Data: buf.Bytes()}, nil
}

func drawHeader(pdf *fpdf.Fpdf, tr func(string) string, w float64, org *models.Organization, s sheet) {
	half := w / 2
	top := pdf.GetY()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(half, 7, tr(org.Name), "", 2, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	for _, line := range strings.Split(org.FullAddress(), "\n") {
		if line != "" {
			pdf.CellFormat(half, 4.5, tr(line), "", 2, "L", false, 0, "")
		}
	}
	for _, v := range []string{org.Phone, org.Email} {
		if v != "" {
			pdf.CellFormat(half, 4.5, tr(v), "", 2, "L", false, 0, "")
		}
	}
	if org.TaxNumber != "" {
		pdf.CellFormat(half, 4.5, tr("Tax no. "+org.TaxNumber), "", 2, "L", false, 0, "")
	}
	leftBottom := pdf.GetY()

	pdf.SetXY(margin+half, top)
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(half, 8, tr(s.title), "", 2, "R", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(half, 5, tr(s.number), "", 2, "R", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	for _, m := range s.meta {
		pdf.CellFormat(half, 4.5, tr(m[0]+": "+m[1]), "", 2, "R", false, 0, "")
	}

	pdf.SetXY(margin, max(leftBottom, pdf.GetY())+6)
	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(w, 5, tr(s.partyLabel), "B", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(w, 5, tr(s.party.Name), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	if s.party.Address != "" {
		pdf.MultiCell(w, 4.5, tr(s.party.Address), "", "L", false)
	}
	if s.party.Phone != "" {
		pdf.CellFormat(w, 4.5, tr(s.party.Phone), "", 1, "L", false, 0, "")
	}
	pdf.Ln(6)
}

func drawTable(pdf *fpdf.Fpdf, tr func(string) string, w float64, cols []column, rows [][]string) {
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(235, 235, 235)
	for i, c := range cols {
		ln := 0
		if i == len(cols)-1 {
			ln = 1
		}
		pdf.CellFormat(w*c.width, rowHeight, tr(c.title), "1", ln, c.align, true, 0, "")
	}
	pdf.SetFont("Helvetica", "", 9)
	for _, row := range rows {
		for i, c := range cols {
			ln := 0
			if i == len(cols)-1 {
				ln = 1
			}
			cell := tr(row[i])
			// Long descriptions are cut to the column so the row height stays fixed.
			for len(cell) > 1 && pdf.GetStringWidth(cell) > w*c.width-2 {
				cell = cell[:len(cell)-1]
			}
			pdf.CellFormat(w*c.width, rowHeight, cell, "LR", ln, c.align, false, 0, "")
		}
	}
	pdf.Line(margin, pdf.GetY(), margin+w, pdf.GetY())
	pdf.Ln(4)
}

func drawClosing(pdf *fpdf.Fpdf, tr func(string) string, w float64, org *models.Organization, s sheet) {
	labelW, valueW := w*0.25, w*0.2
	for i, t := range s.totals {
		style := ""
		if i == len(s.totals)-1 || t[0] == "Total" {
			style = "B"
		}
		pdf.SetFont("Helvetica", style, 9)
		pdf.SetX(margin + w - labelW - valueW)
		pdf.CellFormat(labelW, 6, tr(t[0]), "", 0, "L", false, 0, "")
		pdf.CellFormat(valueW, 6, tr(t[1]), "", 1, "R", false, 0, "")
	}
	pdf.Ln(4)

	if s.notes != "" {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.CellFormat(w, 5, "Notes", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 9)
		pdf.MultiCell(w, 4.5, tr(s.notes), "", "L", false)
		pdf.Ln(3)
	}

	if s.bank {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.CellFormat(w, 5, "Payment details", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 9)
		for _, v := range []string{org.BankName, org.BankAccountName, org.BankAccountNumber} {
			if v != "" {
				pdf.CellFormat(w, 4.5, tr(v), "", 1, "L", false, 0, "")
			}
		}
		pdf.Ln(3)
	}

	if s.signature != "" {
		boxW := w * 0.35
		pdf.SetX(margin + w - boxW)
		pdf.SetFont("Helvetica", "", 9)
		pdf.CellFormat(boxW, 5, tr(s.signature), "", 2, "C", false, 0, "")
		pdf.Ln(18)
		pdf.SetX(margin + w - boxW)
		pdf.CellFormat(boxW, 5, "", "T", 1, "C", false, 0, "")
	}
}
