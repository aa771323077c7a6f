// Package pdf renders invoices as A4 PDF documents.
package pdf

import (
	"bytes"
	"io"
	"regexp"
	"strconv"
	"time"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// MimeType of rendered documents.
const MimeType = "application/pdf"

type InvoiceItem struct {
	Description string
	Quantity    int
	UnitPrice   decimal.Decimal
	Total       decimal.Decimal
}

// InvoiceData is everything printed on an invoice. Rendering depends on
// nothing else, so equal data yields an equal layout.
type InvoiceData struct {
	ShopName      string
	InvoiceNumber string
	CustomerName  string
	CustomerPhone string
	IssuedAt      time.Time
	Currency      string
	TaxLabel      string
	Items         []InvoiceItem
	Tax           decimal.Decimal
	GrandTotal    decimal.Decimal
}

// Subtotal is printed as grand total minus tax.
func (d InvoiceData) Subtotal() decimal.Decimal { return d.GrandTotal.Sub(d.Tax) }

// Layout is the structural content of a rendered invoice.
type Layout struct {
	Title   string
	Heading []string
	Columns []string
	Rows    [][]string
	Totals  [][2]string
}

// BuildLayout formats data into the printed table structure.
func BuildLayout(d InvoiceData) Layout {
	money := func(v decimal.Decimal) string {
		if d.Currency == "" {
			return v.StringFixed(2)
		}
		return d.Currency + " " + v.StringFixed(2)
	}
	taxLabel := d.TaxLabel
	if taxLabel == "" {
		taxLabel = "Tax"
	}

	l := Layout{
		Title:   "Invoice: " + d.InvoiceNumber,
		Columns: []string{"Item", "Qty", "Price", "Total"},
	}
	if d.ShopName != "" {
		l.Heading = append(l.Heading, d.ShopName)
	}
	l.Heading = append(l.Heading, "Customer: "+d.CustomerName)
	if d.CustomerPhone != "" {
		l.Heading = append(l.Heading, "Phone: "+d.CustomerPhone)
	}
	l.Heading = append(l.Heading, "Date: "+d.IssuedAt.Format("02/01/2006"))

	for _, it := range d.Items {
		l.Rows = append(l.Rows, []string{
			it.Description,
			strconv.Itoa(it.Quantity),
			money(it.UnitPrice),
			money(it.Total),
		})
	}
	l.Totals = [][2]string{
		{"Subtotal", money(d.Subtotal())},
		{taxLabel, money(d.Tax)},
		{"Grand Total", money(d.GrandTotal)},
	}
	return l
}

// Renderer draws invoices with maroto.
type Renderer struct{}

func NewRenderer() *Renderer { return &Renderer{} }

// Render writes the PDF for d to w.
func (r *Renderer) Render(w io.Writer, d InvoiceData) error {
	b, err := InvoicePDF(d)
	if err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return errors.Wrap(err, "write invoice pdf")
	}
	return nil
}

// InvoicePDF renders d and returns the document bytes.
func InvoicePDF(d InvoiceData) ([]byte, error) {
	l := BuildLayout(d)

	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(15).
		WithTopMargin(15).
		WithRightMargin(15).
		WithCreationDate(d.IssuedAt).
		Build()
	m := maroto.New(cfg)

	m.AddRows(text.NewRow(14, l.Title, props.Text{Size: 16, Style: fontstyle.Bold}))
	for _, h := range l.Heading {
		m.AddRows(text.NewRow(7, h, props.Text{Size: 10}))
	}
	m.AddRows(text.NewRow(6, ""))

	head := props.Text{Size: 10, Style: fontstyle.Bold}
	m.AddRow(8, tableCols(l.Columns, head)...)
	cell := props.Text{Size: 10}
	for _, row := range l.Rows {
		m.AddRow(7, tableCols(row, cell)...)
	}

	m.AddRows(text.NewRow(6, ""))
	for _, t := range l.Totals {
		m.AddRow(7,
			text.NewCol(9, t[0]+":", props.Text{Size: 10, Style: fontstyle.Bold, Align: align.Right}),
			text.NewCol(3, t[1], props.Text{Size: 10, Style: fontstyle.Bold, Align: align.Right}),
		)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, errors.Wrap(err, "generate invoice pdf")
	}
	return pinModDate(doc.GetBytes()), nil
}

var (
	creationDateRe = regexp.MustCompile(`/CreationDate \(D:(\d{14})`)
	modDateRe      = regexp.MustCompile(`/ModDate \(D:\d{14}`)
)

// pinModDate overwrites the wall-clock /ModDate stamped by the PDF writer
// with the creation date, so equal data renders to equal bytes. Both stamps
// have the same width, which keeps the xref offsets valid.
func pinModDate(b []byte) []byte {
	m := creationDateRe.FindSubmatch(b)
	if m == nil {
		return b
	}
	stamp := append([]byte("/ModDate (D:"), m[1]...)
	return modDateRe.ReplaceAllFunc(b, func([]byte) []byte { return bytes.Clone(stamp) })
}

// tableCols lays four cells out on the 12-column grid.
func tableCols(cells []string, p props.Text) []core.Col {
	sizes := []int{6, 2, 2, 2}
	cols := make([]core.Col, 0, len(cells))
	for i, c := range cells {
		cp := p
		if i > 0 {
			cp.Align = align.Right
		}
		cols = append(cols, text.NewCol(sizes[i%len(sizes)], c, cp))
	}
	return cols
}
