// Package pdf renders printable invoice documents.
package pdf

import (
	"fmt"
	"strconv"

	"github.com/diewo77/nexusbilling/internal/config"
	"github.com/diewo77/nexusbilling/internal/models"
	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	mconfig "github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"
)

type InvoiceItem struct {
	Description string
	Quantity    int
	UnitPrice   decimal.Decimal
	Total       decimal.Decimal
}

type ClientData struct {
	Name  string
	Email string
}

type InvoiceData struct {
	InvoiceNumber string
	Date          string
	DueDate       string
	Status        string
	Items         []InvoiceItem
	Subtotal      decimal.Decimal
	TaxRate       decimal.Decimal
	Tax           decimal.Decimal
	GrandTotal    decimal.Decimal
	Client        ClientData
	Company       config.Company
}

// FromInvoice maps a stored invoice and the company profile onto the
// document fields.
func FromInvoice(inv *models.Invoice, company config.Company) InvoiceData {
	items := make([]InvoiceItem, 0, len(inv.Items))
	for _, it := range inv.Items {
		items = append(items, InvoiceItem{
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Total:       it.Subtotal,
		})
	}
	return InvoiceData{
		InvoiceNumber: strconv.FormatUint(uint64(inv.ID), 10),
		Date:          inv.IssueDate.String(),
		DueDate:       inv.DueDate.String(),
		Status:        string(inv.Status),
		Items:         items,
		Subtotal:      inv.Subtotal,
		TaxRate:       inv.TaxRate,
		Tax:           inv.TaxAmount,
		GrandTotal:    inv.TotalAmount,
		Client:        ClientData{Name: inv.CustomerName, Email: inv.CustomerEmail},
		Company:       company,
	}
}

var (
	gray      = &props.Color{Red: 100, Green: 116, Blue: 139}
	headStyle = props.Text{Style: fontstyle.Bold, Size: 9}
)

// InvoicePDF renders data as an A4 PDF document.
func InvoicePDF(data InvoiceData) ([]byte, error) {
	cfg := mconfig.NewBuilder().
		WithLeftMargin(15).
		WithTopMargin(15).
		WithRightMargin(15).
		Build()
	m := maroto.New(cfg)

	m.AddRows(header(data)...)
	m.AddRow(6)
	m.AddRow(5, text.NewCol(12, "BILL TO", props.Text{Style: fontstyle.Bold, Size: 9, Color: gray}))
	m.AddRow(5, text.NewCol(12, data.Client.Name, props.Text{Size: 10}))
	if data.Client.Email != "" {
		m.AddRow(5, text.NewCol(12, data.Client.Email, props.Text{Size: 9}))
	}
	m.AddRow(6)
	m.AddRows(itemRows(data)...)
	m.AddRow(3, line.NewCol(12))
	m.AddRows(totalRows(data)...)
	if note := data.Company.FooterNote; note != "" {
		m.AddRow(12)
		m.AddRow(6, text.NewCol(12, note, props.Text{Size: 9, Align: align.Center, Style: fontstyle.Italic}))
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate invoice pdf: %w", err)
	}
	return doc.GetBytes(), nil
}

func header(data InvoiceData) []core.Row {
	c := data.Company
	left := []string{c.Tagline}
	left = append(left, c.Address...)
	left = append(left, c.Email, c.Phone, c.Website)
	if c.TaxID != "" {
		left = append(left, "Tax ID: "+c.TaxID)
	}
	right := []string{"Date: " + data.Date}
	if data.DueDate != "" {
		right = append(right, "Due: "+data.DueDate)
	}
	if data.Status != "" {
		right = append(right, "Status: "+data.Status)
	}

	rows := []core.Row{
		row.New(10).Add(
			text.NewCol(7, c.Name, props.Text{Style: fontstyle.Bold, Size: 16}),
			text.NewCol(5, "INVOICE #"+data.InvoiceNumber, props.Text{Style: fontstyle.Bold, Size: 14, Align: align.Right}),
		),
	}
	for i := 0; i < len(left) || i < len(right); i++ {
		l, r := "", ""
		if i < len(left) {
			l = left[i]
		}
		if i < len(right) {
			r = right[i]
		}
		if l == "" && r == "" {
			continue
		}
		rows = append(rows, row.New(4.5).Add(
			text.NewCol(7, l, props.Text{Size: 8, Color: gray}),
			text.NewCol(5, r, props.Text{Size: 9, Align: align.Right}),
		))
	}
	return rows
}

func itemRows(data InvoiceData) []core.Row {
	money := func(d decimal.Decimal) string { return data.Company.CurrencySymbol + d.StringFixed(2) }
	rows := []core.Row{
		row.New(7).Add(
			text.NewCol(6, "Description", headStyle),
			text.NewCol(2, "Qty", rightOf(headStyle)),
			text.NewCol(2, "Unit price", rightOf(headStyle)),
			text.NewCol(2, "Amount", rightOf(headStyle)),
		),
	}
	body := props.Text{Size: 9}
	for _, it := range data.Items {
		rows = append(rows, row.New(6).Add(
			text.NewCol(6, it.Description, body),
			text.NewCol(2, strconv.Itoa(it.Quantity), rightOf(body)),
			text.NewCol(2, money(it.UnitPrice), rightOf(body)),
			text.NewCol(2, money(it.Total), rightOf(body)),
		))
	}
	return rows
}

func totalRows(data InvoiceData) []core.Row {
	money := func(d decimal.Decimal) string { return data.Company.CurrencySymbol + d.StringFixed(2) }
	label := props.Text{Size: 9, Align: align.Right}
	total := func(name, value string, style props.Text) core.Row {
		return row.New(6).Add(
			col.New(6),
			text.NewCol(4, name, style),
			text.NewCol(2, value, style),
		)
	}
	bold := props.Text{Size: 11, Align: align.Right, Style: fontstyle.Bold}
	return []core.Row{
		total("Subtotal", money(data.Subtotal), label),
		total("Tax ("+data.TaxRate.String()+"%)", money(data.Tax), label),
		total("Total", money(data.GrandTotal), bold),
	}
}

func rightOf(p props.Text) props.Text {
	p.Align = align.Right
	return p
}
