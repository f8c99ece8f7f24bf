package models

import (
	"github.com/shopspring/decimal"
)

// InvoiceStatus represents the status of an invoice.
type InvoiceStatus string

const (
	InvoiceStatusPending InvoiceStatus = "Pending"
	InvoiceStatusPaid    InvoiceStatus = "Paid"
	InvoiceStatusOverdue InvoiceStatus = "Overdue"

	// InvoiceStatusDraft is never assigned; revenue aggregation excludes it.
	InvoiceStatusDraft InvoiceStatus = "Draft"
)

// InvoiceStatuses lists the values an invoice status may be set to, in display order.
var InvoiceStatuses = []InvoiceStatus{InvoiceStatusPending, InvoiceStatusPaid, InvoiceStatusOverdue}

// Valid reports whether s is one of the assignable statuses.
func (s InvoiceStatus) Valid() bool {
	for _, v := range InvoiceStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// ParseInvoiceStatus matches raw against the assignable statuses, ignoring case.
func ParseInvoiceStatus(raw string) (InvoiceStatus, bool) {
	for _, v := range InvoiceStatuses {
		if equalFold(string(v), raw) {
			return v, true
		}
	}
	return "", false
}

// Invoice represents a billing invoice.
// Column names match the first revision of the store so older database
// files are upgraded in place.
type Invoice struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	CustomerName  string          `gorm:"column:customer_name;not null" json:"customer_name"`
	CustomerEmail string          `gorm:"column:customer_email;default:''" json:"customer_email,omitempty"`
	IssueDate     Date            `gorm:"column:date" json:"issue_date"`
	DueDate       Date            `gorm:"column:due_date" json:"due_date"`
	Status        InvoiceStatus   `gorm:"size:20;default:'Pending'" json:"status"`
	Subtotal      decimal.Decimal `gorm:"type:decimal(12,2);default:0" json:"subtotal"`
	TaxRate       decimal.Decimal `gorm:"type:decimal(6,2);default:0" json:"tax_rate"`
	TaxAmount     decimal.Decimal `gorm:"type:decimal(12,2);default:0" json:"tax_amount"`
	TotalAmount   decimal.Decimal `gorm:"column:total_amount;type:decimal(12,2)" json:"total_amount"`

	Items []InvoiceItem `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

// IsPaid returns true if the invoice has been settled.
func (i *Invoice) IsPaid() bool {
	return i.Status == InvoiceStatusPaid
}

// IsOverdue returns true if the invoice is flagged overdue.
func (i *Invoice) IsOverdue() bool {
	return i.Status == InvoiceStatusOverdue
}

// Recalculate recomputes every item subtotal and the invoice totals from
// the items and the tax rate. Amounts are rounded to 2 decimal places:
// each line first, then the tax amount; the total is their exact sum.
func (i *Invoice) Recalculate() {
	subtotal := decimal.Zero
	for k := range i.Items {
		i.Items[k].Recalculate()
		subtotal = subtotal.Add(i.Items[k].Subtotal)
	}
	i.Subtotal = subtotal
	i.TaxAmount = TaxOn(subtotal, i.TaxRate)
	i.TotalAmount = i.Subtotal.Add(i.TaxAmount)
}

// TaxOn returns round(subtotal * rate / 100, 2).
func TaxOn(subtotal, rate decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(rate).Div(decimal.NewFromInt(100)).Round(2)
}

// InvoiceItem represents a line item on an invoice.
// The description and unit price are copies taken when the invoice was
// created; there is no link back to the catalog.
type InvoiceItem struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	InvoiceID   uint            `gorm:"index;not null" json:"invoice_id"`
	Description string          `gorm:"column:product_name" json:"description"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"column:price;type:decimal(12,2)" json:"unit_price"`
	Subtotal    decimal.Decimal `gorm:"type:decimal(12,2)" json:"subtotal"`
}

// Recalculate sets Subtotal to round(quantity * unit price, 2).
func (item *InvoiceItem) Recalculate() {
	item.Subtotal = LineTotal(item.Quantity, item.UnitPrice)
}

// LineTotal returns round(qty * price, 2).
func LineTotal(qty int, price decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(qty))).Round(2)
}
