package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultCategory is used for products saved without a category.
const DefaultCategory = "General"

// Product is a catalog entry offered when composing invoices.
type Product struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	Name      string          `gorm:"not null" json:"name"`
	UnitPrice decimal.Decimal `gorm:"column:price;type:decimal(12,2);not null" json:"unit_price"`
	SKU       string          `gorm:"column:sku;default:''" json:"sku,omitempty"`
	Category  string          `gorm:"default:'General'" json:"category"`
}

// CategoryOrDefault returns the category, falling back to DefaultCategory.
func (p *Product) CategoryOrDefault() string {
	if c := strings.TrimSpace(p.Category); c != "" {
		return c
	}
	return DefaultCategory
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
