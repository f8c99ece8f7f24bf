package db

import (
	"fmt"

	"github.com/diewo77/nexusbilling/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// StarterProducts is the catalog written to an empty store.
func StarterProducts() []models.Product {
	return []models.Product{
		{Name: "Enterprise Laptop X1", UnitPrice: decimal.RequireFromString("1299.99"), SKU: "LAP-X1", Category: "Hardware"},
		{Name: "Wireless Ergonomic Mouse", UnitPrice: decimal.RequireFromString("45.50"), SKU: "MOU-WE", Category: "Accessories"},
		{Name: "Mechanical Keyboard", UnitPrice: decimal.RequireFromString("85.00"), SKU: "KEY-MECH", Category: "Accessories"},
		{Name: "4K Monitor", UnitPrice: decimal.RequireFromString("350.00"), SKU: "MON-4K", Category: "Hardware"},
	}
}

// Seed inserts StarterProducts when the catalog is empty and returns the
// number of rows written. A catalog with any product is left alone.
func Seed(conn *gorm.DB, log *zap.Logger) (int, error) {
	var count int64
	if err := conn.Model(&models.Product{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	if count > 0 {
		log.Debug("catalog not empty, skipping seed", zap.Int64("products", count))
		return 0, nil
	}
	products := StarterProducts()
	if err := conn.Create(&products).Error; err != nil {
		return 0, fmt.Errorf("seed products: %w", err)
	}
	log.Info("seeded catalog", zap.Int("products", len(products)))
	return len(products), nil
}
