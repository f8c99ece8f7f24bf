package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/diewo77/nexusbilling/internal/models"
	"github.com/diewo77/nexusbilling/validation"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ProductInput is a product as submitted for saving. A nil ID inserts.
type ProductInput struct {
	ID        *uint           `json:"id,omitempty"`
	Name      string          `json:"name" validate:"required"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	SKU       string          `json:"sku"`
	Category  string          `json:"category"`
}

// CatalogService manages the product catalog.
type CatalogService struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewCatalogService(db *gorm.DB, log *zap.Logger) *CatalogService {
	return &CatalogService{db: db, log: log}
}

// Save inserts a product, or overwrites the mutable fields of an existing
// one when in.ID is set.
func (s *CatalogService) Save(ctx context.Context, in ProductInput) (*models.Product, error) {
	v := validation.Struct(in)
	validation.Required("name", in.Name, v)
	validation.NonNegativeDecimal("unit_price", in.UnitPrice, v)
	if !v.Empty() {
		return nil, &ValidationError{Violations: v}
	}

	db := s.db.WithContext(ctx)
	var p models.Product
	if in.ID != nil {
		if err := db.First(&p, *in.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("product %d: %w", *in.ID, ErrNotFound)
			}
			return nil, storageErr("load product", err)
		}
	}
	p.Name = strings.TrimSpace(in.Name)
	p.UnitPrice = in.UnitPrice.Round(2)
	p.SKU = strings.TrimSpace(in.SKU)
	p.Category = strings.TrimSpace(in.Category)
	p.Category = p.CategoryOrDefault()

	if err := db.Save(&p).Error; err != nil {
		return nil, storageErr("save product", err)
	}
	s.log.Info("product saved", zap.Uint("id", p.ID), zap.Bool("update", in.ID != nil))
	return &p, nil
}

// Remove deletes a product. Removing an unknown id is not an error and
// invoice items keep their copied name and price.
func (s *CatalogService) Remove(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Product{}, id)
	if res.Error != nil {
		return storageErr("delete product", res.Error)
	}
	s.log.Info("product removed", zap.Uint("id", id), zap.Int64("rows", res.RowsAffected))
	return nil
}

// ListAll returns the whole catalog ordered by name.
func (s *CatalogService) ListAll(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if err := s.db.WithContext(ctx).Order("name").Order("id").Find(&products).Error; err != nil {
		return nil, storageErr("list products", err)
	}
	return products, nil
}

// Count returns the number of products in the catalog.
func (s *CatalogService) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Product{}).Count(&n).Error; err != nil {
		return 0, storageErr("count products", err)
	}
	return n, nil
}
