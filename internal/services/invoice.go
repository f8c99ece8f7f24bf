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

// DefaultPageSize caps Search results when no limit is given.
const DefaultPageSize = 20

// totalTolerance is the largest accepted gap between a client-claimed
// total and the computed one.
var totalTolerance = decimal.RequireFromString("0.01")

// LineInput is one submitted line item. When ProductID is set the
// description is copied from the catalog product.
type LineInput struct {
	ProductID   *uint           `json:"product_id,omitempty"`
	Description string          `json:"description"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity" validate:"min=1"`
}

// InvoiceInput is a new invoice as submitted. Dates use YYYY-MM-DD.
type InvoiceInput struct {
	CustomerName  string           `json:"customer_name" validate:"required"`
	CustomerEmail string           `json:"customer_email" validate:"omitempty,email"`
	IssueDate     string           `json:"issue_date" validate:"required"`
	DueDate       string           `json:"due_date"`
	TaxRate       decimal.Decimal  `json:"tax_rate"`
	Items         []LineInput      `json:"items" validate:"dive"`
	ClaimedTotal  *decimal.Decimal `json:"total_amount,omitempty"`
}

// Filter selects invoices for Search. Empty fields do not filter.
type Filter struct {
	Query  string
	Status models.InvoiceStatus
	Limit  int
}

// Stats are the dashboard aggregates.
type Stats struct {
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
	PendingAmount decimal.Decimal `json:"pending_amount"`
	PendingCount  int64           `json:"pending_count"`
	InvoiceCount  int64           `json:"invoice_count"`
	ProductCount  int64           `json:"product_count"`
}

// InvoiceService builds, queries and updates invoices.
type InvoiceService struct {
	db       *gorm.DB
	log      *zap.Logger
	pageSize int
}

func NewInvoiceService(db *gorm.DB, log *zap.Logger, pageSize int) *InvoiceService {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &InvoiceService{db: db, log: log, pageSize: pageSize}
}

// Create validates in, computes every amount server side and stores the
// invoice with its items in one transaction. The new invoice is Pending.
func (s *InvoiceService) Create(ctx context.Context, in InvoiceInput) (*models.Invoice, error) {
	inv, v := buildInvoice(in)
	if !v.Empty() {
		return nil, &ValidationError{Violations: v}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := resolveProducts(tx, in.Items, inv); err != nil {
			return err
		}
		inv.Recalculate()
		if in.ClaimedTotal != nil && in.ClaimedTotal.Sub(inv.TotalAmount).Abs().GreaterThan(totalTolerance) {
			return Invalid("total_amount", "total_mismatch")
		}
		if err := tx.Create(inv).Error; err != nil {
			return storageErr("create invoice", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(inv.Items) == 0 {
		s.log.Warn("invoice created without line items", zap.Uint("id", inv.ID))
	}
	s.log.Info("invoice created",
		zap.Uint("id", inv.ID),
		zap.Int("items", len(inv.Items)),
		zap.String("total", inv.TotalAmount.StringFixed(2)))
	return inv, nil
}

// buildInvoice checks the input and maps it onto an unsaved invoice.
// Prices and the tax rate are rounded to the 2 places the columns hold,
// so the stored figures reproduce the computed amounts.
func buildInvoice(in InvoiceInput) (*models.Invoice, validation.Violations) {
	v := validation.Struct(in)
	validation.Required("customer_name", in.CustomerName, v)
	validation.NonNegativeDecimal("tax_rate", in.TaxRate, v)

	inv := &models.Invoice{
		CustomerName:  strings.TrimSpace(in.CustomerName),
		CustomerEmail: strings.TrimSpace(in.CustomerEmail),
		Status:        models.InvoiceStatusPending,
		TaxRate:       in.TaxRate.Round(2),
	}
	if strings.TrimSpace(in.IssueDate) != "" {
		d, err := models.ParseDate(in.IssueDate)
		if err != nil {
			v.Add("issue_date", "invalid_date")
		}
		inv.IssueDate = d
	}
	if strings.TrimSpace(in.DueDate) != "" {
		d, err := models.ParseDate(in.DueDate)
		if err != nil {
			v.Add("due_date", "invalid_date")
		}
		inv.DueDate = d
	}

	for i, line := range in.Items {
		prefix := fmt.Sprintf("items[%d].", i)
		validation.NonNegativeDecimal(prefix+"unit_price", line.UnitPrice, v)
		if line.ProductID == nil {
			validation.Required(prefix+"description", line.Description, v)
		}
		inv.Items = append(inv.Items, models.InvoiceItem{
			Description: strings.TrimSpace(line.Description),
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice.Round(2),
		})
	}
	return inv, v
}

// resolveProducts copies the current catalog name onto lines that
// reference a product.
func resolveProducts(tx *gorm.DB, lines []LineInput, inv *models.Invoice) error {
	v := validation.Violations{}
	for i, line := range lines {
		if line.ProductID == nil {
			continue
		}
		var p models.Product
		if err := tx.First(&p, *line.ProductID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				v.Add(fmt.Sprintf("items[%d].product_id", i), "not_found")
				continue
			}
			return storageErr("load product", err)
		}
		inv.Items[i].Description = p.Name
	}
	if !v.Empty() {
		return &ValidationError{Violations: v}
	}
	return nil
}

// Get returns an invoice with its items in insertion order.
func (s *InvoiceService) Get(ctx context.Context, id uint) (*models.Invoice, error) {
	var inv models.Invoice
	err := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		First(&inv, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("invoice %d: %w", id, ErrNotFound)
		}
		return nil, storageErr("load invoice", err)
	}
	return &inv, nil
}

// SetStatus overwrites the status of an invoice. Any status may follow
// any other.
func (s *InvoiceService) SetStatus(ctx context.Context, id uint, status models.InvoiceStatus) error {
	if !status.Valid() {
		return Invalid("status", "invalid_status")
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var inv models.Invoice
		if err := tx.Select("id", "status").First(&inv, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("invoice %d: %w", id, ErrNotFound)
			}
			return storageErr("load invoice", err)
		}
		if err := tx.Model(&models.Invoice{}).Where("id = ?", id).Update("status", status).Error; err != nil {
			return storageErr("update status", err)
		}
		s.log.Info("invoice status changed",
			zap.Uint("id", id),
			zap.String("from", string(inv.Status)),
			zap.String("to", string(status)))
		return nil
	})
	return err
}

// Delete removes an invoice and its items. Deleting an unknown id is not
// an error.
func (s *InvoiceService) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("invoice_id = ?", id).Delete(&models.InvoiceItem{}).Error; err != nil {
			return storageErr("delete invoice items", err)
		}
		res := tx.Delete(&models.Invoice{}, id)
		if res.Error != nil {
			return storageErr("delete invoice", res.Error)
		}
		s.log.Info("invoice deleted", zap.Uint("id", id), zap.Int64("rows", res.RowsAffected))
		return nil
	})
}

// Search returns the most recent invoices first. Query matches a
// substring of the customer name or of the decimal id, case sensitive.
func (s *InvoiceService) Search(ctx context.Context, f Filter) ([]models.Invoice, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = s.pageSize
	}
	q := s.db.WithContext(ctx).Model(&models.Invoice{})
	if f.Query != "" {
		fn := "instr"
		if s.db.Dialector.Name() == "postgres" {
			fn = "strpos"
		}
		q = q.Where(fn+"(customer_name, ?) > 0 OR "+fn+"(CAST(id AS TEXT), ?) > 0", f.Query, f.Query)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	var invoices []models.Invoice
	if err := q.Order("id DESC").Limit(limit).Find(&invoices).Error; err != nil {
		return nil, storageErr("search invoices", err)
	}
	return invoices, nil
}

type sumCount struct {
	Amount decimal.Decimal
	N      int64
}

// Stats computes the dashboard aggregates. Revenue counts every invoice
// that is not a draft.
func (s *InvoiceService) Stats(ctx context.Context) (Stats, error) {
	db := s.db.WithContext(ctx)
	var st Stats

	var revenue, pending sumCount
	if err := db.Model(&models.Invoice{}).
		Select("COALESCE(SUM(total_amount), 0) AS amount, COUNT(*) AS n").
		Where("status <> ?", models.InvoiceStatusDraft).
		Scan(&revenue).Error; err != nil {
		return st, storageErr("revenue", err)
	}
	if err := db.Model(&models.Invoice{}).
		Select("COALESCE(SUM(total_amount), 0) AS amount, COUNT(*) AS n").
		Where("status = ?", models.InvoiceStatusPending).
		Scan(&pending).Error; err != nil {
		return st, storageErr("pending", err)
	}
	if err := db.Model(&models.Invoice{}).Count(&st.InvoiceCount).Error; err != nil {
		return st, storageErr("count invoices", err)
	}
	if err := db.Model(&models.Product{}).Count(&st.ProductCount).Error; err != nil {
		return st, storageErr("count products", err)
	}
	st.TotalRevenue = revenue.Amount.Round(2)
	st.PendingAmount = pending.Amount.Round(2)
	st.PendingCount = pending.N
	return st, nil
}
