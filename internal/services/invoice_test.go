package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/diewo77/nexusbilling/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db       *gorm.DB
	catalog  *CatalogService
	invoices *InvoiceService
}

func newFixture(t *testing.T) fixture {
	conn := newTestDB(t)
	return fixture{
		db:       conn,
		catalog:  NewCatalogService(conn, zap.NewNop()),
		invoices: NewInvoiceService(conn, zap.NewNop(), 0),
	}
}

func (f fixture) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Count(&n).Error)
	return n
}

func simpleInput(customer string, total string) InvoiceInput {
	return InvoiceInput{
		CustomerName: customer,
		IssueDate:    "2025-02-01",
		Items:        []LineInput{{Description: "Service", UnitPrice: dec(total), Quantity: 1}},
	}
}

func TestInvoiceService_CreateWidgetScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	widget, err := f.catalog.Save(ctx, ProductInput{Name: "Widget", UnitPrice: dec("10.00")})
	require.NoError(t, err)

	inv, err := f.invoices.Create(ctx, InvoiceInput{
		CustomerName: "Acme Corp",
		IssueDate:    "2025-03-01",
		DueDate:      "2025-03-31",
		TaxRate:      dec("8"),
		Items: []LineInput{
			{ProductID: ptr(widget.ID), UnitPrice: dec("10.00"), Quantity: 3},
			{Description: "Setup Fee", UnitPrice: dec("50.00"), Quantity: 1},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusPending, inv.Status)

	got, err := f.invoices.Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "80.00", got.Subtotal.StringFixed(2))
	assert.Equal(t, "6.40", got.TaxAmount.StringFixed(2))
	assert.Equal(t, "86.40", got.TotalAmount.StringFixed(2))
	assert.Equal(t, "2025-03-01", got.IssueDate.String())
	assert.Equal(t, "2025-03-31", got.DueDate.String())
	require.Len(t, got.Items, 2)
	assert.Equal(t, "Widget", got.Items[0].Description)
	assert.Equal(t, "30.00", got.Items[0].Subtotal.StringFixed(2))
	assert.Equal(t, "Setup Fee", got.Items[1].Description)
}

func TestInvoiceService_CreateArithmetic(t *testing.T) {
	tests := []struct {
		name     string
		rate     string
		lines    []LineInput
		subtotal string
		tax      string
		total    string
	}{
		{
			name:     "per line rounding",
			rate:     "7.25",
			lines:    []LineInput{{Description: "a", UnitPrice: dec("0.333"), Quantity: 3}, {Description: "b", UnitPrice: dec("1.115"), Quantity: 7}},
			subtotal: "8.83", tax: "0.64", total: "9.47",
		},
		{
			name:     "zero tax",
			rate:     "0",
			lines:    []LineInput{{Description: "a", UnitPrice: dec("19.99"), Quantity: 2}},
			subtotal: "39.98", tax: "0.00", total: "39.98",
		},
		{
			name:     "tax half up",
			rate:     "5",
			lines:    []LineInput{{Description: "a", UnitPrice: dec("0.10"), Quantity: 1}},
			subtotal: "0.10", tax: "0.01", total: "0.11",
		},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			inv, err := f.invoices.Create(context.Background(), InvoiceInput{
				CustomerName: fmt.Sprintf("Customer %d", i),
				IssueDate:    "2025-01-15",
				TaxRate:      dec(tt.rate),
				Items:        tt.lines,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.subtotal, inv.Subtotal.StringFixed(2))
			assert.Equal(t, tt.tax, inv.TaxAmount.StringFixed(2))
			assert.Equal(t, tt.total, inv.TotalAmount.StringFixed(2))

			sum := decimal.Zero
			for _, it := range inv.Items {
				assert.True(t, it.Subtotal.Equal(models.LineTotal(it.Quantity, it.UnitPrice)))
				sum = sum.Add(it.Subtotal)
			}
			assert.True(t, inv.Subtotal.Equal(sum))
			assert.True(t, inv.TotalAmount.Equal(inv.Subtotal.Add(inv.TaxAmount)))
		})
	}
}

func TestInvoiceService_CreateRoundsPriceAndRateToStoredScale(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inv, err := f.invoices.Create(ctx, InvoiceInput{
		CustomerName: "Scale Co",
		IssueDate:    "2025-04-01",
		TaxRate:      dec("7.125"),
		Items:        []LineInput{{Description: "Bolt", UnitPrice: dec("0.333"), Quantity: 3}},
	})
	require.NoError(t, err)

	got, err := f.invoices.Get(ctx, inv.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	item := got.Items[0]
	assert.Equal(t, "0.33", item.UnitPrice.String())
	assert.Equal(t, "0.99", item.Subtotal.StringFixed(2))
	assert.True(t, item.Subtotal.Equal(models.LineTotal(item.Quantity, item.UnitPrice)))
	assert.Equal(t, "7.13", got.TaxRate.String())
	assert.Equal(t, "0.07", got.TaxAmount.StringFixed(2))
	assert.True(t, got.TaxAmount.Equal(models.TaxOn(got.Subtotal, got.TaxRate)))
	assert.Equal(t, "1.06", got.TotalAmount.StringFixed(2))
}

func TestInvoiceService_CreateValidation(t *testing.T) {
	tests := []struct {
		name  string
		in    InvoiceInput
		field string
		code  string
	}{
		{"missing customer", InvoiceInput{IssueDate: "2025-01-01"}, "customer_name", "required"},
		{"blank customer", InvoiceInput{CustomerName: "  ", IssueDate: "2025-01-01"}, "customer_name", "required"},
		{"missing date", InvoiceInput{CustomerName: "A"}, "issue_date", "required"},
		{"bad date", InvoiceInput{CustomerName: "A", IssueDate: "01/02/2025"}, "issue_date", "invalid_date"},
		{"bad due date", InvoiceInput{CustomerName: "A", IssueDate: "2025-01-01", DueDate: "soon"}, "due_date", "invalid_date"},
		{"bad email", InvoiceInput{CustomerName: "A", CustomerEmail: "nope", IssueDate: "2025-01-01"}, "customer_email", "invalid_email"},
		{"negative tax", InvoiceInput{CustomerName: "A", IssueDate: "2025-01-01", TaxRate: dec("-1")}, "tax_rate", "must_be_non_negative"},
		{
			"zero quantity",
			InvoiceInput{CustomerName: "A", IssueDate: "2025-01-01", Items: []LineInput{
				{Description: "ok", UnitPrice: dec("1"), Quantity: 1},
				{Description: "bad", UnitPrice: dec("1"), Quantity: 0},
			}},
			"items[1].quantity", "must_be_positive",
		},
		{
			"negative price",
			InvoiceInput{CustomerName: "A", IssueDate: "2025-01-01", Items: []LineInput{{Description: "x", UnitPrice: dec("-5"), Quantity: 1}}},
			"items[0].unit_price", "must_be_non_negative",
		},
		{
			"missing description",
			InvoiceInput{CustomerName: "A", IssueDate: "2025-01-01", Items: []LineInput{{UnitPrice: dec("5"), Quantity: 1}}},
			"items[0].description", "required",
		},
		{
			"unknown product",
			InvoiceInput{CustomerName: "A", IssueDate: "2025-01-01", Items: []LineInput{{ProductID: ptr(uint(404)), UnitPrice: dec("5"), Quantity: 1}}},
			"items[0].product_id", "not_found",
		},
		{
			"claimed total mismatch",
			InvoiceInput{CustomerName: "A", IssueDate: "2025-01-01", ClaimedTotal: ptr(dec("99.00")),
				Items: []LineInput{{Description: "x", UnitPrice: dec("5"), Quantity: 1}}},
			"total_amount", "total_mismatch",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.invoices.Create(context.Background(), tt.in)
			ve, ok := IsValidation(err)
			require.True(t, ok, "got %v", err)
			assert.Equal(t, tt.code, ve.Violations[tt.field], "violations: %v", ve.Violations)

			assert.Zero(t, f.count(t, &models.Invoice{}))
			assert.Zero(t, f.count(t, &models.InvoiceItem{}))
		})
	}
}

func TestInvoiceService_ClaimedTotalWithinTolerance(t *testing.T) {
	f := newFixture(t)
	in := simpleInput("Tolerant Ltd", "10.00")
	in.TaxRate = dec("10")
	in.ClaimedTotal = ptr(dec("11.01"))

	inv, err := f.invoices.Create(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "11.00", inv.TotalAmount.StringFixed(2))
}

func TestInvoiceService_CreateWithoutItems(t *testing.T) {
	f := newFixture(t)
	inv, err := f.invoices.Create(context.Background(), InvoiceInput{CustomerName: "Empty Co", IssueDate: "2025-01-01", TaxRate: dec("20")})
	require.NoError(t, err)
	assert.True(t, inv.TotalAmount.IsZero())
	assert.EqualValues(t, 1, f.count(t, &models.Invoice{}))
}

func TestInvoiceService_GetNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.invoices.Get(context.Background(), 5)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestInvoiceService_SetStatusAnyToAny(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inv, err := f.invoices.Create(ctx, simpleInput("Loop Inc", "10"))
	require.NoError(t, err)

	for _, s := range []models.InvoiceStatus{
		models.InvoiceStatusPaid,
		models.InvoiceStatusPending,
		models.InvoiceStatusOverdue,
		models.InvoiceStatusPaid,
		models.InvoiceStatusOverdue,
		models.InvoiceStatusPending,
	} {
		require.NoError(t, f.invoices.SetStatus(ctx, inv.ID, s))
		got, err := f.invoices.Get(ctx, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, s, got.Status)
	}
}

func TestInvoiceService_SetStatusErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inv, err := f.invoices.Create(ctx, simpleInput("Status Ltd", "10"))
	require.NoError(t, err)

	err = f.invoices.SetStatus(ctx, 5, models.InvoiceStatusPaid)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.EqualValues(t, 1, f.count(t, &models.Invoice{}))
	got, err := f.invoices.Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusPending, got.Status)

	for _, s := range []models.InvoiceStatus{models.InvoiceStatusDraft, "Cancelled", ""} {
		err = f.invoices.SetStatus(ctx, inv.ID, s)
		ve, ok := IsValidation(err)
		require.True(t, ok, "status %q: %v", s, err)
		assert.Equal(t, "invalid_status", ve.Violations["status"])
	}
}

func TestInvoiceService_DeleteCascadesItems(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	keep, err := f.invoices.Create(ctx, simpleInput("Keep", "1"))
	require.NoError(t, err)
	drop, err := f.invoices.Create(ctx, InvoiceInput{
		CustomerName: "Drop",
		IssueDate:    "2025-01-01",
		Items: []LineInput{
			{Description: "a", UnitPrice: dec("1"), Quantity: 1},
			{Description: "b", UnitPrice: dec("2"), Quantity: 2},
		},
	})
	require.NoError(t, err)

	require.NoError(t, f.invoices.Delete(ctx, drop.ID))
	require.NoError(t, f.invoices.Delete(ctx, drop.ID))

	var orphans int64
	require.NoError(t, f.db.Model(&models.InvoiceItem{}).Where("invoice_id = ?", drop.ID).Count(&orphans).Error)
	assert.Zero(t, orphans)
	_, err = f.invoices.Get(ctx, drop.ID)
	assert.True(t, errors.Is(err, ErrNotFound))

	kept, err := f.invoices.Get(ctx, keep.ID)
	require.NoError(t, err)
	assert.Len(t, kept.Items, 1)
}

func TestInvoiceService_ProductDeleteKeepsItems(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p, err := f.catalog.Save(ctx, ProductInput{Name: "Monitor", UnitPrice: dec("350")})
	require.NoError(t, err)
	inv, err := f.invoices.Create(ctx, InvoiceInput{
		CustomerName: "Screens R Us",
		IssueDate:    "2025-01-01",
		Items:        []LineInput{{ProductID: ptr(p.ID), UnitPrice: dec("340"), Quantity: 2}},
	})
	require.NoError(t, err)

	_, err = f.catalog.Save(ctx, ProductInput{ID: ptr(p.ID), Name: "Monitor v2", UnitPrice: dec("999")})
	require.NoError(t, err)
	require.NoError(t, f.catalog.Remove(ctx, p.ID))

	got, err := f.invoices.Get(ctx, inv.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Monitor", got.Items[0].Description)
	assert.Equal(t, "340.00", got.Items[0].UnitPrice.StringFixed(2))
	assert.Equal(t, "680.00", got.Items[0].Subtotal.StringFixed(2))
}

func seedInvoices(t *testing.T, conn *gorm.DB, names ...string) {
	t.Helper()
	invs := make([]models.Invoice, len(names))
	for i, n := range names {
		invs[i] = models.Invoice{
			CustomerName: n,
			IssueDate:    models.Today(),
			Status:       models.InvoiceStatusPending,
			TotalAmount:  decimal.NewFromInt(1),
		}
	}
	require.NoError(t, conn.Create(&invs).Error)
}

func TestInvoiceService_SearchSubstring(t *testing.T) {
	f := newFixture(t)
	names := make([]string, 72)
	for i := range names {
		names[i] = "Client"
	}
	seedInvoices(t, f.db, names...)
	seedInvoices(t, f.db, "Route 7 Diner") // id 73
	seedInvoices(t, f.db, "Bay 7 Storage") // id 74

	got, err := f.invoices.Search(context.Background(), Filter{Query: "7", Limit: 100})
	require.NoError(t, err)
	ids := make([]uint, len(got))
	for i, inv := range got {
		ids[i] = inv.ID
	}
	assert.Equal(t, []uint{74, 73, 72, 71, 70, 67, 57, 47, 37, 27, 17, 7}, ids)

	got, err = f.invoices.Search(context.Background(), Filter{Query: "route"})
	require.NoError(t, err)
	assert.Empty(t, got, "name match is case sensitive")

	got, err = f.invoices.Search(context.Background(), Filter{Query: "Route"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.EqualValues(t, 73, got[0].ID)
}

func TestInvoiceService_SearchLimitAndOrder(t *testing.T) {
	f := newFixture(t)
	names := make([]string, 30)
	for i := range names {
		names[i] = fmt.Sprintf("Customer %c", 'A'+i%26)
	}
	seedInvoices(t, f.db, names...)

	got, err := f.invoices.Search(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, got, DefaultPageSize)
	assert.EqualValues(t, 30, got[0].ID)
	assert.EqualValues(t, 11, got[len(got)-1].ID)

	small := NewInvoiceService(f.db, zap.NewNop(), 5)
	got, err = small.Search(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Len(t, got, 5)
}

func TestInvoiceService_SearchStatusFilter(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedInvoices(t, f.db, "Alpha", "Beta", "Alpine")
	require.NoError(t, f.invoices.SetStatus(ctx, 1, models.InvoiceStatusPaid))
	require.NoError(t, f.invoices.SetStatus(ctx, 2, models.InvoiceStatusPaid))

	got, err := f.invoices.Search(ctx, Filter{Status: models.InvoiceStatusPaid})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = f.invoices.Search(ctx, Filter{Query: "Alp", Status: models.InvoiceStatusPaid})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Alpha", got[0].CustomerName)

	got, err = f.invoices.Search(ctx, Filter{Status: models.InvoiceStatusOverdue})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestInvoiceService_Stats(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.catalog.Save(ctx, ProductInput{Name: "Thing", UnitPrice: dec("1")})
	require.NoError(t, err)

	empty, err := f.invoices.Stats(ctx)
	require.NoError(t, err)
	assert.True(t, empty.TotalRevenue.IsZero())
	assert.Zero(t, empty.PendingCount)

	for _, row := range []struct {
		total  string
		status models.InvoiceStatus
	}{
		{"100.10", models.InvoiceStatusPending},
		{"50.20", models.InvoiceStatusPaid},
		{"20.00", models.InvoiceStatusOverdue},
		{"30.00", models.InvoiceStatusDraft},
		{"0.30", models.InvoiceStatusPending},
	} {
		require.NoError(t, f.db.Create(&models.Invoice{
			CustomerName: "S",
			IssueDate:    models.Today(),
			Status:       row.status,
			TotalAmount:  dec(row.total),
		}).Error)
	}

	st, err := f.invoices.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, "170.60", st.TotalRevenue.StringFixed(2))
	assert.Equal(t, "100.40", st.PendingAmount.StringFixed(2))
	assert.EqualValues(t, 2, st.PendingCount)
	assert.EqualValues(t, 5, st.InvoiceCount)
	assert.EqualValues(t, 1, st.ProductCount)
}
