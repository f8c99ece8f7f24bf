package validation

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

type lineForm struct {
	Description string `json:"description" validate:"required"`
	Quantity    int    `json:"quantity" validate:"min=1"`
}

type invoiceForm struct {
	CustomerName  string     `json:"customer_name" validate:"required"`
	CustomerEmail string     `json:"customer_email" validate:"omitempty,email"`
	Items         []lineForm `json:"items" validate:"dive"`
}

func TestStruct_ReportsJSONPaths(t *testing.T) {
	v := Struct(invoiceForm{
		CustomerEmail: "not-an-email",
		Items: []lineForm{
			{Description: "ok", Quantity: 1},
			{Description: "", Quantity: 0},
		},
	})
	assert.Equal(t, Violations{
		"customer_name":        "required",
		"customer_email":       "invalid_email",
		"items[1].description": "required",
		"items[1].quantity":    "must_be_positive",
	}, v)
}

func TestStruct_Valid(t *testing.T) {
	v := Struct(invoiceForm{CustomerName: "ACME", Items: []lineForm{{Description: "x", Quantity: 2}}})
	assert.True(t, v.Empty())
}

func TestBasicValidators(t *testing.T) {
	v := Violations{}
	Required("name", "   ", v)
	NonNegativeDecimal("price", decimal.NewFromFloat(-0.01), v)
	NonNegativeDecimal("free", decimal.Zero, v)
	assert.Equal(t, Violations{
		"name":  "required",
		"price": "must_be_non_negative",
	}, v)
}

func TestAddKeepsFirstViolation(t *testing.T) {
	v := Violations{}
	v.Add("name", "required")
	v.Add("name", "too_long")
	v.Add("sku", "taken")
	assert.Equal(t, Violations{"name": "required", "sku": "taken"}, v)
}
