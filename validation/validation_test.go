package validation

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestValidators(t *testing.T) {
	v := Violations{}
	Required("name", "  ", v)
	MinInt("quantity", 0, 1, v)
	RangeInt("gst", 101, 0, 100, v)
	NonNegativeDecimal("price", decimal.NewFromInt(-1), v)
	blank := ""
	NotBlank("variant", &blank, v)
	NotBlank("category", nil, v)

	assert.Equal(t, Violations{
		"name":     "required",
		"quantity": "must_be_at_least_1",
		"gst":      "out_of_range",
		"price":    "must_not_be_negative",
		"variant":  "required",
	}, v)
	assert.Equal(t, []string{"gst", "name", "price", "quantity", "variant"}, v.Fields())
}

func TestValidatorsAcceptValidInput(t *testing.T) {
	v := Violations{}
	Required("name", "Paracetamol", v)
	MinInt("quantity", 1, 1, v)
	RangeInt("gst", 0, 0, 100, v)
	NonNegativeDecimal("price", decimal.Zero, v)
	assert.True(t, v.Empty())
}

func TestItem(t *testing.T) {
	assert.Equal(t, "items[2].total", Item("items", 2, "total"))
}

func TestAmountValidators(t *testing.T) {
	limit := decimal.New(1, 10)
	tests := []struct {
		val  string
		want string
	}{
		{"0.01", ""},
		{"1.50", ""},
		{"1.500", ""},
		{"0.005", "at_most_2_decimal_places"},
		{"9999999999.99", ""},
		{"10000000000", "too_large"},
	}
	for _, tt := range tests {
		v := Violations{}
		d := decimal.RequireFromString(tt.val)
		MaxScale("price", d, 2, v)
		LessThan("price", d, limit, v)
		assert.Equal(t, tt.want, v["price"], tt.val)
	}
}

func TestPlainText(t *testing.T) {
	tests := []struct {
		value string
		ok    bool
	}{
		{"INV-2024-001", true},
		{"INV 7", true},
		{"ACME/7", false},
		{`ACME\7`, false},
		{`say "hi"`, false},
		{"INV\r\nX-Evil: 1", false},
	}
	for _, tt := range tests {
		v := Violations{}
		PlainText("invoice_number", tt.value, v)
		assert.Equal(t, tt.ok, v.Empty(), tt.value)
	}
}

func TestEmailAndMinLen(t *testing.T) {
	tests := []struct {
		email string
		ok    bool
	}{
		{"admin@shop.in", true},
		{" a@b ", true},
		{"", false},
		{"@shop.in", false},
		{"admin@", false},
		{"ad min@shop.in", false},
	}
	for _, tt := range tests {
		v := Violations{}
		Email("email", tt.email, v)
		assert.Equal(t, tt.ok, v.Empty(), tt.email)
	}

	v := Violations{}
	MinLen("password", "12345", 6, v)
	assert.Equal(t, "must_be_at_least_6_characters", v["password"])
	MinLen("other", "123456", 6, v)
	assert.Len(t, v, 1)
}
