package validation

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// Fields returns the violated field names in sorted order.
func (v Violations) Fields() []string {
	out := make([]string, 0, len(v))
	for k := range v {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Item returns the field path of a slice element, e.g. items[2].name.
func Item(field string, i int, sub string) string {
	return fmt.Sprintf("%s[%d].%s", field, i, sub)
}

// Basic validators
func Required(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v[field] = "required"
	}
}

// NotBlank flags a supplied but empty optional value.
func NotBlank(field string, value *string, v Violations) {
	if value != nil && strings.TrimSpace(*value) == "" {
		v[field] = "required"
	}
}

func MinInt(field string, val, minVal int, v Violations) {
	if val < minVal {
		v[field] = fmt.Sprintf("must_be_at_least_%d", minVal)
	}
}

func RangeInt(field string, val, minVal, maxVal int, v Violations) {
	if val < minVal || val > maxVal {
		v[field] = "out_of_range"
	}
}

func NonNegativeDecimal(field string, val decimal.Decimal, v Violations) {
	if val.IsNegative() {
		v[field] = "must_not_be_negative"
	}
}

// MaxScale flags amounts with more than places decimal places.
func MaxScale(field string, val decimal.Decimal, places int32, v Violations) {
	if !val.Equal(val.Round(places)) {
		v[field] = fmt.Sprintf("at_most_%d_decimal_places", places)
	}
}

// LessThan flags amounts at or above limit.
func LessThan(field string, val, limit decimal.Decimal, v Violations) {
	if val.GreaterThanOrEqual(limit) {
		v[field] = "too_large"
	}
}

// PlainText flags path separators, quotes and control characters, which
// must not reach file names or headers.
func PlainText(field, value string, v Violations) {
	if strings.ContainsFunc(value, func(r rune) bool {
		return r == '/' || r == '\\' || r == '"' || unicode.IsControl(r)
	}) {
		v[field] = "invalid_characters"
	}
}

// Email flags values that do not look like an address.
func Email(field, value string, v Violations) {
	value = strings.TrimSpace(value)
	at := strings.LastIndex(value, "@")
	if at < 1 || at == len(value)-1 || strings.ContainsAny(value, " \t") {
		v[field] = "invalid_email"
	}
}

func MinLen(field, value string, n int, v Violations) {
	if len([]rune(value)) < n {
		v[field] = fmt.Sprintf("must_be_at_least_%d_characters", n)
	}
}
