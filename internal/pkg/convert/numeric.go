// Package convert provides type conversion utilities.
package convert

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// Decimal converts a JSON string or number into a decimal, keeping the
// exchange's textual precision.
func Decimal(v gjson.Result) (decimal.Decimal, error) {
	switch v.Type {
	case gjson.String:
		s := strings.TrimSpace(v.Str)
		if s == "" {
			return decimal.Zero, fmt.Errorf("empty number")
		}
		return decimal.NewFromString(s)
	case gjson.Number:
		return decimal.NewFromString(v.Raw)
	default:
		return decimal.Zero, fmt.Errorf("not a number: %s", v.Type)
	}
}

// Int64 converts a JSON string or integral number into an int64.
func Int64(v gjson.Result) (int64, error) {
	switch v.Type {
	case gjson.String:
		return strconv.ParseInt(strings.TrimSpace(v.Str), 10, 64)
	case gjson.Number:
		if i, err := strconv.ParseInt(v.Raw, 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(v.Raw, 64)
		if err != nil {
			return 0, err
		}
		return int64(f), nil
	default:
		return 0, fmt.Errorf("not an integer: %s", v.Type)
	}
}
