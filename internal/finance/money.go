package finance

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount = errors.New("invalid_amount")
	ErrInvalidRate   = errors.New("invalid_rate")
)

// Bounds follow the numeric columns: amounts are numeric(20,2), rates
// numeric(9,4). Inputs are checked on coefficient and exponent only, before
// anything expands them.
const (
	maxAmountIntDigits = 18
	maxRateIntDigits   = 5
	maxFractionDigits  = 18
)

// ParseAmount converts a loosely typed monetary value into a decimal. Values
// from JSON or query strings arrive as strings, json.Number or float64 and are
// converted exactly once here. Negative and non-finite values are rejected.
func ParseAmount(v any) (decimal.Decimal, error) {
	d, err := toDecimal(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	if err := checkScale(d, maxAmountIntDigits); err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: negative value %s", ErrInvalidAmount, d)
	}
	return d, nil
}

// ParseRate converts an annual percentage rate. Rates follow the same rules as
// amounts; 12 means 12% a year.
func ParseRate(v any) (decimal.Decimal, error) {
	d, err := toDecimal(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrInvalidRate, err)
	}
	if err := checkScale(d, maxRateIntDigits); err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrInvalidRate, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: negative value %s", ErrInvalidRate, d)
	}
	return d, nil
}

func checkScale(d decimal.Decimal, maxIntDigits int64) error {
	exp := int64(d.Exponent())
	if exp < -maxFractionDigits {
		return fmt.Errorf("more than %d fraction digits", maxFractionDigits)
	}
	if int64(d.NumDigits())+exp > maxIntDigits {
		return fmt.Errorf("more than %d integer digits", maxIntDigits)
	}
	return nil
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, nil
	case *decimal.Decimal:
		if x == nil {
			return decimal.Zero, errors.New("nil value")
		}
		return *x, nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return decimal.Zero, errors.New("empty value")
		}
		return decimal.NewFromString(s)
	case json.Number:
		return decimal.NewFromString(x.String())
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return decimal.Zero, errors.New("non-finite value")
		}
		return decimal.NewFromFloat(x), nil
	case float32:
		return toDecimal(float64(x))
	case int:
		return decimal.NewFromInt(int64(x)), nil
	case int32:
		return decimal.NewFromInt32(x), nil
	case int64:
		return decimal.NewFromInt(x), nil
	case nil:
		return decimal.Zero, errors.New("nil value")
	default:
		return decimal.Zero, fmt.Errorf("unsupported type %T", v)
	}
}
