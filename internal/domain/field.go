package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidValue is wrapped by every coercion and validation failure.
var ErrInvalidValue = errors.New("invalid value")

// Field names a mutable product field as stored in the document.
type Field string

const (
	FieldName     Field = "name"
	FieldPrice    Field = "price"
	FieldStock    Field = "stock"
	FieldStockMin Field = "stock_min"
	FieldStockMax Field = "stock_max"
)

// MutableFields lists the fields an update may touch, in display order.
var MutableFields = []Field{FieldName, FieldPrice, FieldStock, FieldStockMin, FieldStockMax}

// Kind is the semantic type of a field.
type Kind int

const (
	KindText Kind = iota
	KindCurrency
	KindCount
)

func (k Kind) String() string {
	switch k {
	case KindCurrency:
		return "currency"
	case KindCount:
		return "count"
	default:
		return "text"
	}
}

var fieldKinds = map[Field]Kind{
	FieldName:     KindText,
	FieldPrice:    KindCurrency,
	FieldStock:    KindCount,
	FieldStockMin: KindCount,
	FieldStockMax: KindCount,
}

// Kind returns the kind of f. Fields outside the table are text and pass
// through coercion unchanged.
func (f Field) Kind() Kind {
	return fieldKinds[f]
}

// ParseField accepts only the mutable product fields.
func ParseField(s string) (Field, error) {
	f := Field(s)
	if _, ok := fieldKinds[f]; !ok {
		return "", fmt.Errorf("%w: unknown field %q", ErrInvalidValue, s)
	}
	return f, nil
}

// Coerce converts raw to the declared type of f: float64 for currency,
// int64 for counts; text values are returned unchanged.
func Coerce(f Field, raw interface{}) (interface{}, error) {
	switch f.Kind() {
	case KindCurrency:
		v, err := ToFloat(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f, err)
		}
		return v, nil
	case KindCount:
		v, err := ToInt(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f, err)
		}
		return v, nil
	default:
		return raw, nil
	}
}

// CoerceInput is the stricter form used on user input: the value must be
// non-negative for numeric kinds.
func CoerceInput(f Field, raw interface{}) (interface{}, error) {
	if f.Kind() == KindCount {
		if err := checkWhole(raw); err != nil {
			return nil, fmt.Errorf("%s: %w", f, err)
		}
	}
	v, err := Coerce(f, raw)
	if err != nil {
		return nil, err
	}
	switch n := v.(type) {
	case float64:
		if n < 0 {
			return nil, fmt.Errorf("%w: %s must be >= 0", ErrInvalidValue, f)
		}
	case int64:
		if n < 0 {
			return nil, fmt.Errorf("%w: %s must be >= 0", ErrInvalidValue, f)
		}
	}
	return v, nil
}

// ToFloat converts numbers and numeric strings to float64. Strings are
// parsed as decimals so "9.99" and "3" both yield their exact float value.
func ToFloat(raw interface{}) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return checkFinite(v)
	case float32:
		return checkFinite(float64(v))
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case json.Number:
		return ToFloat(string(v))
	case decimal.Decimal:
		return v.InexactFloat64(), nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidValue, v)
		}
		return d.InexactFloat64(), nil
	case []byte:
		return ToFloat(string(v))
	}
	return 0, fmt.Errorf("%w: cannot convert %T to a number", ErrInvalidValue, raw)
}

// ToInt converts numbers and integer strings to int64. Floats are truncated
// toward zero; strings must hold an integer literal.
func ToInt(raw interface{}) (int64, error) {
	switch v := raw.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case uint:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("%w: %d overflows int64", ErrInvalidValue, v)
		}
		return int64(v), nil
	case float64:
		if _, err := checkFinite(v); err != nil {
			return 0, err
		}
		if !inInt64Range(v) {
			return 0, fmt.Errorf("%w: %v overflows int64", ErrInvalidValue, v)
		}
		return int64(v), nil
	case float32:
		return ToInt(float64(v))
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, nil
		}
		f, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidValue, v.String())
		}
		return ToInt(f)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not an integer", ErrInvalidValue, v)
		}
		return n, nil
	case []byte:
		return ToInt(string(v))
	}
	return 0, fmt.Errorf("%w: cannot convert %T to an integer", ErrInvalidValue, raw)
}

func checkFinite(f float64) (float64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %v is not finite", ErrInvalidValue, f)
	}
	return f, nil
}

// checkWhole rejects numbers with a fractional part or outside the int64
// range. Stored values are truncated by ToInt instead; user input is not.
func checkWhole(raw interface{}) error {
	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case json.Number:
		if _, err := v.Int64(); err == nil {
			return nil
		}
		parsed, err := v.Float64()
		if err != nil {
			return fmt.Errorf("%w: %q is not a number", ErrInvalidValue, v.String())
		}
		f = parsed
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("%w: %v is not finite", ErrInvalidValue, f)
	}
	if f != math.Trunc(f) {
		return fmt.Errorf("%w: %v is not an integer", ErrInvalidValue, f)
	}
	if !inInt64Range(f) {
		return fmt.Errorf("%w: %v overflows int64", ErrInvalidValue, f)
	}
	return nil
}

// inInt64Range reports whether f converts to int64 without overflow. 2^63 is
// the first float64 above math.MaxInt64.
func inInt64Range(f float64) bool {
	return f >= math.MinInt64 && f < math.MaxInt64
}
