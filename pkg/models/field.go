// Package models contains the invoice domain models shared across factura.
package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

// PlaceholderToken is the wire sentinel the model emits for fields it could
// not resolve. It only exists at the serialization boundary: decoding maps it
// to the unresolved state and encoding maps the unresolved state back to it.
const PlaceholderToken = "PLACEHOLDER"

// Value is a tri-state scalar field on a pending line item: resolved with raw
// text, or unresolved. Empty strings, JSON null and the placeholder token all
// decode to unresolved.
type Value struct {
	raw      string
	resolved bool
}

// NewValue returns a resolved Value holding raw. Whitespace-only input and
// the placeholder token yield an unresolved Value.
func NewValue(raw string) Value {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == PlaceholderToken {
		return Value{}
	}
	return Value{raw: trimmed, resolved: true}
}

// NumberValue returns a resolved Value holding the shortest decimal
// representation of v.
func NumberValue(v float64) Value {
	return Value{raw: strconv.FormatFloat(v, 'f', -1, 64), resolved: true}
}

// IntValue returns a resolved Value holding the decimal representation of v.
func IntValue(v int) Value {
	return Value{raw: strconv.Itoa(v), resolved: true}
}

// Unresolved returns the unresolved Value.
func Unresolved() Value {
	return Value{}
}

// IsResolved reports whether the field carries a value.
func (v Value) IsResolved() bool {
	return v.resolved
}

// Raw returns the raw text, empty when unresolved.
func (v Value) Raw() string {
	return v.raw
}

// String returns the raw text, or the placeholder token when unresolved.
// This is the form shown in prompts and previews.
func (v Value) String() string {
	if !v.resolved {
		return PlaceholderToken
	}
	return v.raw
}

// Int coerces the value to an integer, tolerating integer-valued decimals
// such as "5.0".
func (v Value) Int() (int, error) {
	if !v.resolved {
		return 0, fmt.Errorf("value unresolved")
	}
	if n, err := strconv.Atoi(v.raw); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(v.raw, 64)
	if err != nil {
		return 0, fmt.Errorf("not an integer: %q", v.raw)
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("not an integer: %q", v.raw)
	}
	return int(f), nil
}

// Float coerces the value to a decimal number.
func (v Value) Float() (float64, error) {
	if !v.resolved {
		return 0, fmt.Errorf("value unresolved")
	}
	f, err := strconv.ParseFloat(v.raw, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", v.raw)
	}
	return f, nil
}

// Equal reports whether two values carry the same content. Resolved numeric
// values compare numerically so "50" and "50.0" are equal; everything else
// compares as trimmed text. Two unresolved values are equal.
func (v Value) Equal(other Value) bool {
	if v.resolved != other.resolved {
		return false
	}
	if !v.resolved {
		return true
	}
	if a, errA := v.Float(); errA == nil {
		if b, errB := other.Float(); errB == nil {
			return a == b
		}
	}
	return strings.EqualFold(strings.TrimSpace(v.raw), strings.TrimSpace(other.raw))
}

// MarshalJSON encodes resolved numeric values as JSON numbers, other resolved
// values as strings, and the unresolved state as the placeholder token.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.resolved {
		return json.Marshal(PlaceholderToken)
	}
	// ParseFloat also accepts NaN, infinities and hex floats, none of which
	// are JSON numbers; those stay quoted.
	if _, err := strconv.ParseFloat(v.raw, 64); err == nil && json.Valid([]byte(v.raw)) {
		return []byte(v.raw), nil
	}
	return json.Marshal(v.raw)
}

// UnmarshalJSON accepts strings, numbers and null.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case nil:
		*v = Value{}
	case string:
		*v = NewValue(t)
	case float64:
		*v = NumberValue(t)
	case bool:
		*v = NewValue(strconv.FormatBool(t))
	default:
		return fmt.Errorf("unsupported field type %T", raw)
	}
	return nil
}

// Amount is a monetary aggregate that is either a resolved decimal or the
// unresolved sentinel. Totals are never partially numeric: one unresolved
// line item field poisons every aggregate of the draft.
type Amount struct {
	value float64
	known bool
}

// KnownAmount returns a resolved Amount.
func KnownAmount(v float64) Amount {
	return Amount{value: v, known: true}
}

// UnknownAmount returns the unresolved Amount.
func UnknownAmount() Amount {
	return Amount{}
}

// Known reports whether the amount is resolved.
func (a Amount) Known() bool {
	return a.known
}

// Float returns the resolved value, zero when unknown.
func (a Amount) Float() float64 {
	return a.value
}

// String renders the amount for previews.
func (a Amount) String() string {
	if !a.known {
		return PlaceholderToken
	}
	return strconv.FormatFloat(a.value, 'f', 2, 64)
}

// MarshalJSON encodes a resolved amount as a JSON number and an unresolved
// one as the placeholder token.
func (a Amount) MarshalJSON() ([]byte, error) {
	if !a.known {
		return json.Marshal(PlaceholderToken)
	}
	return json.Marshal(a.value)
}

// UnmarshalJSON accepts numbers, numeric strings, the placeholder token and
// null.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case nil:
		*a = Amount{}
	case float64:
		*a = KnownAmount(t)
	case string:
		trimmed := strings.TrimSpace(t)
		if trimmed == "" || trimmed == PlaceholderToken {
			*a = Amount{}
			return nil
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return fmt.Errorf("invalid amount %q", t)
		}
		*a = KnownAmount(f)
	default:
		return fmt.Errorf("unsupported amount type %T", raw)
	}
	return nil
}
