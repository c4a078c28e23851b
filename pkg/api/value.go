package api

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Kind identifies the declared type of a process variable.
type Kind string

const (
	KindInt64   Kind = "integer"
	KindDecimal Kind = "decimal"
	KindString  Kind = "string"
	KindBool    Kind = "boolean"
	KindTime    Kind = "timestamp"
)

// Value is a tagged scalar: exactly one of the payload fields is set,
// according to Kind. Variables cross process boundaries as JSON envelopes
// ({"type": ..., "value": ...}) so consumers never have to guess whether a
// number arrived as an int, a float, or a string.
type Value struct {
	kind Kind
	i    int64
	d    decimal.Decimal
	s    string
	b    bool
	t    time.Time
}

func Int64Value(v int64) Value           { return Value{kind: KindInt64, i: v} }
func DecimalValue(v decimal.Decimal) Value { return Value{kind: KindDecimal, d: v} }
func StringValue(v string) Value         { return Value{kind: KindString, s: v} }
func BoolValue(v bool) Value             { return Value{kind: KindBool, b: v} }
func TimeValue(v time.Time) Value        { return Value{kind: KindTime, t: v} }

// Kind returns the declared type of the value.
func (v Value) Kind() Kind { return v.kind }

// IsZero reports whether the value was never set.
func (v Value) IsZero() bool { return v.kind == "" }

// Raw returns the underlying Go value. Callers that need a specific type
// should go through AsInt64 / AsDecimal instead of type-asserting the result.
func (v Value) Raw() any {
	switch v.kind {
	case KindInt64:
		return v.i
	case KindDecimal:
		return v.d
	case KindString:
		return v.s
	case KindBool:
		return v.b
	case KindTime:
		return v.t
	default:
		return nil
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindInt64:
		return strconv.FormatInt(v.i, 10)
	case KindDecimal:
		return v.d.String()
	case KindString:
		return v.s
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindTime:
		return v.t.Format(time.RFC3339Nano)
	default:
		return "<unset>"
	}
}

type valueEnvelope struct {
	Type  Kind            `json:"type"`
	Value json.RawMessage `json:"value"`
}

// MarshalJSON encodes the value as a typed envelope. Decimals and timestamps
// are encoded as strings so no reader can reintroduce binary-float drift.
func (v Value) MarshalJSON() ([]byte, error) {
	var payload any
	switch v.kind {
	case KindInt64:
		payload = v.i
	case KindDecimal:
		payload = v.d.String()
	case KindString:
		payload = v.s
	case KindBool:
		payload = v.b
	case KindTime:
		payload = v.t.Format(time.RFC3339Nano)
	default:
		return nil, fmt.Errorf("cannot marshal unset value")
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(valueEnvelope{Type: v.kind, Value: raw})
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var env valueEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	switch env.Type {
	case KindInt64:
		var i int64
		if err := json.Unmarshal(env.Value, &i); err != nil {
			return err
		}
		*v = Int64Value(i)
	case KindDecimal:
		var s string
		if err := json.Unmarshal(env.Value, &s); err != nil {
			return err
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return err
		}
		*v = DecimalValue(d)
	case KindString:
		var s string
		if err := json.Unmarshal(env.Value, &s); err != nil {
			return err
		}
		*v = StringValue(s)
	case KindBool:
		var b bool
		if err := json.Unmarshal(env.Value, &b); err != nil {
			return err
		}
		*v = BoolValue(b)
	case KindTime:
		var s string
		if err := json.Unmarshal(env.Value, &s); err != nil {
			return err
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return err
		}
		*v = TimeValue(t)
	default:
		return fmt.Errorf("unknown value type %q", env.Type)
	}
	return nil
}

// VariableBag is the per-instance key/value store passed between steps.
type VariableBag map[string]Value

// Clone returns an independent copy of the bag.
func (b VariableBag) Clone() VariableBag {
	out := make(VariableBag, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Merge writes every entry of other into the bag, overwriting existing keys.
func (b VariableBag) Merge(other VariableBag) {
	for k, v := range other {
		b[k] = v
	}
}

// Int64 coerces the named variable to int64.
func (b VariableBag) Int64(name string) (int64, error) {
	v, ok := b[name]
	if !ok || v.IsZero() {
		return 0, fmt.Errorf("variable %q: %w", name, ErrMissingVariable)
	}
	n, err := AsInt64(v)
	if err != nil {
		return 0, fmt.Errorf("variable %q: %w", name, err)
	}
	return n, nil
}

// Decimal coerces the named variable to a decimal.
func (b VariableBag) Decimal(name string) (decimal.Decimal, error) {
	v, ok := b[name]
	if !ok || v.IsZero() {
		return decimal.Decimal{}, fmt.Errorf("variable %q: %w", name, ErrMissingVariable)
	}
	d, err := AsDecimal(v)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("variable %q: %w", name, err)
	}
	return d, nil
}

// GetString returns the named variable as a string.
func (b VariableBag) GetString(name string) (string, error) {
	v, ok := b[name]
	if !ok || v.IsZero() {
		return "", fmt.Errorf("variable %q: %w", name, ErrMissingVariable)
	}
	if v.kind != KindString {
		return "", fmt.Errorf("variable %q: want string, have %s: %w", name, v.kind, ErrTypeMismatch)
	}
	return v.s, nil
}

// GetBool returns the named variable as a bool.
func (b VariableBag) GetBool(name string) (bool, error) {
	v, ok := b[name]
	if !ok || v.IsZero() {
		return false, fmt.Errorf("variable %q: %w", name, ErrMissingVariable)
	}
	if v.kind != KindBool {
		return false, fmt.Errorf("variable %q: want boolean, have %s: %w", name, v.kind, ErrTypeMismatch)
	}
	return v.b, nil
}

// AsInt64 coerces a raw value to int64. Producers hand us integers of any
// machine width, floats, json.Numbers, or numeric strings depending on where
// the value crossed a process boundary; this is the single place that
// normalizes them. nil reports ErrMissingVariable; anything non-numeric
// (or a fractional float) reports ErrTypeMismatch.
func AsInt64(raw any) (int64, error) {
	switch v := raw.(type) {
	case nil:
		return 0, ErrMissingVariable
	case Value:
		switch v.kind {
		case KindInt64:
			return v.i, nil
		case KindDecimal:
			if !v.d.IsInteger() {
				return 0, fmt.Errorf("decimal %s is not integral: %w", v.d, ErrTypeMismatch)
			}
			return v.d.IntPart(), nil
		case KindString:
			return parseInt64(v.s)
		default:
			return 0, fmt.Errorf("cannot coerce %s to integer: %w", v.kind, ErrTypeMismatch)
		}
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("unsigned %d overflows int64: %w", v, ErrTypeMismatch)
		}
		return int64(v), nil
	case uint:
		return AsInt64(uint64(v))
	case uint32:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case float64:
		if v != float64(int64(v)) {
			return 0, fmt.Errorf("float %v is not integral: %w", v, ErrTypeMismatch)
		}
		return int64(v), nil
	case float32:
		return AsInt64(float64(v))
	case json.Number:
		return parseInt64(v.String())
	case string:
		return parseInt64(v)
	default:
		return 0, fmt.Errorf("cannot coerce %T to integer: %w", raw, ErrTypeMismatch)
	}
}

// AsDecimal coerces a raw value to a decimal. Floats are converted through
// their shortest decimal string representation, never through the binary
// value, so 19.99 stays 19.99.
func AsDecimal(raw any) (decimal.Decimal, error) {
	switch v := raw.(type) {
	case nil:
		return decimal.Decimal{}, ErrMissingVariable
	case Value:
		switch v.kind {
		case KindDecimal:
			return v.d, nil
		case KindInt64:
			return decimal.NewFromInt(v.i), nil
		case KindString:
			return parseDecimal(v.s)
		default:
			return decimal.Decimal{}, fmt.Errorf("cannot coerce %s to decimal: %w", v.kind, ErrTypeMismatch)
		}
	case decimal.Decimal:
		return v, nil
	case int64:
		return decimal.NewFromInt(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int32:
		return decimal.NewFromInt(int64(v)), nil
	case int16:
		return decimal.NewFromInt(int64(v)), nil
	case int8:
		return decimal.NewFromInt(int64(v)), nil
	case uint64:
		return decimal.NewFromUint64(v), nil
	case uint:
		return decimal.NewFromUint64(uint64(v)), nil
	case uint32:
		return decimal.NewFromUint64(uint64(v)), nil
	case uint16:
		return decimal.NewFromUint64(uint64(v)), nil
	case uint8:
		return decimal.NewFromUint64(uint64(v)), nil
	case float64:
		return parseDecimal(strconv.FormatFloat(v, 'f', -1, 64))
	case float32:
		return parseDecimal(strconv.FormatFloat(float64(v), 'f', -1, 32))
	case json.Number:
		return parseDecimal(v.String())
	case string:
		return parseDecimal(v)
	default:
		return decimal.Decimal{}, fmt.Errorf("cannot coerce %T to decimal: %w", raw, ErrTypeMismatch)
	}
}

func parseInt64(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not an integer: %w", s, ErrTypeMismatch)
	}
	return n, nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%q is not a number: %w", s, ErrTypeMismatch)
	}
	return d, nil
}
