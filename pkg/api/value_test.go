package api

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestAsInt64_AcceptsEveryProducerShape(t *testing.T) {
	// The same logical orderId arrives as different machine types depending
	// on which producer wrote it. Every shape must land on the same int64.
	inputs := []any{
		int(42),
		int32(42),
		int64(42),
		int16(42),
		int8(42),
		uint(42),
		uint64(42),
		uint32(42),
		uint16(42),
		uint8(42),
		float64(42),
		json.Number("42"),
		"42",
		Int64Value(42),
	}
	for _, in := range inputs {
		got, err := AsInt64(in)
		if err != nil {
			t.Fatalf("AsInt64(%T %v) failed: %v", in, in, err)
		}
		if got != 42 {
			t.Fatalf("AsInt64(%T %v) = %d, want 42", in, in, got)
		}
	}
}

func TestAsInt64_UnsignedOverflow(t *testing.T) {
	for _, in := range []any{uint64(math.MaxInt64) + 1, uint64(math.MaxUint64)} {
		if _, err := AsInt64(in); !errors.Is(err, ErrTypeMismatch) {
			t.Fatalf("AsInt64(%v) = %v, want ErrTypeMismatch", in, err)
		}
	}
	got, err := AsInt64(uint64(math.MaxInt64))
	if err != nil || got != math.MaxInt64 {
		t.Fatalf("AsInt64(MaxInt64) = %d (%v), want MaxInt64", got, err)
	}
}

func TestAsDecimal_AcceptsUnsigned(t *testing.T) {
	want := decimal.NewFromInt(42)
	for _, in := range []any{uint(42), uint64(42), uint32(42), uint16(42), uint8(42), int16(42), int8(42)} {
		got, err := AsDecimal(in)
		if err != nil {
			t.Fatalf("AsDecimal(%T %v) failed: %v", in, in, err)
		}
		if !got.Equal(want) {
			t.Fatalf("AsDecimal(%T %v) = %s, want 42", in, in, got)
		}
	}

	// Values above MaxInt64 survive: decimals have no 64-bit ceiling.
	big, err := AsDecimal(uint64(math.MaxUint64))
	if err != nil {
		t.Fatalf("AsDecimal(MaxUint64) failed: %v", err)
	}
	if big.String() != "18446744073709551615" {
		t.Fatalf("AsDecimal(MaxUint64) = %s", big)
	}
}

func TestAsInt64_RejectsNonNumeric(t *testing.T) {
	if _, err := AsInt64(nil); !errors.Is(err, ErrMissingVariable) {
		t.Fatalf("AsInt64(nil) = %v, want ErrMissingVariable", err)
	}
	for _, in := range []any{"not-a-number", true, 42.5, struct{}{}} {
		if _, err := AsInt64(in); !errors.Is(err, ErrTypeMismatch) {
			t.Fatalf("AsInt64(%T %v) = %v, want ErrTypeMismatch", in, in, err)
		}
	}
}

func TestAsDecimal_FloatKeepsDecimalDigits(t *testing.T) {
	// 19.99 has no exact binary representation; the coercion must go
	// through the shortest decimal string, not the binary value.
	got, err := AsDecimal(19.99)
	if err != nil {
		t.Fatalf("AsDecimal(19.99) failed: %v", err)
	}
	want := decimal.RequireFromString("19.99")
	if !got.Equal(want) {
		t.Fatalf("AsDecimal(19.99) = %s, want %s", got, want)
	}

	fromString, err := AsDecimal("19.99")
	if err != nil {
		t.Fatalf("AsDecimal(\"19.99\") failed: %v", err)
	}
	if !fromString.Equal(want) {
		t.Fatalf("AsDecimal(\"19.99\") = %s, want %s", fromString, want)
	}
}

func TestValue_JSONRoundTripKeepsKind(t *testing.T) {
	bag := VariableBag{
		"orderId":     Int64Value(7),
		"totalAmount": DecimalValue(decimal.RequireFromString("49.98")),
		"userId":      StringValue("user1"),
		"validated":   BoolValue(true),
		"createdAt":   TimeValue(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
	}

	data, err := json.Marshal(bag)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var back VariableBag
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if got, _ := back.Int64("orderId"); got != 7 {
		t.Fatalf("orderId = %d, want 7", got)
	}
	total, err := back.Decimal("totalAmount")
	if err != nil || !total.Equal(decimal.RequireFromString("49.98")) {
		t.Fatalf("totalAmount = %v (%v), want 49.98", total, err)
	}
	if back["totalAmount"].Kind() != KindDecimal {
		t.Fatalf("totalAmount kind = %q, want %q", back["totalAmount"].Kind(), KindDecimal)
	}
	if got, _ := back.GetString("userId"); got != "user1" {
		t.Fatalf("userId = %q, want user1", got)
	}
	if got, _ := back.GetBool("validated"); !got {
		t.Fatal("validated = false, want true")
	}
}

func TestVariableBag_CloneIsIndependent(t *testing.T) {
	bag := VariableBag{"a": Int64Value(1)}
	clone := bag.Clone()
	clone["a"] = Int64Value(2)
	clone["b"] = StringValue("x")

	if got, _ := bag.Int64("a"); got != 1 {
		t.Fatalf("original mutated: a = %d", got)
	}
	if _, ok := bag["b"]; ok {
		t.Fatal("original gained key b")
	}
}

func TestVariableBag_MergeOverwrites(t *testing.T) {
	bag := VariableBag{"a": Int64Value(1), "b": StringValue("keep")}
	bag.Merge(VariableBag{"a": Int64Value(9), "c": BoolValue(true)})

	if got, _ := bag.Int64("a"); got != 9 {
		t.Fatalf("a = %d, want 9", got)
	}
	if got, _ := bag.GetString("b"); got != "keep" {
		t.Fatalf("b = %q, want keep", got)
	}
	if got, _ := bag.GetBool("c"); !got {
		t.Fatal("c missing after merge")
	}
}

func TestVariableBag_MissingAndMismatch(t *testing.T) {
	bag := VariableBag{"name": StringValue("bob")}

	if _, err := bag.Int64("absent"); !errors.Is(err, ErrMissingVariable) {
		t.Fatalf("absent = %v, want ErrMissingVariable", err)
	}
	if _, err := bag.Int64("name"); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("name as int = %v, want ErrTypeMismatch", err)
	}
	if _, err := bag.GetBool("name"); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("name as bool = %v, want ErrTypeMismatch", err)
	}
}
