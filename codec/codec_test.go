package codec_test

import (
	"testing"
	"time"

	fastwire "github.com/reoring/fastwire"
	"github.com/reoring/fastwire/codec"
)

func TestDecimalFloat64_Quantizes(t *testing.T) {
	c := codec.DecimalFloat64(-2)

	d, err := c.Encode(123.45)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if want := (fastwire.Decimal{Mantissa: 12345, Exponent: -2}); d != want {
		t.Fatalf("Encode(123.45) = %v, want %v", d, want)
	}

	// Sub-step values round to the nearest representable tick.
	d, err = c.Encode(0.004)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if d.Mantissa != 0 {
		t.Fatalf("Encode(0.004) mantissa = %d, want 0", d.Mantissa)
	}

	f, err := c.Decode(fastwire.Decimal{Mantissa: 12345, Exponent: -2})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if f != 123.45 {
		t.Fatalf("Decode = %v, want 123.45", f)
	}
}

func TestDecimalFloat64_RejectsUnrepresentable(t *testing.T) {
	c := codec.DecimalFloat64(-9)
	for _, v := range []float64{1e300, -1e300} {
		if _, err := c.Encode(v); !fastwire.HasCode(err, fastwire.CodeOverflow) {
			t.Fatalf("Encode(%v): err = %v, want %s", v, err, fastwire.CodeOverflow)
		}
	}
}

func TestTimestampMillis_RoundTrip(t *testing.T) {
	c := codec.TimestampMillis()

	at := time.Date(2026, 8, 30, 14, 30, 15, 250_000_000, time.UTC)
	w, err := c.Encode(at)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := c.Decode(w)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !got.Equal(at) {
		t.Fatalf("round trip = %v, want %v", got, at)
	}
	if got.Location() != time.UTC {
		t.Fatalf("decoded location = %v, want UTC", got.Location())
	}
}

func TestTimestampMillis_RejectsPreEpoch(t *testing.T) {
	c := codec.TimestampMillis()
	_, err := c.Encode(time.Date(1969, 1, 1, 0, 0, 0, 0, time.UTC))
	if !fastwire.HasCode(err, fastwire.CodeOverflow) {
		t.Fatalf("err = %v, want %s", err, fastwire.CodeOverflow)
	}
}
