package fastwire

import (
	"bytes"
	"math"
)

// Normalized value forms used by the state machine: uint64 for unsigned
// widths, int64 for signed widths, Decimal, []byte for every string kind.
// Message-facing values keep the declared Go type; normalize and
// materialize convert between the two at the codec boundary.

func normalize(f *Field, v any) (any, error) {
	switch f.Type {
	case TypeUInt32:
		if x, ok := v.(uint32); ok {
			return uint64(x), nil
		}
	case TypeInt32:
		if x, ok := v.(int32); ok {
			return int64(x), nil
		}
	case TypeUInt64:
		if x, ok := v.(uint64); ok {
			return x, nil
		}
	case TypeInt64:
		if x, ok := v.(int64); ok {
			return x, nil
		}
	case TypeDecimal:
		if x, ok := v.(Decimal); ok {
			return x, nil
		}
	case TypeASCIIString, TypeUnicodeString:
		if x, ok := v.(string); ok {
			return []byte(x), nil
		}
	case TypeByteVector:
		if x, ok := v.([]byte); ok {
			return x, nil
		}
	case TypeGroup:
		if x, ok := v.(*Message); ok && x != nil {
			return x, nil
		}
	case TypeSequence:
		if x, ok := v.([]*Message); ok {
			return x, nil
		}
	}
	return nil, issuef("", CodeInvalidType, -1, "value of type %T does not match declared type %s", v, f.Type)
}

// materialize converts a normalized value back to the message-facing type.
// Width checks happened before this point.
func materialize(f *Field, nv any) any {
	switch f.Type {
	case TypeUInt32:
		return uint32(nv.(uint64))
	case TypeInt32:
		return int32(nv.(int64))
	case TypeASCIIString, TypeUnicodeString:
		return string(nv.([]byte))
	case TypeByteVector:
		b := nv.([]byte)
		return append([]byte(nil), b...)
	default:
		return nv
	}
}

// retain copies a normalized value for storage in the state table so that
// neither caller-owned buffers nor the decode input alias live state.
func retain(nv any) any {
	if b, ok := nv.([]byte); ok {
		return append([]byte(nil), b...)
	}
	return nv
}

func normEqual(a, b any) bool {
	if ab, ok := a.([]byte); ok {
		bb, ok := b.([]byte)
		return ok && bytes.Equal(ab, bb)
	}
	return a == b
}

// commonPrefix returns the length of the longest common prefix of a and b.
func commonPrefix(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

// commonSuffix returns the length of the longest common suffix of a and b.
func commonSuffix(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[len(a)-1-i] == b[len(b)-1-i] {
		i++
	}
	return i
}

// subUint computes value-base as an int64 delta, rejecting magnitudes that
// do not fit the signed transfer form.
func subUint(value, base uint64) (int64, bool) {
	if value >= base {
		d := value - base
		if d > math.MaxInt64 {
			return 0, false
		}
		return int64(d), true
	}
	d := base - value
	if d > uint64(math.MaxInt64)+1 {
		return 0, false
	}
	if d == uint64(math.MaxInt64)+1 {
		return math.MinInt64, true
	}
	return -int64(d), true
}

// addUint applies a signed delta to an unsigned base.
func addUint(base uint64, delta int64) (uint64, bool) {
	if delta >= 0 {
		if base > math.MaxUint64-uint64(delta) {
			return 0, false
		}
		return base + uint64(delta), true
	}
	m := uint64(-(delta + 1)) + 1
	if m > base {
		return 0, false
	}
	return base - m, true
}

// subInt computes value-base with overflow detection.
func subInt(value, base int64) (int64, bool) {
	d := value - base
	if (base > 0 && d > value) || (base < 0 && d < value) {
		return 0, false
	}
	return d, true
}

// addInt applies a signed delta to a signed base with overflow detection.
func addInt(base, delta int64) (int64, bool) {
	v := base + delta
	if (delta > 0 && v < base) || (delta < 0 && v > base) {
		return 0, false
	}
	return v, true
}
