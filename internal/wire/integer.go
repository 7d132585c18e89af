// Package wire implements the stop-bit primitives of the FAST transfer
// encoding: variable-length integers, presence maps and length-prefixed
// byte strings. Each encoded item carries 7 payload bits per byte and the
// most significant bit of the final byte is set (the stop bit).
//
// The package is deliberately context-free: it knows nothing about
// templates, operators or per-stream state. Those live in the root package.
package wire

import (
	"errors"
	"math"
)

const stopBit = 0x80

var (
	// ErrTruncated reports that the buffer ended before a stop-bit byte.
	ErrTruncated = errors.New("wire: buffer exhausted before stop bit")
	// ErrOverflow reports that a decoded value does not fit the target width.
	ErrOverflow = errors.New("wire: stop-bit integer overflows target width")
	// ErrPresenceMap reports a presence map whose byte run never terminates.
	ErrPresenceMap = errors.New("wire: presence map missing stop bit")
)

// AppendUint appends the minimal stop-bit encoding of v to dst.
// Zero always encodes as the single byte 0x80.
func AppendUint(dst []byte, v uint64) []byte {
	var tmp [10]byte
	i := len(tmp) - 1
	tmp[i] = byte(v&0x7f) | stopBit
	v >>= 7
	for v != 0 {
		i--
		tmp[i] = byte(v & 0x7f)
		v >>= 7
	}
	return append(dst, tmp[i:]...)
}

// AppendInt appends the minimal stop-bit encoding of the signed value v.
// The encoding is two's complement over 7-bit groups; an extra leading
// 0x00 (or 0x7f) byte is emitted whenever the sign bit of the leading
// group would otherwise be misread as part of the magnitude.
func AppendInt(dst []byte, v int64) []byte {
	var tmp [10]byte
	i := len(tmp) - 1
	tmp[i] = byte(v&0x7f) | stopBit
	v >>= 7
	for {
		sign := tmp[i] & 0x40
		if (v == 0 && sign == 0) || (v == -1 && sign != 0) {
			break
		}
		i--
		tmp[i] = byte(v & 0x7f)
		v >>= 7
	}
	return append(dst, tmp[i:]...)
}

// ReadUint decodes a stop-bit unsigned integer from the front of b and
// returns the value and the number of bytes consumed. It fails with
// ErrTruncated when b ends before a stop bit and with ErrOverflow when the
// accumulated value exceeds 64 bits.
func ReadUint(b []byte) (uint64, int, error) {
	var v uint64
	for i := 0; i < len(b); i++ {
		if v>>(64-7) != 0 {
			return 0, 0, ErrOverflow
		}
		v = v<<7 | uint64(b[i]&0x7f)
		if b[i]&stopBit != 0 {
			return v, i + 1, nil
		}
	}
	return 0, 0, ErrTruncated
}

// ReadInt decodes a stop-bit signed integer from the front of b.
// The sign is taken from bit 6 of the leading byte and extended.
func ReadInt(b []byte) (int64, int, error) {
	if len(b) == 0 {
		return 0, 0, ErrTruncated
	}
	var v int64
	if b[0]&0x40 != 0 {
		v = -1
	}
	for i := 0; i < len(b); i++ {
		if v != (v<<7)>>7 {
			return 0, 0, ErrOverflow
		}
		v = v<<7 | int64(b[i]&0x7f)
		if b[i]&stopBit != 0 {
			return v, i + 1, nil
		}
	}
	return 0, 0, ErrTruncated
}

// Nullable forms. Optional fields transmit "absent" in-band: unsigned
// values shift up by one with 0 meaning absent; signed values shift their
// non-negative half up by one with 0 meaning absent.

// AppendUintNullable appends the nullable form of v, or the null byte when
// absent. Encoding math.MaxUint64 is rejected because the +1 shift would
// wrap.
func AppendUintNullable(dst []byte, v uint64, absent bool) ([]byte, error) {
	if absent {
		return AppendUint(dst, 0), nil
	}
	if v == math.MaxUint64 {
		return dst, ErrOverflow
	}
	return AppendUint(dst, v+1), nil
}

// ReadUintNullable decodes a nullable unsigned integer. present is false
// when the wire value was the null marker.
func ReadUintNullable(b []byte) (v uint64, present bool, n int, err error) {
	w, n, err := ReadUint(b)
	if err != nil {
		return 0, false, 0, err
	}
	if w == 0 {
		return 0, false, n, nil
	}
	return w - 1, true, n, nil
}

// AppendIntNullable appends the nullable form of the signed value v.
func AppendIntNullable(dst []byte, v int64, absent bool) ([]byte, error) {
	if absent {
		return AppendInt(dst, 0), nil
	}
	if v >= 0 {
		if v == math.MaxInt64 {
			return dst, ErrOverflow
		}
		return AppendInt(dst, v+1), nil
	}
	return AppendInt(dst, v), nil
}

// ReadIntNullable decodes a nullable signed integer.
func ReadIntNullable(b []byte) (v int64, present bool, n int, err error) {
	w, n, err := ReadInt(b)
	if err != nil {
		return 0, false, 0, err
	}
	switch {
	case w == 0:
		return 0, false, n, nil
	case w > 0:
		return w - 1, true, n, nil
	default:
		return w, true, n, nil
	}
}

// FitsUint32 reports whether v is representable as a uint32.
func FitsUint32(v uint64) bool { return v <= math.MaxUint32 }

// FitsInt32 reports whether v is representable as an int32.
func FitsInt32(v int64) bool { return v >= math.MinInt32 && v <= math.MaxInt32 }
