package fastwire

import (
	"fmt"
	"math"
	"strconv"
)

// Type enumerates the primitive field types of the transfer encoding.
type Type int

const (
	TypeUInt32 Type = iota + 1
	TypeInt32
	TypeUInt64
	TypeInt64
	TypeDecimal
	TypeASCIIString
	TypeUnicodeString
	TypeByteVector
	TypeGroup
	TypeSequence
)

func (t Type) String() string {
	switch t {
	case TypeUInt32:
		return "uint32"
	case TypeInt32:
		return "int32"
	case TypeUInt64:
		return "uint64"
	case TypeInt64:
		return "int64"
	case TypeDecimal:
		return "decimal"
	case TypeASCIIString:
		return "ascii"
	case TypeUnicodeString:
		return "unicode"
	case TypeByteVector:
		return "bytes"
	case TypeGroup:
		return "group"
	case TypeSequence:
		return "sequence"
	default:
		return "type(" + strconv.Itoa(int(t)) + ")"
	}
}

// isInteger reports whether t is one of the four integer widths.
func (t Type) isInteger() bool {
	switch t {
	case TypeUInt32, TypeInt32, TypeUInt64, TypeInt64:
		return true
	}
	return false
}

// isUnsigned reports whether t is an unsigned integer width.
func (t Type) isUnsigned() bool { return t == TypeUInt32 || t == TypeUInt64 }

// isBytes reports whether t travels as a length-prefixed byte string.
func (t Type) isBytes() bool {
	switch t {
	case TypeASCIIString, TypeUnicodeString, TypeByteVector:
		return true
	}
	return false
}

// isComposite reports whether t nests other fields.
func (t Type) isComposite() bool { return t == TypeGroup || t == TypeSequence }

// Operator enumerates the per-field compression rules.
type Operator int

const (
	OpNone Operator = iota
	OpConstant
	OpDefault
	OpCopy
	OpIncrement
	OpDelta
	OpTail
)

func (o Operator) String() string {
	switch o {
	case OpNone:
		return "none"
	case OpConstant:
		return "constant"
	case OpDefault:
		return "default"
	case OpCopy:
		return "copy"
	case OpIncrement:
		return "increment"
	case OpDelta:
		return "delta"
	case OpTail:
		return "tail"
	default:
		return "operator(" + strconv.Itoa(int(o)) + ")"
	}
}

// stateful reports whether the operator keeps a prior value across messages.
func (o Operator) stateful() bool {
	switch o {
	case OpCopy, OpIncrement, OpDelta, OpTail:
		return true
	}
	return false
}

// Scope is the schema-declared granularity at which a field's operator state
// persists or resets.
type Scope int

const (
	// ScopeTemplate keeps one persistent slot per (template, field), shared
	// across sequence entries of one message and across messages. This is
	// the default.
	ScopeTemplate Scope = iota
	// ScopeEntry resets the slot to undefined at the start of each sequence
	// entry (and, for fields outside any sequence, at the start of each
	// message).
	ScopeEntry
	// ScopeGlobal shares one slot per field name across all templates of a
	// registry.
	ScopeGlobal
)

func (s Scope) String() string {
	switch s {
	case ScopeTemplate:
		return "template"
	case ScopeEntry:
		return "entry"
	case ScopeGlobal:
		return "global"
	default:
		return "scope(" + strconv.Itoa(int(s)) + ")"
	}
}

// Decimal is an exact mantissa/exponent pair: the represented value is
// Mantissa * 10^Exponent.
type Decimal struct {
	Mantissa int64
	Exponent int32
}

// Float64 returns the approximate floating-point value of d.
func (d Decimal) Float64() float64 {
	return float64(d.Mantissa) * math.Pow(10, float64(d.Exponent))
}

func (d Decimal) String() string {
	return fmt.Sprintf("%de%d", d.Mantissa, d.Exponent)
}
