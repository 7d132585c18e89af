package fastwire

import (
	"bytes"
	"math"
	"strconv"

	"github.com/reoring/fastwire/internal/wire"
)

// Encode serializes m against the context's registry and commits the
// operator state mutations only when the whole message succeeds. On error
// the context is left exactly as it was.
func Encode(c *Context, m *Message) ([]byte, error) {
	return AppendEncode(c, nil, m)
}

// AppendEncode is Encode appending to dst.
func AppendEncode(c *Context, dst []byte, m *Message) ([]byte, error) {
	if m == nil {
		return dst, Issues{IssueAt("/", CodeInvalidType, "nil message")}
	}
	prog, ok := c.reg.program(m.tid)
	if !ok {
		return dst, issuef("/", CodeSchemaMismatch, -1, "no template registered for id %d", m.tid)
	}

	e := &encoder{st: c.begin()}

	// The template id rides the front of the message presence map with Copy
	// semantics on the reserved slot: repeat messages omit it.
	var bits wire.PmapBuilder
	var body []byte
	prior := e.st[tidSlot]
	if prior.state == stateAssigned && prior.val.(uint64) == uint64(m.tid) {
		bits.Append(false)
	} else {
		bits.Append(true)
		body = wire.AppendUint(body, uint64(m.tid))
		e.st[tidSlot] = slotEntry{state: stateAssigned, val: uint64(m.tid)}
	}

	body, err := e.fields(&prog.root, m, "", &bits, body)
	if err != nil {
		return dst, err
	}
	out := bits.AppendTo(dst)
	out = append(out, body...)
	c.commit()
	return out, nil
}

type encoder struct {
	st []slotEntry
}

// fields encodes one presence-map segment: the message top level, a group
// body, or one sequence entry. Presence bits accumulate in bits while the
// raw bytes accumulate in body; the caller serializes the map ahead of the
// body.
func (e *encoder) fields(seg *segment, m *Message, base string, bits *wire.PmapBuilder, body []byte) ([]byte, error) {
	for _, s := range seg.resets {
		e.st[s] = slotEntry{}
	}
	var err error
	for i := range seg.instrs {
		body, err = e.field(&seg.instrs[i], m, base, bits, body)
		if err != nil {
			return nil, err
		}
	}
	return body, nil
}

func (e *encoder) field(in *instr, m *Message, base string, bits *wire.PmapBuilder, body []byte) ([]byte, error) {
	f := &in.field
	p := base + "/" + f.Name

	raw, present := m.Value(f.ID)
	var nv any
	if present {
		var err error
		nv, err = normalize(f, raw)
		if err != nil {
			return nil, issuef(p, CodeInvalidType, -1, "value of type %T does not match declared type %s", raw, f.Type)
		}
	}
	if !present && !f.Optional && f.Op != OpConstant {
		return nil, issuef(p, CodeAbsentMandatory, -1, "mandatory field carries no value")
	}

	switch f.Type {
	case TypeGroup:
		return e.group(in, nv, present, p, bits, body)
	case TypeSequence:
		return e.sequence(in, nv, present, p, body)
	}

	switch f.Op {
	case OpNone:
		return e.raw(f, nv, present, p, body)

	case OpConstant:
		cv, _ := normalize(f, f.Initial)
		if present && !normEqual(nv, cv) {
			return nil, issuef(p, CodeInvalidType, -1, "value differs from schema constant")
		}
		if f.Optional {
			bits.Append(present)
		}
		return body, nil

	case OpDefault:
		dv, _ := normalize(f, f.Initial)
		if present && normEqual(nv, dv) {
			bits.Append(false)
			return body, nil
		}
		bits.Append(true)
		return e.raw(f, nv, present, p, body)

	case OpCopy:
		prior := e.st[in.slot]
		if present {
			if prior.state == stateAssigned && normEqual(prior.val, nv) {
				bits.Append(false)
				return body, nil
			}
			bits.Append(true)
			e.st[in.slot] = slotEntry{state: stateAssigned, val: retain(nv)}
			return e.raw(f, nv, true, p, body)
		}
		if prior.state == stateAssigned {
			bits.Append(true)
			e.st[in.slot] = slotEntry{state: stateEmpty}
			return e.raw(f, nil, false, p, body)
		}
		// Undefined and empty both decode to absent on a zero bit.
		bits.Append(false)
		return body, nil

	case OpIncrement:
		prior := e.st[in.slot]
		if present {
			if prior.state == stateAssigned {
				if next, ok := incr(f.Type, prior.val); ok && normEqual(next, nv) {
					bits.Append(false)
					e.st[in.slot] = slotEntry{state: stateAssigned, val: nv}
					return body, nil
				}
			}
			bits.Append(true)
			e.st[in.slot] = slotEntry{state: stateAssigned, val: nv}
			return e.raw(f, nv, true, p, body)
		}
		if prior.state == stateAssigned {
			bits.Append(true)
			e.st[in.slot] = slotEntry{state: stateEmpty}
			return e.raw(f, nil, false, p, body)
		}
		bits.Append(false)
		return body, nil

	case OpDelta:
		return e.delta(in, nv, present, p, bits, body)

	case OpTail:
		return e.tail(in, nv, present, p, bits, body)
	}
	return body, nil
}

func (e *encoder) group(in *instr, nv any, present bool, p string, bits *wire.PmapBuilder, body []byte) ([]byte, error) {
	if in.field.Optional {
		bits.Append(present)
	}
	if !present {
		return body, nil
	}
	return e.composite(in, nv.(*Message), p, body)
}

func (e *encoder) sequence(in *instr, nv any, present bool, p string, body []byte) ([]byte, error) {
	var entries []*Message
	if present {
		entries = nv.([]*Message)
	}
	if in.field.Optional {
		var err error
		body, err = wire.AppendUintNullable(body, uint64(len(entries)), !present)
		if err != nil {
			return nil, issuef(p, CodeOverflow, -1, "sequence length not representable")
		}
	} else {
		body = wire.AppendUint(body, uint64(len(entries)))
	}
	if !present {
		return body, nil
	}
	for i, ent := range entries {
		ep := p + "/" + strconv.Itoa(i)
		if ent == nil {
			return nil, issuef(ep, CodeInvalidType, -1, "nil sequence entry")
		}
		var err error
		body, err = e.composite(in, ent, ep, body)
		if err != nil {
			return nil, err
		}
	}
	return body, nil
}

// composite encodes a group body or one sequence entry: a nested presence
// map when the inner segment declares presence-bearing fields, then the
// inner field bytes.
func (e *encoder) composite(in *instr, m *Message, p string, body []byte) ([]byte, error) {
	var sub wire.PmapBuilder
	inner, err := e.fields(in.inner, m, p, &sub, nil)
	if err != nil {
		return nil, err
	}
	if in.inner.bits {
		body = sub.AppendTo(body)
	}
	return append(body, inner...), nil
}

func (e *encoder) delta(in *instr, nv any, present bool, p string, bits *wire.PmapBuilder, body []byte) ([]byte, error) {
	f := &in.field
	if f.Optional {
		bits.Append(present)
	}
	if !present {
		// Absent optional delta transmits nothing and leaves state alone.
		return body, nil
	}
	prior := e.st[in.slot]
	switch {
	case f.Type.isUnsigned():
		var bv uint64
		if prior.state == stateAssigned {
			bv = prior.val.(uint64)
		}
		d, ok := subUint(nv.(uint64), bv)
		if !ok {
			return nil, issuef(p, CodeOverflow, -1, "delta magnitude not representable")
		}
		body = wire.AppendInt(body, d)
	case f.Type.isInteger():
		var bv int64
		if prior.state == stateAssigned {
			bv = prior.val.(int64)
		}
		d, ok := subInt(nv.(int64), bv)
		if !ok {
			return nil, issuef(p, CodeOverflow, -1, "delta magnitude not representable")
		}
		body = wire.AppendInt(body, d)
	case f.Type == TypeDecimal:
		var bd Decimal
		if prior.state == stateAssigned {
			bd = prior.val.(Decimal)
		}
		dv := nv.(Decimal)
		dm, ok := subInt(dv.Mantissa, bd.Mantissa)
		if !ok {
			return nil, issuef(p, CodeOverflow, -1, "mantissa delta not representable")
		}
		body = wire.AppendInt(body, int64(dv.Exponent)-int64(bd.Exponent))
		body = wire.AppendInt(body, dm)
	default: // byte strings
		var bb []byte
		if prior.state == stateAssigned {
			bb = prior.val.([]byte)
		}
		vb := nv.([]byte)
		pfx, sfx := commonPrefix(bb, vb), commonSuffix(bb, vb)
		if pfx >= sfx {
			body = wire.AppendInt(body, int64(len(bb)-pfx))
			body = wire.AppendBytes(body, vb[pfx:])
		} else {
			body = wire.AppendInt(body, -int64(len(bb)-sfx)-1)
			body = wire.AppendBytes(body, vb[:len(vb)-sfx])
		}
	}
	e.st[in.slot] = slotEntry{state: stateAssigned, val: retain(nv)}
	return body, nil
}

func (e *encoder) tail(in *instr, nv any, present bool, p string, bits *wire.PmapBuilder, body []byte) ([]byte, error) {
	f := &in.field
	prior := e.st[in.slot]
	if present {
		vb := nv.([]byte)
		if prior.state == stateAssigned && bytes.Equal(prior.val.([]byte), vb) {
			bits.Append(false)
			return body, nil
		}
		bits.Append(true)
		var bb []byte
		if prior.state == stateAssigned {
			bb = prior.val.([]byte)
		}
		pfx := commonPrefix(bb, vb)
		if f.Optional {
			body, _ = wire.AppendUintNullable(body, uint64(pfx), false)
		} else {
			body = wire.AppendUint(body, uint64(pfx))
		}
		body = wire.AppendBytes(body, vb[pfx:])
		e.st[in.slot] = slotEntry{state: stateAssigned, val: retain(vb)}
		return body, nil
	}
	if prior.state == stateAssigned {
		bits.Append(true)
		body, _ = wire.AppendUintNullable(body, 0, true)
		e.st[in.slot] = slotEntry{state: stateEmpty}
		return body, nil
	}
	bits.Append(false)
	return body, nil
}

// raw transmits a value in its plain wire form, nullable when the field is
// optional.
func (e *encoder) raw(f *Field, nv any, present bool, p string, body []byte) ([]byte, error) {
	if f.Optional {
		switch {
		case f.Type.isUnsigned():
			var v uint64
			if present {
				v = nv.(uint64)
			}
			b, err := wire.AppendUintNullable(body, v, !present)
			if err != nil {
				return nil, issuef(p, CodeOverflow, -1, "value not representable in nullable form")
			}
			return b, nil
		case f.Type.isInteger():
			var v int64
			if present {
				v = nv.(int64)
			}
			b, err := wire.AppendIntNullable(body, v, !present)
			if err != nil {
				return nil, issuef(p, CodeOverflow, -1, "value not representable in nullable form")
			}
			return b, nil
		case f.Type == TypeDecimal:
			var d Decimal
			if present {
				d = nv.(Decimal)
			}
			b, _ := wire.AppendIntNullable(body, int64(d.Exponent), !present)
			if !present {
				return b, nil
			}
			return wire.AppendInt(b, d.Mantissa), nil
		default:
			var v []byte
			if present {
				v = nv.([]byte)
			}
			b, _ := wire.AppendBytesNullable(body, v, !present)
			return b, nil
		}
	}
	switch {
	case f.Type.isUnsigned():
		return wire.AppendUint(body, nv.(uint64)), nil
	case f.Type.isInteger():
		return wire.AppendInt(body, nv.(int64)), nil
	case f.Type == TypeDecimal:
		d := nv.(Decimal)
		body = wire.AppendInt(body, int64(d.Exponent))
		return wire.AppendInt(body, d.Mantissa), nil
	default:
		return wire.AppendBytes(body, nv.([]byte)), nil
	}
}

// incr returns prior+1 in the width of t, reporting failure when the
// successor leaves the representable range.
func incr(t Type, prior any) (any, bool) {
	switch t {
	case TypeUInt32:
		v := prior.(uint64)
		if v >= math.MaxUint32 {
			return nil, false
		}
		return v + 1, true
	case TypeUInt64:
		v := prior.(uint64)
		if v == math.MaxUint64 {
			return nil, false
		}
		return v + 1, true
	case TypeInt32:
		v := prior.(int64)
		if v >= math.MaxInt32 {
			return nil, false
		}
		return v + 1, true
	case TypeInt64:
		v := prior.(int64)
		if v == math.MaxInt64 {
			return nil, false
		}
		return v + 1, true
	}
	return nil, false
}
