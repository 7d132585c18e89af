package fastwire

import (
	"errors"
	"strconv"

	"github.com/reoring/fastwire/internal/wire"
)

// DecodeOpt bounds resource use while decoding untrusted input. Zero
// values mean unlimited.
type DecodeOpt struct {
	MaxSequenceLen int // largest accepted declared sequence length
	MaxFieldBytes  int // largest accepted string/byte-vector length
}

// Decode parses exactly one message from data against the context's
// registry. The buffer must be pre-delimited by the caller's framing
// layer. On any failure the context is left byte-for-byte as it was; state
// commits only after the whole message decodes.
func Decode(c *Context, data []byte) (*Message, error) {
	return DecodeWith(c, data, DecodeOpt{})
}

// DecodeWith is Decode with explicit resource bounds.
func DecodeWith(c *Context, data []byte, opt DecodeOpt) (*Message, error) {
	d := &decoder{st: c.begin(), data: data, opt: opt}

	pm, err := d.pmap("/")
	if err != nil {
		return nil, err
	}

	// Template id: Copy semantics on the reserved slot, presence bit 0.
	var tid uint64
	if pm.IsSet(0) {
		tid, err = d.readUint("/")
		if err != nil {
			return nil, err
		}
		if !wire.FitsUint32(tid) {
			return nil, issuef("/", CodeMalformedInteger, int64(d.pos), "template id overflows uint32")
		}
		d.st[tidSlot] = slotEntry{state: stateAssigned, val: tid}
	} else {
		prior := d.st[tidSlot]
		if prior.state != stateAssigned {
			return nil, issuef("/", CodeOperatorState, int64(d.pos), "template id omitted with no prior value on this stream")
		}
		tid = prior.val.(uint64)
	}

	prog, ok := c.reg.program(uint32(tid))
	if !ok {
		return nil, issuef("/", CodeSchemaMismatch, int64(d.pos), "no template registered for id %d", tid)
	}

	m := NewMessage(uint32(tid))
	bit := 1 // bit 0 was the template id
	if err := d.fields(&prog.root, pm, &bit, m, ""); err != nil {
		return nil, err
	}
	if d.pos != len(data) {
		return nil, issuef("/", CodeTrailingBytes, int64(d.pos), "%d trailing bytes after message", len(data)-d.pos)
	}
	c.commit()
	return m, nil
}

type decoder struct {
	st   []slotEntry
	data []byte
	pos  int
	opt  DecodeOpt
}

func (d *decoder) fields(seg *segment, pm wire.Pmap, bit *int, m *Message, base string) error {
	for _, s := range seg.resets {
		d.st[s] = slotEntry{}
	}
	for i := range seg.instrs {
		if err := d.field(&seg.instrs[i], pm, bit, m, base); err != nil {
			return err
		}
	}
	return nil
}

func (d *decoder) field(in *instr, pm wire.Pmap, bit *int, m *Message, base string) error {
	f := &in.field
	p := base + "/" + f.Name

	switch f.Type {
	case TypeGroup:
		present := true
		if f.Optional {
			present = pm.IsSet(*bit)
			*bit++
		}
		if !present {
			return nil
		}
		gm := NewEntry()
		if err := d.composite(in, gm, p); err != nil {
			return err
		}
		m.Set(f.ID, gm)
		return nil

	case TypeSequence:
		return d.sequence(in, m, p)
	}

	switch f.Op {
	case OpNone:
		nv, present, err := d.raw(f, p)
		if err != nil {
			return err
		}
		if present {
			m.Set(f.ID, materialize(f, nv))
		}
		return nil

	case OpConstant:
		cv, _ := normalize(f, f.Initial)
		if f.Optional {
			present := pm.IsSet(*bit)
			*bit++
			if !present {
				return nil
			}
		}
		m.Set(f.ID, materialize(f, cv))
		return nil

	case OpDefault:
		set := pm.IsSet(*bit)
		*bit++
		if !set {
			dv, _ := normalize(f, f.Initial)
			m.Set(f.ID, materialize(f, dv))
			return nil
		}
		nv, present, err := d.raw(f, p)
		if err != nil {
			return err
		}
		if present {
			m.Set(f.ID, materialize(f, nv))
		}
		return nil

	case OpCopy:
		set := pm.IsSet(*bit)
		*bit++
		if set {
			nv, present, err := d.raw(f, p)
			if err != nil {
				return err
			}
			if present {
				d.st[in.slot] = slotEntry{state: stateAssigned, val: retain(nv)}
				m.Set(f.ID, materialize(f, nv))
			} else {
				d.st[in.slot] = slotEntry{state: stateEmpty}
			}
			return nil
		}
		prior := d.st[in.slot]
		if prior.state == stateAssigned {
			m.Set(f.ID, materialize(f, prior.val))
			return nil
		}
		if !f.Optional {
			return issuef(p, CodeOperatorState, int64(d.pos), "no prior value for mandatory copy field")
		}
		return nil

	case OpIncrement:
		set := pm.IsSet(*bit)
		*bit++
		if set {
			nv, present, err := d.raw(f, p)
			if err != nil {
				return err
			}
			if present {
				d.st[in.slot] = slotEntry{state: stateAssigned, val: retain(nv)}
				m.Set(f.ID, materialize(f, nv))
			} else {
				d.st[in.slot] = slotEntry{state: stateEmpty}
			}
			return nil
		}
		prior := d.st[in.slot]
		if prior.state == stateAssigned {
			next, ok := incr(f.Type, prior.val)
			if !ok {
				return issuef(p, CodeOverflow, int64(d.pos), "increment leaves the representable range")
			}
			d.st[in.slot] = slotEntry{state: stateAssigned, val: next}
			m.Set(f.ID, materialize(f, next))
			return nil
		}
		if !f.Optional {
			return issuef(p, CodeOperatorState, int64(d.pos), "no prior value for mandatory increment field")
		}
		return nil

	case OpDelta:
		if f.Optional {
			present := pm.IsSet(*bit)
			*bit++
			if !present {
				return nil
			}
		}
		return d.delta(in, m, p)

	case OpTail:
		return d.tail(in, pm, bit, m, p)
	}
	return nil
}

func (d *decoder) sequence(in *instr, m *Message, p string) error {
	f := &in.field
	var n uint64
	if f.Optional {
		v, present, err := d.readUintNullable(p)
		if err != nil {
			return err
		}
		if !present {
			return nil
		}
		n = v
	} else {
		v, err := d.readUint(p)
		if err != nil {
			return err
		}
		n = v
	}
	if d.opt.MaxSequenceLen > 0 && n > uint64(d.opt.MaxSequenceLen) {
		return issuef(p, CodeLimitExceeded, int64(d.pos), "sequence length %d exceeds limit %d", n, d.opt.MaxSequenceLen)
	}
	capHint := 64
	if n < 64 {
		capHint = int(n)
	}
	entries := make([]*Message, 0, capHint)
	for i := uint64(0); i < n; i++ {
		ep := p + "/" + strconv.FormatUint(i, 10)
		ent := NewEntry()
		if err := d.composite(in, ent, ep); err != nil {
			return err
		}
		entries = append(entries, ent)
	}
	m.Set(f.ID, entries)
	return nil
}

// composite decodes a group body or one sequence entry: a nested presence
// map when the inner segment declares presence-bearing fields, then the
// inner fields.
func (d *decoder) composite(in *instr, m *Message, p string) error {
	pm := wire.Pmap{}
	if in.inner.bits {
		var err error
		pm, err = d.pmap(p)
		if err != nil {
			return err
		}
	}
	bit := 0
	return d.fields(in.inner, pm, &bit, m, p)
}

func (d *decoder) delta(in *instr, m *Message, p string) error {
	f := &in.field
	prior := d.st[in.slot]
	var nv any
	switch {
	case f.Type.isUnsigned():
		dv, err := d.readInt(p)
		if err != nil {
			return err
		}
		var base uint64
		if prior.state == stateAssigned {
			base = prior.val.(uint64)
		}
		v, ok := addUint(base, dv)
		if !ok || (f.Type == TypeUInt32 && !wire.FitsUint32(v)) {
			return issuef(p, CodeOverflow, int64(d.pos), "delta leaves the representable range")
		}
		nv = v
	case f.Type.isInteger():
		dv, err := d.readInt(p)
		if err != nil {
			return err
		}
		var base int64
		if prior.state == stateAssigned {
			base = prior.val.(int64)
		}
		v, ok := addInt(base, dv)
		if !ok || (f.Type == TypeInt32 && !wire.FitsInt32(v)) {
			return issuef(p, CodeOverflow, int64(d.pos), "delta leaves the representable range")
		}
		nv = v
	case f.Type == TypeDecimal:
		de, err := d.readInt(p)
		if err != nil {
			return err
		}
		dm, err := d.readInt(p)
		if err != nil {
			return err
		}
		var base Decimal
		if prior.state == stateAssigned {
			base = prior.val.(Decimal)
		}
		exp := int64(base.Exponent) + de
		if !wire.FitsInt32(exp) {
			return issuef(p, CodeOverflow, int64(d.pos), "exponent delta leaves the representable range")
		}
		mant, ok := addInt(base.Mantissa, dm)
		if !ok {
			return issuef(p, CodeOverflow, int64(d.pos), "mantissa delta leaves the representable range")
		}
		nv = Decimal{Mantissa: mant, Exponent: int32(exp)}
	default: // byte strings: FAST-style subtraction
		chop, err := d.readInt(p)
		if err != nil {
			return err
		}
		seg, err := d.readBytes(p)
		if err != nil {
			return err
		}
		var base []byte
		if prior.state == stateAssigned {
			base = prior.val.([]byte)
		}
		if chop >= 0 {
			if chop > int64(len(base)) {
				return issuef(p, CodeOperatorState, int64(d.pos), "delta removes %d bytes from a %d byte base", chop, len(base))
			}
			keep := base[:int64(len(base))-chop]
			nv = append(append([]byte(nil), keep...), seg...)
		} else {
			rm := -chop - 1
			if rm > int64(len(base)) {
				return issuef(p, CodeOperatorState, int64(d.pos), "delta removes %d bytes from a %d byte base", rm, len(base))
			}
			nv = append(append([]byte(nil), seg...), base[rm:]...)
		}
	}
	d.st[in.slot] = slotEntry{state: stateAssigned, val: retain(nv)}
	m.Set(f.ID, materialize(f, nv))
	return nil
}

func (d *decoder) tail(in *instr, pm wire.Pmap, bit *int, m *Message, p string) error {
	f := &in.field
	set := pm.IsSet(*bit)
	*bit++
	prior := d.st[in.slot]
	if !set {
		if prior.state == stateAssigned {
			m.Set(f.ID, materialize(f, prior.val))
			return nil
		}
		if !f.Optional {
			return issuef(p, CodeOperatorState, int64(d.pos), "no prior value for mandatory tail field")
		}
		return nil
	}
	var pfx uint64
	if f.Optional {
		v, present, err := d.readUintNullable(p)
		if err != nil {
			return err
		}
		if !present {
			d.st[in.slot] = slotEntry{state: stateEmpty}
			return nil
		}
		pfx = v
	} else {
		v, err := d.readUint(p)
		if err != nil {
			return err
		}
		pfx = v
	}
	var base []byte
	if prior.state == stateAssigned {
		base = prior.val.([]byte)
	}
	if pfx > uint64(len(base)) {
		return issuef(p, CodeOperatorState, int64(d.pos), "tail keeps %d bytes of a %d byte base", pfx, len(base))
	}
	suffix, err := d.readBytes(p)
	if err != nil {
		return err
	}
	nv := append(append([]byte(nil), base[:pfx]...), suffix...)
	d.st[in.slot] = slotEntry{state: stateAssigned, val: nv}
	m.Set(f.ID, materialize(f, nv))
	return nil
}

// raw reads a plain wire value, nullable when the field is optional.
func (d *decoder) raw(f *Field, p string) (any, bool, error) {
	if f.Optional {
		switch {
		case f.Type.isUnsigned():
			v, present, err := d.readUintNullable(p)
			if err != nil || !present {
				return nil, false, err
			}
			if f.Type == TypeUInt32 && !wire.FitsUint32(v) {
				return nil, false, issuef(p, CodeMalformedInteger, int64(d.pos), "value overflows uint32")
			}
			return v, true, nil
		case f.Type.isInteger():
			v, present, err := d.readIntNullable(p)
			if err != nil || !present {
				return nil, false, err
			}
			if f.Type == TypeInt32 && !wire.FitsInt32(v) {
				return nil, false, issuef(p, CodeMalformedInteger, int64(d.pos), "value overflows int32")
			}
			return v, true, nil
		case f.Type == TypeDecimal:
			exp, present, err := d.readIntNullable(p)
			if err != nil || !present {
				return nil, false, err
			}
			if !wire.FitsInt32(exp) {
				return nil, false, issuef(p, CodeMalformedInteger, int64(d.pos), "exponent overflows int32")
			}
			mant, err := d.readInt(p)
			if err != nil {
				return nil, false, err
			}
			return Decimal{Mantissa: mant, Exponent: int32(exp)}, true, nil
		default:
			v, present, err := d.readBytesNullable(p)
			if err != nil || !present {
				return nil, false, err
			}
			return v, true, nil
		}
	}
	switch {
	case f.Type.isUnsigned():
		v, err := d.readUint(p)
		if err != nil {
			return nil, false, err
		}
		if f.Type == TypeUInt32 && !wire.FitsUint32(v) {
			return nil, false, issuef(p, CodeMalformedInteger, int64(d.pos), "value overflows uint32")
		}
		return v, true, nil
	case f.Type.isInteger():
		v, err := d.readInt(p)
		if err != nil {
			return nil, false, err
		}
		if f.Type == TypeInt32 && !wire.FitsInt32(v) {
			return nil, false, issuef(p, CodeMalformedInteger, int64(d.pos), "value overflows int32")
		}
		return v, true, nil
	case f.Type == TypeDecimal:
		exp, err := d.readInt(p)
		if err != nil {
			return nil, false, err
		}
		if !wire.FitsInt32(exp) {
			return nil, false, issuef(p, CodeMalformedInteger, int64(d.pos), "exponent overflows int32")
		}
		mant, err := d.readInt(p)
		if err != nil {
			return nil, false, err
		}
		return Decimal{Mantissa: mant, Exponent: int32(exp)}, true, nil
	default:
		v, err := d.readBytes(p)
		if err != nil {
			return nil, false, err
		}
		return v, true, nil
	}
}

// ---- wire primitives with offset tracking and Issue mapping ----

func (d *decoder) pmap(p string) (wire.Pmap, error) {
	pm, n, err := wire.ReadPmap(d.data[d.pos:])
	if err != nil {
		return wire.Pmap{}, wrapIssue(p, CodePresenceMap, int64(d.pos), err, "presence map missing stop bit")
	}
	d.pos += n
	return pm, nil
}

func (d *decoder) readUint(p string) (uint64, error) {
	v, n, err := wire.ReadUint(d.data[d.pos:])
	if err != nil {
		return 0, d.wireErr(p, err)
	}
	d.pos += n
	return v, nil
}

func (d *decoder) readUintNullable(p string) (uint64, bool, error) {
	v, present, n, err := wire.ReadUintNullable(d.data[d.pos:])
	if err != nil {
		return 0, false, d.wireErr(p, err)
	}
	d.pos += n
	return v, present, nil
}

func (d *decoder) readInt(p string) (int64, error) {
	v, n, err := wire.ReadInt(d.data[d.pos:])
	if err != nil {
		return 0, d.wireErr(p, err)
	}
	d.pos += n
	return v, nil
}

func (d *decoder) readIntNullable(p string) (int64, bool, error) {
	v, present, n, err := wire.ReadIntNullable(d.data[d.pos:])
	if err != nil {
		return 0, false, d.wireErr(p, err)
	}
	d.pos += n
	return v, present, nil
}

func (d *decoder) readBytes(p string) ([]byte, error) {
	v, n, err := wire.ReadBytes(d.data[d.pos:])
	if err != nil {
		return nil, d.wireErr(p, err)
	}
	if d.opt.MaxFieldBytes > 0 && len(v) > d.opt.MaxFieldBytes {
		return nil, issuef(p, CodeLimitExceeded, int64(d.pos), "field length %d exceeds limit %d", len(v), d.opt.MaxFieldBytes)
	}
	d.pos += n
	return v, nil
}

func (d *decoder) readBytesNullable(p string) ([]byte, bool, error) {
	v, present, n, err := wire.ReadBytesNullable(d.data[d.pos:])
	if err != nil {
		return nil, false, d.wireErr(p, err)
	}
	if present && d.opt.MaxFieldBytes > 0 && len(v) > d.opt.MaxFieldBytes {
		return nil, false, issuef(p, CodeLimitExceeded, int64(d.pos), "field length %d exceeds limit %d", len(v), d.opt.MaxFieldBytes)
	}
	d.pos += n
	return v, present, nil
}

func (d *decoder) wireErr(p string, err error) error {
	code := CodeTruncated
	msg := "buffer exhausted mid-field"
	if errors.Is(err, wire.ErrOverflow) {
		code = CodeMalformedInteger
		msg = "stop-bit integer overflows its width"
	}
	return wrapIssue(p, code, int64(d.pos), err, msg)
}
