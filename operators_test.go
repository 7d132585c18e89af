package fastwire_test

import (
	"bytes"
	"testing"

	fastwire "github.com/reoring/fastwire"
	"github.com/reoring/fastwire/dsl"
)

func buildRegistry(t *testing.T, tid uint32, build func(*dsl.TemplateBuilder)) *fastwire.Registry {
	t.Helper()
	b := dsl.Template(tid, "T")
	build(b)
	tpl, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	r := fastwire.NewRegistry()
	if err := r.Register(tpl); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return r
}

func encodeStream(t *testing.T, c *fastwire.Context, ms ...*fastwire.Message) [][]byte {
	t.Helper()
	out := make([][]byte, len(ms))
	for i, m := range ms {
		buf, err := fastwire.Encode(c, m)
		if err != nil {
			t.Fatalf("Encode message %d: %v", i+1, err)
		}
		out[i] = buf
	}
	return out
}

func decodeStream(t *testing.T, c *fastwire.Context, bufs ...[]byte) []*fastwire.Message {
	t.Helper()
	out := make([]*fastwire.Message, len(bufs))
	for i, buf := range bufs {
		m, err := fastwire.Decode(c, buf)
		if err != nil {
			t.Fatalf("Decode message %d: %v", i+1, err)
		}
		out[i] = m
	}
	return out
}

func TestCopy_RepeatCollapsesToPmap(t *testing.T) {
	r := buildRegistry(t, 3, func(b *dsl.TemplateBuilder) { b.UInt32("V", 1, dsl.Copy()) })
	enc := r.NewContext()

	m := fastwire.NewMessage(3).Set(1, uint32(42))
	bufs := encodeStream(t, enc, m, m)

	// Opener: pmap (tid and copy bits set), template id, raw value.
	if want := []byte{0xE0, 0x83, 0x80 | 42}; !bytes.Equal(bufs[0], want) {
		t.Fatalf("opener = % X, want % X", bufs[0], want)
	}
	// Identical repeat: a single stop byte, everything comes from state.
	if want := []byte{0x80}; !bytes.Equal(bufs[1], want) {
		t.Fatalf("repeat = % X, want % X", bufs[1], want)
	}

	got := decodeStream(t, r.NewContext(), bufs...)
	for i, g := range got {
		if v, ok := g.UInt32(1); !ok || v != 42 {
			t.Fatalf("message %d: V = %v (%v), want 42", i+1, v, ok)
		}
	}
}

func TestCopy_OptionalEmptyState(t *testing.T) {
	r := buildRegistry(t, 3, func(b *dsl.TemplateBuilder) { b.ASCII("S", 1, dsl.Copy(), dsl.Optional()) })
	enc := r.NewContext()

	withValue := fastwire.NewMessage(3).Set(1, "A")
	absent := fastwire.NewMessage(3)
	bufs := encodeStream(t, enc, withValue, absent, absent)

	// First absence transmits an explicit null; the stored empty state makes
	// the second absence free.
	if want := []byte{0xA0, 0x80}; !bytes.Equal(bufs[1], want) {
		t.Fatalf("first absence = % X, want % X", bufs[1], want)
	}
	if want := []byte{0x80}; !bytes.Equal(bufs[2], want) {
		t.Fatalf("second absence = % X, want % X", bufs[2], want)
	}

	got := decodeStream(t, r.NewContext(), bufs...)
	if v, ok := got[0].Text(1); !ok || v != "A" {
		t.Fatalf("message 1: S = %q (%v), want A", v, ok)
	}
	if got[1].Has(1) || got[2].Has(1) {
		t.Fatal("absent field decoded as present")
	}
}

func TestCopy_MandatoryNoPrior(t *testing.T) {
	r := buildRegistry(t, 1, func(b *dsl.TemplateBuilder) { b.UInt32("V", 1, dsl.Copy()) })
	// Pmap with only the template id bit, id 1: the copy bit is zero but no
	// prior value exists on this stream.
	_, err := fastwire.Decode(r.NewContext(), []byte{0xC0, 0x81})
	if !fastwire.HasCode(err, fastwire.CodeOperatorState) {
		t.Fatalf("err = %v, want %s", err, fastwire.CodeOperatorState)
	}
}

func TestIncrement_SequenceNumbers(t *testing.T) {
	r := buildRegistry(t, 4, func(b *dsl.TemplateBuilder) { b.UInt32("Seq", 1, dsl.Increment()) })
	enc := r.NewContext()

	bufs := encodeStream(t, enc,
		fastwire.NewMessage(4).Set(1, uint32(100)),
		fastwire.NewMessage(4).Set(1, uint32(101)),
		fastwire.NewMessage(4).Set(1, uint32(102)),
		fastwire.NewMessage(4).Set(1, uint32(200)),
	)
	for i := 1; i <= 2; i++ {
		if want := []byte{0x80}; !bytes.Equal(bufs[i], want) {
			t.Fatalf("message %d = % X, want % X", i+1, bufs[i], want)
		}
	}
	if len(bufs[3]) == 1 {
		t.Fatal("gap in the sequence must transmit the value")
	}

	got := decodeStream(t, r.NewContext(), bufs...)
	for i, want := range []uint32{100, 101, 102, 200} {
		if v, _ := got[i].UInt32(1); v != want {
			t.Fatalf("message %d: Seq = %d, want %d", i+1, v, want)
		}
	}
}

func TestDefault_OmittedWhenEqual(t *testing.T) {
	r := buildRegistry(t, 5, func(b *dsl.TemplateBuilder) { b.UInt32("N", 1, dsl.Default(uint32(1))) })
	enc := r.NewContext()

	bufs := encodeStream(t, enc,
		fastwire.NewMessage(5).Set(1, uint32(1)),
		fastwire.NewMessage(5).Set(1, uint32(9)),
	)
	if want := []byte{0xC0, 0x85}; !bytes.Equal(bufs[0], want) {
		t.Fatalf("default value = % X, want % X", bufs[0], want)
	}
	if want := []byte{0xA0, 0x89}; !bytes.Equal(bufs[1], want) {
		t.Fatalf("overridden value = % X, want % X", bufs[1], want)
	}

	got := decodeStream(t, r.NewContext(), bufs...)
	if v, _ := got[0].UInt32(1); v != 1 {
		t.Fatalf("message 1: N = %d, want 1", v)
	}
	if v, _ := got[1].UInt32(1); v != 9 {
		t.Fatalf("message 2: N = %d, want 9", v)
	}
}

func TestConstant_NeverOnWire(t *testing.T) {
	r := buildRegistry(t, 6, func(b *dsl.TemplateBuilder) {
		b.ASCII("Proto", 1, dsl.Constant("FIX.4.4"))
		b.UInt32("V", 2)
	})
	enc := r.NewContext()

	// The constant may be omitted from the input; the schema pins it.
	bufs := encodeStream(t, enc, fastwire.NewMessage(6).Set(2, uint32(7)))
	if want := []byte{0xC0, 0x86, 0x87}; !bytes.Equal(bufs[0], want) {
		t.Fatalf("encoded = % X, want % X", bufs[0], want)
	}

	got := decodeStream(t, r.NewContext(), bufs...)
	if v, ok := got[0].Text(1); !ok || v != "FIX.4.4" {
		t.Fatalf("Proto = %q (%v), want FIX.4.4", v, ok)
	}

	// A conflicting value is a schema violation, not a silent overwrite.
	_, err := fastwire.Encode(enc, fastwire.NewMessage(6).Set(1, "FIX.5.0").Set(2, uint32(7)))
	if !fastwire.HasCode(err, fastwire.CodeInvalidType) {
		t.Fatalf("err = %v, want %s", err, fastwire.CodeInvalidType)
	}
}

func TestConstant_OptionalPresence(t *testing.T) {
	r := buildRegistry(t, 6, func(b *dsl.TemplateBuilder) {
		b.ASCII("Flag", 1, dsl.Constant("Y"), dsl.Optional())
	})
	enc := r.NewContext()

	bufs := encodeStream(t, enc,
		fastwire.NewMessage(6).Set(1, "Y"),
		fastwire.NewMessage(6),
	)
	got := decodeStream(t, r.NewContext(), bufs...)
	if v, ok := got[0].Text(1); !ok || v != "Y" {
		t.Fatalf("message 1: Flag = %q (%v), want Y", v, ok)
	}
	if got[1].Has(1) {
		t.Fatal("message 2: absent optional constant decoded as present")
	}
}

func TestDelta_Integers(t *testing.T) {
	r := buildRegistry(t, 7, func(b *dsl.TemplateBuilder) { b.Int64("Px", 1, dsl.Delta()) })
	enc := r.NewContext()

	values := []int64{100000, 100010, 99990, 99990}
	var ms []*fastwire.Message
	for _, v := range values {
		ms = append(ms, fastwire.NewMessage(7).Set(1, v))
	}
	bufs := encodeStream(t, enc, ms...)

	// Small moves ride in one delta byte after the opener.
	for i := 1; i < len(bufs); i++ {
		if len(bufs[i]) != 2 {
			t.Fatalf("message %d: %d bytes, want 2 (pmap + one delta byte)", i+1, len(bufs[i]))
		}
	}

	got := decodeStream(t, r.NewContext(), bufs...)
	for i, want := range values {
		if v, _ := got[i].Int64(1); v != want {
			t.Fatalf("message %d: Px = %d, want %d", i+1, v, want)
		}
	}
}

func TestDelta_Decimal(t *testing.T) {
	r := buildRegistry(t, 7, func(b *dsl.TemplateBuilder) { b.Decimal("Px", 1, dsl.Delta()) })
	enc := r.NewContext()

	values := []fastwire.Decimal{
		{Mantissa: 134015, Exponent: -2},
		{Mantissa: 134020, Exponent: -2},
		{Mantissa: 13402, Exponent: -1},
	}
	var ms []*fastwire.Message
	for _, v := range values {
		ms = append(ms, fastwire.NewMessage(7).Set(1, v))
	}
	bufs := encodeStream(t, enc, ms...)
	got := decodeStream(t, r.NewContext(), bufs...)
	for i, want := range values {
		if v, _ := got[i].Decimal(1); v != want {
			t.Fatalf("message %d: Px = %v, want %v", i+1, v, want)
		}
	}
}

func TestDelta_Strings(t *testing.T) {
	r := buildRegistry(t, 7, func(b *dsl.TemplateBuilder) { b.ASCII("Sym", 1, dsl.Delta()) })
	enc := r.NewContext()

	// Back replacement, front replacement, full replacement.
	values := []string{"GEH6", "GEH7", "GEM7", "swordfish", "wordfish"}
	var ms []*fastwire.Message
	for _, v := range values {
		ms = append(ms, fastwire.NewMessage(7).Set(1, v))
	}
	bufs := encodeStream(t, enc, ms...)

	// GEH6 -> GEH7 removes one byte from the end and appends one.
	if want := []byte{0x80, 0x81, 0x81, '7'}; !bytes.Equal(bufs[1], want) {
		t.Fatalf("back chop = % X, want % X", bufs[1], want)
	}

	got := decodeStream(t, r.NewContext(), bufs...)
	for i, want := range values {
		if v, _ := got[i].Text(1); v != want {
			t.Fatalf("message %d: Sym = %q, want %q", i+1, v, want)
		}
	}
}

func TestTail_SharedPrefix(t *testing.T) {
	r := buildRegistry(t, 7, func(b *dsl.TemplateBuilder) { b.ASCII("ID", 1, dsl.Tail()) })
	enc := r.NewContext()

	bufs := encodeStream(t, enc,
		fastwire.NewMessage(7).Set(1, "abcde"),
		fastwire.NewMessage(7).Set(1, "abcxyz"),
		fastwire.NewMessage(7).Set(1, "abcxyz"),
	)
	// Kept-prefix length 3, then the replacement suffix.
	if want := []byte{0xA0, 0x83, 0x83, 'x', 'y', 'z'}; !bytes.Equal(bufs[1], want) {
		t.Fatalf("tail update = % X, want % X", bufs[1], want)
	}
	if want := []byte{0x80}; !bytes.Equal(bufs[2], want) {
		t.Fatalf("tail repeat = % X, want % X", bufs[2], want)
	}

	got := decodeStream(t, r.NewContext(), bufs...)
	for i, want := range []string{"abcde", "abcxyz", "abcxyz"} {
		if v, _ := got[i].Text(1); v != want {
			t.Fatalf("message %d: ID = %q, want %q", i+1, v, want)
		}
	}
}

func TestScopeEntry_ResetsPerSequenceEntry(t *testing.T) {
	build := func(tid uint32, opts ...dsl.FieldOpt) *fastwire.Template {
		all := append([]dsl.FieldOpt{dsl.Delta()}, opts...)
		return dsl.Template(tid, "Book").
			Sequence("Levels", 1, func(s *dsl.Builder) {
				s.UInt32("Px", 2, all...)
			}).
			MustBuild()
	}
	r := fastwire.NewRegistry()
	r.MustRegister(build(1, dsl.PerEntry()), build(2))

	levels := []*fastwire.Message{
		fastwire.NewEntry().Set(2, uint32(500)),
		fastwire.NewEntry().Set(2, uint32(500)),
	}

	encPer, err := fastwire.Encode(r.NewContext(), fastwire.NewMessage(1).Set(1, levels))
	if err != nil {
		t.Fatalf("Encode per-entry: %v", err)
	}
	encTpl, err := fastwire.Encode(r.NewContext(), fastwire.NewMessage(2).Set(1, levels))
	if err != nil {
		t.Fatalf("Encode template-scoped: %v", err)
	}

	// Template scope chains entry to entry: the second delta is zero and
	// costs one byte where the per-entry form re-transmits the full move.
	if len(encTpl) >= len(encPer) {
		t.Fatalf("template scope %d bytes, per-entry %d; chaining should be smaller", len(encTpl), len(encPer))
	}

	for tid, buf := range map[uint32][]byte{1: encPer, 2: encTpl} {
		got, err := fastwire.Decode(r.NewContext(), buf)
		if err != nil {
			t.Fatalf("Decode template %d: %v", tid, err)
		}
		ents, _ := got.Entries(1)
		if len(ents) != 2 {
			t.Fatalf("template %d: %d entries, want 2", tid, len(ents))
		}
		for i, e := range ents {
			if v, _ := e.UInt32(2); v != 500 {
				t.Fatalf("template %d entry %d: Px = %d, want 500", tid, i, v)
			}
		}
	}
}

func TestScopeGlobal_SharedAcrossTemplates(t *testing.T) {
	mk := func(tid uint32, name string) *fastwire.Template {
		return dsl.Template(tid, name).
			UInt64("Account", 1, dsl.Copy(), dsl.Global()).
			MustBuild()
	}
	r := fastwire.NewRegistry()
	r.MustRegister(mk(21, "Order"), mk(22, "Cancel"))

	enc := r.NewContext()
	bufs := encodeStream(t, enc,
		fastwire.NewMessage(21).Set(1, uint64(777)),
		fastwire.NewMessage(22).Set(1, uint64(777)),
	)
	// The second template switches ids but rides the shared copy state:
	// pmap plus template id only.
	if len(bufs[1]) != 2 {
		t.Fatalf("cross-template repeat = % X, want 2 bytes", bufs[1])
	}

	got := decodeStream(t, r.NewContext(), bufs...)
	for i, m := range got {
		if v, _ := m.UInt64(1); v != 777 {
			t.Fatalf("message %d: Account = %d, want 777", i+1, v)
		}
	}
}

func TestOptionalGroup_PresenceBit(t *testing.T) {
	r := buildRegistry(t, 8, func(b *dsl.TemplateBuilder) {
		b.UInt32("V", 1)
		b.Group("Extra", 2, func(g *dsl.Builder) {
			g.ASCII("Tag", 3)
		}, dsl.Optional())
	})
	enc := r.NewContext()

	with := fastwire.NewMessage(8).
		Set(1, uint32(1)).
		Set(2, fastwire.NewEntry().Set(3, "x"))
	without := fastwire.NewMessage(8).Set(1, uint32(1))

	bufs := encodeStream(t, enc, with, without)
	got := decodeStream(t, r.NewContext(), bufs...)

	if g, ok := got[0].Group(2); !ok {
		t.Fatal("message 1: group missing")
	} else if v, _ := g.Text(3); v != "x" {
		t.Fatalf("message 1: Tag = %q, want x", v)
	}
	if got[1].Has(2) {
		t.Fatal("message 2: absent group decoded as present")
	}
}

func TestOptionalSequence_AbsentVersusEmpty(t *testing.T) {
	r := buildRegistry(t, 9, func(b *dsl.TemplateBuilder) {
		b.Sequence("Items", 1, func(s *dsl.Builder) {
			s.UInt32("V", 2)
		}, dsl.Optional())
	})
	enc := r.NewContext()

	bufs := encodeStream(t, enc,
		fastwire.NewMessage(9),
		fastwire.NewMessage(9).Set(1, []*fastwire.Message{}),
	)
	got := decodeStream(t, r.NewContext(), bufs...)

	if got[0].Has(1) {
		t.Fatal("absent sequence decoded as present")
	}
	ents, ok := got[1].Entries(1)
	if !ok || len(ents) != 0 {
		t.Fatalf("empty sequence: entries = %v (%v), want empty present", ents, ok)
	}
}
