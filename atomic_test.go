package fastwire_test

import (
	"testing"

	fastwire "github.com/reoring/fastwire"
	"github.com/reoring/fastwire/dsl"
	"github.com/reoring/fastwire/internal/wire"
)

// Failed decodes must leave the stream context byte-for-byte as it was:
// the stream stays usable when the transport retransmits.

func TestDecode_TruncatedInputLeavesStateIntact(t *testing.T) {
	r := buildRegistry(t, 6, func(b *dsl.TemplateBuilder) { b.ASCII("S", 1, dsl.Copy()) })
	enc := r.NewContext()
	dec := r.NewContext()

	bufs := encodeStream(t, enc,
		fastwire.NewMessage(6).Set(1, "hello"),
		fastwire.NewMessage(6).Set(1, "world"),
		fastwire.NewMessage(6).Set(1, "world"),
	)
	if _, err := fastwire.Decode(dec, bufs[0]); err != nil {
		t.Fatalf("Decode opener: %v", err)
	}

	// Cut message two mid-value; the partial "world" must not leak into the
	// copy state.
	_, err := fastwire.Decode(dec, bufs[1][:len(bufs[1])-2])
	if !fastwire.HasCode(err, fastwire.CodeTruncated) {
		t.Fatalf("err = %v, want %s", err, fastwire.CodeTruncated)
	}

	// Retransmission decodes cleanly, and message three still resolves its
	// zero presence bit against the state message two committed.
	got := decodeStream(t, dec, bufs[1], bufs[2])
	for i, m := range got {
		if v, _ := m.Text(1); v != "world" {
			t.Fatalf("message %d after retransmit: S = %q, want world", i+2, v)
		}
	}
}

func TestDecode_PresenceMapMissingStopBit(t *testing.T) {
	r := buildRegistry(t, 6, func(b *dsl.TemplateBuilder) { b.ASCII("S", 1, dsl.Copy()) })

	// 0x00 opens a presence map that never reaches its stop bit.
	_, err := fastwire.Decode(r.NewContext(), []byte{0x00})
	if !fastwire.HasCode(err, fastwire.CodePresenceMap) {
		t.Fatalf("err = %v, want %s", err, fastwire.CodePresenceMap)
	}
	iss, _ := fastwire.AsIssues(err)
	if len(iss) != 1 || iss[0].Cause != wire.ErrPresenceMap {
		t.Fatalf("cause = %v, want %v", iss[0].Cause, wire.ErrPresenceMap)
	}

	_, err = fastwire.Decode(r.NewContext(), nil)
	if !fastwire.HasCode(err, fastwire.CodePresenceMap) {
		t.Fatalf("empty buffer: err = %v, want %s", err, fastwire.CodePresenceMap)
	}
}

func TestDecode_MalformedInteger(t *testing.T) {
	r := buildRegistry(t, 6, func(b *dsl.TemplateBuilder) { b.UInt64("V", 1) })

	// Template id 6, then an eleven-byte stop-bit run: more than 64 bits.
	buf := []byte{0xC0, 0x86}
	for i := 0; i < 10; i++ {
		buf = append(buf, 0x7F)
	}
	buf = append(buf, 0xFF)
	_, err := fastwire.Decode(r.NewContext(), buf)
	if !fastwire.HasCode(err, fastwire.CodeMalformedInteger) {
		t.Fatalf("err = %v, want %s", err, fastwire.CodeMalformedInteger)
	}
}

func TestDecode_UInt32WidthEnforced(t *testing.T) {
	r := buildRegistry(t, 6, func(b *dsl.TemplateBuilder) { b.UInt32("V", 1) })

	buf := wire.AppendUint([]byte{0xC0, 0x86}, 1<<33)
	_, err := fastwire.Decode(r.NewContext(), buf)
	if !fastwire.HasCode(err, fastwire.CodeMalformedInteger) {
		t.Fatalf("err = %v, want %s", err, fastwire.CodeMalformedInteger)
	}
}

func TestDecodeWith_SequenceLengthLimit(t *testing.T) {
	r := buildRegistry(t, 8, func(b *dsl.TemplateBuilder) {
		b.Sequence("Items", 1, func(s *dsl.Builder) {
			s.UInt32("V", 2)
		})
	})

	entries := []*fastwire.Message{
		fastwire.NewEntry().Set(2, uint32(1)),
		fastwire.NewEntry().Set(2, uint32(2)),
		fastwire.NewEntry().Set(2, uint32(3)),
	}
	buf, err := fastwire.Encode(r.NewContext(), fastwire.NewMessage(8).Set(1, entries))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	_, err = fastwire.DecodeWith(r.NewContext(), buf, fastwire.DecodeOpt{MaxSequenceLen: 2})
	if !fastwire.HasCode(err, fastwire.CodeLimitExceeded) {
		t.Fatalf("err = %v, want %s", err, fastwire.CodeLimitExceeded)
	}
	if _, err := fastwire.DecodeWith(r.NewContext(), buf, fastwire.DecodeOpt{MaxSequenceLen: 3}); err != nil {
		t.Fatalf("limit 3: %v", err)
	}
}

func TestDecodeWith_HostileSequenceLength(t *testing.T) {
	r := buildRegistry(t, 8, func(b *dsl.TemplateBuilder) {
		b.Sequence("Items", 1, func(s *dsl.Builder) {
			s.UInt32("V", 2)
		})
	})

	// A declared length in the trillions with no entry bytes behind it.
	buf := wire.AppendUint([]byte{0xC0, 0x88}, 1<<40)
	_, err := fastwire.DecodeWith(r.NewContext(), buf, fastwire.DecodeOpt{MaxSequenceLen: 1 << 16})
	if !fastwire.HasCode(err, fastwire.CodeLimitExceeded) {
		t.Fatalf("bounded: err = %v, want %s", err, fastwire.CodeLimitExceeded)
	}

	// Unbounded decodes must still fail on the missing bytes, not allocate.
	_, err = fastwire.Decode(r.NewContext(), buf)
	if !fastwire.HasCode(err, fastwire.CodeTruncated) {
		t.Fatalf("unbounded: err = %v, want %s", err, fastwire.CodeTruncated)
	}
}

func TestDecodeWith_FieldBytesLimit(t *testing.T) {
	r := buildRegistry(t, 8, func(b *dsl.TemplateBuilder) { b.ASCII("S", 1) })

	buf, err := fastwire.Encode(r.NewContext(), fastwire.NewMessage(8).Set(1, "oversized"))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	_, err = fastwire.DecodeWith(r.NewContext(), buf, fastwire.DecodeOpt{MaxFieldBytes: 4})
	if !fastwire.HasCode(err, fastwire.CodeLimitExceeded) {
		t.Fatalf("err = %v, want %s", err, fastwire.CodeLimitExceeded)
	}
}

func TestContext_ResetDropsOperatorState(t *testing.T) {
	r := buildRegistry(t, 6, func(b *dsl.TemplateBuilder) { b.UInt32("V", 1, dsl.Copy()) })
	dec := r.NewContext()

	bufs := encodeStream(t, r.NewContext(),
		fastwire.NewMessage(6).Set(1, uint32(9)),
		fastwire.NewMessage(6).Set(1, uint32(9)),
	)
	if _, err := fastwire.Decode(dec, bufs[0]); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	dec.Reset()

	// The repeat leans on state the reset discarded.
	_, err := fastwire.Decode(dec, bufs[1])
	if !fastwire.HasCode(err, fastwire.CodeOperatorState) {
		t.Fatalf("err = %v, want %s", err, fastwire.CodeOperatorState)
	}
}

func TestContext_ForkIsIndependent(t *testing.T) {
	r := buildRegistry(t, 6, func(b *dsl.TemplateBuilder) { b.UInt32("V", 1, dsl.Copy()) })
	dec := r.NewContext()

	bufs := encodeStream(t, r.NewContext(),
		fastwire.NewMessage(6).Set(1, uint32(9)),
		fastwire.NewMessage(6).Set(1, uint32(9)),
	)
	if _, err := fastwire.Decode(dec, bufs[0]); err != nil {
		t.Fatalf("Decode: %v", err)
	}

	fork := dec.Fork()
	if _, err := fastwire.Decode(fork, bufs[1]); err != nil {
		t.Fatalf("fork inherits committed state: %v", err)
	}
	fork.Reset()

	// Resetting the fork must not disturb the parent stream.
	got, err := fastwire.Decode(dec, bufs[1])
	if err != nil {
		t.Fatalf("parent after fork reset: %v", err)
	}
	if v, _ := got.UInt32(1); v != 9 {
		t.Fatalf("V = %d, want 9", v)
	}
}

func TestContext_GrowsForLateRegistration(t *testing.T) {
	r := fastwire.NewRegistry()
	r.MustRegister(dsl.Template(1, "A").UInt32("V", 1, dsl.Copy()).MustBuild())
	c := r.NewContext()

	r.MustRegister(dsl.Template(2, "B").UInt32("W", 2, dsl.Copy()).MustBuild())

	// The context predates template B but must still carry its state.
	buf, err := fastwire.Encode(c, fastwire.NewMessage(2).Set(2, uint32(4)))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := fastwire.Decode(r.NewContext(), buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if v, _ := got.UInt32(2); v != 4 {
		t.Fatalf("W = %d, want 4", v)
	}
}
