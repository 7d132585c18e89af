package fastwire

// Package fastwire implements a schema-driven, stateful codec for the FAST
// (FIX Adapted for STreaming) transfer encoding:
//
// - Stop-bit integers, presence maps and length-prefixed byte strings (internal/wire)
// - The seven field operators (None/Constant/Default/Copy/Increment/Delta/Tail)
//   with per-stream persistent state and atomic commit
// - A validated template Registry with registration-time operator/type checks
// - A stable error model via Issues (slash pointer, code, message, byte offset)
//
// Design policy:
// - Keep only public APIs in the root package; byte-level primitives live under internal/.
// - Place the template DSL under dsl/, value codecs under codec/, template file
//   loading under dictionary/, and the CLI under cmd/fastwire.
// - Prefer black-box testing against public APIs.
//
// Typical usage:
//
//	reg := fastwire.NewRegistry()
//	if err := reg.Register(tmpl); err != nil { ... }
//
//	ctx := reg.NewContext() // one per stream, exclusively owned
//	buf, err := fastwire.Encode(ctx, msg)
//	msg2, err := fastwire.Decode(ctx2, buf)
//
// A Context is inherently sequential: message N depends on the state committed
// by message N-1. Concurrent use of one Context is undefined; distinct
// Contexts are fully independent.
