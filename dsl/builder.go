package dsl

import (
	fastwire "github.com/reoring/fastwire"
)

// FieldOpt customizes one field declaration: operator, presence, state
// scope.
type FieldOpt func(*fastwire.Field)

// Copy applies the copy operator.
func Copy() FieldOpt { return func(f *fastwire.Field) { f.Op = fastwire.OpCopy } }

// Increment applies the increment operator (integer fields).
func Increment() FieldOpt { return func(f *fastwire.Field) { f.Op = fastwire.OpIncrement } }

// Delta applies the delta operator.
func Delta() FieldOpt { return func(f *fastwire.Field) { f.Op = fastwire.OpDelta } }

// Tail applies the tail operator (string/byte-vector fields).
func Tail() FieldOpt { return func(f *fastwire.Field) { f.Op = fastwire.OpTail } }

// Constant pins the field to a schema-supplied value that never travels on
// the wire.
func Constant(v any) FieldOpt {
	return func(f *fastwire.Field) {
		f.Op = fastwire.OpConstant
		f.Initial = v
	}
}

// Default transmits the value only when it differs from v.
func Default(v any) FieldOpt {
	return func(f *fastwire.Field) {
		f.Op = fastwire.OpDefault
		f.Initial = v
	}
}

// Optional marks the field as carrying no value legally.
func Optional() FieldOpt { return func(f *fastwire.Field) { f.Optional = true } }

// PerEntry resets the field's operator state at the start of every
// sequence entry (and every message, for fields outside sequences).
func PerEntry() FieldOpt { return func(f *fastwire.Field) { f.Scope = fastwire.ScopeEntry } }

// Global shares the field's operator state across all templates of the
// registry, keyed by field name.
func Global() FieldOpt { return func(f *fastwire.Field) { f.Scope = fastwire.ScopeGlobal } }

// Builder accumulates field declarations in wire order. It backs both the
// template top level and nested group/sequence bodies.
type Builder struct {
	fields []fastwire.Field
}

func (b *Builder) add(name string, id uint32, t fastwire.Type, opts []FieldOpt) *Builder {
	f := fastwire.Field{ID: id, Name: name, Type: t}
	for _, opt := range opts {
		opt(&f)
	}
	b.fields = append(b.fields, f)
	return b
}

// UInt32 declares an unsigned 32-bit integer field.
func (b *Builder) UInt32(name string, id uint32, opts ...FieldOpt) *Builder {
	return b.add(name, id, fastwire.TypeUInt32, opts)
}

// Int32 declares a signed 32-bit integer field.
func (b *Builder) Int32(name string, id uint32, opts ...FieldOpt) *Builder {
	return b.add(name, id, fastwire.TypeInt32, opts)
}

// UInt64 declares an unsigned 64-bit integer field.
func (b *Builder) UInt64(name string, id uint32, opts ...FieldOpt) *Builder {
	return b.add(name, id, fastwire.TypeUInt64, opts)
}

// Int64 declares a signed 64-bit integer field.
func (b *Builder) Int64(name string, id uint32, opts ...FieldOpt) *Builder {
	return b.add(name, id, fastwire.TypeInt64, opts)
}

// Decimal declares a mantissa/exponent decimal field.
func (b *Builder) Decimal(name string, id uint32, opts ...FieldOpt) *Builder {
	return b.add(name, id, fastwire.TypeDecimal, opts)
}

// ASCII declares an ASCII string field.
func (b *Builder) ASCII(name string, id uint32, opts ...FieldOpt) *Builder {
	return b.add(name, id, fastwire.TypeASCIIString, opts)
}

// Unicode declares a UTF-8 string field.
func (b *Builder) Unicode(name string, id uint32, opts ...FieldOpt) *Builder {
	return b.add(name, id, fastwire.TypeUnicodeString, opts)
}

// Bytes declares a byte-vector field.
func (b *Builder) Bytes(name string, id uint32, opts ...FieldOpt) *Builder {
	return b.add(name, id, fastwire.TypeByteVector, opts)
}

// Group declares a nested group whose body is built by fn.
func (b *Builder) Group(name string, id uint32, fn func(*Builder), opts ...FieldOpt) *Builder {
	inner := &Builder{}
	fn(inner)
	f := fastwire.Field{ID: id, Name: name, Type: fastwire.TypeGroup, Inner: inner.fields}
	for _, opt := range opts {
		opt(&f)
	}
	b.fields = append(b.fields, f)
	return b
}

// Sequence declares a repeating group whose entry body is built by fn.
func (b *Builder) Sequence(name string, id uint32, fn func(*Builder), opts ...FieldOpt) *Builder {
	inner := &Builder{}
	fn(inner)
	f := fastwire.Field{ID: id, Name: name, Type: fastwire.TypeSequence, Inner: inner.fields}
	for _, opt := range opts {
		opt(&f)
	}
	b.fields = append(b.fields, f)
	return b
}

// TemplateBuilder is a Builder bound to a template id and name.
type TemplateBuilder struct {
	Builder
	tid  uint32
	name string
}

// Template starts a new template builder.
func Template(tid uint32, name string) *TemplateBuilder {
	return &TemplateBuilder{tid: tid, name: name}
}

// UInt32 declares an unsigned 32-bit integer field.
func (b *TemplateBuilder) UInt32(name string, id uint32, opts ...FieldOpt) *TemplateBuilder {
	b.Builder.UInt32(name, id, opts...)
	return b
}

// Int32 declares a signed 32-bit integer field.
func (b *TemplateBuilder) Int32(name string, id uint32, opts ...FieldOpt) *TemplateBuilder {
	b.Builder.Int32(name, id, opts...)
	return b
}

// UInt64 declares an unsigned 64-bit integer field.
func (b *TemplateBuilder) UInt64(name string, id uint32, opts ...FieldOpt) *TemplateBuilder {
	b.Builder.UInt64(name, id, opts...)
	return b
}

// Int64 declares a signed 64-bit integer field.
func (b *TemplateBuilder) Int64(name string, id uint32, opts ...FieldOpt) *TemplateBuilder {
	b.Builder.Int64(name, id, opts...)
	return b
}

// Decimal declares a mantissa/exponent decimal field.
func (b *TemplateBuilder) Decimal(name string, id uint32, opts ...FieldOpt) *TemplateBuilder {
	b.Builder.Decimal(name, id, opts...)
	return b
}

// ASCII declares an ASCII string field.
func (b *TemplateBuilder) ASCII(name string, id uint32, opts ...FieldOpt) *TemplateBuilder {
	b.Builder.ASCII(name, id, opts...)
	return b
}

// Unicode declares a UTF-8 string field.
func (b *TemplateBuilder) Unicode(name string, id uint32, opts ...FieldOpt) *TemplateBuilder {
	b.Builder.Unicode(name, id, opts...)
	return b
}

// Bytes declares a byte-vector field.
func (b *TemplateBuilder) Bytes(name string, id uint32, opts ...FieldOpt) *TemplateBuilder {
	b.Builder.Bytes(name, id, opts...)
	return b
}

// Group declares a nested group whose body is built by fn.
func (b *TemplateBuilder) Group(name string, id uint32, fn func(*Builder), opts ...FieldOpt) *TemplateBuilder {
	b.Builder.Group(name, id, fn, opts...)
	return b
}

// Sequence declares a repeating group whose entry body is built by fn.
func (b *TemplateBuilder) Sequence(name string, id uint32, fn func(*Builder), opts ...FieldOpt) *TemplateBuilder {
	b.Builder.Sequence(name, id, fn, opts...)
	return b
}

// Build assembles the template and validates it against the structural
// rules the Registry enforces.
func (b *TemplateBuilder) Build() (*fastwire.Template, error) {
	t := &fastwire.Template{TID: b.tid, Name: b.name, Fields: b.fields}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// MustBuild is Build panicking on invalid templates; intended for
// statically known schemas.
func (b *TemplateBuilder) MustBuild() *fastwire.Template {
	t, err := b.Build()
	if err != nil {
		panic(err)
	}
	return t
}
