package fastwire

import (
	"bytes"
	"sort"
)

// Message is a structured value conforming to a registered template: a
// template id plus a mapping from field id to value. A field id that is not
// present in the mapping carries no value; that is only legal where the
// field is optional (or its operator is Constant, whose value the schema
// already pins).
//
// Value types by declared field type:
//
//	uint32/int32/uint64/int64 -> the matching Go integer type
//	decimal                   -> Decimal
//	ascii/unicode             -> string
//	bytes                     -> []byte
//	group                     -> *Message (TID ignored)
//	sequence                  -> []*Message (TIDs ignored)
type Message struct {
	tid    uint32
	fields map[uint32]any
}

// NewMessage returns an empty message for the given template id.
func NewMessage(tid uint32) *Message {
	return &Message{tid: tid, fields: map[uint32]any{}}
}

// NewEntry returns an empty group value or sequence entry. Entries carry no
// template id of their own; the enclosing template governs them.
func NewEntry() *Message { return &Message{fields: map[uint32]any{}} }

// TID returns the template id the message claims to conform to.
func (m *Message) TID() uint32 { return m.tid }

// Set stores a value for the field id and returns m for chaining. The value
// must already have the Go type matching the field's declared type; Encode
// rejects mismatches with CodeInvalidType.
func (m *Message) Set(id uint32, v any) *Message {
	m.fields[id] = v
	return m
}

// Unset removes any value for the field id, leaving it absent.
func (m *Message) Unset(id uint32) { delete(m.fields, id) }

// Value returns the stored value for the field id.
func (m *Message) Value(id uint32) (any, bool) {
	v, ok := m.fields[id]
	return v, ok
}

// Has reports whether the field id carries a value.
func (m *Message) Has(id uint32) bool {
	_, ok := m.fields[id]
	return ok
}

// Len returns the number of fields carrying a value.
func (m *Message) Len() int { return len(m.fields) }

// FieldIDs returns the ids carrying values in ascending order.
func (m *Message) FieldIDs() []uint32 {
	ids := make([]uint32, 0, len(m.fields))
	for id := range m.fields {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// UInt32 returns the field value as uint32.
func (m *Message) UInt32(id uint32) (uint32, bool) {
	v, ok := m.fields[id].(uint32)
	return v, ok
}

// Int32 returns the field value as int32.
func (m *Message) Int32(id uint32) (int32, bool) {
	v, ok := m.fields[id].(int32)
	return v, ok
}

// UInt64 returns the field value as uint64.
func (m *Message) UInt64(id uint32) (uint64, bool) {
	v, ok := m.fields[id].(uint64)
	return v, ok
}

// Int64 returns the field value as int64.
func (m *Message) Int64(id uint32) (int64, bool) {
	v, ok := m.fields[id].(int64)
	return v, ok
}

// Decimal returns the field value as a Decimal.
func (m *Message) Decimal(id uint32) (Decimal, bool) {
	v, ok := m.fields[id].(Decimal)
	return v, ok
}

// Text returns the field value as a string (ascii or unicode fields).
func (m *Message) Text(id uint32) (string, bool) {
	v, ok := m.fields[id].(string)
	return v, ok
}

// Bytes returns the field value as a byte vector.
func (m *Message) Bytes(id uint32) ([]byte, bool) {
	v, ok := m.fields[id].([]byte)
	return v, ok
}

// Group returns the field value as a nested group.
func (m *Message) Group(id uint32) (*Message, bool) {
	v, ok := m.fields[id].(*Message)
	return v, ok
}

// Entries returns the field value as sequence entries.
func (m *Message) Entries(id uint32) ([]*Message, bool) {
	v, ok := m.fields[id].([]*Message)
	return v, ok
}

// Equal reports deep equality of two messages: same template id, same set
// of populated fields, and equal values (byte vectors by content, nested
// groups and sequences recursively).
func (m *Message) Equal(o *Message) bool {
	if m == nil || o == nil {
		return m == o
	}
	if m.tid != o.tid || len(m.fields) != len(o.fields) {
		return false
	}
	for id, v := range m.fields {
		w, ok := o.fields[id]
		if !ok || !fieldValueEqual(v, w) {
			return false
		}
	}
	return true
}

func fieldValueEqual(a, b any) bool {
	switch av := a.(type) {
	case []byte:
		bv, ok := b.([]byte)
		return ok && bytes.Equal(av, bv)
	case *Message:
		bv, ok := b.(*Message)
		return ok && av.Equal(bv)
	case []*Message:
		bv, ok := b.([]*Message)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !av[i].Equal(bv[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}
