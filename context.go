package fastwire

// slotState is the lifecycle of one operator state slot.
type slotState uint8

const (
	// stateUndefined: no message has ever supplied a value and no default
	// exists.
	stateUndefined slotState = iota
	// stateAssigned: a prior message committed a value.
	stateAssigned
	// stateEmpty: a prior message explicitly transmitted "no value" for an
	// optional stateful field. Distinct from undefined.
	stateEmpty
)

// slotEntry is one cell of the flat operator state table. val holds the
// normalized form: uint64, int64, Decimal or []byte.
type slotEntry struct {
	state slotState
	val   any
}

// Context is the stream-scoped codec state: one slot per stateful
// (template, field) pair, resolved to dense indices at registration time,
// plus the reserved template-id slot. It is created empty, mutated only by
// fully successful encodes or decodes, and discarded or Reset when the
// stream ends.
//
// A Context must be exclusively owned: all operations against it are
// sequential by nature (message N depends on message N-1's committed
// state). Distinct Contexts are independent and safe to use in parallel.
type Context struct {
	reg     *Registry
	slots   []slotEntry
	scratch []slotEntry
}

// NewContext opens a fresh stream context against the registry. Every slot
// starts undefined.
func (r *Registry) NewContext() *Context {
	return &Context{reg: r, slots: make([]slotEntry, r.slotCount())}
}

// Reset clears all operator state back to undefined, as a schema-level
// reset instruction would.
func (c *Context) Reset() {
	for i := range c.slots {
		c.slots[i] = slotEntry{}
	}
}

// Fork returns an independent copy of the context sharing the same
// registry, for speculative encode/decode against the current state.
func (c *Context) Fork() *Context {
	n := &Context{reg: c.reg, slots: make([]slotEntry, len(c.slots))}
	copy(n.slots, c.slots)
	return n
}

// begin stages a transaction: all in-flight mutations target the scratch
// table so a failed operation leaves the committed slots untouched.
func (c *Context) begin() []slotEntry {
	// Templates may have been registered after this context was opened;
	// grow to the registry's current slot count.
	if n := c.reg.slotCount(); n > len(c.slots) {
		grown := make([]slotEntry, n)
		copy(grown, c.slots)
		c.slots = grown
	}
	c.scratch = append(c.scratch[:0], c.slots...)
	return c.scratch
}

// commit publishes the staged slots. Only called after a full success.
func (c *Context) commit() {
	c.slots, c.scratch = c.scratch, c.slots
}
