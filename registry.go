package fastwire

import "sync"

// tidSlot is the reserved state slot holding the last transmitted template
// id; the id field behaves as a mandatory Copy-operator uint32.
const tidSlot = 0

// Registry holds validated templates and the dense state-slot layout
// derived from them. Registration failures are fatal for the caller: a
// registry that rejected a template must not process messages.
//
// Registration is guarded for convenience, but the usual lifecycle is to
// register everything at startup and only then open contexts.
type Registry struct {
	mu        sync.RWMutex
	templates map[uint32]*Template
	programs  map[uint32]*program
	slots     int
	global    map[string]globalSlot // ScopeGlobal slots shared across templates, by field name
}

// globalSlot binds a ScopeGlobal dictionary name to its shared state slot
// and the declared type of the fields using it. The slot stores a single
// value form, so every template sharing the name must agree on type.
type globalSlot struct {
	slot int
	typ  Type
}

// NewRegistry returns an empty registry with the template-id slot reserved.
func NewRegistry() *Registry {
	return &Registry{
		templates: map[uint32]*Template{},
		programs:  map[uint32]*program{},
		slots:     1, // tidSlot
		global:    map[string]globalSlot{},
	}
}

// Register validates the template, assigns state slots to its stateful
// fields, and makes it resolvable by template id. The registry is left
// unchanged when validation fails.
func (r *Registry) Register(t *Template) error {
	if t == nil {
		return Issues{IssueAt("/", CodeBadTemplate, "nil template")}
	}
	if err := t.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.templates[t.TID]; dup {
		return Issues{{Path: "/", Code: CodeDuplicateTemplate, Offset: -1,
			Message: "template id already registered", Params: map[string]any{"tid": t.TID}}}
	}

	if err := r.checkGlobals(t.Fields, ""); err != nil {
		return err
	}

	c := compiler{reg: r}
	root := c.segment(t.Fields)
	r.templates[t.TID] = t
	r.programs[t.TID] = &program{tid: t.TID, name: t.Name, root: root}
	return nil
}

// MustRegister registers the templates and panics on the first failure.
// Intended for statically known schemas at startup.
func (r *Registry) MustRegister(ts ...*Template) {
	for _, t := range ts {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
}

// Template returns the registered template for the id.
func (r *Registry) Template(tid uint32) (*Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[tid]
	return t, ok
}

// TemplateIDs returns the registered ids in unspecified order.
func (r *Registry) TemplateIDs() []uint32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]uint32, 0, len(r.templates))
	for id := range r.templates {
		ids = append(ids, id)
	}
	return ids
}

func (r *Registry) program(tid uint32) (*program, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.programs[tid]
	return p, ok
}

func (r *Registry) slotCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.slots
}

// program is the compiled, codec-facing form of a template: fields copied
// into wire order with slot indices and presence-bit decisions resolved.
type program struct {
	tid  uint32
	name string
	root segment
}

// segment is one presence-map scope: the top level of a message, a group
// body, or one sequence entry.
type segment struct {
	instrs []instr
	bits   bool  // some instr contributes a presence bit
	resets []int // ScopeEntry slots cleared at segment start
}

type instr struct {
	field   Field
	slot    int // -1 for stateless operators
	pmapBit bool
	inner   *segment // group/sequence members
}

type compiler struct {
	reg *Registry
}

func (c *compiler) segment(fields []Field) segment {
	seg := segment{instrs: make([]instr, 0, len(fields))}
	for i := range fields {
		f := fields[i]
		in := instr{field: f, slot: -1, pmapBit: needsBit(&f)}
		if f.Op.stateful() {
			in.slot = c.slot(&f)
			if f.Scope == ScopeEntry {
				seg.resets = append(seg.resets, in.slot)
			}
		}
		if f.Type.isComposite() {
			inner := c.segment(f.Inner)
			in.inner = &inner
		}
		if in.pmapBit {
			seg.bits = true
		}
		seg.instrs = append(seg.instrs, in)
	}
	return seg
}

// checkGlobals rejects ScopeGlobal fields whose declared type disagrees
// with the type a previously registered template bound to the same
// dictionary name. Field names are unique within a template, so only the
// registry's existing bindings can conflict. The check runs before
// compilation so a rejected template leaves the registry unchanged.
func (r *Registry) checkGlobals(fields []Field, base string) error {
	for i := range fields {
		f := &fields[i]
		p := base + "/" + f.Name
		if f.Op.stateful() && f.Scope == ScopeGlobal {
			if g, ok := r.global[f.Name]; ok && g.typ != f.Type {
				return Issues{{Path: p, Code: CodeBadTemplate, Offset: -1,
					Message: "global dictionary name already bound to a different type",
					Params:  map[string]any{"name": f.Name, "bound": g.typ.String(), "got": f.Type.String()}}}
			}
		}
		if f.Type.isComposite() {
			if err := r.checkGlobals(f.Inner, p); err != nil {
				return err
			}
		}
	}
	return nil
}

// slot assigns a dense state index. ScopeGlobal fields share one slot per
// name across every template in the registry.
func (c *compiler) slot(f *Field) int {
	if f.Scope == ScopeGlobal {
		if g, ok := c.reg.global[f.Name]; ok {
			return g.slot
		}
		s := c.reg.slots
		c.reg.slots++
		c.reg.global[f.Name] = globalSlot{slot: s, typ: f.Type}
		return s
	}
	s := c.reg.slots
	c.reg.slots++
	return s
}

// needsBit encodes the presence-bit column of the operator table. Constant
// takes a bit only when optional (otherwise absence would be
// unrepresentable); Delta takes one only when optional; groups take one
// when optional; sequences signal absence through their nullable length.
func needsBit(f *Field) bool {
	if f.Type == TypeSequence {
		return false
	}
	if f.Type == TypeGroup {
		return f.Optional
	}
	switch f.Op {
	case OpNone:
		return false
	case OpConstant:
		return f.Optional
	case OpDefault, OpCopy, OpIncrement, OpTail:
		return true
	case OpDelta:
		return f.Optional
	}
	return false
}
