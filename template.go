package fastwire

import "strconv"

// Field describes one entry of a template: identifier, declared type,
// operator, presence and state scope. For Constant and Default operators
// Initial carries the schema-supplied value; for Group and Sequence types
// Inner carries the nested field list in wire order.
//
// Fields are plain data so that external dictionary loaders and generated
// code can construct them directly; all structural rules are enforced at
// registration time, never during encode or decode.
type Field struct {
	ID       uint32
	Name     string
	Type     Type
	Op       Operator
	Optional bool
	Scope    Scope
	Initial  any
	Inner    []Field
}

// Template is a named, ordered schema describing one message type. Field
// order is significant and fixed. A template must be treated as immutable
// once registered.
type Template struct {
	TID    uint32
	Name   string
	Fields []Field
}

// Validate checks the template against the structural rules of the
// encoding without touching any registry: non-zero template id, unique
// field ids and names, operator/type compatibility, and schema values
// where the operator requires one. It returns Issues describing every
// defect found.
func (t *Template) Validate() error {
	var iss Issues
	if t.TID == 0 {
		iss = AppendIssues(iss, IssueAt("/", CodeBadTemplate, "template id must be non-zero"))
	}
	if t.Name == "" {
		iss = AppendIssues(iss, IssueAt("/", CodeBadTemplate, "template name must not be empty"))
	}
	if len(t.Fields) == 0 {
		iss = AppendIssues(iss, IssueAt("/", CodeBadTemplate, "template declares no fields"))
	}
	seenID := map[uint32]string{}
	seenName := map[string]bool{}
	iss = validateFields(iss, t.Fields, "", seenID, seenName)
	if len(iss) > 0 {
		return iss
	}
	return nil
}

func validateFields(iss Issues, fields []Field, base string, seenID map[uint32]string, seenName map[string]bool) Issues {
	for i := range fields {
		f := &fields[i]
		p := base + "/" + f.Name
		if f.Name == "" {
			p = base + "/#" + strconv.FormatUint(uint64(f.ID), 10)
			iss = AppendIssues(iss, IssueAt(p, CodeBadTemplate, "field name must not be empty"))
		}
		if f.ID == 0 {
			iss = AppendIssues(iss, IssueAt(p, CodeBadTemplate, "field id must be non-zero"))
		}
		if prev, dup := seenID[f.ID]; dup {
			iss = AppendIssues(iss, Issue{Path: p, Code: CodeDuplicateField, Offset: -1,
				Message: "field id already used", Params: map[string]any{"id": f.ID, "first": prev}})
		} else {
			seenID[f.ID] = p
		}
		if seenName[f.Name] {
			iss = AppendIssues(iss, IssueAt(p, CodeDuplicateField, "field name already used"))
		} else if f.Name != "" {
			seenName[f.Name] = true
		}

		iss = validateOperator(iss, f, p)

		if f.Type.isComposite() {
			if len(f.Inner) == 0 {
				iss = AppendIssues(iss, IssueAt(p, CodeBadTemplate, f.Type.String()+" declares no inner fields"))
			}
			iss = validateFields(iss, f.Inner, p, seenID, seenName)
		} else if len(f.Inner) != 0 {
			iss = AppendIssues(iss, IssueAt(p, CodeBadTemplate, "inner fields only valid for group/sequence"))
		}
	}
	return iss
}

// validateOperator enforces the operator/type compatibility table.
func validateOperator(iss Issues, f *Field, p string) Issues {
	switch f.Op {
	case OpNone:
		if f.Initial != nil {
			iss = AppendIssues(iss, IssueAt(p, CodeBadTemplate, "initial value only valid for constant/default"))
		}
	case OpConstant, OpDefault:
		if f.Type.isComposite() {
			return AppendIssues(iss, IssueAt(p, CodeUnsupportedOperator, f.Op.String()+" not valid on "+f.Type.String()))
		}
		if f.Initial == nil {
			return AppendIssues(iss, IssueAt(p, CodeMissingInitial, f.Op.String()+" requires a schema-supplied value"))
		}
		if _, err := normalize(f, f.Initial); err != nil {
			iss = AppendIssues(iss, IssueAt(p, CodeInvalidType, "initial value does not match declared type "+f.Type.String()))
		}
	case OpCopy:
		if f.Type.isComposite() {
			iss = AppendIssues(iss, IssueAt(p, CodeUnsupportedOperator, "copy not valid on "+f.Type.String()))
		}
	case OpIncrement:
		if !f.Type.isInteger() {
			iss = AppendIssues(iss, IssueAt(p, CodeUnsupportedOperator, "increment only valid on integer types, got "+f.Type.String()))
		}
	case OpDelta:
		if f.Type.isComposite() {
			iss = AppendIssues(iss, IssueAt(p, CodeUnsupportedOperator, "delta not valid on "+f.Type.String()))
		}
	case OpTail:
		if !f.Type.isBytes() {
			iss = AppendIssues(iss, IssueAt(p, CodeUnsupportedOperator, "tail only valid on string/byte-vector types, got "+f.Type.String()))
		}
	default:
		iss = AppendIssues(iss, IssueAt(p, CodeUnsupportedOperator, "unknown operator"))
	}
	if f.Op != OpConstant && f.Op != OpDefault && f.Op != OpNone && f.Initial != nil {
		iss = AppendIssues(iss, IssueAt(p, CodeBadTemplate, "initial value only valid for constant/default"))
	}
	return iss
}
