// Package dictionary loads template definitions from schema files and
// turns them into registrable fastwire templates. The same document shape
// is accepted as JSON, YAML or TOML:
//
//	templates:
//	  - id: 144
//	    name: MDIncRefresh
//	    fields:
//	      - { id: 34, name: MsgSeqNum, type: uint32, operator: increment }
//	      - { id: 55, name: Symbol, type: ascii, operator: copy }
//
// The package is the external dictionary-loading collaborator of the codec
// core: it only produces in-memory templates; all structural validation
// stays with Template.Validate and Registry.Register.
package dictionary

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	json "github.com/goccy/go-json"
	yaml "gopkg.in/yaml.v3"

	fastwire "github.com/reoring/fastwire"
)

// Document is the root of a template definition file.
type Document struct {
	Templates []TemplateDef `json:"templates" yaml:"templates" toml:"templates"`
}

// TemplateDef mirrors fastwire.Template in file form.
type TemplateDef struct {
	TID    uint32     `json:"id" yaml:"id" toml:"id"`
	Name   string     `json:"name" yaml:"name" toml:"name"`
	Fields []FieldDef `json:"fields" yaml:"fields" toml:"fields"`
}

// FieldDef mirrors fastwire.Field in file form. Type, Operator and Scope
// use the canonical lowercase names (uint32, copy, entry, ...); Operator
// and Scope default to none/template when omitted.
type FieldDef struct {
	ID       uint32     `json:"id" yaml:"id" toml:"id"`
	Name     string     `json:"name" yaml:"name" toml:"name"`
	Type     string     `json:"type" yaml:"type" toml:"type"`
	Operator string     `json:"operator,omitempty" yaml:"operator,omitempty" toml:"operator,omitzero"`
	Optional bool       `json:"optional,omitempty" yaml:"optional,omitempty" toml:"optional,omitzero"`
	Scope    string     `json:"scope,omitempty" yaml:"scope,omitempty" toml:"scope,omitzero"`
	Initial  any        `json:"initial,omitempty" yaml:"initial,omitempty" toml:"initial,omitzero"`
	Fields   []FieldDef `json:"fields,omitempty" yaml:"fields,omitempty" toml:"fields,omitzero"`
}

// ParseJSON parses a JSON template document.
func ParseJSON(data []byte) ([]*fastwire.Template, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fastwire.Issues{{Path: "/", Code: fastwire.CodeBadTemplate, Offset: -1,
			Message: "invalid JSON template document", Cause: err}}
	}
	return convert(&doc)
}

// ParseYAML parses a YAML template document.
func ParseYAML(data []byte) ([]*fastwire.Template, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fastwire.Issues{{Path: "/", Code: fastwire.CodeBadTemplate, Offset: -1,
			Message: "invalid YAML template document", Cause: err}}
	}
	return convert(&doc)
}

// ParseTOML parses a TOML template document.
func ParseTOML(data []byte) ([]*fastwire.Template, error) {
	var doc Document
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fastwire.Issues{{Path: "/", Code: fastwire.CodeBadTemplate, Offset: -1,
			Message: "invalid TOML template document", Cause: err}}
	}
	return convert(&doc)
}

// LoadFile parses a template document, choosing the format from the file
// extension (.json, .yaml/.yml, .toml).
func LoadFile(path string) ([]*fastwire.Template, error) {
	var parse func([]byte) ([]*fastwire.Template, error)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		parse = ParseJSON
	case ".yaml", ".yml":
		parse = ParseYAML
	case ".toml":
		parse = ParseTOML
	default:
		return nil, fastwire.Issues{fastwire.IssueAt("/", fastwire.CodeBadTemplate,
			"unrecognized template document extension "+filepath.Ext(path))}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parse(data)
}

// Load reads the template document at path and registers every template it
// defines.
func Load(r *fastwire.Registry, path string) error {
	ts, err := LoadFile(path)
	if err != nil {
		return err
	}
	for _, t := range ts {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

func convert(doc *Document) ([]*fastwire.Template, error) {
	out := make([]*fastwire.Template, 0, len(doc.Templates))
	for i := range doc.Templates {
		td := &doc.Templates[i]
		base := "/" + td.Name
		fields, err := convertFields(td.Fields, base)
		if err != nil {
			return nil, err
		}
		out = append(out, &fastwire.Template{TID: td.TID, Name: td.Name, Fields: fields})
	}
	return out, nil
}

func convertFields(defs []FieldDef, base string) ([]fastwire.Field, error) {
	fields := make([]fastwire.Field, 0, len(defs))
	for i := range defs {
		fd := &defs[i]
		p := base + "/" + fd.Name
		t, ok := parseType(fd.Type)
		if !ok {
			return nil, fastwire.Issues{fastwire.IssueAt(p, fastwire.CodeBadTemplate, "unknown field type "+strconv.Quote(fd.Type))}
		}
		op, ok := parseOperator(fd.Operator)
		if !ok {
			return nil, fastwire.Issues{fastwire.IssueAt(p, fastwire.CodeBadTemplate, "unknown operator "+strconv.Quote(fd.Operator))}
		}
		scope, ok := parseScope(fd.Scope)
		if !ok {
			return nil, fastwire.Issues{fastwire.IssueAt(p, fastwire.CodeBadTemplate, "unknown scope "+strconv.Quote(fd.Scope))}
		}
		f := fastwire.Field{ID: fd.ID, Name: fd.Name, Type: t, Op: op, Optional: fd.Optional, Scope: scope}
		if fd.Initial != nil {
			iv, err := coerceInitial(t, fd.Initial)
			if err != nil {
				return nil, fastwire.Issues{fastwire.IssueAt(p, fastwire.CodeInvalidType,
					fmt.Sprintf("initial value %v does not fit type %s", fd.Initial, t))}
			}
			f.Initial = iv
		}
		if len(fd.Fields) > 0 {
			inner, err := convertFields(fd.Fields, p)
			if err != nil {
				return nil, err
			}
			f.Inner = inner
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func parseType(s string) (fastwire.Type, bool) {
	switch s {
	case "uint32":
		return fastwire.TypeUInt32, true
	case "int32":
		return fastwire.TypeInt32, true
	case "uint64":
		return fastwire.TypeUInt64, true
	case "int64":
		return fastwire.TypeInt64, true
	case "decimal":
		return fastwire.TypeDecimal, true
	case "ascii":
		return fastwire.TypeASCIIString, true
	case "unicode":
		return fastwire.TypeUnicodeString, true
	case "bytes":
		return fastwire.TypeByteVector, true
	case "group":
		return fastwire.TypeGroup, true
	case "sequence":
		return fastwire.TypeSequence, true
	}
	return 0, false
}

func parseOperator(s string) (fastwire.Operator, bool) {
	switch s {
	case "", "none":
		return fastwire.OpNone, true
	case "constant":
		return fastwire.OpConstant, true
	case "default":
		return fastwire.OpDefault, true
	case "copy":
		return fastwire.OpCopy, true
	case "increment":
		return fastwire.OpIncrement, true
	case "delta":
		return fastwire.OpDelta, true
	case "tail":
		return fastwire.OpTail, true
	}
	return 0, false
}

func parseScope(s string) (fastwire.Scope, bool) {
	switch s {
	case "", "template":
		return fastwire.ScopeTemplate, true
	case "entry":
		return fastwire.ScopeEntry, true
	case "global":
		return fastwire.ScopeGlobal, true
	}
	return 0, false
}

// coerceInitial narrows the decoder-provided value (float64 from JSON,
// int from YAML, int64 from TOML, ...) to the Go type the field declares.
func coerceInitial(t fastwire.Type, v any) (any, error) {
	switch t {
	case fastwire.TypeUInt32:
		n, ok := toInt64(v)
		if !ok || n < 0 || n > math.MaxUint32 {
			return nil, errBadInitial
		}
		return uint32(n), nil
	case fastwire.TypeInt32:
		n, ok := toInt64(v)
		if !ok || n < math.MinInt32 || n > math.MaxInt32 {
			return nil, errBadInitial
		}
		return int32(n), nil
	case fastwire.TypeUInt64:
		switch x := v.(type) {
		case uint64:
			return x, nil
		case uint:
			return uint64(x), nil
		}
		n, ok := toInt64(v)
		if !ok || n < 0 {
			return nil, errBadInitial
		}
		return uint64(n), nil
	case fastwire.TypeInt64:
		n, ok := toInt64(v)
		if !ok {
			return nil, errBadInitial
		}
		return n, nil
	case fastwire.TypeDecimal:
		m, ok := v.(map[string]any)
		if !ok {
			return nil, errBadInitial
		}
		mant, ok1 := toInt64(m["mantissa"])
		exp, ok2 := toInt64(m["exponent"])
		if !ok1 || !ok2 || !fitsInt32(exp) {
			return nil, errBadInitial
		}
		return fastwire.Decimal{Mantissa: mant, Exponent: int32(exp)}, nil
	case fastwire.TypeASCIIString, fastwire.TypeUnicodeString:
		s, ok := v.(string)
		if !ok {
			return nil, errBadInitial
		}
		return s, nil
	case fastwire.TypeByteVector:
		s, ok := v.(string)
		if !ok {
			return nil, errBadInitial
		}
		return []byte(s), nil
	}
	return nil, errBadInitial
}

var errBadInitial = fmt.Errorf("dictionary: initial value does not fit declared type")

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint64:
		if x > math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	case float64:
		if x != math.Trunc(x) || x < math.MinInt64 || x >= math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	case json.Number:
		n, err := x.Int64()
		return n, err == nil
	}
	return 0, false
}

func fitsInt32(v int64) bool { return v >= math.MinInt32 && v <= math.MaxInt32 }

