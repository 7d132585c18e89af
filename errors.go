package fastwire

import (
	"errors"
	"fmt"
	"strings"
)

// Issue codes (exported consts for IDE completion and type safety by convention)
const (
	// Codec-time codes. Decode and Encode fail with these and leave the
	// stream Context untouched.
	CodeMalformedInteger = "malformed_integer" // stop-bit run overflows the target width
	CodePresenceMap      = "presence_map"      // presence map byte run never terminates
	CodeOperatorState    = "operator_state"    // Copy/Increment/Tail with no usable prior state
	CodeTruncated        = "truncated"         // buffer exhausted mid-field
	CodeSchemaMismatch   = "schema_mismatch"   // unknown template id
	CodeTrailingBytes    = "trailing_bytes"    // bytes left over after a complete message
	CodeAbsentMandatory  = "absent_mandatory"  // mandatory field carries no value
	CodeInvalidType      = "invalid_type"      // value does not match the field's declared type
	CodeOverflow         = "overflow"          // operator arithmetic leaves the representable range
	CodeLimitExceeded    = "limit_exceeded"    // DecodeOpt resource bound hit

	// Registration-time codes. A registry that rejected a template must not
	// be used for message processing.
	CodeUnsupportedOperator = "unsupported_operator" // operator paired with an incompatible type
	CodeDuplicateField      = "duplicate_field"
	CodeDuplicateTemplate   = "duplicate_template"
	CodeMissingInitial      = "missing_initial" // Constant/Default without a schema value
	CodeBadTemplate         = "bad_template"
)

// Issue represents a single codec or registration error entry.
type Issue struct {
	Path    string // Slash pointer over template/field names (for example: /MDEntries/2/Price).
	Code    string // One of the codes listed above.
	Message string
	Cause   error // Optional: underlying error.
	Offset  int64 // Byte offset in the wire buffer (-1 when unknown or encoding).
	// Params carries structured parameters (e.g., {"tid":144, "got":42})
	// for observability.
	Params map[string]any
}

// Issues is a collection of codec errors that implements error.
type Issues []Issue

// Error summarizes the first few issues.
func (iss Issues) Error() string {
	if len(iss) == 0 {
		return ""
	}
	const maxShown = 3
	b := &strings.Builder{}
	n := len(iss)
	lim := n
	if lim > maxShown {
		lim = maxShown
	}
	for i := 0; i < lim; i++ {
		if i > 0 {
			b.WriteString("; ")
		}
		it := iss[i]
		// e.g. operator_state at /Price
		fmt.Fprintf(b, "%s at %s", it.Code, it.Path)
	}
	if n > lim {
		fmt.Fprintf(b, "; ... (total %d)", n)
	}
	return b.String()
}

// AppendIssues appends issues to the destination, initializing the slice when
// needed.
func AppendIssues(dst Issues, more ...Issue) Issues {
	if dst == nil {
		dst = Issues{}
	}
	dst = append(dst, more...)
	return dst
}

// AsIssues extracts Issues from an error using errors.As internally.
func AsIssues(err error) (Issues, bool) {
	if err == nil {
		return nil, false
	}
	var iss Issues
	if errors.As(err, &iss) {
		return iss, true
	}
	return nil, false
}

// HasCode reports whether err carries an Issue with the given code.
func HasCode(err error, code string) bool {
	iss, ok := AsIssues(err)
	if !ok {
		return false
	}
	for _, it := range iss {
		if it.Code == code {
			return true
		}
	}
	return false
}

// IssueAt creates an Issue at the given path with the provided code and message.
// This is a convenience helper to improve readability at call sites.
func IssueAt(path, code, msg string) Issue {
	return Issue{Path: path, Code: code, Message: msg, Offset: -1}
}

func issuef(path, code string, off int64, format string, args ...any) Issues {
	return Issues{{Path: path, Code: code, Message: fmt.Sprintf(format, args...), Offset: off}}
}

func wrapIssue(path, code string, off int64, cause error, msg string) Issues {
	return Issues{{Path: path, Code: code, Message: msg, Cause: cause, Offset: off}}
}
