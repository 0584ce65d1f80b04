package jsongate

import (
	"errors"
	"fmt"
	"strings"

	eng "github.com/reoring/jsongate/internal/engine"
)

// Kind classifies an ingestion failure.
type Kind int

const (
	KindMalformed Kind = iota + 1
	KindLimitExceeded
	KindEmptyOrNonObjectDocument
	KindSchemaViolation
	KindReadFailed
	// KindValidatorFailed means the validator itself failed (for example an
	// unusable schema) rather than rejecting the document.
	KindValidatorFailed
	KindInvalidLimit
	KindInvalidConfig
)

func (k Kind) String() string {
	switch k {
	case KindMalformed:
		return "Malformed"
	case KindLimitExceeded:
		return "LimitExceeded"
	case KindEmptyOrNonObjectDocument:
		return "EmptyOrNonObjectDocument"
	case KindSchemaViolation:
		return "SchemaViolation"
	case KindReadFailed:
		return "ReadFailed"
	case KindValidatorFailed:
		return "ValidatorFailed"
	case KindInvalidLimit:
		return "InvalidLimit"
	case KindInvalidConfig:
		return "InvalidConfig"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// LimitKind identifies which structural limit a document violated.
type LimitKind = eng.LimitKind

const (
	StringTooLong   = eng.LimitStringLength
	TooManyChildren = eng.LimitChildren
	TooDeep         = eng.LimitDepth
)

// Error codes. Limit failures use the code of their LimitKind instead of
// CodeLimitExceeded.
const (
	CodeMalformed                = "malformed"
	CodeStringTooLong            = "string_too_long"
	CodeTooManyChildren          = "too_many_children"
	CodeTooDeep                  = "too_deep"
	CodeLimitExceeded            = "limit_exceeded"
	CodeEmptyOrNonObjectDocument = "empty_or_non_object_document"
	CodeSchemaViolation          = "schema_violation"
	CodeReadFailed               = "read_failed"
	CodeValidatorFailed          = "validator_failed"
	CodeInvalidLimit             = "invalid_limit"
	CodeInvalidConfig            = "invalid_config"
)

// Sentinels for errors.Is. Any *Error matches the sentinel of its Kind.
var (
	ErrMalformed                = &Error{Kind: KindMalformed}
	ErrLimitExceeded            = &Error{Kind: KindLimitExceeded}
	ErrEmptyOrNonObjectDocument = &Error{Kind: KindEmptyOrNonObjectDocument}
	ErrSchemaViolation          = &Error{Kind: KindSchemaViolation}
	ErrReadFailed               = &Error{Kind: KindReadFailed}
	ErrValidatorFailed          = &Error{Kind: KindValidatorFailed}
	ErrInvalidLimit             = &Error{Kind: KindInvalidLimit}
	ErrInvalidConfig            = &Error{Kind: KindInvalidConfig}
)

// Error is the single classified failure returned by Parse, Select and the
// Pipeline. Fields that do not apply to the Kind are left zero.
type Error struct {
	Kind Kind
	// Limit, Max and Actual are set for KindLimitExceeded.
	Limit  LimitKind
	Max    int
	Actual int
	// Offset, Line and Column locate the failure in the input for
	// KindMalformed, KindLimitExceeded and KindReadFailed.
	Offset int64
	Line   int
	Column int
	// Path is the JSON Pointer of the offending location, when known.
	Path string
	// Issues is set for KindSchemaViolation.
	Issues  Issues
	Message string
	Cause   error
}

func (e *Error) Error() string {
	b := &strings.Builder{}
	b.WriteString(e.Code())
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	switch e.Kind {
	case KindLimitExceeded:
		fmt.Fprintf(b, " (max %d, got %d) at %s", e.Max, e.Actual, e.Path)
	case KindSchemaViolation:
		if len(e.Issues) > 0 {
			b.WriteString(": ")
			b.WriteString(e.Issues.Error())
		}
	}
	if e.Line > 0 {
		fmt.Fprintf(b, " [line %d, column %d, offset %d]", e.Line, e.Column, e.Offset)
	}
	if e.Cause != nil && e.Message == "" && e.Kind != KindSchemaViolation {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Code returns the stable code string of the failure.
func (e *Error) Code() string {
	switch e.Kind {
	case KindMalformed:
		return CodeMalformed
	case KindLimitExceeded:
		if e.Limit != 0 {
			return e.Limit.Code()
		}
		return CodeLimitExceeded
	case KindEmptyOrNonObjectDocument:
		return CodeEmptyOrNonObjectDocument
	case KindSchemaViolation:
		return CodeSchemaViolation
	case KindReadFailed:
		return CodeReadFailed
	case KindValidatorFailed:
		return CodeValidatorFailed
	case KindInvalidLimit:
		return CodeInvalidLimit
	case KindInvalidConfig:
		return CodeInvalidConfig
	default:
		return "unknown"
	}
}

// Is matches sentinels by Kind. A sentinel with a Limit set additionally
// requires the same LimitKind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Limit == 0 || t.Limit == e.Limit
}

func (e *Error) Unwrap() error {
	if e.Kind == KindSchemaViolation && e.Cause == nil && len(e.Issues) > 0 {
		return e.Issues
	}
	return e.Cause
}

// KindOf returns the Kind of err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// Issue is one structured schema violation.
type Issue struct {
	Path    string // JSON Pointer of the offending instance (for example: /items/2/price).
	Keyword string // JSON Pointer into the schema of the failing keyword.
	// SchemaLocation is the absolute keyword location, when the validator
	// reports one.
	SchemaLocation string
	Message        string
	// Params carries structured parameters for i18n and observability.
	Params map[string]any
}

// Issues is a collection of schema violations that implements error.
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
		// e.g. /required at /Request
		fmt.Fprintf(b, "%s at %s", it.Keyword, it.Path)
		if it.Message != "" {
			b.WriteString(": ")
			b.WriteString(it.Message)
		}
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

// classify turns an engine error into a classified *Error.
func classify(err error) *Error {
	if err == nil {
		return nil
	}
	var (
		se *eng.SyntaxError
		le *eng.LimitError
		re *eng.ReadError
		ge *Error
	)
	switch {
	case errors.As(err, &ge):
		return ge
	case errors.As(err, &se):
		return &Error{Kind: KindMalformed, Message: se.Msg, Offset: se.Offset, Line: se.Line, Column: se.Column, Cause: err}
	case errors.As(err, &le):
		return &Error{
			Kind: KindLimitExceeded, Limit: le.Kind, Max: le.Max, Actual: le.Actual, Path: le.Path,
			Offset: le.Offset, Line: le.Line, Column: le.Column, Cause: err,
		}
	case errors.As(err, &re):
		return &Error{Kind: KindReadFailed, Offset: re.Offset, Line: re.Line, Column: re.Column, Cause: re.Err}
	default:
		return &Error{Kind: KindReadFailed, Cause: err}
	}
}
