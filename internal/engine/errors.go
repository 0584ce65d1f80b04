package engine

import (
	"fmt"
	"strconv"
)

// LimitKind identifies the structural bound a document violated.
type LimitKind int

const (
	LimitStringLength LimitKind = iota + 1
	LimitChildren
	LimitDepth
)

func (k LimitKind) String() string {
	switch k {
	case LimitStringLength:
		return "StringTooLong"
	case LimitChildren:
		return "TooManyChildren"
	case LimitDepth:
		return "TooDeep"
	default:
		return "LimitKind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Code returns the stable snake_case code for k.
func (k LimitKind) Code() string {
	switch k {
	case LimitStringLength:
		return "string_too_long"
	case LimitChildren:
		return "too_many_children"
	case LimitDepth:
		return "too_deep"
	default:
		return "limit_exceeded"
	}
}

// Position locates a byte in the input. Offset is zero-based; Line and Column
// are one-based, Column counting bytes.
type Position struct {
	Offset int64
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("line %d, column %d (offset %d)", p.Line, p.Column, p.Offset)
}

// SyntaxError reports input that is not valid JSON.
type SyntaxError struct {
	Position
	Msg string
}

func (e *SyntaxError) Error() string { return e.Msg + " at " + e.Position.String() }

// LimitError reports a violated structural limit. Actual is the size, count or
// depth observed at the moment the limit was crossed, i.e. Max+1.
type LimitError struct {
	Position
	Kind   LimitKind
	Max    int
	Actual int
	// Path is the JSON Pointer of the offending container or string.
	Path string
}

func (e *LimitError) Error() string {
	var what string
	switch e.Kind {
	case LimitStringLength:
		what = "string length"
	case LimitChildren:
		what = "number of children"
	case LimitDepth:
		what = "nesting depth"
	default:
		what = "limit"
	}
	return fmt.Sprintf("%s %d exceeds maximum %d at %s (%s)", what, e.Actual, e.Max, e.Path, e.Position)
}

// ReadError wraps a failure of the underlying reader.
type ReadError struct {
	Position
	Err error
}

func (e *ReadError) Error() string { return "read failed at offset " + strconv.FormatInt(e.Offset, 10) + ": " + e.Err.Error() }

func (e *ReadError) Unwrap() error { return e.Err }
