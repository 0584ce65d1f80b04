package jsongate

import (
	"fmt"
	"strconv"
	"strings"

	eng "github.com/reoring/jsongate/internal/engine"
)

// Limits bounds the structure of ingested documents. The zero value is
// unbounded in every dimension. Limits is an immutable value; copies are
// safe to share between goroutines.
type Limits struct {
	maxStringLength int
	maxChildren     int
	maxDepth        int
}

// LimitOption sets one bound on Limits.
type LimitOption func(*limitSpec)

type limitSpec struct {
	name  string
	value int
	set   func(*Limits, int)
}

// MaxStringLength bounds the number of Unicode code points in any object key
// or string value.
func MaxStringLength(n int) LimitOption {
	return func(s *limitSpec) {
		*s = limitSpec{name: "max string length", value: n, set: func(l *Limits, v int) { l.maxStringLength = v }}
	}
}

// MaxChildren bounds the number of members of any object and elements of
// any array.
func MaxChildren(n int) LimitOption {
	return func(s *limitSpec) {
		*s = limitSpec{name: "max children", value: n, set: func(l *Limits, v int) { l.maxChildren = v }}
	}
}

// MaxDepth bounds the nesting of objects and arrays. A top-level container
// has depth 1.
func MaxDepth(n int) LimitOption {
	return func(s *limitSpec) {
		*s = limitSpec{name: "max depth", value: n, set: func(l *Limits, v int) { l.maxDepth = v }}
	}
}

// NewLimits builds Limits from opts. Dimensions without an option stay
// unbounded; unbounded is expressed by omission, so a value <= 0 is rejected
// with an error matching ErrInvalidLimit.
func NewLimits(opts ...LimitOption) (Limits, error) {
	var l Limits
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		var s limitSpec
		opt(&s)
		if s.value <= 0 {
			return Limits{}, &Error{Kind: KindInvalidLimit, Message: fmt.Sprintf("%s must be positive, got %d (omit the option for unbounded)", s.name, s.value)}
		}
		s.set(&l, s.value)
	}
	return l, nil
}

// MustLimits is like NewLimits but panics on error. It is meant for
// constants in tests and program initialization.
func MustLimits(opts ...LimitOption) Limits {
	l, err := NewLimits(opts...)
	if err != nil {
		panic(err)
	}
	return l
}

// Unbounded returns Limits without any bound, for input that is already
// trusted.
func Unbounded() Limits { return Limits{} }

// StringLength returns the string length bound, if any.
func (l Limits) StringLength() (int, bool) { return l.maxStringLength, l.maxStringLength > 0 }

// Children returns the children-per-container bound, if any.
func (l Limits) Children() (int, bool) { return l.maxChildren, l.maxChildren > 0 }

// Depth returns the nesting depth bound, if any.
func (l Limits) Depth() (int, bool) { return l.maxDepth, l.maxDepth > 0 }

// IsUnbounded reports whether no dimension is bounded.
func (l Limits) IsUnbounded() bool { return l == Limits{} }

func (l Limits) String() string {
	part := func(name string, v int) string {
		if v <= 0 {
			return name + "=unbounded"
		}
		return name + "=" + strconv.Itoa(v)
	}
	return strings.Join([]string{
		part("max_string_length", l.maxStringLength),
		part("max_children", l.maxChildren),
		part("max_depth", l.maxDepth),
	}, " ")
}

func (l Limits) engine() eng.Limits {
	return eng.Limits{MaxStringLength: l.maxStringLength, MaxChildren: l.maxChildren, MaxDepth: l.maxDepth}
}
