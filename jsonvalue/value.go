// Package jsonvalue holds the in-memory JSON tree produced by the bounded
// parser. Objects keep their members in first-seen order so callers can ask
// for the first top-level key; numbers keep their literal text so no
// precision is lost between parsing and re-encoding.
package jsonvalue

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Kind enumerates JSON value kinds.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is an immutable JSON value. The zero Value is JSON null.
type Value struct {
	kind    Kind
	b       bool
	text    string // string contents or number literal
	items   []Value
	members []Member
}

// Member is a single key/value pair of an object.
type Member struct {
	Key   string
	Value Value
}

// Null returns the JSON null value.
func Null() Value { return Value{} }

// Bool returns a JSON boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number returns a JSON number from its literal text. The text is not
// re-validated; use it with literals that already follow the JSON grammar.
func Number(text string) Value { return Value{kind: KindNumber, text: text} }

// Int returns a JSON number for an integer.
func Int(i int64) Value { return Number(strconv.FormatInt(i, 10)) }

// Float returns a JSON number for a finite float. NaN and infinities have no
// JSON representation and become null.
func Float(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Null()
	}
	return Number(strconv.FormatFloat(f, 'g', -1, 64))
}

// String returns a JSON string.
func String(s string) Value { return Value{kind: KindString, text: s} }

// Array returns a JSON array holding a copy of items.
func Array(items ...Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: KindArray, items: cp}
}

// Object returns a JSON object with the given members. A repeated key
// replaces the earlier value and keeps the position of its first appearance.
func Object(members ...Member) Value {
	b := NewObjectBuilder(len(members))
	for _, m := range members {
		b.Set(m.Key, m.Value)
	}
	return b.Build()
}

// Kind reports the kind of v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is JSON null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean held by v.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsString returns the string held by v.
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.text, true
}

// NumberText returns the literal text of a number.
func (v Value) NumberText() (string, bool) {
	if v.kind != KindNumber {
		return "", false
	}
	return v.text, true
}

// Float64 converts a number to float64.
func (v Value) Float64() (float64, error) {
	if v.kind != KindNumber {
		return 0, fmt.Errorf("jsonvalue: %s is not a number", v.kind)
	}
	return strconv.ParseFloat(v.text, 64)
}

// Int64 converts an integral number to int64.
func (v Value) Int64() (int64, error) {
	if v.kind != KindNumber {
		return 0, fmt.Errorf("jsonvalue: %s is not a number", v.kind)
	}
	return strconv.ParseInt(v.text, 10, 64)
}

// Len returns the number of immediate children of an array or object, and 0
// for every other kind.
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.items)
	case KindObject:
		return len(v.members)
	default:
		return 0
	}
}

// Index returns the i-th element of an array.
func (v Value) Index(i int) (Value, bool) {
	if v.kind != KindArray || i < 0 || i >= len(v.items) {
		return Value{}, false
	}
	return v.items[i], true
}

// Items returns the elements of an array. The slice must not be modified.
func (v Value) Items() []Value {
	if v.kind != KindArray {
		return nil
	}
	return v.items
}

// Members returns the members of an object in first-seen order. The slice
// must not be modified.
func (v Value) Members() []Member {
	if v.kind != KindObject {
		return nil
	}
	return v.members
}

// Keys returns the keys of an object in first-seen order.
func (v Value) Keys() []string {
	if v.kind != KindObject {
		return nil
	}
	keys := make([]string, len(v.members))
	for i, m := range v.members {
		keys[i] = m.Key
	}
	return keys
}

// Get looks up key in an object.
func (v Value) Get(key string) (Value, bool) {
	for _, m := range v.Members() {
		if m.Key == key {
			return m.Value, true
		}
	}
	return Value{}, false
}

// FirstKey returns the first key of an object in document order. It reports
// false for non-objects and for the empty object.
func (v Value) FirstKey() (string, bool) {
	if v.kind != KindObject || len(v.members) == 0 {
		return "", false
	}
	return v.members[0].Key, true
}

// Interface projects v onto the generic tree produced by encoding/json with
// UseNumber: map[string]any, []any, string, json.Number, bool and nil.
// The projection walks an explicit stack, so any nesting depth is safe.
func (v Value) Interface() any {
	if out, ok := v.scalarInterface(); ok {
		return out
	}
	stack := []projection{newProjection(v)}
	for {
		top := &stack[len(stack)-1]
		if top.next < top.v.Len() {
			child := top.child(top.next)
			top.next++
			if out, ok := child.scalarInterface(); ok {
				top.set(top.next-1, out)
				continue
			}
			stack = append(stack, newProjection(child))
			continue
		}
		out := top.result()
		stack = stack[:len(stack)-1]
		if len(stack) == 0 {
			return out
		}
		parent := &stack[len(stack)-1]
		parent.set(parent.next-1, out)
	}
}

func (v Value) scalarInterface() (any, bool) {
	switch v.kind {
	case KindNull:
		return nil, true
	case KindBool:
		return v.b, true
	case KindNumber:
		return json.Number(v.text), true
	case KindString:
		return v.text, true
	}
	return nil, false
}

// projection is a container whose generic form is being filled in.
type projection struct {
	v    Value
	next int
	arr  []any
	obj  map[string]any
}

func newProjection(v Value) projection {
	if v.kind == KindArray {
		return projection{v: v, arr: make([]any, len(v.items))}
	}
	return projection{v: v, obj: make(map[string]any, len(v.members))}
}

func (p *projection) child(i int) Value {
	if p.v.kind == KindArray {
		return p.v.items[i]
	}
	return p.v.members[i].Value
}

func (p *projection) set(i int, out any) {
	if p.v.kind == KindArray {
		p.arr[i] = out
		return
	}
	p.obj[p.v.members[i].Key] = out
}

func (p *projection) result() any {
	if p.v.kind == KindArray {
		return p.arr
	}
	return p.obj
}

// ArrayBuilder accumulates array elements. Build hands the elements over
// without copying them.
type ArrayBuilder struct {
	items []Value
}

// Append adds an element.
func (b *ArrayBuilder) Append(v Value) { b.items = append(b.items, v) }

// Len returns the number of elements added so far.
func (b *ArrayBuilder) Len() int { return len(b.items) }

// Build returns the array. The builder must not be used afterwards.
func (b *ArrayBuilder) Build() Value {
	items := b.items
	if items == nil {
		items = []Value{}
	}
	b.items = nil
	return Value{kind: KindArray, items: items}
}

// ObjectBuilder accumulates object members while tracking key uniqueness.
type ObjectBuilder struct {
	members []Member
	index   map[string]int
}

// NewObjectBuilder returns a builder sized for hint members.
func NewObjectBuilder(hint int) *ObjectBuilder {
	if hint < 0 {
		hint = 0
	}
	return &ObjectBuilder{members: make([]Member, 0, hint)}
}

// Has reports whether key was already added.
func (b *ObjectBuilder) Has(key string) bool {
	_, ok := b.index[key]
	return ok
}

// Len returns the number of members added so far.
func (b *ObjectBuilder) Len() int { return len(b.members) }

// Add appends a member. It reports false, leaving the builder unchanged, when
// key is already present.
func (b *ObjectBuilder) Add(key string, v Value) bool {
	if b.Has(key) {
		return false
	}
	if b.index == nil {
		b.index = make(map[string]int)
	}
	b.index[key] = len(b.members)
	b.members = append(b.members, Member{Key: key, Value: v})
	return true
}

// Set adds or replaces a member, keeping the first position of key.
func (b *ObjectBuilder) Set(key string, v Value) {
	if i, ok := b.index[key]; ok {
		b.members[i].Value = v
		return
	}
	b.Add(key, v)
}

// Build returns the object. The builder must not be used afterwards.
func (b *ObjectBuilder) Build() Value {
	members := b.members
	if members == nil {
		members = []Member{}
	}
	b.members, b.index = nil, nil
	return Value{kind: KindObject, members: members}
}
