package jsonvalue

import (
	"io"
	"strconv"

	gojson "github.com/goccy/go-json"
)

// AppendJSON appends the canonical compact encoding of v to dst.
// The encoding is not byte-for-byte faithful to the parsed input (whitespace
// is dropped and escapes are normalized) but parsing it again yields a value
// Equal to v. Containers are walked with an explicit stack, so any nesting
// depth is safe.
func (v Value) AppendJSON(dst []byte) []byte {
	var stack []encodeFrame
	cur := v
	for {
		switch cur.kind {
		case KindNull:
			dst = append(dst, "null"...)
		case KindBool:
			dst = strconv.AppendBool(dst, cur.b)
		case KindNumber:
			dst = append(dst, cur.text...)
		case KindString:
			dst = appendString(dst, cur.text)
		case KindArray:
			dst = append(dst, '[')
			if len(cur.items) > 0 {
				stack = append(stack, encodeFrame{items: cur.items, next: 1})
				cur = cur.items[0]
				continue
			}
			dst = append(dst, ']')
		case KindObject:
			dst = append(dst, '{')
			if len(cur.members) > 0 {
				m := cur.members[0]
				dst = appendString(dst, m.Key)
				dst = append(dst, ':')
				stack = append(stack, encodeFrame{members: cur.members, next: 1})
				cur = m.Value
				continue
			}
			dst = append(dst, '}')
		default:
			dst = append(dst, "null"...)
		}

		// cur is written; close finished containers until one has more children.
		for {
			if len(stack) == 0 {
				return dst
			}
			top := &stack[len(stack)-1]
			if top.members != nil {
				if top.next < len(top.members) {
					m := top.members[top.next]
					top.next++
					dst = append(dst, ',')
					dst = appendString(dst, m.Key)
					dst = append(dst, ':')
					cur = m.Value
					break
				}
				dst = append(dst, '}')
			} else {
				if top.next < len(top.items) {
					cur = top.items[top.next]
					top.next++
					dst = append(dst, ',')
					break
				}
				dst = append(dst, ']')
			}
			stack = stack[:len(stack)-1]
		}
	}
}

// encodeFrame is a non-empty container being written; next is the index of
// the child to write after the current one.
type encodeFrame struct {
	items   []Value
	members []Member
	next    int
}

// Encode writes the canonical encoding of v to w.
func (v Value) Encode(w io.Writer) error {
	_, err := w.Write(v.AppendJSON(nil))
	return err
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) { return v.AppendJSON(nil), nil }

// String returns the canonical encoding of v.
func (v Value) String() string { return string(v.AppendJSON(nil)) }

func appendString(dst []byte, s string) []byte {
	// Marshaling a Go string cannot fail.
	b, _ := gojson.MarshalNoEscape(s)
	return append(dst, b...)
}
