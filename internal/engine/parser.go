package engine

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/reoring/jsongate/jsonvalue"
)

// Limits bounds the structure of a parsed document. A zero field disables
// that particular check.
type Limits struct {
	MaxStringLength int // code points per key or string value
	MaxChildren     int // members per object, elements per array
	MaxDepth        int // nesting of objects and arrays; the top-level container is depth 1
}

// Parse reads exactly one JSON value from r, enforcing lim while reading.
// The returned error is a *SyntaxError, *LimitError or *ReadError.
//
// Open containers live on a heap-allocated stack, so nesting depth is bounded
// by lim.MaxDepth or by memory, never by the goroutine stack.
func Parse(r io.Reader, lim Limits) (jsonvalue.Value, error) {
	p := &parser{s: newScanner(r), lim: lim}
	v, err := p.parseDocument()
	if err != nil {
		return jsonvalue.Value{}, err
	}
	if err := p.s.skipSpace(); err != nil {
		return jsonvalue.Value{}, err
	}
	at := p.s.position()
	b, ok, err := p.s.peekByte()
	if err != nil {
		return jsonvalue.Value{}, err
	}
	if ok {
		return jsonvalue.Value{}, p.s.errorAt(at, "invalid character "+quoteByte(b)+" after top-level value")
	}
	return v, nil
}

type parser struct {
	s     *scanner
	lim   Limits
	stack []frame
	sb    strings.Builder
}

// frame is an open object or array. The child currently being parsed is
// key for objects and index arr.Len() for arrays.
type frame struct {
	ob  *jsonvalue.ObjectBuilder // nil for arrays
	arr jsonvalue.ArrayBuilder
	key string
}

func (f *frame) len() int {
	if f.ob != nil {
		return f.ob.Len()
	}
	return f.arr.Len()
}

func (f *frame) add(v jsonvalue.Value) {
	if f.ob != nil {
		f.ob.Add(f.key, v)
		return
	}
	f.arr.Append(v)
}

func (f *frame) build() jsonvalue.Value {
	if f.ob != nil {
		return f.ob.Build()
	}
	return f.arr.Build()
}

func (f *frame) closer() byte {
	if f.ob != nil {
		return '}'
	}
	return ']'
}

// parseDocument parses one value. Scalars complete immediately; a container
// pushes a frame and the loop continues with its first child. Completed
// values are handed to the enclosing frame until one of them expects
// another child or the stack is empty.
func (p *parser) parseDocument() (jsonvalue.Value, error) {
	for {
		v, opened, err := p.parseValue()
		if err != nil {
			return jsonvalue.Value{}, err
		}
		if opened {
			closed, err := p.openChild()
			if err != nil {
				return jsonvalue.Value{}, err
			}
			if !closed {
				continue
			}
			v = p.pop()
		}
		for {
			if len(p.stack) == 0 {
				return v, nil
			}
			top := &p.stack[len(p.stack)-1]
			top.add(v)
			closed, err := p.nextChild(top)
			if err != nil {
				return jsonvalue.Value{}, err
			}
			if !closed {
				break
			}
			v = p.pop()
		}
	}
}

// parseValue parses a scalar, or consumes the opening bracket of a container
// and pushes its frame (opened is then true).
func (p *parser) parseValue() (v jsonvalue.Value, opened bool, err error) {
	if err := p.s.skipSpace(); err != nil {
		return jsonvalue.Value{}, false, err
	}
	at := p.s.position()
	b, ok, err := p.s.peekByte()
	if err != nil {
		return jsonvalue.Value{}, false, err
	}
	if !ok {
		return jsonvalue.Value{}, false, p.s.errorAt(at, "unexpected end of input")
	}
	switch {
	case b == '{' || b == '[':
		return jsonvalue.Value{}, true, p.push(b, at)
	case b == '"':
		s, err := p.parseString(at, len(p.stack))
		if err != nil {
			return jsonvalue.Value{}, false, err
		}
		return jsonvalue.String(s), false, nil
	case b == '-' || isDigit(b):
		text, err := p.parseNumber()
		if err != nil {
			return jsonvalue.Value{}, false, err
		}
		return jsonvalue.Number(text), false, nil
	case b == 't':
		if err := p.s.expect("true"); err != nil {
			return jsonvalue.Value{}, false, err
		}
		return jsonvalue.Bool(true), false, nil
	case b == 'f':
		if err := p.s.expect("false"); err != nil {
			return jsonvalue.Value{}, false, err
		}
		return jsonvalue.Bool(false), false, nil
	case b == 'n':
		if err := p.s.expect("null"); err != nil {
			return jsonvalue.Value{}, false, err
		}
		return jsonvalue.Null(), false, nil
	default:
		return jsonvalue.Value{}, false, p.s.errorAt(at, "invalid character "+quoteByte(b)+" looking for beginning of value")
	}
}

// push opens the container whose bracket b sits at at. The depth limit fails before
// the opening bracket is consumed so nothing below the limit is allocated.
func (p *parser) push(b byte, at Position) error {
	depth := len(p.stack) + 1
	if p.lim.MaxDepth > 0 && depth > p.lim.MaxDepth {
		return p.limitError(LimitDepth, p.lim.MaxDepth, depth, at, len(p.stack))
	}
	p.s.skip(b)
	f := frame{}
	if b == '{' {
		f.ob = jsonvalue.NewObjectBuilder(0)
	}
	p.stack = append(p.stack, f)
	return nil
}

func (p *parser) pop() jsonvalue.Value {
	top := &p.stack[len(p.stack)-1]
	v := top.build()
	*top = frame{}
	p.stack = p.stack[:len(p.stack)-1]
	return v
}

// openChild runs right after an opening bracket. It reports closed when the
// container is empty; otherwise the first child has been started.
func (p *parser) openChild() (closed bool, err error) {
	top := &p.stack[len(p.stack)-1]
	if err := p.s.skipSpace(); err != nil {
		return false, err
	}
	b, ok, err := p.s.peekByte()
	if err != nil {
		return false, err
	}
	if ok && b == top.closer() {
		p.s.skip(b)
		return true, nil
	}
	return false, p.beginChild(top)
}

// nextChild runs after a child was added. It consumes the separator and
// starts the next child, or consumes the closing bracket.
func (p *parser) nextChild(top *frame) (closed bool, err error) {
	if err := p.s.skipSpace(); err != nil {
		return false, err
	}
	at := p.s.position()
	b, ok, err := p.s.nextByte()
	if err != nil {
		return false, err
	}
	kind, what := "array", "element"
	if top.ob != nil {
		kind, what = "object", "member"
	}
	switch {
	case !ok:
		return false, p.s.errorAt(at, "unexpected end of input in "+kind)
	case b == ',':
		return false, p.beginChild(top)
	case b == top.closer():
		return true, nil
	default:
		return false, p.s.errorAt(at, "invalid character "+quoteByte(b)+" after "+kind+" "+what)
	}
}

// beginChild checks the children limit for the next child of top and, for
// objects, parses its key and colon. The child value itself is parsed by the
// caller's loop.
func (p *parser) beginChild(top *frame) error {
	if err := p.s.skipSpace(); err != nil {
		return err
	}
	at := p.s.position()
	n := top.len() + 1
	if top.ob == nil {
		if p.lim.MaxChildren > 0 && n > p.lim.MaxChildren {
			return p.limitError(LimitChildren, p.lim.MaxChildren, n, at, len(p.stack)-1)
		}
		return nil
	}

	b, ok, err := p.s.peekByte()
	if err != nil {
		return err
	}
	if !ok {
		return p.s.errorAt(at, "unexpected end of input in object")
	}
	if b != '"' {
		return p.s.errorAt(at, "invalid character "+quoteByte(b)+" looking for object key")
	}
	if p.lim.MaxChildren > 0 && n > p.lim.MaxChildren {
		return p.limitError(LimitChildren, p.lim.MaxChildren, n, at, len(p.stack)-1)
	}
	key, err := p.parseString(at, len(p.stack)-1)
	if err != nil {
		return err
	}
	if top.ob.Has(key) {
		return p.s.errorAt(at, "duplicate key "+strconv.Quote(key))
	}
	if err := p.s.skipSpace(); err != nil {
		return err
	}
	if err := p.delimiter(':', "after object key"); err != nil {
		return err
	}
	top.key = key
	return nil
}

func (p *parser) delimiter(want byte, context string) error {
	at := p.s.position()
	b, ok, err := p.s.nextByte()
	if err != nil {
		return err
	}
	if !ok {
		return p.s.errorAt(at, "unexpected end of input "+context)
	}
	if b != want {
		return p.s.errorAt(at, fmt.Sprintf("invalid character %s %s", quoteByte(b), context))
	}
	return nil
}

// parseString decodes a string token starting at the opening quote. The
// length limit is checked on every decoded code point, so an oversized
// string is rejected without reading the rest of it. frames is the number of
// stack frames that make up the string's JSON Pointer.
func (p *parser) parseString(start Position, frames int) (string, error) {
	p.s.skip('"')
	p.sb.Reset()
	n := 0
	for {
		at := p.s.position()
		r, ok, err := p.s.nextRune()
		if err != nil {
			return "", err
		}
		if !ok {
			return "", p.s.errorAt(at, "unexpected end of input in string")
		}
		switch {
		case r == '"':
			return p.sb.String(), nil
		case r == '\\':
			r, err = p.parseEscape()
			if err != nil {
				return "", err
			}
		case r < 0x20:
			return "", p.s.errorAt(at, "invalid control character "+quoteByte(byte(r))+" in string")
		}
		if err := p.appendRune(&n, r, start, frames); err != nil {
			return "", err
		}
	}
}

func (p *parser) appendRune(n *int, r rune, start Position, frames int) error {
	*n++
	if p.lim.MaxStringLength > 0 && *n > p.lim.MaxStringLength {
		return p.limitError(LimitStringLength, p.lim.MaxStringLength, *n, start, frames)
	}
	p.sb.WriteRune(r)
	return nil
}

// parseEscape decodes the escape sequence after a backslash. A high
// surrogate only consumes the following \u escape when that escape completes
// the pair; otherwise it decodes to U+FFFD and the next escape is decoded on
// its own, as encoding/json does.
func (p *parser) parseEscape() (rune, error) {
	at := p.s.position()
	b, ok, err := p.s.nextByte()
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, p.s.errorAt(at, "unexpected end of input in string escape")
	}
	switch b {
	case '"', '\\', '/':
		return rune(b), nil
	case 'b':
		return '\b', nil
	case 'f':
		return '\f', nil
	case 'n':
		return '\n', nil
	case 'r':
		return '\r', nil
	case 't':
		return '\t', nil
	case 'u':
		r, err := p.hex4()
		if err != nil {
			return 0, err
		}
		if !utf16.IsSurrogate(r) {
			return r, nil
		}
		if r >= 0xDC00 {
			return utf8.RuneError, nil
		}
		lo, ok := p.s.peekLowSurrogate()
		if !ok {
			return utf8.RuneError, nil
		}
		p.s.skipN(6)
		return utf16.DecodeRune(r, lo), nil
	default:
		return 0, p.s.errorAt(at, "invalid escape character "+quoteByte(b))
	}
}

func (p *parser) hex4() (rune, error) {
	var r rune
	for i := 0; i < 4; i++ {
		at := p.s.position()
		b, ok, err := p.s.nextByte()
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, p.s.errorAt(at, "unexpected end of input in unicode escape")
		}
		var d byte
		switch {
		case '0' <= b && b <= '9':
			d = b - '0'
		case 'a' <= b && b <= 'f':
			d = b - 'a' + 10
		case 'A' <= b && b <= 'F':
			d = b - 'A' + 10
		default:
			return 0, p.s.errorAt(at, "invalid character "+quoteByte(b)+" in unicode escape")
		}
		r = r<<4 | rune(d)
	}
	return r, nil
}

// parseNumber scans -?(0|[1-9][0-9]*)(\.[0-9]+)?([eE][+-]?[0-9]+)? and
// returns its literal text. MaxStringLength does not apply to numbers; their
// size is bounded by whatever caps the input stream, such as the HTTP body
// limit.
func (p *parser) parseNumber() (string, error) {
	p.sb.Reset()
	if b, _, _ := p.s.peekByte(); b == '-' {
		p.s.skip(b)
		p.sb.WriteByte(b)
	}
	// integer part
	at := p.s.position()
	b, ok, err := p.s.peekByte()
	if err != nil {
		return "", err
	}
	switch {
	case ok && b == '0':
		p.s.skip(b)
		p.sb.WriteByte(b)
	case ok && isDigit(b):
		if err := p.digits(); err != nil {
			return "", err
		}
	default:
		return "", p.numberError(at, b, ok)
	}
	// fraction
	if b, ok, err = p.s.peekByte(); err != nil {
		return "", err
	} else if ok && b == '.' {
		p.s.skip(b)
		p.sb.WriteByte(b)
		if err := p.requireDigits(); err != nil {
			return "", err
		}
	}
	// exponent
	if b, ok, err = p.s.peekByte(); err != nil {
		return "", err
	} else if ok && (b == 'e' || b == 'E') {
		p.s.skip(b)
		p.sb.WriteByte(b)
		if b, ok, err = p.s.peekByte(); err != nil {
			return "", err
		} else if ok && (b == '+' || b == '-') {
			p.s.skip(b)
			p.sb.WriteByte(b)
		}
		if err := p.requireDigits(); err != nil {
			return "", err
		}
	}
	return p.sb.String(), nil
}

func (p *parser) requireDigits() error {
	at := p.s.position()
	b, ok, err := p.s.peekByte()
	if err != nil {
		return err
	}
	if !ok || !isDigit(b) {
		return p.numberError(at, b, ok)
	}
	return p.digits()
}

func (p *parser) digits() error {
	for {
		b, ok, err := p.s.peekByte()
		if err != nil {
			return err
		}
		if !ok || !isDigit(b) {
			return nil
		}
		p.s.skip(b)
		p.sb.WriteByte(b)
	}
}

func (p *parser) numberError(at Position, b byte, ok bool) error {
	if !ok {
		return p.s.errorAt(at, "unexpected end of input in number")
	}
	return p.s.errorAt(at, "invalid character "+quoteByte(b)+" in number")
}

func (p *parser) limitError(kind LimitKind, max, actual int, at Position, frames int) *LimitError {
	return &LimitError{Position: at, Kind: kind, Max: max, Actual: actual, Path: p.pointer(frames)}
}

func isDigit(b byte) bool { return '0' <= b && b <= '9' }
