package engine

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// scanner is a byte-level reader that keeps track of the input position.
// It never buffers more than the bufio window, so limits checked by the
// parser bite before the rest of the input is consumed.
type scanner struct {
	r   *bufio.Reader
	pos Position
}

const scannerBufferSize = 4096

func newScanner(r io.Reader) *scanner {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReaderSize(r, scannerBufferSize)
	}
	return &scanner{r: br, pos: Position{Line: 1, Column: 1}}
}

// position returns the position of the next unread byte.
func (s *scanner) position() Position { return s.pos }

// peekByte returns the next byte without consuming it. ok is false at EOF.
func (s *scanner) peekByte() (b byte, ok bool, err error) {
	p, err := s.r.Peek(1)
	if len(p) == 1 {
		return p[0], true, nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return 0, false, nil
	}
	return 0, false, &ReadError{Position: s.pos, Err: err}
}

// skip consumes a byte previously returned by peekByte.
func (s *scanner) skip(b byte) {
	_, _ = s.r.Discard(1)
	s.advance(b, 1)
}

func (s *scanner) advance(b byte, size int) {
	s.pos.Offset += int64(size)
	if b == '\n' {
		s.pos.Line++
		s.pos.Column = 1
		return
	}
	s.pos.Column += size
}

// nextByte consumes and returns the next byte. ok is false at EOF.
func (s *scanner) nextByte() (b byte, ok bool, err error) {
	b, ok, err = s.peekByte()
	if ok {
		s.skip(b)
	}
	return b, ok, err
}

// nextRune consumes one UTF-8 encoded rune. Invalid encodings are reported
// as a syntax error rather than silently replaced.
func (s *scanner) nextRune() (r rune, ok bool, err error) {
	at := s.pos
	r, size, err := s.r.ReadRune()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, false, nil
		}
		return 0, false, &ReadError{Position: at, Err: err}
	}
	if r == utf8.RuneError && size == 1 {
		return 0, false, s.errorAt(at, "invalid UTF-8 in string")
	}
	if size > 1 {
		s.advance(0, size)
		return r, true, nil
	}
	s.advance(byte(r), size)
	return r, true, nil
}

// peekLowSurrogate reports whether the next six bytes are a \uXXXX escape
// of a low surrogate, without consuming them.
func (s *scanner) peekLowSurrogate() (rune, bool) {
	p, _ := s.r.Peek(6)
	if len(p) < 6 || p[0] != '\\' || p[1] != 'u' {
		return 0, false
	}
	var r rune
	for _, b := range p[2:] {
		switch {
		case '0' <= b && b <= '9':
			r = r<<4 | rune(b-'0')
		case 'a' <= b && b <= 'f':
			r = r<<4 | rune(b-'a'+10)
		case 'A' <= b && b <= 'F':
			r = r<<4 | rune(b-'A'+10)
		default:
			return 0, false
		}
	}
	if r < 0xDC00 || r > 0xDFFF {
		return 0, false
	}
	return r, true
}

// skipN consumes n bytes previously seen through Peek. They must not
// contain a newline.
func (s *scanner) skipN(n int) {
	_, _ = s.r.Discard(n)
	s.advance(0, n)
}

// skipSpace consumes insignificant whitespace.
func (s *scanner) skipSpace() error {
	for {
		b, ok, err := s.peekByte()
		if err != nil || !ok {
			return err
		}
		switch b {
		case ' ', '\t', '\n', '\r':
			s.skip(b)
		default:
			return nil
		}
	}
}

// expect consumes the literal word or fails at its first mismatching byte.
func (s *scanner) expect(word string) error {
	for i := 0; i < len(word); i++ {
		at := s.pos
		b, ok, err := s.nextByte()
		if err != nil {
			return err
		}
		if !ok {
			return s.errorAt(at, "unexpected end of input in literal "+word)
		}
		if b != word[i] {
			return s.errorAt(at, fmt.Sprintf("invalid character %s in literal %s", quoteByte(b), word))
		}
	}
	return nil
}

func (s *scanner) errorAt(p Position, msg string) *SyntaxError {
	return &SyntaxError{Position: p, Msg: msg}
}

func quoteByte(b byte) string {
	if b == '\'' {
		return `'\''`
	}
	if b == '"' {
		return `'"'`
	}
	if b < 0x20 || b >= 0x7f {
		return fmt.Sprintf("0x%02x", b)
	}
	return "'" + string(b) + "'"
}
