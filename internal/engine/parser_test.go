package engine_test

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/reoring/jsongate/internal/engine"
	"github.com/reoring/jsongate/jsonvalue"
)

// tripwireReader serves prefix, then repeats fill until budget bytes were
// served, then fails. A parser that buffers a whole container or string
// before checking limits trips the wire instead of reporting the limit.
type tripwireReader struct {
	prefix string
	fill   string
	budget int
	served int
}

var errTripped = errors.New("read past the point where the limit should have failed")

func (r *tripwireReader) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if r.served >= r.budget {
			if n > 0 {
				return n, nil
			}
			return 0, errTripped
		}
		var b byte
		if r.served < len(r.prefix) {
			b = r.prefix[r.served]
		} else {
			b = r.fill[(r.served-len(r.prefix))%len(r.fill)]
		}
		p[n] = b
		n++
		r.served++
	}
	return n, nil
}

func parse(t *testing.T, in string, lim engine.Limits) (jsonvalue.Value, error) {
	t.Helper()
	return engine.Parse(strings.NewReader(in), lim)
}

func asLimitError(t *testing.T, err error) *engine.LimitError {
	t.Helper()
	var le *engine.LimitError
	if !errors.As(err, &le) {
		t.Fatalf("expected *LimitError, got: %T %v", err, err)
	}
	return le
}

func TestParse_Values(t *testing.T) {
	v, err := parse(t, ` {"b": [1, -2.5e3, "x", true, false, null], "a": {}} `, engine.Limits{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := jsonvalue.Object(
		jsonvalue.Member{Key: "b", Value: jsonvalue.Array(
			jsonvalue.Number("1"), jsonvalue.Number("-2.5e3"), jsonvalue.String("x"),
			jsonvalue.Bool(true), jsonvalue.Bool(false), jsonvalue.Null(),
		)},
		jsonvalue.Member{Key: "a", Value: jsonvalue.Object()},
	)
	if !jsonvalue.Equal(v, want) {
		t.Fatalf("got %s, want %s", v, want)
	}
	if k, _ := v.FirstKey(); k != "b" {
		t.Fatalf("expected first key b, got %q", k)
	}
}

func TestParse_TopLevelScalars(t *testing.T) {
	for _, in := range []string{`0`, `-0.5`, `"s"`, `true`, `null`, `[]`} {
		if _, err := parse(t, in, engine.Limits{}); err != nil {
			t.Fatalf("%s: unexpected error: %v", in, err)
		}
	}
}

func TestParse_MaxDepth(t *testing.T) {
	lim := engine.Limits{MaxDepth: 2}
	if _, err := parse(t, `{"a": {"b": 1}}`, lim); err != nil {
		t.Fatalf("depth 2 should pass, got: %v", err)
	}
	_, err := parse(t, `{"a":{"b":{"c":1}}}`, lim)
	le := asLimitError(t, err)
	if le.Kind != engine.LimitDepth || le.Max != 2 || le.Actual != 3 {
		t.Fatalf("unexpected limit error: %+v", le)
	}
	if le.Path != "/a/b" {
		t.Fatalf("expected path=/a/b, got: %s", le.Path)
	}
	if le.Offset != 10 || le.Line != 1 || le.Column != 11 {
		t.Fatalf("expected failure at the third brace, got: %s", le.Position)
	}
}

func TestParse_MaxDepth_Arrays(t *testing.T) {
	_, err := parse(t, `[[[[]]]]`, engine.Limits{MaxDepth: 3})
	le := asLimitError(t, err)
	if le.Kind != engine.LimitDepth || le.Path != "/0/0/0" || le.Actual != 4 {
		t.Fatalf("unexpected limit error: %+v", le)
	}
}

func TestParse_MaxStringLength(t *testing.T) {
	lim := engine.Limits{MaxStringLength: 5}
	if _, err := parse(t, `{"k":"abcde"}`, lim); err != nil {
		t.Fatalf("5 characters should pass, got: %v", err)
	}
	_, err := parse(t, `{"k": "abcdef"}`, lim)
	le := asLimitError(t, err)
	if le.Kind != engine.LimitStringLength || le.Max != 5 || le.Actual != 6 || le.Path != "/k" {
		t.Fatalf("unexpected limit error: %+v", le)
	}
	if le.Offset != 6 {
		t.Fatalf("expected offset of the opening quote, got: %d", le.Offset)
	}
}

func TestParse_MaxStringLength_Key(t *testing.T) {
	_, err := parse(t, `{"abcdef": 1}`, engine.Limits{MaxStringLength: 5})
	le := asLimitError(t, err)
	if le.Kind != engine.LimitStringLength || le.Path != "/" {
		t.Fatalf("unexpected limit error: %+v", le)
	}
}

func TestParse_MaxStringLength_CountsCodePoints(t *testing.T) {
	// two code points, one of them written as a surrogate pair escape
	v, err := parse(t, `"\u00e9\ud83d\ude00"`, engine.Limits{MaxStringLength: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s, _ := v.AsString(); s != "é😀" {
		t.Fatalf("unexpected decoding: %q", s)
	}
	if _, err := parse(t, `"日本語"`, engine.Limits{MaxStringLength: 2}); err == nil {
		t.Fatalf("expected string too long")
	}
}

func TestParse_MaxStringLength_DoesNotBufferWholeString(t *testing.T) {
	r := &tripwireReader{prefix: `{"k":"`, fill: "a", budget: 1 << 20}
	_, err := engine.Parse(r, engine.Limits{MaxStringLength: 5})
	if errors.Is(err, errTripped) {
		t.Fatalf("parser consumed the string before enforcing the limit")
	}
	le := asLimitError(t, err)
	if le.Kind != engine.LimitStringLength {
		t.Fatalf("unexpected limit error: %+v", le)
	}
	if r.served >= r.budget {
		t.Fatalf("read the whole input: %d bytes", r.served)
	}
}

func TestParse_MaxChildren(t *testing.T) {
	lim := engine.Limits{MaxChildren: 2}
	if _, err := parse(t, `{"a":[1,2],"b":{"x":1,"y":2}}`, lim); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := parse(t, `[1,2,3]`, lim)
	le := asLimitError(t, err)
	if le.Kind != engine.LimitChildren || le.Actual != 3 || le.Path != "/" || le.Offset != 5 {
		t.Fatalf("unexpected limit error: %+v", le)
	}
	_, err = parse(t, `{"o":{"a":1,"b":2,"c":3}}`, lim)
	le = asLimitError(t, err)
	if le.Kind != engine.LimitChildren || le.Path != "/o" {
		t.Fatalf("unexpected limit error: %+v", le)
	}
}

func TestParse_MaxChildren_DoesNotConsumeContainer(t *testing.T) {
	r := &tripwireReader{prefix: `[`, fill: "1,", budget: 1 << 20}
	_, err := engine.Parse(r, engine.Limits{MaxChildren: 10})
	if errors.Is(err, errTripped) {
		t.Fatalf("parser consumed the container before enforcing the limit")
	}
	le := asLimitError(t, err)
	if le.Kind != engine.LimitChildren || le.Actual != 11 {
		t.Fatalf("unexpected limit error: %+v", le)
	}
}

func TestParse_Unbounded_LargeAndDeep(t *testing.T) {
	const depth = 5000
	in := strings.Repeat("[", depth) + `"` + strings.Repeat("x", 100000) + `"` + strings.Repeat("]", depth)
	v, err := parse(t, in, engine.Limits{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < depth; i++ {
		var ok bool
		if v, ok = v.Index(0); !ok {
			t.Fatalf("expected nested array at depth %d", i)
		}
	}
	if s, _ := v.AsString(); len(s) != 100000 {
		t.Fatalf("unexpected string length %d", len(s))
	}

	wide := "[" + strings.TrimSuffix(strings.Repeat("0,", 100000), ",") + "]"
	v, err = parse(t, wide, engine.Limits{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Len() != 100000 {
		t.Fatalf("unexpected length %d", v.Len())
	}
}

func TestParse_Unbounded_MillionsDeep(t *testing.T) {
	if testing.Short() {
		t.Skip("allocates several hundred MB")
	}
	const depth = 3_000_000
	in := strings.Repeat("[", depth) + "1" + strings.Repeat("]", depth)
	v, err := parse(t, in, engine.Limits{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := v.String(); got != in {
		t.Fatalf("re-encoding changed the document (len %d vs %d)", len(got), len(in))
	}
	if !jsonvalue.Equal(v, v) {
		t.Fatalf("deep value must equal itself")
	}
	if _, ok := v.Interface().([]any); !ok {
		t.Fatalf("unexpected projection %T", v.Interface())
	}

	_, err = parse(t, strings.Repeat("[", depth), engine.Limits{MaxDepth: depth - 1})
	le := asLimitError(t, err)
	if le.Kind != engine.LimitDepth || le.Actual != depth {
		t.Fatalf("unexpected limit error: %+v", le)
	}
}

func TestParse_SyntaxErrors(t *testing.T) {
	cases := map[string]string{
		"empty":            ``,
		"whitespace only":  " \n\t ",
		"unclosed object":  `{`,
		"missing colon":    `{"a"}`,
		"missing value":    `{"a":}`,
		"trailing comma":   `[1,]`,
		"trailing member":  `{"a":1,}`,
		"bare key":         `{a:1}`,
		"bad literal":      `tru`,
		"leading zero":     `01`,
		"empty fraction":   `1.`,
		"empty exponent":   `1e+`,
		"lone minus":       `-`,
		"unterminated":     `"abc`,
		"control char":     "\"a\x01\"",
		"bad escape":       `"\q"`,
		"bad unicode":      `"\u12g4"`,
		"invalid utf8":     "\"\xff\"",
		"trailing data":    `{"a":1} x`,
		"two values":       `1 2`,
		"duplicate key":    `{"a":1,"a":2}`,
		"single quotes":    `{'a':1}`,
		"unclosed array":   `[1, 2`,
		"missing comma":    `[1 2]`,
		"comment":          `{"a":1 /* c */}`,
		"nan":              `NaN`,
		"plus sign number": `+1`,
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parse(t, in, engine.Limits{})
			var se *engine.SyntaxError
			if !errors.As(err, &se) {
				t.Fatalf("expected *SyntaxError for %q, got: %T %v", in, err, err)
			}
		})
	}
}

func TestParse_SyntaxErrorPosition(t *testing.T) {
	_, err := parse(t, "{\n  \"a\": x}", engine.Limits{})
	var se *engine.SyntaxError
	if !errors.As(err, &se) {
		t.Fatalf("expected *SyntaxError, got: %v", err)
	}
	if se.Line != 2 || se.Column != 8 || se.Offset != 9 {
		t.Fatalf("unexpected position: %s", se.Position)
	}
}

func TestParse_LoneSurrogate(t *testing.T) {
	v, err := parse(t, `"\ud800x\udc00"`, engine.Limits{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s, _ := v.AsString(); s != "�x�" {
		t.Fatalf("unexpected decoding: %q", s)
	}
	v, err = parse(t, `"\ud800A"`, engine.Limits{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s, _ := v.AsString(); s != "�A" {
		t.Fatalf("unexpected decoding: %q", s)
	}
}

func TestParse_HighSurrogateBeforePair(t *testing.T) {
	// the second high surrogate starts a new pair
	v, err := parse(t, `"\ud800\ud800\udc00"`, engine.Limits{MaxStringLength: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s, _ := v.AsString(); s != "\uFFFD\U00010000" {
		t.Fatalf("unexpected decoding: %q", s)
	}
	if _, err := parse(t, `"\ud800\u12g4"`, engine.Limits{}); err == nil {
		t.Fatalf("expected the escape after a lone surrogate to be validated")
	}
}

func TestParse_ReadError(t *testing.T) {
	boom := errors.New("boom")
	r := io.MultiReader(strings.NewReader(`{"a":`), &failingReader{err: boom})
	_, err := engine.Parse(r, engine.Limits{})
	var re *engine.ReadError
	if !errors.As(err, &re) || !errors.Is(err, boom) {
		t.Fatalf("expected *ReadError wrapping boom, got: %v", err)
	}
}

type failingReader struct{ err error }

func (f *failingReader) Read([]byte) (int, error) { return 0, f.err }

func TestParse_Deterministic(t *testing.T) {
	in := `{"a":[1,{"b":"c"}],"d":null}`
	v1, err1 := parse(t, in, engine.Limits{MaxDepth: 3})
	v2, err2 := parse(t, in, engine.Limits{MaxDepth: 3})
	if err1 != nil || err2 != nil {
		t.Fatalf("unexpected errors: %v %v", err1, err2)
	}
	if !jsonvalue.Equal(v1, v2) || v1.String() != v2.String() {
		t.Fatalf("parses differ: %s vs %s", v1, v2)
	}
}
