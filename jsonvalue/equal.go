package jsonvalue

import (
	"math/big"
	"strings"
)

// Equal reports whether a and b are structurally equal. Object members are
// compared as sets, so member order does not matter. Numbers are equal when
// they denote the same decimal value, so 1, 1.0 and 1e0 are equal while
// integers beyond float64 precision stay distinct. Any nesting depth is
// safe.
func Equal(a, b Value) bool {
	work := []valuePair{{a, b}}
	for len(work) > 0 {
		p := work[len(work)-1]
		work = work[:len(work)-1]
		x, y := p.a, p.b
		if x.kind != y.kind {
			return false
		}
		switch x.kind {
		case KindBool:
			if x.b != y.b {
				return false
			}
		case KindString:
			if x.text != y.text {
				return false
			}
		case KindNumber:
			if !numberEqual(x.text, y.text) {
				return false
			}
		case KindArray:
			if len(x.items) != len(y.items) {
				return false
			}
			for i := range x.items {
				work = append(work, valuePair{x.items[i], y.items[i]})
			}
		case KindObject:
			if len(x.members) != len(y.members) {
				return false
			}
			for _, m := range x.members {
				other, ok := y.Get(m.Key)
				if !ok {
					return false
				}
				work = append(work, valuePair{m.Value, other})
			}
		}
	}
	return true
}

type valuePair struct{ a, b Value }

// Equal is the method form of Equal.
func (v Value) Equal(o Value) bool { return Equal(v, o) }

func numberEqual(x, y string) bool {
	if x == y {
		return true
	}
	dx, okx := parseDecimal(x)
	dy, oky := parseDecimal(y)
	if !okx || !oky {
		return false
	}
	if dx.digits == "" || dy.digits == "" {
		return dx.digits == dy.digits
	}
	return dx.neg == dy.neg && dx.digits == dy.digits && dx.exp.Cmp(dy.exp) == 0
}

// decimal is a number literal normalized to 0.digits × 10^exp with no
// leading or trailing zeros in digits. Zero has empty digits.
type decimal struct {
	neg    bool
	digits string
	exp    *big.Int
}

func parseDecimal(s string) (decimal, bool) {
	var d decimal
	if strings.HasPrefix(s, "-") {
		d.neg = true
		s = s[1:]
	}
	mant, expText := s, ""
	if i := strings.IndexAny(s, "eE"); i >= 0 {
		mant, expText = s[:i], s[i+1:]
		if expText == "" {
			return decimal{}, false
		}
	}
	intPart, frac, _ := strings.Cut(mant, ".")
	if intPart == "" || !allDigits(intPart) || !allDigits(frac) {
		return decimal{}, false
	}
	all := intPart + frac
	trimmed := strings.TrimLeft(all, "0")
	lead := len(all) - len(trimmed)
	d.digits = strings.TrimRight(trimmed, "0")
	if d.digits == "" {
		return d, true
	}
	d.exp = new(big.Int)
	if expText != "" {
		if _, ok := d.exp.SetString(expText, 10); !ok {
			return decimal{}, false
		}
	}
	d.exp.Add(d.exp, big.NewInt(int64(len(intPart)-lead)))
	return d, true
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
