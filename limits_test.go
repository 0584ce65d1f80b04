package jsongate_test

import (
	"errors"
	"testing"

	jsongate "github.com/reoring/jsongate"
)

func TestNewLimits(t *testing.T) {
	lim, err := jsongate.NewLimits(jsongate.MaxStringLength(5), jsongate.MaxDepth(2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n, ok := lim.StringLength(); !ok || n != 5 {
		t.Fatalf("expected string length 5, got %d %v", n, ok)
	}
	if n, ok := lim.Depth(); !ok || n != 2 {
		t.Fatalf("expected depth 2, got %d %v", n, ok)
	}
	if _, ok := lim.Children(); ok {
		t.Fatalf("omitted children limit must be unbounded")
	}
	if lim.IsUnbounded() {
		t.Fatalf("limits are bounded")
	}
}

func TestNewLimits_RejectsNonPositive(t *testing.T) {
	for _, opt := range []jsongate.LimitOption{
		jsongate.MaxStringLength(0),
		jsongate.MaxChildren(-1),
		jsongate.MaxDepth(0),
	} {
		_, err := jsongate.NewLimits(opt)
		if !errors.Is(err, jsongate.ErrInvalidLimit) {
			t.Fatalf("expected ErrInvalidLimit, got: %v", err)
		}
	}
}

func TestUnbounded(t *testing.T) {
	lim := jsongate.Unbounded()
	if !lim.IsUnbounded() {
		t.Fatalf("expected unbounded, got %s", lim)
	}
	if lim.String() != "max_string_length=unbounded max_children=unbounded max_depth=unbounded" {
		t.Fatalf("unexpected string: %s", lim)
	}
}
