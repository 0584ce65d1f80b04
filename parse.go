package jsongate

import (
	"io"

	eng "github.com/reoring/jsongate/internal/engine"
	"github.com/reoring/jsongate/jsonvalue"
)

// Parse reads exactly one JSON document from r under lim. Limits are
// enforced while reading, so a violating document is rejected without being
// read to the end. Failures are *Error of kind KindMalformed,
// KindLimitExceeded or KindReadFailed.
func Parse(r io.Reader, lim Limits) (jsonvalue.Value, error) {
	v, err := eng.Parse(r, lim.engine())
	if err != nil {
		return jsonvalue.Value{}, classify(err)
	}
	return v, nil
}

// ParseBytes is Parse over an in-memory document.
func ParseBytes(data []byte, lim Limits) (jsonvalue.Value, error) {
	return Parse(newBytesReader(data), lim)
}
