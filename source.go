package jsongate

import (
	"bytes"
	"context"
	"io"
	"sync"
)

func newBytesReader(b []byte) io.Reader { return bytes.NewReader(b) }

// contextReader checks ctx before every Read. When the wrapped reader is an
// io.Closer it is closed on cancellation so a Read blocked on a stuck
// upstream returns.
type contextReader struct {
	ctx  context.Context
	r    io.Reader
	stop func() bool

	mu      sync.Mutex
	stopped bool
}

func newContextReader(ctx context.Context, r io.Reader) *contextReader {
	cr := &contextReader{ctx: ctx, r: r}
	if c, ok := r.(io.Closer); ok && ctx.Done() != nil {
		cr.stop = context.AfterFunc(ctx, func() { _ = c.Close() })
	}
	return cr
}

func (cr *contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	n, err := cr.r.Read(p)
	if err != nil && err != io.EOF {
		// a Read failing because the stream was closed on cancellation
		// reports the cancellation, not the close
		if cerr := cr.ctx.Err(); cerr != nil {
			return n, cerr
		}
	}
	return n, err
}

// release detaches the cancellation hook once the caller is done reading.
func (cr *contextReader) release() {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	if cr.stopped || cr.stop == nil {
		return
	}
	cr.stopped = true
	cr.stop()
}
