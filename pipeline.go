package jsongate

import (
	"bufio"
	"context"
	"errors"
	"io"

	"github.com/reoring/jsongate/jsonvalue"
)

// Pipeline parses under Limits, selects a schema through a SchemaBinding and
// validates with a Validator. It is immutable after New and safe for
// concurrent use.
type Pipeline struct {
	limits    Limits
	binding   SchemaBinding
	validator Validator
}

// New builds a Pipeline. v may be nil only when b never selects a schema;
// otherwise New fails with an error matching ErrInvalidConfig.
func New(lim Limits, b SchemaBinding, v Validator) (*Pipeline, error) {
	if v == nil && b.NeedsValidator() {
		return nil, &Error{Kind: KindInvalidConfig, Message: "schema binding " + b.String() + " requires a validator"}
	}
	return &Pipeline{limits: lim, binding: b, validator: v}, nil
}

// MustNew is like New but panics on error.
func MustNew(lim Limits, b SchemaBinding, v Validator) *Pipeline {
	p, err := New(lim, b, v)
	if err != nil {
		panic(err)
	}
	return p
}

// Limits returns the limits the pipeline enforces.
func (p *Pipeline) Limits() Limits { return p.limits }

// Binding returns the schema binding of the pipeline.
func (p *Pipeline) Binding() SchemaBinding { return p.binding }

// Ingest is IngestContext with context.Background.
func (p *Pipeline) Ingest(r io.Reader) (jsonvalue.Value, error) {
	return p.IngestContext(context.Background(), r)
}

// IngestContext parses one document from r, selects its schema and validates
// it. On failure it returns exactly one *Error and no value.
func (p *Pipeline) IngestContext(ctx context.Context, r io.Reader) (jsonvalue.Value, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cr := newContextReader(ctx, r)
	defer cr.release()

	doc, err := Parse(cr, p.limits)
	if err != nil {
		return jsonvalue.Value{}, err
	}

	s, ok, err := Select(doc, p.binding)
	if err != nil {
		return jsonvalue.Value{}, err
	}
	if !ok {
		return doc, nil
	}

	if err := ctx.Err(); err != nil {
		return jsonvalue.Value{}, &Error{Kind: KindReadFailed, Cause: err}
	}
	if err := p.validator.Validate(ctx, doc, s); err != nil {
		return jsonvalue.Value{}, validationError(err)
	}
	return doc, nil
}

func validationError(err error) *Error {
	var ge *Error
	if errors.As(err, &ge) {
		return ge
	}
	if iss, ok := AsIssues(err); ok {
		return &Error{Kind: KindSchemaViolation, Issues: iss}
	}
	return &Error{Kind: KindValidatorFailed, Cause: err}
}

// Write encodes v as canonical compact UTF-8 JSON followed by nothing.
func (p *Pipeline) Write(w io.Writer, v jsonvalue.Value) error {
	bw := bufio.NewWriter(w)
	if err := v.Encode(bw); err != nil {
		return err
	}
	return bw.Flush()
}

// Ingest runs a one-off pipeline built from lim, b and v.
func Ingest(r io.Reader, lim Limits, b SchemaBinding, v Validator) (jsonvalue.Value, error) {
	p, err := New(lim, b, v)
	if err != nil {
		return jsonvalue.Value{}, err
	}
	return p.Ingest(r)
}
