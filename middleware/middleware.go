// Package middleware holds the framework-independent parts of the HTTP
// boundary: error to status mapping, the client error payload and its
// verbosity policy, Accept negotiation and request body decoding. The gin and
// echo subpackages bind them to a router.
package middleware

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	jsongate "github.com/reoring/jsongate"
	"github.com/reoring/jsongate/i18n"
	"github.com/reoring/jsongate/jsonvalue"
)

// Codes used for failures that happen at the HTTP boundary rather than in
// the pipeline.
const (
	CodeBodyTooLarge        = "body_too_large"
	CodeNotAcceptable       = "not_acceptable"
	CodeUnsupportedEncoding = "unsupported_encoding"
	CodeNotImplemented      = "not_implemented"
	CodeInternal            = "internal"
)

// GenericInternalMessage is the only text clients see for server-side
// failures.
const GenericInternalMessage = "Internal server error. Retry later or contact the administrator."

// ErrUnsupportedEncoding is returned by DecodeBody for unknown
// Content-Encoding values.
var ErrUnsupportedEncoding = errors.New("unsupported content encoding")

// ctxKeyValue is a typed context key for the ingested document.
type ctxKeyValue struct{}

// ContextWithValue attaches the ingested document to the context.
func ContextWithValue(ctx context.Context, v jsonvalue.Value) context.Context {
	return context.WithValue(ctx, ctxKeyValue{}, v)
}

// ValueFromContext retrieves the ingested document from context.
func ValueFromContext(ctx context.Context) (jsonvalue.Value, bool) {
	v, ok := ctx.Value(ctxKeyValue{}).(jsonvalue.Value)
	return v, ok
}

// Policy decides how failures are shown to clients.
type Policy struct {
	// Verbosity is the number of cause levels revealed below the top
	// message. 0 shows only the translated message of the error code.
	Verbosity int
	// SchemaViolationStatus is 400 when zero; 422 is the other sensible
	// choice.
	SchemaViolationStatus int
	// Translator localizes top-level messages; i18n.T is used when nil.
	Translator i18n.Translator
}

// ErrorMessage is the client error payload. Causes nest like the error
// chain they describe.
type ErrorMessage struct {
	Code    string         `json:"code,omitempty"`
	Message string         `json:"message"`
	Path    string         `json:"path,omitempty"`
	Line    int            `json:"line,omitempty"`
	Column  int            `json:"column,omitempty"`
	Issues  []IssuePayload `json:"issues,omitempty"`
	Cause   *ErrorMessage  `json:"cause,omitempty"`
}

// IssuePayload is one schema violation as shown to clients.
type IssuePayload struct {
	Path    string `json:"path"`
	Keyword string `json:"keyword"`
	Message string `json:"message"`
}

// StatusFor maps an ingestion error to its HTTP status. Errors that are not
// client faults map to 500.
func StatusFor(err error, p Policy) int {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return http.StatusRequestEntityTooLarge
	}
	if errors.Is(err, ErrUnsupportedEncoding) {
		return http.StatusUnsupportedMediaType
	}
	if errors.Is(err, errors.ErrUnsupported) {
		return http.StatusNotImplemented
	}
	switch jsongate.KindOf(err) {
	case jsongate.KindMalformed, jsongate.KindEmptyOrNonObjectDocument, jsongate.KindReadFailed:
		return http.StatusBadRequest
	case jsongate.KindLimitExceeded:
		return http.StatusRequestEntityTooLarge
	case jsongate.KindSchemaViolation:
		if p.SchemaViolationStatus != 0 {
			return p.SchemaViolationStatus
		}
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Internal reports whether err must be hidden from clients and logged.
// Unsupported operations (501) keep their message.
func Internal(err error, p Policy) bool {
	status := StatusFor(err, p)
	return status >= 500 && status != http.StatusNotImplemented
}

// Payload builds the client payload for err under p. Internal errors always
// yield the generic message, whatever the verbosity.
func Payload(err error, p Policy) ErrorMessage {
	tr := p.Translator
	if tr == nil {
		tr = translatorFunc(i18n.T)
	}
	if Internal(err, p) {
		return ErrorMessage{Code: CodeInternal, Message: GenericInternalMessage}
	}

	var mbe *http.MaxBytesError
	switch {
	case errors.As(err, &mbe):
		return ErrorMessage{Code: CodeBodyTooLarge, Message: tr.Message(CodeBodyTooLarge, map[string]string{"max": strconv.FormatInt(mbe.Limit, 10)})}
	case errors.Is(err, ErrUnsupportedEncoding):
		out := ErrorMessage{Code: CodeUnsupportedEncoding, Message: tr.Message(CodeUnsupportedEncoding, nil)}
		if p.Verbosity >= 1 {
			out.Cause = &ErrorMessage{Message: err.Error()}
		}
		return out
	case errors.Is(err, errors.ErrUnsupported):
		return ErrorMessage{Code: CodeNotImplemented, Message: err.Error()}
	}

	var ge *jsongate.Error
	if !errors.As(err, &ge) {
		return ErrorMessage{Code: CodeInternal, Message: GenericInternalMessage}
	}
	data := map[string]string{}
	if ge.Kind == jsongate.KindLimitExceeded {
		data["max"] = strconv.Itoa(ge.Max)
		data["actual"] = strconv.Itoa(ge.Actual)
	}
	out := ErrorMessage{Code: ge.Code(), Message: tr.Message(ge.Code(), data)}
	if p.Verbosity < 1 {
		return out
	}
	out.Path = ge.Path
	out.Line = ge.Line
	out.Column = ge.Column
	for _, it := range ge.Issues {
		out.Issues = append(out.Issues, IssuePayload{Path: it.Path, Keyword: it.Keyword, Message: it.Message})
	}
	out.Cause = causeChain(ge, p.Verbosity)
	return out
}

// causeChain renders up to depth levels below the classified error: its own
// detail first, then the wrapped causes.
func causeChain(ge *jsongate.Error, depth int) *ErrorMessage {
	var msgs []string
	if ge.Message != "" {
		msgs = append(msgs, ge.Message)
	}
	if ge.Kind != jsongate.KindSchemaViolation {
		for c := ge.Cause; c != nil && len(msgs) < depth; c = errors.Unwrap(c) {
			m := c.Error()
			if len(msgs) > 0 && msgs[len(msgs)-1] == m {
				continue
			}
			msgs = append(msgs, m)
		}
	}
	if len(msgs) > depth {
		msgs = msgs[:depth]
	}
	var head *ErrorMessage
	for i := len(msgs) - 1; i >= 0; i-- {
		head = &ErrorMessage{Message: msgs[i], Cause: head}
	}
	return head
}

type translatorFunc func(code string, data map[string]string) string

func (f translatorFunc) Message(code string, data map[string]string) string { return f(code, data) }

// AcceptAllowed reports whether the first media type of an Accept header is
// one of allowed. A missing header and */* are always allowed; parameters
// such as q or charset are ignored.
func AcceptAllowed(accept string, allowed []string) bool {
	accept = strings.TrimSpace(accept)
	if accept == "" {
		return true
	}
	first, _, _ := strings.Cut(accept, ",")
	mt, _, err := mime.ParseMediaType(strings.TrimSpace(first))
	if err != nil {
		return false
	}
	if mt == "*/*" {
		return true
	}
	for _, a := range allowed {
		if strings.EqualFold(mt, strings.TrimSpace(a)) {
			return true
		}
	}
	return false
}

// DecodeBody wraps body in a streaming decoder for the given
// Content-Encoding. Limits then apply to the decoded text. Closing the
// result closes body.
func DecodeBody(encoding string, body io.ReadCloser) (io.ReadCloser, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "identity":
		return body, nil
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(body)
		if err != nil {
			return nil, err
		}
		return &decodedBody{Reader: zr, close: zr.Close, body: body}, nil
	case "zstd":
		zr, err := zstd.NewReader(body, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, err
		}
		return &decodedBody{Reader: zr, close: func() error { zr.Close(); return nil }, body: body}, nil
	default:
		return nil, &encodingError{encoding: encoding}
	}
}

type decodedBody struct {
	io.Reader
	close func() error
	body  io.Closer
}

func (d *decodedBody) Close() error {
	err := d.close()
	if cerr := d.body.Close(); err == nil {
		err = cerr
	}
	return err
}

type encodingError struct{ encoding string }

func (e *encodingError) Error() string { return "unsupported content encoding " + strconv.Quote(e.encoding) }

func (e *encodingError) Is(target error) bool { return target == ErrUnsupportedEncoding }
