package middleware_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jsongate "github.com/reoring/jsongate"
	"github.com/reoring/jsongate/i18n"
	"github.com/reoring/jsongate/jsonvalue"
	"github.com/reoring/jsongate/middleware"
)

func ingest(t *testing.T, lim jsongate.Limits, in string) error {
	t.Helper()
	_, err := jsongate.Ingest(strings.NewReader(in), lim, jsongate.NoSchema(), nil)
	require.Error(t, err)
	return err
}

func TestStatusFor(t *testing.T) {
	p := middleware.Policy{}
	assert.Equal(t, http.StatusBadRequest, middleware.StatusFor(ingest(t, jsongate.Unbounded(), `{`), p))
	assert.Equal(t, http.StatusRequestEntityTooLarge,
		middleware.StatusFor(ingest(t, jsongate.MustLimits(jsongate.MaxDepth(1)), `[[1]]`), p))

	_, err := jsongate.Ingest(strings.NewReader(`[]`), jsongate.Unbounded(),
		jsongate.ByRootProperty(map[string]jsongate.Schema{"a": 1}), jsongate.ValidatorFunc(func(context.Context, jsonvalue.Value, jsongate.Schema) error { return nil }))
	assert.Equal(t, http.StatusBadRequest, middleware.StatusFor(err, p))

	violation := &jsongate.Error{Kind: jsongate.KindSchemaViolation, Issues: jsongate.Issues{{Path: "/a"}}}
	assert.Equal(t, http.StatusBadRequest, middleware.StatusFor(violation, p))
	assert.Equal(t, http.StatusUnprocessableEntity, middleware.StatusFor(violation, middleware.Policy{SchemaViolationStatus: 422}))

	assert.Equal(t, http.StatusInternalServerError, middleware.StatusFor(errors.New("boom"), p))
	assert.Equal(t, http.StatusInternalServerError, middleware.StatusFor(&jsongate.Error{Kind: jsongate.KindValidatorFailed}, p))

	tooBig := &jsongate.Error{Kind: jsongate.KindReadFailed, Cause: &http.MaxBytesError{Limit: 10}}
	assert.Equal(t, http.StatusRequestEntityTooLarge, middleware.StatusFor(tooBig, p))
}

func TestPayload_Unsupported(t *testing.T) {
	err := fmt.Errorf("streaming ingest: %w", errors.ErrUnsupported)
	assert.Equal(t, http.StatusNotImplemented, middleware.StatusFor(err, middleware.Policy{}))
	assert.False(t, middleware.Internal(err, middleware.Policy{}))
	got := middleware.Payload(err, middleware.Policy{})
	assert.Equal(t, middleware.CodeNotImplemented, got.Code)
	assert.Equal(t, "streaming ingest: unsupported operation", got.Message)
}

func TestPayload_Verbosity(t *testing.T) {
	err := ingest(t, jsongate.MustLimits(jsongate.MaxStringLength(5)), `{"k":"abcdef"}`)
	tr := i18n.New("en")

	quiet := middleware.Payload(err, middleware.Policy{Verbosity: 0, Translator: tr})
	assert.Equal(t, "string_too_long", quiet.Code)
	assert.Equal(t, "string too long (max 5 characters)", quiet.Message)
	assert.Empty(t, quiet.Path)
	assert.Nil(t, quiet.Cause)

	loud := middleware.Payload(err, middleware.Policy{Verbosity: 1, Translator: tr})
	assert.Equal(t, "/k", loud.Path)
	assert.Equal(t, 1, loud.Line)
	require.NotNil(t, loud.Cause)
	assert.Nil(t, loud.Cause.Cause, "verbosity 1 shows one cause level")

	louder := middleware.Payload(ingest(t, jsongate.Unbounded(), `{"a" 1}`), middleware.Policy{Verbosity: 3, Translator: tr})
	require.NotNil(t, louder.Cause)
	assert.Contains(t, louder.Cause.Message, "after object key")
}

func TestPayload_Issues(t *testing.T) {
	err := &jsongate.Error{Kind: jsongate.KindSchemaViolation, Issues: jsongate.Issues{
		{Path: "/Request", Keyword: "/properties/Request/required", Message: "missing properties: 'id'"},
	}}
	assert.Empty(t, middleware.Payload(err, middleware.Policy{}).Issues)
	got := middleware.Payload(err, middleware.Policy{Verbosity: 1})
	require.Len(t, got.Issues, 1)
	assert.Equal(t, "/Request", got.Issues[0].Path)
	assert.Nil(t, got.Cause)
}

func TestPayload_InternalIsGeneric(t *testing.T) {
	secret := fmt.Errorf("db password is hunter2")
	for _, err := range []error{secret, &jsongate.Error{Kind: jsongate.KindValidatorFailed, Cause: secret}} {
		got := middleware.Payload(err, middleware.Policy{Verbosity: 10})
		assert.Equal(t, middleware.GenericInternalMessage, got.Message)
		assert.Nil(t, got.Cause)
		assert.True(t, middleware.Internal(err, middleware.Policy{}))
	}
}

func TestAcceptAllowed(t *testing.T) {
	allowed := []string{"application/json", "application/xacml+json"}
	cases := []struct {
		accept string
		want   bool
	}{
		{"", true},
		{"*/*", true},
		{"application/json", true},
		{"application/xacml+json;charset=utf-8", true},
		{"Application/JSON", true},
		{"text/html, application/json", false},
		{"application/json, text/html", true},
		{"*/*;q=0.8", true},
		{"text/plain", false},
		{"not a media type", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, middleware.AcceptAllowed(tc.accept, allowed), "accept %q", tc.accept)
	}
}

type closeRecorder struct {
	io.Reader
	closed bool
}

func (c *closeRecorder) Close() error { c.closed = true; return nil }

func TestDecodeBody(t *testing.T) {
	const doc = `{"a":[1,2,3]}`

	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	_, _ = zw.Write([]byte(doc))
	require.NoError(t, zw.Close())

	var zs bytes.Buffer
	enc, err := zstd.NewWriter(&zs)
	require.NoError(t, err)
	_, _ = enc.Write([]byte(doc))
	require.NoError(t, enc.Close())

	for enc, body := range map[string][]byte{"": []byte(doc), "identity": []byte(doc), "gzip": gz.Bytes(), "zstd": zs.Bytes()} {
		src := &closeRecorder{Reader: bytes.NewReader(body)}
		rc, err := middleware.DecodeBody(enc, src)
		require.NoError(t, err, enc)
		got, err := io.ReadAll(rc)
		require.NoError(t, err, enc)
		assert.Equal(t, doc, string(got), enc)
		require.NoError(t, rc.Close())
		assert.True(t, src.closed, enc)
	}

	_, err = middleware.DecodeBody("br", io.NopCloser(strings.NewReader("")))
	assert.ErrorIs(t, err, middleware.ErrUnsupportedEncoding)
	assert.Equal(t, http.StatusUnsupportedMediaType, middleware.StatusFor(err, middleware.Policy{}))

	_, err = middleware.DecodeBody("gzip", io.NopCloser(strings.NewReader("not gzip")))
	assert.Error(t, err)
}

func TestValueContext(t *testing.T) {
	ctx := middleware.ContextWithValue(context.Background(), jsonvalue.String("x"))
	v, ok := middleware.ValueFromContext(ctx)
	require.True(t, ok)
	s, _ := v.AsString()
	assert.Equal(t, "x", s)
	_, ok = middleware.ValueFromContext(context.Background())
	assert.False(t, ok)
}
