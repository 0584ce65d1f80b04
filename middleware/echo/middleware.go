package echomw

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	jsongate "github.com/reoring/jsongate"
	"github.com/reoring/jsongate/i18n"
	"github.com/reoring/jsongate/jsonvalue"
	"github.com/reoring/jsongate/middleware"
)

const valueKey = "jsongate.value"

// Options configures Ingest.
type Options struct {
	// MaxBodyBytes caps the request body before and after decompression.
	// Zero or less disables the cap.
	MaxBodyBytes int64
	Policy       middleware.Policy
}

// Ingest reads the request body through the pipeline returned by src, stores
// the document in the echo and request contexts on success, or answers with
// the mapped status and error payload.
func Ingest(src func() *jsongate.Pipeline, opts Options) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p := src()
			if p == nil {
				return fail(c, opts.Policy, errors.New("no pipeline configured"))
			}
			req := c.Request()
			body := req.Body
			if body == nil {
				body = http.NoBody
			}
			if opts.MaxBodyBytes > 0 {
				body = http.MaxBytesReader(c.Response(), body, opts.MaxBodyBytes)
			}
			decoded, err := middleware.DecodeBody(req.Header.Get(echo.HeaderContentEncoding), body)
			if err != nil {
				if !errors.Is(err, middleware.ErrUnsupportedEncoding) {
					err = &jsongate.Error{Kind: jsongate.KindReadFailed, Message: "invalid compressed body", Cause: err}
				}
				return fail(c, opts.Policy, err)
			}
			defer func() { _ = decoded.Close() }()
			if decoded != body && opts.MaxBodyBytes > 0 {
				decoded = http.MaxBytesReader(c.Response(), decoded, opts.MaxBodyBytes)
			}

			v, err := p.IngestContext(req.Context(), decoded)
			if err != nil {
				return fail(c, opts.Policy, err)
			}
			c.Set(valueKey, v)
			c.SetRequest(req.WithContext(middleware.ContextWithValue(req.Context(), v)))
			return next(c)
		}
	}
}

// fail answers with the error payload. Internal errors are also returned to
// echo so its error handler and logger see them; the response is already
// committed at that point.
func fail(c echo.Context, p middleware.Policy, err error) error {
	status := middleware.StatusFor(err, p)
	if jerr := c.JSON(status, middleware.Payload(err, p)); jerr != nil {
		return jerr
	}
	if middleware.Internal(err, p) {
		return err
	}
	return nil
}

// GetValue fetches the ingested document from echo.Context.
func GetValue(c echo.Context) (jsonvalue.Value, bool) {
	if v, ok := c.Get(valueKey).(jsonvalue.Value); ok {
		return v, true
	}
	return middleware.ValueFromContext(c.Request().Context())
}

// AcceptFilter answers 406 unless the first Accept media type is one of
// mediaTypes. */* and a missing header always pass.
func AcceptFilter(p middleware.Policy, mediaTypes ...string) echo.MiddlewareFunc {
	allowed := append([]string(nil), mediaTypes...)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if middleware.AcceptAllowed(c.Request().Header.Get(echo.HeaderAccept), allowed) {
				return next(c)
			}
			tr := p.Translator
			if tr == nil {
				tr = i18n.New("en")
			}
			return c.JSON(http.StatusNotAcceptable, middleware.ErrorMessage{
				Code:    middleware.CodeNotAcceptable,
				Message: tr.Message(middleware.CodeNotAcceptable, nil),
			})
		}
	}
}
