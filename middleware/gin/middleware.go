package ginmw

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	gojson "github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"

	jsongate "github.com/reoring/jsongate"
	"github.com/reoring/jsongate/i18n"
	"github.com/reoring/jsongate/jsonvalue"
	"github.com/reoring/jsongate/middleware"
)

const (
	RequestIDKey    = "request_id"
	RequestIDHeader = "X-Request-ID"
	valueKey        = "jsongate.value"
	contentTypeJSON = "application/json; charset=utf-8"
)

// PipelineSource returns the pipeline to use for the current request. It is
// called once per request so a reloaded pipeline takes effect immediately.
type PipelineSource func() *jsongate.Pipeline

// Static returns a PipelineSource that always yields p.
func Static(p *jsongate.Pipeline) PipelineSource {
	return func() *jsongate.Pipeline { return p }
}

// Options configures Ingest.
type Options struct {
	// MaxBodyBytes caps the request body before and after decompression.
	// Zero or less disables the cap.
	MaxBodyBytes int64
	Policy       middleware.Policy
	// Logger receives internal errors. zap.NewNop is used when nil.
	Logger *zap.Logger
}

// Ingest reads the request body through the pipeline. On success the
// document is stored in the gin and request contexts (see GetValue); on
// failure the classified error is written with its mapped status and the
// chain is aborted.
func Ingest(src PipelineSource, opts Options) gin.HandlerFunc {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		p := src()
		if p == nil {
			Abort(c, log, opts.Policy, errors.New("no pipeline configured"))
			return
		}
		body := c.Request.Body
		if body == nil {
			body = http.NoBody
		}
		if opts.MaxBodyBytes > 0 {
			body = http.MaxBytesReader(c.Writer, body, opts.MaxBodyBytes)
		}
		decoded, err := middleware.DecodeBody(c.GetHeader("Content-Encoding"), body)
		if err != nil {
			if !errors.Is(err, middleware.ErrUnsupportedEncoding) {
				err = &jsongate.Error{Kind: jsongate.KindReadFailed, Message: "invalid compressed body", Cause: err}
			}
			Abort(c, log, opts.Policy, err)
			return
		}
		defer func() { _ = decoded.Close() }()
		if decoded != body && opts.MaxBodyBytes > 0 {
			decoded = http.MaxBytesReader(c.Writer, decoded, opts.MaxBodyBytes)
		}

		v, err := p.IngestContext(c.Request.Context(), decoded)
		if err != nil {
			Abort(c, log, opts.Policy, err)
			return
		}
		c.Set(valueKey, v)
		c.Request = c.Request.WithContext(middleware.ContextWithValue(c.Request.Context(), v))
		c.Next()
	}
}

// GetValue fetches the ingested document from gin.Context.
func GetValue(c *gin.Context) (jsonvalue.Value, bool) {
	if v, ok := c.Get(valueKey); ok {
		jv, ok := v.(jsonvalue.Value)
		return jv, ok
	}
	return middleware.ValueFromContext(c.Request.Context())
}

// Abort writes err as an error payload and aborts the chain. Internal errors
// are logged with the request ID and shown as the generic message.
func Abort(c *gin.Context, log *zap.Logger, p middleware.Policy, err error) {
	_ = c.Error(err)
	status := middleware.StatusFor(err, p)
	if middleware.Internal(err, p) {
		log.Error("ingest failed", zap.String("request_id", GetRequestID(c)), zap.Error(err))
	}
	writeJSON(c, status, middleware.Payload(err, p))
	c.Abort()
}

func writeJSON(c *gin.Context, status int, payload any) {
	b, err := gojson.Marshal(payload)
	if err != nil {
		c.Data(http.StatusInternalServerError, contentTypeJSON, []byte(`{"code":"internal","message":"`+middleware.GenericInternalMessage+`"}`))
		return
	}
	c.Data(status, contentTypeJSON, b)
}

// AcceptFilter rejects requests whose first Accept media type is not one of
// mediaTypes with 406. */* and a missing header always pass.
func AcceptFilter(p middleware.Policy, mediaTypes ...string) gin.HandlerFunc {
	allowed := append([]string(nil), mediaTypes...)
	return func(c *gin.Context) {
		if middleware.AcceptAllowed(c.GetHeader("Accept"), allowed) {
			c.Next()
			return
		}
		msg := middleware.ErrorMessage{Code: middleware.CodeNotAcceptable, Message: translate(p, middleware.CodeNotAcceptable)}
		writeJSON(c, http.StatusNotAcceptable, msg)
		c.Abort()
	}
}

func translate(p middleware.Policy, code string) string {
	if p.Translator != nil {
		return p.Translator.Message(code, nil)
	}
	return i18n.T(code, nil)
}

// RequestID is a Gin middleware that ensures every request has a unique identifier.
// A client supplied X-Request-ID of 1 to 64 bytes is kept; otherwise a new
// UUID is generated. The ID is echoed in the response headers and stored in
// the Gin context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if l := len(requestID); l < 1 || l > 64 {
			requestID = uuid.New().String()
		}
		c.Header(RequestIDHeader, requestID)
		c.Set(RequestIDKey, requestID)
		c.Next()
	}
}

// GetRequestID retrieves the request ID from the Gin context.
// Returns empty string if no request ID is found.
func GetRequestID(c *gin.Context) string {
	if requestID, exists := c.Get(RequestIDKey); exists {
		if id, ok := requestID.(string); ok {
			return id
		}
	}
	return ""
}

// AccessLog records HTTP request/response details with Zap after handling.
func AccessLog(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		var errs []error
		for _, ge := range c.Errors {
			if ge.Err != nil {
				errs = append(errs, ge.Err)
			}
		}
		joinedErr := errors.Join(errs...)

		fields := []zap.Field{
			zap.String("request_id", GetRequestID(c)),
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.String("client_ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)),
		}
		if enc := c.GetHeader("Content-Encoding"); enc != "" {
			fields = append(fields, zap.String("content_encoding", enc))
		}
		if code := errorCode(joinedErr); code != "" {
			fields = append(fields, zap.String("code", code))
		}
		if joinedErr != nil {
			fields = append(fields, zap.Error(joinedErr))
		}

		switch {
		case status >= 500:
			log.Error("http", fields...)
		case status >= 400:
			log.Warn("http", fields...)
		default:
			log.Info("http", fields...)
		}
	}
}

func errorCode(err error) string {
	var ge *jsongate.Error
	if errors.As(err, &ge) {
		return ge.Code()
	}
	return ""
}

// Recovery turns panics into the generic 500 payload and logs them.
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, rec any) {
		log.Error("panic recovered", zap.String("request_id", GetRequestID(c)), zap.Any("panic", rec), zap.Stack("stack"))
		writeJSON(c, http.StatusInternalServerError, middleware.ErrorMessage{Code: middleware.CodeInternal, Message: middleware.GenericInternalMessage})
		c.Abort()
	})
}
