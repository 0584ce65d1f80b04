package ginmw

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	Options
	// Accept lists the media types the ingest route produces. Empty allows
	// any Accept header.
	Accept []string
	// IngestPath defaults to /v1/ingest.
	IngestPath string
}

// NewRouter returns an engine with recovery, request IDs and access logging
// that serves:
//
//	POST /v1/ingest  ingests the body and answers with its canonical JSON
//	GET  /healthz    liveness
func NewRouter(src PipelineSource, opts RouterOptions) *gin.Engine {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	opts.Logger = log
	path := opts.IngestPath
	if path == "" {
		path = "/v1/ingest"
	}

	r := gin.New()
	r.Use(Recovery(log)) // Recovery first (outermost)
	r.Use(RequestID())
	r.Use(AccessLog(log.Named("access")))

	r.GET("/healthz", func(c *gin.Context) {
		c.Data(http.StatusOK, contentTypeJSON, []byte(`{"status":"ok"}`))
	})

	chain := []gin.HandlerFunc{}
	if len(opts.Accept) > 0 {
		chain = append(chain, AcceptFilter(opts.Policy, opts.Accept...))
	}
	chain = append(chain, Ingest(src, opts.Options), echoCanonical(src, log))
	r.POST(path, chain...)
	return r
}

// echoCanonical answers with the ingested document in canonical form.
func echoCanonical(src PipelineSource, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, ok := GetValue(c)
		if !ok {
			c.Status(http.StatusNoContent)
			return
		}
		c.Header("Content-Type", contentTypeJSON)
		c.Status(http.StatusOK)
		if err := src().Write(c.Writer, v); err != nil {
			// headers are already sent; the client sees a truncated body
			log.Warn("write response failed", zap.String("request_id", GetRequestID(c)), zap.Error(err))
			_ = c.Error(err)
		}
	}
}
