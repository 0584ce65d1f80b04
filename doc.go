// Package jsongate provides:
//
// - A bounded JSON parser that enforces string length, children per container
// and nesting depth while reading untrusted input (Parse)
// - Schema selection by the document's first top-level property (SchemaBinding, Select)
// - An ingestion pipeline composing parse, select and validate into one
// classified result (Pipeline.Ingest)
// - A stable error model via *Error kinds, limit kinds and structured Issues
//
// Design policy:
// - Limits and SchemaBinding are immutable values built once and shared by
// every Ingest call; there is no package-level default configuration.
// - The core never logs. Observability and HTTP mapping live in
// middleware, middleware/gin and middleware/echo; schema evaluation lives in
// validator/jsonschema.
//
// Typical usage:
//
//	lim, err := jsongate.NewLimits(jsongate.MaxStringLength(65536), jsongate.MaxDepth(64))
//	b := jsongate.ByRootProperty(map[string]jsongate.Schema{"Request": reqSchema})
//	p, err := jsongate.New(lim, b, jsonschema.Validator{})
//	doc, err := p.IngestContext(ctx, body)
package jsongate
