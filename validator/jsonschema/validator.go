package jsonschema

import (
	"context"
	"errors"
	"fmt"
	"strings"

	jsongate "github.com/reoring/jsongate"
	"github.com/reoring/jsongate/jsonvalue"
	jschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// Validator implements jsongate.Validator for schemas produced by Compiler.
// The zero value is ready to use.
type Validator struct{}

var _ jsongate.Validator = Validator{}

// Validate checks doc against s, which must be a *jschema.Schema. A rejection
// is returned as jsongate.Issues, one per failing leaf keyword.
func (Validator) Validate(ctx context.Context, doc jsonvalue.Value, s jsongate.Schema) error {
	sch, ok := s.(*jschema.Schema)
	if !ok || sch == nil {
		return fmt.Errorf("jsonschema: unsupported schema type %T", s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	err := sch.Validate(doc.Interface())
	if err == nil {
		return nil
	}
	var ve *jschema.ValidationError
	if !errors.As(err, &ve) {
		return fmt.Errorf("jsonschema: %w", err)
	}
	return issuesFrom(ve)
}

// issuesFrom flattens the cause tree into its leaves. Inner nodes only say
// that a subschema failed and carry nothing a client can act on.
func issuesFrom(ve *jschema.ValidationError) jsongate.Issues {
	var out jsongate.Issues
	var walk func(*jschema.ValidationError)
	walk = func(e *jschema.ValidationError) {
		if len(e.Causes) == 0 {
			out = jsongate.AppendIssues(out, jsongate.Issue{
				Path:           instancePath(e.InstanceLocation),
				Keyword:        instancePath(e.KeywordLocation),
				SchemaLocation: e.AbsoluteKeywordLocation,
				Message:        e.Message,
				Params:         map[string]any{"keyword": lastToken(e.KeywordLocation)},
			})
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	return out
}

func instancePath(p string) string {
	if p == "" {
		return "/"
	}
	return p
}

func lastToken(p string) string {
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[i+1:]
	}
	return p
}
