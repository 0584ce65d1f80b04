package jsongate

import (
	"context"
	"fmt"

	"github.com/reoring/jsongate/jsonvalue"
)

// Schema is an opaque schema handle. The core never looks inside it; it is
// handed to the Validator unchanged.
type Schema = any

// Validator checks a parsed document against a schema. A rejection must
// carry Issues (see AsIssues); any other error is treated as a failure of
// the validator itself.
type Validator interface {
	Validate(ctx context.Context, doc jsonvalue.Value, s Schema) error
}

// ValidatorFunc adapts a function to the Validator interface.
type ValidatorFunc func(ctx context.Context, doc jsonvalue.Value, s Schema) error

func (f ValidatorFunc) Validate(ctx context.Context, doc jsonvalue.Value, s Schema) error {
	return f(ctx, doc, s)
}

type bindingMode int

const (
	bindNone bindingMode = iota
	bindSingle
	bindByRootProperty
)

// SchemaBinding decides which schema, if any, applies to a document. The
// zero value binds no schema.
type SchemaBinding struct {
	mode   bindingMode
	single Schema
	byKey  map[string]Schema
}

// NoSchema returns a binding that never validates.
func NoSchema() SchemaBinding { return SchemaBinding{} }

// SingleSchema returns a binding that validates every document against s.
func SingleSchema(s Schema) SchemaBinding {
	return SchemaBinding{mode: bindSingle, single: s}
}

// ByRootProperty returns a binding that picks the schema registered under the
// document's first top-level key. Documents whose first key is not
// registered pass through unvalidated. The map is copied.
func ByRootProperty(schemas map[string]Schema) SchemaBinding {
	m := make(map[string]Schema, len(schemas))
	for k, v := range schemas {
		m[k] = v
	}
	return SchemaBinding{mode: bindByRootProperty, byKey: m}
}

// NeedsValidator reports whether the binding can ever select a schema.
func (b SchemaBinding) NeedsValidator() bool {
	switch b.mode {
	case bindSingle:
		return true
	case bindByRootProperty:
		return len(b.byKey) > 0
	default:
		return false
	}
}

// RootProperties returns the registered first keys of a ByRootProperty
// binding in no particular order.
func (b SchemaBinding) RootProperties() []string {
	if b.mode != bindByRootProperty {
		return nil
	}
	keys := make([]string, 0, len(b.byKey))
	for k := range b.byKey {
		keys = append(keys, k)
	}
	return keys
}

func (b SchemaBinding) String() string {
	switch b.mode {
	case bindSingle:
		return "single"
	case bindByRootProperty:
		return fmt.Sprintf("by_root_property(%d)", len(b.byKey))
	default:
		return "none"
	}
}

// Select returns the schema b applies to doc. ok is false when the document
// passes unvalidated. Only the first top-level key in document order is
// consulted; a ByRootProperty binding fails with ErrEmptyOrNonObjectDocument
// when doc is not an object or has no members.
func Select(doc jsonvalue.Value, b SchemaBinding) (Schema, bool, error) {
	switch b.mode {
	case bindSingle:
		return b.single, true, nil
	case bindByRootProperty:
		key, ok := doc.FirstKey()
		if !ok {
			msg := "document is not an object"
			if doc.Kind() == jsonvalue.KindObject {
				msg = "document is an empty object"
			}
			return nil, false, &Error{Kind: KindEmptyOrNonObjectDocument, Message: msg, Path: "/"}
		}
		s, hit := b.byKey[key]
		if !hit {
			return nil, false, nil
		}
		return s, true, nil
	default:
		return nil, false, nil
	}
}
