// Package jsonschema validates ingested documents with JSON Schema.
//
// Schemas are compiled with github.com/santhosh-tekuri/jsonschema/v5. Schema
// files may be written as JSONC (comments and trailing commas); they are
// normalized to JSON before compilation, including files reached through
// $ref.
package jsonschema

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	jschema "github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/jsonc"
)

// Compiler turns schema documents into *jschema.Schema values usable as
// jsongate.Schema.
type Compiler struct {
	c *jschema.Compiler
}

// CompilerOption configures a Compiler.
type CompilerOption func(*jschema.Compiler)

// WithDraft selects the default draft for schemas without $schema.
func WithDraft(d *jschema.Draft) CompilerOption {
	return func(c *jschema.Compiler) { c.Draft = d }
}

// WithFormatAssertions makes "format" an assertion instead of an annotation.
func WithFormatAssertions() CompilerOption {
	return func(c *jschema.Compiler) { c.AssertFormat = true }
}

// NewCompiler returns a Compiler defaulting to draft 2020-12.
func NewCompiler(opts ...CompilerOption) *Compiler {
	c := jschema.NewCompiler()
	c.Draft = jschema.Draft2020
	c.LoadURL = loadURL
	for _, opt := range opts {
		opt(c)
	}
	return &Compiler{c: c}
}

// AddBytes registers a schema document under name. name may be a URL or a
// plain identifier; plain identifiers are placed under the "mem:" scheme.
func (c *Compiler) AddBytes(name string, data []byte) error {
	js, err := normalize(data)
	if err != nil {
		return fmt.Errorf("schema %s: %w", name, err)
	}
	if err := c.c.AddResource(resourceURL(name), bytes.NewReader(js)); err != nil {
		return fmt.Errorf("schema %s: %w", name, err)
	}
	return nil
}

// CompileBytes registers and compiles a schema document.
func (c *Compiler) CompileBytes(name string, data []byte) (*jschema.Schema, error) {
	if err := c.AddBytes(name, data); err != nil {
		return nil, err
	}
	s, err := c.c.Compile(resourceURL(name))
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return s, nil
}

// CompileFile reads, registers and compiles the schema file at path.
// Relative $refs resolve against the file's location.
func (c *Compiler) CompileFile(path string) (*jschema.Schema, error) {
	u, err := fileURL(path)
	if err != nil {
		return nil, err
	}
	s, err := c.c.Compile(u)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", path, err)
	}
	return s, nil
}

// CompileFile compiles one schema file with a fresh default Compiler.
func CompileFile(path string) (*jschema.Schema, error) {
	return NewCompiler().CompileFile(path)
}

func normalize(data []byte) ([]byte, error) {
	js := jsonc.ToJSON(data)
	if len(bytes.TrimSpace(js)) == 0 {
		return nil, fmt.Errorf("empty schema document")
	}
	return js, nil
}

func resourceURL(name string) string {
	if strings.Contains(name, ":") {
		return name
	}
	return "mem:" + name
}

func fileURL(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve schema path %s: %w", path, err)
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return u.String(), nil
}

// loadURL reads file:// resources as JSONC and defers everything else to the
// library's loaders.
func loadURL(s string) (io.ReadCloser, error) {
	u, err := url.Parse(s)
	if err != nil || u.Scheme != "file" {
		return jschema.LoadURL(s)
	}
	data, err := os.ReadFile(filepath.FromSlash(u.Path))
	if err != nil {
		return nil, err
	}
	js, err := normalize(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", u.Path, err)
	}
	return io.NopCloser(bytes.NewReader(js)), nil
}
