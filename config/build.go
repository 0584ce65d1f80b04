package config

import (
	"fmt"
	"os"

	"github.com/zeebo/blake3"

	jsongate "github.com/reoring/jsongate"
	"github.com/reoring/jsongate/validator/jsonschema"
)

// Runtime is a pipeline built from one Config, together with the
// fingerprint of everything it was built from.
type Runtime struct {
	Config   *Config
	Pipeline *jsongate.Pipeline
	Digest   [32]byte
}

// BuildLimits converts the limits section.
func (c *Config) BuildLimits() (jsongate.Limits, error) {
	var opts []jsongate.LimitOption
	if v := c.Limits.MaxStringLength; v != nil {
		opts = append(opts, jsongate.MaxStringLength(*v))
	}
	if v := c.Limits.MaxChildren; v != nil {
		opts = append(opts, jsongate.MaxChildren(*v))
	}
	if v := c.Limits.MaxDepth; v != nil {
		opts = append(opts, jsongate.MaxDepth(*v))
	}
	return jsongate.NewLimits(opts...)
}

// BuildBinding compiles the referenced schema files into a binding.
func (c *Config) BuildBinding() (jsongate.SchemaBinding, error) {
	var copts []jsonschema.CompilerOption
	if c.Schema.AssertFormat {
		copts = append(copts, jsonschema.WithFormatAssertions())
	}
	comp := jsonschema.NewCompiler(copts...)
	switch {
	case c.Schema.File != "":
		s, err := comp.CompileFile(c.resolve(c.Schema.File))
		if err != nil {
			return jsongate.SchemaBinding{}, err
		}
		return jsongate.SingleSchema(s), nil
	case len(c.Schema.ByRootProperty) > 0:
		m := make(map[string]jsongate.Schema, len(c.Schema.ByRootProperty))
		for key, path := range c.Schema.ByRootProperty {
			s, err := comp.CompileFile(c.resolve(path))
			if err != nil {
				return jsongate.SchemaBinding{}, fmt.Errorf("schema for %q: %w", key, err)
			}
			m[key] = s
		}
		return jsongate.ByRootProperty(m), nil
	default:
		return jsongate.NoSchema(), nil
	}
}

// Build compiles the configuration into a Runtime.
func (c *Config) Build() (*Runtime, error) {
	digest, err := c.Digest()
	if err != nil {
		return nil, err
	}
	lim, err := c.BuildLimits()
	if err != nil {
		return nil, err
	}
	b, err := c.BuildBinding()
	if err != nil {
		return nil, err
	}
	p, err := jsongate.New(lim, b, jsonschema.Validator{})
	if err != nil {
		return nil, err
	}
	return &Runtime{Config: c, Pipeline: p, Digest: digest}, nil
}

// Digest fingerprints the configuration bytes and every referenced schema
// file. Equal digests mean a reload would build the same pipeline.
func (c *Config) Digest() ([32]byte, error) {
	h := blake3.New()
	writeFramed(h, []byte("config"))
	writeFramed(h, c.raw)
	for _, p := range c.SchemaFiles() {
		// #nosec G304 -- schema paths come from the trusted config file.
		b, err := os.ReadFile(p)
		if err != nil {
			return [32]byte{}, fmt.Errorf("read schema %s: %w", p, err)
		}
		writeFramed(h, []byte(p))
		writeFramed(h, b)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out, nil
}

func writeFramed(h *blake3.Hasher, b []byte) {
	var n [8]byte
	l := uint64(len(b))
	for i := range n {
		n[i] = byte(l >> (8 * i))
	}
	_, _ = h.Write(n[:])
	_, _ = h.Write(b)
}

// LoadRuntime loads the file at path and builds its Runtime.
func LoadRuntime(path string) (*Runtime, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	rt, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return rt, nil
}
