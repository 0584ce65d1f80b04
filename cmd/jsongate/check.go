package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	gojson "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	jsongate "github.com/reoring/jsongate"
	"github.com/reoring/jsongate/config"
	"github.com/reoring/jsongate/middleware"
	"github.com/reoring/jsongate/validator/jsonschema"
)

// errCheckFailed reports that at least one input was rejected. The details
// were already printed.
var errCheckFailed = errors.New("check failed")

type checkOptions struct {
	cfgPath         string
	maxStringLength int
	maxChildren     int
	maxDepth        int
	schema          string
	rootSchemas     map[string]string
	print           bool
	jsonOut         bool
	verbosity       int
}

func newCheckCmd() *cobra.Command {
	opts := checkOptions{}
	cmd := &cobra.Command{
		Use:   "check [file...]",
		Short: "Ingest JSON files (or stdin) and report the classified result",
		Long: `Ingest each file through the bounded parser and optional schema.
Limits and schemas come from --config, or from flags when no config is given.
Use "-" or no argument to read stdin.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := opts.pipeline(cmd)
			if err != nil {
				return err
			}
			if len(args) == 0 {
				args = []string{"-"}
			}
			failed := false
			for _, name := range args {
				if !checkOne(cmd, p, name, opts) {
					failed = true
				}
			}
			if failed {
				return errCheckFailed
			}
			return nil
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&opts.cfgPath, "config", "c", "", "config yaml path (limits and schema sections are used)")
	fs.IntVar(&opts.maxStringLength, "max-string-length", 0, "max code points per string or key (0 = unbounded)")
	fs.IntVar(&opts.maxChildren, "max-children", 0, "max members/elements per container (0 = unbounded)")
	fs.IntVar(&opts.maxDepth, "max-depth", 0, "max nesting depth (0 = unbounded)")
	fs.StringVar(&opts.schema, "schema", "", "validate every document against this JSON Schema file")
	fs.StringToStringVar(&opts.rootSchemas, "root-schema", nil, "ROOT=FILE schema selected by the first top-level key (repeatable)")
	fs.BoolVar(&opts.print, "print", false, "print the canonical JSON of accepted documents")
	fs.BoolVar(&opts.jsonOut, "json", false, "print failures as JSON error payloads")
	fs.IntVar(&opts.verbosity, "verbosity", 3, "cause levels shown for failures")
	cmd.MarkFlagsMutuallyExclusive("schema", "root-schema")
	cmd.MarkFlagsMutuallyExclusive("config", "schema")
	cmd.MarkFlagsMutuallyExclusive("config", "root-schema")
	return cmd
}

func (o checkOptions) pipeline(cmd *cobra.Command) (*jsongate.Pipeline, error) {
	if o.cfgPath != "" {
		for _, f := range []string{"max-string-length", "max-children", "max-depth"} {
			if cmd.Flags().Changed(f) {
				return nil, fmt.Errorf("--%s cannot be combined with --config", f)
			}
		}
		rt, err := config.LoadRuntime(o.cfgPath)
		if err != nil {
			return nil, err
		}
		return rt.Pipeline, nil
	}

	var lopts []jsongate.LimitOption
	if o.maxStringLength > 0 {
		lopts = append(lopts, jsongate.MaxStringLength(o.maxStringLength))
	}
	if o.maxChildren > 0 {
		lopts = append(lopts, jsongate.MaxChildren(o.maxChildren))
	}
	if o.maxDepth > 0 {
		lopts = append(lopts, jsongate.MaxDepth(o.maxDepth))
	}
	lim, err := jsongate.NewLimits(lopts...)
	if err != nil {
		return nil, err
	}

	comp := jsonschema.NewCompiler()
	binding := jsongate.NoSchema()
	switch {
	case o.schema != "":
		s, err := comp.CompileFile(o.schema)
		if err != nil {
			return nil, err
		}
		binding = jsongate.SingleSchema(s)
	case len(o.rootSchemas) > 0:
		m := make(map[string]jsongate.Schema, len(o.rootSchemas))
		for root, path := range o.rootSchemas {
			s, err := comp.CompileFile(path)
			if err != nil {
				return nil, err
			}
			m[root] = s
		}
		binding = jsongate.ByRootProperty(m)
	}
	return jsongate.New(lim, binding, jsonschema.Validator{})
}

func checkOne(cmd *cobra.Command, p *jsongate.Pipeline, name string, o checkOptions) bool {
	out := cmd.OutOrStdout()
	var r io.Reader
	if name == "-" {
		r = cmd.InOrStdin()
	} else {
		// #nosec G304 -- paths are given on the command line.
		f, err := os.Open(name)
		if err != nil {
			fmt.Fprintf(out, "%s: %v\n", name, err)
			return false
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	v, err := p.IngestContext(cmd.Context(), r)
	if err != nil {
		reportFailure(out, name, err, o)
		return false
	}
	if o.print {
		if err := p.Write(out, v); err != nil {
			fmt.Fprintf(out, "%s: write: %v\n", name, err)
			return false
		}
		fmt.Fprintln(out)
		return true
	}
	fmt.Fprintf(out, "%s: ok\n", name)
	return true
}

func reportFailure(out io.Writer, name string, err error, o checkOptions) {
	if o.jsonOut {
		payload := middleware.Payload(err, middleware.Policy{Verbosity: o.verbosity})
		b, _ := gojson.Marshal(map[string]any{"file": name, "error": payload})
		fmt.Fprintln(out, string(b))
		return
	}
	var ge *jsongate.Error
	if !errors.As(err, &ge) {
		fmt.Fprintf(out, "%s: %v\n", name, err)
		return
	}
	b := &strings.Builder{}
	fmt.Fprintf(b, "%s: %s", name, ge.Code())
	if ge.Line > 0 {
		fmt.Fprintf(b, " at %d:%d", ge.Line, ge.Column)
	}
	if ge.Path != "" {
		fmt.Fprintf(b, " %s", ge.Path)
	}
	if ge.Kind == jsongate.KindLimitExceeded {
		fmt.Fprintf(b, " (max %d)", ge.Max)
	}
	if ge.Message != "" {
		fmt.Fprintf(b, ": %s", ge.Message)
	} else if ge.Cause != nil && ge.Kind != jsongate.KindLimitExceeded {
		fmt.Fprintf(b, ": %v", ge.Cause)
	}
	fmt.Fprintln(out, b.String())
	issues := append(jsongate.Issues(nil), ge.Issues...)
	sort.SliceStable(issues, func(i, j int) bool { return issues[i].Path < issues[j].Path })
	for _, it := range issues {
		fmt.Fprintf(out, "  %s %s: %s\n", it.Path, it.Keyword, it.Message)
	}
}
