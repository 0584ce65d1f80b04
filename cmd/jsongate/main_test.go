package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCmd(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestRootCmdHasSubcommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"check", "serve", "version"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestVersionCmdOutput(t *testing.T) {
	out, err := runCmd(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, versionString(), strings.TrimSpace(out))
}

func TestCheck_Stdin(t *testing.T) {
	out, err := runCmd(t, `{"a": [1, 2]}`, "check", "--print")
	require.NoError(t, err)
	assert.Equal(t, `{"a":[1,2]}`, strings.TrimSpace(out))

	out, err = runCmd(t, `{"a":{"b":{"c":1}}}`, "check", "--max-depth", "2")
	require.ErrorIs(t, err, errCheckFailed)
	assert.Equal(t, "-: too_deep at 1:11 /a/b (max 2)", strings.TrimSpace(out))
}

func TestCheck_JSONOutput(t *testing.T) {
	out, err := runCmd(t, `{"k":"abcdef"}`, "check", "--max-string-length", "5", "--json")
	require.ErrorIs(t, err, errCheckFailed)
	assert.Contains(t, out, `"code":"string_too_long"`)
	assert.Contains(t, out, `"path":"/k"`)
}

func TestCheck_InvalidLimitFlag(t *testing.T) {
	_, err := runCmd(t, `{}`, "check", "--max-depth", "-1")
	assert.NoError(t, err, "non-positive flags mean unbounded")
}

func TestCheck_RootSchemas(t *testing.T) {
	dir := t.TempDir()
	schema := filepath.Join(dir, "req.jsonc")
	require.NoError(t, os.WriteFile(schema, []byte(`{
  // Request envelope
  "type": "object",
  "properties": {"Request": {"required": ["id"]}},
}`), 0o644))
	good := filepath.Join(dir, "good.json")
	bad := filepath.Join(dir, "bad.json")
	other := filepath.Join(dir, "other.json")
	require.NoError(t, os.WriteFile(good, []byte(`{"Request":{"id":1}}`), 0o644))
	require.NoError(t, os.WriteFile(bad, []byte(`{"Request":{}}`), 0o644))
	require.NoError(t, os.WriteFile(other, []byte(`{"Other":{}}`), 0o644))

	out, err := runCmd(t, "", "check", "--root-schema", "Request="+schema, good, bad, other)
	require.ErrorIs(t, err, errCheckFailed)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.GreaterOrEqual(t, len(lines), 4, out)
	assert.Equal(t, good+": ok", lines[0])
	assert.Equal(t, bad+": schema_violation", lines[1])
	assert.Contains(t, lines[2], "/Request")
	assert.Equal(t, other+": ok", lines[len(lines)-1])
}

func TestCheck_Config(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "jsongate.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("limits:\n  max_children: 2\n"), 0o644))

	out, err := runCmd(t, `[1,2,3]`, "check", "-c", cfg)
	require.ErrorIs(t, err, errCheckFailed)
	assert.Contains(t, out, "too_many_children")

	_, err = runCmd(t, `[]`, "check", "-c", cfg, "--max-depth", "3")
	require.Error(t, err)
	assert.False(t, errors.Is(err, errCheckFailed))
}

func TestCheck_MissingFile(t *testing.T) {
	out, err := runCmd(t, "", "check", filepath.Join(t.TempDir(), "nope.json"))
	require.ErrorIs(t, err, errCheckFailed)
	assert.Contains(t, out, "nope.json")
}

func TestServe(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "jsongate.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte(`
limits:
  max_depth: 2
http:
  listen: "127.0.0.1:0"
  verbosity: 1
logging:
  level: error
`), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan net.Addr, 1)
	done := make(chan error, 1)
	go func() { done <- runServe(ctx, serveOptions{cfgPath: cfg}, ready) }()

	var addr net.Addr
	select {
	case addr = <-ready:
	case err := <-done:
		t.Fatalf("serve exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not start")
	}
	base := "http://" + addr.String()

	resp, err := http.Post(base+"/v1/ingest", "application/json", strings.NewReader(`{"a": [1]}`))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"a":[1]}`, string(body))

	resp, err = http.Post(base+"/v1/ingest", "application/json", strings.NewReader(`[[[1]]]`))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatalf("server did not stop")
	}
}
