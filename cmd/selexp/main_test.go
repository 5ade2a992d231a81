package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/selexp/internal/edmtest"
	"github.com/hanpama/selexp/internal/resolver"
)

func captureStdout(t *testing.T, fn func() error) (string, error) {
	t.Helper()
	old := os.Stdout
	defer func() { os.Stdout = old }()

	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	done := make(chan struct{})
	var buf bytes.Buffer
	go func() { io.Copy(&buf, r); close(done) }()

	err = fn()
	w.Close()
	<-done
	return buf.String(), err
}

// writeFile writes content into the test's temp dir and returns its path.
func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestHelp(t *testing.T) {
	out, err := captureStdout(t, func() error { return run([]string{"help", "project"}) })
	require.NoError(t, err)
	require.Contains(t, out, "project FLAGS")

	out, err = captureStdout(t, func() error { return run([]string{"help"}) })
	require.NoError(t, err)
	require.Contains(t, out, "COMMANDS")

	require.Error(t, run([]string{"help", "nope"}))
	require.Error(t, run([]string{"nope"}))
	require.Error(t, run(nil))
}

func TestSchemaCommand(t *testing.T) {
	schema := writeFile(t, "sales.graphql", edmtest.SalesSDL)
	var out bytes.Buffer
	require.NoError(t, cmdSchema([]string{"-schema", schema}, &out))
	require.Contains(t, out.String(), `type VipCustomer @derives(from: "Customer")`)
	require.Contains(t, out.String(), "type Container @container")

	require.Error(t, cmdSchema(nil, &out))
	broken := writeFile(t, "broken.graphql", `type A @derives(from: "Missing") { Id: Int! }`)
	require.Error(t, cmdSchema([]string{"-schema", broken}, &out))
}

func TestResolveCommand(t *testing.T) {
	schema := writeFile(t, "sales.graphql", edmtest.SalesSDL)
	var out bytes.Buffer
	err := cmdResolve([]string{"-schema", schema, "-set", "Customers", "-query", "{ Name Orders { Title } }"}, &out)
	require.NoError(t, err)

	var got resolver.Summary
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	want := resolver.Summary{
		Type:       "Customer",
		Structural: []string{"Id", "Name", "Version"},
		Expanded:   []string{"Orders"},
		Nested: map[string]resolver.Summary{
			"Orders": {Type: "Order", Structural: []string{"Id", "Title"}},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("summary mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveCommandErrors(t *testing.T) {
	schema := writeFile(t, "sales.graphql", edmtest.SalesSDL)
	selectFile := writeFile(t, "select.graphql", "{ Name }")

	tests := []struct {
		name string
		args []string
	}{
		{"missing schema", []string{"-type", "Customer"}},
		{"missing type", []string{"-schema", schema}},
		{"unknown set", []string{"-schema", schema, "-set", "People"}},
		{"unknown type", []string{"-schema", schema, "-type", "Person"}},
		{"set and type disagree", []string{"-schema", schema, "-set", "Orders", "-type", "Customer"}},
		{"select and query", []string{"-schema", schema, "-type", "Customer", "-select", selectFile, "-query", "{ Id }"}},
		{"bad variables", []string{"-schema", schema, "-type", "Customer", "-query", "{ Id }", "-vars", "{"}},
		{"bad selection", []string{"-schema", schema, "-type", "Customer", "-query", "{ Nope }"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Error(t, cmdResolve(tt.args, io.Discard))
		})
	}
}

func TestProjectCommand(t *testing.T) {
	schema := writeFile(t, "sales.graphql", edmtest.SalesSDL)

	t.Run("json sequence", func(t *testing.T) {
		data := writeFile(t, "customers.json", `[
  {"Id": 1, "Name": "Ann", "Version": 3, "Orders": [{"Id": 3, "Title": "c"}, {"Id": 1, "Title": "a"}, {"Id": 2, "Title": "b"}, {"Id": 4, "Title": "d"}]},
  {"Id": 2, "Name": "Bob", "Version": 1}
]`)
		var out bytes.Buffer
		err := cmdProject([]string{"-schema", schema, "-set", "Customers", "-data", data, "-query", "{ Name Orders { Title } }"}, nil, &out)
		require.NoError(t, err)
		require.JSONEq(t, `[
  {"@type": "Customer", "Id": 1, "Name": "Ann", "Version": 3, "Orders": [{"Id": 1, "Title": "a"}, {"Id": 2, "Title": "b"}, {"Id": 3, "Title": "c"}]},
  {"@type": "Customer", "Id": 2, "Name": "Bob", "Version": 1, "Orders": []}
]`, out.String())
	})

	t.Run("stdin instance with variables", func(t *testing.T) {
		var out bytes.Buffer
		in := strings.NewReader(`{"Id": 7, "Name": "Ann", "Email": "ann@example.com"}`)
		err := cmdProject([]string{"-schema", schema, "-type", "Customer", "-query", `query ($e: Boolean!) { Name Email @include(if: $e) }`, "-vars", `{"e": false}`}, in, &out)
		require.NoError(t, err)
		require.JSONEq(t, `{"@type": "Customer", "Id": 7, "Name": "Ann", "Version": null}`, out.String())
	})

	t.Run("yaml data and protojson output", func(t *testing.T) {
		data := writeFile(t, "item.yaml", "Id: 1\nLabel: lamp\nExtra:\n  Colour: red\n")
		var out bytes.Buffer
		err := cmdProject([]string{"-schema", schema, "-set", "Items", "-data", data, "-out.format", "protojson", "-out.pretty"}, nil, &out)
		require.NoError(t, err)
		var got any
		require.NoError(t, json.Unmarshal(out.Bytes(), &got))
		require.Equal(t, map[string]any{"Id": 1.0, "Label": "lamp", "Colour": "red"}, got)
	})

	t.Run("config file", func(t *testing.T) {
		cfg := writeFile(t, "selexp.yaml", "null_propagation: true\noutput:\n  pretty: true\n")
		var out bytes.Buffer
		in := strings.NewReader(`{"Id": 1, "Address": null}`)
		err := cmdProject([]string{"-schema", schema, "-type", "Customer", "-config", cfg, "-query", `{ City: _compute(expr: "Address.City") }`}, in, &out)
		require.NoError(t, err)
		require.Contains(t, out.String(), "\n  ")
		require.JSONEq(t, `{"@type": "Customer", "Id": 1, "Version": null, "City": null}`, out.String())
	})

	t.Run("failures", func(t *testing.T) {
		in := strings.NewReader(`{"Id": 1, "Address": null}`)
		err := cmdProject([]string{"-schema", schema, "-type", "Customer", "-query", `{ City: _compute(expr: "Address.City") }`}, in, io.Discard)
		require.ErrorContains(t, err, "NullReference")

		err = cmdProject([]string{"-schema", schema, "-type", "Customer", "-out.format", "xml"}, strings.NewReader("{}"), io.Discard)
		require.ErrorContains(t, err, "config")

		err = cmdProject([]string{"-schema", schema, "-type", "Customer"}, strings.NewReader("{"), io.Discard)
		require.ErrorContains(t, err, "data")
	})
}
