package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"iter"
	"log"
	"os"
	"path/filepath"
	"strings"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"gopkg.in/yaml.v3"

	"github.com/hanpama/selexp/internal/config"
	"github.com/hanpama/selexp/internal/edm"
	"github.com/hanpama/selexp/internal/eventbus"
	"github.com/hanpama/selexp/internal/gqlselect"
	"github.com/hanpama/selexp/internal/logging"
	"github.com/hanpama/selexp/internal/otel"
	"github.com/hanpama/selexp/internal/projection"
	"github.com/hanpama/selexp/internal/resolver"
	"github.com/hanpama/selexp/internal/selection"
)

const rootUsage = `selexp - select/expand projection over schema-described data

USAGE:
  selexp <command> [flags]

COMMANDS:
  project          Project instance documents through a selection
  resolve          Print the resolved selection of every level as JSON
  schema           Validate an annotated SDL schema and print it normalized
  help             Show help for any command
`

const selectionFlagsUsage = `  -schema <file>           Annotated GraphQL SDL schema (required)
  -type <name>             Declared type of the instances
  -set <name>              Entity set; supplies the type and navigation bindings
  -select <file>           GraphQL selection document (default: select all)
  -query <document>        Inline selection document, instead of -select
  -vars <json>             Variables for the selection document
`

const projectUsage = `project FLAGS:
` + selectionFlagsUsage + `  -data <file>             JSON or YAML instance document; an array is projected
                           as a sequence (default: stdin, JSON)
  -config <file>           Config file (default: selexp.yaml when present)
  -null-propagation        Read through null values instead of failing
  -page-size N             Page size for expanded collections (0 disables)
  -buffer-nested           Do not truncate expanded collections to the page size
  -out.format <fmt>        json or protojson (default: json)
  -out.pretty              Indent output
  -log.level <level>       debug, info, warn or error (default: warn)
  -log.format <fmt>        text or json (default: text)
  -otel.endpoint <addr>    OTLP collector endpoint
  -otel.service <name>     OpenTelemetry service name (default: selexp)
`

const resolveUsage = `resolve FLAGS:
` + selectionFlagsUsage

const schemaUsage = `schema FLAGS:
  -schema <file>           Annotated GraphQL SDL schema (required)
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	global := flag.NewFlagSet("selexp", flag.ContinueOnError)
	global.SetOutput(new(bytes.Buffer))
	if err := global.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, rootUsage)
		return err
	}
	remaining := global.Args()
	if len(remaining) == 0 {
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("missing command")
	}

	cmd := remaining[0]
	cmdArgs := remaining[1:]
	switch cmd {
	case "project":
		return cmdProject(cmdArgs, os.Stdin, os.Stdout)
	case "resolve":
		return cmdResolve(cmdArgs, os.Stdout)
	case "schema":
		return cmdSchema(cmdArgs, os.Stdout)
	case "help":
		return cmdHelp(cmdArgs)
	default:
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdHelp(args []string) error {
	if len(args) == 0 {
		fmt.Print(rootUsage)
		return nil
	}
	switch args[0] {
	case "project":
		fmt.Print(projectUsage)
	case "resolve":
		fmt.Print(resolveUsage)
	case "schema":
		fmt.Print(schemaUsage)
	default:
		return fmt.Errorf("unknown help topic %q", args[0])
	}
	return nil
}

// selectionFlags are shared by project and resolve.
type selectionFlags struct {
	schema, typ, set, selectFile, query, vars string
}

func (f *selectionFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.schema, "schema", "", "Annotated GraphQL SDL schema")
	fs.StringVar(&f.typ, "type", "", "Declared type of the instances")
	fs.StringVar(&f.set, "set", "", "Entity set")
	fs.StringVar(&f.selectFile, "select", "", "GraphQL selection document")
	fs.StringVar(&f.query, "query", "", "Inline selection document")
	fs.StringVar(&f.vars, "vars", "", "Variables for the selection document")
}

type target struct {
	schema *edm.Schema
	typ    *edm.StructuredType
	set    *edm.EntitySet
	clause *selection.Clause
}

func (f *selectionFlags) load() (*target, error) {
	if f.schema == "" {
		return nil, fmt.Errorf("-schema is required")
	}
	s, err := loadSchema(f.schema)
	if err != nil {
		return nil, err
	}
	tg := &target{schema: s}
	switch {
	case f.set != "":
		es, ok := s.EntitySets[f.set]
		if !ok {
			return nil, fmt.Errorf("unknown entity set %q", f.set)
		}
		tg.set, tg.typ = es, es.Type
		if f.typ != "" && f.typ != es.Type.Name {
			return nil, fmt.Errorf("-type %s does not match entity set %s of %s", f.typ, es.Name, es.Type.Name)
		}
	case f.typ != "":
		if tg.typ, err = s.Lookup(f.typ); err != nil {
			return nil, err
		}
		tg.set = s.EntitySetFor(tg.typ)
	default:
		return nil, fmt.Errorf("-type or -set is required")
	}

	source := f.query
	if f.selectFile != "" {
		if source != "" {
			return nil, fmt.Errorf("-select and -query are mutually exclusive")
		}
		b, err := os.ReadFile(f.selectFile)
		if err != nil {
			return nil, err
		}
		source = string(b)
	}
	if source == "" {
		return tg, nil
	}
	var vars map[string]any
	if f.vars != "" {
		if err := json.Unmarshal([]byte(f.vars), &vars); err != nil {
			return nil, fmt.Errorf("-vars: %w", err)
		}
	}
	if tg.clause, err = gqlselect.Parse(s, tg.typ, source, vars); err != nil {
		return nil, fmt.Errorf("selection: %w", err)
	}
	return tg, nil
}

func loadSchema(path string) (*edm.Schema, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return edm.LoadSDL(filepath.Base(path), string(b))
}

func cmdProject(args []string, stdin io.Reader, stdout io.Writer) error {
	var sf selectionFlags
	dataFile := ""
	configFile := ""
	fs := flag.NewFlagSet("project", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	sf.register(fs)
	fs.StringVar(&dataFile, "data", dataFile, "Instance document")
	fs.StringVar(&configFile, "config", configFile, "Config file")
	config.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, projectUsage)
		return err
	}
	cfg, err := config.Load(configFile, fs)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	tg, err := sf.load()
	if err != nil {
		fmt.Fprint(os.Stderr, projectUsage)
		return err
	}
	data, err := loadData(dataFile, stdin)
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}

	eventbus.Use(eventbus.New())
	defer eventbus.Use(nil)
	detach, err := logging.Setup(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer detach()
	shutdown, err := otel.Setup(cfg.Otel.Endpoint, cfg.Otel.Service)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	c := projection.New(tg.schema, projection.MapAccessor{}, cfg.Settings())
	result, err := c.Project(context.Background(), data, tg.typ, tg.clause, tg.set)
	if err != nil {
		return err
	}

	views := []*projection.View{}
	single := false
	switch r := result.(type) {
	case *projection.View:
		views, single = []*projection.View{r}, true
	case iter.Seq2[*projection.View, error]:
		for view, err := range r {
			if err != nil {
				return err
			}
			views = append(views, view)
		}
	}
	return writeViews(stdout, views, single, cfg.Output)
}

func writeViews(w io.Writer, views []*projection.View, single bool, out config.OutputConfig) error {
	var b []byte
	var err error
	switch out.Format {
	case "protojson":
		values := make([]*structpb.Value, len(views))
		for i, v := range views {
			st, err := v.ToStruct()
			if err != nil {
				return err
			}
			values[i] = structpb.NewStructValue(st)
		}
		var msg proto.Message
		if single {
			msg = values[0]
		} else {
			msg = structpb.NewListValue(&structpb.ListValue{Values: values})
		}
		opts := protojson.MarshalOptions{}
		if out.Pretty {
			opts.Multiline, opts.Indent = true, "  "
		}
		b, err = opts.Marshal(msg)
	default:
		var payload any = views
		if single {
			payload = views[0]
		}
		if out.Pretty {
			b, err = json.MarshalIndent(payload, "", "  ")
		} else {
			b, err = json.Marshal(payload)
		}
	}
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = w.Write(b)
	return err
}

// loadData reads a JSON document, or YAML when the file name says so.
func loadData(path string, stdin io.Reader) (any, error) {
	var r io.Reader = stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var data any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &data)
	default:
		err = json.Unmarshal(b, &data)
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func cmdResolve(args []string, stdout io.Writer) error {
	var sf selectionFlags
	fs := flag.NewFlagSet("resolve", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	sf.register(fs)
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, resolveUsage)
		return err
	}
	tg, err := sf.load()
	if err != nil {
		fmt.Fprint(os.Stderr, resolveUsage)
		return err
	}
	summary, err := resolver.Describe(tg.typ, tg.clause, tg.set)
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, string(b))
	return err
}

func cmdSchema(args []string, stdout io.Writer) error {
	path := ""
	fs := flag.NewFlagSet("schema", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&path, "schema", path, "Annotated GraphQL SDL schema")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, schemaUsage)
		return err
	}
	if path == "" {
		fmt.Fprint(os.Stderr, schemaUsage)
		return fmt.Errorf("-schema is required")
	}
	s, err := loadSchema(path)
	if err != nil {
		return err
	}
	_, err = io.WriteString(stdout, edm.Render(s))
	return err
}
