package language

import (
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

// ParseQuery parses an executable document. Only syntax is checked; names are
// resolved against the schema by the caller.
func ParseQuery(source string) (*QueryDocument, error) {
	doc, err := parser.ParseQuery(&ast.Source{Input: source})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// ParseSchema parses a type-system document. Directives are not validated
// against declarations.
func ParseSchema(name, source string) (*SchemaDocument, error) {
	doc, err := parser.ParseSchema(&ast.Source{Name: name, Input: source})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// ArgumentString returns the raw value of a string-like argument and whether
// it was present.
func ArgumentString(args ArgumentList, name string) (string, bool) {
	arg := args.ForName(name)
	if arg == nil || arg.Value == nil {
		return "", false
	}
	switch arg.Value.Kind {
	case StringValue, BlockValue, EnumValue, IntValue, FloatValue, BooleanValue:
		return arg.Value.Raw, true
	}
	return "", false
}

// ArgumentStrings returns the members of a list argument, accepting a bare
// scalar as a list of one.
func ArgumentStrings(args ArgumentList, name string) []string {
	arg := args.ForName(name)
	if arg == nil || arg.Value == nil {
		return nil
	}
	if arg.Value.Kind != ListValue {
		return []string{arg.Value.Raw}
	}
	out := make([]string, 0, len(arg.Value.Children))
	for _, c := range arg.Value.Children {
		if c.Value != nil {
			out = append(out, c.Value.Raw)
		}
	}
	return out
}
