// Package gqlselect builds selection clauses from GraphQL selection
// documents.
//
// Fields name members of the current type. Navigation fields with a
// selection set, or marked @expand, are expanded; @ref expands by reference;
// a bare navigation field selects the link only. Inline fragments and
// fragment spreads with a type condition cast to that type. "_" selects all
// structural members and "_operations" all bound operations. An aliased
// "_compute(expr: ...)" field adds a computed value under its alias.
//
//	{
//	  Id
//	  Total: _compute(expr: "Price * Quantity")
//	  Orders @expand(orderby: "Id desc", top: 5, count: true) { Title }
//	  Manager @ref
//	  ... on VipCustomer { Level }
//	}
package gqlselect

import (
	"fmt"
	"strconv"

	"github.com/hanpama/selexp/internal/edm"
	"github.com/hanpama/selexp/internal/expr"
	language "github.com/hanpama/selexp/internal/language"
	"github.com/hanpama/selexp/internal/selection"
)

const (
	wildcardField   = "_"
	operationsField = "_operations"
	computeField    = "_compute"
	typenameField   = "__typename"
)

// Parse parses source and builds the clause of its first operation against
// t. variables supply values for $variables used in arguments and
// directives.
func Parse(s *edm.Schema, t *edm.StructuredType, source string, variables map[string]any) (*selection.Clause, error) {
	doc, err := language.ParseQuery(source)
	if err != nil {
		return nil, err
	}
	if len(doc.Operations) == 0 {
		return nil, fmt.Errorf("selection document has no operation")
	}
	b := &builder{schema: s, document: doc, variables: variables}
	return b.clause(t, doc.Operations[0].SelectionSet)
}

type builder struct {
	schema    *edm.Schema
	document  *language.QueryDocument
	variables map[string]any
}

// level accumulates the items of one clause.
type level struct {
	typ     *edm.StructuredType
	items   []selection.Item
	compute []expr.ComputeItem
}

func (b *builder) clause(t *edm.StructuredType, set language.SelectionSet) (*selection.Clause, error) {
	lv := &level{typ: t}
	if err := b.collect(lv, t, set, map[string]bool{}); err != nil {
		return nil, err
	}
	return &selection.Clause{Items: lv.items, Compute: lv.compute}, nil
}

// collect walks set against the current type cur. Items found under a type
// condition narrower than the level type are prefixed with a cast.
func (b *builder) collect(lv *level, cur *edm.StructuredType, set language.SelectionSet, visitedFragments map[string]bool) error {
	for _, sel := range set {
		switch node := sel.(type) {
		case *language.Field:
			if !b.shouldInclude(node.Directives) {
				continue
			}
			if err := b.field(lv, cur, node); err != nil {
				return err
			}

		case *language.InlineFragment:
			if !b.shouldInclude(node.Directives) {
				continue
			}
			next, err := b.narrow(cur, node.TypeCondition, node.Position)
			if err != nil {
				return err
			}
			if err := b.collect(lv, next, node.SelectionSet, visitedFragments); err != nil {
				return err
			}

		case *language.FragmentSpread:
			if !b.shouldInclude(node.Directives) {
				continue
			}
			if visitedFragments[node.Name] {
				continue
			}
			visitedFragments[node.Name] = true
			def := b.document.Fragments.ForName(node.Name)
			if def == nil {
				return fmt.Errorf("unknown fragment %q at %s", node.Name, position(node.Position))
			}
			if !b.shouldInclude(def.Directives) {
				continue
			}
			next, err := b.narrow(cur, def.TypeCondition, def.Position)
			if err != nil {
				return err
			}
			if err := b.collect(lv, next, def.SelectionSet, visitedFragments); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *builder) narrow(cur *edm.StructuredType, condition string, pos *language.Position) (*edm.StructuredType, error) {
	if condition == "" || condition == cur.Name {
		return cur, nil
	}
	u, err := b.schema.Lookup(condition)
	if err != nil {
		return nil, fmt.Errorf("type condition at %s: %w", position(pos), err)
	}
	if cur.CastTo(u) == nil {
		return nil, fmt.Errorf("type condition %s at %s is unrelated to %s", u.Name, position(pos), cur.Name)
	}
	return u, nil
}

func (b *builder) field(lv *level, cur *edm.StructuredType, f *language.Field) error {
	casted := cur != lv.typ
	switch f.Name {
	case typenameField:
		return nil
	case wildcardField, operationsField, computeField:
		if casted {
			return fmt.Errorf("%s at %s cannot appear under a type condition", f.Name, position(f.Position))
		}
	}
	switch f.Name {
	case wildcardField:
		lv.items = append(lv.items, selection.Wildcard{})
		return nil
	case operationsField:
		lv.items = append(lv.items, selection.NamespaceWildcard{})
		return nil
	case computeField:
		if f.Alias == "" || f.Alias == f.Name {
			return fmt.Errorf("_compute at %s needs an alias", position(f.Position))
		}
		source, ok := b.stringArgument(f.Arguments, "expr")
		if !ok {
			return fmt.Errorf("_compute at %s needs an expr argument", position(f.Position))
		}
		node, err := expr.Parse(source)
		if err != nil {
			return fmt.Errorf("_compute %s: %w", f.Alias, err)
		}
		lv.compute = append(lv.compute, expr.ComputeItem{Alias: f.Alias, Expr: node})
		lv.items = append(lv.items, &selection.PathSelect{Path: selection.Path{selection.DynamicSegment{Name: f.Alias}}})
		return nil
	}

	path, err := selection.ParsePath(b.schema, cur, f.Name)
	if err != nil {
		return fmt.Errorf("field %s at %s: %w", f.Name, position(f.Position), err)
	}
	if len(path) != 1 {
		return fmt.Errorf("field %s at %s: expected a member name", f.Name, position(f.Position))
	}
	if casted {
		path = selection.Path{selection.TypeSegment{Type: cur}, path[0]}
	}

	var item selection.Item
	switch seg := path.Last().(type) {
	case selection.NavigationSegment:
		expand := f.Directives.ForName("expand")
		ref := f.Directives.ForName("ref")
		switch {
		case ref != nil:
			opts, err := b.options(ref.Arguments)
			if err != nil {
				return fmt.Errorf("@ref on %s: %w", f.Name, err)
			}
			item = &selection.ExpandItem{Path: path, Mode: selection.ExpandReference, Options: opts}
		case expand != nil || len(f.SelectionSet) > 0:
			e := &selection.ExpandItem{Path: path, Mode: selection.ExpandFull}
			if expand != nil {
				if e.Options, err = b.options(expand.Arguments); err != nil {
					return fmt.Errorf("@expand on %s: %w", f.Name, err)
				}
			}
			if len(f.SelectionSet) > 0 {
				if e.Nested, err = b.clause(seg.Navigation.Target, f.SelectionSet); err != nil {
					return err
				}
			}
			item = e
		default:
			item = &selection.PathSelect{Path: path}
		}
	case selection.PropertySegment:
		ps := &selection.PathSelect{Path: path}
		if ps.Options, err = b.options(f.Arguments); err != nil {
			return fmt.Errorf("field %s: %w", f.Name, err)
		}
		if len(f.SelectionSet) > 0 {
			if !seg.Property.IsComplex() {
				return fmt.Errorf("field %s at %s: %s has no members to select", f.Name, position(f.Position), seg.Property.TypeName)
			}
			if ps.Nested, err = b.clause(seg.Property.Complex, f.SelectionSet); err != nil {
				return err
			}
		}
		item = ps
	default:
		item = &selection.PathSelect{Path: path}
	}
	lv.items = append(lv.items, item)
	return nil
}

// options reads query options from arguments: filter, search and orderby
// as expression text, compute as "expr as Alias" lists, top and skip as
// integers and count as a boolean.
func (b *builder) options(args language.ArgumentList) (selection.Options, error) {
	var opts selection.Options
	var err error
	if s, ok := b.stringArgument(args, "filter"); ok {
		if opts.Filter, err = expr.Parse(s); err != nil {
			return opts, fmt.Errorf("filter: %w", err)
		}
	}
	if s, ok := b.stringArgument(args, "search"); ok {
		if opts.Search, err = expr.Parse(s); err != nil {
			return opts, fmt.Errorf("search: %w", err)
		}
	}
	if s, ok := b.stringArgument(args, "orderby"); ok {
		if opts.OrderBy, err = expr.ParseOrderBy(s); err != nil {
			return opts, fmt.Errorf("orderby: %w", err)
		}
	}
	if s, ok := b.stringArgument(args, "compute"); ok {
		if opts.Compute, err = expr.ParseCompute(s); err != nil {
			return opts, fmt.Errorf("compute: %w", err)
		}
	}
	if opts.Top, err = b.intArgument(args, "top"); err != nil {
		return opts, err
	}
	if opts.Skip, err = b.intArgument(args, "skip"); err != nil {
		return opts, err
	}
	if v, ok := b.argument(args, "count"); ok {
		count, isBool := v.(bool)
		if !isBool {
			return opts, fmt.Errorf("count: expected a boolean, got %T", v)
		}
		opts.Count = count
	}
	return opts, nil
}

// shouldInclude evaluates @skip and @include.
func (b *builder) shouldInclude(directives language.DirectiveList) bool {
	if skip := directives.ForName("skip"); skip != nil {
		if v, ok := b.argument(skip.Arguments, "if"); ok {
			if skipped, ok := v.(bool); ok && skipped {
				return false
			}
		}
	}
	if include := directives.ForName("include"); include != nil {
		if v, ok := b.argument(include.Arguments, "if"); ok {
			if included, ok := v.(bool); ok && !included {
				return false
			}
		}
	}
	return true
}

func (b *builder) argument(args language.ArgumentList, name string) (any, bool) {
	arg := args.ForName(name)
	if arg == nil {
		return nil, false
	}
	v := b.value(arg.Value)
	return v, v != nil
}

func (b *builder) stringArgument(args language.ArgumentList, name string) (string, bool) {
	v, ok := b.argument(args, name)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func (b *builder) intArgument(args language.ArgumentList, name string) (*int, error) {
	v, ok := b.argument(args, name)
	if !ok {
		return nil, nil
	}
	var n int
	switch x := v.(type) {
	case int:
		n = x
	case int64:
		n = int(x)
	case float64:
		n = int(x)
	default:
		return nil, fmt.Errorf("%s: expected an integer, got %T", name, v)
	}
	if n < 0 {
		return nil, fmt.Errorf("%s: must not be negative", name)
	}
	return &n, nil
}

// value converts an AST value, resolving variables.
func (b *builder) value(v *language.Value) any {
	if v == nil {
		return nil
	}
	switch v.Kind {
	case language.Variable:
		return b.variables[v.Raw]
	case language.IntValue:
		n, _ := strconv.Atoi(v.Raw)
		return n
	case language.FloatValue:
		f, _ := strconv.ParseFloat(v.Raw, 64)
		return f
	case language.StringValue, language.BlockValue, language.EnumValue:
		return v.Raw
	case language.BooleanValue:
		return v.Raw == "true"
	case language.ListValue:
		out := make([]any, len(v.Children))
		for i, c := range v.Children {
			out[i] = b.value(c.Value)
		}
		return out
	case language.ObjectValue:
		m := make(map[string]any, len(v.Children))
		for _, c := range v.Children {
			m[c.Name] = b.value(c.Value)
		}
		return m
	default:
		return nil
	}
}

func position(p *language.Position) string {
	if p == nil {
		return "?"
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}
