package projection

import (
	"context"
	"fmt"
	"iter"
	"reflect"
	"slices"
	"time"

	"github.com/hanpama/selexp/internal/edm"
	"github.com/hanpama/selexp/internal/eventbus"
	"github.com/hanpama/selexp/internal/events"
	"github.com/hanpama/selexp/internal/expr"
	"github.com/hanpama/selexp/internal/reqid"
	"github.com/hanpama/selexp/internal/resolver"
	"github.com/hanpama/selexp/internal/selection"
)

// Compiler compiles selection clauses into projection plans over one
// schema.
type Compiler struct {
	schema   *edm.Schema
	accessor Accessor
	settings Settings
	binder   *expr.Binder
}

// New returns a compiler. A nil accessor selects MapAccessor.
func New(schema *edm.Schema, accessor Accessor, settings Settings) *Compiler {
	if accessor == nil {
		accessor = MapAccessor{}
	}
	return &Compiler{
		schema:   schema,
		accessor: accessor,
		settings: settings,
		binder:   expr.NewBinder(schema, accessor, settings.NullPropagation),
	}
}

// Settings returns the compiler's settings.
func (c *Compiler) Settings() Settings { return c.settings }

// Compile resolves clause against t and every nested level beneath it and
// binds all expressions. Errors are *resolver.SelectionError,
// *edm.SchemaMappingError or *expr.ExpressionError, possibly wrapped with
// the member path that produced them.
func (c *Compiler) Compile(t *edm.StructuredType, clause *selection.Clause, navSource *edm.EntitySet) (*Plan, error) {
	return c.compile(t, clause, navSource, false, false)
}

func (c *Compiler) compile(t *edm.StructuredType, clause *selection.Clause, navSource *edm.EntitySet, ref, variant bool) (*Plan, error) {
	sel, err := resolver.Resolve(t, clause, navSource, ref)
	if err != nil {
		return nil, err
	}
	p := &Plan{
		compiler:  c,
		typ:       t,
		selection: sel,
		typeName:  !sel.IsSelectAll && !ref && c.schema.HasDerivedTypes(t),
	}
	if clause != nil && len(clause.Compute) > 0 && !ref {
		if p.compute, err = c.binder.BindCompute(t, clause.Compute); err != nil {
			return nil, err
		}
	}

	for _, cs := range sel.SelectedComplex {
		cp := &complexPlan{sel: cs}
		if cs.Clause != nil {
			if cp.nested, err = c.compile(cs.Property.Complex, cs.Clause, navSource, false, false); err != nil {
				return nil, fmt.Errorf("%s: %w", cs.Property.Name, err)
			}
		}
		if cs.Property.Collection && !cs.Options.IsZero() {
			if cp.pager, err = newPager(c.binder, cs.Property.Complex, cs.Options, 0, false); err != nil {
				return nil, fmt.Errorf("%s: %w", cs.Property.Name, err)
			}
		}
		p.complexes = append(p.complexes, cp)
	}

	for _, es := range slices.Concat(sel.Expanded, sel.Referenced) {
		nav := es.Navigation
		isRef := es.Mode == selection.ExpandReference
		ep := &expandPlan{sel: es}
		if ep.nested, err = c.compile(nav.Target, es.Nested, es.Source, isRef, false); err != nil {
			return nil, fmt.Errorf("%s: %w", nav.Name, err)
		}
		truncate := !c.settings.BufferNestedCollections
		if ep.pager, err = newPager(c.binder, nav.Target, es.Options, c.settings.pageSizeFor(nav.PageSize), truncate); err != nil {
			return nil, fmt.Errorf("%s: %w", nav.Name, err)
		}
		p.expands = append(p.expands, ep)
	}

	if sel.IsSelectAll && !ref && !variant && c.schema != nil {
		for _, d := range c.schema.DerivedTypes(t) {
			v, err := c.compile(d, narrow(clause, d), navSource, false, true)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", d.Name, err)
			}
			if p.variants == nil {
				p.variants = map[*edm.StructuredType]*Plan{}
			}
			p.variants[d] = v
		}
	}
	return p, nil
}

// narrow drops the items of clause that can never apply to instances of d:
// paths cast to a type outside d's hierarchy and members declared on one.
func narrow(clause *selection.Clause, d *edm.StructuredType) *selection.Clause {
	if clause == nil {
		return nil
	}
	items := slices.DeleteFunc(slices.Clone(clause.Items), func(it selection.Item) bool {
		var path selection.Path
		switch v := it.(type) {
		case *selection.PathSelect:
			path = v.Path
		case *selection.ExpandItem:
			path = v.Path
		default:
			return false
		}
		cast, rest := path.StripCasts()
		if cast != nil && d.CastTo(cast) == nil {
			return true
		}
		declaring := selection.DeclaringType(rest.First())
		return declaring != nil && d.CastTo(declaring) == nil
	})
	if len(items) == len(clause.Items) {
		return clause
	}
	cp := *clause
	cp.Items = items
	return &cp
}

// Project compiles clause and applies it to source. A slice or an
// iter.Seq[any] yields an iter.Seq2[*View, error]; anything else is
// projected as a single instance into a *View. Events published for the run
// share the run ID of ctx, which is attached when missing.
func (c *Compiler) Project(ctx context.Context, source any, t *edm.StructuredType, clause *selection.Clause, navSource *edm.EntitySet) (any, error) {
	ctx, _ = reqid.Ensure(ctx)
	start := time.Now()
	plan, err := c.Compile(t, clause, navSource)
	finish := events.CompileFinish{Type: t.Name, Err: err, Duration: time.Since(start)}
	if plan != nil {
		finish.Levels = plan.Levels()
	}
	eventbus.Publish(ctx, finish)
	if err != nil {
		return nil, err
	}

	seq, isSeq := sequence(source)
	eventbus.Publish(ctx, events.ProjectStart{Type: t.Name, Sequence: isSeq})
	start = time.Now()
	if !isSeq {
		view, err := plan.Project(source)
		n := 0
		if view != nil {
			n = 1
		}
		eventbus.Publish(ctx, events.ProjectFinish{Type: t.Name, Views: n, Err: err, Duration: time.Since(start)})
		if err != nil {
			return nil, err
		}
		return view, nil
	}

	views := plan.ProjectSeq(seq)
	return iter.Seq2[*View, error](func(yield func(*View, error) bool) {
		n := 0
		var failure error
		defer func() {
			eventbus.Publish(ctx, events.ProjectFinish{Type: t.Name, Sequence: true, Views: n, Err: failure, Duration: time.Since(start)})
		}()
		for view, err := range views {
			if err != nil {
				failure = err
			} else {
				n++
			}
			if !yield(view, err) {
				return
			}
		}
	}), nil
}

func sequence(source any) (iter.Seq[any], bool) {
	switch s := source.(type) {
	case iter.Seq[any]:
		return s, true
	case nil:
		return nil, false
	}
	if k := reflect.TypeOf(source).Kind(); k == reflect.Slice {
		return values(source), true
	}
	return nil, false
}
