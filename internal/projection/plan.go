package projection

import (
	"fmt"
	"iter"
	"maps"

	"github.com/hanpama/selexp/internal/edm"
	"github.com/hanpama/selexp/internal/expr"
	"github.com/hanpama/selexp/internal/resolver"
)

// Plan is a compiled projection for one nesting level and, through its
// children, every level beneath it. Plans are immutable and safe for
// concurrent use.
type Plan struct {
	compiler  *Compiler
	typ       *edm.StructuredType
	selection *resolver.ResolvedSelection
	compute   *expr.ComputeSet
	complexes []*complexPlan
	expands   []*expandPlan
	typeName  bool

	// variants holds select-all plans for types derived from typ, so that
	// members only a derived type declares are projected.
	variants map[*edm.StructuredType]*Plan
}

type complexPlan struct {
	sel    *resolver.ComplexSelection
	nested *Plan
	pager  *pager
}

type expandPlan struct {
	sel    *resolver.ExpandSelection
	nested *Plan
	pager  *pager
}

// Type returns the declared type the plan projects.
func (p *Plan) Type() *edm.StructuredType { return p.typ }

// Selection returns the resolved selection of the plan's top level.
func (p *Plan) Selection() *resolver.ResolvedSelection { return p.selection }

// Levels counts the plan's nesting levels, derived-type variants included.
func (p *Plan) Levels() int {
	n := 1
	for _, c := range p.complexes {
		if c.nested != nil {
			n += c.nested.Levels()
		}
	}
	for _, e := range p.expands {
		n += e.nested.Levels()
	}
	for _, v := range p.variants {
		n += v.Levels()
	}
	return n
}

// Project projects a single instance. A nil instance yields a nil view.
func (p *Plan) Project(instance any) (*View, error) {
	return p.project(instance, "")
}

// ProjectSeq projects a sequence lazily. Each instance is projected when
// the consumer pulls it; iteration stops after the first error.
func (p *Plan) ProjectSeq(seq iter.Seq[any]) iter.Seq2[*View, error] {
	return func(yield func(*View, error) bool) {
		i := 0
		for instance := range seq {
			view, err := p.project(instance, indexPath("", i))
			i++
			if !yield(view, err) || err != nil {
				return
			}
		}
	}
}

func (p *Plan) runtimeType(instance any, path string) (*edm.StructuredType, error) {
	name := p.compiler.accessor.TypeName(instance)
	if name == "" || name == p.typ.Name {
		return p.typ, nil
	}
	rt, err := p.compiler.schema.Lookup(name)
	if err != nil {
		return nil, &ProjectionError{Kind: KindTypeMismatch, Path: path, Err: err}
	}
	if !rt.IsAssignableTo(p.typ) {
		return nil, &ProjectionError{Kind: KindTypeMismatch, Path: path, Err: fmt.Errorf("%s is not assignable to %s", rt.Name, p.typ.Name)}
	}
	return rt, nil
}

func (p *Plan) project(instance any, path string) (*View, error) {
	if instance == nil {
		return nil, nil
	}
	rt, err := p.runtimeType(instance, path)
	if err != nil {
		return nil, err
	}
	if v, ok := p.variants[rt]; ok {
		p = v
	}
	a := p.compiler.accessor
	sel := p.selection

	view := &View{Type: rt}
	if p.typeName {
		view.TypeName = rt.Name
	}
	if sel.IsSelectAll {
		view.Instance = instance
	}
	applies := func(member any) bool {
		return rt.IsAssignableTo(sel.RequiredType(member))
	}

	for _, prop := range sel.SelectedStructural {
		if !applies(prop) {
			continue
		}
		// An absent declared member projects as null.
		value, _ := a.Property(instance, prop.Name)
		view.set(prop.Name, value)
	}

	for _, cp := range p.complexes {
		if !applies(cp.sel.Property) {
			continue
		}
		value, err := p.projectComplex(cp, instance, path)
		if err != nil {
			return nil, err
		}
		view.set(cp.sel.Property.Name, value)
	}

	if sel.SelectAllDynamic || len(sel.SelectedDynamic) > 0 {
		if bag, ok := a.Dynamic(instance, rt); ok {
			if sel.SelectAllDynamic {
				view.Dynamic = maps.Clone(bag)
			} else {
				for _, name := range sel.SelectedDynamic {
					if value, ok := bag[name]; ok {
						if view.Dynamic == nil {
							view.Dynamic = map[string]any{}
						}
						view.Dynamic[name] = value
					}
				}
			}
		}
	}

	for _, alias := range sel.Computed {
		value, err := p.compute.Eval(alias, instance)
		if err != nil {
			return nil, expressionFailure(joinPath(path, alias), err)
		}
		view.set(alias, value)
	}

	for _, ep := range p.expands {
		if !applies(ep.sel.Navigation) {
			continue
		}
		if err := p.projectExpansion(view, ep, instance, path); err != nil {
			return nil, err
		}
	}

	for _, n := range sel.SelectedNavigation {
		if applies(n) {
			view.Links = append(view.Links, n.Name)
		}
	}
	for _, op := range sel.SelectedActions {
		if applies(op) {
			view.Actions = append(view.Actions, op.Name)
		}
	}
	for _, op := range sel.SelectedFunctions {
		if applies(op) {
			view.Functions = append(view.Functions, op.Name)
		}
	}
	return view, nil
}

func (p *Plan) projectComplex(cp *complexPlan, instance any, path string) (any, error) {
	prop := cp.sel.Property
	childPath := joinPath(path, prop.Name)
	// Absent and null complex values are treated alike.
	value, _ := p.compiler.accessor.Property(instance, prop.Name)
	if value == nil {
		if cp.nested != nil && !prop.Nullable && !p.compiler.settings.NullPropagation {
			return nil, &ProjectionError{Kind: KindNullReference, Path: childPath, Err: fmt.Errorf("non-nullable %s is null", prop.Name)}
		}
		return nil, nil
	}

	if !prop.Collection {
		if cp.nested == nil {
			return value, nil
		}
		return cp.nested.project(value, childPath)
	}

	var elements []any
	if cp.pager != nil {
		page, _, err := cp.pager.collect(values(value))
		if err != nil {
			return nil, expressionFailure(childPath, err)
		}
		elements = page
	} else {
		if cp.nested == nil {
			return value, nil
		}
		elements = expr.Materialize(value)
	}
	if cp.nested == nil {
		return elements, nil
	}
	views := make([]*View, 0, len(elements))
	for i, element := range elements {
		view, err := cp.nested.project(element, indexPath(childPath, i))
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

func (p *Plan) projectExpansion(view *View, ep *expandPlan, instance any, path string) error {
	nav := ep.sel.Navigation
	childPath := joinPath(path, nav.Name)
	target, err := p.compiler.accessor.Navigate(instance, nav)
	if err != nil {
		return &ProjectionError{Kind: KindAccessor, Path: childPath, Err: err}
	}

	if !nav.Collection {
		if target == nil {
			view.set(nav.Name, nil)
			return nil
		}
		ok, err := ep.pager.accept(target)
		if err != nil {
			return expressionFailure(childPath, err)
		}
		if !ok {
			view.set(nav.Name, nil)
			return nil
		}
		child, err := ep.nested.project(target, childPath)
		if err != nil {
			return err
		}
		view.set(nav.Name, child)
		return nil
	}

	var elements iter.Seq2[any, error]
	if ep.pager.buffered() {
		page, total, err := ep.pager.collect(values(target))
		if err != nil {
			return expressionFailure(childPath, err)
		}
		if ep.pager.count {
			if view.Counts == nil {
				view.Counts = map[string]int{}
			}
			view.Counts[nav.Name] = total
		}
		elements = func(yield func(any, error) bool) {
			for _, element := range page {
				if !yield(element, nil) {
					return
				}
			}
		}
	} else {
		stream := ep.pager.stream(values(target))
		elements = func(yield func(any, error) bool) {
			for element, err := range stream {
				if err != nil {
					err = expressionFailure(childPath, err)
				}
				if !yield(element, err) {
					return
				}
			}
		}
	}
	nested := ep.nested
	view.set(nav.Name, &Collection{
		elements: elements,
		project: func(element any, i int) (*View, error) {
			return nested.project(element, indexPath(childPath, i))
		},
	})
	return nil
}
