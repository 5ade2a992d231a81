package resolver

import (
	"fmt"
	"slices"
	"sort"

	"github.com/hanpama/selexp/internal/edm"
	"github.com/hanpama/selexp/internal/expr"
	"github.com/hanpama/selexp/internal/selection"
)

// Resolve computes which members of t the clause includes.
//
// A nil clause, AllSelected or a Wildcard item selects every structural and
// navigation property; a nil clause or AllSelected also selects every bound
// operation. A reference expansion of an entity type selects the key only.
// Unless the level selects all, keys and concurrency properties are always
// included. A navigation that is expanded or referenced is never reported
// as merely selected.
func Resolve(t *edm.StructuredType, clause *selection.Clause, navSource *edm.EntitySet, isReferenceExpand bool) (*ResolvedSelection, error) {
	r := &ResolvedSelection{Type: t, Source: navSource}
	if isReferenceExpand && t.Kind == edm.TypeKindEntity {
		r.SelectedStructural = append(r.SelectedStructural, t.KeyProperties()...)
		return r, nil
	}

	f := &fold{
		t:             t,
		structuralAll: clause.IsSelectAll(),
		operationsAll: clause == nil || clause.AllSelected,
		complexes:     map[*edm.Property]*accumulated{},
		casts:         map[any]*edm.StructuredType{},
		uncast:        map[any]bool{},
	}
	if clause != nil {
		f.aliases = expr.Aliases(clause.Compute)
		for _, item := range clause.Items {
			if err := f.item(item); err != nil {
				return nil, err
			}
		}
	}
	f.finish(r, navSource)
	return r, nil
}

// Describe resolves clause against t and every nested level beneath it.
func Describe(t *edm.StructuredType, clause *selection.Clause, navSource *edm.EntitySet) (Summary, error) {
	return describe(t, clause, navSource, false)
}

func describe(t *edm.StructuredType, clause *selection.Clause, navSource *edm.EntitySet, ref bool) (Summary, error) {
	r, err := Resolve(t, clause, navSource, ref)
	if err != nil {
		return Summary{}, err
	}
	s := r.Summary()
	nested := map[string]Summary{}
	for _, c := range r.SelectedComplex {
		if c.Clause == nil {
			continue
		}
		sub, err := describe(c.Property.Complex, c.Clause, navSource, false)
		if err != nil {
			return Summary{}, fmt.Errorf("%s: %w", c.Property.Name, err)
		}
		nested[c.Property.Name] = sub
	}
	for _, e := range slices.Concat(r.Expanded, r.Referenced) {
		sub, err := describe(e.Navigation.Target, e.Nested, e.Source, e.Mode == selection.ExpandReference)
		if err != nil {
			return Summary{}, fmt.Errorf("%s: %w", e.Navigation.Name, err)
		}
		nested[e.Navigation.Name] = sub
	}
	if len(nested) > 0 {
		s.Nested = nested
	}
	return s, nil
}

// accumulated collects the sub-items of every path that starts with the same
// complex property.
type accumulated struct {
	leaf        bool
	allSelected bool
	items       []selection.Item
	compute     []expr.ComputeItem
	options     selection.Options
}

type fold struct {
	t             *edm.StructuredType
	aliases       []string
	structuralAll bool
	operationsAll bool

	simple       memberSet[*edm.Property]
	complexOrder []*edm.Property
	complexes    map[*edm.Property]*accumulated
	navs         memberSet[*edm.NavigationProperty]
	expansions   []*ExpandSelection
	ops          memberSet[*edm.Operation]
	dynamic      memberSet[string]
	computed     memberSet[string]

	casts  map[any]*edm.StructuredType
	uncast map[any]bool
}

type memberSet[T comparable] struct {
	list []T
	seen map[T]bool
}

func (s *memberSet[T]) add(m T) {
	if s.seen == nil {
		s.seen = map[T]bool{}
	}
	if !s.seen[m] {
		s.seen[m] = true
		s.list = append(s.list, m)
	}
}

func (s *memberSet[T]) has(m T) bool { return s.seen[m] }

func (f *fold) item(it selection.Item) error {
	switch v := it.(type) {
	case selection.Wildcard, *selection.Wildcard:
		f.structuralAll = true
	case selection.NamespaceWildcard, *selection.NamespaceWildcard:
		f.operationsAll = true
	case *selection.PathSelect:
		return f.pathSelect(v)
	case *selection.ExpandItem:
		return f.expand(v)
	default:
		kind := fmt.Sprintf("%T", it)
		if it != nil {
			kind = it.ItemKind()
		}
		return &SelectionError{Kind: KindUnknownSelectItemKind, Segment: kind}
	}
	return nil
}

func (f *fold) pathSelect(ps *selection.PathSelect) error {
	if err := validate(ps.Path, false); err != nil {
		return err
	}
	cast, rest := ps.Path.StripCasts()
	if err := f.checkCast(cast, ps.Path); err != nil {
		return err
	}
	first := rest.First()
	if err := f.checkMember(first, ps.Path); err != nil {
		return err
	}
	if len(rest) > 1 {
		a := f.entry(first.(selection.PropertySegment).Property, cast)
		a.items = append(a.items, &selection.PathSelect{Path: rest.Rest(), Nested: ps.Nested, Options: ps.Options})
		return nil
	}

	switch seg := first.(type) {
	case selection.PropertySegment:
		p := seg.Property
		if !p.IsComplex() {
			f.simple.add(p)
			f.note(p, cast, p.DeclaringType)
			return nil
		}
		a := f.entry(p, cast)
		if ps.Nested == nil {
			a.leaf = true
		} else {
			a.allSelected = a.allSelected || ps.Nested.AllSelected
			a.items = append(a.items, ps.Nested.Items...)
			a.compute = append(a.compute, ps.Nested.Compute...)
		}
		a.compute = append(a.compute, ps.Options.Compute...)
		if !ps.Options.IsZero() {
			a.options = ps.Options
		}
	case selection.NavigationSegment:
		n := seg.Navigation
		f.navs.add(n)
		f.note(n, cast, n.DeclaringType)
	case selection.OperationSegment:
		op := seg.Operation
		f.ops.add(op)
		f.note(op, cast, op.BindingType)
	case selection.DynamicSegment:
		switch {
		case slices.Contains(f.aliases, seg.Name):
			f.computed.add(seg.Name)
		case f.t.IsOpen():
			f.dynamic.add(seg.Name)
		default:
			return &edm.SchemaMappingError{Type: f.t.Name, Property: seg.Name}
		}
	}
	return nil
}

func (f *fold) expand(e *selection.ExpandItem) error {
	if err := validate(e.Path, true); err != nil {
		return err
	}
	cast, rest := e.Path.StripCasts()
	if err := f.checkCast(cast, e.Path); err != nil {
		return err
	}
	first := rest.First()
	if err := f.checkMember(first, e.Path); err != nil {
		return err
	}
	if len(rest) > 1 {
		a := f.entry(first.(selection.PropertySegment).Property, cast)
		a.items = append(a.items, &selection.ExpandItem{Path: rest.Rest(), Mode: e.Mode, Nested: e.Nested, Options: e.Options})
		return nil
	}

	n := first.(selection.NavigationSegment).Navigation
	f.note(n, cast, n.DeclaringType)
	entry := &ExpandSelection{Navigation: n, Mode: e.Mode, Nested: withCompute(e.Nested, e.Options.Compute), Options: e.Options}
	for i, existing := range f.expansions {
		if existing.Navigation == n {
			f.expansions[i] = entry
			return nil
		}
	}
	f.expansions = append(f.expansions, entry)
	return nil
}

// withCompute adds item-level compute expressions to a nested clause. A nil
// clause becomes a select-all clause so that every computed value is
// projected.
func withCompute(clause *selection.Clause, extra []expr.ComputeItem) *selection.Clause {
	if len(extra) == 0 {
		return clause
	}
	if clause == nil {
		return &selection.Clause{AllSelected: true, Compute: extra}
	}
	cp := *clause
	cp.Compute = slices.Concat(clause.Compute, extra)
	return &cp
}

// entry returns the accumulator for complex property p, creating it.
func (f *fold) entry(p *edm.Property, cast *edm.StructuredType) *accumulated {
	a, ok := f.complexes[p]
	if !ok {
		a = &accumulated{}
		f.complexes[p] = a
		f.complexOrder = append(f.complexOrder, p)
	}
	f.note(p, cast, p.DeclaringType)
	return a
}

// note records the cast under which member was selected. A selection
// without a stricter cast clears any earlier one.
func (f *fold) note(member any, cast, declaring *edm.StructuredType) {
	stricter := cast != nil && cast != declaring && cast.IsAssignableTo(declaring)
	if !stricter {
		f.uncast[member] = true
		delete(f.casts, member)
		return
	}
	if f.uncast[member] {
		return
	}
	if _, ok := f.casts[member]; !ok {
		f.casts[member] = cast
	}
}

func (f *fold) checkCast(cast *edm.StructuredType, path selection.Path) error {
	if cast == nil || f.t.CastTo(cast) != nil {
		return nil
	}
	return &SelectionError{Kind: KindUnsupportedSegment, Segment: cast.Name, Path: path.String()}
}

func (f *fold) checkMember(seg selection.Segment, path selection.Path) error {
	declaring := selection.DeclaringType(seg)
	if declaring == nil || f.t.CastTo(declaring) != nil {
		return nil
	}
	return &SelectionError{Kind: KindUnsupportedSegment, Segment: seg.Identifier(), Path: path.String()}
}

func validate(p selection.Path, expand bool) error {
	if len(p) == 0 {
		return &SelectionError{Kind: KindUnsupportedSegment}
	}
	for i, seg := range p {
		if seg == nil {
			return &SelectionError{Kind: KindUnsupportedSegment, Segment: "<nil>", Path: p.String()}
		}
		var ok bool
		switch {
		case i < len(p)-1:
			ok = selection.IsTraversal(seg)
		case expand:
			_, ok = seg.(selection.NavigationSegment)
		default:
			ok = selection.IsTerminal(seg)
		}
		if !ok {
			return &SelectionError{Kind: KindUnsupportedSegment, Segment: seg.Identifier(), Path: p.String()}
		}
	}
	return nil
}

func (f *fold) finish(r *ResolvedSelection, navSource *edm.EntitySet) {
	t := f.t
	if f.structuralAll {
		for _, p := range t.AllProperties() {
			if p.IsComplex() {
				f.entry(p, nil).leaf = true
				continue
			}
			f.simple.add(p)
			f.note(p, nil, p.DeclaringType)
		}
		for _, n := range t.AllNavigations() {
			f.navs.add(n)
			f.note(n, nil, n.DeclaringType)
		}
		for _, alias := range f.aliases {
			f.computed.add(alias)
		}
		r.SelectAllDynamic = t.IsOpen()
	} else {
		for _, p := range t.KeyProperties() {
			f.simple.add(p)
			f.note(p, nil, p.DeclaringType)
		}
		for _, p := range t.ConcurrencyProperties() {
			f.simple.add(p)
			f.note(p, nil, p.DeclaringType)
		}
	}
	if f.operationsAll {
		for _, op := range t.BoundOperations() {
			f.ops.add(op)
			f.note(op, nil, op.BindingType)
		}
	}
	r.IsSelectAll = f.structuralAll

	r.SelectedStructural = byDeclaration(f.simple.list, propertyRank)

	for _, p := range byDeclaration(f.complexOrder, propertyRank) {
		a := f.complexes[p]
		c := &ComplexSelection{Property: p, Options: a.options}
		switch {
		case a.leaf && (len(a.items) > 0 || len(a.compute) > 0):
			c.Clause = &selection.Clause{AllSelected: true, Items: a.items, Compute: a.compute}
		case a.leaf:
		case a.allSelected || len(a.items) > 0:
			c.Clause = &selection.Clause{AllSelected: a.allSelected, Items: a.items, Compute: a.compute}
		}
		r.SelectedComplex = append(r.SelectedComplex, c)
	}

	expanded := map[*edm.NavigationProperty]bool{}
	for _, e := range f.expansions {
		expanded[e.Navigation] = true
		e.Source = navSource.Binding(e.Navigation)
	}
	var navs []*edm.NavigationProperty
	for _, n := range f.navs.list {
		if !expanded[n] {
			navs = append(navs, n)
		}
	}
	r.SelectedNavigation = byDeclaration(navs, navigationRank)
	for _, e := range byDeclaration(f.expansions, expansionRank) {
		if e.Mode == selection.ExpandReference {
			r.Referenced = append(r.Referenced, e)
		} else {
			r.Expanded = append(r.Expanded, e)
		}
	}

	for _, op := range byDeclaration(f.ops.list, operationRank) {
		if op.Kind == edm.OperationKindAction {
			r.SelectedActions = append(r.SelectedActions, op)
		} else {
			r.SelectedFunctions = append(r.SelectedFunctions, op)
		}
	}

	r.SelectedDynamic = f.dynamic.list
	for _, alias := range f.aliases {
		if f.computed.has(alias) {
			r.Computed = append(r.Computed, alias)
		}
	}
	if len(f.casts) > 0 {
		r.Casts = f.casts
	}
}

// byDeclaration sorts members base-most type first, then by declaration
// index. Members of sibling types keep their selection order.
func byDeclaration[T any](list []T, rank func(T) (int, int)) []T {
	out := slices.Clone(list)
	sort.SliceStable(out, func(i, j int) bool {
		di, ii := rank(out[i])
		dj, ij := rank(out[j])
		if di != dj {
			return di < dj
		}
		return ii < ij
	})
	return out
}

func depth(t *edm.StructuredType) int {
	return len(t.Chain())
}

func propertyRank(p *edm.Property) (int, int) {
	if p.DeclaringType == nil {
		return 0, 0
	}
	return depth(p.DeclaringType), slices.Index(p.DeclaringType.Properties, p)
}

func navigationRank(n *edm.NavigationProperty) (int, int) {
	if n.DeclaringType == nil {
		return 0, 0
	}
	return depth(n.DeclaringType), slices.Index(n.DeclaringType.Navigations, n)
}

func expansionRank(e *ExpandSelection) (int, int) {
	return navigationRank(e.Navigation)
}

func operationRank(op *edm.Operation) (int, int) {
	if op.BindingType == nil {
		return 0, 0
	}
	return depth(op.BindingType), slices.Index(op.BindingType.Operations, op)
}
