package projection

import (
	"fmt"
	"iter"
	"slices"
	"sort"

	"github.com/hanpama/selexp/internal/edm"
	"github.com/hanpama/selexp/internal/expr"
	"github.com/hanpama/selexp/internal/selection"
)

type orderKey struct {
	eval       expr.Evaluator
	descending bool
}

// pager applies filter, search, ordering, skip, top and page-size limits to
// one collection.
type pager struct {
	filter expr.Evaluator
	search expr.Evaluator
	order  []orderKey
	skip   *int
	top    *int
	limit  int
	count  bool
}

// newPager binds the options against the element type t. A page size only
// limits the collection when truncate is set and neither top nor skip is
// given; the limit is pageSize+1 so callers can detect a further page.
func newPager(b *expr.Binder, t *edm.StructuredType, opts selection.Options, pageSize int, truncate bool) (*pager, error) {
	pg := &pager{skip: opts.Skip, top: opts.Top, count: opts.Count}
	var err error
	if opts.Filter != nil {
		if pg.filter, err = b.Bind(t, opts.Filter); err != nil {
			return nil, fmt.Errorf("filter: %w", err)
		}
	}
	if opts.Search != nil {
		if pg.search, err = b.Bind(t, opts.Search); err != nil {
			return nil, fmt.Errorf("search: %w", err)
		}
	}
	for _, item := range opts.OrderBy {
		eval, err := b.Bind(t, item.Expr)
		if err != nil {
			return nil, fmt.Errorf("orderby: %w", err)
		}
		pg.order = append(pg.order, orderKey{eval: eval, descending: item.Descending})
	}
	paged := opts.Paged() || pageSize > 0
	if len(pg.order) == 0 && paged && t != nil {
		for _, p := range defaultOrder(t) {
			eval, err := b.Bind(t, expr.Prop(p.Name))
			if err != nil {
				return nil, err
			}
			pg.order = append(pg.order, orderKey{eval: eval})
		}
	}
	if !opts.Paged() && pageSize > 0 && truncate {
		pg.limit = pageSize + 1
	}
	return pg, nil
}

// defaultOrder returns the key properties of t in declared order, or for
// keyless types its single-valued primitive properties sorted by name.
func defaultOrder(t *edm.StructuredType) []*edm.Property {
	if keys := t.KeyProperties(); len(keys) > 0 {
		return keys
	}
	var out []*edm.Property
	for _, p := range t.AllProperties() {
		if p.Kind == edm.PropertyKindPrimitive && !p.Collection {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// buffered reports whether the collection must be read in full before any
// element can be returned.
func (pg *pager) buffered() bool {
	return len(pg.order) > 0 || pg.skip != nil || pg.top != nil || pg.limit > 0 || pg.count
}

// accept evaluates filter and search for one element. Null is false.
func (pg *pager) accept(element any) (bool, error) {
	for _, pred := range []expr.Evaluator{pg.filter, pg.search} {
		if pred == nil {
			continue
		}
		v, err := pred(element)
		if err != nil {
			return false, err
		}
		if v == nil {
			return false, nil
		}
		ok, isBool := v.(bool)
		if !isBool {
			return false, &expr.ExpressionError{Kind: expr.KindTypeMismatch, Node: "predicate", Message: fmt.Sprintf("yields %T, not bool", v)}
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// stream filters src lazily.
func (pg *pager) stream(src iter.Seq[any]) iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		for element := range src {
			ok, err := pg.accept(element)
			if err != nil {
				yield(nil, err)
				return
			}
			if ok && !yield(element, nil) {
				return
			}
		}
	}
}

// collect reads src in full, returning the page and the number of elements
// that passed the filter before skip, top and limit were applied.
func (pg *pager) collect(src iter.Seq[any]) ([]any, int, error) {
	var kept []any
	for element, err := range pg.stream(src) {
		if err != nil {
			return nil, 0, err
		}
		kept = append(kept, element)
	}
	total := len(kept)

	if len(pg.order) > 0 {
		type row struct {
			element any
			keys    []any
		}
		rows := make([]row, len(kept))
		for i, element := range kept {
			keys := make([]any, len(pg.order))
			for k, o := range pg.order {
				v, err := o.eval(element)
				if err != nil {
					return nil, 0, err
				}
				keys[k] = v
			}
			rows[i] = row{element: element, keys: keys}
		}
		sort.SliceStable(rows, func(i, j int) bool {
			for k, o := range pg.order {
				c := compareKeys(rows[i].keys[k], rows[j].keys[k])
				if c == 0 {
					continue
				}
				if o.descending {
					return c > 0
				}
				return c < 0
			}
			return false
		})
		for i := range rows {
			kept[i] = rows[i].element
		}
	}

	if pg.skip != nil {
		kept = kept[min(max(*pg.skip, 0), len(kept)):]
	}
	if pg.top != nil {
		kept = kept[:min(max(*pg.top, 0), len(kept))]
	}
	if pg.limit > 0 && len(kept) > pg.limit {
		kept = kept[:pg.limit]
	}
	return slices.Clip(kept), total, nil
}

// compareKeys orders nulls first and falls back to the textual form for
// values of unrelated kinds.
func compareKeys(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if c, ok := expr.Compare(a, b); ok {
		return c
	}
	as, bs := fmt.Sprint(a), fmt.Sprint(b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}
