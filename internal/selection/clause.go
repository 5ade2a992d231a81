package selection

import (
	"github.com/hanpama/selexp/internal/expr"
)

// Clause is one nesting level of a select/expand request.
//
// A nil *Clause means "select everything". AllSelected has the same effect
// for structural members while still allowing Items to carry expansions.
type Clause struct {
	AllSelected bool
	Items       []Item
	Compute     []expr.ComputeItem
}

// Item is one entry of a Clause. The variants defined in this package are
// *PathSelect, *ExpandItem, Wildcard and NamespaceWildcard.
type Item interface {
	ItemKind() string
}

// Options are the per-level query options an item may carry.
type Options struct {
	Filter  expr.Node
	OrderBy []expr.OrderByItem
	Top     *int
	Skip    *int
	Count   bool
	Search  expr.Node
	Compute []expr.ComputeItem
}

// IsZero reports whether no option is set.
func (o Options) IsZero() bool {
	return o.Filter == nil && len(o.OrderBy) == 0 && o.Top == nil && o.Skip == nil &&
		!o.Count && o.Search == nil && len(o.Compute) == 0
}

// Paged reports whether explicit top or skip is present.
func (o Options) Paged() bool { return o.Top != nil || o.Skip != nil }

// PathSelect selects the member named by the last segment of Path. Middle
// segments are complex-property traversals or type casts.
type PathSelect struct {
	Path    Path
	Nested  *Clause
	Options Options
}

// ExpandMode distinguishes full expansion from reference-only expansion.
type ExpandMode int

const (
	ExpandFull ExpandMode = iota
	ExpandReference
)

func (m ExpandMode) String() string {
	if m == ExpandReference {
		return "ref"
	}
	return "full"
}

// ExpandItem embeds the navigation target named by the last segment of Path.
type ExpandItem struct {
	Path    Path
	Mode    ExpandMode
	Nested  *Clause
	Options Options
}

// Wildcard selects every structural and navigation property at its level.
type Wildcard struct{}

// NamespaceWildcard selects every bound operation at its level.
type NamespaceWildcard struct{}

func (*PathSelect) ItemKind() string       { return "PathSelect" }
func (*ExpandItem) ItemKind() string       { return "ExpandItem" }
func (Wildcard) ItemKind() string          { return "Wildcard" }
func (NamespaceWildcard) ItemKind() string { return "NamespaceWildcard" }

// Select builds a clause from items.
func Select(items ...Item) *Clause {
	return &Clause{Items: items}
}

// All builds a select-all clause; items may still add expansions.
func All(items ...Item) *Clause {
	return &Clause{AllSelected: true, Items: items}
}

// WithCompute returns c with compute items appended.
func (c *Clause) WithCompute(items ...expr.ComputeItem) *Clause {
	if c == nil {
		c = &Clause{AllSelected: true}
	}
	c.Compute = append(c.Compute, items...)
	return c
}

// IsSelectAll reports whether c selects every structural member, either by
// absence, AllSelected or a Wildcard item.
func (c *Clause) IsSelectAll() bool {
	if c == nil || c.AllSelected {
		return true
	}
	for _, it := range c.Items {
		if _, ok := it.(Wildcard); ok {
			return true
		}
	}
	return false
}
