package resolver_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/selexp/internal/edm"
	"github.com/hanpama/selexp/internal/edmtest"
	"github.com/hanpama/selexp/internal/expr"
	"github.com/hanpama/selexp/internal/resolver"
	"github.com/hanpama/selexp/internal/selection"
)

type fixture struct {
	s        *edm.Schema
	customer *edm.StructuredType
	order    *edm.StructuredType
	item     *edm.StructuredType
}

func newFixture(t *testing.T) fixture {
	s := edmtest.Sales(t)
	return fixture{
		s:        s,
		customer: edmtest.Type(t, s, "Customer"),
		order:    edmtest.Type(t, s, "Order"),
		item:     edmtest.Type(t, s, "Item"),
	}
}

func (f fixture) sel(t *edm.StructuredType, path string) *selection.PathSelect {
	return &selection.PathSelect{Path: selection.MustPath(f.s, t, path)}
}

func (f fixture) exp(t *edm.StructuredType, path string, mode selection.ExpandMode, nested *selection.Clause) *selection.ExpandItem {
	return &selection.ExpandItem{Path: selection.MustPath(f.s, t, path), Mode: mode, Nested: nested}
}

func summarize(t *testing.T, typ *edm.StructuredType, clause *selection.Clause) resolver.Summary {
	t.Helper()
	r, err := resolver.Resolve(typ, clause, nil, false)
	require.NoError(t, err)
	return r.Summary()
}

func TestResolveSummaries(t *testing.T) {
	f := newFixture(t)
	c := f.customer

	tests := []struct {
		name   string
		clause *selection.Clause
		want   resolver.Summary
	}{
		{
			name:   "nil clause selects everything",
			clause: nil,
			want: resolver.Summary{
				Type:       "Customer",
				SelectAll:  true,
				Structural: []string{"Id", "Name", "Email", "Version"},
				Complex:    []string{"Address", "Addresses"},
				Navigation: []string{"Orders", "Friend"},
				Actions:    []string{"Promote"},
				Functions:  []string{"Rank"},
			},
		},
		{
			name:   "explicit select adds key and concurrency",
			clause: selection.Select(f.sel(c, "Name")),
			want: resolver.Summary{
				Type:       "Customer",
				Structural: []string{"Id", "Name", "Version"},
			},
		},
		{
			name:   "wildcard leaves operations out",
			clause: selection.Select(selection.Wildcard{}, f.sel(c, "Name")),
			want: resolver.Summary{
				Type:       "Customer",
				SelectAll:  true,
				Structural: []string{"Id", "Name", "Email", "Version"},
				Complex:    []string{"Address", "Addresses"},
				Navigation: []string{"Orders", "Friend"},
			},
		},
		{
			name:   "namespace wildcard",
			clause: selection.Select(selection.NamespaceWildcard{}),
			want: resolver.Summary{
				Type:       "Customer",
				Structural: []string{"Id", "Version"},
				Actions:    []string{"Promote"},
				Functions:  []string{"Rank"},
			},
		},
		{
			name:   "declaration order",
			clause: selection.Select(f.sel(c, "Rank"), f.sel(c, "Friend"), f.sel(c, "Email"), f.sel(c, "Orders"), f.sel(c, "Promote")),
			want: resolver.Summary{
				Type:       "Customer",
				Structural: []string{"Id", "Email", "Version"},
				Navigation: []string{"Orders", "Friend"},
				Actions:    []string{"Promote"},
				Functions:  []string{"Rank"},
			},
		},
		{
			name:   "expand wins over select",
			clause: selection.Select(f.sel(c, "Orders"), f.exp(c, "Orders", selection.ExpandFull, nil), f.sel(c, "Friend")),
			want: resolver.Summary{
				Type:       "Customer",
				Structural: []string{"Id", "Version"},
				Navigation: []string{"Friend"},
				Expanded:   []string{"Orders"},
			},
		},
		{
			name:   "select all with expansion",
			clause: selection.All(f.exp(c, "Friend", selection.ExpandReference, nil)),
			want: resolver.Summary{
				Type:       "Customer",
				SelectAll:  true,
				Structural: []string{"Id", "Name", "Email", "Version"},
				Complex:    []string{"Address", "Addresses"},
				Navigation: []string{"Orders"},
				Referenced: []string{"Friend"},
				Actions:    []string{"Promote"},
				Functions:  []string{"Rank"},
			},
		},
		{
			name:   "complex traversal",
			clause: selection.Select(f.sel(c, "Address/City")),
			want: resolver.Summary{
				Type:       "Customer",
				Structural: []string{"Id", "Version"},
				Complex:    []string{"Address"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := summarize(t, c, tt.clause)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("summary mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// Pattern: resolving is a pure function of its inputs, and repeated items
// fold into one member.
func TestResolveIsIdempotent(t *testing.T) {
	f := newFixture(t)
	c := f.customer
	clause := selection.Select(f.sel(c, "Name"), f.sel(c, "Address/City"), f.exp(c, "Orders", selection.ExpandFull, nil))

	first := summarize(t, c, clause)
	second := summarize(t, c, clause)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("repeat mismatch (-want +got):\n%s", diff)
	}

	doubled := selection.Select(f.sel(c, "Name"), f.sel(c, "Name"), f.sel(c, "Email"), f.sel(c, "Email"))
	require.Equal(t, []string{"Id", "Name", "Email", "Version"}, summarize(t, c, doubled).Structural)
}

func TestDuplicateExpandLastWins(t *testing.T) {
	f := newFixture(t)
	c := f.customer
	top := 1
	last := f.exp(c, "Orders", selection.ExpandFull, nil)
	last.Options.Top = &top

	r, err := resolver.Resolve(c, selection.Select(f.exp(c, "Orders", selection.ExpandReference, nil), last), nil, false)
	require.NoError(t, err)
	require.Empty(t, r.Referenced)
	require.Len(t, r.Expanded, 1)
	e := r.Expansion(c.FindNavigation("Orders"))
	require.Equal(t, selection.ExpandFull, e.Mode)
	require.Equal(t, 1, *e.Options.Top)
	require.Nil(t, r.Expansion(c.FindNavigation("Friend")))
}

func TestReferenceExpandSelectsKeys(t *testing.T) {
	f := newFixture(t)
	for _, typ := range []*edm.StructuredType{f.customer, f.order} {
		r, err := resolver.Resolve(typ, selection.Select(f.sel(typ, "Id")), nil, true)
		require.NoError(t, err)
		require.Equal(t, resolver.Summary{Type: typ.Name, Structural: []string{"Id"}}, r.Summary())
	}
}

func TestComplexClauses(t *testing.T) {
	f := newFixture(t)
	c := f.customer
	address := c.FindProperty("Address")

	t.Run("leaf copies the raw value", func(t *testing.T) {
		r, err := resolver.Resolve(c, selection.Select(f.sel(c, "Address")), nil, false)
		require.NoError(t, err)
		require.Len(t, r.SelectedComplex, 1)
		require.Same(t, address, r.SelectedComplex[0].Property)
		require.Nil(t, r.SelectedComplex[0].Clause)
	})

	t.Run("sub paths accumulate", func(t *testing.T) {
		r, err := resolver.Resolve(c, selection.Select(f.sel(c, "Address/City"), f.sel(c, "Address/Country/Code")), nil, false)
		require.NoError(t, err)
		require.Len(t, r.SelectedComplex, 1)
		clause := r.SelectedComplex[0].Clause
		require.False(t, clause.AllSelected)
		require.Len(t, clause.Items, 2)
	})

	t.Run("leaf wins over sub paths", func(t *testing.T) {
		r, err := resolver.Resolve(c, selection.Select(f.sel(c, "Address/City"), f.sel(c, "Address")), nil, false)
		require.NoError(t, err)
		require.True(t, r.SelectedComplex[0].Clause.AllSelected)
	})

	t.Run("item compute selects the whole value", func(t *testing.T) {
		where := expr.ComputeItem{Alias: "Where", Expr: expr.Prop("City")}
		item := &selection.PathSelect{Path: f.sel(c, "Address").Path, Options: selection.Options{Compute: []expr.ComputeItem{where}}}
		r, err := resolver.Resolve(c, selection.Select(item), nil, false)
		require.NoError(t, err)
		clause := r.SelectedComplex[0].Clause
		require.NotNil(t, clause)
		require.True(t, clause.AllSelected)
		require.Equal(t, []string{"Where"}, expr.Aliases(clause.Compute))

		got, err := resolver.Describe(c, selection.Select(item), nil)
		require.NoError(t, err)
		require.Equal(t, []string{"Where"}, got.Nested["Address"].Computed)
	})
}

func TestCasts(t *testing.T) {
	f := newFixture(t)
	c := f.customer
	vip := edmtest.Type(t, f.s, "VipCustomer")
	name := c.FindProperty("Name")
	level := vip.FindProperty("Level")

	r, err := resolver.Resolve(c, selection.Select(f.sel(c, "VipCustomer/Name"), f.sel(c, "VipCustomer/Level")), nil, false)
	require.NoError(t, err)
	require.Same(t, vip, r.RequiredType(name))
	require.Same(t, vip, r.RequiredType(level))
	require.Equal(t, map[string]string{"Name": "VipCustomer"}, r.Summary().Casts)
	require.Equal(t, []string{"Id", "Name", "Version", "Level"}, r.Summary().Structural)

	r, err = resolver.Resolve(c, selection.Select(f.sel(c, "VipCustomer/Name"), f.sel(c, "Name")), nil, false)
	require.NoError(t, err)
	require.Same(t, c, r.RequiredType(name))
	require.Nil(t, r.Casts)
}

func TestDynamicAndComputed(t *testing.T) {
	f := newFixture(t)

	r, err := resolver.Resolve(f.item, selection.Select(f.sel(f.item, "Colour")), nil, false)
	require.NoError(t, err)
	require.Equal(t, []string{"Colour"}, r.SelectedDynamic)
	require.False(t, r.SelectAllDynamic)

	r, err = resolver.Resolve(f.item, nil, nil, false)
	require.NoError(t, err)
	require.True(t, r.SelectAllDynamic)

	total := expr.ComputeItem{Alias: "Total", Expr: expr.Const(int64(1))}
	unused := expr.ComputeItem{Alias: "Unused", Expr: expr.Const(int64(2))}
	clause := selection.Select(&selection.PathSelect{Path: selection.Path{selection.DynamicSegment{Name: "Total"}}}).WithCompute(total, unused)
	r, err = resolver.Resolve(f.order, clause, nil, false)
	require.NoError(t, err)
	require.Equal(t, []string{"Total"}, r.Computed)

	r, err = resolver.Resolve(f.order, selection.All().WithCompute(total, unused), nil, false)
	require.NoError(t, err)
	require.Equal(t, []string{"Total", "Unused"}, r.Computed)

	_, err = resolver.Resolve(f.order, selection.Select(&selection.PathSelect{Path: selection.Path{selection.DynamicSegment{Name: "Colour"}}}), nil, false)
	var mapping *edm.SchemaMappingError
	require.True(t, errors.As(err, &mapping))
}

type bogusItem struct{}

func (bogusItem) ItemKind() string { return "Bogus" }

func TestResolveErrors(t *testing.T) {
	f := newFixture(t)
	c := f.customer

	tests := []struct {
		name    string
		clause  *selection.Clause
		kind    string
		segment string
	}{
		{"navigation mid path", selection.Select(f.sel(c, "Orders/Title")), resolver.KindUnsupportedSegment, "Orders"},
		{"expand of a property", selection.Select(f.exp(c, "Name", selection.ExpandFull, nil)), resolver.KindUnsupportedSegment, "Name"},
		{"cast ends a path", selection.Select(f.sel(c, "VipCustomer")), resolver.KindUnsupportedSegment, "VipCustomer"},
		{"unknown item", selection.Select(bogusItem{}), resolver.KindUnknownSelectItemKind, "Bogus"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := resolver.Resolve(c, tt.clause, nil, false)
			var se *resolver.SelectionError
			require.True(t, errors.As(err, &se), "got %v", err)
			require.Equal(t, tt.kind, se.Kind)
			require.Equal(t, tt.segment, se.Segment)
		})
	}

	t.Run("member of a derived type on the base", func(t *testing.T) {
		vip := edmtest.Type(t, f.s, "VipCustomer")
		foreign := &selection.PathSelect{Path: selection.Path{selection.PropertySegment{Property: c.FindProperty("Name")}}}
		_, err := resolver.Resolve(f.order, selection.Select(foreign), nil, false)
		require.Error(t, err)
		_, err = resolver.Resolve(c, selection.Select(f.sel(vip, "Level")), nil, false)
		require.NoError(t, err, "derived members are reachable through the hierarchy")
	})
}

func TestDescribe(t *testing.T) {
	f := newFixture(t)
	c := f.customer
	customers := f.s.EntitySets["Customers"]

	clause := selection.Select(
		f.sel(c, "Name"),
		f.sel(c, "Address/City"),
		f.exp(c, "Orders", selection.ExpandFull, selection.Select(f.sel(f.order, "Title"))),
		f.exp(c, "Friend", selection.ExpandReference, nil),
	)
	got, err := resolver.Describe(c, clause, customers)
	require.NoError(t, err)

	want := resolver.Summary{
		Type:       "Customer",
		Structural: []string{"Id", "Name", "Version"},
		Complex:    []string{"Address"},
		Expanded:   []string{"Orders"},
		Referenced: []string{"Friend"},
		Nested: map[string]resolver.Summary{
			"Address": {Type: "Address", Structural: []string{"City"}},
			"Orders":  {Type: "Order", Structural: []string{"Id", "Title"}},
			"Friend":  {Type: "Customer", Structural: []string{"Id"}},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("describe mismatch (-want +got):\n%s", diff)
	}

	r, err := resolver.Resolve(c, clause, customers, false)
	require.NoError(t, err)
	require.Same(t, f.s.EntitySets["Orders"], r.Expanded[0].Source)
	require.Nil(t, r.Referenced[0].Source)
}
