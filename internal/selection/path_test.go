package selection_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hanpama/selexp/internal/edm"
	"github.com/hanpama/selexp/internal/edmtest"
	"github.com/hanpama/selexp/internal/selection"
)

func TestParsePath(t *testing.T) {
	s := edmtest.Sales(t)
	customer := edmtest.Type(t, s, "Customer")
	vip := edmtest.Type(t, s, "VipCustomer")
	item := edmtest.Type(t, s, "Item")

	t.Run("structural", func(t *testing.T) {
		p, err := selection.ParsePath(s, customer, "Name")
		require.NoError(t, err)
		require.Equal(t, selection.Path{selection.PropertySegment{Property: customer.FindProperty("Name")}}, p)
		require.True(t, selection.IsTerminal(p.Last()))
	})

	t.Run("complex traversal", func(t *testing.T) {
		p, err := selection.ParsePath(s, customer, "Address/Country/Code")
		require.NoError(t, err)
		require.Equal(t, "Address/Country/Code", p.String())
		require.True(t, selection.IsTraversal(p.First()))
		require.Len(t, p.Rest(), 2)
	})

	t.Run("cast", func(t *testing.T) {
		for _, path := range []string{"VipCustomer/Level", "sales.VipCustomer/Level"} {
			p, err := selection.ParsePath(s, customer, path)
			require.NoError(t, err, path)
			cast, rest := p.StripCasts()
			require.Same(t, vip, cast)
			require.Equal(t, "Level", rest.String())
			require.Same(t, vip, selection.DeclaringType(rest.First()))
			require.Nil(t, selection.DeclaringType(p.First()))
		}
	})

	t.Run("navigation and operation", func(t *testing.T) {
		p, err := selection.ParsePath(s, customer, "Orders")
		require.NoError(t, err)
		require.IsType(t, selection.NavigationSegment{}, p.Last())

		p, err = selection.ParsePath(s, customer, "Promote")
		require.NoError(t, err)
		require.IsType(t, selection.OperationSegment{}, p.Last())
		require.Same(t, customer, selection.DeclaringType(p.Last()))
	})

	t.Run("aliases and dynamic", func(t *testing.T) {
		p, err := selection.ParsePath(s, customer, "Total", "Total")
		require.NoError(t, err)
		require.Equal(t, selection.Path{selection.DynamicSegment{Name: "Total"}}, p)

		p, err = selection.ParsePath(s, item, "Colour")
		require.NoError(t, err)
		require.Equal(t, selection.Path{selection.DynamicSegment{Name: "Colour"}}, p)
	})

	t.Run("errors", func(t *testing.T) {
		_, err := selection.ParsePath(s, customer, "Nope")
		var mapping *edm.SchemaMappingError
		require.True(t, errors.As(err, &mapping))
		require.Equal(t, "Nope", mapping.Property)

		_, err = selection.ParsePath(s, customer, "Name/Length")
		require.Error(t, err)

		_, err = selection.ParsePath(s, customer, "Order")
		require.Error(t, err, "unrelated cast")

		_, err = selection.ParsePath(s, customer, "")
		require.Error(t, err)

		require.Panics(t, func() { selection.MustPath(s, customer, "Nope") })
	})
}

func TestClauseHelpers(t *testing.T) {
	var none *selection.Clause
	require.True(t, none.IsSelectAll())
	require.True(t, selection.All().IsSelectAll())
	require.True(t, selection.Select(selection.Wildcard{}).IsSelectAll())
	require.False(t, selection.Select().IsSelectAll())

	top := 3
	require.True(t, selection.Options{}.IsZero())
	require.False(t, selection.Options{Count: true}.IsZero())
	require.True(t, selection.Options{Top: &top}.Paged())
	require.Equal(t, "ref", selection.ExpandReference.String())
	require.Equal(t, "full", selection.ExpandFull.String())
}
