package edm_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/selexp/internal/edm"
	"github.com/hanpama/selexp/internal/edmtest"
)

func names[T any](list []T, name func(T) string) []string {
	out := make([]string, len(list))
	for i, x := range list {
		out[i] = name(x)
	}
	return out
}

func propName(p *edm.Property) string { return p.Name }
func navName(n *edm.NavigationProperty) string { return n.Name }
func opName(op *edm.Operation) string { return op.Name }
func typeName(t *edm.StructuredType) string { return t.Name }

func TestLoadSDL(t *testing.T) {
	s := edmtest.Sales(t)
	require.Equal(t, "sales", s.Namespace)

	customer := edmtest.Type(t, s, "Customer")
	vip := edmtest.Type(t, s, "VipCustomer")
	address := edmtest.Type(t, s, "Address")

	require.Equal(t, edm.TypeKindEntity, customer.Kind)
	require.Equal(t, edm.TypeKindComplex, address.Kind)
	require.Equal(t, "A person who places orders.", customer.Description)
	require.Same(t, customer, vip.Base)

	t.Run("members", func(t *testing.T) {
		if diff := cmp.Diff([]string{"Id", "Name", "Email", "Version", "Address", "Addresses", "Level"}, names(vip.AllProperties(), propName)); diff != "" {
			t.Fatalf("properties mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]string{"Orders", "Friend", "Perks"}, names(vip.AllNavigations(), navName)); diff != "" {
			t.Fatalf("navigations mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]string{"Promote", "Rank", "Upgrade"}, names(vip.BoundOperations(), opName)); diff != "" {
			t.Fatalf("operations mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("keys and concurrency", func(t *testing.T) {
		require.Equal(t, []string{"Id"}, names(vip.KeyProperties(), propName))
		require.Equal(t, []string{"Version"}, names(vip.ConcurrencyProperties(), propName))
		order := edmtest.Type(t, s, "Order")
		require.Equal(t, []string{"Id"}, names(order.KeyProperties(), propName))
	})

	t.Run("properties", func(t *testing.T) {
		id := customer.FindProperty("Id")
		require.False(t, id.Nullable)
		require.Equal(t, edm.PrimitiveInt32, id.Primitive)
		require.Equal(t, edm.PrimitiveInt64, customer.FindProperty("Version").Primitive)
		addresses := customer.FindProperty("Addresses")
		require.True(t, addresses.IsComplex())
		require.True(t, addresses.Collection)
		require.Same(t, address, addresses.Complex)
	})

	t.Run("navigations", func(t *testing.T) {
		orders := customer.FindNavigation("Orders")
		require.True(t, orders.Collection)
		require.Equal(t, 2, orders.PageSize)
		require.Equal(t, "Order", orders.Target.Name)
		require.False(t, customer.FindNavigation("Friend").Collection)
	})

	t.Run("open types", func(t *testing.T) {
		item := edmtest.Type(t, s, "Item")
		require.True(t, item.IsOpen())
		require.Equal(t, "Extra", item.DynamicContainerName())
		require.False(t, customer.IsOpen())
	})

	t.Run("entity sets", func(t *testing.T) {
		customers := s.EntitySets["Customers"]
		require.NotNil(t, customers)
		require.Same(t, customer, customers.Type)
		require.Same(t, s.EntitySets["Orders"], customers.Binding(customer.FindNavigation("Orders")))
		require.Nil(t, customers.Binding(customer.FindNavigation("Friend")))
		require.Same(t, customers, s.EntitySetFor(customer))
		var none *edm.EntitySet
		require.Nil(t, none.Binding(customer.FindNavigation("Orders")))
	})
}

func TestHierarchy(t *testing.T) {
	s := edmtest.Sales(t)
	customer := edmtest.Type(t, s, "Customer")
	vip := edmtest.Type(t, s, "VipCustomer")
	order := edmtest.Type(t, s, "Order")

	require.True(t, vip.IsAssignableTo(customer))
	require.False(t, customer.IsAssignableTo(vip))
	require.Same(t, vip, customer.CastTo(vip))
	require.Same(t, customer, vip.CastTo(customer))
	require.Nil(t, customer.CastTo(order))

	require.True(t, s.HasDerivedTypes(customer))
	require.False(t, s.HasDerivedTypes(vip))
	require.Equal(t, []string{"VipCustomer"}, names(s.DerivedTypes(customer), typeName))
}

func TestLinkErrors(t *testing.T) {
	tests := []struct {
		name string
		sdl  string
	}{
		{"unknown base", `type A @derives(from: "Missing") { Id: Int! }`},
		{"unknown scalar", `type A { Id: Uuid }`},
		{"unknown key", `type A @key(fields: ["Nope"]) { Id: Int! }`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := edm.LoadSDL("bad.graphql", tt.sdl)
			var mapping *edm.SchemaMappingError
			require.True(t, errors.As(err, &mapping), "got %v", err)
		})
	}

	t.Run("kind mismatch", func(t *testing.T) {
		_, err := edm.LoadSDL("bad.graphql", `
type C @complex { X: Int }
type E @derives(from: "C") { Id: Int! }
`)
		require.Error(t, err)
	})

	t.Run("cycle", func(t *testing.T) {
		_, err := edm.LoadSDL("bad.graphql", `
type A @derives(from: "B") { X: Int }
type B @derives(from: "A") { Y: Int }
`)
		require.Error(t, err)
	})
}

// Pattern: rendering is stable once a schema has been through LoadSDL.
func TestRenderRoundTrip(t *testing.T) {
	s := edmtest.Sales(t)
	first := edm.Render(s)
	again, err := edm.LoadSDL("sales.graphql", first)
	require.NoError(t, err)
	if diff := cmp.Diff(first, edm.Render(again)); diff != "" {
		t.Fatalf("render mismatch (-want +got):\n%s", diff)
	}
	require.Contains(t, first, `type VipCustomer @derives(from: "Customer") {`)
	require.Contains(t, first, `Orders: [Order] @navigation(pageSize: 2)`)
	require.Contains(t, first, `Customers: [Customer] @bind(path: "Orders", target: "Orders")`)
}

func TestBuilder(t *testing.T) {
	s := edm.NewSchema("demo")
	s.AddType(edm.NewEntityType("Person").
		SetKey("Id").
		AddProperty(edm.NewPrimitive("Id", edm.PrimitiveInt32).NonNullable()).
		AddProperty(edm.NewPrimitive("Tags", edm.PrimitiveString).AsCollection()).
		AddNavigation(edm.NewNavigation("Friends", "Person").AsCollection().WithPageSize(5)))
	s.AddEntitySet("People", "Person")
	require.NoError(t, s.Link())
	require.True(t, s.Linked())

	person := edmtest.Type(t, s, "Person")
	require.True(t, person.FindProperty("Tags").Collection)
	require.Equal(t, 5, person.FindNavigation("Friends").PageSize)
	require.Same(t, person, s.EntitySets["People"].Type)
	require.Equal(t, []string{"Person"}, s.TypeNames())
}
