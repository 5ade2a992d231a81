// Package edmtest provides a shared sales schema and instance builders for
// tests.
package edmtest

import (
	"testing"

	"github.com/hanpama/selexp/internal/edm"
)

// SalesSDL declares customers with a derived VIP type, complex addresses,
// orders, and an open Item type.
const SalesSDL = `
"A person who places orders."
type Customer @key(fields: ["Id"]) {
  Id: Int!
  Name: String
  Email: String
  Version: Long @concurrency
  Address: Address
  Addresses: [Address!]
  Orders: [Order!] @navigation(pageSize: 2)
  Friend: Customer
  Promote: Boolean @action
  Rank: Int @function
}

type VipCustomer @derives(from: "Customer") {
  Level: Int
  Perks: [Order!]
  Upgrade: Boolean @action
}

type Address @complex {
  Street: String
  City: String
  Country: Country
}

type Country @complex {
  Code: String
  Name: String
}

type Order {
  Id: Int! @key
  Title: String
  Amount: Float
  Customer: Customer
}

type Item @open(container: "Extra") @key(fields: "Id") {
  Id: Int!
  Label: String
}

type Store @container {
  Customers: [Customer] @bind(path: "Orders", target: "Orders")
  Orders: [Order]
  Items: [Item]
}
`

// Sales loads SalesSDL.
func Sales(t testing.TB) *edm.Schema {
	t.Helper()
	s, err := edm.LoadSDL("sales.graphql", SalesSDL)
	if err != nil {
		t.Fatalf("load sales schema: %v", err)
	}
	return s
}

// Type looks up a type, failing the test when it is missing.
func Type(t testing.TB, s *edm.Schema, name string) *edm.StructuredType {
	t.Helper()
	st, err := s.Lookup(name)
	if err != nil {
		t.Fatalf("lookup %s: %v", name, err)
	}
	return st
}

// Customer builds a customer instance.
func Customer(id int, name string, orders ...map[string]any) map[string]any {
	out := make([]any, len(orders))
	for i, o := range orders {
		out[i] = o
	}
	return map[string]any{
		"Id":      id,
		"Name":    name,
		"Email":   name + "@example.com",
		"Version": int64(1),
		"Address": map[string]any{"Street": "Main St", "City": "Seoul", "Country": map[string]any{"Code": "KR", "Name": "Korea"}},
		"Orders":  out,
	}
}

// Order builds an order instance.
func Order(id int, title string, amount float64) map[string]any {
	return map[string]any{"Id": id, "Title": title, "Amount": amount}
}

// Orders builds n orders with ids 1..n and amounts 10*id.
func Orders(n int) []map[string]any {
	out := make([]map[string]any, n)
	for i := range out {
		out[i] = Order(i+1, "order", float64(10*(i+1)))
	}
	return out
}
