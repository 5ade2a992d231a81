package projection

import (
	"fmt"
	"iter"
	"reflect"
	"slices"
	"strings"

	"github.com/hanpama/selexp/internal/edm"
)

// Accessor reads instances on behalf of the compiler.
//
// Navigate returns a single instance, nil, or for collection navigations a
// slice or an iter.Seq[any]. Dynamic returns the dynamic property container
// of an open type instance.
type Accessor interface {
	TypeName(instance any) string
	Property(instance any, name string) (any, bool)
	Navigate(instance any, nav *edm.NavigationProperty) (any, error)
	Dynamic(instance any, t *edm.StructuredType) (map[string]any, bool)
}

// DefaultTypeKey is the member MapAccessor reads runtime type names from.
const DefaultTypeKey = "@type"

// MapAccessor reads map[string]any instances as decoded from JSON or YAML
// documents. Runtime type names may be qualified ("Sales.Customer") and may
// carry a leading '#'.
type MapAccessor struct {
	TypeKey string
}

func (a MapAccessor) typeKey() string {
	if a.TypeKey == "" {
		return DefaultTypeKey
	}
	return a.TypeKey
}

func (a MapAccessor) TypeName(instance any) string {
	m, ok := instance.(map[string]any)
	if !ok {
		return ""
	}
	name, _ := m[a.typeKey()].(string)
	name = strings.TrimPrefix(name, "#")
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return name
}

func (a MapAccessor) Property(instance any, name string) (any, bool) {
	m, ok := instance.(map[string]any)
	if !ok {
		return nil, false
	}
	v, ok := m[name]
	return v, ok
}

func (a MapAccessor) Navigate(instance any, nav *edm.NavigationProperty) (any, error) {
	m, ok := instance.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("navigate %s: instance is %T, not an object", nav.Name, instance)
	}
	v := m[nav.Name]
	if v == nil {
		return nil, nil
	}
	if nav.Collection {
		if _, ok := v.(iter.Seq[any]); ok {
			return v, nil
		}
		if k := reflect.TypeOf(v).Kind(); k != reflect.Slice && k != reflect.Array {
			return nil, fmt.Errorf("navigate %s: expected a collection, got %T", nav.Name, v)
		}
	}
	return v, nil
}

func (a MapAccessor) Dynamic(instance any, t *edm.StructuredType) (map[string]any, bool) {
	m, ok := instance.(map[string]any)
	if !ok {
		return nil, false
	}
	container := t.DynamicContainerName()
	if container == "" {
		return nil, false
	}
	bag, ok := m[container].(map[string]any)
	return bag, ok
}

// values turns a navigation or collection value into a sequence.
func values(v any) iter.Seq[any] {
	switch c := v.(type) {
	case nil:
		return func(func(any) bool) {}
	case iter.Seq[any]:
		return c
	case []any:
		return slices.Values(c)
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return slices.Values([]any{v})
	}
	return func(yield func(any) bool) {
		for i := 0; i < rv.Len(); i++ {
			if !yield(rv.Index(i).Interface()) {
				return
			}
		}
	}
}
