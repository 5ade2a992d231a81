package projection

import (
	"encoding/json"
	"iter"

	"github.com/hanpama/selexp/internal/edm"
)

// Field is one projected member.
type Field struct {
	Name  string
	Value any
}

// View is the partial view of one instance.
//
// Field values are primitives, raw complex values, *View for projected
// complex values and single-valued expansions, []*View for projected
// complex collections, and *Collection for expanded collections.
type View struct {
	// Type is the runtime type of the instance.
	Type *edm.StructuredType
	// TypeName is set when the level selects explicitly and the declared
	// type has derived types.
	TypeName string
	// Instance is the source instance when the level selects all.
	Instance any

	Fields    []Field
	Dynamic   map[string]any
	Counts    map[string]int
	Links     []string
	Actions   []string
	Functions []string
}

// Get returns the value of a projected field.
func (v *View) Get(name string) (any, bool) {
	for _, f := range v.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Names returns field names in projection order.
func (v *View) Names() []string {
	out := make([]string, len(v.Fields))
	for i, f := range v.Fields {
		out[i] = f.Name
	}
	return out
}

func (v *View) set(name string, value any) {
	for i := range v.Fields {
		if v.Fields[i].Name == name {
			v.Fields[i].Value = value
			return
		}
	}
	v.Fields = append(v.Fields, Field{Name: name, Value: value})
}

// ToMap renders the view as plain values. Dynamic properties are merged at
// the top level under declared fields, TypeName is emitted as "@type",
// counts as "<nav>@count" and bound operations as "#<name>". Nested
// collections are read in full.
func (v *View) ToMap() (map[string]any, error) {
	if v == nil {
		return nil, nil
	}
	m := make(map[string]any, len(v.Fields)+len(v.Dynamic)+1)
	for name, value := range v.Dynamic {
		m[name] = value
	}
	if v.TypeName != "" {
		m[DefaultTypeKey] = v.TypeName
	}
	for _, f := range v.Fields {
		value, err := plain(f.Value)
		if err != nil {
			return nil, err
		}
		m[f.Name] = value
	}
	for name, n := range v.Counts {
		m[name+"@count"] = n
	}
	for _, name := range v.Actions {
		m["#"+name] = map[string]any{}
	}
	for _, name := range v.Functions {
		m["#"+name] = map[string]any{}
	}
	return m, nil
}

func (v *View) MarshalJSON() ([]byte, error) {
	m, err := v.ToMap()
	if err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

func plain(value any) (any, error) {
	switch x := value.(type) {
	case *View:
		if x == nil {
			return nil, nil
		}
		return x.ToMap()
	case []*View:
		out := make([]any, len(x))
		for i, child := range x {
			m, err := child.ToMap()
			if err != nil {
				return nil, err
			}
			out[i] = m
		}
		return out, nil
	case *Collection:
		views, err := x.Collect()
		if err != nil {
			return nil, err
		}
		return plain(views)
	default:
		return value, nil
	}
}

// Collection is an expanded collection whose elements are projected as
// they are consumed.
type Collection struct {
	elements iter.Seq2[any, error]
	project  func(instance any, i int) (*View, error)
}

// All yields projected elements in order. Iteration stops after the first
// error.
func (c *Collection) All() iter.Seq2[*View, error] {
	return func(yield func(*View, error) bool) {
		i := 0
		for element, err := range c.elements {
			if err != nil {
				yield(nil, err)
				return
			}
			view, err := c.project(element, i)
			i++
			if !yield(view, err) || err != nil {
				return
			}
		}
	}
}

// Collect projects every element.
func (c *Collection) Collect() ([]*View, error) {
	out := []*View{}
	for view, err := range c.All() {
		if err != nil {
			return nil, err
		}
		out = append(out, view)
	}
	return out, nil
}
