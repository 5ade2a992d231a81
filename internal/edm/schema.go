package edm

import (
	"fmt"
	"sort"
)

// Schema is the catalog of structured types and navigation sources. A schema
// is mutable until Link succeeds; after that it is read-only and safe for
// concurrent use.
type Schema struct {
	Namespace  string
	Types      map[string]*StructuredType
	EntitySets map[string]*EntitySet
	Enums      map[string][]string

	order  []string
	linked bool
}

// NewSchema returns an empty schema for the given namespace.
func NewSchema(namespace string) *Schema {
	return &Schema{
		Namespace:  namespace,
		Types:      make(map[string]*StructuredType),
		EntitySets: make(map[string]*EntitySet),
		Enums:      make(map[string][]string),
	}
}

// Lookup returns the structured type registered under name.
func (s *Schema) Lookup(name string) (*StructuredType, error) {
	if t, ok := s.Types[name]; ok {
		return t, nil
	}
	return nil, &SchemaMappingError{Type: name}
}

// TypeNames returns registered type names in registration order.
func (s *Schema) TypeNames() []string { return append([]string(nil), s.order...) }

// Linked reports whether Link has completed successfully.
func (s *Schema) Linked() bool { return s.linked }

// Link resolves every by-name reference (base types, complex property types,
// navigation targets, keys, concurrency properties, entity set types) into
// descriptor pointers and computes derived-type lists.
func (s *Schema) Link() error {
	for _, name := range s.order {
		t := s.Types[name]
		t.derived = nil
	}
	for _, name := range s.order {
		t := s.Types[name]
		if t.BaseName != "" {
			base, ok := s.Types[t.BaseName]
			if !ok {
				return fmt.Errorf("base of %s: %w", t.Name, &SchemaMappingError{Type: t.BaseName})
			}
			if base.Kind != t.Kind {
				return fmt.Errorf("type %s (%s) cannot derive from %s (%s)", t.Name, t.Kind, base.Name, base.Kind)
			}
			t.Base = base
			base.derived = append(base.derived, t)
		}
	}
	for _, name := range s.order {
		t := s.Types[name]
		if err := checkCycle(t); err != nil {
			return err
		}
	}
	for _, name := range s.order {
		t := s.Types[name]
		for _, p := range t.Properties {
			p.DeclaringType = t
			if p.Kind != PropertyKindComplex {
				continue
			}
			ct, ok := s.Types[p.TypeName]
			if !ok {
				return fmt.Errorf("property %s.%s: %w", t.Name, p.Name, &SchemaMappingError{Type: p.TypeName})
			}
			if ct.Kind != TypeKindComplex {
				return fmt.Errorf("property %s.%s: %s is not a complex type", t.Name, p.Name, ct.Name)
			}
			p.Complex = ct
		}
		for _, n := range t.Navigations {
			n.DeclaringType = t
			target, ok := s.Types[n.TargetName]
			if !ok {
				return fmt.Errorf("navigation %s.%s: %w", t.Name, n.Name, &SchemaMappingError{Type: n.TargetName})
			}
			if target.Kind != TypeKindEntity {
				return fmt.Errorf("navigation %s.%s: %s is not an entity type", t.Name, n.Name, target.Name)
			}
			n.Target = target
		}
		for _, op := range t.Operations {
			op.BindingType = t
		}
	}
	for _, name := range s.order {
		t := s.Types[name]
		t.keys = t.keys[:0]
		for _, k := range t.KeyNames {
			p := t.FindProperty(k)
			if p == nil {
				return fmt.Errorf("key of %s: %w", t.Name, &SchemaMappingError{Type: t.Name, Property: k})
			}
			t.keys = append(t.keys, p)
		}
		t.concurrency = t.concurrency[:0]
		for _, c := range t.ConcurrencyNames {
			p := t.FindProperty(c)
			if p == nil {
				return fmt.Errorf("concurrency property of %s: %w", t.Name, &SchemaMappingError{Type: t.Name, Property: c})
			}
			t.concurrency = append(t.concurrency, p)
		}
	}
	for _, es := range s.EntitySets {
		t, ok := s.Types[es.TypeName]
		if !ok {
			return fmt.Errorf("entity set %s: %w", es.Name, &SchemaMappingError{Type: es.TypeName})
		}
		es.Type = t
	}
	s.linked = true
	return nil
}

func checkCycle(t *StructuredType) error {
	seen := map[*StructuredType]bool{}
	for cur := t; cur != nil; cur = cur.Base {
		if seen[cur] {
			return fmt.Errorf("inheritance cycle through %s", t.Name)
		}
		seen[cur] = true
	}
	return nil
}

// DerivedTypes returns every type that has t in its base chain, in
// registration order. t itself is not included.
func (s *Schema) DerivedTypes(t *StructuredType) []*StructuredType {
	var out []*StructuredType
	for _, name := range s.order {
		c := s.Types[name]
		if c != t && c.IsAssignableTo(t) {
			out = append(out, c)
		}
	}
	return out
}

// HasDerivedTypes reports whether any type derives from t.
func (s *Schema) HasDerivedTypes(t *StructuredType) bool { return len(t.derived) > 0 }

// EntitySetFor returns the first navigation source whose element type is t,
// searching set names in sorted order.
func (s *Schema) EntitySetFor(t *StructuredType) *EntitySet {
	names := make([]string, 0, len(s.EntitySets))
	for name := range s.EntitySets {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if es := s.EntitySets[name]; es.Type == t {
			return es
		}
	}
	return nil
}
