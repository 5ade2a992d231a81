package edm

// Chain returns t and its ancestors, most-derived first.
func (t *StructuredType) Chain() []*StructuredType {
	var out []*StructuredType
	for cur := t; cur != nil; cur = cur.Base {
		out = append(out, cur)
	}
	return out
}

// IsAssignableTo reports whether t is u or derives from u.
func (t *StructuredType) IsAssignableTo(u *StructuredType) bool {
	if u == nil {
		return false
	}
	for cur := t; cur != nil; cur = cur.Base {
		if cur == u {
			return true
		}
	}
	return false
}

// CastTo returns u when t is assignable to u, or when u derives from t (a
// downcast that must be checked against the runtime instance). It returns
// nil for unrelated types.
func (t *StructuredType) CastTo(u *StructuredType) *StructuredType {
	if t.IsAssignableTo(u) || u.IsAssignableTo(t) {
		return u
	}
	return nil
}

// AllProperties returns structural properties declared on t and its
// ancestors, base-most declarations first.
func (t *StructuredType) AllProperties() []*Property {
	chain := t.Chain()
	var out []*Property
	for i := len(chain) - 1; i >= 0; i-- {
		out = append(out, chain[i].Properties...)
	}
	return out
}

// AllNavigations returns navigation properties declared on t and its
// ancestors, base-most declarations first.
func (t *StructuredType) AllNavigations() []*NavigationProperty {
	chain := t.Chain()
	var out []*NavigationProperty
	for i := len(chain) - 1; i >= 0; i-- {
		out = append(out, chain[i].Navigations...)
	}
	return out
}

// BoundOperations returns operations bound to t or inherited from an
// ancestor, base-most first.
func (t *StructuredType) BoundOperations() []*Operation {
	chain := t.Chain()
	var out []*Operation
	for i := len(chain) - 1; i >= 0; i-- {
		out = append(out, chain[i].Operations...)
	}
	return out
}

// KeyProperties returns the key declared closest to the root of t's chain.
func (t *StructuredType) KeyProperties() []*Property {
	chain := t.Chain()
	for i := len(chain) - 1; i >= 0; i-- {
		if len(chain[i].keys) > 0 {
			return chain[i].keys
		}
	}
	return nil
}

// ConcurrencyProperties returns every concurrency property declared on t or
// an ancestor.
func (t *StructuredType) ConcurrencyProperties() []*Property {
	chain := t.Chain()
	var out []*Property
	for i := len(chain) - 1; i >= 0; i-- {
		out = append(out, chain[i].concurrency...)
	}
	return out
}

// FindProperty looks up a structural property by name on t or an ancestor.
func (t *StructuredType) FindProperty(name string) *Property {
	for cur := t; cur != nil; cur = cur.Base {
		for _, p := range cur.Properties {
			if p.Name == name {
				return p
			}
		}
	}
	return nil
}

// FindNavigation looks up a navigation property by name on t or an ancestor.
func (t *StructuredType) FindNavigation(name string) *NavigationProperty {
	for cur := t; cur != nil; cur = cur.Base {
		for _, n := range cur.Navigations {
			if n.Name == name {
				return n
			}
		}
	}
	return nil
}

// FindOperation looks up a bound operation by name on t or an ancestor.
func (t *StructuredType) FindOperation(name string) *Operation {
	for cur := t; cur != nil; cur = cur.Base {
		for _, op := range cur.Operations {
			if op.Name == name {
				return op
			}
		}
	}
	return nil
}

// IsOpen reports whether t or an ancestor is declared open.
func (t *StructuredType) IsOpen() bool {
	for cur := t; cur != nil; cur = cur.Base {
		if cur.Open {
			return true
		}
	}
	return false
}

// DynamicContainerName returns the container property name declared for the
// dynamic properties of t or its closest open ancestor.
func (t *StructuredType) DynamicContainerName() string {
	for cur := t; cur != nil; cur = cur.Base {
		if cur.Open && cur.DynamicContainer != "" {
			return cur.DynamicContainer
		}
	}
	return ""
}
