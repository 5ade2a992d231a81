package selection

import (
	"fmt"
	"slices"
	"strings"

	"github.com/hanpama/selexp/internal/edm"
)

// Segment is one step of a select or expand path.
type Segment interface {
	Identifier() string
}

// PropertySegment names a structural property.
type PropertySegment struct {
	Property *edm.Property
}

// NavigationSegment names a navigation property.
type NavigationSegment struct {
	Navigation *edm.NavigationProperty
}

// TypeSegment casts the current value to a type in its hierarchy.
type TypeSegment struct {
	Type *edm.StructuredType
}

// OperationSegment names a bound action or function.
type OperationSegment struct {
	Operation *edm.Operation
}

// DynamicSegment names an undeclared property of an open type, or a
// computed alias.
type DynamicSegment struct {
	Name string
}

func (s PropertySegment) Identifier() string   { return s.Property.Name }
func (s NavigationSegment) Identifier() string { return s.Navigation.Name }
func (s TypeSegment) Identifier() string       { return s.Type.Name }
func (s OperationSegment) Identifier() string  { return s.Operation.Name }
func (s DynamicSegment) Identifier() string    { return s.Name }

// Path is an ordered list of segments.
type Path []Segment

func (p Path) String() string {
	parts := make([]string, len(p))
	for i, s := range p {
		parts[i] = s.Identifier()
	}
	return strings.Join(parts, "/")
}

// First returns the first segment, or nil for an empty path.
func (p Path) First() Segment {
	if len(p) == 0 {
		return nil
	}
	return p[0]
}

// Last returns the last segment, or nil for an empty path.
func (p Path) Last() Segment {
	if len(p) == 0 {
		return nil
	}
	return p[len(p)-1]
}

// Rest returns p without its first segment.
func (p Path) Rest() Path {
	if len(p) == 0 {
		return nil
	}
	return p[1:]
}

// StripCasts splits leading type-cast segments from the remainder. The last
// cast, if any, is returned.
func (p Path) StripCasts() (*edm.StructuredType, Path) {
	var cast *edm.StructuredType
	i := 0
	for ; i < len(p); i++ {
		ts, ok := p[i].(TypeSegment)
		if !ok {
			break
		}
		cast = ts.Type
	}
	return cast, p[i:]
}

// DeclaringType returns the type that declares the member s names, or nil
// for type casts, dynamic segments and a nil segment.
func DeclaringType(s Segment) *edm.StructuredType {
	switch v := s.(type) {
	case PropertySegment:
		return v.Property.DeclaringType
	case NavigationSegment:
		return v.Navigation.DeclaringType
	case OperationSegment:
		return v.Operation.BindingType
	default:
		return nil
	}
}

// IsTraversal reports whether s may appear in the middle of a path.
func IsTraversal(s Segment) bool {
	switch v := s.(type) {
	case TypeSegment:
		return true
	case PropertySegment:
		return v.Property.IsComplex()
	default:
		return false
	}
}

// IsTerminal reports whether s may end a path.
func IsTerminal(s Segment) bool {
	switch s.(type) {
	case PropertySegment, NavigationSegment, OperationSegment, DynamicSegment:
		return true
	default:
		return false
	}
}

// ParsePath resolves a slash-separated member path against t. Names resolve
// in order: structural property, navigation property, bound operation, type
// in the hierarchy of the current type (qualified or not); on open types an
// unknown name becomes a dynamic segment. Traversal continues through
// complex properties and type casts. A single-segment path naming one of
// aliases becomes a dynamic segment referring to that computed value.
func ParsePath(s *edm.Schema, t *edm.StructuredType, path string, aliases ...string) (Path, error) {
	if path == "" {
		return nil, fmt.Errorf("empty path")
	}
	var out Path
	cur := t
	names := strings.Split(path, "/")
	if len(names) == 1 && slices.Contains(aliases, path) {
		return Path{DynamicSegment{Name: path}}, nil
	}
	for i, name := range names {
		if cur == nil {
			return nil, fmt.Errorf("path %q: %q follows a non-structured segment", path, name)
		}
		seg, next, err := resolveName(s, cur, name)
		if err != nil {
			return nil, fmt.Errorf("path %q: %w", path, err)
		}
		out = append(out, seg)
		if i < len(names)-1 && !IsTraversal(seg) {
			if _, ok := seg.(NavigationSegment); !ok {
				return nil, fmt.Errorf("path %q: %q cannot be traversed", path, name)
			}
		}
		cur = next
	}
	return out, nil
}

// MustPath is ParsePath for static paths; it panics on error.
func MustPath(s *edm.Schema, t *edm.StructuredType, path string, aliases ...string) Path {
	p, err := ParsePath(s, t, path, aliases...)
	if err != nil {
		panic(err)
	}
	return p
}

func resolveName(s *edm.Schema, t *edm.StructuredType, name string) (Segment, *edm.StructuredType, error) {
	if p := t.FindProperty(name); p != nil {
		return PropertySegment{Property: p}, p.Complex, nil
	}
	if n := t.FindNavigation(name); n != nil {
		return NavigationSegment{Navigation: n}, n.Target, nil
	}
	if op := t.FindOperation(name); op != nil {
		return OperationSegment{Operation: op}, nil, nil
	}
	typeName := name
	if s != nil && s.Namespace != "" {
		typeName = strings.TrimPrefix(name, s.Namespace+".")
	}
	if s != nil {
		if u, ok := s.Types[typeName]; ok {
			if t.CastTo(u) == nil {
				return nil, nil, fmt.Errorf("cast from %s to unrelated type %s", t.Name, u.Name)
			}
			return TypeSegment{Type: u}, u, nil
		}
	}
	if t.IsOpen() {
		return DynamicSegment{Name: name}, nil, nil
	}
	return nil, nil, &edm.SchemaMappingError{Type: t.Name, Property: name}
}
