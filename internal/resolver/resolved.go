package resolver

import (
	"github.com/hanpama/selexp/internal/edm"
	"github.com/hanpama/selexp/internal/selection"
)

// ComplexSelection is an included complex property. A nil Clause means the
// raw value is copied as is. Clause carries the compute items of Options.
type ComplexSelection struct {
	Property *edm.Property
	Clause   *selection.Clause
	Options  selection.Options
}

// ExpandSelection is an expanded or referenced navigation property. Nested
// carries the compute items of Options.
type ExpandSelection struct {
	Navigation *edm.NavigationProperty
	Mode       selection.ExpandMode
	Nested     *selection.Clause
	Options    selection.Options

	// Source is the navigation source bound to Navigation, when known.
	Source *edm.EntitySet
}

// ResolvedSelection is what one clause includes for one structured type.
// Member slices are in declaration order, base-most first.
type ResolvedSelection struct {
	Type   *edm.StructuredType
	Source *edm.EntitySet

	SelectedStructural []*edm.Property
	SelectedComplex    []*ComplexSelection
	SelectedNavigation []*edm.NavigationProperty
	Expanded           []*ExpandSelection
	Referenced         []*ExpandSelection
	SelectedActions    []*edm.Operation
	SelectedFunctions  []*edm.Operation
	SelectedDynamic    []string
	Computed           []string

	SelectAllDynamic bool
	IsSelectAll      bool

	// Casts holds, per member descriptor, the type a runtime instance must be
	// assignable to when a cast segment is stricter than the declaring type.
	Casts map[any]*edm.StructuredType
}

// RequiredType returns the type an instance must be assignable to for
// member to apply. member is a *edm.Property, *edm.NavigationProperty or
// *edm.Operation.
func (r *ResolvedSelection) RequiredType(member any) *edm.StructuredType {
	if t, ok := r.Casts[member]; ok {
		return t
	}
	switch m := member.(type) {
	case *edm.Property:
		return m.DeclaringType
	case *edm.NavigationProperty:
		return m.DeclaringType
	case *edm.Operation:
		return m.BindingType
	}
	return nil
}

// Expansion returns the expand entry for nav, if any.
func (r *ResolvedSelection) Expansion(nav *edm.NavigationProperty) *ExpandSelection {
	for _, e := range r.Expanded {
		if e.Navigation == nav {
			return e
		}
	}
	for _, e := range r.Referenced {
		if e.Navigation == nav {
			return e
		}
	}
	return nil
}

// Summary is a name-only rendering of a ResolvedSelection.
type Summary struct {
	Type             string             `json:"type"`
	SelectAll        bool               `json:"selectAll,omitempty"`
	SelectAllDynamic bool               `json:"selectAllDynamic,omitempty"`
	Structural       []string           `json:"structural,omitempty"`
	Complex          []string           `json:"complex,omitempty"`
	Navigation       []string           `json:"navigation,omitempty"`
	Expanded         []string           `json:"expanded,omitempty"`
	Referenced       []string           `json:"referenced,omitempty"`
	Actions          []string           `json:"actions,omitempty"`
	Functions        []string           `json:"functions,omitempty"`
	Dynamic          []string           `json:"dynamic,omitempty"`
	Computed         []string           `json:"computed,omitempty"`
	Casts            map[string]string  `json:"casts,omitempty"`
	Nested           map[string]Summary `json:"nested,omitempty"`
}

// Summary renders r by member name. Nested is left empty; see Describe.
func (r *ResolvedSelection) Summary() Summary {
	s := Summary{
		Type:             r.Type.Name,
		SelectAll:        r.IsSelectAll,
		SelectAllDynamic: r.SelectAllDynamic,
		Dynamic:          r.SelectedDynamic,
		Computed:         r.Computed,
	}
	for _, p := range r.SelectedStructural {
		s.Structural = append(s.Structural, p.Name)
	}
	for _, c := range r.SelectedComplex {
		s.Complex = append(s.Complex, c.Property.Name)
	}
	for _, n := range r.SelectedNavigation {
		s.Navigation = append(s.Navigation, n.Name)
	}
	for _, e := range r.Expanded {
		s.Expanded = append(s.Expanded, e.Navigation.Name)
	}
	for _, e := range r.Referenced {
		s.Referenced = append(s.Referenced, e.Navigation.Name)
	}
	for _, op := range r.SelectedActions {
		s.Actions = append(s.Actions, op.Name)
	}
	for _, op := range r.SelectedFunctions {
		s.Functions = append(s.Functions, op.Name)
	}
	for member, t := range r.Casts {
		if s.Casts == nil {
			s.Casts = map[string]string{}
		}
		s.Casts[memberName(member)] = t.Name
	}
	return s
}

func memberName(member any) string {
	switch m := member.(type) {
	case *edm.Property:
		return m.Name
	case *edm.NavigationProperty:
		return m.Name
	case *edm.Operation:
		return m.Name
	}
	return ""
}
