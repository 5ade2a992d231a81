package edm

// TypeKind distinguishes entity types (identity-bearing) from complex types.
type TypeKind string

const (
	TypeKindEntity  TypeKind = "ENTITY"
	TypeKindComplex TypeKind = "COMPLEX"
)

// PrimitiveKind names a primitive value kind.
type PrimitiveKind string

const (
	PrimitiveString         PrimitiveKind = "String"
	PrimitiveBoolean        PrimitiveKind = "Boolean"
	PrimitiveInt32          PrimitiveKind = "Int32"
	PrimitiveInt64          PrimitiveKind = "Int64"
	PrimitiveDouble         PrimitiveKind = "Double"
	PrimitiveDecimal        PrimitiveKind = "Decimal"
	PrimitiveDateTimeOffset PrimitiveKind = "DateTimeOffset"
	PrimitiveGuid           PrimitiveKind = "Guid"
	PrimitiveBinary         PrimitiveKind = "Binary"
)

// PropertyKind classifies a structural property by its element type.
type PropertyKind string

const (
	PropertyKindPrimitive PropertyKind = "PRIMITIVE"
	PropertyKindEnum      PropertyKind = "ENUM"
	PropertyKindComplex   PropertyKind = "COMPLEX"
)

// OperationKind separates bound actions from bound functions.
type OperationKind string

const (
	OperationKindAction   OperationKind = "ACTION"
	OperationKindFunction OperationKind = "FUNCTION"
)

// StructuredType is an entity or complex type. Types form a single-inheritance
// chain through Base; all lookups that must consider inherited members walk
// that chain explicitly.
type StructuredType struct {
	Name        string
	Kind        TypeKind
	Description string
	Abstract    bool

	// Open types carry undeclared properties in the container named by
	// DynamicContainer.
	Open             bool
	DynamicContainer string

	BaseName string
	Base     *StructuredType

	Properties  []*Property           // declared structural properties
	Navigations []*NavigationProperty // declared navigation properties
	Operations  []*Operation          // operations bound to this type

	KeyNames         []string
	ConcurrencyNames []string

	keys        []*Property
	concurrency []*Property
	derived     []*StructuredType
}

// Property is a structural property: primitive, enum or complex, or a
// collection of those.
type Property struct {
	Name          string
	DeclaringType *StructuredType
	Kind          PropertyKind
	TypeName      string
	Primitive     PrimitiveKind   // set for PropertyKindPrimitive
	Complex       *StructuredType // set for PropertyKindComplex after Link
	Collection    bool
	Nullable      bool
}

// NavigationProperty relates a structured type to one or many instances of a
// target entity type.
type NavigationProperty struct {
	Name          string
	DeclaringType *StructuredType
	TargetName    string
	Target        *StructuredType
	Collection    bool
	Nullable      bool

	// PageSize is the modeled page size for expanded collections; 0 means the
	// global setting applies.
	PageSize int
}

// Operation is an action or function bound to a structured type.
type Operation struct {
	Name        string
	Kind        OperationKind
	BindingType *StructuredType
}

// EntitySet is a navigation source: a named collection of entities with
// navigation bindings to other sets.
type EntitySet struct {
	Name     string
	TypeName string
	Type     *StructuredType
	Bindings map[string]*EntitySet
}

// IsSimple reports whether p is primitive or enum typed (or a collection of
// either).
func (p *Property) IsSimple() bool {
	return p.Kind == PropertyKindPrimitive || p.Kind == PropertyKindEnum
}

// IsComplex reports whether p holds a complex value or a collection of them.
func (p *Property) IsComplex() bool { return p.Kind == PropertyKindComplex }

// Binding returns the navigation source reached from es through nav, or nil.
func (es *EntitySet) Binding(nav *NavigationProperty) *EntitySet {
	if es == nil || es.Bindings == nil {
		return nil
	}
	return es.Bindings[nav.Name]
}
