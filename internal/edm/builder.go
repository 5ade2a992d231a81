package edm

// AddType registers t. Registering a name twice replaces the earlier type but
// keeps its registration position.
func (s *Schema) AddType(t *StructuredType) *Schema {
	if _, ok := s.Types[t.Name]; !ok {
		s.order = append(s.order, t.Name)
	}
	s.Types[t.Name] = t
	s.linked = false
	return s
}

// AddEnum registers an enum type with its members.
func (s *Schema) AddEnum(name string, members ...string) *Schema {
	s.Enums[name] = append([]string(nil), members...)
	return s
}

// AddEntitySet registers a navigation source over the named entity type.
func (s *Schema) AddEntitySet(name, typeName string) *EntitySet {
	es := &EntitySet{Name: name, TypeName: typeName, Bindings: map[string]*EntitySet{}}
	s.EntitySets[name] = es
	return es
}

// Bind records that navigation nav of es leads into target.
func (es *EntitySet) Bind(nav string, target *EntitySet) *EntitySet {
	es.Bindings[nav] = target
	return es
}

// NewEntityType returns an entity type descriptor.
func NewEntityType(name string) *StructuredType {
	return &StructuredType{Name: name, Kind: TypeKindEntity}
}

// NewComplexType returns a complex type descriptor.
func NewComplexType(name string) *StructuredType {
	return &StructuredType{Name: name, Kind: TypeKindComplex}
}

func (t *StructuredType) SetDescription(d string) *StructuredType {
	t.Description = d
	return t
}

func (t *StructuredType) SetAbstract(v bool) *StructuredType {
	t.Abstract = v
	return t
}

// Derive sets the base type by name; Link resolves it.
func (t *StructuredType) Derive(base string) *StructuredType {
	t.BaseName = base
	return t
}

// SetOpen marks t open; dynamic properties live under container.
func (t *StructuredType) SetOpen(container string) *StructuredType {
	t.Open = true
	t.DynamicContainer = container
	return t
}

// SetKey declares the key property names, in key order.
func (t *StructuredType) SetKey(names ...string) *StructuredType {
	t.KeyNames = append([]string(nil), names...)
	return t
}

// SetConcurrency declares the concurrency property names.
func (t *StructuredType) SetConcurrency(names ...string) *StructuredType {
	t.ConcurrencyNames = append(t.ConcurrencyNames, names...)
	return t
}

func (t *StructuredType) AddProperty(p *Property) *StructuredType {
	p.DeclaringType = t
	t.Properties = append(t.Properties, p)
	return t
}

func (t *StructuredType) AddNavigation(n *NavigationProperty) *StructuredType {
	n.DeclaringType = t
	t.Navigations = append(t.Navigations, n)
	return t
}

func (t *StructuredType) AddOperation(op *Operation) *StructuredType {
	op.BindingType = t
	t.Operations = append(t.Operations, op)
	return t
}

// NewPrimitive returns a nullable primitive property.
func NewPrimitive(name string, kind PrimitiveKind) *Property {
	return &Property{Name: name, Kind: PropertyKindPrimitive, TypeName: string(kind), Primitive: kind, Nullable: true}
}

// NewEnumProperty returns a nullable enum-typed property.
func NewEnumProperty(name, enumName string) *Property {
	return &Property{Name: name, Kind: PropertyKindEnum, TypeName: enumName, Nullable: true}
}

// NewComplexProperty returns a nullable complex-typed property.
func NewComplexProperty(name, complexType string) *Property {
	return &Property{Name: name, Kind: PropertyKindComplex, TypeName: complexType, Nullable: true}
}

func (p *Property) AsCollection() *Property {
	p.Collection = true
	return p
}

func (p *Property) NonNullable() *Property {
	p.Nullable = false
	return p
}

// NewNavigation returns a single-valued, nullable navigation property.
func NewNavigation(name, target string) *NavigationProperty {
	return &NavigationProperty{Name: name, TargetName: target, Nullable: true}
}

func (n *NavigationProperty) AsCollection() *NavigationProperty {
	n.Collection = true
	return n
}

// WithPageSize sets the modeled page size for expanded collections.
func (n *NavigationProperty) WithPageSize(size int) *NavigationProperty {
	n.PageSize = size
	return n
}

func NewAction(name string) *Operation   { return &Operation{Name: name, Kind: OperationKindAction} }
func NewFunction(name string) *Operation { return &Operation{Name: name, Kind: OperationKindFunction} }
