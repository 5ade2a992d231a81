package edm

import (
	"fmt"
	"strconv"
	"strings"

	language "github.com/hanpama/selexp/internal/language"
)

// DefaultDynamicContainer is used when @open omits the container argument.
const DefaultDynamicContainer = "DynamicProperties"

var scalarKinds = map[string]PrimitiveKind{
	"String":         PrimitiveString,
	"ID":             PrimitiveString,
	"Boolean":        PrimitiveBoolean,
	"Int":            PrimitiveInt32,
	"Int32":          PrimitiveInt32,
	"Long":           PrimitiveInt64,
	"Int64":          PrimitiveInt64,
	"Float":          PrimitiveDouble,
	"Double":         PrimitiveDouble,
	"Decimal":        PrimitiveDecimal,
	"DateTime":       PrimitiveDateTimeOffset,
	"DateTimeOffset": PrimitiveDateTimeOffset,
	"Guid":           PrimitiveGuid,
	"Binary":         PrimitiveBinary,
}

// LoadSDL builds and links a schema from an annotated GraphQL SDL document.
//
// Object types are entity types unless marked @complex. Recognised
// directives:
//
//	@key(fields: ["Id"])           entity key, also allowed on fields
//	@derives(from: "Base")         single inheritance
//	@abstract
//	@open(container: "Extra")      open type with dynamic container
//	@concurrency                   on fields
//	@navigation(pageSize: 10)      on entity-typed fields
//	@action / @function            on fields; declares a bound operation
//	@container                     object whose fields declare entity sets
//	@bind(path: "Orders", target: "Orders")  on entity set fields
func LoadSDL(name, source string) (*Schema, error) {
	doc, err := language.ParseSchema(name, source)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}

	s := NewSchema(namespaceOf(name))
	kinds := map[string]language.DefinitionKind{}
	complexTypes := map[string]bool{}
	var containers []*language.Definition

	defs := append(language.DefinitionList{}, doc.Definitions...)
	for _, def := range defs {
		kinds[def.Name] = def.Kind
		switch def.Kind {
		case language.Object:
			if def.Directives.ForName("container") != nil {
				containers = append(containers, def)
				continue
			}
			if def.Directives.ForName("complex") != nil {
				complexTypes[def.Name] = true
			}
		case language.Enum:
			members := make([]string, 0, len(def.EnumValues))
			for _, v := range def.EnumValues {
				members = append(members, v.Name)
			}
			s.AddEnum(def.Name, members...)
		case language.Scalar:
			if _, ok := scalarKinds[def.Name]; !ok {
				return nil, fmt.Errorf("scalar %s at %s: %w", def.Name, positionOf(def.Position), &SchemaMappingError{Type: def.Name})
			}
		default:
			return nil, fmt.Errorf("%s %s at %s: unsupported definition kind", def.Kind, def.Name, positionOf(def.Position))
		}
	}

	for _, def := range defs {
		if def.Kind != language.Object || def.Directives.ForName("container") != nil {
			continue
		}
		t, err := buildStructuredType(def, kinds, complexTypes)
		if err != nil {
			return nil, err
		}
		s.AddType(t)
	}

	for _, def := range containers {
		for _, f := range def.Fields {
			es := s.AddEntitySet(f.Name, namedType(f.Type))
			for _, d := range f.Directives {
				if d.Name != "bind" {
					continue
				}
				path, _ := language.ArgumentString(d.Arguments, "path")
				target, _ := language.ArgumentString(d.Arguments, "target")
				if path == "" || target == "" {
					return nil, fmt.Errorf("@bind on %s.%s requires path and target", def.Name, f.Name)
				}
				es.Bindings[path] = &EntitySet{Name: target}
			}
		}
	}
	for _, es := range s.EntitySets {
		for path, placeholder := range es.Bindings {
			target, ok := s.EntitySets[placeholder.Name]
			if !ok {
				return nil, fmt.Errorf("@bind %s/%s: unknown entity set %q", es.Name, path, placeholder.Name)
			}
			es.Bindings[path] = target
		}
	}

	if err := s.Link(); err != nil {
		return nil, err
	}
	return s, nil
}

func buildStructuredType(def *language.Definition, kinds map[string]language.DefinitionKind, complexTypes map[string]bool) (*StructuredType, error) {
	var t *StructuredType
	if complexTypes[def.Name] {
		t = NewComplexType(def.Name)
	} else {
		t = NewEntityType(def.Name)
	}
	t.SetDescription(def.Description)
	if d := def.Directives.ForName("derives"); d != nil {
		base, ok := language.ArgumentString(d.Arguments, "from")
		if !ok || base == "" {
			return nil, fmt.Errorf("@derives on %s requires from", def.Name)
		}
		t.Derive(base)
	}
	if def.Directives.ForName("abstract") != nil {
		t.SetAbstract(true)
	}
	if d := def.Directives.ForName("open"); d != nil {
		container, ok := language.ArgumentString(d.Arguments, "container")
		if !ok || container == "" {
			container = DefaultDynamicContainer
		}
		t.SetOpen(container)
	}
	if d := def.Directives.ForName("key"); d != nil {
		var keys []string
		for _, k := range language.ArgumentStrings(d.Arguments, "fields") {
			keys = append(keys, strings.Fields(k)...)
		}
		t.SetKey(keys...)
	}

	var fieldKeys []string
	for _, f := range def.Fields {
		if f.Directives.ForName("action") != nil {
			t.AddOperation(NewAction(f.Name))
			continue
		}
		if f.Directives.ForName("function") != nil {
			t.AddOperation(NewFunction(f.Name))
			continue
		}
		if f.Type.Elem != nil && f.Type.Elem.Elem != nil {
			return nil, fmt.Errorf("field %s.%s at %s: nested list types are not supported", def.Name, f.Name, positionOf(f.Position))
		}
		named := namedType(f.Type)
		collection := f.Type.Elem != nil
		nullable := !f.Type.NonNull

		switch {
		case kinds[named] == language.Object && !complexTypes[named]:
			n := NewNavigation(f.Name, named)
			n.Collection = collection
			n.Nullable = nullable
			if d := f.Directives.ForName("navigation"); d != nil {
				if raw, ok := language.ArgumentString(d.Arguments, "pageSize"); ok {
					size, err := strconv.Atoi(raw)
					if err != nil {
						return nil, fmt.Errorf("@navigation on %s.%s: invalid pageSize %q", def.Name, f.Name, raw)
					}
					n.WithPageSize(size)
				}
			}
			t.AddNavigation(n)
			continue
		case kinds[named] == language.Object:
			p := NewComplexProperty(f.Name, named)
			p.Collection = collection
			p.Nullable = nullable
			t.AddProperty(p)
		case kinds[named] == language.Enum:
			p := NewEnumProperty(f.Name, named)
			p.Collection = collection
			p.Nullable = nullable
			t.AddProperty(p)
		default:
			kind, ok := scalarKinds[named]
			if !ok {
				return nil, fmt.Errorf("field %s.%s: %w", def.Name, f.Name, &SchemaMappingError{Type: named})
			}
			p := NewPrimitive(f.Name, kind)
			p.Collection = collection
			p.Nullable = nullable
			t.AddProperty(p)
		}
		if f.Directives.ForName("key") != nil {
			fieldKeys = append(fieldKeys, f.Name)
		}
		if f.Directives.ForName("concurrency") != nil {
			t.SetConcurrency(f.Name)
		}
	}
	if len(t.KeyNames) == 0 && len(fieldKeys) > 0 {
		t.SetKey(fieldKeys...)
	}
	return t, nil
}

func namedType(t *language.Type) string {
	for cur := t; cur != nil; cur = cur.Elem {
		if cur.NamedType != "" {
			return cur.NamedType
		}
	}
	return ""
}

func namespaceOf(name string) string {
	base := name
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.IndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	return base
}

func positionOf(p *language.Position) string {
	if p == nil {
		return "?"
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}
