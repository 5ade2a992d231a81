package edm

import (
	"sort"
	"strconv"
	"strings"
)

var sdlScalars = map[PrimitiveKind]string{
	PrimitiveString:         "String",
	PrimitiveBoolean:        "Boolean",
	PrimitiveInt32:          "Int",
	PrimitiveInt64:          "Long",
	PrimitiveDouble:         "Float",
	PrimitiveDecimal:        "Decimal",
	PrimitiveDateTimeOffset: "DateTime",
	PrimitiveGuid:           "Guid",
	PrimitiveBinary:         "Binary",
}

var builtinScalars = map[string]bool{"String": true, "Boolean": true, "Int": true, "Float": true, "ID": true}

// Render produces annotated SDL that LoadSDL accepts.
// Deterministic ordering: scalars, enums, then types in registration order,
// then the entity set container.
func Render(s *Schema) string {
	if s == nil {
		return ""
	}
	var b strings.Builder

	used := map[string]bool{}
	for _, name := range s.order {
		for _, p := range s.Types[name].Properties {
			if p.Kind == PropertyKindPrimitive {
				used[sdlScalars[p.Primitive]] = true
			}
		}
	}
	var scalars []string
	for name := range used {
		if !builtinScalars[name] {
			scalars = append(scalars, name)
		}
	}
	sort.Strings(scalars)
	for _, name := range scalars {
		b.WriteString("scalar ")
		b.WriteString(name)
		b.WriteString("\n\n")
	}

	enumNames := make([]string, 0, len(s.Enums))
	for name := range s.Enums {
		enumNames = append(enumNames, name)
	}
	sort.Strings(enumNames)
	for _, name := range enumNames {
		b.WriteString("enum ")
		b.WriteString(name)
		b.WriteString(" {\n")
		for _, m := range s.Enums[name] {
			b.WriteString("  ")
			b.WriteString(m)
			b.WriteString("\n")
		}
		b.WriteString("}\n\n")
	}

	for _, name := range s.order {
		renderType(&b, s.Types[name])
	}
	renderContainer(&b, s)

	return strings.TrimRight(b.String(), "\n") + "\n"
}

// ----- render helpers -----

func renderDescription(b *strings.Builder, desc string) {
	if desc == "" {
		return
	}
	b.WriteString("\"\"\"\n")
	b.WriteString(strings.ReplaceAll(desc, "\"", "\\\""))
	b.WriteString("\n\"\"\"\n")
}

func renderType(b *strings.Builder, t *StructuredType) {
	renderDescription(b, t.Description)
	b.WriteString("type ")
	b.WriteString(t.Name)
	if t.Kind == TypeKindComplex {
		b.WriteString(" @complex")
	}
	if t.BaseName != "" {
		b.WriteString(" @derives(from: ")
		b.WriteString(strconv.Quote(t.BaseName))
		b.WriteString(")")
	}
	if t.Abstract {
		b.WriteString(" @abstract")
	}
	if t.Open {
		b.WriteString(" @open(container: ")
		b.WriteString(strconv.Quote(t.DynamicContainer))
		b.WriteString(")")
	}
	if len(t.KeyNames) > 0 {
		quoted := make([]string, len(t.KeyNames))
		for i, k := range t.KeyNames {
			quoted[i] = strconv.Quote(k)
		}
		b.WriteString(" @key(fields: [")
		b.WriteString(strings.Join(quoted, ", "))
		b.WriteString("])")
	}
	b.WriteString(" {\n")

	concurrency := map[string]bool{}
	for _, c := range t.ConcurrencyNames {
		concurrency[c] = true
	}
	for _, p := range t.Properties {
		b.WriteString("  ")
		b.WriteString(p.Name)
		b.WriteString(": ")
		b.WriteString(renderTypeExpr(propertyTypeName(p), p.Collection, p.Nullable))
		if concurrency[p.Name] {
			b.WriteString(" @concurrency")
		}
		b.WriteString("\n")
	}
	for _, n := range t.Navigations {
		b.WriteString("  ")
		b.WriteString(n.Name)
		b.WriteString(": ")
		b.WriteString(renderTypeExpr(n.TargetName, n.Collection, n.Nullable))
		if n.PageSize > 0 {
			b.WriteString(" @navigation(pageSize: ")
			b.WriteString(strconv.Itoa(n.PageSize))
			b.WriteString(")")
		}
		b.WriteString("\n")
	}
	for _, op := range t.Operations {
		b.WriteString("  ")
		b.WriteString(op.Name)
		b.WriteString(": Boolean")
		if op.Kind == OperationKindAction {
			b.WriteString(" @action")
		} else {
			b.WriteString(" @function")
		}
		b.WriteString("\n")
	}
	b.WriteString("}\n\n")
}

func renderContainer(b *strings.Builder, s *Schema) {
	if len(s.EntitySets) == 0 {
		return
	}
	names := make([]string, 0, len(s.EntitySets))
	for name := range s.EntitySets {
		names = append(names, name)
	}
	sort.Strings(names)
	b.WriteString("type Container @container {\n")
	for _, name := range names {
		es := s.EntitySets[name]
		b.WriteString("  ")
		b.WriteString(es.Name)
		b.WriteString(": [")
		b.WriteString(es.TypeName)
		b.WriteString("]")
		paths := make([]string, 0, len(es.Bindings))
		for path := range es.Bindings {
			paths = append(paths, path)
		}
		sort.Strings(paths)
		for _, path := range paths {
			b.WriteString(" @bind(path: ")
			b.WriteString(strconv.Quote(path))
			b.WriteString(", target: ")
			b.WriteString(strconv.Quote(es.Bindings[path].Name))
			b.WriteString(")")
		}
		b.WriteString("\n")
	}
	b.WriteString("}\n\n")
}

func propertyTypeName(p *Property) string {
	if p.Kind == PropertyKindPrimitive {
		return sdlScalars[p.Primitive]
	}
	return p.TypeName
}

func renderTypeExpr(named string, collection, nullable bool) string {
	out := named
	if collection {
		out = "[" + out + "]"
	}
	if !nullable {
		out += "!"
	}
	return out
}
