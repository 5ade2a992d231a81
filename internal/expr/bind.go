package expr

import (
	"fmt"
	"iter"
	"reflect"
	"strings"

	"github.com/hanpama/selexp/internal/edm"
)

// Reader reads member values from instances. It is the subset of the
// projection accessor that expressions need.
type Reader interface {
	Property(instance any, name string) (any, bool)
	Navigate(instance any, nav *edm.NavigationProperty) (any, error)
	Dynamic(instance any, t *edm.StructuredType) (map[string]any, bool)
}

// Evaluator computes a value for one current element.
type Evaluator func(instance any) (any, error)

// Binder binds expression trees against structured types.
type Binder struct {
	schema          *edm.Schema
	reader          Reader
	nullPropagation bool
}

// NewBinder returns a binder. With nullPropagation, a null operand anywhere
// in a member chain or arithmetic yields null; without it evaluation fails
// with a NullReference error.
func NewBinder(schema *edm.Schema, reader Reader, nullPropagation bool) *Binder {
	return &Binder{schema: schema, reader: reader, nullPropagation: nullPropagation}
}

// static describes the value an expression produces, as far as it is known
// at bind time.
type static struct {
	structured *edm.StructuredType
	collection bool
	primitive  edm.PrimitiveKind
}

// Bind binds n with It typed as t.
func (b *Binder) Bind(t *edm.StructuredType, n Node) (Evaluator, error) {
	eval, _, err := b.bind(static{structured: t}, n)
	return eval, err
}

func (b *Binder) bind(it static, n Node) (Evaluator, static, error) {
	switch v := n.(type) {
	case nil:
		return nil, static{}, &ExpressionError{Kind: KindUnsupportedNode, Node: "<nil>"}
	case It:
		return func(instance any) (any, error) { return instance, nil }, it, nil
	case Constant:
		value := v.Value
		return func(any) (any, error) { return value, nil }, static{primitive: primitiveOf(value)}, nil
	case *PropertyAccess:
		return b.bindProperty(it, v)
	case *DynamicAccess:
		src, st, err := b.bind(it, v.Source)
		if err != nil {
			return nil, static{}, err
		}
		if st.structured == nil || st.collection {
			return nil, static{}, &ExpressionError{Kind: KindTypeMismatch, Node: String(v), Message: "dynamic access requires a single structured value"}
		}
		return b.dynamic(src, st.structured, v.Name, String(v)), static{}, nil
	case *Binary:
		return b.bindBinary(it, v)
	case *Unary:
		return b.bindUnary(it, v)
	case *Convert:
		return b.bindConvert(it, v)
	case *Aggregate:
		return b.bindAggregate(it, v)
	default:
		return nil, static{}, unsupported(n)
	}
}

func (b *Binder) bindProperty(it static, v *PropertyAccess) (Evaluator, static, error) {
	src, st, err := b.bind(it, v.Source)
	if err != nil {
		return nil, static{}, err
	}
	if st.structured == nil {
		return nil, static{}, &ExpressionError{Kind: KindTypeMismatch, Node: String(v), Message: "member access on a non-structured value"}
	}
	if st.collection {
		return nil, static{}, &ExpressionError{Kind: KindTypeMismatch, Node: String(v), Message: "member access on a collection"}
	}
	t := st.structured
	rendered := String(v)

	if p := t.FindProperty(v.Name); p != nil {
		name := p.Name
		eval := func(instance any) (any, error) {
			parent, err := src(instance)
			if err != nil {
				return nil, err
			}
			if parent == nil {
				return b.null(rendered)
			}
			value, _ := b.reader.Property(parent, name)
			return value, nil
		}
		out := static{structured: p.Complex, collection: p.Collection}
		if p.Kind == edm.PropertyKindPrimitive {
			out.primitive = p.Primitive
		}
		return eval, out, nil
	}

	if nav := t.FindNavigation(v.Name); nav != nil {
		eval := func(instance any) (any, error) {
			parent, err := src(instance)
			if err != nil {
				return nil, err
			}
			if parent == nil {
				return b.null(rendered)
			}
			target, err := b.reader.Navigate(parent, nav)
			if err != nil {
				return nil, err
			}
			if nav.Collection {
				return Materialize(target), nil
			}
			return target, nil
		}
		return eval, static{structured: nav.Target, collection: nav.Collection}, nil
	}

	if t.IsOpen() {
		return b.dynamic(src, t, v.Name, rendered), static{}, nil
	}
	return nil, static{}, &edm.SchemaMappingError{Type: t.Name, Property: v.Name}
}

// dynamic reads name from the dynamic container of the value produced by
// src. A missing container or key yields nil.
func (b *Binder) dynamic(src Evaluator, t *edm.StructuredType, name, rendered string) Evaluator {
	return func(instance any) (any, error) {
		parent, err := src(instance)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			return b.null(rendered)
		}
		bag, ok := b.reader.Dynamic(parent, t)
		if !ok {
			return nil, nil
		}
		value, ok := bag[name]
		if !ok {
			return nil, nil
		}
		return value, nil
	}
}

func (b *Binder) null(rendered string) (any, error) {
	if b.nullPropagation {
		return nil, nil
	}
	return nil, &ExpressionError{Kind: KindNullReference, Node: rendered}
}

func (b *Binder) bindBinary(it static, v *Binary) (Evaluator, static, error) {
	left, ls, err := b.bind(it, v.Left)
	if err != nil {
		return nil, static{}, err
	}
	right, rs, err := b.bind(it, v.Right)
	if err != nil {
		return nil, static{}, err
	}
	if ls.collection || rs.collection {
		return nil, static{}, &ExpressionError{Kind: KindTypeMismatch, Node: String(v), Message: "collection operand"}
	}
	rendered := String(v)
	op := v.Op

	switch op {
	case OpAnd, OpOr:
		eval := func(instance any) (any, error) {
			l, err := left(instance)
			if err != nil {
				return nil, err
			}
			// Short-circuit on the deciding value before reading the right side.
			if lb, ok := l.(bool); ok && lb == (op == OpOr) {
				return lb, nil
			}
			r, err := right(instance)
			if err != nil {
				return nil, err
			}
			return kleene(op, l, r, rendered)
		}
		return eval, static{primitive: edm.PrimitiveBoolean}, nil
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		eval := func(instance any) (any, error) {
			l, err := left(instance)
			if err != nil {
				return nil, err
			}
			r, err := right(instance)
			if err != nil {
				return nil, err
			}
			return b.compare(op, l, r, rendered)
		}
		return eval, static{primitive: edm.PrimitiveBoolean}, nil
	case OpAdd, OpSub, OpMul, OpDiv, OpMod:
		eval := func(instance any) (any, error) {
			l, err := left(instance)
			if err != nil {
				return nil, err
			}
			r, err := right(instance)
			if err != nil {
				return nil, err
			}
			if l == nil || r == nil {
				return b.null(rendered)
			}
			return arithmetic(op, l, r, rendered)
		}
		return eval, static{primitive: widen(ls.primitive, rs.primitive)}, nil
	default:
		return nil, static{}, &ExpressionError{Kind: KindUnsupportedNode, Node: "Binary(" + string(op) + ")"}
	}
}

func (b *Binder) compare(op BinaryOp, l, r any, rendered string) (any, error) {
	switch op {
	case OpEq:
		return Equal(l, r), nil
	case OpNe:
		return !Equal(l, r), nil
	}
	if l == nil || r == nil {
		if b.nullPropagation {
			return false, nil
		}
		return nil, &ExpressionError{Kind: KindNullReference, Node: rendered}
	}
	c, ok := Compare(l, r)
	if !ok {
		return nil, &ExpressionError{Kind: KindTypeMismatch, Node: rendered, Message: fmt.Sprintf("cannot order %T and %T", l, r)}
	}
	switch op {
	case OpLt:
		return c < 0, nil
	case OpLe:
		return c <= 0, nil
	case OpGt:
		return c > 0, nil
	default:
		return c >= 0, nil
	}
}

// kleene applies three-valued and/or: nil is unknown.
func kleene(op BinaryOp, l, r any, rendered string) (any, error) {
	lb, lok := l.(bool)
	rb, rok := r.(bool)
	if (l != nil && !lok) || (r != nil && !rok) {
		return nil, &ExpressionError{Kind: KindTypeMismatch, Node: rendered, Message: "logical operand is not boolean"}
	}
	if op == OpAnd {
		if (lok && !lb) || (rok && !rb) {
			return false, nil
		}
		if lok && rok {
			return true, nil
		}
		return nil, nil
	}
	if (lok && lb) || (rok && rb) {
		return true, nil
	}
	if lok && rok {
		return false, nil
	}
	return nil, nil
}

func (b *Binder) bindUnary(it static, v *Unary) (Evaluator, static, error) {
	operand, st, err := b.bind(it, v.Operand)
	if err != nil {
		return nil, static{}, err
	}
	rendered := String(v)
	switch v.Op {
	case OpNot:
		return func(instance any) (any, error) {
			x, err := operand(instance)
			if err != nil || x == nil {
				return nil, err
			}
			xb, ok := x.(bool)
			if !ok {
				return nil, &ExpressionError{Kind: KindTypeMismatch, Node: rendered, Message: "not of a non-boolean"}
			}
			return !xb, nil
		}, static{primitive: edm.PrimitiveBoolean}, nil
	case OpNegate:
		return func(instance any) (any, error) {
			x, err := operand(instance)
			if err != nil {
				return nil, err
			}
			if x == nil {
				return b.null(rendered)
			}
			return arithmetic(OpSub, int64(0), x, rendered)
		}, st, nil
	default:
		return nil, static{}, &ExpressionError{Kind: KindUnsupportedNode, Node: "Unary(" + string(v.Op) + ")"}
	}
}

func (b *Binder) bindConvert(it static, v *Convert) (Evaluator, static, error) {
	operand, st, err := b.bind(it, v.Operand)
	if err != nil {
		return nil, static{}, err
	}
	if st.structured != nil || st.collection {
		return nil, static{}, &ExpressionError{Kind: KindUnsupportedConversion, Node: String(v), Message: "structured operand"}
	}
	target := v.Target
	if _, ok := converters[target]; !ok {
		return nil, static{}, &ExpressionError{Kind: KindUnsupportedConversion, Node: String(v), Message: "target " + string(target)}
	}
	rendered := String(v)
	return func(instance any) (any, error) {
		x, err := operand(instance)
		if err != nil || x == nil {
			return nil, err
		}
		return convert(x, target, rendered)
	}, static{primitive: target}, nil
}

var aggregateMethods = map[string]bool{
	"sum": true, "min": true, "max": true, "average": true, "countdistinct": true, "count": true,
}

func (b *Binder) bindAggregate(it static, v *Aggregate) (Evaluator, static, error) {
	method := strings.ToLower(v.Method)
	if !aggregateMethods[method] {
		return nil, static{}, &ExpressionError{Kind: KindUnresolvableAggregate, Node: v.Method}
	}
	src, st, err := b.bind(it, v.Source)
	if err != nil {
		return nil, static{}, err
	}
	if !st.collection {
		return nil, static{}, &ExpressionError{Kind: KindTypeMismatch, Node: String(v), Message: "aggregate over a single value"}
	}
	var body Evaluator = func(element any) (any, error) { return element, nil }
	if v.Body != nil {
		elem := static{structured: st.structured, primitive: st.primitive}
		body, _, err = b.bind(elem, v.Body)
		if err != nil {
			return nil, static{}, err
		}
	}
	rendered := String(v)
	return func(instance any) (any, error) {
		raw, err := src(instance)
		if err != nil {
			return nil, err
		}
		if raw == nil {
			return b.null(rendered)
		}
		var values []any
		for _, element := range Materialize(raw) {
			x, err := body(element)
			if err != nil {
				return nil, err
			}
			if x != nil {
				values = append(values, x)
			}
		}
		return aggregate(method, values, rendered)
	}, static{}, nil
}

// Materialize flattens a navigation or collection value into a slice.
func Materialize(v any) []any {
	switch c := v.(type) {
	case nil:
		return nil
	case []any:
		return c
	case iter.Seq[any]:
		var out []any
		for x := range c {
			out = append(out, x)
		}
		return out
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return []any{v}
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}
