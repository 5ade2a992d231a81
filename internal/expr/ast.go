package expr

import (
	"fmt"
	"strings"

	"github.com/hanpama/selexp/internal/edm"
)

// Node is a bound-expression tree node. Every expression is evaluated against
// a single current element, referenced by It.
type Node interface {
	NodeKind() string
}

// BinaryOp enumerates binary operators.
type BinaryOp string

const (
	OpEq  BinaryOp = "eq"
	OpNe  BinaryOp = "ne"
	OpLt  BinaryOp = "lt"
	OpLe  BinaryOp = "le"
	OpGt  BinaryOp = "gt"
	OpGe  BinaryOp = "ge"
	OpAnd BinaryOp = "and"
	OpOr  BinaryOp = "or"
	OpAdd BinaryOp = "add"
	OpSub BinaryOp = "sub"
	OpMul BinaryOp = "mul"
	OpDiv BinaryOp = "div"
	OpMod BinaryOp = "mod"
)

// UnaryOp enumerates unary operators.
type UnaryOp string

const (
	OpNot    UnaryOp = "not"
	OpNegate UnaryOp = "negate"
)

// It is the current element placeholder.
type It struct{}

// Constant is a literal value.
type Constant struct {
	Value any
}

// PropertyAccess reads a declared structural or navigation property of
// Source. On open types an undeclared name is read as a dynamic property.
type PropertyAccess struct {
	Source Node
	Name   string
}

// DynamicAccess reads an entry of Source's dynamic property container.
// A missing key yields null.
type DynamicAccess struct {
	Source Node
	Name   string
}

type Binary struct {
	Op    BinaryOp
	Left  Node
	Right Node
}

type Unary struct {
	Op      UnaryOp
	Operand Node
}

// Convert converts Operand to a primitive kind.
type Convert struct {
	Operand Node
	Target  edm.PrimitiveKind
}

// Call is a function call. No functions are bound; the node exists so that
// producers can express it and receive a precise error.
type Call struct {
	Name string
	Args []Node
}

// Lambda is an any/all predicate over a collection. Not bound.
type Lambda struct {
	Quantifier string
	Source     Node
	Body       Node
}

// Aggregate reduces a collection-valued Source. Body, when set, is evaluated
// against each element; otherwise the element itself is aggregated.
type Aggregate struct {
	Method string
	Source Node
	Body   Node
}

// ComputeItem names an expression so it can be selected like a property.
type ComputeItem struct {
	Alias string
	Expr  Node
}

// OrderByItem is one ordering key.
type OrderByItem struct {
	Expr       Node
	Descending bool
}

func (It) NodeKind() string              { return "It" }
func (Constant) NodeKind() string        { return "Constant" }
func (*PropertyAccess) NodeKind() string { return "PropertyAccess" }
func (*DynamicAccess) NodeKind() string  { return "DynamicAccess" }
func (*Binary) NodeKind() string         { return "Binary" }
func (*Unary) NodeKind() string          { return "Unary" }
func (*Convert) NodeKind() string        { return "Convert" }
func (*Call) NodeKind() string           { return "Call" }
func (*Lambda) NodeKind() string         { return "Lambda" }
func (*Aggregate) NodeKind() string      { return "Aggregate" }

// Prop is shorthand for a property read on the current element.
func Prop(names ...string) Node {
	var n Node = It{}
	for _, name := range names {
		n = &PropertyAccess{Source: n, Name: name}
	}
	return n
}

// Const wraps a literal.
func Const(v any) Node { return Constant{Value: v} }

// Bin builds a binary node.
func Bin(op BinaryOp, left, right Node) Node { return &Binary{Op: op, Left: left, Right: right} }

// String renders n in a compact prefix form for errors and logs.
func String(n Node) string {
	switch v := n.(type) {
	case nil:
		return "<nil>"
	case It:
		return "$it"
	case Constant:
		if s, ok := v.Value.(string); ok {
			return fmt.Sprintf("%q", s)
		}
		return fmt.Sprint(v.Value)
	case *PropertyAccess:
		return String(v.Source) + "/" + v.Name
	case *DynamicAccess:
		return String(v.Source) + "/" + v.Name + "?"
	case *Binary:
		return "(" + String(v.Left) + " " + string(v.Op) + " " + String(v.Right) + ")"
	case *Unary:
		return string(v.Op) + "(" + String(v.Operand) + ")"
	case *Convert:
		return "cast(" + String(v.Operand) + ", " + string(v.Target) + ")"
	case *Call:
		args := make([]string, len(v.Args))
		for i, a := range v.Args {
			args[i] = String(a)
		}
		return v.Name + "(" + strings.Join(args, ", ") + ")"
	case *Lambda:
		return String(v.Source) + "/" + v.Quantifier + "(" + String(v.Body) + ")"
	case *Aggregate:
		return v.Method + "(" + String(v.Source) + ")"
	default:
		return n.NodeKind()
	}
}
