package expr

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"

	"github.com/hanpama/selexp/internal/edm"
)

var binaryOps = map[string]BinaryOp{
	"==":  OpEq,
	"!=":  OpNe,
	"<":   OpLt,
	"<=":  OpLe,
	">":   OpGt,
	">=":  OpGe,
	"and": OpAnd,
	"&&":  OpAnd,
	"or":  OpOr,
	"||":  OpOr,
	"+":   OpAdd,
	"-":   OpSub,
	"*":   OpMul,
	"/":   OpDiv,
	"%":   OpMod,
}

var conversions = map[string]edm.PrimitiveKind{
	"int":      edm.PrimitiveInt64,
	"int32":    edm.PrimitiveInt32,
	"int64":    edm.PrimitiveInt64,
	"float":    edm.PrimitiveDouble,
	"double":   edm.PrimitiveDouble,
	"decimal":  edm.PrimitiveDecimal,
	"string":   edm.PrimitiveString,
	"bool":     edm.PrimitiveBoolean,
	"datetime": edm.PrimitiveDateTimeOffset,
}

var aggregateBuiltins = map[string]string{
	"sum":   "sum",
	"min":   "min",
	"max":   "max",
	"mean":  "average",
	"count": "count",
}

// Parse lowers expression source text into a Node tree. The text uses
// expr-lang syntax; bare identifiers are members of the current element:
//
//	Price * Quantity
//	Address.City == "Seoul" and not Archived
//	int(Score) + 1
//	sum(Orders, .Amount)
func Parse(input string) (Node, error) {
	tree, err := parser.Parse(input)
	if err != nil {
		return nil, &ExpressionError{Kind: KindSyntax, Node: input, Message: err.Error()}
	}
	return lower(tree.Node, false)
}

// ParseOrderBy lowers a comma-separated ordering such as "Name desc, Id".
func ParseOrderBy(input string) ([]OrderByItem, error) {
	var out []OrderByItem
	for _, part := range splitTopLevel(input) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		item := OrderByItem{}
		lowered := strings.ToLower(part)
		switch {
		case strings.HasSuffix(lowered, " desc"):
			item.Descending = true
			part = part[:len(part)-len(" desc")]
		case strings.HasSuffix(lowered, " asc"):
			part = part[:len(part)-len(" asc")]
		}
		node, err := Parse(part)
		if err != nil {
			return nil, err
		}
		item.Expr = node
		out = append(out, item)
	}
	return out, nil
}

// ParseCompute lowers "expr as Alias, ..." lists.
func ParseCompute(input string) ([]ComputeItem, error) {
	var out []ComputeItem
	for _, part := range splitTopLevel(input) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		i := strings.LastIndex(part, " as ")
		if i < 0 {
			return nil, &ExpressionError{Kind: KindSyntax, Node: part, Message: "compute item needs \"as Alias\""}
		}
		alias := strings.TrimSpace(part[i+len(" as "):])
		node, err := Parse(part[:i])
		if err != nil {
			return nil, err
		}
		out = append(out, ComputeItem{Alias: alias, Expr: node})
	}
	return out, nil
}

func splitTopLevel(input string) []string {
	var parts []string
	depth, start := 0, 0
	var quote rune
	for i, r := range input {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '(' || r == '[':
			depth++
		case r == ')' || r == ']':
			depth--
		case r == ',' && depth == 0:
			parts = append(parts, input[start:i])
			start = i + 1
		}
	}
	return append(parts, input[start:])
}

// lower converts an expr-lang node. Inside a predicate, pointer references
// (the "." and "#" forms) denote the collection element.
func lower(n ast.Node, inPredicate bool) (Node, error) {
	switch v := n.(type) {
	case *ast.NilNode:
		return Constant{}, nil
	case *ast.BoolNode:
		return Constant{Value: v.Value}, nil
	case *ast.IntegerNode:
		return Constant{Value: int64(v.Value)}, nil
	case *ast.FloatNode:
		return Constant{Value: v.Value}, nil
	case *ast.StringNode:
		return Constant{Value: v.Value}, nil
	case *ast.IdentifierNode:
		return &PropertyAccess{Source: It{}, Name: v.Value}, nil
	case *ast.PointerNode:
		if !inPredicate {
			return nil, &ExpressionError{Kind: KindSyntax, Node: "#", Message: "element reference outside a predicate"}
		}
		return It{}, nil
	case *ast.MemberNode:
		source, err := lower(v.Node, inPredicate)
		if err != nil {
			return nil, err
		}
		name, ok := v.Property.(*ast.StringNode)
		if !ok {
			return nil, &ExpressionError{Kind: KindUnsupportedNode, Node: "ComputedMember"}
		}
		return &PropertyAccess{Source: source, Name: name.Value}, nil
	case *ast.ChainNode:
		return lower(v.Node, inPredicate)
	case *ast.UnaryNode:
		operand, err := lower(v.Node, inPredicate)
		if err != nil {
			return nil, err
		}
		switch v.Operator {
		case "not", "!":
			return &Unary{Op: OpNot, Operand: operand}, nil
		case "-":
			return &Unary{Op: OpNegate, Operand: operand}, nil
		case "+":
			return operand, nil
		}
		return nil, &ExpressionError{Kind: KindUnsupportedNode, Node: "Unary(" + v.Operator + ")"}
	case *ast.BinaryNode:
		op, ok := binaryOps[v.Operator]
		if !ok {
			return nil, &ExpressionError{Kind: KindUnsupportedNode, Node: "Binary(" + v.Operator + ")"}
		}
		left, err := lower(v.Left, inPredicate)
		if err != nil {
			return nil, err
		}
		right, err := lower(v.Right, inPredicate)
		if err != nil {
			return nil, err
		}
		return &Binary{Op: op, Left: left, Right: right}, nil
	case *ast.BuiltinNode:
		return lowerCall(v.Name, v.Arguments, inPredicate)
	case *ast.CallNode:
		callee, ok := v.Callee.(*ast.IdentifierNode)
		if !ok {
			return nil, &ExpressionError{Kind: KindUnsupportedNode, Node: "Call"}
		}
		return lowerCall(callee.Value, v.Arguments, inPredicate)
	case *ast.PredicateNode:
		return lower(v.Node, true)
	default:
		return nil, &ExpressionError{Kind: KindUnsupportedNode, Node: fmt.Sprintf("%T", n)}
	}
}

func lowerCall(name string, arguments []ast.Node, inPredicate bool) (Node, error) {
	args := make([]Node, 0, len(arguments))
	for _, a := range arguments {
		arg, err := lower(a, inPredicate)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	if target, ok := conversions[name]; ok && len(args) == 1 {
		return &Convert{Operand: args[0], Target: target}, nil
	}
	if method, ok := aggregateBuiltins[name]; ok && len(args) >= 1 && len(args) <= 2 {
		agg := &Aggregate{Method: method, Source: args[0]}
		if len(args) == 2 {
			agg.Body = args[1]
		}
		return agg, nil
	}
	switch name {
	case "all", "any", "none", "one":
		l := &Lambda{Quantifier: name}
		if len(args) > 0 {
			l.Source = args[0]
		}
		if len(args) > 1 {
			l.Body = args[1]
		}
		return l, nil
	case "aggregate":
		// aggregate(Source, "method"[, body]) names a custom aggregation method.
		if len(args) >= 2 {
			if c, ok := args[1].(Constant); ok {
				if method, ok := c.Value.(string); ok {
					agg := &Aggregate{Method: method, Source: args[0]}
					if len(args) > 2 {
						agg.Body = args[2]
					}
					return agg, nil
				}
			}
		}
	}
	return &Call{Name: name, Args: args}, nil
}
