package expr

import "fmt"

// Error kinds reported by ExpressionError.
const (
	KindUnsupportedNode       = "UnsupportedNode"
	KindUnresolvableAggregate = "UnresolvableAggregate"
	KindUnsupportedConversion = "UnsupportedConversion"
	KindTypeMismatch          = "TypeMismatch"
	KindNullReference         = "NullReference"
	KindDuplicateAlias        = "DuplicateAlias"
	KindSyntax                = "Syntax"
)

// ExpressionError reports an expression that cannot be bound or evaluated.
// Node names the offending node kind or a rendering of it.
type ExpressionError struct {
	Kind    string
	Node    string
	Message string
}

func (e *ExpressionError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Node, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Node)
}

func unsupported(n Node) error {
	return &ExpressionError{Kind: KindUnsupportedNode, Node: n.NodeKind()}
}
