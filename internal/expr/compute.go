package expr

import (
	"github.com/hanpama/selexp/internal/edm"
)

// ComputeSet holds bound compute items of one nesting level.
type ComputeSet struct {
	evals map[string]Evaluator
}

// BindCompute binds items against t. Aliases must be
// unique and must not shadow a declared member of t.
func (b *Binder) BindCompute(t *edm.StructuredType, items []ComputeItem) (*ComputeSet, error) {
	set := &ComputeSet{evals: make(map[string]Evaluator, len(items))}
	for _, item := range items {
		if _, dup := set.evals[item.Alias]; dup {
			return nil, &ExpressionError{Kind: KindDuplicateAlias, Node: item.Alias}
		}
		if t.FindProperty(item.Alias) != nil || t.FindNavigation(item.Alias) != nil {
			return nil, &ExpressionError{Kind: KindDuplicateAlias, Node: item.Alias, Message: "shadows a declared property of " + t.Name}
		}
		eval, err := b.Bind(t, item.Expr)
		if err != nil {
			return nil, err
		}
		set.evals[item.Alias] = eval
	}
	return set, nil
}

// Eval evaluates alias against instance.
func (s *ComputeSet) Eval(alias string, instance any) (any, error) {
	return s.evals[alias](instance)
}

// Aliases returns the aliases of items in order.
func Aliases(items []ComputeItem) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.Alias
	}
	return out
}
