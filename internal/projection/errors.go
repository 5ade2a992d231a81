package projection

import (
	"errors"
	"fmt"

	"github.com/hanpama/selexp/internal/expr"
)

const (
	KindNullReference = "NullReference"
	KindTypeMismatch  = "TypeMismatch"
	KindAccessor      = "Accessor"
	KindExpression    = "Expression"
)

// ProjectionError reports a failure while projecting an instance. Path
// locates the failing value, e.g. "Orders[2]/Customer".
type ProjectionError struct {
	Kind string
	Path string
	Err  error
}

func (e *ProjectionError) Error() string {
	path := e.Path
	if path == "" {
		path = "$"
	}
	if e.Err == nil {
		return fmt.Sprintf("%s at %s", e.Kind, path)
	}
	return fmt.Sprintf("%s at %s: %v", e.Kind, path, e.Err)
}

func (e *ProjectionError) Unwrap() error { return e.Err }

// expressionFailure wraps an evaluation error, keeping NullReference
// distinguishable from other expression failures.
func expressionFailure(path string, err error) error {
	var pe *ProjectionError
	if errors.As(err, &pe) {
		return err
	}
	kind := KindExpression
	var ee *expr.ExpressionError
	if errors.As(err, &ee) && ee.Kind == expr.KindNullReference {
		kind = KindNullReference
	}
	return &ProjectionError{Kind: kind, Path: path, Err: err}
}

func joinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}

func indexPath(parent string, i int) string {
	return fmt.Sprintf("%s[%d]", parent, i)
}
