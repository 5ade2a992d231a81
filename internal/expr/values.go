package expr

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/hanpama/selexp/internal/edm"
)

func primitiveOf(v any) edm.PrimitiveKind {
	switch v.(type) {
	case string:
		return edm.PrimitiveString
	case bool:
		return edm.PrimitiveBoolean
	case int32:
		return edm.PrimitiveInt32
	case int, int64:
		return edm.PrimitiveInt64
	case float32, float64:
		return edm.PrimitiveDouble
	case time.Time:
		return edm.PrimitiveDateTimeOffset
	default:
		return ""
	}
}

func widen(a, b edm.PrimitiveKind) edm.PrimitiveKind {
	if a == edm.PrimitiveDouble || b == edm.PrimitiveDouble || a == edm.PrimitiveDecimal || b == edm.PrimitiveDecimal {
		return edm.PrimitiveDouble
	}
	if a == "" {
		return b
	}
	return a
}

// number normalises numeric values. isInt reports whether the value is
// integral and held exactly in i.
func number(v any) (i int64, f float64, isInt bool, ok bool) {
	switch n := v.(type) {
	case int:
		return int64(n), float64(n), true, true
	case int8:
		return int64(n), float64(n), true, true
	case int16:
		return int64(n), float64(n), true, true
	case int32:
		return int64(n), float64(n), true, true
	case int64:
		return n, float64(n), true, true
	case uint:
		return int64(n), float64(n), true, true
	case uint8:
		return int64(n), float64(n), true, true
	case uint16:
		return int64(n), float64(n), true, true
	case uint32:
		return int64(n), float64(n), true, true
	case uint64:
		return int64(n), float64(n), true, true
	case float32:
		return 0, float64(n), false, true
	case float64:
		return 0, n, false, true
	case json.Number:
		if x, err := n.Int64(); err == nil {
			return x, float64(x), true, true
		}
		if x, err := n.Float64(); err == nil {
			return 0, x, false, true
		}
	}
	return 0, 0, false, false
}

// Equal compares two values with numeric widening. Two nils are equal.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if c, ok := Compare(a, b); ok {
		return c == 0
	}
	return reflect.DeepEqual(a, b)
}

// Compare orders two non-nil values of compatible kinds.
func Compare(a, b any) (int, bool) {
	ai, af, aInt, aok := number(a)
	bi, bf, bInt, bok := number(b)
	if aok && bok {
		if aInt && bInt {
			return cmpOrdered(ai, bi), true
		}
		return cmpOrdered(af, bf), true
	}
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y), true
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0, true
			case !x:
				return -1, true
			default:
				return 1, true
			}
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y), true
		}
	}
	return 0, false
}

func cmpOrdered[T int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func arithmetic(op BinaryOp, l, r any, rendered string) (any, error) {
	li, lf, lInt, lok := number(l)
	ri, rf, rInt, rok := number(r)
	if !lok || !rok {
		if op == OpAdd {
			if ls, ok := l.(string); ok {
				if rs, ok := r.(string); ok {
					return ls + rs, nil
				}
			}
		}
		return nil, &ExpressionError{Kind: KindTypeMismatch, Node: rendered, Message: fmt.Sprintf("arithmetic on %T and %T", l, r)}
	}
	if lInt && rInt {
		switch op {
		case OpAdd:
			return li + ri, nil
		case OpSub:
			return li - ri, nil
		case OpMul:
			return li * ri, nil
		case OpDiv, OpMod:
			if ri == 0 {
				return nil, &ExpressionError{Kind: KindTypeMismatch, Node: rendered, Message: "division by zero"}
			}
			if op == OpDiv {
				return li / ri, nil
			}
			return li % ri, nil
		}
	}
	switch op {
	case OpAdd:
		return lf + rf, nil
	case OpSub:
		return lf - rf, nil
	case OpMul:
		return lf * rf, nil
	case OpDiv:
		return lf / rf, nil
	default:
		return math.Mod(lf, rf), nil
	}
}

var converters = map[edm.PrimitiveKind]func(any) (any, bool){
	edm.PrimitiveString: func(v any) (any, bool) {
		switch x := v.(type) {
		case string:
			return x, true
		case time.Time:
			return x.Format(time.RFC3339Nano), true
		}
		return fmt.Sprint(v), true
	},
	edm.PrimitiveBoolean: func(v any) (any, bool) {
		switch x := v.(type) {
		case bool:
			return x, true
		case string:
			b, err := strconv.ParseBool(x)
			return b, err == nil
		}
		return nil, false
	},
	edm.PrimitiveInt32: func(v any) (any, bool) {
		i, ok := toInt(v)
		if !ok || i < math.MinInt32 || i > math.MaxInt32 {
			return nil, false
		}
		return int32(i), true
	},
	edm.PrimitiveInt64: func(v any) (any, bool) {
		i, ok := toInt(v)
		if !ok {
			return nil, false
		}
		return i, true
	},
	edm.PrimitiveDouble:  toFloat,
	edm.PrimitiveDecimal: toFloat,
	edm.PrimitiveDateTimeOffset: func(v any) (any, bool) {
		switch x := v.(type) {
		case time.Time:
			return x, true
		case string:
			t, err := time.Parse(time.RFC3339Nano, x)
			return t, err == nil
		}
		return nil, false
	},
}

func toInt(v any) (int64, bool) {
	if s, ok := v.(string); ok {
		i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		return i, err == nil
	}
	i, f, isInt, ok := number(v)
	if !ok {
		return 0, false
	}
	if isInt {
		return i, true
	}
	return int64(math.Trunc(f)), true
}

func toFloat(v any) (any, bool) {
	if s, ok := v.(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return f, err == nil
	}
	_, f, _, ok := number(v)
	return f, ok
}

func convert(v any, target edm.PrimitiveKind, rendered string) (any, error) {
	out, ok := converters[target](v)
	if !ok {
		return nil, &ExpressionError{Kind: KindUnsupportedConversion, Node: rendered, Message: fmt.Sprintf("%T to %s", v, target)}
	}
	return out, nil
}

func aggregate(method string, values []any, rendered string) (any, error) {
	switch method {
	case "count":
		return int64(len(values)), nil
	case "countdistinct":
		var distinct []any
		for _, v := range values {
			seen := false
			for _, d := range distinct {
				if Equal(v, d) {
					seen = true
					break
				}
			}
			if !seen {
				distinct = append(distinct, v)
			}
		}
		return int64(len(distinct)), nil
	}
	if len(values) == 0 {
		return nil, nil
	}
	switch method {
	case "min", "max":
		best := values[0]
		for _, v := range values[1:] {
			c, ok := Compare(v, best)
			if !ok {
				return nil, &ExpressionError{Kind: KindTypeMismatch, Node: rendered, Message: fmt.Sprintf("cannot order %T and %T", v, best)}
			}
			if (method == "min" && c < 0) || (method == "max" && c > 0) {
				best = v
			}
		}
		return best, nil
	default:
		var sum any = int64(0)
		for _, v := range values {
			next, err := arithmetic(OpAdd, sum, v, rendered)
			if err != nil {
				return nil, err
			}
			sum = next
		}
		if method == "sum" {
			return sum, nil
		}
		_, f, _, _ := number(sum)
		return f / float64(len(values)), nil
	}
}
