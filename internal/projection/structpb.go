package projection

import (
	"encoding/base64"
	"fmt"
	"reflect"
	"time"

	"google.golang.org/protobuf/types/known/structpb"
)

// ToStruct renders the view as a google.protobuf.Struct. Timestamps become
// RFC 3339 strings and byte slices base64 strings.
func (v *View) ToStruct() (*structpb.Struct, error) {
	m, err := v.ToMap()
	if err != nil {
		return nil, err
	}
	normalized, err := normalize(m)
	if err != nil {
		return nil, err
	}
	return structpb.NewStruct(normalized.(map[string]any))
}

// normalize converts values into the set structpb.NewValue accepts.
func normalize(value any) (any, error) {
	switch x := value.(type) {
	case nil, bool, string, int, int32, int64, uint, uint32, uint64, float32, float64:
		return x, nil
	case []byte:
		return base64.StdEncoding.EncodeToString(x), nil
	case time.Time:
		return x.Format(time.RFC3339Nano), nil
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			n, err := normalize(item)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = n
		}
		return out, nil
	case fmt.Stringer:
		return x.String(), nil
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			n, err := normalize(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case reflect.Int8, reflect.Int16:
		return rv.Int(), nil
	case reflect.Uint8, reflect.Uint16:
		return rv.Uint(), nil
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			n, err := normalize(iter.Value().Interface())
			if err != nil {
				return nil, err
			}
			out[fmt.Sprint(iter.Key().Interface())] = n
		}
		return out, nil
	}
	return nil, fmt.Errorf("cannot represent %T as a protobuf value", value)
}
