package codec

import (
	"reflect"
)

// envelope wraps primitive values, a bare primitive cannot be told apart from other types
// once it is encoded
type envelope[T any] struct {
	Val T `json:"val"`
}

// Marshal encodes v with c. Primitive values (bool, numbers, strings) are wrapped
// in {"val": v} first.
func Marshal[T any](c IValueCodec, v T) ([]byte, error) {
	if IsPrimitive[T]() {
		return c.Encode(envelope[T]{Val: v})
	}
	return c.Encode(v)
}

// Unmarshal decodes b into a T with c, unwrapping primitive values.
// Failures are returned as *DecodeError.
func Unmarshal[T any](c IValueCodec, b []byte) (T, error) {
	if IsPrimitive[T]() {
		var env envelope[T]
		if err := c.Decode(b, &env); err != nil {
			var zero T
			return zero, &DecodeError{Type: typeName[T](), Err: err}
		}
		return env.Val, nil
	}

	var v T
	if err := c.Decode(b, &v); err != nil {
		var zero T
		return zero, &DecodeError{Type: typeName[T](), Err: err}
	}
	return v, nil
}

// IsPrimitive reports whether values of type T are wrapped in an envelope.
func IsPrimitive[T any]() bool {
	t := reflect.TypeOf((*T)(nil)).Elem()
	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

func typeName[T any]() string {
	return reflect.TypeOf((*T)(nil)).Elem().String()
}
