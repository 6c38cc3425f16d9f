// Package codec serializes typed values into the opaque bytes kept by a store chain.
//
// Key Components:
//
//   - IValueCodec: the interface of all codecs (json, gob). Codecs are stateless and safe for
//     concurrent use.
//
//   - Marshal / Unmarshal: generic helpers that encode a T. Primitive values (bool, numbers,
//     strings) are wrapped in a one-field record {"val": v}, structs, maps and slices are
//     encoded as they are.
//
//   - DecodeError: returned when bytes do not decode into the requested type. It matches
//     errors.Is(err, ErrDecode).
//
// Usage:
//
//	c := codec.NewJSONCodec()
//	b, err := codec.Marshal(c, 42)          // {"val":42}
//	n, err := codec.Unmarshal[int](c, b)    // 42
package codec
