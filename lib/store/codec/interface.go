package codec

import (
	"errors"
	"fmt"
	"strings"
)

// IValueCodec is the interface for all value codecs
type IValueCodec interface {
	// Encode serializes v into a byte array
	Encode(v any) ([]byte, error)
	// Decode deserializes b into the value pointed to by v
	Decode(b []byte, v any) error
	// Name returns the name of the codec (as used by ByName)
	Name() string
}

// ByName returns the codec with the given name ("json" or "gob").
func ByName(name string) (IValueCodec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return NewJSONCodec(), nil
	case "gob":
		return NewGOBCodec(), nil
	default:
		return nil, fmt.Errorf("unknown codec %q (supported: json, gob)", name)
	}
}

// ErrDecode matches (errors.Is) every DecodeError
var ErrDecode = errors.New("value cannot be decoded")

// DecodeError is returned when stored bytes cannot be decoded into the requested type.
// It is a permanent data failure, retrying does not help.
type DecodeError struct {
	Type string // requested Go type
	Err  error  // cause reported by the codec
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode value as %s: %v", e.Type, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrDecode.
func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}
