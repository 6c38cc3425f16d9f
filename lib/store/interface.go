package store

import (
	"context"
	"fmt"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("store")

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// IStore is the uniform contract implemented by every layer of a store chain.
// Leaves persist values themselves, decorators delegate to exactly one fallback store
// beneath them. Absence is always reported through the found/existed flags and never
// inferred from the value.
//
// All methods are safe for concurrent use unless an implementation documents otherwise.
type IStore interface {
	// Get returns the value for a key. If this layer does not hold the key, the fallback chain
	// is consulted and a value found there is cached in this layer before it is returned.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	// Set stores the value in this layer and in the fallback chain. It returns the value that
	// occupied the key before the write. The own prior value of a layer wins over the one
	// reported by the fallback.
	Set(ctx context.Context, key string, value []byte) (old []byte, existed bool, err error)
	// Remove deletes the key in this layer and in the fallback chain. It returns true if the
	// key was removed anywhere in the chain.
	Remove(ctx context.Context, key string) (removed bool, err error)
	// RemoveAll clears this layer and every fallback.
	RemoveAll(ctx context.Context) (err error)
	// ContainsKey returns true if the key exists in this layer or anywhere in the fallback chain.
	ContainsKey(ctx context.Context, key string) (ok bool, err error)
	// ListKeys returns the sorted union of the keys of this layer and the fallback chain.
	ListKeys(ctx context.Context) (keys []string, err error)
	// Fallback returns the store beneath this one (nil if there is none).
	Fallback() IStore
	// SetFallback replaces the store beneath this one. Only meant to be used while assembling a chain.
	SetFallback(fallback IStore)
	// Close releases all resources held by the store and closes the fallback chain.
	// Calling Close more than once is a no-op.
	Close() (err error)
}

// ErrorHandler is the callback used by layers that absorb or retry errors.
// Hosting code can route failures to its own logging or telemetry through it.
type ErrorHandler func(err error)

// LogErrors is the default ErrorHandler, it writes every error to the store logger.
func LogErrors(err error) {
	log.Errorf("store error: %v", err)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("StoreError (code %s): %s", e.Code, e.Msg)
}

// Is reports whether target is a *Error with the same code.
// This allows errors.Is(err, store.ErrUnsupported) for any unsupported operation error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewError creates a new StoreError with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// Unsupported creates an unsupported operation error for the given operation name.
func Unsupported(op string) *Error {
	return NewError(RetCUnsupportedOperation, fmt.Sprintf("%s operation is not supported", op))
}

var (
	// ErrUnsupported matches (errors.Is) every error with code RetCUnsupportedOperation.
	ErrUnsupported = NewError(RetCUnsupportedOperation, "unsupported operation")
	// ErrClosed is returned by stores that are used after Close.
	ErrClosed = NewError(RetCInvalidOperation, "store is closed")
)

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by underlying database.
	RetCInvalidOperation                    // 3: Invalid operation.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCInvalidOperation:
		return "InvalidOperation"
	default:
		return "Unknown"
	}
}
