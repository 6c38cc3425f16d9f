package retrystore

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/stacKV/lib/store"
	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-multierror"
	"math"
	"time"
)

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

const (
	defaultMaxAttempts  = 3
	defaultInitialDelay = 100 * time.Millisecond
	defaultMultiplier   = 2.0
	jitterFactor        = 0.5
)

// Options configures the retry behavior
type Options struct {
	// MaxAttempts is the total number of attempts per operation (0 = 3)
	MaxAttempts int
	// InitialDelay is the wait time after the first failed attempt (0 = 100ms)
	InitialDelay time.Duration
	// Multiplier grows the delay after every failed attempt (0 = 2)
	Multiplier float64
	// MaxDelay caps the delay between two attempts (0 = no cap)
	MaxDelay time.Duration
	// Jitter randomizes every delay by +-50%
	Jitter bool
	// OnError is called for every failed attempt (nil = store.LogErrors)
	OnError store.ErrorHandler
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = defaultMaxAttempts
	}
	if o.InitialDelay <= 0 {
		o.InitialDelay = defaultInitialDelay
	}
	if o.Multiplier <= 0 {
		o.Multiplier = defaultMultiplier
	}
	if o.OnError == nil {
		o.OnError = store.LogErrors
	}
	return o
}

// --------------------------------------------------------------------------
// Errors
// --------------------------------------------------------------------------

// ErrRetriesExhausted matches (errors.Is) every ExhaustedError
var ErrRetriesExhausted = errors.New("retries exhausted")

// ExhaustedError is returned when every attempt of an operation failed.
// errors.Is matches ErrRetriesExhausted and the cause of the last attempt.
type ExhaustedError struct {
	Op       string
	Attempts int
	// Errors holds the error of every attempt in order
	Errors *multierror.Error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Op, e.Attempts, e.Last())
}

// Last returns the error of the last attempt.
func (e *ExhaustedError) Last() error {
	if e.Errors == nil || len(e.Errors.Errors) == 0 {
		return nil
	}
	return e.Errors.Errors[len(e.Errors.Errors)-1]
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last()
}

func (e *ExhaustedError) Is(target error) bool {
	return target == ErrRetriesExhausted
}

// --------------------------------------------------------------------------
// Store
// --------------------------------------------------------------------------

// Store retries every operation of its fallback with exponential backoff
type Store struct {
	store.Base
	opts Options
}

// New creates a retry layer over inner.
func New(inner store.IStore, opts Options) *Store {
	s := &Store{opts: opts.withDefaults()}
	s.SetFallback(inner)
	return s
}

// newBackOff creates the per call delay sequence. The attempt limit is enforced by
// backoff.WithMaxRetries, the elapsed time is not limited.
func (s *Store) newBackOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = s.opts.InitialDelay
	exp.Multiplier = s.opts.Multiplier
	exp.MaxElapsedTime = 0
	exp.RandomizationFactor = 0
	if s.opts.Jitter {
		exp.RandomizationFactor = jitterFactor
	}
	exp.MaxInterval = time.Duration(math.MaxInt64)
	if s.opts.MaxDelay > 0 {
		exp.MaxInterval = s.opts.MaxDelay
	}
	exp.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(s.opts.MaxAttempts-1)), ctx)
}

// permanent reports errors that are returned without retry
func permanent(ctx context.Context, err error) bool {
	return errors.Is(err, store.ErrUnsupported) || store.Canceled(ctx)
}

// retry runs fn until it succeeds, fails permanently or the attempts are used up
func retry[T any](ctx context.Context, s *Store, op string, fn func(inner store.IStore) (T, error)) (T, error) {
	var zero T
	if s.Closed() {
		return zero, store.ErrClosed
	}
	inner := s.Fallback()
	if inner == nil {
		return zero, store.NewError(store.RetCInvalidOperation, "retry store has no fallback")
	}

	var (
		result   T
		attempts int
		errs     *multierror.Error
		stopped  bool
	)
	err := backoff.Retry(func() error {
		attempts++
		res, err := fn(inner)
		if err == nil {
			result = res
			return nil
		}
		if permanent(ctx, err) {
			stopped = true
			return backoff.Permanent(err)
		}
		errs = multierror.Append(errs, err)
		s.opts.OnError(fmt.Errorf("%s attempt %d/%d: %w", op, attempts, s.opts.MaxAttempts, err))
		return err
	}, s.newBackOff(ctx))

	switch {
	case err == nil:
		return result, nil
	case stopped:
		return zero, err
	case store.Canceled(ctx):
		// the caller gave up while waiting for the next attempt
		return zero, ctx.Err()
	default:
		return zero, &ExhaustedError{Op: op, Attempts: attempts, Errors: errs}
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

type getResult struct {
	value []byte
	found bool
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	r, err := retry(ctx, s, "Get", func(inner store.IStore) (getResult, error) {
		value, found, err := inner.Get(ctx, key)
		return getResult{value, found}, err
	})
	return r.value, r.found, err
}

func (s *Store) Set(ctx context.Context, key string, value []byte) ([]byte, bool, error) {
	r, err := retry(ctx, s, "Set", func(inner store.IStore) (getResult, error) {
		old, existed, err := inner.Set(ctx, key, value)
		return getResult{old, existed}, err
	})
	return r.value, r.found, err
}

func (s *Store) Remove(ctx context.Context, key string) (bool, error) {
	return retry(ctx, s, "Remove", func(inner store.IStore) (bool, error) {
		return inner.Remove(ctx, key)
	})
}

func (s *Store) RemoveAll(ctx context.Context) error {
	_, err := retry(ctx, s, "RemoveAll", func(inner store.IStore) (struct{}, error) {
		return struct{}{}, inner.RemoveAll(ctx)
	})
	return err
}

func (s *Store) ContainsKey(ctx context.Context, key string) (bool, error) {
	return retry(ctx, s, "ContainsKey", func(inner store.IStore) (bool, error) {
		return inner.ContainsKey(ctx, key)
	})
}

func (s *Store) ListKeys(ctx context.Context) ([]string, error) {
	return retry(ctx, s, "ListKeys", func(inner store.IStore) ([]string, error) {
		return inner.ListKeys(ctx)
	})
}

// Close closes the fallback chain.
func (s *Store) Close() error {
	return s.CloseChain(nil)
}
