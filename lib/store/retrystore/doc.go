// Package retrystore implements a decorator that retries every operation of its fallback
// store with exponentially growing delays (cenkalti/backoff).
//
// Behavior:
//   - An operation is attempted at most Options.MaxAttempts times. The delay starts at
//     InitialDelay, grows by Multiplier and is capped at MaxDelay. Jitter randomizes it.
//   - OnError is called for every failed attempt.
//   - When all attempts failed, an *ExhaustedError is returned. It aggregates the errors of
//     all attempts and matches both ErrRetriesExhausted and the last cause with errors.Is.
//   - Unsupported operations (store.ErrUnsupported) and a canceled caller context are returned
//     immediately and are not reported to OnError.
//
// The attempt counter is per call, the store keeps no state between operations.
package retrystore
