// Package safestore implements an error boundary for store chains. It isolates unreliable
// backends: errors of the fallback are passed to an error callback and the caller gets a
// safe default (not found for Get, false for Remove and ContainsKey, a no-op for Set and
// RemoveAll and an empty list for ListKeys).
//
// Errors can be opted back into "fail loud" with Rethrow matchers:
//
//	s := safestore.New(remote, safestore.Options{
//		OnError: metrics.Report,
//		Rethrow: []safestore.Matcher{
//			safestore.Is(codec.ErrDecode),
//			safestore.As[*retrystore.ExhaustedError](),
//		},
//	})
//
// Unsupported operations and a canceled caller context are never absorbed.
package safestore
