// Package testing provides test doubles for store chains.
//
//   - FlakyStore: an in-memory leaf that fails on demand (always, the next n calls, with a
//     configurable error) and can delay its calls, used to simulate unreliable backends.
//   - ErrorRecorder: a store.ErrorHandler that records every error it receives.
//
// Example usage:
//
//	remote := storetesting.NewFlakyStore()
//	remote.SetFailing(true)
//	var errs storetesting.ErrorRecorder
//	s := retrystore.New(remote, retrystore.Options{MaxAttempts: 5, OnError: errs.Handle})
package testing
