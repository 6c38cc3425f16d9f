// Package rstore implements a read-only leaf over a remote dataset, for example a published
// spreadsheet treated as key -> row map.
//
// The store is built from the lstore layer over a read-only engine. Supported operations are
// Get, ContainsKey and ListKeys. Set, Remove and RemoveAll return a store.Error with code
// RetCUnsupportedOperation.
//
// Snapshot state machine (guarded by one mutex):
//
//	NotLoaded --first download--> Loaded --refresh--> Refreshed --refresh--> Refreshed
//
//   - The first read blocks until the first download succeeded. Options.Online can make it
//     wait for connectivity first.
//   - Later reads start a background refresh, which is rejected while
//     now - lastFetch < Options.Interval (debounce) or while another refresh runs.
//   - A refresh diffs the download against the last snapshot. Only new or changed rows are
//     written to the cache store, rows that disappeared are removed from it.
//   - Failed downloads back off exponentially (cenkalti/backoff) between InitialBackoff and
//     MaxBackoff.
//
// Fetchers:
//   - SheetFetcher: CSV, first row = field names, first column = key, rows become JSON objects
//   - JSONFetcher: a JSON object {key: value}, values are kept as raw JSON
//   - FetchFunc: any function
//
// Both HTTP fetchers use go-retryablehttp over a pooled cleanhttp client.
package rstore
