// Package cmd implements the command-line interface of stacKV. The commands assemble a
// store chain from flags (see lib/store/chain) and run operations against it.
//
// The package is organized into several subpackages:
//
//   - kv: Commands for key-value operations (get, set, del, has, keys, clear, perf)
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See stackv -help for a list of all commands.
package cmd
