// Package chain assembles store pipelines from a declarative layer list, as used by the
// command line interface.
//
// A layer list names the layers from top (called first) to bottom:
//
//	memory,safe,retry,remote       in-memory cache over an error boundary over retries over a sheet
//	memory,bolt                    in-memory cache over a bbolt file
//	metrics,dual(memory|file)      instrumented race between memory and files
//
// Local layers (memory, file, archive, bolt) may sit anywhere and act as read-through cache
// over the layers beneath them. Decorators (safe, retry, observe, metrics) need a layer
// beneath them. remote, dual(a|b) and custom leaves registered in Options.Leaves must be the
// bottom layer.
package chain
