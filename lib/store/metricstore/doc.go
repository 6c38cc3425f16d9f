// Package metricstore instruments a store chain with VictoriaMetrics metrics.
//
// For every operation it records (labels store and op):
//   - stackv_store_requests_total and stackv_store_errors_total
//   - stackv_store_duration_seconds (histogram)
//   - stackv_store_hits_total and stackv_store_misses_total for Get and ContainsKey
//
// The metrics live in a *metrics.Set that can be shared by several stores and written in
// Prometheus text format with WritePrometheus.
package metricstore
