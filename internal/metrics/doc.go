// Package metrics implements the cache's performance accounting: per-tier
// hit/miss counters, incremental latency averages, and derived hit rates,
// exposed both as an in-process snapshot and over a Prometheus endpoint.
package metrics
