// Package types defines the shared value types and contracts used across the
// cache service: cache entries, metrics snapshots, tier sizing, and the
// RemoteStore interface consumed from the shared L2 tier.
package types
