// Package remote provides adapters for the shared L2 cache tier.
//
// RedisStore is the production implementation: a thin wrapper over go-redis
// that namespaces keys, maps redis.Nil to types.ErrNotFound, and routes every
// call through a circuit breaker so a down Redis fails fast instead of
// stalling the read path. MemoryStore is a process-local stand-in with the
// same semantics for development and tests.
//
// Failure policy is owned by callers: a failed read is treated as a miss and
// a failed write is logged, never surfaced. The adapter only distinguishes
// absence (types.ErrNotFound) from unavailability (any other error).
package remote
