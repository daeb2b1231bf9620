/*
Package cache implements the tiered cache optimizer serving low-latency reads
for hot game and session data.

# Architecture

Reads enter the Optimizer and walk the tiers in order:

	┌──────────────────────────────────────┐
	│             Callers                  │
	│  (route handlers, session services)  │
	└──────────────────────────────────────┘
	                  │
	┌──────────────────────────────────────┐
	│             Optimizer                │  ← this package
	│   stampede collapsing, promotion,    │
	│   write-through, metrics accounting  │
	└──────────────────────────────────────┘
	          │                 │
	┌──────────────────┐ ┌──────────────────┐
	│     L1Store      │ │   RemoteStore    │
	│  in-process LRU  │ │  shared Redis    │
	│  sub-millisecond │ │  few-millisecond │
	└──────────────────┘ └──────────────────┘

A miss in both tiers runs the caller-supplied fallback, collapsed to one
execution per key, and writes the result through to both tiers. An L2 hit is
always promoted into L1 on the locality assumption that keys recently read
from the shared tier will be read again soon.

L1 is a best-effort process-local accelerator, never a source of truth;
multiple service instances rely on the shared tier as their consistency
point. Remote failures degrade to misses and never reach callers.

The Sweeper prunes TTL-expired L1 entries in the background; the Warmer
bulk-populates both tiers at startup.
*/
package cache
