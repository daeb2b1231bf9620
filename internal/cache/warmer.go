package cache

import (
	"context"
	"log/slog"

	"github.com/gamecache/gamecache/pkg/types"
)

// Warmer bulk-populates both tiers ahead of traffic. It holds no state of
// its own; it is pure composition over the optimizer's write path, used at
// process start to avoid cold-cache latency spikes for known hot keys.
type Warmer struct {
	optimizer *Optimizer
	logger    *slog.Logger
}

// NewWarmer creates a warmer over the given optimizer.
func NewWarmer(optimizer *Optimizer, logger *slog.Logger) *Warmer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Warmer{optimizer: optimizer, logger: logger}
}

// Warm applies set semantics to every entry.
func (w *Warmer) Warm(ctx context.Context, entries []types.WarmEntry) {
	w.optimizer.WarmCache(ctx, entries)
}

// PreloadSessions preloads active game sessions under their namespaced keys.
func (w *Warmer) PreloadSessions(ctx context.Context, sessions map[string]interface{}) {
	for sessionID, data := range sessions {
		w.optimizer.PreloadGameSession(ctx, sessionID, data)
	}
	w.logger.Info("sessions preloaded", "count", len(sessions))
}
