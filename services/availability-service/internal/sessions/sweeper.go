package sessions

import (
	"context"
	"log/slog"
	"time"
)

type SweeperConfig struct {
	Interval time.Duration
	IdleTTL  time.Duration
}

// Sweeper periodically evicts idle sessions from a Registry.
type Sweeper struct {
	registry *Registry
	logger   *slog.Logger
	interval time.Duration
	idleTTL  time.Duration
}

func NewSweeper(registry *Registry, logger *slog.Logger, cfg SweeperConfig) *Sweeper {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 30 * time.Minute
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	return &Sweeper{
		registry: registry,
		logger:   logger,
		interval: cfg.Interval,
		idleTTL:  cfg.IdleTTL,
	}
}

func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.registry.EvictIdle(s.idleTTL); n > 0 {
				s.logger.Info("evicted idle sessions", "count", n, "remaining", s.registry.Len())
			}
		}
	}
}
