package storage

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// CachePruner is the part of the upload cache a Pruner needs.
type CachePruner interface {
	DeleteOlderThan(cutoff time.Time) (int64, error)
}

// Pruner periodically drops cached snapshots that are too old to be worth
// uploading, so a station that stays offline for weeks keeps a bounded cache.
type Pruner struct {
	cache  CachePruner
	logger zerolog.Logger
	maxAge time.Duration
	period time.Duration
	now    func() time.Time

	mu           sync.RWMutex
	totalDeleted int64
	totalRuns    int64
	lastRun      time.Time
}

// PrunerConfig holds configuration for the pruner
type PrunerConfig struct {
	MaxAge time.Duration // Age after which a cached snapshot is dropped (default: 7 days)
	Period time.Duration // How often to prune (default: 1 hour)
}

// DefaultPrunerConfig returns sensible defaults
func DefaultPrunerConfig() PrunerConfig {
	return PrunerConfig{
		MaxAge: 7 * 24 * time.Hour,
		Period: time.Hour,
	}
}

// PrunerStats contains statistics about the pruner
type PrunerStats struct {
	TotalDeleted int64     `json:"total_deleted"`
	TotalRuns    int64     `json:"total_runs"`
	LastRun      time.Time `json:"last_run,omitempty"`
}

// NewPruner creates a pruner. Zero or negative durations fall back to defaults.
func NewPruner(cache CachePruner, config PrunerConfig, logger zerolog.Logger) *Pruner {
	defaults := DefaultPrunerConfig()
	if config.MaxAge <= 0 {
		config.MaxAge = defaults.MaxAge
	}
	if config.Period <= 0 {
		logger.Warn().
			Dur("provided_period", config.Period).
			Dur("default_period", defaults.Period).
			Msg("Invalid prune period, using default")
		config.Period = defaults.Period
	}

	return &Pruner{
		cache:  cache,
		logger: logger,
		maxAge: config.MaxAge,
		period: config.Period,
		now:    time.Now,
	}
}

// Run prunes once immediately and then every period until ctx is cancelled.
func (p *Pruner) Run(ctx context.Context) {
	p.RunOnce()

	ticker := time.NewTicker(p.period)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.RunOnce()
		case <-ctx.Done():
			p.logger.Debug().Msg("Pruner stopped")
			return
		}
	}
}

// RunOnce performs a single prune and returns the number of dropped snapshots.
func (p *Pruner) RunOnce() int64 {
	cutoff := p.now().Add(-p.maxAge)
	deleted, err := p.cache.DeleteOlderThan(cutoff)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.totalRuns++
	p.lastRun = p.now()

	if err != nil {
		p.logger.Error().Err(err).Msg("Upload cache prune failed")
		return 0
	}

	p.totalDeleted += deleted
	if deleted > 0 {
		p.logger.Warn().
			Int64("deleted", deleted).
			Dur("max_age", p.maxAge).
			Msg("Dropped stale snapshots that were never uploaded")
	}
	return deleted
}

// Stats returns current pruner statistics
func (p *Pruner) Stats() PrunerStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return PrunerStats{
		TotalDeleted: p.totalDeleted,
		TotalRuns:    p.totalRuns,
		LastRun:      p.lastRun,
	}
}
