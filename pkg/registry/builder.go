package registry

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bondarb/core/internal/config"
	"github.com/bondarb/core/pkg/contract"
	"github.com/bondarb/core/pkg/match"
	"github.com/bondarb/core/pkg/store"
)

// Builder is C10: a bounded-concurrency worker pool that, each cycle,
// runs every active EX-A contract through C6/C7/C8 against the EX-B
// pool and hands the result to the registry (C9). Grounded on the
// teacher orchestrator's ticker-driven control loop, generalized from
// its single-goroutine stage execution to a worker pool because C10's
// per-contract work (candidate retrieval + up to CandidateLimit scoring
// calls) is independent across queries and spec §5 calls for bounded
// parallel fan-out here.
type Builder struct {
	store    *store.Store
	registry *Registry
	cfg      *config.Config
	log      zerolog.Logger

	workers int

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

// NewBuilder constructs a bond builder with the given worker pool size.
func NewBuilder(st *store.Store, reg *Registry, cfg *config.Config, log zerolog.Logger, workers int) *Builder {
	if workers <= 0 {
		workers = 4
	}
	return &Builder{store: st, registry: reg, cfg: cfg, log: log, workers: workers}
}

// Run executes cycles on the given interval until ctx is canceled.
func (b *Builder) Run(ctx context.Context, interval time.Duration) {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return
	}
	b.running = true
	b.stopCh = make(chan struct{})
	b.mu.Unlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := b.RunCycle(ctx); err != nil {
		b.log.Error().Err(err).Msg("bond-builder cycle failed")
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.stopCh:
			return
		case <-ticker.C:
			if err := b.RunCycle(ctx); err != nil {
				b.log.Error().Err(err).Msg("bond-builder cycle failed")
			}
		}
	}
}

// Stop ends the run loop.
func (b *Builder) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		close(b.stopCh)
		b.running = false
	}
}

// RunCycle runs one full bond-building pass: every active EX-A contract
// is matched against the active EX-B pool, with up to b.workers probes
// running concurrently. A probe that panics is recovered and logged and
// its query is skipped for this cycle; it is not retried sequentially.
// Only when the pool cannot be started at all (runPooled returns false)
// are the queries processed sequentially on the calling goroutine.
func (b *Builder) RunCycle(ctx context.Context) error {
	start := time.Now()

	queries, err := b.store.ListActiveCandidates(ctx, contract.PlatformExA)
	if err != nil {
		return err
	}
	pool, err := b.store.ListActiveCandidates(ctx, contract.PlatformExB)
	if err != nil {
		return err
	}

	if !b.runPooled(ctx, queries, pool) {
		b.runSequential(ctx, queries, pool)
	}

	b.log.Info().
		Int("queries", len(queries)).
		Int("pool", len(pool)).
		Dur("duration", time.Since(start)).
		Msg("bond-builder cycle complete")
	return nil
}

// runPooled fans work out across b.workers goroutines, recovering any
// per-probe panic into a logged skip rather than crashing the cycle.
// Returns false if it could not make any progress at all (e.g. workers
// == 0), signaling the caller to fall back to sequential processing.
func (b *Builder) runPooled(ctx context.Context, queries, pool []*contract.Contract) bool {
	if b.workers <= 0 {
		return false
	}

	sem := make(chan struct{}, b.workers)
	var wg sync.WaitGroup

	for _, q := range queries {
		select {
		case <-ctx.Done():
			wg.Wait()
			return true
		default:
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(query *contract.Contract) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if p := recover(); p != nil {
					b.log.Error().Interface("panic", p).Str("contract", query.Key()).Msg("bond probe panicked")
				}
			}()
			b.probe(ctx, query, pool)
		}(q)
	}

	wg.Wait()
	return true
}

func (b *Builder) runSequential(ctx context.Context, queries, pool []*contract.Contract) {
	for _, q := range queries {
		select {
		case <-ctx.Done():
			return
		default:
		}
		b.probe(ctx, q, pool)
	}
}

// probe runs C6/C7/C8 for a single query contract and serializes the
// resulting C9 writes: every candidate pair touching this query is
// applied to the registry on this goroutine, one at a time, so two
// probes racing on the same pair never interleave their writes.
func (b *Builder) probe(ctx context.Context, query *contract.Contract, pool []*contract.Contract) {
	candidates := match.RetrieveCandidates(query, pool, b.cfg.CandidateLimit)
	for _, candidate := range candidates {
		result := match.Score(query, candidate, b.cfg)
		tier := match.AssignTier(result, b.cfg)

		a, other := query, candidate
		if a.Platform == contract.PlatformExB {
			a, other = other, a
		}

		if err := b.registry.ApplyWithTier(ctx, a, other, result, tier); err != nil {
			b.log.Error().Err(err).
				Str("a", a.Key()).Str("b", other.Key()).
				Msg("bond registry apply failed")
		}
	}
}
