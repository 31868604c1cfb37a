// Package discovery implements the C1->C5 ingestion path described in
// spec §2's data flow ("raw contracts enter at C1, flow through C5 into
// C13"): a per-exchange polling loop that pages through
// ListActiveContracts, normalizes each raw record through the C5
// pipeline, and upserts the result into C13. This is what first
// populates the contract pool that C10's bond-builder and C6's
// candidate retriever operate over; without it the store never sees a
// contract that hasn't already been bonded. Grounded on the same
// ticker-driven control-loop shape as pkg/registry/builder.go,
// pkg/priceupdate/updater.go and pkg/arbitrage/monitor.go (all in turn
// grounded on the teacher orchestrator), running once per exchange on
// that exchange's configured poll_interval_sec.
package discovery

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bondarb/core/pkg/contract"
	"github.com/bondarb/core/pkg/exchange"
	"github.com/bondarb/core/pkg/metrics"
	"github.com/bondarb/core/pkg/normalize"
	"github.com/bondarb/core/pkg/store"
)

// Discoverer polls a single exchange for its active-contract listing and
// keeps C13 in sync with it.
type Discoverer struct {
	platform contract.Platform
	client   exchange.Client
	store    *store.Store
	pipeline *normalize.Pipeline
	interval time.Duration
	retry    exchange.RetryOptions
	metrics  *metrics.BondMetrics
	log      zerolog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

// New builds a discoverer for one exchange.
func New(platform contract.Platform, client exchange.Client, st *store.Store, pipeline *normalize.Pipeline, interval time.Duration, m *metrics.BondMetrics, log zerolog.Logger) *Discoverer {
	return &Discoverer{
		platform: platform,
		client:   client,
		store:    st,
		pipeline: pipeline,
		interval: interval,
		retry:    exchange.DefaultRetryOptions(),
		metrics:  m,
		log:      log,
	}
}

// Run executes discovery cycles on the configured poll interval until ctx
// is canceled.
func (d *Discoverer) Run(ctx context.Context) {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return
	}
	d.running = true
	d.stopCh = make(chan struct{})
	d.mu.Unlock()

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	if err := d.RunCycle(ctx); err != nil {
		d.log.Error().Err(err).Msg("discovery cycle failed")
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stopCh:
			return
		case <-ticker.C:
			if err := d.RunCycle(ctx); err != nil {
				d.log.Error().Err(err).Msg("discovery cycle failed")
			}
		}
	}
}

// Stop ends the run loop.
func (d *Discoverer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		close(d.stopCh)
		d.running = false
	}
}

// RunCycle pages through the exchange's full active listing once,
// normalizing and upserting each record. A page that still fails after
// retrying is logged and ends the cycle early: the pages already fetched
// stay upserted, and the remaining pages are not fetched until the next
// cycle.
func (d *Discoverer) RunCycle(ctx context.Context) error {
	start := time.Now()
	var cursor exchange.Cursor
	seen := 0

	for {
		var batch []exchange.RawContract
		var next exchange.Cursor

		err := exchange.WithRetry(ctx, d.retry, func() error {
			var fetchErr error
			batch, next, fetchErr = d.client.ListActiveContracts(ctx, cursor)
			return fetchErr
		})
		if err != nil {
			d.metrics.RecordUpstreamError(string(d.platform), "list_active")
			d.log.Error().Err(err).Str("platform", string(d.platform)).Msg("discovery page fetch failed, stopping this cycle")
			break
		}

		for i := range batch {
			if d.upsert(ctx, batch[i]) {
				seen++
			}
		}

		if next == "" || len(batch) == 0 {
			break
		}
		cursor = next

		if ctx.Err() != nil {
			break
		}
	}

	d.metrics.RecordContractsRefreshed(string(d.platform), seen)
	d.log.Info().
		Str("platform", string(d.platform)).
		Int("discovered", seen).
		Dur("duration", time.Since(start)).
		Msg("discovery cycle complete")
	return nil
}

// upsert normalizes one raw record against its existing stored version
// (if any) and writes it back, per spec §4.5. Returns false (and logs)
// on a NormalizationError, advancing past the bad record rather than
// failing the cycle.
func (d *Discoverer) upsert(ctx context.Context, raw exchange.RawContract) bool {
	var existing *contract.Contract
	if prior, err := d.store.GetContract(ctx, d.platform, raw.ID); err == nil {
		existing = prior
	}

	raw.Platform = string(d.platform)
	normalized, err := d.pipeline.Normalize(raw, existing)
	if err != nil {
		d.log.Warn().Err(err).Str("platform", string(d.platform)).Str("raw_id", raw.ID).Msg("normalization error, skipping record")
		return false
	}

	if err := d.store.UpsertContract(ctx, normalized); err != nil {
		d.log.Warn().Err(err).Str("platform", string(d.platform)).Str("raw_id", raw.ID).Msg("store conflict on discovered contract, skipping")
		return false
	}
	return true
}
