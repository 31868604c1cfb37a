// Package metrics provides Prometheus metrics for the bond-matching
// core, grounded directly on the teacher's pkg/trader/metrics.TradingMetrics:
// one struct holding every CounterVec/GaugeVec/HistogramVec, a single
// registry, and small Record*/Update* helper methods.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// BondMetrics collects and exposes Prometheus metrics for the matching
// pipeline's three control loops.
type BondMetrics struct {
	registry *prometheus.Registry

	// Candidate retrieval / scoring (C6/C7)
	CandidatesRetrieved *prometheus.HistogramVec
	CandidatesScored    *prometheus.CounterVec
	VetoesByRule        *prometheus.CounterVec
	ScoringLatency      *prometheus.HistogramVec

	// Bond registry (C9/C10)
	BondsCreated *prometheus.CounterVec
	BondsRetired *prometheus.CounterVec
	ActiveBonds  *prometheus.GaugeVec
	BuildCycleLatency *prometheus.HistogramVec

	// Price updater (C11)
	PriceUpdateCycleLatency *prometheus.HistogramVec
	ContractsRefreshed      *prometheus.CounterVec
	StaleContracts          *prometheus.GaugeVec
	UpstreamErrors          *prometheus.CounterVec

	// Arbitrage monitor (C12)
	OpportunitiesTracked *prometheus.GaugeVec
	OpportunitiesFound   *prometheus.CounterVec
	OpportunityEdgeBps   *prometheus.HistogramVec
	MonitorCycleLatency  *prometheus.HistogramVec
}

// New creates a fresh registry and the full metric set.
func New() *BondMetrics {
	registry := prometheus.NewRegistry()

	m := &BondMetrics{
		registry: registry,

		CandidatesRetrieved: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bondarb_candidates_retrieved",
				Help:    "Number of candidates returned by C6 per query contract",
				Buckets: prometheus.LinearBuckets(0, 5, 11),
			},
			[]string{"platform"},
		),
		CandidatesScored: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bondarb_candidates_scored_total",
				Help: "Total number of candidate pairs scored by C7",
			},
			[]string{"tier"},
		),
		VetoesByRule: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bondarb_hard_constraint_vetoes_total",
				Help: "Total number of candidate pairs vetoed by hard constraints, by rule",
			},
			[]string{"rule"},
		),
		ScoringLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bondarb_scoring_latency_seconds",
				Help:    "Latency of a single C7 Score call",
				Buckets: prometheus.ExponentialBuckets(0.00001, 2, 12),
			},
			[]string{},
		),

		BondsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bondarb_bonds_created_total",
				Help: "Total number of bonds created by C10",
			},
			[]string{"tier"},
		),
		BondsRetired: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bondarb_bonds_retired_total",
				Help: "Total number of bonds retired",
			},
			[]string{"reason"},
		),
		ActiveBonds: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bondarb_active_bonds",
				Help: "Current number of active bonds",
			},
			[]string{"tier"},
		),
		BuildCycleLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bondarb_build_cycle_duration_seconds",
				Help:    "Duration of a full C10 bond-builder cycle",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
			},
			[]string{},
		),

		PriceUpdateCycleLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bondarb_price_update_cycle_duration_seconds",
				Help:    "Duration of a full C11 price-update cycle",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
			},
			[]string{"platform"},
		),
		ContractsRefreshed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bondarb_contracts_refreshed_total",
				Help: "Total number of contracts refreshed by C11",
			},
			[]string{"platform"},
		),
		StaleContracts: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bondarb_stale_contracts",
				Help: "Current number of contracts past the staleness threshold",
			},
			[]string{"platform"},
		),
		UpstreamErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bondarb_upstream_errors_total",
				Help: "Total number of upstream client errors, by platform and kind",
			},
			[]string{"platform", "kind"},
		),

		OpportunitiesTracked: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bondarb_arbitrage_opportunities_tracked",
				Help: "Current number of live arbitrage opportunities",
			},
			[]string{"kind"},
		),
		OpportunitiesFound: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bondarb_arbitrage_opportunities_found_total",
				Help: "Total number of arbitrage opportunities detected",
			},
			[]string{"kind", "direction"},
		),
		OpportunityEdgeBps: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bondarb_arbitrage_edge_bps",
				Help:    "Detected arbitrage edge in basis points",
				Buckets: []float64{0, 10, 25, 50, 100, 200, 300, 500, 1000},
			},
			[]string{"kind"},
		),
		MonitorCycleLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bondarb_monitor_cycle_duration_seconds",
				Help:    "Duration of a full C12 arbitrage scan cycle",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
			},
			[]string{},
		),
	}

	m.registerAll()
	return m
}

func (m *BondMetrics) registerAll() {
	m.registry.MustRegister(
		m.CandidatesRetrieved, m.CandidatesScored, m.VetoesByRule, m.ScoringLatency,
		m.BondsCreated, m.BondsRetired, m.ActiveBonds, m.BuildCycleLatency,
		m.PriceUpdateCycleLatency, m.ContractsRefreshed, m.StaleContracts, m.UpstreamErrors,
		m.OpportunitiesTracked, m.OpportunitiesFound, m.OpportunityEdgeBps, m.MonitorCycleLatency,
	)
}

// Registry returns the Prometheus registry backing this metric set.
func (m *BondMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordScore records a single C7 scoring outcome, including vetoes.
func (m *BondMetrics) RecordScore(tier string, violations []string, latencySec float64) {
	m.CandidatesScored.WithLabelValues(tier).Inc()
	for _, v := range violations {
		m.VetoesByRule.WithLabelValues(v).Inc()
	}
	m.ScoringLatency.WithLabelValues().Observe(latencySec)
}

// RecordRetrieval records how many candidates C6 returned for a query
// contract on the given platform.
func (m *BondMetrics) RecordRetrieval(platform string, count int) {
	m.CandidatesRetrieved.WithLabelValues(platform).Observe(float64(count))
}

// RecordBondCreated records a new bond by tier.
func (m *BondMetrics) RecordBondCreated(tier string) {
	m.BondsCreated.WithLabelValues(tier).Inc()
}

// RecordBondRetired records a bond retirement with its reason.
func (m *BondMetrics) RecordBondRetired(reason string) {
	m.BondsRetired.WithLabelValues(reason).Inc()
}

// UpdateActiveBonds sets the current active-bond gauge for a tier.
func (m *BondMetrics) UpdateActiveBonds(tier string, count int) {
	m.ActiveBonds.WithLabelValues(tier).Set(float64(count))
}

// RecordBuildCycle records a C10 cycle's wall time.
func (m *BondMetrics) RecordBuildCycle(durationSec float64) {
	m.BuildCycleLatency.WithLabelValues().Observe(durationSec)
}

// RecordPriceUpdateCycle records a C11 cycle's wall time for a platform.
func (m *BondMetrics) RecordPriceUpdateCycle(platform string, durationSec float64) {
	m.PriceUpdateCycleLatency.WithLabelValues(platform).Observe(durationSec)
}

// RecordContractsRefreshed increments the refreshed-contract counter.
func (m *BondMetrics) RecordContractsRefreshed(platform string, n int) {
	m.ContractsRefreshed.WithLabelValues(platform).Add(float64(n))
}

// UpdateStaleContracts sets the stale-contract gauge for a platform.
func (m *BondMetrics) UpdateStaleContracts(platform string, count int) {
	m.StaleContracts.WithLabelValues(platform).Set(float64(count))
}

// RecordUpstreamError records a client-level failure.
func (m *BondMetrics) RecordUpstreamError(platform, kind string) {
	m.UpstreamErrors.WithLabelValues(platform, kind).Inc()
}

// RecordOpportunity records a newly-found arbitrage opportunity.
func (m *BondMetrics) RecordOpportunity(kind, direction string, edgeBps float64) {
	m.OpportunitiesFound.WithLabelValues(kind, direction).Inc()
	m.OpportunityEdgeBps.WithLabelValues(kind).Observe(edgeBps)
}

// UpdateOpportunitiesTracked sets the live-opportunity gauge for a kind.
func (m *BondMetrics) UpdateOpportunitiesTracked(kind string, count int) {
	m.OpportunitiesTracked.WithLabelValues(kind).Set(float64(count))
}

// RecordMonitorCycle records a C12 cycle's wall time.
func (m *BondMetrics) RecordMonitorCycle(durationSec float64) {
	m.MonitorCycleLatency.WithLabelValues().Observe(durationSec)
}

var defaultMetrics *BondMetrics
var once sync.Once

// Default returns the process-wide metrics instance, built on first use.
func Default() *BondMetrics {
	once.Do(func() {
		defaultMetrics = New()
	})
	return defaultMetrics
}
