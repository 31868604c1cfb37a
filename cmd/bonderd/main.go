// bonderd is the bond-matching core's daemon: it runs a C1->C5 discovery
// loop per exchange, C10 (bond builder), C11 (price updater) and C12
// (arbitrage monitor) as independent control loops against a shared
// sqlite-backed store.
// Grounded on the teacher's cmd/agentd/main.go: flag-configured daemon,
// context cancellation on SIGINT/SIGTERM, an HTTP endpoint exposing
// Prometheus metrics, graceful shutdown of every loop before exit.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/bondarb/core/internal/config"
	"github.com/bondarb/core/internal/logging"
	"github.com/bondarb/core/pkg/arbitrage"
	"github.com/bondarb/core/pkg/contract"
	"github.com/bondarb/core/pkg/decision"
	"github.com/bondarb/core/pkg/discovery"
	"github.com/bondarb/core/pkg/exchange/exa"
	"github.com/bondarb/core/pkg/exchange/exb"
	"github.com/bondarb/core/pkg/metrics"
	"github.com/bondarb/core/pkg/normalize"
	"github.com/bondarb/core/pkg/priceupdate"
	"github.com/bondarb/core/pkg/registry"
	"github.com/bondarb/core/pkg/store"
)

var (
	httpAddr       = flag.String("http", ":9090", "HTTP address for the /metrics endpoint")
	builderWorkers = flag.Int("builder-workers", 4, "Concurrent probe workers in the bond builder")
)

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logging.New(cfg.LogLevel)
	log.Info().Msg("starting bonderd")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	db, err := store.Open(cfg.StorePath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer db.Close()

	st := store.New(db)
	m := metrics.New()
	recorder := decision.NewRecorder(logging.Component(log, "decision"))

	exAClient := exa.New(exa.WithBaseURL(cfg.ExABaseURL))
	exBClient := exb.New(exb.WithBaseURL(cfg.ExBBaseURL))

	pipeline := normalize.NewPipeline(cfg.EmbeddingDimension)
	reg := registry.New(st, recorder, m)
	priority := priceupdate.NewPriorityQueue()

	builder := registry.NewBuilder(st, reg, cfg, logging.Component(log, "builder"), *builderWorkers)
	updater := priceupdate.NewUpdater(st, exAClient, exBClient, pipeline, priority, cfg, m, logging.Component(log, "priceupdate"))
	monitor := arbitrage.NewMonitor(st, priority, cfg, m, recorder, logging.Component(log, "arbitrage"))

	discoverA := discovery.New(contract.PlatformExA, exAClient, st, pipeline, cfg.PollIntervalA, m, logging.Component(log, "discovery-"+cfg.ExAName))
	discoverB := discovery.New(contract.PlatformExB, exBClient, st, pipeline, cfg.PollIntervalB, m, logging.Component(log, "discovery-"+cfg.ExBName))

	go discoverA.Run(ctx)
	go discoverB.Run(ctx)
	go builder.Run(ctx, cfg.PriceUpdateInterval*3)
	go updater.Run(ctx)
	go monitor.Run(ctx)

	go serveMetrics(log, m)

	log.Info().Str("http_addr", *httpAddr).Msg("bonderd running, press Ctrl+C to stop")

	<-sigCh
	log.Info().Msg("shutting down")

	discoverA.Stop()
	discoverB.Stop()
	builder.Stop()
	updater.Stop()
	monitor.Stop()
	cancel()

	time.Sleep(200 * time.Millisecond)
	log.Info().Msg("goodbye")
}

func serveMetrics(log zerolog.Logger, m *metrics.BondMetrics) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(*httpAddr, mux); err != nil {
		log.Error().Err(err).Msg("metrics HTTP server stopped")
	}
}
