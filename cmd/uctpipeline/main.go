package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/signalsfoundry/uct-pipeline/internal/config"
	"github.com/signalsfoundry/uct-pipeline/internal/logging"
	"github.com/signalsfoundry/uct-pipeline/internal/observability"
	"github.com/signalsfoundry/uct-pipeline/internal/pipeline"
	"github.com/signalsfoundry/uct-pipeline/internal/store"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML configuration file")
	dbPath := flag.String("db", "", "DuckDB database path (overrides config and UCT_DB_PATH)")
	tierName := flag.String("tier", "", "Quality tier T1..T4 (overrides config and UCT_TIER)")
	metricsAddr := flag.String("metrics-addr", "", "HTTP address for Prometheus /metrics; empty disables")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.NewFromEnv().Error(context.Background(), "failed to load config", logging.Err(err))
		os.Exit(1)
	}
	if *dbPath != "" {
		cfg.Store.DBPath = *dbPath
	}
	if *tierName != "" {
		cfg.Tier = *tierName
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}

	log := logging.New(cfg.Logging)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, log, prometheus.DefaultRegisterer); err != nil {
		log.Error(ctx, "pipeline failed", logging.Err(err))
		os.Exit(1)
	}
}

// run executes one batch: open the store, run every stage and replace the
// output tables.
func run(ctx context.Context, cfg config.Config, log logging.Logger, reg prometheus.Registerer) error {
	shutdown, err := observability.InitTracing(ctx, cfg.Tracing, log)
	if err != nil {
		return err
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdown, log)

	collector, err := observability.NewPipelineCollector(reg)
	if err != nil {
		return err
	}
	metricsSrv := serveMetrics(cfg.MetricsAddr, collector, log)
	if metricsSrv != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}()
	}

	s, err := store.Open(cfg.Store.DBPath, cfg.Store.Tables, log)
	if err != nil {
		return err
	}
	defer s.Close()

	p, err := pipeline.New(cfg,
		pipeline.WithLogger(log),
		pipeline.WithCollector(collector),
	)
	if err != nil {
		return err
	}

	log.Info(ctx, "starting pipeline",
		logging.String("db_path", cfg.Store.DBPath),
		logging.String("data_mode", cfg.Segmentation.DataMode),
		logging.String("tier", cfg.Tier),
	)
	res, err := p.RunStore(ctx, s)
	if err != nil {
		return err
	}
	for _, c := range res.Quality.Checks {
		log.Info(ctx, "validity check",
			logging.String("check", c.Name),
			logging.Int("passed", c.Passed),
			logging.Int("total", c.Total),
		)
	}
	return nil
}

func serveMetrics(addr string, collector *observability.PipelineCollector, log logging.Logger) *http.Server {
	if collector == nil || addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
