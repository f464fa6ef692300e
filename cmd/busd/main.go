// Command busd runs a message bus as a standalone daemon: it loads
// configuration, wires up the configured storage backend and routing
// policy, and serves Prometheus metrics until told to stop.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/adred-codev/messagebus/internal/busmetrics"
	"github.com/adred-codev/messagebus/internal/config"
	"github.com/adred-codev/messagebus/internal/logging"
	"github.com/adred-codev/messagebus/internal/msgbus/bus"
	"github.com/adred-codev/messagebus/internal/msgbus/routing"
	"github.com/adred-codev/messagebus/internal/msgbus/storage"
	"github.com/adred-codev/messagebus/internal/msgbus/storage/filestore"
	"github.com/adred-codev/messagebus/internal/msgbus/storage/memorystore"
	"github.com/adred-codev/messagebus/internal/msgbus/storage/pgstore"
	"github.com/adred-codev/messagebus/internal/msgbus/storage/redisstore"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	_ "go.uber.org/automaxprocs"
)

func main() {
	debug := flag.Bool("debug", false, "enable debug logging (overrides LOG_LEVEL)")
	flag.Parse()

	bootLogger := logging.New(logging.Config{Level: "info", Format: "json"}, "busd")
	bootLogger.Info().Int("gomaxprocs", runtime.GOMAXPROCS(0)).Msg("starting")

	cfg, err := config.Load()
	if err != nil {
		bootLogger.Fatal().Err(err).Msg("failed to load configuration")
	}
	if *debug {
		cfg.LogLevel = "debug"
	}

	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}, "busd")
	cfg.LogConfig(logger)

	backend, err := buildBackend(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build storage backend")
	}

	policy, err := buildRoutingPolicy(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build routing policy")
	}

	registry := prometheus.NewRegistry()
	metrics := busmetrics.NewCollector(registry)

	b := bus.New(cfg.BusID, backend,
		bus.WithMachineID(cfg.MachineID),
		bus.WithRoutingPolicy(policy),
		bus.WithLogger(logger),
		bus.WithMetrics(metrics),
		bus.WithRateLimit(rate.Limit(cfg.RateLimitPerSender), cfg.RateLimitBurst, 5*time.Minute),
	)
	defer b.Close()

	logger.Info().Str("bus_id", b.ID()).Msg("bus ready")

	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server stopped unexpectedly")
		}
	}()

	processStatsCtx, stopProcessStats := context.WithCancel(context.Background())
	go sampleProcessStatsLoop(processStatsCtx, metrics, logger, 15*time.Second)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info().Msg("shutting down")
	stopProcessStats()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("error shutting down metrics server")
	}
}

// sampleProcessStatsLoop periodically feeds the process-level CPU/RSS
// gauges until ctx is cancelled, logging (rather than failing the
// daemon) on a sampling error.
func sampleProcessStatsLoop(ctx context.Context, metrics *busmetrics.Collector, logger zerolog.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats, err := busmetrics.SampleProcessStats(ctx)
			if err != nil {
				logger.Warn().Err(err).Msg("failed to sample process stats")
				continue
			}
			metrics.ProcessCPUPercent.Set(stats.CPUPercent)
			metrics.ProcessRSSBytes.Set(float64(stats.RSSBytes))
		}
	}
}

func buildBackend(cfg *config.Config) (storage.Backend, error) {
	switch config.Backend(cfg.StorageBackend) {
	case config.BackendMemory:
		return memorystore.New(), nil
	case config.BackendFile:
		return filestore.New(cfg.FileStoreRoot), nil
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return redisstore.New(client), nil
	case config.BackendPostgres:
		pool, err := pgxpool.New(context.Background(), cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if _, err := pool.Exec(context.Background(), pgstore.Schema); err != nil {
			return nil, err
		}
		return pgstore.New(pool), nil
	default:
		return nil, errors.New("busd: unknown storage backend " + cfg.StorageBackend)
	}
}

func buildRoutingPolicy(cfg *config.Config) (routing.Policy, error) {
	switch cfg.RoutingPolicy {
	case "broadcast":
		return routing.NewBroadcast(), nil
	case "direct_or_fallback":
		return routing.NewDirectOrFallback(cfg.FallbackClientID), nil
	case "hash_based":
		return routing.NewHashBased(routing.DefaultHashProperties...), nil
	default:
		return nil, errors.New("busd: unknown routing policy " + cfg.RoutingPolicy)
	}
}
