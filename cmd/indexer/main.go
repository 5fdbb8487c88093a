package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/d347h-eth/indexer-public/internal/alert"
	"github.com/d347h-eth/indexer-public/internal/circuitbreaker"
	"github.com/d347h-eth/indexer-public/internal/config"
	"github.com/d347h-eth/indexer-public/internal/jobs"
	"github.com/d347h-eth/indexer-public/internal/listings"
	"github.com/d347h-eth/indexer-public/internal/metrics"
	"github.com/d347h-eth/indexer-public/internal/pipeline"
	"github.com/d347h-eth/indexer-public/internal/prices"
	"github.com/d347h-eth/indexer-public/internal/protocol/blend"
	"github.com/d347h-eth/indexer-public/internal/queue"
	"github.com/d347h-eth/indexer-public/internal/reconciliation"
	"github.com/d347h-eth/indexer-public/internal/store"
	"github.com/d347h-eth/indexer-public/internal/store/postgres"
	redispkg "github.com/d347h-eth/indexer-public/internal/store/redis"
	"github.com/d347h-eth/indexer-public/internal/tracing"
	"github.com/d347h-eth/indexer-public/internal/txsource"
)

const (
	nonceCacheCapacity = 10_000
	nonceCacheTTL      = time.Minute
	priceCacheCapacity = 50_000
	priceCacheTTL      = 10 * time.Minute

	dbPoolStatsInterval = 15 * time.Second

	reconciliationInterval = 30 * time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	switch cfg.Log.Level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	logger.Info("starting nft-indexer",
		"chain_id", cfg.Chain.ChainID,
		"exchange", cfg.Blend.ExchangeAddress,
		"focus_contract", cfg.Focus.Contract,
		"stream_enabled", cfg.Stream.Enabled,
	)

	shutdownTracing, err := tracing.Init(context.Background(), "nft-indexer", cfg.Tracing.Endpoint, cfg.Tracing.Insecure)
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown error", "error", err)
		}
	}()
	if cfg.Tracing.Endpoint != "" {
		logger.Info("tracing enabled", "endpoint", cfg.Tracing.Endpoint)
	}

	db, err := postgres.New(postgres.Config{
		URL:             cfg.DB.URL,
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("connected to database")

	// Schema management normally belongs to the deployment tooling;
	// MIGRATIONS_DIR opts into running migrations at boot for local and
	// single-binary setups.
	if dir := os.Getenv("MIGRATIONS_DIR"); dir != "" {
		if err := db.RunMigrations(dir); err != nil {
			logger.Error("failed to run migrations", "error", err, "dir", dir)
			os.Exit(1)
		}
		logger.Info("migrations applied", "dir", dir)
	}

	redisClient, err := redispkg.NewClient(cfg.Redis.URL)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	logger.Info("connected to redis")

	focusMode := cfg.Focus.Contract != ""
	repos := pipeline.Repos{
		Fills:        postgres.NewFillEventRepo(db, focusMode),
		Cancels:      postgres.NewCancelEventRepo(db, focusMode),
		BulkCancels:  postgres.NewBulkCancelEventRepo(db),
		NonceCancels: postgres.NewNonceCancelEventRepo(db),
		Approvals:    postgres.NewApprovalEventRepo(db),
		Transfers:    postgres.NewTransferEventRepo(db),
		Transactions: postgres.NewTransactionRepo(db),
	}
	nonces := store.NewCachedNonces(postgres.NewNonceRepo(db), nonceCacheCapacity, nonceCacheTTL)

	source := txsource.NewGuardedSource(
		txsource.NewRPCSource(txsource.RPCSourceConfig{
			URL:     cfg.Chain.RPCURL,
			Timeout: cfg.Chain.RPCTimeout,
			Routers: cfg.Chain.Routers,
		}, logger),
		circuitbreaker.Config{},
		logger,
	)
	oracle := prices.NewCachedOracle(prices.NewNativeOnly(blend.NativeCurrency), priceCacheCapacity, priceCacheTTL)

	handler := blend.NewHandler(
		common.HexToAddress(cfg.Blend.ExchangeAddress),
		big.NewInt(cfg.Chain.ChainID),
		source,
		oracle,
		nonces,
		logger,
	)

	transport := queue.NewRedisTransport(redisClient.Redis())
	dispatcher := jobs.NewQueueDispatcher(transport)

	processorOpts := []pipeline.Option{}
	if focusMode {
		processorOpts = append(processorOpts, pipeline.WithFocusContract(cfg.Focus.Contract, cfg.Focus.PersistRelevantTx))
	}

	var streamProducer *redispkg.StreamProducer
	if cfg.Stream.Enabled {
		streamProducer = redispkg.NewStreamProducer(redispkg.StreamProducerConfig{
			URL:    cfg.Redis.URL,
			Stream: cfg.Stream.Name,
		}, logger)
		processorOpts = append(processorOpts, pipeline.WithNotifier(streamProducer))
	}

	processor := pipeline.NewProcessor(repos, dispatcher, source, logger, processorOpts...)
	health := pipeline.NewHealth("events-sync")

	alerter := buildAlerter(cfg.Alert, logger)

	eventsRealtime := jobs.NewEventsSyncJob(handler, processor, health, false, logger)
	eventsBackfill := jobs.NewEventsSyncJob(handler, processor, health, true, logger)

	listingsClient := listings.NewClient(cfg.Listings.BaseURL, cfg.Listings.APIKey, logger)
	pending := redispkg.NewPendingListings(redisClient)
	fetchSender := queue.NewSender(jobs.ListingsFetchDefinition(), transport)
	ordersSender := queue.NewSender(queue.Definition{Name: jobs.QueueOrders}, transport)
	listingsProcess := jobs.NewListingsProcessJob(pending, redisClient, fetchSender, logger)
	listingsFetch := jobs.NewListingsFetchJob(listingsClient, pending, redisClient, fetchSender, ordersSender, logger)

	workers := []*queue.Worker{
		queue.NewWorker(eventsRealtime, transport, redisClient, logger, queue.WithAlerter(alerter)),
		queue.NewWorker(eventsBackfill, transport, redisClient, logger, queue.WithAlerter(alerter)),
		queue.NewWorker(listingsProcess, transport, redisClient, logger, queue.WithAlerter(alerter)),
		queue.NewWorker(listingsFetch, transport, redisClient, logger, queue.WithAlerter(alerter)),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	g, gCtx := errgroup.WithContext(ctx)

	if streamProducer != nil {
		if err := streamProducer.Start(gCtx); err != nil {
			logger.Warn("stream producer start failed, publishing degraded", "error", err)
		}
		defer func() {
			if err := streamProducer.Stop(); err != nil {
				logger.Warn("stream producer stop error", "error", err)
			}
		}()
	}

	g.Go(func() error {
		return runHealthServer(gCtx, cfg.Server.HealthPort, health, logger)
	})

	for _, w := range workers {
		w := w
		g.Go(func() error {
			return w.Run(gCtx)
		})
	}

	startDBPoolStatsPump(gCtx, db.DB, dbPoolStatsInterval, logger)

	recon := reconciliation.NewService(db.DB, cfg.Focus.Contract, alerter, logger)
	g.Go(func() error {
		return recon.RunPeriodic(gCtx, reconciliationInterval)
	})

	g.Go(func() error {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error("indexer exited with error", "error", err)
		os.Exit(1)
	}

	logger.Info("indexer shut down gracefully")
}

func buildAlerter(cfg config.AlertConfig, logger *slog.Logger) alert.Alerter {
	alerters := make([]alert.Alerter, 0, 2)
	if cfg.SlackWebhookURL != "" {
		alerters = append(alerters, alert.NewSlackAlerter(cfg.SlackWebhookURL))
	}
	if cfg.WebhookURL != "" {
		alerters = append(alerters, alert.NewWebhookAlerter(cfg.WebhookURL))
	}
	if len(alerters) == 0 {
		return &alert.NoopAlerter{}
	}
	cooldown := time.Duration(cfg.CooldownMin) * time.Minute
	return alert.NewMultiAlerter(cooldown, logger, alerters...)
}

type dbStatsProvider interface {
	Stats() sql.DBStats
}

func collectDBPoolStats(db dbStatsProvider) error {
	if db == nil {
		return fmt.Errorf("db stats provider is nil")
	}
	stats := db.Stats()
	metrics.DBPoolOpen.Set(float64(stats.OpenConnections))
	metrics.DBPoolInUse.Set(float64(stats.InUse))
	metrics.DBPoolIdle.Set(float64(stats.Idle))
	metrics.DBPoolWaitCount.Set(float64(stats.WaitCount))
	metrics.DBPoolWaitDurationSeconds.Set(stats.WaitDuration.Seconds())
	return nil
}

func startDBPoolStatsPump(ctx context.Context, db dbStatsProvider, interval time.Duration, logger *slog.Logger) {
	if db == nil || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()

		if err := collectDBPoolStats(db); err != nil {
			logger.Warn("failed to collect initial db pool stats", "error", err)
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := collectDBPoolStats(db); err != nil {
					logger.Warn("failed to collect db pool stats", "error", err)
				}
			}
		}
	}()
}

func healthzHandler(health *pipeline.Health, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot := health.Snapshot()
		w.Header().Set("Content-Type", "application/json")
		if snapshot.Status == string(pipeline.HealthStatusUnhealthy) {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		if err := json.NewEncoder(w).Encode(snapshot); err != nil {
			logger.Warn("failed to write health response", "error", err)
		}
	}
}

func runHealthServer(ctx context.Context, port int, health *pipeline.Health, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", healthzHandler(health, logger))
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
			logger.Warn("health server shutdown error", "error", err)
		}
	}()

	logger.Info("health server started", "port", port)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("health server: %w", err)
	}
	return nil
}
