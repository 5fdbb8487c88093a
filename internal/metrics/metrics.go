package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Event processing counters and histograms, partitioned by queue or phase.

var (
	// Queue runtime
	QueueJobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "queue",
		Name:      "jobs_processed_total",
		Help:      "Total queue jobs processed, by outcome (ok, error, skipped)",
	}, []string{"queue", "result"})

	QueueJobsDeadLettered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "queue",
		Name:      "jobs_dead_lettered_total",
		Help:      "Total queue jobs moved to the dead-letter list",
	}, []string{"queue"})

	QueueJobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "indexer",
		Subsystem: "queue",
		Name:      "job_duration_seconds",
		Help:      "Queue job processing duration",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"queue"})

	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "indexer",
		Subsystem: "queue",
		Name:      "depth",
		Help:      "Current number of ready plus delayed messages per queue",
	}, []string{"queue"})

	// Event batch processing
	ProcessBatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "process",
		Name:      "batches_total",
		Help:      "Total on-chain data batches processed",
	}, []string{"mode"})

	ProcessPhaseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "indexer",
		Subsystem: "process",
		Name:      "phase_duration_seconds",
		Help:      "Per-phase duration of batch processing",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"phase"})

	ProcessEventsPersisted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "process",
		Name:      "events_persisted_total",
		Help:      "Total events persisted, by kind",
	}, []string{"kind"})

	ProcessJobsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "process",
		Name:      "jobs_dispatched_total",
		Help:      "Total downstream jobs dispatched, by target queue",
	}, []string{"queue"})

	// RPC client
	RPCCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "rpc",
		Name:      "calls_total",
		Help:      "Total JSON-RPC calls, by method and outcome",
	}, []string{"method", "status"})

	RPCRateLimitWaits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "rpc",
		Name:      "rate_limit_waits_total",
		Help:      "Total JSON-RPC calls delayed by the client-side rate limiter",
	}, []string{"method"})

	// Trace fetch and protocol matching
	TraceFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "trace",
		Name:      "fetches_total",
		Help:      "Total transaction traces fetched",
	}, []string{"result"})

	ProtocolCallMatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "trace",
		Name:      "protocol_call_matches_total",
		Help:      "Total protocol call match attempts, by outcome (found, none)",
	}, []string{"outcome"})

	// Order reconstruction
	OrdersReconstructedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "orders",
		Name:      "reconstructed_total",
		Help:      "Total orders reconstructed from calldata",
	}, []string{"kind"})

	OrderSignatureWalkDepth = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "indexer",
		Subsystem: "orders",
		Name:      "signature_walk_depth",
		Help:      "Nonce candidates tried before a signature validated",
		Buckets:   []float64{1, 2, 3, 5, 8, 13, 21, 34},
	}, []string{"kind"})

	// Listings snapshot jobs
	ListingsPagesFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "listings",
		Name:      "pages_fetched_total",
		Help:      "Total listings pages fetched from the marketplace API",
	}, []string{"result"})

	ListingsOrdersIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "listings",
		Name:      "orders_ingested_total",
		Help:      "Total listing orders handed to ingestion",
	}, []string{"collection"})

	// Stream producer
	StreamEventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "stream",
		Name:      "events_published_total",
		Help:      "Total events published to the outbound stream",
	}, []string{"stream"})

	StreamEventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "stream",
		Name:      "events_dropped_total",
		Help:      "Total events dropped while the producer was disconnected",
	}, []string{"stream"})

	StreamProducerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "indexer",
		Subsystem: "stream",
		Name:      "producer_state",
		Help:      "Stream producer state (0=disconnected, 1=connected, 2=reconnecting)",
	}, []string{"stream"})

	// Database pool
	DBPoolOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "indexer",
		Subsystem: "postgres",
		Name:      "db_pool_open",
		Help:      "Current number of open PostgreSQL connections in the pool",
	})

	DBPoolInUse = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "indexer",
		Subsystem: "postgres",
		Name:      "db_pool_in_use",
		Help:      "Current number of in-use PostgreSQL connections in the pool",
	})

	DBPoolIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "indexer",
		Subsystem: "postgres",
		Name:      "db_pool_idle",
		Help:      "Current number of idle PostgreSQL connections in the pool",
	})

	DBPoolWaitCount = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "indexer",
		Subsystem: "postgres",
		Name:      "db_pool_wait_count",
		Help:      "Cumulative count of waits for PostgreSQL connections from pool",
	})

	DBPoolWaitDurationSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "indexer",
		Subsystem: "postgres",
		Name:      "db_pool_wait_duration_seconds",
		Help:      "Latest PostgreSQL pool wait duration in seconds",
	})

	// Balance reconciliation
	ReconciliationRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "reconciliation",
		Name:      "runs_total",
		Help:      "Total balance reconciliation runs",
	})

	ReconciliationMismatchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "reconciliation",
		Name:      "mismatches_total",
		Help:      "Total balance rows found out of sync with the transfer ledger",
	})

	// Caches
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits, by cache name",
	}, []string{"cache"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses, by cache name",
	}, []string{"cache"})

	// Circuit breaker
	BreakerStateChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "breaker",
		Name:      "state_changes_total",
		Help:      "Total circuit breaker state transitions",
	}, []string{"name", "state"})

	// Alerts
	AlertsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "alert",
		Name:      "sent_total",
		Help:      "Total alerts sent",
	}, []string{"channel", "alert_type"})

	AlertsCooldownSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Subsystem: "alert",
		Name:      "cooldown_skipped_total",
		Help:      "Total alerts skipped due to cooldown",
	}, []string{"channel", "alert_type"})
)
