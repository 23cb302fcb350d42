package metrics

import (
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ledgerd"

// Metrics holds all Prometheus metrics
type Metrics struct {
	reg prometheus.Registerer

	// Replay metrics
	Replays         *prometheus.CounterVec
	ReplayDuration  prometheus.Histogram
	EntriesReplayed prometheus.Counter

	// Retry metrics
	RetryOutcomes  *prometheus.CounterVec
	DeadLetters    *prometheus.CounterVec
	DispatchMisses *prometheus.CounterVec
	SchedulerTicks *prometheus.CounterVec
	TickDuration   prometheus.Histogram

	// Reconciliation metrics
	Discrepancies   prometheus.Gauge
	SweptAccounts   prometheus.Counter
	PublishedEvents *prometheus.CounterVec

	// API metrics
	HTTPRequests  *prometheus.CounterVec
	HTTPDuration  *prometheus.HistogramVec
	HTTPInFlight  prometheus.Gauge
	RateLimitHits prometheus.Counter
}

// New creates the metrics and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,

		Replays: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "replays_total",
				Help:      "Account replays by result",
			},
			[]string{"result"},
		),
		ReplayDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "replay_duration_seconds",
			Help:      "Duration of account replays",
			Buckets:   prometheus.DefBuckets,
		}),
		EntriesReplayed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_replayed_total",
			Help:      "Ledger entries folded into balances",
		}),

		RetryOutcomes: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retry_outcomes_total",
				Help:      "Retry record transitions by worker type and outcome",
			},
			[]string{"worker_type", "outcome"},
		),
		DeadLetters: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dead_letters_total",
				Help:      "Retry records that exhausted their budget",
			},
			[]string{"worker_type"},
		),
		DispatchMisses: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatch_misses_total",
				Help:      "Due retry records with no registered handler",
			},
			[]string{"worker_type"},
		),
		SchedulerTicks: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scheduler_ticks_total",
				Help:      "Scheduler ticks by result",
			},
			[]string{"result"},
		),
		TickDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scheduler_tick_duration_seconds",
			Help:      "Duration of scheduler ticks",
			Buckets:   []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60},
		}),

		Discrepancies: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reconciliation_discrepancies",
			Help:      "Accounts whose balance disagrees with played entries at the last run",
		}),
		SweptAccounts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swept_accounts_total",
			Help:      "Accounts replayed by the unplayed-entry sweep",
		}),
		PublishedEvents: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "published_events_total",
				Help:      "Outbox events published by type",
			},
			[]string{"event_type"},
		),

		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Number of HTTP requests currently being processed",
		}),
		RateLimitHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_hits_total",
			Help:      "Requests rejected by the rate limiter",
		}),
	}
}

// WatchPool exports pgx pool statistics.
func (m *Metrics) WatchPool(pool *pgxpool.Pool) {
	f := promauto.With(m.reg)
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "db_connections_acquired",
		Help:      "Connections currently checked out of the pool",
	}, func() float64 { return float64(pool.Stat().AcquiredConns()) })
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "db_connections_total",
		Help:      "Connections currently held by the pool",
	}, func() float64 { return float64(pool.Stat().TotalConns()) })
}

func (m *Metrics) ObserveReplay(result string, entries int, duration time.Duration) {
	m.Replays.WithLabelValues(result).Inc()
	m.ReplayDuration.Observe(duration.Seconds())
	if entries > 0 {
		m.EntriesReplayed.Add(float64(entries))
	}
}

func (m *Metrics) ObserveRetry(workerType, outcome string) {
	m.RetryOutcomes.WithLabelValues(workerType, outcome).Inc()
	if outcome == "dead_lettered" {
		m.DeadLetters.WithLabelValues(workerType).Inc()
	}
}

func (m *Metrics) ObserveReconciliation(discrepancies int) {
	m.Discrepancies.Set(float64(discrepancies))
}

func (m *Metrics) ObserveSweep(replayed int) {
	m.SweptAccounts.Add(float64(replayed))
}

func (m *Metrics) ObserveDispatchMiss(workerType string) {
	m.DispatchMisses.WithLabelValues(workerType).Inc()
}

func (m *Metrics) ObserveTick(result string, duration time.Duration) {
	m.SchedulerTicks.WithLabelValues(result).Inc()
	m.TickDuration.Observe(duration.Seconds())
}

func (m *Metrics) ObservePublished(eventType string) {
	m.PublishedEvents.WithLabelValues(eventType).Inc()
}
