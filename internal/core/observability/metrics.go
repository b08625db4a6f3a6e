package observability

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	classifyCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classify_calls_total",
			Help: "Classification calls by source.",
		},
		[]string{"source"},
	)

	classifyRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classify_records_total",
			Help: "Records classified, by outcome (mapped or unmapped).",
		},
		[]string{"outcome"},
	)

	classifyDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "classify_duration_seconds",
			Help:    "Time spent classifying one batch.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
		},
		[]string{"source"},
	)

	layerMatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "known_layer_matches_total",
			Help: "Records matched per known layer.",
		},
		[]string{"layer"},
	)

	cacheResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_results_total",
			Help: "Cache results by outcome.",
		},
		[]string{"outcome"},
	)

	cacheOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_op_total",
			Help: "Cache operations by op and result.",
		},
		[]string{"op", "result"},
	)

	cacheOpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cache_operation_duration_seconds",
			Help:    "Cache backend operation latency.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
		[]string{"op"},
	)

	feedErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "record_feed_errors_total",
			Help: "Record feed consumer errors by kind.",
		},
		[]string{"kind"},
	)

	feedSkippedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "record_feed_stale_total",
			Help: "Feed records skipped because a newer revision was already applied.",
		},
	)

	knownLayers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "known_layers",
			Help: "Number of known layers loaded.",
		},
	)
)

var registerOnce sync.Once

// Init registers the collectors with reg. Only the first call registers;
// a nil reg leaves the collectors unexported.
func Init(reg prometheus.Registerer) {
	if reg == nil {
		return
	}
	registerOnce.Do(func() {
		reg.MustRegister(
			httpRequestsTotal,
			httpRequestDurationSeconds,
			classifyCallsTotal,
			classifyRecordsTotal,
			classifyDurationSeconds,
			layerMatchesTotal,
			cacheResults,
			cacheOpsTotal,
			cacheOpDurationSeconds,
			feedErrorsTotal,
			feedSkippedTotal,
			knownLayers,
		)
	})
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

// ObserveClassify records one batch; counts is layer id -> matched records.
func ObserveClassify(source string, mapped, unmapped int, counts map[string]int, durationSeconds float64) {
	classifyCallsTotal.WithLabelValues(source).Inc()
	classifyDurationSeconds.WithLabelValues(source).Observe(durationSeconds)
	classifyRecordsTotal.WithLabelValues("mapped").Add(float64(mapped))
	classifyRecordsTotal.WithLabelValues("unmapped").Add(float64(unmapped))
	for layer, n := range counts {
		layerMatchesTotal.WithLabelValues(layer).Add(float64(n))
	}
}

func AddCacheHits(n int) {
	if n > 0 {
		cacheResults.WithLabelValues("hit").Add(float64(n))
	}
}

func AddCacheMisses(n int) {
	if n > 0 {
		cacheResults.WithLabelValues("miss").Add(float64(n))
	}
}

func ObserveCacheOp(op string, err error, durationSeconds float64) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	cacheOpsTotal.WithLabelValues(op, result).Inc()
	cacheOpDurationSeconds.WithLabelValues(op).Observe(durationSeconds)
}

func IncFeedError(kind string) {
	feedErrorsTotal.WithLabelValues(kind).Inc()
}

func IncFeedStale() { feedSkippedTotal.Inc() }

func SetKnownLayers(n int) { knownLayers.Set(float64(n)) }
