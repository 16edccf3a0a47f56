package observability

import (
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yungbote/illumyn-backend/internal/platform/logger"
)

const namespace = "illumyn"

type Metrics struct {
	registry *prometheus.Registry

	apiRequests   *prometheus.CounterVec
	apiLatency    *prometheus.HistogramVec
	apiInflight   prometheus.Gauge
	transitions   *prometheus.CounterVec
	attempts      *prometheus.CounterVec
	attemptTime   *prometheus.HistogramVec
	stageTime     *prometheus.HistogramVec
	backendTime   *prometheus.HistogramVec
	backendTokens *prometheus.CounterVec
	queueDepth    *prometheus.GaugeVec
	blocks        prometheus.Counter
	cacheHits     prometheus.Counter
	rejected      *prometheus.CounterVec
	engagement    *prometheus.CounterVec
	rankingTime   prometheus.Histogram
	rankingSize   prometheus.Gauge
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	v := strings.TrimSpace(os.Getenv("METRICS_ENABLED"))
	if v == "" {
		return false
	}
	return strings.EqualFold(v, "true") || v == "1" || strings.EqualFold(v, "yes")
}

// Current is nil until Init ran with metrics enabled. Every method tolerates a
// nil receiver.
func Current() *Metrics {
	return instance
}

func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = newMetrics()
		if log != nil {
			log.Info("prometheus metrics enabled")
		}
	})
	return instance
}

func newMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "api", Name: "requests_total",
			Help: "API requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "api", Name: "request_duration_seconds",
			Help:    "API request latency by method, route and status.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"method", "route", "status"}),
		apiInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "api", Name: "inflight_requests",
			Help: "In-flight API requests.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "jobs", Name: "transitions_total",
			Help: "Job state transitions by lane and target state.",
		}, []string{"lane", "state"}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "jobs", Name: "attempts_total",
			Help: "Job attempts by lane and outcome.",
		}, []string{"lane", "outcome"}),
		attemptTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "jobs", Name: "attempt_duration_seconds",
			Help:    "Wall-clock time of one job attempt.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30, 60, 90, 120},
		}, []string{"lane", "outcome"}),
		stageTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "jobs", Name: "stage_duration_seconds",
			Help:    "Time spent per pipeline stage.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"lane", "stage", "status"}),
		backendTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "backend", Name: "request_duration_seconds",
			Help:    "Generation backend latency by backend, content type and status.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60, 90},
		}, []string{"backend", "content_type", "status"}),
		backendTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "backend", Name: "tokens_total",
			Help: "Tokens used by the generation backend.",
		}, []string{"model", "direction"}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "jobs", Name: "queue_depth",
			Help: "Jobs waiting per lane.",
		}, []string{"lane"}),
		blocks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "blocks", Name: "committed_total",
			Help: "Blocks written to the repository.",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "jobs", Name: "cache_hits_total",
			Help: "Submissions answered from a fresh cached block.",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "jobs", Name: "rejected_total",
			Help: "Submissions rejected before a job ran, by reason.",
		}, []string{"reason"}),
		engagement: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "blocks", Name: "engagement_total",
			Help: "Engagement events recorded against blocks, by kind.",
		}, []string{"kind"}),
		rankingTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "ranking", Name: "recompute_duration_seconds",
			Help:    "Trending recompute duration.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		rankingSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "ranking", Name: "entries",
			Help: "Entries in the current trending snapshot.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.transitions, m.attempts, m.attemptTime, m.stageTime,
		m.backendTime, m.backendTokens, m.queueDepth,
		m.blocks, m.cacheHits, m.rejected, m.engagement,
		m.rankingTime, m.rankingSize,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveAPI skips the latency histogram when dur is negative.
func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "0"
	}
	m.apiRequests.WithLabelValues(method, route, status).Inc()
	if dur >= 0 {
		m.apiLatency.WithLabelValues(method, route, status).Observe(dur.Seconds())
	}
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) IncTransition(lane, state string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(orUnknown(lane), orUnknown(state)).Inc()
}

func (m *Metrics) ObserveAttempt(lane, outcome string, dur time.Duration) {
	if m == nil {
		return
	}
	lane, outcome = orUnknown(lane), orUnknown(outcome)
	m.attempts.WithLabelValues(lane, outcome).Inc()
	m.attemptTime.WithLabelValues(lane, outcome).Observe(dur.Seconds())
}

func (m *Metrics) ObserveStage(lane, stage, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.stageTime.WithLabelValues(orUnknown(lane), orUnknown(stage), orUnknown(status)).Observe(dur.Seconds())
}

func (m *Metrics) ObserveBackend(backend, contentType, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.backendTime.WithLabelValues(orUnknown(backend), orUnknown(contentType), orUnknown(status)).Observe(dur.Seconds())
}

func (m *Metrics) AddBackendTokens(model string, input, output int) {
	if m == nil {
		return
	}
	model = orUnknown(model)
	if input > 0 {
		m.backendTokens.WithLabelValues(model, "input").Add(float64(input))
	}
	if output > 0 {
		m.backendTokens.WithLabelValues(model, "output").Add(float64(output))
	}
}

func (m *Metrics) SetQueueDepth(lane string, n int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(orUnknown(lane)).Set(float64(n))
}

func (m *Metrics) IncBlocksCommitted() {
	if m == nil {
		return
	}
	m.blocks.Inc()
}

func (m *Metrics) IncCacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

func (m *Metrics) IncRejected(reason string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(orUnknown(reason)).Inc()
}

func (m *Metrics) IncEngagement(kind string) {
	if m == nil {
		return
	}
	m.engagement.WithLabelValues(orUnknown(kind)).Inc()
}

func (m *Metrics) ObserveRanking(dur time.Duration, entries int) {
	if m == nil {
		return
	}
	m.rankingTime.Observe(dur.Seconds())
	m.rankingSize.Set(float64(entries))
}

func orUnknown(v string) string {
	if strings.TrimSpace(v) == "" {
		return "unknown"
	}
	return v
}
