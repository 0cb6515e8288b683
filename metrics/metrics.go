package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Lookup outcome labels.
const (
	OutcomeHit     = "hit"
	OutcomeMiss    = "miss"
	OutcomeError   = "error"
	OutcomeSkipped = "skipped"
)

// Token request result labels.
const (
	TokenCacheHit = "cache_hit"
	TokenFetched  = "fetched"
	TokenFailed   = "failed"
)

// Options controls construction of the connector collectors.
type Options struct {
	Registerer prometheus.Registerer
	Namespace  string
	Buckets    []float64
}

// Metrics groups the Prometheus collectors for lookups and token requests.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	lookups  *prometheus.CounterVec
	tokens   *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// New constructs collectors and registers them with the supplied registerer.
// Collectors that are already registered are reused.
func New(opts Options) (*Metrics, error) {
	namespace := opts.Namespace
	if namespace == "" {
		namespace = "breach_lookup"
	}

	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	buckets := opts.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	lookups, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "entities_total",
		Help:      "Entities processed by the lookup orchestrator partitioned by entity type and outcome.",
	}, []string{"type", "outcome"}))
	if err != nil {
		return nil, err
	}

	tokens, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_requests_total",
		Help:      "OAuth token resolutions partitioned by result.",
	}, []string{"result"}))
	if err != nil {
		return nil, err
	}

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "api_request_duration_seconds",
		Help:      "Duration of incident API requests partitioned by entity type.",
		Buckets:   buckets,
	}, []string{"type"})
	if err := reg.Register(duration); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return nil, err
		}
		existing, ok := already.ExistingCollector.(*prometheus.HistogramVec)
		if !ok {
			return nil, err
		}
		duration = existing
	}

	return &Metrics{lookups: lookups, tokens: tokens, duration: duration}, nil
}

func registerCounterVec(reg prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return nil, err
		}
		existing, ok := already.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, err
		}
		return existing, nil
	}
	return c, nil
}

// ObserveEntity counts one entity outcome.
func (m *Metrics) ObserveEntity(entityType, outcome string) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(entityType, outcome).Inc()
}

// ObserveToken counts one token resolution.
func (m *Metrics) ObserveToken(result string) {
	if m == nil {
		return
	}
	m.tokens.WithLabelValues(result).Inc()
}

// ObserveRequest records the latency of one incident API call.
func (m *Metrics) ObserveRequest(entityType string, d time.Duration) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(entityType).Observe(d.Seconds())
}

// EntityCount returns the counter for one entity type and outcome.
func (m *Metrics) EntityCount(entityType, outcome string) prometheus.Counter {
	return m.lookups.WithLabelValues(entityType, outcome)
}

// TokenCount returns the token counter for result.
func (m *Metrics) TokenCount(result string) prometheus.Counter {
	return m.tokens.WithLabelValues(result)
}
