// Package metrics exposes Prometheus collectors for token exchanges and the token cache.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "token_broker"

// Cache lookup outcomes.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

type Metrics struct {
	exchangesTotal   *prometheus.CounterVec
	exchangeDuration *prometheus.HistogramVec
	cacheLookups     *prometheus.CounterVec
	coalescedTotal   prometheus.Counter
	httpRequests     *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
// A nil reg uses prometheus.DefaultRegisterer. Collectors that are already registered are reused.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		exchangesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_exchanges_total",
			Help:      "Token endpoint calls by grant type and result",
		}, []string{"grant_type", "result"}),
		exchangeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "token_exchange_duration_seconds",
			Help:      "Latency of token endpoint calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"grant_type"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_cache_lookups_total",
			Help:      "Token cache lookups by outcome",
		}, []string{"result"}),
		coalescedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_exchanges_coalesced_total",
			Help:      "Resolutions that shared an in-flight exchange instead of issuing their own",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Requests handled by the resource server",
		}, []string{"method", "path", "status"}),
	}

	var err error
	m.exchangesTotal, err = register(reg, m.exchangesTotal)
	if err != nil {
		return nil, err
	}
	m.exchangeDuration, err = register(reg, m.exchangeDuration)
	if err != nil {
		return nil, err
	}
	m.cacheLookups, err = register(reg, m.cacheLookups)
	if err != nil {
		return nil, err
	}
	m.coalescedTotal, err = register(reg, m.coalescedTotal)
	if err != nil {
		return nil, err
	}
	m.httpRequests, err = register(reg, m.httpRequests)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// Handler serves the metrics gathered by g, or the default gatherer when g is nil.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveExchange(grantType, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.exchangesTotal.WithLabelValues(grantType, result).Inc()
	m.exchangeDuration.WithLabelValues(grantType).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveCacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveCoalesced() {
	if m == nil {
		return
	}
	m.coalescedTotal.Inc()
}

func (m *Metrics) ObserveHTTPRequest(method, path string, status int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
}
