package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the service's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	renders         *prometheus.CounterVec
	renderDuration  *prometheus.HistogramVec
	cacheLookups    *prometheus.CounterVec
	tokenFailures   prometheus.Counter
	claims          *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coupon_http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "coupon_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coupon_renders_total",
			Help: "Coupon images rendered, by variant and result.",
		}, []string{"variant", "result"}),
		renderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "coupon_render_duration_seconds",
			Help:    "Time spent rendering a coupon image.",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25},
		}, []string{"variant"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coupon_image_cache_lookups_total",
			Help: "Image cache lookups by result (hit, miss, fallback).",
		}, []string{"result"}),
		tokenFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coupon_token_decode_failures_total",
			Help: "Tokens rejected by the codec.",
		}),
		claims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coupon_claims_total",
			Help: "Claim requests by result (claimed, not_found).",
		}, []string{"result"}),
	}

	reg.MustRegister(m.requests, m.requestDuration, m.renders, m.renderDuration, m.cacheLookups, m.tokenFailures, m.claims)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) ObserveRender(variant string, d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.renders.WithLabelValues(variant, result).Inc()
	if err == nil {
		m.renderDuration.WithLabelValues(variant).Observe(d.Seconds())
	}
}

func (m *Metrics) CacheLookup(result string) {
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) TokenFailure() {
	m.tokenFailures.Inc()
}

func (m *Metrics) Claim(found bool) {
	if found {
		m.claims.WithLabelValues("claimed").Inc()
		return
	}
	m.claims.WithLabelValues("not_found").Inc()
}
