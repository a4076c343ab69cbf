package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cart_checkout"

type Metrics struct {
	Requests       *prometheus.CounterVec
	LatencyMS      *prometheus.HistogramVec
	Purchases      *prometheus.CounterVec
	SkippedItems   prometheus.Counter
	StockConflicts prometheus.Counter

	registry *prometheus.Registry
}

// New registers every collector on reg. Tests pass a fresh registry so
// they never collide with each other.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"route"}),
		Purchases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purchases_total",
			Help:      "Completed purchases by outcome (full, partial, empty).",
		}, []string{"outcome"}),
		SkippedItems: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purchase_skipped_items_total",
			Help:      "Line items left in the cart for lack of stock.",
		}),
		StockConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_update_conflicts_total",
			Help:      "Conditional stock updates rejected because stock moved.",
		}),
		registry: reg,
	}

	reg.MustRegister(m.Requests, m.LatencyMS, m.Purchases, m.SkippedItems, m.StockConflicts)
	return m
}

// NewWithRuntime also exports Go runtime and process collectors.
func NewWithRuntime() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return New(reg)
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObservePurchase records one finished purchase. Safe on a nil receiver.
func (m *Metrics) ObservePurchase(purchased, skipped int) {
	if m == nil {
		return
	}
	outcome := "full"
	switch {
	case purchased == 0:
		outcome = "empty"
	case skipped > 0:
		outcome = "partial"
	}
	m.Purchases.WithLabelValues(outcome).Inc()
	m.SkippedItems.Add(float64(skipped))
}

func (m *Metrics) ObserveStockConflict() {
	if m == nil {
		return
	}
	m.StockConflicts.Inc()
}

// Middleware counts requests by chi route pattern, not raw path, so ids
// in the URL do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.Requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.LatencyMS.WithLabelValues(route).Observe(float64(time.Since(start).Milliseconds()))
	})
}
