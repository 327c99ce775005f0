package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "skillgate_requests_total",
		Help: "Total number of HTTP requests.",
	}, []string{"method", "path", "status"})

	requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "skillgate_request_duration_seconds",
		Help:    "HTTP request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	dispatchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "skillgate_dispatches_total",
		Help: "Total number of skill dispatches by tier and result status.",
	}, []string{"tier", "status"})

	catalogSkillsTotal = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "skillgate_catalog_skills_total",
		Help: "Number of skills in the live catalog by tier.",
	}, []string{"tier"})

	activeTokensTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "skillgate_active_tokens_total",
		Help: "Number of active (non-revoked, non-expired) access tokens.",
	})

	auditChainBreaksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "skillgate_audit_chain_breaks_total",
		Help: "Number of audit chain verifications that found a broken link.",
	})
)

func init() {
	prometheus.MustRegister(requestsTotal, requestDuration, dispatchesTotal,
		catalogSkillsTotal, activeTokensTotal, auditChainBreaksTotal)
}

// MetricsHandler returns the Prometheus metrics HTTP handler.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// metricsMiddleware records request metrics.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rr := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rr, r)

		dur := time.Since(start).Seconds()
		status := strconv.Itoa(rr.statusCode)
		requestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		requestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(dur)
	})
}
