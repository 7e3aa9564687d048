package server

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// requestsTotal conta requisições HTTP por método, caminho e status.
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geoproxy_requests_total",
		Help: "Total HTTP requests processed.",
	}, []string{"method", "path", "status"})

	// rateLimitedTotal conta rejeições do rate limiter.
	rateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "geoproxy_rate_limited_total",
		Help: "Total requests rejected by the rate limiter.",
	})

	// upstreamErrors separa falhas do upstream por tipo (status/network/internal).
	upstreamErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geoproxy_upstream_errors_total",
		Help: "Total upstream geocoding failures by kind.",
	}, []string{"kind"})

	// upstreamDuration mede a latência das chamadas ao serviço de geocodificação.
	upstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "geoproxy_upstream_duration_seconds",
		Help:    "Time spent on upstream geocoding calls.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 15},
	}, []string{"endpoint"})
)

// RateLimited é o hook plugado em ratelimit.Options.OnReject.
func RateLimited(string) { rateLimitedTotal.Inc() }

// Metrics registra contagem de requisições por método, caminho e status.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		requestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(sw.status)).Inc()
	})
}
