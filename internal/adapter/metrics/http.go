package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var httpLabels = []string{"method", "route", "status_code"}

// Routes whose requests are not recorded. An upgraded WebSocket request would be timed for
// the whole life of its connection.
var unrecordedPrefixes = []string{"/metrics", "/health/", "/ws/"}

type HTTPMetrics struct {
	RequestDuration *prometheus.HistogramVec
	RequestsTotal   *prometheus.CounterVec
	InFlightGauge   prometheus.Gauge
}

func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	f := promauto.With(reg)
	return &HTTPMetrics{
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency of HTTP requests by route.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, httpLabels),
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status.",
		}, httpLabels),
		InFlightGauge: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "HTTP requests being served right now.",
		}),
	}
}

func recorded(route string) bool {
	for _, p := range unrecordedPrefixes {
		if strings.HasPrefix(route, p) {
			return false
		}
	}
	return true
}

// Middleware labels requests by their route template, never the raw path, so room ids do
// not become label values.
func (m *HTTPMetrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			route := c.Path()
			if !recorded(route) {
				return next(c)
			}

			m.InFlightGauge.Inc()
			start := time.Now()
			err := next(c)
			elapsed := time.Since(start)
			m.InFlightGauge.Dec()

			labels := prometheus.Labels{
				"method":      c.Request().Method,
				"route":       route,
				"status_code": strconv.Itoa(c.Response().Status),
			}
			m.RequestDuration.With(labels).Observe(elapsed.Seconds())
			m.RequestsTotal.With(labels).Inc()
			return err
		}
	}
}
