package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	apperrors "github.com/hanzzx311/skyport/internal/platform/errors"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

// Route labels for requests that reach the "/*" catch-all, which serves both
// public assets and the not-found page.
const (
	RouteStatic   = "static"
	RouteNotFound = "not_found"
)

var requestLabels = []string{"method", "route", "status_code"}

// HTTPMetrics records panel request traffic. Health checks, /version and the
// metrics page itself are not recorded.
type HTTPMetrics struct {
	Requests     *prometheus.CounterVec
	Duration     *prometheus.HistogramVec
	ResponseSize *prometheus.HistogramVec
	InFlight     prometheus.Gauge
}

// NewHTTPMetrics registers the request metrics on reg.
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	m := &HTTPMetrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of panel requests, by route and final status.",
		}, requestLabels),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of panel requests in seconds.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, requestLabels),
		ResponseSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "response_size_bytes",
			Help:      "Size of rendered panel responses in bytes.",
			Buckets:   prometheus.ExponentialBuckets(256, 4, 7),
		}, []string{"route"}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of panel requests currently being handled.",
		}),
	}

	reg.MustRegister(m.Requests, m.Duration, m.ResponseSize, m.InFlight)
	return m
}

// Middleware records every routed request. It must run inside the error
// middleware's scope so that errors returned by handlers are still visible.
func (m *HTTPMetrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if unrecorded(c.Path()) {
				return next(c)
			}

			m.InFlight.Inc()
			defer m.InFlight.Dec()

			timer := prometheus.NewTimer(nil)
			err := next(c)
			elapsed := timer.ObserveDuration().Seconds()

			status := StatusOf(c, err)
			route := routeLabel(c.Path(), status)
			method := c.Request().Method

			m.Requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			m.Duration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed)
			if err == nil {
				m.ResponseSize.WithLabelValues(route).Observe(float64(c.Response().Size))
			}
			return err
		}
	}
}

// StatusOf returns the status a request will finish with. A returned error
// that has not been written yet is mapped the same way the error middleware
// and Echo's error handler map it.
func StatusOf(c echo.Context, err error) int {
	if err == nil || c.Response().Committed {
		return c.Response().Status
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return apperrors.StatusOf(err)
}

func unrecorded(path string) bool {
	return path == "/metrics" || path == "/version" || strings.HasPrefix(path, "/health/")
}

func routeLabel(path string, status int) string {
	switch {
	case path == "/*" && status == http.StatusNotFound:
		return RouteNotFound
	case path == "/*":
		return RouteStatic
	case path == "":
		return RouteNotFound
	default:
		return path
	}
}
