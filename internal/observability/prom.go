package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const ServiceName = "absencehub"

type Prom struct {
	RequestsTotal    *prometheus.CounterVec
	RequestsDuration *prometheus.HistogramVec
	InFlight         *prometheus.GaugeVec
	// DB
	DbQueryDuration *prometheus.HistogramVec
	DbErrorsTotal   *prometheus.CounterVec

	// Email
	EmailsTotal   *prometheus.CounterVec
	EmailDuration *prometheus.HistogramVec

	// Auth
	RateLimitedTotal *prometheus.CounterVec
	TokenFailures    *prometheus.CounterVec
}

func NewProm(reg prometheus.Registerer) *Prom {
	p := &Prom{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ServiceName,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests processed",
			},
			[]string{"method", "route", "status"},
		),
		RequestsDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: ServiceName,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency distributions.",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"method", "route", "status"},
		),
		InFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: ServiceName,
				Name:      "http_in_flight_requests",
				Help:      "Current number of in-flight HTTP requests.",
			},
			[]string{"method", "route"},
		),
		DbQueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: ServiceName,
				Subsystem: "db",
				Name:      "query_duration_seconds",
				Help:      "DB operation latency (logical op, not raw SQL)",
				Buckets:   []float64{0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.35, 0.5, 1, 2, 5},
			},
			[]string{"op", "status"},
		),
		DbErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ServiceName,
				Subsystem: "db",
				Name:      "errors_total",
				Help:      "DB errors by logical op and class.",
			},
			[]string{"op", "class"},
		),
		EmailsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ServiceName,
				Subsystem: "email",
				Name:      "sent_total",
				Help:      "Outbound emails by kind and result.",
			},
			[]string{"kind", "result"}, // result=sent|failed|rejected
		),
		EmailDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: ServiceName,
				Subsystem: "email",
				Name:      "send_duration_seconds",
				Help:      "Time spent handing a message to the mail transport.",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"kind"},
		),
		RateLimitedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ServiceName,
				Subsystem: "auth",
				Name:      "rate_limited_total",
				Help:      "Requests rejected by the auth rate limiter.",
			},
			[]string{"route"},
		),
		TokenFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ServiceName,
				Subsystem: "auth",
				Name:      "token_failures_total",
				Help:      "Collapsed token failures by flow and internal reason.",
			},
			[]string{"flow", "reason"},
		),
	}
	reg.MustRegister(
		p.RequestsTotal, p.RequestsDuration, p.InFlight,
		p.DbQueryDuration, p.DbErrorsTotal,
		p.EmailsTotal, p.EmailDuration,
		p.RateLimitedTotal, p.TokenFailures,
	)

	return p
}

// ObserveEmail records one send attempt.
func (p *Prom) ObserveEmail(kind, result string, d time.Duration) {
	p.EmailsTotal.WithLabelValues(kind, result).Inc()
	if result != "rejected" {
		p.EmailDuration.WithLabelValues(kind).Observe(d.Seconds())
	}
}

func (p *Prom) GinHandleMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()

		// route template is only available after routing; best effort:
		route := ctx.FullPath()

		if route == "" {
			route = "unmatched"
		}

		method := ctx.Request.Method
		p.InFlight.WithLabelValues(method, route).Inc()
		defer p.InFlight.WithLabelValues(method, route).Dec()
		ctx.Next()

		status := strconv.Itoa(ctx.Writer.Status())
		secs := time.Since(start).Seconds()

		p.RequestsTotal.WithLabelValues(method, route, status).Inc()
		p.RequestsDuration.WithLabelValues(method, route, status).Observe(secs)
	}
}
