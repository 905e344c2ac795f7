package metrics

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ctxKey string

const (
	routeLabelKey   ctxKey = "metrics_route"
	requestIDCtxKey ctxKey = "metrics_request_id"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "powerchat_http_requests_total",
		Help: "Total number of HTTP requests processed.",
	}, []string{"method", "route"})

	httpErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "powerchat_http_errors_total",
		Help: "Total number of HTTP requests resulting in server errors.",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "powerchat_http_request_duration_seconds",
		Help:    "Histogram of latencies for HTTP requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	dbLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "powerchat_db_latency_seconds",
		Help:    "Histogram of database operation latencies.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "route"})

	chatMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "powerchat_chat_messages_total",
		Help: "Chat messages persisted, by kind (text, image, share).",
	}, []string{"kind"})

	icsDocumentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "powerchat_ics_documents_total",
		Help: "Calendar documents delivered, by delivery mode and outcome.",
	}, []string{"mode", "outcome"})

	meetingCapturesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "powerchat_meeting_captures_total",
		Help: "Meeting capture attempts, by outcome.",
	}, []string{"outcome"})

	realtimeSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "powerchat_realtime_subscribers",
		Help: "Live realtime chat subscriptions.",
	})

	realtimeDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "powerchat_realtime_dropped_total",
		Help: "Realtime events dropped because a subscriber buffer was full.",
	})

	rateLimitedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "powerchat_rate_limited_total",
		Help: "Requests rejected by a rate limiter.",
	}, []string{"limiter"})
)

// Middleware records request metrics and enriches the context with labels for downstream instrumentation.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := routePattern(r)
			reqID := middleware.GetReqID(r.Context())

			ctx := context.WithValue(r.Context(), routeLabelKey, route)
			if reqID != "" {
				ctx = context.WithValue(ctx, requestIDCtxKey, reqID)
			}

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			method := r.Method
			duration := time.Since(start).Seconds()
			statusCode := strconv.Itoa(status)

			httpRequestsTotal.WithLabelValues(method, route).Inc()
			httpRequestDuration.WithLabelValues(method, route, statusCode).Observe(duration)
			if status >= http.StatusInternalServerError {
				httpErrorsTotal.WithLabelValues(method, route, statusCode).Inc()
			}
		})
	}
}

// Handler exposes the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveDBLatency records database latency for a given operation, associating it with request labels when available.
func ObserveDBLatency(ctx context.Context, operation string, start time.Time) {
	route := routeFromContext(ctx)
	dbLatency.WithLabelValues(operation, route).Observe(time.Since(start).Seconds())
}

// IncChatMessage counts a persisted chat message.
func IncChatMessage(kind string) {
	chatMessagesTotal.WithLabelValues(kind).Inc()
}

// IncICSDocument counts a calendar document delivery attempt.
func IncICSDocument(mode, outcome string) {
	icsDocumentsTotal.WithLabelValues(mode, outcome).Inc()
}

// IncMeetingCapture counts a capture outcome: persisted, invalid, failed or duplicate.
func IncMeetingCapture(outcome string) {
	meetingCapturesTotal.WithLabelValues(outcome).Inc()
}

// AddRealtimeSubscribers moves the live subscription gauge by delta.
func AddRealtimeSubscribers(delta int) {
	realtimeSubscribers.Add(float64(delta))
}

func IncRealtimeDropped() {
	realtimeDropped.Inc()
}

func IncRateLimited(limiter string) {
	rateLimitedTotal.WithLabelValues(limiter).Inc()
}

// RequestIDFromContext extracts the request ID stored by the metrics middleware.
func RequestIDFromContext(ctx context.Context) string {
	if reqID, ok := ctx.Value(requestIDCtxKey).(string); ok {
		return reqID
	}
	return ""
}

func routeFromContext(ctx context.Context) string {
	if route, ok := ctx.Value(routeLabelKey).(string); ok && route != "" {
		return route
	}
	return "unknown"
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := strings.TrimSpace(rctx.RoutePattern()); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}
