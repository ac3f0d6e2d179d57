package metrics

import (
	"context"
	"strconv"
	"sync"
	"time"

	"payment-webhooks/internal/models"
	"payment-webhooks/internal/services"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	RequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_requests_latency_seconds",
			Help:    "Latency of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method", "status"},
	)

	// Provider callbacks
	CallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_callbacks_total",
			Help: "Provider callbacks by operation and result code",
		},
		[]string{"provider", "operation", "code"}, // code 0 is success
	)
	CallbackDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_callback_duration_seconds",
			Help:    "Time spent reconciling a provider callback.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "operation"},
	)

	// Lifecycle
	TransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_transaction_transitions_total",
			Help: "Transaction lifecycle events",
		},
		[]string{"provider", "event"},
	)

	registerOnce sync.Once
)

// Handler serves /metrics
var Handler = promhttp.Handler

// Init registers every collector with the default registry. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(RequestsTotal)
		prometheus.MustRegister(RequestLatency)
		prometheus.MustRegister(CallbacksTotal)
		prometheus.MustRegister(CallbackDuration)
		prometheus.MustRegister(TransitionsTotal)
	})
}

// ObserveCallback records one callback outcome. It matches services.CallbackObserver.
func ObserveCallback(provider models.Provider, operation string, code int, elapsed time.Duration) {
	CallbacksTotal.WithLabelValues(string(provider), operation, strconv.Itoa(code)).Inc()
	CallbackDuration.WithLabelValues(string(provider), operation).Observe(elapsed.Seconds())
}

var _ services.CallbackObserver = ObserveCallback

// TransitionHooks counts state changes as they are committed
func TransitionHooks() services.Hooks {
	return services.NewEventHooks(func(_ context.Context, kind services.HookKind, e services.HookEvent) {
		switch kind {
		case services.HookTransactionCreated, services.HookPaymentSucceeded, services.HookPaymentCancelled:
			TransitionsTotal.WithLabelValues(string(e.Provider), string(kind)).Inc()
		}
	})
}
