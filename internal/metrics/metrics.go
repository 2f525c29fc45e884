package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// OrderMetrics counts lifecycle outcomes of the order core.
type OrderMetrics struct {
	OrdersCreated        prometheus.Counter
	OrdersCancelled      prometheus.Counter
	CreateFailures       *prometheus.CounterVec
	PaymentNotifications *prometheus.CounterVec
}

// NewOrderMetrics registers the order counters on the given registerer.
// Tests pass a private registry to avoid global-state collisions.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	created := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "orderengine",
		Name:      "orders_created_total",
		Help:      "Total number of successfully created orders.",
	})
	cancelled := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "orderengine",
		Name:      "orders_cancelled_total",
		Help:      "Total number of cancelled orders.",
	})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "orderengine",
		Name:      "order_create_failures_total",
		Help:      "Order creation failures by reason.",
	}, []string{"reason"})
	payments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "orderengine",
		Name:      "payment_notifications_total",
		Help:      "Payment notifications by outcome (applied, replayed, rejected).",
	}, []string{"outcome"})

	reg.MustRegister(created, cancelled, failures, payments)

	return &OrderMetrics{
		OrdersCreated:        created,
		OrdersCancelled:      cancelled,
		CreateFailures:       failures,
		PaymentNotifications: payments,
	}
}

func Handler() http.Handler {
	return promhttp.Handler()
}
