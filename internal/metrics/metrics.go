package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "resqbox", Subsystem: "orders",
		Name: "created_total", Help: "Orders created successfully.",
	})

	OrderTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "resqbox", Subsystem: "orders",
		Name: "transitions_total", Help: "Order status transitions by target status.",
	}, []string{"to"})

	PaymentCaptures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "resqbox", Subsystem: "payments",
		Name: "captures_total", Help: "Payments captured.",
	})

	PaymentVoids = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "resqbox", Subsystem: "payments",
		Name: "voids_total", Help: "Pre-authorizations voided.",
	})

	WebhookRejected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "resqbox", Subsystem: "payments",
		Name: "webhook_rejected_total", Help: "Webhooks rejected on signature verification.",
	})

	SweepErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "resqbox", Subsystem: "sweeper",
		Name: "errors_total", Help: "Per-order sweep failures by sweep kind.",
	}, []string{"sweep"})

	SweepExpired = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "resqbox", Subsystem: "sweeper",
		Name: "expired_total", Help: "Orders forced to a timed-out transition by sweep kind.",
	}, []string{"sweep"})
)
