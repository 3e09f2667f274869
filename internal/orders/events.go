package orders

import "context"

// Notification event names emitted to the delivery collaborator.
const (
	EventOrderCreated     = "OrderCreated"
	EventOrderAccepted    = "OrderAccepted"
	EventOrderDeclined    = "OrderDeclined"
	EventOrderReady       = "OrderReady"
	EventOrderExpired     = "OrderExpired"
	EventOrderCancelled   = "OrderCancelled"
	EventOrderCompleted   = "OrderCompleted"
	EventPaymentSucceeded = "PaymentSucceeded"
	EventPaymentFailed    = "PaymentFailed"
)

// Notifier delivers fire-and-forget events to the notification collaborator.
// Delivery failures never fail or roll back a core transition, so Notify
// returns nothing.
type Notifier interface {
	Notify(ctx context.Context, event string, o Order)
}

// NopNotifier drops every event.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, string, Order) {}
