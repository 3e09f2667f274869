package notify

import "github.com/resqbox/resqbox/internal/orders"

const (
	TopicOrderCreated     = "order.created"
	TopicOrderAccepted    = "order.accepted"
	TopicOrderDeclined    = "order.declined"
	TopicOrderReady       = "order.ready"
	TopicOrderExpired     = "order.expired"
	TopicOrderCancelled   = "order.cancelled"
	TopicOrderCompleted   = "order.completed"
	TopicPaymentSucceeded = "payment.succeeded"
	TopicPaymentFailed    = "payment.failed"
)

var topicByEvent = map[string]string{
	orders.EventOrderCreated:     TopicOrderCreated,
	orders.EventOrderAccepted:    TopicOrderAccepted,
	orders.EventOrderDeclined:    TopicOrderDeclined,
	orders.EventOrderReady:       TopicOrderReady,
	orders.EventOrderExpired:     TopicOrderExpired,
	orders.EventOrderCancelled:   TopicOrderCancelled,
	orders.EventOrderCompleted:   TopicOrderCompleted,
	orders.EventPaymentSucceeded: TopicPaymentSucceeded,
	orders.EventPaymentFailed:    TopicPaymentFailed,
}

// AllTopics lists every topic the notifier consumes.
func AllTopics() []string {
	return []string{
		TopicOrderCreated, TopicOrderAccepted, TopicOrderDeclined,
		TopicOrderReady, TopicOrderExpired, TopicOrderCancelled,
		TopicOrderCompleted, TopicPaymentSucceeded, TopicPaymentFailed,
	}
}

// PartitionKey keeps all events of one order on one partition, preserving
// per-order ordering.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
