package notify

import (
	"testing"

	"github.com/resqbox/resqbox/internal/orders"
)

func TestEveryEventHasATopic(t *testing.T) {
	events := []string{
		orders.EventOrderCreated,
		orders.EventOrderAccepted,
		orders.EventOrderDeclined,
		orders.EventOrderReady,
		orders.EventOrderExpired,
		orders.EventOrderCancelled,
		orders.EventOrderCompleted,
		orders.EventPaymentSucceeded,
		orders.EventPaymentFailed,
	}

	consumed := make(map[string]bool)
	for _, topic := range AllTopics() {
		consumed[topic] = true
	}

	for _, event := range events {
		topic, ok := topicByEvent[event]
		if !ok {
			t.Errorf("event %s has no topic", event)
			continue
		}
		if !consumed[topic] {
			t.Errorf("topic %s for event %s is not in AllTopics", topic, event)
		}
	}
	if len(topicByEvent) != len(events) {
		t.Errorf("topicByEvent has %d entries, events list has %d", len(topicByEvent), len(events))
	}
}
