package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/resqbox/resqbox/internal/kafka"
	"github.com/resqbox/resqbox/internal/orders"
)

// Publisher emits order lifecycle events onto the bus. It implements
// orders.Notifier; emission is fire-and-forget and never fails the core
// transition it reports on.
type Publisher struct {
	producer *kafkax.Producer
	service  string
	log      *zap.Logger
}

func NewPublisher(producer *kafkax.Producer, service string, log *zap.Logger) *Publisher {
	return &Publisher{producer: producer, service: service, log: log}
}

func (p *Publisher) Notify(_ context.Context, event string, o orders.Order) {
	topic, ok := topicByEvent[event]
	if !ok {
		p.log.Error("unknown notification event", zap.String("event", event))
		return
	}

	reason := o.DeclineReason
	if reason == "" {
		reason = o.CancelReason
	}
	payload, err := json.Marshal(OrderRef{
		OrderID:     o.ID,
		OrderNumber: o.Number,
		CustomerID:  o.CustomerID,
		OutletID:    o.OutletID,
		Status:      string(o.Status),
		TotalCents:  o.TotalCents,
		Reason:      reason,
	})
	if err != nil {
		p.log.Error("encode notification payload", zap.String("event", event), zap.Error(err))
		return
	}

	env, err := json.Marshal(Envelope{
		EventID:       uuid.NewString(),
		EventType:     event,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      p.service,
		CorrelationID: o.ID,
		Payload:       payload,
	})
	if err != nil {
		p.log.Error("encode notification envelope", zap.String("event", event), zap.Error(err))
		return
	}

	p.producer.Publish(topic, PartitionKey(o.ID), env,
		kafkago.Header{Key: "x-event-type", Value: []byte(event)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
