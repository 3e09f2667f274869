package notify

import (
	"encoding/json"
	"time"
)

// Envelope is the versioned wrapper around every notification event.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

// OrderRef is the reference payload carried by every event: enough for the
// notification collaborator to address and render a message, nothing more.
type OrderRef struct {
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	CustomerID  string `json:"customer_id"`
	OutletID    string `json:"outlet_id"`
	Status      string `json:"status"`
	TotalCents  int64  `json:"total_cents"`
	Reason      string `json:"reason,omitempty"`
}
