package redisx

import "time"

const (
	// Cart document per customer: cart:{customer_id} -> JSON
	KeyCart = "cart:%s"

	// Webhook dedup fast path: dedup:webhook:{txn_id}:{status}
	KeyWebhookDedup = "dedup:webhook:%s:%s"
)

var (
	// Redis TTL on cart keys carries a grace over the logical TTL so an
	// expired cart can still be reported as expired rather than missing.
	TTLCartGrace = 24 * time.Hour

	TTLWebhookDedup = 48 * time.Hour
)
