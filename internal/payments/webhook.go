package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"go.uber.org/zap"

	"github.com/resqbox/resqbox/internal/clock"
	"github.com/resqbox/resqbox/internal/metrics"
	"github.com/resqbox/resqbox/internal/redisx"
)

// Deduper is the fast path in front of the database truth. Seen must only
// report keys that Mark recorded; Mark is called strictly after the
// callback's transaction committed.
type Deduper interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string) error
}

// WebhookPayload is the inbound gateway callback body (spec'd by the
// gateway, field names included).
type WebhookPayload struct {
	TransactionID  string `json:"transactionId"`
	OrderReference string `json:"orderReference"`
	Status         string `json:"status"` // SUCCESS | FAILED | PENDING | CANCELLED
	AmountCents    int64  `json:"amount"`
	Currency       string `json:"currency"`
	Signature      string `json:"signature"`
}

// Sign computes the HMAC-SHA256 hex signature over the canonical payload
// fields. The sandbox gateway and tests use it to produce valid callbacks.
func Sign(secret string, p WebhookPayload) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%s|%s|%s|%d|%s", p.TransactionID, p.OrderReference, p.Status, p.AmountCents, p.Currency)
	return hex.EncodeToString(mac.Sum(nil))
}

// WebhookProcessor applies gateway callbacks to payment records. Delivery is
// at-least-once, out-of-order, and unauthenticated until proven otherwise,
// so: verify the signature before touching state, dedup repeats, and refuse
// to move a payment backwards.
type WebhookProcessor struct {
	store  Store
	dedup  Deduper
	secret string
	clock  clock.Clock
	log    *zap.Logger
}

func NewWebhookProcessor(store Store, dedup Deduper, secret string, clk clock.Clock, log *zap.Logger) *WebhookProcessor {
	return &WebhookProcessor{store: store, dedup: dedup, secret: secret, clock: clk, log: log}
}

// Handle processes one callback. A repeated delivery of a callback whose
// effect already holds returns nil without side effects.
func (w *WebhookProcessor) Handle(ctx context.Context, p WebhookPayload) error {
	if !hmac.Equal([]byte(Sign(w.secret, p)), []byte(p.Signature)) {
		metrics.WebhookRejected.Inc()
		w.log.Warn("webhook rejected: bad signature",
			zap.String("transaction_id", p.TransactionID),
			zap.String("order_reference", p.OrderReference),
			zap.String("status", p.Status),
			zap.Int64("amount", p.AmountCents),
			zap.String("currency", p.Currency))
		return ErrBadSignature
	}

	// Fast path: this exact (txn, status) pair was already applied. The
	// database transition table below stays the source of truth.
	dkey := fmt.Sprintf(redisx.KeyWebhookDedup, p.TransactionID, p.Status)
	if w.dedup != nil {
		if seen, _ := w.dedup.Seen(ctx, dkey); seen {
			return nil
		}
	}

	err := w.store.WithTx(ctx, func(txCtx context.Context) error {
		payment, err := w.store.GetByTransactionForUpdate(txCtx, p.TransactionID)
		if err != nil {
			return fmt.Errorf("webhook lookup txn %s: %w", p.TransactionID, err)
		}

		target, ok := w.targetStatus(payment, p)
		if !ok {
			// Callback carries no transition for us (PENDING heartbeat).
			return nil
		}
		if payment.Status == target {
			return nil // already there: no-op success
		}
		if !CanTransition(payment.Status, target) {
			if payment.Status.Terminal() || payment.Status == StatusCaptured {
				// Delayed or duplicate callback arriving after a later state.
				// Never move backwards; acknowledge and drop.
				return nil
			}
			return fmt.Errorf("%w: webhook %s -> %s", ErrInvalidStatus, payment.Status, target)
		}

		now := w.clock.Now()
		payment.Status = target
		payment.UpdatedAt = now
		switch target {
		case StatusAuthorized:
			payment.AuthorizedAt = &now
		case StatusCaptured:
			payment.CapturedAt = &now
		case StatusFailed:
			payment.FailureReason = "gateway callback: " + p.Status
		case StatusVoided:
			payment.VoidedAt = &now
		}
		return w.store.Update(txCtx, payment)
	})
	if err != nil {
		// Never record a failed delivery: the gateway's redelivery must get
		// another shot at the database.
		return err
	}

	if w.dedup != nil {
		if merr := w.dedup.Mark(ctx, dkey); merr != nil {
			w.log.Warn("webhook dedup mark failed", zap.String("key", dkey), zap.Error(merr))
		}
	}
	return nil
}

// targetStatus maps a callback status onto the payment transition it
// implies, given which transaction the callback refers to.
func (w *WebhookProcessor) targetStatus(payment Payment, p WebhookPayload) (Status, bool) {
	switch p.Status {
	case "SUCCESS":
		if p.TransactionID == payment.CaptureTxnID && payment.CaptureTxnID != "" {
			return StatusCaptured, true
		}
		return StatusAuthorized, true
	case "FAILED":
		return StatusFailed, true
	case "CANCELLED":
		return StatusVoided, true
	default: // PENDING and anything unknown
		return "", false
	}
}
