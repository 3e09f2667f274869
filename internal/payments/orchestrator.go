package payments

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/resqbox/resqbox/internal/clock"
	"github.com/resqbox/resqbox/internal/metrics"
)

// Store is the persistence the orchestrator needs. The pgx Repo implements
// it; calls join the caller's ambient transaction when one is in flight.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	Insert(ctx context.Context, p Payment) error
	Update(ctx context.Context, p Payment) error
	GetByOrderForUpdate(ctx context.Context, orderID string) (Payment, error)
	GetByTransactionForUpdate(ctx context.Context, txnID string) (Payment, error)
}

// Orchestrator drives the gateway through pre-authorize, capture, void and
// refund, and owns the payment record's state and idempotency.
type Orchestrator struct {
	store   Store
	gateway Gateway
	clock   clock.Clock
	log     *zap.Logger
}

func NewOrchestrator(store Store, gw Gateway, clk clock.Clock, log *zap.Logger) *Orchestrator {
	return &Orchestrator{store: store, gateway: gw, clock: clk, log: log}
}

// PreAuthorize creates the payment record in PENDING and asks the gateway
// for a hold. On gateway failure the record stays behind in FAILED with the
// reason, so the attempt is recoverable and auditable.
func (o *Orchestrator) PreAuthorize(ctx context.Context, orderID, orderNumber, method string, amountCents int64, currency string) (Payment, error) {
	now := o.clock.Now()
	p := Payment{
		ID:             uuid.NewString(),
		OrderID:        orderID,
		Status:         StatusPending,
		AmountCents:    amountCents,
		Currency:       currency,
		IdempotencyKey: uuid.NewString(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := o.store.Insert(ctx, p); err != nil {
		return Payment{}, err
	}

	txnID, err := o.gateway.PreAuthorize(ctx, AuthRequest{
		OrderID:        orderID,
		OrderNumber:    orderNumber,
		PaymentMethod:  method,
		AmountCents:    amountCents,
		Currency:       currency,
		IdempotencyKey: p.IdempotencyKey,
	})
	if err != nil {
		p.Status = StatusFailed
		p.FailureReason = err.Error()
		p.UpdatedAt = o.clock.Now()
		if uerr := o.store.Update(ctx, p); uerr != nil {
			return Payment{}, uerr
		}
		o.log.Warn("pre-authorization failed",
			zap.String("order_id", orderID), zap.Error(err))
		return p, fmt.Errorf("pre-authorize order %s: %w", orderID, err)
	}

	at := o.clock.Now()
	p.Status = StatusAuthorized
	p.PreauthTxnID = txnID
	p.AuthorizedAt = &at
	p.UpdatedAt = at
	if err := o.store.Update(ctx, p); err != nil {
		return Payment{}, err
	}
	return p, nil
}

// Capture converts the hold into a funds transfer. Only legal from
// AUTHORIZED; on gateway failure the payment moves to FAILED and the caller
// must decline the order.
func (o *Orchestrator) Capture(ctx context.Context, orderID string) (Payment, error) {
	p, err := o.store.GetByOrderForUpdate(ctx, orderID)
	if err != nil {
		return Payment{}, err
	}
	if !CanTransition(p.Status, StatusCaptured) {
		return Payment{}, fmt.Errorf("%w: %s -> %s", ErrInvalidStatus, p.Status, StatusCaptured)
	}

	txnID, err := o.gateway.Capture(ctx, p.PreauthTxnID, p.AmountCents, p.Currency)
	if err != nil {
		p.Status = StatusFailed
		p.FailureReason = err.Error()
		p.UpdatedAt = o.clock.Now()
		if uerr := o.store.Update(ctx, p); uerr != nil {
			return Payment{}, uerr
		}
		o.log.Warn("capture failed",
			zap.String("order_id", orderID), zap.String("preauth_txn", p.PreauthTxnID), zap.Error(err))
		return p, fmt.Errorf("capture order %s: %w", orderID, err)
	}

	at := o.clock.Now()
	p.Status = StatusCaptured
	p.CaptureTxnID = txnID
	p.CapturedAt = &at
	p.UpdatedAt = at
	if err := o.store.Update(ctx, p); err != nil {
		return Payment{}, err
	}
	metrics.PaymentCaptures.Inc()
	return p, nil
}

// Void releases the pre-authorization without capture. Calling it on an
// already-voided payment is a no-op success.
func (o *Orchestrator) Void(ctx context.Context, orderID string) (Payment, error) {
	p, err := o.store.GetByOrderForUpdate(ctx, orderID)
	if err != nil {
		return Payment{}, err
	}
	if p.Status == StatusVoided {
		return p, nil
	}
	if p.Status == StatusPending {
		// A crash before the gateway answered leaves the record in PENDING
		// with no transaction id to void. Close it as failed; a hold the
		// gateway did place expires on its own.
		p.Status = StatusFailed
		p.FailureReason = "abandoned before authorization"
		p.UpdatedAt = o.clock.Now()
		if err := o.store.Update(ctx, p); err != nil {
			return Payment{}, err
		}
		return p, nil
	}
	if !CanTransition(p.Status, StatusVoided) {
		return Payment{}, fmt.Errorf("%w: %s -> %s", ErrInvalidStatus, p.Status, StatusVoided)
	}

	if p.PreauthTxnID != "" {
		if err := o.gateway.Void(ctx, p.PreauthTxnID); err != nil {
			o.log.Warn("void failed",
				zap.String("order_id", orderID), zap.String("preauth_txn", p.PreauthTxnID), zap.Error(err))
			return Payment{}, fmt.Errorf("void order %s: %w", orderID, err)
		}
	}

	at := o.clock.Now()
	p.Status = StatusVoided
	p.VoidedAt = &at
	p.UpdatedAt = at
	if err := o.store.Update(ctx, p); err != nil {
		return Payment{}, err
	}
	metrics.PaymentVoids.Inc()
	return p, nil
}

// Refund reverses a captured payment.
func (o *Orchestrator) Refund(ctx context.Context, orderID string) (Payment, error) {
	p, err := o.store.GetByOrderForUpdate(ctx, orderID)
	if err != nil {
		return Payment{}, err
	}
	if p.Status == StatusRefunded {
		return p, nil
	}
	if !CanTransition(p.Status, StatusRefunded) {
		return Payment{}, fmt.Errorf("%w: %s -> %s", ErrInvalidStatus, p.Status, StatusRefunded)
	}

	if _, err := o.gateway.Refund(ctx, p.CaptureTxnID, p.AmountCents, p.Currency); err != nil {
		o.log.Warn("refund failed",
			zap.String("order_id", orderID), zap.String("capture_txn", p.CaptureTxnID), zap.Error(err))
		return Payment{}, fmt.Errorf("refund order %s: %w", orderID, err)
	}

	at := o.clock.Now()
	p.Status = StatusRefunded
	p.RefundedAt = &at
	p.UpdatedAt = at
	if err := o.store.Update(ctx, p); err != nil {
		return Payment{}, err
	}
	return p, nil
}
