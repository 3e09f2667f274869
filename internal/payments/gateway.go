package payments

import (
	"context"
	"fmt"
)

// Gateway is the abstract payment gateway capability the orchestrator
// drives. Every call returns a gateway transaction id or a typed failure.
type Gateway interface {
	PreAuthorize(ctx context.Context, req AuthRequest) (txnID string, err error)
	Capture(ctx context.Context, preauthTxnID string, amountCents int64, currency string) (txnID string, err error)
	Void(ctx context.Context, preauthTxnID string) error
	Refund(ctx context.Context, captureTxnID string, amountCents int64, currency string) (txnID string, err error)
}

type AuthRequest struct {
	OrderID        string
	OrderNumber    string
	PaymentMethod  string
	AmountCents    int64
	Currency       string
	IdempotencyKey string
}

// GatewayError is a typed failure from the gateway. Retryable failures
// (timeouts, 5xx) may be retried by the caller; declines may not.
type GatewayError struct {
	Code      string
	Message   string
	Retryable bool
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s: %s", e.Code, e.Message)
}
