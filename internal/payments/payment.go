package payments

import (
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("payments: payment not found")

	// ErrInvalidStatus rejects a transition the payment table does not allow.
	// Webhook handling relies on it to never move a payment backwards.
	ErrInvalidStatus = errors.New("payments: invalid status transition")

	// ErrBadSignature marks a webhook whose signature failed verification.
	// Security event: rejected without mutating state.
	ErrBadSignature = errors.New("payments: webhook signature verification failed")
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusAuthorized Status = "AUTHORIZED"
	StatusCaptured   Status = "CAPTURED"
	StatusFailed     Status = "FAILED"
	StatusVoided     Status = "VOIDED"
	StatusRefunded   Status = "REFUNDED"
)

// FAILED -> VOIDED covers voiding a pre-authorization after a failed capture.
var validNext = map[Status]map[Status]bool{
	StatusPending:    {StatusAuthorized: true, StatusFailed: true},
	StatusAuthorized: {StatusCaptured: true, StatusFailed: true, StatusVoided: true},
	StatusFailed:     {StatusVoided: true},
	StatusCaptured:   {StatusRefunded: true},
	StatusVoided:     {},
	StatusRefunded:   {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return len(validNext[s]) == 0
}

// Payment is one-to-one with an order. At most one non-voided, non-refunded
// payment exists per order (enforced by the unique order_id column).
type Payment struct {
	ID             string
	OrderID        string
	Status         Status
	AmountCents    int64
	Currency       string
	IdempotencyKey string
	PreauthTxnID   string
	CaptureTxnID   string
	FailureReason  string
	AuthorizedAt   *time.Time
	CapturedAt     *time.Time
	VoidedAt       *time.Time
	RefundedAt     *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
