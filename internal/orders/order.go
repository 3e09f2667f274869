package orders

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound          = errors.New("orders: order not found")
	ErrAccessDenied      = errors.New("orders: caller not authorized for this order")
	ErrInvalidPickupCode = errors.New("orders: pickup code mismatch")
	ErrInvalidRating     = errors.New("orders: rating must be between 1 and 5")

	// ErrInvalidStatus rejects a transition outside the table below. Under
	// races (outlet action vs expiry sweep) the lock loser fails with this.
	ErrInvalidStatus = errors.New("orders: invalid status transition")
)

type Status string

const (
	StatusCreated           Status = "CREATED"
	StatusPendingAcceptance Status = "PENDING_ACCEPTANCE"
	StatusPaid              Status = "PAID"
	StatusPreparing         Status = "PREPARING"
	StatusReadyForPickup    Status = "READY_FOR_PICKUP"
	StatusPickedUp          Status = "PICKED_UP"
	StatusCompleted         Status = "COMPLETED"
	StatusDeclined          Status = "DECLINED"
	StatusCancelled         Status = "CANCELLED"
	StatusExpired           Status = "EXPIRED"
	StatusRefunded          Status = "REFUNDED"
)

var validNext = map[Status]map[Status]bool{
	StatusCreated:           {StatusPendingAcceptance: true, StatusCancelled: true},
	StatusPendingAcceptance: {StatusPaid: true, StatusDeclined: true, StatusCancelled: true, StatusExpired: true},
	StatusPaid:              {StatusPreparing: true, StatusRefunded: true},
	StatusPreparing:         {StatusReadyForPickup: true},
	StatusReadyForPickup:    {StatusPickedUp: true, StatusExpired: true},
	StatusPickedUp:          {StatusCompleted: true},
	StatusCompleted:         {},
	StatusDeclined:          {},
	StatusCancelled:         {},
	StatusExpired:           {},
	StatusRefunded:          {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// Terminal reports whether the status admits no further transition.
func (s Status) Terminal() bool {
	return len(validNext[s]) == 0
}

// Order is created from a cart snapshot. Identity, number and lines are
// immutable after creation; only status, timestamps and terminal-reason
// fields change.
type Order struct {
	ID         string
	Number     string
	CustomerID string
	OutletID   string
	Status     Status
	Lines      []Line

	SubtotalCents   int64
	ServiceFeeCents int64
	TotalCents      int64

	PickupCode             string
	ShopAcceptanceDeadline *time.Time
	PickupDeadline         *time.Time
	PickedUpAt             *time.Time

	DeclineReason string
	CancelReason  string
	Rating        *int
	RatingComment string

	// RefundFlagged marks pickup-timeout expiries for downstream refund policy.
	RefundFlagged bool
	// InventoryReleased guards against double-crediting the ledger.
	InventoryReleased bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Line is an order line value record; lines never hold a back-reference to
// the order and are never mutated after creation.
type Line struct {
	OfferID        string
	Quantity       int
	UnitPriceCents int64
	LineTotalCents int64
}

func (o *Order) transitionTo(to Status, now time.Time) error {
	if !CanTransition(o.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatus, o.Status, to)
	}
	o.Status = to
	o.UpdatedAt = now
	return nil
}
