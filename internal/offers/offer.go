package offers

import (
	"errors"
	"time"
)

var (
	ErrNotFound   = errors.New("offers: offer not found")
	ErrInactive   = errors.New("offers: offer not active")
	ErrOutOfStock = errors.New("offers: out of stock")

	// ErrContention reports a bounded row-lock wait that timed out. Retryable,
	// distinct from ErrOutOfStock.
	ErrContention = errors.New("offers: lock contention, retry")
)

// Offer is a limited-quantity sellable bundle tied to one outlet. Quantity
// is mutated only through the Ledger's reservation protocol.
type Offer struct {
	ID                string
	OutletID          string
	Name              string
	PriceCents        int64
	QuantityAvailable int
	IsActive          bool
	IsVisible         bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Sellable reports whether the offer may appear in carts and orders.
func (o Offer) Sellable() bool {
	return o.IsActive && o.IsVisible
}
