package carts

import (
	"errors"
	"time"
)

var (
	ErrExpired         = errors.New("carts: cart expired")
	ErrEmpty           = errors.New("carts: cart has no valid lines")
	ErrLineNotFound    = errors.New("carts: line not found")
	ErrInvalidQuantity = errors.New("carts: quantity must be at least one")

	// ErrOutletMismatch rejects mixing offers from different outlets in one cart.
	ErrOutletMismatch = errors.New("carts: cart is bound to another outlet")
)

type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusExpired   Status = "EXPIRED"
	StatusConverted Status = "CONVERTED"
	StatusAbandoned Status = "ABANDONED"
)

// Cart holds a customer's pending selections for a single outlet. One cart
// per customer; created lazily on first add.
type Cart struct {
	CustomerID string    `json:"customer_id"`
	OutletID   string    `json:"outlet_id"`
	Status     Status    `json:"status"`
	Lines      []Line    `json:"lines"`
	ExpiresAt  time.Time `json:"expires_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Line references one offer with a price snapshot captured at add time.
type Line struct {
	OfferID    string `json:"offer_id"`
	OfferName  string `json:"offer_name"`
	Quantity   int    `json:"quantity"`
	PriceCents int64  `json:"price_cents"`
}

func (c *Cart) line(offerID string) *Line {
	for i := range c.Lines {
		if c.Lines[i].OfferID == offerID {
			return &c.Lines[i]
		}
	}
	return nil
}

// Snapshot is the validated cart state handed to order creation.
type Snapshot struct {
	CustomerID    string
	OutletID      string
	Lines         []SnapshotLine
	SubtotalCents int64
	Adjustments   []Adjustment
	CapturedAt    time.Time
}

type SnapshotLine struct {
	OfferID        string
	OfferName      string
	Quantity       int
	UnitPriceCents int64
	LineTotalCents int64
}

// Adjustment reports a line that checkout removed or changed; checkout never
// silently drops items.
type Adjustment struct {
	OfferID  string
	Reason   string // "removed", "reduced", "repriced"
	OldValue int64
	NewValue int64
}
