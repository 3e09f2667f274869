package carts

import (
	"context"
	"fmt"
	"time"

	"github.com/resqbox/resqbox/internal/clock"
	"github.com/resqbox/resqbox/internal/offers"
)

// Store is the persistence needed by the cart service. Get returns nil when
// no cart exists for the customer.
type Store interface {
	Get(ctx context.Context, customerID string) (*Cart, error)
	Save(ctx context.Context, cart Cart) error
	Delete(ctx context.Context, customerID string) error
}

// OfferReader is the read-side of the inventory ledger used for validation.
// Quantities are never reserved at cart time, only read.
type OfferReader interface {
	Get(ctx context.Context, offerID string) (offers.Offer, error)
}

type Service struct {
	store  Store
	offers OfferReader
	clock  clock.Clock
	ttl    time.Duration
}

func NewService(store Store, reader OfferReader, clk clock.Clock, ttl time.Duration) *Service {
	return &Service{store: store, offers: reader, clock: clk, ttl: ttl}
}

// AddLine puts quantity of an offer into the customer's cart, creating the
// cart on first add. All lines in a cart must reference the same outlet.
func (s *Service) AddLine(ctx context.Context, customerID, offerID string, quantity int) (Cart, error) {
	if quantity < 1 {
		return Cart{}, ErrInvalidQuantity
	}

	offer, err := s.offers.Get(ctx, offerID)
	if err != nil {
		return Cart{}, err
	}
	if !offer.Sellable() {
		return Cart{}, fmt.Errorf("%w: %s", offers.ErrInactive, offerID)
	}

	now := s.clock.Now()
	cart, err := s.activeCart(ctx, customerID, now)
	if err != nil {
		return Cart{}, err
	}
	if cart == nil {
		cart = &Cart{
			CustomerID: customerID,
			OutletID:   offer.OutletID,
			Status:     StatusActive,
			CreatedAt:  now,
		}
	}
	if cart.OutletID != offer.OutletID {
		return Cart{}, ErrOutletMismatch
	}

	if line := cart.line(offerID); line != nil {
		line.Quantity += quantity
	} else {
		cart.Lines = append(cart.Lines, Line{
			OfferID:    offer.ID,
			OfferName:  offer.Name,
			Quantity:   quantity,
			PriceCents: offer.PriceCents,
		})
	}

	return s.touchAndSave(ctx, cart, now)
}

// UpdateQuantity sets an existing line's quantity.
func (s *Service) UpdateQuantity(ctx context.Context, customerID, offerID string, quantity int) (Cart, error) {
	if quantity < 1 {
		return Cart{}, ErrInvalidQuantity
	}

	now := s.clock.Now()
	cart, err := s.activeCart(ctx, customerID, now)
	if err != nil {
		return Cart{}, err
	}
	if cart == nil {
		return Cart{}, ErrExpired
	}

	line := cart.line(offerID)
	if line == nil {
		return Cart{}, ErrLineNotFound
	}
	line.Quantity = quantity

	return s.touchAndSave(ctx, cart, now)
}

// RemoveLine drops one line from the cart.
func (s *Service) RemoveLine(ctx context.Context, customerID, offerID string) (Cart, error) {
	now := s.clock.Now()
	cart, err := s.activeCart(ctx, customerID, now)
	if err != nil {
		return Cart{}, err
	}
	if cart == nil {
		return Cart{}, ErrExpired
	}

	kept := cart.Lines[:0]
	found := false
	for _, l := range cart.Lines {
		if l.OfferID == offerID {
			found = true
			continue
		}
		kept = append(kept, l)
	}
	if !found {
		return Cart{}, ErrLineNotFound
	}
	cart.Lines = kept

	return s.touchAndSave(ctx, cart, now)
}

// Get returns the customer's active cart, or ErrExpired when none exists.
func (s *Service) Get(ctx context.Context, customerID string) (Cart, error) {
	cart, err := s.activeCart(ctx, customerID, s.clock.Now())
	if err != nil {
		return Cart{}, err
	}
	if cart == nil {
		return Cart{}, ErrExpired
	}
	return *cart, nil
}

// Abandon marks the cart abandoned without deleting the document.
func (s *Service) Abandon(ctx context.Context, customerID string) error {
	cart, err := s.store.Get(ctx, customerID)
	if err != nil {
		return err
	}
	if cart == nil || cart.Status != StatusActive {
		return nil
	}
	cart.Status = StatusAbandoned
	cart.UpdatedAt = s.clock.Now()
	return s.store.Save(ctx, *cart)
}

// Checkout re-validates every line against live offers and returns the
// snapshot used for order creation. Removed and changed lines are reported
// exactly, never silently dropped.
func (s *Service) Checkout(ctx context.Context, customerID string) (Snapshot, error) {
	now := s.clock.Now()
	cart, err := s.store.Get(ctx, customerID)
	if err != nil {
		return Snapshot{}, err
	}
	if cart == nil || cart.Status != StatusActive {
		return Snapshot{}, ErrExpired
	}
	if now.After(cart.ExpiresAt) {
		cart.Status = StatusExpired
		cart.UpdatedAt = now
		_ = s.store.Save(ctx, *cart)
		return Snapshot{}, ErrExpired
	}

	snap := Snapshot{
		CustomerID: customerID,
		OutletID:   cart.OutletID,
		CapturedAt: now,
	}

	for _, line := range cart.Lines {
		offer, err := s.offers.Get(ctx, line.OfferID)
		if err == nil && !offer.Sellable() {
			err = offers.ErrInactive
		}
		if err != nil {
			snap.Adjustments = append(snap.Adjustments, Adjustment{
				OfferID: line.OfferID, Reason: "removed", OldValue: int64(line.Quantity),
			})
			continue
		}

		qty := line.Quantity
		if offer.QuantityAvailable == 0 {
			snap.Adjustments = append(snap.Adjustments, Adjustment{
				OfferID: line.OfferID, Reason: "removed", OldValue: int64(line.Quantity),
			})
			continue
		}
		if offer.QuantityAvailable < qty {
			snap.Adjustments = append(snap.Adjustments, Adjustment{
				OfferID: line.OfferID, Reason: "reduced",
				OldValue: int64(qty), NewValue: int64(offer.QuantityAvailable),
			})
			qty = offer.QuantityAvailable
		}

		price := line.PriceCents
		if offer.PriceCents != price {
			snap.Adjustments = append(snap.Adjustments, Adjustment{
				OfferID: line.OfferID, Reason: "repriced",
				OldValue: price, NewValue: offer.PriceCents,
			})
			price = offer.PriceCents
		}

		snap.Lines = append(snap.Lines, SnapshotLine{
			OfferID:        offer.ID,
			OfferName:      offer.Name,
			Quantity:       qty,
			UnitPriceCents: price,
			LineTotalCents: price * int64(qty),
		})
		snap.SubtotalCents += price * int64(qty)
	}

	if len(snap.Lines) == 0 {
		return Snapshot{}, ErrEmpty
	}
	return snap, nil
}

// Convert marks the cart converted after an order was created from it.
func (s *Service) Convert(ctx context.Context, customerID string) error {
	cart, err := s.store.Get(ctx, customerID)
	if err != nil {
		return err
	}
	if cart == nil {
		return nil
	}
	cart.Status = StatusConverted
	cart.UpdatedAt = s.clock.Now()
	return s.store.Save(ctx, *cart)
}

func (s *Service) activeCart(ctx context.Context, customerID string, now time.Time) (*Cart, error) {
	cart, err := s.store.Get(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if cart == nil || cart.Status != StatusActive || now.After(cart.ExpiresAt) {
		return nil, nil
	}
	return cart, nil
}

func (s *Service) touchAndSave(ctx context.Context, cart *Cart, now time.Time) (Cart, error) {
	cart.UpdatedAt = now
	cart.ExpiresAt = now.Add(s.ttl)
	if err := s.store.Save(ctx, *cart); err != nil {
		return Cart{}, err
	}
	return *cart, nil
}
