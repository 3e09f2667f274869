package carts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/resqbox/resqbox/internal/clock"
	"github.com/resqbox/resqbox/internal/offers"
)

type memStore struct {
	carts map[string]Cart
}

func newMemStore() *memStore {
	return &memStore{carts: make(map[string]Cart)}
}

func (s *memStore) Get(_ context.Context, customerID string) (*Cart, error) {
	c, ok := s.carts[customerID]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *memStore) Save(_ context.Context, cart Cart) error {
	s.carts[cart.CustomerID] = cart
	return nil
}

func (s *memStore) Delete(_ context.Context, customerID string) error {
	delete(s.carts, customerID)
	return nil
}

type memOffers struct {
	offers map[string]offers.Offer
}

func (r *memOffers) Get(_ context.Context, offerID string) (offers.Offer, error) {
	o, ok := r.offers[offerID]
	if !ok {
		return offers.Offer{}, offers.ErrNotFound
	}
	return o, nil
}

var cartEpoch = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func newCartFixture() (*Service, *memStore, *memOffers) {
	store := newMemStore()
	reader := &memOffers{offers: map[string]offers.Offer{
		"bag-1": {ID: "bag-1", OutletID: "outlet-1", Name: "bakery surprise", PriceCents: 500, QuantityAvailable: 5, IsActive: true, IsVisible: true},
		"bag-2": {ID: "bag-2", OutletID: "outlet-1", Name: "veggie box", PriceCents: 700, QuantityAvailable: 2, IsActive: true, IsVisible: true},
		"bag-3": {ID: "bag-3", OutletID: "outlet-2", Name: "sushi set", PriceCents: 900, QuantityAvailable: 3, IsActive: true, IsVisible: true},
	}}
	svc := NewService(store, reader, clock.NewFixed(cartEpoch), 2*time.Hour)
	return svc, store, reader
}

func TestAddLineCreatesCart(t *testing.T) {
	svc, _, _ := newCartFixture()
	ctx := context.Background()

	cart, err := svc.AddLine(ctx, "cust-1", "bag-1", 2)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if cart.OutletID != "outlet-1" || cart.Status != StatusActive {
		t.Fatalf("cart = %+v", cart)
	}
	if len(cart.Lines) != 1 || cart.Lines[0].Quantity != 2 || cart.Lines[0].PriceCents != 500 {
		t.Fatalf("lines = %+v", cart.Lines)
	}
	if !cart.ExpiresAt.Equal(cartEpoch.Add(2 * time.Hour)) {
		t.Fatalf("expires at = %v", cart.ExpiresAt)
	}
}

func TestAddLineMergesQuantity(t *testing.T) {
	svc, _, _ := newCartFixture()
	ctx := context.Background()

	if _, err := svc.AddLine(ctx, "cust-1", "bag-1", 1); err != nil {
		t.Fatalf("add: %v", err)
	}
	cart, err := svc.AddLine(ctx, "cust-1", "bag-1", 2)
	if err != nil {
		t.Fatalf("add again: %v", err)
	}
	if len(cart.Lines) != 1 || cart.Lines[0].Quantity != 3 {
		t.Fatalf("lines = %+v, want single line qty 3", cart.Lines)
	}
}

func TestAddLineRejectsSecondOutlet(t *testing.T) {
	svc, _, _ := newCartFixture()
	ctx := context.Background()

	if _, err := svc.AddLine(ctx, "cust-1", "bag-1", 1); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := svc.AddLine(ctx, "cust-1", "bag-3", 1); !errors.Is(err, ErrOutletMismatch) {
		t.Fatalf("cross-outlet add: %v, want ErrOutletMismatch", err)
	}
}

func TestAddLineRejectsUnsellable(t *testing.T) {
	svc, _, reader := newCartFixture()
	ctx := context.Background()

	o := reader.offers["bag-1"]
	o.IsActive = false
	reader.offers["bag-1"] = o

	if _, err := svc.AddLine(ctx, "cust-1", "bag-1", 1); !errors.Is(err, offers.ErrInactive) {
		t.Fatalf("inactive add: %v, want ErrInactive", err)
	}
	if _, err := svc.AddLine(ctx, "cust-1", "bag-1", 0); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("zero quantity: %v, want ErrInvalidQuantity", err)
	}
}

func TestUpdateAndRemoveLine(t *testing.T) {
	svc, _, _ := newCartFixture()
	ctx := context.Background()

	if _, err := svc.AddLine(ctx, "cust-1", "bag-1", 1); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := svc.AddLine(ctx, "cust-1", "bag-2", 1); err != nil {
		t.Fatalf("add: %v", err)
	}

	cart, err := svc.UpdateQuantity(ctx, "cust-1", "bag-1", 4)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if cart.line("bag-1").Quantity != 4 {
		t.Fatalf("quantity = %d, want 4", cart.line("bag-1").Quantity)
	}

	if _, err := svc.UpdateQuantity(ctx, "cust-1", "bag-3", 1); !errors.Is(err, ErrLineNotFound) {
		t.Fatalf("update missing line: %v, want ErrLineNotFound", err)
	}

	cart, err = svc.RemoveLine(ctx, "cust-1", "bag-2")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(cart.Lines) != 1 {
		t.Fatalf("lines = %+v, want bag-2 gone", cart.Lines)
	}
	if _, err := svc.RemoveLine(ctx, "cust-1", "bag-2"); !errors.Is(err, ErrLineNotFound) {
		t.Fatalf("remove again: %v, want ErrLineNotFound", err)
	}
}

func TestCartExpiresByClock(t *testing.T) {
	store := newMemStore()
	reader := &memOffers{offers: map[string]offers.Offer{
		"bag-1": {ID: "bag-1", OutletID: "outlet-1", Name: "bakery surprise", PriceCents: 500, QuantityAvailable: 5, IsActive: true, IsVisible: true},
	}}

	early := NewService(store, reader, clock.NewFixed(cartEpoch), 2*time.Hour)
	if _, err := early.AddLine(context.Background(), "cust-1", "bag-1", 1); err != nil {
		t.Fatalf("add: %v", err)
	}

	// Same store, three hours later.
	late := NewService(store, reader, clock.NewFixed(cartEpoch.Add(3*time.Hour)), 2*time.Hour)
	if _, err := late.Get(context.Background(), "cust-1"); !errors.Is(err, ErrExpired) {
		t.Fatalf("get after ttl: %v, want ErrExpired", err)
	}
	if _, err := late.Checkout(context.Background(), "cust-1"); !errors.Is(err, ErrExpired) {
		t.Fatalf("checkout after ttl: %v, want ErrExpired", err)
	}
	if store.carts["cust-1"].Status != StatusExpired {
		t.Fatalf("stored status = %s, want EXPIRED", store.carts["cust-1"].Status)
	}

	// An expired cart does not block starting over.
	cart, err := late.AddLine(context.Background(), "cust-1", "bag-1", 1)
	if err != nil {
		t.Fatalf("re-add: %v", err)
	}
	if cart.Status != StatusActive || len(cart.Lines) != 1 {
		t.Fatalf("new cart = %+v", cart)
	}
}

func TestCheckoutSnapshotsTotals(t *testing.T) {
	svc, _, _ := newCartFixture()
	ctx := context.Background()

	if _, err := svc.AddLine(ctx, "cust-1", "bag-1", 2); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := svc.AddLine(ctx, "cust-1", "bag-2", 1); err != nil {
		t.Fatalf("add: %v", err)
	}

	snap, err := svc.Checkout(ctx, "cust-1")
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if len(snap.Lines) != 2 || len(snap.Adjustments) != 0 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if snap.SubtotalCents != 2*500+700 {
		t.Fatalf("subtotal = %d", snap.SubtotalCents)
	}
}

func TestCheckoutReportsAdjustments(t *testing.T) {
	svc, _, reader := newCartFixture()
	ctx := context.Background()

	if _, err := svc.AddLine(ctx, "cust-1", "bag-1", 3); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := svc.AddLine(ctx, "cust-1", "bag-2", 2); err != nil {
		t.Fatalf("add: %v", err)
	}

	// Between add and checkout the offers moved: bag-1 got repriced and
	// nearly sold out, bag-2 went off sale.
	b1 := reader.offers["bag-1"]
	b1.PriceCents = 450
	b1.QuantityAvailable = 2
	reader.offers["bag-1"] = b1
	b2 := reader.offers["bag-2"]
	b2.IsActive = false
	reader.offers["bag-2"] = b2

	snap, err := svc.Checkout(ctx, "cust-1")
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}

	if len(snap.Lines) != 1 {
		t.Fatalf("lines = %+v, want only bag-1", snap.Lines)
	}
	line := snap.Lines[0]
	if line.Quantity != 2 || line.UnitPriceCents != 450 || line.LineTotalCents != 900 {
		t.Fatalf("line = %+v", line)
	}
	if snap.SubtotalCents != 900 {
		t.Fatalf("subtotal = %d, want 900", snap.SubtotalCents)
	}

	byReason := map[string]int{}
	for _, a := range snap.Adjustments {
		byReason[a.Reason]++
	}
	if byReason["removed"] != 1 || byReason["reduced"] != 1 || byReason["repriced"] != 1 {
		t.Fatalf("adjustments = %+v", snap.Adjustments)
	}
}

func TestCheckoutEmptyWhenNothingSurvives(t *testing.T) {
	svc, _, reader := newCartFixture()
	ctx := context.Background()

	if _, err := svc.AddLine(ctx, "cust-1", "bag-1", 1); err != nil {
		t.Fatalf("add: %v", err)
	}
	b1 := reader.offers["bag-1"]
	b1.QuantityAvailable = 0
	reader.offers["bag-1"] = b1

	if _, err := svc.Checkout(ctx, "cust-1"); !errors.Is(err, ErrEmpty) {
		t.Fatalf("checkout: %v, want ErrEmpty", err)
	}

	if _, err := svc.Checkout(ctx, "no-such-customer"); !errors.Is(err, ErrExpired) {
		t.Fatalf("checkout without cart: %v, want ErrExpired", err)
	}
}

func TestConvertAndAbandon(t *testing.T) {
	svc, store, _ := newCartFixture()
	ctx := context.Background()

	if _, err := svc.AddLine(ctx, "cust-1", "bag-1", 1); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := svc.Convert(ctx, "cust-1"); err != nil {
		t.Fatalf("convert: %v", err)
	}
	if store.carts["cust-1"].Status != StatusConverted {
		t.Fatalf("status = %s, want CONVERTED", store.carts["cust-1"].Status)
	}

	if _, err := svc.AddLine(ctx, "cust-2", "bag-1", 1); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := svc.Abandon(ctx, "cust-2"); err != nil {
		t.Fatalf("abandon: %v", err)
	}
	if store.carts["cust-2"].Status != StatusAbandoned {
		t.Fatalf("status = %s, want ABANDONED", store.carts["cust-2"].Status)
	}
	// Abandoning a customer without a cart is a no-op.
	if err := svc.Abandon(ctx, "cust-3"); err != nil {
		t.Fatalf("abandon missing: %v", err)
	}
}
