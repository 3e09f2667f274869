package orders_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/resqbox/resqbox/internal/orders"
	"github.com/resqbox/resqbox/internal/testutil"
)

func seedOrder(t *testing.T, customerID, outletID, offerID string, status orders.Status) orders.Order {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	return orders.Order{
		ID:              uuid.NewString(),
		Number:          orders.NewOrderNumber(),
		CustomerID:      customerID,
		OutletID:        outletID,
		Status:          status,
		Lines:           []orders.Line{{OfferID: offerID, Quantity: 2, UnitPriceCents: 500, LineTotalCents: 1000}},
		SubtotalCents:   1000,
		ServiceFeeCents: 99,
		TotalCents:      1099,
		PickupCode:      orders.NewPickupCode(),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func TestRepoInsertGetUpdate(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	customer := uuid.NewString()
	outlet := uuid.NewString()
	offerID := testutil.InsertOffer(t, ctx, pool, outlet, "surprise bag", 500, 5)
	repo := orders.NewRepo(pool)

	o := seedOrder(t, customer, outlet, offerID, orders.StatusCreated)
	if err := repo.Insert(ctx, o); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := repo.Get(ctx, o.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Number != o.Number || got.Status != orders.StatusCreated || got.TotalCents != 1099 {
		t.Fatalf("got = %+v", got)
	}
	if len(got.Lines) != 1 || got.Lines[0].OfferID != offerID || got.Lines[0].Quantity != 2 {
		t.Fatalf("lines = %+v", got.Lines)
	}

	deadline := time.Now().UTC().Add(10 * time.Minute).Truncate(time.Microsecond)
	got.Status = orders.StatusPendingAcceptance
	got.ShopAcceptanceDeadline = &deadline
	got.UpdatedAt = time.Now().UTC()
	if err := repo.Update(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err = repo.Get(ctx, o.ID)
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if got.Status != orders.StatusPendingAcceptance {
		t.Fatalf("status = %s", got.Status)
	}
	if got.ShopAcceptanceDeadline == nil || !got.ShopAcceptanceDeadline.Equal(deadline) {
		t.Fatalf("deadline = %v, want %v", got.ShopAcceptanceDeadline, deadline)
	}

	if _, err := repo.Get(ctx, uuid.NewString()); !errors.Is(err, orders.ErrNotFound) {
		t.Fatalf("get missing: %v, want ErrNotFound", err)
	}
	if _, err := repo.Get(ctx, "not-a-uuid"); !errors.Is(err, orders.ErrNotFound) {
		t.Fatalf("get malformed id: %v, want ErrNotFound", err)
	}
}

func TestRepoClaimInventoryReleaseOnce(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	outlet := uuid.NewString()
	offerID := testutil.InsertOffer(t, ctx, pool, outlet, "bag", 500, 5)
	repo := orders.NewRepo(pool)

	o := seedOrder(t, uuid.NewString(), outlet, offerID, orders.StatusPendingAcceptance)
	if err := repo.Insert(ctx, o); err != nil {
		t.Fatalf("insert: %v", err)
	}

	claimed, err := repo.ClaimInventoryRelease(ctx, o.ID)
	if err != nil || !claimed {
		t.Fatalf("first claim: %v, claimed %v", err, claimed)
	}
	claimed, err = repo.ClaimInventoryRelease(ctx, o.ID)
	if err != nil || claimed {
		t.Fatalf("second claim: %v, claimed %v, want false", err, claimed)
	}
}

func TestRepoDueLists(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	outlet := uuid.NewString()
	offerID := testutil.InsertOffer(t, ctx, pool, outlet, "bag", 500, 50)
	repo := orders.NewRepo(pool)
	now := time.Now().UTC()

	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	overdue := seedOrder(t, uuid.NewString(), outlet, offerID, orders.StatusPendingAcceptance)
	overdue.ShopAcceptanceDeadline = &past
	fresh := seedOrder(t, uuid.NewString(), outlet, offerID, orders.StatusPendingAcceptance)
	fresh.ShopAcceptanceDeadline = &future
	uncollected := seedOrder(t, uuid.NewString(), outlet, offerID, orders.StatusReadyForPickup)
	uncollected.PickupDeadline = &past
	collected := seedOrder(t, uuid.NewString(), outlet, offerID, orders.StatusPickedUp)
	collectedAt := now.Add(-2 * time.Hour)
	collected.PickedUpAt = &collectedAt

	for _, o := range []orders.Order{overdue, fresh, uncollected, collected} {
		if err := repo.Insert(ctx, o); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	due, err := repo.DueForAcceptance(ctx, now, 10)
	if err != nil {
		t.Fatalf("due for acceptance: %v", err)
	}
	if len(due) != 1 || due[0] != overdue.ID {
		t.Fatalf("due = %v, want only %s", due, overdue.ID)
	}

	due, err = repo.DueForPickup(ctx, now, 10)
	if err != nil {
		t.Fatalf("due for pickup: %v", err)
	}
	if len(due) != 1 || due[0] != uncollected.ID {
		t.Fatalf("due = %v, want only %s", due, uncollected.ID)
	}

	due, err = repo.DueForCompletion(ctx, now.Add(-time.Hour), 10)
	if err != nil {
		t.Fatalf("due for completion: %v", err)
	}
	if len(due) != 1 || due[0] != collected.ID {
		t.Fatalf("due = %v, want only %s", due, collected.ID)
	}
}

func TestRepoStaleCreated(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	outlet := uuid.NewString()
	offerID := testutil.InsertOffer(t, ctx, pool, outlet, "bag", 500, 5)
	repo := orders.NewRepo(pool)
	now := time.Now().UTC()

	stuck := seedOrder(t, uuid.NewString(), outlet, offerID, orders.StatusCreated)
	stuck.CreatedAt = now.Add(-time.Hour)
	stuck.UpdatedAt = stuck.CreatedAt
	fresh := seedOrder(t, uuid.NewString(), outlet, offerID, orders.StatusCreated)
	moved := seedOrder(t, uuid.NewString(), outlet, offerID, orders.StatusPendingAcceptance)
	moved.CreatedAt = now.Add(-time.Hour)
	moved.UpdatedAt = moved.CreatedAt

	for _, o := range []orders.Order{stuck, fresh, moved} {
		if err := repo.Insert(ctx, o); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	ids, err := repo.StaleCreated(ctx, now.Add(-5*time.Minute), 10)
	if err != nil {
		t.Fatalf("stale created: %v", err)
	}
	if len(ids) != 1 || ids[0] != stuck.ID {
		t.Fatalf("stale ids = %v, want only %s", ids, stuck.ID)
	}
}

func TestRepoLists(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	outlet := uuid.NewString()
	customer := uuid.NewString()
	offerID := testutil.InsertOffer(t, ctx, pool, outlet, "bag", 500, 50)
	repo := orders.NewRepo(pool)

	for i := 0; i < 3; i++ {
		o := seedOrder(t, customer, outlet, offerID, orders.StatusCompleted)
		if err := repo.Insert(ctx, o); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	other := seedOrder(t, uuid.NewString(), outlet, offerID, orders.StatusCompleted)
	if err := repo.Insert(ctx, other); err != nil {
		t.Fatalf("insert: %v", err)
	}

	mine, err := repo.ListByCustomer(ctx, customer, 10)
	if err != nil {
		t.Fatalf("list by customer: %v", err)
	}
	if len(mine) != 3 {
		t.Fatalf("customer orders = %d, want 3", len(mine))
	}

	all, err := repo.ListByOutlet(ctx, outlet, 10)
	if err != nil {
		t.Fatalf("list by outlet: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("outlet orders = %d, want 4", len(all))
	}
}
