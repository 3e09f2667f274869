package sweeper

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/resqbox/resqbox/internal/orders"
)

type fakeLifecycle struct {
	staleCreated  []string
	acceptanceDue []string
	pickupDue     []string
	completionDue []string

	failWith map[string]error

	cancelledCreated  []string
	expiredAcceptance []string
	expiredPickup     []string
	completed         []string
}

func (f *fakeLifecycle) StaleCreated(context.Context, int) ([]string, error) {
	return f.staleCreated, nil
}

func (f *fakeLifecycle) DueForAcceptance(context.Context, int) ([]string, error) {
	return f.acceptanceDue, nil
}

func (f *fakeLifecycle) DueForPickup(context.Context, int) ([]string, error) {
	return f.pickupDue, nil
}

func (f *fakeLifecycle) DueForCompletion(context.Context, int) ([]string, error) {
	return f.completionDue, nil
}

func (f *fakeLifecycle) CancelStaleCreated(_ context.Context, id string) (orders.Order, error) {
	if err := f.failWith[id]; err != nil {
		return orders.Order{}, err
	}
	f.cancelledCreated = append(f.cancelledCreated, id)
	return orders.Order{ID: id, Status: orders.StatusCancelled}, nil
}

func (f *fakeLifecycle) ExpireAcceptance(_ context.Context, id string) (orders.Order, error) {
	if err := f.failWith[id]; err != nil {
		return orders.Order{}, err
	}
	f.expiredAcceptance = append(f.expiredAcceptance, id)
	return orders.Order{ID: id, Status: orders.StatusExpired}, nil
}

func (f *fakeLifecycle) ExpirePickup(_ context.Context, id string) (orders.Order, error) {
	if err := f.failWith[id]; err != nil {
		return orders.Order{}, err
	}
	f.expiredPickup = append(f.expiredPickup, id)
	return orders.Order{ID: id, Status: orders.StatusExpired}, nil
}

func (f *fakeLifecycle) Complete(_ context.Context, id string) (orders.Order, error) {
	if err := f.failWith[id]; err != nil {
		return orders.Order{}, err
	}
	f.completed = append(f.completed, id)
	return orders.Order{ID: id, Status: orders.StatusCompleted}, nil
}

func TestSweepOnceRunsAllSweeps(t *testing.T) {
	lc := &fakeLifecycle{
		staleCreated:  []string{"s1"},
		acceptanceDue: []string{"a1", "a2"},
		pickupDue:     []string{"p1"},
		completionDue: []string{"c1"},
	}
	s := New(lc, 0, zap.NewNop())
	s.SweepOnce(context.Background())

	if len(lc.cancelledCreated) != 1 {
		t.Fatalf("cancelled created = %v", lc.cancelledCreated)
	}
	if len(lc.expiredAcceptance) != 2 {
		t.Fatalf("expired acceptance = %v", lc.expiredAcceptance)
	}
	if len(lc.expiredPickup) != 1 {
		t.Fatalf("expired pickup = %v", lc.expiredPickup)
	}
	if len(lc.completed) != 1 {
		t.Fatalf("completed = %v", lc.completed)
	}
}

func TestSweepContinuesPastFailures(t *testing.T) {
	lc := &fakeLifecycle{
		acceptanceDue: []string{"a1", "a2", "a3"},
		failWith:      map[string]error{"a2": errors.New("db timeout")},
	}
	s := New(lc, 0, zap.NewNop())
	s.SweepOnce(context.Background())

	// One failing order never blocks the rest of the batch.
	if len(lc.expiredAcceptance) != 2 {
		t.Fatalf("expired = %v, want a1 and a3", lc.expiredAcceptance)
	}
}

func TestSweepTreatsLostRaceAsSuccess(t *testing.T) {
	lc := &fakeLifecycle{
		acceptanceDue: []string{"a1", "a2"},
		failWith:      map[string]error{"a1": orders.ErrInvalidStatus},
	}
	s := New(lc, 0, zap.NewNop())
	s.SweepOnce(context.Background())

	// a1 was accepted between listing and locking; the sweep moves on without
	// counting it as a failure.
	if len(lc.expiredAcceptance) != 1 || lc.expiredAcceptance[0] != "a2" {
		t.Fatalf("expired = %v, want only a2", lc.expiredAcceptance)
	}
}

func TestSweepStopsOnCancelledContext(t *testing.T) {
	lc := &fakeLifecycle{acceptanceDue: []string{"a1", "a2"}}
	s := New(lc, 0, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.SweepOnce(ctx)

	if len(lc.expiredAcceptance) != 0 {
		t.Fatalf("expired = %v, want none after cancellation", lc.expiredAcceptance)
	}
}
