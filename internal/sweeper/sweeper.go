package sweeper

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/resqbox/resqbox/internal/metrics"
	"github.com/resqbox/resqbox/internal/orders"
)

const batchLimit = 100

// OrderLifecycle is the slice of the order service the sweeper drives.
type OrderLifecycle interface {
	StaleCreated(ctx context.Context, limit int) ([]string, error)
	DueForAcceptance(ctx context.Context, limit int) ([]string, error)
	DueForPickup(ctx context.Context, limit int) ([]string, error)
	DueForCompletion(ctx context.Context, limit int) ([]string, error)
	CancelStaleCreated(ctx context.Context, orderID string) (orders.Order, error)
	ExpireAcceptance(ctx context.Context, orderID string) (orders.Order, error)
	ExpirePickup(ctx context.Context, orderID string) (orders.Order, error)
	Complete(ctx context.Context, orderID string) (orders.Order, error)
}

// Sweeper forces time-boxed transitions on a fixed interval, off the
// request path. Each order in a batch is processed independently; one
// failure never aborts the rest, the next interval retries.
type Sweeper struct {
	orders   OrderLifecycle
	interval time.Duration
	log      *zap.Logger
}

func New(svc OrderLifecycle, interval time.Duration, log *zap.Logger) *Sweeper {
	return &Sweeper{orders: svc, interval: interval, log: log}
}

// Run loops until the context is cancelled. It sweeps once immediately so a
// restart does not wait a full interval to pick up overdue orders.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.SweepOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs all three sweeps. Exported so tests drive sweeps
// deterministically with an injected clock instead of waiting on the ticker.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	s.sweep(ctx, "created", s.orders.StaleCreated, s.orders.CancelStaleCreated)
	s.sweep(ctx, "acceptance", s.orders.DueForAcceptance, s.orders.ExpireAcceptance)
	s.sweep(ctx, "pickup", s.orders.DueForPickup, s.orders.ExpirePickup)
	s.sweep(ctx, "completion", s.orders.DueForCompletion, func(ctx context.Context, id string) (orders.Order, error) {
		return s.orders.Complete(ctx, id)
	})
}

func (s *Sweeper) sweep(
	ctx context.Context,
	name string,
	due func(context.Context, int) ([]string, error),
	apply func(context.Context, string) (orders.Order, error),
) {
	ids, err := due(ctx, batchLimit)
	if err != nil {
		metrics.SweepErrors.WithLabelValues(name).Inc()
		s.log.Warn("sweep listing failed", zap.String("sweep", name), zap.Error(err))
		return
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			return
		}
		if _, err := apply(ctx, id); err != nil {
			// A racing outlet or customer action won the order's lock and
			// moved it first; that is the expected outcome, not a failure.
			if errors.Is(err, orders.ErrInvalidStatus) {
				continue
			}
			metrics.SweepErrors.WithLabelValues(name).Inc()
			s.log.Warn("sweep order failed",
				zap.String("sweep", name), zap.String("order_id", id), zap.Error(err))
			continue
		}
		metrics.SweepExpired.WithLabelValues(name).Inc()
	}
}
