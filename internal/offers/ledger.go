package offers

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/resqbox/resqbox/internal/postgres"
)

// Line is one reservation request against a single offer.
type Line struct {
	OfferID  string
	Quantity int
}

// Ledger holds the remaining sellable quantity per offer and provides
// atomic reserve/release under contention. Reserve and Release must run
// inside an ambient transaction (postgres.WithTx); the offer row lock is
// held until that transaction commits or rolls back.
type Ledger struct {
	pool     *pgxpool.Pool
	lockWait time.Duration
}

func NewLedger(pool *pgxpool.Pool, lockWait time.Duration) *Ledger {
	return &Ledger{pool: pool, lockWait: lockWait}
}

// Reserve decrements quantity_available for every line, all-or-nothing.
// Rows are locked FOR UPDATE in ascending offer-id order so two orders
// reserving overlapping offer sets cannot deadlock. The first failing line
// aborts the whole attempt; the ambient transaction's rollback undoes any
// decrement already applied.
func (l *Ledger) Reserve(ctx context.Context, lines []Line) error {
	q := postgres.From(ctx, l.pool)

	lockMillis := l.lockWait.Milliseconds()
	if lockMillis <= 0 {
		lockMillis = 2000
	}
	if _, err := q.Exec(ctx, fmt.Sprintf(`SET LOCAL lock_timeout = '%dms'`, lockMillis)); err != nil {
		return fmt.Errorf("set lock timeout: %w", err)
	}

	ordered := make([]Line, len(lines))
	copy(ordered, lines)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].OfferID < ordered[j].OfferID })

	for _, line := range ordered {
		var available int
		var active, visible bool
		err := q.QueryRow(ctx,
			`SELECT quantity_available, is_active, is_visible FROM offers WHERE id = $1 FOR UPDATE`,
			line.OfferID,
		).Scan(&available, &active, &visible)
		switch {
		case err == pgx.ErrNoRows:
			return fmt.Errorf("%w: %s", ErrNotFound, line.OfferID)
		case postgres.IsLockNotAvailable(err):
			return fmt.Errorf("%w: offer %s", ErrContention, line.OfferID)
		case postgres.IsInvalidUUID(err):
			return fmt.Errorf("%w: %s", ErrNotFound, line.OfferID)
		case err != nil:
			return fmt.Errorf("lock offer %s: %w", line.OfferID, err)
		}

		if !active || !visible {
			return fmt.Errorf("%w: %s", ErrInactive, line.OfferID)
		}
		if available < line.Quantity {
			return fmt.Errorf("%w: offer %s has %d, need %d", ErrOutOfStock, line.OfferID, available, line.Quantity)
		}

		if _, err := q.Exec(ctx,
			`UPDATE offers SET quantity_available = quantity_available - $2, updated_at = NOW() WHERE id = $1`,
			line.OfferID, line.Quantity,
		); err != nil {
			return fmt.Errorf("decrement offer %s: %w", line.OfferID, err)
		}
	}
	return nil
}

// Release credits quantities back. Callers guard idempotency per order by
// claiming the order's inventory_released flag before calling; Release
// itself is a plain credit and is always safe inside the claiming
// transaction.
func (l *Ledger) Release(ctx context.Context, lines []Line) error {
	q := postgres.From(ctx, l.pool)

	ordered := make([]Line, len(lines))
	copy(ordered, lines)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].OfferID < ordered[j].OfferID })

	for _, line := range ordered {
		ct, err := q.Exec(ctx,
			`UPDATE offers SET quantity_available = quantity_available + $2, updated_at = NOW() WHERE id = $1`,
			line.OfferID, line.Quantity,
		)
		if err != nil {
			return fmt.Errorf("credit offer %s: %w", line.OfferID, err)
		}
		if ct.RowsAffected() == 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, line.OfferID)
		}
	}
	return nil
}

// Get reads a single offer without locking it.
func (l *Ledger) Get(ctx context.Context, offerID string) (Offer, error) {
	q := postgres.From(ctx, l.pool)
	var o Offer
	err := q.QueryRow(ctx,
		`SELECT id, outlet_id, name, price_cents, quantity_available, is_active, is_visible, created_at, updated_at
		 FROM offers WHERE id = $1`, offerID,
	).Scan(&o.ID, &o.OutletID, &o.Name, &o.PriceCents, &o.QuantityAvailable, &o.IsActive, &o.IsVisible, &o.CreatedAt, &o.UpdatedAt)
	switch {
	case err == pgx.ErrNoRows:
		return Offer{}, ErrNotFound
	case postgres.IsInvalidUUID(err):
		return Offer{}, ErrNotFound
	case err != nil:
		return Offer{}, fmt.Errorf("get offer: %w", err)
	}
	return o, nil
}

// ListByOutlet returns the outlet's sellable offers, newest first.
func (l *Ledger) ListByOutlet(ctx context.Context, outletID string) ([]Offer, error) {
	q := postgres.From(ctx, l.pool)
	rows, err := q.Query(ctx,
		`SELECT id, outlet_id, name, price_cents, quantity_available, is_active, is_visible, created_at, updated_at
		 FROM offers WHERE outlet_id = $1 AND is_active AND is_visible ORDER BY created_at DESC`, outletID)
	if err != nil {
		return nil, fmt.Errorf("list offers: %w", err)
	}
	defer rows.Close()

	var out []Offer
	for rows.Next() {
		var o Offer
		if err := rows.Scan(&o.ID, &o.OutletID, &o.Name, &o.PriceCents, &o.QuantityAvailable, &o.IsActive, &o.IsVisible, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
