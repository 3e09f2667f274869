package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/resqbox/resqbox/internal/postgres"
)

type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

func (r *Repo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return postgres.WithTx(ctx, r.pool, fn)
}

const orderColumns = `id, order_number, customer_id, outlet_id, status,
	subtotal_cents, service_fee_cents, total_cents, pickup_code,
	shop_acceptance_deadline, pickup_deadline, picked_up_at,
	decline_reason, cancel_reason, rating, rating_comment,
	refund_flagged, inventory_released, created_at, updated_at`

func (r *Repo) Insert(ctx context.Context, o Order) error {
	q := postgres.From(ctx, r.pool)
	_, err := q.Exec(ctx, `
INSERT INTO orders (`+orderColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`,
		o.ID, o.Number, o.CustomerID, o.OutletID, o.Status,
		o.SubtotalCents, o.ServiceFeeCents, o.TotalCents, o.PickupCode,
		o.ShopAcceptanceDeadline, o.PickupDeadline, o.PickedUpAt,
		o.DeclineReason, o.CancelReason, o.Rating, o.RatingComment,
		o.RefundFlagged, o.InventoryReleased, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	for _, l := range o.Lines {
		if _, err := q.Exec(ctx, `
INSERT INTO order_lines (order_id, offer_id, quantity, unit_price_cents, line_total_cents)
VALUES ($1,$2,$3,$4,$5)`,
			o.ID, l.OfferID, l.Quantity, l.UnitPriceCents, l.LineTotalCents,
		); err != nil {
			return fmt.Errorf("insert order line: %w", err)
		}
	}
	return nil
}

// Update persists the mutable order fields. Lines are immutable and never
// written here.
func (r *Repo) Update(ctx context.Context, o Order) error {
	q := postgres.From(ctx, r.pool)
	ct, err := q.Exec(ctx, `
UPDATE orders SET status=$2, shop_acceptance_deadline=$3, pickup_deadline=$4, picked_up_at=$5,
	decline_reason=$6, cancel_reason=$7, rating=$8, rating_comment=$9,
	refund_flagged=$10, updated_at=$11
WHERE id=$1`,
		o.ID, o.Status, o.ShopAcceptanceDeadline, o.PickupDeadline, o.PickedUpAt,
		o.DeclineReason, o.CancelReason, o.Rating, o.RatingComment,
		o.RefundFlagged, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, id string) (Order, error) {
	return r.get(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

// GetForUpdate locks the order row for the remainder of the ambient
// transaction. Every state-changing operation goes through it; whichever
// caller acquires the lock first wins the race.
func (r *Repo) GetForUpdate(ctx context.Context, id string) (Order, error) {
	return r.get(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
}

// ClaimInventoryRelease flips the released flag exactly once per order.
// Returns false when a previous release already claimed it.
func (r *Repo) ClaimInventoryRelease(ctx context.Context, id string) (bool, error) {
	q := postgres.From(ctx, r.pool)
	ct, err := q.Exec(ctx,
		`UPDATE orders SET inventory_released = TRUE WHERE id = $1 AND NOT inventory_released`, id)
	if err != nil {
		return false, fmt.Errorf("claim inventory release: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

// StaleCreated lists orders stuck in CREATED since before the cutoff. A row
// can only sit there if the process died between reservation and
// pre-authorization; its stock stays held until someone cancels it.
func (r *Repo) StaleCreated(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	return r.listIDs(ctx, `
SELECT id FROM orders
WHERE status = $1 AND created_at <= $2
ORDER BY created_at LIMIT $3`, StatusCreated, cutoff, limit)
}

// DueForAcceptance lists orders whose shop acceptance deadline has passed.
func (r *Repo) DueForAcceptance(ctx context.Context, now time.Time, limit int) ([]string, error) {
	return r.listIDs(ctx, `
SELECT id FROM orders
WHERE status = $1 AND shop_acceptance_deadline <= $2
ORDER BY shop_acceptance_deadline LIMIT $3`, StatusPendingAcceptance, now, limit)
}

// DueForPickup lists ready orders whose pickup deadline has passed.
func (r *Repo) DueForPickup(ctx context.Context, now time.Time, limit int) ([]string, error) {
	return r.listIDs(ctx, `
SELECT id FROM orders
WHERE status = $1 AND pickup_deadline <= $2
ORDER BY pickup_deadline LIMIT $3`, StatusReadyForPickup, now, limit)
}

// DueForCompletion lists picked-up orders collected before the cutoff.
func (r *Repo) DueForCompletion(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	return r.listIDs(ctx, `
SELECT id FROM orders
WHERE status = $1 AND picked_up_at <= $2
ORDER BY picked_up_at LIMIT $3`, StatusPickedUp, cutoff, limit)
}

func (r *Repo) ListByCustomer(ctx context.Context, customerID string, limit int) ([]Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE customer_id = $1 ORDER BY created_at DESC LIMIT $2`, customerID, limit)
}

func (r *Repo) ListByOutlet(ctx context.Context, outletID string, limit int) ([]Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE outlet_id = $1 ORDER BY created_at DESC LIMIT $2`, outletID, limit)
}

func (r *Repo) get(ctx context.Context, sql string, args ...any) (Order, error) {
	q := postgres.From(ctx, r.pool)
	o, err := scanOrder(q.QueryRow(ctx, sql, args...))
	switch {
	case err == pgx.ErrNoRows:
		return Order{}, ErrNotFound
	case postgres.IsInvalidUUID(err):
		return Order{}, ErrNotFound
	case err != nil:
		return Order{}, fmt.Errorf("get order: %w", err)
	}

	rows, err := q.Query(ctx, `
SELECT offer_id, quantity, unit_price_cents, line_total_cents
FROM order_lines WHERE order_id = $1 ORDER BY offer_id`, o.ID)
	if err != nil {
		return Order{}, fmt.Errorf("get order lines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.OfferID, &l.Quantity, &l.UnitPriceCents, &l.LineTotalCents); err != nil {
			return Order{}, err
		}
		o.Lines = append(o.Lines, l)
	}
	return o, rows.Err()
}

func (r *Repo) list(ctx context.Context, sql string, args ...any) ([]Order, error) {
	q := postgres.From(ctx, r.pool)
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *Repo) listIDs(ctx context.Context, sql string, args ...any) ([]string, error) {
	q := postgres.From(ctx, r.pool)
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list due orders: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.Number, &o.CustomerID, &o.OutletID, &o.Status,
		&o.SubtotalCents, &o.ServiceFeeCents, &o.TotalCents, &o.PickupCode,
		&o.ShopAcceptanceDeadline, &o.PickupDeadline, &o.PickedUpAt,
		&o.DeclineReason, &o.CancelReason, &o.Rating, &o.RatingComment,
		&o.RefundFlagged, &o.InventoryReleased, &o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}
