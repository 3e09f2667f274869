package payments

import (
	"context"
	"fmt"

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

const paymentColumns = `id, order_id, status, amount_cents, currency, idempotency_key,
	preauth_txn_id, capture_txn_id, failure_reason,
	authorized_at, captured_at, voided_at, refunded_at, created_at, updated_at`

func (r *Repo) Insert(ctx context.Context, p Payment) error {
	q := postgres.From(ctx, r.pool)
	_, err := q.Exec(ctx, `
INSERT INTO payments (`+paymentColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		p.ID, p.OrderID, p.Status, p.AmountCents, p.Currency, p.IdempotencyKey,
		p.PreauthTxnID, p.CaptureTxnID, p.FailureReason,
		p.AuthorizedAt, p.CapturedAt, p.VoidedAt, p.RefundedAt, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// Update persists every mutable field. Lines never change; only status,
// transaction ids, reason and timestamps do.
func (r *Repo) Update(ctx context.Context, p Payment) error {
	q := postgres.From(ctx, r.pool)
	ct, err := q.Exec(ctx, `
UPDATE payments SET status=$2, preauth_txn_id=$3, capture_txn_id=$4, failure_reason=$5,
	authorized_at=$6, captured_at=$7, voided_at=$8, refunded_at=$9, updated_at=$10
WHERE id=$1`,
		p.ID, p.Status, p.PreauthTxnID, p.CaptureTxnID, p.FailureReason,
		p.AuthorizedAt, p.CapturedAt, p.VoidedAt, p.RefundedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) GetByOrderForUpdate(ctx context.Context, orderID string) (Payment, error) {
	return r.get(ctx, `SELECT `+paymentColumns+` FROM payments WHERE order_id = $1 FOR UPDATE`, orderID)
}

// GetByTransactionForUpdate looks a payment up by either its pre-auth or
// capture transaction id. Webhook idempotency hinges on this lookup.
func (r *Repo) GetByTransactionForUpdate(ctx context.Context, txnID string) (Payment, error) {
	return r.get(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE preauth_txn_id = $1 OR capture_txn_id = $1 FOR UPDATE`,
		txnID)
}

func (r *Repo) get(ctx context.Context, sql string, args ...any) (Payment, error) {
	q := postgres.From(ctx, r.pool)
	var p Payment
	err := q.QueryRow(ctx, sql, args...).Scan(
		&p.ID, &p.OrderID, &p.Status, &p.AmountCents, &p.Currency, &p.IdempotencyKey,
		&p.PreauthTxnID, &p.CaptureTxnID, &p.FailureReason,
		&p.AuthorizedAt, &p.CapturedAt, &p.VoidedAt, &p.RefundedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	switch {
	case err == pgx.ErrNoRows:
		return Payment{}, ErrNotFound
	case postgres.IsInvalidUUID(err):
		return Payment{}, ErrNotFound
	case err != nil:
		return Payment{}, fmt.Errorf("get payment: %w", err)
	}
	return p, nil
}
