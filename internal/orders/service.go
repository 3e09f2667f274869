package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/resqbox/resqbox/internal/carts"
	"github.com/resqbox/resqbox/internal/clock"
	"github.com/resqbox/resqbox/internal/metrics"
	"github.com/resqbox/resqbox/internal/offers"
	"github.com/resqbox/resqbox/internal/payments"
)

// Repository is the order persistence the service needs; the pgx Repo
// implements it. Calls inside WithTx share one atomic unit.
type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	Insert(ctx context.Context, o Order) error
	Update(ctx context.Context, o Order) error
	Get(ctx context.Context, id string) (Order, error)
	GetForUpdate(ctx context.Context, id string) (Order, error)
	ClaimInventoryRelease(ctx context.Context, id string) (bool, error)
	StaleCreated(ctx context.Context, cutoff time.Time, limit int) ([]string, error)
	DueForAcceptance(ctx context.Context, now time.Time, limit int) ([]string, error)
	DueForPickup(ctx context.Context, now time.Time, limit int) ([]string, error)
	DueForCompletion(ctx context.Context, cutoff time.Time, limit int) ([]string, error)
	ListByCustomer(ctx context.Context, customerID string, limit int) ([]Order, error)
	ListByOutlet(ctx context.Context, outletID string, limit int) ([]Order, error)
}

// Inventory is the ledger side used for reserve/release.
type Inventory interface {
	Reserve(ctx context.Context, lines []offers.Line) error
	Release(ctx context.Context, lines []offers.Line) error
}

// PaymentOrchestrator drives the gateway and owns payment records.
type PaymentOrchestrator interface {
	PreAuthorize(ctx context.Context, orderID, orderNumber, method string, amountCents int64, currency string) (payments.Payment, error)
	Capture(ctx context.Context, orderID string) (payments.Payment, error)
	Void(ctx context.Context, orderID string) (payments.Payment, error)
	Refund(ctx context.Context, orderID string) (payments.Payment, error)
}

// CartCheckout is the cart aggregate boundary used at order creation.
type CartCheckout interface {
	Checkout(ctx context.Context, customerID string) (carts.Snapshot, error)
	Convert(ctx context.Context, customerID string) error
}

// Config carries the lifecycle windows and pricing knobs.
type Config struct {
	AcceptanceWindow time.Duration
	PickupWindow     time.Duration
	CompletionWindow time.Duration
	CreatedGrace     time.Duration
	ServiceFeeCents  int64
	Currency         string
}

// Service owns the order lifecycle and coordinates the inventory ledger and
// payment orchestrator transactionally.
type Service struct {
	repo     Repository
	ledger   Inventory
	payments PaymentOrchestrator
	carts    CartCheckout
	notifier Notifier
	clock    clock.Clock
	log      *zap.Logger
	cfg      Config
}

func NewService(repo Repository, ledger Inventory, po PaymentOrchestrator, cc CartCheckout, n Notifier, clk clock.Clock, log *zap.Logger, cfg Config) *Service {
	if n == nil {
		n = NopNotifier{}
	}
	return &Service{repo: repo, ledger: ledger, payments: po, carts: cc, notifier: n, clock: clk, log: log, cfg: cfg}
}

// CreateResult is what checkout hands back to the customer.
type CreateResult struct {
	Order       Order
	Payment     payments.Payment
	Adjustments []carts.Adjustment
}

// Create converts the customer's cart into a reserved, pre-authorized order
// in PENDING_ACCEPTANCE. Reservation is all-or-nothing: any failing line
// rolls back every decrement of this attempt. On pre-authorization failure
// the reservations are released and the order is cancelled, so nothing
// stays held.
func (s *Service) Create(ctx context.Context, customerID, paymentMethod string) (CreateResult, error) {
	snap, err := s.carts.Checkout(ctx, customerID)
	if err != nil {
		return CreateResult{}, err
	}

	now := s.clock.Now()
	o := Order{
		ID:              uuid.NewString(),
		Number:          NewOrderNumber(),
		CustomerID:      customerID,
		OutletID:        snap.OutletID,
		Status:          StatusCreated,
		SubtotalCents:   snap.SubtotalCents,
		ServiceFeeCents: s.cfg.ServiceFeeCents,
		TotalCents:      snap.SubtotalCents + s.cfg.ServiceFeeCents,
		PickupCode:      NewPickupCode(),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	for _, l := range snap.Lines {
		o.Lines = append(o.Lines, Line{
			OfferID:        l.OfferID,
			Quantity:       l.Quantity,
			UnitPriceCents: l.UnitPriceCents,
			LineTotalCents: l.LineTotalCents,
		})
	}

	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.ledger.Reserve(txCtx, reservationLines(o.Lines)); err != nil {
			return err
		}
		return s.repo.Insert(txCtx, o)
	})
	if err != nil {
		return CreateResult{}, err
	}

	payment, err := s.payments.PreAuthorize(ctx, o.ID, o.Number, paymentMethod, o.TotalCents, s.cfg.Currency)
	if err != nil {
		// The FAILED payment row stays behind for reconciliation; the order
		// gives its stock back and exits via CANCELLED.
		cerr := s.repo.WithTx(ctx, func(txCtx context.Context) error {
			locked, gerr := s.repo.GetForUpdate(txCtx, o.ID)
			if gerr != nil {
				return gerr
			}
			if rerr := s.releaseLocked(txCtx, &locked); rerr != nil {
				return rerr
			}
			locked.CancelReason = "payment pre-authorization failed"
			if terr := locked.transitionTo(StatusCancelled, s.clock.Now()); terr != nil {
				return terr
			}
			return s.repo.Update(txCtx, locked)
		})
		if cerr != nil {
			s.log.Error("rollback after failed pre-authorization", zap.String("order_id", o.ID), zap.Error(cerr))
		}
		s.notifier.Notify(ctx, EventPaymentFailed, o)
		return CreateResult{}, err
	}

	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		locked, gerr := s.repo.GetForUpdate(txCtx, o.ID)
		if gerr != nil {
			return gerr
		}
		deadline := s.clock.Now().Add(s.cfg.AcceptanceWindow)
		locked.ShopAcceptanceDeadline = &deadline
		if terr := locked.transitionTo(StatusPendingAcceptance, s.clock.Now()); terr != nil {
			return terr
		}
		if uerr := s.repo.Update(txCtx, locked); uerr != nil {
			return uerr
		}
		o = locked
		return nil
	})
	if err != nil {
		return CreateResult{}, err
	}

	if err := s.carts.Convert(ctx, customerID); err != nil {
		s.log.Warn("mark cart converted", zap.String("customer_id", customerID), zap.Error(err))
	}
	metrics.OrdersCreated.Inc()
	metrics.OrderTransitions.WithLabelValues(string(StatusPendingAcceptance)).Inc()
	s.notifier.Notify(ctx, EventOrderCreated, o)

	return CreateResult{Order: o, Payment: payment, Adjustments: snap.Adjustments}, nil
}

// Accept is the outlet's commitment to fulfil. It captures the
// pre-authorization; capture success moves the order to PAID, a gateway
// decline moves it to DECLINED with inventory released and the hold voided.
func (s *Service) Accept(ctx context.Context, outletID, orderID string) (Order, error) {
	var o Order
	var captureErr error

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		locked, err := s.repo.GetForUpdate(txCtx, orderID)
		if err != nil {
			return err
		}
		if locked.OutletID != outletID {
			return ErrAccessDenied
		}
		if !CanTransition(locked.Status, StatusPaid) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidStatus, locked.Status, StatusPaid)
		}

		if _, err := s.payments.Capture(txCtx, orderID); err != nil {
			var gerr *payments.GatewayError
			if !errors.As(err, &gerr) || gerr.Retryable {
				// Infrastructure failure or a retryable gateway error
				// (timeout, 5xx): roll back and let the outlet retry. Only a
				// hard decline forfeits the order.
				return err
			}
			captureErr = err
			if derr := s.declineLocked(txCtx, &locked, "payment capture failed"); derr != nil {
				return derr
			}
			o = locked
			return nil
		}

		if err := locked.transitionTo(StatusPaid, s.clock.Now()); err != nil {
			return err
		}
		if err := s.repo.Update(txCtx, locked); err != nil {
			return err
		}
		o = locked
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	if captureErr != nil {
		metrics.OrderTransitions.WithLabelValues(string(StatusDeclined)).Inc()
		s.notifier.Notify(ctx, EventPaymentFailed, o)
		s.notifier.Notify(ctx, EventOrderDeclined, o)
		return o, fmt.Errorf("accept order %s: %w", orderID, captureErr)
	}

	metrics.OrderTransitions.WithLabelValues(string(StatusPaid)).Inc()
	s.notifier.Notify(ctx, EventPaymentSucceeded, o)
	s.notifier.Notify(ctx, EventOrderAccepted, o)
	return o, nil
}

// Decline is the outlet's refusal: inventory released, hold voided.
func (s *Service) Decline(ctx context.Context, outletID, orderID, reason string) (Order, error) {
	var o Order
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		locked, err := s.repo.GetForUpdate(txCtx, orderID)
		if err != nil {
			return err
		}
		if locked.OutletID != outletID {
			return ErrAccessDenied
		}
		if err := s.declineLocked(txCtx, &locked, reason); err != nil {
			return err
		}
		o = locked
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	metrics.OrderTransitions.WithLabelValues(string(StatusDeclined)).Inc()
	s.notifier.Notify(ctx, EventOrderDeclined, o)
	return o, nil
}

// Cancel is the customer's exit. From CREATED or PENDING_ACCEPTANCE it
// releases inventory and voids any hold; from PAID it is a refund-triggering
// cancel and the order exits via REFUNDED.
func (s *Service) Cancel(ctx context.Context, customerID, orderID, reason string) (Order, error) {
	var o Order
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		locked, err := s.repo.GetForUpdate(txCtx, orderID)
		if err != nil {
			return err
		}
		if locked.CustomerID != customerID {
			return ErrAccessDenied
		}

		target := StatusCancelled
		if locked.Status == StatusPaid {
			target = StatusRefunded
		}
		if !CanTransition(locked.Status, target) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidStatus, locked.Status, target)
		}

		if err := s.releaseLocked(txCtx, &locked); err != nil {
			return err
		}
		if target == StatusRefunded {
			if _, err := s.payments.Refund(txCtx, orderID); err != nil {
				return err
			}
		} else {
			if _, err := s.payments.Void(txCtx, orderID); err != nil && !errors.Is(err, payments.ErrNotFound) {
				// No payment row exists before pre-authorization; that is fine.
				return err
			}
		}

		locked.CancelReason = reason
		if err := locked.transitionTo(target, s.clock.Now()); err != nil {
			return err
		}
		if err := s.repo.Update(txCtx, locked); err != nil {
			return err
		}
		o = locked
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	metrics.OrderTransitions.WithLabelValues(string(o.Status)).Inc()
	s.notifier.Notify(ctx, EventOrderCancelled, o)
	return o, nil
}

// MarkPreparing moves an accepted order into preparation.
func (s *Service) MarkPreparing(ctx context.Context, outletID, orderID string) (Order, error) {
	return s.outletTransition(ctx, outletID, orderID, StatusPreparing, nil)
}

// MarkReady flags the order ready for collection and starts the pickup window.
func (s *Service) MarkReady(ctx context.Context, outletID, orderID string) (Order, error) {
	o, err := s.outletTransition(ctx, outletID, orderID, StatusReadyForPickup, func(locked *Order, now time.Time) error {
		deadline := now.Add(s.cfg.PickupWindow)
		locked.PickupDeadline = &deadline
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	s.notifier.Notify(ctx, EventOrderReady, o)
	return o, nil
}

// VerifyPickup compares the presented code against the order's pickup code
// (case-insensitive exact match) and hands the order over on success. A
// mismatch changes nothing.
func (s *Service) VerifyPickup(ctx context.Context, outletID, orderID, code string) (Order, error) {
	return s.outletTransition(ctx, outletID, orderID, StatusPickedUp, func(locked *Order, now time.Time) error {
		if !strings.EqualFold(locked.PickupCode, code) {
			return ErrInvalidPickupCode
		}
		locked.PickedUpAt = &now
		return nil
	})
}

// Complete finishes a collected order. Driven by the completion sweep.
func (s *Service) Complete(ctx context.Context, orderID string) (Order, error) {
	var o Order
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		locked, err := s.repo.GetForUpdate(txCtx, orderID)
		if err != nil {
			return err
		}
		if err := locked.transitionTo(StatusCompleted, s.clock.Now()); err != nil {
			return err
		}
		if err := s.repo.Update(txCtx, locked); err != nil {
			return err
		}
		o = locked
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	metrics.OrderTransitions.WithLabelValues(string(StatusCompleted)).Inc()
	s.notifier.Notify(ctx, EventOrderCompleted, o)
	return o, nil
}

// Rate stores the customer's rating; only legal once completed.
func (s *Service) Rate(ctx context.Context, customerID, orderID string, rating int, comment string) (Order, error) {
	if rating < 1 || rating > 5 {
		return Order{}, ErrInvalidRating
	}

	var o Order
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		locked, err := s.repo.GetForUpdate(txCtx, orderID)
		if err != nil {
			return err
		}
		if locked.CustomerID != customerID {
			return ErrAccessDenied
		}
		if locked.Status != StatusCompleted {
			return fmt.Errorf("%w: rate in %s", ErrInvalidStatus, locked.Status)
		}
		locked.Rating = &rating
		locked.RatingComment = comment
		locked.UpdatedAt = s.clock.Now()
		if err := s.repo.Update(txCtx, locked); err != nil {
			return err
		}
		o = locked
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	return o, nil
}

// ExpireAcceptance forces the acceptance timeout: EXPIRED, stock released,
// hold voided. Safe to race with Accept/Decline; the lock loser gets
// ErrInvalidStatus.
func (s *Service) ExpireAcceptance(ctx context.Context, orderID string) (Order, error) {
	var o Order
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		locked, err := s.repo.GetForUpdate(txCtx, orderID)
		if err != nil {
			return err
		}
		if locked.Status != StatusPendingAcceptance {
			return fmt.Errorf("%w: expire acceptance in %s", ErrInvalidStatus, locked.Status)
		}
		if err := s.releaseLocked(txCtx, &locked); err != nil {
			return err
		}
		if _, err := s.payments.Void(txCtx, orderID); err != nil && !errors.Is(err, payments.ErrNotFound) {
			return err
		}
		if err := locked.transitionTo(StatusExpired, s.clock.Now()); err != nil {
			return err
		}
		if err := s.repo.Update(txCtx, locked); err != nil {
			return err
		}
		o = locked
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	metrics.OrderTransitions.WithLabelValues(string(StatusExpired)).Inc()
	s.notifier.Notify(ctx, EventOrderExpired, o)
	return o, nil
}

// CancelStaleCreated recovers an order left in CREATED by a crash between
// reservation and pre-authorization: stock is credited back, the payment
// record (if the crash happened mid-gateway-call) is closed, and the order
// exits via CANCELLED.
func (s *Service) CancelStaleCreated(ctx context.Context, orderID string) (Order, error) {
	var o Order
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		locked, err := s.repo.GetForUpdate(txCtx, orderID)
		if err != nil {
			return err
		}
		if locked.Status != StatusCreated {
			return fmt.Errorf("%w: cancel stale created in %s", ErrInvalidStatus, locked.Status)
		}
		if err := s.releaseLocked(txCtx, &locked); err != nil {
			return err
		}
		if _, err := s.payments.Void(txCtx, orderID); err != nil && !errors.Is(err, payments.ErrNotFound) {
			return err
		}
		locked.CancelReason = "abandoned before payment"
		if err := locked.transitionTo(StatusCancelled, s.clock.Now()); err != nil {
			return err
		}
		if err := s.repo.Update(txCtx, locked); err != nil {
			return err
		}
		o = locked
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	metrics.OrderTransitions.WithLabelValues(string(StatusCancelled)).Inc()
	s.notifier.Notify(ctx, EventOrderCancelled, o)
	return o, nil
}

// ExpirePickup forces the pickup timeout. Capture already happened, so no
// payment or inventory movement here; the order is flagged for downstream
// refund policy.
func (s *Service) ExpirePickup(ctx context.Context, orderID string) (Order, error) {
	var o Order
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		locked, err := s.repo.GetForUpdate(txCtx, orderID)
		if err != nil {
			return err
		}
		if locked.Status != StatusReadyForPickup {
			return fmt.Errorf("%w: expire pickup in %s", ErrInvalidStatus, locked.Status)
		}
		locked.RefundFlagged = true
		if err := locked.transitionTo(StatusExpired, s.clock.Now()); err != nil {
			return err
		}
		if err := s.repo.Update(txCtx, locked); err != nil {
			return err
		}
		o = locked
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	metrics.OrderTransitions.WithLabelValues(string(StatusExpired)).Inc()
	s.notifier.Notify(ctx, EventOrderExpired, o)
	return o, nil
}

// Get returns the order when the caller is its customer or its outlet.
func (s *Service) Get(ctx context.Context, callerID, orderID string) (Order, error) {
	o, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if o.CustomerID != callerID && o.OutletID != callerID {
		return Order{}, ErrAccessDenied
	}
	return o, nil
}

func (s *Service) ListForCustomer(ctx context.Context, customerID string, limit int) ([]Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.repo.ListByCustomer(ctx, customerID, limit)
}

func (s *Service) ListForOutlet(ctx context.Context, outletID string, limit int) ([]Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.repo.ListByOutlet(ctx, outletID, limit)
}

// StaleCreated, DueForAcceptance, DueForPickup and DueForCompletion expose
// the sweeper's work lists.
func (s *Service) StaleCreated(ctx context.Context, limit int) ([]string, error) {
	return s.repo.StaleCreated(ctx, s.clock.Now().Add(-s.cfg.CreatedGrace), limit)
}

func (s *Service) DueForAcceptance(ctx context.Context, limit int) ([]string, error) {
	return s.repo.DueForAcceptance(ctx, s.clock.Now(), limit)
}

func (s *Service) DueForPickup(ctx context.Context, limit int) ([]string, error) {
	return s.repo.DueForPickup(ctx, s.clock.Now(), limit)
}

func (s *Service) DueForCompletion(ctx context.Context, limit int) ([]string, error) {
	return s.repo.DueForCompletion(ctx, s.clock.Now().Add(-s.cfg.CompletionWindow), limit)
}

// outletTransition runs the common lock -> authorize -> mutate -> write
// sequence for outlet-driven transitions.
func (s *Service) outletTransition(ctx context.Context, outletID, orderID string, to Status, mutate func(*Order, time.Time) error) (Order, error) {
	var o Order
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		locked, err := s.repo.GetForUpdate(txCtx, orderID)
		if err != nil {
			return err
		}
		if locked.OutletID != outletID {
			return ErrAccessDenied
		}
		if !CanTransition(locked.Status, to) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidStatus, locked.Status, to)
		}
		now := s.clock.Now()
		if mutate != nil {
			if err := mutate(&locked, now); err != nil {
				return err
			}
		}
		if err := locked.transitionTo(to, now); err != nil {
			return err
		}
		if err := s.repo.Update(txCtx, locked); err != nil {
			return err
		}
		o = locked
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	metrics.OrderTransitions.WithLabelValues(string(to)).Inc()
	return o, nil
}

// declineLocked performs the DECLINED exit on an already-locked order:
// release stock, void the hold, write the reason.
func (s *Service) declineLocked(ctx context.Context, o *Order, reason string) error {
	if !CanTransition(o.Status, StatusDeclined) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatus, o.Status, StatusDeclined)
	}
	if err := s.releaseLocked(ctx, o); err != nil {
		return err
	}
	if _, err := s.payments.Void(ctx, o.ID); err != nil && !errors.Is(err, payments.ErrNotFound) {
		return err
	}
	o.DeclineReason = reason
	if err := o.transitionTo(StatusDeclined, s.clock.Now()); err != nil {
		return err
	}
	return s.repo.Update(ctx, *o)
}

// releaseLocked credits the order's reservations back exactly once. The
// claim flag makes a second release a no-op instead of a double credit.
func (s *Service) releaseLocked(ctx context.Context, o *Order) error {
	claimed, err := s.repo.ClaimInventoryRelease(ctx, o.ID)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}
	o.InventoryReleased = true
	return s.ledger.Release(ctx, reservationLines(o.Lines))
}

func reservationLines(lines []Line) []offers.Line {
	out := make([]offers.Line, 0, len(lines))
	for _, l := range lines {
		out = append(out, offers.Line{OfferID: l.OfferID, Quantity: l.Quantity})
	}
	return out
}
