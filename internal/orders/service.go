package orders

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/freshmandi/freshmandi-backend/pkg/db/models"
	"github.com/freshmandi/freshmandi-backend/pkg/enums"
	pkgerrors "github.com/freshmandi/freshmandi-backend/pkg/errors"
	"github.com/freshmandi/freshmandi-backend/pkg/logger"
	"github.com/freshmandi/freshmandi-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ReservationSettler commits or releases inventory holds by token.
type ReservationSettler interface {
	Commit(ctx context.Context, token uuid.UUID) error
	Release(ctx context.Context, token uuid.UUID) error
}

// RefundRequester asks the payment collaborator to return captured money.
type RefundRequester interface {
	RequestRefund(ctx context.Context, orderID uuid.UUID, amountPaise int64) error
}

// Notifier publishes order lifecycle events. Implementations must never
// block or fail order progression.
type Notifier interface {
	OrderEvent(ctx context.Context, orderID uuid.UUID, event string)
}

// StatusUpdateInput drives one transition. SubOrderID narrows the update to
// a single vendor's slice; when nil every live sub-order moves.
type StatusUpdateInput struct {
	OrderID    uuid.UUID
	SubOrderID *uuid.UUID
	Target     enums.SubOrderState
	Actor      string
	Reason     string
}

// Service owns the order lifecycle after placement.
type Service interface {
	GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	// ListUserOrders pages a user's orders newest first. An empty state
	// means no filter.
	ListUserOrders(ctx context.Context, userID uuid.UUID, state enums.SubOrderState, params pagination.Params) ([]models.Order, string, error)
	// UpdateStatus is idempotent by (order, target state): replaying a
	// webhook or agent update that already landed is a no-op.
	UpdateStatus(ctx context.Context, input StatusUpdateInput) error
	// HandlePaymentResult settles the ledger: success commits every
	// reservation and accepts the sub-orders, failure releases and fails.
	HandlePaymentResult(ctx context.Context, orderID uuid.UUID, success bool, reason string) error
	CancelOrder(ctx context.Context, orderID uuid.UUID, actor, reason string) error
	// RebuildProjection refolds the event log into the state columns.
	RebuildProjection(ctx context.Context, orderID uuid.UUID) error
}

type service struct {
	repo      Repository
	tx        txRunner
	inventory ReservationSettler
	payments  RefundRequester
	notifier  Notifier
	logg      *logger.Logger
}

type ServiceParams struct {
	Repo      Repository
	Tx        txRunner
	Inventory ReservationSettler
	Payments  RefundRequester
	Notifier  Notifier
	Logger    *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("reservation settler required")
	}
	return &service{
		repo:      params.Repo,
		tx:        params.Tx,
		inventory: params.Inventory,
		payments:  params.Payments,
		notifier:  params.Notifier,
		logg:      params.Logger,
	}, nil
}

func (s *service) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindOrder(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) ListUserOrders(ctx context.Context, userID uuid.UUID, state enums.SubOrderState, params pagination.Params) ([]models.Order, string, error) {
	if userID == uuid.Nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if state != "" && !state.IsValid() {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "unknown state filter")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.ListByUser(ctx, userID, state, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	next := ""
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return rows, next, nil
}

func (s *service) UpdateStatus(ctx context.Context, input StatusUpdateInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Target.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown target state")
	}
	if input.Actor == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "actor required")
	}
	if input.Target == enums.SubOrderCancelled {
		return s.CancelOrder(ctx, input.OrderID, input.Actor, input.Reason)
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		subOrders, err := s.targetSubOrders(ctx, repo, input)
		if err != nil {
			return err
		}
		moved := false
		for i := range subOrders {
			// A cancelled or failed slice must not block the rest when
			// the whole order is being moved.
			if input.SubOrderID == nil && subOrders[i].State.IsTerminal() {
				continue
			}
			changed, err := s.transition(ctx, repo, &subOrders[i], input.Target, input.Actor, input.Reason)
			if err != nil {
				return err
			}
			moved = moved || changed
		}
		if !moved {
			return nil
		}
		return s.refreshParent(ctx, repo, input.OrderID)
	})
	if err != nil {
		return err
	}
	s.notify(ctx, input.OrderID, string(input.Target))
	return nil
}

func (s *service) targetSubOrders(ctx context.Context, repo Repository, input StatusUpdateInput) ([]models.VendorSubOrder, error) {
	if input.SubOrderID != nil {
		subOrder, err := repo.FindSubOrder(ctx, *input.SubOrderID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sub-order")
		}
		if subOrder == nil || subOrder.OrderID != input.OrderID {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sub-order not found")
		}
		return []models.VendorSubOrder{*subOrder}, nil
	}
	subOrders, err := repo.ListSubOrders(ctx, input.OrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sub-orders")
	}
	if len(subOrders) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return subOrders, nil
}

// transition performs one log-then-apply step. The event row is written
// before the projection so a crash in between leaves the log authoritative.
func (s *service) transition(ctx context.Context, repo Repository, subOrder *models.VendorSubOrder, target enums.SubOrderState, actor, reason string) (bool, error) {
	if subOrder.State == target {
		return false, nil
	}
	if !CanTransition(subOrder.State, target) {
		// Replays of an earlier webhook arrive after the state moved on;
		// treat a target the sub-order already passed as a no-op.
		if passed(subOrder.State, target) {
			return false, nil
		}
		return false, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot move sub-order from %s to %s", subOrder.State, target))
	}
	event := &models.OrderStatusEvent{
		ID:         uuid.New(),
		OrderID:    subOrder.OrderID,
		SubOrderID: &subOrder.ID,
		FromState:  subOrder.State,
		ToState:    target,
		Reason:     reason,
		Actor:      actor,
	}
	if err := repo.AppendEvent(ctx, event); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append status event")
	}
	if err := repo.UpdateSubOrderState(ctx, subOrder.ID, target); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply status")
	}
	subOrder.State = target
	return true, nil
}

// passed reports whether target sits behind the current state on the
// forward path.
func passed(current, target enums.SubOrderState) bool {
	currentRank, currentOn := current.Progress()
	targetRank, targetOn := target.Progress()
	return currentOn && targetOn && targetRank < currentRank
}

func (s *service) refreshParent(ctx context.Context, repo Repository, orderID uuid.UUID) error {
	subOrders, err := repo.ListSubOrders(ctx, orderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sub-orders")
	}
	states := make([]enums.SubOrderState, len(subOrders))
	for i, subOrder := range subOrders {
		states[i] = subOrder.State
	}
	if err := repo.UpdateOrderState(ctx, orderID, ParentState(states)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order projection")
	}
	return nil
}

func (s *service) HandlePaymentResult(ctx context.Context, orderID uuid.UUID, success bool, reason string) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	var tokens []uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		subOrders, err := repo.ListSubOrders(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sub-orders")
		}
		if len(subOrders) == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		target := enums.SubOrderAccepted
		paymentStatus := enums.PaymentCaptured
		if !success {
			target = enums.SubOrderFailed
			paymentStatus = enums.PaymentFailed
			if reason == "" {
				reason = "payment declined"
			}
		}
		moved := false
		for i := range subOrders {
			subOrder := &subOrders[i]
			if subOrder.State != enums.SubOrderConfirmed {
				continue
			}
			changed, err := s.transition(ctx, repo, subOrder, target, "payment-service", reason)
			if err != nil {
				return err
			}
			if !changed {
				continue
			}
			moved = true
			if err := repo.UpdateSubOrderPaymentStatus(ctx, subOrder.ID, paymentStatus); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment status")
			}
		}
		if !moved {
			return nil
		}
		held, err := repo.ListHeldReservations(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservations")
		}
		for _, reservation := range held {
			tokens = append(tokens, reservation.ID)
		}
		return s.refreshParent(ctx, repo, orderID)
	})
	if err != nil {
		return err
	}

	// Ledger settlement is idempotent, so replaying after a crash here is
	// safe; the sweeper covers tokens this loop never reaches.
	for _, token := range tokens {
		var settleErr error
		if success {
			settleErr = s.inventory.Commit(ctx, token)
		} else {
			settleErr = s.inventory.Release(ctx, token)
		}
		if settleErr != nil && s.logg != nil {
			s.logg.Error(s.logg.WithOrderID(ctx, orderID.String()), "reservation settlement failed", settleErr)
		}
	}
	if success {
		s.notify(ctx, orderID, "payment_captured")
	} else {
		s.notify(ctx, orderID, "payment_failed")
	}
	return nil
}

func (s *service) CancelOrder(ctx context.Context, orderID uuid.UUID, actor, reason string) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	var (
		tokens       []uuid.UUID
		refundAmount int64
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		subOrders, err := repo.ListSubOrders(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sub-orders")
		}
		if len(subOrders) == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		moved := false
		for i := range subOrders {
			subOrder := &subOrders[i]
			if subOrder.State.IsTerminal() {
				continue
			}
			if subOrder.State == enums.SubOrderOutForDelivery {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "order is already out for delivery")
			}
			changed, err := s.transition(ctx, repo, subOrder, enums.SubOrderCancelled, actor, reason)
			if err != nil {
				return err
			}
			if !changed {
				continue
			}
			moved = true
			if subOrder.PaymentStatus == enums.PaymentCaptured {
				refundAmount += subOrder.SubtotalPaise
				if err := repo.UpdateSubOrderPaymentStatus(ctx, subOrder.ID, enums.PaymentRefundPending); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "flag refund")
				}
			}
		}
		if !moved {
			return nil
		}
		held, err := repo.ListHeldReservations(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservations")
		}
		for _, reservation := range held {
			tokens = append(tokens, reservation.ID)
		}
		return s.refreshParent(ctx, repo, orderID)
	})
	if err != nil {
		return err
	}

	for _, token := range tokens {
		if err := s.inventory.Release(ctx, token); err != nil && s.logg != nil {
			s.logg.Error(s.logg.WithOrderID(ctx, orderID.String()), "cancel release failed", err)
		}
	}
	if refundAmount > 0 && s.payments != nil {
		// Refunds can fail independently; the flag stays refund_pending so
		// a later retry can pick it up.
		if err := s.payments.RequestRefund(ctx, orderID, refundAmount); err != nil && s.logg != nil {
			s.logg.Error(s.logg.WithOrderID(ctx, orderID.String()), "refund request failed", err)
		}
	}
	s.notify(ctx, orderID, "cancelled")
	return nil
}

func (s *service) RebuildProjection(ctx context.Context, orderID uuid.UUID) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		events, err := repo.ListEvents(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load event log")
		}
		states := Replay(events)
		for subOrderID, state := range states {
			if err := repo.UpdateSubOrderState(ctx, subOrderID, state); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rebuild sub-order state")
			}
		}
		return s.refreshParent(ctx, repo, orderID)
	})
}

func (s *service) notify(ctx context.Context, orderID uuid.UUID, event string) {
	if s.notifier == nil {
		return
	}
	s.notifier.OrderEvent(ctx, orderID, event)
}
