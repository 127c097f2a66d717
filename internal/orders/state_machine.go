package orders

import (
	"sort"

	"github.com/google/uuid"

	"github.com/freshmandi/freshmandi-backend/pkg/db/models"
	"github.com/freshmandi/freshmandi-backend/pkg/enums"
)

// allowedTransitions is the forward path plus the two failure exits.
// Cancellation stays open until the rider leaves; failure only makes sense
// before the vendor has accepted.
var allowedTransitions = map[enums.SubOrderState][]enums.SubOrderState{
	enums.SubOrderPending:        {enums.SubOrderReserving, enums.SubOrderCancelled, enums.SubOrderFailed},
	enums.SubOrderReserving:      {enums.SubOrderConfirmed, enums.SubOrderCancelled, enums.SubOrderFailed},
	enums.SubOrderConfirmed:      {enums.SubOrderAccepted, enums.SubOrderCancelled, enums.SubOrderFailed},
	enums.SubOrderAccepted:       {enums.SubOrderPrepared, enums.SubOrderCancelled},
	enums.SubOrderPrepared:       {enums.SubOrderOutForDelivery, enums.SubOrderCancelled},
	enums.SubOrderOutForDelivery: {enums.SubOrderDelivered},
}

// CanTransition reports whether moving from one state to another is legal.
func CanTransition(from, to enums.SubOrderState) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// ParentState aggregates sub-order states into the order-level projection.
// The order shows the minimum progress of its live sub-orders, so a
// partially delivered order stays visibly in flight. Failure of any
// sub-order fails the order; the order is cancelled only when every
// sub-order is.
func ParentState(states []enums.SubOrderState) enums.SubOrderState {
	if len(states) == 0 {
		return enums.SubOrderPending
	}
	allCancelled := true
	for _, state := range states {
		if state == enums.SubOrderFailed {
			return enums.SubOrderFailed
		}
		if state != enums.SubOrderCancelled {
			allCancelled = false
		}
	}
	if allCancelled {
		return enums.SubOrderCancelled
	}

	minState := enums.SubOrderDelivered
	minRank, _ := minState.Progress()
	for _, state := range states {
		rank, onPath := state.Progress()
		if !onPath {
			continue
		}
		if rank < minRank {
			minRank = rank
			minState = state
		}
	}
	return minState
}

// Replay folds the append-only event log back into per-sub-order states.
// It is a pure function of the log, so the projection columns can always be
// rebuilt after a crash between the event write and the projection write.
func Replay(events []models.OrderStatusEvent) map[uuid.UUID]enums.SubOrderState {
	ordered := make([]models.OrderStatusEvent, len(events))
	copy(ordered, events)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	states := make(map[uuid.UUID]enums.SubOrderState)
	for _, event := range ordered {
		if event.SubOrderID == nil {
			continue
		}
		states[*event.SubOrderID] = event.ToState
	}
	return states
}

// ReplayParent rebuilds the order-level projection from the log.
func ReplayParent(events []models.OrderStatusEvent) enums.SubOrderState {
	bySubOrder := Replay(events)
	if len(bySubOrder) == 0 {
		return enums.SubOrderPending
	}
	states := make([]enums.SubOrderState, 0, len(bySubOrder))
	for _, state := range bySubOrder {
		states = append(states, state)
	}
	return ParentState(states)
}
