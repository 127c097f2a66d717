package orders

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/freshmandi/freshmandi-backend/pkg/db/models"
	"github.com/freshmandi/freshmandi-backend/pkg/enums"
)

func TestCanTransition(t *testing.T) {
	t.Parallel()

	cases := []struct {
		from, to enums.SubOrderState
		want     bool
	}{
		{enums.SubOrderPending, enums.SubOrderReserving, true},
		{enums.SubOrderReserving, enums.SubOrderConfirmed, true},
		{enums.SubOrderConfirmed, enums.SubOrderAccepted, true},
		{enums.SubOrderAccepted, enums.SubOrderPrepared, true},
		{enums.SubOrderPrepared, enums.SubOrderOutForDelivery, true},
		{enums.SubOrderOutForDelivery, enums.SubOrderDelivered, true},
		{enums.SubOrderPrepared, enums.SubOrderCancelled, true},
		{enums.SubOrderOutForDelivery, enums.SubOrderCancelled, false},
		{enums.SubOrderAccepted, enums.SubOrderFailed, false},
		{enums.SubOrderConfirmed, enums.SubOrderFailed, true},
		{enums.SubOrderPending, enums.SubOrderDelivered, false},
		{enums.SubOrderDelivered, enums.SubOrderPending, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestParentStateIsMinimumProgress(t *testing.T) {
	t.Parallel()

	// One vendor delivered, the other still preparing: the order is not
	// delivered yet.
	got := ParentState([]enums.SubOrderState{enums.SubOrderDelivered, enums.SubOrderPrepared})
	if got != enums.SubOrderPrepared {
		t.Fatalf("expected prepared, got %s", got)
	}

	got = ParentState([]enums.SubOrderState{enums.SubOrderDelivered, enums.SubOrderDelivered})
	if got != enums.SubOrderDelivered {
		t.Fatalf("expected delivered once all sub-orders deliver, got %s", got)
	}
}

func TestParentStateFailureAndCancellation(t *testing.T) {
	t.Parallel()

	if got := ParentState([]enums.SubOrderState{enums.SubOrderConfirmed, enums.SubOrderFailed}); got != enums.SubOrderFailed {
		t.Fatalf("any failed sub-order must fail the order, got %s", got)
	}
	if got := ParentState([]enums.SubOrderState{enums.SubOrderCancelled, enums.SubOrderCancelled}); got != enums.SubOrderCancelled {
		t.Fatalf("all-cancelled must cancel the order, got %s", got)
	}
	// A single cancelled slice does not hide the live one.
	if got := ParentState([]enums.SubOrderState{enums.SubOrderCancelled, enums.SubOrderAccepted}); got != enums.SubOrderAccepted {
		t.Fatalf("expected accepted, got %s", got)
	}
	if got := ParentState(nil); got != enums.SubOrderPending {
		t.Fatalf("expected pending for empty input, got %s", got)
	}
}

func TestReplayFoldsLogIntoStates(t *testing.T) {
	t.Parallel()

	orderID := uuid.New()
	subA := uuid.New()
	subB := uuid.New()
	base := time.Now().UTC()

	event := func(sub uuid.UUID, from, to enums.SubOrderState, offset time.Duration) models.OrderStatusEvent {
		return models.OrderStatusEvent{
			ID:         uuid.New(),
			OrderID:    orderID,
			SubOrderID: &sub,
			FromState:  from,
			ToState:    to,
			Actor:      "system",
			CreatedAt:  base.Add(offset),
		}
	}

	// Deliberately shuffled; replay must order by time.
	events := []models.OrderStatusEvent{
		event(subA, enums.SubOrderReserving, enums.SubOrderConfirmed, 2*time.Second),
		event(subA, enums.SubOrderPending, enums.SubOrderReserving, time.Second),
		event(subB, enums.SubOrderPending, enums.SubOrderReserving, time.Second),
		event(subA, enums.SubOrderConfirmed, enums.SubOrderAccepted, 3*time.Second),
		event(subB, enums.SubOrderReserving, enums.SubOrderConfirmed, 4*time.Second),
	}

	states := Replay(events)
	if states[subA] != enums.SubOrderAccepted {
		t.Fatalf("expected sub A accepted, got %s", states[subA])
	}
	if states[subB] != enums.SubOrderConfirmed {
		t.Fatalf("expected sub B confirmed, got %s", states[subB])
	}
	if got := ReplayParent(events); got != enums.SubOrderConfirmed {
		t.Fatalf("expected parent confirmed, got %s", got)
	}
}
