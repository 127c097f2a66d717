package enums

import "fmt"

// SubOrderState is the lifecycle state of a single vendor sub-order.
// The parent order's displayed state is the minimum progress across its
// sub-orders, so ordering between the progress states matters.
type SubOrderState string

const (
	SubOrderPending        SubOrderState = "pending"
	SubOrderReserving      SubOrderState = "reserving"
	SubOrderConfirmed      SubOrderState = "confirmed"
	SubOrderAccepted       SubOrderState = "accepted"
	SubOrderPrepared       SubOrderState = "prepared"
	SubOrderOutForDelivery SubOrderState = "out_for_delivery"
	SubOrderDelivered      SubOrderState = "delivered"
	SubOrderCancelled      SubOrderState = "cancelled"
	SubOrderFailed         SubOrderState = "failed"
)

var validSubOrderStates = []SubOrderState{
	SubOrderPending,
	SubOrderReserving,
	SubOrderConfirmed,
	SubOrderAccepted,
	SubOrderPrepared,
	SubOrderOutForDelivery,
	SubOrderDelivered,
	SubOrderCancelled,
	SubOrderFailed,
}

// subOrderProgress ranks the forward path for min-progress aggregation.
// Terminal failure states are not part of the forward path.
var subOrderProgress = map[SubOrderState]int{
	SubOrderPending:        0,
	SubOrderReserving:      1,
	SubOrderConfirmed:      2,
	SubOrderAccepted:       3,
	SubOrderPrepared:       4,
	SubOrderOutForDelivery: 5,
	SubOrderDelivered:      6,
}

// IsValid reports whether the value matches the canonical sub-order state enum.
func (s SubOrderState) IsValid() bool {
	for _, candidate := range validSubOrderStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed.
func (s SubOrderState) IsTerminal() bool {
	return s == SubOrderDelivered || s == SubOrderCancelled || s == SubOrderFailed
}

// Progress returns the forward-path rank and whether the state is on it.
func (s SubOrderState) Progress() (int, bool) {
	rank, ok := subOrderProgress[s]
	return rank, ok
}

// ParseSubOrderState converts the raw string to SubOrderState.
func ParseSubOrderState(value string) (SubOrderState, error) {
	for _, candidate := range validSubOrderStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sub-order state %q", value)
}
