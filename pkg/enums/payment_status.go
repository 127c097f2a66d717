package enums

import "fmt"

// PaymentStatus mirrors what the external payment authorizer reports per sub-order.
type PaymentStatus string

const (
	PaymentPending       PaymentStatus = "pending"
	PaymentCaptured      PaymentStatus = "captured"
	PaymentFailed        PaymentStatus = "failed"
	PaymentRefundPending PaymentStatus = "refund_pending"
	PaymentRefunded      PaymentStatus = "refunded"
	PaymentRefundFailed  PaymentStatus = "refund_failed"
)

var validPaymentStatuses = []PaymentStatus{
	PaymentPending,
	PaymentCaptured,
	PaymentFailed,
	PaymentRefundPending,
	PaymentRefunded,
	PaymentRefundFailed,
}

// IsValid reports whether the value matches the canonical payment status enum.
func (p PaymentStatus) IsValid() bool {
	for _, candidate := range validPaymentStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentStatus converts the raw string to PaymentStatus.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	for _, candidate := range validPaymentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment status %q", value)
}
