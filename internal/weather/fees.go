package weather

import "github.com/shopspring/decimal"

// Standard fee table for normal conditions, tiered by order subtotal.
// Amounts are rupees; the wire unit everywhere else is paise.
var (
	smallOrderThreshold = decimal.NewFromInt(199)
	freeDeliveryFloor   = decimal.NewFromInt(499)

	smallOrderFee = decimal.NewFromInt(40)
	standardFee   = decimal.NewFromInt(20)

	// Flat fee applied whenever conditions are bad and the observation
	// carries no explicit override.
	defaultBadWeatherFee = decimal.NewFromInt(30)

	paisePerRupee = decimal.NewFromInt(100)
)

// tieredFeePaise computes the normal-conditions delivery fee for a subtotal.
func tieredFeePaise(subtotalPaise int64) int64 {
	subtotal := decimal.NewFromInt(subtotalPaise).Div(paisePerRupee)
	switch {
	case subtotal.LessThan(smallOrderThreshold):
		return smallOrderFee.Mul(paisePerRupee).IntPart()
	case subtotal.LessThan(freeDeliveryFloor):
		return standardFee.Mul(paisePerRupee).IntPart()
	default:
		return 0
	}
}

func defaultBadWeatherFeePaise() int64 {
	return defaultBadWeatherFee.Mul(paisePerRupee).IntPart()
}
