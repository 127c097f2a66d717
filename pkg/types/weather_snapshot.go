package types

import "time"

// WeatherSnapshot freezes the delivery policy applied when an order was placed.
// Stored as jsonb on the order so fee disputes can be audited later.
type WeatherSnapshot struct {
	Classification string    `json:"classification"`
	FeePaise       int64     `json:"fee_paise"`
	WindowMinutes  int       `json:"window_minutes"`
	Stale          bool      `json:"stale,omitempty"`
	ObservedAt     time.Time `json:"observed_at"`
}
