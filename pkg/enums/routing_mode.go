package enums

import "fmt"

// RoutingMode selects the vendor resolution strategy for a deployment.
type RoutingMode string

const (
	RoutingModeSingleVendor         RoutingMode = "single_vendor"
	RoutingModeSubcategoryExclusive RoutingMode = "subcategory_exclusive"
	RoutingModeHybridDarkStore      RoutingMode = "hybrid_dark_store"
)

var validRoutingModes = []RoutingMode{
	RoutingModeSingleVendor,
	RoutingModeSubcategoryExclusive,
	RoutingModeHybridDarkStore,
}

// IsValid reports whether the value matches the canonical routing mode enum.
func (m RoutingMode) IsValid() bool {
	for _, candidate := range validRoutingModes {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseRoutingMode converts the raw string to RoutingMode.
func ParseRoutingMode(value string) (RoutingMode, error) {
	for _, candidate := range validRoutingModes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid routing mode %q", value)
}
