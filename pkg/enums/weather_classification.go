package enums

import "fmt"

// WeatherClassification describes the delivery conditions for a zone.
type WeatherClassification string

const (
	WeatherNormal  WeatherClassification = "normal"
	WeatherBad     WeatherClassification = "bad"
	WeatherExtreme WeatherClassification = "extreme"
)

var validWeatherClassifications = []WeatherClassification{
	WeatherNormal,
	WeatherBad,
	WeatherExtreme,
}

// IsValid reports whether the value matches the canonical classification enum.
func (w WeatherClassification) IsValid() bool {
	for _, candidate := range validWeatherClassifications {
		if candidate == w {
			return true
		}
	}
	return false
}

// ParseWeatherClassification converts the raw string to WeatherClassification.
func ParseWeatherClassification(value string) (WeatherClassification, error) {
	for _, candidate := range validWeatherClassifications {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid weather classification %q", value)
}
