package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/freshmandi/freshmandi-backend/pkg/enums"
)

// WeatherStatus is the latest observation-backed policy for a zone.
// One row per zone, upserted by the poller.
type WeatherStatus struct {
	ZoneID           uuid.UUID                   `gorm:"column:zone_id;type:uuid;primaryKey"`
	Classification   enums.WeatherClassification `gorm:"column:classification;not null;default:'normal'"`
	FeeOverridePaise int64                       `gorm:"column:fee_override_paise;not null;default:0"`
	WindowMinutes    int                         `gorm:"column:window_minutes;not null;default:0"`
	Suspended        bool                        `gorm:"column:suspended;not null;default:false"`
	ObservedAt       time.Time                   `gorm:"column:observed_at;not null"`
	UpdatedAt        time.Time                   `gorm:"column:updated_at;autoUpdateTime"`
}
