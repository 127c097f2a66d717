package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/freshmandi/freshmandi-backend/pkg/types"
)

// Region is the top of the coverage hierarchy.
type Region struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name      string    `gorm:"column:name;not null;uniqueIndex"`
	Active    bool      `gorm:"column:active;not null;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// Zone is a delivery sub-unit of a region, served by assigned vendors.
type Zone struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	RegionID  uuid.UUID `gorm:"column:region_id;type:uuid;not null;index"`
	Name      string    `gorm:"column:name;not null"`
	Active    bool      `gorm:"column:active;not null;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// Area is the smallest coverage unit; its geofence decides serviceability.
// Boundary edits bump Version, rows are otherwise immutable in normal operation.
type Area struct {
	ID        uuid.UUID     `gorm:"column:id;type:uuid;primaryKey"`
	ZoneID    uuid.UUID     `gorm:"column:zone_id;type:uuid;not null;index"`
	Name      string        `gorm:"column:name;not null"`
	Geofence  types.Polygon `gorm:"column:geofence;type:jsonb;not null"`
	Version   int           `gorm:"column:version;not null;default:1"`
	Active    bool          `gorm:"column:active;not null;default:true"`
	CreatedAt time.Time     `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time     `gorm:"column:updated_at;autoUpdateTime"`
}
