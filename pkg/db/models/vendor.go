package models

import (
	"time"

	"github.com/google/uuid"
)

// Vendor fulfills cart lines for the zones it is assigned to.
type Vendor struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name            string    `gorm:"column:name;not null"`
	Code            string    `gorm:"column:code;not null;uniqueIndex"`
	DarkStore       bool      `gorm:"column:dark_store;not null;default:false"`
	PrepTimeMinutes int       `gorm:"column:prep_time_minutes;not null;default:30"`
	Active          bool      `gorm:"column:active;not null;default:true"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
}

// VendorZoneAssignment attaches a vendor to a zone with a routing priority.
// At most one assignment per zone is primary under single-vendor mode; the
// partial unique index lives in the migrations.
type VendorZoneAssignment struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	VendorID  uuid.UUID `gorm:"column:vendor_id;type:uuid;not null;index"`
	ZoneID    uuid.UUID `gorm:"column:zone_id;type:uuid;not null;index"`
	Priority  int       `gorm:"column:priority;not null;default:0"`
	IsPrimary bool      `gorm:"column:is_primary;not null;default:false"`
	Active    bool      `gorm:"column:active;not null;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// VendorCategoryAssignment maps (zone, category-or-subcategory) to a vendor.
// Exclusivity is enforced by a partial unique index on (zone_id, category)
// where exclusive and active, not just application logic.
type VendorCategoryAssignment struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	VendorID    uuid.UUID `gorm:"column:vendor_id;type:uuid;not null;index"`
	ZoneID      uuid.UUID `gorm:"column:zone_id;type:uuid;not null;index"`
	Category    string    `gorm:"column:category;not null"`
	Subcategory *string   `gorm:"column:subcategory"`
	Exclusive   bool      `gorm:"column:exclusive;not null;default:false"`
	Active      bool      `gorm:"column:active;not null;default:true"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}
