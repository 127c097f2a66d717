package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/freshmandi/freshmandi-backend/pkg/enums"
)

// InventoryRecord tracks stock per (vendor, product, zone).
// Invariant: 0 <= reserved_qty <= stock_qty. Rows are mutated only through
// the ledger's compare-and-swap updates keyed on Version.
type InventoryRecord struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	VendorID    uuid.UUID `gorm:"column:vendor_id;type:uuid;not null;uniqueIndex:ux_inventory_vendor_product_zone,priority:1"`
	ProductID   uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_inventory_vendor_product_zone,priority:2"`
	ZoneID      uuid.UUID `gorm:"column:zone_id;type:uuid;not null;uniqueIndex:ux_inventory_vendor_product_zone,priority:3"`
	StockQty    int       `gorm:"column:stock_qty;not null;default:0"`
	ReservedQty int       `gorm:"column:reserved_qty;not null;default:0"`
	Version     int64     `gorm:"column:version;not null;default:1"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Available is the quantity new reservations can still claim.
func (r InventoryRecord) Available() int {
	return r.StockQty - r.ReservedQty
}

// Reservation is an expiring hold on an inventory record.
type Reservation struct {
	ID         uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	RecordID   uuid.UUID               `gorm:"column:record_id;type:uuid;not null;index"`
	VendorID   uuid.UUID               `gorm:"column:vendor_id;type:uuid;not null"`
	ProductID  uuid.UUID               `gorm:"column:product_id;type:uuid;not null"`
	ZoneID     uuid.UUID               `gorm:"column:zone_id;type:uuid;not null"`
	Qty        int                     `gorm:"column:qty;not null"`
	OrderID    *uuid.UUID              `gorm:"column:order_id;type:uuid;index"`
	SubOrderID *uuid.UUID              `gorm:"column:sub_order_id;type:uuid;index"`
	Status     enums.ReservationStatus `gorm:"column:status;not null;default:'held';index"`
	ExpiresAt  time.Time               `gorm:"column:expires_at;not null;index"`
	CreatedAt  time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
