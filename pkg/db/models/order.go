package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/freshmandi/freshmandi-backend/pkg/enums"
	"github.com/freshmandi/freshmandi-backend/pkg/types"
)

// Order is the parent aggregate placed by a user. Its State column is a
// projection derived from the sub-orders; the status event log is the source
// of truth and the projection can always be rebuilt from it.
type Order struct {
	ID              uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	UserID          uuid.UUID              `gorm:"column:user_id;type:uuid;not null;index"`
	AreaID          uuid.UUID              `gorm:"column:area_id;type:uuid;not null"`
	ZoneID          uuid.UUID              `gorm:"column:zone_id;type:uuid;not null;index"`
	State           enums.SubOrderState    `gorm:"column:state;not null;default:'pending';index"`
	SubtotalPaise   int64                  `gorm:"column:subtotal_paise;not null"`
	DeliveryFee     int64                  `gorm:"column:delivery_fee_paise;not null;default:0"`
	WeatherSnapshot *types.WeatherSnapshot `gorm:"column:weather_snapshot;type:jsonb;serializer:json"`
	Address         string                 `gorm:"column:address;not null"`
	Lat             float64                `gorm:"column:lat;not null"`
	Lng             float64                `gorm:"column:lng;not null"`
	SubOrders       []VendorSubOrder       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time              `gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt       time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

// VendorSubOrder is the slice of an order fulfilled by one vendor.
type VendorSubOrder struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderID       uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	VendorID      uuid.UUID           `gorm:"column:vendor_id;type:uuid;not null;index"`
	State         enums.SubOrderState `gorm:"column:state;not null;default:'pending';index"`
	PaymentStatus enums.PaymentStatus `gorm:"column:payment_status;not null;default:'pending'"`
	SubtotalPaise int64               `gorm:"column:subtotal_paise;not null"`
	Items         []OrderLineItem     `gorm:"foreignKey:SubOrderID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderLineItem snapshots a cart line at purchase time. Name and unit price
// are frozen so later catalog edits cannot rewrite history.
type OrderLineItem struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	SubOrderID     uuid.UUID  `gorm:"column:sub_order_id;type:uuid;not null;index"`
	ProductID      uuid.UUID  `gorm:"column:product_id;type:uuid;not null"`
	ProductName    string     `gorm:"column:product_name;not null"`
	Category       string     `gorm:"column:category;not null"`
	Subcategory    *string    `gorm:"column:subcategory"`
	Qty            int        `gorm:"column:qty;not null"`
	UnitPricePaise int64      `gorm:"column:unit_price_paise;not null"`
	ReservationID  *uuid.UUID `gorm:"column:reservation_id;type:uuid"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
}

// OrderStatusEvent is the append-only audit log of every state transition.
// Rows are never updated or deleted.
type OrderStatusEvent struct {
	ID         uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderID    uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	SubOrderID *uuid.UUID          `gorm:"column:sub_order_id;type:uuid;index"`
	FromState  enums.SubOrderState `gorm:"column:from_state;not null"`
	ToState    enums.SubOrderState `gorm:"column:to_state;not null"`
	Reason     string              `gorm:"column:reason"`
	Actor      string              `gorm:"column:actor;not null"`
	CreatedAt  time.Time           `gorm:"column:created_at;autoCreateTime;index"`
}
