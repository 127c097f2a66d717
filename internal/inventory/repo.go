package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/freshmandi/freshmandi-backend/pkg/db/models"
	"github.com/freshmandi/freshmandi-backend/pkg/enums"
)

// Repository persists inventory records and reservations. Stock fields are
// only written through the versioned update; nothing else touches them.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindRecord(ctx context.Context, vendorID, productID, zoneID uuid.UUID) (*models.InventoryRecord, error)
	// UpdateRecordCAS writes reserved and stock quantities conditioned on
	// the version being unchanged. Returns false on a version conflict.
	UpdateRecordCAS(ctx context.Context, recordID uuid.UUID, expectedVersion int64, stockQty, reservedQty int) (bool, error)
	CreateReservation(ctx context.Context, reservation *models.Reservation) error
	FindReservation(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	UpdateReservationStatus(ctx context.Context, id uuid.UUID, status enums.ReservationStatus) error
	AttachOrder(ctx context.Context, id, orderID, subOrderID uuid.UUID) error
	ListExpiredHeld(ctx context.Context, cutoff time.Time, limit int) ([]models.Reservation, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindRecord(ctx context.Context, vendorID, productID, zoneID uuid.UUID) (*models.InventoryRecord, error) {
	var record models.InventoryRecord
	err := r.db.WithContext(ctx).
		Where("vendor_id = ? AND product_id = ? AND zone_id = ?", vendorID, productID, zoneID).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *repository) UpdateRecordCAS(ctx context.Context, recordID uuid.UUID, expectedVersion int64, stockQty, reservedQty int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.InventoryRecord{}).
		Where("id = ? AND version = ?", recordID, expectedVersion).
		Updates(map[string]any{
			"stock_qty":    stockQty,
			"reserved_qty": reservedQty,
			"version":      expectedVersion + 1,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) CreateReservation(ctx context.Context, reservation *models.Reservation) error {
	return r.db.WithContext(ctx).Create(reservation).Error
}

func (r *repository) FindReservation(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	var reservation models.Reservation
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&reservation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &reservation, nil
}

func (r *repository) UpdateReservationStatus(ctx context.Context, id uuid.UUID, status enums.ReservationStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *repository) AttachOrder(ctx context.Context, id, orderID, subOrderID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("id = ?", id).
		Updates(map[string]any{"order_id": orderID, "sub_order_id": subOrderID}).Error
}

func (r *repository) ListExpiredHeld(ctx context.Context, cutoff time.Time, limit int) ([]models.Reservation, error) {
	var reservations []models.Reservation
	query := r.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", enums.ReservationHeld, cutoff).
		Order("expires_at asc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&reservations).Error
	return reservations, err
}
