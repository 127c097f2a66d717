package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/freshmandi/freshmandi-backend/pkg/db/models"
	"github.com/freshmandi/freshmandi-backend/pkg/enums"
	"github.com/freshmandi/freshmandi-backend/pkg/pagination"
)

// Repository persists orders, sub-orders, and the status event log.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) error
	FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindSubOrder(ctx context.Context, id uuid.UUID) (*models.VendorSubOrder, error)
	ListSubOrders(ctx context.Context, orderID uuid.UUID) ([]models.VendorSubOrder, error)
	ListByUser(ctx context.Context, userID uuid.UUID, state enums.SubOrderState, cursor *pagination.Cursor, limit int) ([]models.Order, error)
	AppendEvent(ctx context.Context, event *models.OrderStatusEvent) error
	ListEvents(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusEvent, error)
	UpdateSubOrderState(ctx context.Context, id uuid.UUID, state enums.SubOrderState) error
	UpdateSubOrderPaymentStatus(ctx context.Context, id uuid.UUID, status enums.PaymentStatus) error
	UpdateOrderState(ctx context.Context, id uuid.UUID, state enums.SubOrderState) error
	ListHeldReservations(ctx context.Context, orderID uuid.UUID) ([]models.Reservation, error)
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

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("SubOrders").
		Preload("SubOrders.Items").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindSubOrder(ctx context.Context, id uuid.UUID) (*models.VendorSubOrder, error) {
	var subOrder models.VendorSubOrder
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&subOrder).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &subOrder, nil
}

func (r *repository) ListSubOrders(ctx context.Context, orderID uuid.UUID) ([]models.VendorSubOrder, error) {
	var subOrders []models.VendorSubOrder
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at asc").
		Find(&subOrders).Error
	return subOrders, err
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, state enums.SubOrderState, cursor *pagination.Cursor, limit int) ([]models.Order, error) {
	query := r.db.WithContext(ctx).
		Preload("SubOrders").
		Where("user_id = ?", userID).
		Order("created_at desc, id desc").
		Limit(limit)
	if state != "" {
		query = query.Where("state = ?", state)
	}
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}
	var orders []models.Order
	err := query.Find(&orders).Error
	return orders, err
}

func (r *repository) AppendEvent(ctx context.Context, event *models.OrderStatusEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) ListEvents(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusEvent, error) {
	var events []models.OrderStatusEvent
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at asc").
		Find(&events).Error
	return events, err
}

func (r *repository) UpdateSubOrderState(ctx context.Context, id uuid.UUID, state enums.SubOrderState) error {
	return r.db.WithContext(ctx).
		Model(&models.VendorSubOrder{}).
		Where("id = ?", id).
		Update("state", state).Error
}

func (r *repository) UpdateSubOrderPaymentStatus(ctx context.Context, id uuid.UUID, status enums.PaymentStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.VendorSubOrder{}).
		Where("id = ?", id).
		Update("payment_status", status).Error
}

func (r *repository) UpdateOrderState(ctx context.Context, id uuid.UUID, state enums.SubOrderState) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Update("state", state).Error
}

func (r *repository) ListHeldReservations(ctx context.Context, orderID uuid.UUID) ([]models.Reservation, error) {
	var reservations []models.Reservation
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status = ?", orderID, enums.ReservationHeld).
		Find(&reservations).Error
	return reservations, err
}
