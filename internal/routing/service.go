package routing

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/freshmandi/freshmandi-backend/internal/inventory"
	"github.com/freshmandi/freshmandi-backend/internal/orders"
	"github.com/freshmandi/freshmandi-backend/internal/vendors"
	"github.com/freshmandi/freshmandi-backend/internal/weather"
	"github.com/freshmandi/freshmandi-backend/internal/zones"
	"github.com/freshmandi/freshmandi-backend/pkg/db/models"
	"github.com/freshmandi/freshmandi-backend/pkg/enums"
	pkgerrors "github.com/freshmandi/freshmandi-backend/pkg/errors"
	"github.com/freshmandi/freshmandi-backend/pkg/logger"
	"github.com/freshmandi/freshmandi-backend/pkg/metrics"
	"github.com/freshmandi/freshmandi-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Authorizer hands the confirmed order to the payment collaborator. The
// outcome comes back later on the webhook.
type Authorizer interface {
	Authorize(ctx context.Context, orderID uuid.UUID, amountPaise int64) error
}

// Notifier publishes lifecycle events, fire-and-forget.
type Notifier interface {
	OrderEvent(ctx context.Context, orderID uuid.UUID, event string)
}

// PlaceOrderInput is a cart plus a delivery address.
type PlaceOrderInput struct {
	UserID  uuid.UUID
	Lines   []vendors.CartLine
	Address string
	Lat     float64
	Lng     float64
	// AllowPartial confirms the user accepted dropping unresolvable
	// lines. Without it any unresolved line rejects the whole cart.
	AllowPartial bool
}

// SubOrderSummary is the per-vendor slice reported back to the caller.
type SubOrderSummary struct {
	SubOrderID    uuid.UUID
	VendorID      uuid.UUID
	VendorName    string
	LineCount     int
	SubtotalPaise int64
}

// PlaceOrderResult is the success response of the saga.
type PlaceOrderResult struct {
	OrderID          uuid.UUID
	SubOrders        []SubOrderSummary
	SubtotalPaise    int64
	DeliveryFeePaise int64
	Weather          types.WeatherSnapshot
	DroppedLines     []vendors.UnresolvedLine
}

// Service is the order placement facade. It composes the zone directory,
// vendor resolver, weather engine, and inventory ledger into one saga with
// compensation instead of a cross-component transaction.
type Service interface {
	PlaceOrder(ctx context.Context, input PlaceOrderInput) (*PlaceOrderResult, error)
}

type service struct {
	zones     zones.Service
	weather   weather.Service
	vendors   vendors.Service
	inventory inventory.Service
	ordersTx  txRunner
	orders    orders.Repository
	payments  Authorizer
	notifier  Notifier
	metrics   *metrics.OrderMetrics
	logg      *logger.Logger
}

type ServiceParams struct {
	Zones     zones.Service
	Weather   weather.Service
	Vendors   vendors.Service
	Inventory inventory.Service
	Tx        txRunner
	Orders    orders.Repository
	Payments  Authorizer
	Notifier  Notifier
	Metrics   *metrics.OrderMetrics
	Logger    *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Zones == nil {
		return nil, fmt.Errorf("zones service required")
	}
	if params.Weather == nil {
		return nil, fmt.Errorf("weather service required")
	}
	if params.Vendors == nil {
		return nil, fmt.Errorf("vendors service required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	return &service{
		zones:     params.Zones,
		weather:   params.Weather,
		vendors:   params.Vendors,
		inventory: params.Inventory,
		ordersTx:  params.Tx,
		orders:    params.Orders,
		payments:  params.Payments,
		notifier:  params.Notifier,
		metrics:   params.Metrics,
		logg:      params.Logger,
	}, nil
}

func (s *service) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*PlaceOrderResult, error) {
	result, err := s.placeOrder(ctx, input)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			s.metrics.IncRejected(string(typed.Code()))
		} else {
			s.metrics.IncRejected(string(pkgerrors.CodeInternal))
		}
		return nil, err
	}
	s.metrics.IncPlaced()
	return result, nil
}

func (s *service) placeOrder(ctx context.Context, input PlaceOrderInput) (*PlaceOrderResult, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	area, err := s.zones.ResolveArea(ctx, input.Lat, input.Lng)
	if err != nil {
		return nil, err
	}
	zone, err := s.zones.ZoneOf(ctx, area.ID)
	if err != nil {
		return nil, err
	}

	// Weather precedence comes first: an extreme zone rejects every cart
	// before any vendor or stock work happens.
	policy, err := s.weather.CurrentPolicy(ctx, zone.ID)
	if err != nil {
		return nil, err
	}
	if policy.Suspended {
		return nil, pkgerrors.New(pkgerrors.CodeSuspended, "deliveries are suspended in this zone").
			WithDetails(map[string]any{"zoneId": zone.ID, "classification": policy.Classification})
	}

	resolution, err := s.vendors.ResolveVendors(ctx, zone.ID, input.Lines)
	if err != nil {
		return nil, err
	}
	if !resolution.FullyResolved() && !input.AllowPartial {
		details := make([]map[string]any, len(resolution.Unresolved))
		for i, line := range resolution.Unresolved {
			details[i] = map[string]any{"productId": line.ProductID, "reason": line.Reason}
		}
		return nil, pkgerrors.New(pkgerrors.CodeVendorUnresolved, "some items have no vendor, confirm substitution to continue").
			WithDetails(map[string]any{"lines": details})
	}

	reservations, err := s.reserveAll(ctx, zone.ID, resolution.Groups)
	if err != nil {
		return nil, err
	}

	order, summaries, err := s.persistOrder(ctx, input, area.ID, zone.ID, policy, resolution.Groups, reservations)
	if err != nil {
		// Persistence failed after stock was held; compensate now rather
		// than waiting for the sweeper.
		s.releaseAll(ctx, reservations)
		return nil, err
	}

	s.handoff(ctx, order)

	return &PlaceOrderResult{
		OrderID:          order.ID,
		SubOrders:        summaries,
		SubtotalPaise:    order.SubtotalPaise,
		DeliveryFeePaise: order.DeliveryFee,
		Weather:          *order.WeatherSnapshot,
		DroppedLines:     resolution.Unresolved,
	}, nil
}

func validateInput(input PlaceOrderInput) error {
	if input.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if strings.TrimSpace(input.Address) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "delivery address required")
	}
	if len(input.Lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart must contain at least one line")
	}
	return nil
}

// reservationKey identifies one hold by vendor line.
type reservationKey struct {
	VendorID  uuid.UUID
	ProductID uuid.UUID
}

// reserveAll attempts every hold in (vendor, product) sort order so
// concurrent orders touching overlapping product sets never lock in
// conflicting order. A cart may repeat a product across lines, so the
// quantities are summed into one hold per key first. Any failure
// releases everything acquired so far.
func (s *service) reserveAll(ctx context.Context, zoneID uuid.UUID, groups []vendors.VendorGroup) (map[reservationKey]*models.Reservation, error) {
	totals := make(map[reservationKey]int)
	for _, group := range groups {
		for _, line := range group.Lines {
			totals[reservationKey{VendorID: group.Vendor.ID, ProductID: line.ProductID}] += line.Qty
		}
	}
	keys := make([]reservationKey, 0, len(totals))
	for key := range totals {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].VendorID != keys[j].VendorID {
			return keys[i].VendorID.String() < keys[j].VendorID.String()
		}
		return keys[i].ProductID.String() < keys[j].ProductID.String()
	})

	acquired := make(map[reservationKey]*models.Reservation, len(keys))
	for _, key := range keys {
		reservation, err := s.inventory.Reserve(ctx, inventory.ReserveRequest{
			VendorID:  key.VendorID,
			ProductID: key.ProductID,
			ZoneID:    zoneID,
			Qty:       totals[key],
		})
		if err != nil {
			s.releaseAll(ctx, acquired)
			return nil, err
		}
		acquired[key] = reservation
	}
	return acquired, nil
}

// releaseAll is the saga compensation. Release is idempotent and the
// sweeper backs it up, so a failure here is logged and not retried inline.
func (s *service) releaseAll(ctx context.Context, acquired map[reservationKey]*models.Reservation) {
	for _, reservation := range acquired {
		if err := s.inventory.Release(ctx, reservation.ID); err != nil && s.logg != nil {
			logCtx := s.logg.WithField(ctx, "reservation_id", reservation.ID.String())
			s.logg.Error(logCtx, "compensating release failed", err)
		}
	}
}

func (s *service) persistOrder(
	ctx context.Context,
	input PlaceOrderInput,
	areaID, zoneID uuid.UUID,
	policy weather.Policy,
	groups []vendors.VendorGroup,
	reservations map[reservationKey]*models.Reservation,
) (*models.Order, []SubOrderSummary, error) {
	var subtotal int64
	for _, group := range groups {
		for _, line := range group.Lines {
			subtotal += line.UnitPricePaise * int64(line.Qty)
		}
	}
	snapshot := s.weather.Snapshot(policy, subtotal)

	order := &models.Order{
		ID:              uuid.New(),
		UserID:          input.UserID,
		AreaID:          areaID,
		ZoneID:          zoneID,
		State:           enums.SubOrderConfirmed,
		SubtotalPaise:   subtotal,
		DeliveryFee:     snapshot.FeePaise,
		WeatherSnapshot: &snapshot,
		Address:         input.Address,
		Lat:             input.Lat,
		Lng:             input.Lng,
	}

	var summaries []SubOrderSummary
	err := s.ordersTx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		for _, group := range groups {
			subOrder := models.VendorSubOrder{
				ID:            uuid.New(),
				OrderID:       order.ID,
				VendorID:      group.Vendor.ID,
				State:         enums.SubOrderConfirmed,
				PaymentStatus: enums.PaymentPending,
			}
			for _, line := range group.Lines {
				reservation := reservations[reservationKey{VendorID: group.Vendor.ID, ProductID: line.ProductID}]
				item := models.OrderLineItem{
					ID:             uuid.New(),
					SubOrderID:     subOrder.ID,
					ProductID:      line.ProductID,
					ProductName:    line.ProductName,
					Category:       line.Category,
					Subcategory:    line.Subcategory,
					Qty:            line.Qty,
					UnitPricePaise: line.UnitPricePaise,
				}
				if reservation != nil {
					item.ReservationID = &reservation.ID
				}
				subOrder.SubtotalPaise += line.UnitPricePaise * int64(line.Qty)
				subOrder.Items = append(subOrder.Items, item)
			}
			order.SubOrders = append(order.SubOrders, subOrder)
			summaries = append(summaries, SubOrderSummary{
				SubOrderID:    subOrder.ID,
				VendorID:      group.Vendor.ID,
				VendorName:    group.Vendor.Name,
				LineCount:     len(subOrder.Items),
				SubtotalPaise: subOrder.SubtotalPaise,
			})
		}
		if err := repo.CreateOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist order")
		}
		for i := range order.SubOrders {
			subOrder := &order.SubOrders[i]
			if err := s.logPlacement(ctx, repo, order.ID, subOrder.ID); err != nil {
				return err
			}
		}
		for key, reservation := range reservations {
			subOrderID := subOrderFor(order, key.VendorID)
			if err := tx.WithContext(ctx).Model(&models.Reservation{}).
				Where("id = ?", reservation.ID).
				Updates(map[string]any{"order_id": order.ID, "sub_order_id": subOrderID}).Error; err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "attach reservation")
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return order, summaries, nil
}

// logPlacement writes the placement path into the event log so replay can
// reconstruct the confirmed state from scratch.
func (s *service) logPlacement(ctx context.Context, repo orders.Repository, orderID, subOrderID uuid.UUID) error {
	steps := []struct {
		from, to enums.SubOrderState
	}{
		{enums.SubOrderPending, enums.SubOrderReserving},
		{enums.SubOrderReserving, enums.SubOrderConfirmed},
	}
	for _, step := range steps {
		event := &models.OrderStatusEvent{
			ID:         uuid.New(),
			OrderID:    orderID,
			SubOrderID: &subOrderID,
			FromState:  step.from,
			ToState:    step.to,
			Actor:      "order-router",
		}
		if err := repo.AppendEvent(ctx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append placement event")
		}
	}
	return nil
}

func subOrderFor(order *models.Order, vendorID uuid.UUID) *uuid.UUID {
	for i := range order.SubOrders {
		if order.SubOrders[i].VendorID == vendorID {
			return &order.SubOrders[i].ID
		}
	}
	return nil
}

// handoff starts payment authorization and announces the order. Neither
// failure rolls the order back: it sits in confirmed until the webhook or
// the sweeper decides.
func (s *service) handoff(ctx context.Context, order *models.Order) {
	if s.payments != nil {
		total := order.SubtotalPaise + order.DeliveryFee
		if err := s.payments.Authorize(ctx, order.ID, total); err != nil && s.logg != nil {
			s.logg.Error(s.logg.WithOrderID(ctx, order.ID.String()), "payment authorization handoff failed", err)
		}
	}
	if s.notifier != nil {
		s.notifier.OrderEvent(ctx, order.ID, "placed")
	}
}
