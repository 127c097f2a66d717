package routing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/freshmandi/freshmandi-backend/internal/inventory"
	"github.com/freshmandi/freshmandi-backend/internal/vendors"
	"github.com/freshmandi/freshmandi-backend/internal/weather"
	"github.com/freshmandi/freshmandi-backend/internal/zones"
	"github.com/freshmandi/freshmandi-backend/pkg/db/models"
	"github.com/freshmandi/freshmandi-backend/pkg/enums"
	pkgerrors "github.com/freshmandi/freshmandi-backend/pkg/errors"
	"github.com/freshmandi/freshmandi-backend/pkg/types"

	ordersvc "github.com/freshmandi/freshmandi-backend/internal/orders"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(fn)
}

type stubAuthorizer struct {
	calls []int64
}

func (s *stubAuthorizer) Authorize(_ context.Context, _ uuid.UUID, amountPaise int64) error {
	s.calls = append(s.calls, amountPaise)
	return nil
}

type stubNotifier struct {
	events []string
}

func (s *stubNotifier) OrderEvent(_ context.Context, _ uuid.UUID, event string) {
	s.events = append(s.events, event)
}

type world struct {
	db         *gorm.DB
	svc        Service
	authorizer *stubAuthorizer
	notifier   *stubNotifier
	zoneID     uuid.UUID
}

func newWorld(t *testing.T) *world {
	t.Helper()
	dsn := "file:routing_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = db.AutoMigrate(
		&models.Region{}, &models.Zone{}, &models.Area{},
		&models.Vendor{}, &models.VendorZoneAssignment{}, &models.VendorCategoryAssignment{},
		&models.InventoryRecord{}, &models.Reservation{},
		&models.Order{}, &models.VendorSubOrder{}, &models.OrderLineItem{}, &models.OrderStatusEvent{},
		&models.WeatherStatus{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	region := models.Region{ID: uuid.New(), Name: "south", Active: true}
	zone := models.Zone{ID: uuid.New(), RegionID: region.ID, Name: "koramangala", Active: true}
	area := models.Area{
		ID:     uuid.New(),
		ZoneID: zone.ID,
		Name:   "block-5",
		Geofence: types.Polygon{
			{Lat: 12.90, Lng: 77.60},
			{Lat: 12.90, Lng: 77.64},
			{Lat: 12.94, Lng: 77.64},
			{Lat: 12.94, Lng: 77.60},
		},
		Version: 1,
		Active:  true,
	}
	for _, row := range []any{&region, &zone, &area} {
		if err := db.Create(row).Error; err != nil {
			t.Fatalf("seed coverage: %v", err)
		}
	}

	tx := gormTxRunner{db: db}
	zoneSvc, err := zones.NewService(zones.NewRepository(db), nil)
	if err != nil {
		t.Fatalf("zones service: %v", err)
	}
	weatherSvc, err := weather.NewService(weather.ServiceParams{
		Repo:     weather.NewRepository(db),
		StaleTTL: 30 * time.Minute,
	})
	if err != nil {
		t.Fatalf("weather service: %v", err)
	}
	strategy, err := vendors.NewStrategy(enums.RoutingModeSubcategoryExclusive, vendors.NewRepository(db))
	if err != nil {
		t.Fatalf("strategy: %v", err)
	}
	vendorSvc, err := vendors.NewService(strategy, nil)
	if err != nil {
		t.Fatalf("vendors service: %v", err)
	}
	inventorySvc, err := inventory.NewService(inventory.ServiceParams{
		Tx:          tx,
		Repo:        inventory.NewRepository(db),
		HoldTTL:     10 * time.Minute,
		MaxRetries:  5,
		BaseBackoff: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("inventory service: %v", err)
	}

	authorizer := &stubAuthorizer{}
	notifier := &stubNotifier{}
	svc, err := NewService(ServiceParams{
		Zones:     zoneSvc,
		Weather:   weatherSvc,
		Vendors:   vendorSvc,
		Inventory: inventorySvc,
		Tx:        tx,
		Orders:    ordersvc.NewRepository(db),
		Payments:  authorizer,
		Notifier:  notifier,
	})
	if err != nil {
		t.Fatalf("routing service: %v", err)
	}
	return &world{db: db, svc: svc, authorizer: authorizer, notifier: notifier, zoneID: zone.ID}
}

func (w *world) seedVendor(t *testing.T, name, category string, subcategory *string) models.Vendor {
	t.Helper()
	vendor := models.Vendor{ID: uuid.New(), Name: name, Code: name, PrepTimeMinutes: 20, Active: true}
	if err := w.db.Create(&vendor).Error; err != nil {
		t.Fatalf("seed vendor: %v", err)
	}
	assignment := models.VendorCategoryAssignment{
		ID:          uuid.New(),
		VendorID:    vendor.ID,
		ZoneID:      w.zoneID,
		Category:    category,
		Subcategory: subcategory,
		Exclusive:   true,
		Active:      true,
	}
	if err := w.db.Create(&assignment).Error; err != nil {
		t.Fatalf("seed assignment: %v", err)
	}
	return vendor
}

func (w *world) seedStock(t *testing.T, vendorID, productID uuid.UUID, qty int) models.InventoryRecord {
	t.Helper()
	record := models.InventoryRecord{
		ID:        uuid.New(),
		VendorID:  vendorID,
		ProductID: productID,
		ZoneID:    w.zoneID,
		StockQty:  qty,
		Version:   1,
	}
	if err := w.db.Create(&record).Error; err != nil {
		t.Fatalf("seed stock: %v", err)
	}
	return record
}

func (w *world) seedWeather(t *testing.T, classification enums.WeatherClassification) {
	t.Helper()
	status := models.WeatherStatus{
		ZoneID:         w.zoneID,
		Classification: classification,
		Suspended:      classification == enums.WeatherExtreme,
		ObservedAt:     time.Now().UTC(),
	}
	if err := w.db.Create(&status).Error; err != nil {
		t.Fatalf("seed weather: %v", err)
	}
}

func strPtr(s string) *string { return &s }

func cartLine(productID uuid.UUID, name, category string, subcategory *string, qty int, pricePaise int64) vendors.CartLine {
	return vendors.CartLine{
		ProductID:      productID,
		ProductName:    name,
		Category:       category,
		Subcategory:    subcategory,
		Qty:            qty,
		UnitPricePaise: pricePaise,
	}
}

func baseInput(lines ...vendors.CartLine) PlaceOrderInput {
	return PlaceOrderInput{
		UserID:  uuid.New(),
		Lines:   lines,
		Address: "12 Church Street",
		Lat:     12.92,
		Lng:     77.62,
	}
}

func TestPlaceOrderSplitsAcrossTwoVendors(t *testing.T) {
	t.Parallel()

	w := newWorld(t)
	dairy := w.seedVendor(t, "amul-hub", "dairy", strPtr("paneer"))
	produce := w.seedVendor(t, "greens-direct", "produce", strPtr("leafy"))
	paneerID := uuid.New()
	spinachID := uuid.New()
	w.seedStock(t, dairy.ID, paneerID, 10)
	w.seedStock(t, produce.ID, spinachID, 10)

	result, err := w.svc.PlaceOrder(context.Background(), baseInput(
		cartLine(paneerID, "paneer 200g", "dairy", strPtr("paneer"), 2, 9000),
		cartLine(spinachID, "spinach bunch", "produce", strPtr("leafy"), 1, 7000),
	))
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if len(result.SubOrders) != 2 {
		t.Fatalf("expected two sub-orders, got %d", len(result.SubOrders))
	}
	if result.SubtotalPaise != 25000 {
		t.Fatalf("expected subtotal 25000, got %d", result.SubtotalPaise)
	}
	// 250 rupee order under normal conditions pays the 20 rupee tier.
	if result.DeliveryFeePaise != 2000 {
		t.Fatalf("expected 2000 paise delivery fee, got %d", result.DeliveryFeePaise)
	}

	var order models.Order
	if err := w.db.Preload("SubOrders.Items").Where("id = ?", result.OrderID).First(&order).Error; err != nil {
		t.Fatalf("load order: %v", err)
	}
	if order.State != enums.SubOrderConfirmed {
		t.Fatalf("expected confirmed order, got %s", order.State)
	}
	if len(order.SubOrders) != 2 {
		t.Fatalf("expected two persisted sub-orders, got %d", len(order.SubOrders))
	}
	for _, subOrder := range order.SubOrders {
		for _, item := range subOrder.Items {
			if item.ReservationID == nil {
				t.Fatalf("line %s missing reservation reference", item.ProductID)
			}
		}
	}

	// Both holds must be attached to the order for the payment callback.
	var held []models.Reservation
	if err := w.db.Where("order_id = ?", result.OrderID).Find(&held).Error; err != nil {
		t.Fatalf("load reservations: %v", err)
	}
	if len(held) != 2 {
		t.Fatalf("expected two attached reservations, got %d", len(held))
	}
	if len(w.authorizer.calls) != 1 || w.authorizer.calls[0] != 27000 {
		t.Fatalf("expected authorization for 27000, got %v", w.authorizer.calls)
	}
}

func TestPlaceOrderRepeatedProductLinesShareOneHold(t *testing.T) {
	t.Parallel()

	w := newWorld(t)
	dairy := w.seedVendor(t, "amul-hub", "dairy", nil)
	paneerID := uuid.New()
	stock := w.seedStock(t, dairy.ID, paneerID, 10)

	result, err := w.svc.PlaceOrder(context.Background(), baseInput(
		cartLine(paneerID, "paneer 200g", "dairy", nil, 2, 9000),
		cartLine(paneerID, "paneer 200g", "dairy", nil, 3, 9000),
	))
	if err != nil {
		t.Fatalf("place order: %v", err)
	}

	// Both lines ride the same hold, sized for their combined quantity.
	var held []models.Reservation
	if err := w.db.Where("order_id = ?", result.OrderID).Find(&held).Error; err != nil {
		t.Fatalf("load reservations: %v", err)
	}
	if len(held) != 1 {
		t.Fatalf("expected one attached reservation, got %d", len(held))
	}
	if held[0].Qty != 5 {
		t.Fatalf("expected combined hold of 5, got %d", held[0].Qty)
	}
	var dangling int64
	if err := w.db.Model(&models.Reservation{}).Where("order_id IS NULL").Count(&dangling).Error; err != nil {
		t.Fatalf("count dangling holds: %v", err)
	}
	if dangling != 0 {
		t.Fatalf("expected no dangling holds, got %d", dangling)
	}
	var after models.InventoryRecord
	if err := w.db.Where("id = ?", stock.ID).First(&after).Error; err != nil {
		t.Fatalf("reload stock: %v", err)
	}
	if after.ReservedQty != 5 {
		t.Fatalf("expected 5 reserved, got %d", after.ReservedQty)
	}

	var order models.Order
	if err := w.db.Preload("SubOrders.Items").Where("id = ?", result.OrderID).First(&order).Error; err != nil {
		t.Fatalf("load order: %v", err)
	}
	for _, subOrder := range order.SubOrders {
		for _, item := range subOrder.Items {
			if item.ReservationID == nil || *item.ReservationID != held[0].ID {
				t.Fatalf("line %s not tied to the shared hold", item.ID)
			}
		}
	}
}

func TestPlaceOrderSuspendedZoneRejectsAnyCart(t *testing.T) {
	t.Parallel()

	w := newWorld(t)
	w.seedWeather(t, enums.WeatherExtreme)
	dairy := w.seedVendor(t, "amul-hub", "dairy", nil)
	productID := uuid.New()
	w.seedStock(t, dairy.ID, productID, 10)

	_, err := w.svc.PlaceOrder(context.Background(), baseInput(
		cartLine(productID, "milk 1l", "dairy", nil, 1, 6000),
	))
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeSuspended {
		t.Fatalf("expected weather suspension, got %v", err)
	}
	var count int64
	if err := w.db.Model(&models.Reservation{}).Count(&count).Error; err != nil {
		t.Fatalf("count reservations: %v", err)
	}
	if count != 0 {
		t.Fatalf("suspended zone must not touch inventory, got %d holds", count)
	}
}

func TestPlaceOrderBadWeatherFlatFee(t *testing.T) {
	t.Parallel()

	w := newWorld(t)
	w.seedWeather(t, enums.WeatherBad)
	dairy := w.seedVendor(t, "amul-hub", "dairy", nil)
	productID := uuid.New()
	w.seedStock(t, dairy.ID, productID, 10)

	result, err := w.svc.PlaceOrder(context.Background(), baseInput(
		cartLine(productID, "paneer 500g", "dairy", nil, 1, 25000),
	))
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if result.DeliveryFeePaise != 3000 {
		t.Fatalf("expected flat 3000 paise bad-weather fee, got %d", result.DeliveryFeePaise)
	}
	if result.Weather.Classification != string(enums.WeatherBad) {
		t.Fatalf("expected bad classification frozen on the order, got %s", result.Weather.Classification)
	}
}

func TestPlaceOrderCompensatesOnPartialReservationFailure(t *testing.T) {
	t.Parallel()

	w := newWorld(t)
	dairy := w.seedVendor(t, "amul-hub", "dairy", nil)
	produce := w.seedVendor(t, "greens-direct", "produce", nil)
	paneerID := uuid.New()
	spinachID := uuid.New()
	w.seedStock(t, dairy.ID, paneerID, 10)
	stock := w.seedStock(t, produce.ID, spinachID, 1)

	_, err := w.svc.PlaceOrder(context.Background(), baseInput(
		cartLine(paneerID, "paneer 200g", "dairy", nil, 2, 9000),
		cartLine(spinachID, "spinach bunch", "produce", nil, 3, 7000),
	))
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeOutOfStock {
		t.Fatalf("expected out of stock, got %v", err)
	}

	// The dairy hold acquired before the failure must have been released.
	var records []models.InventoryRecord
	if err := w.db.Find(&records).Error; err != nil {
		t.Fatalf("load records: %v", err)
	}
	for _, record := range records {
		if record.ReservedQty != 0 {
			t.Fatalf("record %s still holds %d reserved", record.ID, record.ReservedQty)
		}
	}
	var after models.InventoryRecord
	if err := w.db.Where("id = ?", stock.ID).First(&after).Error; err != nil {
		t.Fatalf("reload produce stock: %v", err)
	}
	if after.Available() != 1 {
		t.Fatalf("expected produce stock untouched, got %d", after.Available())
	}
	var orderCount int64
	if err := w.db.Model(&models.Order{}).Count(&orderCount).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if orderCount != 0 {
		t.Fatalf("failed placement must not persist an order")
	}
}

func TestPlaceOrderOutsideCoverage(t *testing.T) {
	t.Parallel()

	w := newWorld(t)
	input := baseInput(cartLine(uuid.New(), "milk 1l", "dairy", nil, 1, 6000))
	input.Lat, input.Lng = 28.61, 77.21

	_, err := w.svc.PlaceOrder(context.Background(), input)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnserviceable {
		t.Fatalf("expected unserviceable, got %v", err)
	}
}

func TestPlaceOrderUnresolvedLineNeedsConfirmation(t *testing.T) {
	t.Parallel()

	w := newWorld(t)
	dairy := w.seedVendor(t, "amul-hub", "dairy", nil)
	paneerID := uuid.New()
	w.seedStock(t, dairy.ID, paneerID, 10)
	orphanID := uuid.New()

	input := baseInput(
		cartLine(paneerID, "paneer 200g", "dairy", nil, 1, 9000),
		cartLine(orphanID, "phone charger", "electronics", nil, 1, 49900),
	)
	_, err := w.svc.PlaceOrder(context.Background(), input)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeVendorUnresolved {
		t.Fatalf("expected vendor unresolved, got %v", err)
	}

	// The user confirmed substitution; the order goes through without the
	// orphan line.
	input.AllowPartial = true
	result, err := w.svc.PlaceOrder(context.Background(), input)
	if err != nil {
		t.Fatalf("place order with confirmation: %v", err)
	}
	if len(result.DroppedLines) != 1 || result.DroppedLines[0].ProductID != orphanID {
		t.Fatalf("expected orphan line reported dropped, got %+v", result.DroppedLines)
	}
	if result.SubtotalPaise != 9000 {
		t.Fatalf("dropped line must not be billed, got subtotal %d", result.SubtotalPaise)
	}
}
