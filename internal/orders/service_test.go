package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/freshmandi/freshmandi-backend/pkg/db/models"
	"github.com/freshmandi/freshmandi-backend/pkg/enums"
	pkgerrors "github.com/freshmandi/freshmandi-backend/pkg/errors"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(fn)
}

type stubSettler struct {
	committed []uuid.UUID
	released  []uuid.UUID
}

func (s *stubSettler) Commit(_ context.Context, token uuid.UUID) error {
	s.committed = append(s.committed, token)
	return nil
}

func (s *stubSettler) Release(_ context.Context, token uuid.UUID) error {
	s.released = append(s.released, token)
	return nil
}

type stubRefunder struct {
	requests []int64
}

func (s *stubRefunder) RequestRefund(_ context.Context, _ uuid.UUID, amountPaise int64) error {
	s.requests = append(s.requests, amountPaise)
	return nil
}

type stubNotifier struct {
	events []string
}

func (s *stubNotifier) OrderEvent(_ context.Context, _ uuid.UUID, event string) {
	s.events = append(s.events, event)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = db.AutoMigrate(
		&models.Order{}, &models.VendorSubOrder{}, &models.OrderLineItem{},
		&models.OrderStatusEvent{}, &models.Reservation{},
	)
	if err != nil {
		t.Fatalf("migrate orders: %v", err)
	}
	return db
}

type fixture struct {
	svc      Service
	settler  *stubSettler
	refunder *stubRefunder
	notifier *stubNotifier
}

func newFixture(t *testing.T, db *gorm.DB) fixture {
	t.Helper()
	settler := &stubSettler{}
	refunder := &stubRefunder{}
	notifier := &stubNotifier{}
	svc, err := NewService(ServiceParams{
		Repo:      NewRepository(db),
		Tx:        gormTxRunner{db: db},
		Inventory: settler,
		Payments:  refunder,
		Notifier:  notifier,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return fixture{svc: svc, settler: settler, refunder: refunder, notifier: notifier}
}

func seedOrder(t *testing.T, db *gorm.DB, states ...enums.SubOrderState) models.Order {
	t.Helper()
	order := models.Order{
		ID:            uuid.New(),
		UserID:        uuid.New(),
		AreaID:        uuid.New(),
		ZoneID:        uuid.New(),
		State:         ParentState(states),
		SubtotalPaise: 25000,
		Address:       "12 Church Street",
		Lat:           12.92,
		Lng:           77.62,
	}
	if err := db.Create(&order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	for _, state := range states {
		subOrder := models.VendorSubOrder{
			ID:            uuid.New(),
			OrderID:       order.ID,
			VendorID:      uuid.New(),
			State:         state,
			PaymentStatus: enums.PaymentPending,
			SubtotalPaise: 12500,
		}
		if err := db.Create(&subOrder).Error; err != nil {
			t.Fatalf("seed sub-order: %v", err)
		}
		order.SubOrders = append(order.SubOrders, subOrder)
	}
	return order
}

func timeNowPlus10m() time.Time {
	return time.Now().UTC().Add(10 * time.Minute)
}

func seedHeldReservation(t *testing.T, db *gorm.DB, orderID, subOrderID uuid.UUID) models.Reservation {
	t.Helper()
	reservation := models.Reservation{
		ID:         uuid.New(),
		RecordID:   uuid.New(),
		VendorID:   uuid.New(),
		ProductID:  uuid.New(),
		ZoneID:     uuid.New(),
		Qty:        2,
		OrderID:    &orderID,
		SubOrderID: &subOrderID,
		Status:     enums.ReservationHeld,
		ExpiresAt:  timeNowPlus10m(),
	}
	if err := db.Create(&reservation).Error; err != nil {
		t.Fatalf("seed reservation: %v", err)
	}
	return reservation
}

func reloadOrder(t *testing.T, db *gorm.DB, id uuid.UUID) models.Order {
	t.Helper()
	var order models.Order
	if err := db.Preload("SubOrders").Where("id = ?", id).First(&order).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	return order
}

func TestUpdateStatusWritesLogThenProjection(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	fx := newFixture(t, db)
	order := seedOrder(t, db, enums.SubOrderAccepted, enums.SubOrderAccepted)

	err := fx.svc.UpdateStatus(context.Background(), StatusUpdateInput{
		OrderID: order.ID,
		Target:  enums.SubOrderPrepared,
		Actor:   "vendor:amul-hub",
	})
	if err != nil {
		t.Fatalf("update status: %v", err)
	}

	after := reloadOrder(t, db, order.ID)
	if after.State != enums.SubOrderPrepared {
		t.Fatalf("expected parent prepared, got %s", after.State)
	}
	var events []models.OrderStatusEvent
	if err := db.Where("order_id = ?", order.ID).Find(&events).Error; err != nil {
		t.Fatalf("load events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected one event per sub-order, got %d", len(events))
	}
	for _, event := range events {
		if event.FromState != enums.SubOrderAccepted || event.ToState != enums.SubOrderPrepared {
			t.Fatalf("unexpected event %+v", event)
		}
	}
}

func TestUpdateStatusIsIdempotentByTarget(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	fx := newFixture(t, db)
	order := seedOrder(t, db, enums.SubOrderPrepared)

	// The sub-order is already at the target; the replay must not log.
	err := fx.svc.UpdateStatus(context.Background(), StatusUpdateInput{
		OrderID: order.ID,
		Target:  enums.SubOrderPrepared,
		Actor:   "vendor:amul-hub",
	})
	if err != nil {
		t.Fatalf("replayed update: %v", err)
	}
	var count int64
	if err := db.Model(&models.OrderStatusEvent{}).Where("order_id = ?", order.ID).Count(&count).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	if count != 0 {
		t.Fatalf("replay must not append events, got %d", count)
	}
}

func TestUpdateStatusRejectsIllegalJump(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	fx := newFixture(t, db)
	order := seedOrder(t, db, enums.SubOrderPending)

	err := fx.svc.UpdateStatus(context.Background(), StatusUpdateInput{
		OrderID: order.ID,
		Target:  enums.SubOrderDelivered,
		Actor:   "agent:77",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestParentDeliveredOnlyWhenAllSubOrdersDeliver(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	fx := newFixture(t, db)
	order := seedOrder(t, db, enums.SubOrderOutForDelivery, enums.SubOrderOutForDelivery)
	first := order.SubOrders[0].ID

	err := fx.svc.UpdateStatus(context.Background(), StatusUpdateInput{
		OrderID:    order.ID,
		SubOrderID: &first,
		Target:     enums.SubOrderDelivered,
		Actor:      "agent:77",
	})
	if err != nil {
		t.Fatalf("deliver first sub-order: %v", err)
	}
	mid := reloadOrder(t, db, order.ID)
	if mid.State != enums.SubOrderOutForDelivery {
		t.Fatalf("order must stay out_for_delivery until both deliver, got %s", mid.State)
	}

	second := order.SubOrders[1].ID
	err = fx.svc.UpdateStatus(context.Background(), StatusUpdateInput{
		OrderID:    order.ID,
		SubOrderID: &second,
		Target:     enums.SubOrderDelivered,
		Actor:      "agent:81",
	})
	if err != nil {
		t.Fatalf("deliver second sub-order: %v", err)
	}
	final := reloadOrder(t, db, order.ID)
	if final.State != enums.SubOrderDelivered {
		t.Fatalf("expected delivered, got %s", final.State)
	}
}

func TestHandlePaymentSuccessCommitsReservations(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	fx := newFixture(t, db)
	order := seedOrder(t, db, enums.SubOrderConfirmed, enums.SubOrderConfirmed)
	res1 := seedHeldReservation(t, db, order.ID, order.SubOrders[0].ID)
	res2 := seedHeldReservation(t, db, order.ID, order.SubOrders[1].ID)

	if err := fx.svc.HandlePaymentResult(context.Background(), order.ID, true, ""); err != nil {
		t.Fatalf("payment success: %v", err)
	}

	after := reloadOrder(t, db, order.ID)
	if after.State != enums.SubOrderAccepted {
		t.Fatalf("expected accepted, got %s", after.State)
	}
	for _, subOrder := range after.SubOrders {
		if subOrder.PaymentStatus != enums.PaymentCaptured {
			t.Fatalf("expected captured payment, got %s", subOrder.PaymentStatus)
		}
	}
	if len(fx.settler.committed) != 2 {
		t.Fatalf("expected both reservations committed, got %v", fx.settler.committed)
	}
	want := map[uuid.UUID]bool{res1.ID: true, res2.ID: true}
	for _, token := range fx.settler.committed {
		if !want[token] {
			t.Fatalf("unexpected token committed %s", token)
		}
	}
}

func TestHandlePaymentFailureReleasesAndFails(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	fx := newFixture(t, db)
	order := seedOrder(t, db, enums.SubOrderConfirmed)
	reservation := seedHeldReservation(t, db, order.ID, order.SubOrders[0].ID)

	if err := fx.svc.HandlePaymentResult(context.Background(), order.ID, false, "card declined"); err != nil {
		t.Fatalf("payment failure: %v", err)
	}

	after := reloadOrder(t, db, order.ID)
	if after.State != enums.SubOrderFailed {
		t.Fatalf("expected failed, got %s", after.State)
	}
	if len(fx.settler.released) != 1 || fx.settler.released[0] != reservation.ID {
		t.Fatalf("expected reservation released, got %v", fx.settler.released)
	}
	var event models.OrderStatusEvent
	if err := db.Where("order_id = ?", order.ID).First(&event).Error; err != nil {
		t.Fatalf("load event: %v", err)
	}
	if event.Reason != "card declined" {
		t.Fatalf("expected decline reason on the event, got %q", event.Reason)
	}
}

func TestHandlePaymentResultReplayIsNoOp(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	fx := newFixture(t, db)
	order := seedOrder(t, db, enums.SubOrderConfirmed)

	if err := fx.svc.HandlePaymentResult(context.Background(), order.ID, true, ""); err != nil {
		t.Fatalf("first callback: %v", err)
	}
	if err := fx.svc.HandlePaymentResult(context.Background(), order.ID, true, ""); err != nil {
		t.Fatalf("replayed callback: %v", err)
	}
	var count int64
	if err := db.Model(&models.OrderStatusEvent{}).Where("order_id = ?", order.ID).Count(&count).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	if count != 1 {
		t.Fatalf("replay must not append a second event, got %d", count)
	}
}

func TestCancelReleasesHoldsAndFlagsRefund(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	fx := newFixture(t, db)
	order := seedOrder(t, db, enums.SubOrderAccepted)
	subOrder := order.SubOrders[0]
	if err := db.Model(&models.VendorSubOrder{}).Where("id = ?", subOrder.ID).
		Update("payment_status", enums.PaymentCaptured).Error; err != nil {
		t.Fatalf("mark captured: %v", err)
	}
	reservation := seedHeldReservation(t, db, order.ID, subOrder.ID)

	if err := fx.svc.CancelOrder(context.Background(), order.ID, "user", "changed my mind"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	after := reloadOrder(t, db, order.ID)
	if after.State != enums.SubOrderCancelled {
		t.Fatalf("expected cancelled, got %s", after.State)
	}
	if after.SubOrders[0].PaymentStatus != enums.PaymentRefundPending {
		t.Fatalf("expected refund_pending, got %s", after.SubOrders[0].PaymentStatus)
	}
	if len(fx.settler.released) != 1 || fx.settler.released[0] != reservation.ID {
		t.Fatalf("expected hold released, got %v", fx.settler.released)
	}
	if len(fx.refunder.requests) != 1 || fx.refunder.requests[0] != subOrder.SubtotalPaise {
		t.Fatalf("expected refund request for %d, got %v", subOrder.SubtotalPaise, fx.refunder.requests)
	}
}

func TestCancelRejectedOnceOutForDelivery(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	fx := newFixture(t, db)
	order := seedOrder(t, db, enums.SubOrderOutForDelivery)

	err := fx.svc.CancelOrder(context.Background(), order.ID, "user", "too late")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestRebuildProjectionFromLog(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	fx := newFixture(t, db)
	order := seedOrder(t, db, enums.SubOrderConfirmed)
	subOrderID := order.SubOrders[0].ID

	// Simulate a crash between the log write and the projection write.
	event := models.OrderStatusEvent{
		ID:         uuid.New(),
		OrderID:    order.ID,
		SubOrderID: &subOrderID,
		FromState:  enums.SubOrderConfirmed,
		ToState:    enums.SubOrderAccepted,
		Actor:      "payment-service",
	}
	if err := db.Create(&event).Error; err != nil {
		t.Fatalf("append event: %v", err)
	}

	if err := fx.svc.RebuildProjection(context.Background(), order.ID); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	after := reloadOrder(t, db, order.ID)
	if after.State != enums.SubOrderAccepted || after.SubOrders[0].State != enums.SubOrderAccepted {
		t.Fatalf("projection not rebuilt, order=%s sub=%s", after.State, after.SubOrders[0].State)
	}
}
