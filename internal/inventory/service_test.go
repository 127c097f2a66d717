package inventory

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

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:inventory_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.InventoryRecord{}, &models.Reservation{}); err != nil {
		t.Fatalf("migrate inventory: %v", err)
	}
	return db
}

func newLedger(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	return newLedgerWithRepo(t, db, NewRepository(db))
}

func newLedgerWithRepo(t *testing.T, db *gorm.DB, repo Repository) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Tx:          gormTxRunner{db: db},
		Repo:        repo,
		HoldTTL:     10 * time.Minute,
		MaxRetries:  5,
		BaseBackoff: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func seedRecord(t *testing.T, db *gorm.DB, stock int) models.InventoryRecord {
	t.Helper()
	record := models.InventoryRecord{
		ID:        uuid.New(),
		VendorID:  uuid.New(),
		ProductID: uuid.New(),
		ZoneID:    uuid.New(),
		StockQty:  stock,
		Version:   1,
	}
	if err := db.Create(&record).Error; err != nil {
		t.Fatalf("seed record: %v", err)
	}
	return record
}

func reloadRecord(t *testing.T, db *gorm.DB, id uuid.UUID) models.InventoryRecord {
	t.Helper()
	var record models.InventoryRecord
	if err := db.Where("id = ?", id).First(&record).Error; err != nil {
		t.Fatalf("reload record: %v", err)
	}
	return record
}

func request(record models.InventoryRecord, qty int) ReserveRequest {
	return ReserveRequest{
		VendorID:  record.VendorID,
		ProductID: record.ProductID,
		ZoneID:    record.ZoneID,
		Qty:       qty,
	}
}

func TestReserveHoldsStock(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	record := seedRecord(t, db, 5)
	svc := newLedger(t, db)

	reservation, err := svc.Reserve(context.Background(), request(record, 3))
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if reservation.Status != enums.ReservationHeld {
		t.Fatalf("expected held reservation, got %s", reservation.Status)
	}

	after := reloadRecord(t, db, record.ID)
	if after.Available() != 2 {
		t.Fatalf("expected available 2, got %d", after.Available())
	}
	if after.Version != record.Version+1 {
		t.Fatalf("expected version bump, got %d", after.Version)
	}
}

func TestReserveInsufficientStock(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	record := seedRecord(t, db, 5)
	svc := newLedger(t, db)

	if _, err := svc.Reserve(context.Background(), request(record, 3)); err != nil {
		t.Fatalf("first reserve: %v", err)
	}
	// available is now 2; a request for 4 must fail without retrying.
	_, err := svc.Reserve(context.Background(), request(record, 4))
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeOutOfStock {
		t.Fatalf("expected out of stock, got %v", err)
	}
	details, ok := typed.Details().(map[string]any)
	if !ok || details["available"] != 2 {
		t.Fatalf("expected available=2 in details, got %+v", typed.Details())
	}

	if _, err := svc.Reserve(context.Background(), request(record, 2)); err != nil {
		t.Fatalf("reserve remaining stock: %v", err)
	}
	after := reloadRecord(t, db, record.ID)
	if after.Available() != 0 {
		t.Fatalf("expected nothing left, got %d", after.Available())
	}
}

func TestReserveUnknownRecordIsOutOfStock(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newLedger(t, db)

	_, err := svc.Reserve(context.Background(), ReserveRequest{
		VendorID:  uuid.New(),
		ProductID: uuid.New(),
		ZoneID:    uuid.New(),
		Qty:       1,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeOutOfStock {
		t.Fatalf("expected out of stock for unknown record, got %v", err)
	}
}

// conflictOnceRepo forces a version mismatch on the first swap so the
// jittered retry path is exercised deterministically. The flag is shared
// across WithTx rebinds.
type conflictOnceRepo struct {
	Repository
	conflicted *bool
}

func (r *conflictOnceRepo) WithTx(tx *gorm.DB) Repository {
	return &conflictOnceRepo{Repository: r.Repository.WithTx(tx), conflicted: r.conflicted}
}

func (r *conflictOnceRepo) UpdateRecordCAS(ctx context.Context, recordID uuid.UUID, expectedVersion int64, stockQty, reservedQty int) (bool, error) {
	if !*r.conflicted {
		*r.conflicted = true
		return false, nil
	}
	return r.Repository.UpdateRecordCAS(ctx, recordID, expectedVersion, stockQty, reservedQty)
}

func TestReserveRetriesVersionConflict(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	record := seedRecord(t, db, 5)
	conflicted := false
	svc := newLedgerWithRepo(t, db, &conflictOnceRepo{Repository: NewRepository(db), conflicted: &conflicted})

	reservation, err := svc.Reserve(context.Background(), request(record, 2))
	if err != nil {
		t.Fatalf("reserve after conflict: %v", err)
	}
	if reservation == nil || reservation.Qty != 2 {
		t.Fatalf("expected successful retry, got %+v", reservation)
	}
	if !conflicted {
		t.Fatalf("conflict path never taken")
	}
}

// contendedTxRunner runs a rival between the first and second reserve
// attempt, replaying two simultaneous callers racing for the last units.
type contendedTxRunner struct {
	gormTxRunner
	attempts *int
	rival    func()
}

func (r contendedTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	*r.attempts++
	if *r.attempts == 2 {
		r.rival()
	}
	return r.gormTxRunner.WithTx(ctx, fn)
}

func TestReserveRaceForLastUnitsAdmitsExactlyOne(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	record := seedRecord(t, db, 2)
	rivalSvc := newLedger(t, db)

	// The slower caller loses the swap, and by the time it retries the
	// rival already holds both units.
	var rivalHold *models.Reservation
	attempts := 0
	conflicted := false
	svc, err := NewService(ServiceParams{
		Tx: contendedTxRunner{
			gormTxRunner: gormTxRunner{db: db},
			attempts:     &attempts,
			rival: func() {
				held, err := rivalSvc.Reserve(context.Background(), request(record, 2))
				if err != nil {
					t.Errorf("rival reserve: %v", err)
					return
				}
				rivalHold = held
			},
		},
		Repo:        &conflictOnceRepo{Repository: NewRepository(db), conflicted: &conflicted},
		HoldTTL:     10 * time.Minute,
		MaxRetries:  5,
		BaseBackoff: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	_, err = svc.Reserve(context.Background(), request(record, 2))
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeOutOfStock {
		t.Fatalf("expected the slower caller out of stock, got %v", err)
	}
	if rivalHold == nil || rivalHold.Status != enums.ReservationHeld {
		t.Fatalf("expected the rival to hold the stock, got %+v", rivalHold)
	}

	after := reloadRecord(t, db, record.ID)
	if after.Available() != 0 || after.ReservedQty != 2 {
		t.Fatalf("expected the stock held exactly once, got %+v", after)
	}
	var holds int64
	if err := db.Model(&models.Reservation{}).Count(&holds).Error; err != nil {
		t.Fatalf("count holds: %v", err)
	}
	if holds != 1 {
		t.Fatalf("expected exactly one hold, got %d", holds)
	}
}

func TestCommitDeductsStockAndIsIdempotent(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	record := seedRecord(t, db, 5)
	svc := newLedger(t, db)

	reservation, err := svc.Reserve(context.Background(), request(record, 3))
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := svc.Commit(context.Background(), reservation.ID); err != nil {
		t.Fatalf("commit: %v", err)
	}

	after := reloadRecord(t, db, record.ID)
	if after.StockQty != 2 || after.ReservedQty != 0 {
		t.Fatalf("expected stock=2 reserved=0, got stock=%d reserved=%d", after.StockQty, after.ReservedQty)
	}

	// Replayed commit must not deduct twice.
	if err := svc.Commit(context.Background(), reservation.ID); err != nil {
		t.Fatalf("replayed commit: %v", err)
	}
	again := reloadRecord(t, db, record.ID)
	if again.StockQty != 2 || again.ReservedQty != 0 {
		t.Fatalf("replay mutated the record: %+v", again)
	}
}

func TestReleaseRestoresAvailabilityAndIsIdempotent(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	record := seedRecord(t, db, 5)
	svc := newLedger(t, db)

	reservation, err := svc.Reserve(context.Background(), request(record, 3))
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := svc.Release(context.Background(), reservation.ID); err != nil {
		t.Fatalf("release: %v", err)
	}

	after := reloadRecord(t, db, record.ID)
	if after.StockQty != 5 || after.ReservedQty != 0 {
		t.Fatalf("expected full availability back, got %+v", after)
	}

	if err := svc.Release(context.Background(), reservation.ID); err != nil {
		t.Fatalf("replayed release: %v", err)
	}
	// Releasing a committed token is also a no-op.
	committed, err := svc.Reserve(context.Background(), request(record, 1))
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := svc.Commit(context.Background(), committed.ID); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := svc.Release(context.Background(), committed.ID); err != nil {
		t.Fatalf("release after commit: %v", err)
	}
	final := reloadRecord(t, db, record.ID)
	if final.StockQty != 4 || final.ReservedQty != 0 {
		t.Fatalf("release after commit mutated the record: %+v", final)
	}
}

func TestReleaseExpiredSweepsAbandonedHolds(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	record := seedRecord(t, db, 5)
	svc := newLedger(t, db)

	reservation, err := svc.Reserve(context.Background(), request(record, 3))
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	// Payment callback never arrived; push the hold past its expiry.
	past := time.Now().UTC().Add(-time.Minute)
	if err := db.Model(&models.Reservation{}).Where("id = ?", reservation.ID).Update("expires_at", past).Error; err != nil {
		t.Fatalf("age reservation: %v", err)
	}

	released, err := svc.ReleaseExpired(context.Background(), time.Now().UTC())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if released != 1 {
		t.Fatalf("expected 1 released hold, got %d", released)
	}
	after := reloadRecord(t, db, record.ID)
	if after.Available() != 5 {
		t.Fatalf("expected availability restored to 5, got %d", after.Available())
	}

	// Second sweep finds nothing.
	released, err = svc.ReleaseExpired(context.Background(), time.Now().UTC())
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if released != 0 {
		t.Fatalf("expected empty sweep, got %d", released)
	}
}
