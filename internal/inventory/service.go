package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/freshmandi/freshmandi-backend/pkg/db/models"
	"github.com/freshmandi/freshmandi-backend/pkg/enums"
	pkgerrors "github.com/freshmandi/freshmandi-backend/pkg/errors"
	"github.com/freshmandi/freshmandi-backend/pkg/logger"
	"github.com/freshmandi/freshmandi-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ReserveRequest addresses one hold on a (vendor, product, zone) record.
type ReserveRequest struct {
	VendorID  uuid.UUID
	ProductID uuid.UUID
	ZoneID    uuid.UUID
	Qty       int
}

// Service is the inventory ledger. Every stock mutation flows through
// Reserve, Commit, or Release; the version column on the record guards
// against lost updates under concurrent orders.
type Service interface {
	// Reserve places an expiring hold. Version conflicts retry with
	// jittered backoff before surfacing; insufficient stock does not retry.
	Reserve(ctx context.Context, req ReserveRequest) (*models.Reservation, error)
	// Commit consumes a held reservation, deducting stock for good.
	// Committing an already committed or released token is a no-op.
	Commit(ctx context.Context, token uuid.UUID) error
	// Release returns a held reservation to availability. Idempotent the
	// same way Commit is.
	Release(ctx context.Context, token uuid.UUID) error
	AttachOrder(ctx context.Context, token, orderID, subOrderID uuid.UUID) error
	// ReleaseExpired reclaims holds whose parent order never confirmed.
	ReleaseExpired(ctx context.Context, cutoff time.Time) (int, error)
}

type service struct {
	tx          txRunner
	repo        Repository
	holdTTL     time.Duration
	maxRetries  uint64
	baseBackoff time.Duration
	metrics     *metrics.OrderMetrics
	logg        *logger.Logger
}

type ServiceParams struct {
	Tx          txRunner
	Repo        Repository
	HoldTTL     time.Duration
	MaxRetries  int
	BaseBackoff time.Duration
	Metrics     *metrics.OrderMetrics
	Logger      *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if params.HoldTTL <= 0 {
		return nil, fmt.Errorf("hold ttl must be positive")
	}
	if params.MaxRetries <= 0 {
		params.MaxRetries = 5
	}
	if params.BaseBackoff <= 0 {
		params.BaseBackoff = 20 * time.Millisecond
	}
	return &service{
		tx:          params.Tx,
		repo:        params.Repo,
		holdTTL:     params.HoldTTL,
		maxRetries:  uint64(params.MaxRetries),
		baseBackoff: params.BaseBackoff,
		metrics:     params.Metrics,
		logg:        params.Logger,
	}, nil
}

func (s *service) backoff() retry.Backoff {
	b := retry.NewExponential(s.baseBackoff)
	b = retry.WithJitter(s.baseBackoff/2, b)
	return retry.WithMaxRetries(s.maxRetries, b)
}

func (s *service) Reserve(ctx context.Context, req ReserveRequest) (*models.Reservation, error) {
	if req.Qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation quantity must be positive")
	}
	if req.VendorID == uuid.Nil || req.ProductID == uuid.Nil || req.ZoneID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor, product and zone ids required")
	}

	var reservation *models.Reservation
	err := retry.Do(ctx, s.backoff(), func(ctx context.Context) error {
		attempt, err := s.tryReserve(ctx, req)
		if err != nil {
			return err
		}
		reservation = attempt
		return nil
	})
	if err != nil {
		if conflict := pkgerrors.As(err); conflict != nil {
			return nil, conflict
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve inventory")
	}
	return reservation, nil
}

// tryReserve is one CAS attempt: read, check availability, conditional write,
// and the hold row, all inside one transaction so a failed insert cannot
// leave reserved quantity without a matching reservation.
func (s *service) tryReserve(ctx context.Context, req ReserveRequest) (*models.Reservation, error) {
	var reservation *models.Reservation
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		record, err := repo.FindRecord(ctx, req.VendorID, req.ProductID, req.ZoneID)
		if err != nil {
			return err
		}
		if record == nil {
			return pkgerrors.New(pkgerrors.CodeOutOfStock, "product not stocked by this vendor").
				WithDetails(map[string]any{"productId": req.ProductID, "available": 0})
		}
		if record.Available() < req.Qty {
			return pkgerrors.New(pkgerrors.CodeOutOfStock, "insufficient stock").
				WithDetails(map[string]any{"productId": req.ProductID, "available": record.Available()})
		}

		swapped, err := repo.UpdateRecordCAS(ctx, record.ID, record.Version, record.StockQty, record.ReservedQty+req.Qty)
		if err != nil {
			return err
		}
		if !swapped {
			s.metrics.IncCASConflict()
			return retry.RetryableError(pkgerrors.New(pkgerrors.CodeConflict, "inventory version conflict"))
		}

		reservation = &models.Reservation{
			ID:        uuid.New(),
			RecordID:  record.ID,
			VendorID:  req.VendorID,
			ProductID: req.ProductID,
			ZoneID:    req.ZoneID,
			Qty:       req.Qty,
			Status:    enums.ReservationHeld,
			ExpiresAt: time.Now().UTC().Add(s.holdTTL),
		}
		return repo.CreateReservation(ctx, reservation)
	})
	if err != nil {
		return nil, err
	}
	return reservation, nil
}

func (s *service) Commit(ctx context.Context, token uuid.UUID) error {
	return s.settle(ctx, token, enums.ReservationCommitted)
}

func (s *service) Release(ctx context.Context, token uuid.UUID) error {
	return s.settle(ctx, token, enums.ReservationReleased)
}

// settle moves a held reservation to its terminal status and adjusts the
// record. Commit deducts stock, release only frees the hold. Replays against
// an already settled token return nil so network retries stay harmless.
func (s *service) settle(ctx context.Context, token uuid.UUID, target enums.ReservationStatus) error {
	if token == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "reservation token required")
	}
	err := retry.Do(ctx, s.backoff(), func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			reservation, err := repo.FindReservation(ctx, token)
			if err != nil {
				return err
			}
			if reservation == nil {
				return pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
			}
			if reservation.Status != enums.ReservationHeld {
				return nil
			}

			record := &models.InventoryRecord{}
			if err := tx.WithContext(ctx).Where("id = ?", reservation.RecordID).First(record).Error; err != nil {
				return err
			}
			stockQty := record.StockQty
			if target == enums.ReservationCommitted {
				stockQty -= reservation.Qty
			}
			reservedQty := record.ReservedQty - reservation.Qty
			if reservedQty < 0 {
				reservedQty = 0
			}
			swapped, err := repo.UpdateRecordCAS(ctx, record.ID, record.Version, stockQty, reservedQty)
			if err != nil {
				return err
			}
			if !swapped {
				s.metrics.IncCASConflict()
				return retry.RetryableError(pkgerrors.New(pkgerrors.CodeConflict, "inventory version conflict"))
			}
			return repo.UpdateReservationStatus(ctx, reservation.ID, target)
		})
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return typed
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "settle reservation")
	}
	return nil
}

func (s *service) AttachOrder(ctx context.Context, token, orderID, subOrderID uuid.UUID) error {
	if token == uuid.Nil || orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "reservation token and order id required")
	}
	return s.repo.AttachOrder(ctx, token, orderID, subOrderID)
}

func (s *service) ReleaseExpired(ctx context.Context, cutoff time.Time) (int, error) {
	expired, err := s.repo.ListExpiredHeld(ctx, cutoff, 0)
	if err != nil {
		return 0, fmt.Errorf("listing expired reservations: %w", err)
	}
	var (
		released int
		errs     error
	)
	for _, reservation := range expired {
		if err := s.Release(ctx, reservation.ID); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("release %s: %w", reservation.ID, err))
			continue
		}
		released++
		s.metrics.IncSwept()
		if s.logg != nil {
			s.logg.Info(s.logg.WithField(ctx, "reservation_id", reservation.ID.String()), "expired hold released")
		}
	}
	return released, errs
}
