package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/freshmandi/freshmandi-backend/pkg/logger"
)

const reservationSweeperJobName = "reservation-sweeper"

// expiredReleaser is the ledger surface the sweeper needs.
type expiredReleaser interface {
	ReleaseExpired(ctx context.Context, cutoff time.Time) (int, error)
}

// ReservationSweeperJobParams configure the phantom-hold sweeper.
type ReservationSweeperJobParams struct {
	Logger    *logger.Logger
	Inventory expiredReleaser
}

// NewReservationSweeperJob builds the job that reclaims holds whose order
// never confirmed. It is the single authority for abandoned checkouts:
// client timeouts never release server-side.
func NewReservationSweeperJob(params ReservationSweeperJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	return &reservationSweeperJob{
		logg:      params.Logger,
		inventory: params.Inventory,
		now:       time.Now,
	}, nil
}

type reservationSweeperJob struct {
	logg      *logger.Logger
	inventory expiredReleaser
	now       func() time.Time
}

func (j *reservationSweeperJob) Name() string {
	return reservationSweeperJobName
}

func (j *reservationSweeperJob) Run(ctx context.Context) error {
	released, err := j.inventory.ReleaseExpired(ctx, j.now().UTC())
	if released > 0 {
		j.logg.Info(j.logg.WithField(ctx, "released", released), "expired reservations swept")
	}
	if err != nil {
		return fmt.Errorf("sweeping reservations: %w", err)
	}
	return nil
}
