package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/freshmandi/freshmandi-backend/pkg/logger"
)

type stubReleaser struct {
	released int
	err      error
	cutoff   time.Time
}

func (s *stubReleaser) ReleaseExpired(_ context.Context, cutoff time.Time) (int, error) {
	s.cutoff = cutoff
	return s.released, s.err
}

type stubRefresher struct {
	calls int
	err   error
}

func (s *stubRefresher) RefreshAll(context.Context) error {
	s.calls++
	return s.err
}

func TestReservationSweeperJobReportsReleased(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	releaser := &stubReleaser{released: 3}
	job, err := NewReservationSweeperJob(ReservationSweeperJobParams{Logger: logg, Inventory: releaser})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	fixed := time.Date(2025, time.March, 1, 10, 0, 0, 0, time.UTC)
	job.(*reservationSweeperJob).now = func() time.Time { return fixed }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run job: %v", err)
	}
	if !releaser.cutoff.Equal(fixed) {
		t.Fatalf("expected cutoff %v, got %v", fixed, releaser.cutoff)
	}
}

func TestReservationSweeperJobPropagatesError(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	releaser := &stubReleaser{released: 1, err: errors.New("ledger down")}
	job, err := NewReservationSweeperJob(ReservationSweeperJobParams{Logger: logg, Inventory: releaser})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatalf("expected sweep error to surface")
	}
}

func TestWeatherPollJobRefreshesAllZones(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	refresher := &stubRefresher{}
	job, err := NewWeatherPollJob(WeatherPollJobParams{Logger: logg, Weather: refresher})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run job: %v", err)
	}
	if refresher.calls != 1 {
		t.Fatalf("expected one refresh, got %d", refresher.calls)
	}
}

func TestWeatherPollJobPropagatesError(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	refresher := &stubRefresher{err: errors.New("provider down")}
	job, err := NewWeatherPollJob(WeatherPollJobParams{Logger: logg, Weather: refresher})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatalf("expected poll error to surface")
	}
}
