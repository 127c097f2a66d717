package weather

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/freshmandi/freshmandi-backend/pkg/db/models"
	"github.com/freshmandi/freshmandi-backend/pkg/enums"
	pkgerrors "github.com/freshmandi/freshmandi-backend/pkg/errors"
	"github.com/freshmandi/freshmandi-backend/pkg/logger"
	"github.com/freshmandi/freshmandi-backend/pkg/types"
)

// Policy is the effective delivery policy for a zone right now.
type Policy struct {
	Classification   enums.WeatherClassification
	Suspended        bool
	Stale            bool
	WindowMinutes    int
	FeeOverridePaise int64
	ObservedAt       time.Time
}

// Service evaluates delivery policy from the latest stored observation and
// refreshes observations from the upstream feed.
type Service interface {
	// CurrentPolicy reads the stored observation for the zone. Readings
	// older than the staleness TTL degrade to normal with the stale flag
	// set so callers can choose to be conservative.
	CurrentPolicy(ctx context.Context, zoneID uuid.UUID) (Policy, error)
	// DeliveryFeePaise applies policy precedence: bad conditions force a
	// flat fee over the tiered table, normal conditions use the table.
	DeliveryFeePaise(policy Policy, subtotalPaise int64) int64
	Snapshot(policy Policy, subtotalPaise int64) types.WeatherSnapshot
	RefreshZone(ctx context.Context, zoneID uuid.UUID) error
	RefreshAll(ctx context.Context) error
}

type service struct {
	repo     Repository
	provider Provider
	staleTTL time.Duration
	logg     *logger.Logger
}

type ServiceParams struct {
	Repo     Repository
	Provider Provider
	StaleTTL time.Duration
	Logger   *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("weather repository required")
	}
	if params.StaleTTL <= 0 {
		return nil, fmt.Errorf("stale ttl must be positive")
	}
	return &service{
		repo:     params.Repo,
		provider: params.Provider,
		staleTTL: params.StaleTTL,
		logg:     params.Logger,
	}, nil
}

func (s *service) CurrentPolicy(ctx context.Context, zoneID uuid.UUID) (Policy, error) {
	if zoneID == uuid.Nil {
		return Policy{}, pkgerrors.New(pkgerrors.CodeValidation, "zone id required")
	}
	status, err := s.repo.Find(ctx, zoneID)
	if err != nil {
		return Policy{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load weather status")
	}

	now := time.Now().UTC()
	if status == nil || now.Sub(status.ObservedAt) > s.staleTTL {
		observedAt := time.Time{}
		if status != nil {
			observedAt = status.ObservedAt
		}
		if s.logg != nil {
			warnCtx := s.logg.WithZoneID(ctx, zoneID.String())
			s.logg.Warn(warnCtx, "weather observation stale, degrading to normal")
		}
		return Policy{
			Classification: enums.WeatherNormal,
			Stale:          true,
			ObservedAt:     observedAt,
		}, nil
	}

	policy := Policy{
		Classification:   status.Classification,
		Suspended:        status.Suspended,
		WindowMinutes:    status.WindowMinutes,
		FeeOverridePaise: status.FeeOverridePaise,
		ObservedAt:       status.ObservedAt,
	}
	// Extreme always suspends, whatever the row says.
	if policy.Classification == enums.WeatherExtreme {
		policy.Suspended = true
	}
	return policy, nil
}

func (s *service) DeliveryFeePaise(policy Policy, subtotalPaise int64) int64 {
	if policy.Classification == enums.WeatherBad {
		if policy.FeeOverridePaise > 0 {
			return policy.FeeOverridePaise
		}
		return defaultBadWeatherFeePaise()
	}
	return tieredFeePaise(subtotalPaise)
}

func (s *service) Snapshot(policy Policy, subtotalPaise int64) types.WeatherSnapshot {
	return types.WeatherSnapshot{
		Classification: string(policy.Classification),
		FeePaise:       s.DeliveryFeePaise(policy, subtotalPaise),
		WindowMinutes:  policy.WindowMinutes,
		Stale:          policy.Stale,
		ObservedAt:     policy.ObservedAt,
	}
}

func (s *service) RefreshZone(ctx context.Context, zoneID uuid.UUID) error {
	if s.provider == nil {
		return fmt.Errorf("weather provider not configured")
	}
	observation, err := s.provider.Observe(ctx, zoneID)
	if err != nil {
		return fmt.Errorf("observing zone %s: %w", zoneID, err)
	}
	status := &models.WeatherStatus{
		ZoneID:           zoneID,
		Classification:   observation.Classification,
		FeeOverridePaise: observation.FeeOverridePaise,
		WindowMinutes:    observation.WindowMinutes,
		Suspended:        observation.Classification == enums.WeatherExtreme,
		ObservedAt:       observation.ObservedAt,
	}
	if err := s.repo.Upsert(ctx, status); err != nil {
		return fmt.Errorf("storing weather status for zone %s: %w", zoneID, err)
	}
	return nil
}

// RefreshAll polls every active zone. One zone failing must not starve the
// rest, so failures are collected and reported together.
func (s *service) RefreshAll(ctx context.Context) error {
	zoneIDs, err := s.repo.ListZoneIDs(ctx)
	if err != nil {
		return fmt.Errorf("listing zones for weather poll: %w", err)
	}
	var errs error
	for _, zoneID := range zoneIDs {
		if err := s.RefreshZone(ctx, zoneID); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}
