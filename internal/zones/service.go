package zones

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/freshmandi/freshmandi-backend/pkg/db/models"
	pkgerrors "github.com/freshmandi/freshmandi-backend/pkg/errors"
	"github.com/freshmandi/freshmandi-backend/pkg/logger"
	"github.com/freshmandi/freshmandi-backend/pkg/types"
)

// Service resolves delivery coordinates to coverage areas.
type Service interface {
	// ResolveArea maps a coordinate to the containing active area.
	// A miss is a normal outcome (address outside coverage), surfaced as
	// CodeUnserviceable rather than an internal failure.
	ResolveArea(ctx context.Context, lat, lng float64) (*models.Area, error)
	ZoneOf(ctx context.Context, areaID uuid.UUID) (*models.Zone, error)
}

type service struct {
	repo Repository
	logg *logger.Logger
}

// NewService builds the zone directory service.
func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("zones repository required")
	}
	return &service{repo: repo, logg: logg}, nil
}

func (s *service) ResolveArea(ctx context.Context, lat, lng float64) (*models.Area, error) {
	point := types.GeoPoint{Lat: lat, Lng: lng}
	if !point.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coordinates out of range")
	}

	areas, err := s.repo.ListActiveAreas(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coverage areas")
	}

	var matches []models.Area
	for _, area := range areas {
		if area.Geofence.Contains(point) {
			matches = append(matches, area)
		}
	}

	switch len(matches) {
	case 0:
		return nil, pkgerrors.New(pkgerrors.CodeUnserviceable, "address is outside our delivery coverage").
			WithDetails(map[string]any{"lat": lat, "lng": lng})
	case 1:
		winner := matches[0]
		return &winner, nil
	default:
		// Overlapping geofences are a data defect; pick the smallest ring
		// and flag the overlap for the ops team instead of failing the order.
		winner := matches[0]
		for _, candidate := range matches[1:] {
			if candidate.Geofence.SurfaceArea() < winner.Geofence.SurfaceArea() {
				winner = candidate
			}
		}
		if s.logg != nil {
			warnCtx := s.logg.WithFields(ctx, map[string]any{
				"matched_areas": len(matches),
				"winner_area":   winner.ID.String(),
				"lat":           lat,
				"lng":           lng,
			})
			s.logg.Warn(warnCtx, "overlapping geofences resolved to smallest area")
		}
		return &winner, nil
	}
}

func (s *service) ZoneOf(ctx context.Context, areaID uuid.UUID) (*models.Zone, error) {
	if areaID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "area id required")
	}
	area, err := s.repo.FindArea(ctx, areaID)
	if err != nil {
		return nil, err
	}
	return s.repo.FindZone(ctx, area.ZoneID)
}
