package vendors

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	pkgerrors "github.com/freshmandi/freshmandi-backend/pkg/errors"
	"github.com/freshmandi/freshmandi-backend/pkg/logger"
)

// Service routes cart lines to vendors inside a resolved zone.
type Service interface {
	// ResolveVendors partitions the cart among vendors. A split across
	// several vendors is a normal outcome. Unresolved lines come back in
	// the Resolution so the caller can offer substitution; the call only
	// errors when no line at all finds a vendor.
	ResolveVendors(ctx context.Context, zoneID uuid.UUID, lines []CartLine) (Resolution, error)
}

type service struct {
	strategy ResolutionStrategy
	logg     *logger.Logger
}

// NewService builds the vendor assignment resolver around the strategy
// picked for the configured routing mode.
func NewService(strategy ResolutionStrategy, logg *logger.Logger) (Service, error) {
	if strategy == nil {
		return nil, fmt.Errorf("resolution strategy required")
	}
	return &service{strategy: strategy, logg: logg}, nil
}

func (s *service) ResolveVendors(ctx context.Context, zoneID uuid.UUID, lines []CartLine) (Resolution, error) {
	if zoneID == uuid.Nil {
		return Resolution{}, pkgerrors.New(pkgerrors.CodeValidation, "zone id required")
	}
	if len(lines) == 0 {
		return Resolution{}, pkgerrors.New(pkgerrors.CodeValidation, "cart must contain at least one line")
	}
	for _, line := range lines {
		if line.ProductID == uuid.Nil {
			return Resolution{}, pkgerrors.New(pkgerrors.CodeValidation, "cart line missing product id")
		}
		if line.Qty <= 0 {
			return Resolution{}, pkgerrors.New(pkgerrors.CodeValidation, "cart line quantity must be positive").
				WithDetails(map[string]any{"productId": line.ProductID})
		}
		if line.Category == "" {
			return Resolution{}, pkgerrors.New(pkgerrors.CodeValidation, "cart line missing category").
				WithDetails(map[string]any{"productId": line.ProductID})
		}
	}

	resolution, err := s.strategy.Resolve(ctx, zoneID, lines)
	if err != nil {
		return Resolution{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve vendors")
	}

	if len(resolution.Groups) == 0 {
		details := make([]map[string]any, len(resolution.Unresolved))
		for i, line := range resolution.Unresolved {
			details[i] = map[string]any{"productId": line.ProductID, "reason": line.Reason}
		}
		return resolution, pkgerrors.New(pkgerrors.CodeVendorUnresolved, "no vendor could serve this cart").
			WithDetails(map[string]any{"lines": details})
	}
	if len(resolution.Unresolved) > 0 && s.logg != nil {
		warnCtx := s.logg.WithFields(ctx, map[string]any{
			"zone_id":          zoneID.String(),
			"unresolved_lines": len(resolution.Unresolved),
		})
		s.logg.Warn(warnCtx, "cart partially resolved, substitution requires user confirmation")
	}
	return resolution, nil
}
