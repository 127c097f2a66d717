package vendors

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/freshmandi/freshmandi-backend/pkg/db/models"
	"github.com/freshmandi/freshmandi-backend/pkg/enums"
)

const (
	reasonNoAssignment = "no active vendor assignment for category"
	reasonNoPrimary    = "no primary vendor configured for zone"
)

// ResolutionStrategy partitions cart lines among vendors for one zone. The
// routing mode picks the variant at boot; variants never inspect each other.
type ResolutionStrategy interface {
	Resolve(ctx context.Context, zoneID uuid.UUID, lines []CartLine) (Resolution, error)
}

// NewStrategy returns the strategy variant for the configured routing mode.
func NewStrategy(mode enums.RoutingMode, repo Repository) (ResolutionStrategy, error) {
	if repo == nil {
		return nil, fmt.Errorf("repository required")
	}
	switch mode {
	case enums.RoutingModeSingleVendor:
		return &singleVendorStrategy{repo: repo}, nil
	case enums.RoutingModeSubcategoryExclusive:
		return &subcategoryExclusiveStrategy{repo: repo}, nil
	case enums.RoutingModeHybridDarkStore:
		return &hybridDarkStoreStrategy{repo: repo}, nil
	default:
		return nil, fmt.Errorf("unknown routing mode %q", mode)
	}
}

// singleVendorStrategy routes the whole cart to the zone's primary vendor.
type singleVendorStrategy struct {
	repo Repository
}

func (s *singleVendorStrategy) Resolve(ctx context.Context, zoneID uuid.UUID, lines []CartLine) (Resolution, error) {
	primary, err := s.repo.FindPrimaryVendor(ctx, zoneID)
	if err != nil {
		return Resolution{}, err
	}
	if primary == nil {
		unresolved := make([]UnresolvedLine, len(lines))
		for i, line := range lines {
			unresolved[i] = UnresolvedLine{ProductID: line.ProductID, Reason: reasonNoPrimary}
		}
		return Resolution{Unresolved: unresolved}, nil
	}
	return buildResolution(map[uuid.UUID]*VendorGroup{
		primary.ID: {Vendor: *primary, Lines: lines},
	}, nil), nil
}

// subcategoryExclusiveStrategy resolves each line through exclusive
// assignments, most specific first, with the zone dark store as last resort.
type subcategoryExclusiveStrategy struct {
	repo Repository
}

func (s *subcategoryExclusiveStrategy) Resolve(ctx context.Context, zoneID uuid.UUID, lines []CartLine) (Resolution, error) {
	return resolvePerLine(ctx, zoneID, lines, func(ctx context.Context, line CartLine) (*models.Vendor, error) {
		if line.Subcategory != nil {
			vendor, err := s.repo.FindExclusiveVendor(ctx, zoneID, line.Category, line.Subcategory)
			if err != nil || vendor != nil {
				return vendor, err
			}
		}
		vendor, err := s.repo.FindExclusiveVendor(ctx, zoneID, line.Category, nil)
		if err != nil || vendor != nil {
			return vendor, err
		}
		return s.repo.FindDarkStoreVendor(ctx, zoneID)
	})
}

// hybridDarkStoreStrategy tries exclusive assignments first, then the open
// candidate pool ranked by priority, prep time, and vendor ID, then the
// dark store.
type hybridDarkStoreStrategy struct {
	repo Repository
}

func (s *hybridDarkStoreStrategy) Resolve(ctx context.Context, zoneID uuid.UUID, lines []CartLine) (Resolution, error) {
	var (
		candidates []Candidate
		loaded     bool
	)
	return resolvePerLine(ctx, zoneID, lines, func(ctx context.Context, line CartLine) (*models.Vendor, error) {
		if line.Subcategory != nil {
			vendor, err := s.repo.FindExclusiveVendor(ctx, zoneID, line.Category, line.Subcategory)
			if err != nil || vendor != nil {
				return vendor, err
			}
		}
		vendor, err := s.repo.FindExclusiveVendor(ctx, zoneID, line.Category, nil)
		if err != nil || vendor != nil {
			return vendor, err
		}
		if !loaded {
			candidates, err = s.repo.ListCandidates(ctx, zoneID)
			if err != nil {
				return nil, err
			}
			sortCandidates(candidates)
			loaded = true
		}
		if len(candidates) > 0 {
			best := candidates[0].Vendor
			return &best, nil
		}
		return s.repo.FindDarkStoreVendor(ctx, zoneID)
	})
}

// sortCandidates orders by priority descending, then preparation time
// ascending, then vendor ID so the pick is deterministic across processes.
func sortCandidates(candidates []Candidate) {
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if a.Vendor.PrepTimeMinutes != b.Vendor.PrepTimeMinutes {
			return a.Vendor.PrepTimeMinutes < b.Vendor.PrepTimeMinutes
		}
		return strings.Compare(a.Vendor.ID.String(), b.Vendor.ID.String()) < 0
	})
}

type lineResolver func(ctx context.Context, line CartLine) (*models.Vendor, error)

func resolvePerLine(ctx context.Context, zoneID uuid.UUID, lines []CartLine, resolve lineResolver) (Resolution, error) {
	groups := make(map[uuid.UUID]*VendorGroup)
	var unresolved []UnresolvedLine
	for _, line := range lines {
		vendor, err := resolve(ctx, line)
		if err != nil {
			return Resolution{}, err
		}
		if vendor == nil {
			unresolved = append(unresolved, UnresolvedLine{ProductID: line.ProductID, Reason: reasonNoAssignment})
			continue
		}
		group, ok := groups[vendor.ID]
		if !ok {
			group = &VendorGroup{Vendor: *vendor}
			groups[vendor.ID] = group
		}
		group.Lines = append(group.Lines, line)
	}
	return buildResolution(groups, unresolved), nil
}

func buildResolution(groups map[uuid.UUID]*VendorGroup, unresolved []UnresolvedLine) Resolution {
	out := Resolution{Unresolved: unresolved}
	for _, group := range groups {
		out.Groups = append(out.Groups, *group)
	}
	sort.Slice(out.Groups, func(i, j int) bool {
		return strings.Compare(out.Groups[i].Vendor.ID.String(), out.Groups[j].Vendor.ID.String()) < 0
	})
	return out
}
