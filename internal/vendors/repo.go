package vendors

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/freshmandi/freshmandi-backend/pkg/db/models"
)

// Candidate pairs a vendor with its zone routing priority.
type Candidate struct {
	Vendor   models.Vendor
	Priority int
}

// Repository reads vendor assignment configuration.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindPrimaryVendor(ctx context.Context, zoneID uuid.UUID) (*models.Vendor, error)
	FindExclusiveVendor(ctx context.Context, zoneID uuid.UUID, category string, subcategory *string) (*models.Vendor, error)
	ListCandidates(ctx context.Context, zoneID uuid.UUID) ([]Candidate, error)
	FindDarkStoreVendor(ctx context.Context, zoneID uuid.UUID) (*models.Vendor, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a vendors repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindPrimaryVendor(ctx context.Context, zoneID uuid.UUID) (*models.Vendor, error) {
	var vendor models.Vendor
	err := r.db.WithContext(ctx).
		Joins("JOIN vendor_zone_assignments vza ON vza.vendor_id = vendors.id").
		Where("vza.zone_id = ? AND vza.is_primary AND vza.active AND vendors.active", zoneID).
		First(&vendor).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &vendor, nil
}

// FindExclusiveVendor looks up the active exclusive assignment for the pair.
// Pass a subcategory for subcategory-level lookups, nil for category-level.
func (r *repository) FindExclusiveVendor(ctx context.Context, zoneID uuid.UUID, category string, subcategory *string) (*models.Vendor, error) {
	query := r.db.WithContext(ctx).
		Joins("JOIN vendor_category_assignments vca ON vca.vendor_id = vendors.id").
		Where("vca.zone_id = ? AND vca.exclusive AND vca.active AND vendors.active", zoneID)
	if subcategory != nil {
		query = query.Where("vca.subcategory = ?", *subcategory)
	} else {
		query = query.Where("vca.category = ? AND vca.subcategory IS NULL", category)
	}

	var vendor models.Vendor
	if err := query.First(&vendor).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &vendor, nil
}

func (r *repository) ListCandidates(ctx context.Context, zoneID uuid.UUID) ([]Candidate, error) {
	var rows []struct {
		models.Vendor
		Priority int
	}
	err := r.db.WithContext(ctx).
		Model(&models.Vendor{}).
		Select("vendors.*, vza.priority AS priority").
		Joins("JOIN vendor_zone_assignments vza ON vza.vendor_id = vendors.id").
		Where("vza.zone_id = ? AND vza.active AND vendors.active", zoneID).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	candidates := make([]Candidate, len(rows))
	for i, row := range rows {
		candidates[i] = Candidate{Vendor: row.Vendor, Priority: row.Priority}
	}
	return candidates, nil
}

func (r *repository) FindDarkStoreVendor(ctx context.Context, zoneID uuid.UUID) (*models.Vendor, error) {
	var vendor models.Vendor
	err := r.db.WithContext(ctx).
		Joins("JOIN vendor_zone_assignments vza ON vza.vendor_id = vendors.id").
		Where("vza.zone_id = ? AND vza.active AND vendors.active AND vendors.dark_store", zoneID).
		First(&vendor).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &vendor, nil
}
