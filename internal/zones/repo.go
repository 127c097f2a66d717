package zones

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/freshmandi/freshmandi-backend/pkg/db/models"
	pkgerrors "github.com/freshmandi/freshmandi-backend/pkg/errors"
)

// Repository reads the coverage hierarchy.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListActiveAreas(ctx context.Context) ([]models.Area, error)
	FindArea(ctx context.Context, id uuid.UUID) (*models.Area, error)
	FindZone(ctx context.Context, id uuid.UUID) (*models.Zone, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a zones repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) ListActiveAreas(ctx context.Context) ([]models.Area, error) {
	var areas []models.Area
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Find(&areas).Error
	if err != nil {
		return nil, err
	}
	return areas, nil
}

func (r *repository) FindArea(ctx context.Context, id uuid.UUID) (*models.Area, error) {
	var area models.Area
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&area).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "area not found")
		}
		return nil, err
	}
	return &area, nil
}

func (r *repository) FindZone(ctx context.Context, id uuid.UUID) (*models.Zone, error) {
	var zone models.Zone
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&zone).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "zone not found")
		}
		return nil, err
	}
	return &zone, nil
}
