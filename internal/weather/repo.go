package weather

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/freshmandi/freshmandi-backend/pkg/db/models"
)

// Repository persists per-zone weather observations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	// Upsert keeps exactly one row per zone, latest observation wins.
	Upsert(ctx context.Context, status *models.WeatherStatus) error
	Find(ctx context.Context, zoneID uuid.UUID) (*models.WeatherStatus, error)
	ListZoneIDs(ctx context.Context) ([]uuid.UUID, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Upsert(ctx context.Context, status *models.WeatherStatus) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "zone_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"classification", "fee_override_paise", "window_minutes", "suspended", "observed_at", "updated_at",
			}),
		}).
		Create(status).Error
}

func (r *repository) Find(ctx context.Context, zoneID uuid.UUID) (*models.WeatherStatus, error) {
	var status models.WeatherStatus
	err := r.db.WithContext(ctx).Where("zone_id = ?", zoneID).First(&status).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &status, nil
}

func (r *repository) ListZoneIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Zone{}).
		Where("active").
		Pluck("id", &ids).Error
	return ids, err
}
