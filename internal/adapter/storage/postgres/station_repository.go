package postgres

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/voltgrid/csms/internal/domain"
	"github.com/voltgrid/csms/internal/ports"
)

type StationRepository struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewStationRepository(db *gorm.DB, log *zap.Logger) ports.StationRepository {
	return &StationRepository{
		db:  db,
		log: log,
	}
}

func (r *StationRepository) FindByDeviceID(ctx context.Context, deviceID string) (*domain.Station, error) {
	var st domain.Station
	err := r.db.WithContext(ctx).First(&st, "device_id = ?", deviceID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &st, nil
}

func (r *StationRepository) Save(ctx context.Context, st *domain.Station) error {
	return r.db.WithContext(ctx).Save(st).Error
}

func (r *StationRepository) UpdateStatus(ctx context.Context, deviceID, status string, faulted bool) error {
	return r.db.WithContext(ctx).Model(&domain.Station{}).
		Where("device_id = ?", deviceID).
		Updates(map[string]interface{}{
			"status":     status,
			"faulted":    faulted,
			"updated_at": time.Now(),
		}).Error
}

func (r *StationRepository) TouchLastSeen(ctx context.Context, deviceID string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.Station{}).
		Where("device_id = ?", deviceID).
		Update("last_seen", at).Error
}
