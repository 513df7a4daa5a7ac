package postgres

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/voltgrid/csms/internal/domain"
	"github.com/voltgrid/csms/internal/ports"
)

type TariffRepository struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewTariffRepository(db *gorm.DB, log *zap.Logger) ports.TariffRepository {
	return &TariffRepository{
		db:  db,
		log: log,
	}
}

func (r *TariffRepository) FindByChargingPoint(ctx context.Context, chargingPointID string) (*domain.Tariff, error) {
	var t domain.Tariff
	err := r.db.WithContext(ctx).First(&t, "charging_point_id = ?", chargingPointID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}
