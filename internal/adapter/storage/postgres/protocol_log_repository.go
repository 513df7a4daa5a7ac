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

// ProtocolLogRepository stores the append-only protocol message log. Rows
// are never updated or deleted here; everything else is a read-only scan.
type ProtocolLogRepository struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewProtocolLogRepository(db *gorm.DB, log *zap.Logger) ports.ProtocolLogRepository {
	return &ProtocolLogRepository{
		db:  db,
		log: log,
	}
}

func (r *ProtocolLogRepository) Append(ctx context.Context, e *domain.ProtocolLogEntry) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *ProtocolLogRepository) EntriesSince(ctx context.Context, deviceID string, since time.Time, kinds []domain.MessageKind) ([]domain.ProtocolLogEntry, error) {
	q := r.db.WithContext(ctx).
		Where("device_id = ? AND timestamp >= ?", deviceID, since)
	if len(kinds) > 0 {
		q = q.Where("kind IN ?", kinds)
	}

	var entries []domain.ProtocolLogEntry
	err := q.Order("timestamp asc").Find(&entries).Error
	return entries, err
}

func (r *ProtocolLogRepository) EntriesBetween(ctx context.Context, deviceID string, from, to time.Time, kinds []domain.MessageKind) ([]domain.ProtocolLogEntry, error) {
	q := r.db.WithContext(ctx).
		Where("device_id = ? AND timestamp >= ? AND timestamp <= ?", deviceID, from, to)
	if len(kinds) > 0 {
		q = q.Where("kind IN ?", kinds)
	}

	var entries []domain.ProtocolLogEntry
	err := q.Order("timestamp asc").Find(&entries).Error
	return entries, err
}

func (r *ProtocolLogRepository) FindByCorrelation(ctx context.Context, deviceID, correlationID string, direction domain.Direction) (*domain.ProtocolLogEntry, error) {
	var e domain.ProtocolLogEntry
	err := r.db.WithContext(ctx).
		Where("device_id = ? AND correlation_id = ? AND direction = ?", deviceID, correlationID, direction).
		Order("timestamp desc").
		First(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

func (r *ProtocolLogRepository) LatestByKind(ctx context.Context, deviceID string, kind domain.MessageKind, since time.Time) (*domain.ProtocolLogEntry, error) {
	var e domain.ProtocolLogEntry
	err := r.db.WithContext(ctx).
		Where("device_id = ? AND kind = ? AND timestamp >= ?", deviceID, kind, since).
		Order("timestamp desc").
		First(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}
