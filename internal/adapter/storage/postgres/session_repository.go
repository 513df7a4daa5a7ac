package postgres

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/voltgrid/csms/internal/domain"
	"github.com/voltgrid/csms/internal/ports"
)

var openStatuses = []domain.SessionStatus{
	domain.SessionStatusPending,
	domain.SessionStatusActive,
}

type SessionRepository struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewSessionRepository(db *gorm.DB, log *zap.Logger) ports.SessionRepository {
	return &SessionRepository{
		db:  db,
		log: log,
	}
}

// CreateExclusive inserts the session only if no open session holds the same
// (device, connector). The existence check and the insert run in one
// database transaction with the open rows locked, closing the race window a
// separate read-then-write would leave.
func (r *SessionRepository) CreateExclusive(ctx context.Context, s *domain.ChargingSession) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var open domain.ChargingSession
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("device_id = ? AND connector_id = ? AND status IN ? AND end_time IS NULL",
				s.DeviceID, s.ConnectorID, openStatuses).
			First(&open).Error
		if err == nil {
			return domain.ConflictError("connector %d on device %s already has open session %s",
				s.ConnectorID, s.DeviceID, open.ID)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return tx.Create(s).Error
	})
}

func (r *SessionRepository) Update(ctx context.Context, s *domain.ChargingSession) error {
	return r.db.WithContext(ctx).Save(s).Error
}

func (r *SessionRepository) FindByID(ctx context.Context, id string) (*domain.ChargingSession, error) {
	var s domain.ChargingSession
	err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *SessionRepository) FindOpenByConnector(ctx context.Context, deviceID string, connectorID int) (*domain.ChargingSession, error) {
	var s domain.ChargingSession
	err := r.db.WithContext(ctx).
		Where("device_id = ? AND connector_id = ? AND status IN ? AND end_time IS NULL",
			deviceID, connectorID, openStatuses).
		First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *SessionRepository) FindOpenByCustomer(ctx context.Context, customerID, deviceID string, connectorID int) (*domain.ChargingSession, error) {
	var s domain.ChargingSession
	err := r.db.WithContext(ctx).
		Where("customer_id = ? AND device_id = ? AND connector_id = ? AND status IN ? AND end_time IS NULL",
			customerID, deviceID, connectorID, openStatuses).
		First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *SessionRepository) FindOpenByDevice(ctx context.Context, customerID, deviceID string, connectorID *int, sessionID string) (*domain.ChargingSession, error) {
	q := r.db.WithContext(ctx).
		Where("customer_id = ? AND device_id = ? AND status IN ? AND end_time IS NULL",
			customerID, deviceID, openStatuses)
	if connectorID != nil {
		q = q.Where("connector_id = ?", *connectorID)
	}
	if sessionID != "" {
		q = q.Where("id = ?", sessionID)
	}

	var s domain.ChargingSession
	err := q.Order("created_at desc").First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *SessionRepository) List(ctx context.Context, filter ports.SessionFilter) ([]domain.ChargingSession, error) {
	q := r.db.WithContext(ctx).Model(&domain.ChargingSession{})
	if filter.CustomerID != "" {
		q = q.Where("customer_id = ?", filter.CustomerID)
	}
	if filter.DeviceID != "" {
		q = q.Where("device_id = ?", filter.DeviceID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	var sessions []domain.ChargingSession
	err := q.Order("created_at desc").Find(&sessions).Error
	return sessions, err
}
