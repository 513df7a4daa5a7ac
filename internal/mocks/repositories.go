package mocks

import (
	"context"
	"time"

	"github.com/voltgrid/csms/internal/domain"
	"github.com/voltgrid/csms/internal/ports"
)

// MockSessionRepository is a mock implementation of SessionRepository
type MockSessionRepository struct {
	CreateExclusiveFunc     func(ctx context.Context, s *domain.ChargingSession) error
	UpdateFunc              func(ctx context.Context, s *domain.ChargingSession) error
	FindByIDFunc            func(ctx context.Context, id string) (*domain.ChargingSession, error)
	FindOpenByConnectorFunc func(ctx context.Context, deviceID string, connectorID int) (*domain.ChargingSession, error)
	FindOpenByCustomerFunc  func(ctx context.Context, customerID, deviceID string, connectorID int) (*domain.ChargingSession, error)
	FindOpenByDeviceFunc    func(ctx context.Context, customerID, deviceID string, connectorID *int, sessionID string) (*domain.ChargingSession, error)
	ListFunc                func(ctx context.Context, filter ports.SessionFilter) ([]domain.ChargingSession, error)
}

func (m *MockSessionRepository) CreateExclusive(ctx context.Context, s *domain.ChargingSession) error {
	if m.CreateExclusiveFunc != nil {
		return m.CreateExclusiveFunc(ctx, s)
	}
	return nil
}

func (m *MockSessionRepository) Update(ctx context.Context, s *domain.ChargingSession) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, s)
	}
	return nil
}

func (m *MockSessionRepository) FindByID(ctx context.Context, id string) (*domain.ChargingSession, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *MockSessionRepository) FindOpenByConnector(ctx context.Context, deviceID string, connectorID int) (*domain.ChargingSession, error) {
	if m.FindOpenByConnectorFunc != nil {
		return m.FindOpenByConnectorFunc(ctx, deviceID, connectorID)
	}
	return nil, nil
}

func (m *MockSessionRepository) FindOpenByCustomer(ctx context.Context, customerID, deviceID string, connectorID int) (*domain.ChargingSession, error) {
	if m.FindOpenByCustomerFunc != nil {
		return m.FindOpenByCustomerFunc(ctx, customerID, deviceID, connectorID)
	}
	return nil, nil
}

func (m *MockSessionRepository) FindOpenByDevice(ctx context.Context, customerID, deviceID string, connectorID *int, sessionID string) (*domain.ChargingSession, error) {
	if m.FindOpenByDeviceFunc != nil {
		return m.FindOpenByDeviceFunc(ctx, customerID, deviceID, connectorID, sessionID)
	}
	return nil, nil
}

func (m *MockSessionRepository) List(ctx context.Context, filter ports.SessionFilter) ([]domain.ChargingSession, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, filter)
	}
	return nil, nil
}

// MockWalletRepository is a mock implementation of WalletRepository
type MockWalletRepository struct {
	FindByCustomerIDFunc           func(ctx context.Context, customerID string) (*domain.Wallet, error)
	SaveFunc                       func(ctx context.Context, w *domain.Wallet) error
	ApplyTransactionFunc           func(ctx context.Context, w *domain.Wallet, entry *domain.WalletTransaction) error
	FindTransactionByReferenceFunc func(ctx context.Context, customerID, referenceID string, txType domain.WalletTransactionType) (*domain.WalletTransaction, error)
	ListTransactionsFunc           func(ctx context.Context, walletID string, limit, offset int) ([]domain.WalletTransaction, error)
}

func (m *MockWalletRepository) FindByCustomerID(ctx context.Context, customerID string) (*domain.Wallet, error) {
	if m.FindByCustomerIDFunc != nil {
		return m.FindByCustomerIDFunc(ctx, customerID)
	}
	return nil, nil
}

func (m *MockWalletRepository) Save(ctx context.Context, w *domain.Wallet) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, w)
	}
	return nil
}

func (m *MockWalletRepository) ApplyTransaction(ctx context.Context, w *domain.Wallet, entry *domain.WalletTransaction) error {
	if m.ApplyTransactionFunc != nil {
		return m.ApplyTransactionFunc(ctx, w, entry)
	}
	return nil
}

func (m *MockWalletRepository) FindTransactionByReference(ctx context.Context, customerID, referenceID string, txType domain.WalletTransactionType) (*domain.WalletTransaction, error) {
	if m.FindTransactionByReferenceFunc != nil {
		return m.FindTransactionByReferenceFunc(ctx, customerID, referenceID, txType)
	}
	return nil, nil
}

func (m *MockWalletRepository) ListTransactions(ctx context.Context, walletID string, limit, offset int) ([]domain.WalletTransaction, error) {
	if m.ListTransactionsFunc != nil {
		return m.ListTransactionsFunc(ctx, walletID, limit, offset)
	}
	return nil, nil
}

// MockProtocolLogRepository is a mock implementation of ProtocolLogRepository
type MockProtocolLogRepository struct {
	AppendFunc            func(ctx context.Context, e *domain.ProtocolLogEntry) error
	EntriesSinceFunc      func(ctx context.Context, deviceID string, since time.Time, kinds []domain.MessageKind) ([]domain.ProtocolLogEntry, error)
	EntriesBetweenFunc    func(ctx context.Context, deviceID string, from, to time.Time, kinds []domain.MessageKind) ([]domain.ProtocolLogEntry, error)
	FindByCorrelationFunc func(ctx context.Context, deviceID, correlationID string, direction domain.Direction) (*domain.ProtocolLogEntry, error)
	LatestByKindFunc      func(ctx context.Context, deviceID string, kind domain.MessageKind, since time.Time) (*domain.ProtocolLogEntry, error)
}

func (m *MockProtocolLogRepository) Append(ctx context.Context, e *domain.ProtocolLogEntry) error {
	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, e)
	}
	return nil
}

func (m *MockProtocolLogRepository) EntriesSince(ctx context.Context, deviceID string, since time.Time, kinds []domain.MessageKind) ([]domain.ProtocolLogEntry, error) {
	if m.EntriesSinceFunc != nil {
		return m.EntriesSinceFunc(ctx, deviceID, since, kinds)
	}
	return nil, nil
}

func (m *MockProtocolLogRepository) EntriesBetween(ctx context.Context, deviceID string, from, to time.Time, kinds []domain.MessageKind) ([]domain.ProtocolLogEntry, error) {
	if m.EntriesBetweenFunc != nil {
		return m.EntriesBetweenFunc(ctx, deviceID, from, to, kinds)
	}
	return nil, nil
}

func (m *MockProtocolLogRepository) FindByCorrelation(ctx context.Context, deviceID, correlationID string, direction domain.Direction) (*domain.ProtocolLogEntry, error) {
	if m.FindByCorrelationFunc != nil {
		return m.FindByCorrelationFunc(ctx, deviceID, correlationID, direction)
	}
	return nil, nil
}

func (m *MockProtocolLogRepository) LatestByKind(ctx context.Context, deviceID string, kind domain.MessageKind, since time.Time) (*domain.ProtocolLogEntry, error) {
	if m.LatestByKindFunc != nil {
		return m.LatestByKindFunc(ctx, deviceID, kind, since)
	}
	return nil, nil
}

// MockStationRepository is a mock implementation of StationRepository
type MockStationRepository struct {
	FindByDeviceIDFunc func(ctx context.Context, deviceID string) (*domain.Station, error)
	SaveFunc           func(ctx context.Context, st *domain.Station) error
	UpdateStatusFunc   func(ctx context.Context, deviceID, status string, faulted bool) error
	TouchLastSeenFunc  func(ctx context.Context, deviceID string, at time.Time) error
}

func (m *MockStationRepository) FindByDeviceID(ctx context.Context, deviceID string) (*domain.Station, error) {
	if m.FindByDeviceIDFunc != nil {
		return m.FindByDeviceIDFunc(ctx, deviceID)
	}
	return nil, nil
}

func (m *MockStationRepository) Save(ctx context.Context, st *domain.Station) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, st)
	}
	return nil
}

func (m *MockStationRepository) UpdateStatus(ctx context.Context, deviceID, status string, faulted bool) error {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, deviceID, status, faulted)
	}
	return nil
}

func (m *MockStationRepository) TouchLastSeen(ctx context.Context, deviceID string, at time.Time) error {
	if m.TouchLastSeenFunc != nil {
		return m.TouchLastSeenFunc(ctx, deviceID, at)
	}
	return nil
}

// MockTariffRepository is a mock implementation of TariffRepository
type MockTariffRepository struct {
	FindByChargingPointFunc func(ctx context.Context, chargingPointID string) (*domain.Tariff, error)
}

func (m *MockTariffRepository) FindByChargingPoint(ctx context.Context, chargingPointID string) (*domain.Tariff, error) {
	if m.FindByChargingPointFunc != nil {
		return m.FindByChargingPointFunc(ctx, chargingPointID)
	}
	return nil, nil
}
