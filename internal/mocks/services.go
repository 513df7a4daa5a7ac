package mocks

import (
	"context"

	"github.com/voltgrid/csms/internal/domain"
	"github.com/voltgrid/csms/internal/ports"
)

// MockWalletService is a mock implementation of WalletService
type MockWalletService struct {
	GetOrCreateWalletFunc func(ctx context.Context, customerID string) (*domain.Wallet, error)
	DebitFunc             func(ctx context.Context, customerID string, amount float64, description, referenceID string) (*domain.WalletTransaction, error)
	CreditFunc            func(ctx context.Context, customerID string, amount float64, description, referenceID string) (*domain.WalletTransaction, error)
	RefundFunc            func(ctx context.Context, customerID string, amount float64, description, referenceID string) (*domain.WalletTransaction, error)
	TransactionsFunc      func(ctx context.Context, customerID string, limit, offset int) ([]domain.WalletTransaction, error)
}

func (m *MockWalletService) GetOrCreateWallet(ctx context.Context, customerID string) (*domain.Wallet, error) {
	if m.GetOrCreateWalletFunc != nil {
		return m.GetOrCreateWalletFunc(ctx, customerID)
	}
	return nil, nil
}

func (m *MockWalletService) Debit(ctx context.Context, customerID string, amount float64, description, referenceID string) (*domain.WalletTransaction, error) {
	if m.DebitFunc != nil {
		return m.DebitFunc(ctx, customerID, amount, description, referenceID)
	}
	return nil, nil
}

func (m *MockWalletService) Credit(ctx context.Context, customerID string, amount float64, description, referenceID string) (*domain.WalletTransaction, error) {
	if m.CreditFunc != nil {
		return m.CreditFunc(ctx, customerID, amount, description, referenceID)
	}
	return nil, nil
}

func (m *MockWalletService) Refund(ctx context.Context, customerID string, amount float64, description, referenceID string) (*domain.WalletTransaction, error) {
	if m.RefundFunc != nil {
		return m.RefundFunc(ctx, customerID, amount, description, referenceID)
	}
	return nil, nil
}

func (m *MockWalletService) Transactions(ctx context.Context, customerID string, limit, offset int) ([]domain.WalletTransaction, error) {
	if m.TransactionsFunc != nil {
		return m.TransactionsFunc(ctx, customerID, limit, offset)
	}
	return nil, nil
}

// MockDeviceStateService is a mock implementation of DeviceStateService
type MockDeviceStateService struct {
	StatusFunc               func(ctx context.Context, deviceID string) (domain.DeviceStatus, error)
	ConnectorStatusFunc      func(ctx context.Context, deviceID string) (domain.ConnectorStatus, error)
	HasActiveTransactionFunc func(ctx context.Context, deviceID string) (bool, error)
}

func (m *MockDeviceStateService) Status(ctx context.Context, deviceID string) (domain.DeviceStatus, error) {
	if m.StatusFunc != nil {
		return m.StatusFunc(ctx, deviceID)
	}
	return domain.DeviceOffline, nil
}

func (m *MockDeviceStateService) ConnectorStatus(ctx context.Context, deviceID string) (domain.ConnectorStatus, error) {
	if m.ConnectorStatusFunc != nil {
		return m.ConnectorStatusFunc(ctx, deviceID)
	}
	return domain.ConnectorUnavailable, nil
}

func (m *MockDeviceStateService) HasActiveTransaction(ctx context.Context, deviceID string) (bool, error) {
	if m.HasActiveTransactionFunc != nil {
		return m.HasActiveTransactionFunc(ctx, deviceID)
	}
	return false, nil
}

// MockDispatcher is a mock implementation of Dispatcher
type MockDispatcher struct {
	DispatchFunc func(ctx context.Context, cmd ports.Command) (*ports.DispatchResult, error)
	Dispatched   []ports.Command
}

func (m *MockDispatcher) Dispatch(ctx context.Context, cmd ports.Command) (*ports.DispatchResult, error) {
	m.Dispatched = append(m.Dispatched, cmd)
	if m.DispatchFunc != nil {
		return m.DispatchFunc(ctx, cmd)
	}
	return &ports.DispatchResult{Accepted: true, Via: "queue"}, nil
}

// MockSessionService is a mock implementation of SessionService
type MockSessionService struct {
	StartFunc func(ctx context.Context, req ports.StartRequest) (*ports.StartResult, error)
	StopFunc  func(ctx context.Context, req ports.StopRequest) (*ports.StopResult, error)
	GetFunc   func(ctx context.Context, id string) (*domain.ChargingSession, error)
	ListFunc  func(ctx context.Context, filter ports.SessionFilter) ([]domain.ChargingSession, error)
}

func (m *MockSessionService) Start(ctx context.Context, req ports.StartRequest) (*ports.StartResult, error) {
	if m.StartFunc != nil {
		return m.StartFunc(ctx, req)
	}
	return nil, nil
}

func (m *MockSessionService) Stop(ctx context.Context, req ports.StopRequest) (*ports.StopResult, error) {
	if m.StopFunc != nil {
		return m.StopFunc(ctx, req)
	}
	return nil, nil
}

func (m *MockSessionService) Get(ctx context.Context, id string) (*domain.ChargingSession, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	return nil, nil
}

func (m *MockSessionService) List(ctx context.Context, filter ports.SessionFilter) ([]domain.ChargingSession, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, filter)
	}
	return nil, nil
}
