package ports

import (
	"context"
	"time"

	"github.com/voltgrid/csms/internal/domain"
)

// SessionRepository persists charging sessions. CreateExclusive enforces the
// one-open-session-per-connector invariant inside a single storage
// transaction (locked existence check + insert) so concurrent starts cannot
// both win.
type SessionRepository interface {
	CreateExclusive(ctx context.Context, s *domain.ChargingSession) error
	Update(ctx context.Context, s *domain.ChargingSession) error
	FindByID(ctx context.Context, id string) (*domain.ChargingSession, error)
	FindOpenByConnector(ctx context.Context, deviceID string, connectorID int) (*domain.ChargingSession, error)
	FindOpenByCustomer(ctx context.Context, customerID, deviceID string, connectorID int) (*domain.ChargingSession, error)
	// FindOpenByDevice locates an open session scoped to a customer, with
	// optional connector and session-id narrowing (operator stop lookups).
	FindOpenByDevice(ctx context.Context, customerID, deviceID string, connectorID *int, sessionID string) (*domain.ChargingSession, error)
	List(ctx context.Context, filter SessionFilter) ([]domain.ChargingSession, error)
}

// SessionFilter narrows session listings.
type SessionFilter struct {
	CustomerID string
	DeviceID   string
	Status     domain.SessionStatus
	Limit      int
	Offset     int
}

// WalletRepository persists wallets and their append-only ledger.
// ApplyTransaction writes the new balance and the ledger row atomically.
type WalletRepository interface {
	FindByCustomerID(ctx context.Context, customerID string) (*domain.Wallet, error)
	Save(ctx context.Context, w *domain.Wallet) error
	ApplyTransaction(ctx context.Context, w *domain.Wallet, entry *domain.WalletTransaction) error
	FindTransactionByReference(ctx context.Context, customerID, referenceID string, txType domain.WalletTransactionType) (*domain.WalletTransaction, error)
	ListTransactions(ctx context.Context, walletID string, limit, offset int) ([]domain.WalletTransaction, error)
}

// ProtocolLogRepository is the append-only message log. Reads return entries
// in ascending timestamp order.
type ProtocolLogRepository interface {
	Append(ctx context.Context, e *domain.ProtocolLogEntry) error
	EntriesSince(ctx context.Context, deviceID string, since time.Time, kinds []domain.MessageKind) ([]domain.ProtocolLogEntry, error)
	EntriesBetween(ctx context.Context, deviceID string, from, to time.Time, kinds []domain.MessageKind) ([]domain.ProtocolLogEntry, error)
	FindByCorrelation(ctx context.Context, deviceID, correlationID string, direction domain.Direction) (*domain.ProtocolLogEntry, error)
	LatestByKind(ctx context.Context, deviceID string, kind domain.MessageKind, since time.Time) (*domain.ProtocolLogEntry, error)
}

// StationRepository is the device registry consulted for the last-seen
// fallback and the fault flag.
type StationRepository interface {
	FindByDeviceID(ctx context.Context, deviceID string) (*domain.Station, error)
	Save(ctx context.Context, st *domain.Station) error
	UpdateStatus(ctx context.Context, deviceID, status string, faulted bool) error
	TouchLastSeen(ctx context.Context, deviceID string, at time.Time) error
}

// TariffRepository resolves pricing for a charging point.
type TariffRepository interface {
	FindByChargingPoint(ctx context.Context, chargingPointID string) (*domain.Tariff, error)
}
