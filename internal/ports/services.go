package ports

import (
	"context"
	"encoding/json"

	"github.com/voltgrid/csms/internal/domain"
)

// StartRequest carries one session-start attempt. CustomerID is empty for
// operator (console) initiated sessions.
type StartRequest struct {
	CustomerID      string
	DeviceID        string
	ConnectorID     int
	Amount          float64
	ChargingPointID string
	VehicleID       string
	IdTag           string
}

// StartResult mirrors the session API contract for start.
type StartResult struct {
	Success bool                    `json:"success"`
	Session *domain.ChargingSession `json:"session"`
}

// StopRequest carries one session-stop attempt. CustomerID is empty for
// operator stops; ConnectorID, TransactionID and SessionID narrow the
// operator lookup when present.
type StopRequest struct {
	CustomerID    string
	DeviceID      string
	ConnectorID   *int
	TransactionID *int
	SessionID     string
}

// StopResult mirrors the session API contract for stop. StopSuccess reports
// whether the remote-stop command reached the dispatch layer; billing is
// finalized locally either way.
type StopResult struct {
	Success     bool                    `json:"success"`
	StopSuccess bool                    `json:"stop_success"`
	Session     *domain.ChargingSession `json:"session"`
}

// SessionService is the top-level orchestrator: preconditions, fund
// reservation, command dispatch, transaction-id resolution, billing and
// finalization.
type SessionService interface {
	Start(ctx context.Context, req StartRequest) (*StartResult, error)
	Stop(ctx context.Context, req StopRequest) (*StopResult, error)
	Get(ctx context.Context, id string) (*domain.ChargingSession, error)
	List(ctx context.Context, filter SessionFilter) ([]domain.ChargingSession, error)
}

// WalletService manages prepaid balances with an audited ledger.
type WalletService interface {
	GetOrCreateWallet(ctx context.Context, customerID string) (*domain.Wallet, error)
	Debit(ctx context.Context, customerID string, amount float64, description, referenceID string) (*domain.WalletTransaction, error)
	Credit(ctx context.Context, customerID string, amount float64, description, referenceID string) (*domain.WalletTransaction, error)
	// Refund is idempotent per referenceID: an existing refund row for the
	// reference short-circuits without a second ledger entry.
	Refund(ctx context.Context, customerID string, amount float64, description, referenceID string) (*domain.WalletTransaction, error)
	Transactions(ctx context.Context, customerID string, limit, offset int) ([]domain.WalletTransaction, error)
}

// DeviceStateService reconciles a device's live state from the cache, the
// registry and the protocol log.
type DeviceStateService interface {
	Status(ctx context.Context, deviceID string) (domain.DeviceStatus, error)
	ConnectorStatus(ctx context.Context, deviceID string) (domain.ConnectorStatus, error)
	HasActiveTransaction(ctx context.Context, deviceID string) (bool, error)
}

// CommandType selects a remote command's routing.
type CommandType string

const (
	CommandRemoteStart         CommandType = "remote-start"
	CommandRemoteStop          CommandType = "remote-stop"
	CommandConfigurationChange CommandType = "configuration-change"
	CommandReset               CommandType = "reset"
)

// Command is one remote instruction to a device.
type Command struct {
	Type          CommandType            `json:"command"`
	DeviceID      string                 `json:"deviceId"`
	Payload       map[string]interface{} `json:"payload,omitempty"`
	SessionID     string                 `json:"sessionId,omitempty"`
	CustomerID    string                 `json:"customerId,omitempty"`
	ConnectorID   int                    `json:"connectorId,omitempty"`
	IdTag         string                 `json:"idTag,omitempty"`
	TransactionID *int                   `json:"transactionId,omitempty"`
}

// DispatchResult is the uniform outcome of a dispatch regardless of path.
type DispatchResult struct {
	Accepted bool            `json:"accepted"`
	Raw      json.RawMessage `json:"raw,omitempty"`
	Via      string          `json:"via"` // "queue" or "direct"
}

// Dispatcher delivers remote commands queue-first with a direct-call
// fallback.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd Command) (*DispatchResult, error)
}

// DeviceGateway is the synchronous device-control endpoint used when the
// queue path is unavailable.
type DeviceGateway interface {
	SendCommand(ctx context.Context, cmd Command) (accepted bool, raw json.RawMessage, err error)
}
