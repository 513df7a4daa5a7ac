package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type SessionStatus string

const (
	SessionStatusPending   SessionStatus = "pending"
	SessionStatusActive    SessionStatus = "active"
	SessionStatusStopped   SessionStatus = "stopped"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusFailed    SessionStatus = "failed"
)

// Terminal reports whether the session can no longer change state.
func (s SessionStatus) Terminal() bool {
	switch s {
	case SessionStatusStopped, SessionStatusCompleted, SessionStatusFailed:
		return true
	}
	return false
}

// Open reports whether the session still holds its connector.
func (s SessionStatus) Open() bool {
	return s == SessionStatusPending || s == SessionStatusActive
}

const (
	StopReasonCompleted = "completed"
	StopReasonRemote    = "remote"
	StopReasonOperator  = "operator"
)

// ChargingSession is the durable record of one charge attempt. Money is
// reserved up front (AmountDeducted); FinalAmount and RefundAmount are
// computed at stop time from meter readings and never exceed the reservation.
type ChargingSession struct {
	ID              string        `json:"id" gorm:"primaryKey"`
	CustomerID      string        `json:"customer_id" gorm:"index"`
	DeviceID        string        `json:"device_id" gorm:"index"`
	ConnectorID     int           `json:"connector_id"`
	ChargingPointID string        `json:"charging_point_id"`
	VehicleID       string        `json:"vehicle_id,omitempty"`
	IdTag           string        `json:"id_tag"`
	TransactionID   *int          `json:"transaction_id,omitempty"` // protocol-level id, nil until resolved
	Status          SessionStatus `json:"status" gorm:"index"`
	AmountRequested float64       `json:"amount_requested"`
	AmountDeducted  float64       `json:"amount_deducted"`
	EnergyConsumed  float64       `json:"energy_consumed"` // kWh
	FinalAmount     float64       `json:"final_amount"`
	RefundAmount    float64       `json:"refund_amount"`
	MeterStart      *int64        `json:"meter_start,omitempty"` // Wh
	MeterEnd        *int64        `json:"meter_end,omitempty"`   // Wh
	StartTime       time.Time     `json:"start_time"`
	EndTime         *time.Time    `json:"end_time,omitempty"`
	StopReason      string        `json:"stop_reason,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// NewSessionID returns a globally unique session id that stays readable in
// logs and support tickets: cs-<utc timestamp>-<uuid fragment>.
func NewSessionID(now time.Time) string {
	frag := strings.Split(uuid.New().String(), "-")[0]
	return fmt.Sprintf("cs-%s-%s", now.UTC().Format("20060102T150405"), frag)
}

// DefaultIdTag derives a deterministic protocol authorization tag from a
// customer id. OCPP caps idTag at 20 characters.
func DefaultIdTag(customerID string) string {
	tag := "VG" + strings.ToUpper(strings.ReplaceAll(customerID, "-", ""))
	if len(tag) > 20 {
		tag = tag[:20]
	}
	return tag
}

// OperatorIdTag is presented for console-initiated sessions.
const OperatorIdTag = "VG-OPERATOR"
