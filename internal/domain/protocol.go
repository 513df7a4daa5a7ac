package domain

import (
	"time"
)

// MessageKind identifies one demultiplexed charge-point protocol message.
// Parsing is upstream of this core; entries arrive already typed.
type MessageKind string

const (
	KindBootNotification   MessageKind = "BootNotification"
	KindHeartbeat          MessageKind = "Heartbeat"
	KindStatusNotification MessageKind = "StatusNotification"
	KindMeterValues        MessageKind = "MeterValues"
	KindStartTransaction   MessageKind = "StartTransaction"
	KindStopTransaction    MessageKind = "StopTransaction"
	KindRemoteStart        MessageKind = "RemoteStartTransaction"
	KindRemoteStop         MessageKind = "RemoteStopTransaction"
)

type Direction string

const (
	DirectionInbound  Direction = "inbound"  // device -> central system
	DirectionOutbound Direction = "outbound" // central system -> device
)

// ProtocolLogEntry is one append-only row of the protocol message log. The
// log is never mutated; the reconciler and the transaction-id resolver scan
// it read-only.
type ProtocolLogEntry struct {
	ID            uint        `json:"id" gorm:"primaryKey;autoIncrement"`
	DeviceID      string      `json:"device_id" gorm:"index:idx_protocol_device_ts"`
	ConnectorID   int         `json:"connector_id"`
	Kind          MessageKind `json:"kind" gorm:"index"`
	Direction     Direction   `json:"direction"`
	CorrelationID string      `json:"correlation_id" gorm:"index"`
	Timestamp     time.Time   `json:"timestamp" gorm:"index:idx_protocol_device_ts"`
	Payload       JSONMap     `json:"payload" gorm:"type:jsonb"`
}

// JSONMap backs JSONB payload columns.
type JSONMap map[string]interface{}

// IntField reads an integer payload field, tolerating the numeric types
// encoding/json produces.
func (m JSONMap) IntField(key string) (int, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return int(t), true
	case int:
		return t, true
	case int64:
		return int(t), true
	}
	return 0, false
}

// Int64Field reads a 64-bit integer payload field (meter readings in Wh).
func (m JSONMap) Int64Field(key string) (int64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return int64(t), true
	case int64:
		return t, true
	case int:
		return int64(t), true
	}
	return 0, false
}

// StringField reads a string payload field.
func (m JSONMap) StringField(key string) (string, bool) {
	v, ok := m[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
