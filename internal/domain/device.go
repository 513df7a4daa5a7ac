package domain

import (
	"time"
)

// DeviceStatus is the coarse online/offline verdict for a charging device.
type DeviceStatus string

const (
	DeviceOnline  DeviceStatus = "Online"
	DeviceOffline DeviceStatus = "Offline"
)

// ConnectorStatus is the finer-grained availability verdict.
type ConnectorStatus string

const (
	ConnectorUnavailable ConnectorStatus = "Unavailable"
	ConnectorFaulted     ConnectorStatus = "Faulted"
	ConnectorCharging    ConnectorStatus = "Charging"
	ConnectorAvailable   ConnectorStatus = "Available"
)

// progressing protocol statuses map to Online; everything unrecognized is
// Offline so a garbled report never shows a dead device as reachable.
var onlineProtocolStatuses = map[string]bool{
	"available": true,
	"charging":  true,
	"preparing": true,
	"finishing": true,
}

// MapProtocolStatus maps a raw protocol status string to Online/Offline.
func MapProtocolStatus(status string) DeviceStatus {
	if onlineProtocolStatuses[normalizeStatus(status)] {
		return DeviceOnline
	}
	return DeviceOffline
}

func normalizeStatus(s string) string {
	b := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		b = append(b, c)
	}
	return string(b)
}

// Station is the registry row for one physical charging device.
type Station struct {
	DeviceID        string    `json:"device_id" gorm:"primaryKey"`
	Name            string    `json:"name"`
	ChargingPointID string    `json:"charging_point_id" gorm:"index"`
	Vendor          string    `json:"vendor"`
	Model           string    `json:"model"`
	Status          string    `json:"status"`
	Faulted         bool      `json:"faulted"`
	LastSeen        time.Time `json:"last_seen"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// DeviceStatusSnapshot is the cache-resident live status pushed by the
// protocol layer. Best effort: it may be absent or stale.
type DeviceStatusSnapshot struct {
	DeviceID   string    `json:"device_id"`
	Status     string    `json:"status"`
	ObservedAt time.Time `json:"observed_at"`
}

// Tariff is the pricing row the orchestrator consults at stop time, keyed by
// charging point.
type Tariff struct {
	ID              string    `json:"id" gorm:"primaryKey"`
	ChargingPointID string    `json:"charging_point_id" gorm:"uniqueIndex"`
	BaseRatePerKWh  float64   `json:"base_rate_per_kwh"`
	TaxPercent      float64   `json:"tax_percent"`
	Currency        string    `json:"currency"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// CostWithTax applies the tariff to an energy amount in kWh.
func (t *Tariff) CostWithTax(energyKWh float64) float64 {
	return energyKWh * t.BaseRatePerKWh * (1 + t.TaxPercent/100)
}
