package mocks

import (
	"context"
	"encoding/json"

	"github.com/voltgrid/csms/internal/ports"
)

// MockDeviceGateway is a mock implementation of DeviceGateway
type MockDeviceGateway struct {
	SendCommandFunc func(ctx context.Context, cmd ports.Command) (bool, json.RawMessage, error)
	SentCommands    []ports.Command
}

func (m *MockDeviceGateway) SendCommand(ctx context.Context, cmd ports.Command) (bool, json.RawMessage, error) {
	m.SentCommands = append(m.SentCommands, cmd)
	if m.SendCommandFunc != nil {
		return m.SendCommandFunc(ctx, cmd)
	}
	return true, json.RawMessage(`{"status":"Accepted"}`), nil
}
