package ingest

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/voltgrid/csms/internal/adapter/cache"
	"github.com/voltgrid/csms/internal/domain"
	"github.com/voltgrid/csms/internal/mocks"
	"github.com/voltgrid/csms/internal/ports"
)

func newTestLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

type harness struct {
	mq       *mocks.MockMessageQueue
	plog     *mocks.MockProtocolLogRepository
	stations *mocks.MockStationRepository
	sessions *mocks.MockSessionRepository
	cache    *mocks.MockCache
	appended []domain.ProtocolLogEntry
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		mq:       mocks.NewMockMessageQueue(),
		plog:     &mocks.MockProtocolLogRepository{},
		stations: &mocks.MockStationRepository{},
		sessions: &mocks.MockSessionRepository{},
		cache:    mocks.NewMockCache(),
	}
	h.plog.AppendFunc = func(_ context.Context, e *domain.ProtocolLogEntry) error {
		h.appended = append(h.appended, *e)
		return nil
	}

	c := NewConsumer(h.mq, h.plog, h.stations, h.sessions, h.cache, time.Minute, newTestLogger())
	if err := c.Start(); err != nil {
		t.Fatalf("failed to start consumer: %v", err)
	}
	return h
}

func (h *harness) deliver(t *testing.T, kind domain.MessageKind, connectorID int, payload domain.JSONMap) {
	t.Helper()
	data, err := json.Marshal(map[string]interface{}{
		"deviceId":    "CP-001",
		"connectorId": connectorID,
		"kind":        kind,
		"direction":   domain.DirectionInbound,
		"timestamp":   testNow,
		"payload":     payload,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := h.mq.Deliver(ProtocolEventsTopic, data); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
}

func TestStatusNotificationUpdatesCacheAndRegistry(t *testing.T) {
	h := newHarness(t)

	var gotStatus string
	var gotFaulted bool
	h.stations.UpdateStatusFunc = func(_ context.Context, _ string, status string, faulted bool) error {
		gotStatus = status
		gotFaulted = faulted
		return nil
	}

	h.deliver(t, domain.KindStatusNotification, 1, domain.JSONMap{"status": "Charging", "errorCode": "NoError"})

	if len(h.appended) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(h.appended))
	}
	raw := h.cache.Data[cache.DeviceStatusKey("CP-001")]
	if raw == "" {
		t.Fatal("expected a cached status snapshot")
	}
	var snap domain.DeviceStatusSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		t.Fatalf("bad snapshot json: %v", err)
	}
	if snap.Status != "Charging" {
		t.Errorf("expected Charging snapshot, got %s", snap.Status)
	}
	if gotStatus != "Charging" || gotFaulted {
		t.Errorf("registry update mismatch: status=%s faulted=%v", gotStatus, gotFaulted)
	}
}

func TestStatusNotificationFaultCodeFlagsStation(t *testing.T) {
	h := newHarness(t)

	var gotFaulted bool
	h.stations.UpdateStatusFunc = func(_ context.Context, _, _ string, faulted bool) error {
		gotFaulted = faulted
		return nil
	}

	h.deliver(t, domain.KindStatusNotification, 1, domain.JSONMap{"status": "Available", "errorCode": "GroundFailure"})
	if !gotFaulted {
		t.Error("non-NoError code must flag the station faulted")
	}
}

func TestStartTransactionPromotesPendingSession(t *testing.T) {
	h := newHarness(t)

	pending := &domain.ChargingSession{
		ID:          "cs-1",
		DeviceID:    "CP-001",
		ConnectorID: 1,
		Status:      domain.SessionStatusPending,
	}
	h.sessions.FindOpenByConnectorFunc = func(context.Context, string, int) (*domain.ChargingSession, error) {
		return pending, nil
	}
	var updated *domain.ChargingSession
	h.sessions.UpdateFunc = func(_ context.Context, s *domain.ChargingSession) error {
		updated = s
		return nil
	}

	h.deliver(t, domain.KindStartTransaction, 1, domain.JSONMap{"transactionId": 42, "meterStart": 1000})

	if updated == nil {
		t.Fatal("expected the session to be updated")
	}
	if updated.Status != domain.SessionStatusActive {
		t.Errorf("expected active, got %s", updated.Status)
	}
	if updated.TransactionID == nil || *updated.TransactionID != 42 {
		t.Error("expected transaction id 42")
	}
	if updated.MeterStart == nil || *updated.MeterStart != 1000 {
		t.Error("expected meter start 1000")
	}
}

func TestMeterValuesAttachToOpenSession(t *testing.T) {
	h := newHarness(t)

	txID := 42
	start := int64(1000)
	active := &domain.ChargingSession{
		ID:            "cs-1",
		DeviceID:      "CP-001",
		ConnectorID:   1,
		Status:        domain.SessionStatusActive,
		TransactionID: &txID,
		MeterStart:    &start,
	}
	h.sessions.FindOpenByConnectorFunc = func(context.Context, string, int) (*domain.ChargingSession, error) {
		return active, nil
	}
	var updated *domain.ChargingSession
	h.sessions.UpdateFunc = func(_ context.Context, s *domain.ChargingSession) error {
		updated = s
		return nil
	}

	h.deliver(t, domain.KindMeterValues, 1, domain.JSONMap{"transactionId": 42, "value": 3000})

	if updated == nil {
		t.Fatal("expected the session to be updated")
	}
	if updated.MeterEnd == nil || *updated.MeterEnd != 3000 {
		t.Error("expected meter end 3000")
	}
	if updated.EnergyConsumed != 2 {
		t.Errorf("expected 2 kWh precomputed, got %.3f", updated.EnergyConsumed)
	}
}

func TestMeterValuesForForeignTransactionIgnored(t *testing.T) {
	h := newHarness(t)

	txID := 42
	active := &domain.ChargingSession{
		ID:            "cs-1",
		DeviceID:      "CP-001",
		ConnectorID:   1,
		Status:        domain.SessionStatusActive,
		TransactionID: &txID,
	}
	h.sessions.FindOpenByConnectorFunc = func(context.Context, string, int) (*domain.ChargingSession, error) {
		return active, nil
	}
	h.sessions.UpdateFunc = func(context.Context, *domain.ChargingSession) error {
		t.Fatal("a reading for another transaction must not touch the session")
		return nil
	}

	h.deliver(t, domain.KindMeterValues, 1, domain.JSONMap{"transactionId": 99, "value": 3000})
}

func TestStopTransactionCompletesStoppedSession(t *testing.T) {
	h := newHarness(t)

	txID := 42
	h.sessions.ListFunc = func(_ context.Context, filter ports.SessionFilter) ([]domain.ChargingSession, error) {
		return []domain.ChargingSession{{
			ID:             "cs-1",
			DeviceID:       "CP-001",
			Status:         domain.SessionStatusStopped,
			TransactionID:  &txID,
			EnergyConsumed: 2,
		}}, nil
	}
	var updated *domain.ChargingSession
	h.sessions.UpdateFunc = func(_ context.Context, s *domain.ChargingSession) error {
		updated = s
		return nil
	}

	h.deliver(t, domain.KindStopTransaction, 1, domain.JSONMap{"transactionId": 42, "meterStop": 3000})

	if updated == nil {
		t.Fatal("expected the session to be updated")
	}
	if updated.Status != domain.SessionStatusCompleted {
		t.Errorf("expected completed, got %s", updated.Status)
	}
}

func TestMalformedEventIsDropped(t *testing.T) {
	h := newHarness(t)

	if err := h.mq.Deliver(ProtocolEventsTopic, []byte("{not json")); err != nil {
		t.Fatalf("malformed events must be dropped, not retried: %v", err)
	}
	if len(h.appended) != 0 {
		t.Error("nothing may be logged for a malformed event")
	}
}
