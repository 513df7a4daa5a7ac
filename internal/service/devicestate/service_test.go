package devicestate

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/voltgrid/csms/internal/adapter/cache"
	"github.com/voltgrid/csms/internal/domain"
	"github.com/voltgrid/csms/internal/mocks"
)

func newTestLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

func newTestService(c *mocks.MockCache, stations *mocks.MockStationRepository, plog *mocks.MockProtocolLogRepository) *Service {
	svc := NewService(c, stations, plog, newTestLogger())
	svc.now = func() time.Time { return testNow }
	return svc
}

func putSnapshot(t *testing.T, c *mocks.MockCache, deviceID, status string) {
	t.Helper()
	data, err := json.Marshal(domain.DeviceStatusSnapshot{
		DeviceID:   deviceID,
		Status:     status,
		ObservedAt: testNow,
	})
	if err != nil {
		t.Fatal(err)
	}
	c.Data[cache.DeviceStatusKey(deviceID)] = string(data)
}

func TestStatusFromCacheSnapshot(t *testing.T) {
	tests := []struct {
		protocolStatus string
		want           domain.DeviceStatus
	}{
		{"Available", domain.DeviceOnline},
		{"Charging", domain.DeviceOnline},
		{"Preparing", domain.DeviceOnline},
		{"Finishing", domain.DeviceOnline},
		{"Faulted", domain.DeviceOffline},
		{"Unavailable", domain.DeviceOffline},
		{"SomethingNew", domain.DeviceOffline},
	}

	for _, tt := range tests {
		c := mocks.NewMockCache()
		putSnapshot(t, c, "CP-001", tt.protocolStatus)
		svc := newTestService(c, &mocks.MockStationRepository{}, &mocks.MockProtocolLogRepository{})

		got, err := svc.Status(context.Background(), "CP-001")
		if err != nil {
			t.Fatalf("%s: expected no error, got %v", tt.protocolStatus, err)
		}
		if got != tt.want {
			t.Errorf("%s: expected %s, got %s", tt.protocolStatus, tt.want, got)
		}
	}
}

func TestStatusLastSeenFallback(t *testing.T) {
	stations := &mocks.MockStationRepository{
		FindByDeviceIDFunc: func(_ context.Context, deviceID string) (*domain.Station, error) {
			return &domain.Station{DeviceID: deviceID, LastSeen: testNow.Add(-2 * time.Minute)}, nil
		},
	}
	svc := newTestService(mocks.NewMockCache(), stations, &mocks.MockProtocolLogRepository{})

	got, err := svc.Status(context.Background(), "CP-001")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got != domain.DeviceOnline {
		t.Errorf("device seen 2m ago must be Online, got %s", got)
	}

	stations.FindByDeviceIDFunc = func(_ context.Context, deviceID string) (*domain.Station, error) {
		return &domain.Station{DeviceID: deviceID, LastSeen: testNow.Add(-10 * time.Minute)}, nil
	}
	got, err = svc.Status(context.Background(), "CP-001")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got != domain.DeviceOffline {
		t.Errorf("device silent for 10m must be Offline, got %s", got)
	}
}

func TestHasActiveTransactionCacheIsAuthoritative(t *testing.T) {
	// Log says charging, cache says Available: the cache wins.
	plog := &mocks.MockProtocolLogRepository{
		EntriesSinceFunc: func(context.Context, string, time.Time, []domain.MessageKind) ([]domain.ProtocolLogEntry, error) {
			t.Fatal("log must not be scanned when the cache decides")
			return nil, nil
		},
	}
	c := mocks.NewMockCache()
	putSnapshot(t, c, "CP-001", "Available")
	svc := newTestService(c, &mocks.MockStationRepository{}, plog)

	active, err := svc.HasActiveTransaction(context.Background(), "CP-001")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if active {
		t.Error("cached Available must mean no active transaction")
	}

	putSnapshot(t, c, "CP-001", "Charging")
	active, err = svc.HasActiveTransaction(context.Background(), "CP-001")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !active {
		t.Error("cached Charging must mean an active transaction")
	}
}

func TestHasActiveTransactionFallsThroughToLog(t *testing.T) {
	plog := &mocks.MockProtocolLogRepository{
		EntriesSinceFunc: func(context.Context, string, time.Time, []domain.MessageKind) ([]domain.ProtocolLogEntry, error) {
			return []domain.ProtocolLogEntry{
				entry(domain.KindStatusNotification, domain.DirectionInbound, 2*time.Minute, domain.JSONMap{"status": "Charging"}),
			}, nil
		},
	}
	svc := newTestService(mocks.NewMockCache(), &mocks.MockStationRepository{}, plog)

	active, err := svc.HasActiveTransaction(context.Background(), "CP-001")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !active {
		t.Error("recent Charging notification must yield an active transaction")
	}
}

func TestHasActiveTransactionEmptyLogIsInactive(t *testing.T) {
	svc := newTestService(mocks.NewMockCache(), &mocks.MockStationRepository{}, &mocks.MockProtocolLogRepository{})

	active, err := svc.HasActiveTransaction(context.Background(), "CP-001")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if active {
		t.Error("no cache and no log entries must mean inactive")
	}
}

func TestConnectorStatusChain(t *testing.T) {
	stations := &mocks.MockStationRepository{
		FindByDeviceIDFunc: func(_ context.Context, deviceID string) (*domain.Station, error) {
			return &domain.Station{DeviceID: deviceID, LastSeen: testNow}, nil
		},
	}

	// Offline device.
	c := mocks.NewMockCache()
	putSnapshot(t, c, "CP-001", "Faulted")
	svc := newTestService(c, stations, &mocks.MockProtocolLogRepository{})
	got, err := svc.ConnectorStatus(context.Background(), "CP-001")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got != domain.ConnectorUnavailable {
		t.Errorf("offline device: expected Unavailable, got %s", got)
	}

	// Online and faulted in the registry.
	c = mocks.NewMockCache()
	putSnapshot(t, c, "CP-001", "Available")
	faultedStations := &mocks.MockStationRepository{
		FindByDeviceIDFunc: func(_ context.Context, deviceID string) (*domain.Station, error) {
			return &domain.Station{DeviceID: deviceID, Faulted: true, LastSeen: testNow}, nil
		},
	}
	svc = newTestService(c, faultedStations, &mocks.MockProtocolLogRepository{})
	got, err = svc.ConnectorStatus(context.Background(), "CP-001")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got != domain.ConnectorFaulted {
		t.Errorf("faulted registry flag: expected Faulted, got %s", got)
	}

	// Online, healthy, charging.
	c = mocks.NewMockCache()
	putSnapshot(t, c, "CP-001", "Charging")
	svc = newTestService(c, stations, &mocks.MockProtocolLogRepository{})
	got, err = svc.ConnectorStatus(context.Background(), "CP-001")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got != domain.ConnectorCharging {
		t.Errorf("charging device: expected Charging, got %s", got)
	}

	// Online, healthy, idle.
	c = mocks.NewMockCache()
	putSnapshot(t, c, "CP-001", "Available")
	svc = newTestService(c, stations, &mocks.MockProtocolLogRepository{})
	got, err = svc.ConnectorStatus(context.Background(), "CP-001")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got != domain.ConnectorAvailable {
		t.Errorf("idle device: expected Available, got %s", got)
	}
}

func TestConnectorStatusFaultFromStatusNotification(t *testing.T) {
	c := mocks.NewMockCache()
	putSnapshot(t, c, "CP-001", "Available")
	plog := &mocks.MockProtocolLogRepository{
		LatestByKindFunc: func(context.Context, string, domain.MessageKind, time.Time) (*domain.ProtocolLogEntry, error) {
			e := entry(domain.KindStatusNotification, domain.DirectionInbound, time.Minute, domain.JSONMap{
				"status":    "Available",
				"errorCode": "GroundFailure",
			})
			return &e, nil
		},
	}
	stations := &mocks.MockStationRepository{
		FindByDeviceIDFunc: func(_ context.Context, deviceID string) (*domain.Station, error) {
			return &domain.Station{DeviceID: deviceID, LastSeen: testNow}, nil
		},
	}
	svc := newTestService(c, stations, plog)

	got, err := svc.ConnectorStatus(context.Background(), "CP-001")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got != domain.ConnectorFaulted {
		t.Errorf("non-NoError fault code: expected Faulted, got %s", got)
	}
}
