package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/voltgrid/csms/internal/domain"
	"github.com/voltgrid/csms/internal/ports"
)

func logEntry(kind domain.MessageKind, dir domain.Direction, age time.Duration, corr string, payload domain.JSONMap) domain.ProtocolLogEntry {
	return domain.ProtocolLogEntry{
		DeviceID:      "CP-001",
		Kind:          kind,
		Direction:     dir,
		CorrelationID: corr,
		Timestamp:     testNow.Add(-age),
		Payload:       payload,
	}
}

func TestResolveStoredIDWins(t *testing.T) {
	f := newFixture(t, 0)
	sess := &domain.ChargingSession{ID: "cs-1", DeviceID: "CP-001", TransactionID: intPtr(7)}

	id, err := f.svc.resolveTransactionID(context.Background(), sess, ports.StopRequest{}, false)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if id == nil || *id != 7 {
		t.Error("stored transaction id must win")
	}
	if f.plog.EntriesSinceFunc != nil {
		t.Error("no log scan expected")
	}
}

func TestResolveCustomerFromStartCorrelation(t *testing.T) {
	f := newFixture(t, 0)
	sess := &domain.ChargingSession{
		ID:        "cs-1",
		DeviceID:  "CP-001",
		StartTime: testNow.Add(-3 * time.Minute),
	}

	f.plog.EntriesBetweenFunc = func(_ context.Context, _ string, from, to time.Time, kinds []domain.MessageKind) ([]domain.ProtocolLogEntry, error) {
		return []domain.ProtocolLogEntry{
			logEntry(domain.KindStartTransaction, domain.DirectionInbound, 3*time.Minute, "corr-9", nil),
		}, nil
	}
	f.plog.FindByCorrelationFunc = func(_ context.Context, _ string, correlationID string, dir domain.Direction) (*domain.ProtocolLogEntry, error) {
		if correlationID == "corr-9" && dir == domain.DirectionOutbound {
			e := logEntry(domain.KindStartTransaction, domain.DirectionOutbound, 3*time.Minute, "corr-9", domain.JSONMap{"transactionId": float64(101)})
			return &e, nil
		}
		return nil, nil
	}

	id, err := f.svc.resolveTransactionID(context.Background(), sess, ports.StopRequest{}, false)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if id == nil || *id != 101 {
		t.Errorf("expected id 101 from the acknowledgement, got %v", id)
	}
}

func TestResolveCustomerFailureIsExplicit(t *testing.T) {
	f := newFixture(t, 0)
	sess := &domain.ChargingSession{ID: "cs-1", DeviceID: "CP-001", StartTime: testNow}

	_, err := f.svc.resolveTransactionID(context.Background(), sess, ports.StopRequest{}, false)
	if !errors.Is(err, domain.ErrResolution) {
		t.Fatalf("expected resolution error, got %v", err)
	}
}

func TestResolveOperatorSuppliedID(t *testing.T) {
	f := newFixture(t, 0)
	sess := &domain.ChargingSession{ID: "cs-1", DeviceID: "CP-001"}

	id, err := f.svc.resolveTransactionID(context.Background(), sess, ports.StopRequest{TransactionID: intPtr(55)}, true)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if id == nil || *id != 55 {
		t.Errorf("expected supplied id 55, got %v", id)
	}
}

func TestResolveOperatorFromMeterValues(t *testing.T) {
	f := newFixture(t, 0)
	sess := &domain.ChargingSession{ID: "cs-1", DeviceID: "CP-001"}

	f.plog.EntriesSinceFunc = func(_ context.Context, _ string, _ time.Time, kinds []domain.MessageKind) ([]domain.ProtocolLogEntry, error) {
		if kinds[0] != domain.KindMeterValues {
			return nil, nil
		}
		return []domain.ProtocolLogEntry{
			logEntry(domain.KindMeterValues, domain.DirectionInbound, 10*time.Minute, "", domain.JSONMap{"transactionId": float64(77), "value": float64(1500)}),
		}, nil
	}

	id, err := f.svc.resolveTransactionID(context.Background(), sess, ports.StopRequest{}, true)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if id == nil || *id != 77 {
		t.Errorf("expected id 77 from meter values, got %v", id)
	}
}

func TestResolveOperatorSkipsStoppedMeterTransaction(t *testing.T) {
	f := newFixture(t, 0)
	sess := &domain.ChargingSession{ID: "cs-1", DeviceID: "CP-001"}

	f.plog.EntriesSinceFunc = func(_ context.Context, _ string, _ time.Time, kinds []domain.MessageKind) ([]domain.ProtocolLogEntry, error) {
		if kinds[0] == domain.KindMeterValues {
			// The only metered transaction already has a later stop.
			return []domain.ProtocolLogEntry{
				logEntry(domain.KindMeterValues, domain.DirectionInbound, 30*time.Minute, "", domain.JSONMap{"transactionId": float64(77)}),
				logEntry(domain.KindStopTransaction, domain.DirectionInbound, 20*time.Minute, "", domain.JSONMap{"transactionId": float64(77)}),
			}, nil
		}
		// Start/acknowledgement fallback with a live transaction.
		return []domain.ProtocolLogEntry{
			logEntry(domain.KindStartTransaction, domain.DirectionInbound, 15*time.Minute, "", domain.JSONMap{"transactionId": float64(88)}),
		}, nil
	}

	id, err := f.svc.resolveTransactionID(context.Background(), sess, ports.StopRequest{}, true)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if id == nil || *id != 88 {
		t.Errorf("expected fallback to the unstopped start, got %v", id)
	}
}

func TestResolveOperatorNothingResolves(t *testing.T) {
	f := newFixture(t, 0)
	sess := &domain.ChargingSession{ID: "cs-1", DeviceID: "CP-001"}

	_, err := f.svc.resolveTransactionID(context.Background(), sess, ports.StopRequest{}, true)
	if !errors.Is(err, domain.ErrResolution) {
		t.Fatalf("expected resolution error, got %v", err)
	}
}
