package devicestate

import (
	"testing"
	"time"

	"github.com/voltgrid/csms/internal/domain"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func entry(kind domain.MessageKind, dir domain.Direction, age time.Duration, payload domain.JSONMap) domain.ProtocolLogEntry {
	return domain.ProtocolLogEntry{
		DeviceID:  "CP-001",
		Kind:      kind,
		Direction: dir,
		Timestamp: testNow.Add(-age),
		Payload:   payload,
	}
}

func correlated(e domain.ProtocolLogEntry, id string) domain.ProtocolLogEntry {
	e.CorrelationID = id
	return e
}

func TestRecentRemoteStopFreshAcceptedAck(t *testing.T) {
	entries := []domain.ProtocolLogEntry{
		correlated(entry(domain.KindRemoteStop, domain.DirectionOutbound, 25*time.Second, nil), "corr-1"),
		correlated(entry(domain.KindRemoteStop, domain.DirectionInbound, 20*time.Second, domain.JSONMap{"status": "Accepted"}), "corr-1"),
	}

	active, decided := recentRemoteStopPredicate{}.evaluate(testNow, entries)
	if !decided {
		t.Fatal("expected a verdict for a fresh accepted remote stop")
	}
	if active {
		t.Error("expected no active transaction after an accepted remote stop")
	}
}

func TestRecentRemoteStopConfirmedByStatusNotification(t *testing.T) {
	entries := []domain.ProtocolLogEntry{
		correlated(entry(domain.KindRemoteStop, domain.DirectionOutbound, 90*time.Second, nil), "corr-1"),
		correlated(entry(domain.KindRemoteStop, domain.DirectionInbound, 85*time.Second, domain.JSONMap{"status": "Accepted"}), "corr-1"),
		entry(domain.KindStatusNotification, domain.DirectionInbound, 60*time.Second, domain.JSONMap{"status": "Available"}),
	}

	active, decided := recentRemoteStopPredicate{}.evaluate(testNow, entries)
	if !decided || active {
		t.Errorf("expected decided inactive, got active=%v decided=%v", active, decided)
	}
}

func TestRecentRemoteStopStaleUnconfirmedAckAbstains(t *testing.T) {
	// Accepted 90s ago, no idle StatusNotification since: the device may have
	// ignored the stop, so this predicate must not decide.
	entries := []domain.ProtocolLogEntry{
		correlated(entry(domain.KindRemoteStop, domain.DirectionOutbound, 95*time.Second, nil), "corr-1"),
		correlated(entry(domain.KindRemoteStop, domain.DirectionInbound, 90*time.Second, domain.JSONMap{"status": "Accepted"}), "corr-1"),
	}

	_, decided := recentRemoteStopPredicate{}.evaluate(testNow, entries)
	if decided {
		t.Error("expected no verdict for a stale unconfirmed acceptance")
	}
}

func TestRecentRemoteStopRejectedAckAbstains(t *testing.T) {
	entries := []domain.ProtocolLogEntry{
		correlated(entry(domain.KindRemoteStop, domain.DirectionOutbound, 10*time.Second, nil), "corr-1"),
		correlated(entry(domain.KindRemoteStop, domain.DirectionInbound, 5*time.Second, domain.JSONMap{"status": "Rejected"}), "corr-1"),
	}

	_, decided := recentRemoteStopPredicate{}.evaluate(testNow, entries)
	if decided {
		t.Error("expected no verdict for a rejected remote stop")
	}
}

func TestChargingStatusRecentCharging(t *testing.T) {
	entries := []domain.ProtocolLogEntry{
		entry(domain.KindStatusNotification, domain.DirectionInbound, 3*time.Minute, domain.JSONMap{"status": "Charging"}),
	}

	active, decided := chargingStatusPredicate{}.evaluate(testNow, entries)
	if !decided || !active {
		t.Errorf("expected decided active, got active=%v decided=%v", active, decided)
	}
}

func TestChargingStatusSupersededByAvailable(t *testing.T) {
	entries := []domain.ProtocolLogEntry{
		entry(domain.KindStatusNotification, domain.DirectionInbound, 3*time.Minute, domain.JSONMap{"status": "Charging"}),
		entry(domain.KindStatusNotification, domain.DirectionInbound, 1*time.Minute, domain.JSONMap{"status": "Finishing"}),
	}

	active, decided := chargingStatusPredicate{}.evaluate(testNow, entries)
	if !decided || active {
		t.Errorf("expected decided inactive, got active=%v decided=%v", active, decided)
	}
}

func TestChargingStatusExpiredAbstains(t *testing.T) {
	entries := []domain.ProtocolLogEntry{
		entry(domain.KindStatusNotification, domain.DirectionInbound, 10*time.Minute, domain.JSONMap{"status": "Charging"}),
	}

	_, decided := chargingStatusPredicate{}.evaluate(testNow, entries)
	if decided {
		t.Error("expected no verdict for an expired charging notification")
	}
}

func TestStartStopPairOpenTransaction(t *testing.T) {
	entries := []domain.ProtocolLogEntry{
		correlated(entry(domain.KindStartTransaction, domain.DirectionInbound, 30*time.Minute, nil), "corr-1"),
		correlated(entry(domain.KindStartTransaction, domain.DirectionOutbound, 30*time.Minute, domain.JSONMap{"transactionId": float64(42)}), "corr-1"),
	}

	active, decided := startStopPairPredicate{}.evaluate(testNow, entries)
	if !decided || !active {
		t.Errorf("expected decided active, got active=%v decided=%v", active, decided)
	}
}

func TestStartStopPairClosedTransaction(t *testing.T) {
	entries := []domain.ProtocolLogEntry{
		correlated(entry(domain.KindStartTransaction, domain.DirectionInbound, 30*time.Minute, nil), "corr-1"),
		correlated(entry(domain.KindStartTransaction, domain.DirectionOutbound, 30*time.Minute, domain.JSONMap{"transactionId": float64(42)}), "corr-1"),
		entry(domain.KindStopTransaction, domain.DirectionInbound, 5*time.Minute, domain.JSONMap{"transactionId": float64(42)}),
	}

	active, decided := startStopPairPredicate{}.evaluate(testNow, entries)
	if !decided || active {
		t.Errorf("expected decided inactive, got active=%v decided=%v", active, decided)
	}
}

func TestStartStopPairStaleStartIsInactive(t *testing.T) {
	entries := []domain.ProtocolLogEntry{
		entry(domain.KindStartTransaction, domain.DirectionInbound, 3*time.Hour, domain.JSONMap{"transactionId": float64(42)}),
	}

	active, decided := startStopPairPredicate{}.evaluate(testNow, entries)
	if !decided || active {
		t.Errorf("stale start must decide inactive, got active=%v decided=%v", active, decided)
	}
}

func TestStartStopPairPayloadFallback(t *testing.T) {
	// No acknowledgement at all: the transaction id comes from the
	// StartTransaction's own payload.
	entries := []domain.ProtocolLogEntry{
		entry(domain.KindStartTransaction, domain.DirectionInbound, 10*time.Minute, domain.JSONMap{"transactionId": float64(7)}),
	}

	active, decided := startStopPairPredicate{}.evaluate(testNow, entries)
	if !decided || !active {
		t.Errorf("expected decided active, got active=%v decided=%v", active, decided)
	}
}

func TestStartStopPairNoStartDecidesInactive(t *testing.T) {
	active, decided := startStopPairPredicate{}.evaluate(testNow, nil)
	if !decided || active {
		t.Errorf("expected decided inactive, got active=%v decided=%v", active, decided)
	}
}
