package devicestate

import (
	"time"

	"github.com/voltgrid/csms/internal/domain"
)

// Heuristic windows for reconstructing charging activity from the protocol
// log. The log is unreliable and possibly out of order, so every signal
// expires.
const (
	remoteStopWindow  = 2 * time.Minute
	freshAckWindow    = 30 * time.Second
	chargingWindow    = 5 * time.Minute
	transactionWindow = 2 * time.Hour
)

// activityPredicate is one heuristic over a read-only log view. It either
// returns a verdict (decided=true) or abstains; the first verdict wins.
// Predicates are evaluated in strict priority order.
type activityPredicate interface {
	name() string
	evaluate(now time.Time, entries []domain.ProtocolLogEntry) (active bool, decided bool)
}

// activityPredicates is the evaluation order. The live cache check runs
// before any of these; the log scan is the costly cold-cache path.
var activityPredicates = []activityPredicate{
	recentRemoteStopPredicate{},
	chargingStatusPredicate{},
	startStopPairPredicate{},
}

func isAvailableLike(status string) bool {
	switch status {
	case "available", "finishing":
		return true
	}
	return false
}

func payloadStatus(e domain.ProtocolLogEntry) string {
	s, _ := e.Payload.StringField("status")
	return normalize(s)
}

func normalize(s string) string {
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

// recentRemoteStopPredicate reports "stopped" when a remote-stop issued in
// the last two minutes was accepted and either a later StatusNotification
// confirms the connector went idle or the acceptance itself is still fresh.
// An old, unconfirmed acceptance abstains: the device may have ignored it.
type recentRemoteStopPredicate struct{}

func (recentRemoteStopPredicate) name() string { return "recent-remote-stop" }

func (recentRemoteStopPredicate) evaluate(now time.Time, entries []domain.ProtocolLogEntry) (bool, bool) {
	var stop *domain.ProtocolLogEntry
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if e.Kind == domain.KindRemoteStop && e.Direction == domain.DirectionOutbound {
			if now.Sub(e.Timestamp) > remoteStopWindow {
				break
			}
			stop = &entries[i]
			break
		}
	}
	if stop == nil {
		return false, false
	}

	var ack *domain.ProtocolLogEntry
	for i := range entries {
		e := entries[i]
		if e.Kind == domain.KindRemoteStop &&
			e.Direction == domain.DirectionInbound &&
			e.CorrelationID == stop.CorrelationID &&
			!e.Timestamp.Before(stop.Timestamp) {
			ack = &entries[i]
			break
		}
	}
	if ack == nil || payloadStatus(*ack) != "accepted" {
		return false, false
	}

	for _, e := range entries {
		if e.Kind == domain.KindStatusNotification &&
			e.Timestamp.After(stop.Timestamp) &&
			isAvailableLike(payloadStatus(e)) {
			return false, true
		}
	}
	if now.Sub(ack.Timestamp) < freshAckWindow {
		return false, true
	}
	return false, false
}

// chargingStatusPredicate trusts a recent "Charging" StatusNotification
// unless a later notification reports the connector idle again.
type chargingStatusPredicate struct{}

func (chargingStatusPredicate) name() string { return "charging-status" }

func (chargingStatusPredicate) evaluate(now time.Time, entries []domain.ProtocolLogEntry) (bool, bool) {
	var charging *domain.ProtocolLogEntry
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if e.Kind != domain.KindStatusNotification {
			continue
		}
		if payloadStatus(e) == "charging" {
			if now.Sub(e.Timestamp) > chargingWindow {
				break
			}
			charging = &entries[i]
			break
		}
	}
	if charging == nil {
		return false, false
	}

	for _, e := range entries {
		if e.Kind == domain.KindStatusNotification &&
			e.Timestamp.After(charging.Timestamp) &&
			isAvailableLike(payloadStatus(e)) {
			return false, true
		}
	}
	return true, true
}

// startStopPairPredicate is the last resort: the latest StartTransaction is
// active unless a later StopTransaction references the same transaction id.
// It always decides; no StartTransaction (or only a stale one) means no
// active transaction.
type startStopPairPredicate struct{}

func (startStopPairPredicate) name() string { return "start-stop-pair" }

func (startStopPairPredicate) evaluate(now time.Time, entries []domain.ProtocolLogEntry) (bool, bool) {
	var start *domain.ProtocolLogEntry
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if e.Kind == domain.KindStartTransaction && e.Direction == domain.DirectionInbound {
			start = &entries[i]
			break
		}
	}
	if start == nil || now.Sub(start.Timestamp) > transactionWindow {
		return false, true
	}

	txID, ok := resolveStartTransactionID(*start, entries)
	if !ok {
		return false, true
	}

	for _, e := range entries {
		if e.Kind != domain.KindStopTransaction || !e.Timestamp.After(start.Timestamp) {
			continue
		}
		if id, ok := e.Payload.IntField("transactionId"); ok && id == txID {
			return false, true
		}
	}
	return true, true
}

// resolveStartTransactionID reads the protocol transaction id from the
// acknowledgement matching a StartTransaction, falling back to the
// StartTransaction's own payload.
func resolveStartTransactionID(start domain.ProtocolLogEntry, entries []domain.ProtocolLogEntry) (int, bool) {
	for _, e := range entries {
		if e.Kind == domain.KindStartTransaction &&
			e.Direction == domain.DirectionOutbound &&
			e.CorrelationID == start.CorrelationID &&
			e.CorrelationID != "" {
			if id, ok := e.Payload.IntField("transactionId"); ok {
				return id, true
			}
		}
	}
	if id, ok := start.Payload.IntField("transactionId"); ok {
		return id, true
	}
	return 0, false
}
