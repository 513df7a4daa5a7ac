package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/voltgrid/csms/internal/domain"
	"github.com/voltgrid/csms/internal/ports"
)

// Windows for reconstructing the protocol transaction id from the log. The
// log is noisy and out of order; everything older than these is distrusted.
const (
	startCorrelationWindow = 5 * time.Minute
	resolutionWindow       = 2 * time.Hour
)

// resolveTransactionID determines the protocol-level transaction id for a
// stop, in strict priority order: the id already stored on the session, then
// (customer) the StartTransaction/acknowledgement pair around the session's
// start time, then (operator) a supplied id, a recent MeterValues reference
// or a recent unstopped Start/acknowledgement pair.
func (s *Service) resolveTransactionID(ctx context.Context, sess *domain.ChargingSession, req ports.StopRequest, operator bool) (*int, error) {
	if sess.TransactionID != nil {
		return sess.TransactionID, nil
	}

	if !operator {
		if id, ok, err := s.resolveFromSessionStart(ctx, sess); err != nil {
			return nil, err
		} else if ok {
			return &id, nil
		}
		return nil, domain.ResolutionError(sess.DeviceID)
	}

	if req.TransactionID != nil {
		return req.TransactionID, nil
	}
	if id, ok, err := s.resolveFromRecentMeterValues(ctx, sess.DeviceID); err != nil {
		return nil, err
	} else if ok {
		return &id, nil
	}
	if id, ok, err := s.resolveFromRecentStart(ctx, sess.DeviceID); err != nil {
		return nil, err
	} else if ok {
		return &id, nil
	}
	return nil, domain.ResolutionError(sess.DeviceID)
}

// resolveFromSessionStart finds the StartTransaction within a five-minute
// window around the session's start time and reads the transaction id from
// the matching outgoing acknowledgement.
func (s *Service) resolveFromSessionStart(ctx context.Context, sess *domain.ChargingSession) (int, bool, error) {
	entries, err := s.protocolLog.EntriesBetween(ctx, sess.DeviceID,
		sess.StartTime.Add(-startCorrelationWindow),
		sess.StartTime.Add(startCorrelationWindow),
		[]domain.MessageKind{domain.KindStartTransaction})
	if err != nil {
		return 0, false, err
	}

	for i := len(entries) - 1; i >= 0; i-- {
		start := entries[i]
		if start.Direction != domain.DirectionInbound || start.CorrelationID == "" {
			continue
		}
		ack, err := s.protocolLog.FindByCorrelation(ctx, sess.DeviceID, start.CorrelationID, domain.DirectionOutbound)
		if err != nil {
			return 0, false, err
		}
		if ack == nil {
			continue
		}
		if id, ok := ack.Payload.IntField("transactionId"); ok {
			s.log.Debug("Resolved transaction id from session start correlation",
				zap.String("session_id", sess.ID),
				zap.Int("transaction_id", id),
			)
			return id, true, nil
		}
	}
	return 0, false, nil
}

// resolveFromRecentMeterValues takes the transaction id carried by the most
// recent MeterValues entry, provided no later StopTransaction proves that
// transaction already ended.
func (s *Service) resolveFromRecentMeterValues(ctx context.Context, deviceID string) (int, bool, error) {
	entries, err := s.protocolLog.EntriesSince(ctx, deviceID, s.now().Add(-resolutionWindow),
		[]domain.MessageKind{domain.KindMeterValues, domain.KindStopTransaction})
	if err != nil {
		return 0, false, err
	}

	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if e.Kind != domain.KindMeterValues {
			continue
		}
		id, ok := e.Payload.IntField("transactionId")
		if !ok {
			continue
		}
		if stoppedAfter(entries, e.Timestamp, id) {
			continue
		}
		return id, true, nil
	}
	return 0, false, nil
}

// resolveFromRecentStart finds the latest StartTransaction within the
// staleness window, resolves its id via the acknowledgement (or its own
// payload) and applies the same proof-of-not-yet-stopped check.
func (s *Service) resolveFromRecentStart(ctx context.Context, deviceID string) (int, bool, error) {
	entries, err := s.protocolLog.EntriesSince(ctx, deviceID, s.now().Add(-resolutionWindow),
		[]domain.MessageKind{domain.KindStartTransaction, domain.KindStopTransaction})
	if err != nil {
		return 0, false, err
	}

	for i := len(entries) - 1; i >= 0; i-- {
		start := entries[i]
		if start.Kind != domain.KindStartTransaction || start.Direction != domain.DirectionInbound {
			continue
		}

		id, ok := 0, false
		if start.CorrelationID != "" {
			ack, err := s.protocolLog.FindByCorrelation(ctx, deviceID, start.CorrelationID, domain.DirectionOutbound)
			if err != nil {
				return 0, false, err
			}
			if ack != nil {
				id, ok = ack.Payload.IntField("transactionId")
			}
		}
		if !ok {
			id, ok = start.Payload.IntField("transactionId")
		}
		if !ok {
			continue
		}
		if stoppedAfter(entries, start.Timestamp, id) {
			continue
		}
		return id, true, nil
	}
	return 0, false, nil
}

// stoppedAfter reports whether a StopTransaction later than ts references
// the given transaction id.
func stoppedAfter(entries []domain.ProtocolLogEntry, ts time.Time, txID int) bool {
	for _, e := range entries {
		if e.Kind != domain.KindStopTransaction || !e.Timestamp.After(ts) {
			continue
		}
		if id, ok := e.Payload.IntField("transactionId"); ok && id == txID {
			return true
		}
	}
	return false
}
