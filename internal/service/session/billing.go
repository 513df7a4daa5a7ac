package session

import (
	"context"

	"go.uber.org/zap"

	"github.com/voltgrid/csms/internal/domain"
)

// completedTolerance classifies a stop as "completed" when the computed cost
// consumes all but pennies of the reservation.
const completedTolerance = 0.01

// bill is the outcome of energy/cost resolution at stop time.
type bill struct {
	EnergyKWh  float64
	Cost       float64
	Refund     float64
	MeterStart *int64
	MeterEnd   *int64
	StopReason string
}

// computeBill derives energy, cost and refund for a stopping session.
// Sessions shorter than the minimum billable duration refund in full
// without waiting for meter data; a missing or non-positive meter delta
// also refunds in full. Cost is always capped at the reserved amount.
func (s *Service) computeBill(ctx context.Context, sess *domain.ChargingSession, operator bool) bill {
	reason := domain.StopReasonRemote
	if operator {
		reason = domain.StopReasonOperator
	}

	b := bill{
		Refund:     sess.AmountDeducted,
		MeterStart: sess.MeterStart,
		MeterEnd:   sess.MeterEnd,
		StopReason: reason,
	}

	if s.now().Sub(sess.StartTime) < s.cfg.MinBillableDuration {
		s.log.Info("Session below minimum billable duration, refunding in full",
			zap.String("session_id", sess.ID),
		)
		return b
	}

	if b.MeterStart == nil {
		b.MeterStart = s.findMeterStart(ctx, sess)
	}
	if b.MeterEnd == nil && b.MeterStart != nil {
		b.MeterEnd = s.pollMeterEnd(ctx, sess, *b.MeterStart)
	}
	if b.MeterStart == nil || b.MeterEnd == nil {
		s.log.Warn("No usable meter delta, refunding in full",
			zap.String("session_id", sess.ID),
			zap.String("device_id", sess.DeviceID),
		)
		return b
	}

	energyWh := *b.MeterEnd - *b.MeterStart
	if energyWh < 0 {
		energyWh = 0
	}
	b.EnergyKWh = float64(energyWh) / 1000

	cost := s.lookupTariff(ctx, sess.ChargingPointID).CostWithTax(b.EnergyKWh)
	if cost > sess.AmountDeducted {
		cost = sess.AmountDeducted
	}
	b.Cost = cost
	b.Refund = sess.AmountDeducted - cost

	if sess.AmountDeducted > 0 && b.Refund <= completedTolerance {
		b.StopReason = domain.StopReasonCompleted
	}
	return b
}

// findMeterStart reads the first MeterValues entry at or after the session's
// start time.
func (s *Service) findMeterStart(ctx context.Context, sess *domain.ChargingSession) *int64 {
	entries, err := s.protocolLog.EntriesSince(ctx, sess.DeviceID, sess.StartTime,
		[]domain.MessageKind{domain.KindMeterValues})
	if err != nil {
		s.log.Warn("Meter start lookup failed", zap.String("session_id", sess.ID), zap.Error(err))
		return nil
	}
	for _, e := range entries {
		if v, ok := e.Payload.Int64Field("value"); ok {
			return &v
		}
	}
	return nil
}

// pollMeterEnd waits, bounded, for the device's final meter reading: up to
// MeterPollRetries attempts at MeterPollInterval. A reading equal to the
// start value is accepted on the last attempt so trivial sessions settle as
// zero energy instead of erroring.
func (s *Service) pollMeterEnd(ctx context.Context, sess *domain.ChargingSession, meterStart int64) *int64 {
	var last *int64
	for attempt := 0; attempt < s.cfg.MeterPollRetries; attempt++ {
		if attempt > 0 {
			s.sleep(s.cfg.MeterPollInterval)
		}

		e, err := s.protocolLog.LatestByKind(ctx, sess.DeviceID, domain.KindMeterValues, sess.StartTime)
		if err != nil {
			s.log.Warn("Meter end poll failed",
				zap.String("session_id", sess.ID),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			continue
		}
		if e == nil {
			continue
		}
		if v, ok := e.Payload.Int64Field("value"); ok {
			last = &v
			if v > meterStart {
				return &v
			}
		}
	}
	return last
}

// lookupTariff resolves pricing for the charging point, falling back to the
// configured default rates when no tariff row exists.
func (s *Service) lookupTariff(ctx context.Context, chargingPointID string) *domain.Tariff {
	t, err := s.tariffs.FindByChargingPoint(ctx, chargingPointID)
	if err != nil {
		s.log.Warn("Tariff lookup failed, using fallback pricing",
			zap.String("charging_point_id", chargingPointID),
			zap.Error(err),
		)
	}
	if t == nil {
		t = &domain.Tariff{
			BaseRatePerKWh: s.cfg.FallbackBaseRate,
			TaxPercent:     s.cfg.FallbackTaxPercent,
		}
	}
	return t
}
