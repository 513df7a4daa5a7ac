package ingest

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/voltgrid/csms/internal/adapter/cache"
	"github.com/voltgrid/csms/internal/adapter/queue"
	"github.com/voltgrid/csms/internal/domain"
	"github.com/voltgrid/csms/internal/observability/telemetry"
	"github.com/voltgrid/csms/internal/ports"
)

// ProtocolEventsTopic carries demultiplexed charge-point messages from the
// protocol layer.
const ProtocolEventsTopic = "device.events.protocol"

// protocolEvent is the wire form of one demultiplexed protocol message.
type protocolEvent struct {
	DeviceID      string             `json:"deviceId"`
	ConnectorID   int                `json:"connectorId"`
	Kind          domain.MessageKind `json:"kind"`
	Direction     domain.Direction   `json:"direction"`
	CorrelationID string             `json:"correlationId"`
	Timestamp     time.Time          `json:"timestamp"`
	Payload       domain.JSONMap     `json:"payload"`
}

// Consumer feeds inbound protocol traffic into the log, the live status
// cache, the station registry and open session rows. It owns the
// pending-to-active session promotion that the orchestrator's queued start
// path relies on.
type Consumer struct {
	mq          queue.MessageQueue
	protocolLog ports.ProtocolLogRepository
	stations    ports.StationRepository
	sessions    ports.SessionRepository
	cache       ports.Cache
	statusTTL   time.Duration
	log         *zap.Logger
	now         func() time.Time
}

func NewConsumer(
	mq queue.MessageQueue,
	protocolLog ports.ProtocolLogRepository,
	stations ports.StationRepository,
	sessions ports.SessionRepository,
	c ports.Cache,
	statusTTL time.Duration,
	log *zap.Logger,
) *Consumer {
	if statusTTL == 0 {
		statusTTL = 5 * time.Minute
	}
	return &Consumer{
		mq:          mq,
		protocolLog: protocolLog,
		stations:    stations,
		sessions:    sessions,
		cache:       c,
		statusTTL:   statusTTL,
		log:         log,
		now:         time.Now,
	}
}

// Start subscribes to the protocol events topic.
func (c *Consumer) Start() error {
	return c.mq.Subscribe(ProtocolEventsTopic, c.handle)
}

func (c *Consumer) handle(data []byte) error {
	var ev protocolEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		c.log.Warn("Discarding malformed protocol event", zap.Error(err))
		return nil
	}
	if ev.DeviceID == "" {
		return nil
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = c.now()
	}

	ctx := context.Background()
	telemetry.ProtocolMessagesTotal.WithLabelValues(string(ev.Kind), string(ev.Direction)).Inc()

	if err := c.protocolLog.Append(ctx, &domain.ProtocolLogEntry{
		DeviceID:      ev.DeviceID,
		ConnectorID:   ev.ConnectorID,
		Kind:          ev.Kind,
		Direction:     ev.Direction,
		CorrelationID: ev.CorrelationID,
		Timestamp:     ev.Timestamp,
		Payload:       ev.Payload,
	}); err != nil {
		c.log.Error("Failed to append protocol log entry",
			zap.String("device_id", ev.DeviceID),
			zap.String("kind", string(ev.Kind)),
			zap.Error(err),
		)
		return err
	}

	if ev.Direction != domain.DirectionInbound {
		return nil
	}
	c.touchDevice(ctx, ev)

	switch ev.Kind {
	case domain.KindStatusNotification:
		c.applyStatus(ctx, ev)
	case domain.KindStartTransaction:
		c.promoteSession(ctx, ev)
	case domain.KindMeterValues:
		c.attachMeterValue(ctx, ev)
	case domain.KindStopTransaction:
		c.completeSession(ctx, ev)
	}
	return nil
}

// touchDevice refreshes the registry last-seen timestamp for any inbound
// traffic. The device registry may not know the device yet; that is fine.
func (c *Consumer) touchDevice(ctx context.Context, ev protocolEvent) {
	if err := c.stations.TouchLastSeen(ctx, ev.DeviceID, ev.Timestamp); err != nil {
		c.log.Warn("Failed to touch last seen",
			zap.String("device_id", ev.DeviceID),
			zap.Error(err),
		)
	}
}

// applyStatus overwrites the live status snapshot and mirrors the status
// into the registry. Cache failures degrade silently; the reconciler falls
// back to the registry.
func (c *Consumer) applyStatus(ctx context.Context, ev protocolEvent) {
	status, _ := ev.Payload.StringField("status")
	if status == "" {
		return
	}

	snap := domain.DeviceStatusSnapshot{
		DeviceID:   ev.DeviceID,
		Status:     status,
		ObservedAt: ev.Timestamp,
	}
	if err := c.cache.Set(ctx, cache.DeviceStatusKey(ev.DeviceID), snap, c.statusTTL); err != nil {
		c.log.Warn("Failed to cache status snapshot",
			zap.String("device_id", ev.DeviceID),
			zap.Error(err),
		)
	}

	faulted := false
	if code, ok := ev.Payload.StringField("errorCode"); ok && code != "" && code != "NoError" {
		faulted = true
	}
	if err := c.stations.UpdateStatus(ctx, ev.DeviceID, status, faulted); err != nil {
		c.log.Warn("Failed to update station status",
			zap.String("device_id", ev.DeviceID),
			zap.Error(err),
		)
	}
}

// promoteSession moves a pending session to active when the device confirms
// the charge with a StartTransaction.
func (c *Consumer) promoteSession(ctx context.Context, ev protocolEvent) {
	sess, err := c.sessions.FindOpenByConnector(ctx, ev.DeviceID, ev.ConnectorID)
	if err != nil || sess == nil || sess.Status != domain.SessionStatusPending {
		return
	}

	sess.Status = domain.SessionStatusActive
	sess.StartTime = ev.Timestamp
	if id, ok := ev.Payload.IntField("transactionId"); ok {
		sess.TransactionID = &id
	}
	if v, ok := ev.Payload.Int64Field("meterStart"); ok {
		sess.MeterStart = &v
	}
	sess.UpdatedAt = c.now()

	if err := c.sessions.Update(ctx, sess); err != nil {
		c.log.Error("Failed to promote session to active",
			zap.String("session_id", sess.ID),
			zap.Error(err),
		)
		return
	}
	telemetry.ActiveChargingSessions.Inc()
	c.invalidateListings(ctx)

	c.log.Info("Session confirmed by device",
		zap.String("session_id", sess.ID),
		zap.String("device_id", ev.DeviceID),
	)
}

// attachMeterValue keeps the open session's meter fields current so a later
// stop can often bill without polling the log at all.
func (c *Consumer) attachMeterValue(ctx context.Context, ev protocolEvent) {
	v, ok := ev.Payload.Int64Field("value")
	if !ok {
		return
	}

	sess, err := c.sessions.FindOpenByConnector(ctx, ev.DeviceID, ev.ConnectorID)
	if err != nil || sess == nil {
		return
	}
	if txID, ok := ev.Payload.IntField("transactionId"); ok && sess.TransactionID != nil && *sess.TransactionID != txID {
		return
	}

	if sess.MeterStart == nil {
		sess.MeterStart = &v
	}
	sess.MeterEnd = &v
	if *sess.MeterEnd > *sess.MeterStart {
		sess.EnergyConsumed = float64(*sess.MeterEnd-*sess.MeterStart) / 1000
	}
	sess.UpdatedAt = c.now()

	if err := c.sessions.Update(ctx, sess); err != nil {
		c.log.Warn("Failed to attach meter value",
			zap.String("session_id", sess.ID),
			zap.Error(err),
		)
	}
}

// completeSession settles the record once the device's own StopTransaction
// arrives: an open session gets its final meter reading; an already-stopped
// session is promoted to completed.
func (c *Consumer) completeSession(ctx context.Context, ev protocolEvent) {
	txID, hasTx := ev.Payload.IntField("transactionId")

	sess, err := c.sessions.FindOpenByConnector(ctx, ev.DeviceID, ev.ConnectorID)
	if err != nil {
		return
	}
	if sess != nil {
		if hasTx && sess.TransactionID != nil && *sess.TransactionID != txID {
			return
		}
		if v, ok := ev.Payload.Int64Field("meterStop"); ok {
			sess.MeterEnd = &v
		}
		sess.UpdatedAt = c.now()
		if err := c.sessions.Update(ctx, sess); err != nil {
			c.log.Warn("Failed to record device stop on open session",
				zap.String("session_id", sess.ID),
				zap.Error(err),
			)
		}
		return
	}

	if !hasTx {
		return
	}
	stopped, err := c.sessions.List(ctx, ports.SessionFilter{
		DeviceID: ev.DeviceID,
		Status:   domain.SessionStatusStopped,
		Limit:    10,
	})
	if err != nil {
		return
	}
	for i := range stopped {
		s := &stopped[i]
		if s.TransactionID == nil || *s.TransactionID != txID {
			continue
		}
		s.Status = domain.SessionStatusCompleted
		s.UpdatedAt = c.now()
		if err := c.sessions.Update(ctx, s); err != nil {
			c.log.Warn("Failed to complete session",
				zap.String("session_id", s.ID),
				zap.Error(err),
			)
			continue
		}
		telemetry.ActiveChargingSessions.Dec()
		telemetry.EnergyDeliveredTotal.Add(s.EnergyConsumed)
		c.invalidateListings(ctx)
		c.log.Info("Session completed",
			zap.String("session_id", s.ID),
			zap.Int("transaction_id", txID),
		)
		return
	}
}

func (c *Consumer) invalidateListings(ctx context.Context) {
	if err := c.cache.DeleteByPrefix(ctx, cache.SessionListPrefix()); err != nil {
		c.log.Warn("Failed to invalidate session listings", zap.Error(err))
	}
}
