package devicestate

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/voltgrid/csms/internal/adapter/cache"
	"github.com/voltgrid/csms/internal/domain"
	"github.com/voltgrid/csms/internal/observability/telemetry"
	"github.com/voltgrid/csms/internal/ports"
)

// lastSeenWindow bounds the registry fallback: a device silent for longer is
// reported Offline even if it never said goodbye.
const lastSeenWindow = 5 * time.Minute

// Service reconciles a device's live state from the cache snapshot, the
// station registry and the protocol log, in that cost order.
type Service struct {
	cache       ports.Cache
	stations    ports.StationRepository
	protocolLog ports.ProtocolLogRepository
	log         *zap.Logger
	now         func() time.Time
}

func NewService(c ports.Cache, stations ports.StationRepository, protocolLog ports.ProtocolLogRepository, log *zap.Logger) *Service {
	return &Service{
		cache:       c,
		stations:    stations,
		protocolLog: protocolLog,
		log:         log,
		now:         time.Now,
	}
}

// Status maps the device to Online/Offline: live cache snapshot first,
// registry last-seen fallback when the cache is cold.
func (s *Service) Status(ctx context.Context, deviceID string) (domain.DeviceStatus, error) {
	if deviceID == "" {
		return domain.DeviceOffline, domain.ValidationError("device id is required")
	}

	if snap := s.snapshot(ctx, deviceID); snap != nil {
		return domain.MapProtocolStatus(snap.Status), nil
	}

	st, err := s.stations.FindByDeviceID(ctx, deviceID)
	if err != nil {
		return domain.DeviceOffline, err
	}
	if st == nil {
		return domain.DeviceOffline, domain.NotFoundError("device", deviceID)
	}
	if s.now().Sub(st.LastSeen) <= lastSeenWindow {
		return domain.DeviceOnline, nil
	}
	return domain.DeviceOffline, nil
}

// ConnectorStatus refines Online/Offline into the availability verdict:
// offline wins, then faults, then charging activity.
func (s *Service) ConnectorStatus(ctx context.Context, deviceID string) (domain.ConnectorStatus, error) {
	status, err := s.Status(ctx, deviceID)
	if err != nil {
		return domain.ConnectorUnavailable, err
	}
	if status == domain.DeviceOffline {
		return domain.ConnectorUnavailable, nil
	}

	faulted, err := s.isFaulted(ctx, deviceID)
	if err != nil {
		return domain.ConnectorUnavailable, err
	}
	if faulted {
		return domain.ConnectorFaulted, nil
	}

	active, err := s.HasActiveTransaction(ctx, deviceID)
	if err != nil {
		return domain.ConnectorUnavailable, err
	}
	if active {
		return domain.ConnectorCharging, nil
	}
	return domain.ConnectorAvailable, nil
}

// HasActiveTransaction reconstructs whether a charge is in progress. The
// cache snapshot is authoritative when it gives a clear answer; otherwise
// the typed predicates scan a two-hour log window in priority order.
func (s *Service) HasActiveTransaction(ctx context.Context, deviceID string) (bool, error) {
	if snap := s.snapshot(ctx, deviceID); snap != nil {
		switch status := normalize(snap.Status); {
		case status == "charging":
			return true, nil
		case isAvailableLike(status):
			return false, nil
		}
	}

	now := s.now()
	scanStart := time.Now()
	defer func() {
		telemetry.LogScanDuration.Observe(time.Since(scanStart).Seconds())
	}()
	entries, err := s.protocolLog.EntriesSince(ctx, deviceID, now.Add(-transactionWindow), []domain.MessageKind{
		domain.KindStatusNotification,
		domain.KindRemoteStop,
		domain.KindStartTransaction,
		domain.KindStopTransaction,
	})
	if err != nil {
		return false, err
	}

	for _, p := range activityPredicates {
		if active, decided := p.evaluate(now, entries); decided {
			s.log.Debug("Active transaction verdict",
				zap.String("device_id", deviceID),
				zap.String("predicate", p.name()),
				zap.Bool("active", active),
			)
			return active, nil
		}
	}
	return false, nil
}

// snapshot reads the cached live status. Cache failures degrade to a miss.
func (s *Service) snapshot(ctx context.Context, deviceID string) *domain.DeviceStatusSnapshot {
	raw, err := s.cache.Get(ctx, cache.DeviceStatusKey(deviceID))
	if err != nil || raw == "" {
		return nil
	}
	var snap domain.DeviceStatusSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		s.log.Warn("Discarding malformed status snapshot",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
		return nil
	}
	return &snap
}

// isFaulted checks the registry flag and the most recent StatusNotification
// for a non-NoError fault code or a faulted/unavailable connector status.
func (s *Service) isFaulted(ctx context.Context, deviceID string) (bool, error) {
	st, err := s.stations.FindByDeviceID(ctx, deviceID)
	if err != nil {
		return false, err
	}
	if st != nil && st.Faulted {
		return true, nil
	}

	e, err := s.protocolLog.LatestByKind(ctx, deviceID, domain.KindStatusNotification, s.now().Add(-transactionWindow))
	if err != nil {
		return false, err
	}
	if e == nil {
		return false, nil
	}
	if code, ok := e.Payload.StringField("errorCode"); ok && normalize(code) != "noerror" && code != "" {
		return true, nil
	}
	switch payloadStatus(*e) {
	case "faulted", "unavailable":
		return true, nil
	}
	return false, nil
}
