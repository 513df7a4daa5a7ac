package session

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/voltgrid/csms/internal/adapter/cache"
	"github.com/voltgrid/csms/internal/domain"
	"github.com/voltgrid/csms/internal/ports"
)

// Config carries the orchestration policy knobs. SystemCustomerID is the
// reserved account operator sessions bill against; it is resolved once at
// startup and injected, never looked up lazily.
type Config struct {
	SystemCustomerID      string
	AllowResumeOwnSession bool
	MinBillableDuration   time.Duration
	MeterPollRetries      int
	MeterPollInterval     time.Duration
	FallbackBaseRate      float64
	FallbackTaxPercent    float64
	ListCacheTTL          time.Duration
}

func (c *Config) applyDefaults() {
	if c.MinBillableDuration == 0 {
		c.MinBillableDuration = 30 * time.Second
	}
	if c.MeterPollRetries == 0 {
		c.MeterPollRetries = 5
	}
	if c.MeterPollInterval == 0 {
		c.MeterPollInterval = 2 * time.Second
	}
	if c.ListCacheTTL == 0 {
		c.ListCacheTTL = 2 * time.Minute
	}
}

// Service is the session orchestrator: it validates preconditions, reserves
// funds, dispatches remote commands, resolves the protocol transaction id
// and finalizes billing. The one hard invariant it protects: every debit is
// matched by either a live session or a full refund.
type Service struct {
	sessions    ports.SessionRepository
	wallet      ports.WalletService
	dispatcher  ports.Dispatcher
	deviceState ports.DeviceStateService
	protocolLog ports.ProtocolLogRepository
	tariffs     ports.TariffRepository
	cache       ports.Cache
	cfg         Config
	log         *zap.Logger
	now         func() time.Time
	sleep       func(time.Duration)
}

func NewService(
	sessions ports.SessionRepository,
	wallet ports.WalletService,
	dispatcher ports.Dispatcher,
	deviceState ports.DeviceStateService,
	protocolLog ports.ProtocolLogRepository,
	tariffs ports.TariffRepository,
	c ports.Cache,
	cfg Config,
	log *zap.Logger,
) *Service {
	cfg.applyDefaults()
	return &Service{
		sessions:    sessions,
		wallet:      wallet,
		dispatcher:  dispatcher,
		deviceState: deviceState,
		protocolLog: protocolLog,
		tariffs:     tariffs,
		cache:       c,
		cfg:         cfg,
		log:         log,
		now:         time.Now,
		sleep:       time.Sleep,
	}
}

// Start reserves funds, creates the session and dispatches the remote-start
// command. Funds are reserved before anything is sent to the device; a
// rejected or failed dispatch compensates with a full refund and a failed
// session row.
func (s *Service) Start(ctx context.Context, req ports.StartRequest) (*ports.StartResult, error) {
	if req.DeviceID == "" {
		return nil, domain.ValidationError("device id is required")
	}
	if req.ConnectorID <= 0 {
		return nil, domain.ValidationError("connector id is required")
	}

	operator := req.CustomerID == ""
	customerID := req.CustomerID
	idTag := req.IdTag
	if operator {
		customerID = s.cfg.SystemCustomerID
		if idTag == "" {
			idTag = domain.OperatorIdTag
		}
	} else {
		if req.Amount <= 0 {
			return nil, domain.ValidationError("amount must be positive, got %.2f", req.Amount)
		}
		if idTag == "" {
			idTag = domain.DefaultIdTag(customerID)
		}
	}

	if err := s.checkConnectorFree(ctx, customerID, operator, req.DeviceID, req.ConnectorID); err != nil {
		return nil, err
	}

	now := s.now()
	sess := &domain.ChargingSession{
		ID:              domain.NewSessionID(now),
		CustomerID:      customerID,
		DeviceID:        req.DeviceID,
		ConnectorID:     req.ConnectorID,
		ChargingPointID: req.ChargingPointID,
		VehicleID:       req.VehicleID,
		IdTag:           idTag,
		Status:          domain.SessionStatusPending,
		AmountRequested: req.Amount,
		StartTime:       now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	// Reserve funds first. The debit is tagged with the session id so the
	// compensating refund stays idempotent.
	if req.Amount > 0 {
		if _, err := s.wallet.Debit(ctx, customerID, req.Amount, "charging session reservation", sess.ID); err != nil {
			return nil, err
		}
		sess.AmountDeducted = req.Amount
	}

	if err := s.sessions.CreateExclusive(ctx, sess); err != nil {
		s.compensate(ctx, sess, "connector conflict")
		return nil, err
	}
	s.invalidateListings(ctx)

	result, err := s.dispatcher.Dispatch(ctx, ports.Command{
		Type:        ports.CommandRemoteStart,
		DeviceID:    req.DeviceID,
		ConnectorID: req.ConnectorID,
		IdTag:       idTag,
		SessionID:   sess.ID,
		CustomerID:  customerID,
	})
	if err != nil {
		s.failSession(ctx, sess, "dispatch failed")
		return nil, err
	}

	switch {
	case result.Via == "queue":
		// Queued: the session goes active asynchronously when the device
		// confirms via the inbound protocol stream.
		s.log.Info("Session start queued",
			zap.String("session_id", sess.ID),
			zap.String("device_id", req.DeviceID),
			zap.Int("connector_id", req.ConnectorID),
		)
	case result.Accepted:
		sess.Status = domain.SessionStatusActive
		sess.StartTime = s.now()
		sess.UpdatedAt = s.now()
		if err := s.sessions.Update(ctx, sess); err != nil {
			return nil, err
		}
		s.invalidateListings(ctx)
		s.log.Info("Session started directly",
			zap.String("session_id", sess.ID),
			zap.String("device_id", req.DeviceID),
		)
	default:
		s.failSession(ctx, sess, "device rejected remote start")
		return nil, domain.UpstreamError("device rejected remote start")
	}

	return &ports.StartResult{Success: true, Session: sess}, nil
}

// checkConnectorFree enforces the mutual-exclusion preconditions ahead of
// the atomic insert. Operator sessions are exclusive against anyone; a
// customer may supersede their own open session when the policy allows it.
func (s *Service) checkConnectorFree(ctx context.Context, customerID string, operator bool, deviceID string, connectorID int) error {
	open, err := s.sessions.FindOpenByConnector(ctx, deviceID, connectorID)
	if err != nil {
		return err
	}
	if open == nil {
		// No session row, but the device itself may still be mid-transaction
		// (crashed orchestrator, session started out of band). The reconciler
		// is consulted as a second opinion; if it cannot answer, the session
		// table remains authoritative.
		active, err := s.deviceState.HasActiveTransaction(ctx, deviceID)
		if err != nil {
			s.log.Warn("Device activity check failed, trusting session table",
				zap.String("device_id", deviceID),
				zap.Error(err),
			)
			return nil
		}
		if active {
			return domain.ConflictError("device %s reports an active transaction with no open session", deviceID)
		}
		return nil
	}
	if operator || open.CustomerID != customerID {
		return domain.ConflictError("connector %d on device %s is in use by session %s", connectorID, deviceID, open.ID)
	}
	if !s.cfg.AllowResumeOwnSession {
		return domain.ConflictError("customer already holds open session %s on connector %d", open.ID, connectorID)
	}

	// Supersede: release the stale session and return its reservation so
	// the connector frees up for the new attempt.
	s.log.Info("Superseding customer's own open session",
		zap.String("session_id", open.ID),
		zap.String("customer_id", customerID),
	)
	s.failSession(ctx, open, "superseded by new session")
	return nil
}

// failSession refunds the full reservation and terminal-states the session.
// Refunds key on the session id, so repeated compensation is harmless.
func (s *Service) failSession(ctx context.Context, sess *domain.ChargingSession, reason string) {
	s.compensate(ctx, sess, reason)

	now := s.now()
	sess.Status = domain.SessionStatusFailed
	sess.EndTime = &now
	sess.StopReason = reason
	sess.UpdatedAt = now
	if err := s.sessions.Update(ctx, sess); err != nil {
		s.log.Error("Failed to persist failed session",
			zap.String("session_id", sess.ID),
			zap.Error(err),
		)
	}
	s.invalidateListings(ctx)
}

func (s *Service) compensate(ctx context.Context, sess *domain.ChargingSession, reason string) {
	if sess.AmountDeducted <= 0 {
		return
	}
	if _, err := s.wallet.Refund(ctx, sess.CustomerID, sess.AmountDeducted, "reservation returned: "+reason, sess.ID); err != nil {
		s.log.Error("Compensating refund failed",
			zap.String("session_id", sess.ID),
			zap.String("customer_id", sess.CustomerID),
			zap.Float64("amount", sess.AmountDeducted),
			zap.Error(err),
		)
		return
	}
	sess.RefundAmount = sess.AmountDeducted
	sess.FinalAmount = 0
}

// Stop locates the open session, resolves the protocol transaction id,
// dispatches the remote-stop and finalizes billing. Dispatch failures are
// logged but never block finalization; billing must stay consistent even
// when the device confirmation is delayed or lost.
func (s *Service) Stop(ctx context.Context, req ports.StopRequest) (*ports.StopResult, error) {
	if req.DeviceID == "" {
		return nil, domain.ValidationError("device id is required")
	}

	operator := req.CustomerID == ""
	sess, err := s.locateOpenSession(ctx, req, operator)
	if err != nil {
		return nil, err
	}

	txID, err := s.resolveTransactionID(ctx, sess, req, operator)
	if err != nil {
		return nil, err
	}
	if sess.TransactionID == nil && txID != nil {
		sess.TransactionID = txID
	}

	stopSuccess := s.dispatchRemoteStop(ctx, sess, txID)

	bill := s.computeBill(ctx, sess, operator)

	now := s.now()
	sess.Status = domain.SessionStatusStopped
	sess.EndTime = &now
	sess.EnergyConsumed = bill.EnergyKWh
	sess.FinalAmount = bill.Cost
	sess.RefundAmount = bill.Refund
	sess.MeterStart = bill.MeterStart
	sess.MeterEnd = bill.MeterEnd
	sess.StopReason = bill.StopReason
	sess.UpdatedAt = now

	if err := s.sessions.Update(ctx, sess); err != nil {
		return nil, err
	}

	if bill.Refund > 0 {
		if _, err := s.wallet.Refund(ctx, sess.CustomerID, bill.Refund, "unused session reservation", sess.ID); err != nil {
			s.log.Error("Refund failed after session stop",
				zap.String("session_id", sess.ID),
				zap.Float64("amount", bill.Refund),
				zap.Error(err),
			)
		}
	}
	s.invalidateListings(ctx)

	s.log.Info("Session stopped",
		zap.String("session_id", sess.ID),
		zap.String("device_id", sess.DeviceID),
		zap.Float64("energy_kwh", bill.EnergyKWh),
		zap.Float64("final_amount", bill.Cost),
		zap.Float64("refund_amount", bill.Refund),
		zap.Bool("stop_success", stopSuccess),
	)

	return &ports.StopResult{Success: true, StopSuccess: stopSuccess, Session: sess}, nil
}

func (s *Service) locateOpenSession(ctx context.Context, req ports.StopRequest, operator bool) (*domain.ChargingSession, error) {
	if operator {
		sess, err := s.sessions.FindOpenByDevice(ctx, s.cfg.SystemCustomerID, req.DeviceID, req.ConnectorID, req.SessionID)
		if err != nil {
			return nil, err
		}
		if sess == nil {
			return nil, domain.NotFoundError("open operator session on device", req.DeviceID)
		}
		return sess, nil
	}

	if req.ConnectorID == nil {
		return nil, domain.ValidationError("connector id is required")
	}
	sess, err := s.sessions.FindOpenByCustomer(ctx, req.CustomerID, req.DeviceID, *req.ConnectorID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, domain.NotFoundError("open session on device", req.DeviceID)
	}
	return sess, nil
}

func (s *Service) dispatchRemoteStop(ctx context.Context, sess *domain.ChargingSession, txID *int) bool {
	result, err := s.dispatcher.Dispatch(ctx, ports.Command{
		Type:          ports.CommandRemoteStop,
		DeviceID:      sess.DeviceID,
		ConnectorID:   sess.ConnectorID,
		SessionID:     sess.ID,
		CustomerID:    sess.CustomerID,
		TransactionID: txID,
	})
	if err != nil {
		s.log.Warn("Remote stop dispatch failed, finalizing locally",
			zap.String("session_id", sess.ID),
			zap.String("device_id", sess.DeviceID),
			zap.Error(err),
		)
		return false
	}
	return result.Accepted
}

func (s *Service) Get(ctx context.Context, id string) (*domain.ChargingSession, error) {
	sess, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, domain.NotFoundError("session", id)
	}
	return sess, nil
}

// List serves session listings through the cache. Keys encode the filter;
// the short TTL is the safety net against a missed invalidation.
func (s *Service) List(ctx context.Context, filter ports.SessionFilter) ([]domain.ChargingSession, error) {
	key := cache.SessionListKey(filter)
	if raw, err := s.cache.Get(ctx, key); err == nil && raw != "" {
		var sessions []domain.ChargingSession
		if err := json.Unmarshal([]byte(raw), &sessions); err == nil {
			return sessions, nil
		}
	}

	sessions, err := s.sessions.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, sessions, s.cfg.ListCacheTTL); err != nil {
		s.log.Warn("Failed to cache session listing", zap.Error(err))
	}
	return sessions, nil
}

// invalidateListings drops every memoized session listing. Cache failures
// degrade silently; the TTL covers the gap.
func (s *Service) invalidateListings(ctx context.Context) {
	if err := s.cache.DeleteByPrefix(ctx, cache.SessionListPrefix()); err != nil {
		s.log.Warn("Failed to invalidate session listings", zap.Error(err))
	}
}
