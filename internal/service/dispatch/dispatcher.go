package dispatch

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voltgrid/csms/internal/adapter/queue"
	"github.com/voltgrid/csms/internal/domain"
	"github.com/voltgrid/csms/internal/observability/telemetry"
	"github.com/voltgrid/csms/internal/ports"
)

func dispatchOutcome(r *ports.DispatchResult) string {
	if r.Accepted {
		return "accepted"
	}
	return "rejected"
}

// envelope is the wire form of a dispatched command. MessageID doubles as the
// protocol correlation id so the ingest side can pair device acknowledgements
// with the command that caused them.
type envelope struct {
	MessageID    string        `json:"messageId"`
	DispatchedAt time.Time     `json:"dispatchedAt"`
	Command      ports.Command `json:"command"`
}

// strategy is one way of getting a command to a device.
type strategy interface {
	name() string
	deliver(ctx context.Context, cmd ports.Command, r route, data []byte) (*ports.DispatchResult, error)
}

// queueStrategy hands the command to the message broker. Acceptance here
// means the broker took the message; the device's own answer arrives later
// on the ingest path.
type queueStrategy struct {
	mq queue.MessageQueue
}

func (s *queueStrategy) name() string { return "queue" }

func (s *queueStrategy) deliver(_ context.Context, _ ports.Command, r route, data []byte) (*ports.DispatchResult, error) {
	if err := s.mq.PublishPersistent(r.Key, data, r.Priority); err != nil {
		return nil, err
	}
	return &ports.DispatchResult{Accepted: true, Via: "queue"}, nil
}

// directStrategy calls the device-control endpoint synchronously and carries
// the device's accept/reject verdict back to the caller.
type directStrategy struct {
	gateway ports.DeviceGateway
}

func (s *directStrategy) name() string { return "direct" }

func (s *directStrategy) deliver(ctx context.Context, cmd ports.Command, _ route, _ []byte) (*ports.DispatchResult, error) {
	accepted, raw, err := s.gateway.SendCommand(ctx, cmd)
	if err != nil {
		return nil, err
	}
	return &ports.DispatchResult{Accepted: accepted, Raw: raw, Via: "direct"}, nil
}

// Dispatcher delivers remote commands queue-first with a direct fallback.
// When the queue is disabled (or nil) every command goes direct.
type Dispatcher struct {
	primary  strategy
	fallback strategy
	log      *zap.Logger
	now      func() time.Time
}

func NewDispatcher(mq queue.MessageQueue, gateway ports.DeviceGateway, log *zap.Logger) *Dispatcher {
	direct := &directStrategy{gateway: gateway}

	d := &Dispatcher{
		primary: direct,
		log:     log,
		now:     time.Now,
	}
	if mq != nil {
		d.primary = &queueStrategy{mq: mq}
		d.fallback = direct
	}
	return d
}

func (d *Dispatcher) Dispatch(ctx context.Context, cmd ports.Command) (*ports.DispatchResult, error) {
	r, ok := routeFor(cmd.Type)
	if !ok {
		return nil, domain.ValidationError("unknown command type %q", cmd.Type)
	}
	if cmd.DeviceID == "" {
		return nil, domain.ValidationError("command requires a device id")
	}

	data, err := json.Marshal(envelope{
		MessageID:    uuid.New().String(),
		DispatchedAt: d.now().UTC(),
		Command:      cmd,
	})
	if err != nil {
		return nil, err
	}

	result, err := d.primary.deliver(ctx, cmd, r, data)
	if err == nil {
		telemetry.CommandDispatchTotal.WithLabelValues(string(cmd.Type), result.Via, dispatchOutcome(result)).Inc()
		d.log.Info("Command dispatched",
			zap.String("command", string(cmd.Type)),
			zap.String("device_id", cmd.DeviceID),
			zap.String("via", result.Via),
		)
		return result, nil
	}

	if d.fallback == nil {
		telemetry.CommandDispatchTotal.WithLabelValues(string(cmd.Type), d.primary.name(), "error").Inc()
		d.log.Error("Command dispatch failed",
			zap.String("command", string(cmd.Type)),
			zap.String("device_id", cmd.DeviceID),
			zap.String("via", d.primary.name()),
			zap.Error(err),
		)
		return nil, domain.UpstreamError(err.Error())
	}

	d.log.Warn("Queue dispatch failed, falling back to direct call",
		zap.String("command", string(cmd.Type)),
		zap.String("device_id", cmd.DeviceID),
		zap.Error(err),
	)

	result, err = d.fallback.deliver(ctx, cmd, r, data)
	if err != nil {
		telemetry.CommandDispatchTotal.WithLabelValues(string(cmd.Type), d.fallback.name(), "error").Inc()
		d.log.Error("Command dispatch failed on both paths",
			zap.String("command", string(cmd.Type)),
			zap.String("device_id", cmd.DeviceID),
			zap.Error(err),
		)
		return nil, domain.UpstreamError(err.Error())
	}

	telemetry.CommandDispatchTotal.WithLabelValues(string(cmd.Type), result.Via, dispatchOutcome(result)).Inc()
	d.log.Info("Command dispatched",
		zap.String("command", string(cmd.Type)),
		zap.String("device_id", cmd.DeviceID),
		zap.String("via", result.Via),
	)
	return result, nil
}
