package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Business metrics
	ActiveChargingSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "csms_active_charging_sessions",
		Help: "Number of confirmed active charging sessions",
	})

	EnergyDeliveredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "csms_energy_delivered_kwh_total",
		Help: "Total energy delivered in kWh",
	})

	WalletOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "csms_wallet_operations_total",
		Help: "Total wallet ledger operations",
	}, []string{"type", "status"})

	// Infrastructure metrics
	CommandDispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "csms_command_dispatch_total",
		Help: "Total remote command dispatches",
	}, []string{"command", "via", "result"})

	ProtocolMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "csms_protocol_messages_total",
		Help: "Total ingested protocol messages",
	}, []string{"kind", "direction"})

	LogScanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "csms_protocol_log_scan_seconds",
		Help:    "Duration of protocol log heuristic scans",
		Buckets: prometheus.DefBuckets,
	})
)
