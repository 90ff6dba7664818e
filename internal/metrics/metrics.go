// Package metrics mirrors the transport's statistics counters into
// Prometheus collectors exposed on /metrics, alongside the plain
// in-memory snapshot each component keeps. Grounded on the rest of
// the example pack's prometheus/client_golang usage for an embedded
// service's operability surface; aggregation only copies counter
// values, per the Design Notes' "never retains references" rule.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry bundles every counter/gauge this transport core exposes.
type Registry struct {
	PacketsSent     *prometheus.CounterVec
	PacketsReceived *prometheus.CounterVec
	DroppedStale    *prometheus.CounterVec
	DroppedFull     *prometheus.CounterVec
	DroppedBlacklisted prometheus.Counter
	DuplicatesDropped  prometheus.Counter
	ChannelBusy        prometheus.Counter
	BackoffEvents      prometheus.Counter
	RadioResets        prometheus.Counter
	PeerUnreachable    prometheus.Counter
	RollingRSSI        prometheus.Gauge
	RollingSNR         prometheus.Gauge
	QueueDepth         *prometheus.GaugeVec
	RelayModeActive    prometheus.Gauge
}

// NewRegistry constructs and registers every collector against reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)
	return &Registry{
		PacketsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aerolink",
			Name:      "packets_sent_total",
			Help:      "Total packets sent, by link.",
		}, []string{"link"}),
		PacketsReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aerolink",
			Name:      "packets_received_total",
			Help:      "Total packets received, by link.",
		}, []string{"link"}),
		DroppedStale: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aerolink",
			Name:      "dropped_stale_total",
			Help:      "Packets dropped for exceeding tier TTL, by tier.",
		}, []string{"tier"}),
		DroppedFull: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aerolink",
			Name:      "dropped_full_total",
			Help:      "Packets dropped because a tier queue was full, by tier.",
		}, []string{"tier"}),
		DroppedBlacklisted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "aerolink",
			Name:      "dropped_blacklisted_total",
			Help:      "Packets dropped for a blacklisted message id.",
		}),
		DuplicatesDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "aerolink",
			Name:      "duplicates_dropped_total",
			Help:      "Inbound packets dropped as exact-match duplicates.",
		}),
		ChannelBusy: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "aerolink",
			Name:      "channel_busy_total",
			Help:      "Channel activity detections reporting a busy channel.",
		}),
		BackoffEvents: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "aerolink",
			Name:      "backoff_events_total",
			Help:      "Listen-before-talk backoff events.",
		}),
		RadioResets: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "aerolink",
			Name:      "radio_resets_total",
			Help:      "Radio driver resets triggered by consecutive transmit failures.",
		}),
		PeerUnreachable: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "aerolink",
			Name:      "peer_unreachable_total",
			Help:      "Close-range peer-unreachable transitions.",
		}),
		RollingRSSI: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "aerolink",
			Name:      "rolling_rssi_dbm",
			Help:      "Rolling average long-range RSSI in dBm.",
		}),
		RollingSNR: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "aerolink",
			Name:      "rolling_snr_db",
			Help:      "Rolling average long-range SNR in dB.",
		}),
		QueueDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "aerolink",
			Name:      "queue_depth",
			Help:      "Current tiered queue occupancy, by tier.",
		}, []string{"tier"}),
		RelayModeActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "aerolink",
			Name:      "relay_mode_active",
			Help:      "1 if relay mode is active, 0 if direct.",
		}),
	}
}

// AddDelta adds the increase of current over *prev to c and advances
// *prev to current. The per-component Stats counters this mirrors are
// already cumulative, and prometheus.Counter only supports Add, never
// Set.
func AddDelta(c prometheus.Counter, prev *uint64, current uint64) {
	if current > *prev {
		c.Add(float64(current - *prev))
	}
	*prev = current
}

// AddDeltaLabel is AddDelta against one label value of a CounterVec.
func AddDeltaLabel(cv *prometheus.CounterVec, label string, prev *uint64, current uint64) {
	AddDelta(cv.WithLabelValues(label), prev, current)
}
