package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/haasonsaas/newton/pkg/models"
)

var connectionStatuses = []models.ConnectionStatus{
	models.ConnectionStatusDisconnected,
	models.ConnectionStatusConnecting,
	models.ConnectionStatusConnected,
	models.ConnectionStatusError,
}

// RealtimeMetrics exports realtime channel activity to Prometheus. It
// implements channels.Hooks.
//
// Usage:
//
//	reg := prometheus.NewRegistry()
//	metrics := observability.NewRealtimeMetrics(reg)
//	ch, _ := conversation.New(conversation.Config{Hooks: metrics})
type RealtimeMetrics struct {
	// ConnectionStatus is 1 for the current status of each channel kind.
	// Labels: channel (conversation|notifications), status
	ConnectionStatus *prometheus.GaugeVec

	// ConnectDuration measures dial-to-open latency in seconds.
	// Labels: channel
	ConnectDuration *prometheus.HistogramVec

	// FramesTotal counts envelopes by direction.
	// Labels: channel, direction (inbound|outbound), type
	FramesTotal *prometheus.CounterVec

	// FramesDropped counts inbound frames that could not be decoded.
	// Labels: channel
	FramesDropped *prometheus.CounterVec

	// ReconnectsTotal counts scheduled reconnects.
	// Labels: channel, attempt
	ReconnectsTotal *prometheus.CounterVec

	// ReconnectDelay records the scheduled backoff in seconds.
	// Labels: channel
	ReconnectDelay *prometheus.HistogramVec

	// ReconnectsExhausted counts channels that gave up reconnecting.
	// Labels: channel
	ReconnectsExhausted *prometheus.CounterVec
}

// NewRealtimeMetrics creates the metrics and registers them with reg. A nil
// reg uses the default registerer.
func NewRealtimeMetrics(reg prometheus.Registerer) *RealtimeMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &RealtimeMetrics{
		ConnectionStatus: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "newton_realtime_connection_status",
				Help: "Current connection status per realtime channel (1 for the active status)",
			},
			[]string{"channel", "status"},
		),
		ConnectDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "newton_realtime_connect_duration_seconds",
				Help:    "Time from dial to open socket in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"channel"},
		),
		FramesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newton_realtime_frames_total",
				Help: "Envelopes sent and received by channel, direction and type",
			},
			[]string{"channel", "direction", "type"},
		),
		FramesDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newton_realtime_frames_dropped_total",
				Help: "Inbound frames dropped because they could not be decoded",
			},
			[]string{"channel"},
		),
		ReconnectsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newton_realtime_reconnects_total",
				Help: "Reconnect attempts scheduled by channel and attempt number",
			},
			[]string{"channel", "attempt"},
		),
		ReconnectDelay: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "newton_realtime_reconnect_delay_seconds",
				Help:    "Backoff delay before each reconnect attempt in seconds",
				Buckets: []float64{1, 2, 4, 8, 16, 30},
			},
			[]string{"channel"},
		),
		ReconnectsExhausted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newton_realtime_reconnect_exhausted_total",
				Help: "Times a channel stopped reconnecting after its attempt budget",
			},
			[]string{"channel"},
		),
	}
}

func (m *RealtimeMetrics) StatusChanged(kind string, status models.ConnectionStatus) {
	for _, s := range connectionStatuses {
		v := 0.0
		if s == status {
			v = 1
		}
		m.ConnectionStatus.WithLabelValues(kind, string(s)).Set(v)
	}
}

func (m *RealtimeMetrics) Connected(kind string, latency time.Duration) {
	m.ConnectDuration.WithLabelValues(kind).Observe(latency.Seconds())
}

func (m *RealtimeMetrics) FrameSent(kind, envelopeType string) {
	m.FramesTotal.WithLabelValues(kind, "outbound", envelopeType).Inc()
}

func (m *RealtimeMetrics) FrameReceived(kind, envelopeType string) {
	m.FramesTotal.WithLabelValues(kind, "inbound", envelopeType).Inc()
}

func (m *RealtimeMetrics) FrameDropped(kind string) {
	m.FramesDropped.WithLabelValues(kind).Inc()
}

func (m *RealtimeMetrics) ReconnectScheduled(kind string, attempt int, delay time.Duration) {
	m.ReconnectsTotal.WithLabelValues(kind, strconv.Itoa(attempt)).Inc()
	m.ReconnectDelay.WithLabelValues(kind).Observe(delay.Seconds())
}

func (m *RealtimeMetrics) ReconnectExhausted(kind string) {
	m.ReconnectsExhausted.WithLabelValues(kind).Inc()
}
