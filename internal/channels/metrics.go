package channels

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics keeps in-process counters for one connection. It backs Conn.Metrics
// and the health report; Prometheus export happens through Hooks.
type Metrics struct {
	framesSent     atomic.Uint64
	framesReceived atomic.Uint64
	framesDropped  atomic.Uint64
	sendsRejected  atomic.Uint64

	errorsMu     sync.RWMutex
	errorsByCode map[ErrorCode]uint64

	connectLatency *LatencyHistogram

	connectionsOpened atomic.Uint64
	connectionsClosed atomic.Uint64
	reconnectAttempts atomic.Uint64

	kind      string
	startTime time.Time
}

// NewMetrics creates a Metrics for a channel kind.
func NewMetrics(kind string) *Metrics {
	return &Metrics{
		errorsByCode:   make(map[ErrorCode]uint64),
		connectLatency: NewLatencyHistogram(defaultLatencySamples),
		kind:           kind,
		startTime:      time.Now(),
	}
}

func (m *Metrics) RecordFrameSent()     { m.framesSent.Add(1) }
func (m *Metrics) RecordFrameReceived() { m.framesReceived.Add(1) }
func (m *Metrics) RecordFrameDropped()  { m.framesDropped.Add(1) }
func (m *Metrics) RecordSendRejected()  { m.sendsRejected.Add(1) }

func (m *Metrics) RecordConnectionOpened(latency time.Duration) {
	m.connectionsOpened.Add(1)
	m.connectLatency.Record(latency)
}

func (m *Metrics) RecordConnectionClosed() { m.connectionsClosed.Add(1) }
func (m *Metrics) RecordReconnectAttempt() { m.reconnectAttempts.Add(1) }

// RecordError counts an error by code.
func (m *Metrics) RecordError(code ErrorCode) {
	m.errorsMu.Lock()
	m.errorsByCode[code]++
	m.errorsMu.Unlock()
}

// Snapshot returns a point-in-time view of all metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.errorsMu.RLock()
	errs := make(map[ErrorCode]uint64, len(m.errorsByCode))
	for code, n := range m.errorsByCode {
		errs[code] = n
	}
	m.errorsMu.RUnlock()

	return MetricsSnapshot{
		Kind:              m.kind,
		FramesSent:        m.framesSent.Load(),
		FramesReceived:    m.framesReceived.Load(),
		FramesDropped:     m.framesDropped.Load(),
		SendsRejected:     m.sendsRejected.Load(),
		ErrorsByCode:      errs,
		ConnectLatency:    m.connectLatency.Snapshot(),
		ConnectionsOpened: m.connectionsOpened.Load(),
		ConnectionsClosed: m.connectionsClosed.Load(),
		ReconnectAttempts: m.reconnectAttempts.Load(),
		Uptime:            time.Since(m.startTime),
	}
}

// MetricsSnapshot represents a point-in-time snapshot of metrics.
type MetricsSnapshot struct {
	Kind              string
	FramesSent        uint64
	FramesReceived    uint64
	FramesDropped     uint64
	SendsRejected     uint64
	ErrorsByCode      map[ErrorCode]uint64
	ConnectLatency    LatencySnapshot
	ConnectionsOpened uint64
	ConnectionsClosed uint64
	ReconnectAttempts uint64
	Uptime            time.Duration
}

const defaultLatencySamples = 256

// LatencyHistogram keeps the most recent samples in a ring buffer.
type LatencyHistogram struct {
	mu      sync.Mutex
	samples []time.Duration
	head    int
	count   int
}

// NewLatencyHistogram creates a histogram retaining up to size samples.
func NewLatencyHistogram(size int) *LatencyHistogram {
	return &LatencyHistogram{samples: make([]time.Duration, size)}
}

// Record adds a latency sample.
func (h *LatencyHistogram) Record(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.samples) == 0 {
		return
	}
	h.samples[h.head] = d
	h.head = (h.head + 1) % len(h.samples)
	if h.count < len(h.samples) {
		h.count++
	}
}

// Snapshot returns summary statistics over the retained samples.
func (h *LatencyHistogram) Snapshot() LatencySnapshot {
	h.mu.Lock()
	sorted := make([]time.Duration, h.count)
	if h.count < len(h.samples) {
		copy(sorted, h.samples[:h.count])
	} else {
		copy(sorted, h.samples)
	}
	h.mu.Unlock()

	if len(sorted) == 0 {
		return LatencySnapshot{}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}
	n := len(sorted)
	return LatencySnapshot{
		Count: n,
		Min:   sorted[0],
		Max:   sorted[n-1],
		Mean:  sum / time.Duration(n),
		P50:   sorted[n*50/100],
		P95:   sorted[n*95/100],
	}
}

// LatencySnapshot represents latency statistics.
type LatencySnapshot struct {
	Count int
	Min   time.Duration
	Max   time.Duration
	Mean  time.Duration
	P50   time.Duration
	P95   time.Duration
}
