package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/newton/internal/wire"
	"github.com/haasonsaas/newton/pkg/models"
)

const (
	// DefaultHeartbeatInterval is how often a ping is written while connected.
	DefaultHeartbeatInterval = 30 * time.Second

	// DefaultHandshakeTimeout bounds a single dial.
	DefaultHandshakeTimeout = 10 * time.Second

	// ConnectionErrorMessage is stored as the last error when a dial fails.
	ConnectionErrorMessage = "connection error"

	// MissingParamsMessage is stored as the last error for setup failures.
	MissingParamsMessage = "missing connection parameters"
)

// ConnConfig configures a Conn.
type ConnConfig struct {
	// Kind names the channel in logs and metrics.
	Kind string

	// Endpoint builds the socket URL for a scope.
	Endpoint EndpointFunc

	// RequireLead rejects scopes without a lead id.
	RequireLead bool

	HeartbeatInterval time.Duration
	HandshakeTimeout  time.Duration
	Reconnect         ReconnectConfig

	Dialer Dialer
	Clock  Clock
	Logger *slog.Logger
	Hooks  Hooks
}

// Validate checks required fields and fills defaults.
func (c *ConnConfig) Validate() error {
	if c.Kind == "" {
		return ErrConfig("kind is required", nil)
	}
	if c.Endpoint == nil {
		return ErrConfig("endpoint is required", nil)
	}
	if c.Dialer == nil {
		return ErrConfig("dialer is required", nil)
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}
	c.Reconnect = c.Reconnect.withDefaults()
	if c.Clock == nil {
		c.Clock = SystemClock{}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Hooks == nil {
		c.Hooks = NopHooks{}
	}
	return nil
}

// Conn owns one realtime socket: its lifecycle, heartbeat and reconnect
// timers. State changes happen under a single mutex. Listener callbacks are
// queued in the order the changes happened and delivered by one goroutine at
// a time, so listeners see a strictly ordered stream and may call back into
// the Conn.
type Conn struct {
	cfg     ConnConfig
	logger  *slog.Logger
	metrics *Metrics

	mu        sync.Mutex
	status    models.ConnectionStatus
	lastError string
	scope     Scope
	hasScope  bool
	url       string
	gen       uint64
	transport Transport
	connID    string
	cancel    context.CancelFunc
	heartbeat Timer
	reconnect Timer
	reconSeq  uint64
	attempts  int
	lastPing  time.Time
	lastPong  time.Time

	// epoch changes on every Connect and Disconnect. Queued events carry
	// the epoch they were read in and are dropped once it has moved on.
	epoch    uint64
	queue    []queued
	draining bool

	writeMu sync.Mutex

	statusListeners Listeners[models.ConnectionStatus]
	errorListeners  Listeners[string]
	eventListeners  Listeners[wire.Event]
}

// NewConn creates a disconnected Conn.
func NewConn(cfg ConnConfig) (*Conn, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Conn{
		cfg:     cfg,
		logger:  cfg.Logger.With("channel", cfg.Kind),
		metrics: NewMetrics(cfg.Kind),
		status:  models.ConnectionStatusDisconnected,
	}, nil
}

// Connect binds the Conn to scope and starts dialing in the background. It
// is a no-op while already connected or connecting to the same scope. A
// different scope, or a Conn in the error state, is fully disconnected
// first. Missing scope fields or token fail fast with a setup error, which
// is also reflected in Status and LastError.
func (c *Conn) Connect(scope Scope, token string) error {
	target, setupErr := c.checkSetup(scope, token)

	c.mu.Lock()
	if setupErr == nil && c.hasScope && c.scope == scope && c.reconnect == nil &&
		(c.status == models.ConnectionStatusConnected || c.status == models.ConnectionStatusConnecting) {
		c.mu.Unlock()
		return nil
	}

	old := c.detachLocked()
	if setupErr != nil {
		c.clearScopeLocked()
		c.setStatusLocked(models.ConnectionStatusError)
		c.setLastErrorLocked(MissingParamsMessage)
		c.metrics.RecordError(ErrCodeSetup)
		c.mu.Unlock()
		c.logger.Warn("connect rejected", "error", setupErr)
		c.closeTransport(old, "client disconnect")
		c.flush()
		return setupErr
	}

	c.epoch++
	c.scope = scope
	c.hasScope = true
	c.url = target
	c.attempts = 0
	dial := c.beginAttemptLocked()
	c.mu.Unlock()

	c.closeTransport(old, "scope change")
	go dial()
	c.flush()
	return nil
}

// Disconnect cancels timers and any in-flight dial, closes the socket with
// code 1000 and resets the reconnect budget. It is safe to call at any time
// and any number of times.
func (c *Conn) Disconnect() {
	c.mu.Lock()
	old := c.detachLocked()
	c.clearScopeLocked()
	c.setStatusLocked(models.ConnectionStatusDisconnected)
	c.mu.Unlock()

	if old != nil {
		c.logger.Info("disconnected")
	}
	c.closeTransport(old, "client disconnect")
	c.flush()
}

// Send writes env if connected. It returns false, writing nothing, when the
// socket is not open or the write fails. Sends are never buffered or
// retried.
func (c *Conn) Send(env wire.Outbound) bool {
	if err := c.Write(env); err != nil {
		c.logger.Debug("send skipped", "type", env.EnvelopeType(), "error", err)
		return false
	}
	return true
}

// Ready reports whether the socket is open.
func (c *Conn) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status == models.ConnectionStatusConnected && c.transport != nil
}

// Write encodes and writes env, returning ErrNotConnected when the socket is
// not open.
func (c *Conn) Write(env wire.Outbound) error {
	c.mu.Lock()
	t := c.transport
	open := t != nil && c.status == models.ConnectionStatusConnected
	c.mu.Unlock()

	if !open {
		c.metrics.RecordSendRejected()
		return ErrNotConnected
	}
	return c.write(t, env)
}

// Status returns the current connection status.
func (c *Conn) Status() models.ConnectionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// LastError returns the most recent human readable error, or "".
func (c *Conn) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastError
}

// Scope returns the bound scope, if any.
func (c *Conn) Scope() (Scope, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scope, c.hasScope
}

// Kind returns the configured channel kind.
func (c *Conn) Kind() string { return c.cfg.Kind }

// OnStatus registers a status listener.
func (c *Conn) OnStatus(fn func(models.ConnectionStatus)) (unsubscribe func()) {
	return c.statusListeners.Add(fn)
}

// OnLastError registers a listener for last-error changes. Cleared errors
// are reported as "".
func (c *Conn) OnLastError(fn func(string)) (unsubscribe func()) {
	return c.errorListeners.Add(fn)
}

// OnEvent registers a listener for every decoded inbound envelope, in
// arrival order.
func (c *Conn) OnEvent(fn func(wire.Event)) (unsubscribe func()) {
	return c.eventListeners.Add(fn)
}

// Metrics returns a snapshot of connection metrics.
func (c *Conn) Metrics() MetricsSnapshot {
	return c.metrics.Snapshot()
}

// Health reports the connection's health.
func (c *Conn) Health(ctx context.Context) HealthStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	h := HealthStatus{
		Healthy:           c.status == models.ConnectionStatusConnected && c.lastError == "",
		Status:            c.status,
		Message:           "ok",
		Degraded:          c.reconnect != nil,
		ReconnectAttempts: c.attempts,
		ConnectionID:      c.connID,
		LastPing:          c.lastPing,
		LastPong:          c.lastPong,
		LastCheck:         c.cfg.Clock.Now(),
	}
	if c.hasScope {
		h.Scope = c.scope.String()
	}
	switch {
	case c.lastError != "":
		h.Message = c.lastError
	case !h.Healthy:
		h.Message = "not connected"
	}
	if err := ctx.Err(); err != nil {
		h.Healthy = false
		h.Message = err.Error()
	}
	return h
}

func (c *Conn) checkSetup(scope Scope, token string) (string, error) {
	if scope.TenantID == "" {
		return "", ErrSetup(MissingParamsMessage, fmt.Errorf("tenant id is empty"))
	}
	if c.cfg.RequireLead && scope.LeadID == "" {
		return "", ErrSetup(MissingParamsMessage, fmt.Errorf("lead id is empty"))
	}
	if token == "" {
		return "", ErrSetup(MissingParamsMessage, fmt.Errorf("token is empty"))
	}
	target, err := c.cfg.Endpoint(scope, token)
	if err != nil {
		return "", ErrSetup("invalid endpoint", err)
	}
	return target, nil
}

// detachLocked stops both timers, cancels a pending dial and invalidates
// every event from the current transport. The returned transport, if any,
// must be closed by the caller after unlocking.
func (c *Conn) detachLocked() Transport {
	c.stopHeartbeatLocked()
	c.stopReconnectLocked()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.gen++

	t := c.transport
	c.transport = nil
	if t != nil {
		c.metrics.RecordConnectionClosed()
	}
	return t
}

func (c *Conn) clearScopeLocked() {
	c.epoch++
	c.scope = Scope{}
	c.hasScope = false
	c.url = ""
	c.attempts = 0
	c.connID = ""
}

// beginAttemptLocked moves to connecting and returns the dial to run once
// the lock is released.
func (c *Conn) beginAttemptLocked() func() {
	c.gen++
	gen := c.gen
	target := c.url
	connID := uuid.NewString()
	c.connID = connID

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.HandshakeTimeout)
	c.cancel = cancel

	c.setStatusLocked(models.ConnectionStatusConnecting)
	c.setLastErrorLocked("")
	c.logger.Info("connecting", "scope", c.scope.String(), "conn_id", connID, "attempt", c.attempts)

	started := c.cfg.Clock.Now()
	return func() {
		defer cancel()
		t, err := c.cfg.Dialer.Dial(ctx, target)
		c.handleDial(gen, connID, started, t, err)
	}
}

func (c *Conn) handleDial(gen uint64, connID string, started time.Time, t Transport, err error) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		if t != nil {
			_ = t.Close(CloseNormal, "superseded")
		}
		return
	}
	c.cancel = nil

	if err != nil {
		c.metrics.RecordError(ErrCodeTransport)
		c.setStatusLocked(models.ConnectionStatusError)
		c.setLastErrorLocked(ConnectionErrorMessage)
		c.logger.Warn("dial failed", "conn_id", connID, "error", err)
		c.scheduleReconnectLocked()
		c.mu.Unlock()
		c.flush()
		return
	}

	latency := c.cfg.Clock.Now().Sub(started)
	c.transport = t
	c.attempts = 0
	c.metrics.RecordConnectionOpened(latency)
	c.cfg.Hooks.Connected(c.cfg.Kind, latency)
	c.setStatusLocked(models.ConnectionStatusConnected)
	c.setLastErrorLocked("")
	c.startHeartbeatLocked(gen)
	c.logger.Info("connected", "scope", c.scope.String(), "conn_id", connID, "latency", latency)
	c.mu.Unlock()

	go c.readLoop(gen, t)
	c.flush()
}

func (c *Conn) readLoop(gen uint64, t Transport) {
	for {
		data, err := t.ReadMessage()
		if err != nil {
			c.handleClose(gen, err)
			return
		}
		c.handleFrame(gen, data)
	}
}

func (c *Conn) handleFrame(gen uint64, data []byte) {
	ev, err := wire.Decode(data)

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	if err != nil {
		c.mu.Unlock()
		c.metrics.RecordFrameDropped()
		c.metrics.RecordError(ErrCodeParse)
		c.cfg.Hooks.FrameDropped(c.cfg.Kind)
		c.logger.Warn("dropping malformed frame", "error", err, "bytes", len(data))
		return
	}

	c.metrics.RecordFrameReceived()
	c.cfg.Hooks.FrameReceived(c.cfg.Kind, ev.EventType())
	switch e := ev.(type) {
	case wire.Pong:
		c.lastPong = c.cfg.Clock.Now()
	case wire.ServerError:
		c.metrics.RecordError(ErrCodeProtocol)
		c.setLastErrorLocked(e.Message)
		c.logger.Warn("server error", "message", e.Message)
	case wire.Unknown:
		c.logger.Debug("unrecognized envelope", "type", e.Type)
	}
	c.queue = append(c.queue, queued{
		epoch:  c.epoch,
		scoped: true,
		fn:     func() { c.eventListeners.Notify(ev) },
	})
	c.mu.Unlock()
	c.flush()
}

func (c *Conn) handleClose(gen uint64, err error) {
	code := CloseCode(err)

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.stopHeartbeatLocked()
	c.transport = nil
	c.metrics.RecordConnectionClosed()
	c.setStatusLocked(models.ConnectionStatusDisconnected)
	if code == CloseNormal {
		c.logger.Info("closed by server", "code", code)
	} else {
		c.metrics.RecordError(ErrCodeTransport)
		c.logger.Warn("connection lost", "code", code, "error", err)
		c.scheduleReconnectLocked()
	}
	c.mu.Unlock()
	c.flush()
}

// scheduleReconnectLocked arms the single reconnect timer. A second request
// while one is pending is ignored.
func (c *Conn) scheduleReconnectLocked() {
	if c.reconnect != nil || !c.hasScope {
		return
	}
	if c.attempts >= c.cfg.Reconnect.MaxAttempts {
		c.metrics.RecordError(ErrCodeReconnectExhausted)
		c.cfg.Hooks.ReconnectExhausted(c.cfg.Kind)
		c.setStatusLocked(models.ConnectionStatusError)
		c.setLastErrorLocked(ReconnectExhaustedMessage)
		c.logger.Error("giving up reconnect", "attempts", c.attempts)
		return
	}

	next := c.attempts + 1
	delay := c.cfg.Reconnect.Delay(next)
	c.reconSeq++
	seq := c.reconSeq
	c.reconnect = c.cfg.Clock.AfterFunc(delay, func() { c.fireReconnect(seq) })

	c.metrics.RecordReconnectAttempt()
	c.cfg.Hooks.ReconnectScheduled(c.cfg.Kind, next, delay)
	c.logger.Info("reconnect scheduled", "attempt", next, "max_attempts", c.cfg.Reconnect.MaxAttempts, "delay", delay)
}

func (c *Conn) fireReconnect(seq uint64) {
	c.mu.Lock()
	if seq != c.reconSeq || c.reconnect == nil {
		c.mu.Unlock()
		return
	}
	c.reconnect = nil
	c.attempts++
	dial := c.beginAttemptLocked()
	c.mu.Unlock()

	go dial()
	c.flush()
}

func (c *Conn) stopReconnectLocked() {
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
	c.reconSeq++
}

func (c *Conn) startHeartbeatLocked(gen uint64) {
	if c.cfg.HeartbeatInterval <= 0 {
		return
	}
	c.heartbeat = c.cfg.Clock.AfterFunc(c.cfg.HeartbeatInterval, func() { c.beat(gen) })
}

func (c *Conn) stopHeartbeatLocked() {
	if c.heartbeat != nil {
		c.heartbeat.Stop()
		c.heartbeat = nil
	}
}

// beat writes one ping and re-arms the heartbeat. Missing pongs are not
// enforced; liveness comes from the transport's own close signal.
func (c *Conn) beat(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.transport == nil || c.status != models.ConnectionStatusConnected {
		c.mu.Unlock()
		return
	}
	t := c.transport
	c.lastPing = c.cfg.Clock.Now()
	c.heartbeat = c.cfg.Clock.AfterFunc(c.cfg.HeartbeatInterval, func() { c.beat(gen) })
	c.mu.Unlock()

	if err := c.write(t, wire.NewPing()); err != nil {
		c.logger.Debug("heartbeat write failed", "error", err)
	}
}

func (c *Conn) write(t Transport, env wire.Outbound) error {
	data, err := json.Marshal(env)
	if err != nil {
		c.metrics.RecordError(ErrCodeSend)
		return NewError(ErrCodeSend, "encode envelope", err)
	}

	c.writeMu.Lock()
	err = t.WriteMessage(data)
	c.writeMu.Unlock()
	if err != nil {
		c.metrics.RecordError(ErrCodeSend)
		c.logger.Warn("write failed", "type", env.EnvelopeType(), "error", err)
		return NewError(ErrCodeSend, "write envelope", err)
	}

	c.metrics.RecordFrameSent()
	c.cfg.Hooks.FrameSent(c.cfg.Kind, env.EnvelopeType())
	c.logger.Debug("frame sent", "type", env.EnvelopeType())
	return nil
}

func (c *Conn) closeTransport(t Transport, reason string) {
	if t == nil {
		return
	}
	if err := t.Close(CloseNormal, reason); err != nil {
		c.logger.Debug("close transport", "error", err)
	}
}

func (c *Conn) setStatusLocked(s models.ConnectionStatus) {
	if c.status == s {
		return
	}
	c.status = s
	c.cfg.Hooks.StatusChanged(c.cfg.Kind, s)
	c.enqueueLocked(func() { c.statusListeners.Notify(s) })
}

func (c *Conn) setLastErrorLocked(msg string) {
	if c.lastError == msg {
		return
	}
	c.lastError = msg
	c.enqueueLocked(func() { c.errorListeners.Notify(msg) })
}

// queued is one pending notification. Scoped items are inbound events and
// only make sense for the scope they arrived on.
type queued struct {
	epoch  uint64
	scoped bool
	fn     func()
}

func (c *Conn) enqueueLocked(fn func()) {
	c.queue = append(c.queue, queued{fn: fn})
}

// flush delivers queued notifications. Only one goroutine drains at a time;
// a call made while another goroutine (or a listener on this one) is
// draining returns immediately and its items are delivered by the drainer.
func (c *Conn) flush() {
	c.mu.Lock()
	if c.draining {
		c.mu.Unlock()
		return
	}
	c.draining = true
	for len(c.queue) > 0 {
		item := c.queue[0]
		c.queue[0] = queued{}
		c.queue = c.queue[1:]
		if item.scoped && item.epoch != c.epoch {
			c.logger.Debug("dropping event from previous scope")
			continue
		}
		c.mu.Unlock()
		item.fn()
		c.mu.Lock()
	}
	c.draining = false
	c.mu.Unlock()
}
