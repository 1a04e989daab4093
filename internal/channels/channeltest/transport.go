package channeltest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/haasonsaas/newton/internal/channels"
)

// ErrTransportClosed is returned by writes on a closed Transport.
var ErrTransportClosed = errors.New("transport closed")

type frame struct {
	data []byte
	err  error
}

// Transport is a scriptable channels.Transport.
type Transport struct {
	URL string

	incoming chan frame
	done     chan struct{}

	mu     sync.Mutex
	sent   [][]byte
	closes []int
	closed bool
}

func newTransport(url string) *Transport {
	return &Transport{
		URL:      url,
		incoming: make(chan frame, 64),
		done:     make(chan struct{}),
	}
}

func (t *Transport) ReadMessage() ([]byte, error) {
	select {
	case f := <-t.incoming:
		return f.data, f.err
	case <-t.done:
		return nil, &channels.CloseError{Code: channels.CloseNormal}
	}
}

func (t *Transport) WriteMessage(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrTransportClosed
	}
	t.sent = append(t.sent, append([]byte(nil), data...))
	return nil
}

func (t *Transport) Close(code int, _ string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closes = append(t.closes, code)
	if !t.closed {
		t.closed = true
		close(t.done)
	}
	return nil
}

// Deliver queues an inbound text frame.
func (t *Transport) Deliver(data string) {
	t.incoming <- frame{data: []byte(data)}
}

// DeliverJSON queues v encoded as JSON.
func (t *Transport) DeliverJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	t.incoming <- frame{data: data}
}

// Drop simulates the peer closing the socket with code.
func (t *Transport) Drop(code int) {
	t.incoming <- frame{err: &channels.CloseError{Code: code}}
}

// Fail simulates a socket error without a close frame.
func (t *Transport) Fail(err error) {
	t.incoming <- frame{err: err}
}

// Sent returns every frame written so far.
func (t *Transport) Sent() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([][]byte, len(t.sent))
	copy(out, t.sent)
	return out
}

// Envelopes decodes every written frame into a generic map.
func (t *Transport) Envelopes(tb testing.TB) []map[string]any {
	tb.Helper()
	var out []map[string]any
	for _, data := range t.Sent() {
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			tb.Fatalf("sent frame is not JSON: %v", err)
		}
		out = append(out, m)
	}
	return out
}

// Closes returns the codes passed to Close by the client.
func (t *Transport) Closes() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]int(nil), t.closes...)
}

// Closed reports whether the client closed the transport.
func (t *Transport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Dialer records dial attempts and hands out Transports.
type Dialer struct {
	mu         sync.Mutex
	err        error
	urls       []string
	transports []*Transport
	liveAtDial []int
}

// Dial returns a new Transport, or the configured error.
func (d *Dialer) Dial(ctx context.Context, url string) (channels.Transport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.urls = append(d.urls, url)
	live := 0
	for _, t := range d.transports {
		if !t.Closed() {
			live++
		}
	}
	d.liveAtDial = append(d.liveAtDial, live)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.err != nil {
		return nil, d.err
	}
	t := newTransport(url)
	d.transports = append(d.transports, t)
	return t, nil
}

// FailWith makes subsequent dials fail with err. Nil restores success.
func (d *Dialer) FailWith(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

// Dials returns the number of dial attempts.
func (d *Dialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.urls)
}

// URLs returns every dialed URL in order.
func (d *Dialer) URLs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.urls...)
}

// LiveAtDial returns, for each dial, how many earlier transports had not
// been closed by the client when it started.
func (d *Dialer) LiveAtDial() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int(nil), d.liveAtDial...)
}

// Transports returns every transport handed out, in order.
func (d *Dialer) Transports() []*Transport {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Transport(nil), d.transports...)
}

// Last returns the most recent transport, or nil.
func (d *Dialer) Last() *Transport {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.transports) == 0 {
		return nil
	}
	return d.transports[len(d.transports)-1]
}

// Eventually polls cond until it holds or two seconds pass.
func Eventually(tb testing.TB, what string, cond func() bool) {
	tb.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	tb.Fatalf("timed out waiting for %s", what)
}
