// Package channels implements the realtime connection shared by the
// conversation and notification channels: a single websocket bound to a
// scope, with heartbeats, bounded reconnects and listener fan-out.
//
// A Conn never buffers outbound envelopes. Sends while disconnected return
// false, and every status or last-error change is delivered to listeners in
// order, outside the connection lock.
package channels
