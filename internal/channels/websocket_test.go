package channels_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/haasonsaas/newton/internal/channels"
	"github.com/haasonsaas/newton/internal/channels/channeltest"
	"github.com/haasonsaas/newton/internal/wire"
	"github.com/haasonsaas/newton/pkg/models"
)

// echoServer accepts one socket per request, answers send_message with
// message_sent and closes normally when it receives the text "bye".
func echoServer(t *testing.T) (*httptest.Server, *sync.Map) {
	t.Helper()
	var tokens sync.Map
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokens.Store(r.URL.Path, r.URL.Query().Get("token"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteJSON(map[string]string{"type": wire.TypeConnectionEstablished})

		for {
			var in map[string]any
			if err := conn.ReadJSON(&in); err != nil {
				return
			}
			switch in["type"] {
			case wire.TypeSendMessage:
				if in["content"] == "bye" {
					msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done")
					_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
					return
				}
				_ = conn.WriteJSON(map[string]any{
					"type":    wire.TypeMessageSent,
					"message": map[string]any{"id": "srv-1", "sender": "agent", "content": in["content"]},
				})
			case wire.TypePing:
				_ = conn.WriteJSON(map[string]string{"type": wire.TypePong})
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &tokens
}

func newWebSocketConn(t *testing.T, base string) *channels.Conn {
	t.Helper()
	conn, err := channels.NewConn(channels.ConnConfig{
		Kind: channels.KindConversation,
		Endpoint: func(s channels.Scope, token string) (string, error) {
			return channels.BuildURL(base, token, "ws", s.TenantID, s.LeadID)
		},
		RequireLead:       true,
		HeartbeatInterval: 20 * time.Millisecond,
		Dialer:            &channels.WebSocketDialer{HandshakeTimeout: time.Second, ReadLimit: 1 << 20},
		Logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("NewConn() error = %v", err)
	}
	t.Cleanup(conn.Disconnect)
	return conn
}

func TestWebSocketDialer_RoundTrip(t *testing.T) {
	srv, tokens := echoServer(t)
	conn := newWebSocketConn(t, srv.URL)

	var mu sync.Mutex
	var got []wire.Event
	conn.OnEvent(func(ev wire.Event) {
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
	})

	if err := conn.Connect(channels.Scope{TenantID: "t1", LeadID: "l1"}, "jwt-token"); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	waitStatus(t, conn, models.ConnectionStatusConnected)

	if !conn.Send(wire.NewSendMessage("hola")) {
		t.Fatal("Send() = false")
	}

	var sent wire.MessageSent
	channeltest.Eventually(t, "message_sent", func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, ev := range got {
			if ms, ok := ev.(wire.MessageSent); ok {
				sent = ms
				return true
			}
		}
		return false
	})
	if sent.Message == nil || sent.Message.Content != "hola" {
		data, _ := json.Marshal(sent)
		t.Errorf("message_sent = %s", data)
	}

	channeltest.Eventually(t, "heartbeat pong", func() bool {
		return !conn.Health(testContext(t)).LastPong.IsZero()
	})

	token, _ := tokens.Load("/ws/t1/l1")
	if token != "jwt-token" {
		t.Errorf("token = %v, want jwt-token", token)
	}
}

func TestWebSocketDialer_ServerNormalClose(t *testing.T) {
	srv, _ := echoServer(t)
	conn := newWebSocketConn(t, srv.URL)

	if err := conn.Connect(channels.Scope{TenantID: "t1", LeadID: "l1"}, "jwt-token"); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	waitStatus(t, conn, models.ConnectionStatusConnected)

	conn.Send(wire.NewSendMessage("bye"))
	waitStatus(t, conn, models.ConnectionStatusDisconnected)

	time.Sleep(20 * time.Millisecond)
	if conn.Health(testContext(t)).Degraded {
		t.Error("normal server close must not schedule a reconnect")
	}
}

func TestWebSocketDialer_HandshakeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	conn := newWebSocketConn(t, srv.URL)
	if err := conn.Connect(channels.Scope{TenantID: "t1", LeadID: "l1"}, "bad-token"); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	waitStatus(t, conn, models.ConnectionStatusError)
	if conn.LastError() != channels.ConnectionErrorMessage {
		t.Errorf("LastError() = %q", conn.LastError())
	}
	if !conn.Health(testContext(t)).Degraded {
		t.Error("a failed dial should schedule a reconnect")
	}
}
