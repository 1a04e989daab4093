package observability

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/haasonsaas/newton/internal/channels"
	"github.com/haasonsaas/newton/pkg/models"
)

var _ channels.Hooks = (*RealtimeMetrics)(nil)

func TestRealtimeMetrics_Status(t *testing.T) {
	m := NewRealtimeMetrics(prometheus.NewRegistry())

	m.StatusChanged(channels.KindConversation, models.ConnectionStatusConnecting)
	m.StatusChanged(channels.KindConversation, models.ConnectionStatusConnected)

	expected := `
		# HELP newton_realtime_connection_status Current connection status per realtime channel (1 for the active status)
		# TYPE newton_realtime_connection_status gauge
		newton_realtime_connection_status{channel="conversation",status="connected"} 1
		newton_realtime_connection_status{channel="conversation",status="connecting"} 0
		newton_realtime_connection_status{channel="conversation",status="disconnected"} 0
		newton_realtime_connection_status{channel="conversation",status="error"} 0
	`
	if err := testutil.CollectAndCompare(m.ConnectionStatus, strings.NewReader(expected)); err != nil {
		t.Errorf("Unexpected metric value: %v", err)
	}
}

func TestRealtimeMetrics_Frames(t *testing.T) {
	m := NewRealtimeMetrics(prometheus.NewRegistry())

	m.FrameSent(channels.KindConversation, "send_message")
	m.FrameSent(channels.KindConversation, "send_message")
	m.FrameReceived(channels.KindNotifications, "new_message")
	m.FrameDropped(channels.KindNotifications)

	if got := testutil.ToFloat64(m.FramesTotal.WithLabelValues("conversation", "outbound", "send_message")); got != 2 {
		t.Errorf("outbound send_message = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.FramesTotal.WithLabelValues("notifications", "inbound", "new_message")); got != 1 {
		t.Errorf("inbound new_message = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.FramesDropped.WithLabelValues("notifications")); got != 1 {
		t.Errorf("dropped = %v, want 1", got)
	}
}

func TestRealtimeMetrics_Reconnects(t *testing.T) {
	m := NewRealtimeMetrics(prometheus.NewRegistry())

	m.ReconnectScheduled("conversation", 1, time.Second)
	m.ReconnectScheduled("conversation", 2, 2*time.Second)
	m.ReconnectExhausted("conversation")
	m.Connected("conversation", 120*time.Millisecond)

	if count := testutil.CollectAndCount(m.ReconnectsTotal); count != 2 {
		t.Errorf("Expected 2 label combinations, got %d", count)
	}
	if got := testutil.ToFloat64(m.ReconnectsExhausted.WithLabelValues("conversation")); got != 1 {
		t.Errorf("exhausted = %v, want 1", got)
	}
	if count := testutil.CollectAndCount(m.ConnectDuration); count != 1 {
		t.Errorf("connect duration series = %d, want 1", count)
	}
}

func TestNewRealtimeMetrics_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewRealtimeMetrics(reg)

	defer func() {
		if recover() == nil {
			t.Error("expected panic registering twice on one registry")
		}
	}()
	NewRealtimeMetrics(reg)
}
