package notification

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/subledger/backend/internal/domain/shared"
)

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	server := httptest.NewServer(hub)
	t.Cleanup(server.Close)
	return hub, server
}

func dial(t *testing.T, server *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn, wait time.Duration) (*Message, error) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(wait))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func TestHub_DeliverWithoutConsoles(t *testing.T) {
	hub, _ := startHub(t)
	err := hub.Deliver(context.Background(), testNotice())
	assert.ErrorIs(t, err, shared.ErrExternalAdapter)
}

func TestHub_DeliverToConsole(t *testing.T) {
	hub, server := startHub(t)
	conn := dial(t, server, "")
	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 10*time.Millisecond)

	notice := testNotice()
	require.NoError(t, hub.Deliver(context.Background(), notice))

	msg, err := readMessage(t, conn, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "cutoff_warning", msg.Type)
	assert.Equal(t, TopicNotifications, msg.Topic)

	raw, err := json.Marshal(msg.Data)
	require.NoError(t, err)
	assert.Contains(t, string(raw), notice.Event.ID.String())
}

func TestHub_TopicFilter(t *testing.T) {
	hub, server := startHub(t)
	reports := dial(t, server, "?topics=reports")
	everything := dial(t, server, "")
	require.Eventually(t, func() bool { return hub.Count() == 2 }, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Deliver(context.Background(), testNotice()))
	hub.ReportReady("debts-20240314.xlsx", "https://example.com/r")

	msg, err := readMessage(t, reports, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "report_ready", msg.Type, "the notice is filtered out")

	first, err := readMessage(t, everything, time.Second)
	require.NoError(t, err)
	assert.Equal(t, TopicNotifications, first.Topic)
	second, err := readMessage(t, everything, time.Second)
	require.NoError(t, err)
	assert.Equal(t, TopicReports, second.Topic)
}

func TestHub_ShutdownClosesConnections(t *testing.T) {
	hub := NewHub(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	server := httptest.NewServer(hub)
	defer server.Close()

	conn := dial(t, server, "")
	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 10*time.Millisecond)

	cancel()
	_, err := readMessage(t, conn, 500*time.Millisecond)
	assert.Error(t, err)
}

func TestHub_RejectsForeignOrigin(t *testing.T) {
	hub := NewHub(nil, []string{"https://console.example.com"})
	server := httptest.NewServer(hub)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, map[string][]string{"Origin": {"https://evil.example.com"}})
	assert.Error(t, err)
	if resp != nil {
		assert.Equal(t, 403, resp.StatusCode)
	}
}
