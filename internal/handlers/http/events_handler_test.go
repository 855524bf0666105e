package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"onebarn/internal/core/domain"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialEvents(t *testing.T, s *testServer) (*websocket.Conn, func()) {
	t.Helper()
	srv := httptest.NewServer(s.router)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/events?token=" + s.token(t, domain.RoleViewer)
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	return conn, func() {
		conn.Close()
		srv.Close()
	}
}

func readEnvelope(t *testing.T, conn *websocket.Conn) domain.EventEnvelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env domain.EventEnvelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func TestEventsHandler_PushesLocalEvents(t *testing.T) {
	s := newTestServer(t)
	conn, done := dialEvents(t, s)
	defer done()

	s.bridge.bus.Emit(domain.Alert{
		CameraID: "stall-a",
		Severity: domain.SeverityWarning,
		Message:  "No movement for 40 minutes",
	})

	env := readEnvelope(t, conn)
	assert.Equal(t, domain.EventAlert, env.Event)
	assert.Equal(t, testTenant, env.TenantID)
	assert.NotEmpty(t, env.ID)
	assert.Contains(t, string(env.Payload), "No movement for 40 minutes")
}

func TestEventsHandler_DeliverRemote(t *testing.T) {
	s := newTestServer(t)
	conn, done := dialEvents(t, s)
	defer done()

	require.Equal(t, 1, s.events.Connections(testTenant))

	remote, err := domain.NewEventEnvelope("evt-remote", testTenant,
		domain.BridgeDisconnected{Reason: "timeout", ConsecutiveFailures: 1}, time.Unix(1700000000, 0))
	require.NoError(t, err)
	remote.InstanceID = "other-instance"

	other, err := domain.NewEventEnvelope("evt-other", "other-barn", domain.BridgeConnected{}, time.Unix(1700000000, 0))
	require.NoError(t, err)

	require.NoError(t, s.events.DeliverRemote(other))
	require.NoError(t, s.events.DeliverRemote(remote))

	env := readEnvelope(t, conn)
	assert.Equal(t, "evt-remote", env.ID)
	assert.Equal(t, domain.EventBridgeDisconnected, env.Event)
}

func TestEventsHandler_DeliverRemoteRejectsInvalid(t *testing.T) {
	s := newTestServer(t)

	assert.Error(t, s.events.DeliverRemote(nil))
	assert.Error(t, s.events.DeliverRemote(&domain.EventEnvelope{TenantID: testTenant, Event: "bogus"}))
}

func TestEventsHandler_UnsubscribesOnDisconnect(t *testing.T) {
	s := newTestServer(t)
	conn, done := dialEvents(t, s)
	defer done()

	require.Equal(t, 1, s.bridge.bus.Count(domain.EventAlert))

	conn.Close()

	assert.Eventually(t, func() bool {
		return s.events.Connections(testTenant) == 0 && s.bridge.bus.Count(domain.EventAlert) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEventsHandler_CloseDisconnectsDashboards(t *testing.T) {
	s := newTestServer(t)
	conn, done := dialEvents(t, s)
	defer done()

	s.events.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}

func TestEventsHandler_RequiresToken(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/v1/events", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://dashboard.onebarn.app"})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.True(t, check(req), "requests without origin are allowed")

	req.Header.Set("Origin", "https://dashboard.onebarn.app")
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, check(req))
}
