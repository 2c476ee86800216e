package internalhttp

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yath-MCA/ayaz-home-security/internal/activity"
	internalapp "github.com/Yath-MCA/ayaz-home-security/internal/app"
	"github.com/Yath-MCA/ayaz-home-security/internal/device"
	"github.com/Yath-MCA/ayaz-home-security/internal/logger"
)

const (
	testAdminToken  = "admin-secret"
	testDeviceToken = "device-secret"
)

func newTestApp(active bool, adminToken, deviceToken string) *internalapp.App {
	return internalapp.New(
		logger.New("error", io.Discard),
		activity.New(active),
		device.NewStream(),
		adminToken,
		deviceToken,
	)
}

func newTestServer(t *testing.T, a *internalapp.App) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(NewHandler(logger.New("error", io.Discard), a))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	ws, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

func sendEvent(t *testing.T, ws *websocket.Conn, event, data string) {
	t.Helper()

	require.NoError(t, ws.WriteJSON(internalapp.Envelope{
		Event: event,
		Data:  json.RawMessage(data),
	}))
}

// waitFor reads frames until the named event arrives, skipping unrelated
// server pushes.
func waitFor(t *testing.T, ws *websocket.Conn, event string) internalapp.Envelope {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		require.NoError(t, ws.SetReadDeadline(time.Now().Add(3*time.Second)))

		env := internalapp.Envelope{}
		require.NoError(t, ws.ReadJSON(&env))
		if env.Event == event {
			return env
		}
	}

	t.Fatalf("no %v event arrived", event)
	return internalapp.Envelope{}
}

func doJSON(t *testing.T, method, url, token, body string) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	decoded := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && json.Valid(raw) {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp, decoded
}

func TestHealthAndStatus(t *testing.T) {
	srv := newTestServer(t, newTestApp(true, testAdminToken, testDeviceToken))

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/health", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, true, body["active"])

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/status", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["active"])
	assert.Equal(t, float64(0), body["connections"])

	for _, field := range []string{"ts", "changedAt"} {
		v, ok := body[field].(string)
		require.True(t, ok, field)
		_, err := time.Parse(time.RFC3339, v)
		assert.NoError(t, err, field)
	}
}

func TestAdminActive(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		body   string
		status int
	}{
		{name: "no token", token: "", body: `{"active":false}`, status: http.StatusUnauthorized},
		{name: "wrong token", token: "guess", body: `{"active":false}`, status: http.StatusUnauthorized},
		{name: "missing active", token: testAdminToken, body: `{}`, status: http.StatusBadRequest},
		{name: "non-boolean active", token: testAdminToken, body: `{"active":"yes"}`, status: http.StatusBadRequest},
		{name: "no body", token: testAdminToken, body: "", status: http.StatusBadRequest},
		{name: "ok", token: testAdminToken, body: `{"active":false}`, status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestApp(true, testAdminToken, testDeviceToken)
			srv := newTestServer(t, a)

			resp, body := doJSON(t, http.MethodPost, srv.URL+"/admin/active", tt.token, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)

			if tt.status == http.StatusOK {
				assert.Equal(t, false, body["active"])
				assert.False(t, a.Active())
			} else {
				assert.True(t, a.Active(), "failed call must not change state")
			}
		})
	}
}

func TestAdminActiveTokenNotConfigured(t *testing.T) {
	srv := newTestServer(t, newTestApp(true, "", ""))

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/admin/active", testAdminToken, `{"active":false}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, body["error"], "not configured")
}

func TestPiStream(t *testing.T) {
	a := newTestApp(true, testAdminToken, testDeviceToken)
	srv := newTestServer(t, a)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/pi/stream", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, body["url"])

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/pi/stream", "guess", `{"url":"rtsp://cam"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/pi/stream", testDeviceToken, `{"url":""}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/pi/stream", testDeviceToken, `{"url":42}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/pi/stream", testDeviceToken, `{"url":" rtsp://cam.local/stream "}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "rtsp://cam.local/stream", body["url"])

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/pi/stream", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "rtsp://cam.local/stream", body["url"])
}

func TestRoomsEmpty(t *testing.T) {
	srv := newTestServer(t, newTestApp(true, testAdminToken, testDeviceToken))

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/rooms", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []any{}, body["rooms"])
}

func TestUnknownRouteAndMethod(t *testing.T) {
	srv := newTestServer(t, newTestApp(true, testAdminToken, testDeviceToken))

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/nope", "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/health", "", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestJoinChatLeaveScenario(t *testing.T) {
	a := newTestApp(true, testAdminToken, testDeviceToken)
	srv := newTestServer(t, a)

	alice := dial(t, srv)
	sendEvent(t, alice, "join-room", `{"roomId":"room-1","displayName":"Alice"}`)

	env := waitFor(t, alice, "room-joined")
	var aliceJoined struct {
		RoomID       string `json:"roomId"`
		PeerID       string `json:"peerId"`
		Participants []struct {
			ID          string `json:"id"`
			DisplayName string `json:"displayName"`
		} `json:"participants"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &aliceJoined))
	assert.Equal(t, "room-1", aliceJoined.RoomID)
	assert.Empty(t, aliceJoined.Participants)

	bob := dial(t, srv)
	sendEvent(t, bob, "join-room", `{"roomId":"room-1","displayName":"Bob"}`)

	env = waitFor(t, bob, "room-joined")
	var bobJoined struct {
		PeerID       string `json:"peerId"`
		Participants []struct {
			DisplayName string `json:"displayName"`
		} `json:"participants"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &bobJoined))
	require.Len(t, bobJoined.Participants, 1)
	assert.Equal(t, "Alice", bobJoined.Participants[0].DisplayName)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/status", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), body["connections"])

	env = waitFor(t, alice, "user-joined")
	var joinedNotice struct {
		PeerID       string `json:"peerId"`
		DisplayName  string `json:"displayName"`
		Participants []any  `json:"participants"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &joinedNotice))
	assert.Equal(t, "Bob", joinedNotice.DisplayName)
	assert.Len(t, joinedNotice.Participants, 2)

	// Alice's text lands on both ends with her name and a server timestamp.
	sendEvent(t, alice, "chat-message", `"hi"`)
	for _, ws := range []*websocket.Conn{alice, bob} {
		env = waitFor(t, ws, "chat-message")

		var msg struct {
			From        string `json:"from"`
			DisplayName string `json:"displayName"`
			Message     string `json:"message"`
			Timestamp   string `json:"timestamp"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &msg))
		assert.Equal(t, aliceJoined.PeerID, msg.From)
		assert.Equal(t, "Alice", msg.DisplayName)
		assert.Equal(t, "hi", msg.Message)
		_, err := time.Parse(time.RFC3339, msg.Timestamp)
		assert.NoError(t, err)
	}

	// Bob's direct offer reaches Alice only.
	sendEvent(t, bob, "signal", `{"to":"`+aliceJoined.PeerID+`","type":"offer","data":{"sdp":"v=0"}}`)
	env = waitFor(t, alice, "signal")
	var sig struct {
		From string          `json:"from"`
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &sig))
	assert.Equal(t, bobJoined.PeerID, sig.From)
	assert.Equal(t, "offer", sig.Type)

	require.NoError(t, bob.Close())

	env = waitFor(t, alice, "user-left")
	var leftNotice struct {
		PeerID       string `json:"peerId"`
		Participants []struct {
			DisplayName string `json:"displayName"`
		} `json:"participants"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &leftNotice))
	assert.Equal(t, bobJoined.PeerID, leftNotice.PeerID)
	require.Len(t, leftNotice.Participants, 1)
	assert.Equal(t, "Alice", leftNotice.Participants[0].DisplayName)

	// Room survives Alice; dies with her.
	list := a.Rooms()
	require.Len(t, list, 1)
	assert.Equal(t, 1, list[0].Count)

	require.NoError(t, alice.Close())
	assert.Eventually(t, func() bool {
		return len(a.Rooms()) == 0
	}, 3*time.Second, 10*time.Millisecond, "empty room is removed")
}

func TestSleepWakeScenario(t *testing.T) {
	a := newTestApp(true, testAdminToken, testDeviceToken)
	srv := newTestServer(t, a)

	alice := dial(t, srv)
	sendEvent(t, alice, "join-room", `{"roomId":"room-1","displayName":"Alice"}`)
	waitFor(t, alice, "room-joined")

	bob := dial(t, srv)
	sendEvent(t, bob, "join-room", `{"roomId":"room-1","displayName":"Bob"}`)
	waitFor(t, bob, "room-joined")

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/admin/active", testAdminToken, `{"active":false}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Both get the sleep notice and are then hung up on server-side.
	for _, ws := range []*websocket.Conn{alice, bob} {
		env := waitFor(t, ws, "server-sleep")
		var notice struct {
			Message string `json:"message"`
			Active  bool   `json:"active"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &notice))
		assert.False(t, notice.Active)
		assert.Equal(t, "Server is in Sleep Mode", notice.Message)

		require.NoError(t, ws.SetReadDeadline(time.Now().Add(3*time.Second)))
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				break
			}
		}
	}

	// New attempts are refused at the handshake with the sleep reason.
	_, resp2, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.Error(t, err)
	require.NotNil(t, resp2)
	assert.Equal(t, http.StatusServiceUnavailable, resp2.StatusCode)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/wake", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["active"])

	carol := dial(t, srv)
	sendEvent(t, carol, "join-room", `{"roomId":"room-2","displayName":"Carol"}`)
	waitFor(t, carol, "room-joined")
}

func TestSleepBroadcastsServerActiveNotice(t *testing.T) {
	a := newTestApp(true, testAdminToken, testDeviceToken)
	srv := newTestServer(t, a)

	alice := dial(t, srv)
	sendEvent(t, alice, "join-room", `{"roomId":"room-1","displayName":"Alice"}`)
	waitFor(t, alice, "room-joined")

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/admin/active", testAdminToken, `{"active":false}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	env := waitFor(t, alice, "server-active")
	var notice struct {
		Active bool `json:"active"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &notice))
	assert.False(t, notice.Active)
}

func TestStreamURLChangeIsBroadcast(t *testing.T) {
	a := newTestApp(true, testAdminToken, testDeviceToken)
	srv := newTestServer(t, a)

	alice := dial(t, srv)
	sendEvent(t, alice, "join-room", `{"roomId":"room-1","displayName":"Alice"}`)
	waitFor(t, alice, "room-joined")

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/pi/stream", testDeviceToken, `{"url":"rtsp://cam.local/stream"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	env := waitFor(t, alice, "pi-stream")
	var notice struct {
		URL *string `json:"url"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &notice))
	require.NotNil(t, notice.URL)
	assert.Equal(t, "rtsp://cam.local/stream", *notice.URL)
}
