package signal_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dylan0165/EUsuite-Platform-sub002/internal/adapters/signal"
	"github.com/Dylan0165/EUsuite-Platform-sub002/internal/app"
	"github.com/Dylan0165/EUsuite-Platform-sub002/internal/auth"
	"github.com/Dylan0165/EUsuite-Platform-sub002/internal/config"
	"github.com/Dylan0165/EUsuite-Platform-sub002/internal/core"
	"github.com/Dylan0165/EUsuite-Platform-sub002/internal/media"
	"github.com/Dylan0165/EUsuite-Platform-sub002/internal/media/memory"
)

const testSecret = "call-secret"

func signToken(t *testing.T, secret string, claims map[string]any) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	payloadJSON, err := json.Marshal(claims)
	require.NoError(t, err)
	payload := base64.RawURLEncoding.EncodeToString(payloadJSON)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(header + "." + payload))
	sig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	return header + "." + payload + "." + sig
}

func userToken(t *testing.T, name string) string {
	return signToken(t, testSecret, map[string]any{
		"sub":  name,
		"name": name,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
}

func newTestServer(t *testing.T, maxPeers int) (*httptest.Server, *core.Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	pool, err := media.NewPool(context.Background(), memory.New(), 1, nil)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	registry := core.NewRegistry(pool, media.DefaultRouterCodecs())
	orch := &app.Orchestrator{
		Registry: registry,
		Policy:   core.SimplePolicy{MaxPeers: maxPeers},
	}
	ctl := signal.NewController(orch, auth.NewVerifier(testSecret), &config.Config{
		AuthCookie: "call_token",
		ReadLimit:  32768,
		PingPeriod: 54 * time.Second,
	})

	r := gin.New()
	r.GET("/api/ws/call", func(c *gin.Context) {
		ctl.HandleSignal(c.Request.Context(), c)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, registry
}

func dial(t *testing.T, srv *httptest.Server, room, token string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/call?room=" + room
	h := http.Header{}
	if token != "" {
		h.Set("Cookie", "call_token="+token)
	}
	ws, resp, err := websocket.DefaultDialer.Dial(u, h)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func readMsg(t *testing.T, ws *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func expectMsg(t *testing.T, ws *websocket.Conn, msgType string) map[string]any {
	t.Helper()
	m := readMsg(t, ws)
	require.Equal(t, msgType, m["type"], "unexpected message: %v", m)
	return m
}

func sendMsg(t *testing.T, ws *websocket.Conn, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, data))
}

func expectClose(t *testing.T, ws *websocket.Conn, code int) {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := ws.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, code), "want close code %d, got %v", code, err)
}

func TestHandshakeWelcome(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	ws := dial(t, srv, "standup", userToken(t, "alice"))

	welcome := expectMsg(t, ws, "welcome")
	assert.NotEmpty(t, welcome["peerId"])
	caps, ok := welcome["rtpCapabilities"].(map[string]any)
	require.True(t, ok)
	assert.NotEmpty(t, caps["codecs"])
	assert.Empty(t, welcome["peers"])
}

func TestHandshakeRejectsMissingToken(t *testing.T) {
	srv, registry := newTestServer(t, 0)
	ws := dial(t, srv, "standup", "")
	expectClose(t, ws, signal.CloseCodeAuthFailed)
	_, ok := registry.Get("standup")
	assert.False(t, ok, "no room state before authentication")
}

func TestHandshakeRejectsForgedToken(t *testing.T) {
	srv, registry := newTestServer(t, 0)
	forged := signToken(t, "wrong-secret", map[string]any{
		"sub": "mallory",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	ws := dial(t, srv, "standup", forged)
	expectClose(t, ws, signal.CloseCodeAuthFailed)
	_, ok := registry.Get("standup")
	assert.False(t, ok)
}

func TestHandshakeRejectsMissingRoom(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	ws := dial(t, srv, "", userToken(t, "alice"))
	expectClose(t, ws, signal.CloseCodeBadRequest)
}

func TestHandshakeRejectsFullRoom(t *testing.T) {
	srv, _ := newTestServer(t, 1)
	first := dial(t, srv, "standup", userToken(t, "alice"))
	expectMsg(t, first, "welcome")

	second := dial(t, srv, "standup", userToken(t, "bob"))
	expectClose(t, second, signal.CloseCodeRoomFull)
}

func TestPeerJoinedAndLeftNotifications(t *testing.T) {
	srv, registry := newTestServer(t, 0)

	alice := dial(t, srv, "standup", userToken(t, "alice"))
	expectMsg(t, alice, "welcome")

	bob := dial(t, srv, "standup", userToken(t, "bob"))
	bobWelcome := expectMsg(t, bob, "welcome")
	peers, ok := bobWelcome["peers"].([]any)
	require.True(t, ok)
	assert.Len(t, peers, 1, "bob sees alice in the welcome")

	joined := expectMsg(t, alice, "peer-joined")
	peer, ok := joined["peer"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "bob", peer["displayName"])

	bob.Close()
	expectMsg(t, alice, "peer-left")

	// Alice still holds the room open.
	assert.Eventually(t, func() bool {
		room, ok := registry.Get("standup")
		return ok && room.PeerCount() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRoomRemovedWhenLastPeerDisconnects(t *testing.T) {
	srv, registry := newTestServer(t, 0)
	ws := dial(t, srv, "standup", userToken(t, "alice"))
	expectMsg(t, ws, "welcome")
	ws.Close()

	assert.Eventually(t, func() bool {
		_, ok := registry.Get("standup")
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSignalingRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t, 0)

	alice := dial(t, srv, "standup", userToken(t, "alice"))
	expectMsg(t, alice, "welcome")
	bob := dial(t, srv, "standup", userToken(t, "bob"))
	expectMsg(t, bob, "welcome")
	expectMsg(t, alice, "peer-joined")

	// Alice sets up her send transport and produces audio.
	sendMsg(t, alice, map[string]any{"type": "create-transport", "direction": "send"})
	created := expectMsg(t, alice, "transport-created")
	transport := created["transport"].(map[string]any)
	transportID := transport["id"].(string)
	assert.NotEmpty(t, transport["iceParameters"])
	assert.NotEmpty(t, transport["dtlsParameters"])

	sendMsg(t, alice, map[string]any{
		"type":           "connect-transport",
		"transportId":    transportID,
		"dtlsParameters": map[string]any{"role": "client"},
	})
	expectMsg(t, alice, "transport-connected")

	sendMsg(t, alice, map[string]any{
		"type":        "produce",
		"transportId": transportID,
		"kind":        "audio",
		"rtpParameters": map[string]any{
			"codecs": []map[string]any{{"mimeType": "audio/opus"}},
		},
	})
	produced := expectMsg(t, alice, "produced")
	producerID := produced["producerId"].(string)

	// Bob hears about the stream, consumes it and resumes.
	newProducer := expectMsg(t, bob, "new-producer")
	assert.Equal(t, producerID, newProducer["producerId"])
	assert.Equal(t, "alice", newProducer["peer"].(map[string]any)["displayName"])

	sendMsg(t, bob, map[string]any{"type": "get-producers"})
	producers := expectMsg(t, bob, "producers")
	assert.Len(t, producers["producers"].([]any), 1)

	sendMsg(t, bob, map[string]any{"type": "create-transport", "direction": "recv"})
	expectMsg(t, bob, "transport-created")
	sendMsg(t, bob, map[string]any{
		"type":       "consume",
		"producerId": producerID,
		"rtpCapabilities": map[string]any{
			"codecs": []map[string]any{{"mimeType": "audio/opus"}},
		},
	})
	consumed := expectMsg(t, bob, "consumed")
	consumerID := consumed["consumerId"].(string)
	assert.Equal(t, producerID, consumed["producerId"])
	assert.Equal(t, "alice", consumed["producerPeer"].(map[string]any)["displayName"])

	sendMsg(t, bob, map[string]any{"type": "resume-consumer", "consumerId": consumerID})
	expectMsg(t, bob, "consumer-resumed")

	// Alice closes the producer: bob's consumer is torn down first,
	// then the room-wide announcement follows.
	sendMsg(t, alice, map[string]any{"type": "close-producer", "producerId": producerID})
	closedConsumer := expectMsg(t, bob, "consumer-closed")
	assert.Equal(t, consumerID, closedConsumer["consumerId"])
	closedProducer := expectMsg(t, bob, "producer-closed")
	assert.Equal(t, producerID, closedProducer["producerId"])
}

func TestBadRequestGetsErrorMessage(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	ws := dial(t, srv, "standup", userToken(t, "alice"))
	expectMsg(t, ws, "welcome")

	sendMsg(t, ws, map[string]any{"type": "consume"})
	errMsg := expectMsg(t, ws, "error")
	assert.Equal(t, "bad-request", errMsg["code"])
}

func TestOperationErrorsAreScopedToRequester(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	alice := dial(t, srv, "standup", userToken(t, "alice"))
	expectMsg(t, alice, "welcome")
	bob := dial(t, srv, "standup", userToken(t, "bob"))
	expectMsg(t, bob, "welcome")
	expectMsg(t, alice, "peer-joined")

	sendMsg(t, alice, map[string]any{
		"type":            "consume",
		"producerId":      "ghost",
		"rtpCapabilities": map[string]any{"codecs": []any{}},
	})
	errMsg := expectMsg(t, alice, "error")
	assert.Equal(t, "producer-not-found", errMsg["code"])
	assert.Equal(t, "consume", errMsg["ref"])

	// Bob must not see alice's failure; the next thing he reads is his
	// own reply.
	sendMsg(t, bob, map[string]any{"type": "get-producers"})
	expectMsg(t, bob, "producers")
}

func TestUnknownMessageTypeIsIgnored(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	ws := dial(t, srv, "standup", userToken(t, "alice"))
	expectMsg(t, ws, "welcome")

	sendMsg(t, ws, map[string]any{"type": "dance"})
	// The connection survives and keeps serving.
	sendMsg(t, ws, map[string]any{"type": "get-producers"})
	expectMsg(t, ws, "producers")
}
