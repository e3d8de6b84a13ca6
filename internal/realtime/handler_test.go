package realtime

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lalith-99/teamchat/internal/auth"
	"github.com/lalith-99/teamchat/internal/models"
)

func newWSTestServer(t *testing.T) (*httptest.Server, *Registry, *auth.Authenticator) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry := NewRegistry(zap.NewNop())
	authenticator := auth.New("access-secret", "refresh-secret")
	handler := NewHandler(registry, authenticator, zap.NewNop())

	router := gin.New()
	router.GET("/ws", handler.Serve)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, registry, authenticator
}

func dialWS(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	if query != "" {
		url += "?" + query
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func expectClose(t *testing.T, conn *websocket.Conn, code int) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, code, closeErr.Code)
}

func TestServeRejectsMissingToken(t *testing.T) {
	srv, registry, _ := newWSTestServer(t)

	conn := dialWS(t, srv, "channelId=5")
	expectClose(t, conn, CloseBadHandshake)
	assert.Equal(t, 0, registry.Len(BucketKey(5)))
}

func TestServeRejectsInvalidToken(t *testing.T) {
	srv, registry, _ := newWSTestServer(t)

	conn := dialWS(t, srv, "token=not-a-jwt&channelId=5")
	expectClose(t, conn, CloseBadToken)
	assert.Equal(t, 0, registry.Len(BucketKey(5)))
}

func TestServeRejectsTokenSignedWithWrongSecret(t *testing.T) {
	srv, _, _ := newWSTestServer(t)

	other := auth.New("some-other-secret", "refresh-secret")
	token, err := other.IssueAccess(models.Identity{UserID: uuid.New(), Role: models.SystemRoleEmployee})
	require.NoError(t, err)

	conn := dialWS(t, srv, "token="+token)
	expectClose(t, conn, CloseBadToken)
}

func readEnvelope(t *testing.T, conn *websocket.Conn) (string, json.RawMessage) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)
	var env struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(frame, &env))
	return env.Event, env.Data
}

func TestServeChannelConnection(t *testing.T) {
	srv, registry, authenticator := newWSTestServer(t)

	userID := uuid.New()
	token, err := authenticator.IssueAccess(models.Identity{UserID: userID, Role: models.SystemRoleEmployee})
	require.NoError(t, err)

	conn := dialWS(t, srv, "token="+token+"&channelId=7")

	event, data := readEnvelope(t, conn)
	assert.Equal(t, string(EventConnected), event)

	var payload struct {
		ChannelID *int64 `json:"channelId"`
		UserID    string `json:"userId"`
	}
	require.NoError(t, json.Unmarshal(data, &payload))
	require.NotNil(t, payload.ChannelID)
	assert.Equal(t, int64(7), *payload.ChannelID)
	assert.Equal(t, userID.String(), payload.UserID)

	require.Eventually(t, func() bool {
		return registry.Len(BucketKey(7)) == 1
	}, 2*time.Second, 5*time.Millisecond)

	// Disconnecting must remove the registration.
	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		return registry.Len(BucketKey(7)) == 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestServeGlobalConnection(t *testing.T) {
	srv, registry, authenticator := newWSTestServer(t)

	token, err := authenticator.IssueAccess(models.Identity{UserID: uuid.New(), Role: models.SystemRoleAdmin})
	require.NoError(t, err)

	for _, query := range []string{
		"token=" + token,
		"token=" + token + "&channelId=abc",
		"token=" + token + "&channelId=0",
	} {
		conn := dialWS(t, srv, query)
		event, data := readEnvelope(t, conn)
		assert.Equal(t, string(EventConnected), event)

		var payload struct {
			ChannelID *int64 `json:"channelId"`
		}
		require.NoError(t, json.Unmarshal(data, &payload))
		assert.Nil(t, payload.ChannelID, "query %q must fall back to global", query)
		_ = conn.Close()
	}

	require.Eventually(t, func() bool {
		return registry.Len(GlobalBucket) == 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestServeBroadcastEndToEnd(t *testing.T) {
	srv, registry, authenticator := newWSTestServer(t)
	broadcaster := NewBroadcaster(registry, nil, zap.NewNop())

	token, err := authenticator.IssueAccess(models.Identity{UserID: uuid.New(), Role: models.SystemRoleEmployee})
	require.NoError(t, err)

	conn := dialWS(t, srv, "token="+token+"&channelId=9")
	event, _ := readEnvelope(t, conn)
	require.Equal(t, string(EventConnected), event)

	broadcaster.ToChannel(context.Background(), 9, Envelope{Event: EventMessageNew, Data: map[string]any{"content": "hi"}})

	event, data := readEnvelope(t, conn)
	assert.Equal(t, string(EventMessageNew), event)
	assert.JSONEq(t, `{"content":"hi"}`, string(data))
}
