package realtime

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/lalith-99/teamchat/internal/auth"
)

// Abnormal close codes sent when the handshake is rejected.
const (
	CloseBadHandshake = 4001 // missing/invalid token-or-channelId combination
	CloseBadToken     = 4002 // token failed verification
)

// Handler upgrades HTTP requests to websocket connections and runs
// their lifecycle: authenticate, register, push the connected event,
// then block on reads until the peer goes away.
type Handler struct {
	registry *Registry
	auth     *auth.Authenticator
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewHandler(registry *Registry, authenticator *auth.Authenticator, logger *zap.Logger) *Handler {
	return &Handler{
		registry: registry,
		auth:     authenticator,
		upgrader: websocket.Upgrader{
			// Browser clients connect from a different origin; access
			// control happens via the token, not the Origin header.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

type connectedData struct {
	ChannelID *int64 `json:"channelId"`
	UserID    string `json:"userId"`
}

// Serve handles GET /ws?token=...&channelId=...
//
// channelId absent, non-numeric, or <= 0 means the connection is
// global-only. Rejections happen after the upgrade so the client
// receives a meaningful close code instead of a failed handshake.
func (h *Handler) Serve(c *gin.Context) {
	token := c.Query("token")
	channelParam := c.Query("channelId")

	channelID, err := strconv.ParseInt(channelParam, 10, 64)
	isGlobal := channelParam == "" || err != nil || channelID <= 0
	channelKey := GlobalBucket
	if !isGlobal {
		channelKey = BucketKey(channelID)
	}

	wsConn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		return
	}

	if token == "" {
		h.reject(wsConn, CloseBadHandshake, "missing token")
		return
	}

	identity, err := h.auth.VerifyAccess(token)
	if err != nil {
		h.reject(wsConn, CloseBadToken, "invalid token")
		return
	}

	client := NewClient(identity.UserID, wsConn)
	h.registry.Join(client, channelKey)

	h.pushConnected(client, isGlobal, channelID)

	// Block until the peer disconnects. We never expect data frames,
	// but reading is what processes control frames and surfaces the
	// close/error events.
	for {
		if _, _, err := wsConn.ReadMessage(); err != nil {
			break
		}
	}
	h.registry.Leave(client)
	client.Close()
}

func (h *Handler) pushConnected(client *Client, isGlobal bool, channelID int64) {
	data := connectedData{UserID: client.UserID.String()}
	if !isGlobal {
		data.ChannelID = &channelID
	}
	payload, err := json.Marshal(Envelope{Event: EventConnected, Data: data})
	if err != nil {
		h.logger.Error("marshal connected event", zap.Error(err))
		return
	}
	client.Enqueue(payload)
}

func (h *Handler) reject(wsConn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = wsConn.SetWriteDeadline(time.Now().Add(writeDeadline))
	_ = wsConn.WriteMessage(websocket.CloseMessage, msg)
	_ = wsConn.Close()
}
