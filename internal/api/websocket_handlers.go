// internal/api/websocket_handlers.go
package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Corphon/SceneScriptForm/internal/models"
	"github.com/Corphon/SceneScriptForm/internal/services"
)

// WebSocketHandler pushes form session snapshots to browsers.
type WebSocketHandler struct {
	sessions *services.SessionStore
	manager  *WebSocketManager
	response *ResponseHelper
}

// NewWebSocketHandler 创建 WebSocket 处理器
func NewWebSocketHandler(sessions *services.SessionStore, manager *WebSocketManager) *WebSocketHandler {
	return &WebSocketHandler{
		sessions: sessions,
		manager:  manager,
		response: NewResponseHelper(),
	}
}

// SessionWebSocket streams every snapshot of one session. The first message
// is the current state; the connection closes when the session does.
func (wh *WebSocketHandler) SessionWebSocket(c *gin.Context) {
	session, err := wh.sessions.Get(c.Param("id"))
	if err != nil {
		wh.response.FromError(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		wh.manager.logger.Warn("websocket upgrade failed", map[string]interface{}{
			"session_id": session.ID,
			"err":        err.Error(),
		})
		return
	}

	client := newWebSocketClient(conn, session.ID)
	wh.manager.registerClient(client)

	updates := session.Subscribe()
	defer func() {
		session.Unsubscribe(updates)
		wh.manager.unregisterClient(client)
	}()

	go wh.handleWebSocketReads(client)
	wh.handleWebSocketWrites(client, updates)
}

// handleWebSocketReads drains the peer. Browsers send nothing but control
// frames; any read error ends the connection.
func (wh *WebSocketHandler) handleWebSocketReads(client *WebSocketClient) {
	defer client.Close()

	client.conn.SetReadLimit(wsMaxMessage)
	client.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	client.conn.SetPongHandler(func(string) error {
		client.UpdatePing()
		return client.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
		client.UpdatePing()
	}
}

func (wh *WebSocketHandler) handleWebSocketWrites(client *WebSocketClient, updates <-chan models.Snapshot) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case snap, ok := <-updates:
			if !ok {
				client.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				client.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
				return
			}
			if err := client.writeJSON(snapshotMessage(snap)); err != nil {
				return
			}

		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-client.done:
			return
		}
	}
}
