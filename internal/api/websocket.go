// internal/api/websocket.go
package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Corphon/SceneScriptForm/internal/models"
	"github.com/Corphon/SceneScriptForm/internal/utils"
)

const (
	wsWriteWait    = 10 * time.Second
	wsPongWait     = 60 * time.Second
	wsPingInterval = 30 * time.Second
	wsMaxMessage   = 4096
)

// WebSocket 升级器配置
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSMessage is the envelope of every server push.
type WSMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func snapshotMessage(snap models.Snapshot) WSMessage {
	return WSMessage{Type: "snapshot", Data: snap, Timestamp: time.Now()}
}

// WebSocketClient 表示一个 WebSocket 客户端连接
type WebSocketClient struct {
	conn      *websocket.Conn
	sessionID string
	closed    int32 // 原子操作标志，0=开启，1=关闭
	lastPing  atomic.Int64
	createdAt time.Time
	done      chan struct{}
}

func newWebSocketClient(conn *websocket.Conn, sessionID string) *WebSocketClient {
	client := &WebSocketClient{
		conn:      conn,
		sessionID: sessionID,
		createdAt: time.Now(),
		done:      make(chan struct{}),
	}
	client.UpdatePing()
	return client
}

// Close 安全关闭客户端连接
func (client *WebSocketClient) Close() {
	if atomic.CompareAndSwapInt32(&client.closed, 0, 1) {
		close(client.done)
		client.conn.Close()
	}
}

// IsClosed 检查连接是否已关闭
func (client *WebSocketClient) IsClosed() bool {
	return atomic.LoadInt32(&client.closed) == 1
}

// UpdatePing 更新最后ping时间
func (client *WebSocketClient) UpdatePing() {
	client.lastPing.Store(time.Now().UnixNano())
}

// LastPing returns when the peer last answered.
func (client *WebSocketClient) LastPing() time.Time {
	return time.Unix(0, client.lastPing.Load())
}

// writeJSON is only called from the client's writer goroutine.
func (client *WebSocketClient) writeJSON(msg WSMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	client.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return client.conn.WriteMessage(websocket.TextMessage, payload)
}

// WebSocketManager tracks open connections per form session.
type WebSocketManager struct {
	connections map[string]map[*WebSocketClient]struct{} // sessionID -> clients
	mutex       sync.RWMutex
	metrics     *utils.MetricsCollector
	logger      *utils.Logger
}

// NewWebSocketManager creates an empty manager.
func NewWebSocketManager(metrics *utils.MetricsCollector) *WebSocketManager {
	return &WebSocketManager{
		connections: make(map[string]map[*WebSocketClient]struct{}),
		metrics:     metrics,
		logger:      utils.GetLogger(),
	}
}

// registerClient 注册新客户端
func (manager *WebSocketManager) registerClient(client *WebSocketClient) {
	manager.mutex.Lock()
	if manager.connections[client.sessionID] == nil {
		manager.connections[client.sessionID] = make(map[*WebSocketClient]struct{})
	}
	manager.connections[client.sessionID][client] = struct{}{}
	manager.mutex.Unlock()

	manager.metrics.WebSocketConnected()
	manager.logger.Debug("websocket client connected", map[string]interface{}{
		"session_id": client.sessionID,
	})
}

// unregisterClient 安全注销客户端
func (manager *WebSocketManager) unregisterClient(client *WebSocketClient) {
	manager.mutex.Lock()
	connections, exists := manager.connections[client.sessionID]
	if exists {
		if _, ok := connections[client]; !ok {
			exists = false
		}
		delete(connections, client)
		if len(connections) == 0 {
			delete(manager.connections, client.sessionID)
		}
	}
	manager.mutex.Unlock()

	client.Close()
	if exists {
		manager.metrics.WebSocketDisconnected()
		manager.logger.Debug("websocket client disconnected", map[string]interface{}{
			"session_id": client.sessionID,
		})
	}
}

// ClientCount returns the number of open connections for a session.
func (manager *WebSocketManager) ClientCount(sessionID string) int {
	manager.mutex.RLock()
	defer manager.mutex.RUnlock()
	return len(manager.connections[sessionID])
}

// GetStatus 获取管理器状态
func (manager *WebSocketManager) GetStatus() map[string]interface{} {
	manager.mutex.RLock()
	defer manager.mutex.RUnlock()

	sessions := make(map[string]interface{}, len(manager.connections))
	total := 0
	for sessionID, connections := range manager.connections {
		clients := make([]interface{}, 0, len(connections))
		for client := range connections {
			if client.IsClosed() {
				continue
			}
			clients = append(clients, map[string]interface{}{
				"connected_at": client.createdAt.Format(time.RFC3339),
				"last_ping":    client.LastPing().Format(time.RFC3339),
			})
		}
		sessions[sessionID] = map[string]interface{}{
			"client_count": len(clients),
			"clients":      clients,
		}
		total += len(clients)
	}

	return map[string]interface{}{
		"total_sessions":    len(manager.connections),
		"total_connections": total,
		"sessions":          sessions,
	}
}

// CloseAll 优雅关闭所有连接
func (manager *WebSocketManager) CloseAll() {
	manager.mutex.Lock()
	clients := make([]*WebSocketClient, 0)
	for _, connections := range manager.connections {
		for client := range connections {
			clients = append(clients, client)
		}
	}
	manager.mutex.Unlock()

	for _, client := range clients {
		manager.unregisterClient(client)
	}
}
