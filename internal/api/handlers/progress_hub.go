package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// ProgressMessage 推送给前端的进度消息
type ProgressMessage struct {
	Type      string      `json:"type"` // progress / sample / run_finished
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// ProgressHub 提取进度 WebSocket 广播器。
// 浏览器端连 /ws/progress 就能实时看到批量提取的推进情况，
// 没有订阅者时 Broadcast 只付一次 channel 写的成本。
type ProgressHub struct {
	upgrader  websocket.Upgrader
	logger    *logrus.Logger
	broadcast chan ProgressMessage

	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

// NewProgressHub 创建广播器并启动分发协程
func NewProgressHub(logger *logrus.Logger) *ProgressHub {
	h := &ProgressHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// 进度只读不写，跨域来源直接放行
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:    logger,
		broadcast: make(chan ProgressMessage, 100),
		clients:   make(map[*websocket.Conn]bool),
	}
	go h.run()
	return h
}

func (h *ProgressHub) run() {
	for msg := range h.broadcast {
		h.mu.Lock()
		for conn := range h.clients {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.WithError(err).Debug("Progress client write failed, dropping")
				conn.Close()
				delete(h.clients, conn)
			}
		}
		h.mu.Unlock()
	}
}

// HandleWebSocket 处理 /ws/progress 连接
func (h *ProgressHub) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WithError(err).Error("Failed to upgrade websocket")
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.WithField("clients", count).Info("Progress client connected")

	// 只为感知断连而读，消息内容忽略
	go func() {
		defer func() {
			h.mu.Lock()
			delete(h.clients, conn)
			h.mu.Unlock()
			conn.Close()
			h.logger.Info("Progress client disconnected")
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					h.logger.WithError(err).Debug("Progress client read error")
				}
				return
			}
		}
	}()
}

// Broadcast 广播一条进度消息。队列满时丢弃，进度消息允许有损。
func (h *ProgressHub) Broadcast(msgType string, payload interface{}) {
	msg := ProgressMessage{
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	}
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Debug("Progress broadcast queue full, dropping message")
	}
}

// ClientCount 当前订阅者数量
func (h *ProgressHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
