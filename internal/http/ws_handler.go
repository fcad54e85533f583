package httpapi

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"roadsense-data/internal/registry"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeTimeout = 5 * time.Second

// wsChannel registry.Channel 的 WebSocket 适配器
// gorilla 的连接不允许并发写，Send 用互斥锁串行化
type wsChannel struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsChannel) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

var _ registry.Channel = (*wsChannel)(nil)

// WSHandler /ws/{user_id} 实时推送端点
// 连接状态机：Connecting → Open（订阅）→ Closed（退订，句柄不复用）
type WSHandler struct {
	reg      *registry.Registry
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewWSHandler(reg *registry.Registry, logger *zap.Logger) *WSHandler {
	return &WSHandler{
		reg: reg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// 推送端点不做鉴权（非目标），跨源放行
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	uidStr := strings.Trim(strings.TrimPrefix(r.URL.Path, "/ws"), "/")
	userID, err := parseID(uidStr)
	if err != nil || strings.Contains(uidStr, "/") {
		writeError(w, http.StatusBadRequest, "invalid user id in path")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade 已经写了错误响应
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	ch := &wsChannel{conn: conn}
	h.reg.Subscribe(userID, ch)
	h.logger.Info("live channel opened", zap.Int64("user_id", userID))

	defer func() {
		h.reg.Unsubscribe(userID, ch)
		_ = conn.Close()
		h.logger.Info("live channel closed", zap.Int64("user_id", userID))
	}()

	// 入站帧只作为保活信号，内容忽略；读出错即视为断开
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
