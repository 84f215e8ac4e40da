package websocket

import (
	"errors"
	"net/http"

	"github.com/NickZhezl/LiveCodeInno/internal/hub"
	"github.com/NickZhezl/LiveCodeInno/internal/middleware"
	"github.com/NickZhezl/LiveCodeInno/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// WebSocketHandler 负责处理 WebSocket 升级请求和客户端注册
type WebSocketHandler struct {
	upgrader    websocket.Upgrader
	hub         *hub.Hub
	roomService *service.RoomService
}

// NewWebSocketHandler 创建 WebSocketHandler 实例
func NewWebSocketHandler(h *hub.Hub, roomService *service.RoomService) *WebSocketHandler {
	if h == nil {
		panic("Hub cannot be nil for WebSocketHandler")
	}
	if roomService == nil {
		panic("RoomService cannot be nil for WebSocketHandler")
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		// 允许所有来源连接 (生产环境应配置具体的允许来源)
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	return &WebSocketHandler{
		upgrader:    upgrader,
		hub:         h,
		roomService: roomService,
	}
}

// HandleConnection 处理 WebSocket 连接请求。
// URL 格式: /ws/rooms/{roomId}?token=...
// token 由 Auth 中间件校验，claims 里的 room_id 必须和 URL 一致。
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	claims, ok := middleware.RoomClaimsFromContext(c)
	if !ok {
		logrus.Warn("WS Handler: room claims not found in context, middleware missing?")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}
	roomID := c.Param("roomId")
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "user_name": claims.UserName})

	// token 不能跨房间使用
	if claims.RoomID != roomID {
		logCtx.Warn("WS Handler: token issued for a different room")
		c.JSON(http.StatusForbidden, gin.H{"error": "Token not valid for this room"})
		return
	}

	// 验证房间仍然存在
	if _, err := h.roomService.FindRoomByID(c.Request.Context(), roomID); err != nil {
		if errors.Is(err, service.ErrRoomNotFound) {
			logCtx.Warn("WS Handler: room not found")
			c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
		} else {
			logCtx.WithError(err).Error("WS Handler: error checking room existence")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to validate room"})
		}
		return
	}

	// 升级 HTTP 连接到 WebSocket
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 失败时已经写了 HTTP 错误响应，只记日志
		logCtx.WithError(err).Error("WS Handler: failed to upgrade connection")
		return
	}

	client := hub.NewClient(h.hub, conn, roomID, claims.UserName)
	registerMsg := hub.HubMessage{
		Type:   "register",
		RoomID: roomID,
		Client: client,
	}
	if !h.hub.QueueMessage(registerMsg) {
		logCtx.Error("WS Handler: hub message channel full, failed to register client")
		client.CloseConn()
		return
	}

	client.Run()
	logCtx.Info("WS Handler: client connected")
}
