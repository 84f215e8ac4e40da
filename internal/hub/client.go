package hub

import (
	"encoding/json"
	"time"

	"github.com/NickZhezl/LiveCodeInno/internal/dto"
	"github.com/NickZhezl/LiveCodeInno/internal/metrics"
	"github.com/NickZhezl/LiveCodeInno/internal/service"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Client 代表一个连接到 Hub 的 WebSocket 客户端。
// connID 每条连接唯一，和用户名无关：同一个用户开两个标签页
// 就是两个 Client，各自有独立的回声判定会话。
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	roomID   string
	userName string
	connID   string
	session  *service.Session
	send     chan []byte
}

// NewClient 创建一个新的 Client 实例
func NewClient(hub *Hub, conn *websocket.Conn, roomID, userName string) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		roomID:   roomID,
		userName: userName,
		connID:   uuid.NewString(),
		session:  service.NewSession(userName),
		send:     make(chan []byte, 256),
	}
}

// Run 启动客户端的读写 goroutine
func (c *Client) Run() {
	metrics.WSConnections.Inc()
	go c.WritePump()
	go c.ReadPump()
}

// ReadPump 将消息从 WebSocket 连接泵送到 Hub 的处理通道。
// 它在自己的 goroutine 中运行。
func (c *Client) ReadPump() {
	defer func() {
		metrics.WSConnections.Dec()
		unregisterMsg := HubMessage{Type: "unregister", RoomID: c.roomID, Client: c}
		select {
		case c.hub.messageChan <- unregisterMsg:
		case <-time.After(1 * time.Second):
			logrus.WithFields(logrus.Fields{"user_name": c.userName, "room_id": c.roomID}).Warn("Timeout sending unregister message to Hub channel")
		}
		c.conn.Close()
		logrus.WithFields(logrus.Fields{"user_name": c.userName, "room_id": c.roomID}).Info("readPump exited, unregistered client")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			logCtx := logrus.WithFields(logrus.Fields{"user_name": c.userName, "room_id": c.roomID})
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logCtx.WithError(err).Warn("WebSocket read error (unexpected close)")
			} else {
				logCtx.Debug("WebSocket connection closed normally or read error")
			}
			break
		}

		// 只处理文本消息
		if messageType != websocket.TextMessage {
			continue
		}
		msg := HubMessage{
			Type:    "message",
			RoomID:  c.roomID,
			Client:  c,
			RawData: message,
		}
		// 非阻塞发送到 Hub，如果 Hub 处理不过来则丢弃
		select {
		case c.hub.messageChan <- msg:
		default:
			logrus.WithFields(logrus.Fields{"user_name": c.userName, "room_id": c.roomID}).Warn("Hub message channel full, dropping client message")
		}
	}
}

// WritePump 将消息从 Client 的 send 通道泵送到 WebSocket 连接。
// 它在自己的 goroutine 中运行。
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		logrus.WithFields(logrus.Fields{"user_name": c.userName, "room_id": c.roomID}).Info("writePump exited")
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// send 通道被 Hub 关闭了（注销时）
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logrus.WithFields(logrus.Fields{"user_name": c.userName, "room_id": c.roomID}).WithError(err).Warn("Failed to write message to websocket")
				return
			}
			_ = c.conn.SetWriteDeadline(time.Time{})

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logrus.WithFields(logrus.Fields{"user_name": c.userName, "room_id": c.roomID}).WithError(err).Warn("Failed to send ping message")
				return
			}
			_ = c.conn.SetWriteDeadline(time.Time{})
		}
	}
}

// sendEnvelope 序列化信封并放入发送队列 (非阻塞)
func (c *Client) sendEnvelope(envelope dto.Envelope) {
	data, err := json.Marshal(envelope)
	if err != nil {
		logrus.WithError(err).WithField("msg_type", envelope.Type).Error("Failed to marshal envelope for client")
		return
	}
	select {
	case c.send <- data:
	default:
		// 慢客户端的队列满了，丢弃这条消息，交给 ping 超时断开它
		logrus.WithFields(logrus.Fields{"user_name": c.userName, "room_id": c.roomID}).Warn("Client send channel full, dropping message")
	}
}

func (c *Client) RoomID() string   { return c.roomID }
func (c *Client) UserName() string { return c.userName }
func (c *Client) ConnID() string   { return c.connID }
func (c *Client) CloseConn()       { c.conn.Close() }
