package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/NickZhezl/LiveCodeInno/internal/domain"
	"github.com/NickZhezl/LiveCodeInno/internal/dto"
	"github.com/NickZhezl/LiveCodeInno/internal/repository"
	"github.com/NickZhezl/LiveCodeInno/internal/service"

	"github.com/sirupsen/logrus"
)

// 包级别的 WebSocket 常量，供 hub 和 client 包内使用
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024 // 代码缓冲区整段传输，放宽到 64KB
)

// HubMessage 定义了在 Hub 内部通道传递的消息类型
type HubMessage struct {
	Type    string // "register", "unregister", "message"
	RoomID  string
	Client  *Client
	RawData []byte // 仅用于 message (原始 WebSocket 消息)
}

// roomSub 是一个房间的 Redis 订阅句柄
type roomSub struct {
	cancel context.CancelFunc
	close  func() error
}

// Hub 维护活跃客户端集合并协调消息处理。
// 每个有本地客户端的房间持有一份 Redis 频道订阅，
// 事件经订阅回流后扇出给本地客户端，因此多实例部署下
// 所有实例的客户端都能收到同一房间的更新。
type Hub struct {
	// 内部通道，处理所有来自 Client 的事件
	messageChan chan HubMessage

	// 客户端集合，按 RoomID 组织
	rooms   map[string]map[*Client]bool
	subs    map[string]*roomSub
	roomsMu sync.RWMutex

	// 注入的 Service 和状态仓库
	syncSvc    *service.SyncService
	timerSvc   *service.TimerService
	runnerSvc  *service.RunnerService
	versionSvc *service.VersionService
	stateRepo  repository.StateRepository
}

// NewHub 创建并返回一个新的 Hub 实例
func NewHub(syncSvc *service.SyncService, timerSvc *service.TimerService, runnerSvc *service.RunnerService, versionSvc *service.VersionService, stateRepo repository.StateRepository) *Hub {
	if syncSvc == nil || timerSvc == nil || runnerSvc == nil || versionSvc == nil || stateRepo == nil {
		panic("all dependencies must be provided for Hub")
	}
	return &Hub{
		messageChan: make(chan HubMessage, 512),
		rooms:       make(map[string]map[*Client]bool),
		subs:        make(map[string]*roomSub),
		syncSvc:     syncSvc,
		timerSvc:    timerSvc,
		runnerSvc:   runnerSvc,
		versionSvc:  versionSvc,
		stateRepo:   stateRepo,
	}
}

// Run 启动 Hub 的主事件处理循环。
// 它应该在一个单独的 goroutine 中运行。
func (h *Hub) Run() {
	log := logrus.WithField("component", "hub")
	log.Info("Hub is running...")

	for msg := range h.messageChan {
		switch msg.Type {
		case "register":
			h.registerClient(msg.Client)
		case "unregister":
			h.unregisterClient(msg.Client)
		case "message":
			// 异步处理，避免一次慢执行阻塞整个 Hub
			go h.handleClientMessage(msg)
		default:
			log.Warnf("Hub: Received unknown message type: %s in room %s", msg.Type, msg.RoomID)
		}
	}
	log.Info("Hub is shutting down...")
}

// registerClient 处理客户端注册逻辑
func (h *Hub) registerClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: Attempted to register a nil client")
		return
	}
	roomID := client.RoomID()
	logCtx := logrus.WithFields(logrus.Fields{
		"room_id":   roomID,
		"user_name": client.UserName(),
		"conn_id":   client.ConnID(),
	})

	h.roomsMu.Lock()
	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[*Client]bool)
		// 房间的第一个本地客户端：建立 Redis 订阅
		h.startRoomSubscription(roomID)
		logCtx.Info("Client list created for new room")
	}
	h.rooms[roomID][client] = true
	h.roomsMu.Unlock()
	logCtx.Info("Client registered to Hub")

	// 异步发送初始快照给新客户端
	go h.sendInitialSnapshot(client)
}

// unregisterClient 处理客户端注销逻辑
func (h *Hub) unregisterClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: Attempted to unregister a nil client")
		return
	}
	roomID := client.RoomID()
	logCtx := logrus.WithFields(logrus.Fields{
		"room_id":   roomID,
		"user_name": client.UserName(),
		"conn_id":   client.ConnID(),
	})

	h.roomsMu.Lock()
	if roomClients, roomExists := h.rooms[roomID]; roomExists {
		if _, clientExists := roomClients[client]; clientExists {
			delete(roomClients, client)

			// 关闭 send 通道，WritePump 随之退出
			select {
			case <-client.send:
				logCtx.Warn("Client send channel already closed or has data during unregister")
			default:
				close(client.send)
			}

			if len(roomClients) == 0 {
				delete(h.rooms, roomID)
				h.stopRoomSubscription(roomID)
				logCtx.Info("Room empty, removed from Hub")
			}
		} else {
			logCtx.Warn("Client not found in room during unregister")
		}
	} else {
		logCtx.Warn("Room not found during client unregister")
	}
	h.roomsMu.Unlock()

	// 光标随连接消失
	go h.syncSvc.DropCursor(context.Background(), roomID, client.UserName())
	logCtx.Info("Client unregistered from Hub")
}

// startRoomSubscription 建立房间频道订阅，调用方需持有 roomsMu
func (h *Hub) startRoomSubscription(roomID string) {
	ctx, cancel := context.WithCancel(context.Background())
	events, closeFn, err := h.stateRepo.SubscribeRoom(ctx, roomID)
	if err != nil {
		cancel()
		logrus.WithError(err).WithField("room_id", roomID).Error("Failed to subscribe to room channel")
		return
	}
	h.subs[roomID] = &roomSub{cancel: cancel, close: closeFn}
	go func() {
		for event := range events {
			h.deliver(event)
		}
	}()
}

// stopRoomSubscription 取消房间频道订阅，调用方需持有 roomsMu
func (h *Hub) stopRoomSubscription(roomID string) {
	sub, ok := h.subs[roomID]
	if !ok {
		return
	}
	delete(h.subs, roomID)
	sub.cancel()
	if err := sub.close(); err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Warn("Failed to close room subscription")
	}
}

// sendInitialSnapshot 获取房间文档和光标，推给新连接的客户端
func (h *Hub) sendInitialSnapshot(client *Client) {
	if client == nil {
		return
	}
	logCtx := logrus.WithFields(logrus.Fields{
		"room_id":   client.RoomID(),
		"user_name": client.UserName(),
		"operation": "sendInitialSnapshot",
	})

	ctx := context.Background()
	doc, cursors, err := h.syncSvc.RoomSnapshot(ctx, client.RoomID())
	if err != nil {
		logCtx.WithError(err).Error("Failed to get room snapshot")
		client.sendEnvelope(mustEnvelope(dto.TypeError, dto.ErrorMsg{Message: "Failed to load room state"}))
		return
	}

	// 初始同步没有来源标记，总是应用
	client.sendEnvelope(mustEnvelope(dto.TypeDocSync, dto.DocSync{
		Code:     doc.Code,
		Language: doc.Language,
		Version:  doc.Version,
	}))
	client.sendEnvelope(mustEnvelope(dto.TypeTimerSync, dto.TimerSync{Timer: doc.Timer}))
	client.sendEnvelope(mustEnvelope(dto.TypeCursorSync, dto.CursorSync{Cursors: withoutUser(cursors, client.UserName())}))
	if doc.LastRun != nil {
		client.sendEnvelope(mustEnvelope(dto.TypeRunResult, dto.RunResultMsg{LastRun: *doc.LastRun}))
	}
	logCtx.WithField("version", doc.Version).Info("Initial snapshot sent")
}

// handleClientMessage 解析并分发一条客户端消息
func (h *Hub) handleClientMessage(msg HubMessage) {
	client := msg.Client
	if client == nil {
		return
	}
	ctx := context.Background()
	logCtx := logrus.WithFields(logrus.Fields{
		"room_id":   msg.RoomID,
		"user_name": client.UserName(),
	})

	var envelope dto.Envelope
	if err := json.Unmarshal(msg.RawData, &envelope); err != nil {
		logCtx.WithError(err).Warn("Failed to parse client message")
		client.sendEnvelope(mustEnvelope(dto.TypeError, dto.ErrorMsg{Message: "malformed message"}))
		return
	}
	logCtx = logCtx.WithField("msg_type", envelope.Type)

	var err error
	switch envelope.Type {
	case dto.TypeDocUpdate:
		var payload dto.DocUpdate
		if err = json.Unmarshal(envelope.Payload, &payload); err != nil {
			break
		}
		rev := payload.Rev
		if rev == 0 {
			rev = client.session.TrackWrite()
		} else {
			client.session.Track(rev)
		}
		_, err = h.syncSvc.ApplyEdit(ctx, msg.RoomID, client.UserName(), client.ConnID(), payload.Code, rev)

	case dto.TypeLangUpdate:
		var payload dto.LangUpdate
		if err = json.Unmarshal(envelope.Payload, &payload); err != nil {
			break
		}
		_, err = h.syncSvc.ChangeLanguage(ctx, msg.RoomID, client.UserName(), payload.Language)

	case dto.TypeCursorUpdate:
		var payload dto.CursorUpdate
		if err = json.Unmarshal(envelope.Payload, &payload); err != nil {
			break
		}
		err = h.syncSvc.MoveCursor(ctx, msg.RoomID, client.UserName(), client.ConnID(), payload.LineNumber, payload.Column)

	case dto.TypeTimerStart:
		err = h.timerSvc.Start(ctx, msg.RoomID)

	case dto.TypeTimerStop:
		payload := dto.TimerStop{Elapsed: -1}
		if len(envelope.Payload) > 0 {
			if err = json.Unmarshal(envelope.Payload, &payload); err != nil {
				break
			}
		}
		err = h.timerSvc.Stop(ctx, msg.RoomID, payload.Elapsed)

	case dto.TypeTimerReset:
		err = h.timerSvc.Reset(ctx, msg.RoomID)

	case dto.TypeRunRequest:
		var payload dto.RunRequest
		if err = json.Unmarshal(envelope.Payload, &payload); err != nil {
			break
		}
		_, err = h.runnerSvc.Run(ctx, msg.RoomID, client.UserName(), payload.Language, payload.Source)
		if err == service.ErrStaleRun {
			// 被更新的运行取代，静默丢弃
			err = nil
		}

	case dto.TypeSaveRequest:
		var payload dto.SaveRequest
		if len(envelope.Payload) > 0 {
			if err = json.Unmarshal(envelope.Payload, &payload); err != nil {
				break
			}
		}
		_, err = h.versionSvc.SaveVersion(ctx, msg.RoomID, payload.Timestamp)

	default:
		logCtx.Warn("Unknown message type from client")
		client.sendEnvelope(mustEnvelope(dto.TypeError, dto.ErrorMsg{Message: "unknown message type: " + envelope.Type}))
		return
	}

	if err != nil {
		logCtx.WithError(err).Warn("Client message handling failed")
		client.sendEnvelope(mustEnvelope(dto.TypeError, dto.ErrorMsg{Message: err.Error()}))
	}
}

// deliver 把一条订阅回流的事件扇出给本地客户端。
// 规则：跳过来源连接；doc.sync 额外按 (用户, rev) 做回声判定；
// cursor.sync 在每个客户端视角里去掉它自己的光标。
func (h *Hub) deliver(event dto.Event) {
	h.roomsMu.RLock()
	roomClients := h.rooms[event.RoomID]
	clients := make([]*Client, 0, len(roomClients))
	for client := range roomClients {
		clients = append(clients, client)
	}
	h.roomsMu.RUnlock()
	if len(clients) == 0 {
		return
	}

	var docOrigin *dto.Origin
	var cursorPayload *dto.CursorSync
	switch event.Message.Type {
	case dto.TypeDocSync:
		var payload dto.DocSync
		if err := json.Unmarshal(event.Message.Payload, &payload); err == nil {
			docOrigin = payload.Origin
		}
	case dto.TypeCursorSync:
		var payload dto.CursorSync
		if err := json.Unmarshal(event.Message.Payload, &payload); err == nil {
			cursorPayload = &payload
		}
	}

	for _, client := range clients {
		if event.OriginConn != "" && client.ConnID() == event.OriginConn {
			// 来源连接不回发，但它登记的写必须在回流时销账
			client.session.Settle(docOrigin)
			continue
		}
		if docOrigin != nil && !client.session.ShouldApply(docOrigin) {
			continue
		}
		msg := event.Message
		if cursorPayload != nil {
			filtered, err := dto.NewEnvelope(dto.TypeCursorSync, dto.CursorSync{
				Cursors: withoutUser(cursorPayload.Cursors, client.UserName()),
			})
			if err != nil {
				continue
			}
			msg = filtered
		}
		client.sendEnvelope(msg)
	}
}

// --- 公共方法 ---

// QueueMessage 将消息放入 Hub 的处理队列 (非阻塞)。
// 这是 Client 向 Hub 发送消息的安全方式。
// 返回 true 如果消息成功入队，false 如果队列已满。
func (h *Hub) QueueMessage(msg HubMessage) bool {
	select {
	case h.messageChan <- msg:
		return true
	default:
		logrus.WithFields(logrus.Fields{
			"message_type": msg.Type,
			"room_id":      msg.RoomID,
		}).Warn("Hub message channel full, dropping message")
		return false
	}
}

// StopAllSubscriptions 在应用关闭时取消所有房间的 Redis 订阅。
func (h *Hub) StopAllSubscriptions() {
	h.roomsMu.Lock()
	defer h.roomsMu.Unlock()
	for roomID := range h.subs {
		h.stopRoomSubscription(roomID)
	}
	logrus.Info("Hub: All room subscriptions stopped")
}

// ActiveRoomIDs 返回有本地客户端的房间 ID 列表。
func (h *Hub) ActiveRoomIDs() []string {
	h.roomsMu.RLock()
	defer h.roomsMu.RUnlock()
	ids := make([]string, 0, len(h.rooms))
	for id := range h.rooms {
		ids = append(ids, id)
	}
	return ids
}

// --- 辅助函数 ---

// withoutUser 过滤掉指定用户自己的光标
func withoutUser(cursors []domain.Cursor, userName string) []domain.Cursor {
	out := make([]domain.Cursor, 0, len(cursors))
	for _, cursor := range cursors {
		if cursor.UserName != userName {
			out = append(out, cursor)
		}
	}
	return out
}

// mustEnvelope 序列化固定结构的 payload，失败说明结构本身有误
func mustEnvelope(msgType string, payload interface{}) dto.Envelope {
	envelope, err := dto.NewEnvelope(msgType, payload)
	if err != nil {
		logrus.WithError(err).WithField("msg_type", msgType).Error("Failed to marshal envelope")
		return dto.Envelope{Type: msgType}
	}
	return envelope
}
