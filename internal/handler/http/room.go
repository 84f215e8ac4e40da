package http

import (
	"net/http"

	"github.com/NickZhezl/LiveCodeInno/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RoomHandler 封装了与房间管理相关的 HTTP 处理逻辑
type RoomHandler struct {
	roomService *service.RoomService
}

// NewRoomHandler 创建 RoomHandler 实例
func NewRoomHandler(roomService *service.RoomService) *RoomHandler {
	return &RoomHandler{roomService: roomService}
}

// CreateRoomRequest 定义创建房间请求的结构体
type CreateRoomRequest struct {
	Language string `json:"language"`
	Passcode string `json:"passcode"`
}

// CreateRoomResponse 定义创建房间成功的响应结构体
type CreateRoomResponse struct {
	Message  string `json:"message"`
	RoomID   string `json:"room_id"`
	Language string `json:"language"`
}

// CreateRoom 处理创建新房间的请求
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	// 请求体可以为空：默认语言、不设口令
	var req CreateRoomRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			logrus.WithError(err).Warn("Handler.CreateRoom: Invalid input format")
			ErrorResponse(c, http.StatusBadRequest, "Invalid input")
			return
		}
	}

	newRoom, err := h.roomService.CreateRoom(c.Request.Context(), req.Language, req.Passcode)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	logrus.WithFields(logrus.Fields{"room_id": newRoom.ID, "language": newRoom.Language}).Info("Handler.CreateRoom: Room created successfully")
	SuccessResponse(c, http.StatusOK, CreateRoomResponse{
		Message:  "Room created successfully",
		RoomID:   newRoom.ID,
		Language: newRoom.Language,
	})
}

// JoinRoomRequest 定义加入房间请求的结构体
type JoinRoomRequest struct {
	RoomID   string `json:"room_id" binding:"required"`
	UserName string `json:"user_name" binding:"required"`
	Passcode string `json:"passcode"`
}

// JoinRoomResponse 定义加入房间成功的响应结构体
type JoinRoomResponse struct {
	Message  string `json:"message"`
	RoomID   string `json:"room_id"`
	Language string `json:"language"`
	Token    string `json:"token"` // 房间会话 token，WebSocket 连接时携带
}

// JoinRoom 处理用户加入房间的请求
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	var req JoinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Handler.JoinRoom: Invalid input format")
		ErrorResponse(c, http.StatusBadRequest, "Invalid input: room_id and user_name are required")
		return
	}
	logCtx := logrus.WithFields(logrus.Fields{"room_id": req.RoomID, "user_name": req.UserName})

	token, room, err := h.roomService.JoinRoom(c.Request.Context(), req.RoomID, req.UserName, req.Passcode)
	if err != nil {
		logCtx.WithError(err).Warn("Handler.JoinRoom: Failed to join room via service")
		HandleServiceError(c, err)
		return
	}

	logCtx.Info("Handler.JoinRoom: User joined room successfully")
	SuccessResponse(c, http.StatusOK, JoinRoomResponse{
		Message:  "Joined room successfully",
		RoomID:   room.ID,
		Language: room.Language,
		Token:    token,
	})
}
