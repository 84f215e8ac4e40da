package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/NickZhezl/LiveCodeInno/internal/domain"
	"github.com/NickZhezl/LiveCodeInno/internal/exec"
	"github.com/NickZhezl/LiveCodeInno/internal/repository"

	"github.com/golang-jwt/jwt/v4"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// 房间 ID 的字母表和长度。小写字母加数字，方便口头传达。
const (
	roomIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	roomIDLength   = 6
)

// RoomClaims 是房间会话 token 的载荷。
type RoomClaims struct {
	RoomID   string `json:"room_id"`
	UserName string `json:"user_name"`
	jwt.RegisteredClaims
}

// RoomService 负责房间的创建和加入。
type RoomService struct {
	roomRepo  repository.RoomRepository
	stateRepo repository.StateRepository
	jwtSecret []byte
	jwtExpiry time.Duration
}

// NewRoomService 创建 RoomService 实例。
// jwtSecretKey 应从安全配置中获取，jwtExpiryHours 定义会话 token 过期的小时数。
func NewRoomService(roomRepo repository.RoomRepository, stateRepo repository.StateRepository, jwtSecretKey string, jwtExpiryHours int) (*RoomService, error) {
	if roomRepo == nil || stateRepo == nil {
		panic("RoomRepository and StateRepository cannot be nil for RoomService")
	}
	if jwtSecretKey == "" {
		return nil, fmt.Errorf("JWT secret key cannot be empty")
	}
	if jwtExpiryHours <= 0 {
		jwtExpiryHours = 24 // 默认 24 小时
	}
	return &RoomService{
		roomRepo:  roomRepo,
		stateRepo: stateRepo,
		jwtSecret: []byte(jwtSecretKey),
		jwtExpiry: time.Duration(jwtExpiryHours) * time.Hour,
	}, nil
}

// CreateRoom 创建一个新房间。
// language 为空时用默认语言；passcode 为空表示房间不设口令。
func (s *RoomService) CreateRoom(ctx context.Context, language, passcode string) (*domain.Room, error) {
	if language == "" {
		language = exec.DefaultLanguage
	}
	if _, known := exec.Versions[language]; !known {
		return nil, ErrInvalidLanguage
	}
	logCtx := logrus.WithField("language", language)

	// 1. 生成唯一的房间 ID
	roomID, err := s.generateUniqueRoomID(ctx)
	if err != nil {
		logCtx.WithError(err).Error("Failed to generate unique room id")
		return nil, ErrInternalServer
	}
	logCtx = logCtx.WithField("room_id", roomID)

	// 2. 口令哈希 (如果设置了)
	var passcodeHash string
	if passcode != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(passcode), bcrypt.DefaultCost)
		if err != nil {
			logCtx.WithError(err).Error("Failed to hash room passcode")
			return nil, ErrInternalServer
		}
		passcodeHash = string(hashed)
	}

	// 3. 保存房间注册信息
	room := &domain.Room{
		ID:         roomID,
		Passcode:   passcodeHash,
		Language:   language,
		LastActive: time.Now(),
	}
	if err := s.roomRepo.Save(ctx, room); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			// 唯一性检查和插入之间被别人抢了，理论上极少发生
			logCtx.WithError(err).Error("Failed to save new room due to duplicate id")
			return nil, ErrInternalServer
		}
		logCtx.WithError(err).Error("Failed to save new room to database")
		return nil, ErrInternalServer
	}

	// 4. 初始化房间文档：起始代码 + 空闲计时器
	doc := domain.RoomDoc{
		Code:     exec.StarterSnippet(language),
		Language: language,
		Timer:    domain.NewIdleTimer(),
	}
	if err := s.stateRepo.SeedRoomDoc(ctx, roomID, doc); err != nil {
		logCtx.WithError(err).Error("Failed to seed room document")
		return nil, ErrInternalServer
	}

	logCtx.Info("Room created successfully")
	return room, nil
}

// JoinRoom 处理用户加入房间，返回房间会话 token。
// 房间文档不存在时 (例如 Redis 被清空过) 会重新播种。
func (s *RoomService) JoinRoom(ctx context.Context, roomID, userName, passcode string) (string, *domain.Room, error) {
	userName = strings.TrimSpace(userName)
	if userName == "" || len(userName) > 64 {
		return "", nil, ErrInvalidUserName
	}
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "user_name": userName})

	// 1. 查找房间
	room, err := s.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			logCtx.Warn("JoinRoom: room not found")
			return "", nil, ErrRoomNotFound
		}
		logCtx.WithError(err).Error("JoinRoom: repository error")
		return "", nil, ErrInternalServer
	}

	// 2. 校验口令
	if room.Passcode != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(room.Passcode), []byte(passcode)); err != nil {
			logCtx.Warn("JoinRoom: passcode mismatch")
			return "", nil, ErrInvalidPasscode
		}
	}

	// 3. 确保房间文档存在
	doc := domain.RoomDoc{
		Code:     exec.StarterSnippet(room.Language),
		Language: room.Language,
		Timer:    domain.NewIdleTimer(),
	}
	if err := s.stateRepo.SeedRoomDoc(ctx, roomID, doc); err != nil {
		logCtx.WithError(err).Error("JoinRoom: failed to seed room document")
		return "", nil, ErrInternalServer
	}

	// 4. 更新活跃时间，失败只记日志
	if err := s.roomRepo.Touch(ctx, roomID); err != nil {
		logCtx.WithError(err).Warn("JoinRoom: failed to touch room")
	}

	// 5. 签发会话 token
	token, err := s.generateToken(roomID, userName)
	if err != nil {
		logCtx.WithError(err).Error("JoinRoom: failed to sign session token")
		return "", nil, ErrInternalServer
	}

	logCtx.Info("User joined room successfully")
	return token, room, nil
}

// FindRoomByID 供 HTTP/WebSocket Handler 使用的简单查找。
func (s *RoomService) FindRoomByID(ctx context.Context, roomID string) (*domain.Room, error) {
	room, err := s.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		logrus.WithError(err).WithField("room_id", roomID).Error("FindRoomByID: repository error")
		return nil, ErrInternalServer
	}
	return room, nil
}

// --- 私有辅助函数 ---

// generateUniqueRoomID 生成唯一的房间 ID
func (s *RoomService) generateUniqueRoomID(ctx context.Context) (string, error) {
	const maxAttempts = 10

	for attempt := 0; attempt < maxAttempts; attempt++ {
		id, err := gonanoid.Generate(roomIDAlphabet, roomIDLength)
		if err != nil {
			return "", fmt.Errorf("failed to generate room id: %w", err)
		}
		exists, err := s.roomRepo.ExistsByID(ctx, id)
		if err != nil {
			return "", fmt.Errorf("database error checking room id: %w", err)
		}
		if !exists {
			return id, nil
		}
		logrus.WithField("room_id", id).Warnf("Generated room id already exists, retrying (attempt %d)...", attempt+1)
	}
	return "", fmt.Errorf("failed to generate a unique room id after %d attempts", maxAttempts)
}

// generateToken 为一次房间会话签发 JWT
func (s *RoomService) generateToken(roomID, userName string) (string, error) {
	now := time.Now()
	claims := RoomClaims{
		RoomID:   roomID,
		UserName: userName,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.jwtExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
