package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/NickZhezl/LiveCodeInno/internal/domain"
	"github.com/NickZhezl/LiveCodeInno/internal/dto"
	"github.com/NickZhezl/LiveCodeInno/internal/exec"
	"github.com/NickZhezl/LiveCodeInno/internal/repository"

	"github.com/sirupsen/logrus"
)

// CursorTTL 是光标的存活窗口：超过这个时间没有更新的光标
// 在快照和广播中都不出现。
const CursorTTL = 60 * time.Second

// SyncService 负责房间文档的实时同步：
// 编辑、语言切换、光标移动，以及加入时的完整快照。
// 每次写入都递增文档版本号并向房间频道发布事件。
type SyncService struct {
	stateRepo repository.StateRepository
}

// NewSyncService 创建 SyncService 实例。
func NewSyncService(stateRepo repository.StateRepository) *SyncService {
	if stateRepo == nil {
		panic("StateRepository cannot be nil for SyncService")
	}
	return &SyncService{stateRepo: stateRepo}
}

// ApplyEdit 应用一次编辑：覆盖缓冲区、递增版本号、广播 doc.sync。
// connID 标记来源连接，广播时跳过它；rev 是客户端的本地写序号，
// 随事件带回，让同名用户的其他连接判断回声。
func (s *SyncService) ApplyEdit(ctx context.Context, roomID, userName, connID, code string, rev uint64) (uint64, error) {
	version, err := s.stateRepo.SetCode(ctx, roomID, code)
	if err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Error("ApplyEdit: failed to set code")
		return 0, ErrInternalServer
	}

	doc, err := s.stateRepo.GetRoomDoc(ctx, roomID)
	if err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Error("ApplyEdit: failed to read room doc")
		return 0, ErrInternalServer
	}

	msg, err := dto.NewEnvelope(dto.TypeDocSync, dto.DocSync{
		Code:     code,
		Language: doc.Language,
		Version:  version,
		Origin:   &dto.Origin{UserName: userName, Rev: rev},
	})
	if err != nil {
		return 0, ErrInternalServer
	}
	if err := s.stateRepo.PublishEvent(ctx, dto.Event{RoomID: roomID, OriginConn: connID, Message: msg}); err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Error("ApplyEdit: failed to publish doc.sync")
		return 0, ErrInternalServer
	}
	return version, nil
}

// ChangeLanguage 切换房间语言。
// 当前缓冲区为空时写入该语言的起始代码。
// 语言切换对所有人可见，包括发起者，所以事件不带来源连接。
func (s *SyncService) ChangeLanguage(ctx context.Context, roomID, userName, language string) (uint64, error) {
	if _, known := exec.Versions[language]; !known {
		return 0, ErrInvalidLanguage
	}

	doc, err := s.stateRepo.GetRoomDoc(ctx, roomID)
	if err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Error("ChangeLanguage: failed to read room doc")
		return 0, ErrInternalServer
	}

	seedCode := ""
	if doc.Code == "" {
		seedCode = exec.StarterSnippet(language)
	}
	version, err := s.stateRepo.SetLanguage(ctx, roomID, language, seedCode)
	if err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Error("ChangeLanguage: failed to set language")
		return 0, ErrInternalServer
	}

	code := doc.Code
	if seedCode != "" {
		code = seedCode
	}
	msg, err := dto.NewEnvelope(dto.TypeDocSync, dto.DocSync{
		Code:     code,
		Language: language,
		Version:  version,
	})
	if err != nil {
		return 0, ErrInternalServer
	}
	if err := s.stateRepo.PublishEvent(ctx, dto.Event{RoomID: roomID, Message: msg}); err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Error("ChangeLanguage: failed to publish doc.sync")
		return 0, ErrInternalServer
	}
	return version, nil
}

// MoveCursor 更新一个用户的光标并广播当前存活的光标集合。
func (s *SyncService) MoveCursor(ctx context.Context, roomID, userName, connID string, lineNumber, column int) error {
	if lineNumber < 1 {
		lineNumber = 1
	}
	if column < 1 {
		column = 1
	}
	cursor := domain.Cursor{
		UserName:   userName,
		Color:      domain.ColorFor(userName),
		LineNumber: lineNumber,
		Column:     column,
		UpdatedAt:  time.Now().UnixMilli(),
	}
	if err := s.stateRepo.SetCursor(ctx, roomID, cursor); err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Error("MoveCursor: failed to set cursor")
		return ErrInternalServer
	}

	cursors, err := s.LiveCursors(ctx, roomID)
	if err != nil {
		return err
	}
	msg, err := dto.NewEnvelope(dto.TypeCursorSync, dto.CursorSync{Cursors: cursors})
	if err != nil {
		return ErrInternalServer
	}
	if err := s.stateRepo.PublishEvent(ctx, dto.Event{RoomID: roomID, OriginConn: connID, Message: msg}); err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Error("MoveCursor: failed to publish cursor.sync")
		return ErrInternalServer
	}
	return nil
}

// DropCursor 删除一个用户的光标 (连接断开时) 并广播剩余集合。
func (s *SyncService) DropCursor(ctx context.Context, roomID, userName string) {
	if err := s.stateRepo.RemoveCursor(ctx, roomID, userName); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{"room_id": roomID, "user_name": userName}).
			Warn("DropCursor: failed to remove cursor")
		return
	}
	cursors, err := s.LiveCursors(ctx, roomID)
	if err != nil {
		return
	}
	msg, err := dto.NewEnvelope(dto.TypeCursorSync, dto.CursorSync{Cursors: cursors})
	if err != nil {
		return
	}
	if err := s.stateRepo.PublishEvent(ctx, dto.Event{RoomID: roomID, Message: msg}); err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Warn("DropCursor: failed to publish cursor.sync")
	}
}

// LiveCursors 返回存活窗口内的光标。
func (s *SyncService) LiveCursors(ctx context.Context, roomID string) ([]domain.Cursor, error) {
	all, err := s.stateRepo.ListCursors(ctx, roomID)
	if err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Error("LiveCursors: failed to list cursors")
		return nil, ErrInternalServer
	}
	cutoff := time.Now().Add(-CursorTTL).UnixMilli()
	live := make([]domain.Cursor, 0, len(all))
	for _, cursor := range all {
		if cursor.UpdatedAt >= cutoff {
			live = append(live, cursor)
		}
	}
	return live, nil
}

// RoomSnapshot 返回房间文档和存活光标，用于连接建立时的初始同步。
// 文档意外缺失 (如 Redis 被清空) 时用默认语言的起始代码重建。
func (s *SyncService) RoomSnapshot(ctx context.Context, roomID string) (domain.RoomDoc, []domain.Cursor, error) {
	doc, err := s.stateRepo.GetRoomDoc(ctx, roomID)
	if errors.Is(err, repository.ErrNotFound) {
		logrus.WithField("room_id", roomID).Warn("RoomSnapshot: room doc missing, reseeding")
		seed := domain.RoomDoc{
			Code:     exec.StarterSnippet(exec.DefaultLanguage),
			Language: exec.DefaultLanguage,
			Timer:    domain.NewIdleTimer(),
		}
		if seedErr := s.stateRepo.SeedRoomDoc(ctx, roomID, seed); seedErr != nil {
			logrus.WithError(seedErr).WithField("room_id", roomID).Error("RoomSnapshot: failed to reseed room doc")
			return domain.RoomDoc{}, nil, ErrRoomNotInitialized
		}
		doc, err = s.stateRepo.GetRoomDoc(ctx, roomID)
	}
	if err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Error("RoomSnapshot: failed to read room doc")
		return domain.RoomDoc{}, nil, ErrRoomNotInitialized
	}
	cursors, err := s.LiveCursors(ctx, roomID)
	if err != nil {
		return domain.RoomDoc{}, nil, err
	}
	return doc, cursors, nil
}

// Session 是一个连接的回声判定器。
// 编辑经服务端绕一圈回来时，同名用户的连接靠 (用户名, rev)
// 对判断这条 doc.sync 是不是自己刚写的，是则不回放到本地缓冲区。
// 旧方案用 "忽略接下来 100ms 内的所有远端更新" 的时间窗，
// 会吞掉窗口内别人的编辑，这里改为精确对账。
type Session struct {
	mu       sync.Mutex
	userName string
	nextRev  uint64
	pending  map[uint64]struct{}
}

// NewSession 创建连接会话。
func NewSession(userName string) *Session {
	return &Session{
		userName: userName,
		pending:  make(map[uint64]struct{}),
	}
}

// UserName 返回会话的用户名。
func (s *Session) UserName() string {
	return s.userName
}

// TrackWrite 登记一次本地写入，返回分配的 rev。
// 客户端没有自带 rev 时用这个。
func (s *Session) TrackWrite() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextRev++
	s.pending[s.nextRev] = struct{}{}
	return s.nextRev
}

// Track 登记一次客户端自带 rev 的写入。
func (s *Session) Track(rev uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rev > s.nextRev {
		s.nextRev = rev
	}
	s.pending[rev] = struct{}{}
}

// ShouldApply 判断一条 doc.sync 是否应回放到本地。
// 返回 false 表示这是自己写入的回声。
func (s *Session) ShouldApply(origin *dto.Origin) bool {
	if origin == nil || origin.UserName != s.userName {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ours := s.pending[origin.Rev]; ours {
		delete(s.pending, origin.Rev)
		return false
	}
	// 同名用户的另一个连接写的，照常应用
	return true
}

// Settle 销掉一条写登记。
// 来源连接自己收到写回流时调用：这条通知本来就不回发给它，
// 但登记必须在这里对账销掉，否则 pending 随每次编辑无限增长。
func (s *Session) Settle(origin *dto.Origin) {
	if origin == nil || origin.UserName != s.userName {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, origin.Rev)
}
