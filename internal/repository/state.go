package repository

import (
	"context"
	"time"

	"github.com/NickZhezl/LiveCodeInno/internal/domain"
	"github.com/NickZhezl/LiveCodeInno/internal/dto"
)

// StateRepository 定义了与房间实时状态相关的操作，由 Redis 实现。
// 房间文档 (代码、语言、计时器、最近一次运行结果) 存在一个 hash 里，
// 光标单独一个 hash，版本号随每次写入原子递增。
type StateRepository interface {
	// === Room Document ===

	// GetRoomDoc 获取房间当前的完整文档状态。
	// 房间未初始化时返回 repository.ErrNotFound。
	GetRoomDoc(ctx context.Context, roomID string) (domain.RoomDoc, error)

	// SeedRoomDoc 仅在文档不存在时写入初始状态，幂等。
	SeedRoomDoc(ctx context.Context, roomID string, doc domain.RoomDoc) error

	// SetCode 覆盖共享缓冲区并原子递增文档版本号，返回新版本。
	SetCode(ctx context.Context, roomID string, code string) (uint64, error)

	// SetLanguage 切换语言；seedCode 非空时同时覆盖缓冲区
	// (空缓冲区切语言时写入该语言的起始代码)。同样递增版本号。
	SetLanguage(ctx context.Context, roomID string, language, seedCode string) (uint64, error)

	// SetTimer 覆盖计时器状态。
	SetTimer(ctx context.Context, roomID string, timer domain.TimerState) error

	// SetLastRun 覆盖最近一次运行结果。
	SetLastRun(ctx context.Context, roomID string, run domain.LastRun) error

	// === Counters ===

	// NextRunSeq 原子递增房间的运行序号并返回新值。
	NextRunSeq(ctx context.Context, roomID string) (int64, error)

	// LatestRunSeq 返回房间当前的运行序号，未运行过时为 0。
	LatestRunSeq(ctx context.Context, roomID string) (int64, error)

	// NextSaveSeq 原子递增房间的存档序号并返回新值。
	NextSaveSeq(ctx context.Context, roomID string) (int64, error)

	// === Cursors ===

	// SetCursor 写入或更新一个用户的光标。
	SetCursor(ctx context.Context, roomID string, cursor domain.Cursor) error

	// ListCursors 返回房间内的全部光标，含已过期的；过滤交给调用方。
	ListCursors(ctx context.Context, roomID string) ([]domain.Cursor, error)

	// RemoveCursor 删除一个用户的光标 (断开连接时)。
	RemoveCursor(ctx context.Context, roomID string, userName string) error

	// PurgeStaleCursors 删除 olderThan 之前未更新的光标，返回删除数量。
	// 定时清理任务用，会 SCAN 所有房间的光标 key。
	PurgeStaleCursors(ctx context.Context, olderThan time.Duration) (int, error)

	// === Rate Limiting ===

	// CheckRateLimit 检查给定 key 的请求频率是否超限，并递增计数。
	// 返回 true 如果超限。
	CheckRateLimit(ctx context.Context, key string, limit int, duration time.Duration) (bool, error)

	// === PubSub ===

	// PublishEvent 将事件发布到房间频道，扇出到所有实例。
	PublishEvent(ctx context.Context, event dto.Event) error

	// SubscribeRoom 订阅房间频道，返回事件流和取消函数。
	SubscribeRoom(ctx context.Context, roomID string) (<-chan dto.Event, func() error, error)
}
