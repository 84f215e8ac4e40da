package repository

import (
	"context"

	"github.com/NickZhezl/LiveCodeInno/internal/domain"
)

// RoomRepository 定义了房间注册表 (MySQL) 的存储和检索操作。
// 房间的实时文档在 StateRepository，这里只存不变的元信息。
type RoomRepository interface {
	// FindByID 根据房间 ID 查找房间。
	// 如果房间不存在，返回 repository.ErrRoomNotFound。
	FindByID(ctx context.Context, id string) (*domain.Room, error)

	// Save 保存房间信息。ID 冲突时返回 repository.ErrDuplicateEntry。
	Save(ctx context.Context, room *domain.Room) error

	// ExistsByID 检查房间 ID 是否已被占用。
	ExistsByID(ctx context.Context, id string) (bool, error)

	// Touch 更新房间的最近活跃时间。
	Touch(ctx context.Context, id string) error
}
