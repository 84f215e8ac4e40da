package repository

import (
	"context"

	"github.com/NickZhezl/LiveCodeInno/internal/domain"
)

// SavedVersionRepository 定义了代码版本存档在数据库中的操作。
type SavedVersionRepository interface {
	// Save 保存一条版本存档记录。
	Save(ctx context.Context, version *domain.SavedVersion) error

	// ListByRoom 按存档序号倒序返回房间的历史版本，最多 limit 条。
	ListByRoom(ctx context.Context, roomID string, limit int) ([]domain.SavedVersion, error)
}
