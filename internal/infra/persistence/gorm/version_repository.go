package gormpersistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/NickZhezl/LiveCodeInno/internal/domain"
)

// GormSavedVersionRepository 是 SavedVersionRepository 接口的 GORM 实现
type GormSavedVersionRepository struct {
	db *gorm.DB
}

// NewGormSavedVersionRepository 创建 GormSavedVersionRepository 实例
func NewGormSavedVersionRepository(db *gorm.DB) *GormSavedVersionRepository {
	if db == nil {
		panic("database connection cannot be nil for GormSavedVersionRepository")
	}
	return &GormSavedVersionRepository{db: db}
}

// Save 实现将版本存档记录保存到数据库
// 存档是只写的，每次存档都是新记录，使用 Create
func (r *GormSavedVersionRepository) Save(ctx context.Context, version *domain.SavedVersion) error {
	err := r.db.WithContext(ctx).Create(version).Error
	if err != nil {
		return fmt.Errorf("gorm: failed to save version (room %s, seq %d): %w", version.RoomID, version.Seq, err)
	}
	return nil
}

// ListByRoom 实现按存档序号倒序返回房间的历史版本
func (r *GormSavedVersionRepository) ListByRoom(ctx context.Context, roomID string, limit int) ([]domain.SavedVersion, error) {
	if limit <= 0 {
		limit = 50 // 默认返回 50 条
	}
	var versions []domain.SavedVersion
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("seq DESC").
		Limit(limit).
		Find(&versions).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: failed to list versions for room %s: %w", roomID, err)
	}
	return versions, nil
}
