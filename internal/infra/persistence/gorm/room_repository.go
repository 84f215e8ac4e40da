package gormpersistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"github.com/NickZhezl/LiveCodeInno/internal/domain"
	"github.com/NickZhezl/LiveCodeInno/internal/repository"
)

// GormRoomRepository 是 RoomRepository 接口的 GORM 实现
type GormRoomRepository struct {
	db *gorm.DB
}

// NewGormRoomRepository 创建 GormRoomRepository 实例
func NewGormRoomRepository(db *gorm.DB) *GormRoomRepository {
	if db == nil {
		panic("database connection cannot be nil for GormRoomRepository")
	}
	return &GormRoomRepository{db: db}
}

// FindByID 实现根据房间 ID 查找房间
func (r *GormRoomRepository) FindByID(ctx context.Context, id string) (*domain.Room, error) {
	var roomData domain.Room
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&roomData).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrRoomNotFound
		}
		return nil, fmt.Errorf("gorm: find room by id '%s': %w", id, err)
	}
	return &roomData, nil
}

// Save 实现保存房间信息（创建或更新）
func (r *GormRoomRepository) Save(ctx context.Context, roomData *domain.Room) error {
	result := r.db.WithContext(ctx).Save(roomData)
	err := result.Error
	if err != nil {
		// 唯一约束检查 (MySQL 1062)
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: save room (id: %s): %w", roomData.ID, err)
	}
	return nil
}

// ExistsByID 实现检查房间 ID 是否已被占用
func (r *GormRoomRepository) ExistsByID(ctx context.Context, id string) (bool, error) {
	var count int64
	// 使用 Count() 优化查询，只查询数量
	err := r.db.WithContext(ctx).Model(&domain.Room{}).Where("id = ?", id).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("gorm: count rooms by id '%s': %w", id, err)
	}
	return count > 0, nil
}

// Touch 实现更新房间的最近活跃时间
func (r *GormRoomRepository) Touch(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Model(&domain.Room{}).
		Where("id = ?", id).
		Update("last_active", time.Now()).Error
	if err != nil {
		return fmt.Errorf("gorm: touch room '%s': %w", id, err)
	}
	return nil
}
