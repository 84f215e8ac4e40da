package setup

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/NickZhezl/LiveCodeInno/internal/domain"
)

// MigrateDB handles all database migrations using the provided GORM DB instance.
// 返回错误以便调用者知道迁移是否成功。
func MigrateDB(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("cannot migrate database with nil DB connection")
	}

	// Room 的 ID 是字符串主键、SavedVersion 的 Code 是 TEXT，
	// 索引列都限制了长度 (size:191)，AutoMigrate 可以直接处理。
	err := db.AutoMigrate(
		&domain.Room{},
		&domain.SavedVersion{},
	)
	if err != nil {
		logrus.Errorf("Failed to auto-migrate tables: %v", err)
		return fmt.Errorf("failed to auto-migrate tables: %w", err)
	}

	logrus.Info("Database migration completed successfully")
	return nil
}
