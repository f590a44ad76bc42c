package storage

import (
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"imgconv-server-go/internal/platform/errors"
	"imgconv-server-go/internal/platform/storage/migrations"
)

// Open 打开（必要时创建）SQLite 数据库并执行全部迁移。
// path 为 ":memory:" 或 "file:" 开头的 DSN 时不创建目录。
func Open(path string) (*gorm.DB, error) {
	dsn := path
	if path != ":memory:" && !isURI(path) {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Wrap(errors.KindStorage, "storage.mkdir", "failed to create data directory", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, "storage.open", "failed to open database", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate 注册并执行所有已知迁移。
func Migrate(db *gorm.DB) error {
	manager := NewMigrationManager(db)
	manager.AddMigration(&migrations.Migration001BlobRecords{})
	return manager.RunMigrations()
}

// Close 关闭底层连接。
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return errors.Wrap(errors.KindStorage, "storage.close", "failed to get sql handle", err)
	}
	return sqlDB.Close()
}

func isURI(path string) bool {
	return strings.HasPrefix(path, "file:")
}
