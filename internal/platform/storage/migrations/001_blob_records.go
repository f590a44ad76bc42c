package migrations

import (
	"gorm.io/gorm"
)

// Migration001BlobRecords 创建转换结果缓存表
type Migration001BlobRecords struct{}

func (m *Migration001BlobRecords) Version() string {
	return "001_blob_records"
}

func (m *Migration001BlobRecords) Description() string {
	return "Create blob_records table for converted outputs"
}

func (m *Migration001BlobRecords) Up(db *gorm.DB) error {
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS blob_records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			blob_id VARCHAR(64) NOT NULL UNIQUE,
			name VARCHAR(255) NOT NULL,
			mime VARCHAR(128) NOT NULL,
			size INTEGER NOT NULL,
			encoding VARCHAR(16),
			payload BLOB NOT NULL,
			meta JSON,
			created_at DATETIME NOT NULL,
			expires_at DATETIME
		)
	`).Error; err != nil {
		return err
	}
	return db.Exec(`CREATE INDEX IF NOT EXISTS idx_blob_records_expires_at ON blob_records(expires_at)`).Error
}

func (m *Migration001BlobRecords) Down(db *gorm.DB) error {
	return db.Exec(`DROP TABLE IF EXISTS blob_records`).Error
}
