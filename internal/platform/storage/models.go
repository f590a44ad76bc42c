package storage

import (
	"time"

	"gorm.io/datatypes"
)

// BlobRecord 转换结果的持久化记录
type BlobRecord struct {
	ID        uint           `gorm:"primaryKey" json:"-"`
	BlobID    string         `gorm:"uniqueIndex;size:64;not null" json:"id"`
	Name      string         `gorm:"size:255;not null" json:"name"`
	MIME      string         `gorm:"size:128;not null" json:"mime"`
	Size      int64          `gorm:"not null" json:"size"`
	Encoding  string         `gorm:"size:16" json:"encoding"` // "" 或 "zstd"
	Payload   []byte         `gorm:"not null" json:"-"`
	Meta      datatypes.JSON `json:"meta"`
	CreatedAt time.Time      `json:"created_at"`
	ExpiresAt *time.Time     `gorm:"index" json:"expires_at"`
}

// TableName 指定表名
func (BlobRecord) TableName() string {
	return "blob_records"
}
