package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"imgconv-server-go/internal/platform/errors"
)

// ErrNotFound 表示条目不存在或已过期。
var ErrNotFound = errors.New(errors.KindStorage, "blob.get", "blob not found")

// Blob 是一份已完成的转换结果。
type Blob struct {
	Name      string     `json:"name"`
	MIME      string     `json:"mime"`
	Data      []byte     `json:"-"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func (b *Blob) expired(now time.Time) bool {
	return b.ExpiresAt != nil && now.After(*b.ExpiresAt)
}

// Stats 是存储的占用快照。
type Stats struct {
	Driver     string `json:"driver"`
	Entries    int64  `json:"entries"`
	Bytes      int64  `json:"bytes"`
	TTLSeconds int    `json:"ttl_seconds"`
}

// Store 按不透明标识存取转换结果，实现必须可并发使用。
type Store interface {
	Put(ctx context.Context, id string, blob *Blob) error
	Get(ctx context.Context, id string) (*Blob, error)
	Delete(ctx context.Context, id string) error
	CleanupExpired(ctx context.Context) error
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// Config describes the high level store selection parameters.
type Config struct {
	Driver            string
	TTL               time.Duration
	CompressThreshold int
	Redis             *RedisConfig
	Memory            *MemoryConfig
}

// MemoryConfig holds in-memory tuning knobs.
type MemoryConfig struct {
	GCInterval time.Duration
}

// RedisConfig captures connection options.
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
	Prefix   string
}

// NewID 生成新的条目标识（UUIDv4）。
func NewID() string {
	return uuid.NewString()
}

// stamp 补齐创建时间和过期时间，返回副本。
func stamp(blob *Blob, ttl time.Duration) *Blob {
	b := *blob
	now := time.Now()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	if b.ExpiresAt == nil && ttl > 0 {
		exp := b.CreatedAt.Add(ttl)
		b.ExpiresAt = &exp
	}
	return &b
}

func validID(op, id string) error {
	if id == "" {
		return errors.New(errors.KindStorage, op, "blob id required")
	}
	return nil
}
